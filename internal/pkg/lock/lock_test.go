package lock

import (
	"sync"
	"testing"

	"pgregory.net/rapid"
)

// TestWithLockSerializes checks that concurrent WithLock calls on the
// same key never overlap.
func TestWithLockSerializes(t *testing.T) {
	kl := NewKeyLock()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = kl.WithLock("battle_1", func() error {
				counter++
				return nil
			})
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("counter = %d, want 50", counter)
	}
}

// TestTryLock checks that a held lock cannot be re-acquired and that
// distinct keys are independent.
func TestTryLock(t *testing.T) {
	kl := NewKeyLock()

	if !kl.TryLock("a") {
		t.Fatal("first TryLock failed")
	}
	if kl.TryLock("a") {
		t.Error("second TryLock on held key succeeded")
	}
	if !kl.TryLock("b") {
		t.Error("TryLock on a different key failed")
	}
	kl.Unlock("a")
	kl.Unlock("b")

	if !kl.TryLock("a") {
		t.Error("TryLock after Unlock failed")
	}
	kl.Unlock("a")
}

// TestManyKeysProperty exercises lock/unlock across arbitrary key sets.
func TestManyKeysProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		kl := NewKeyLock()
		keys := rapid.SliceOfNDistinct(rapid.StringMatching(`battle_[a-z]{1,5}`), 1, 20, rapid.ID[string]).Draw(t, "keys")

		for _, k := range keys {
			kl.Lock(k)
		}
		for _, k := range keys {
			kl.Unlock(k)
		}
		for _, k := range keys {
			if !kl.TryLock(k) {
				t.Fatalf("key %q still locked after full unlock", k)
			}
			kl.Unlock(k)
		}
	})
}
