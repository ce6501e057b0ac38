package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// BattleListener holds one LISTEN connection and fans battle change
// events out to in-process subscribers. Subscribers get a bare "the
// session changed" signal and re-read the row themselves, so every
// delivery reflects committed state and slow consumers only ever skip
// intermediate versions, never see stale ones.
type BattleListener struct {
	pool *pgxpool.Pool

	mu     sync.Mutex
	subs   map[string]map[int]func()
	nextID int
}

// NewBattleListener creates a listener; Run must be started for
// subscriptions to receive events.
func NewBattleListener(pool *pgxpool.Pool) *BattleListener {
	return &BattleListener{
		pool: pool,
		subs: make(map[string]map[int]func()),
	}
}

// Run blocks listening for battle change notifications until ctx is
// cancelled. Intended to run in its own goroutine.
func (l *BattleListener) Run(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire listen connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+battleChannel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", battleChannel, err)
	}

	log.Info().Str("channel", battleChannel).Msg("Battle listener started")

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("battle listener failed: %w", err)
		}

		appID, battleID, ok := splitNotifyPayload(notification.Payload)
		if !ok {
			log.Warn().Str("payload", notification.Payload).Msg("Malformed battle notification")
			continue
		}
		l.dispatch(appID, battleID)
	}
}

func (l *BattleListener) dispatch(appID, battleID string) {
	l.mu.Lock()
	callbacks := make([]func(), 0, len(l.subs[appID+"|"+battleID]))
	for _, fn := range l.subs[appID+"|"+battleID] {
		callbacks = append(callbacks, fn)
	}
	l.mu.Unlock()

	// Callbacks run off the listen loop so one slow subscriber cannot
	// stall delivery to the rest.
	for _, fn := range callbacks {
		go fn()
	}
}

// Subscribe registers fn to fire whenever the battle changes. The
// returned func removes the subscription; it is safe to call more than
// once.
func (l *BattleListener) Subscribe(appID, battleID string, fn func()) (unsubscribe func()) {
	key := appID + "|" + battleID

	l.mu.Lock()
	id := l.nextID
	l.nextID++
	if l.subs[key] == nil {
		l.subs[key] = make(map[int]func())
	}
	l.subs[key][id] = fn
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if m, ok := l.subs[key]; ok {
			delete(m, id)
			if len(m) == 0 {
				delete(l.subs, key)
			}
		}
	}
}
