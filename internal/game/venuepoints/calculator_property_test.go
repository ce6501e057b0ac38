// Property-based tests for the venue points calculator.
package venuepoints

import (
	"testing"

	"pgregory.net/rapid"

	"venue-wars/internal/model"
)

func drawContext(t *rapid.T) Context {
	modes := []model.BattleMode{model.ModeBalanced, model.ModeCompetitive, model.ModeExplorer, model.ModeSocial}
	userID := rapid.StringMatching(`[a-z]{3,8}`).Draw(t, "userID")

	controller := ""
	switch rapid.IntRange(0, 2).Draw(t, "controllerKind") {
	case 1:
		controller = userID
	case 2:
		controller = userID + "_rival"
	}

	return Context{
		IsNewVenue:          rapid.Bool().Draw(t, "isNewVenue"),
		IsFirstUserVisit:    rapid.Bool().Draw(t, "isFirstUserVisit"),
		CurrentControllerID: controller,
		UserID:              userID,
		VisitStreak:         rapid.IntRange(0, 30).Draw(t, "visitStreak"),
		IsCompetitiveMode:   rapid.Bool().Draw(t, "isCompetitiveMode"),
		HasGroup:            rapid.Bool().Draw(t, "hasGroup"),
		BattleMode:          modes[rapid.IntRange(0, 3).Draw(t, "mode")],
		DrinkCount:          rapid.IntRange(0, 50).Draw(t, "drinkCount"),
	}
}

// TestBreakdownSumProperty: for any valid context, the total equals the
// sum of all breakdown entries, and no entry is zero.
func TestBreakdownSumProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		res := Calculate(drawContext(t))

		sum := 0
		for _, e := range res.Breakdown {
			if e.Points == 0 {
				t.Fatalf("zero-value breakdown entry present: %+v", res.Breakdown)
			}
			sum += e.Points
		}
		if sum != res.TotalPoints {
			t.Fatalf("breakdown sum %d != total %d (%+v)", sum, res.TotalPoints, res.Breakdown)
		}
	})
}

// TestBaseVisitAlwaysPresent: every calculation starts with the base
// visit stage and is therefore strictly positive.
func TestBaseVisitAlwaysPresent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		res := Calculate(drawContext(t))
		if len(res.Breakdown) == 0 || res.Breakdown[0].Points != BaseVisit {
			t.Fatalf("first breakdown entry is not the base visit: %+v", res.Breakdown)
		}
		if res.TotalPoints < BaseVisit {
			t.Fatalf("total %d below base visit", res.TotalPoints)
		}
	})
}

// TestLevelMatchesTotal: the returned level is always the tier of the
// returned total.
func TestLevelMatchesTotal(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		res := Calculate(drawContext(t))
		if int64(res.TotalPoints) < res.Level.Min || int64(res.TotalPoints) > res.Level.Max {
			t.Fatalf("total %d outside level band [%d,%d]", res.TotalPoints, res.Level.Min, res.Level.Max)
		}
	})
}
