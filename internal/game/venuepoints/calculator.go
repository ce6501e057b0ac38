// Package venuepoints implements the point calculation for a single
// venue visit. The calculation is an ordered pipeline of additive
// stages over a running total; later multiplicative stages compound
// everything accumulated before them, so stage order matters.
package venuepoints

import (
	"fmt"

	"venue-wars/internal/game/tier"
	"venue-wars/internal/model"
)

// Point values per stage.
const (
	BaseVisit            = 10
	DrinkMultiplier      = 2
	NewVenueBonus        = 50
	FirstControlBonus    = 100
	TakeoverBonus        = 75
	DefenseBonus         = 25
	CompetitiveModeBonus = 20
	ExplorerModeBonus    = 30
)

// Context carries the visit flags feeding the calculation. All fields
// are defaulted; there are no error paths.
type Context struct {
	IsNewVenue          bool
	IsFirstUserVisit    bool
	CurrentControllerID string
	UserID              string
	VisitStreak         int
	IsCompetitiveMode   bool
	HasGroup            bool
	BattleMode          model.BattleMode
	DrinkCount          int
}

// Result is the outcome of one visit calculation. TotalPoints always
// equals the sum of all breakdown entries.
type Result struct {
	TotalPoints int
	Breakdown   []model.BreakdownEntry
	Level       tier.Tier
}

// Calculate runs the scoring pipeline for one visit. Stages that
// contribute nothing are omitted from the breakdown.
func Calculate(c Context) Result {
	var breakdown []model.BreakdownEntry
	total := 0

	add := func(label string, points int) {
		if points == 0 {
			return
		}
		total += points
		breakdown = append(breakdown, model.BreakdownEntry{Label: label, Points: points})
	}

	// 1. Base visit, always.
	add("Venue visit", BaseVisit)

	// 2. Per-drink bonus.
	if c.DrinkCount > 0 {
		add(fmt.Sprintf("%d drinks", c.DrinkCount), c.DrinkCount*DrinkMultiplier)
	}

	// 3. First-ever visit to this venue by anyone.
	if c.IsNewVenue {
		add("New venue discovered", NewVenueBonus)
	}

	// 4. First user visit with no standing controller.
	if c.IsFirstUserVisit && c.CurrentControllerID == "" {
		add("First control", FirstControlBonus)
	}

	// 5/6. Takeover and defense are mutually exclusive by construction.
	if c.CurrentControllerID != "" && c.CurrentControllerID != c.UserID {
		add("Territory takeover", TakeoverBonus)
	}
	if c.CurrentControllerID != "" && c.CurrentControllerID == c.UserID {
		add("Territory defense", DefenseBonus)
	}

	// 7. Streak scales the total accumulated so far by 10% per extra
	// consecutive visit. Integer arithmetic keeps the floor exact.
	if c.VisitStreak > 1 {
		add(fmt.Sprintf("Visit streak x%d", c.VisitStreak), total*(c.VisitStreak-1)/10)
	}

	// 8. Competitive mode flat bonus.
	if c.IsCompetitiveMode {
		add("Competitive mode", CompetitiveModeBonus)
	}

	// 9. Companions amplify everything earned so far by 50%.
	if c.HasGroup {
		add("Group bonus", total/2)
	}

	// 10. Explorer play style flat bonus.
	if c.BattleMode == model.ModeExplorer {
		add("Explorer mode", ExplorerModeBonus)
	}

	return Result{
		TotalPoints: total,
		Breakdown:   breakdown,
		Level:       tier.Classify(int64(total)),
	}
}
