// Package battle implements the live scoring rules of a battle session:
// action point values, the combo rule, and win detection.
package battle

import (
	"errors"
	"fmt"
	"time"

	"venue-wars/internal/model"
)

// Battle scoring constants.
const (
	DrinkPoints     = 50
	ComboMultiplier = 20
	DefenseBonus    = 100
	ConquestBonus   = 75
	SpeedBonusMax   = 50
	WinScore        = 500

	// ComboWindow is the maximum gap between two drinks for the combo
	// counter to keep climbing.
	ComboWindow = 5 * time.Minute

	MinParticipants = 2
	MaxParticipants = 10
)

// ErrUnknownAction is returned for an action type outside the closed set.
var ErrUnknownAction = errors.New("unknown battle action")

// ActionType is the closed set of scoring actions.
type ActionType string

const (
	ActionDrink    ActionType = "drink"
	ActionDefense  ActionType = "defense"
	ActionConquest ActionType = "conquest"
	ActionSpeed    ActionType = "speed"
)

// Action is one scoring event submitted by a participant. Value is only
// meaningful for speed actions and is capped at SpeedBonusMax.
type Action struct {
	Type  ActionType `json:"type"`
	Value int        `json:"value,omitempty"`
}

// Validate rejects action types outside the closed set.
func (a Action) Validate() error {
	switch a.Type {
	case ActionDrink, ActionDefense, ActionConquest, ActionSpeed:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownAction, a.Type)
}

// Apply computes the new participant state after one action. The now
// timestamp must be server-assigned; client clocks never drive the
// combo window. Returns the updated state and the points gained.
func Apply(s model.ParticipantScore, a Action, now time.Time) (model.ParticipantScore, int, error) {
	if err := a.Validate(); err != nil {
		return s, 0, err
	}

	gained := 0
	switch a.Type {
	case ActionDrink:
		gained = DrinkPoints
		s.Drinks++
		if s.LastDrinkTime != nil && now.Sub(*s.LastDrinkTime) < ComboWindow {
			s.Combo++
			gained += s.Combo * ComboMultiplier
		} else {
			s.Combo = 0
		}
		t := now
		s.LastDrinkTime = &t

	case ActionDefense:
		gained = DefenseBonus

	case ActionConquest:
		gained = ConquestBonus

	case ActionSpeed:
		gained = a.Value
		if gained > SpeedBonusMax {
			gained = SpeedBonusMax
		}
		if gained < 0 {
			gained = 0
		}
	}

	s.Score += gained
	return s, gained, nil
}

// IsWin reports whether a participant score has crossed the win threshold.
func IsWin(s model.ParticipantScore) bool {
	return s.Score >= WinScore
}
