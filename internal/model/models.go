// Package model defines the data models for the venue control and battle engine.
package model

import "time"

// BattleMode is the play style a party was started in.
// The set is closed; unknown values are rejected at the API boundary.
type BattleMode string

const (
	ModeBalanced    BattleMode = "balanced"
	ModeCompetitive BattleMode = "competitive"
	ModeExplorer    BattleMode = "explorer"
	ModeSocial      BattleMode = "social"
)

// Valid reports whether m is a known battle mode.
func (m BattleMode) Valid() bool {
	switch m {
	case ModeBalanced, ModeCompetitive, ModeExplorer, ModeSocial:
		return true
	}
	return false
}

// BattleStatus is the lifecycle state of a battle session.
type BattleStatus string

const (
	BattleActive    BattleStatus = "active"
	BattleCompleted BattleStatus = "completed"
)

// Controller identifies whoever most recently completed a visit at a venue.
// It is intentionally the most recent visitor, not the highest point holder.
type Controller struct {
	UserID   string    `json:"userId"`
	Username string    `json:"username"`
	Points   int64     `json:"controlPoints"`
	Level    string    `json:"level"`
	Since    time.Time `json:"since"`
}

// Venue is the per-venue aggregate record. Created on the first-ever
// visit and never deleted.
type Venue struct {
	AppID          string      `db:"app_id"`
	PlaceID        string      `db:"place_id"`
	Name           string      `db:"name"`
	Address        string      `db:"address"`
	Lat            float64     `db:"lat"`
	Lng            float64     `db:"lng"`
	TotalVisits    int64       `db:"total_visits"`
	UniqueVisitors int64       `db:"unique_visitors"`
	Controller     *Controller `db:"-"`
	DiscoveredBy   string      `db:"discovered_by"`
	LastVisit      time.Time   `db:"last_visit"`
	CreatedAt      time.Time   `db:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"`
}

// BreakdownEntry is one labelled contribution of a point calculation.
type BreakdownEntry struct {
	Label  string `json:"label"`
	Points int    `json:"points"`
}

// HistoryEntry is one element of a control record's points history.
type HistoryEntry struct {
	Timestamp   time.Time        `json:"timestamp"`
	Points      int              `json:"points"`
	TotalPoints int64            `json:"totalPoints"`
	Breakdown   []BreakdownEntry `json:"breakdown"`
}

// VenueControl is the per-(user, venue) control ledger record.
// TotalPoints is monotonically non-decreasing; Level is always
// re-derived from TotalPoints.
type VenueControl struct {
	AppID           string         `db:"app_id"`
	UserID          string         `db:"user_id"`
	PlaceID         string         `db:"place_id"`
	Username        string         `db:"username"`
	VenueName       string         `db:"venue_name"`
	VenueAddress    string         `db:"venue_address"`
	TotalPoints     int64          `db:"total_points"`
	VisitCount      int64          `db:"visit_count"`
	VisitStreak     int            `db:"visit_streak"`
	Level           string         `db:"level"`
	ControlledSince time.Time      `db:"controlled_since"`
	LastVisit       time.Time      `db:"last_visit"`
	PointsHistory   []HistoryEntry `db:"points_history"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

// Participant is a member of a battle session's fixed participant set.
type Participant struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// ParticipantScore is the live per-participant state inside a battle.
type ParticipantScore struct {
	Score         int        `json:"score"`
	Drinks        int        `json:"drinks"`
	Combo         int        `json:"combo"`
	LastDrinkTime *time.Time `json:"lastDrinkTime"`
}

// BattleSession is an ephemeral multiplayer scoring contest at one venue.
// Once Status is completed no further score mutation is permitted.
type BattleSession struct {
	AppID        string                      `db:"app_id"`
	BattleID     string                      `db:"battle_id"`
	PlaceID      string                      `db:"place_id"`
	VenueName    string                      `db:"venue_name"`
	Participants []Participant               `db:"participants"`
	Scores       map[string]ParticipantScore `db:"scores"`
	Status       BattleStatus                `db:"status"`
	StartedAt    time.Time                   `db:"started_at"`
	LastActivity time.Time                   `db:"last_activity"`
	Winner       string                      `db:"winner"`
	EndedAt      *time.Time                  `db:"ended_at"`
	CreatedAt    time.Time                   `db:"created_at"`
}

// BattleStats is a user's lifetime battle record, updated only at
// battle completion via increment-style merges.
type BattleStats struct {
	AppID             string    `db:"app_id"`
	UserID            string    `db:"user_id"`
	TotalBattles      int64     `db:"total_battles"`
	Wins              int64     `db:"wins"`
	Losses            int64     `db:"losses"`
	CurrentStreak     int       `db:"current_streak"`
	LongestWinStreak  int       `db:"longest_win_streak"`
	TotalBattlePoints int64     `db:"total_battle_points"`
	LastBattle        time.Time `db:"last_battle"`
	UpdatedAt         time.Time `db:"updated_at"`
}

// WinRate returns the user's win percentage, 0 when no battles were fought.
func (s *BattleStats) WinRate() float64 {
	if s.TotalBattles == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.TotalBattles) * 100
}

// RivalCheckin is an ephemeral presence signal at a venue. Rows are
// never mutated after creation; the timestamp is server-assigned.
type RivalCheckin struct {
	ID            string    `db:"id"`
	AppID         string    `db:"app_id"`
	UserID        string    `db:"user_id"`
	Username      string    `db:"username"`
	PlaceID       string    `db:"place_id"`
	IsCompetitive bool      `db:"is_competitive"`
	CreatedAt     time.Time `db:"created_at"`
}

// PlayerStats is the public per-user aggregate backing the global
// leaderboard.
type PlayerStats struct {
	AppID        string    `db:"app_id"`
	UserID       string    `db:"user_id"`
	Username     string    `db:"username"`
	TotalPoints  int64     `db:"total_points"`
	TotalVenues  int64     `db:"total_venues"`
	TotalDrinks  int64     `db:"total_drinks"`
	TotalParties int64     `db:"total_parties"`
	Level        string    `db:"level"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// ParticipantResult is one ranked entry of a finished battle.
type ParticipantResult struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Score    int    `json:"score"`
	Drinks   int    `json:"drinks"`
	Rank     int    `json:"rank"`
}

// BattleResult is the outcome of a completed battle session.
type BattleResult struct {
	BattleID     string              `json:"battleId"`
	PlaceID      string              `json:"placeId"`
	VenueName    string              `json:"venueName"`
	Winner       string              `json:"winner"`
	Participants []ParticipantResult `json:"participants"`
	Duration     time.Duration       `json:"duration"`
	StartedAt    time.Time           `json:"startedAt"`
	EndedAt      time.Time           `json:"endedAt"`
}
