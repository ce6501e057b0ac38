package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"venue-wars/internal/game/tier"
	"venue-wars/internal/model"
	"venue-wars/internal/repository"
)

const defaultLeaderboardLimit = 50

// VenueLeaderboardEntry is one ranked row of a per-venue leaderboard.
type VenueLeaderboardEntry struct {
	Rank                int    `json:"rank"`
	UserID              string `json:"userId"`
	Username            string `json:"username"`
	TotalPoints         int64  `json:"totalPoints"`
	VisitCount          int64  `json:"visitCount"`
	Level               string `json:"level"`
	LevelColor          string `json:"levelColor"`
	IsCurrentController bool   `json:"isCurrentController"`
}

// GlobalControlEntry is one ranked row of the cross-venue control leaderboard.
type GlobalControlEntry struct {
	Rank        int    `json:"rank"`
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	TotalPoints int64  `json:"totalPoints"`
	VenuesCount int64  `json:"venuesCount"`
	VisitCount  int64  `json:"visitCount"`
	Level       string `json:"level"`
}

// BattleLeaderboardEntry is one ranked row of the battle win leaderboard.
type BattleLeaderboardEntry struct {
	Rank         int     `json:"rank"`
	UserID       string  `json:"userId"`
	Wins         int64   `json:"wins"`
	Losses       int64   `json:"losses"`
	TotalBattles int64   `json:"totalBattles"`
	WinRate      float64 `json:"winRate"`
}

// TerritoryStats summarizes a user's control portfolio.
type TerritoryStats struct {
	TotalVenues       int            `json:"totalVenues"`
	TotalPoints       int64          `json:"totalPoints"`
	TotalVisits       int64          `json:"totalVisits"`
	LongestStreak     int            `json:"longestStreak"`
	FavoriteVenue     string         `json:"favoriteVenue"`
	LevelDistribution map[string]int `json:"levelDistribution"`
}

// LeaderboardService serves all ranked read models. Every query here is
// a discovery read: on storage failure it logs and degrades to an empty
// result instead of failing the caller.
type LeaderboardService struct {
	venueRepo   *repository.VenueRepository
	controlRepo *repository.ControlRepository
	statsRepo   *repository.BattleStatsRepository
	playerStats *repository.PlayerStatsRepository
}

// NewLeaderboardService creates a new LeaderboardService instance.
func NewLeaderboardService(
	venueRepo *repository.VenueRepository,
	controlRepo *repository.ControlRepository,
	statsRepo *repository.BattleStatsRepository,
	playerStats *repository.PlayerStatsRepository,
) *LeaderboardService {
	return &LeaderboardService{
		venueRepo:   venueRepo,
		controlRepo: controlRepo,
		statsRepo:   statsRepo,
		playerStats: playerStats,
	}
}

// VenueLeaderboard ranks everyone holding control points at one venue.
// The controller flag marks the most recent visitor, who need not be
// the point leader.
func (s *LeaderboardService) VenueLeaderboard(ctx context.Context, appID, placeID string, limit int) []VenueLeaderboardEntry {
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}

	controls, err := s.controlRepo.ListByVenue(ctx, appID, placeID, limit)
	if err != nil {
		log.Error().Err(err).Str("place_id", placeID).Msg("Failed to load venue leaderboard")
		return []VenueLeaderboardEntry{}
	}

	controllerID := ""
	venue, err := s.venueRepo.Get(ctx, appID, placeID)
	if err == nil && venue.Controller != nil {
		controllerID = venue.Controller.UserID
	} else if err != nil && !errors.Is(err, repository.ErrVenueNotFound) {
		log.Error().Err(err).Str("place_id", placeID).Msg("Failed to load venue for leaderboard")
	}

	entries := make([]VenueLeaderboardEntry, 0, len(controls))
	for i, c := range controls {
		t := tier.Classify(c.TotalPoints)
		entries = append(entries, VenueLeaderboardEntry{
			Rank:                i + 1,
			UserID:              c.UserID,
			Username:            c.Username,
			TotalPoints:         c.TotalPoints,
			VisitCount:          c.VisitCount,
			Level:               t.Name,
			LevelColor:          t.Color,
			IsCurrentController: c.UserID == controllerID,
		})
	}
	return entries
}

// GlobalControlLeaderboard ranks users by control points summed across
// every venue.
func (s *LeaderboardService) GlobalControlLeaderboard(ctx context.Context, appID string, limit int) []GlobalControlEntry {
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}

	stats, err := s.controlRepo.AggregateGlobal(ctx, appID, limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load global control leaderboard")
		return []GlobalControlEntry{}
	}

	entries := make([]GlobalControlEntry, 0, len(stats))
	for i, st := range stats {
		entries = append(entries, GlobalControlEntry{
			Rank:        i + 1,
			UserID:      st.UserID,
			Username:    st.Username,
			TotalPoints: st.TotalPoints,
			VenuesCount: st.VenuesCount,
			VisitCount:  st.VisitCount,
			Level:       tier.Classify(st.TotalPoints).Name,
		})
	}
	return entries
}

// PlayerLeaderboard ranks public player stats by one of the supported
// sort fields. An unknown field is the caller's error and is returned,
// unlike storage failures which degrade to empty.
func (s *LeaderboardService) PlayerLeaderboard(ctx context.Context, appID string, field repository.StatsField, limit, offset int) ([]*model.PlayerStats, error) {
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}

	stats, err := s.playerStats.List(ctx, appID, field, limit, offset)
	if err != nil {
		if errors.Is(err, repository.ErrUnknownStatsField) {
			return nil, err
		}
		log.Error().Err(err).Str("field", string(field)).Msg("Failed to load player leaderboard")
		return []*model.PlayerStats{}, nil
	}
	return stats, nil
}

// BattleLeaderboard ranks users by battle wins.
func (s *LeaderboardService) BattleLeaderboard(ctx context.Context, appID string, limit int) []BattleLeaderboardEntry {
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}

	stats, err := s.statsRepo.Top(ctx, appID, limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load battle leaderboard")
		return []BattleLeaderboardEntry{}
	}

	entries := make([]BattleLeaderboardEntry, 0, len(stats))
	for i, st := range stats {
		entries = append(entries, BattleLeaderboardEntry{
			Rank:         i + 1,
			UserID:       st.UserID,
			Wins:         st.Wins,
			Losses:       st.Losses,
			TotalBattles: st.TotalBattles,
			WinRate:      st.WinRate(),
		})
	}
	return entries
}

// UserBattleStats returns a user's lifetime battle record. A user who
// never battled gets a zeroed record, and like the other discovery
// reads a store failure degrades to that zeroed record after logging.
func (s *LeaderboardService) UserBattleStats(ctx context.Context, appID, userID string) (*model.BattleStats, error) {
	if userID == "" {
		return nil, ErrInvalidUser
	}

	stats, err := s.statsRepo.Get(ctx, appID, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrStatsNotFound) {
			log.Error().Err(err).Str("user_id", userID).Msg("Failed to load battle stats")
		}
		return &model.BattleStats{AppID: appID, UserID: userID}, nil
	}
	return stats, nil
}

// UserControlledVenues lists every control record a user holds.
func (s *LeaderboardService) UserControlledVenues(ctx context.Context, appID, userID string) []*model.VenueControl {
	controls, err := s.controlRepo.ListByUser(ctx, appID, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to load controlled venues")
		return []*model.VenueControl{}
	}
	if controls == nil {
		controls = []*model.VenueControl{}
	}
	return controls
}

// UserTerritoryStats rolls a user's control records up into portfolio
// totals, the per-tier venue distribution, the longest visit streak,
// and the venue with the most points.
func (s *LeaderboardService) UserTerritoryStats(ctx context.Context, appID, userID string) *TerritoryStats {
	stats := &TerritoryStats{LevelDistribution: make(map[string]int)}
	for _, t := range tier.All {
		stats.LevelDistribution[t.Name] = 0
	}

	controls, err := s.controlRepo.ListByUser(ctx, appID, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to load territory stats")
		return stats
	}

	var topPoints int64 = -1
	for _, c := range controls {
		stats.TotalVenues++
		stats.TotalPoints += c.TotalPoints
		stats.TotalVisits += c.VisitCount
		if c.VisitStreak > stats.LongestStreak {
			stats.LongestStreak = c.VisitStreak
		}
		if c.TotalPoints > topPoints {
			topPoints = c.TotalPoints
			stats.FavoriteVenue = c.VenueName
		}
		stats.LevelDistribution[tier.Classify(c.TotalPoints).Name]++
	}
	return stats
}
