package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"venue-wars/internal/game/tier"
	"venue-wars/internal/game/venuepoints"
	"venue-wars/internal/model"
	"venue-wars/internal/pkg/db"
	"venue-wars/internal/repository"
)

// VenueInfo identifies the venue a visit happened at.
type VenueInfo struct {
	PlaceID string  `json:"placeId"`
	Name    string  `json:"name"`
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

// Party describes the outing that produced the visit.
type Party struct {
	Mode       model.BattleMode `json:"mode"`
	Companions int              `json:"companions"`
	Drinks     int              `json:"drinks"`
}

// VisitRequest is one visit event to record.
type VisitRequest struct {
	Venue      VenueInfo        `json:"venue"`
	UserID     string           `json:"userId"`
	Username   string           `json:"username"`
	Party      Party            `json:"party"`
	BattleMode model.BattleMode `json:"battleMode"`
}

// VisitResult is the outcome of one recorded visit.
type VisitResult struct {
	PointsEarned int                    `json:"pointsEarned"`
	TotalPoints  int64                  `json:"totalPoints"`
	Level        tier.Tier              `json:"level"`
	Breakdown    []model.BreakdownEntry `json:"breakdown"`
	IsTakeover   bool                   `json:"isTakeover"`
	IsNewControl bool                   `json:"isNewControl"`
	IsNewVenue   bool                   `json:"isNewVenue"`
	VisitStreak  int                    `json:"visitStreak"`
}

// ControlService is the venue-control ledger: it applies the point
// calculator to visit events and keeps the venue and control records
// consistent under concurrent visitors.
type ControlService struct {
	pool        *pgxpool.Pool
	venueRepo   *repository.VenueRepository
	controlRepo *repository.ControlRepository
	playerStats *repository.PlayerStatsRepository
}

// NewControlService creates a new ControlService instance.
func NewControlService(
	pool *pgxpool.Pool,
	venueRepo *repository.VenueRepository,
	controlRepo *repository.ControlRepository,
	playerStats *repository.PlayerStatsRepository,
) *ControlService {
	return &ControlService{
		pool:        pool,
		venueRepo:   venueRepo,
		controlRepo: controlRepo,
		playerStats: playerStats,
	}
}

// RecordVisit applies one visit event to the ledger. The venue and
// control rows are locked and rewritten inside a single transaction,
// so two users visiting the same venue at the same instant serialize
// instead of clobbering each other's controller and history writes.
func (s *ControlService) RecordVisit(ctx context.Context, appID string, req VisitRequest) (*VisitResult, error) {
	if req.Venue.PlaceID == "" {
		return nil, ErrInvalidVenue
	}
	if req.UserID == "" {
		return nil, ErrInvalidUser
	}
	if req.BattleMode == "" {
		req.BattleMode = model.ModeBalanced
	}
	if !req.BattleMode.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, req.BattleMode)
	}
	if req.Party.Mode == "" {
		req.Party.Mode = model.ModeBalanced
	}
	if !req.Party.Mode.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, req.Party.Mode)
	}

	var result VisitResult

	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		venue, err := s.venueRepo.GetForUpdate(ctx, tx, appID, req.Venue.PlaceID)
		if err != nil && !errors.Is(err, repository.ErrVenueNotFound) {
			return err
		}
		control, err := s.controlRepo.GetForUpdate(ctx, tx, appID, req.UserID, req.Venue.PlaceID)
		if err != nil && !errors.Is(err, repository.ErrControlNotFound) {
			return err
		}

		isNewVenue := venue == nil
		isFirstUserVisit := control == nil

		controllerID := ""
		if venue != nil && venue.Controller != nil {
			controllerID = venue.Controller.UserID
		}

		streak := 1
		if control != nil {
			streak = control.VisitStreak + 1
		}

		calc := venuepoints.Calculate(venuepoints.Context{
			IsNewVenue:          isNewVenue,
			IsFirstUserVisit:    isFirstUserVisit,
			CurrentControllerID: controllerID,
			UserID:              req.UserID,
			VisitStreak:         streak,
			IsCompetitiveMode:   req.Party.Mode == model.ModeCompetitive,
			HasGroup:            req.Party.Companions > 0,
			BattleMode:          req.BattleMode,
			DrinkCount:          req.Party.Drinks,
		})

		var priorPoints, priorVisits int64
		var history []model.HistoryEntry
		controlledSince := time.Now().UTC()
		if control != nil {
			priorPoints = control.TotalPoints
			priorVisits = control.VisitCount
			history = control.PointsHistory
			controlledSince = control.ControlledSince
		}

		newTotal := priorPoints + int64(calc.TotalPoints)
		newLevel := tier.Classify(newTotal)

		now := time.Now().UTC()
		history = append(history, model.HistoryEntry{
			Timestamp:   now,
			Points:      calc.TotalPoints,
			TotalPoints: newTotal,
			Breakdown:   calc.Breakdown,
		})

		discoveredBy := ""
		if venue != nil {
			discoveredBy = venue.DiscoveredBy
		}
		if isNewVenue {
			discoveredBy = req.UserID
		}

		err = s.venueRepo.ApplyVisitTx(ctx, tx, repository.VenueVisit{
			AppID:            appID,
			PlaceID:          req.Venue.PlaceID,
			Name:             req.Venue.Name,
			Address:          req.Venue.Address,
			Lat:              req.Venue.Lat,
			Lng:              req.Venue.Lng,
			IsFirstUserVisit: isFirstUserVisit,
			DiscoveredBy:     discoveredBy,
			Controller: model.Controller{
				UserID:   req.UserID,
				Username: req.Username,
				Points:   newTotal,
				Level:    newLevel.Key,
				Since:    controlledSince,
			},
		})
		if err != nil {
			return err
		}

		err = s.controlRepo.UpsertTx(ctx, tx, &model.VenueControl{
			AppID:           appID,
			UserID:          req.UserID,
			PlaceID:         req.Venue.PlaceID,
			Username:        req.Username,
			VenueName:       req.Venue.Name,
			VenueAddress:    req.Venue.Address,
			TotalPoints:     newTotal,
			VisitCount:      priorVisits + 1,
			VisitStreak:     streak,
			Level:           newLevel.Key,
			ControlledSince: controlledSince,
			PointsHistory:   history,
		})
		if err != nil {
			return err
		}

		result = VisitResult{
			PointsEarned: calc.TotalPoints,
			TotalPoints:  newTotal,
			Level:        newLevel,
			Breakdown:    calc.Breakdown,
			IsTakeover:   controllerID != "" && controllerID != req.UserID,
			IsNewControl: isFirstUserVisit,
			IsNewVenue:   isNewVenue,
			VisitStreak:  streak,
		}
		return nil
	})
	if err != nil {
		log.Error().Err(err).
			Str("place_id", req.Venue.PlaceID).
			Str("user_id", req.UserID).
			Msg("Failed to record visit")
		return nil, err
	}

	log.Info().
		Str("place_id", req.Venue.PlaceID).
		Str("user_id", req.UserID).
		Int("points", result.PointsEarned).
		Int64("total", result.TotalPoints).
		Str("level", result.Level.Key).
		Msg("Visit recorded")

	// The public aggregate rollup is best-effort: its failure degrades
	// the global leaderboard, not the visit itself.
	if err := s.playerStats.ApplyVisit(ctx, appID, req.UserID, req.Username, result.PointsEarned, result.IsNewControl, result.Level.Key); err != nil {
		log.Warn().Err(err).Str("user_id", req.UserID).Msg("Player stats visit rollup failed")
	}
	if err := s.playerStats.AddParty(ctx, appID, req.UserID); err != nil {
		log.Warn().Err(err).Str("user_id", req.UserID).Msg("Player stats party rollup failed")
	}

	return &result, nil
}
