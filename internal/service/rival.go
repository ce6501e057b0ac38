package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"venue-wars/internal/model"
	"venue-wars/internal/repository"
)

// RivalService finds eligible opponents at a venue from recent
// competitive check-ins.
type RivalService struct {
	checkinRepo     *repository.CheckinRepository
	detectionWindow time.Duration
}

// NewRivalService creates a new RivalService instance.
func NewRivalService(checkinRepo *repository.CheckinRepository, detectionWindow time.Duration) *RivalService {
	if detectionWindow <= 0 {
		detectionWindow = 30 * time.Minute
	}
	return &RivalService{
		checkinRepo:     checkinRepo,
		detectionWindow: detectionWindow,
	}
}

// CheckIn records a presence signal at a venue. Only competitive
// check-ins are discoverable by rivals.
func (s *RivalService) CheckIn(ctx context.Context, appID, userID, username, placeID string, competitive bool) (*model.RivalCheckin, error) {
	if placeID == "" {
		return nil, ErrInvalidVenue
	}
	if userID == "" {
		return nil, ErrInvalidUser
	}
	return s.checkinRepo.Create(ctx, appID, userID, username, placeID, competitive)
}

// FindRivals returns competitive check-ins at the venue within the
// detection window, excluding the requesting user. A store failure
// degrades rival discovery to an empty list rather than blocking the
// caller.
func (s *RivalService) FindRivals(ctx context.Context, appID, placeID, excludingUserID string) []*model.RivalCheckin {
	rivals, err := s.checkinRepo.FindRecent(ctx, appID, placeID, excludingUserID, s.detectionWindow)
	if err != nil {
		log.Error().Err(err).Str("place_id", placeID).Msg("Rival detection failed")
		return []*model.RivalCheckin{}
	}
	if rivals == nil {
		rivals = []*model.RivalCheckin{}
	}

	log.Info().Str("place_id", placeID).Int("count", len(rivals)).Msg("Rivals detected")
	return rivals
}
