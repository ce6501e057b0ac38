// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"venue-wars/internal/model"
)

// Common errors for repository operations.
var (
	ErrVenueNotFound   = errors.New("venue not found")
	ErrControlNotFound = errors.New("venue control not found")
	ErrBattleNotFound  = errors.New("battle not found")
	ErrStatsNotFound   = errors.New("battle stats not found")
)

// VenueRepository handles per-venue aggregate persistence.
type VenueRepository struct {
	pool *pgxpool.Pool
}

// NewVenueRepository creates a new VenueRepository instance.
func NewVenueRepository(pool *pgxpool.Pool) *VenueRepository {
	return &VenueRepository{pool: pool}
}

const venueColumns = `
	app_id, place_id, name, address, lat, lng, total_visits, unique_visitors,
	controller_user_id, controller_username, controller_points, controller_level,
	controller_since, discovered_by, last_visit, created_at, updated_at
`

func scanVenue(row pgx.Row) (*model.Venue, error) {
	var v model.Venue
	var ctrl model.Controller
	var ctrlSince, lastVisit *time.Time

	err := row.Scan(
		&v.AppID, &v.PlaceID, &v.Name, &v.Address, &v.Lat, &v.Lng,
		&v.TotalVisits, &v.UniqueVisitors,
		&ctrl.UserID, &ctrl.Username, &ctrl.Points, &ctrl.Level,
		&ctrlSince, &v.DiscoveredBy, &lastVisit, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastVisit != nil {
		v.LastVisit = *lastVisit
	}
	if ctrl.UserID != "" {
		if ctrlSince != nil {
			ctrl.Since = *ctrlSince
		}
		v.Controller = &ctrl
	}
	return &v, nil
}

// Get retrieves a venue by place id. Returns ErrVenueNotFound if absent.
func (r *VenueRepository) Get(ctx context.Context, appID, placeID string) (*model.Venue, error) {
	query := `SELECT ` + venueColumns + ` FROM venues WHERE app_id = $1 AND place_id = $2`

	v, err := scanVenue(r.pool.QueryRow(ctx, query, appID, placeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVenueNotFound
		}
		return nil, fmt.Errorf("failed to get venue: %w", err)
	}
	return v, nil
}

// GetForUpdate reads a venue inside tx with a row lock so concurrent
// visitors to the same venue serialize on it. Returns ErrVenueNotFound
// if the venue does not exist yet.
func (r *VenueRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, appID, placeID string) (*model.Venue, error) {
	query := `SELECT ` + venueColumns + ` FROM venues WHERE app_id = $1 AND place_id = $2 FOR UPDATE`

	v, err := scanVenue(tx.QueryRow(ctx, query, appID, placeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVenueNotFound
		}
		return nil, fmt.Errorf("failed to lock venue: %w", err)
	}
	return v, nil
}

// VenueVisit carries one visit's effect on the venue aggregate.
type VenueVisit struct {
	AppID            string
	PlaceID          string
	Name             string
	Address          string
	Lat              float64
	Lng              float64
	IsFirstUserVisit bool
	Controller       model.Controller
	DiscoveredBy     string
}

// ApplyVisitTx upserts the venue row for one visit: counters move via
// increments, the controller is overwritten with the latest visitor.
// Must run inside the same transaction that locked the row.
func (r *VenueRepository) ApplyVisitTx(ctx context.Context, tx pgx.Tx, visit VenueVisit) error {
	const query = `
		INSERT INTO venues (
			app_id, place_id, name, address, lat, lng,
			total_visits, unique_visitors,
			controller_user_id, controller_username, controller_points,
			controller_level, controller_since, discovered_by,
			last_visit, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, 1, 1, $7, $8, $9, $10, $11, $12, NOW(), NOW(), NOW())
		ON CONFLICT (app_id, place_id) DO UPDATE SET
			name = EXCLUDED.name,
			address = EXCLUDED.address,
			lat = EXCLUDED.lat,
			lng = EXCLUDED.lng,
			total_visits = venues.total_visits + 1,
			unique_visitors = venues.unique_visitors + $13,
			controller_user_id = EXCLUDED.controller_user_id,
			controller_username = EXCLUDED.controller_username,
			controller_points = EXCLUDED.controller_points,
			controller_level = EXCLUDED.controller_level,
			controller_since = EXCLUDED.controller_since,
			last_visit = NOW(),
			updated_at = NOW()
	`

	newVisitorInc := 0
	if visit.IsFirstUserVisit {
		newVisitorInc = 1
	}

	_, err := tx.Exec(ctx, query,
		visit.AppID, visit.PlaceID, visit.Name, visit.Address, visit.Lat, visit.Lng,
		visit.Controller.UserID, visit.Controller.Username, visit.Controller.Points,
		visit.Controller.Level, visit.Controller.Since, visit.DiscoveredBy,
		newVisitorInc,
	)
	if err != nil {
		return fmt.Errorf("failed to apply venue visit: %w", err)
	}
	return nil
}
