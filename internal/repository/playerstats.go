package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"venue-wars/internal/model"
)

// ErrUnknownStatsField is returned when a leaderboard sort field is
// outside the closed set.
var ErrUnknownStatsField = errors.New("unknown leaderboard field")

// StatsField is the closed set of global leaderboard sort fields.
// Unknown values are rejected, never silently defaulted.
type StatsField string

const (
	FieldTerritories StatsField = "territories"
	FieldDrinks      StatsField = "drinks"
	FieldLevel       StatsField = "level"
	FieldParties     StatsField = "parties"
)

// column maps the field to its sort column.
func (f StatsField) column() (string, error) {
	switch f {
	case FieldTerritories:
		return "total_venues", nil
	case FieldDrinks:
		return "total_drinks", nil
	case FieldLevel:
		return "total_points", nil
	case FieldParties:
		return "total_parties", nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatsField, f)
}

// PlayerStatsRepository maintains the public per-user aggregates backing
// the global leaderboard. All mutations are increment-style upserts.
type PlayerStatsRepository struct {
	pool *pgxpool.Pool
}

// NewPlayerStatsRepository creates a new PlayerStatsRepository instance.
func NewPlayerStatsRepository(pool *pgxpool.Pool) *PlayerStatsRepository {
	return &PlayerStatsRepository{pool: pool}
}

// ApplyVisit folds one visit into the aggregate: points always, venue
// count only on the user's first visit there, level re-derived by the
// caller from the lifetime points.
func (r *PlayerStatsRepository) ApplyVisit(ctx context.Context, appID, userID, username string, points int, firstVenue bool, level string) error {
	const query = `
		INSERT INTO player_stats (app_id, user_id, username, total_points, total_venues, level, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (app_id, user_id) DO UPDATE SET
			username = EXCLUDED.username,
			total_points = player_stats.total_points + $4,
			total_venues = player_stats.total_venues + $5,
			level = $6,
			updated_at = NOW()
	`

	venueInc := 0
	if firstVenue {
		venueInc = 1
	}

	if _, err := r.pool.Exec(ctx, query, appID, userID, username, points, venueInc, level); err != nil {
		return fmt.Errorf("failed to apply visit to player stats: %w", err)
	}
	return nil
}

// AddDrinks increments a user's lifetime drink counter.
func (r *PlayerStatsRepository) AddDrinks(ctx context.Context, appID, userID string, count int) error {
	const query = `
		INSERT INTO player_stats (app_id, user_id, total_drinks, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (app_id, user_id) DO UPDATE SET
			total_drinks = player_stats.total_drinks + $3,
			updated_at = NOW()
	`

	if _, err := r.pool.Exec(ctx, query, appID, userID, count); err != nil {
		return fmt.Errorf("failed to add drinks to player stats: %w", err)
	}
	return nil
}

// AddParty increments a user's lifetime party counter.
func (r *PlayerStatsRepository) AddParty(ctx context.Context, appID, userID string) error {
	const query = `
		INSERT INTO player_stats (app_id, user_id, total_parties, updated_at)
		VALUES ($1, $2, 1, NOW())
		ON CONFLICT (app_id, user_id) DO UPDATE SET
			total_parties = player_stats.total_parties + 1,
			updated_at = NOW()
	`

	if _, err := r.pool.Exec(ctx, query, appID, userID); err != nil {
		return fmt.Errorf("failed to add party to player stats: %w", err)
	}
	return nil
}

// List pages through player stats ordered by the selected field
// descending, ties broken by user id.
func (r *PlayerStatsRepository) List(ctx context.Context, appID string, field StatsField, limit, offset int) ([]*model.PlayerStats, error) {
	column, err := field.column()
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT app_id, user_id, username, total_points, total_venues,
		       total_drinks, total_parties, level, updated_at
		FROM player_stats
		WHERE app_id = $1
		ORDER BY %s DESC, user_id ASC
		LIMIT $2 OFFSET $3
	`, column)

	rows, err := r.pool.Query(ctx, query, appID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query player stats: %w", err)
	}
	defer rows.Close()

	var stats []*model.PlayerStats
	for rows.Next() {
		var s model.PlayerStats
		err := rows.Scan(
			&s.AppID, &s.UserID, &s.Username, &s.TotalPoints, &s.TotalVenues,
			&s.TotalDrinks, &s.TotalParties, &s.Level, &s.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan player stats: %w", err)
		}
		stats = append(stats, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating player stats: %w", err)
	}
	return stats, nil
}
