package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"venue-wars/internal/model"
)

// CheckinRepository handles the ephemeral presence signals used for
// rival detection. Rows are insert-only.
type CheckinRepository struct {
	pool *pgxpool.Pool
}

// NewCheckinRepository creates a new CheckinRepository instance.
func NewCheckinRepository(pool *pgxpool.Pool) *CheckinRepository {
	return &CheckinRepository{pool: pool}
}

// Create records a presence signal. The timestamp is assigned by the
// database, never taken from the client.
func (r *CheckinRepository) Create(ctx context.Context, appID, userID, username, placeID string, isCompetitive bool) (*model.RivalCheckin, error) {
	const query = `
		INSERT INTO recent_checkins (id, app_id, user_id, username, place_id, is_competitive, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING id, app_id, user_id, username, place_id, is_competitive, created_at
	`

	var c model.RivalCheckin
	err := r.pool.QueryRow(ctx, query, uuid.NewString(), appID, userID, username, placeID, isCompetitive).Scan(
		&c.ID, &c.AppID, &c.UserID, &c.Username, &c.PlaceID, &c.IsCompetitive, &c.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkin: %w", err)
	}
	return &c, nil
}

// FindRecent returns competitive check-ins at a venue within the
// detection window, newest first, excluding the requesting user.
func (r *CheckinRepository) FindRecent(ctx context.Context, appID, placeID, excludeUserID string, window time.Duration) ([]*model.RivalCheckin, error) {
	const query = `
		SELECT id, app_id, user_id, username, place_id, is_competitive, created_at
		FROM recent_checkins
		WHERE app_id = $1
		  AND place_id = $2
		  AND user_id <> $3
		  AND is_competitive
		  AND created_at >= NOW() - make_interval(secs => $4)
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, appID, placeID, excludeUserID, window.Seconds())
	if err != nil {
		return nil, fmt.Errorf("failed to query recent checkins: %w", err)
	}
	defer rows.Close()

	var checkins []*model.RivalCheckin
	for rows.Next() {
		var c model.RivalCheckin
		err := rows.Scan(&c.ID, &c.AppID, &c.UserID, &c.Username, &c.PlaceID, &c.IsCompetitive, &c.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan checkin: %w", err)
		}
		checkins = append(checkins, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating checkins: %w", err)
	}
	return checkins, nil
}
