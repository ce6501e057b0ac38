package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"venue-wars/internal/model"
)

// PointsHistoryCap bounds the per-control points history; oldest
// entries are dropped first.
const PointsHistoryCap = 10

// ControlRepository handles per-(user, venue) control ledger persistence.
type ControlRepository struct {
	pool *pgxpool.Pool
}

// NewControlRepository creates a new ControlRepository instance.
func NewControlRepository(pool *pgxpool.Pool) *ControlRepository {
	return &ControlRepository{pool: pool}
}

const controlColumns = `
	app_id, user_id, place_id, username, venue_name, venue_address,
	total_points, visit_count, visit_streak, level, controlled_since,
	last_visit, points_history, created_at, updated_at
`

func scanControl(row pgx.Row) (*model.VenueControl, error) {
	var c model.VenueControl
	var history []byte

	err := row.Scan(
		&c.AppID, &c.UserID, &c.PlaceID, &c.Username, &c.VenueName, &c.VenueAddress,
		&c.TotalPoints, &c.VisitCount, &c.VisitStreak, &c.Level, &c.ControlledSince,
		&c.LastVisit, &history, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(history, &c.PointsHistory); err != nil {
		return nil, fmt.Errorf("failed to decode points history: %w", err)
	}
	return &c, nil
}

// Get retrieves one control record. Returns ErrControlNotFound if absent.
func (r *ControlRepository) Get(ctx context.Context, appID, userID, placeID string) (*model.VenueControl, error) {
	query := `SELECT ` + controlColumns + ` FROM venue_controls WHERE app_id = $1 AND user_id = $2 AND place_id = $3`

	c, err := scanControl(r.pool.QueryRow(ctx, query, appID, userID, placeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrControlNotFound
		}
		return nil, fmt.Errorf("failed to get venue control: %w", err)
	}
	return c, nil
}

// GetForUpdate reads a control record inside tx with a row lock.
func (r *ControlRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, appID, userID, placeID string) (*model.VenueControl, error) {
	query := `SELECT ` + controlColumns + ` FROM venue_controls WHERE app_id = $1 AND user_id = $2 AND place_id = $3 FOR UPDATE`

	c, err := scanControl(tx.QueryRow(ctx, query, appID, userID, placeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrControlNotFound
		}
		return nil, fmt.Errorf("failed to lock venue control: %w", err)
	}
	return c, nil
}

// UpsertTx writes the full control record inside tx. The caller is
// responsible for having appended and trimmed the points history.
func (r *ControlRepository) UpsertTx(ctx context.Context, tx pgx.Tx, c *model.VenueControl) error {
	const query = `
		INSERT INTO venue_controls (
			app_id, user_id, place_id, username, venue_name, venue_address,
			total_points, visit_count, visit_streak, level, controlled_since,
			last_visit, points_history, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), $12, NOW(), NOW())
		ON CONFLICT (app_id, user_id, place_id) DO UPDATE SET
			username = EXCLUDED.username,
			venue_name = EXCLUDED.venue_name,
			venue_address = EXCLUDED.venue_address,
			total_points = EXCLUDED.total_points,
			visit_count = EXCLUDED.visit_count,
			visit_streak = EXCLUDED.visit_streak,
			level = EXCLUDED.level,
			last_visit = NOW(),
			points_history = EXCLUDED.points_history,
			updated_at = NOW()
	`

	if len(c.PointsHistory) > PointsHistoryCap {
		c.PointsHistory = c.PointsHistory[len(c.PointsHistory)-PointsHistoryCap:]
	}
	history, err := json.Marshal(c.PointsHistory)
	if err != nil {
		return fmt.Errorf("failed to encode points history: %w", err)
	}

	_, err = tx.Exec(ctx, query,
		c.AppID, c.UserID, c.PlaceID, c.Username, c.VenueName, c.VenueAddress,
		c.TotalPoints, c.VisitCount, c.VisitStreak, c.Level, c.ControlledSince,
		history,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert venue control: %w", err)
	}
	return nil
}

// ListByVenue retrieves the controls for one venue ordered by total
// points descending.
func (r *ControlRepository) ListByVenue(ctx context.Context, appID, placeID string, limit int) ([]*model.VenueControl, error) {
	query := `SELECT ` + controlColumns + `
		FROM venue_controls
		WHERE app_id = $1 AND place_id = $2
		ORDER BY total_points DESC, user_id ASC
		LIMIT $3`

	return r.list(ctx, query, appID, placeID, limit)
}

// ListByUser retrieves every venue a user holds a control record for,
// ordered by total points descending.
func (r *ControlRepository) ListByUser(ctx context.Context, appID, userID string) ([]*model.VenueControl, error) {
	query := `SELECT ` + controlColumns + `
		FROM venue_controls
		WHERE app_id = $1 AND user_id = $2
		ORDER BY total_points DESC, place_id ASC`

	return r.list(ctx, query, appID, userID)
}

func (r *ControlRepository) list(ctx context.Context, query string, args ...any) ([]*model.VenueControl, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query venue controls: %w", err)
	}
	defer rows.Close()

	var controls []*model.VenueControl
	for rows.Next() {
		c, err := scanControl(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan venue control: %w", err)
		}
		controls = append(controls, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating venue controls: %w", err)
	}
	return controls, nil
}

// GlobalControlStat is one user's aggregate across all venues.
type GlobalControlStat struct {
	UserID      string
	Username    string
	TotalPoints int64
	VenuesCount int64
	VisitCount  int64
}

// AggregateGlobal sums every user's controls across venues, ordered by
// total points descending.
func (r *ControlRepository) AggregateGlobal(ctx context.Context, appID string, limit int) ([]*GlobalControlStat, error) {
	const query = `
		SELECT user_id, MAX(username), SUM(total_points), COUNT(*), SUM(visit_count)
		FROM venue_controls
		WHERE app_id = $1
		GROUP BY user_id
		ORDER BY SUM(total_points) DESC, user_id ASC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, appID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate controls: %w", err)
	}
	defer rows.Close()

	var stats []*GlobalControlStat
	for rows.Next() {
		var s GlobalControlStat
		if err := rows.Scan(&s.UserID, &s.Username, &s.TotalPoints, &s.VenuesCount, &s.VisitCount); err != nil {
			return nil, fmt.Errorf("failed to scan control aggregate: %w", err)
		}
		stats = append(stats, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating control aggregates: %w", err)
	}
	return stats, nil
}
