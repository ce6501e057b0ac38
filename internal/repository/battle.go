package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"venue-wars/internal/model"
)

// battleChannel is the NOTIFY channel carrying battle change events.
// The payload is "<appID>|<battleID>".
const battleChannel = "battle_updates"

// BattleRepository handles battle session persistence.
type BattleRepository struct {
	pool *pgxpool.Pool
}

// NewBattleRepository creates a new BattleRepository instance.
func NewBattleRepository(pool *pgxpool.Pool) *BattleRepository {
	return &BattleRepository{pool: pool}
}

const battleColumns = `
	app_id, battle_id, place_id, venue_name, participants, scores,
	status, started_at, last_activity, winner, ended_at, created_at
`

func scanBattle(row pgx.Row) (*model.BattleSession, error) {
	var s model.BattleSession
	var participants, scores []byte

	err := row.Scan(
		&s.AppID, &s.BattleID, &s.PlaceID, &s.VenueName, &participants, &scores,
		&s.Status, &s.StartedAt, &s.LastActivity, &s.Winner, &s.EndedAt, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(participants, &s.Participants); err != nil {
		return nil, fmt.Errorf("failed to decode participants: %w", err)
	}
	if err := json.Unmarshal(scores, &s.Scores); err != nil {
		return nil, fmt.Errorf("failed to decode scores: %w", err)
	}
	return &s, nil
}

// Create persists a fresh battle session and notifies subscribers.
func (r *BattleRepository) Create(ctx context.Context, s *model.BattleSession) error {
	const query = `
		INSERT INTO battles (
			app_id, battle_id, place_id, venue_name, participants, scores,
			status, started_at, last_activity, winner, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW(), '', NOW())
	`

	participants, err := json.Marshal(s.Participants)
	if err != nil {
		return fmt.Errorf("failed to encode participants: %w", err)
	}
	scores, err := json.Marshal(s.Scores)
	if err != nil {
		return fmt.Errorf("failed to encode scores: %w", err)
	}

	_, err = r.pool.Exec(ctx, query,
		s.AppID, s.BattleID, s.PlaceID, s.VenueName, participants, scores, s.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to create battle: %w", err)
	}

	r.notify(ctx, s.AppID, s.BattleID)
	return nil
}

// Get retrieves a battle session. Returns ErrBattleNotFound if absent.
func (r *BattleRepository) Get(ctx context.Context, appID, battleID string) (*model.BattleSession, error) {
	query := `SELECT ` + battleColumns + ` FROM battles WHERE app_id = $1 AND battle_id = $2`

	s, err := scanBattle(r.pool.QueryRow(ctx, query, appID, battleID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBattleNotFound
		}
		return nil, fmt.Errorf("failed to get battle: %w", err)
	}
	return s, nil
}

// GetForUpdate reads a battle inside tx with a row lock so concurrent
// actions against the same session serialize on the row.
func (r *BattleRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, appID, battleID string) (*model.BattleSession, error) {
	query := `SELECT ` + battleColumns + ` FROM battles WHERE app_id = $1 AND battle_id = $2 FOR UPDATE`

	s, err := scanBattle(tx.QueryRow(ctx, query, appID, battleID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBattleNotFound
		}
		return nil, fmt.Errorf("failed to lock battle: %w", err)
	}
	return s, nil
}

// SaveStateTx writes the mutable battle fields (scores, status, winner,
// ended_at, last_activity) inside tx and queues a NOTIFY that fires at
// commit, so subscribers only ever observe committed state.
func (r *BattleRepository) SaveStateTx(ctx context.Context, tx pgx.Tx, s *model.BattleSession) error {
	const query = `
		UPDATE battles
		SET scores = $3, status = $4, winner = $5, ended_at = $6, last_activity = NOW()
		WHERE app_id = $1 AND battle_id = $2
	`

	scores, err := json.Marshal(s.Scores)
	if err != nil {
		return fmt.Errorf("failed to encode scores: %w", err)
	}

	result, err := tx.Exec(ctx, query, s.AppID, s.BattleID, scores, s.Status, s.Winner, s.EndedAt)
	if err != nil {
		return fmt.Errorf("failed to save battle state: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrBattleNotFound
	}

	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, battleChannel, s.AppID+"|"+s.BattleID); err != nil {
		return fmt.Errorf("failed to notify battle change: %w", err)
	}
	return nil
}

// ActiveForUser finds the most recently active battle the user is part
// of, or ErrBattleNotFound when none exists.
func (r *BattleRepository) ActiveForUser(ctx context.Context, appID, userID string) (*model.BattleSession, error) {
	query := `SELECT ` + battleColumns + `
		FROM battles
		WHERE app_id = $1 AND status = 'active' AND scores ? $2
		ORDER BY last_activity DESC
		LIMIT 1`

	s, err := scanBattle(r.pool.QueryRow(ctx, query, appID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBattleNotFound
		}
		return nil, fmt.Errorf("failed to find active battle: %w", err)
	}
	return s, nil
}

// notify fires a change event outside a transaction (used after Create,
// which has no prior state anyone could have subscribed against).
func (r *BattleRepository) notify(ctx context.Context, appID, battleID string) {
	_, _ = r.pool.Exec(ctx, `SELECT pg_notify($1, $2)`, battleChannel, appID+"|"+battleID)
}

// splitNotifyPayload decodes a battle change payload.
func splitNotifyPayload(payload string) (appID, battleID string, ok bool) {
	appID, battleID, ok = strings.Cut(payload, "|")
	return appID, battleID, ok && appID != "" && battleID != ""
}
