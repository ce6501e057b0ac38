package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"venue-wars/internal/model"
)

// BattleStatsRepository handles lifetime battle statistics.
type BattleStatsRepository struct {
	pool *pgxpool.Pool
}

// NewBattleStatsRepository creates a new BattleStatsRepository instance.
func NewBattleStatsRepository(pool *pgxpool.Pool) *BattleStatsRepository {
	return &BattleStatsRepository{pool: pool}
}

const battleStatsColumns = `
	app_id, user_id, total_battles, wins, losses, current_streak,
	longest_win_streak, total_battle_points, last_battle, updated_at
`

func scanBattleStats(row pgx.Row) (*model.BattleStats, error) {
	var s model.BattleStats
	err := row.Scan(
		&s.AppID, &s.UserID, &s.TotalBattles, &s.Wins, &s.Losses, &s.CurrentStreak,
		&s.LongestWinStreak, &s.TotalBattlePoints, &s.LastBattle, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ApplyResult folds one finished battle into a user's lifetime stats.
// The whole merge is a single upsert statement, so two battles finishing
// for the same user at the same instant cannot lose an increment.
func (r *BattleStatsRepository) ApplyResult(ctx context.Context, appID, userID string, score int, isWinner bool) error {
	const query = `
		INSERT INTO battle_stats (
			app_id, user_id, total_battles, wins, losses, current_streak,
			longest_win_streak, total_battle_points, last_battle, updated_at
		)
		VALUES ($1, $2, 1, $3, $4, $5, $5, $6, NOW(), NOW())
		ON CONFLICT (app_id, user_id) DO UPDATE SET
			total_battles = battle_stats.total_battles + 1,
			wins = battle_stats.wins + $3,
			losses = battle_stats.losses + $4,
			current_streak = CASE WHEN $7 THEN battle_stats.current_streak + 1 ELSE 0 END,
			longest_win_streak = GREATEST(
				battle_stats.longest_win_streak,
				CASE WHEN $7 THEN battle_stats.current_streak + 1 ELSE battle_stats.longest_win_streak END
			),
			total_battle_points = battle_stats.total_battle_points + $6,
			last_battle = NOW(),
			updated_at = NOW()
	`

	winInc, lossInc, streak := 0, 1, 0
	if isWinner {
		winInc, lossInc, streak = 1, 0, 1
	}

	_, err := r.pool.Exec(ctx, query, appID, userID, winInc, lossInc, streak, score, isWinner)
	if err != nil {
		return fmt.Errorf("failed to apply battle result: %w", err)
	}
	return nil
}

// Get retrieves a user's lifetime battle stats. Returns ErrStatsNotFound
// when the user never fought a battle.
func (r *BattleStatsRepository) Get(ctx context.Context, appID, userID string) (*model.BattleStats, error) {
	query := `SELECT ` + battleStatsColumns + ` FROM battle_stats WHERE app_id = $1 AND user_id = $2`

	s, err := scanBattleStats(r.pool.QueryRow(ctx, query, appID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStatsNotFound
		}
		return nil, fmt.Errorf("failed to get battle stats: %w", err)
	}
	return s, nil
}

// Top retrieves the battle leaderboard ordered by absolute wins
// descending, then fewest battles, then user id. The tie-break is
// deliberate and documented rather than left to query plan order.
func (r *BattleStatsRepository) Top(ctx context.Context, appID string, limit int) ([]*model.BattleStats, error) {
	query := `SELECT ` + battleStatsColumns + `
		FROM battle_stats
		WHERE app_id = $1
		ORDER BY wins DESC, total_battles ASC, user_id ASC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, appID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query battle leaderboard: %w", err)
	}
	defer rows.Close()

	var stats []*model.BattleStats
	for rows.Next() {
		s, err := scanBattleStats(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan battle stats: %w", err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating battle stats: %w", err)
	}
	return stats, nil
}
