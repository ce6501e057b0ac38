package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// migrations are idempotent and run at startup, in order.
var migrations = []struct {
	name string
	sql  string
}{
	{
		name: "venues",
		sql: `
		CREATE TABLE IF NOT EXISTS venues (
			app_id TEXT NOT NULL,
			place_id TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			address TEXT NOT NULL DEFAULT '',
			lat DOUBLE PRECISION NOT NULL DEFAULT 0,
			lng DOUBLE PRECISION NOT NULL DEFAULT 0,
			total_visits BIGINT NOT NULL DEFAULT 0,
			unique_visitors BIGINT NOT NULL DEFAULT 0,
			controller_user_id TEXT NOT NULL DEFAULT '',
			controller_username TEXT NOT NULL DEFAULT '',
			controller_points BIGINT NOT NULL DEFAULT 0,
			controller_level TEXT NOT NULL DEFAULT 'BRONZE',
			controller_since TIMESTAMPTZ,
			discovered_by TEXT NOT NULL DEFAULT '',
			last_visit TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (app_id, place_id)
		);
	`,
	},
	{
		name: "venue_controls",
		sql: `
		CREATE TABLE IF NOT EXISTS venue_controls (
			app_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			place_id TEXT NOT NULL,
			username TEXT NOT NULL DEFAULT '',
			venue_name TEXT NOT NULL DEFAULT '',
			venue_address TEXT NOT NULL DEFAULT '',
			total_points BIGINT NOT NULL DEFAULT 0,
			visit_count BIGINT NOT NULL DEFAULT 0,
			visit_streak INT NOT NULL DEFAULT 0,
			level TEXT NOT NULL DEFAULT 'BRONZE',
			controlled_since TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_visit TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			points_history JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (app_id, user_id, place_id)
		);
		CREATE INDEX IF NOT EXISTS idx_venue_controls_place ON venue_controls(app_id, place_id, total_points DESC);
		CREATE INDEX IF NOT EXISTS idx_venue_controls_user ON venue_controls(app_id, user_id, total_points DESC);
	`,
	},
	{
		name: "battles",
		sql: `
		CREATE TABLE IF NOT EXISTS battles (
			app_id TEXT NOT NULL,
			battle_id TEXT NOT NULL,
			place_id TEXT NOT NULL,
			venue_name TEXT NOT NULL DEFAULT '',
			participants JSONB NOT NULL DEFAULT '[]',
			scores JSONB NOT NULL DEFAULT '{}',
			status TEXT NOT NULL DEFAULT 'active',
			started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_activity TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			winner TEXT NOT NULL DEFAULT '',
			ended_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (app_id, battle_id)
		);
		CREATE INDEX IF NOT EXISTS idx_battles_status ON battles(app_id, status, last_activity DESC);
	`,
	},
	{
		name: "battle_stats",
		sql: `
		CREATE TABLE IF NOT EXISTS battle_stats (
			app_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			total_battles BIGINT NOT NULL DEFAULT 0,
			wins BIGINT NOT NULL DEFAULT 0,
			losses BIGINT NOT NULL DEFAULT 0,
			current_streak INT NOT NULL DEFAULT 0,
			longest_win_streak INT NOT NULL DEFAULT 0,
			total_battle_points BIGINT NOT NULL DEFAULT 0,
			last_battle TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (app_id, user_id)
		);
		CREATE INDEX IF NOT EXISTS idx_battle_stats_wins ON battle_stats(app_id, wins DESC, total_battles ASC);
	`,
	},
	{
		name: "recent_checkins",
		sql: `
		CREATE TABLE IF NOT EXISTS recent_checkins (
			id UUID PRIMARY KEY,
			app_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			username TEXT NOT NULL DEFAULT '',
			place_id TEXT NOT NULL,
			is_competitive BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_checkins_place_time ON recent_checkins(app_id, place_id, created_at DESC);
	`,
	},
	{
		name: "player_stats",
		sql: `
		CREATE TABLE IF NOT EXISTS player_stats (
			app_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			username TEXT NOT NULL DEFAULT '',
			total_points BIGINT NOT NULL DEFAULT 0,
			total_venues BIGINT NOT NULL DEFAULT 0,
			total_drinks BIGINT NOT NULL DEFAULT 0,
			total_parties BIGINT NOT NULL DEFAULT 0,
			level TEXT NOT NULL DEFAULT 'BRONZE',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (app_id, user_id)
		);
	`,
	},
}

// Migrate creates the schema. Safe to run repeatedly.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, m := range migrations {
		if _, err := pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("migration %s failed: %w", m.name, err)
		}
		log.Debug().Str("migration", m.name).Msg("Migration applied")
	}
	log.Info().Int("count", len(migrations)).Msg("Database migrations complete")
	return nil
}
