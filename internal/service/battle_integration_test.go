// Integration tests drive the battle lifecycle against a real
// PostgreSQL container.
package service

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"venue-wars/internal/game/battle"
	"venue-wars/internal/model"
	"venue-wars/internal/pkg/db"
	"venue-wars/internal/pkg/lock"
	"venue-wars/internal/repository"
)

const testAppID = "test-app"

// checkDockerAvailable checks if Docker is available and running
func checkDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	err := cmd.Run()
	return err == nil
}

// setupTestDB creates a PostgreSQL container and returns a connection pool.
// Skips the test if Docker is not available.
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	require.NoError(t, db.Migrate(ctx, pool))

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return pool, cleanup
}

func newBattleService(pool *pgxpool.Pool) (*BattleService, *repository.BattleStatsRepository) {
	statsRepo := repository.NewBattleStatsRepository(pool)
	svc := NewBattleService(
		pool,
		repository.NewBattleRepository(pool),
		statsRepo,
		repository.NewPlayerStatsRepository(pool),
		repository.NewBattleListener(pool),
		lock.NewKeyLock(),
	)
	return svc, statsRepo
}

func TestBattleService_WinThreshold(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	svc, statsRepo := newBattleService(pool)
	ctx := context.Background()

	battleID, err := svc.Start(ctx, testAppID, "place-1", "The Anchor", []model.Participant{
		{UserID: "u1", Username: "alice"},
		{UserID: "u2", Username: "bob"},
	})
	require.NoError(t, err)

	// Seven conquests at 75 points cross the 500-point threshold on the
	// last one.
	var last *ActionResult
	for i := 0; i < 7; i++ {
		last, err = svc.RecordAction(ctx, testAppID, battleID, "u1", battle.Action{Type: battle.ActionConquest})
		require.NoError(t, err)
	}
	assert.Equal(t, 525, last.Score)
	assert.True(t, last.IsWinner)

	// The session completed atomically with the winning action; no
	// further scoring is accepted.
	_, err = svc.RecordAction(ctx, testAppID, battleID, "u2", battle.Action{Type: battle.ActionDrink})
	assert.ErrorIs(t, err, ErrBattleNotActive)

	session, err := svc.Get(ctx, testAppID, battleID)
	require.NoError(t, err)
	assert.Equal(t, model.BattleCompleted, session.Status)
	assert.Equal(t, "u1", session.Winner)
	require.NotNil(t, session.EndedAt)

	// Lifetime stats were rolled up at the winning action, for the
	// winner and the loser alike.
	winStats, err := statsRepo.Get(ctx, testAppID, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), winStats.TotalBattles)
	assert.Equal(t, int64(1), winStats.Wins)
	assert.Equal(t, int64(525), winStats.TotalBattlePoints)
	assert.Equal(t, 1, winStats.CurrentStreak)

	lossStats, err := statsRepo.Get(ctx, testAppID, "u2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), lossStats.TotalBattles)
	assert.Equal(t, int64(1), lossStats.Losses)
	assert.Equal(t, 0, lossStats.CurrentStreak)

	// Ending an auto-won battle returns the stored result and does not
	// count the battle a second time.
	first, err := svc.End(ctx, testAppID, battleID)
	require.NoError(t, err)
	assert.Equal(t, "u1", first.Winner)

	second, err := svc.End(ctx, testAppID, battleID)
	require.NoError(t, err)
	assert.Equal(t, first.Winner, second.Winner)
	assert.Equal(t, first.Participants, second.Participants)

	winStats, err = statsRepo.Get(ctx, testAppID, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), winStats.TotalBattles)
	assert.Equal(t, int64(1), winStats.Wins)
}

func TestBattleService_EndIdempotent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	svc, statsRepo := newBattleService(pool)
	ctx := context.Background()

	battleID, err := svc.Start(ctx, testAppID, "place-1", "The Anchor", []model.Participant{
		{UserID: "u1", Username: "alice"},
		{UserID: "u2", Username: "bob"},
	})
	require.NoError(t, err)

	// Both stay below the win threshold; u2 leads on points.
	_, err = svc.RecordAction(ctx, testAppID, battleID, "u1", battle.Action{Type: battle.ActionDefense})
	require.NoError(t, err)
	_, err = svc.RecordAction(ctx, testAppID, battleID, "u2", battle.Action{Type: battle.ActionDefense})
	require.NoError(t, err)
	_, err = svc.RecordAction(ctx, testAppID, battleID, "u2", battle.Action{Type: battle.ActionConquest})
	require.NoError(t, err)

	first, err := svc.End(ctx, testAppID, battleID)
	require.NoError(t, err)
	assert.Equal(t, "u2", first.Winner)
	require.Len(t, first.Participants, 2)
	assert.Equal(t, 1, first.Participants[0].Rank)
	assert.Equal(t, 175, first.Participants[0].Score)

	winStats, err := statsRepo.Get(ctx, testAppID, "u2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), winStats.TotalBattles)
	assert.Equal(t, int64(1), winStats.Wins)

	second, err := svc.End(ctx, testAppID, battleID)
	require.NoError(t, err)
	assert.Equal(t, first.Winner, second.Winner)
	assert.Equal(t, first.StartedAt, second.StartedAt)
	// The stored ended_at round-trips at microsecond precision.
	assert.WithinDuration(t, first.EndedAt, second.EndedAt, time.Millisecond)

	// The second End never re-runs the stats rollup.
	winStats, err = statsRepo.Get(ctx, testAppID, "u2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), winStats.TotalBattles)
	assert.Equal(t, int64(1), winStats.Wins)

	lossStats, err := statsRepo.Get(ctx, testAppID, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), lossStats.TotalBattles)
	assert.Equal(t, int64(1), lossStats.Losses)
}
