// Tests use testcontainers-go to spin up a PostgreSQL container.
package repository

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"venue-wars/internal/model"
	"venue-wars/internal/pkg/db"
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

// inTx runs fn inside a committed transaction.
func inTx(t *testing.T, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) {
	t.Helper()
	ctx := context.Background()
	tx, err := pool.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, fn(tx))
	require.NoError(t, tx.Commit(ctx))
}

// ============================================================================
// VenueRepository Tests
// ============================================================================

func TestVenueRepository_ApplyVisit(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewVenueRepository(pool)
	ctx := context.Background()

	visit := VenueVisit{
		AppID:            testAppID,
		PlaceID:          "place-1",
		Name:             "The Anchor",
		Address:          "1 Dock St",
		Lat:              51.5,
		Lng:              -0.1,
		IsFirstUserVisit: true,
		Controller: model.Controller{
			UserID:   "u1",
			Username: "alice",
			Points:   160,
			Level:    "SILVER",
			Since:    time.Now().UTC(),
		},
		DiscoveredBy: "u1",
	}
	inTx(t, pool, func(tx pgx.Tx) error {
		return repo.ApplyVisitTx(ctx, tx, visit)
	})

	venue, err := repo.Get(ctx, testAppID, "place-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), venue.TotalVisits)
	assert.Equal(t, int64(1), venue.UniqueVisitors)
	assert.Equal(t, "u1", venue.DiscoveredBy)
	require.NotNil(t, venue.Controller)
	assert.Equal(t, "u1", venue.Controller.UserID)

	// Second visit by another user takes the controller slot even with
	// fewer points. Control follows recency, not point totals.
	visit.IsFirstUserVisit = true
	visit.Controller = model.Controller{
		UserID: "u2", Username: "bob", Points: 35, Level: "BRONZE", Since: time.Now().UTC(),
	}
	inTx(t, pool, func(tx pgx.Tx) error {
		return repo.ApplyVisitTx(ctx, tx, visit)
	})

	venue, err = repo.Get(ctx, testAppID, "place-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), venue.TotalVisits)
	assert.Equal(t, int64(2), venue.UniqueVisitors)
	assert.Equal(t, "u1", venue.DiscoveredBy)
	assert.Equal(t, "u2", venue.Controller.UserID)

	// Repeat visitor does not bump unique_visitors.
	visit.IsFirstUserVisit = false
	inTx(t, pool, func(tx pgx.Tx) error {
		return repo.ApplyVisitTx(ctx, tx, visit)
	})

	venue, err = repo.Get(ctx, testAppID, "place-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), venue.TotalVisits)
	assert.Equal(t, int64(2), venue.UniqueVisitors)
}

func TestVenueRepository_GetMissing(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewVenueRepository(pool)
	_, err := repo.Get(context.Background(), testAppID, "nope")
	assert.ErrorIs(t, err, ErrVenueNotFound)
}

// ============================================================================
// ControlRepository Tests
// ============================================================================

func TestControlRepository_HistoryCap(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewControlRepository(pool)
	ctx := context.Background()

	history := make([]model.HistoryEntry, 0, 15)
	for i := 0; i < 15; i++ {
		history = append(history, model.HistoryEntry{
			Timestamp:   time.Now().UTC(),
			Points:      i,
			TotalPoints: int64(i * 10),
		})
	}

	control := &model.VenueControl{
		AppID:           testAppID,
		UserID:          "u1",
		PlaceID:         "place-1",
		Username:        "alice",
		VenueName:       "The Anchor",
		TotalPoints:     140,
		VisitCount:      15,
		VisitStreak:     15,
		Level:           "SILVER",
		ControlledSince: time.Now().UTC(),
		PointsHistory:   history,
	}
	inTx(t, pool, func(tx pgx.Tx) error {
		return repo.UpsertTx(ctx, tx, control)
	})

	got, err := repo.Get(ctx, testAppID, "u1", "place-1")
	require.NoError(t, err)
	require.Len(t, got.PointsHistory, PointsHistoryCap)
	// Oldest entries are dropped first: entries 0..4 are gone.
	assert.Equal(t, 5, got.PointsHistory[0].Points)
	assert.Equal(t, 14, got.PointsHistory[len(got.PointsHistory)-1].Points)
}

func TestControlRepository_ListByVenueOrdering(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewControlRepository(pool)
	ctx := context.Background()

	points := map[string]int64{"u1": 300, "u2": 500, "u3": 300}
	for userID, pts := range points {
		c := &model.VenueControl{
			AppID: testAppID, UserID: userID, PlaceID: "place-1",
			Username: userID, VenueName: "The Anchor",
			TotalPoints: pts, VisitCount: 1, VisitStreak: 1, Level: "GOLD",
			ControlledSince: time.Now().UTC(),
			PointsHistory:   []model.HistoryEntry{},
		}
		inTx(t, pool, func(tx pgx.Tx) error {
			return repo.UpsertTx(ctx, tx, c)
		})
	}

	controls, err := repo.ListByVenue(ctx, testAppID, "place-1", 10)
	require.NoError(t, err)
	require.Len(t, controls, 3)
	assert.Equal(t, "u2", controls[0].UserID)
	// Equal points break ties by user id ascending.
	assert.Equal(t, "u1", controls[1].UserID)
	assert.Equal(t, "u3", controls[2].UserID)
}

func TestControlRepository_AggregateGlobal(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewControlRepository(pool)
	ctx := context.Background()

	for i, placeID := range []string{"place-1", "place-2", "place-3"} {
		c := &model.VenueControl{
			AppID: testAppID, UserID: "u1", PlaceID: placeID,
			Username: "alice", VenueName: placeID,
			TotalPoints: int64(100 * (i + 1)), VisitCount: 2, VisitStreak: 1,
			Level:           "SILVER",
			ControlledSince: time.Now().UTC(),
			PointsHistory:   []model.HistoryEntry{},
		}
		inTx(t, pool, func(tx pgx.Tx) error {
			return repo.UpsertTx(ctx, tx, c)
		})
	}

	stats, err := repo.AggregateGlobal(ctx, testAppID, 10)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "u1", stats[0].UserID)
	assert.Equal(t, int64(600), stats[0].TotalPoints)
	assert.Equal(t, int64(3), stats[0].VenuesCount)
	assert.Equal(t, int64(6), stats[0].VisitCount)
}

// ============================================================================
// BattleRepository Tests
// ============================================================================

func TestBattleRepository_Lifecycle(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewBattleRepository(pool)
	ctx := context.Background()

	session := &model.BattleSession{
		AppID:     testAppID,
		BattleID:  "battle_place-1_1750000000000",
		PlaceID:   "place-1",
		VenueName: "The Anchor",
		Participants: []model.Participant{
			{UserID: "u1", Username: "alice"},
			{UserID: "u2", Username: "bob"},
		},
		Scores: map[string]model.ParticipantScore{
			"u1": {}, "u2": {},
		},
		Status: model.BattleActive,
	}
	require.NoError(t, repo.Create(ctx, session))

	got, err := repo.Get(ctx, testAppID, session.BattleID)
	require.NoError(t, err)
	assert.Equal(t, model.BattleActive, got.Status)
	assert.Len(t, got.Participants, 2)
	assert.Len(t, got.Scores, 2)
	assert.Nil(t, got.EndedAt)

	active, err := repo.ActiveForUser(ctx, testAppID, "u2")
	require.NoError(t, err)
	assert.Equal(t, session.BattleID, active.BattleID)

	now := time.Now().UTC()
	got.Scores["u1"] = model.ParticipantScore{Score: 520, Drinks: 10, Combo: 3, LastDrinkTime: &now}
	got.Status = model.BattleCompleted
	got.Winner = "u1"
	got.EndedAt = &now
	inTx(t, pool, func(tx pgx.Tx) error {
		return repo.SaveStateTx(ctx, tx, got)
	})

	final, err := repo.Get(ctx, testAppID, session.BattleID)
	require.NoError(t, err)
	assert.Equal(t, model.BattleCompleted, final.Status)
	assert.Equal(t, "u1", final.Winner)
	assert.Equal(t, 520, final.Scores["u1"].Score)
	require.NotNil(t, final.EndedAt)

	_, err = repo.ActiveForUser(ctx, testAppID, "u2")
	assert.ErrorIs(t, err, ErrBattleNotFound)
}

func TestBattleRepository_SaveMissing(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewBattleRepository(pool)
	ctx := context.Background()

	tx, err := pool.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	err = repo.SaveStateTx(ctx, tx, &model.BattleSession{
		AppID:    testAppID,
		BattleID: "battle_nope_0",
		Scores:   map[string]model.ParticipantScore{},
	})
	assert.ErrorIs(t, err, ErrBattleNotFound)
}

// ============================================================================
// BattleStatsRepository Tests
// ============================================================================

func TestBattleStatsRepository_StreakAlgebra(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewBattleStatsRepository(pool)
	ctx := context.Background()

	// win, win, loss, win
	require.NoError(t, repo.ApplyResult(ctx, testAppID, "u1", 520, true))
	require.NoError(t, repo.ApplyResult(ctx, testAppID, "u1", 510, true))
	require.NoError(t, repo.ApplyResult(ctx, testAppID, "u1", 120, false))
	require.NoError(t, repo.ApplyResult(ctx, testAppID, "u1", 530, true))

	stats, err := repo.Get(ctx, testAppID, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.TotalBattles)
	assert.Equal(t, int64(3), stats.Wins)
	assert.Equal(t, int64(1), stats.Losses)
	assert.Equal(t, 1, stats.CurrentStreak)
	assert.Equal(t, 2, stats.LongestWinStreak)
	assert.Equal(t, int64(1680), stats.TotalBattlePoints)
	assert.InDelta(t, 75.0, stats.WinRate(), 0.001)
}

func TestBattleStatsRepository_TopOrdering(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewBattleStatsRepository(pool)
	ctx := context.Background()

	// u1: 2 wins in 3 battles. u2: 2 wins in 2 battles. u3: 1 win.
	require.NoError(t, repo.ApplyResult(ctx, testAppID, "u1", 500, true))
	require.NoError(t, repo.ApplyResult(ctx, testAppID, "u1", 500, true))
	require.NoError(t, repo.ApplyResult(ctx, testAppID, "u1", 100, false))
	require.NoError(t, repo.ApplyResult(ctx, testAppID, "u2", 500, true))
	require.NoError(t, repo.ApplyResult(ctx, testAppID, "u2", 500, true))
	require.NoError(t, repo.ApplyResult(ctx, testAppID, "u3", 500, true))

	top, err := repo.Top(ctx, testAppID, 10)
	require.NoError(t, err)
	require.Len(t, top, 3)
	// Equal wins rank the player with fewer battles first.
	assert.Equal(t, "u2", top[0].UserID)
	assert.Equal(t, "u1", top[1].UserID)
	assert.Equal(t, "u3", top[2].UserID)
}

// ============================================================================
// CheckinRepository Tests
// ============================================================================

func TestCheckinRepository_FindRecent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewCheckinRepository(pool)
	ctx := context.Background()

	_, err := repo.Create(ctx, testAppID, "u1", "alice", "place-1", true)
	require.NoError(t, err)
	_, err = repo.Create(ctx, testAppID, "u2", "bob", "place-1", true)
	require.NoError(t, err)
	// Not competitive, never discoverable.
	_, err = repo.Create(ctx, testAppID, "u3", "carol", "place-1", false)
	require.NoError(t, err)
	// Different venue.
	_, err = repo.Create(ctx, testAppID, "u4", "dave", "place-2", true)
	require.NoError(t, err)

	rivals, err := repo.FindRecent(ctx, testAppID, "place-1", "u1", 30*time.Minute)
	require.NoError(t, err)
	require.Len(t, rivals, 1)
	assert.Equal(t, "u2", rivals[0].UserID)
}

// ============================================================================
// PlayerStatsRepository Tests
// ============================================================================

func TestPlayerStatsRepository_VisitRollup(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewPlayerStatsRepository(pool)
	ctx := context.Background()

	require.NoError(t, repo.ApplyVisit(ctx, testAppID, "u1", "alice", 160, true, "SILVER"))
	require.NoError(t, repo.ApplyVisit(ctx, testAppID, "u1", "alice", 40, false, "SILVER"))
	require.NoError(t, repo.AddDrinks(ctx, testAppID, "u1", 3))
	require.NoError(t, repo.AddParty(ctx, testAppID, "u1"))

	list, err := repo.List(ctx, testAppID, FieldLevel, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(200), list[0].TotalPoints)
	assert.Equal(t, int64(1), list[0].TotalVenues)
	assert.Equal(t, int64(3), list[0].TotalDrinks)
	assert.Equal(t, int64(1), list[0].TotalParties)
}

func TestPlayerStatsRepository_ListOrdering(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewPlayerStatsRepository(pool)
	ctx := context.Background()

	for i, userID := range []string{"u1", "u2", "u3"} {
		require.NoError(t, repo.ApplyVisit(ctx, testAppID, userID, userID, 10, true, "BRONZE"))
		require.NoError(t, repo.AddDrinks(ctx, testAppID, userID, i+1))
	}

	list, err := repo.List(ctx, testAppID, FieldDrinks, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "u3", list[0].UserID)
	assert.Equal(t, "u2", list[1].UserID)
	assert.Equal(t, "u1", list[2].UserID)

	_, err = repo.List(ctx, testAppID, StatsField("bogus"), 10, 0)
	assert.ErrorIs(t, err, ErrUnknownStatsField)
}
