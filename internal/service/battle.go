package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"venue-wars/internal/game/battle"
	"venue-wars/internal/model"
	"venue-wars/internal/pkg/db"
	"venue-wars/internal/pkg/lock"
	"venue-wars/internal/repository"
)

// ActionResult is the participant's state after one scoring action.
type ActionResult struct {
	Score        int  `json:"score"`
	Drinks       int  `json:"drinks"`
	Combo        int  `json:"combo"`
	PointsGained int  `json:"pointsGained"`
	IsWinner     bool `json:"isWinner"`
}

// BattleService governs the battle session state machine: creation,
// live scoring, termination, and the post-battle stats rollup.
type BattleService struct {
	pool        *pgxpool.Pool
	battleRepo  *repository.BattleRepository
	statsRepo   *repository.BattleStatsRepository
	playerStats *repository.PlayerStatsRepository
	listener    *repository.BattleListener
	locks       *lock.KeyLock
}

// NewBattleService creates a new BattleService instance.
func NewBattleService(
	pool *pgxpool.Pool,
	battleRepo *repository.BattleRepository,
	statsRepo *repository.BattleStatsRepository,
	playerStats *repository.PlayerStatsRepository,
	listener *repository.BattleListener,
	locks *lock.KeyLock,
) *BattleService {
	return &BattleService{
		pool:        pool,
		battleRepo:  battleRepo,
		statsRepo:   statsRepo,
		playerStats: playerStats,
		listener:    listener,
		locks:       locks,
	}
}

// Start creates a battle session at a venue with a fixed participant
// set and zeroed scores.
func (s *BattleService) Start(ctx context.Context, appID, placeID, venueName string, participants []model.Participant) (string, error) {
	if placeID == "" {
		return "", ErrInvalidVenue
	}
	if len(participants) < battle.MinParticipants || len(participants) > battle.MaxParticipants {
		return "", fmt.Errorf("%w: got %d", ErrParticipantCount, len(participants))
	}

	scores := make(map[string]model.ParticipantScore, len(participants))
	for _, p := range participants {
		if p.UserID == "" {
			return "", ErrInvalidUser
		}
		if _, dup := scores[p.UserID]; dup {
			return "", fmt.Errorf("%w: %s", ErrDuplicateParticipant, p.UserID)
		}
		scores[p.UserID] = model.ParticipantScore{}
	}

	session := &model.BattleSession{
		AppID:        appID,
		BattleID:     fmt.Sprintf("battle_%s_%d", placeID, time.Now().UnixMilli()),
		PlaceID:      placeID,
		VenueName:    venueName,
		Participants: participants,
		Scores:       scores,
		Status:       model.BattleActive,
	}

	if err := s.battleRepo.Create(ctx, session); err != nil {
		log.Error().Err(err).Str("place_id", placeID).Msg("Failed to start battle")
		return "", err
	}

	log.Info().
		Str("battle_id", session.BattleID).
		Str("place_id", placeID).
		Int("participants", len(participants)).
		Msg("Battle started")
	return session.BattleID, nil
}

// Get returns the current session state.
func (s *BattleService) Get(ctx context.Context, appID, battleID string) (*model.BattleSession, error) {
	return s.battleRepo.Get(ctx, appID, battleID)
}

// ActiveBattleFor returns the user's most recently active session, or
// nil when there is none.
func (s *BattleService) ActiveBattleFor(ctx context.Context, appID, userID string) (*model.BattleSession, error) {
	session, err := s.battleRepo.ActiveForUser(ctx, appID, userID)
	if errors.Is(err, repository.ErrBattleNotFound) {
		return nil, nil
	}
	return session, err
}

// RecordAction applies one scoring action to a participant. The session
// row is locked for the duration of the update; crossing the win
// threshold completes the session in the same transaction, so no later
// action can ever slip in after the win.
func (s *BattleService) RecordAction(ctx context.Context, appID, battleID, userID string, action battle.Action) (*ActionResult, error) {
	if err := action.Validate(); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, ErrInvalidUser
	}

	var result ActionResult
	var completed *model.BattleSession

	err := s.locks.WithLock(battleID, func() error {
		return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
			session, err := s.battleRepo.GetForUpdate(ctx, tx, appID, battleID)
			if err != nil {
				return err
			}
			if session.Status != model.BattleActive {
				return ErrBattleNotActive
			}

			score, ok := session.Scores[userID]
			if !ok {
				return fmt.Errorf("%w: %s", ErrNotParticipant, userID)
			}

			now := time.Now().UTC()
			score, gained, err := battle.Apply(score, action, now)
			if err != nil {
				return err
			}
			session.Scores[userID] = score

			isWinner := battle.IsWin(score)
			if isWinner {
				session.Status = model.BattleCompleted
				session.Winner = userID
				session.EndedAt = &now
				completed = session
			}

			if err := s.battleRepo.SaveStateTx(ctx, tx, session); err != nil {
				return err
			}

			result = ActionResult{
				Score:        score.Score,
				Drinks:       score.Drinks,
				Combo:        score.Combo,
				PointsGained: gained,
				IsWinner:     isWinner,
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("battle_id", battleID).
		Str("user_id", userID).
		Str("action", string(action.Type)).
		Int("gained", result.PointsGained).
		Int("score", result.Score).
		Msg("Battle action recorded")

	if action.Type == battle.ActionDrink {
		if err := s.playerStats.AddDrinks(ctx, appID, userID, 1); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("Player stats drink rollup failed")
		}
	}

	// Crossing the win threshold is the completing transition, so the
	// lifetime stats rollup fires here. End sees the session already
	// completed and will not roll up again.
	if completed != nil {
		log.Info().
			Str("battle_id", battleID).
			Str("winner", completed.Winner).
			Msg("Battle won at score threshold")
		s.rollupStats(ctx, appID, buildResult(completed))
	}

	return &result, nil
}

// End terminates a session. Ending an already-completed session returns
// its stored result without touching stats again, so End is idempotent.
func (s *BattleService) End(ctx context.Context, appID, battleID string) (*model.BattleResult, error) {
	var result *model.BattleResult
	alreadyCompleted := false

	err := s.locks.WithLock(battleID, func() error {
		return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
			session, err := s.battleRepo.GetForUpdate(ctx, tx, appID, battleID)
			if err != nil {
				return err
			}

			if session.Status == model.BattleCompleted {
				alreadyCompleted = true
				result = buildResult(session)
				return nil
			}

			ranked := rankParticipants(session)
			now := time.Now().UTC()
			session.Status = model.BattleCompleted
			if len(ranked) > 0 {
				session.Winner = ranked[0].UserID
			}
			session.EndedAt = &now

			if err := s.battleRepo.SaveStateTx(ctx, tx, session); err != nil {
				return err
			}

			result = buildResult(session)
			return nil
		})
	})
	if err != nil {
		log.Error().Err(err).Str("battle_id", battleID).Msg("Failed to end battle")
		return nil, err
	}

	if !alreadyCompleted {
		log.Info().
			Str("battle_id", battleID).
			Str("winner", result.Winner).
			Int("participants", len(result.Participants)).
			Msg("Battle ended")
		s.rollupStats(ctx, appID, result)
	}

	return result, nil
}

// rollupStats folds the finished battle into every participant's
// lifetime stats. Updates run in parallel and stay independent: one
// participant's failure never cancels the others, and no failure
// reaches the battle result already returned to players.
func (s *BattleService) rollupStats(ctx context.Context, appID string, result *model.BattleResult) {
	var g errgroup.Group
	for _, p := range result.Participants {
		g.Go(func() error {
			err := s.statsRepo.ApplyResult(ctx, appID, p.UserID, p.Score, p.UserID == result.Winner)
			if err != nil {
				log.Error().Err(err).
					Str("battle_id", result.BattleID).
					Str("user_id", p.UserID).
					Msg("Battle stats rollup failed")
			}
			return err
		})
	}
	_ = g.Wait()
}

// Subscribe delivers the full session state to onUpdate now and after
// every subsequent change, and nil when the session is gone. The only
// ordering guarantee is that subscribers eventually see the latest
// committed value.
func (s *BattleService) Subscribe(ctx context.Context, appID, battleID string, onUpdate func(*model.BattleSession)) func() {
	deliver := func() {
		session, err := s.battleRepo.Get(ctx, appID, battleID)
		if err != nil {
			if !errors.Is(err, repository.ErrBattleNotFound) {
				log.Error().Err(err).Str("battle_id", battleID).Msg("Battle subscription read failed")
			}
			onUpdate(nil)
			return
		}
		onUpdate(session)
	}

	unsubscribe := s.listener.Subscribe(appID, battleID, deliver)
	deliver()
	return unsubscribe
}

// buildResult shapes a completed session into its ranked result.
func buildResult(session *model.BattleSession) *model.BattleResult {
	ranked := rankParticipants(session)

	endedAt := time.Now().UTC()
	if session.EndedAt != nil {
		endedAt = *session.EndedAt
	}

	return &model.BattleResult{
		BattleID:     session.BattleID,
		PlaceID:      session.PlaceID,
		VenueName:    session.VenueName,
		Winner:       session.Winner,
		Participants: ranked,
		Duration:     endedAt.Sub(session.StartedAt),
		StartedAt:    session.StartedAt,
		EndedAt:      endedAt,
	}
}

// rankParticipants orders the scoreboard: score descending, ties broken
// by position in the fixed participant list, then user id. The
// tie-break is deterministic by design.
func rankParticipants(session *model.BattleSession) []model.ParticipantResult {
	position := make(map[string]int, len(session.Participants))
	names := make(map[string]string, len(session.Participants))
	for i, p := range session.Participants {
		position[p.UserID] = i
		names[p.UserID] = p.Username
	}

	entries := make([]model.ParticipantResult, 0, len(session.Scores))
	for userID, score := range session.Scores {
		entries = append(entries, model.ParticipantResult{
			UserID:   userID,
			Username: names[userID],
			Score:    score.Score,
			Drinks:   score.Drinks,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		pi, pj := position[entries[i].UserID], position[entries[j].UserID]
		if pi != pj {
			return pi < pj
		}
		return entries[i].UserID < entries[j].UserID
	})

	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}
