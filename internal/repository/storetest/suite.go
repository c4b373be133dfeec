// Package storetest holds the behavior every repository.Store backend must share. Backend
// packages run it from their own tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/vytor/chessduel/internal/models"
	"github.com/vytor/chessduel/internal/repository"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

type Suite struct {
	suite.Suite
	// NewStore returns an empty store. It is called before every test.
	NewStore func(t *testing.T) repository.Store

	store repository.Store
	now   time.Time
}

func (s *Suite) SetupTest() {
	s.store = s.NewStore(s.T())
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (s *Suite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

func (s *Suite) newMatch(id string) *models.Match {
	return &models.Match{
		ID:              id,
		WhiteIdentityID: "grandpa",
		BlackIdentityID: "jackson",
		Position:        startFEN,
		SideToMove:      models.White,
		Status:          models.StatusOngoing,
		Version:         1,
		CreatedAt:       s.now,
		UpdatedAt:       s.now,
	}
}

func (s *Suite) finish(m *models.Match, status models.MatchStatus, winner string) {
	at := s.now.Add(time.Hour)
	m.Status = status
	m.WinnerIdentityID = winner
	m.UpdatedAt = at
	m.FinishedAt = &at
	s.Require().NoError(s.store.Matches().UpdateIfVersion(context.Background(), m, m.Version))
}

func (s *Suite) TestPing() {
	s.Require().NoError(s.store.Ping(context.Background()))
}

func (s *Suite) TestCreateAndGet() {
	ctx := context.Background()
	m := s.newMatch("m1")
	s.Require().NoError(s.store.Matches().Create(ctx, m))

	got, err := s.store.Matches().Get(ctx, "m1")
	s.Require().NoError(err)
	s.Assert().Equal("grandpa", got.WhiteIdentityID)
	s.Assert().Equal("jackson", got.BlackIdentityID)
	s.Assert().Equal(startFEN, got.Position)
	s.Assert().Equal(models.White, got.SideToMove)
	s.Assert().Equal(models.StatusOngoing, got.Status)
	s.Assert().Equal(int64(1), got.Version)
	s.Assert().True(s.now.Equal(got.CreatedAt))
	s.Assert().Nil(got.FinishedAt)

	ongoing, err := s.store.Matches().Ongoing(ctx)
	s.Require().NoError(err)
	s.Require().NotNil(ongoing)
	s.Assert().Equal("m1", ongoing.ID)
}

func (s *Suite) TestGet_NotFound() {
	_, err := s.store.Matches().Get(context.Background(), "missing")
	s.Assert().ErrorIs(err, repository.ErrNotFound)
}

func (s *Suite) TestOngoing_None() {
	m, err := s.store.Matches().Ongoing(context.Background())
	s.Require().NoError(err)
	s.Assert().Nil(m)
}

func (s *Suite) TestCreate_SecondOngoingConflicts() {
	ctx := context.Background()
	s.Require().NoError(s.store.Matches().Create(ctx, s.newMatch("m1")))

	err := s.store.Matches().Create(ctx, s.newMatch("m2"))
	s.Assert().ErrorIs(err, repository.ErrConflict)

	_, err = s.store.Matches().Get(ctx, "m2")
	s.Assert().ErrorIs(err, repository.ErrNotFound)
}

func (s *Suite) TestCreate_AfterFinish() {
	ctx := context.Background()
	first := s.newMatch("m1")
	s.Require().NoError(s.store.Matches().Create(ctx, first))
	s.finish(first, models.StatusDraw, "")

	ongoing, err := s.store.Matches().Ongoing(ctx)
	s.Require().NoError(err)
	s.Assert().Nil(ongoing)

	s.Require().NoError(s.store.Matches().Create(ctx, s.newMatch("m2")))

	archived, err := s.store.Matches().Get(ctx, "m1")
	s.Require().NoError(err)
	s.Assert().Equal(models.StatusDraw, archived.Status)
	s.Require().NotNil(archived.FinishedAt)
}

func (s *Suite) TestConcurrentCreate() {
	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m := s.newMatch(fmt.Sprintf("m%d", i))
			err := s.store.Atomic(context.Background(), func(ctx context.Context) error {
				return s.store.Matches().Create(ctx, m)
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, repository.ErrConflict):
				conflicts++
			}
		}(i)
	}
	wg.Wait()

	s.Assert().Equal(1, successes)
	s.Assert().Equal(workers-1, conflicts)
}

func (s *Suite) TestUpdateIfVersion() {
	ctx := context.Background()
	m := s.newMatch("m1")
	s.Require().NoError(s.store.Matches().Create(ctx, m))

	m.Position = "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1"
	m.SideToMove = models.Black
	s.Require().NoError(s.store.Matches().UpdateIfVersion(ctx, m, 1))
	s.Assert().Equal(int64(2), m.Version)

	got, err := s.store.Matches().Get(ctx, "m1")
	s.Require().NoError(err)
	s.Assert().Equal(int64(2), got.Version)
	s.Assert().Equal(models.Black, got.SideToMove)

	stale := s.newMatch("m1")
	err = s.store.Matches().UpdateIfVersion(ctx, stale, 1)
	s.Assert().ErrorIs(err, repository.ErrConflict)

	got, err = s.store.Matches().Get(ctx, "m1")
	s.Require().NoError(err)
	s.Assert().Equal(models.Black, got.SideToMove)
}

func (s *Suite) TestUpdateIfVersion_NotFound() {
	err := s.store.Matches().UpdateIfVersion(context.Background(), s.newMatch("missing"), 1)
	s.Assert().ErrorIs(err, repository.ErrNotFound)
}

func (s *Suite) TestAppendMove_AssignsSequence() {
	ctx := context.Background()
	s.Require().NoError(s.store.Matches().Create(ctx, s.newMatch("m1")))

	for i, uci := range []string{"e2e4", "e7e5", "g1f3"} {
		mv := &models.MoveRecord{
			MatchID:    "m1",
			Notation:   uci,
			FromSquare: uci[:2],
			ToSquare:   uci[2:],
			RecordedAt: s.now,
		}
		s.Require().NoError(s.store.Matches().AppendMove(ctx, mv))
		s.Assert().Equal(int64(i+1), mv.SequenceNumber)
	}

	moves, err := s.store.Matches().Moves(ctx, "m1")
	s.Require().NoError(err)
	s.Require().Len(moves, 3)
	for i, mv := range moves {
		s.Assert().Equal(int64(i+1), mv.SequenceNumber)
	}
	s.Assert().Equal("g1", moves[2].FromSquare)
	s.Assert().Equal("f3", moves[2].ToSquare)
}

func (s *Suite) TestMoves_Empty() {
	ctx := context.Background()
	s.Require().NoError(s.store.Matches().Create(ctx, s.newMatch("m1")))

	moves, err := s.store.Matches().Moves(ctx, "m1")
	s.Require().NoError(err)
	s.Assert().Empty(moves)
}

// TestConcurrentTransitions races writers that all read version 1. Exactly one may commit
// and the move log must end up with a single record.
func (s *Suite) TestConcurrentTransitions() {
	ctx := context.Background()
	s.Require().NoError(s.store.Matches().Create(ctx, s.newMatch("m1")))

	const workers = 6
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m := s.newMatch("m1")
			m.SideToMove = models.Black
			err := s.store.Atomic(context.Background(), func(ctx context.Context) error {
				if err := s.store.Matches().UpdateIfVersion(ctx, m, 1); err != nil {
					return err
				}
				return s.store.Matches().AppendMove(ctx, &models.MoveRecord{
					MatchID: "m1", Notation: "e4", FromSquare: "e2", ToSquare: "e4", RecordedAt: s.now,
				})
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, repository.ErrConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	s.Assert().Equal(1, successes)
	s.Assert().Equal(workers-1, conflicts)

	moves, err := s.store.Matches().Moves(ctx, "m1")
	s.Require().NoError(err)
	s.Require().Len(moves, 1)
	s.Assert().Equal(int64(1), moves[0].SequenceNumber)

	got, err := s.store.Matches().Get(ctx, "m1")
	s.Require().NoError(err)
	s.Assert().Equal(int64(2), got.Version)
}

func (s *Suite) TestAtomic_RollsBack() {
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.store.Atomic(ctx, func(ctx context.Context) error {
		if err := s.store.Matches().Create(ctx, s.newMatch("m1")); err != nil {
			return err
		}
		if err := s.store.Ledger().IncrementStats(ctx, "grandpa", models.StatsDelta{Wins: 1}); err != nil {
			return err
		}
		return boom
	})
	s.Require().ErrorIs(err, boom)

	_, err = s.store.Matches().Get(ctx, "m1")
	s.Assert().ErrorIs(err, repository.ErrNotFound)
	ongoing, err := s.store.Matches().Ongoing(ctx)
	s.Require().NoError(err)
	s.Assert().Nil(ongoing)
	stats, err := s.store.Ledger().Stats(ctx)
	s.Require().NoError(err)
	s.Assert().Empty(stats)
}

func (s *Suite) TestAtomic_Nested() {
	ctx := context.Background()
	err := s.store.Atomic(ctx, func(ctx context.Context) error {
		return s.store.Atomic(ctx, func(ctx context.Context) error {
			return s.store.Matches().Create(ctx, s.newMatch("m1"))
		})
	})
	s.Require().NoError(err)

	_, err = s.store.Matches().Get(ctx, "m1")
	s.Assert().NoError(err)
}

func (s *Suite) TestInsertHistory_Duplicate() {
	ctx := context.Background()
	entry := models.HistoryEntry{
		MatchID: "m1", WhiteIdentityID: "grandpa", BlackIdentityID: "jackson",
		WinnerIdentityID: "jackson", Status: models.StatusBlackWon,
		CreatedAt: s.now, FinishedAt: s.now.Add(time.Minute),
	}
	s.Require().NoError(s.store.Ledger().InsertHistory(ctx, entry))
	s.Assert().ErrorIs(s.store.Ledger().InsertHistory(ctx, entry), repository.ErrDuplicate)

	history, err := s.store.Ledger().RecentHistory(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Assert().Equal("jackson", history[0].WinnerIdentityID)
	s.Assert().Equal(models.StatusBlackWon, history[0].Status)
}

func (s *Suite) TestIncrementStats() {
	ctx := context.Background()
	s.Require().NoError(s.store.Ledger().IncrementStats(ctx, "grandpa", models.StatsDelta{Wins: 1}))
	s.Require().NoError(s.store.Ledger().IncrementStats(ctx, "jackson", models.StatsDelta{Losses: 1}))
	s.Require().NoError(s.store.Ledger().IncrementStats(ctx, "grandpa", models.StatsDelta{Draws: 1}))

	stats, err := s.store.Ledger().Stats(ctx)
	s.Require().NoError(err)
	s.Require().Len(stats, 2)
	s.Assert().Equal(models.PlayerStats{IdentityID: "grandpa", Wins: 1, Draws: 1}, stats[0])
	s.Assert().Equal(models.PlayerStats{IdentityID: "jackson", Losses: 1}, stats[1])
}

func (s *Suite) TestRecentHistory_OrderAndLimit() {
	ctx := context.Background()
	for i := 0; i < 7; i++ {
		s.Require().NoError(s.store.Ledger().InsertHistory(ctx, models.HistoryEntry{
			MatchID:         fmt.Sprintf("m%d", i),
			WhiteIdentityID: "grandpa",
			BlackIdentityID: "jackson",
			Status:          models.StatusDraw,
			CreatedAt:       s.now,
			FinishedAt:      s.now.Add(time.Duration(i) * time.Minute),
		}))
	}

	history, err := s.store.Ledger().RecentHistory(ctx, 5)
	s.Require().NoError(err)
	s.Require().Len(history, 5)
	s.Assert().Equal("m6", history[0].MatchID)
	s.Assert().Equal("m2", history[4].MatchID)
	for i := 1; i < len(history); i++ {
		s.Assert().True(history[i-1].FinishedAt.After(history[i].FinishedAt))
	}
}
