package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"github.com/vytor/chessduel/internal/errors"
	"github.com/vytor/chessduel/internal/models"
	"github.com/vytor/chessduel/internal/repository"
	"github.com/vytor/chessduel/internal/repository/memory"
	"github.com/vytor/chessduel/internal/repository/sqlstore"
	"github.com/vytor/chessduel/internal/rules"
	"github.com/vytor/chessduel/internal/testutil"
	"github.com/vytor/chessduel/internal/testutil/mocks"
)

var foolsMate = [][2]string{{"f2", "f3"}, {"e7", "e5"}, {"g2", "g4"}, {"d8", "h4"}}

type MatchServiceSuite struct {
	suite.Suite
	newStore func(t *testing.T) repository.Store

	store  repository.Store
	ledger LedgerService
	svc    *matchService
	clock  time.Time
	seq    int
}

func (s *MatchServiceSuite) SetupTest() {
	s.store = s.newStore(s.T())
	roster := testutil.NewRoster(s.T())
	s.ledger = NewLedgerService(s.store, roster, 5)
	s.svc = NewMatchService(s.store, rules.NewChessEngine(), roster, s.ledger).(*matchService)

	s.clock = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	s.svc.now = func() time.Time {
		s.clock = s.clock.Add(time.Second)
		return s.clock
	}
	s.seq = 0
	s.svc.newID = func() string {
		s.seq++
		return fmt.Sprintf("match-%d", s.seq)
	}
}

func (s *MatchServiceSuite) TearDownTest() {
	testutil.MustClose(s.T(), s.store)
}

func (s *MatchServiceSuite) requireCode(err error, code string, status int) {
	s.T().Helper()
	appErr, ok := errors.As(err)
	s.Require().True(ok, "expected AppError, got %v", err)
	s.Assert().Equal(code, appErr.Code)
	s.Assert().Equal(status, appErr.Status)
}

func (s *MatchServiceSuite) play(matchID string, line [][2]string) *models.Match {
	var m *models.Match
	for i, mv := range line {
		player := testutil.Grandpa
		if i%2 == 1 {
			player = testutil.Jackson
		}
		var err error
		m, err = s.svc.ApplyMove(context.Background(), matchID, player, mv[0], mv[1])
		s.Require().NoError(err, "move %d %s%s", i, mv[0], mv[1])
	}
	return m
}

func (s *MatchServiceSuite) TestCreateMatch() {
	ctx := context.Background()

	m, err := s.svc.CreateMatch(ctx, testutil.Grandpa, "white")
	s.Require().NoError(err)
	s.Assert().Equal("match-1", m.ID)
	s.Assert().Equal(testutil.Grandpa, m.WhiteIdentityID)
	s.Assert().Equal(testutil.Jackson, m.BlackIdentityID)
	s.Assert().Equal(models.StatusOngoing, m.Status)
	s.Assert().Equal(models.White, m.SideToMove)
	s.Assert().Equal(rules.NewChessEngine().StartingPosition(), m.Position)
	s.Assert().Equal(int64(1), m.Version)
	s.Assert().Empty(m.Moves)
}

func (s *MatchServiceSuite) TestCreateMatch_Sides() {
	ctx := context.Background()

	m, err := s.svc.CreateMatch(ctx, testutil.Grandpa, "black")
	s.Require().NoError(err)
	s.Assert().Equal(testutil.Jackson, m.WhiteIdentityID)
	s.Assert().Equal(testutil.Grandpa, m.BlackIdentityID)
	s.Assert().Equal(models.White, m.SideToMove)

	_, err = s.svc.Resign(ctx, m.ID, testutil.Grandpa)
	s.Require().NoError(err)

	m, err = s.svc.CreateMatch(ctx, testutil.Jackson, "purple")
	s.Require().NoError(err)
	s.Assert().Equal(testutil.Jackson, m.WhiteIdentityID, "invalid side defaults to white")
}

func (s *MatchServiceSuite) TestCreateMatch_ConflictCarriesExistingID() {
	ctx := context.Background()
	first, err := s.svc.CreateMatch(ctx, testutil.Grandpa, "white")
	s.Require().NoError(err)

	for _, requester := range []string{testutil.Grandpa, testutil.Jackson} {
		_, err = s.svc.CreateMatch(ctx, requester, "white")
		s.requireCode(err, errors.ErrCodeConflict, http.StatusConflict)
		appErr, _ := errors.As(err)
		s.Assert().Equal(first.ID, appErr.Details["match_id"])
	}
}

func (s *MatchServiceSuite) TestCreateMatch_UnknownRequester() {
	_, err := s.svc.CreateMatch(context.Background(), "mallory", "white")
	s.requireCode(err, errors.ErrCodeUnauthorized, http.StatusUnauthorized)
}

// TestCreateMatch_Concurrent checks that concurrent creates from both identities leave a
// single ongoing match.
func (s *MatchServiceSuite) TestCreateMatch_Concurrent() {
	s.svc.newID = uuid.NewString
	s.svc.now = time.Now

	const workers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		requester := testutil.Grandpa
		if i%2 == 1 {
			requester = testutil.Jackson
		}
		wg.Add(1)
		go func(requester string, i int) {
			defer wg.Done()
			_, err := s.svc.CreateMatch(context.Background(), requester, "white")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				created++
			} else if errors.HasCode(err, errors.ErrCodeConflict) {
				conflicts++
			}
		}(requester, i)
	}
	wg.Wait()

	s.Assert().Equal(1, created)
	s.Assert().Equal(workers-1, conflicts)
}

func (s *MatchServiceSuite) TestGetActiveMatch() {
	ctx := context.Background()

	m, err := s.svc.GetActiveMatch(ctx, testutil.Grandpa)
	s.Require().NoError(err)
	s.Assert().Nil(m)

	created, err := s.svc.CreateMatch(ctx, testutil.Grandpa, "white")
	s.Require().NoError(err)
	s.play(created.ID, [][2]string{{"e2", "e4"}})

	for _, id := range []string{testutil.Grandpa, testutil.Jackson} {
		m, err = s.svc.GetActiveMatch(ctx, id)
		s.Require().NoError(err)
		s.Require().NotNil(m)
		s.Assert().Equal(created.ID, m.ID)
		s.Assert().Len(m.Moves, 1)
	}

	m, err = s.svc.GetActiveMatch(ctx, "mallory")
	s.Require().NoError(err)
	s.Assert().Nil(m)
}

func (s *MatchServiceSuite) TestGetMatch() {
	ctx := context.Background()
	created, err := s.svc.CreateMatch(ctx, testutil.Grandpa, "white")
	s.Require().NoError(err)

	m, err := s.svc.GetMatch(ctx, created.ID, testutil.Jackson)
	s.Require().NoError(err)
	s.Assert().Equal(created.ID, m.ID)

	_, err = s.svc.GetMatch(ctx, created.ID, "mallory")
	s.requireCode(err, errors.ErrCodeForbidden, http.StatusForbidden)

	_, err = s.svc.GetMatch(ctx, "nope", testutil.Grandpa)
	s.requireCode(err, errors.ErrCodeNotFound, http.StatusNotFound)
}

func (s *MatchServiceSuite) TestApplyMove() {
	ctx := context.Background()
	created, err := s.svc.CreateMatch(ctx, testutil.Grandpa, "white")
	s.Require().NoError(err)

	m, err := s.svc.ApplyMove(ctx, created.ID, testutil.Grandpa, "E2", " e4")
	s.Require().NoError(err)
	s.Assert().Equal(models.Black, m.SideToMove)
	s.Assert().Equal(int64(2), m.Version)
	s.Require().Len(m.Moves, 1)
	s.Assert().Equal(int64(1), m.Moves[0].SequenceNumber)
	s.Assert().Equal("e4", m.Moves[0].Notation)
	s.Assert().Equal("e2", m.Moves[0].FromSquare)
	s.Assert().True(m.UpdatedAt.After(created.UpdatedAt))

	m, err = s.svc.ApplyMove(ctx, created.ID, testutil.Jackson, "c7", "c5")
	s.Require().NoError(err)
	s.Require().Len(m.Moves, 2)
	s.Assert().Equal(int64(2), m.Moves[1].SequenceNumber)
	s.Assert().Equal(models.White, m.SideToMove)
}

// TestApplyMove_TurnOwnership checks that only the side to move may play and that a
// rejected move leaves the match untouched.
func (s *MatchServiceSuite) TestApplyMove_TurnOwnership() {
	ctx := context.Background()
	created, err := s.svc.CreateMatch(ctx, testutil.Jackson, "black")
	s.Require().NoError(err)
	s.Require().Equal(testutil.Grandpa, created.WhiteIdentityID)

	_, err = s.svc.ApplyMove(ctx, created.ID, testutil.Jackson, "e2", "e4")
	s.requireCode(err, errors.ErrCodeNotYourTurn, http.StatusForbidden)

	_, err = s.svc.ApplyMove(ctx, created.ID, testutil.Jackson, "e7", "e5")
	s.requireCode(err, errors.ErrCodeNotYourTurn, http.StatusForbidden)

	unchanged, err := s.svc.GetMatch(ctx, created.ID, testutil.Grandpa)
	s.Require().NoError(err)
	s.Assert().Equal(created.Position, unchanged.Position)
	s.Assert().Equal(int64(1), unchanged.Version)
	s.Assert().Empty(unchanged.Moves)

	_, err = s.svc.ApplyMove(ctx, created.ID, testutil.Grandpa, "e2", "e4")
	s.Require().NoError(err)
}

func (s *MatchServiceSuite) TestApplyMove_Rejections() {
	ctx := context.Background()
	created, err := s.svc.CreateMatch(ctx, testutil.Grandpa, "white")
	s.Require().NoError(err)

	_, err = s.svc.ApplyMove(ctx, created.ID, testutil.Grandpa, "e2", "e5")
	s.requireCode(err, errors.ErrCodeIllegalMove, http.StatusBadRequest)

	_, err = s.svc.ApplyMove(ctx, created.ID, testutil.Grandpa, "x9", "e4")
	s.requireCode(err, errors.ErrCodeValidation, http.StatusBadRequest)

	_, err = s.svc.ApplyMove(ctx, created.ID, "mallory", "e2", "e4")
	s.requireCode(err, errors.ErrCodeForbidden, http.StatusForbidden)

	_, err = s.svc.ApplyMove(ctx, "missing", testutil.Grandpa, "e2", "e4")
	s.requireCode(err, errors.ErrCodeNotFound, http.StatusNotFound)

	m, err := s.svc.GetMatch(ctx, created.ID, testutil.Grandpa)
	s.Require().NoError(err)
	s.Assert().Empty(m.Moves)
	s.Assert().Equal(int64(1), m.Version)
}

// TestFoolsMate plays the shortest mate and checks the result and the ledger.
func (s *MatchServiceSuite) TestFoolsMate() {
	ctx := context.Background()
	created, err := s.svc.CreateMatch(ctx, testutil.Grandpa, "white")
	s.Require().NoError(err)

	m := s.play(created.ID, foolsMate)
	s.Assert().Equal(models.StatusBlackWon, m.Status)
	s.Assert().Equal(testutil.Jackson, m.WinnerIdentityID)
	s.Require().NotNil(m.FinishedAt)
	s.Require().Len(m.Moves, 4)
	s.Assert().Equal("Qh4#", m.Moves[3].Notation)

	stats, err := s.ledger.GetStats(ctx)
	s.Require().NoError(err)
	s.Assert().Equal(models.PlayerStats{IdentityID: testutil.Jackson, Wins: 1}, stats[testutil.Jackson])
	s.Assert().Equal(models.PlayerStats{IdentityID: testutil.Grandpa, Losses: 1}, stats[testutil.Grandpa])

	history, err := s.ledger.GetRecentHistory(ctx, 5)
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Assert().Equal(created.ID, history[0].MatchID)

	// finished matches are frozen
	_, err = s.svc.ApplyMove(ctx, created.ID, testutil.Grandpa, "e2", "e4")
	s.requireCode(err, errors.ErrCodeFinished, http.StatusConflict)
	_, err = s.svc.Resign(ctx, created.ID, testutil.Grandpa)
	s.requireCode(err, errors.ErrCodeFinished, http.StatusConflict)

	// recording the same result again must not double count
	err = s.ledger.RecordResult(ctx, m)
	s.requireCode(err, errors.ErrCodeConflict, http.StatusConflict)
	stats, err = s.ledger.GetStats(ctx)
	s.Require().NoError(err)
	s.Assert().Equal(1, stats[testutil.Jackson].Wins)

	active, err := s.svc.GetActiveMatch(ctx, testutil.Grandpa)
	s.Require().NoError(err)
	s.Assert().Nil(active)
}

func (s *MatchServiceSuite) TestResign() {
	ctx := context.Background()
	created, err := s.svc.CreateMatch(ctx, testutil.Grandpa, "white")
	s.Require().NoError(err)
	s.play(created.ID, [][2]string{{"d2", "d4"}})

	_, err = s.svc.Resign(ctx, created.ID, "mallory")
	s.requireCode(err, errors.ErrCodeForbidden, http.StatusForbidden)

	m, err := s.svc.Resign(ctx, created.ID, testutil.Grandpa)
	s.Require().NoError(err)
	s.Assert().Equal(models.StatusBlackWon, m.Status)
	s.Assert().Equal(testutil.Jackson, m.WinnerIdentityID)
	s.Assert().Len(m.Moves, 1)

	stats, err := s.ledger.GetStats(ctx)
	s.Require().NoError(err)
	s.Assert().Equal(1, stats[testutil.Jackson].Wins)
	s.Assert().Equal(1, stats[testutil.Grandpa].Losses)

	next, err := s.svc.CreateMatch(ctx, testutil.Jackson, "white")
	s.Require().NoError(err)
	s.Assert().NotEqual(created.ID, next.ID)
}

// TestApplyMove_ConcurrentSamePriorState holds both movers after they have read the match
// and its moves, so both evaluate version 1 and their writes race on the same prior state.
func (s *MatchServiceSuite) TestApplyMove_ConcurrentSamePriorState() {
	ctx := context.Background()
	created, err := s.svc.CreateMatch(ctx, testutil.Grandpa, "white")
	s.Require().NoError(err)

	barrier := &hookStore{Store: s.store, matchID: created.ID}
	barrier.wg.Add(2)
	barrier.afterMoves = func(call int) {
		if call <= 2 {
			barrier.wg.Done()
			barrier.wg.Wait()
		}
	}
	s.svc.store = barrier

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i, mv := range [][2]string{{"e2", "e4"}, {"d2", "d4"}} {
		wg.Add(1)
		go func(i int, from, to string) {
			defer wg.Done()
			_, errs[i] = s.svc.ApplyMove(context.Background(), created.ID, testutil.Grandpa, from, to)
		}(i, mv[0], mv[1])
	}
	wg.Wait()
	s.svc.store = s.store

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.HasCode(err, errors.ErrCodeConflict):
			conflicts++
		default:
			s.Failf("unexpected error", "%v", err)
		}
	}
	s.Assert().Equal(1, ok)
	s.Assert().Equal(1, conflicts)

	m, err := s.svc.GetMatch(ctx, created.ID, testutil.Grandpa)
	s.Require().NoError(err)
	s.Require().Len(m.Moves, 1)
	s.Assert().Equal(int64(1), m.Moves[0].SequenceNumber)
	s.Assert().Equal(int64(2), m.Version)
}

// TestApplyMove_MoveCommittedBetweenReads lets a competing move commit after the mover has
// read the match row but before it reads the move log.
func (s *MatchServiceSuite) TestApplyMove_MoveCommittedBetweenReads() {
	ctx := context.Background()
	created, err := s.svc.CreateMatch(ctx, testutil.Grandpa, "white")
	s.Require().NoError(err)

	competitor := NewMatchService(s.store, rules.NewChessEngine(), testutil.NewRoster(s.T()), s.ledger)
	var competingErr error
	hook := &hookStore{Store: s.store, matchID: created.ID}
	hook.afterGet = func(call int) {
		if call == 1 {
			_, competingErr = competitor.ApplyMove(ctx, created.ID, testutil.Grandpa, "e2", "e4")
		}
	}
	s.svc.store = hook

	_, err = s.svc.ApplyMove(ctx, created.ID, testutil.Grandpa, "d2", "d4")
	s.svc.store = s.store
	s.Require().NoError(competingErr)
	s.requireCode(err, errors.ErrCodeConflict, http.StatusConflict)

	m, err := s.svc.GetMatch(ctx, created.ID, testutil.Grandpa)
	s.Require().NoError(err)
	s.Require().Len(m.Moves, 1)
	s.Assert().Equal("e2e4", m.Moves[0].UCI())
	s.Assert().Equal(int64(1), m.Moves[0].SequenceNumber)
	s.Assert().Equal(int64(2), m.Version)

	// a fresh read sees black to move
	_, err = s.svc.ApplyMove(ctx, created.ID, testutil.Grandpa, "d2", "d4")
	s.requireCode(err, errors.ErrCodeNotYourTurn, http.StatusForbidden)
	m, err = s.svc.ApplyMove(ctx, created.ID, testutil.Jackson, "e7", "e5")
	s.Require().NoError(err)
	s.Assert().Equal(int64(2), m.Moves[1].SequenceNumber)
}

// hookStore runs callbacks after reads of matchID. Callbacks get the 1-based call count.
type hookStore struct {
	repository.Store
	matchID    string
	wg         sync.WaitGroup
	gets       atomic.Int32
	moves      atomic.Int32
	afterGet   func(call int)
	afterMoves func(call int)
}

func (h *hookStore) Matches() repository.MatchRepository {
	return &hookMatches{MatchRepository: h.Store.Matches(), h: h}
}

type hookMatches struct {
	repository.MatchRepository
	h *hookStore
}

func (m *hookMatches) Get(ctx context.Context, id string) (*models.Match, error) {
	match, err := m.MatchRepository.Get(ctx, id)
	if id == m.h.matchID && m.h.afterGet != nil {
		m.h.afterGet(int(m.h.gets.Add(1)))
	}
	return match, err
}

func (m *hookMatches) Moves(ctx context.Context, id string) ([]models.MoveRecord, error) {
	moves, err := m.MatchRepository.Moves(ctx, id)
	if id == m.h.matchID && m.h.afterMoves != nil {
		m.h.afterMoves(int(m.h.moves.Add(1)))
	}
	return moves, err
}

func TestMatchService_Memory(t *testing.T) {
	suite.Run(t, &MatchServiceSuite{newStore: func(t *testing.T) repository.Store { return memory.New() }})
}

func TestMatchService_SQLite(t *testing.T) {
	suite.Run(t, &MatchServiceSuite{newStore: func(t *testing.T) repository.Store {
		return sqlstore.New(testutil.NewTestDB(t))
	}})
}

func TestMatchService_StoreFailures(t *testing.T) {
	ctx := context.Background()
	boom := stderrors.New("disk on fire")

	store := mocks.NewMockStore()
	engine := &mocks.MockEngine{}
	svc := NewMatchService(store, engine, testutil.NewRoster(t), NewLedgerService(store, testutil.NewRoster(t), 5))

	store.MatchRepo.On("Ongoing", mock.Anything).Return(nil, boom).Once()
	_, err := svc.CreateMatch(ctx, testutil.Grandpa, "white")
	appErr, ok := errors.As(err)
	if ok {
		ok = appErr.Code == errors.ErrCodeInternal
	}
	if !ok {
		t.Fatalf("expected internal error, got %v", err)
	}

	ongoing := &models.Match{
		ID: "m1", WhiteIdentityID: testutil.Grandpa, BlackIdentityID: testutil.Jackson,
		Position: "pos", Status: models.StatusOngoing, Version: 1,
	}
	store.MatchRepo.On("Get", mock.Anything, "m1").Return(ongoing, nil)
	store.MatchRepo.On("Moves", mock.Anything, "m1").Return([]models.MoveRecord{}, nil)
	engine.On("SideToMove", "pos").Return(models.White, nil)
	engine.On("Apply", mock.Anything, "e2", "e4").Return(nil, stderrors.New("engine crashed")).Once()

	_, err = svc.ApplyMove(ctx, "m1", testutil.Grandpa, "e2", "e4")
	if !errors.HasCode(err, errors.ErrCodeInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}

	engine.On("Apply", mock.Anything, "e2", "e4").Return(&rules.Result{Position: "pos2", SideToMove: models.Black, Notation: "e4"}, nil).Once()
	store.MatchRepo.On("UpdateIfVersion", mock.Anything, mock.Anything, int64(1)).Return(repository.ErrConflict).Once()
	_, err = svc.ApplyMove(ctx, "m1", testutil.Grandpa, "e2", "e4")
	if !errors.HasCode(err, errors.ErrCodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	// a move log that disagrees with an unchanged version is corruption, not a race
	corrupt := &models.Match{
		ID: "m2", WhiteIdentityID: testutil.Grandpa, BlackIdentityID: testutil.Jackson,
		Position: "pos", Status: models.StatusOngoing, Version: 3,
	}
	store.MatchRepo.On("Get", mock.Anything, "m2").Return(corrupt, nil).Twice()
	store.MatchRepo.On("Moves", mock.Anything, "m2").Return([]models.MoveRecord{}, nil).Once()
	_, err = svc.ApplyMove(ctx, "m2", testutil.Grandpa, "e2", "e4")
	if !errors.HasCode(err, errors.ErrCodeInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}

	// the engine rejecting history as stale maps to a conflict once the version has moved
	moved := *ongoing
	moved.ID, moved.Version = "m3", 2
	stale := moved
	stale.Version = 1
	store.MatchRepo.On("Get", mock.Anything, "m3").Return(&stale, nil).Once()
	store.MatchRepo.On("Moves", mock.Anything, "m3").Return([]models.MoveRecord{}, nil).Once()
	engine.On("Apply", mock.Anything, "e2", "e4").Return(nil, fmt.Errorf("%w: replay", rules.ErrStateMismatch)).Once()
	store.MatchRepo.On("Get", mock.Anything, "m3").Return(&moved, nil).Once()
	_, err = svc.ApplyMove(ctx, "m3", testutil.Grandpa, "e2", "e4")
	if !errors.HasCode(err, errors.ErrCodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	store.MatchRepo.AssertExpectations(t)
	engine.AssertExpectations(t)
}
