package rules

import (
	"errors"
	"testing"

	"github.com/corentings/chess/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vytor/chessduel/internal/models"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func TestWinnerFromTerminalState(t *testing.T) {
	tests := []struct {
		name       string
		justMoved  models.Side
		kind       TerminalKind
		wantStatus models.MatchStatus
		wantWinner models.Side
	}{
		{"white mates", models.White, Checkmate, models.StatusWhiteWon, models.White},
		{"black mates", models.Black, Checkmate, models.StatusBlackWon, models.Black},
		{"stalemate", models.White, Stalemate, models.StatusDraw, ""},
		{"insufficient material", models.Black, InsufficientMaterial, models.StatusDraw, ""},
		{"repetition", models.White, Repetition, models.StatusDraw, ""},
		{"move limit", models.Black, MoveLimit, models.StatusDraw, ""},
		{"not terminal", models.White, NotTerminal, models.StatusOngoing, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, winner := WinnerFromTerminalState(tt.justMoved, tt.kind)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantWinner, winner)
		})
	}
}

func TestWinnerFromResignation(t *testing.T) {
	status, winner := WinnerFromResignation(models.White)
	assert.Equal(t, models.StatusBlackWon, status)
	assert.Equal(t, models.Black, winner)

	status, winner = WinnerFromResignation(models.Black)
	assert.Equal(t, models.StatusWhiteWon, status)
	assert.Equal(t, models.White, winner)
}

func TestChessEngine_StartingPosition(t *testing.T) {
	e := NewChessEngine()
	assert.Equal(t, startFEN, e.StartingPosition())

	side, err := e.SideToMove(e.StartingPosition())
	require.NoError(t, err)
	assert.Equal(t, models.White, side)
}

func TestChessEngine_SideToMove_InvalidPosition(t *testing.T) {
	_, err := NewChessEngine().SideToMove("not a fen")
	assert.True(t, errors.Is(err, ErrInvalidPosition))
}

func TestChessEngine_Apply(t *testing.T) {
	e := NewChessEngine()

	res, err := e.Apply(State{FEN: e.StartingPosition()}, "e2", "e4")
	require.NoError(t, err)
	assert.Equal(t, "e4", res.Notation)
	assert.Equal(t, models.Black, res.SideToMove)
	assert.Equal(t, NotTerminal, res.Terminal)
	assert.Empty(t, res.Promotion)
	assert.Equal(t, "e2e4", res.UCI)

	side, err := e.SideToMove(res.Position)
	require.NoError(t, err)
	assert.Equal(t, models.Black, side)
}

func TestChessEngine_Apply_Illegal(t *testing.T) {
	e := NewChessEngine()

	tests := []struct {
		name     string
		from, to string
	}{
		{"pawn three squares", "e2", "e5"},
		{"wrong side", "e7", "e5"},
		{"empty square", "e4", "e5"},
		{"bad square", "z9", "e4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Apply(State{FEN: e.StartingPosition()}, tt.from, tt.to)
			assert.True(t, errors.Is(err, ErrIllegalMove), "got %v", err)
		})
	}
}

func TestChessEngine_FoolsMate(t *testing.T) {
	e := NewChessEngine()
	line := [][2]string{{"f2", "f3"}, {"e7", "e5"}, {"g2", "g4"}, {"d8", "h4"}}

	state := State{FEN: e.StartingPosition()}
	var res *Result
	for _, mv := range line {
		var err error
		res, err = e.Apply(state, mv[0], mv[1])
		require.NoError(t, err)
		state.FEN = res.Position
		state.History = append(state.History, mv[0]+mv[1]+res.Promotion)
	}

	assert.Equal(t, Checkmate, res.Terminal)
	assert.Equal(t, "Qh4#", res.Notation)

	status, winner := WinnerFromTerminalState(models.Black, res.Terminal)
	assert.Equal(t, models.StatusBlackWon, status)
	assert.Equal(t, models.Black, winner)
}

func TestChessEngine_AutoQueen(t *testing.T) {
	e := NewChessEngine()
	// White pawn on g7, kings far apart.
	fen := "8/6P1/8/8/8/8/k7/4K3 w - - 0 1"

	res, err := e.Apply(State{FEN: fen}, "g7", "g8")
	require.NoError(t, err)
	assert.Equal(t, "q", res.Promotion)
	assert.Equal(t, "g7g8q", res.UCI)
	assert.Contains(t, res.Notation, "=Q")
	assert.Equal(t, "6Q1/8/8/8/8/8/k7/4K3 b - - 0 1", res.Position)
}

func TestChessEngine_Stalemate(t *testing.T) {
	e := NewChessEngine()
	// Qc6-b6 leaves the a8 king with no legal move and not in check.
	fen := "k7/8/2Q5/8/8/8/8/4K3 w - - 0 1"

	res, err := e.Apply(State{FEN: fen}, "c6", "b6")
	require.NoError(t, err)
	assert.Equal(t, Stalemate, res.Terminal)

	status, _ := WinnerFromTerminalState(models.White, res.Terminal)
	assert.Equal(t, models.StatusDraw, status)
}

func TestChessEngine_ReplayHistory(t *testing.T) {
	e := NewChessEngine()
	// Knights out and back twice reaches the start position a third time.
	shuffle := []string{"g1f3", "g8f6", "f3g1", "f6g8", "g1f3", "g8f6", "f3g1"}

	state := State{FEN: e.StartingPosition()}
	for _, mv := range shuffle {
		res, err := e.Apply(state, mv[:2], mv[2:])
		require.NoError(t, err)
		require.Equal(t, NotTerminal, res.Terminal, "move %s", mv)
		state.FEN = res.Position
		state.History = append(state.History, mv)
	}

	res, err := e.Apply(state, "f6", "g8")
	require.NoError(t, err)
	assert.Equal(t, Repetition, res.Terminal)
}

func TestChessEngine_HistoryMustMatchPosition(t *testing.T) {
	e := NewChessEngine()
	first, err := e.Apply(State{FEN: e.StartingPosition()}, "e2", "e4")
	require.NoError(t, err)

	tests := []struct {
		name  string
		state State
	}{
		{"history ahead of position", State{FEN: e.StartingPosition(), History: []string{"e2e4"}}},
		{"history behind position", State{FEN: first.Position, History: []string{"e2e4", "e7e5"}}},
		{"unplayable history", State{FEN: first.Position, History: []string{"e2e5"}}},
		{"promotion dropped", State{FEN: first.Position, History: []string{"e2e4q"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Apply(tt.state, "d2", "d4")
			assert.True(t, errors.Is(err, ErrStateMismatch), "got %v", err)
			assert.False(t, errors.Is(err, ErrIllegalMove))
		})
	}

	res, err := e.Apply(State{FEN: first.Position, History: []string{"E2E4 "}}, "e7", "e5")
	require.NoError(t, err)
	assert.Equal(t, "e5", res.Notation)
}

func TestNotationHelpers(t *testing.T) {
	assert.True(t, ValidSquare("a1"))
	assert.True(t, ValidSquare("h8"))
	assert.False(t, ValidSquare("i1"))
	assert.False(t, ValidSquare("a9"))
	assert.False(t, ValidSquare("e"))
	assert.Equal(t, "e4", NormalizeSquare(" E4 "))

	sq, err := parseSquare("e4")
	require.NoError(t, err)
	assert.Equal(t, "e4", squareToString(sq))

	assert.Empty(t, MoveToUCI(nil))
	assert.Equal(t, "q", promotionSuffix(chess.Queen))
	assert.Equal(t, "n", promotionSuffix(chess.Knight))
	assert.Empty(t, promotionSuffix(chess.Pawn))
}
