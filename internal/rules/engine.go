// Package rules wraps the chess move-generation library behind the small surface the
// match orchestrator needs: starting position, side to move, move application and
// terminal-state detection.
package rules

import (
	"errors"

	"github.com/vytor/chessduel/internal/models"
)

var (
	// ErrIllegalMove is returned when the move is not legal in the given position.
	ErrIllegalMove = errors.New("illegal move")
	// ErrInvalidPosition is returned when a stored position cannot be loaded.
	ErrInvalidPosition = errors.New("invalid position")
	// ErrStateMismatch is returned when the move history does not lead to the stored position.
	ErrStateMismatch = errors.New("move history does not match position")
)

// TerminalKind describes why a game ended. The empty value means the game goes on.
type TerminalKind string

const (
	NotTerminal          TerminalKind = ""
	Checkmate            TerminalKind = "checkmate"
	Stalemate            TerminalKind = "stalemate"
	InsufficientMaterial TerminalKind = "insufficient_material"
	Repetition           TerminalKind = "repetition"
	MoveLimit            TerminalKind = "move_limit"
)

// State is the input to Apply. History, when present, is the full move list from the
// standard starting position in long algebraic form; it lets the engine see repetitions
// that a bare FEN cannot encode.
type State struct {
	FEN     string
	History []string
}

// Result is the outcome of applying one legal move.
type Result struct {
	Position   string
	SideToMove models.Side
	Notation   string
	UCI        string
	Promotion  string
	Terminal   TerminalKind
}

// Engine validates and applies moves.
type Engine interface {
	StartingPosition() string
	SideToMove(position string) (models.Side, error)
	Apply(state State, from, to string) (*Result, error)
}

// WinnerFromTerminalState maps a finished position to a match status and winning side.
// The winner of a checkmate is always the side that just moved; every other terminal
// kind is a draw.
func WinnerFromTerminalState(sideJustMoved models.Side, kind TerminalKind) (models.MatchStatus, models.Side) {
	switch kind {
	case NotTerminal:
		return models.StatusOngoing, ""
	case Checkmate:
		if sideJustMoved == models.White {
			return models.StatusWhiteWon, models.White
		}
		return models.StatusBlackWon, models.Black
	default:
		return models.StatusDraw, ""
	}
}

// WinnerFromResignation maps a resignation by resigning to a match status and winning side.
func WinnerFromResignation(resigning models.Side) (models.MatchStatus, models.Side) {
	winner := resigning.Opposite()
	if winner == models.White {
		return models.StatusWhiteWon, models.White
	}
	return models.StatusBlackWon, models.Black
}
