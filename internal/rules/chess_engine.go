package rules

import (
	"fmt"
	"strings"

	"github.com/corentings/chess/v2"
	"github.com/vytor/chessduel/internal/models"
)

// ChessEngine implements Engine with github.com/corentings/chess.
type ChessEngine struct{}

// NewChessEngine returns the default engine.
func NewChessEngine() *ChessEngine {
	return &ChessEngine{}
}

// StartingPosition returns the FEN of the standard initial position.
func (e *ChessEngine) StartingPosition() string {
	return chess.NewGame().FEN()
}

// SideToMove reports whose turn it is in position.
func (e *ChessEngine) SideToMove(position string) (models.Side, error) {
	game, err := loadFEN(position)
	if err != nil {
		return "", err
	}
	return sideFromColor(game.Position().Turn()), nil
}

// Apply plays from-to on the state. A pawn reaching the last rank is promoted to a queen.
func (e *ChessEngine) Apply(state State, from, to string) (*Result, error) {
	game, err := loadState(state)
	if err != nil {
		return nil, err
	}

	fromSq, err := parseSquare(from)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}
	toSq, err := parseSquare(to)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}

	pos := game.Position()
	uci := from + to
	if needsPromotion(pos, fromSq, toSq) {
		uci += "q"
	}

	move, err := chess.UCINotation{}.Decode(pos, uci)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrIllegalMove, uci, err)
	}
	san := chess.AlgebraicNotation{}.Encode(pos, move)
	if err := game.Move(move, nil); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrIllegalMove, uci, err)
	}

	return &Result{
		Position:   game.FEN(),
		SideToMove: sideFromColor(game.Position().Turn()),
		Notation:   san,
		UCI:        MoveToUCI(move),
		Promotion:  promotionSuffix(move.Promo()),
		Terminal:   terminalKind(game),
	}, nil
}

func loadFEN(position string) (*chess.Game, error) {
	opt, err := chess.FEN(position)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPosition, err)
	}
	return chess.NewGame(opt), nil
}

// loadState replays the move history from the initial position when available so that
// repetition counts survive between requests. The replay must land on state.FEN.
func loadState(state State) (*chess.Game, error) {
	if len(state.History) == 0 {
		return loadFEN(state.FEN)
	}
	game, err := replay(state.History)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStateMismatch, err)
	}
	if got := game.FEN(); got != state.FEN {
		return nil, fmt.Errorf("%w: %d moves lead to %q, stored %q", ErrStateMismatch, len(state.History), got, state.FEN)
	}
	return game, nil
}

func replay(history []string) (*chess.Game, error) {
	game := chess.NewGame()
	notation := chess.UCINotation{}
	for _, mv := range history {
		uci := strings.ToLower(strings.TrimSpace(mv))
		move, err := notation.Decode(game.Position(), uci)
		if err != nil {
			return nil, fmt.Errorf("decode move %s: %w", mv, err)
		}
		if MoveToUCI(move) != uci {
			return nil, fmt.Errorf("move %s decodes as %s", mv, MoveToUCI(move))
		}
		if err := game.Move(move, nil); err != nil {
			return nil, fmt.Errorf("apply move %s: %w", mv, err)
		}
	}
	return game, nil
}

func needsPromotion(pos *chess.Position, from, to chess.Square) bool {
	piece := pos.Board().Piece(from)
	if piece.Type() != chess.Pawn {
		return false
	}
	switch piece.Color() {
	case chess.White:
		return to.Rank() == chess.Rank8
	case chess.Black:
		return to.Rank() == chess.Rank1
	default:
		return false
	}
}

// terminalKind reports how the game ended. Threefold repetition and the fifty-move rule
// end the game as soon as they become claimable.
func terminalKind(game *chess.Game) TerminalKind {
	if game.Outcome() == chess.NoOutcome {
		for _, method := range game.EligibleDraws() {
			if method == chess.ThreefoldRepetition || method == chess.FiftyMoveRule {
				if err := game.Draw(method); err == nil {
					break
				}
			}
		}
	}
	if game.Outcome() == chess.NoOutcome {
		return NotTerminal
	}

	switch game.Method() {
	case chess.Checkmate:
		return Checkmate
	case chess.Stalemate:
		return Stalemate
	case chess.InsufficientMaterial:
		return InsufficientMaterial
	case chess.ThreefoldRepetition, chess.FivefoldRepetition:
		return Repetition
	case chess.FiftyMoveRule, chess.SeventyFiveMoveRule:
		return MoveLimit
	default:
		return Stalemate
	}
}
