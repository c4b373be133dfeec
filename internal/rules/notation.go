package rules

import (
	"fmt"
	"strings"

	"github.com/corentings/chess/v2"
	"github.com/vytor/chessduel/internal/models"
)

// ValidSquare reports whether s names a board square such as "e4".
func ValidSquare(s string) bool {
	return len(s) == 2 && s[0] >= 'a' && s[0] <= 'h' && s[1] >= '1' && s[1] <= '8'
}

// NormalizeSquare lower-cases and trims client input.
func NormalizeSquare(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func parseSquare(s string) (chess.Square, error) {
	if !ValidSquare(s) {
		return chess.NoSquare, fmt.Errorf("invalid square %q", s)
	}
	return chess.NewSquare(chess.File(s[0]-'a'), chess.Rank(s[1]-'1')), nil
}

// squareToString converts a Square to algebraic notation (e.g., "e2", "a8")
func squareToString(sq chess.Square) string {
	return fmt.Sprintf("%c%c", 'a'+rune(sq.File()), '1'+rune(sq.Rank()))
}

// MoveToUCI converts a chess Move to UCI format (e.g., "e2e4", "e7e8q")
func MoveToUCI(move *chess.Move) string {
	if move == nil {
		return ""
	}
	return squareToString(move.S1()) + squareToString(move.S2()) + promotionSuffix(move.Promo())
}

func promotionSuffix(p chess.PieceType) string {
	switch p {
	case chess.Queen:
		return "q"
	case chess.Rook:
		return "r"
	case chess.Bishop:
		return "b"
	case chess.Knight:
		return "n"
	default:
		return ""
	}
}

func sideFromColor(c chess.Color) models.Side {
	if c == chess.Black {
		return models.Black
	}
	return models.White
}
