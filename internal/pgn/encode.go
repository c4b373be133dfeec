package pgn

import (
	"fmt"
	"strings"

	"github.com/vytor/chessduel/internal/models"
)

// Result tokens.
const (
	ResultWhiteWins  = "1-0"
	ResultBlackWins  = "0-1"
	ResultDraw       = "1/2-1/2"
	ResultUnfinished = "*"
)

const (
	event    = "Casual Game"
	site     = "chessduel"
	lineWrap = 80
)

// ResultToken maps a match status to its PGN result.
func ResultToken(status models.MatchStatus) string {
	switch status {
	case models.StatusWhiteWon:
		return ResultWhiteWins
	case models.StatusBlackWon:
		return ResultBlackWins
	case models.StatusDraw:
		return ResultDraw
	default:
		return ResultUnfinished
	}
}

// Encode renders a match as PGN. whiteName and blackName fill the player tags; empty
// names fall back to the identity ids. The match must carry its move log.
func Encode(m *models.Match, whiteName, blackName string) string {
	if whiteName == "" {
		whiteName = m.WhiteIdentityID
	}
	if blackName == "" {
		blackName = m.BlackIdentityID
	}
	result := ResultToken(m.Status)

	var b strings.Builder
	writeTag(&b, "Event", event)
	writeTag(&b, "Site", site)
	writeTag(&b, "Date", m.CreatedAt.UTC().Format("2006.01.02"))
	writeTag(&b, "Round", "-")
	writeTag(&b, "White", whiteName)
	writeTag(&b, "Black", blackName)
	writeTag(&b, "Result", result)
	writeTag(&b, "MatchId", m.ID)
	if m.Status.Terminal() && m.FinishedAt != nil {
		writeTag(&b, "EndTime", m.FinishedAt.UTC().Format("15:04:05 MST"))
	}
	b.WriteByte('\n')

	line := 0
	emit := func(tok string) {
		if line > 0 && line+1+len(tok) > lineWrap {
			b.WriteByte('\n')
			line = 0
		} else if line > 0 {
			b.WriteByte(' ')
			line++
		}
		b.WriteString(tok)
		line += len(tok)
	}
	for i, mv := range m.Moves {
		if i%2 == 0 {
			emit(fmt.Sprintf("%d.", i/2+1))
		}
		emit(mv.Notation)
	}
	emit(result)
	b.WriteByte('\n')
	return b.String()
}

func writeTag(b *strings.Builder, name, value string) {
	value = strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(value)
	fmt.Fprintf(b, "[%s \"%s\"]\n", name, value)
}
