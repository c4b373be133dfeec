package pgn

import (
	"regexp"
	"strings"
)

var headerRe = regexp.MustCompile(`\[(\w+)\s+"((?:[^"\\]|\\.)+)"\]`)

// ParseHeaders extracts PGN tag pairs into a map
func ParseHeaders(pgn string) map[string]string {
	out := map[string]string{}
	for _, line := range strings.Split(pgn, "\n") {
		if !strings.HasPrefix(line, "[") {
			continue
		}
		m := headerRe.FindStringSubmatch(line)
		if len(m) == 3 {
			out[m[1]] = unescape(m[2])
		}
	}
	return out
}

var moveNumberRe = regexp.MustCompile(`^\d+\.+$`)

// Movetext returns the SAN moves of a PGN body in play order, without move numbers,
// comments or the result token.
func Movetext(pgn string) []string {
	var body strings.Builder
	for _, line := range strings.Split(pgn, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "[") {
			continue
		}
		body.WriteString(line)
		body.WriteByte(' ')
	}

	var moves []string
	inComment := false
	for _, tok := range strings.Fields(body.String()) {
		if inComment {
			inComment = !strings.HasSuffix(tok, "}")
			continue
		}
		if strings.HasPrefix(tok, "{") {
			inComment = !strings.HasSuffix(tok, "}")
			continue
		}
		if moveNumberRe.MatchString(tok) || isResult(tok) {
			continue
		}
		moves = append(moves, tok)
	}
	return moves
}

func isResult(tok string) bool {
	switch tok {
	case ResultWhiteWins, ResultBlackWins, ResultDraw, ResultUnfinished:
		return true
	}
	return false
}

func unescape(s string) string {
	return strings.NewReplacer(`\\`, `\`, `\"`, `"`).Replace(s)
}
