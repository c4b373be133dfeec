package models

import (
	"strings"
	"time"
)

// Side is a chess color.
type Side string

const (
	White Side = "white"
	Black Side = "black"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == White {
		return Black
	}
	return White
}

// Valid reports whether s is white or black.
func (s Side) Valid() bool {
	return s == White || s == Black
}

// ParseSide normalizes a client-supplied side, defaulting to white.
func ParseSide(s string) Side {
	switch Side(strings.ToLower(strings.TrimSpace(s))) {
	case Black:
		return Black
	default:
		return White
	}
}

// MatchStatus is the lifecycle state of a match. Only StatusOngoing is non-terminal.
type MatchStatus string

const (
	StatusOngoing  MatchStatus = "ongoing"
	StatusWhiteWon MatchStatus = "white_won"
	StatusBlackWon MatchStatus = "black_won"
	StatusDraw     MatchStatus = "draw"
)

// Terminal reports whether the status is final.
func (s MatchStatus) Terminal() bool {
	return s == StatusWhiteWon || s == StatusBlackWon || s == StatusDraw
}

// Match is one game between the two roster identities.
type Match struct {
	ID               string       `json:"id"`
	WhiteIdentityID  string       `json:"white_identity_id"`
	BlackIdentityID  string       `json:"black_identity_id"`
	Position         string       `json:"position"`
	SideToMove       Side         `json:"side_to_move"`
	Status           MatchStatus  `json:"status"`
	WinnerIdentityID string       `json:"winner_identity_id,omitempty"`
	Version          int64        `json:"version"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
	FinishedAt       *time.Time   `json:"finished_at,omitempty"`
	Moves            []MoveRecord `json:"moves"`
}

// SideOf returns the side played by identityID, or "" for a non-participant.
func (m *Match) SideOf(identityID string) Side {
	switch identityID {
	case m.WhiteIdentityID:
		return White
	case m.BlackIdentityID:
		return Black
	default:
		return ""
	}
}

// IdentityFor returns the identity playing side.
func (m *Match) IdentityFor(side Side) string {
	if side == White {
		return m.WhiteIdentityID
	}
	return m.BlackIdentityID
}

// IsParticipant reports whether identityID plays in the match.
func (m *Match) IsParticipant(identityID string) bool {
	return m.SideOf(identityID) != ""
}

// MoveHistory returns the moves in long algebraic form, in play order.
func (m *Match) MoveHistory() []string {
	out := make([]string, len(m.Moves))
	for i, mv := range m.Moves {
		out[i] = mv.UCI()
	}
	return out
}

// MoveRecord is one applied move. Records are append-only.
type MoveRecord struct {
	MatchID        string    `json:"match_id"`
	SequenceNumber int64     `json:"sequence_number"`
	Notation       string    `json:"notation"`
	FromSquare     string    `json:"from"`
	ToSquare       string    `json:"to"`
	Promotion      string    `json:"promotion,omitempty"`
	RecordedAt     time.Time `json:"recorded_at"`
}

// UCI returns the move as from+to+promotion, e.g. "e7e8q".
func (r MoveRecord) UCI() string {
	return r.FromSquare + r.ToSquare + r.Promotion
}
