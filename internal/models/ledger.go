package models

import "time"

// PlayerStats holds cumulative results for one identity.
type PlayerStats struct {
	IdentityID string `json:"identity_id"`
	Wins       int    `json:"wins"`
	Losses     int    `json:"losses"`
	Draws      int    `json:"draws"`
}

// StatsDelta is an increment applied to a PlayerStats row.
type StatsDelta struct {
	Wins   int
	Losses int
	Draws  int
}

// Apply adds d to s.
func (s *PlayerStats) Apply(d StatsDelta) {
	s.Wins += d.Wins
	s.Losses += d.Losses
	s.Draws += d.Draws
}

// HistoryEntry is the ledger row for one finished match.
type HistoryEntry struct {
	MatchID          string      `json:"match_id"`
	WhiteIdentityID  string      `json:"white_identity_id"`
	BlackIdentityID  string      `json:"black_identity_id"`
	WinnerIdentityID string      `json:"winner_identity_id,omitempty"`
	Status           MatchStatus `json:"status"`
	CreatedAt        time.Time   `json:"created_at"`
	FinishedAt       time.Time   `json:"finished_at"`
}

// Leaderboard is the aggregate view served to clients.
type Leaderboard struct {
	Stats         map[string]PlayerStats `json:"stats"`
	RecentHistory []HistoryEntry         `json:"recentHistory"`
}
