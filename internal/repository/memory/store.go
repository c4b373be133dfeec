// Package memory is a single-process Store used in tests and local development.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vytor/chessduel/internal/logger"
	"github.com/vytor/chessduel/internal/models"
	"github.com/vytor/chessduel/internal/repository"
)

type state struct {
	matches map[string]models.Match
	moves   map[string][]models.MoveRecord
	history map[string]models.HistoryEntry
	stats   map[string]models.PlayerStats
}

func newState() state {
	return state{
		matches: make(map[string]models.Match),
		moves:   make(map[string][]models.MoveRecord),
		history: make(map[string]models.HistoryEntry),
		stats:   make(map[string]models.PlayerStats),
	}
}

func (s state) clone() state {
	c := newState()
	for k, v := range s.matches {
		c.matches[k] = v
	}
	for k, v := range s.moves {
		c.moves[k] = append([]models.MoveRecord(nil), v...)
	}
	for k, v := range s.history {
		c.history[k] = v
	}
	for k, v := range s.stats {
		c.stats[k] = v
	}
	return c
}

// Store keeps everything in maps guarded by one mutex. Atomic holds the mutex for the
// whole callback and restores a snapshot if the callback fails.
type Store struct {
	mu   sync.Mutex
	data state
}

type txKey struct{ s *Store }

// New returns an empty Store.
func New() *Store {
	return &Store{data: newState()}
}

func (s *Store) Matches() repository.MatchRepository { return matchRepository{s} }
func (s *Store) Ledger() repository.LedgerRepository { return ledgerRepository{s} }

func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	log := logger.FromContext(ctx).WithPrefix("memory_store")

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(context.WithValue(ctx, txKey{s}, true)); err != nil {
		s.data = snapshot
		log.Debug("transaction rolled back due to error: %v", err)
		return err
	}
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{s}).(bool)
	return v
}

// with runs fn against the data, taking the lock unless ctx already holds it.
func (s *Store) with(ctx context.Context, fn func(d *state) error) error {
	if !s.inTx(ctx) {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return fn(&s.data)
}

type matchRepository struct{ s *Store }

func (r matchRepository) Create(ctx context.Context, match *models.Match) error {
	return r.s.with(ctx, func(d *state) error {
		if _, ok := d.matches[match.ID]; ok {
			return repository.ErrConflict
		}
		for _, m := range d.matches {
			if m.Status == models.StatusOngoing {
				return repository.ErrConflict
			}
		}
		stored := *match
		stored.Moves = nil
		d.matches[match.ID] = stored
		return nil
	})
}

func (r matchRepository) Get(ctx context.Context, id string) (*models.Match, error) {
	var out *models.Match
	err := r.s.with(ctx, func(d *state) error {
		m, ok := d.matches[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &m
		return nil
	})
	return out, err
}

func (r matchRepository) Ongoing(ctx context.Context) (*models.Match, error) {
	var out *models.Match
	err := r.s.with(ctx, func(d *state) error {
		for _, m := range d.matches {
			if m.Status == models.StatusOngoing {
				m := m
				out = &m
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r matchRepository) UpdateIfVersion(ctx context.Context, match *models.Match, expected int64) error {
	return r.s.with(ctx, func(d *state) error {
		current, ok := d.matches[match.ID]
		if !ok {
			return repository.ErrNotFound
		}
		if current.Version != expected {
			return repository.ErrConflict
		}
		match.Version = expected + 1
		stored := *match
		stored.Moves = nil
		d.matches[match.ID] = stored
		return nil
	})
}

func (r matchRepository) AppendMove(ctx context.Context, move *models.MoveRecord) error {
	return r.s.with(ctx, func(d *state) error {
		if _, ok := d.matches[move.MatchID]; !ok {
			return repository.ErrNotFound
		}
		move.SequenceNumber = int64(len(d.moves[move.MatchID])) + 1
		d.moves[move.MatchID] = append(d.moves[move.MatchID], *move)
		return nil
	})
}

func (r matchRepository) Moves(ctx context.Context, matchID string) ([]models.MoveRecord, error) {
	var out []models.MoveRecord
	err := r.s.with(ctx, func(d *state) error {
		out = append([]models.MoveRecord{}, d.moves[matchID]...)
		return nil
	})
	return out, err
}

type ledgerRepository struct{ s *Store }

func (r ledgerRepository) InsertHistory(ctx context.Context, entry models.HistoryEntry) error {
	return r.s.with(ctx, func(d *state) error {
		if _, ok := d.history[entry.MatchID]; ok {
			return repository.ErrDuplicate
		}
		d.history[entry.MatchID] = entry
		return nil
	})
}

func (r ledgerRepository) IncrementStats(ctx context.Context, identityID string, delta models.StatsDelta) error {
	return r.s.with(ctx, func(d *state) error {
		st := d.stats[identityID]
		st.IdentityID = identityID
		st.Apply(delta)
		d.stats[identityID] = st
		return nil
	})
}

func (r ledgerRepository) Stats(ctx context.Context) ([]models.PlayerStats, error) {
	var out []models.PlayerStats
	err := r.s.with(ctx, func(d *state) error {
		for _, st := range d.stats {
			out = append(out, st)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].IdentityID < out[j].IdentityID })
	return out, err
}

func (r ledgerRepository) RecentHistory(ctx context.Context, limit int) ([]models.HistoryEntry, error) {
	out := []models.HistoryEntry{}
	err := r.s.with(ctx, func(d *state) error {
		for _, e := range d.history {
			out = append(out, e)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].FinishedAt.Equal(out[j].FinishedAt) {
			return out[i].MatchID > out[j].MatchID
		}
		return out[i].FinishedAt.After(out[j].FinishedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}
