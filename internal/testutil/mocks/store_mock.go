package mocks

import (
	"context"

	"github.com/vytor/chessduel/internal/repository"
)

// MockStore wires mock repositories into a repository.Store. Atomic runs fn directly.
type MockStore struct {
	MatchRepo  *MockMatchRepository
	LedgerRepo *MockLedgerRepository
	PingErr    error
}

// NewMockStore returns a MockStore with fresh repository mocks.
func NewMockStore() *MockStore {
	return &MockStore{MatchRepo: &MockMatchRepository{}, LedgerRepo: &MockLedgerRepository{}}
}

func (s *MockStore) Matches() repository.MatchRepository { return s.MatchRepo }
func (s *MockStore) Ledger() repository.LedgerRepository { return s.LedgerRepo }

func (s *MockStore) Atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (s *MockStore) Ping(context.Context) error { return s.PingErr }
func (s *MockStore) Close() error               { return nil }
