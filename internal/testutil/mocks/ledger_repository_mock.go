package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/vytor/chessduel/internal/models"
)

// MockLedgerRepository is a mock implementation of repository.LedgerRepository
type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) InsertHistory(ctx context.Context, entry models.HistoryEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockLedgerRepository) IncrementStats(ctx context.Context, identityID string, delta models.StatsDelta) error {
	args := m.Called(ctx, identityID, delta)
	return args.Error(0)
}

func (m *MockLedgerRepository) Stats(ctx context.Context) ([]models.PlayerStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PlayerStats), args.Error(1)
}

func (m *MockLedgerRepository) RecentHistory(ctx context.Context, limit int) ([]models.HistoryEntry, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.HistoryEntry), args.Error(1)
}
