package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/vytor/chessduel/internal/models"
)

// MockMatchRepository is a mock implementation of repository.MatchRepository
type MockMatchRepository struct {
	mock.Mock
}

func (m *MockMatchRepository) Create(ctx context.Context, match *models.Match) error {
	args := m.Called(ctx, match)
	return args.Error(0)
}

func (m *MockMatchRepository) Get(ctx context.Context, id string) (*models.Match, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Match), args.Error(1)
}

func (m *MockMatchRepository) Ongoing(ctx context.Context) (*models.Match, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Match), args.Error(1)
}

func (m *MockMatchRepository) UpdateIfVersion(ctx context.Context, match *models.Match, expected int64) error {
	args := m.Called(ctx, match, expected)
	return args.Error(0)
}

func (m *MockMatchRepository) AppendMove(ctx context.Context, move *models.MoveRecord) error {
	args := m.Called(ctx, move)
	return args.Error(0)
}

func (m *MockMatchRepository) Moves(ctx context.Context, matchID string) ([]models.MoveRecord, error) {
	args := m.Called(ctx, matchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.MoveRecord), args.Error(1)
}
