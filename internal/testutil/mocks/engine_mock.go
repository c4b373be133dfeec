package mocks

import (
	"github.com/stretchr/testify/mock"
	"github.com/vytor/chessduel/internal/models"
	"github.com/vytor/chessduel/internal/rules"
)

// MockEngine is a mock implementation of rules.Engine
type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) StartingPosition() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockEngine) SideToMove(position string) (models.Side, error) {
	args := m.Called(position)
	return args.Get(0).(models.Side), args.Error(1)
}

func (m *MockEngine) Apply(state rules.State, from, to string) (*rules.Result, error) {
	args := m.Called(state, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rules.Result), args.Error(1)
}
