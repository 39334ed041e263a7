// Package mocks provides testify mocks for the collaborator interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/oddsflow/oddsflow/pkg/models"
	"github.com/oddsflow/oddsflow/pkg/protocol"
)

// MockDataProvider is a mock implementation of protocol.DataProvider.
type MockDataProvider struct {
	mock.Mock
}

func (m *MockDataProvider) Market(ctx context.Context, marketID string) (models.MarketSnapshot, error) {
	args := m.Called(ctx, marketID)

	return args.Get(0).(models.MarketSnapshot), args.Error(1)
}

func (m *MockDataProvider) Markets(ctx context.Context, category string) ([]models.MarketSnapshot, error) {
	args := m.Called(ctx, category)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]models.MarketSnapshot), args.Error(1)
}

func (m *MockDataProvider) Portfolio(ctx context.Context) (models.PortfolioSnapshot, error) {
	args := m.Called(ctx)

	return args.Get(0).(models.PortfolioSnapshot), args.Error(1)
}

// MockDecisionService is a mock implementation of protocol.DecisionService.
type MockDecisionService struct {
	mock.Mock
}

func (m *MockDecisionService) Decide(ctx context.Context, req protocol.DecisionRequest) (protocol.DecisionResponse, error) {
	args := m.Called(ctx, req)

	return args.Get(0).(protocol.DecisionResponse), args.Error(1)
}

// MockTradeExecutor is a mock implementation of protocol.TradeExecutor.
type MockTradeExecutor struct {
	mock.Mock
}

func (m *MockTradeExecutor) Submit(ctx context.Context, order protocol.TradeOrder) (string, error) {
	args := m.Called(ctx, order)

	return args.String(0), args.Error(1)
}

// MockNotifier is a mock implementation of protocol.Notifier.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) DecisionPending(ctx context.Context, decision *models.Decision) {
	m.Called(ctx, decision)
}
