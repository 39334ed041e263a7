package orchestrator_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/oddsflow/oddsflow/pkg/mocks"
	"github.com/oddsflow/oddsflow/pkg/models"
	"github.com/oddsflow/oddsflow/pkg/orchestrator"
	"github.com/oddsflow/oddsflow/pkg/persistence"
	"github.com/oddsflow/oddsflow/pkg/protocol"
	"github.com/oddsflow/oddsflow/pkg/testutil"
)

// memoryDecisions is an in-memory DecisionRepository with the same
// compare-and-swap semantics as the real stores.
type memoryDecisions struct {
	mu    sync.Mutex
	items map[string]models.Decision
}

func newMemoryDecisions() *memoryDecisions {
	return &memoryDecisions{items: make(map[string]models.Decision)}
}

func (m *memoryDecisions) DecisionByID(_ context.Context, id string) (*models.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.items[id]
	if !ok {
		return nil, persistence.ErrDecisionNotFound
	}

	return &stored, nil
}

func (m *memoryDecisions) SaveDecision(_ context.Context, decision *models.Decision) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[decision.ID] = *decision

	return nil
}

func (m *memoryDecisions) UpdateDecision(_ context.Context, decision *models.Decision, expectedVersion int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.items[decision.ID]
	if !ok {
		return persistence.ErrDecisionNotFound
	}

	if stored.Version != expectedVersion {
		return persistence.ErrVersionConflict
	}

	decision.Version = expectedVersion + 1
	m.items[decision.ID] = *decision

	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sizeParams(mode models.OrchestratorMode) orchestrator.SizeParams {
	return orchestrator.SizeParams{
		ExecutionID: "exec-1",
		NodeID:      "sizing-1",
		WorkflowID:  "wf-1",
		Mode:        mode,
		Request:     testutil.CreateTestSizingRequest(),
		Rules:       models.DefaultSizingRules(),
	}
}

func TestSizeMissingMarketIDHolds(t *testing.T) {
	t.Parallel()

	data := &mocks.MockDataProvider{}
	store := newMemoryDecisions()

	o := orchestrator.New(orchestrator.Config{
		Logger:    discardLogger(),
		Data:      data,
		Decisions: store,
	})

	params := sizeParams(models.ModeAutonomous)
	params.Request.MarketID = ""

	decision, err := o.Size(context.Background(), params)
	require.NoError(t, err)

	assert.Equal(t, models.ActionHold, decision.Action)
	assert.Equal(t, models.DecisionStatusExecuted, decision.Status)
	assert.Contains(t, decision.RiskFlags, models.RiskFlagMissingInput)

	stored, err := store.DecisionByID(context.Background(), decision.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DecisionStatusExecuted, stored.Status)

	// no snapshots are fetched when the input is unusable
	data.AssertExpectations(t)
}

func TestSizeValidationFailureHolds(t *testing.T) {
	t.Parallel()

	data := &mocks.MockDataProvider{}
	data.On("Market", mock.Anything, "mkt-test").Return(testutil.CreateTestMarket(), nil)
	data.On("Portfolio", mock.Anything).Return(testutil.CreateTestPortfolio(), nil)

	o := orchestrator.New(orchestrator.Config{
		Logger:    discardLogger(),
		Data:      data,
		Decisions: newMemoryDecisions(),
	})

	params := sizeParams(models.ModeAutonomous)
	params.Request.PWin = 0 // fails validation after snapshots are read

	decision, err := o.Size(context.Background(), params)
	require.NoError(t, err)

	assert.Equal(t, models.ActionHold, decision.Action)
	assert.Equal(t, models.DecisionStatusExecuted, decision.Status)
	assert.Contains(t, decision.RiskFlags, models.RiskFlagMissingInput)
	assert.Contains(t, decision.Reasoning, "input validation failed")
}

func TestSizeMarketFetchFailureIsFatal(t *testing.T) {
	t.Parallel()

	data := &mocks.MockDataProvider{}
	data.On("Market", mock.Anything, "mkt-test").
		Return(models.MarketSnapshot{}, errors.New("upstream 503"))

	o := orchestrator.New(orchestrator.Config{
		Logger:    discardLogger(),
		Data:      data,
		Decisions: newMemoryDecisions(),
	})

	decision, err := o.Size(context.Background(), sizeParams(models.ModeAutonomous))
	require.Error(t, err)
	assert.Nil(t, decision)

	var svcErr *protocol.ExternalServiceError

	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, "data_provider", svcErr.Service)
}

func TestSizeAIFailureFallsBackToRules(t *testing.T) {
	t.Parallel()

	data := &mocks.MockDataProvider{}
	data.On("Market", mock.Anything, "mkt-test").Return(testutil.CreateTestMarket(), nil)
	data.On("Portfolio", mock.Anything).Return(testutil.CreateTestPortfolio(), nil)

	ai := &mocks.MockDecisionService{}
	ai.On("Decide", mock.Anything, mock.Anything).
		Return(protocol.DecisionResponse{}, errors.New("timeout"))

	notifier := &mocks.MockNotifier{}
	notifier.On("DecisionPending", mock.Anything, mock.Anything).Return()

	o := orchestrator.New(orchestrator.Config{
		Logger:    discardLogger(),
		Data:      data,
		Decisions: newMemoryDecisions(),
		AI:        ai,
		Notifier:  notifier,
	})

	decision, err := o.Size(context.Background(), sizeParams(models.ModeApprovalRequired))
	require.NoError(t, err)

	assert.Contains(t, decision.RiskFlags, models.RiskFlagAIFallback)
	assert.Equal(t, models.ActionBuy, decision.Action)
	assert.Greater(t, decision.RecommendedFraction, 0.0)
	notifier.AssertExpectations(t)
}

func TestSizeAIAdvisoryShrinksFraction(t *testing.T) {
	t.Parallel()

	data := &mocks.MockDataProvider{}
	data.On("Market", mock.Anything, "mkt-test").Return(testutil.CreateTestMarket(), nil)
	data.On("Portfolio", mock.Anything).Return(testutil.CreateTestPortfolio(), nil)

	ai := &mocks.MockDecisionService{}
	ai.On("Decide", mock.Anything, mock.Anything).Return(protocol.DecisionResponse{
		Decision:        models.ActionBuy,
		RecommendedSize: 0.02,
		RiskScore:       0.4,
		Confidence:      0.8,
		Reasoning:       "elevated headline risk",
	}, nil)

	notifier := &mocks.MockNotifier{}
	notifier.On("DecisionPending", mock.Anything, mock.Anything).Return()

	o := orchestrator.New(orchestrator.Config{
		Logger:    discardLogger(),
		Data:      data,
		Decisions: newMemoryDecisions(),
		AI:        ai,
		Notifier:  notifier,
	})

	params := sizeParams(models.ModeApprovalRequired)
	params.Rules.MaxFractionPerMarket = 1 // let the advisory be the binding cap

	decision, err := o.Size(context.Background(), params)
	require.NoError(t, err)

	assert.InDelta(t, 0.02, decision.RecommendedFraction, 1e-9)
	assert.InDelta(t, 0.4, decision.RiskScore, 1e-9)
	assert.InDelta(t, 0.8, decision.Confidence, 1e-9)
	assert.Equal(t, "elevated headline risk", decision.Reasoning)
}

func TestSizeApprovalRequiredParksPending(t *testing.T) {
	t.Parallel()

	data := &mocks.MockDataProvider{}
	data.On("Market", mock.Anything, "mkt-test").Return(testutil.CreateTestMarket(), nil)
	data.On("Portfolio", mock.Anything).Return(testutil.CreateTestPortfolio(), nil)

	notifier := &mocks.MockNotifier{}
	notifier.On("DecisionPending", mock.Anything, mock.AnythingOfType("*models.Decision")).Return()

	store := newMemoryDecisions()

	o := orchestrator.New(orchestrator.Config{
		Logger:    discardLogger(),
		Data:      data,
		Decisions: store,
		Notifier:  notifier,
	})

	decision, err := o.Size(context.Background(), sizeParams(models.ModeApprovalRequired))
	require.NoError(t, err)

	assert.Equal(t, models.DecisionStatusPending, decision.Status)
	assert.Empty(t, decision.TradeID)

	stored, err := store.DecisionByID(context.Background(), decision.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DecisionStatusPending, stored.Status)
	assert.Equal(t, 0, stored.Version)

	notifier.AssertExpectations(t)
}

func TestSizeAutonomousExecutesInline(t *testing.T) {
	t.Parallel()

	data := &mocks.MockDataProvider{}
	data.On("Market", mock.Anything, "mkt-test").Return(testutil.CreateTestMarket(), nil)
	data.On("Portfolio", mock.Anything).Return(testutil.CreateTestPortfolio(), nil)

	trades := &mocks.MockTradeExecutor{}
	trades.On("Submit", mock.Anything, mock.MatchedBy(func(order protocol.TradeOrder) bool {
		return order.MarketID == "mkt-test" && order.Side == models.SideYes && order.Notional > 0
	})).Return("trade-42", nil)

	store := newMemoryDecisions()

	o := orchestrator.New(orchestrator.Config{
		Logger:    discardLogger(),
		Data:      data,
		Decisions: store,
		Trades:    trades,
	})

	decision, err := o.Size(context.Background(), sizeParams(models.ModeAutonomous))
	require.NoError(t, err)

	assert.Equal(t, models.DecisionStatusExecuted, decision.Status)
	assert.Equal(t, "trade-42", decision.TradeID)
	assert.Equal(t, decision.RecommendedNotional, decision.ActualNotional)

	// pending → approved → executed is two compare-and-swaps
	stored, err := store.DecisionByID(context.Background(), decision.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Version)

	trades.AssertExpectations(t)
}

func TestSizeHoldFinalizesInlineInApprovalMode(t *testing.T) {
	t.Parallel()

	data := &mocks.MockDataProvider{}
	data.On("Market", mock.Anything, "mkt-test").Return(testutil.CreateTestMarket(), nil)
	data.On("Portfolio", mock.Anything).Return(testutil.CreateTestPortfolio(), nil)

	notifier := &mocks.MockNotifier{}

	o := orchestrator.New(orchestrator.Config{
		Logger:    discardLogger(),
		Data:      data,
		Decisions: newMemoryDecisions(),
		Notifier:  notifier,
	})

	params := sizeParams(models.ModeApprovalRequired)
	params.Request.PWin = 0.60 // below break-even, nothing to approve

	decision, err := o.Size(context.Background(), params)
	require.NoError(t, err)

	assert.Equal(t, models.ActionHold, decision.Action)
	assert.Equal(t, models.DecisionStatusExecuted, decision.Status)

	// the notifier must not fire for a HOLD
	notifier.AssertNotCalled(t, "DecisionPending", mock.Anything, mock.Anything)
}

func TestSizeTradeFailureLeavesDecisionApproved(t *testing.T) {
	t.Parallel()

	data := &mocks.MockDataProvider{}
	data.On("Market", mock.Anything, "mkt-test").Return(testutil.CreateTestMarket(), nil)
	data.On("Portfolio", mock.Anything).Return(testutil.CreateTestPortfolio(), nil)

	trades := &mocks.MockTradeExecutor{}
	trades.On("Submit", mock.Anything, mock.Anything).Return("", errors.New("venue rejected"))

	store := newMemoryDecisions()

	o := orchestrator.New(orchestrator.Config{
		Logger:    discardLogger(),
		Data:      data,
		Decisions: store,
		Trades:    trades,
	})

	decision, err := o.Size(context.Background(), sizeParams(models.ModeAutonomous))
	require.Error(t, err)

	var svcErr *protocol.ExternalServiceError

	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, "trade_executor", svcErr.Service)

	stored, err := store.DecisionByID(context.Background(), decision.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DecisionStatusApproved, stored.Status)
}

func TestSizeBankrollFallsBackToPortfolioSnapshot(t *testing.T) {
	t.Parallel()

	portfolio := testutil.CreateTestPortfolio(func(p *models.PortfolioSnapshot) {
		p.OpenPositions = []models.Position{
			{MarketID: "mkt-test", Side: models.SideYes, Shares: 500, AvgEntryCost: 0.6},
		}
	})

	data := &mocks.MockDataProvider{}
	data.On("Market", mock.Anything, "mkt-test").Return(testutil.CreateTestMarket(), nil)
	data.On("Portfolio", mock.Anything).Return(portfolio, nil)

	trades := &mocks.MockTradeExecutor{}
	trades.On("Submit", mock.Anything, mock.Anything).Return("trade-1", nil)

	o := orchestrator.New(orchestrator.Config{
		Logger:    discardLogger(),
		Data:      data,
		Decisions: newMemoryDecisions(),
		Trades:    trades,
	})

	params := sizeParams(models.ModeAutonomous)
	params.Request.TotalEquityUSD = 0
	params.Request.FreeCashUSD = 0

	decision, err := o.Size(context.Background(), params)
	require.NoError(t, err)

	// the held 500 shares are netted against the target instead of ignored
	assert.Equal(t, portfolio.TotalEquity, decision.Portfolio.TotalEquity)
	assert.Less(t, decision.DeltaShares, decision.TargetShares)
}
