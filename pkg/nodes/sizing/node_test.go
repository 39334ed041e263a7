package sizing_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/oddsflow/oddsflow/pkg/mocks"
	"github.com/oddsflow/oddsflow/pkg/models"
	sizingnode "github.com/oddsflow/oddsflow/pkg/nodes/sizing"
	"github.com/oddsflow/oddsflow/pkg/orchestrator"
	"github.com/oddsflow/oddsflow/pkg/persistence"
	"github.com/oddsflow/oddsflow/pkg/persistence/file"
	"github.com/oddsflow/oddsflow/pkg/protocol"
	"github.com/oddsflow/oddsflow/pkg/testutil"
)

func newOrchestrator(t *testing.T, trades protocol.TradeExecutor) (*orchestrator.Orchestrator, persistence.DecisionRepository) {
	t.Helper()

	data := &mocks.MockDataProvider{}
	data.On("Market", mock.Anything, "mkt-test").Return(testutil.CreateTestMarket(), nil)
	data.On("Portfolio", mock.Anything).Return(testutil.CreateTestPortfolio(), nil)

	decisions := file.NewPersistence(t.TempDir()).DecisionRepository()

	orch := orchestrator.New(orchestrator.Config{
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Data:      data,
		Decisions: decisions,
		Trades:    trades,
	})

	return orch, decisions
}

func nodeConfig(mode string) map[string]any {
	return map[string]any{
		"mode":                    mode,
		"fractional_kelly_lambda": 0.5,
		"resolution_fee_rate":     0.02,
	}
}

func candidateInputs() map[string]models.NodeResult {
	return map[string]models.NodeResult{
		"filter-1": {
			NodeID: "filter-1",
			Data: map[string]any{"items": []any{
				map[string]any{"id": "mkt-test", "p_win": 0.75, "odds": 0.65},
			}},
			Status:    models.NodeStatusSucceeded,
			Timestamp: time.Now().UTC(),
		},
	}
}

func TestExecuteApprovalRequiredSuspends(t *testing.T) {
	t.Parallel()

	orch, decisions := newOrchestrator(t, nil)

	node, err := sizingnode.NewSizingNode("sizing-1", nodeConfig("approval-required"), orch)
	require.NoError(t, err)

	execCtx := models.NewExecutionContext("exec-1", "wf-1", nil, nil)

	_, err = node.Execute(context.Background(), execCtx, candidateInputs())
	require.Error(t, err)

	susp, ok := protocol.AsSuspend(err)
	require.True(t, ok)
	assert.Equal(t, "sizing-1", susp.NodeID)

	// the parked decision is pending and carries the candidate market
	decision, err := decisions.DecisionByID(context.Background(), susp.DecisionID)
	require.NoError(t, err)
	assert.Equal(t, models.DecisionStatusPending, decision.Status)
	assert.Equal(t, "mkt-test", decision.MarketID)
	assert.Equal(t, models.ActionBuy, decision.Action)
}

func TestExecuteAutonomousReturnsExecutedDecision(t *testing.T) {
	t.Parallel()

	trades := &mocks.MockTradeExecutor{}
	trades.On("Submit", mock.Anything, mock.Anything).Return("trade-1", nil)

	orch, _ := newOrchestrator(t, trades)

	node, err := sizingnode.NewSizingNode("sizing-1", nodeConfig("autonomous"), orch)
	require.NoError(t, err)

	execCtx := models.NewExecutionContext("exec-1", "wf-1", nil, nil)

	result, err := node.Execute(context.Background(), execCtx, candidateInputs())
	require.NoError(t, err)

	assert.Equal(t, models.NodeStatusSucceeded, result.Status)
	assert.Equal(t, "executed", result.Data["status"])
	assert.Equal(t, string(models.ActionBuy), result.Data["action"])
	trades.AssertExpectations(t)
}

func TestExecuteWithoutCandidateHolds(t *testing.T) {
	t.Parallel()

	orch, _ := newOrchestrator(t, nil)

	node, err := sizingnode.NewSizingNode("sizing-1", nodeConfig("approval-required"), orch)
	require.NoError(t, err)

	execCtx := models.NewExecutionContext("exec-1", "wf-1", nil, nil)

	// no upstream items: the decision records the missing input and holds
	result, err := node.Execute(context.Background(), execCtx, nil)
	require.NoError(t, err)

	assert.Equal(t, string(models.ActionHold), result.Data["action"])
}

func TestExecutePicksFirstUpstreamItem(t *testing.T) {
	t.Parallel()

	orch, decisions := newOrchestrator(t, nil)

	node, err := sizingnode.NewSizingNode("sizing-1", nodeConfig("approval-required"), orch)
	require.NoError(t, err)

	inputs := candidateInputs()
	inputs["z-later"] = models.NodeResult{
		Data: map[string]any{"items": []any{
			map[string]any{"id": "mkt-other", "p_win": 0.9, "odds": 0.5},
		}},
	}

	execCtx := models.NewExecutionContext("exec-1", "wf-1", nil, nil)

	_, err = node.Execute(context.Background(), execCtx, inputs)
	require.Error(t, err)

	susp, ok := protocol.AsSuspend(err)
	require.True(t, ok)

	decision, err := decisions.DecisionByID(context.Background(), susp.DecisionID)
	require.NoError(t, err)
	assert.Equal(t, "mkt-test", decision.MarketID)
}

func TestNewSizingNodeConfigValidation(t *testing.T) {
	t.Parallel()

	orch, _ := newOrchestrator(t, nil)

	_, err := sizingnode.NewSizingNode("sizing-1", map[string]any{}, orch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fractional_kelly_lambda")

	_, err = sizingnode.NewSizingNode("sizing-1", map[string]any{
		"fractional_kelly_lambda": 0.5,
		"mode":                    "yolo",
	}, orch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid mode")

	_, err = sizingnode.NewSizingNode("sizing-1", map[string]any{
		"fractional_kelly_lambda": 0.5,
		"rules":                   map[string]any{"lot_size": "ten"},
	}, orch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lot_size")
}
