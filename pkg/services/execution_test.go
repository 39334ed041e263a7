package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/oddsflow/oddsflow/pkg/events"
	"github.com/oddsflow/oddsflow/pkg/mocks"
	"github.com/oddsflow/oddsflow/pkg/models"
	"github.com/oddsflow/oddsflow/pkg/persistence"
	"github.com/oddsflow/oddsflow/pkg/persistence/file"
	"github.com/oddsflow/oddsflow/pkg/services"
	"github.com/oddsflow/oddsflow/pkg/testutil"
)

func newExecutionService(t *testing.T, bus *mocks.MockEventBus) (*services.Execution, persistence.Persistence) {
	t.Helper()

	p := file.NewPersistence(t.TempDir())

	return services.NewExecution(testLogger(), p, bus), p
}

func TestTriggerPublishesEvent(t *testing.T) {
	t.Parallel()

	bus := &mocks.MockEventBus{}
	svc, p := newExecutionService(t, bus)

	wf := testutil.CreateTestWorkflow([]*models.WorkflowNode{testutil.CreateTestNode()}, nil)
	require.NoError(t, p.WorkflowRepository().SaveWorkflow(context.Background(), wf))

	bus.On("Publish", mock.Anything, wf.ID, mock.MatchedBy(func(event events.WorkflowTriggered) bool {
		return event.TriggerSource == "api" && event.TriggerData["run"] == "now"
	})).Return(nil)

	err := svc.Trigger(context.Background(), wf.ID, "api", map[string]any{"run": "now"})
	require.NoError(t, err)
	bus.AssertExpectations(t)
}

func TestTriggerRefusesUnpublishedWorkflow(t *testing.T) {
	t.Parallel()

	bus := &mocks.MockEventBus{}
	svc, p := newExecutionService(t, bus)

	wf := testutil.CreateTestWorkflow([]*models.WorkflowNode{testutil.CreateTestNode()}, nil)
	wf.Status = models.WorkflowStatusDraft
	require.NoError(t, p.WorkflowRepository().SaveWorkflow(context.Background(), wf))

	err := svc.Trigger(context.Background(), wf.ID, "api", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrWorkflowNotListed)

	bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestTriggerUnknownWorkflow(t *testing.T) {
	t.Parallel()

	svc, _ := newExecutionService(t, &mocks.MockEventBus{})

	err := svc.Trigger(context.Background(), "nope", "api", nil)
	require.Error(t, err)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestReadThroughAccessors(t *testing.T) {
	t.Parallel()

	svc, p := newExecutionService(t, &mocks.MockEventBus{})
	ctx := context.Background()

	execCtx := models.NewExecutionContext("exec-1", "wf-1", nil, nil)
	require.NoError(t, p.ExecutionRepository().SaveExecution(ctx, execCtx))

	decision := testutil.CreateTestDecision()
	require.NoError(t, p.DecisionRepository().SaveDecision(ctx, decision))

	gotExec, err := svc.ExecutionByID(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, "wf-1", gotExec.WorkflowID)

	gotDecision, err := svc.DecisionByID(ctx, decision.ID)
	require.NoError(t, err)
	assert.Equal(t, decision.MarketID, gotDecision.MarketID)

	traces, err := svc.Traces(ctx, "exec-1")
	require.NoError(t, err)
	assert.Empty(t, traces)
}
