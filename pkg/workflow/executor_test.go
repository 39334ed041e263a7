package workflow_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddsflow/oddsflow/pkg/models"
	"github.com/oddsflow/oddsflow/pkg/persistence"
	"github.com/oddsflow/oddsflow/pkg/persistence/file"
	"github.com/oddsflow/oddsflow/pkg/protocol"
	"github.com/oddsflow/oddsflow/pkg/registry"
	"github.com/oddsflow/oddsflow/pkg/testutil"
	"github.com/oddsflow/oddsflow/pkg/trace"
	"github.com/oddsflow/oddsflow/pkg/workflow"
)

type stubNode struct {
	id  string
	typ string
	fn  func(id string, inputs map[string]models.NodeResult) (models.NodeResult, error)
}

func (n *stubNode) ID() string   { return n.id }
func (n *stubNode) Type() string { return n.typ }

func (n *stubNode) Execute(_ context.Context, _ *models.ExecutionContext, inputs map[string]models.NodeResult) (models.NodeResult, error) {
	if n.fn != nil {
		return n.fn(n.id, inputs)
	}

	return okResult(n.id), nil
}

type stubFactory struct {
	typ string
	fn  func(id string, inputs map[string]models.NodeResult) (models.NodeResult, error)
}

func (f *stubFactory) Create(_ context.Context, id string, _ map[string]any) (protocol.Node, error) {
	return &stubNode{id: id, typ: f.typ, fn: f.fn}, nil
}

func (f *stubFactory) ID() string             { return f.typ }
func (f *stubFactory) Name() string           { return f.typ }
func (f *stubFactory) Description() string    { return "stub node" }
func (f *stubFactory) Schema() map[string]any { return nil }

func okResult(id string) models.NodeResult {
	return models.NodeResult{
		NodeID:    id,
		Data:      map[string]any{"from": id},
		Status:    models.NodeStatusSucceeded,
		Timestamp: time.Now().UTC(),
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newExecutor(t *testing.T, reg *registry.Registry) (*workflow.Executor, persistence.Persistence) {
	t.Helper()

	p := file.NewPersistence(t.TempDir())
	collector := trace.NewCollector(testLogger(), p.TraceRepository(), 0)

	return workflow.NewExecutor(testLogger(), p, reg, collector, nil, "worker-test"), p
}

// recordingRegistry registers an "emit" factory that appends node ids to ran
// in execution order.
func recordingRegistry(mu *sync.Mutex, ran *[]string) *registry.Registry {
	reg := registry.NewRegistry(testLogger())
	reg.RegisterNode(&stubFactory{typ: "emit", fn: func(id string, _ map[string]models.NodeResult) (models.NodeResult, error) {
		mu.Lock()
		*ran = append(*ran, id)
		mu.Unlock()

		return okResult(id), nil
	}})

	return reg
}

func emitNode(id string) *models.WorkflowNode {
	return testutil.CreateTestNode(testutil.WithNodeID(id), testutil.WithNodeType("emit"))
}

func saveWorkflow(t *testing.T, p persistence.Persistence, wf *models.Workflow) {
	t.Helper()
	require.NoError(t, p.WorkflowRepository().SaveWorkflow(context.Background(), wf))
}

func TestRunExecutesNodesInDependencyOrder(t *testing.T) {
	t.Parallel()

	var (
		mu  sync.Mutex
		ran []string
	)

	exec, p := newExecutor(t, recordingRegistry(&mu, &ran))

	wf := testutil.CreateTestWorkflow(
		[]*models.WorkflowNode{emitNode("a"), emitNode("b"), emitNode("c"), emitNode("d")},
		[]*models.Edge{
			testutil.Edge("a", "b"),
			testutil.Edge("a", "c"),
			testutil.Edge("b", "d"),
			testutil.Edge("c", "d"),
		},
	)
	saveWorkflow(t, p, wf)

	execCtx, err := exec.Run(context.Background(), wf.ID, map[string]any{"source": "test"})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execCtx.Status)
	assert.Equal(t, []string{"a", "b", "c", "d"}, ran)
	assert.Len(t, execCtx.NodeResults, 4)

	for _, id := range []string{"a", "b", "c", "d"} {
		assert.Equal(t, models.NodeStatusSucceeded, execCtx.NodeStatuses[id])
	}

	// the finished run and its traces are persisted
	stored, err := p.ExecutionRepository().ExecutionByID(context.Background(), execCtx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, stored.Status)
	assert.NotNil(t, stored.FinishedAt)

	traces, err := p.TraceRepository().TracesByExecution(context.Background(), execCtx.ID)
	require.NoError(t, err)
	assert.Len(t, traces, 4)
}

func TestRunRefusesUnpublishedWorkflow(t *testing.T) {
	t.Parallel()

	var (
		mu  sync.Mutex
		ran []string
	)

	exec, p := newExecutor(t, recordingRegistry(&mu, &ran))

	wf := testutil.CreateTestWorkflow([]*models.WorkflowNode{emitNode("a")}, nil)
	wf.Status = models.WorkflowStatusDraft
	saveWorkflow(t, p, wf)

	_, err := exec.Run(context.Background(), wf.ID, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only published workflows")
	assert.Empty(t, ran)
}

func TestRunPassesPredecessorOutputsAsInputs(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		seen map[string]models.NodeResult
	)

	reg := registry.NewRegistry(testLogger())
	reg.RegisterNode(&stubFactory{typ: "emit", fn: func(id string, inputs map[string]models.NodeResult) (models.NodeResult, error) {
		if id == "b" {
			mu.Lock()
			seen = inputs
			mu.Unlock()
		}

		return okResult(id), nil
	}})

	exec, p := newExecutor(t, reg)

	wf := testutil.CreateTestWorkflow(
		[]*models.WorkflowNode{emitNode("a"), emitNode("b")},
		[]*models.Edge{testutil.Edge("a", "b")},
	)
	saveWorkflow(t, p, wf)

	_, err := exec.Run(context.Background(), wf.ID, nil)
	require.NoError(t, err)

	require.Contains(t, seen, "a")
	assert.Equal(t, "a", seen["a"].Data["from"])
}

func TestRunNodeFailureSkipsDescendantsButCompletes(t *testing.T) {
	t.Parallel()

	reg := registry.NewRegistry(testLogger())
	reg.RegisterNode(&stubFactory{typ: "emit"})
	reg.RegisterNode(&stubFactory{typ: "boom", fn: func(id string, _ map[string]models.NodeResult) (models.NodeResult, error) {
		return models.NodeResult{}, errors.New("provider unreachable")
	}})

	exec, p := newExecutor(t, reg)

	boom := testutil.CreateTestNode(testutil.WithNodeID("b"), testutil.WithNodeType("boom"))

	// a -> b -> c, plus an independent a -> d branch
	wf := testutil.CreateTestWorkflow(
		[]*models.WorkflowNode{emitNode("a"), boom, emitNode("c"), emitNode("d")},
		[]*models.Edge{
			testutil.Edge("a", "b"),
			testutil.Edge("b", "c"),
			testutil.Edge("a", "d"),
		},
	)
	saveWorkflow(t, p, wf)

	execCtx, err := exec.Run(context.Background(), wf.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execCtx.Status)
	assert.Equal(t, models.NodeStatusFailed, execCtx.NodeStatuses["b"])
	assert.Equal(t, "provider unreachable", execCtx.NodeResults["b"].Error)
	assert.Equal(t, models.NodeStatusSkipped, execCtx.NodeStatuses["c"])
	assert.Equal(t, models.NodeStatusSucceeded, execCtx.NodeStatuses["d"])
}

func TestRunDisabledNodeSkipsItsBranch(t *testing.T) {
	t.Parallel()

	var (
		mu  sync.Mutex
		ran []string
	)

	exec, p := newExecutor(t, recordingRegistry(&mu, &ran))

	disabled := testutil.CreateTestNode(
		testutil.WithNodeID("b"), testutil.WithNodeType("emit"), testutil.WithNodeDisabled())

	wf := testutil.CreateTestWorkflow(
		[]*models.WorkflowNode{emitNode("a"), disabled, emitNode("c"), emitNode("d")},
		[]*models.Edge{
			testutil.Edge("a", "b"),
			testutil.Edge("b", "c"),
			testutil.Edge("a", "d"),
		},
	)
	saveWorkflow(t, p, wf)

	execCtx, err := exec.Run(context.Background(), wf.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execCtx.Status)
	assert.Equal(t, models.NodeStatusSkipped, execCtx.NodeStatuses["b"])
	assert.Equal(t, models.NodeStatusSkipped, execCtx.NodeStatuses["c"])
	assert.Equal(t, []string{"a", "d"}, ran)
}

func TestRunUnknownNodeTypeFailsThatNode(t *testing.T) {
	t.Parallel()

	var (
		mu  sync.Mutex
		ran []string
	)

	exec, p := newExecutor(t, recordingRegistry(&mu, &ran))

	unknown := testutil.CreateTestNode(testutil.WithNodeID("b"), testutil.WithNodeType("no-such-type"))

	wf := testutil.CreateTestWorkflow(
		[]*models.WorkflowNode{emitNode("a"), unknown},
		[]*models.Edge{testutil.Edge("a", "b")},
	)
	saveWorkflow(t, p, wf)

	execCtx, err := exec.Run(context.Background(), wf.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execCtx.Status)
	assert.Equal(t, models.NodeStatusFailed, execCtx.NodeStatuses["b"])
	assert.Contains(t, execCtx.NodeResults["b"].Error, "not registered")
}

// gateRegistry wires an approval gate that suspends on first execution, next
// to the recording emit node.
func gateRegistry(mu *sync.Mutex, ran *[]string, decisionID string) *registry.Registry {
	reg := recordingRegistry(mu, ran)
	reg.RegisterNode(&stubFactory{typ: "gate", fn: func(id string, _ map[string]models.NodeResult) (models.NodeResult, error) {
		return models.NodeResult{}, &protocol.SuspendError{NodeID: id, DecisionID: decisionID}
	}})

	return reg
}

// market -> gate -> after, market -> side
func gateWorkflow() *models.Workflow {
	gate := testutil.CreateTestNode(testutil.WithNodeID("gate"), testutil.WithNodeType("gate"))

	return testutil.CreateTestWorkflow(
		[]*models.WorkflowNode{emitNode("market"), gate, emitNode("after"), emitNode("side")},
		[]*models.Edge{
			testutil.Edge("market", "gate"),
			testutil.Edge("gate", "after"),
			testutil.Edge("market", "side"),
		},
	)
}

func TestSuspendPersistsResumableState(t *testing.T) {
	t.Parallel()

	var (
		mu  sync.Mutex
		ran []string
	)

	exec, p := newExecutor(t, gateRegistry(&mu, &ran, "dec-1"))

	wf := gateWorkflow()
	saveWorkflow(t, p, wf)

	execCtx, err := exec.Run(context.Background(), wf.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusSuspended, execCtx.Status)
	assert.Equal(t, models.NodeStatusSuspended, execCtx.NodeStatuses["gate"])

	require.NotNil(t, execCtx.Suspension)
	assert.Equal(t, "gate", execCtx.Suspension.NodeID)
	assert.Equal(t, "dec-1", execCtx.Suspension.DecisionID)
	assert.Equal(t, []string{"after", "side"}, execCtx.Suspension.Remaining)

	// the suspension survives a round-trip through persistence
	stored, err := p.ExecutionRepository().ExecutionByID(context.Background(), execCtx.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Suspension)
	assert.Equal(t, "dec-1", stored.Suspension.DecisionID)
}

func TestResumeAfterApprovalRunsRemainingNodes(t *testing.T) {
	t.Parallel()

	var (
		mu  sync.Mutex
		ran []string
	)

	exec, p := newExecutor(t, gateRegistry(&mu, &ran, "dec-1"))

	wf := gateWorkflow()
	saveWorkflow(t, p, wf)

	execCtx, err := exec.Run(context.Background(), wf.ID, nil)
	require.NoError(t, err)
	require.Equal(t, models.ExecutionStatusSuspended, execCtx.Status)

	decision := testutil.CreateTestDecision(func(d *models.Decision) {
		d.ID = "dec-1"
		d.Status = models.DecisionStatusExecuted
		d.TradeID = "trade-1"
	})
	require.NoError(t, p.DecisionRepository().SaveDecision(context.Background(), decision))

	resumed, err := exec.Resume(context.Background(), execCtx.ID)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, resumed.Status)
	assert.Equal(t, models.NodeStatusSucceeded, resumed.NodeStatuses["gate"])
	assert.Equal(t, models.NodeStatusSucceeded, resumed.NodeStatuses["after"])
	assert.Equal(t, models.NodeStatusSucceeded, resumed.NodeStatuses["side"])

	// the gate's output is rebuilt from the decision record
	assert.Equal(t, "dec-1", resumed.NodeResults["gate"].Data["decision_id"])
	assert.Equal(t, []string{"market", "after", "side"}, ran)
}

func TestResumeAfterRejectionSkipsGateDescendants(t *testing.T) {
	t.Parallel()

	var (
		mu  sync.Mutex
		ran []string
	)

	exec, p := newExecutor(t, gateRegistry(&mu, &ran, "dec-1"))

	wf := gateWorkflow()
	saveWorkflow(t, p, wf)

	execCtx, err := exec.Run(context.Background(), wf.ID, nil)
	require.NoError(t, err)

	decision := testutil.CreateTestDecision(func(d *models.Decision) {
		d.ID = "dec-1"
		d.Status = models.DecisionStatusRejected
		d.RejectReason = "size too large"
	})
	require.NoError(t, p.DecisionRepository().SaveDecision(context.Background(), decision))

	resumed, err := exec.Resume(context.Background(), execCtx.ID)
	require.NoError(t, err)

	// the rejected gate is a recorded output; only its descendants are cut off
	assert.Equal(t, models.ExecutionStatusCompleted, resumed.Status)
	assert.Equal(t, models.NodeStatusSucceeded, resumed.NodeStatuses["gate"])
	assert.Equal(t, "rejected", resumed.NodeResults["gate"].Data["status"])
	assert.Equal(t, models.NodeStatusSkipped, resumed.NodeStatuses["after"])
	assert.Equal(t, models.NodeStatusSucceeded, resumed.NodeStatuses["side"])
}

func TestResumeWithPendingDecisionFails(t *testing.T) {
	t.Parallel()

	var (
		mu  sync.Mutex
		ran []string
	)

	exec, p := newExecutor(t, gateRegistry(&mu, &ran, "dec-1"))

	wf := gateWorkflow()
	saveWorkflow(t, p, wf)

	execCtx, err := exec.Run(context.Background(), wf.ID, nil)
	require.NoError(t, err)

	decision := testutil.CreateTestDecision(func(d *models.Decision) {
		d.ID = "dec-1"
	})
	require.NoError(t, p.DecisionRepository().SaveDecision(context.Background(), decision))

	_, err = exec.Resume(context.Background(), execCtx.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "still pending")
}

func TestResumeRequiresSuspendedExecution(t *testing.T) {
	t.Parallel()

	var (
		mu  sync.Mutex
		ran []string
	)

	exec, p := newExecutor(t, recordingRegistry(&mu, &ran))

	wf := testutil.CreateTestWorkflow([]*models.WorkflowNode{emitNode("a")}, nil)
	saveWorkflow(t, p, wf)

	execCtx, err := exec.Run(context.Background(), wf.ID, nil)
	require.NoError(t, err)
	require.Equal(t, models.ExecutionStatusCompleted, execCtx.Status)

	_, err = exec.Resume(context.Background(), execCtx.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not suspended")
}

func TestRunObservesCancellationBetweenNodes(t *testing.T) {
	t.Parallel()

	var (
		mu  sync.Mutex
		ran []string
	)

	exec, p := newExecutor(t, recordingRegistry(&mu, &ran))

	wf := testutil.CreateTestWorkflow([]*models.WorkflowNode{emitNode("a")}, nil)
	saveWorkflow(t, p, wf)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	execCtx, err := exec.Run(ctx, wf.ID, nil)
	require.Error(t, err)
	require.NotNil(t, execCtx)
	assert.Equal(t, models.ExecutionStatusFailed, execCtx.Status)
	assert.Empty(t, ran)
}
