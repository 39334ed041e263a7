// Package testutil provides test data builders shared across packages.
package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/oddsflow/oddsflow/pkg/models"
)

// CreateTestNode creates a WorkflowNode with defaults that can be overridden.
func CreateTestNode(overrides ...func(*models.WorkflowNode)) *models.WorkflowNode {
	node := &models.WorkflowNode{
		ID:      uuid.New().String(),
		Type:    models.NodeTypeLog,
		Name:    "Test Node",
		Config:  map[string]any{"message": "test", "level": "info"},
		Enabled: true,
	}

	for _, override := range overrides {
		override(node)
	}

	return node
}

// WithNodeID sets the node id.
func WithNodeID(id string) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.ID = id
	}
}

// WithNodeType sets the node type and clears the default config.
func WithNodeType(nodeType string) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Type = nodeType
		n.Config = map[string]any{}
	}
}

// WithNodeConfig sets the node config payload.
func WithNodeConfig(config map[string]any) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Config = config
	}
}

// WithNodeDisabled marks the node disabled.
func WithNodeDisabled() func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Enabled = false
	}
}

// CreateTestWorkflow creates a published workflow from the given nodes and
// edges, ready for the executor.
func CreateTestWorkflow(nodes []*models.WorkflowNode, edges []*models.Edge) *models.Workflow {
	now := time.Now().UTC()

	return &models.Workflow{
		ID:          uuid.New().String(),
		Name:        "Test Workflow",
		Status:      models.WorkflowStatusPublished,
		Version:     1,
		Nodes:       nodes,
		Edges:       edges,
		Owner:       "test",
		CreatedAt:   now,
		UpdatedAt:   now,
		PublishedAt: &now,
	}
}

// Edge builds a directed edge between two node ids.
func Edge(source, target string) *models.Edge {
	return &models.Edge{
		ID:         source + "->" + target,
		SourceNode: source,
		TargetNode: target,
	}
}

// CreateTestMarket creates a market snapshot with sane defaults.
func CreateTestMarket(overrides ...func(*models.MarketSnapshot)) models.MarketSnapshot {
	market := models.MarketSnapshot{
		ID:        "mkt-" + uuid.New().String()[:8],
		Question:  "Will it resolve YES?",
		Category:  "politics",
		Volume:    100000,
		Liquidity: 50000,
		Odds:      0.65,
		CreatedAt: time.Now().UTC().Add(-24 * time.Hour),
		EndDate:   time.Now().UTC().Add(30 * 24 * time.Hour),
	}

	for _, override := range overrides {
		override(&market)
	}

	return market
}

// CreateTestPortfolio creates a portfolio snapshot with sane defaults.
func CreateTestPortfolio(overrides ...func(*models.PortfolioSnapshot)) models.PortfolioSnapshot {
	portfolio := models.PortfolioSnapshot{
		TotalEquity: 10000,
		FreeCash:    8000,
	}

	for _, override := range overrides {
		override(&portfolio)
	}

	return portfolio
}

// CreateTestSizingRequest creates a valid sizing request with sane defaults.
func CreateTestSizingRequest(overrides ...func(*models.SizingRequest)) models.SizingRequest {
	req := models.SizingRequest{
		Timestamp:         time.Now().UTC(),
		MarketID:          "mkt-test",
		Side:              models.SideYes,
		PWin:              0.75,
		EntryCostPerShare: 0.65,
		ResolutionFeeRate: 0.02,
		KellyLambda:       0.5,
		TotalEquityUSD:    10000,
		FreeCashUSD:       8000,
	}

	for _, override := range overrides {
		override(&req)
	}

	return req
}

// CreateTestDecision creates a pending decision with sane defaults.
func CreateTestDecision(overrides ...func(*models.Decision)) *models.Decision {
	now := time.Now().UTC()

	decision := &models.Decision{
		ID:                  uuid.New().String(),
		ExecutionID:         "exec-" + uuid.New().String()[:8],
		NodeID:              "sizing-1",
		WorkflowID:          uuid.New().String(),
		Mode:                models.ModeApprovalRequired,
		MarketID:            "mkt-test",
		Side:                models.SideYes,
		Status:              models.DecisionStatusPending,
		Action:              models.ActionBuy,
		RecommendedFraction: 0.05,
		RecommendedNotional: 500,
		TargetShares:        769,
		DeltaShares:         769,
		ConstraintsApplied:  []string{},
		RiskFlags:           []string{},
		Version:             0,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	for _, override := range overrides {
		override(decision)
	}

	return decision
}
