// Package sizing provides the node that runs the position-sizing orchestrator
// against the top candidate of the upstream item collection.
package sizing

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/oddsflow/oddsflow/pkg/models"
	"github.com/oddsflow/oddsflow/pkg/orchestrator"
	"github.com/oddsflow/oddsflow/pkg/protocol"
)

// SizingNode builds a sizing request from its configuration and the first
// upstream item, then hands it to the orchestrator. In approval-required mode
// an actionable decision parks the branch with a SuspendError.
type SizingNode struct {
	id           string
	mode         models.OrchestratorMode
	side         models.PositionSide
	lambda       float64
	feeRate      float64
	pWinField    string
	costField    string
	rules        models.SizingRules
	orchestrator *orchestrator.Orchestrator
}

func NewSizingNode(id string, config map[string]any, orch *orchestrator.Orchestrator) (*SizingNode, error) {
	mode := models.ModeApprovalRequired
	if m, ok := config["mode"].(string); ok && m != "" {
		mode = models.OrchestratorMode(m)
	}

	if mode != models.ModeAutonomous && mode != models.ModeApprovalRequired {
		return nil, fmt.Errorf("node %s: invalid mode %q", id, mode)
	}

	side := models.SideYes
	if s, ok := config["side"].(string); ok && s != "" {
		side = models.PositionSide(s)
	}

	lambda, ok := config["fractional_kelly_lambda"].(float64)
	if !ok || lambda <= 0 || lambda > 1 {
		return nil, fmt.Errorf("node %s: 'fractional_kelly_lambda' must be in (0, 1]", id)
	}

	feeRate, _ := config["resolution_fee_rate"].(float64)

	pWinField, _ := config["p_win_field"].(string)
	if pWinField == "" {
		pWinField = "p_win"
	}

	costField, _ := config["entry_cost_field"].(string)
	if costField == "" {
		costField = "odds"
	}

	rules, err := parseRules(config)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", id, err)
	}

	return &SizingNode{
		id:           id,
		mode:         mode,
		side:         side,
		lambda:       lambda,
		feeRate:      feeRate,
		pWinField:    pWinField,
		costField:    costField,
		rules:        rules,
		orchestrator: orch,
	}, nil
}

func (n *SizingNode) ID() string {
	return n.id
}

func (n *SizingNode) Type() string {
	return models.NodeTypeSizing
}

func (n *SizingNode) Execute(ctx context.Context, execCtx *models.ExecutionContext, inputs map[string]models.NodeResult) (models.NodeResult, error) {
	candidate := firstItem(inputs)

	decision, err := n.orchestrator.Size(ctx, orchestrator.SizeParams{
		ExecutionID: execCtx.ID,
		NodeID:      n.id,
		WorkflowID:  execCtx.WorkflowID,
		Mode:        n.mode,
		Request:     n.buildRequest(candidate),
		Rules:       n.rules,
	})
	if err != nil {
		return models.NodeResult{}, &protocol.NodeExecutionError{NodeID: n.id, NodeType: n.Type(), Err: err}
	}

	if decision.Status == models.DecisionStatusPending {
		return models.NodeResult{}, &protocol.SuspendError{NodeID: n.id, DecisionID: decision.ID}
	}

	return DecisionResult(n.id, decision), nil
}

// DecisionResult renders a decision as the sizing node's output. It is also
// used by the scheduler when a suspended node resolves on resume.
func DecisionResult(nodeID string, decision *models.Decision) models.NodeResult {
	return models.NodeResult{
		NodeID: nodeID,
		Data: map[string]any{
			"decision_id":  decision.ID,
			"action":       string(decision.Action),
			"status":       string(decision.Status),
			"fraction":     decision.RecommendedFraction,
			"notional_usd": decision.RecommendedNotional,
			"delta_shares": decision.DeltaShares,
		},
		Status:    models.NodeStatusSucceeded,
		Timestamp: time.Now().UTC(),
	}
}

// buildRequest assembles the sizing request from configuration plus the
// candidate item. Bankroll fields are left to the orchestrator's read-once
// portfolio snapshot.
func (n *SizingNode) buildRequest(item map[string]any) models.SizingRequest {
	req := models.SizingRequest{
		Timestamp:         time.Now().UTC(),
		Side:              n.side,
		KellyLambda:       n.lambda,
		ResolutionFeeRate: n.feeRate,
	}

	if item == nil {
		return req
	}

	req.MarketID, _ = item["id"].(string)

	if v, ok := item[n.pWinField].(float64); ok {
		req.PWin = v
	}

	if v, ok := item[n.costField].(float64); ok {
		req.EntryCostPerShare = v
	}

	return req
}

// firstItem returns the first upstream item, scanning inputs in deterministic
// upstream-id order.
func firstItem(inputs map[string]models.NodeResult) map[string]any {
	ids := make([]string, 0, len(inputs))
	for id := range inputs {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	for _, id := range ids {
		for _, item := range inputs[id].Items() {
			if obj, ok := item.(map[string]any); ok {
				return obj
			}
		}
	}

	return nil
}

func parseRules(config map[string]any) (models.SizingRules, error) {
	rules := models.DefaultSizingRules()

	raw, ok := config["rules"].(map[string]any)
	if !ok {
		return rules, nil
	}

	assign := map[string]*float64{
		"max_fraction_per_market":  &rules.MaxFractionPerMarket,
		"absolute_max_fraction":    &rules.AbsoluteMaxFraction,
		"max_notional_per_market":  &rules.MaxNotionalPerMarket,
		"max_category_fraction":    &rules.MaxCategoryFraction,
		"max_active_risk_fraction": &rules.MaxActiveRiskFraction,
		"dust_fraction":            &rules.DustFraction,
		"max_liquidity_fraction":   &rules.MaxLiquidityFraction,
		"lot_size":                 &rules.LotSize,
		"min_order_notional_usd":   &rules.MinOrderNotionalUSD,
		"max_slippage":             &rules.MaxSlippage,
		"drawdown_dampener":        &rules.DrawdownDampener,
		"drawdown_trigger_usd":     &rules.DrawdownTriggerUSD,
	}

	for key, target := range assign {
		v, present := raw[key]
		if !present {
			continue
		}

		f, ok := v.(float64)
		if !ok {
			return rules, fmt.Errorf("rule %q must be a number", key)
		}

		*target = f
	}

	return rules, nil
}
