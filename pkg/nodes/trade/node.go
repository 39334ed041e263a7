// Package trade provides the node that submits an approved decision's order
// to the trade execution collaborator.
package trade

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/oddsflow/oddsflow/pkg/models"
	"github.com/oddsflow/oddsflow/pkg/persistence"
	"github.com/oddsflow/oddsflow/pkg/protocol"
)

// TradeNode acts on the decision produced by an upstream sizing node. An
// already-executed decision passes through; an approved decision that has no
// trade yet is submitted here. HOLD decisions pass through untouched.
type TradeNode struct {
	id        string
	executor  protocol.TradeExecutor
	decisions persistence.DecisionRepository
}

func NewTradeNode(id string, executor protocol.TradeExecutor, decisions persistence.DecisionRepository) (*TradeNode, error) {
	if executor == nil {
		return nil, fmt.Errorf("node %s: trade executor is not configured", id)
	}

	return &TradeNode{id: id, executor: executor, decisions: decisions}, nil
}

func (n *TradeNode) ID() string {
	return n.id
}

func (n *TradeNode) Type() string {
	return models.NodeTypeTrade
}

func (n *TradeNode) Execute(ctx context.Context, _ *models.ExecutionContext, inputs map[string]models.NodeResult) (models.NodeResult, error) {
	decisionID := upstreamDecisionID(inputs)
	if decisionID == "" {
		return models.NodeResult{}, &protocol.NodeExecutionError{
			NodeID:   n.id,
			NodeType: n.Type(),
			Err:      fmt.Errorf("no upstream decision to execute"),
		}
	}

	// The recorded node output may predate an approval, so the decision is
	// re-read rather than trusted from the upstream snapshot.
	decision, err := n.decisions.DecisionByID(ctx, decisionID)
	if err != nil {
		return models.NodeResult{}, &protocol.NodeExecutionError{
			NodeID:   n.id,
			NodeType: n.Type(),
			Err:      fmt.Errorf("failed to load decision %s: %w", decisionID, err),
		}
	}

	switch {
	case decision.Action == models.ActionHold:
		return n.result(decision, "nothing to trade"), nil

	case decision.Status == models.DecisionStatusExecuted:
		return n.result(decision, "already executed"), nil

	case decision.Status == models.DecisionStatusRejected:
		return n.result(decision, "decision rejected"), nil

	case decision.Status != models.DecisionStatusApproved:
		return models.NodeResult{}, &protocol.NodeExecutionError{
			NodeID:   n.id,
			NodeType: n.Type(),
			Err:      fmt.Errorf("decision %s is %s, not approved", decision.ID, decision.Status),
		}
	}

	tradeID, err := n.executor.Submit(ctx, protocol.TradeOrder{
		MarketID:    decision.MarketID,
		Side:        decision.Side,
		Notional:    decision.ActualNotional,
		MaxSlippage: decision.MaxSlippage,
	})
	if err != nil {
		return models.NodeResult{}, &protocol.NodeExecutionError{
			NodeID:   n.id,
			NodeType: n.Type(),
			Err:      &protocol.ExternalServiceError{Service: "trade_executor", Err: err},
		}
	}

	expectedVersion := decision.Version
	decision.Status = models.DecisionStatusExecuted
	decision.TradeID = tradeID

	err = n.decisions.UpdateDecision(ctx, decision, expectedVersion)
	if err != nil {
		return models.NodeResult{}, &protocol.NodeExecutionError{
			NodeID:   n.id,
			NodeType: n.Type(),
			Err:      fmt.Errorf("failed to mark decision %s executed: %w", decision.ID, err),
		}
	}

	return n.result(decision, "submitted"), nil
}

func (n *TradeNode) result(decision *models.Decision, note string) models.NodeResult {
	return models.NodeResult{
		NodeID: n.id,
		Data: map[string]any{
			"decision_id": decision.ID,
			"status":      string(decision.Status),
			"action":      string(decision.Action),
			"trade_id":    decision.TradeID,
			"note":        note,
		},
		Status:    models.NodeStatusSucceeded,
		Timestamp: time.Now().UTC(),
	}
}

// upstreamDecisionID finds the decision id in the upstream outputs, scanning
// in deterministic upstream-id order.
func upstreamDecisionID(inputs map[string]models.NodeResult) string {
	ids := make([]string, 0, len(inputs))
	for id := range inputs {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	for _, id := range ids {
		if decisionID, ok := inputs[id].Data["decision_id"].(string); ok && decisionID != "" {
			return decisionID
		}
	}

	return ""
}
