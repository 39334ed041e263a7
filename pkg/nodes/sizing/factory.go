package sizing

import (
	"context"

	"github.com/oddsflow/oddsflow/pkg/models"
	"github.com/oddsflow/oddsflow/pkg/orchestrator"
	"github.com/oddsflow/oddsflow/pkg/protocol"
)

// SizingNodeFactory creates SizingNode instances bound to the orchestrator.
type SizingNodeFactory struct {
	orchestrator *orchestrator.Orchestrator
}

func NewSizingNodeFactory(orch *orchestrator.Orchestrator) protocol.NodeFactory {
	return &SizingNodeFactory{orchestrator: orch}
}

func (f *SizingNodeFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewSizingNode(id, config, f.orchestrator)
}

func (f *SizingNodeFactory) ID() string {
	return models.NodeTypeSizing
}

func (f *SizingNodeFactory) Name() string {
	return "Position Sizing"
}

func (f *SizingNodeFactory) Description() string {
	return "Computes a fractional-Kelly position recommendation for the top upstream market and manages the approval state machine."
}

func (f *SizingNodeFactory) Schema() map[string]any {
	ruleNumber := map[string]any{"type": "number", "minimum": 0}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"mode": map[string]any{
				"type": "string",
				"enum": []string{string(models.ModeAutonomous), string(models.ModeApprovalRequired)},
			},
			"side": map[string]any{
				"type": "string",
				"enum": []string{string(models.SideYes), string(models.SideNo)},
			},
			"fractional_kelly_lambda": map[string]any{
				"type":             "number",
				"exclusiveMinimum": 0,
				"maximum":          1,
			},
			"resolution_fee_rate": map[string]any{
				"type":    "number",
				"minimum": 0,
				"maximum": 1,
			},
			"p_win_field": map[string]any{
				"type":        "string",
				"description": "Item field carrying the win probability. Defaults to \"p_win\".",
			},
			"entry_cost_field": map[string]any{
				"type":        "string",
				"description": "Item field carrying the entry cost per share. Defaults to \"odds\".",
			},
			"rules": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"max_fraction_per_market":  ruleNumber,
					"absolute_max_fraction":    ruleNumber,
					"max_notional_per_market":  ruleNumber,
					"max_category_fraction":    ruleNumber,
					"max_active_risk_fraction": ruleNumber,
					"dust_fraction":            ruleNumber,
					"max_liquidity_fraction":   ruleNumber,
					"lot_size":                 ruleNumber,
					"min_order_notional_usd":   ruleNumber,
					"max_slippage":             ruleNumber,
					"drawdown_dampener":        ruleNumber,
					"drawdown_trigger_usd":     ruleNumber,
				},
			},
		},
		"required": []string{"fractional_kelly_lambda"},
	}
}
