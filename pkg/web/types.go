package web

import "github.com/oddsflow/oddsflow/pkg/models"

// CreateWorkflowRequest creates a draft workflow. Nodes and edges come from
// the external editor as part of the definition.
type CreateWorkflowRequest struct {
	Name        string                 `json:"name"        validate:"required,min=3"`
	Description string                 `json:"description"`
	Nodes       []*models.WorkflowNode `json:"nodes"`
	Edges       []*models.Edge         `json:"edges"`
	Variables   map[string]any         `json:"variables"`
	Metadata    map[string]any         `json:"metadata"`
	Owner       string                 `json:"owner"`
}

// UpdateWorkflowRequest applies a partial update to a draft workflow. Nil
// fields stay untouched.
type UpdateWorkflowRequest struct {
	Name        *string                `json:"name"        validate:"omitempty,min=3"`
	Description *string                `json:"description"`
	Nodes       []*models.WorkflowNode `json:"nodes"`
	Edges       []*models.Edge         `json:"edges"`
	Variables   map[string]any         `json:"variables"`
	Metadata    map[string]any         `json:"metadata"`
}

// TriggerWorkflowRequest starts an asynchronous run of a published workflow.
type TriggerWorkflowRequest struct {
	Data map[string]any `json:"data"`
}

// ApproveDecisionRequest approves a pending sizing decision. ExpectedVersion
// must match the version the reviewer last read.
type ApproveDecisionRequest struct {
	ExpectedVersion  int     `json:"expected_version"`
	OverrideNotional float64 `json:"override_notional_usd" validate:"omitempty,gt=0"`
	ApprovedBy       string  `json:"approved_by"`
}

// RejectDecisionRequest rejects a pending sizing decision.
type RejectDecisionRequest struct {
	ExpectedVersion int    `json:"expected_version"`
	Reason          string `json:"reason" validate:"required"`
	RejectedBy      string `json:"rejected_by"`
}

// NodeTypeInfo describes one registered node type for the editor.
type NodeTypeInfo struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Schema      map[string]any `json:"schema"`
}
