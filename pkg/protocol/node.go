// Package protocol defines the interfaces and contracts for pluggable
// strategy nodes and the external collaborators they consume.
package protocol

import (
	"context"
	"fmt"

	"github.com/oddsflow/oddsflow/pkg/models"
)

// Node is one executable unit of a strategy workflow. Inputs arrive as a map
// keyed by upstream node id; every predecessor has resolved before Execute is
// called. The returned result is recorded immutably in the execution context.
type Node interface {
	// ID returns the node instance id.
	ID() string

	// Type returns the node type tag.
	Type() string

	// Execute runs the node against its upstream outputs.
	Execute(ctx context.Context, execCtx *models.ExecutionContext, inputs map[string]models.NodeResult) (models.NodeResult, error)
}

// NodeFactory creates node instances and provides metadata about the node type.
type NodeFactory interface {
	// Create creates a new node instance with the given configuration.
	Create(ctx context.Context, id string, config map[string]any) (Node, error)

	// ID returns the unique identifier for this node type.
	ID() string

	// Name returns the human-readable name for this node type.
	Name() string

	// Description returns a description of what this node does.
	Description() string

	// Schema returns the JSON schema for configuring this node.
	Schema() map[string]any
}

// NodeExecutionError scopes a failure to a single node: the node is marked
// failed, its descendants are skipped, and the run completes with partial
// results.
type NodeExecutionError struct {
	NodeID   string
	NodeType string
	Err      error
}

func (e *NodeExecutionError) Error() string {
	return fmt.Sprintf("node %s (%s) failed: %v", e.NodeID, e.NodeType, e.Err)
}

func (e *NodeExecutionError) Unwrap() error {
	return e.Err
}
