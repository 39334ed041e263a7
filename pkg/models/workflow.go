// Package models defines the core domain models for strategy-workflow execution.
package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusDraft       WorkflowStatus = "draft"       // Editable, not executable
	WorkflowStatusPublished   WorkflowStatus = "published"   // Current active, executable
	WorkflowStatusUnpublished WorkflowStatus = "unpublished" // Historical, not executable
)

// Workflow represents a node-based trading strategy. The node/edge definitions
// are owned by the external editor; the engine treats a published workflow as
// immutable for the duration of a run.
type Workflow struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"        validate:"required,min=3"`
	Description string          `json:"description"`
	Status      WorkflowStatus  `json:"status"      validate:"required"`
	Version     int             `json:"version"`
	Nodes       []*WorkflowNode `json:"nodes"`
	Edges       []*Edge         `json:"edges"`
	Variables   map[string]any  `json:"variables,omitempty"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
	Owner       string          `json:"owner"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	PublishedAt *time.Time      `json:"published_at,omitempty"`
}

// Edge is a directed dependency between two nodes: the target consumes the
// source's output. Both endpoints must reference nodes present in the same
// workflow; the validator rejects dangling references.
type Edge struct {
	ID         string `json:"id"`
	SourceNode string `json:"source_node" validate:"required"`
	TargetNode string `json:"target_node" validate:"required"`
}
