// Package log provides a logging node for observing item flow mid-workflow.
package log

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/oddsflow/oddsflow/pkg/models"
)

// LogNode logs a message plus a summary of its inputs and passes the merged
// item collection through unchanged.
type LogNode struct {
	id      string
	message string
	level   string
	logger  *slog.Logger
}

func NewLogNode(id string, config map[string]any, logger *slog.Logger) (*LogNode, error) {
	message, ok := config["message"].(string)
	if !ok {
		return nil, errors.New("missing required field 'message'")
	}

	level := "info"
	if lvl, ok := config["level"].(string); ok && lvl != "" {
		level = lvl
	}

	return &LogNode{
		id:      id,
		message: message,
		level:   level,
		logger:  logger.With("node_id", id, "node_type", models.NodeTypeLog),
	}, nil
}

func (n *LogNode) ID() string {
	return n.id
}

func (n *LogNode) Type() string {
	return models.NodeTypeLog
}

func (n *LogNode) Execute(ctx context.Context, execCtx *models.ExecutionContext, inputs map[string]models.NodeResult) (models.NodeResult, error) {
	items := mergeItems(inputs)

	attrs := []any{
		"execution_id", execCtx.ID,
		"inputs", len(inputs),
		"items", len(items),
	}

	switch n.level {
	case "debug":
		n.logger.DebugContext(ctx, n.message, attrs...)
	case "warn":
		n.logger.WarnContext(ctx, n.message, attrs...)
	case "error":
		n.logger.ErrorContext(ctx, n.message, attrs...)
	default:
		n.logger.InfoContext(ctx, n.message, attrs...)
	}

	return models.NodeResult{
		NodeID: n.id,
		Data: map[string]any{
			"items":   items,
			"message": n.message,
			"level":   n.level,
		},
		Status:    models.NodeStatusSucceeded,
		Timestamp: time.Now().UTC(),
	}, nil
}

func mergeItems(inputs map[string]models.NodeResult) []any {
	ids := make([]string, 0, len(inputs))
	for id := range inputs {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	var items []any
	for _, id := range ids {
		items = append(items, inputs[id].Items()...)
	}

	return items
}
