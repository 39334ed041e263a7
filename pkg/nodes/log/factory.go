package log

import (
	"context"
	"log/slog"

	"github.com/oddsflow/oddsflow/pkg/models"
	"github.com/oddsflow/oddsflow/pkg/protocol"
)

// LogNodeFactory creates LogNode instances.
type LogNodeFactory struct {
	logger *slog.Logger
}

func NewLogNodeFactory(logger *slog.Logger) protocol.NodeFactory {
	return &LogNodeFactory{logger: logger}
}

func (f *LogNodeFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewLogNode(id, config, f.logger)
}

func (f *LogNodeFactory) ID() string {
	return models.NodeTypeLog
}

func (f *LogNodeFactory) Name() string {
	return "Log"
}

func (f *LogNodeFactory) Description() string {
	return "Logs a message with an input summary and passes the merged items through."
}

func (f *LogNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{
				"type": "string",
			},
			"level": map[string]any{
				"type": "string",
				"enum": []string{"debug", "info", "warn", "error"},
			},
		},
		"required": []string{"message"},
	}
}
