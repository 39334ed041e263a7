package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oddsflow/oddsflow/pkg/models"
	"github.com/oddsflow/oddsflow/pkg/persistence"
)

// TraceRepository stores node traces under executions/<id>/traces, one JSON
// file per node. Saving the same (execution, node) key overwrites.
type TraceRepository struct {
	root string
}

func (r *TraceRepository) dir(executionID string) string {
	return filepath.Join(r.root, "traces", executionID)
}

func (r *TraceRepository) TraceByNode(_ context.Context, executionID, nodeID string) (*models.NodeTrace, error) {
	if err := validateID(executionID); err != nil {
		return nil, err
	}

	if err := validateID(nodeID); err != nil {
		return nil, err
	}

	var trace models.NodeTrace

	err := readJSON(r.dir(executionID), nodeID+".json", &trace, persistence.ErrTraceNotFound)
	if err != nil {
		return nil, err
	}

	return &trace, nil
}

func (r *TraceRepository) TracesByExecution(_ context.Context, executionID string) ([]*models.NodeTrace, error) {
	if err := validateID(executionID); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(r.dir(executionID))
	if err != nil {
		if os.IsNotExist(err) {
			return []*models.NodeTrace{}, nil
		}

		return nil, fmt.Errorf("failed to list traces for execution %s: %w", executionID, err)
	}

	traces := make([]*models.NodeTrace, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		var trace models.NodeTrace

		err := readJSON(r.dir(executionID), entry.Name(), &trace, persistence.ErrTraceNotFound)
		if err != nil {
			return nil, err
		}

		traces = append(traces, &trace)
	}

	return traces, nil
}

func (r *TraceRepository) SaveTrace(_ context.Context, trace *models.NodeTrace) error {
	if err := validateID(trace.ExecutionID); err != nil {
		return err
	}

	if err := validateID(trace.NodeID); err != nil {
		return err
	}

	return writeJSON(r.dir(trace.ExecutionID), trace.NodeID+".json", trace)
}
