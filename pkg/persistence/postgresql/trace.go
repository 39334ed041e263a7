package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/oddsflow/oddsflow/pkg/models"
	"github.com/oddsflow/oddsflow/pkg/persistence"
)

// TraceRepository stores node traces, one row per (execution, node). Saving
// the same key replaces the previous trace.
type TraceRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *TraceRepository) TraceByNode(ctx context.Context, executionID, nodeID string) (*models.NodeTrace, error) {
	var payload []byte

	query := "SELECT trace FROM node_traces WHERE execution_id = $1 AND node_id = $2"

	err := r.db.QueryRowContext(ctx, query, executionID, nodeID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrTraceNotFound
		}

		return nil, fmt.Errorf("failed to query trace %s/%s: %w", executionID, nodeID, err)
	}

	var trace models.NodeTrace

	err = json.Unmarshal(payload, &trace)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal trace %s/%s: %w", executionID, nodeID, err)
	}

	return &trace, nil
}

func (r *TraceRepository) TracesByExecution(ctx context.Context, executionID string) ([]*models.NodeTrace, error) {
	query := "SELECT trace FROM node_traces WHERE execution_id = $1 ORDER BY captured_at"

	rows, err := r.db.QueryContext(ctx, query, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query traces for execution %s: %w", executionID, err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	traces := make([]*models.NodeTrace, 0)

	for rows.Next() {
		var payload []byte

		err := rows.Scan(&payload)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trace: %w", err)
		}

		var trace models.NodeTrace

		err = json.Unmarshal(payload, &trace)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal trace: %w", err)
		}

		traces = append(traces, &trace)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating traces: %w", err)
	}

	return traces, nil
}

func (r *TraceRepository) SaveTrace(ctx context.Context, trace *models.NodeTrace) error {
	payload, err := json.Marshal(trace)
	if err != nil {
		return fmt.Errorf("failed to marshal trace: %w", err)
	}

	query := `
		INSERT INTO node_traces (execution_id, node_id, node_type, trace, captured_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (execution_id, node_id) DO UPDATE SET
			node_type = EXCLUDED.node_type,
			trace = EXCLUDED.trace,
			captured_at = EXCLUDED.captured_at
	`

	_, err = r.db.ExecContext(ctx, query,
		trace.ExecutionID,
		trace.NodeID,
		trace.NodeType,
		payload,
		trace.CapturedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save trace %s/%s: %w", trace.ExecutionID, trace.NodeID, err)
	}

	return nil
}
