package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/oddsflow/oddsflow/pkg/models"
	"github.com/oddsflow/oddsflow/pkg/persistence"
)

// ExecutionRepository stores execution contexts. The per-node maps and the
// suspension marker are kept as JSONB so a suspended run can be rehydrated
// unchanged after a process restart.
type ExecutionRepository struct {
	db *sql.DB
}

func (r *ExecutionRepository) ExecutionByID(ctx context.Context, id string) (*models.ExecutionContext, error) {
	query := `
		SELECT
			id
		  , workflow_id
		  , status
		  , trigger_data
		  , variables
		  , node_results
		  , node_statuses
		  , suspension
		  , error_message
		  , metadata
		  , started_at
		  , finished_at
		FROM execution_contexts
		WHERE id = $1
	`

	var (
		execCtx      models.ExecutionContext
		triggerJSON  []byte
		varsJSON     []byte
		resultsJSON  []byte
		statusesJSON []byte
		suspendJSON  []byte
		metadataJSON []byte
		errorMessage sql.NullString
	)

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&execCtx.ID,
		&execCtx.WorkflowID,
		&execCtx.Status,
		&triggerJSON,
		&varsJSON,
		&resultsJSON,
		&statusesJSON,
		&suspendJSON,
		&errorMessage,
		&metadataJSON,
		&execCtx.StartedAt,
		&execCtx.FinishedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrExecutionNotFound
		}

		return nil, &persistence.ExecutionError{Op: "Get", ExecutionID: id, Err: err}
	}

	execCtx.Error = errorMessage.String

	fields := []struct {
		name   string
		data   []byte
		target any
	}{
		{"trigger data", triggerJSON, &execCtx.TriggerData},
		{"variables", varsJSON, &execCtx.Variables},
		{"node results", resultsJSON, &execCtx.NodeResults},
		{"node statuses", statusesJSON, &execCtx.NodeStatuses},
		{"suspension", suspendJSON, &execCtx.Suspension},
		{"metadata", metadataJSON, &execCtx.Metadata},
	}

	for _, field := range fields {
		if field.data == nil {
			continue
		}

		err := json.Unmarshal(field.data, field.target)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution %s: %w", field.name, err)
		}
	}

	return &execCtx, nil
}

func (r *ExecutionRepository) SaveExecution(ctx context.Context, execCtx *models.ExecutionContext) error {
	triggerJSON, err := json.Marshal(execCtx.TriggerData)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger data: %w", err)
	}

	varsJSON, err := json.Marshal(execCtx.Variables)
	if err != nil {
		return fmt.Errorf("failed to marshal variables: %w", err)
	}

	resultsJSON, err := json.Marshal(execCtx.NodeResults)
	if err != nil {
		return fmt.Errorf("failed to marshal node results: %w", err)
	}

	statusesJSON, err := json.Marshal(execCtx.NodeStatuses)
	if err != nil {
		return fmt.Errorf("failed to marshal node statuses: %w", err)
	}

	metadataJSON, err := json.Marshal(execCtx.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	var suspendJSON []byte
	if execCtx.Suspension != nil {
		suspendJSON, err = json.Marshal(execCtx.Suspension)
		if err != nil {
			return fmt.Errorf("failed to marshal suspension: %w", err)
		}
	}

	query := `
		INSERT INTO execution_contexts (id, workflow_id, status, trigger_data,
variables, node_results, node_statuses, suspension, error_message, metadata, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			trigger_data = EXCLUDED.trigger_data,
			variables = EXCLUDED.variables,
			node_results = EXCLUDED.node_results,
			node_statuses = EXCLUDED.node_statuses,
			suspension = EXCLUDED.suspension,
			error_message = EXCLUDED.error_message,
			metadata = EXCLUDED.metadata,
			finished_at = EXCLUDED.finished_at
	`

	_, err = r.db.ExecContext(ctx, query,
		execCtx.ID,
		execCtx.WorkflowID,
		execCtx.Status,
		triggerJSON,
		varsJSON,
		resultsJSON,
		statusesJSON,
		suspendJSON,
		nullableString(execCtx.Error),
		metadataJSON,
		execCtx.StartedAt,
		execCtx.FinishedAt,
	)
	if err != nil {
		return &persistence.ExecutionError{Op: "Save", ExecutionID: execCtx.ID, Err: err}
	}

	return nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
