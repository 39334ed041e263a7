package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oddsflow/oddsflow/pkg/models"
	"github.com/oddsflow/oddsflow/pkg/persistence"
)

// DecisionRepository stores sizing decisions. The full audit record is kept
// as a JSONB payload; key fields are lifted into columns for querying. The
// optimistic version check rides on a conditional UPDATE.
type DecisionRepository struct {
	db *sql.DB
}

func (r *DecisionRepository) DecisionByID(ctx context.Context, id string) (*models.Decision, error) {
	var payload []byte

	err := r.db.QueryRowContext(ctx, "SELECT payload FROM decisions WHERE id = $1", id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrDecisionNotFound
		}

		return nil, &persistence.DecisionError{Op: "Get", DecisionID: id, Err: err}
	}

	var decision models.Decision

	err = json.Unmarshal(payload, &decision)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal decision %s: %w", id, err)
	}

	return &decision, nil
}

func (r *DecisionRepository) SaveDecision(ctx context.Context, decision *models.Decision) error {
	payload, err := json.Marshal(decision)
	if err != nil {
		return fmt.Errorf("failed to marshal decision: %w", err)
	}

	query := `
		INSERT INTO decisions (id, execution_id, node_id, workflow_id, mode,
market_id, side, status, action, payload, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			action = EXCLUDED.action,
			payload = EXCLUDED.payload,
			version = EXCLUDED.version,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		decision.ID,
		decision.ExecutionID,
		decision.NodeID,
		decision.WorkflowID,
		decision.Mode,
		decision.MarketID,
		decision.Side,
		decision.Status,
		decision.Action,
		payload,
		decision.Version,
		decision.CreatedAt,
		decision.UpdatedAt,
	)
	if err != nil {
		return &persistence.DecisionError{Op: "Save", DecisionID: decision.ID, Err: err}
	}

	return nil
}

// UpdateDecision writes the decision only when the stored version still
// equals expectedVersion. On success the version counter is incremented and
// the update timestamp refreshed; a stale expectedVersion yields
// ErrVersionConflict.
func (r *DecisionRepository) UpdateDecision(ctx context.Context, decision *models.Decision, expectedVersion int) error {
	decision.Version = expectedVersion + 1
	decision.UpdatedAt = time.Now().UTC()

	payload, err := json.Marshal(decision)
	if err != nil {
		return fmt.Errorf("failed to marshal decision: %w", err)
	}

	query := `
		UPDATE decisions SET
			status = $3,
			action = $4,
			payload = $5,
			version = $6,
			updated_at = $7
		WHERE id = $1 AND version = $2
	`

	result, err := r.db.ExecContext(ctx, query,
		decision.ID,
		expectedVersion,
		decision.Status,
		decision.Action,
		payload,
		decision.Version,
		decision.UpdatedAt,
	)
	if err != nil {
		return &persistence.DecisionError{Op: "Update", DecisionID: decision.ID, Err: err}
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		var exists bool

		err := r.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM decisions WHERE id = $1)", decision.ID).Scan(&exists)
		if err != nil {
			return &persistence.DecisionError{Op: "Update", DecisionID: decision.ID, Err: err}
		}

		if !exists {
			return persistence.ErrDecisionNotFound
		}

		return &persistence.DecisionError{Op: "Update", DecisionID: decision.ID, Err: persistence.ErrVersionConflict}
	}

	return nil
}
