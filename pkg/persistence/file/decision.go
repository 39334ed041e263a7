package file

import (
	"context"
	"sync"
	"time"

	"github.com/oddsflow/oddsflow/pkg/models"
	"github.com/oddsflow/oddsflow/pkg/persistence"
)

// DecisionRepository stores sizing decisions as one JSON file per decision.
// The optimistic version check is serialized by a process-local mutex; the
// PostgreSQL implementation does the same with a conditional UPDATE.
type DecisionRepository struct {
	root string
	mu   sync.Mutex
}

func (r *DecisionRepository) dir() string {
	return r.root + "/decisions"
}

func (r *DecisionRepository) DecisionByID(_ context.Context, id string) (*models.Decision, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	var decision models.Decision

	err := readJSON(r.dir(), id+".json", &decision, persistence.ErrDecisionNotFound)
	if err != nil {
		return nil, err
	}

	return &decision, nil
}

func (r *DecisionRepository) SaveDecision(_ context.Context, decision *models.Decision) error {
	if err := validateID(decision.ID); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return writeJSON(r.dir(), decision.ID+".json", decision)
}

// UpdateDecision applies a compare-and-swap: the write succeeds only when the
// stored version still equals expectedVersion. On success the version counter
// is incremented and the update timestamp refreshed.
func (r *DecisionRepository) UpdateDecision(ctx context.Context, decision *models.Decision, expectedVersion int) error {
	if err := validateID(decision.ID); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var stored models.Decision

	err := readJSON(r.dir(), decision.ID+".json", &stored, persistence.ErrDecisionNotFound)
	if err != nil {
		return err
	}

	if stored.Version != expectedVersion {
		return &persistence.DecisionError{Op: "Update", DecisionID: decision.ID, Err: persistence.ErrVersionConflict}
	}

	decision.Version = expectedVersion + 1
	decision.UpdatedAt = time.Now().UTC()

	return writeJSON(r.dir(), decision.ID+".json", decision)
}
