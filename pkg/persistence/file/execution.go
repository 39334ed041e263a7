package file

import (
	"context"

	"github.com/oddsflow/oddsflow/pkg/models"
	"github.com/oddsflow/oddsflow/pkg/persistence"
)

// ExecutionRepository stores execution contexts, including suspended runs
// waiting on an approval, as one JSON file per execution id.
type ExecutionRepository struct {
	root string
}

func (r *ExecutionRepository) dir() string {
	return r.root + "/executions"
}

func (r *ExecutionRepository) ExecutionByID(_ context.Context, id string) (*models.ExecutionContext, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	var execCtx models.ExecutionContext

	err := readJSON(r.dir(), id+".json", &execCtx, persistence.ErrExecutionNotFound)
	if err != nil {
		return nil, err
	}

	return &execCtx, nil
}

func (r *ExecutionRepository) SaveExecution(_ context.Context, execCtx *models.ExecutionContext) error {
	if err := validateID(execCtx.ID); err != nil {
		return err
	}

	return writeJSON(r.dir(), execCtx.ID+".json", execCtx)
}
