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

// WorkflowRepository stores workflows as one JSON file per workflow id.
type WorkflowRepository struct {
	root string
}

func (r *WorkflowRepository) dir() string {
	return filepath.Join(r.root, "workflows")
}

func (r *WorkflowRepository) Workflows(_ context.Context) ([]*models.Workflow, error) {
	entries, err := os.ReadDir(r.dir())
	if err != nil {
		if os.IsNotExist(err) {
			return []*models.Workflow{}, nil
		}

		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	workflows := make([]*models.Workflow, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		var wf models.Workflow

		err := readJSON(r.dir(), entry.Name(), &wf, persistence.ErrWorkflowNotFound)
		if err != nil {
			return nil, err
		}

		workflows = append(workflows, &wf)
	}

	return workflows, nil
}

func (r *WorkflowRepository) WorkflowByID(_ context.Context, id string) (*models.Workflow, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	var wf models.Workflow

	err := readJSON(r.dir(), id+".json", &wf, persistence.ErrWorkflowNotFound)
	if err != nil {
		return nil, err
	}

	return &wf, nil
}

func (r *WorkflowRepository) SaveWorkflow(_ context.Context, workflow *models.Workflow) error {
	if err := validateID(workflow.ID); err != nil {
		return err
	}

	return writeJSON(r.dir(), workflow.ID+".json", workflow)
}

func (r *WorkflowRepository) DeleteWorkflow(_ context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}

	err := os.Remove(filepath.Join(r.dir(), id+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return persistence.ErrWorkflowNotFound
		}

		return fmt.Errorf("failed to delete workflow %s: %w", id, err)
	}

	return nil
}
