package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/oddsflow/oddsflow/pkg/graph"
	"github.com/oddsflow/oddsflow/pkg/models"
	"github.com/oddsflow/oddsflow/pkg/persistence"
)

// Repository manages workflow definitions and their publish lifecycle:
// draft -> published -> unpublished. Only drafts are editable and only
// published workflows run.
type Repository struct {
	workflows persistence.WorkflowRepository
	validate  *validator.Validate
}

func NewRepository(workflows persistence.WorkflowRepository) *Repository {
	return &Repository{
		workflows: workflows,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (r *Repository) FetchAll(ctx context.Context) ([]*models.Workflow, error) {
	return r.workflows.Workflows(ctx)
}

func (r *Repository) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	return r.workflows.WorkflowByID(ctx, id)
}

func (r *Repository) Create(ctx context.Context, wf *models.Workflow) (*models.Workflow, error) {
	if wf.ID == "" {
		wf.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	wf.Status = models.WorkflowStatusDraft
	wf.Version = 0
	wf.CreatedAt = now
	wf.UpdatedAt = now
	wf.PublishedAt = nil

	err := r.validate.Struct(wf)
	if err != nil {
		return nil, fmt.Errorf("invalid workflow: %w", err)
	}

	err = r.workflows.SaveWorkflow(ctx, wf)
	if err != nil {
		return nil, err
	}

	return wf, nil
}

func (r *Repository) Update(ctx context.Context, id string, wf *models.Workflow) (*models.Workflow, error) {
	existing, err := r.workflows.WorkflowByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if existing.Status != models.WorkflowStatusDraft {
		return nil, fmt.Errorf("workflow %s is %s, only drafts are editable", id, existing.Status)
	}

	wf.ID = id
	wf.Status = existing.Status
	wf.Version = existing.Version
	wf.CreatedAt = existing.CreatedAt
	wf.UpdatedAt = time.Now().UTC()
	wf.PublishedAt = existing.PublishedAt

	err = r.validate.Struct(wf)
	if err != nil {
		return nil, fmt.Errorf("invalid workflow: %w", err)
	}

	err = r.workflows.SaveWorkflow(ctx, wf)
	if err != nil {
		return nil, err
	}

	return wf, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	existing, err := r.workflows.WorkflowByID(ctx, id)
	if err != nil {
		return err
	}

	if existing.Status == models.WorkflowStatusPublished {
		return fmt.Errorf("workflow %s is published, unpublish it before deleting", id)
	}

	return r.workflows.DeleteWorkflow(ctx, id)
}

// Publish validates the workflow graph and makes the workflow executable.
// Publishing bumps the version, so executions always reference the graph
// they actually ran against.
func (r *Repository) Publish(ctx context.Context, id string) (*models.Workflow, error) {
	wf, err := r.workflows.WorkflowByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if wf.Status == models.WorkflowStatusPublished {
		return nil, fmt.Errorf("workflow %s is already published", id)
	}

	_, err = graph.Validate(wf.Nodes, wf.Edges)
	if err != nil {
		return nil, fmt.Errorf("workflow %s graph is invalid: %w", id, err)
	}

	now := time.Now().UTC()
	wf.Status = models.WorkflowStatusPublished
	wf.Version++
	wf.UpdatedAt = now
	wf.PublishedAt = &now

	err = r.workflows.SaveWorkflow(ctx, wf)
	if err != nil {
		return nil, err
	}

	return wf, nil
}

// Unpublish retires a published workflow. It keeps its version history and
// can be published again later.
func (r *Repository) Unpublish(ctx context.Context, id string) (*models.Workflow, error) {
	wf, err := r.workflows.WorkflowByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if wf.Status != models.WorkflowStatusPublished {
		return nil, fmt.Errorf("workflow %s is %s, not published", id, wf.Status)
	}

	wf.Status = models.WorkflowStatusUnpublished
	wf.UpdatedAt = time.Now().UTC()

	err = r.workflows.SaveWorkflow(ctx, wf)
	if err != nil {
		return nil, err
	}

	return wf, nil
}

// FetchPublished returns only published, executable workflows.
func (r *Repository) FetchPublished(ctx context.Context) ([]*models.Workflow, error) {
	all, err := r.workflows.Workflows(ctx)
	if err != nil {
		return nil, err
	}

	published := make([]*models.Workflow, 0)

	for _, wf := range all {
		if wf.Status == models.WorkflowStatusPublished {
			published = append(published, wf)
		}
	}

	return published, nil
}
