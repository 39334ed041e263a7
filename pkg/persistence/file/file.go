// Package file provides file-based persistence for workflows, executions,
// decisions, and traces. Records are stored as one JSON document per entity,
// which keeps local development and tests free of external services.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oddsflow/oddsflow/pkg/persistence"
)

// Persistence implements persistence.Persistence on the local file system.
type Persistence struct {
	root          string
	workflowRepo  *WorkflowRepository
	executionRepo *ExecutionRepository
	decisionRepo  *DecisionRepository
	traceRepo     *TraceRepository
}

// NewPersistence creates a file persistence layer rooted at the given path.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:          cleanRoot,
		workflowRepo:  &WorkflowRepository{root: cleanRoot},
		executionRepo: &ExecutionRepository{root: cleanRoot},
		decisionRepo:  &DecisionRepository{root: cleanRoot},
		traceRepo:     &TraceRepository{root: cleanRoot},
	}
}

func (fp *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return fp.workflowRepo
}

func (fp *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return fp.executionRepo
}

func (fp *Persistence) DecisionRepository() persistence.DecisionRepository {
	return fp.decisionRepo
}

func (fp *Persistence) TraceRepository() persistence.TraceRepository {
	return fp.traceRepo
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs any necessary cleanup. For file persistence there is none.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// validateID guards file names built from external identifiers against path
// traversal.
func validateID(id string) error {
	if id == "" {
		return errors.New("identifier cannot be empty")
	}

	if strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) {
		return errors.New("identifier contains invalid characters")
	}

	return nil
}

func writeJSON(dir, name string, v any) error {
	err := os.MkdirAll(dir, 0750)
	if err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	err = os.WriteFile(filepath.Join(dir, name), data, 0600)
	if err != nil {
		return fmt.Errorf("failed to write record %s: %w", name, err)
	}

	return nil
}

func readJSON(dir, name string, v any, notFound error) error {
	data, err := os.ReadFile(filepath.Join(dir, name)) // #nosec G304 -- ids are validated
	if err != nil {
		if os.IsNotExist(err) {
			return notFound
		}

		return fmt.Errorf("failed to read record %s: %w", name, err)
	}

	err = json.Unmarshal(data, v)
	if err != nil {
		return fmt.Errorf("failed to unmarshal record %s: %w", name, err)
	}

	return nil
}
