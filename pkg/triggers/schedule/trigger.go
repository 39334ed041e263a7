// Package schedule provides a cron trigger for strategies that re-evaluate
// markets on a fixed cadence.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/oddsflow/oddsflow/pkg/protocol"
)

type Trigger struct {
	WorkflowID string
	CronExpr   string
	Enabled    bool

	cron     *cron.Cron
	callback protocol.TriggerCallback
	logger   *slog.Logger
}

func NewTrigger(config map[string]any, logger *slog.Logger) (*Trigger, error) {
	workflowID, _ := config["workflow_id"].(string)
	cronExpr, _ := config["cron"].(string)

	trigger := &Trigger{
		WorkflowID: workflowID,
		CronExpr:   cronExpr,
		Enabled:    true,
		logger: logger.With(
			"module", "schedule_trigger",
			"cron", cronExpr,
			"workflow_id", workflowID,
		),
	}

	err := trigger.Validate()
	if err != nil {
		return nil, err
	}

	return trigger, nil
}

func (t *Trigger) Validate() error {
	if t.WorkflowID == "" {
		return errors.New("schedule trigger workflow_id is required")
	}

	if t.CronExpr == "" {
		return errors.New("schedule trigger cron expression is required")
	}

	if _, err := cron.ParseStandard(t.CronExpr); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	return nil
}

func (t *Trigger) Start(ctx context.Context, callback protocol.TriggerCallback) error {
	if !t.Enabled {
		t.logger.InfoContext(ctx, "schedule trigger is disabled")

		return nil
	}

	t.callback = callback

	t.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	_, err := t.cron.AddFunc(t.CronExpr, t.run)
	if err != nil {
		return fmt.Errorf("failed to add cron job for workflow %s: %w", t.WorkflowID, err)
	}

	t.cron.Start()
	t.logger.InfoContext(ctx, "schedule trigger started")

	return nil
}

func (t *Trigger) run() {
	triggerData := map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	err := t.callback(context.Background(), t.WorkflowID, triggerData)
	if err != nil {
		t.logger.Error("error firing workflow trigger", "error", err)
	}
}

func (t *Trigger) Stop(_ context.Context) error {
	if t.cron != nil {
		t.cron.Stop()
	}

	return nil
}
