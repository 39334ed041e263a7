package protocol

import "context"

// TriggerCallback is invoked when a trigger fires. The callback is expected
// to publish a triggered event or start a run; trigger implementations never
// execute workflows themselves.
type TriggerCallback func(ctx context.Context, workflowID string, triggerData map[string]any) error

// Trigger is a long-running source of workflow runs: a queue consumer, a
// cron schedule, or anything else that decides when a strategy should fire.
type Trigger interface {
	Start(ctx context.Context, callback TriggerCallback) error
	Stop(ctx context.Context) error
}
