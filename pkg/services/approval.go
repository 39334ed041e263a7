package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/oddsflow/oddsflow/pkg/eventbus"
	"github.com/oddsflow/oddsflow/pkg/events"
	"github.com/oddsflow/oddsflow/pkg/models"
	"github.com/oddsflow/oddsflow/pkg/persistence"
	"github.com/oddsflow/oddsflow/pkg/protocol"
)

// ApproveRequest approves a pending decision. ExpectedVersion is the version
// the caller last read; a stale version is rejected so two reviewers cannot
// both act on the same decision.
type ApproveRequest struct {
	DecisionID       string
	ExpectedVersion  int
	OverrideNotional float64 // optional, shrink-only
	ApprovedBy       string
}

// RejectRequest rejects a pending decision with a mandatory reason.
type RejectRequest struct {
	DecisionID      string
	ExpectedVersion int
	Reason          string
	RejectedBy      string
}

// Approval drives the decision state machine for human reviewers. Every
// transition goes through the optimistic-version compare-and-swap in the
// decision repository.
type Approval struct {
	logger    *slog.Logger
	decisions persistence.DecisionRepository
	trades    protocol.TradeExecutor
	bus       eventbus.EventPublisher
}

func NewApproval(logger *slog.Logger, decisions persistence.DecisionRepository, trades protocol.TradeExecutor, bus eventbus.EventPublisher) *Approval {
	return &Approval{
		logger:    logger.With("module", "approval_service"),
		decisions: decisions,
		trades:    trades,
		bus:       bus,
	}
}

// Approve moves a pending decision to approved, submits its order, and marks
// it executed. The trade submits with the approved notional, which may be an
// operator override smaller than the recommendation.
func (a *Approval) Approve(ctx context.Context, req ApproveRequest) (*models.Decision, error) {
	decision, err := a.decisions.DecisionByID(ctx, req.DecisionID)
	if err != nil {
		return nil, err
	}

	if !decision.Status.CanTransitionTo(models.DecisionStatusApproved) {
		return nil, &ServiceError{
			Op:      "Approve",
			Code:    "DECISION_NOT_PENDING",
			Message: fmt.Sprintf("decision %s is %s", decision.ID, decision.Status),
			Err:     ErrDecisionNotPending,
		}
	}

	notional := decision.RecommendedNotional
	if req.OverrideNotional != 0 {
		if req.OverrideNotional < 0 || req.OverrideNotional > decision.RecommendedNotional {
			return nil, &ServiceError{
				Op:   "Approve",
				Code: "INVALID_OVERRIDE",
				Err:  ErrInvalidOverride,
			}
		}

		notional = req.OverrideNotional
	}

	decision.Status = models.DecisionStatusApproved
	decision.ActualNotional = notional

	err = a.decisions.UpdateDecision(ctx, decision, req.ExpectedVersion)
	if err != nil {
		return nil, err
	}

	a.logger.InfoContext(ctx, "decision approved",
		"decision_id", decision.ID, "approved_by", req.ApprovedBy, "notional_usd", notional)

	a.publish(ctx, decision.WorkflowID, events.DecisionApproved{
		BaseEvent:   events.NewBaseEvent(events.DecisionApprovedEvent, decision.WorkflowID),
		ExecutionID: decision.ExecutionID,
		DecisionID:  decision.ID,
		ApprovedBy:  req.ApprovedBy,
		NotionalUSD: notional,
	})

	err = a.execute(ctx, decision)
	if err != nil {
		return nil, err
	}

	a.publish(ctx, decision.WorkflowID, events.WorkflowExecutionResumed{
		BaseEvent:   events.NewBaseEvent(events.WorkflowExecutionResumedEvent, decision.WorkflowID),
		ExecutionID: decision.ExecutionID,
		DecisionID:  decision.ID,
		ResumedBy:   req.ApprovedBy,
	})

	return decision, nil
}

// Reject moves a pending decision to rejected. The suspended execution still
// resumes so independent branches can finish.
func (a *Approval) Reject(ctx context.Context, req RejectRequest) (*models.Decision, error) {
	if req.Reason == "" {
		return nil, &ServiceError{
			Op:   "Reject",
			Code: "REASON_REQUIRED",
			Err:  ErrReasonRequired,
		}
	}

	decision, err := a.decisions.DecisionByID(ctx, req.DecisionID)
	if err != nil {
		return nil, err
	}

	if !decision.Status.CanTransitionTo(models.DecisionStatusRejected) {
		return nil, &ServiceError{
			Op:      "Reject",
			Code:    "DECISION_NOT_PENDING",
			Message: fmt.Sprintf("decision %s is %s", decision.ID, decision.Status),
			Err:     ErrDecisionNotPending,
		}
	}

	decision.Status = models.DecisionStatusRejected
	decision.RejectReason = req.Reason

	err = a.decisions.UpdateDecision(ctx, decision, req.ExpectedVersion)
	if err != nil {
		return nil, err
	}

	a.logger.InfoContext(ctx, "decision rejected",
		"decision_id", decision.ID, "rejected_by", req.RejectedBy, "reason", req.Reason)

	a.publish(ctx, decision.WorkflowID, events.DecisionRejected{
		BaseEvent:   events.NewBaseEvent(events.DecisionRejectedEvent, decision.WorkflowID),
		ExecutionID: decision.ExecutionID,
		DecisionID:  decision.ID,
		RejectedBy:  req.RejectedBy,
		Reason:      req.Reason,
	})

	a.publish(ctx, decision.WorkflowID, events.WorkflowExecutionResumed{
		BaseEvent:   events.NewBaseEvent(events.WorkflowExecutionResumedEvent, decision.WorkflowID),
		ExecutionID: decision.ExecutionID,
		DecisionID:  decision.ID,
		ResumedBy:   req.RejectedBy,
	})

	return decision, nil
}

// execute submits the approved order and records the trade id. A submit
// failure leaves the decision approved so the operator can retry.
func (a *Approval) execute(ctx context.Context, decision *models.Decision) error {
	if a.trades == nil {
		return fmt.Errorf("decision %s approved but no trade executor is configured", decision.ID)
	}

	tradeID, err := a.trades.Submit(ctx, protocol.TradeOrder{
		MarketID:    decision.MarketID,
		Side:        decision.Side,
		Notional:    decision.ActualNotional,
		MaxSlippage: decision.MaxSlippage,
	})
	if err != nil {
		return &protocol.ExternalServiceError{Service: "trade_executor", Err: err}
	}

	decision.Status = models.DecisionStatusExecuted
	decision.TradeID = tradeID

	err = a.decisions.UpdateDecision(ctx, decision, decision.Version)
	if err != nil {
		return err
	}

	a.publish(ctx, decision.WorkflowID, events.DecisionExecuted{
		BaseEvent:   events.NewBaseEvent(events.DecisionExecutedEvent, decision.WorkflowID),
		ExecutionID: decision.ExecutionID,
		DecisionID:  decision.ID,
		TradeID:     tradeID,
	})

	return nil
}

func (a *Approval) publish(ctx context.Context, workflowID string, event eventbus.Event) {
	if a.bus == nil {
		return
	}

	err := a.bus.Publish(ctx, workflowID, event)
	if err != nil {
		a.logger.WarnContext(ctx, "failed to publish event", "event_type", event.GetType(), "error", err)
	}
}
