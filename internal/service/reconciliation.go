package service

import (
	"context"
	"time"

	"github.com/laia-connect/billing/internal/api/dto"
	"github.com/laia-connect/billing/internal/domain/charge"
	ierr "github.com/laia-connect/billing/internal/errors"
	"github.com/laia-connect/billing/internal/types"
	webhookDto "github.com/laia-connect/billing/internal/webhook/dto"
)

// SettlementNotification is the normalized form of an asynchronous
// settlement event from the payment network. Out-of-order and duplicate
// delivery is expected; applying one must be idempotent.
type SettlementNotification struct {
	// GatewayChargeID is the network's charge reference. Empty for
	// charges whose submission timed out before a reference was known.
	GatewayChargeID string
	// TenantID and BillingCycleDate come from the charge metadata and
	// are the fallback match when no reference is available.
	TenantID         string
	BillingCycleDate *time.Time
	// Outcome is SUCCESS or FAILED; the network never notifies PENDING
	Outcome       types.ChargeOutcome
	FailureReason string
}

// ReconciliationService applies settlement notifications to pending charge
// attempts. It is the only writer that moves an attempt out of PENDING.
type ReconciliationService interface {
	HandleSettlement(ctx context.Context, n *SettlementNotification) (*dto.ReconciliationResponse, error)
}

type reconciliationService struct {
	ServiceParams
	invoiceService InvoiceService
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(params ServiceParams, invoiceService InvoiceService) ReconciliationService {
	return &reconciliationService{
		ServiceParams:  params,
		invoiceService: invoiceService,
	}
}

func (s *reconciliationService) HandleSettlement(ctx context.Context, n *SettlementNotification) (*dto.ReconciliationResponse, error) {
	ctx = types.SetUserID(ctx, types.DefaultUserID)

	if !n.Outcome.IsTerminal() {
		return nil, ierr.NewError("settlement outcome must be terminal").
			WithHintf("Got outcome %s", n.Outcome).
			Mark(ierr.ErrValidation)
	}

	attempt, err := s.resolveAttempt(ctx, n)
	if err != nil {
		return nil, err
	}

	// Replays of an already applied settlement are acknowledged without
	// any state change.
	if attempt.Outcome == n.Outcome {
		return &dto.ReconciliationResponse{
			ChargeAttemptID: attempt.ID,
			Applied:         false,
			Duplicate:       true,
		}, nil
	}

	// Conflicting terminal outcomes never overwrite each other; the
	// discrepancy is surfaced for manual review instead.
	if attempt.Outcome.IsTerminal() {
		s.Logger.Errorw("reconciliation conflict: terminal outcomes disagree",
			"attempt_id", attempt.ID,
			"tenant_id", attempt.TenantID,
			"recorded_outcome", attempt.Outcome,
			"notified_outcome", n.Outcome,
		)
		return &dto.ReconciliationResponse{
			ChargeAttemptID: attempt.ID,
			Applied:         false,
		}, nil
	}

	var failureReason *string
	if n.FailureReason != "" {
		failureReason = &n.FailureReason
	}

	updated, err := s.ChargeRepo.UpdateOutcomeIfCurrent(ctx, attempt.ID, types.ChargeOutcomePending, n.Outcome, failureReason)
	if err != nil {
		return nil, err
	}
	if !updated {
		// Another notification settled the attempt first
		return &dto.ReconciliationResponse{
			ChargeAttemptID: attempt.ID,
			Applied:         false,
			Duplicate:       true,
		}, nil
	}

	attempt.Outcome = n.Outcome
	attempt.ErrorMessage = failureReason

	switch n.Outcome {
	case types.ChargeOutcomeSuccess:
		err = s.applySuccess(ctx, attempt)
	case types.ChargeOutcomeFailed:
		err = s.applyLateFailure(ctx, attempt)
	}
	if err != nil {
		return nil, err
	}

	return &dto.ReconciliationResponse{
		ChargeAttemptID: attempt.ID,
		Applied:         true,
	}, nil
}

// resolveAttempt matches the notification to its attempt: by gateway
// reference first, then by (tenant, cycle) metadata for submissions that
// timed out before the network answered.
func (s *reconciliationService) resolveAttempt(ctx context.Context, n *SettlementNotification) (*charge.Attempt, error) {
	if n.GatewayChargeID != "" {
		attempt, err := s.ChargeRepo.GetByGatewayChargeID(ctx, n.GatewayChargeID)
		if err == nil {
			return attempt, nil
		}
		if !ierr.IsNotFound(err) {
			return nil, err
		}
	}

	if n.TenantID != "" && n.BillingCycleDate != nil {
		attempt, err := s.ChargeRepo.GetByCycle(ctx, n.TenantID, types.BillingCycleDate(*n.BillingCycleDate))
		if err == nil {
			return attempt, nil
		}
		if !ierr.IsNotFound(err) {
			return nil, err
		}
	}

	return nil, ierr.NewError("settlement matches no charge attempt").
		WithHint("Neither the gateway reference nor the metadata resolved an attempt").
		WithReportableDetails(map[string]any{
			"gateway_charge_id": n.GatewayChargeID,
			"tenant_id":         n.TenantID,
		}).
		Mark(ierr.ErrNotFound)
}

// applySuccess records the payment timestamp and issues the invoice the
// optimistic advancement deferred
func (s *reconciliationService) applySuccess(ctx context.Context, attempt *charge.Attempt) error {
	sub, err := s.SubRepo.GetByTenant(ctx, attempt.TenantID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	sub.LastPaymentAt = &now
	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return err
	}

	if _, err := s.invoiceService.CreateForChargeAttempt(ctx, attempt, sub); err != nil {
		return err
	}

	return nil
}

// applyLateFailure suspends the tenant for a charge that failed after
// being optimistically advanced. The billing date is never rolled back.
// Two guards keep stale notifications from suspending a tenant whose
// situation already moved on: a later settled cycle, and the optimistic
// status check itself.
func (s *reconciliationService) applyLateFailure(ctx context.Context, attempt *charge.Attempt) error {
	laterSettled, err := s.ChargeRepo.ExistsNonFailedAfter(ctx, attempt.TenantID, attempt.BillingCycleDate)
	if err != nil {
		return err
	}
	if laterSettled {
		s.Logger.Infow("late failure ignored, a later cycle already settled",
			"attempt_id", attempt.ID,
			"tenant_id", attempt.TenantID,
		)
		return nil
	}

	sub, err := s.SubRepo.GetByTenant(ctx, attempt.TenantID)
	if err != nil {
		return err
	}

	updated, err := s.SubRepo.UpdateStatusIfCurrent(ctx, sub.ID, types.SubscriptionStatusActive, types.SubscriptionStatusSuspended)
	if err != nil {
		return err
	}
	if !updated {
		s.Logger.Infow("late failure suspension skipped, subscription not active",
			"attempt_id", attempt.ID,
			"tenant_id", attempt.TenantID,
			"subscription_status", sub.SubscriptionStatus,
		)
		return nil
	}

	s.Logger.Warnw("subscription suspended by late settlement failure",
		"attempt_id", attempt.ID,
		"tenant_id", attempt.TenantID,
	)

	publishWebhookEvent(ctx, s.Logger, s.WebhookPublisher,
		types.WebhookEventSubscriptionSuspended, sub.TenantID,
		webhookDto.InternalSubscriptionEvent{
			SubscriptionID: sub.ID,
			TenantID:       sub.TenantID,
		})

	return nil
}
