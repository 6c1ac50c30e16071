package service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/laia-connect/billing/internal/api/dto"
	"github.com/laia-connect/billing/internal/domain/charge"
	"github.com/laia-connect/billing/internal/domain/subscription"
	ierr "github.com/laia-connect/billing/internal/errors"
	"github.com/laia-connect/billing/internal/gateway"
	"github.com/laia-connect/billing/internal/idempotency"
	"github.com/laia-connect/billing/internal/types"
	webhookDto "github.com/laia-connect/billing/internal/webhook/dto"
	"github.com/sourcegraph/conc/pool"
)

// BillingService executes the recurring charge cycle: select due tenants,
// charge each one through the gateway, record the attempt, then advance or
// suspend the subscription. Tenants are independent; one tenant's failure
// never stops the run.
type BillingService interface {
	RunBillingCycle(ctx context.Context) (*dto.BillingRunResponse, error)
}

type billingService struct {
	ServiceParams
	invoiceService InvoiceService
	idempotency    *idempotency.Generator
}

// NewBillingService creates a new billing scheduler service
func NewBillingService(params ServiceParams, invoiceService InvoiceService) BillingService {
	return &billingService{
		ServiceParams:  params,
		invoiceService: invoiceService,
		idempotency:    idempotency.NewGenerator(),
	}
}

func (s *billingService) RunBillingCycle(ctx context.Context) (*dto.BillingRunResponse, error) {
	// Scheduler writes run under the system identity
	ctx = types.SetUserID(ctx, types.DefaultUserID)

	asOf := time.Now().UTC()

	subs, err := s.SubRepo.ListDue(ctx, asOf)
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("billing run started",
		"as_of", asOf,
		"due_subscriptions", len(subs),
	)

	workers := s.Config.Billing.WorkerCount
	if workers <= 0 {
		workers = 1
	}

	p := pool.NewWithResults[*dto.BillingRunItem]().WithMaxGoroutines(workers)
	for _, sub := range subs {
		sub := sub
		p.Go(func() *dto.BillingRunItem {
			return s.processTenant(ctx, sub)
		})
	}
	items := p.Wait()

	resp := &dto.BillingRunResponse{
		RunAt: asOf,
		Total: len(items),
		Items: items,
	}
	for _, item := range items {
		switch {
		case item.Skipped:
			resp.Skipped++
		case item.Outcome == types.ChargeOutcomeSuccess:
			resp.Succeeded++
		case item.Outcome == types.ChargeOutcomePending:
			resp.Pending++
		default:
			resp.Failed++
		}
	}

	s.Logger.Infow("billing run finished",
		"total", resp.Total,
		"succeeded", resp.Succeeded,
		"pending", resp.Pending,
		"failed", resp.Failed,
		"skipped", resp.Skipped,
	)

	return resp, nil
}

// processTenant runs one tenant's cycle end to end. Any returned item with
// Skipped set means the (tenant, cycle) slot was already settled elsewhere.
func (s *billingService) processTenant(ctx context.Context, sub *subscription.Subscription) *dto.BillingRunItem {
	// The cycle is keyed by the scheduled billing date, not the run date:
	// an overdue tenant, or a cycle left open by transient exhaustion,
	// keeps the same (tenant, cycle) slot and the same gateway idempotency
	// key no matter which day the scheduler gets to it.
	cycleDate := types.BillingCycleDate(sub.NextBillingAt)

	item := &dto.BillingRunItem{
		TenantID:         sub.TenantID,
		SubscriptionID:   sub.ID,
		BillingCycleDate: cycleDate,
	}

	// Idempotency short circuit: an earlier or concurrent run already
	// produced a non-FAILED attempt for this cycle.
	if existing, err := s.ChargeRepo.GetByCycle(ctx, sub.TenantID, cycleDate); err == nil && existing != nil {
		item.Outcome = existing.Outcome
		item.Skipped = true
		return item
	} else if err != nil && !ierr.IsNotFound(err) {
		item.Error = err.Error()
		return item
	}

	// Preconditions: active mandate and completed network onboarding.
	// Either one missing is a hard failure for the cycle, not a retry.
	if _, err := s.MandateRepo.GetActiveByTenant(ctx, sub.TenantID); err != nil {
		if ierr.IsNotFound(err) {
			return s.failAndSuspend(ctx, sub, cycleDate, item, "no active mandate")
		}
		item.Error = err.Error()
		return item
	}

	if sub.GatewayCustomerID == nil || *sub.GatewayCustomerID == "" ||
		sub.ConnectedAccountID == nil || *sub.ConnectedAccountID == "" {
		return s.failAndSuspend(ctx, sub, cycleDate, item, "payment network onboarding incomplete")
	}

	amount := sub.Plan.MonthlyAmount()
	idempotencyKey := s.idempotency.GenerateKey(idempotency.ScopeCharge, map[string]interface{}{
		"tenant_id":          sub.TenantID,
		"billing_cycle_date": cycleDate.Format("2006-01-02"),
	})

	result, err := s.chargeWithRetry(ctx, gateway.ChargeRequest{
		CustomerRef:         *sub.GatewayCustomerID,
		ConnectedAccountRef: *sub.ConnectedAccountID,
		Amount:              amount,
		Currency:            "eur",
		CommissionRate:      s.Config.Billing.CommissionRate,
		IdempotencyKey:      idempotencyKey,
		Metadata: types.Metadata{
			"tenant_id":          sub.TenantID,
			"billing_cycle_date": cycleDate.Format("2006-01-02"),
			"subscription_id":    sub.ID,
		},
	})
	if err != nil {
		if ierr.IsPaymentDeclined(err) {
			return s.failAndSuspend(ctx, sub, cycleDate, item, err.Error())
		}
		// Transient failure after retries: the cycle stays unsettled and
		// the tenant is selected again on the next run.
		s.Logger.Errorw("charge abandoned for this run",
			"error", err,
			"tenant_id", sub.TenantID,
			"billing_cycle_date", cycleDate,
		)
		item.Error = err.Error()
		return item
	}

	// RECORD before ADVANCE: the attempt row is the source of truth and
	// claims the cycle slot.
	attempt := &charge.Attempt{
		ID:               types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CHARGE_ATTEMPT),
		TenantID:         sub.TenantID,
		BillingCycleDate: cycleDate,
		Amount:           amount,
		CommissionAmount: result.CommissionAmount,
		Outcome:          result.Status,
		BaseModel:        types.GetDefaultBaseModel(ctx),
	}
	if result.ExternalRef != "" {
		attempt.GatewayChargeID = &result.ExternalRef
	}

	if err := s.ChargeRepo.Create(ctx, attempt); err != nil {
		if ierr.IsAlreadyExists(err) {
			// Lost the race with a concurrent run; its attempt stands.
			item.Skipped = true
			return item
		}
		item.Error = err.Error()
		return item
	}

	item.Outcome = result.Status

	// ADVANCE: both SUCCESS and PENDING advance the billing date, on the
	// expectation that pending SEPA debits usually settle. A late failure
	// is handled by reconciliation.
	if err := s.advance(ctx, sub, attempt); err != nil {
		s.Logger.Errorw("failed to advance subscription after charge",
			"error", err,
			"tenant_id", sub.TenantID,
			"attempt_id", attempt.ID,
		)
		item.Error = err.Error()
		return item
	}

	if result.Status == types.ChargeOutcomeSuccess {
		if _, err := s.invoiceService.CreateForChargeAttempt(ctx, attempt, sub); err != nil {
			s.Logger.Errorw("failed to issue invoice for successful charge",
				"error", err,
				"attempt_id", attempt.ID,
			)
			item.Error = err.Error()
		}
	}

	return item
}

// chargeWithRetry submits the charge, retrying transient gateway errors
// with exponential backoff. Hard declines are returned immediately. Each
// attempt is bounded by the configured charge timeout; the gateway turns a
// timeout into a PENDING result, never an error.
func (s *billingService) chargeWithRetry(ctx context.Context, req gateway.ChargeRequest) (*gateway.ChargeResult, error) {
	var result *gateway.ChargeResult

	operation := func() error {
		chargeCtx, cancel := context.WithTimeout(ctx, s.Config.Billing.ChargeTimeout)
		defer cancel()

		res, err := s.Gateway.Charge(chargeCtx, req)
		if err != nil {
			if ierr.IsGatewayTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}

		result = res
		return nil
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(s.Config.Billing.MaxChargeRetries)),
		ctx,
	)

	if err := backoff.Retry(operation, b); err != nil {
		return nil, err
	}

	return result, nil
}

// failAndSuspend records the FAILED attempt and suspends the tenant. The
// billing date is never advanced on failure, so the same cycle is retried
// once the tenant is reactivated.
func (s *billingService) failAndSuspend(ctx context.Context, sub *subscription.Subscription, cycleDate time.Time, item *dto.BillingRunItem, reason string) *dto.BillingRunItem {
	attempt := &charge.Attempt{
		ID:               types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CHARGE_ATTEMPT),
		TenantID:         sub.TenantID,
		BillingCycleDate: cycleDate,
		Amount:           sub.Plan.MonthlyAmount(),
		CommissionAmount: gateway.ComputeCommission(sub.Plan.MonthlyAmount(), s.Config.Billing.CommissionRate),
		Outcome:          types.ChargeOutcomeFailed,
		ErrorMessage:     &reason,
		BaseModel:        types.GetDefaultBaseModel(ctx),
	}

	if err := s.ChargeRepo.Create(ctx, attempt); err != nil {
		s.Logger.Errorw("failed to record failed charge attempt",
			"error", err,
			"tenant_id", sub.TenantID,
		)
	}

	if err := s.suspend(ctx, sub); err != nil {
		s.Logger.Errorw("failed to suspend subscription",
			"error", err,
			"tenant_id", sub.TenantID,
		)
	}

	item.Outcome = types.ChargeOutcomeFailed
	item.Error = reason
	return item
}

// suspend transitions the subscription to SUSPENDED optimistically
func (s *billingService) suspend(ctx context.Context, sub *subscription.Subscription) error {
	if !sub.SubscriptionStatus.CanTransitionTo(types.SubscriptionStatusSuspended) {
		return nil
	}

	updated, err := s.SubRepo.UpdateStatusIfCurrent(ctx, sub.ID, sub.SubscriptionStatus, types.SubscriptionStatusSuspended)
	if err != nil {
		return err
	}
	if !updated {
		s.Logger.Warnw("suspension skipped, subscription status moved concurrently",
			"subscription_id", sub.ID,
			"tenant_id", sub.TenantID,
		)
		return nil
	}

	publishWebhookEvent(ctx, s.Logger, s.WebhookPublisher,
		types.WebhookEventSubscriptionSuspended, sub.TenantID,
		webhookDto.InternalSubscriptionEvent{
			SubscriptionID: sub.ID,
			TenantID:       sub.TenantID,
		})

	return nil
}

// advance activates the subscription and moves the billing date forward by
// exactly one period from its scheduled value, keeping the anchor day
// stable across short and long months.
func (s *billingService) advance(ctx context.Context, sub *subscription.Subscription, attempt *charge.Attempt) error {
	wasTrial := sub.SubscriptionStatus == types.SubscriptionStatusTrial

	if sub.SubscriptionStatus != types.SubscriptionStatusActive {
		updated, err := s.SubRepo.UpdateStatusIfCurrent(ctx, sub.ID, sub.SubscriptionStatus, types.SubscriptionStatusActive)
		if err != nil {
			return err
		}
		if updated {
			sub.SubscriptionStatus = types.SubscriptionStatusActive
			if wasTrial {
				publishWebhookEvent(ctx, s.Logger, s.WebhookPublisher,
					types.WebhookEventSubscriptionActivated, sub.TenantID,
					webhookDto.InternalSubscriptionEvent{
						SubscriptionID: sub.ID,
						TenantID:       sub.TenantID,
					})
			}
		}
	}

	next, err := types.NextBillingDate(sub.NextBillingAt, 1, types.BILLING_PERIOD_MONTHLY)
	if err != nil {
		return err
	}
	sub.NextBillingAt = next

	if attempt.Outcome == types.ChargeOutcomeSuccess {
		now := time.Now().UTC()
		sub.LastPaymentAt = &now
	}

	return s.SubRepo.Update(ctx, sub)
}
