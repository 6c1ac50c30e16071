package postgres

import (
	"context"
	"time"

	"github.com/laia-connect/billing/internal/domain/subscription"
	ierr "github.com/laia-connect/billing/internal/errors"
	"github.com/laia-connect/billing/internal/logger"
	"github.com/laia-connect/billing/internal/postgres"
	"github.com/laia-connect/billing/internal/types"
)

type subscriptionRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewSubscriptionRepository(db *postgres.DB, logger *logger.Logger) subscription.Repository {
	return &subscriptionRepository{db: db, logger: logger}
}

func (r *subscriptionRepository) Create(ctx context.Context, sub *subscription.Subscription) error {
	query := `
		INSERT INTO subscriptions (
			id,
			tenant_id,
			plan,
			subscription_status,
			next_billing_at,
			trial_ends_at,
			gateway_customer_id,
			connected_account_id,
			last_payment_at,
			status,
			created_at,
			updated_at,
			created_by,
			updated_by
		)
		VALUES (
			:id,
			:tenant_id,
			:plan,
			:subscription_status,
			:next_billing_at,
			:trial_ends_at,
			:gateway_customer_id,
			:connected_account_id,
			:last_payment_at,
			:status,
			:created_at,
			:updated_at,
			:created_by,
			:updated_by
		)
	`

	r.logger.Debugw("creating subscription",
		"subscription_id", sub.ID,
		"tenant_id", sub.TenantID,
	)

	if _, err := r.db.NamedExecContext(ctx, query, sub); err != nil {
		if isUniqueViolation(err) {
			return ierr.WithError(err).
				WithHint("A subscription already exists for this tenant").
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create subscription").
			Mark(ierr.ErrDatabase)
	}

	return nil
}

func (r *subscriptionRepository) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	query := `SELECT * FROM subscriptions WHERE id = :id`

	rows, err := r.db.NamedQueryContext(ctx, query, map[string]interface{}{
		"id": id,
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to get subscription").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, ierr.NewError("subscription not found").
			WithHintf("Subscription %s does not exist", id).
			Mark(ierr.ErrNotFound)
	}

	var sub subscription.Subscription
	if err := rows.StructScan(&sub); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to scan subscription").
			Mark(ierr.ErrDatabase)
	}

	return &sub, nil
}

func (r *subscriptionRepository) GetByTenant(ctx context.Context, tenantID string) (*subscription.Subscription, error) {
	query := `SELECT * FROM subscriptions WHERE tenant_id = :tenant_id`

	rows, err := r.db.NamedQueryContext(ctx, query, map[string]interface{}{
		"tenant_id": tenantID,
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to get subscription by tenant").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, ierr.NewError("subscription not found").
			WithHintf("Tenant %s has no subscription", tenantID).
			Mark(ierr.ErrNotFound)
	}

	var sub subscription.Subscription
	if err := rows.StructScan(&sub); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to scan subscription").
			Mark(ierr.ErrDatabase)
	}

	return &sub, nil
}

// Update writes everything except subscription_status: status moves only
// through UpdateStatusIfCurrent so concurrent transitions cannot be
// silently overwritten.
func (r *subscriptionRepository) Update(ctx context.Context, sub *subscription.Subscription) error {
	query := `
		UPDATE subscriptions
		SET plan = :plan,
			next_billing_at = :next_billing_at,
			trial_ends_at = :trial_ends_at,
			gateway_customer_id = :gateway_customer_id,
			connected_account_id = :connected_account_id,
			last_payment_at = :last_payment_at,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id
	`

	sub.UpdatedAt = time.Now().UTC()
	sub.UpdatedBy = types.GetUserID(ctx)

	if _, err := r.db.NamedExecContext(ctx, query, sub); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update subscription").
			Mark(ierr.ErrDatabase)
	}

	return nil
}

func (r *subscriptionRepository) List(ctx context.Context) ([]*subscription.Subscription, error) {
	query := `SELECT * FROM subscriptions ORDER BY created_at DESC`

	rows, err := r.db.NamedQueryContext(ctx, query, map[string]interface{}{})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list subscriptions").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	var subs []*subscription.Subscription
	for rows.Next() {
		var sub subscription.Subscription
		if err := rows.StructScan(&sub); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to scan subscription").
				Mark(ierr.ErrDatabase)
		}
		subs = append(subs, &sub)
	}

	return subs, nil
}

// ListDue selects the run snapshot: billable subscriptions whose next
// billing date is reached and whose trial, if any, is over.
func (r *subscriptionRepository) ListDue(ctx context.Context, asOf time.Time) ([]*subscription.Subscription, error) {
	query := `
		SELECT * FROM subscriptions
		WHERE subscription_status IN (:trial_status, :active_status)
		AND next_billing_at <= :as_of
		AND (trial_ends_at IS NULL OR trial_ends_at <= :as_of)
		ORDER BY next_billing_at ASC
	`

	rows, err := r.db.NamedQueryContext(ctx, query, map[string]interface{}{
		"trial_status":  types.SubscriptionStatusTrial,
		"active_status": types.SubscriptionStatusActive,
		"as_of":         asOf,
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list due subscriptions").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	var subs []*subscription.Subscription
	for rows.Next() {
		var sub subscription.Subscription
		if err := rows.StructScan(&sub); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to scan subscription").
				Mark(ierr.ErrDatabase)
		}
		subs = append(subs, &sub)
	}

	return subs, nil
}

// UpdateStatusIfCurrent performs the optimistic status transition. The
// WHERE clause carries the expected current status; zero rows affected
// means a newer transition already won.
func (r *subscriptionRepository) UpdateStatusIfCurrent(ctx context.Context, id string, from, to types.SubscriptionStatus) (bool, error) {
	query := `
		UPDATE subscriptions
		SET subscription_status = :to_status,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id
		AND subscription_status = :from_status
	`

	res, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":          id,
		"from_status": from,
		"to_status":   to,
		"updated_at":  time.Now().UTC(),
		"updated_by":  types.GetUserID(ctx),
	})
	if err != nil {
		return false, ierr.WithError(err).
			WithHint("Failed to transition subscription status").
			Mark(ierr.ErrDatabase)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, ierr.WithError(err).
			WithHint("Failed to read affected rows").
			Mark(ierr.ErrDatabase)
	}

	return affected == 1, nil
}
