package postgres

import (
	"context"
	"time"

	"github.com/laia-connect/billing/internal/domain/charge"
	ierr "github.com/laia-connect/billing/internal/errors"
	"github.com/laia-connect/billing/internal/logger"
	"github.com/laia-connect/billing/internal/postgres"
	"github.com/laia-connect/billing/internal/types"
)

type chargeRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewChargeRepository(db *postgres.DB, logger *logger.Logger) charge.Repository {
	return &chargeRepository{db: db, logger: logger}
}

// Create inserts the attempt. The partial unique index on
// (tenant_id, billing_cycle_date) for non-FAILED outcomes makes this the
// mutual exclusion point between concurrent runs: the loser gets
// ErrAlreadyExists and must treat the cycle as already settled.
func (r *chargeRepository) Create(ctx context.Context, attempt *charge.Attempt) error {
	query := `
		INSERT INTO charge_attempts (
			id,
			tenant_id,
			billing_cycle_date,
			amount,
			commission_amount,
			gateway_charge_id,
			outcome,
			error_message,
			status,
			created_at,
			updated_at,
			created_by,
			updated_by
		)
		VALUES (
			:id,
			:tenant_id,
			:billing_cycle_date,
			:amount,
			:commission_amount,
			:gateway_charge_id,
			:outcome,
			:error_message,
			:status,
			:created_at,
			:updated_at,
			:created_by,
			:updated_by
		)
	`

	r.logger.Debugw("recording charge attempt",
		"attempt_id", attempt.ID,
		"tenant_id", attempt.TenantID,
		"billing_cycle_date", attempt.BillingCycleDate,
		"outcome", attempt.Outcome,
	)

	if _, err := r.db.NamedExecContext(ctx, query, attempt); err != nil {
		if isUniqueViolation(err) {
			return ierr.WithError(err).
				WithHint("This billing cycle already has a charge attempt").
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to record charge attempt").
			Mark(ierr.ErrDatabase)
	}

	return nil
}

func (r *chargeRepository) Get(ctx context.Context, id string) (*charge.Attempt, error) {
	query := `SELECT * FROM charge_attempts WHERE id = :id`

	rows, err := r.db.NamedQueryContext(ctx, query, map[string]interface{}{
		"id": id,
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to get charge attempt").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, ierr.NewError("charge attempt not found").
			WithHintf("Charge attempt %s does not exist", id).
			Mark(ierr.ErrNotFound)
	}

	var a charge.Attempt
	if err := rows.StructScan(&a); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to scan charge attempt").
			Mark(ierr.ErrDatabase)
	}

	return &a, nil
}

func (r *chargeRepository) GetByCycle(ctx context.Context, tenantID string, cycleDate time.Time) (*charge.Attempt, error) {
	query := `
		SELECT * FROM charge_attempts
		WHERE tenant_id = :tenant_id
		AND billing_cycle_date = :billing_cycle_date
		AND outcome != :failed_outcome
	`

	rows, err := r.db.NamedQueryContext(ctx, query, map[string]interface{}{
		"tenant_id":          tenantID,
		"billing_cycle_date": cycleDate,
		"failed_outcome":     types.ChargeOutcomeFailed,
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to get charge attempt by cycle").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, ierr.NewError("no charge attempt for cycle").
			WithHintf("Tenant %s has no settled attempt for this cycle", tenantID).
			Mark(ierr.ErrNotFound)
	}

	var a charge.Attempt
	if err := rows.StructScan(&a); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to scan charge attempt").
			Mark(ierr.ErrDatabase)
	}

	return &a, nil
}

func (r *chargeRepository) GetByGatewayChargeID(ctx context.Context, gatewayChargeID string) (*charge.Attempt, error) {
	query := `SELECT * FROM charge_attempts WHERE gateway_charge_id = :gateway_charge_id`

	rows, err := r.db.NamedQueryContext(ctx, query, map[string]interface{}{
		"gateway_charge_id": gatewayChargeID,
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to get charge attempt by gateway reference").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, ierr.NewError("charge attempt not found").
			WithHintf("No attempt carries gateway reference %s", gatewayChargeID).
			Mark(ierr.ErrNotFound)
	}

	var a charge.Attempt
	if err := rows.StructScan(&a); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to scan charge attempt").
			Mark(ierr.ErrDatabase)
	}

	return &a, nil
}

// UpdateOutcomeIfCurrent settles the attempt outcome optimistically. Zero
// rows affected means the attempt already left the expected outcome and
// the notification being applied is stale.
func (r *chargeRepository) UpdateOutcomeIfCurrent(ctx context.Context, id string, from, to types.ChargeOutcome, errorMessage *string) (bool, error) {
	query := `
		UPDATE charge_attempts
		SET outcome = :to_outcome,
			error_message = :error_message,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id
		AND outcome = :from_outcome
	`

	res, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":            id,
		"from_outcome":  from,
		"to_outcome":    to,
		"error_message": errorMessage,
		"updated_at":    time.Now().UTC(),
		"updated_by":    types.GetUserID(ctx),
	})
	if err != nil {
		return false, ierr.WithError(err).
			WithHint("Failed to settle charge attempt outcome").
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

func (r *chargeRepository) ExistsNonFailedAfter(ctx context.Context, tenantID string, cycleDate time.Time) (bool, error) {
	query := `
		SELECT 1 FROM charge_attempts
		WHERE tenant_id = :tenant_id
		AND billing_cycle_date > :billing_cycle_date
		AND outcome != :failed_outcome
	`

	rows, err := r.db.NamedQueryContext(ctx, query, map[string]interface{}{
		"tenant_id":          tenantID,
		"billing_cycle_date": cycleDate,
		"failed_outcome":     types.ChargeOutcomeFailed,
	})
	if err != nil {
		return false, ierr.WithError(err).
			WithHint("Failed to check later charge attempts").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	return rows.Next(), nil
}

func (r *chargeRepository) ListByTenant(ctx context.Context, tenantID string) ([]*charge.Attempt, error) {
	query := `
		SELECT * FROM charge_attempts
		WHERE tenant_id = :tenant_id
		ORDER BY billing_cycle_date DESC
	`

	rows, err := r.db.NamedQueryContext(ctx, query, map[string]interface{}{
		"tenant_id": tenantID,
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list charge attempts").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	var attempts []*charge.Attempt
	for rows.Next() {
		var a charge.Attempt
		if err := rows.StructScan(&a); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to scan charge attempt").
				Mark(ierr.ErrDatabase)
		}
		attempts = append(attempts, &a)
	}

	return attempts, nil
}
