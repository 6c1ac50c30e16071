package postgres

import (
	"context"
	"time"

	"github.com/laia-connect/billing/internal/domain/mandate"
	ierr "github.com/laia-connect/billing/internal/errors"
	"github.com/laia-connect/billing/internal/logger"
	"github.com/laia-connect/billing/internal/postgres"
	"github.com/laia-connect/billing/internal/types"
)

type mandateRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewMandateRepository(db *postgres.DB, logger *logger.Logger) mandate.Repository {
	return &mandateRepository{db: db, logger: logger}
}

func (r *mandateRepository) Create(ctx context.Context, m *mandate.Mandate) error {
	query := `
		INSERT INTO mandates (
			id,
			tenant_id,
			mandate_ref,
			account_holder_name,
			iban_ciphertext,
			bic_ciphertext,
			iban_masked,
			mandate_status,
			signed_at,
			document_ref,
			status,
			created_at,
			updated_at,
			created_by,
			updated_by
		)
		VALUES (
			:id,
			:tenant_id,
			:mandate_ref,
			:account_holder_name,
			:iban_ciphertext,
			:bic_ciphertext,
			:iban_masked,
			:mandate_status,
			:signed_at,
			:document_ref,
			:status,
			:created_at,
			:updated_at,
			:created_by,
			:updated_by
		)
	`

	// Only the reference and the mask are loggable
	r.logger.Debugw("creating mandate",
		"mandate_id", m.ID,
		"tenant_id", m.TenantID,
		"mandate_ref", m.MandateRef,
	)

	if _, err := r.db.NamedExecContext(ctx, query, m); err != nil {
		if isUniqueViolation(err) {
			return ierr.WithError(err).
				WithHint("An active mandate or this reference already exists").
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create mandate").
			Mark(ierr.ErrDatabase)
	}

	return nil
}

func (r *mandateRepository) Get(ctx context.Context, id string) (*mandate.Mandate, error) {
	query := `SELECT * FROM mandates WHERE id = :id`

	rows, err := r.db.NamedQueryContext(ctx, query, map[string]interface{}{
		"id": id,
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to get mandate").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, ierr.NewError("mandate not found").
			WithHintf("Mandate %s does not exist", id).
			Mark(ierr.ErrNotFound)
	}

	var m mandate.Mandate
	if err := rows.StructScan(&m); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to scan mandate").
			Mark(ierr.ErrDatabase)
	}

	return &m, nil
}

func (r *mandateRepository) GetActiveByTenant(ctx context.Context, tenantID string) (*mandate.Mandate, error) {
	query := `
		SELECT * FROM mandates
		WHERE tenant_id = :tenant_id
		AND mandate_status = :mandate_status
	`

	rows, err := r.db.NamedQueryContext(ctx, query, map[string]interface{}{
		"tenant_id":      tenantID,
		"mandate_status": types.MandateStatusActive,
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to get active mandate").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, ierr.NewError("no active mandate").
			WithHintf("Tenant %s has no active mandate", tenantID).
			Mark(ierr.ErrNotFound)
	}

	var m mandate.Mandate
	if err := rows.StructScan(&m); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to scan mandate").
			Mark(ierr.ErrDatabase)
	}

	return &m, nil
}

func (r *mandateRepository) ExistsRef(ctx context.Context, mandateRef string) (bool, error) {
	query := `SELECT 1 FROM mandates WHERE mandate_ref = :mandate_ref`

	rows, err := r.db.NamedQueryContext(ctx, query, map[string]interface{}{
		"mandate_ref": mandateRef,
	})
	if err != nil {
		return false, ierr.WithError(err).
			WithHint("Failed to check mandate reference").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	return rows.Next(), nil
}

func (r *mandateRepository) Update(ctx context.Context, m *mandate.Mandate) error {
	query := `
		UPDATE mandates
		SET mandate_status = :mandate_status,
			document_ref = :document_ref,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id
	`

	m.UpdatedAt = time.Now().UTC()
	m.UpdatedBy = types.GetUserID(ctx)

	if _, err := r.db.NamedExecContext(ctx, query, m); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update mandate").
			Mark(ierr.ErrDatabase)
	}

	return nil
}

func (r *mandateRepository) ListByTenant(ctx context.Context, tenantID string) ([]*mandate.Mandate, error) {
	query := `
		SELECT * FROM mandates
		WHERE tenant_id = :tenant_id
		ORDER BY created_at DESC
	`

	rows, err := r.db.NamedQueryContext(ctx, query, map[string]interface{}{
		"tenant_id": tenantID,
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list mandates").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	var mandates []*mandate.Mandate
	for rows.Next() {
		var m mandate.Mandate
		if err := rows.StructScan(&m); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to scan mandate").
				Mark(ierr.ErrDatabase)
		}
		mandates = append(mandates, &m)
	}

	return mandates, nil
}
