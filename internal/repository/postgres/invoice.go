package postgres

import (
	"context"

	"github.com/laia-connect/billing/internal/domain/invoice"
	ierr "github.com/laia-connect/billing/internal/errors"
	"github.com/laia-connect/billing/internal/logger"
	"github.com/laia-connect/billing/internal/postgres"
)

type invoiceRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewInvoiceRepository(db *postgres.DB, logger *logger.Logger) invoice.Repository {
	return &invoiceRepository{db: db, logger: logger}
}

func (r *invoiceRepository) Create(ctx context.Context, inv *invoice.Invoice) error {
	query := `
		INSERT INTO invoices (
			id,
			tenant_id,
			invoice_number,
			charge_attempt_id,
			plan,
			amount,
			issued_at,
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
			:invoice_number,
			:charge_attempt_id,
			:plan,
			:amount,
			:issued_at,
			:document_ref,
			:status,
			:created_at,
			:updated_at,
			:created_by,
			:updated_by
		)
	`

	r.logger.Debugw("creating invoice",
		"invoice_id", inv.ID,
		"tenant_id", inv.TenantID,
		"invoice_number", inv.InvoiceNumber,
	)

	if _, err := r.db.NamedExecContext(ctx, query, inv); err != nil {
		if isUniqueViolation(err) {
			return ierr.WithError(err).
				WithHint("An invoice already documents this charge attempt").
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create invoice").
			Mark(ierr.ErrDatabase)
	}

	return nil
}

func (r *invoiceRepository) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	query := `SELECT * FROM invoices WHERE id = :id`

	rows, err := r.db.NamedQueryContext(ctx, query, map[string]interface{}{
		"id": id,
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to get invoice").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, ierr.NewError("invoice not found").
			WithHintf("Invoice %s does not exist", id).
			Mark(ierr.ErrNotFound)
	}

	var inv invoice.Invoice
	if err := rows.StructScan(&inv); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to scan invoice").
			Mark(ierr.ErrDatabase)
	}

	return &inv, nil
}

func (r *invoiceRepository) GetByChargeAttempt(ctx context.Context, chargeAttemptID string) (*invoice.Invoice, error) {
	query := `SELECT * FROM invoices WHERE charge_attempt_id = :charge_attempt_id`

	rows, err := r.db.NamedQueryContext(ctx, query, map[string]interface{}{
		"charge_attempt_id": chargeAttemptID,
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to get invoice by charge attempt").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, ierr.NewError("invoice not found").
			WithHintf("No invoice documents charge attempt %s", chargeAttemptID).
			Mark(ierr.ErrNotFound)
	}

	var inv invoice.Invoice
	if err := rows.StructScan(&inv); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to scan invoice").
			Mark(ierr.ErrDatabase)
	}

	return &inv, nil
}

// NextSequence claims the next per-year invoice number. The sequence row
// is upserted under row lock so concurrent issuers never share a number.
func (r *invoiceRepository) NextSequence(ctx context.Context, year int) (int, error) {
	query := `
		INSERT INTO invoice_sequences (year, last_value)
		VALUES (:year, 1)
		ON CONFLICT (year)
		DO UPDATE SET last_value = invoice_sequences.last_value + 1
		RETURNING last_value
	`

	rows, err := r.db.NamedQueryContext(ctx, query, map[string]interface{}{
		"year": year,
	})
	if err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to claim invoice sequence number").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	if !rows.Next() {
		return 0, ierr.NewError("invoice sequence returned no value").
			Mark(ierr.ErrDatabase)
	}

	var seq int
	if err := rows.Scan(&seq); err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to scan invoice sequence").
			Mark(ierr.ErrDatabase)
	}

	return seq, nil
}

func (r *invoiceRepository) ListByTenant(ctx context.Context, tenantID string) ([]*invoice.Invoice, error) {
	query := `
		SELECT * FROM invoices
		WHERE tenant_id = :tenant_id
		ORDER BY issued_at DESC
	`

	rows, err := r.db.NamedQueryContext(ctx, query, map[string]interface{}{
		"tenant_id": tenantID,
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list invoices").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	var invoices []*invoice.Invoice
	for rows.Next() {
		var inv invoice.Invoice
		if err := rows.StructScan(&inv); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to scan invoice").
				Mark(ierr.ErrDatabase)
		}
		invoices = append(invoices, &inv)
	}

	return invoices, nil
}
