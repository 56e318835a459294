package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/aarondl/null/v8"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/coldrent/rental-engine/internal/domain"
	customError "github.com/coldrent/rental-engine/pkg/errors"
)

type invoiceRepository struct {
	db *sqlx.DB
}

func NewInvoiceRepository(db *sqlx.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

// Create allocates the invoice number from the per-year counter row and
// inserts the invoice in one transaction. The counter upsert locks the row,
// so concurrent issuers get strictly increasing numbers without gaps caused
// by lost updates.
func (r *invoiceRepository) Create(ctx context.Context, invoice *domain.Invoice) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	year := invoice.IssueDate.Year()

	var seq int64
	counterQuery := `
		INSERT INTO invoice_counters (year, last_value)
		VALUES ($1, 1)
		ON CONFLICT (year) DO UPDATE SET last_value = invoice_counters.last_value + 1
		RETURNING last_value
	`
	if err := tx.GetContext(ctx, &seq, counterQuery, year); err != nil {
		return err
	}
	invoice.Number = fmt.Sprintf("INV-%d-%06d", year, seq)

	insertQuery := `
		INSERT INTO invoices (id, number, client_id, rental_id, issue_date, due_date,
		                      subtotal, tax_rate, tax_amount, total, paid_amount, status,
		                      payment_method, paid_at, corrects_invoice_id, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	now := time.Now()
	_, err = tx.ExecContext(ctx, insertQuery,
		invoice.ID,
		invoice.Number,
		invoice.ClientID,
		invoice.RentalID,
		invoice.IssueDate,
		invoice.DueDate,
		invoice.Subtotal,
		invoice.TaxRate,
		invoice.TaxAmount,
		invoice.Total,
		invoice.PaidAmount,
		invoice.Status,
		invoice.PaymentMethod,
		invoice.PaidAt,
		invoice.CorrectsInvoiceID,
		invoice.Notes,
		now,
		now,
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

const invoiceColumns = `id, number, client_id, rental_id, issue_date, due_date,
	subtotal, tax_rate, tax_amount, total, paid_amount, status,
	payment_method, paid_at, corrects_invoice_id, notes, created_at, updated_at`

func (r *invoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`

	var invoice domain.Invoice
	if err := r.db.GetContext(ctx, &invoice, query, id); err != nil {
		return nil, err
	}

	return &invoice, nil
}

// List builds the filtered listing from the enumerated filter fields only;
// arbitrary column input never reaches the query.
func (r *invoiceRepository) List(ctx context.Context, filter domain.InvoiceFilter) ([]*domain.Invoice, error) {
	builder := sq.Select(invoiceColumns).
		From("invoices").
		PlaceholderFormat(sq.Dollar).
		OrderBy("issue_date DESC, number DESC")

	if filter.ClientID != nil {
		builder = builder.Where(sq.Eq{"client_id": *filter.ClientID})
	}
	if filter.RentalID != nil {
		builder = builder.Where(sq.Eq{"rental_id": *filter.RentalID})
	}
	if filter.Status != "" {
		builder = builder.Where(sq.Eq{"status": filter.Status})
	}
	if filter.Year > 0 {
		builder = builder.Where(sq.Expr("EXTRACT(YEAR FROM issue_date) = ?", filter.Year))
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		builder = builder.Offset(uint64(filter.Offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	var invoices []*domain.Invoice
	if err := r.db.SelectContext(ctx, &invoices, query, args...); err != nil {
		return nil, err
	}

	return invoices, nil
}

// RecordPayment applies a payment under a row lock on the single invoice.
// State and balance checks happen after the lock is taken, so concurrent
// payments against one invoice serialize and cannot overpay it.
func (r *invoiceRepository) RecordPayment(ctx context.Context, id uuid.UUID, amount decimal.Decimal, method string, paidAt time.Time) (*domain.Invoice, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	invoice, err := getInvoiceForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if !invoice.Payable() {
		return nil, customError.WrapInvalidState(
			fmt.Sprintf("invoice %s is %s", invoice.Number, invoice.Status),
			customError.ErrInvoiceNotPayable,
		)
	}
	if amount.GreaterThan(invoice.Remaining()) {
		return nil, customError.WrapValidation(
			fmt.Sprintf("payment %s exceeds remaining balance %s", amount, invoice.Remaining()),
			customError.ErrPaymentExceedsRemaining,
		)
	}

	invoice.PaidAmount = invoice.PaidAmount.Add(amount)
	invoice.PaymentMethod = null.StringFrom(method)
	if invoice.PaidAmount.GreaterThanOrEqual(invoice.Total) {
		invoice.Status = domain.InvoiceStatusPaid
		invoice.PaidAt = null.TimeFrom(paidAt)
	}

	updateQuery := `
		UPDATE invoices
		SET paid_amount = $2, status = $3, payment_method = $4, paid_at = $5, updated_at = $6
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, updateQuery,
		invoice.ID, invoice.PaidAmount, invoice.Status, invoice.PaymentMethod, invoice.PaidAt, time.Now(),
	); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return invoice, nil
}

// MarkOverdue is idempotent: the guarded UPDATE only matches a PENDING
// invoice past its due date, every other state is left untouched.
func (r *invoiceRepository) MarkOverdue(ctx context.Context, id uuid.UUID, asOf time.Time) (*domain.Invoice, error) {
	updateQuery := `
		UPDATE invoices
		SET status = $2, updated_at = $3
		WHERE id = $1 AND status = $4 AND due_date < $5
	`
	if _, err := r.db.ExecContext(ctx, updateQuery,
		id, domain.InvoiceStatusOverdue, time.Now(), domain.InvoiceStatusPending, asOf,
	); err != nil {
		return nil, err
	}

	invoice, err := r.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapInvoiceNotFound(id.String())
		}
		return nil, err
	}

	return invoice, nil
}

func (r *invoiceRepository) MarkOverdueBefore(ctx context.Context, asOf time.Time) (int64, error) {
	query := `
		UPDATE invoices
		SET status = $1, updated_at = $2
		WHERE status = $3 AND due_date < $4
	`
	res, err := r.db.ExecContext(ctx, query, domain.InvoiceStatusOverdue, time.Now(), domain.InvoiceStatusPending, asOf)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

// Cancel is only permitted while the invoice is PENDING and nothing has
// been paid against it. Issued financial documents are never deleted.
func (r *invoiceRepository) Cancel(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	invoice, err := getInvoiceForUpdate(ctx, tx, id)
	if err != nil {
		return err
	}

	if invoice.Status != domain.InvoiceStatusPending || !invoice.PaidAmount.IsZero() {
		return customError.WrapInvalidState(
			fmt.Sprintf("invoice %s cannot be cancelled", invoice.Number),
			customError.ErrInvoiceNotPending,
		)
	}

	updateQuery := `
		UPDATE invoices
		SET status = $2, updated_at = $3
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, updateQuery, id, domain.InvoiceStatusCancelled, time.Now()); err != nil {
		return err
	}

	return tx.Commit()
}

func getInvoiceForUpdate(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1 FOR UPDATE`

	var invoice domain.Invoice
	if err := tx.GetContext(ctx, &invoice, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapInvoiceNotFound(id.String())
		}
		return nil, err
	}

	return &invoice, nil
}
