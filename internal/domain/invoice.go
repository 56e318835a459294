package domain

import (
	"time"

	"github.com/aarondl/null/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	InvoiceStatusPending   = "PENDING"
	InvoiceStatusPaid      = "PAID"
	InvoiceStatusOverdue   = "OVERDUE"
	InvoiceStatusCancelled = "CANCELLED"
)

// Invoice is an issued billing document. Issued invoices are append-only:
// adjustments are made by issuing a correction invoice that references the
// original, never by mutating or deleting the original.
type Invoice struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	Number            string          `json:"number" db:"number"`
	ClientID          uuid.UUID       `json:"client_id" db:"client_id"`
	RentalID          *uuid.UUID      `json:"rental_id,omitempty" db:"rental_id"`
	IssueDate         time.Time       `json:"issue_date" db:"issue_date"`
	DueDate           time.Time       `json:"due_date" db:"due_date"`
	Subtotal          decimal.Decimal `json:"subtotal" db:"subtotal"`
	TaxRate           decimal.Decimal `json:"tax_rate" db:"tax_rate"`
	TaxAmount         decimal.Decimal `json:"tax_amount" db:"tax_amount"`
	Total             decimal.Decimal `json:"total" db:"total"`
	PaidAmount        decimal.Decimal `json:"paid_amount" db:"paid_amount"`
	Status            string          `json:"status" db:"status"`
	PaymentMethod     null.String     `json:"payment_method,omitempty" db:"payment_method"`
	PaidAt            null.Time       `json:"paid_at,omitempty" db:"paid_at"`
	CorrectsInvoiceID *uuid.UUID      `json:"corrects_invoice_id,omitempty" db:"corrects_invoice_id"`
	Notes             string          `json:"notes" db:"notes"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

// Remaining is the unpaid balance of the invoice.
func (i *Invoice) Remaining() decimal.Decimal {
	return i.Total.Sub(i.PaidAmount)
}

// Payable reports whether a payment may still be recorded.
func (i *Invoice) Payable() bool {
	return i.Status == InvoiceStatusPending || i.Status == InvoiceStatusOverdue
}

// DTOs for requests and responses

// CreateInvoiceRequest issues a new invoice. Subtotal may be omitted when a
// rental is linked; it then defaults to the rental's total amount.
type CreateInvoiceRequest struct {
	ClientID uuid.UUID       `json:"client_id" validate:"required"`
	RentalID *uuid.UUID      `json:"rental_id"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Notes    string          `json:"notes"`
}

type RecordInvoicePaymentRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required"`
	Method string          `json:"method" validate:"required"`
}

type CorrectionRequest struct {
	Subtotal decimal.Decimal `json:"subtotal" validate:"required"`
	Reason   string          `json:"reason" validate:"required"`
}

// InvoiceFilter narrows invoice listings. Only enumerated fields are ever
// turned into SQL predicates.
type InvoiceFilter struct {
	ClientID *uuid.UUID
	RentalID *uuid.UUID
	Status   string
	Year     int
	Limit    int
	Offset   int
}
