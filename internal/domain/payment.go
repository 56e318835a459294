package domain

import (
	"time"

	"github.com/aarondl/null/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	PaymentTypeDeposit         = "DEPOSIT"
	PaymentTypeRental          = "RENTAL"
	PaymentTypeRentalExtension = "RENTAL_EXTENSION"
)

const (
	PaymentStatusPending   = "PENDING"
	PaymentStatusPaid      = "PAID"
	PaymentStatusCancelled = "CANCELLED"
)

// Payment is one scheduled or settled obligation belonging to a rental.
// The sum of non-cancelled payment amounts for a rental always equals the
// rental's total amount plus its deposit.
type Payment struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	RentalID  uuid.UUID       `json:"rental_id" db:"rental_id"`
	DueDate   time.Time       `json:"due_date" db:"due_date"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	Type      string          `json:"type" db:"type"`
	Status    string          `json:"status" db:"status"`
	PaidAt    null.Time       `json:"paid_at,omitempty" db:"paid_at"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}
