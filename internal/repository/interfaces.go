package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coldrent/rental-engine/internal/domain"
)

// EquipmentRepository is the equipment state store. Status mutations that
// belong to a rental transition happen inside the rental repository's
// transactions; this interface serves reads and standalone status changes
// (maintenance workflow).
type EquipmentRepository interface {
	// GetByID retrieves an equipment unit
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Equipment, error)

	// SetStatus updates the unit's status and current renter reference
	SetStatus(ctx context.Context, id uuid.UUID, status string, renterID *uuid.UUID) error
}

// CompanyRepository is the company directory used to validate clients and
// providers.
type CompanyRepository interface {
	// GetByID retrieves a company
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Company, error)
}

// RentalRepository defines the interface for rental data operations.
// Conflict-sensitive writes run in a single transaction holding a row lock
// on the equipment unit, so an overlap check and the write it guards cannot
// interleave with a concurrent allocation.
type RentalRepository interface {
	// GetByID retrieves a rental
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Rental, error)

	// GetActiveByEquipmentID retrieves the ACTIVE rentals for a unit
	GetActiveByEquipmentID(ctx context.Context, equipmentID uuid.UUID) ([]*domain.Rental, error)

	// GetPayments retrieves a rental's payments ordered by due date
	GetPayments(ctx context.Context, rentalID uuid.UUID) ([]*domain.Payment, error)

	// CreateWithSchedule atomically conflict-checks the rental's interval,
	// inserts the rental and its payment schedule, and flips the equipment
	// to RENTED
	CreateWithSchedule(ctx context.Context, rental *domain.Rental, payments []*domain.Payment) error

	// ExtendWithSchedule atomically conflict-checks the added tail against
	// other rentals, moves the end date, updates the total, and appends the
	// extension payments
	ExtendWithSchedule(ctx context.Context, rental *domain.Rental, newEndDate time.Time, newTotal decimal.Decimal, payments []*domain.Payment) error

	// MarkPaymentPaid settles a PENDING scheduled payment and returns the
	// updated row
	MarkPaymentPaid(ctx context.Context, rentalID, paymentID uuid.UUID, paidAt time.Time) (*domain.Payment, error)

	// Close atomically moves an ACTIVE rental into a terminal status,
	// cancels its still-pending payments when cancelling, and releases the
	// equipment
	Close(ctx context.Context, rentalID uuid.UUID, status string, closedAt time.Time) error

	// ListExpired retrieves ACTIVE rentals whose end date is before asOf
	ListExpired(ctx context.Context, asOf time.Time) ([]*domain.Rental, error)
}

// InvoiceRepository defines the interface for invoice data operations.
type InvoiceRepository interface {
	// Create inserts an invoice, allocating the next sequential number for
	// the issue year
	Create(ctx context.Context, invoice *domain.Invoice) error

	// GetByID retrieves an invoice
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error)

	// List retrieves invoices matching the filter
	List(ctx context.Context, filter domain.InvoiceFilter) ([]*domain.Invoice, error)

	// RecordPayment applies a payment to the invoice under a row lock and
	// returns the updated invoice
	RecordPayment(ctx context.Context, id uuid.UUID, amount decimal.Decimal, method string, paidAt time.Time) (*domain.Invoice, error)

	// MarkOverdue flips a PENDING invoice past its due date to OVERDUE;
	// a no-op for any other status
	MarkOverdue(ctx context.Context, id uuid.UUID, asOf time.Time) (*domain.Invoice, error)

	// MarkOverdueBefore flips every PENDING invoice due before asOf and
	// reports how many rows changed
	MarkOverdueBefore(ctx context.Context, asOf time.Time) (int64, error)

	// Cancel cancels a PENDING, unpaid invoice
	Cancel(ctx context.Context, id uuid.UUID) error
}
