package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	RentalStatusActive    = "ACTIVE"
	RentalStatusCompleted = "COMPLETED"
	RentalStatusCancelled = "CANCELLED"
)

// Rental is an exclusive, time-bounded allocation of one equipment unit to
// one client company. Rentals are never deleted; they only transition from
// ACTIVE into one of the two terminal statuses.
type Rental struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	EquipmentID   uuid.UUID       `json:"equipment_id" db:"equipment_id"`
	ClientID      uuid.UUID       `json:"client_id" db:"client_id"`
	ProviderID    uuid.UUID       `json:"provider_id" db:"provider_id"`
	StartDate     time.Time       `json:"start_date" db:"start_date"`
	EndDate       time.Time       `json:"end_date" db:"end_date"`
	MonthlyRate   decimal.Decimal `json:"monthly_rate" db:"monthly_rate"`
	TotalAmount   decimal.Decimal `json:"total_amount" db:"total_amount"`
	DepositAmount decimal.Decimal `json:"deposit_amount" db:"deposit_amount"`
	Frequency     string          `json:"frequency" db:"frequency"`
	Status        string          `json:"status" db:"status"`
	Notes         string          `json:"notes" db:"notes"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// Interval returns the rental's allocation window.
func (r *Rental) Interval() Interval {
	return Interval{Start: r.StartDate, End: r.EndDate}
}

// DTOs for requests and responses

type CreateRentalRequest struct {
	EquipmentID   uuid.UUID       `json:"equipment_id" validate:"required"`
	ClientID      uuid.UUID       `json:"client_id" validate:"required"`
	ProviderID    uuid.UUID       `json:"provider_id" validate:"required"`
	StartDate     time.Time       `json:"start_date" validate:"required"`
	EndDate       time.Time       `json:"end_date" validate:"required"`
	MonthlyRate   decimal.Decimal `json:"monthly_rate" validate:"required"`
	DepositAmount decimal.Decimal `json:"deposit_amount"`
	Frequency     string          `json:"frequency" validate:"required,oneof=MONTHLY QUARTERLY SEMIANNUAL ANNUAL"`
	Notes         string          `json:"notes"`
}

type CreateRentalResponse struct {
	Rental   *Rental    `json:"rental"`
	Payments []*Payment `json:"payments"`
}

type ExtendRentalRequest struct {
	NewEndDate time.Time `json:"new_end_date" validate:"required"`
}

type ExtendRentalResponse struct {
	Rental      *Rental    `json:"rental"`
	NewPayments []*Payment `json:"new_payments"`
}

type OccupancyResponse struct {
	EquipmentID uuid.UUID  `json:"equipment_id"`
	Rented      bool       `json:"rented"`
	RentalID    *uuid.UUID `json:"rental_id,omitempty"`
	ClientID    *uuid.UUID `json:"client_id,omitempty"`
}
