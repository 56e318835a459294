package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	EquipmentStatusAvailable    = "AVAILABLE"
	EquipmentStatusRented       = "RENTED"
	EquipmentStatusMaintenance  = "MAINTENANCE"
	EquipmentStatusOutOfService = "OUT_OF_SERVICE"
)

// Equipment is a single physical unit owned by one provider.
// CurrentRenterID is set only while the unit is RENTED.
type Equipment struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	ProviderID      uuid.UUID  `json:"provider_id" db:"provider_id"`
	Name            string     `json:"name" db:"name"`
	Type            string     `json:"type" db:"type"`
	Status          string     `json:"status" db:"status"`
	CurrentRenterID *uuid.UUID `json:"current_renter_id,omitempty" db:"current_renter_id"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// Rentable reports whether a new rental may be allocated against the unit.
// RENTED units stay rentable for future, non-overlapping windows; units in
// maintenance or written off are not.
func (e *Equipment) Rentable() bool {
	return e.Status == EquipmentStatusAvailable || e.Status == EquipmentStatusRented
}
