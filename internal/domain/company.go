package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	CompanyTypeProvider = "PROVIDER"
	CompanyTypeClient   = "CLIENT"
)

// Company is either an equipment provider or a client renting equipment.
type Company struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Type      string    `json:"type" db:"type"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
