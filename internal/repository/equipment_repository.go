package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/coldrent/rental-engine/internal/domain"
)

type equipmentRepository struct {
	db *sqlx.DB
}

func NewEquipmentRepository(db *sqlx.DB) EquipmentRepository {
	return &equipmentRepository{db: db}
}

func (r *equipmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Equipment, error) {
	query := `
		SELECT id, provider_id, name, type, status, current_renter_id, created_at, updated_at
		FROM equipment
		WHERE id = $1
	`

	var equipment domain.Equipment
	if err := r.db.GetContext(ctx, &equipment, query, id); err != nil {
		return nil, err
	}

	return &equipment, nil
}

func (r *equipmentRepository) SetStatus(ctx context.Context, id uuid.UUID, status string, renterID *uuid.UUID) error {
	query := `
		UPDATE equipment
		SET status = $2, current_renter_id = $3, updated_at = $4
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, id, status, renterID, time.Now())
	return err
}
