package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/coldrent/rental-engine/internal/domain"
)

type companyRepository struct {
	db *sqlx.DB
}

func NewCompanyRepository(db *sqlx.DB) CompanyRepository {
	return &companyRepository{db: db}
}

func (r *companyRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Company, error) {
	query := `
		SELECT id, name, type, active, created_at, updated_at
		FROM companies
		WHERE id = $1
	`

	var company domain.Company
	if err := r.db.GetContext(ctx, &company, query, id); err != nil {
		return nil, err
	}

	return &company, nil
}
