package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/coldrent/rental-engine/internal/domain"
	customError "github.com/coldrent/rental-engine/pkg/errors"
)

type rentalRepository struct {
	db *sqlx.DB
}

func NewRentalRepository(db *sqlx.DB) RentalRepository {
	return &rentalRepository{db: db}
}

func (r *rentalRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Rental, error) {
	query := `
		SELECT id, equipment_id, client_id, provider_id, start_date, end_date,
		       monthly_rate, total_amount, deposit_amount, frequency, status, notes, created_at, updated_at
		FROM rentals
		WHERE id = $1
	`

	var rental domain.Rental
	if err := r.db.GetContext(ctx, &rental, query, id); err != nil {
		return nil, err
	}

	return &rental, nil
}

func (r *rentalRepository) GetActiveByEquipmentID(ctx context.Context, equipmentID uuid.UUID) ([]*domain.Rental, error) {
	query := `
		SELECT id, equipment_id, client_id, provider_id, start_date, end_date,
		       monthly_rate, total_amount, deposit_amount, frequency, status, notes, created_at, updated_at
		FROM rentals
		WHERE equipment_id = $1 AND status = $2
		ORDER BY start_date
	`

	var rentals []*domain.Rental
	if err := r.db.SelectContext(ctx, &rentals, query, equipmentID, domain.RentalStatusActive); err != nil {
		return nil, err
	}

	return rentals, nil
}

func (r *rentalRepository) GetPayments(ctx context.Context, rentalID uuid.UUID) ([]*domain.Payment, error) {
	query := `
		SELECT id, rental_id, due_date, amount, type, status, paid_at, created_at
		FROM payments
		WHERE rental_id = $1
		ORDER BY due_date, type
	`

	var payments []*domain.Payment
	if err := r.db.SelectContext(ctx, &payments, query, rentalID); err != nil {
		return nil, err
	}

	return payments, nil
}

// CreateWithSchedule runs the whole allocation as one critical section. The
// equipment row is locked before the overlap check and held until commit,
// so two concurrent allocations for the same unit serialize and the loser
// sees the winner's rental.
func (r *rentalRepository) CreateWithSchedule(ctx context.Context, rental *domain.Rental, payments []*domain.Payment) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := lockEquipment(ctx, tx, rental.EquipmentID); err != nil {
		return err
	}

	existing, err := activeIntervals(ctx, tx, rental.EquipmentID, uuid.Nil)
	if err != nil {
		return err
	}
	if domain.HasConflict(existing, rental.Interval()) {
		return customError.WrapRentalConflict(rental.EquipmentID.String())
	}

	insertQuery := `
		INSERT INTO rentals (id, equipment_id, client_id, provider_id, start_date, end_date,
		                     monthly_rate, total_amount, deposit_amount, frequency, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	now := time.Now()
	_, err = tx.ExecContext(ctx, insertQuery,
		rental.ID,
		rental.EquipmentID,
		rental.ClientID,
		rental.ProviderID,
		rental.StartDate,
		rental.EndDate,
		rental.MonthlyRate,
		rental.TotalAmount,
		rental.DepositAmount,
		rental.Frequency,
		rental.Status,
		rental.Notes,
		now,
		now,
	)
	if err != nil {
		return err
	}

	if err := insertPayments(ctx, tx, payments); err != nil {
		return err
	}

	if err := syncEquipment(ctx, tx, rental.EquipmentID); err != nil {
		return err
	}

	return tx.Commit()
}

// ExtendWithSchedule conflict-checks the added tail [currentEnd, newEnd]
// against the unit's other ACTIVE rentals under the same equipment lock used
// for creation. The schedule and total were computed from rental as the
// caller read it; the rental row is re-read under the lock and the write is
// refused if its end date moved in between, so two concurrent extensions can
// never both append payments for the same periods.
func (r *rentalRepository) ExtendWithSchedule(ctx context.Context, rental *domain.Rental, newEndDate time.Time, newTotal decimal.Decimal, payments []*domain.Payment) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := lockEquipment(ctx, tx, rental.EquipmentID); err != nil {
		return err
	}

	var current struct {
		Status  string    `db:"status"`
		EndDate time.Time `db:"end_date"`
	}
	lockQuery := `SELECT status, end_date FROM rentals WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &current, lockQuery, rental.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return customError.WrapRentalNotFound(rental.ID.String())
		}
		return err
	}
	if current.Status != domain.RentalStatusActive {
		return customError.WrapInvalidState("rental is no longer active", customError.ErrRentalNotActive)
	}
	if !current.EndDate.Equal(rental.EndDate) {
		return customError.NewBusinessError(
			customError.ErrCodeConflict,
			"rental was extended concurrently",
			customError.ErrRentalConflict,
		)
	}

	others, err := activeIntervals(ctx, tx, rental.EquipmentID, rental.ID)
	if err != nil {
		return err
	}
	tail := domain.Interval{Start: rental.EndDate, End: newEndDate}
	if domain.HasConflict(others, tail) {
		return customError.WrapRentalConflict(rental.EquipmentID.String())
	}

	updateQuery := `
		UPDATE rentals
		SET end_date = $2, total_amount = $3, updated_at = $4
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, updateQuery, rental.ID, newEndDate, newTotal, time.Now()); err != nil {
		return err
	}

	if err := insertPayments(ctx, tx, payments); err != nil {
		return err
	}

	return tx.Commit()
}

// Close transitions an ACTIVE rental into COMPLETED or CANCELLED. When
// cancelling, the still-pending payments are cancelled in the same
// transaction; cancelling N payments is all-or-nothing.
func (r *rentalRepository) Close(ctx context.Context, rentalID uuid.UUID, status string, closedAt time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var rental domain.Rental
	getQuery := `
		SELECT id, equipment_id, client_id, provider_id, start_date, end_date,
		       monthly_rate, total_amount, deposit_amount, frequency, status, notes, created_at, updated_at
		FROM rentals
		WHERE id = $1
	`
	if err := tx.GetContext(ctx, &rental, getQuery, rentalID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return customError.WrapRentalNotFound(rentalID.String())
		}
		return err
	}

	// Equipment lock first, same order as allocation, then re-check the
	// rental under the lock.
	if err := lockEquipment(ctx, tx, rental.EquipmentID); err != nil {
		return err
	}

	updateQuery := `
		UPDATE rentals
		SET status = $2, updated_at = $3
		WHERE id = $1 AND status = $4
	`
	res, err := tx.ExecContext(ctx, updateQuery, rentalID, status, closedAt, domain.RentalStatusActive)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return customError.WrapInvalidState("rental is no longer active", customError.ErrRentalNotActive)
	}

	if status == domain.RentalStatusCancelled {
		cancelQuery := `
			UPDATE payments
			SET status = $2
			WHERE rental_id = $1 AND status = $3
		`
		if _, err := tx.ExecContext(ctx, cancelQuery, rentalID, domain.PaymentStatusCancelled, domain.PaymentStatusPending); err != nil {
			return err
		}
	}

	if err := syncEquipment(ctx, tx, rental.EquipmentID); err != nil {
		return err
	}

	return tx.Commit()
}

// MarkPaymentPaid settles one scheduled payment. The guarded UPDATE only
// matches a PENDING row of the given rental, so settling twice, or settling a
// cancelled payment, is refused rather than silently rewritten.
func (r *rentalRepository) MarkPaymentPaid(ctx context.Context, rentalID, paymentID uuid.UUID, paidAt time.Time) (*domain.Payment, error) {
	updateQuery := `
		UPDATE payments
		SET status = $3, paid_at = $4
		WHERE id = $1 AND rental_id = $2 AND status = $5
	`
	res, err := r.db.ExecContext(ctx, updateQuery,
		paymentID, rentalID, domain.PaymentStatusPaid, paidAt, domain.PaymentStatusPending,
	)
	if err != nil {
		return nil, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}

	getQuery := `
		SELECT id, rental_id, due_date, amount, type, status, paid_at, created_at
		FROM payments
		WHERE id = $1 AND rental_id = $2
	`
	var payment domain.Payment
	if err := r.db.GetContext(ctx, &payment, getQuery, paymentID, rentalID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapPaymentNotFound(paymentID.String())
		}
		return nil, err
	}
	if n == 0 {
		return nil, customError.WrapInvalidState(
			fmt.Sprintf("payment %s is %s", payment.ID, payment.Status),
			customError.ErrPaymentNotPending,
		)
	}

	return &payment, nil
}

func (r *rentalRepository) ListExpired(ctx context.Context, asOf time.Time) ([]*domain.Rental, error) {
	query := `
		SELECT id, equipment_id, client_id, provider_id, start_date, end_date,
		       monthly_rate, total_amount, deposit_amount, frequency, status, notes, created_at, updated_at
		FROM rentals
		WHERE status = $1 AND end_date < $2
		ORDER BY end_date
	`

	var rentals []*domain.Rental
	if err := r.db.SelectContext(ctx, &rentals, query, domain.RentalStatusActive, asOf); err != nil {
		return nil, err
	}

	return rentals, nil
}

func lockEquipment(ctx context.Context, tx *sqlx.Tx, equipmentID uuid.UUID) error {
	var id uuid.UUID
	err := tx.GetContext(ctx, &id, `SELECT id FROM equipment WHERE id = $1 FOR UPDATE`, equipmentID)
	if errors.Is(err, sql.ErrNoRows) {
		return customError.WrapEquipmentNotFound(equipmentID.String())
	}
	return err
}

// activeIntervals loads the occupied windows of a unit inside the current
// transaction. excludeRentalID skips the rental being extended.
func activeIntervals(ctx context.Context, tx *sqlx.Tx, equipmentID, excludeRentalID uuid.UUID) ([]domain.Interval, error) {
	query := `
		SELECT start_date, end_date
		FROM rentals
		WHERE equipment_id = $1 AND status = $2 AND id <> $3
		ORDER BY start_date
	`

	rows, err := tx.QueryxContext(ctx, query, equipmentID, domain.RentalStatusActive, excludeRentalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var intervals []domain.Interval
	for rows.Next() {
		var iv domain.Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, err
		}
		intervals = append(intervals, iv)
	}

	return intervals, rows.Err()
}

func insertPayments(ctx context.Context, tx *sqlx.Tx, payments []*domain.Payment) error {
	query := `
		INSERT INTO payments (id, rental_id, due_date, amount, type, status, paid_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	for _, payment := range payments {
		_, err := tx.ExecContext(ctx, query,
			payment.ID,
			payment.RentalID,
			payment.DueDate,
			payment.Amount,
			payment.Type,
			payment.Status,
			payment.PaidAt,
			time.Now(),
		)
		if err != nil {
			return err
		}
	}

	return nil
}

// syncEquipment derives the unit's status from its remaining ACTIVE rentals
// after a lifecycle write. A unit may carry several non-overlapping ACTIVE
// windows; it is RENTED by whichever rental's window contains now, AVAILABLE
// otherwise. Closing a future rental therefore never releases a unit that is
// mid-term with another client.
func syncEquipment(ctx context.Context, tx *sqlx.Tx, equipmentID uuid.UUID) error {
	occupancyQuery := `
		SELECT client_id, start_date, end_date
		FROM rentals
		WHERE equipment_id = $1 AND status = $2
	`

	rows, err := tx.QueryxContext(ctx, occupancyQuery, equipmentID, domain.RentalStatusActive)
	if err != nil {
		return err
	}
	defer rows.Close()

	now := time.Now()
	status := domain.EquipmentStatusAvailable
	var renterID *uuid.UUID
	for rows.Next() {
		var clientID uuid.UUID
		var start, end time.Time
		if err := rows.Scan(&clientID, &start, &end); err != nil {
			return err
		}
		if !start.After(now) && !end.Before(now) {
			status = domain.EquipmentStatusRented
			renterID = &clientID
			break
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	// The row set must be drained before the next statement runs on this
	// transaction's connection.
	rows.Close()

	query := `
		UPDATE equipment
		SET status = $2, current_renter_id = $3, updated_at = $4
		WHERE id = $1
	`

	_, err = tx.ExecContext(ctx, query, equipmentID, status, renterID, now)
	return err
}
