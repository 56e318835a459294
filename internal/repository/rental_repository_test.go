package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldrent/rental-engine/internal/domain"
	customError "github.com/coldrent/rental-engine/pkg/errors"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testRental() *domain.Rental {
	return &domain.Rental{
		ID:            uuid.New(),
		EquipmentID:   uuid.New(),
		ClientID:      uuid.New(),
		ProviderID:    uuid.New(),
		StartDate:     day(2024, time.January, 1),
		EndDate:       day(2024, time.June, 1),
		MonthlyRate:   decimal.NewFromInt(1000),
		TotalAmount:   decimal.NewFromInt(6000),
		DepositAmount: decimal.NewFromInt(500),
		Frequency:     domain.FrequencyMonthly,
		Status:        domain.RentalStatusActive,
	}
}

func testPayments(rental *domain.Rental, n int) []*domain.Payment {
	payments := make([]*domain.Payment, 0, n)
	for i := 0; i < n; i++ {
		payments = append(payments, &domain.Payment{
			ID:       uuid.New(),
			RentalID: rental.ID,
			DueDate:  rental.StartDate.AddDate(0, i, 0),
			Amount:   rental.MonthlyRate,
			Type:     domain.PaymentTypeRental,
			Status:   domain.PaymentStatusPending,
		})
	}
	return payments
}

func TestCreateWithSchedule_Success(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRentalRepository(db)

	rental := testRental()
	payments := testPayments(rental, 2)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM equipment").
		WithArgs(rental.EquipmentID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(rental.EquipmentID.String()))
	mock.ExpectQuery("SELECT start_date, end_date").
		WithArgs(rental.EquipmentID, domain.RentalStatusActive, uuid.Nil).
		WillReturnRows(sqlmock.NewRows([]string{"start_date", "end_date"}))
	mock.ExpectExec("INSERT INTO rentals").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO payments").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO payments").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT client_id, start_date, end_date").
		WithArgs(rental.EquipmentID, domain.RentalStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"client_id", "start_date", "end_date"}).
			AddRow(rental.ClientID.String(), time.Now().AddDate(0, 0, -1), time.Now().AddDate(0, 1, 0)))
	mock.ExpectExec("UPDATE equipment").
		WithArgs(rental.EquipmentID, domain.EquipmentStatusRented, rental.ClientID, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.CreateWithSchedule(context.Background(), rental, payments)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithSchedule_FutureWindowKeepsCurrentRenter(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRentalRepository(db)

	rental := testRental()
	occupant := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM equipment").
		WithArgs(rental.EquipmentID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(rental.EquipmentID.String()))
	mock.ExpectQuery("SELECT start_date, end_date").
		WithArgs(rental.EquipmentID, domain.RentalStatusActive, uuid.Nil).
		WillReturnRows(sqlmock.NewRows([]string{"start_date", "end_date"}))
	mock.ExpectExec("INSERT INTO rentals").WillReturnResult(sqlmock.NewResult(1, 1))
	// Another client is mid-term on the unit; the new booking is for a later
	// window, so the unit's occupant must not change.
	mock.ExpectQuery("SELECT client_id, start_date, end_date").
		WithArgs(rental.EquipmentID, domain.RentalStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"client_id", "start_date", "end_date"}).
			AddRow(occupant.String(), time.Now().AddDate(0, -1, 0), time.Now().AddDate(0, 2, 0)).
			AddRow(rental.ClientID.String(), time.Now().AddDate(0, 3, 0), time.Now().AddDate(0, 6, 0)))
	mock.ExpectExec("UPDATE equipment").
		WithArgs(rental.EquipmentID, domain.EquipmentStatusRented, occupant, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.CreateWithSchedule(context.Background(), rental, nil)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithSchedule_OverlapRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRentalRepository(db)

	rental := testRental()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM equipment").
		WithArgs(rental.EquipmentID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(rental.EquipmentID.String()))
	// Existing allocation ends exactly on the requested start date. Touching
	// boundaries count as overlap.
	mock.ExpectQuery("SELECT start_date, end_date").
		WithArgs(rental.EquipmentID, domain.RentalStatusActive, uuid.Nil).
		WillReturnRows(sqlmock.NewRows([]string{"start_date", "end_date"}).
			AddRow(day(2023, time.October, 1), day(2024, time.January, 1)))
	mock.ExpectRollback()

	err := repo.CreateWithSchedule(context.Background(), rental, testPayments(rental, 2))

	assert.Error(t, err)
	assert.ErrorIs(t, err, customError.ErrRentalConflict)
	// Nothing was inserted: the rollback expectation above is the next
	// statement after the conflict check.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithSchedule_EquipmentMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRentalRepository(db)

	rental := testRental()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM equipment").
		WithArgs(rental.EquipmentID).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := repo.CreateWithSchedule(context.Background(), rental, nil)

	assert.Error(t, err)
	assert.ErrorIs(t, err, customError.ErrEquipmentNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExtendWithSchedule_TailConflict(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRentalRepository(db)

	rental := testRental()
	newEnd := day(2024, time.August, 1)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM equipment").
		WithArgs(rental.EquipmentID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(rental.EquipmentID.String()))
	mock.ExpectQuery("SELECT status, end_date FROM rentals").
		WithArgs(rental.ID).
		WillReturnRows(sqlmock.NewRows([]string{"status", "end_date"}).
			AddRow(domain.RentalStatusActive, rental.EndDate))
	mock.ExpectQuery("SELECT start_date, end_date").
		WithArgs(rental.EquipmentID, domain.RentalStatusActive, rental.ID).
		WillReturnRows(sqlmock.NewRows([]string{"start_date", "end_date"}).
			AddRow(day(2024, time.July, 1), day(2024, time.December, 1)))
	mock.ExpectRollback()

	err := repo.ExtendWithSchedule(context.Background(), rental, newEnd, decimal.NewFromInt(8000), nil)

	assert.Error(t, err)
	assert.ErrorIs(t, err, customError.ErrRentalConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExtendWithSchedule_RentalNoLongerActive(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRentalRepository(db)

	rental := testRental()
	newEnd := day(2024, time.August, 1)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM equipment").
		WithArgs(rental.EquipmentID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(rental.EquipmentID.String()))
	mock.ExpectQuery("SELECT status, end_date FROM rentals").
		WithArgs(rental.ID).
		WillReturnRows(sqlmock.NewRows([]string{"status", "end_date"}).
			AddRow(domain.RentalStatusCancelled, rental.EndDate))
	mock.ExpectRollback()

	err := repo.ExtendWithSchedule(context.Background(), rental, newEnd, decimal.NewFromInt(8000), nil)

	assert.Error(t, err)
	assert.ErrorIs(t, err, customError.ErrRentalNotActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExtendWithSchedule_ConcurrentExtensionRefused(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRentalRepository(db)

	// The caller computed the tail schedule from an end date of Jun 1, but a
	// concurrent extension already moved the row to Aug 1. Writing the stale
	// batch would bill July and August twice, so the write must be refused
	// with nothing inserted.
	rental := testRental()
	stalePayments := testPayments(rental, 2)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM equipment").
		WithArgs(rental.EquipmentID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(rental.EquipmentID.String()))
	mock.ExpectQuery("SELECT status, end_date FROM rentals").
		WithArgs(rental.ID).
		WillReturnRows(sqlmock.NewRows([]string{"status", "end_date"}).
			AddRow(domain.RentalStatusActive, day(2024, time.August, 1)))
	mock.ExpectRollback()

	err := repo.ExtendWithSchedule(context.Background(), rental, day(2024, time.October, 1), decimal.NewFromInt(10000), stalePayments)

	assert.Error(t, err)
	assert.ErrorIs(t, err, customError.ErrRentalConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func rentalRows(rental *domain.Rental) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "equipment_id", "client_id", "provider_id", "start_date", "end_date",
		"monthly_rate", "total_amount", "deposit_amount", "frequency", "status", "notes",
		"created_at", "updated_at",
	}).AddRow(
		rental.ID.String(), rental.EquipmentID.String(), rental.ClientID.String(), rental.ProviderID.String(),
		rental.StartDate, rental.EndDate,
		rental.MonthlyRate.String(), rental.TotalAmount.String(), rental.DepositAmount.String(),
		rental.Frequency, rental.Status, rental.Notes,
		now, now,
	)
}

func TestClose_CancellationCancelsPendingPayments(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRentalRepository(db)

	rental := testRental()
	closedAt := day(2024, time.March, 15)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM rentals").
		WithArgs(rental.ID).
		WillReturnRows(rentalRows(rental))
	mock.ExpectQuery("SELECT id FROM equipment").
		WithArgs(rental.EquipmentID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(rental.EquipmentID.String()))
	mock.ExpectExec("UPDATE rentals").
		WithArgs(rental.ID, domain.RentalStatusCancelled, closedAt, domain.RentalStatusActive).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE payments").
		WithArgs(rental.ID, domain.PaymentStatusCancelled, domain.PaymentStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectQuery("SELECT client_id, start_date, end_date").
		WithArgs(rental.EquipmentID, domain.RentalStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"client_id", "start_date", "end_date"}))
	mock.ExpectExec("UPDATE equipment").
		WithArgs(rental.EquipmentID, domain.EquipmentStatusAvailable, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Close(context.Background(), rental.ID, domain.RentalStatusCancelled, closedAt)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClose_CompletionLeavesPaymentsAlone(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRentalRepository(db)

	rental := testRental()
	closedAt := day(2024, time.June, 2)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM rentals").
		WithArgs(rental.ID).
		WillReturnRows(rentalRows(rental))
	mock.ExpectQuery("SELECT id FROM equipment").
		WithArgs(rental.EquipmentID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(rental.EquipmentID.String()))
	mock.ExpectExec("UPDATE rentals").
		WithArgs(rental.ID, domain.RentalStatusCompleted, closedAt, domain.RentalStatusActive).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT client_id, start_date, end_date").
		WithArgs(rental.EquipmentID, domain.RentalStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"client_id", "start_date", "end_date"}))
	mock.ExpectExec("UPDATE equipment").
		WithArgs(rental.EquipmentID, domain.EquipmentStatusAvailable, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Close(context.Background(), rental.ID, domain.RentalStatusCompleted, closedAt)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClose_FutureRentalKeepsOccupiedUnit(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRentalRepository(db)

	// Cancelling a booking that has not started yet must not release the
	// unit out from under the rental currently occupying it.
	rental := testRental()
	occupant := uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM rentals").
		WithArgs(rental.ID).
		WillReturnRows(rentalRows(rental))
	mock.ExpectQuery("SELECT id FROM equipment").
		WithArgs(rental.EquipmentID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(rental.EquipmentID.String()))
	mock.ExpectExec("UPDATE rentals").
		WithArgs(rental.ID, domain.RentalStatusCancelled, sqlmock.AnyArg(), domain.RentalStatusActive).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE payments").
		WithArgs(rental.ID, domain.PaymentStatusCancelled, domain.PaymentStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery("SELECT client_id, start_date, end_date").
		WithArgs(rental.EquipmentID, domain.RentalStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"client_id", "start_date", "end_date"}).
			AddRow(occupant.String(), now.AddDate(0, -1, 0), now.AddDate(0, 2, 0)))
	mock.ExpectExec("UPDATE equipment").
		WithArgs(rental.EquipmentID, domain.EquipmentStatusRented, occupant, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Close(context.Background(), rental.ID, domain.RentalStatusCancelled, now)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClose_AlreadyClosed(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRentalRepository(db)

	rental := testRental()
	rental.Status = domain.RentalStatusCompleted
	closedAt := day(2024, time.June, 2)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM rentals").
		WithArgs(rental.ID).
		WillReturnRows(rentalRows(rental))
	mock.ExpectQuery("SELECT id FROM equipment").
		WithArgs(rental.EquipmentID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(rental.EquipmentID.String()))
	mock.ExpectExec("UPDATE rentals").
		WithArgs(rental.ID, domain.RentalStatusCancelled, closedAt, domain.RentalStatusActive).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Close(context.Background(), rental.ID, domain.RentalStatusCancelled, closedAt)

	assert.Error(t, err)
	assert.ErrorIs(t, err, customError.ErrRentalNotActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkPaymentPaid_Success(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRentalRepository(db)

	rentalID := uuid.New()
	paymentID := uuid.New()
	paidAt := day(2024, time.February, 3)

	mock.ExpectExec("UPDATE payments").
		WithArgs(paymentID, rentalID, domain.PaymentStatusPaid, paidAt, domain.PaymentStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM payments").
		WithArgs(paymentID, rentalID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "rental_id", "due_date", "amount", "type", "status", "paid_at", "created_at"}).
			AddRow(paymentID.String(), rentalID.String(), day(2024, time.February, 1), "1000",
				domain.PaymentTypeRental, domain.PaymentStatusPaid, paidAt, day(2024, time.January, 1)))

	payment, err := repo.MarkPaymentPaid(context.Background(), rentalID, paymentID, paidAt)

	assert.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, payment.Status)
	assert.True(t, payment.PaidAt.Valid)
	assert.True(t, payment.PaidAt.Time.Equal(paidAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkPaymentPaid_AlreadySettled(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRentalRepository(db)

	rentalID := uuid.New()
	paymentID := uuid.New()
	paidAt := day(2024, time.February, 3)

	mock.ExpectExec("UPDATE payments").
		WithArgs(paymentID, rentalID, domain.PaymentStatusPaid, paidAt, domain.PaymentStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FROM payments").
		WithArgs(paymentID, rentalID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "rental_id", "due_date", "amount", "type", "status", "paid_at", "created_at"}).
			AddRow(paymentID.String(), rentalID.String(), day(2024, time.February, 1), "1000",
				domain.PaymentTypeRental, domain.PaymentStatusPaid, day(2024, time.February, 1), day(2024, time.January, 1)))

	payment, err := repo.MarkPaymentPaid(context.Background(), rentalID, paymentID, paidAt)

	assert.Nil(t, payment)
	assert.ErrorIs(t, err, customError.ErrPaymentNotPending)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkPaymentPaid_Missing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRentalRepository(db)

	rentalID := uuid.New()
	paymentID := uuid.New()
	paidAt := day(2024, time.February, 3)

	mock.ExpectExec("UPDATE payments").
		WithArgs(paymentID, rentalID, domain.PaymentStatusPaid, paidAt, domain.PaymentStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FROM payments").
		WithArgs(paymentID, rentalID).
		WillReturnError(sql.ErrNoRows)

	payment, err := repo.MarkPaymentPaid(context.Background(), rentalID, paymentID, paidAt)

	assert.Nil(t, payment)
	assert.ErrorIs(t, err, customError.ErrPaymentNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
