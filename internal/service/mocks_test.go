package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/coldrent/rental-engine/internal/domain"
)

type MockRentalRepository struct {
	mock.Mock
}

func (m *MockRentalRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Rental, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Rental), args.Error(1)
}

func (m *MockRentalRepository) GetActiveByEquipmentID(ctx context.Context, equipmentID uuid.UUID) ([]*domain.Rental, error) {
	args := m.Called(ctx, equipmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Rental), args.Error(1)
}

func (m *MockRentalRepository) GetPayments(ctx context.Context, rentalID uuid.UUID) ([]*domain.Payment, error) {
	args := m.Called(ctx, rentalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Payment), args.Error(1)
}

func (m *MockRentalRepository) CreateWithSchedule(ctx context.Context, rental *domain.Rental, payments []*domain.Payment) error {
	args := m.Called(ctx, rental, payments)
	return args.Error(0)
}

func (m *MockRentalRepository) ExtendWithSchedule(ctx context.Context, rental *domain.Rental, newEndDate time.Time, newTotal decimal.Decimal, payments []*domain.Payment) error {
	args := m.Called(ctx, rental, newEndDate, newTotal, payments)
	return args.Error(0)
}

func (m *MockRentalRepository) MarkPaymentPaid(ctx context.Context, rentalID, paymentID uuid.UUID, paidAt time.Time) (*domain.Payment, error) {
	args := m.Called(ctx, rentalID, paymentID, paidAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockRentalRepository) Close(ctx context.Context, rentalID uuid.UUID, status string, closedAt time.Time) error {
	args := m.Called(ctx, rentalID, status, closedAt)
	return args.Error(0)
}

func (m *MockRentalRepository) ListExpired(ctx context.Context, asOf time.Time) ([]*domain.Rental, error) {
	args := m.Called(ctx, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Rental), args.Error(1)
}

type MockEquipmentRepository struct {
	mock.Mock
}

func (m *MockEquipmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Equipment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Equipment), args.Error(1)
}

func (m *MockEquipmentRepository) SetStatus(ctx context.Context, id uuid.UUID, status string, renterID *uuid.UUID) error {
	args := m.Called(ctx, id, status, renterID)
	return args.Error(0)
}

type MockCompanyRepository struct {
	mock.Mock
}

func (m *MockCompanyRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Company, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Company), args.Error(1)
}

type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) Create(ctx context.Context, invoice *domain.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *MockInvoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) List(ctx context.Context, filter domain.InvoiceFilter) ([]*domain.Invoice, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) RecordPayment(ctx context.Context, id uuid.UUID, amount decimal.Decimal, method string, paidAt time.Time) (*domain.Invoice, error) {
	args := m.Called(ctx, id, amount, method, paidAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) MarkOverdue(ctx context.Context, id uuid.UUID, asOf time.Time) (*domain.Invoice, error) {
	args := m.Called(ctx, id, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) MarkOverdueBefore(ctx context.Context, asOf time.Time) (int64, error) {
	args := m.Called(ctx, asOf)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockInvoiceRepository) Cancel(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }
