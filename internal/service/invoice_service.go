package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aarondl/null/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coldrent/rental-engine/internal/config"
	"github.com/coldrent/rental-engine/internal/domain"
	"github.com/coldrent/rental-engine/internal/repository"
	customError "github.com/coldrent/rental-engine/pkg/errors"
)

// InvoiceService orchestrates the billing-document lifecycle: issuance,
// payment recording, overdue marking, cancellation, and corrections. Issued
// invoices are append-only; a correction is a new document referencing the
// original.
type InvoiceService struct {
	InvoiceRepo repository.InvoiceRepository
	RentalRepo  repository.RentalRepository
	CompanyRepo repository.CompanyRepository
	config      *config.Config
	clock       Clock
}

func NewInvoiceService(
	invoiceRepo repository.InvoiceRepository,
	rentalRepo repository.RentalRepository,
	companyRepo repository.CompanyRepository,
	cfg *config.Config,
	clock Clock,
) *InvoiceService {
	return &InvoiceService{
		InvoiceRepo: invoiceRepo,
		RentalRepo:  rentalRepo,
		CompanyRepo: companyRepo,
		config:      cfg,
		clock:       clock,
	}
}

// Create issues a new invoice. A linked rental supplies the subtotal when
// the request leaves it unset; the tax rate and payment terms come from
// billing config.
func (s *InvoiceService) Create(ctx context.Context, request *domain.CreateInvoiceRequest) (*domain.Invoice, error) {
	client, err := s.CompanyRepo.GetByID(ctx, request.ClientID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapCompanyNotFound(request.ClientID.String())
		}
		return nil, customError.WrapDatabaseError(err)
	}
	if client.Type != domain.CompanyTypeClient {
		return nil, customError.WrapValidation(
			fmt.Sprintf("company %s is not a client", client.ID),
			customError.ErrNotClientCompany,
		)
	}

	subtotal := request.Subtotal
	if request.RentalID != nil {
		rental, err := s.RentalRepo.GetByID(ctx, *request.RentalID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, customError.WrapRentalNotFound(request.RentalID.String())
			}
			return nil, customError.WrapDatabaseError(err)
		}
		if rental.ClientID != request.ClientID {
			return nil, customError.WrapValidation(
				fmt.Sprintf("rental %s belongs to another client", rental.ID),
				customError.ErrNotClientCompany,
			)
		}
		if subtotal.IsZero() {
			subtotal = rental.TotalAmount
		}
	}
	if !subtotal.IsPositive() {
		return nil, customError.WrapValidation("invoice subtotal must be positive", customError.ErrInvalidAmount)
	}

	invoice := s.buildInvoice(request.ClientID, request.RentalID, subtotal, request.Notes)
	if err := s.InvoiceRepo.Create(ctx, invoice); err != nil {
		return nil, asBusinessError(err)
	}

	return invoice, nil
}

// RecordPayment applies a payment to a PENDING or OVERDUE invoice. Partial
// payments are tracked; the invoice becomes PAID once the paid amount covers
// the total.
func (s *InvoiceService) RecordPayment(ctx context.Context, invoiceID uuid.UUID, request *domain.RecordInvoicePaymentRequest) (*domain.Invoice, error) {
	if !request.Amount.IsPositive() {
		return nil, customError.WrapValidation("payment amount must be positive", customError.ErrInvalidAmount)
	}

	invoice, err := s.InvoiceRepo.RecordPayment(ctx, invoiceID, request.Amount.Round(2), request.Method, s.clock.Now())
	if err != nil {
		return nil, asBusinessError(err)
	}

	return invoice, nil
}

// MarkOverdue flips a PENDING invoice past its due date to OVERDUE.
// Idempotent: repeating the call, or calling it on a PAID or CANCELLED
// invoice, changes nothing.
func (s *InvoiceService) MarkOverdue(ctx context.Context, invoiceID uuid.UUID) (*domain.Invoice, error) {
	invoice, err := s.InvoiceRepo.MarkOverdue(ctx, invoiceID, s.clock.Now())
	if err != nil {
		return nil, asBusinessError(err)
	}

	return invoice, nil
}

// MarkOverdueInvoices is the periodic sweep across all PENDING invoices.
func (s *InvoiceService) MarkOverdueInvoices(ctx context.Context) (int64, error) {
	flipped, err := s.InvoiceRepo.MarkOverdueBefore(ctx, s.clock.Now())
	if err != nil {
		return 0, asBusinessError(err)
	}

	return flipped, nil
}

// Cancel voids a PENDING, unpaid invoice. The row is kept for audit.
func (s *InvoiceService) Cancel(ctx context.Context, invoiceID uuid.UUID) error {
	return asBusinessError(s.InvoiceRepo.Cancel(ctx, invoiceID))
}

// CreateCorrection issues a new invoice adjusting a previously issued one.
// The original document is never mutated; the correction carries its own
// sequential number and references the original.
func (s *InvoiceService) CreateCorrection(ctx context.Context, originalID uuid.UUID, request *domain.CorrectionRequest) (*domain.Invoice, error) {
	original, err := s.InvoiceRepo.GetByID(ctx, originalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapInvoiceNotFound(originalID.String())
		}
		return nil, customError.WrapDatabaseError(err)
	}

	if request.Subtotal.IsZero() {
		return nil, customError.WrapValidation("correction subtotal must not be zero", customError.ErrInvalidAmount)
	}

	correction := s.buildInvoice(original.ClientID, original.RentalID, request.Subtotal,
		fmt.Sprintf("correction of %s: %s", original.Number, request.Reason))
	correction.CorrectsInvoiceID = &original.ID

	// A credit note owes the client, not the other way around: nothing is
	// collectible, so it is issued already settled instead of sitting PENDING
	// where the overdue sweep would flip it forever.
	if !correction.Total.IsPositive() {
		correction.Status = domain.InvoiceStatusPaid
		correction.PaidAmount = correction.Total
		correction.PaidAt = null.TimeFrom(correction.IssueDate)
	}

	if err := s.InvoiceRepo.Create(ctx, correction); err != nil {
		return nil, asBusinessError(err)
	}

	return correction, nil
}

// GetByID returns an invoice.
func (s *InvoiceService) GetByID(ctx context.Context, invoiceID uuid.UUID) (*domain.Invoice, error) {
	invoice, err := s.InvoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapInvoiceNotFound(invoiceID.String())
		}
		return nil, customError.WrapDatabaseError(err)
	}

	return invoice, nil
}

// List returns invoices matching the filter.
func (s *InvoiceService) List(ctx context.Context, filter domain.InvoiceFilter) ([]*domain.Invoice, error) {
	invoices, err := s.InvoiceRepo.List(ctx, filter)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	return invoices, nil
}

func (s *InvoiceService) buildInvoice(clientID uuid.UUID, rentalID *uuid.UUID, subtotal decimal.Decimal, notes string) *domain.Invoice {
	subtotal = subtotal.Round(2)
	taxRate := s.config.GetTaxRate()
	taxAmount := subtotal.Mul(taxRate).Round(2)
	issueDate := s.clock.Now()

	return &domain.Invoice{
		ID:         uuid.New(),
		ClientID:   clientID,
		RentalID:   rentalID,
		IssueDate:  issueDate,
		DueDate:    issueDate.AddDate(0, 0, s.config.Billing.PaymentTermsDays),
		Subtotal:   subtotal,
		TaxRate:    taxRate,
		TaxAmount:  taxAmount,
		Total:      subtotal.Add(taxAmount),
		PaidAmount: decimal.Zero,
		Status:     domain.InvoiceStatusPending,
		Notes:      notes,
	}
}
