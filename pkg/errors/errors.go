package errors

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrInvalidRentalPeriod     = errors.New("rental end date must be after start date")
	ErrInvalidAmount           = errors.New("amount must be positive")
	ErrEquipmentNotFound       = errors.New("equipment not found")
	ErrCompanyNotFound         = errors.New("company not found")
	ErrRentalNotFound          = errors.New("rental not found")
	ErrInvoiceNotFound         = errors.New("invoice not found")
	ErrPaymentNotFound         = errors.New("payment not found")
	ErrPaymentNotPending       = errors.New("payment is not pending")
	ErrRentalConflict          = errors.New("rental interval overlaps an existing allocation")
	ErrRentalNotActive         = errors.New("rental is not active")
	ErrEquipmentNotRentable    = errors.New("equipment cannot be rented in its current status")
	ErrEquipmentNotOwned       = errors.New("equipment does not belong to the provider")
	ErrNotClientCompany        = errors.New("company is not an active client")
	ErrInvoiceNotPayable       = errors.New("invoice does not accept payments in its current status")
	ErrInvoiceNotPending       = errors.New("invoice is no longer pending")
	ErrPaymentExceedsRemaining = errors.New("payment exceeds the remaining invoice balance")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeInvalidState  = "INVALID_STATE"
	ErrCodeDatabaseError = "DATABASE_ERROR"
)

var notFoundErrs = []error{
	ErrEquipmentNotFound, ErrCompanyNotFound, ErrRentalNotFound,
	ErrInvoiceNotFound, ErrPaymentNotFound,
}

var conflictErrs = []error{
	ErrRentalConflict, ErrRentalNotActive, ErrEquipmentNotRentable,
	ErrInvoiceNotPayable, ErrInvoiceNotPending, ErrPaymentNotPending,
}

var validationErrs = []error{
	ErrInvalidRentalPeriod, ErrInvalidAmount, ErrEquipmentNotOwned,
	ErrNotClientCompany, ErrPaymentExceedsRemaining,
}

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// IsValidation reports whether err is a malformed-input rejection.
func IsValidation(err error) bool { return isAny(err, validationErrs) }

// IsNotFound reports whether err is a missing-entity rejection.
func IsNotFound(err error) bool { return isAny(err, notFoundErrs) }

// IsConflict reports whether err is a business-rule rejection: an overlapping
// rental interval or an invalid state transition. Conflicts never partially
// commit.
func IsConflict(err error) bool { return isAny(err, conflictErrs) }

// Wrap common errors with business context

func WrapValidation(message string, err error) *BusinessError {
	return NewBusinessError(ErrCodeValidation, message, err)
}

func WrapEquipmentNotFound(id string) *BusinessError {
	return NewBusinessError(
		ErrCodeNotFound,
		fmt.Sprintf("Equipment with ID %s not found", id),
		ErrEquipmentNotFound,
	)
}

func WrapCompanyNotFound(id string) *BusinessError {
	return NewBusinessError(
		ErrCodeNotFound,
		fmt.Sprintf("Company with ID %s not found", id),
		ErrCompanyNotFound,
	)
}

func WrapRentalNotFound(id string) *BusinessError {
	return NewBusinessError(
		ErrCodeNotFound,
		fmt.Sprintf("Rental with ID %s not found", id),
		ErrRentalNotFound,
	)
}

func WrapInvoiceNotFound(id string) *BusinessError {
	return NewBusinessError(
		ErrCodeNotFound,
		fmt.Sprintf("Invoice with ID %s not found", id),
		ErrInvoiceNotFound,
	)
}

func WrapPaymentNotFound(id string) *BusinessError {
	return NewBusinessError(
		ErrCodeNotFound,
		fmt.Sprintf("Payment with ID %s not found", id),
		ErrPaymentNotFound,
	)
}

func WrapRentalConflict(equipmentID string) *BusinessError {
	return NewBusinessError(
		ErrCodeConflict,
		fmt.Sprintf("Requested period overlaps an existing rental for equipment %s", equipmentID),
		ErrRentalConflict,
	)
}

func WrapInvalidState(message string, err error) *BusinessError {
	return NewBusinessError(ErrCodeInvalidState, message, err)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		err,
	)
}
