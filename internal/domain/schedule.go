package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coldrent/rental-engine/pkg/utils"
)

// Billing frequencies and their month intervals.
const (
	FrequencyMonthly    = "MONTHLY"
	FrequencyQuarterly  = "QUARTERLY"
	FrequencySemiannual = "SEMIANNUAL"
	FrequencyAnnual     = "ANNUAL"
)

// FrequencyMonths maps a billing frequency to its interval in months.
func FrequencyMonths(frequency string) (int, error) {
	switch frequency {
	case FrequencyMonthly:
		return 1, nil
	case FrequencyQuarterly:
		return 3, nil
	case FrequencySemiannual:
		return 6, nil
	case FrequencyAnnual:
		return 12, nil
	default:
		return 0, fmt.Errorf("unknown billing frequency %q", frequency)
	}
}

// ScheduleOptions holds the inputs for generating a rental's payment
// schedule.
type ScheduleOptions struct {
	RentalID      uuid.UUID
	StartDate     time.Time
	EndDate       time.Time
	MonthlyRate   decimal.Decimal
	DepositAmount decimal.Decimal
	Frequency     string

	// ProrateFinalPeriod bills a trailing period shorter than the cadence
	// per covered month instead of the full period amount.
	ProrateFinalPeriod bool
}

// GenerateSchedule produces the ordered payment obligations for a rental:
// an optional DEPOSIT due at the start date, then one RENTAL payment per
// billing period at every cadence date inside the closed contract interval.
// Dates are strictly increasing and cover the contract without gaps.
func GenerateSchedule(opts ScheduleOptions) ([]*Payment, error) {
	iv := Interval{Start: opts.StartDate, End: opts.EndDate}
	if !iv.Valid() {
		return nil, fmt.Errorf("rental period end %s is not after start %s",
			opts.EndDate.Format(time.DateOnly), opts.StartDate.Format(time.DateOnly))
	}

	step, err := FrequencyMonths(opts.Frequency)
	if err != nil {
		return nil, err
	}

	var payments []*Payment

	if opts.DepositAmount.IsPositive() {
		payments = append(payments, &Payment{
			ID:       uuid.New(),
			RentalID: opts.RentalID,
			DueDate:  opts.StartDate,
			Amount:   opts.DepositAmount.Round(2),
			Type:     PaymentTypeDeposit,
			Status:   PaymentStatusPending,
		})
	}

	for date := opts.StartDate; !date.After(opts.EndDate); date = date.AddDate(0, step, 0) {
		payments = append(payments, &Payment{
			ID:       uuid.New(),
			RentalID: opts.RentalID,
			DueDate:  date,
			Amount:   periodCharge(date, opts.EndDate, step, opts.MonthlyRate, opts.ProrateFinalPeriod),
			Type:     PaymentTypeRental,
			Status:   PaymentStatusPending,
		})
	}

	return payments, nil
}

// ExtensionOptions holds the inputs for continuing an existing schedule past
// the previous contract end.
type ExtensionOptions struct {
	RentalID    uuid.UUID
	LastDueDate time.Time // due date of the last scheduled payment
	NewEndDate  time.Time
	MonthlyRate decimal.Decimal
	Frequency   string

	ProrateFinalPeriod bool
}

// ExtendSchedule emits the RENTAL_EXTENSION payments for the added tail of
// an extended rental, continuing at the existing cadence from the last
// scheduled payment date so already-billed periods are never billed twice.
func ExtendSchedule(opts ExtensionOptions) ([]*Payment, error) {
	step, err := FrequencyMonths(opts.Frequency)
	if err != nil {
		return nil, err
	}

	var payments []*Payment
	for date := opts.LastDueDate.AddDate(0, step, 0); !date.After(opts.NewEndDate); date = date.AddDate(0, step, 0) {
		payments = append(payments, &Payment{
			ID:       uuid.New(),
			RentalID: opts.RentalID,
			DueDate:  date,
			Amount:   periodCharge(date, opts.NewEndDate, step, opts.MonthlyRate, opts.ProrateFinalPeriod),
			Type:     PaymentTypeRentalExtension,
			Status:   PaymentStatusPending,
		})
	}

	return payments, nil
}

// ScheduleTotal sums the non-deposit charges of a schedule. Rental totals
// are derived from the schedule, so the sum of non-cancelled payments always
// matches total plus deposit.
func ScheduleTotal(payments []*Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		if p.Type == PaymentTypeDeposit {
			continue
		}
		total = total.Add(p.Amount)
	}
	return total
}

func periodCharge(periodStart, end time.Time, step int, monthlyRate decimal.Decimal, prorate bool) decimal.Decimal {
	months := step
	if prorate {
		if covered := utils.MonthsCovered(periodStart, end); covered < step {
			months = covered
		}
	}
	return utils.PeriodAmount(monthlyRate, months)
}
