package utils

import (
	"time"

	"github.com/shopspring/decimal"
)

// MonthsCovered counts the calendar months a closed interval [from, end]
// touches at monthly steps from "from": the number of dates
// from, from+1m, from+2m, ... that do not fall after end. A partial trailing
// month counts as a full month. Returns 0 when end is before from.
func MonthsCovered(from, end time.Time) int {
	months := 0
	for d := from; !d.After(end); d = d.AddDate(0, 1, 0) {
		months++
	}
	return months
}

// PeriodAmount is the charge for one billing period of the given length in
// months, rounded to 2 decimal places.
func PeriodAmount(monthlyRate decimal.Decimal, months int) decimal.Decimal {
	return monthlyRate.Mul(decimal.NewFromInt(int64(months))).Round(2)
}

// TruncateToDay drops the time-of-day component. Rental windows and payment
// due dates are day-granular; callers normalize incoming timestamps with this
// before any interval or schedule math.
func TruncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
