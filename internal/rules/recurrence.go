package rules

import (
	"time"

	"github.com/billminder/billminder-go/internal/domain"
)

// NextDueDate computes the due date of the next cycle when a recurring
// bill is settled. One-time and unknown frequencies return the input
// unchanged: recurrence sits on a path that must never fail, so bad
// input fails closed rather than erroring.
//
// Month arithmetic clamps to the last valid day of the target month:
// Jan 31 + 1 month lands on Feb 29 in a leap year, not Mar 2. Go's
// AddDate rolls over instead, so days are clamped explicitly.
// Time-of-day and location of the original due date are preserved.
func NextDueDate(due time.Time, freq domain.Frequency, intervalMonths int) time.Time {
	switch freq {
	case domain.FrequencyMonthly:
		return addMonthsClamped(due, 1)
	case domain.FrequencyTermly:
		return addMonthsClamped(due, 4)
	case domain.FrequencyYearly:
		return addMonthsClamped(due, 12)
	case domain.FrequencyCustom:
		if intervalMonths < 1 {
			intervalMonths = 1
		}
		return addMonthsClamped(due, intervalMonths)
	default:
		return due
	}
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	target := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if last := daysInMonth(target.Year(), target.Month()); d > last {
		d = last
	}
	return time.Date(target.Year(), target.Month(), d,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// daysInMonth returns the number of days in the given month; day 0 of
// the following month is its last day.
func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
