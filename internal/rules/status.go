// Package rules contains the pure decision functions of the bill
// lifecycle: status resolution, recurrence, payment verification and
// the free-tier limit policy. Nothing here touches a clock or a store;
// callers supply "now" and configuration explicitly so every rule is
// deterministic and testable.
package rules

import (
	"time"

	"github.com/billminder/billminder-go/internal/domain"
)

// ResolveStatus derives the effective display status of a bill from
// its persisted status and due date. A persisted PAID is terminal
// (one-time bills only). Everything else is compared to now at day
// granularity, so the same record drifts UPCOMING → DUE_TODAY →
// OVERDUE purely by elapsed time. The result must never be written
// back to the bill.
func ResolveStatus(dueDate time.Time, persisted domain.BillStatus, now time.Time) domain.BillStatus {
	if persisted == domain.StatusPaid {
		return domain.StatusPaid
	}

	due := truncateToDay(dueDate)
	today := truncateToDay(now)

	switch {
	case due.Equal(today):
		return domain.StatusDueToday
	case due.Before(today):
		return domain.StatusOverdue
	default:
		return domain.StatusUpcoming
	}
}

// truncateToDay drops the time-of-day and offset components, keeping
// only the instant's calendar date. Dates are compared in a single
// zone so a stored "23:30+02:00" and a local "today" agree on the day.
func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysUntilDue returns the whole days between now and the due date at
// day granularity. Zero means due today, negative means overdue.
func DaysUntilDue(dueDate, now time.Time) int {
	due := truncateToDay(dueDate)
	today := truncateToDay(now)
	return int(due.Sub(today).Hours() / 24)
}
