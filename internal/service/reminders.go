package service

import (
	"context"
	"fmt"
	"time"

	"github.com/billminder/billminder-go/internal/domain"
	"github.com/billminder/billminder-go/internal/infra/observability"
	"github.com/billminder/billminder-go/internal/port"
	"github.com/billminder/billminder-go/internal/rules"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var reminderTracer = otel.Tracer("service/reminders")

// ReminderService scans a user's bills and produces due-date
// reminders: overdue, due today, due tomorrow, due in three days.
// Each bill yields at most one reminder per day; delivery is the
// caller's concern.
type ReminderService struct {
	store   port.LocalStore
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewReminderService creates a new reminder service.
func NewReminderService(store port.LocalStore, metrics *observability.Metrics, logger *zap.Logger) *ReminderService {
	return &ReminderService{
		store:   store,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Scan returns the reminders currently due for the user and stamps
// each reminded bill's LastNotifiedAt so it stays quiet until
// tomorrow.
func (s *ReminderService) Scan(ctx context.Context, userID string) ([]domain.Reminder, error) {
	ctx, span := reminderTracer.Start(ctx, "ReminderService.Scan")
	defer span.End()

	bills, err := s.store.ListBills(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var reminders []domain.Reminder
	for i := range bills {
		bill := &bills[i]
		r := buildReminder(bill, now)
		if r == nil {
			continue
		}
		if notifiedToday(bill.LastNotifiedAt, now) {
			continue
		}

		bill.LastNotifiedAt = &now
		if err := s.store.PutBill(ctx, bill); err != nil {
			s.logger.Warn("failed to stamp reminder time",
				zap.String("bill_id", bill.ID),
				zap.Error(err),
			)
			continue
		}
		s.metrics.IncrReminder()
		reminders = append(reminders, *r)
	}
	return reminders, nil
}

// buildReminder decides whether the bill deserves a reminder right
// now, nil when it does not.
func buildReminder(bill *domain.Bill, now time.Time) *domain.Reminder {
	status := rules.ResolveStatus(bill.DueDate, bill.Status, now)
	if status == domain.StatusPaid {
		return nil
	}

	days := rules.DaysUntilDue(bill.DueDate, now)
	r := domain.Reminder{
		BillID:   bill.ID,
		BillName: bill.Name,
		DueDate:  bill.DueDate,
		Status:   status,
		DaysLeft: days,
	}

	switch {
	case status == domain.StatusOverdue:
		r.Title = "Bill overdue"
		if days == -1 {
			r.Body = fmt.Sprintf("%s was due yesterday", bill.Name)
		} else {
			r.Body = fmt.Sprintf("%s is %d days overdue", bill.Name, -days)
		}
	case status == domain.StatusDueToday:
		r.Title = "Bill due today"
		r.Body = fmt.Sprintf("%s is due today", bill.Name)
	case days == 1:
		r.Title = "Bill due tomorrow"
		r.Body = fmt.Sprintf("%s is due tomorrow", bill.Name)
	case days == 3:
		r.Title = "Bill due soon"
		r.Body = fmt.Sprintf("%s is due in 3 days", bill.Name)
	default:
		return nil
	}
	return &r
}

// notifiedToday reports whether the bill was already reminded on the
// same calendar day as now.
func notifiedToday(last *time.Time, now time.Time) bool {
	if last == nil {
		return false
	}
	ly, lm, ld := last.UTC().Date()
	ny, nm, nd := now.UTC().Date()
	return ly == ny && lm == nm && ld == nd
}
