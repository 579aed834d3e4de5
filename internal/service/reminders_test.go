package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/billminder/billminder-go/internal/domain"
	"github.com/billminder/billminder-go/internal/infra/observability"

	"go.uber.org/zap"
)

func newTestReminderService(store *memStore) *ReminderService {
	svc := NewReminderService(store, observability.NewMetrics(), zap.NewNop())
	svc.now = fixedClock(2025, time.June, 15)
	return svc
}

func putDue(t *testing.T, store *memStore, id string, due time.Time) {
	t.Helper()
	err := store.PutBill(context.Background(), &domain.Bill{
		ID: id, UserID: "u1", Name: id,
		DueDate: due, Frequency: domain.FrequencyMonthly,
		Status: domain.StatusUpcoming,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestReminderScan_Windows(t *testing.T) {
	store := newMemStore()
	svc := newTestReminderService(store)
	ctx := context.Background()

	day := func(d int) time.Time { return time.Date(2025, time.June, d, 0, 0, 0, 0, time.UTC) }
	putDue(t, store, "overdue", day(10))
	putDue(t, store, "today", day(15))
	putDue(t, store, "tomorrow", day(16))
	putDue(t, store, "twodays", day(17)) // outside every window
	putDue(t, store, "threedays", day(18))
	putDue(t, store, "faraway", day(30))

	reminders, err := svc.Scan(ctx, "u1")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	got := map[string]domain.Reminder{}
	for _, r := range reminders {
		got[r.BillID] = r
	}
	if len(got) != 4 {
		t.Fatalf("got %d reminders (%v), want 4", len(got), got)
	}
	if r := got["overdue"]; r.Status != domain.StatusOverdue || !strings.Contains(r.Body, "5 days overdue") {
		t.Errorf("overdue reminder wrong: %+v", r)
	}
	if r := got["today"]; r.Status != domain.StatusDueToday {
		t.Errorf("today reminder wrong: %+v", r)
	}
	if r, ok := got["tomorrow"]; !ok || r.DaysLeft != 1 {
		t.Errorf("tomorrow reminder wrong: %+v", r)
	}
	if r, ok := got["threedays"]; !ok || r.DaysLeft != 3 {
		t.Errorf("three-day reminder wrong: %+v", r)
	}
}

func TestReminderScan_OncePerDay(t *testing.T) {
	store := newMemStore()
	svc := newTestReminderService(store)
	ctx := context.Background()

	putDue(t, store, "today", time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC))

	first, err := svc.Scan(ctx, "u1")
	if err != nil {
		t.Fatalf("first scan: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("first scan produced %d reminders", len(first))
	}

	second, err := svc.Scan(ctx, "u1")
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if len(second) != 0 {
		t.Errorf("second scan on the same day produced %d reminders", len(second))
	}

	// Next day it fires again.
	svc.now = fixedClock(2025, time.June, 16)
	third, err := svc.Scan(ctx, "u1")
	if err != nil {
		t.Fatalf("third scan: %v", err)
	}
	if len(third) != 1 {
		t.Errorf("next-day scan produced %d reminders, want 1", len(third))
	}
}

func TestReminderScan_SkipsPaid(t *testing.T) {
	store := newMemStore()
	svc := newTestReminderService(store)
	ctx := context.Background()

	store.PutBill(ctx, &domain.Bill{
		ID: "settled", UserID: "u1", Name: "settled",
		DueDate:   time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC),
		Frequency: domain.FrequencyOneTime,
		Status:    domain.StatusPaid,
	})

	reminders, err := svc.Scan(ctx, "u1")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(reminders) != 0 {
		t.Errorf("paid bill produced %d reminders", len(reminders))
	}
}
