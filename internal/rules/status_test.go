package rules

import (
	"testing"
	"time"

	"github.com/billminder/billminder-go/internal/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestResolveStatus(t *testing.T) {
	now := time.Date(2024, time.June, 15, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name      string
		dueDate   time.Time
		persisted domain.BillStatus
		want      domain.BillStatus
	}{
		{
			name:      "due strictly after today is upcoming",
			dueDate:   date(2024, time.June, 16),
			persisted: domain.StatusUpcoming,
			want:      domain.StatusUpcoming,
		},
		{
			name:      "due same day is due today",
			dueDate:   date(2024, time.June, 15),
			persisted: domain.StatusUpcoming,
			want:      domain.StatusDueToday,
		},
		{
			name:      "due strictly before today is overdue",
			dueDate:   date(2024, time.June, 14),
			persisted: domain.StatusUpcoming,
			want:      domain.StatusOverdue,
		},
		{
			name:      "time of day in due date is ignored",
			dueDate:   time.Date(2024, time.June, 15, 23, 59, 59, 0, time.UTC),
			persisted: domain.StatusUpcoming,
			want:      domain.StatusDueToday,
		},
		{
			name:      "stale persisted overdue re-derives to upcoming",
			dueDate:   date(2024, time.July, 1),
			persisted: domain.StatusOverdue,
			want:      domain.StatusUpcoming,
		},
		{
			name:      "persisted paid is terminal regardless of due date",
			dueDate:   date(2020, time.January, 1),
			persisted: domain.StatusPaid,
			want:      domain.StatusPaid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveStatus(tt.dueDate, tt.persisted, now)
			if got != tt.want {
				t.Errorf("ResolveStatus() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveStatus_Idempotent(t *testing.T) {
	now := time.Date(2024, time.June, 15, 9, 0, 0, 0, time.UTC)
	due := date(2024, time.June, 10)

	first := ResolveStatus(due, domain.StatusUpcoming, now)
	second := ResolveStatus(due, domain.StatusUpcoming, now)

	if first != second {
		t.Errorf("resolution is not idempotent: %v then %v", first, second)
	}
	if first != domain.StatusOverdue {
		t.Errorf("expected OVERDUE, got %v", first)
	}
}

func TestDaysUntilDue(t *testing.T) {
	now := time.Date(2024, time.June, 15, 22, 0, 0, 0, time.UTC)

	tests := []struct {
		due  time.Time
		want int
	}{
		{time.Date(2024, time.June, 15, 1, 0, 0, 0, time.UTC), 0},
		{date(2024, time.June, 16), 1},
		{date(2024, time.June, 18), 3},
		{date(2024, time.June, 12), -3},
	}

	for _, tt := range tests {
		if got := DaysUntilDue(tt.due, now); got != tt.want {
			t.Errorf("DaysUntilDue(%v) = %d, want %d", tt.due, got, tt.want)
		}
	}
}
