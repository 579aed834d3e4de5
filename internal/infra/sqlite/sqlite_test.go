package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/billminder/billminder-go/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "billminder-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

func testBill(userID, name string, due time.Time) *domain.Bill {
	now := time.Now().UTC().Truncate(time.Second)
	amount := 120.50
	return &domain.Bill{
		ID:           "bill-" + name,
		UserID:       userID,
		Name:         name,
		Amount:       &amount,
		Currency:     "NGN",
		DueDate:      due,
		Frequency:    domain.FrequencyMonthly,
		Status:       domain.StatusUpcoming,
		RequireProof: true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestStore_BillRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	due := time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)
	original := testBill("user-1", "Electricity", due)
	paid := time.Date(2024, time.May, 1, 12, 30, 0, 0, time.UTC)
	original.LastPaidDate = &paid
	original.TransactionRef = "BM-001"

	if err := store.PutBill(ctx, original); err != nil {
		t.Fatalf("PutBill failed: %v", err)
	}

	got, err := store.GetBill(ctx, "user-1", original.ID)
	if err != nil {
		t.Fatalf("GetBill failed: %v", err)
	}

	if got.Name != "Electricity" {
		t.Errorf("Name mismatch: got %s", got.Name)
	}
	if got.Amount == nil || *got.Amount != 120.50 {
		t.Errorf("Amount mismatch: got %v", got.Amount)
	}
	if !got.DueDate.Equal(due) {
		t.Errorf("DueDate mismatch: got %v, want %v", got.DueDate, due)
	}
	if got.LastPaidDate == nil || !got.LastPaidDate.Equal(paid) {
		t.Errorf("LastPaidDate mismatch: got %v", got.LastPaidDate)
	}
	if !got.RequireProof {
		t.Error("RequireProof not preserved")
	}
	if got.Frequency != domain.FrequencyMonthly {
		t.Errorf("Frequency mismatch: got %s", got.Frequency)
	}
}

func TestStore_FlexibleAmountIsNull(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	bill := testBill("user-1", "Donation", time.Now().UTC())
	bill.Amount = nil

	if err := store.PutBill(ctx, bill); err != nil {
		t.Fatalf("PutBill failed: %v", err)
	}

	got, err := store.GetBill(ctx, "user-1", bill.ID)
	if err != nil {
		t.Fatalf("GetBill failed: %v", err)
	}
	if got.Amount != nil {
		t.Errorf("expected nil amount, got %v", *got.Amount)
	}
}

func TestStore_ListAndCount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"Rent", "Water", "Internet"} {
		if err := store.PutBill(ctx, testBill("user-1", name, base.AddDate(0, 0, i))); err != nil {
			t.Fatalf("PutBill failed: %v", err)
		}
	}
	// Another owner's bill must not leak into the listing.
	if err := store.PutBill(ctx, testBill("user-2", "Cable", base)); err != nil {
		t.Fatalf("PutBill failed: %v", err)
	}

	bills, err := store.ListBills(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListBills failed: %v", err)
	}
	if len(bills) != 3 {
		t.Fatalf("expected 3 bills, got %d", len(bills))
	}
	if bills[0].Name != "Rent" {
		t.Errorf("expected soonest-due first, got %s", bills[0].Name)
	}

	count, err := store.CountBills(ctx, "user-1")
	if err != nil {
		t.Fatalf("CountBills failed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected count 3, got %d", count)
	}
}

func TestStore_DeleteMissingIsNoOp(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.DeleteBill(ctx, "user-1", "does-not-exist"); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
}

func TestStore_GetMissingBill(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetBill(context.Background(), "user-1", "nope")
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_ReplaceBills(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	if err := store.PutBill(ctx, testBill("user-1", "Old", base)); err != nil {
		t.Fatalf("PutBill failed: %v", err)
	}

	incoming := []domain.Bill{
		*testBill("user-1", "CloudA", base),
		*testBill("user-1", "CloudB", base.AddDate(0, 1, 0)),
	}
	if err := store.ReplaceBills(ctx, "user-1", incoming); err != nil {
		t.Fatalf("ReplaceBills failed: %v", err)
	}

	bills, err := store.ListBills(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListBills failed: %v", err)
	}
	if len(bills) != 2 {
		t.Fatalf("expected 2 bills after replace, got %d", len(bills))
	}
	for _, b := range bills {
		if b.Name == "Old" {
			t.Error("pre-existing bill survived ReplaceBills")
		}
	}
}

func TestStore_ProfileRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	profile := &domain.UserProfile{
		UID:         "user-1",
		Email:       "ada@example.com",
		DisplayName: "Ada",
		IsAnonymous: false,
		Entitlement: domain.EntitlementPro,
		Currency:    "USD",
	}
	if err := store.PutProfile(ctx, profile); err != nil {
		t.Fatalf("PutProfile failed: %v", err)
	}

	got, err := store.GetProfile(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if got.Entitlement != domain.EntitlementPro || got.Currency != "USD" {
		t.Errorf("profile mismatch: %+v", got)
	}
}

func TestStore_SecurityConfigDefaultsOff(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	cfg, err := store.GetSecurityConfig(ctx)
	if err != nil {
		t.Fatalf("GetSecurityConfig failed: %v", err)
	}
	if cfg.PaymentValidationEnabled {
		t.Error("expected payment validation off by default")
	}

	if err := store.PutSecurityConfig(ctx, &domain.SecurityConfig{PaymentValidationEnabled: true}); err != nil {
		t.Fatalf("PutSecurityConfig failed: %v", err)
	}
	cfg, err = store.GetSecurityConfig(ctx)
	if err != nil {
		t.Fatalf("GetSecurityConfig failed: %v", err)
	}
	if !cfg.PaymentValidationEnabled {
		t.Error("expected payment validation on after update")
	}
}
