package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/billminder/billminder-go/internal/domain"
	"github.com/billminder/billminder-go/internal/infra/observability"

	"go.uber.org/zap"
)

func newTestProfileService(store *memStore, remote *recordingRemote) (*ProfileService, *Mirror) {
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	mirror := NewMirror(remoteOrNil(remote), 4, time.Second, metrics, logger)
	return NewProfileService(store, remoteOrNil(remote), mirror, metrics, logger), mirror
}

func TestProfileGet_BootstrapsGuest(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestProfileService(store, nil)

	profile, err := svc.Get(context.Background(), "guest_abc")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !profile.IsAnonymous {
		t.Error("bootstrapped profile must be anonymous")
	}
	if profile.Entitlement != domain.EntitlementFree {
		t.Errorf("entitlement = %s, want FREE", profile.Entitlement)
	}
	if profile.Currency != "NGN" {
		t.Errorf("currency = %q", profile.Currency)
	}

	// Persisted, so the second read returns the same profile.
	again, err := svc.Get(context.Background(), "guest_abc")
	if err != nil {
		t.Fatalf("second Get: %v", err)
	}
	if again.UID != profile.UID {
		t.Error("bootstrap not persisted")
	}
}

func TestProfileUpdate_CurrencyValidated(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestProfileService(store, nil)
	ctx := context.Background()

	bad := "dollars"
	_, err := svc.Update(ctx, "u1", &domain.ProfilePatch{Currency: &bad})
	var verr *domain.ErrValidation
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}

	good := "ngn"
	profile, err := svc.Update(ctx, "u1", &domain.ProfilePatch{Currency: &good})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if profile.Currency != "NGN" {
		t.Errorf("currency = %q, want NGN (upper-cased)", profile.Currency)
	}
}

func TestAttachAccount_PullsRemoteState(t *testing.T) {
	store := newMemStore()
	remote := newRecordingRemote()
	remote.remote["user-1"] = []domain.Bill{
		{
			ID: "cloud-1", UserID: "user-1", Name: "Cloud rent",
			DueDate:   time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC),
			Frequency: domain.FrequencyMonthly, Status: domain.StatusUpcoming,
		},
	}
	svc, mirror := newTestProfileService(store, remote)
	ctx := context.Background()

	profile, err := svc.AttachAccount(ctx, &domain.AttachAccountRequest{
		UID:   "user-1",
		Email: "user@example.com",
	})
	if err != nil {
		t.Fatalf("AttachAccount: %v", err)
	}
	if profile.IsAnonymous {
		t.Error("attached profile must not be anonymous")
	}

	bills, err := store.ListBills(ctx, "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(bills) != 1 || bills[0].ID != "cloud-1" {
		t.Errorf("remote bills not pulled: %+v", bills)
	}

	mirror.Wait()
	if len(remote.profiles) != 1 {
		t.Errorf("profile mirror pushes = %d, want 1", len(remote.profiles))
	}
}

func TestAttachAccount_RejectsGuestUID(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestProfileService(store, nil)

	_, err := svc.AttachAccount(context.Background(), &domain.AttachAccountRequest{
		UID:   "guest_123",
		Email: "x@example.com",
	})
	var verr *domain.ErrValidation
	if !errors.As(err, &verr) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestUpgrade_RequiresReferenceAndIsOnce(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestProfileService(store, nil)
	ctx := context.Background()

	_, err := svc.Upgrade(ctx, "u1", &domain.UpgradeRequest{})
	var verr *domain.ErrValidation
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ErrValidation without a reference", err)
	}

	profile, err := svc.Upgrade(ctx, "u1", &domain.UpgradeRequest{PaymentReference: "PS-123"})
	if err != nil {
		t.Fatalf("Upgrade: %v", err)
	}
	if profile.Entitlement != domain.EntitlementPro {
		t.Errorf("entitlement = %s, want PRO", profile.Entitlement)
	}

	_, err = svc.Upgrade(ctx, "u1", &domain.UpgradeRequest{PaymentReference: "PS-124"})
	var conflict *domain.ErrConflict
	if !errors.As(err, &conflict) {
		t.Errorf("second upgrade err = %v, want ErrConflict", err)
	}
}

func TestGuestProfileNeverMirrored(t *testing.T) {
	store := newMemStore()
	remote := newRecordingRemote()
	svc, mirror := newTestProfileService(store, remote)
	ctx := context.Background()

	name := "Local Only"
	if _, err := svc.Get(ctx, "guest_xyz"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Update(ctx, "guest_xyz", &domain.ProfilePatch{DisplayName: &name}); err != nil {
		t.Fatal(err)
	}
	mirror.Wait()

	if len(remote.profiles) != 0 {
		t.Errorf("guest profile leaked to the remote: %d pushes", len(remote.profiles))
	}
}
