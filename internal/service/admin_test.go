package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/billminder/billminder-go/internal/domain"
	"github.com/billminder/billminder-go/internal/infra/cache"
	"github.com/billminder/billminder-go/internal/infra/observability"
	"github.com/billminder/billminder-go/internal/port"

	"go.uber.org/zap"
)

// memAdminStore is an in-memory AdminStore for tests.
type memAdminStore struct {
	mu           sync.Mutex
	bills        []domain.Bill
	users        []domain.AdminUserRecord
	billPatches  map[string]map[string]any
	userPatches  map[string]map[string]any
	systemConfig map[string]string
	audit        []domain.AuditEntry
}

var _ port.AdminStore = (*memAdminStore)(nil)

func newMemAdminStore() *memAdminStore {
	return &memAdminStore{
		billPatches:  make(map[string]map[string]any),
		userPatches:  make(map[string]map[string]any),
		systemConfig: make(map[string]string),
	}
}

func (m *memAdminStore) ListAllBills(ctx context.Context) ([]domain.Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Bill(nil), m.bills...), nil
}

func (m *memAdminStore) ListAllUsers(ctx context.Context) ([]domain.AdminUserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.AdminUserRecord(nil), m.users...), nil
}

func (m *memAdminStore) CountUsers(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users), nil
}

func (m *memAdminStore) GetUser(ctx context.Context, uid string) (*domain.AdminUserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.UID == uid {
			out := u
			return &out, nil
		}
	}
	return nil, nil
}

func (m *memAdminStore) GetBill(ctx context.Context, billID string) (*domain.Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bills {
		if b.ID == billID {
			out := b
			return &out, nil
		}
	}
	return nil, nil
}

func (m *memAdminStore) PatchBill(ctx context.Context, billID string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.billPatches[billID] = fields
	return nil
}

func (m *memAdminStore) PatchProfile(ctx context.Context, uid string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userPatches[uid] = fields
	return nil
}

func (m *memAdminStore) GetSystemConfig(ctx context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.systemConfig))
	for k, v := range m.systemConfig {
		out[k] = v
	}
	return out, nil
}

func (m *memAdminStore) PutSystemConfig(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.systemConfig[key] = value
	return nil
}

func (m *memAdminStore) AppendAudit(ctx context.Context, entry *domain.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, *entry)
	return nil
}

func (m *memAdminStore) ListAudit(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit > len(m.audit) {
		limit = len(m.audit)
	}
	return append([]domain.AuditEntry(nil), m.audit[:limit]...), nil
}

func (m *memAdminStore) PurgeAudit(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = nil
	return nil
}

func newTestAdminService(store *memAdminStore, local *memStore) *AdminService {
	statsCache := cache.New[domain.AdminStats](time.Minute)
	return NewAdminService(store, local, statsCache, observability.NewMetrics(), zap.NewNop())
}

func TestAdminStats(t *testing.T) {
	store := newMemAdminStore()
	paidAt := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	store.bills = []domain.Bill{
		{ID: "b1", Amount: amount(100), DueDate: time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC), Status: domain.StatusUpcoming},
		{ID: "b2", Amount: amount(50), DueDate: time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC), Status: domain.StatusPaid},
		{ID: "b3", DueDate: time.Date(2025, time.July, 5, 0, 0, 0, 0, time.UTC), Status: domain.StatusUpcoming}, // flexible amount
		{ID: "b4", Amount: amount(25), DueDate: time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC), Status: domain.StatusUpcoming, LastPaidDate: &paidAt},
	}
	store.users = []domain.AdminUserRecord{
		{UserProfile: domain.UserProfile{UID: "u1"}},
		{UserProfile: domain.UserProfile{UID: "u2"}},
	}
	svc := newTestAdminService(store, newMemStore())

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalUsers != 2 || stats.TotalBills != 4 {
		t.Errorf("counts: %+v", stats)
	}
	if stats.TotalVolume != 175 {
		t.Errorf("volume = %v, want 175", stats.TotalVolume)
	}
	if stats.TotalPaidVolume != 75 {
		t.Errorf("paid volume = %v, want 75 (terminal + settled cycle)", stats.TotalPaidVolume)
	}
	if stats.SystemHealth != "Optimal" {
		t.Errorf("health = %q", stats.SystemHealth)
	}

	// Second read hits the cache even after the store changes.
	store.mu.Lock()
	store.bills = nil
	store.mu.Unlock()
	cached, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if cached.TotalBills != 4 {
		t.Errorf("cached TotalBills = %d, want 4", cached.TotalBills)
	}
}

func TestAdminStats_MaintenanceMode(t *testing.T) {
	store := newMemAdminStore()
	store.systemConfig[domain.ConfigKeyMaintenanceMode] = "true"
	svc := newTestAdminService(store, newMemStore())

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.SystemHealth != "Maintenance" {
		t.Errorf("health = %q, want Maintenance", stats.SystemHealth)
	}
}

func TestAdminChangeTier_AuditsAndPatches(t *testing.T) {
	store := newMemAdminStore()
	store.users = []domain.AdminUserRecord{
		{UserProfile: domain.UserProfile{UID: "u1", Entitlement: domain.EntitlementFree}},
	}
	svc := newTestAdminService(store, newMemStore())
	ctx := context.Background()

	err := svc.ChangeTier(ctx, "admin@x.com", "u1", &domain.TierChangeRequest{
		Entitlement: domain.EntitlementPro,
		Reason:      "manual comp",
	})
	if err != nil {
		t.Fatalf("ChangeTier: %v", err)
	}

	patch := store.userPatches["u1"]
	if patch["entitlement"] != "PRO" {
		t.Errorf("patch = %+v", patch)
	}
	if len(store.audit) != 1 || store.audit[0].ActionType != "TIER_CHANGE" {
		t.Fatalf("audit = %+v", store.audit)
	}
	if store.audit[0].ActorID != "admin@x.com" {
		t.Errorf("actor = %q", store.audit[0].ActorID)
	}
	meta := store.audit[0].Metadata
	if meta["old_value"] != "FREE" || meta["new_value"] != "PRO" {
		t.Errorf("audit metadata lacks the prior tier: %+v", meta)
	}

	err = svc.ChangeTier(ctx, "admin@x.com", "u1", &domain.TierChangeRequest{Entitlement: "PLATINUM"})
	var verr *domain.ErrValidation
	if !errors.As(err, &verr) {
		t.Errorf("err = %v, want ErrValidation for unknown tier", err)
	}

	err = svc.ChangeTier(ctx, "admin@x.com", "nobody", &domain.TierChangeRequest{Entitlement: domain.EntitlementPro})
	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) {
		t.Errorf("err = %v, want ErrNotFound for an unknown user", err)
	}
}

func TestAdminRestrict(t *testing.T) {
	store := newMemAdminStore()
	store.users = []domain.AdminUserRecord{
		{UserProfile: domain.UserProfile{UID: "u1"}},
	}
	svc := newTestAdminService(store, newMemStore())
	ctx := context.Background()

	if err := svc.Restrict(ctx, "admin@x.com", "u1", &domain.RestrictionRequest{
		Action: domain.RestrictionDisable,
		Reason: "chargeback abuse",
	}); err != nil {
		t.Fatalf("Restrict: %v", err)
	}
	if patch := store.userPatches["u1"]; patch["is_disabled"] != true {
		t.Errorf("patch = %+v", patch)
	}
	meta := store.audit[0].Metadata
	old, _ := meta["old_value"].(map[string]any)
	next, _ := meta["new_value"].(map[string]any)
	if old["is_disabled"] != false || next["is_disabled"] != true {
		t.Errorf("audit metadata lacks the prior state: %+v", meta)
	}

	if err := svc.Restrict(ctx, "admin@x.com", "u1", &domain.RestrictionRequest{
		Action: domain.RestrictionEnable,
	}); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if patch := store.userPatches["u1"]; patch["is_disabled"] != false || patch["is_restricted"] != false {
		t.Errorf("patch after enable = %+v", patch)
	}
	if len(store.audit) != 2 {
		t.Errorf("audit entries = %d, want 2", len(store.audit))
	}

	err := svc.Restrict(ctx, "admin@x.com", "nobody", &domain.RestrictionRequest{Action: domain.RestrictionDisable})
	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) {
		t.Errorf("err = %v, want ErrNotFound for an unknown user", err)
	}
}

func TestAdminPatchBill(t *testing.T) {
	store := newMemAdminStore()
	store.bills = []domain.Bill{
		{ID: "b1", Name: "Water", WaiverAmount: 10},
	}
	svc := newTestAdminService(store, newMemStore())
	ctx := context.Background()

	disputed := true
	waiver := 25.0
	if err := svc.PatchBill(ctx, "admin@x.com", "b1", &domain.AdminBillPatch{
		IsDisputed:   &disputed,
		WaiverAmount: &waiver,
		Reason:       "customer dispute",
	}); err != nil {
		t.Fatalf("PatchBill: %v", err)
	}
	patch := store.billPatches["b1"]
	if patch["is_disputed"] != true || patch["waiver_amount"] != 25.0 {
		t.Errorf("patch = %+v", patch)
	}
	old, _ := store.audit[0].Metadata["old_value"].(map[string]any)
	if old["is_disputed"] != false || old["waiver_amount"] != 10.0 {
		t.Errorf("audit metadata lacks the prior fields: %+v", old)
	}
	if _, recorded := old["admin_notes"]; recorded {
		t.Errorf("old_value carries a field the patch never touched: %+v", old)
	}

	err := svc.PatchBill(ctx, "admin@x.com", "b1", &domain.AdminBillPatch{Reason: "empty"})
	var verr *domain.ErrValidation
	if !errors.As(err, &verr) {
		t.Errorf("empty patch err = %v, want ErrValidation", err)
	}

	negative := -1.0
	err = svc.PatchBill(ctx, "admin@x.com", "b1", &domain.AdminBillPatch{WaiverAmount: &negative})
	if !errors.As(err, &verr) {
		t.Errorf("negative waiver err = %v, want ErrValidation", err)
	}

	err = svc.PatchBill(ctx, "admin@x.com", "ghost", &domain.AdminBillPatch{IsDisputed: &disputed})
	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) {
		t.Errorf("err = %v, want ErrNotFound for an unknown bill", err)
	}
}

func TestAdminConfig_WriteThrough(t *testing.T) {
	store := newMemAdminStore()
	local := newMemStore()
	svc := newTestAdminService(store, local)
	ctx := context.Background()

	if err := svc.PutConfig(ctx, "admin@x.com", domain.ConfigKeyFreeBillLimit, "75"); err != nil {
		t.Fatalf("PutConfig: %v", err)
	}
	if store.systemConfig[domain.ConfigKeyFreeBillLimit] != "75" {
		t.Error("remote system config not updated")
	}
	if local.config[domain.ConfigKeyFreeBillLimit] != "75" {
		t.Error("config not written through to the local store")
	}

	value, err := svc.GetConfig(ctx, domain.ConfigKeyFreeBillLimit)
	if err != nil || value != "75" {
		t.Errorf("GetConfig = %q, %v", value, err)
	}

	if err := svc.PutConfig(ctx, "admin@x.com", domain.ConfigKeyFreeBillLimit, "100"); err != nil {
		t.Fatalf("second PutConfig: %v", err)
	}
	meta := store.audit[1].Metadata
	if meta["old_value"] != "75" || meta["new_value"] != "100" {
		t.Errorf("audit metadata lacks the replaced value: %+v", meta)
	}

	if err := svc.PutConfig(ctx, "admin@x.com", "favorite_color", "blue"); err == nil {
		t.Error("unknown config key accepted")
	}
}

func TestAdminAuditPurge(t *testing.T) {
	store := newMemAdminStore()
	store.users = []domain.AdminUserRecord{
		{UserProfile: domain.UserProfile{UID: "u1"}},
		{UserProfile: domain.UserProfile{UID: "u2"}},
	}
	svc := newTestAdminService(store, newMemStore())
	ctx := context.Background()

	svc.ChangeTier(ctx, "admin@x.com", "u1", &domain.TierChangeRequest{Entitlement: domain.EntitlementPro})
	svc.ChangeTier(ctx, "admin@x.com", "u2", &domain.TierChangeRequest{Entitlement: domain.EntitlementFree})
	if len(store.audit) != 2 {
		t.Fatalf("audit seed = %d", len(store.audit))
	}

	if err := svc.PurgeAuditLogs(ctx, "admin@x.com"); err != nil {
		t.Fatalf("PurgeAuditLogs: %v", err)
	}
	// The purge itself is recorded as the first entry of the new trail.
	if len(store.audit) != 1 || store.audit[0].ActionType != "AUDIT_PURGE" {
		t.Errorf("audit after purge = %+v", store.audit)
	}
}
