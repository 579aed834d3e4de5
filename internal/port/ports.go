// Package port defines the interfaces (ports) for external
// dependencies. Following hexagonal architecture, these ports decouple
// the domain/service layer from concrete implementations.
package port

import (
	"context"

	"github.com/billminder/billminder-go/internal/domain"
)

// LocalStore is the authoritative, always-available on-device copy.
// Every mutating operation writes here synchronously before it is
// considered complete; the remote mirror is best-effort on top.
type LocalStore interface {
	// Bills
	ListBills(ctx context.Context, userID string) ([]domain.Bill, error)
	GetBill(ctx context.Context, userID, billID string) (*domain.Bill, error)
	CountBills(ctx context.Context, userID string) (int, error)
	PutBill(ctx context.Context, bill *domain.Bill) error
	DeleteBill(ctx context.Context, userID, billID string) error
	ReplaceBills(ctx context.Context, userID string, bills []domain.Bill) error

	// Profile
	GetProfile(ctx context.Context, uid string) (*domain.UserProfile, error)
	PutProfile(ctx context.Context, profile *domain.UserProfile) error

	// Security + system config
	GetSecurityConfig(ctx context.Context) (*domain.SecurityConfig, error)
	PutSecurityConfig(ctx context.Context, cfg *domain.SecurityConfig) error
	GetConfigValue(ctx context.Context, key string) (string, error)
	PutConfigValue(ctx context.Context, key, value string) error
}

// RemoteStore mirrors bills and profiles for non-anonymous users.
// All calls may fail with network errors; callers catch, log and drop
// failures. Local state is the source of truth and is never rolled
// back because a mirror call failed.
type RemoteStore interface {
	FetchBills(ctx context.Context, userID string) ([]domain.Bill, error)
	UpsertBill(ctx context.Context, bill *domain.Bill) error
	DeleteBill(ctx context.Context, billID string) error
	GetProfile(ctx context.Context, uid string) (*domain.UserProfile, error)
	UpsertProfile(ctx context.Context, profile *domain.UserProfile) error
}

// AdminStore is the privileged, out-of-band access path used by the
// administrative overlay. It reads across all owners and patches
// fields the per-user lifecycle never touches.
type AdminStore interface {
	ListAllBills(ctx context.Context) ([]domain.Bill, error)
	ListAllUsers(ctx context.Context) ([]domain.AdminUserRecord, error)
	CountUsers(ctx context.Context) (int, error)
	GetUser(ctx context.Context, uid string) (*domain.AdminUserRecord, error)
	GetBill(ctx context.Context, billID string) (*domain.Bill, error)
	PatchBill(ctx context.Context, billID string, fields map[string]any) error
	PatchProfile(ctx context.Context, uid string, fields map[string]any) error
	GetSystemConfig(ctx context.Context) (map[string]string, error)
	PutSystemConfig(ctx context.Context, key, value string) error
	AppendAudit(ctx context.Context, entry *domain.AuditEntry) error
	ListAudit(ctx context.Context, limit int) ([]domain.AuditEntry, error)
	PurgeAudit(ctx context.Context) error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
