package service

import (
	"context"
	"time"

	"github.com/billminder/billminder-go/internal/domain"
	"github.com/billminder/billminder-go/internal/infra/observability"
	"github.com/billminder/billminder-go/internal/port"
	"github.com/billminder/billminder-go/internal/rules"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var adminTracer = otel.Tracer("service/admin")

const statsCacheKey = "admin:stats"

// AdminService is the privileged overlay: cross-owner reads, tier and
// restriction changes, direct bill patches, system config and the
// audit trail. It bypasses the per-user lifecycle entirely; every
// mutation is recorded in the audit log.
type AdminService struct {
	store   port.AdminStore
	local   port.LocalStore
	cache   port.Cache[domain.AdminStats]
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewAdminService creates a new admin service.
func NewAdminService(store port.AdminStore, local port.LocalStore, cache port.Cache[domain.AdminStats], metrics *observability.Metrics, logger *zap.Logger) *AdminService {
	return &AdminService{
		store:   store,
		local:   local,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Stats returns the dashboard snapshot, cached for the cache TTL.
func (s *AdminService) Stats(ctx context.Context) (*domain.AdminStats, error) {
	ctx, span := adminTracer.Start(ctx, "AdminService.Stats")
	defer span.End()

	if cached, ok := s.cache.Get(statsCacheKey); ok {
		s.metrics.IncrCacheHit("admin_stats")
		return &cached, nil
	}
	s.metrics.IncrCacheMiss("admin_stats")

	bills, err := s.store.ListAllBills(ctx)
	if err != nil {
		return nil, err
	}
	userCount, err := s.store.CountUsers(ctx)
	if err != nil {
		return nil, err
	}
	sysCfg, err := s.store.GetSystemConfig(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	stats := domain.AdminStats{
		TotalUsers:   userCount,
		TotalBills:   len(bills),
		SystemHealth: "Optimal",
	}
	if sysCfg[domain.ConfigKeyMaintenanceMode] == "true" {
		stats.SystemHealth = "Maintenance"
	}
	for _, b := range bills {
		if b.Amount == nil {
			continue
		}
		stats.TotalVolume += *b.Amount
		if rules.ResolveStatus(b.DueDate, b.Status, now) == domain.StatusPaid || b.LastPaidDate != nil {
			stats.TotalPaidVolume += *b.Amount
		}
	}

	s.cache.Set(statsCacheKey, stats)
	return &stats, nil
}

// ListUsers returns every user including restriction state.
func (s *AdminService) ListUsers(ctx context.Context) ([]domain.AdminUserRecord, error) {
	ctx, span := adminTracer.Start(ctx, "AdminService.ListUsers")
	defer span.End()

	return s.store.ListAllUsers(ctx)
}

// ListBills returns every bill across all owners with effective
// status resolved.
func (s *AdminService) ListBills(ctx context.Context) ([]domain.BillView, error) {
	ctx, span := adminTracer.Start(ctx, "AdminService.ListBills")
	defer span.End()

	bills, err := s.store.ListAllBills(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	views := make([]domain.BillView, 0, len(bills))
	for _, b := range bills {
		views = append(views, domain.BillView{
			Bill:            b,
			EffectiveStatus: rules.ResolveStatus(b.DueDate, b.Status, now),
		})
	}
	return views, nil
}

// ChangeTier moves a user between entitlement tiers.
func (s *AdminService) ChangeTier(ctx context.Context, actorID, uid string, req *domain.TierChangeRequest) error {
	ctx, span := adminTracer.Start(ctx, "AdminService.ChangeTier")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", uid))

	switch req.Entitlement {
	case domain.EntitlementFree, domain.EntitlementPro:
	default:
		return &domain.ErrValidation{Field: "entitlement", Message: "unknown entitlement tier"}
	}

	current, err := s.store.GetUser(ctx, uid)
	if err != nil {
		return err
	}
	if current == nil {
		return &domain.ErrNotFound{Resource: "user", ID: uid}
	}

	fields := map[string]any{
		"entitlement":            string(req.Entitlement),
		"entitlement_updated_at": s.now().UTC().Format(time.RFC3339Nano),
	}
	if err := s.store.PatchProfile(ctx, uid, fields); err != nil {
		return err
	}

	s.appendAudit(ctx, actorID, "TIER_CHANGE", "user", uid, map[string]any{
		"old_value": string(current.Entitlement),
		"new_value": string(req.Entitlement),
		"reason":    req.Reason,
	})
	s.logger.Info("admin changed user tier",
		zap.String("user_id", uid),
		zap.String("old_entitlement", string(current.Entitlement)),
		zap.String("entitlement", string(req.Entitlement)),
		zap.String("actor", actorID),
	)
	return nil
}

// Restrict disables, restricts or re-enables a user account.
func (s *AdminService) Restrict(ctx context.Context, actorID, uid string, req *domain.RestrictionRequest) error {
	ctx, span := adminTracer.Start(ctx, "AdminService.Restrict")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", uid))

	var fields map[string]any
	switch req.Action {
	case domain.RestrictionDisable:
		fields = map[string]any{
			"is_disabled":        true,
			"is_restricted":      false,
			"restriction_reason": req.Reason,
		}
	case domain.RestrictionRestrict:
		fields = map[string]any{
			"is_disabled":        false,
			"is_restricted":      true,
			"restriction_reason": req.Reason,
		}
	case domain.RestrictionEnable:
		fields = map[string]any{
			"is_disabled":        false,
			"is_restricted":      false,
			"restriction_reason": nil,
		}
	default:
		return &domain.ErrValidation{Field: "action", Message: "unknown restriction action"}
	}

	current, err := s.store.GetUser(ctx, uid)
	if err != nil {
		return err
	}
	if current == nil {
		return &domain.ErrNotFound{Resource: "user", ID: uid}
	}

	if err := s.store.PatchProfile(ctx, uid, fields); err != nil {
		return err
	}

	s.appendAudit(ctx, actorID, "RESTRICTION_"+string(req.Action), "user", uid, map[string]any{
		"old_value": map[string]any{
			"is_disabled":   current.IsDisabled,
			"is_restricted": current.IsRestricted,
		},
		"new_value": map[string]any{
			"is_disabled":   fields["is_disabled"],
			"is_restricted": fields["is_restricted"],
		},
		"reason": req.Reason,
	})
	s.logger.Info("admin changed user restriction",
		zap.String("user_id", uid),
		zap.String("action", string(req.Action)),
		zap.String("actor", actorID),
	)
	return nil
}

// PatchBill applies the overlay fields (dispute flag, waiver amount,
// admin notes) directly onto a bill.
func (s *AdminService) PatchBill(ctx context.Context, actorID, billID string, patch *domain.AdminBillPatch) error {
	ctx, span := adminTracer.Start(ctx, "AdminService.PatchBill")
	defer span.End()
	span.SetAttributes(attribute.String("bill.id", billID))

	fields := map[string]any{}
	if patch.IsDisputed != nil {
		fields["is_disputed"] = *patch.IsDisputed
	}
	if patch.WaiverAmount != nil {
		if *patch.WaiverAmount < 0 {
			return &domain.ErrValidation{Field: "waiverAmount", Message: "waiver cannot be negative"}
		}
		fields["waiver_amount"] = *patch.WaiverAmount
	}
	if patch.AdminNotes != nil {
		fields["admin_notes"] = *patch.AdminNotes
	}
	if len(fields) == 0 {
		return &domain.ErrValidation{Field: "patch", Message: "no fields to patch"}
	}

	current, err := s.store.GetBill(ctx, billID)
	if err != nil {
		return err
	}
	if current == nil {
		return &domain.ErrNotFound{Resource: "bill", ID: billID}
	}
	before := map[string]any{}
	if patch.IsDisputed != nil {
		before["is_disputed"] = current.IsDisputed
	}
	if patch.WaiverAmount != nil {
		before["waiver_amount"] = current.WaiverAmount
	}
	if patch.AdminNotes != nil {
		before["admin_notes"] = current.AdminNotes
	}

	fields["updated_at"] = s.now().UTC().Format(time.RFC3339Nano)
	if err := s.store.PatchBill(ctx, billID, fields); err != nil {
		return err
	}

	s.appendAudit(ctx, actorID, "BILL_PATCH", "bill", billID, map[string]any{
		"old_value": before,
		"new_value": fields,
		"reason":    patch.Reason,
	})
	return nil
}

// GetConfig reads one system config value.
func (s *AdminService) GetConfig(ctx context.Context, key string) (string, error) {
	ctx, span := adminTracer.Start(ctx, "AdminService.GetConfig")
	defer span.End()

	if err := validateConfigKey(key); err != nil {
		return "", err
	}
	cfg, err := s.store.GetSystemConfig(ctx)
	if err != nil {
		return "", err
	}
	value, ok := cfg[key]
	if !ok {
		return "", &domain.ErrNotFound{Resource: "config", ID: key}
	}
	return value, nil
}

// PutConfig updates one system config value and writes it through to
// the local store so the lifecycle sees it on the next decision.
func (s *AdminService) PutConfig(ctx context.Context, actorID, key, value string) error {
	ctx, span := adminTracer.Start(ctx, "AdminService.PutConfig")
	defer span.End()
	span.SetAttributes(attribute.String("config.key", key))

	if err := validateConfigKey(key); err != nil {
		return err
	}

	var oldValue string
	if cfg, err := s.store.GetSystemConfig(ctx); err == nil {
		oldValue = cfg[key]
	}

	if err := s.store.PutSystemConfig(ctx, key, value); err != nil {
		return err
	}
	if err := s.local.PutConfigValue(ctx, key, value); err != nil {
		s.logger.Warn("failed to write system config through to local store",
			zap.String("key", key),
			zap.Error(err),
		)
	}
	s.cache.Delete(statsCacheKey)

	s.appendAudit(ctx, actorID, "CONFIG_UPDATE", "config", key, map[string]any{
		"old_value": oldValue,
		"new_value": value,
	})
	s.logger.Info("admin updated system config",
		zap.String("key", key),
		zap.String("value", value),
		zap.String("actor", actorID),
	)
	return nil
}

// AuditLogs returns the most recent audit entries.
func (s *AdminService) AuditLogs(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	ctx, span := adminTracer.Start(ctx, "AdminService.AuditLogs")
	defer span.End()

	return s.store.ListAudit(ctx, limit)
}

// PurgeAuditLogs clears the audit trail. The purge itself is the
// first entry of the fresh trail.
func (s *AdminService) PurgeAuditLogs(ctx context.Context, actorID string) error {
	ctx, span := adminTracer.Start(ctx, "AdminService.PurgeAuditLogs")
	defer span.End()

	if err := s.store.PurgeAudit(ctx); err != nil {
		return err
	}
	s.appendAudit(ctx, actorID, "AUDIT_PURGE", "audit", "all", nil)
	s.logger.Info("admin purged audit logs", zap.String("actor", actorID))
	return nil
}

// appendAudit records an admin mutation. Audit failures are logged
// and never fail the mutation they describe.
func (s *AdminService) appendAudit(ctx context.Context, actorID, actionType, entityType, entityID string, metadata map[string]any) {
	entry := &domain.AuditEntry{
		ID:         uuid.NewString(),
		ActorID:    actorID,
		ActionType: actionType,
		EntityType: entityType,
		EntityID:   entityID,
		Metadata:   metadata,
		CreatedAt:  s.now(),
	}
	if err := s.store.AppendAudit(ctx, entry); err != nil {
		s.logger.Error("failed to append audit entry",
			zap.String("action", actionType),
			zap.String("entity_id", entityID),
			zap.Error(err),
		)
	}
}

func validateConfigKey(key string) error {
	switch key {
	case domain.ConfigKeyFreeBillLimit, domain.ConfigKeyMaintenanceMode, domain.ConfigKeyPaymentValidation:
		return nil
	}
	return &domain.ErrValidation{Field: "key", Message: "unknown config key"}
}
