package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/billminder/billminder-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// AdminStore: privileged cross-owner reads and overlay writes.
// All of this rides the service role key; none of it is reachable
// from the per-user lifecycle.
// ============================================================

// adminUserRow is the profiles table shape including the restriction
// columns that the per-user path never selects.
type adminUserRow struct {
	profileRow
	IsDisabled           bool    `json:"is_disabled"`
	IsRestricted         bool    `json:"is_restricted"`
	RestrictionReason    *string `json:"restriction_reason"`
	EntitlementUpdatedAt *string `json:"entitlement_updated_at"`
	CreatedAt            string  `json:"created_at"`
	AdminNotes           *string `json:"admin_notes"`
}

func (r adminUserRow) toRecord() domain.AdminUserRecord {
	rec := domain.AdminUserRecord{
		UserProfile:  r.profileRow.toDomain(),
		IsDisabled:   r.IsDisabled,
		IsRestricted: r.IsRestricted,
		CreatedAt:    parseRemoteTime(r.CreatedAt),
	}
	if r.RestrictionReason != nil {
		rec.RestrictionReason = *r.RestrictionReason
	}
	if r.EntitlementUpdatedAt != nil {
		t := parseRemoteTime(*r.EntitlementUpdatedAt)
		rec.EntitlementUpdatedAt = &t
	}
	if r.AdminNotes != nil {
		rec.AdminNotes = *r.AdminNotes
	}
	return rec
}

type configRow struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type auditRow struct {
	ID         string         `json:"id"`
	ActorID    string         `json:"actor_id"`
	ActionType string         `json:"action_type"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Metadata   map[string]any `json:"metadata"`
	CreatedAt  string         `json:"created_at"`
}

// ListAllBills reads every bill across all owners.
func (c *Client) ListAllBills(ctx context.Context) ([]domain.Bill, error) {
	ctx, span := tracer.Start(ctx, "supabase.ListAllBills")
	defer span.End()

	var body []byte
	err := c.execute(ctx, func() error {
		var reqErr error
		body, reqErr = c.doRequest(ctx, http.MethodGet, "bills?order=due_date.asc")
		return reqErr
	})
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}

	var rows []billRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse bills response: %w", err)
	}

	bills := make([]domain.Bill, 0, len(rows))
	for _, r := range rows {
		bills = append(bills, r.toDomain())
	}
	return bills, nil
}

// ListAllUsers reads every profile including restriction state.
func (c *Client) ListAllUsers(ctx context.Context) ([]domain.AdminUserRecord, error) {
	ctx, span := tracer.Start(ctx, "supabase.ListAllUsers")
	defer span.End()

	var body []byte
	err := c.execute(ctx, func() error {
		var reqErr error
		body, reqErr = c.doRequest(ctx, http.MethodGet, "profiles?order=created_at.desc")
		return reqErr
	})
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}

	var rows []adminUserRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse profiles response: %w", err)
	}

	users := make([]domain.AdminUserRecord, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toRecord())
	}
	return users, nil
}

// GetUser reads one profile with restriction state, nil when absent.
func (c *Client) GetUser(ctx context.Context, uid string) (*domain.AdminUserRecord, error) {
	ctx, span := tracer.Start(ctx, "supabase.GetUser")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", uid))

	var body []byte
	err := c.execute(ctx, func() error {
		var reqErr error
		path := fmt.Sprintf("profiles?uid=eq.%s&limit=1", url.QueryEscape(uid))
		body, reqErr = c.doRequest(ctx, http.MethodGet, path)
		return reqErr
	})
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}

	var rows []adminUserRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse profile response: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	rec := rows[0].toRecord()
	return &rec, nil
}

// GetBill reads one bill regardless of owner, nil when absent.
func (c *Client) GetBill(ctx context.Context, billID string) (*domain.Bill, error) {
	ctx, span := tracer.Start(ctx, "supabase.GetBill")
	defer span.End()
	span.SetAttributes(attribute.String("bill.id", billID))

	var body []byte
	err := c.execute(ctx, func() error {
		var reqErr error
		path := fmt.Sprintf("bills?id=eq.%s&limit=1", url.QueryEscape(billID))
		body, reqErr = c.doRequest(ctx, http.MethodGet, path)
		return reqErr
	})
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}

	var rows []billRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse bill response: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	b := rows[0].toDomain()
	return &b, nil
}

// CountUsers returns the total profile count using a HEAD-style
// count query so no rows move over the wire.
func (c *Client) CountUsers(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "supabase.CountUsers")
	defer span.End()

	var body []byte
	err := c.execute(ctx, func() error {
		var reqErr error
		body, reqErr = c.doRequest(ctx, http.MethodGet, "profiles?select=uid")
		return reqErr
	})
	if err != nil {
		return 0, err
	}
	if body == nil {
		return 0, nil
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return 0, fmt.Errorf("failed to parse profiles response: %w", err)
	}
	return len(rows), nil
}

// PatchBill applies the overlay fields onto one bill.
func (c *Client) PatchBill(ctx context.Context, billID string, fields map[string]any) error {
	ctx, span := tracer.Start(ctx, "supabase.PatchBill")
	defer span.End()
	span.SetAttributes(attribute.String("bill.id", billID))

	return c.execute(ctx, func() error {
		return c.doPatch(ctx, fmt.Sprintf("bills?id=eq.%s", url.QueryEscape(billID)), fields)
	})
}

// PatchProfile applies privileged fields onto one profile.
func (c *Client) PatchProfile(ctx context.Context, uid string, fields map[string]any) error {
	ctx, span := tracer.Start(ctx, "supabase.PatchProfile")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", uid))

	return c.execute(ctx, func() error {
		return c.doPatch(ctx, fmt.Sprintf("profiles?uid=eq.%s", url.QueryEscape(uid)), fields)
	})
}

// GetSystemConfig reads every key/value pair from system_config.
func (c *Client) GetSystemConfig(ctx context.Context) (map[string]string, error) {
	ctx, span := tracer.Start(ctx, "supabase.GetSystemConfig")
	defer span.End()

	var body []byte
	err := c.execute(ctx, func() error {
		var reqErr error
		body, reqErr = c.doRequest(ctx, http.MethodGet, "system_config?select=key,value")
		return reqErr
	})
	if err != nil {
		return nil, err
	}

	cfg := make(map[string]string)
	if body == nil {
		return cfg, nil
	}

	var rows []configRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse system_config response: %w", err)
	}
	for _, r := range rows {
		cfg[r.Key] = r.Value
	}
	return cfg, nil
}

// PutSystemConfig upserts one key/value pair into system_config.
func (c *Client) PutSystemConfig(ctx context.Context, key, value string) error {
	ctx, span := tracer.Start(ctx, "supabase.PutSystemConfig")
	defer span.End()
	span.SetAttributes(attribute.String("config.key", key))

	row := map[string]any{
		"key":        key,
		"value":      value,
		"updated_at": time.Now().UTC().Format(time.RFC3339Nano),
	}
	return c.execute(ctx, func() error {
		_, err := c.doPost(ctx, "system_config?on_conflict=key", row, true)
		return err
	})
}

// AppendAudit records one administrative mutation. Audit writes are
// never retried past the resilience policy and never block the
// mutation they describe.
func (c *Client) AppendAudit(ctx context.Context, entry *domain.AuditEntry) error {
	ctx, span := tracer.Start(ctx, "supabase.AppendAudit")
	defer span.End()
	span.SetAttributes(attribute.String("audit.action", entry.ActionType))

	row := map[string]any{
		"id":          entry.ID,
		"actor_id":    entry.ActorID,
		"action_type": entry.ActionType,
		"entity_type": entry.EntityType,
		"entity_id":   entry.EntityID,
		"created_at":  entry.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if entry.Metadata != nil {
		row["metadata"] = entry.Metadata
	}
	return c.execute(ctx, func() error {
		_, err := c.doPost(ctx, "audit_logs", row, false)
		return err
	})
}

// ListAudit returns the most recent audit entries, newest first.
func (c *Client) ListAudit(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	ctx, span := tracer.Start(ctx, "supabase.ListAudit")
	defer span.End()

	if limit < 1 {
		limit = 100
	}

	var body []byte
	err := c.execute(ctx, func() error {
		var reqErr error
		path := fmt.Sprintf("audit_logs?order=created_at.desc&limit=%d", limit)
		body, reqErr = c.doRequest(ctx, http.MethodGet, path)
		return reqErr
	})
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}

	var rows []auditRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse audit_logs response: %w", err)
	}

	entries := make([]domain.AuditEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, domain.AuditEntry{
			ID:         r.ID,
			ActorID:    r.ActorID,
			ActionType: r.ActionType,
			EntityType: r.EntityType,
			EntityID:   r.EntityID,
			Metadata:   r.Metadata,
			CreatedAt:  parseRemoteTime(r.CreatedAt),
		})
	}
	return entries, nil
}

// PurgeAudit clears the audit trail. PostgREST refuses an unfiltered
// DELETE, so the filter matches every row.
func (c *Client) PurgeAudit(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "supabase.PurgeAudit")
	defer span.End()

	return c.execute(ctx, func() error {
		return c.doDelete(ctx, "audit_logs?id=not.is.null")
	})
}
