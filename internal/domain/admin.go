package domain

import "time"

// ============================================================
// Administrative overlay: privileged, out-of-band write path.
// Every mutation here is appended to the audit trail.
// ============================================================

// AdminStats is the dashboard snapshot across all owners.
type AdminStats struct {
	TotalUsers      int     `json:"total_users"`
	TotalBills      int     `json:"total_bills"`
	TotalVolume     float64 `json:"total_volume"`
	TotalPaidVolume float64 `json:"total_paid_volume"`
	SystemHealth    string  `json:"system_health"` // Optimal | Maintenance
}

// AdminUserRecord is a user as seen from the admin panel, including
// restriction state not exposed through the normal profile path.
type AdminUserRecord struct {
	UserProfile
	IsDisabled           bool       `json:"is_disabled"`
	IsRestricted         bool       `json:"is_restricted"`
	RestrictionReason    string     `json:"restriction_reason,omitempty"`
	EntitlementUpdatedAt *time.Time `json:"entitlement_updated_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	AdminNotes           string     `json:"admin_notes,omitempty"`
}

// AdminBillPatch is the privileged patch onto a bill. It is the only
// path through which the overlay fields are reachable.
type AdminBillPatch struct {
	IsDisputed   *bool    `json:"is_disputed,omitempty"`
	WaiverAmount *float64 `json:"waiver_amount,omitempty"`
	AdminNotes   *string  `json:"admin_notes,omitempty"`
	Reason       string   `json:"reason"`
}

// RestrictionAction is an admin action on a user account.
type RestrictionAction string

const (
	RestrictionDisable  RestrictionAction = "DISABLE"
	RestrictionRestrict RestrictionAction = "RESTRICT"
	RestrictionEnable   RestrictionAction = "ENABLE"
)

// TierChangeRequest moves a user between entitlement tiers.
type TierChangeRequest struct {
	Entitlement Entitlement `json:"entitlement"`
	Reason      string      `json:"reason"`
}

// RestrictionRequest disables, restricts or re-enables a user.
type RestrictionRequest struct {
	Action RestrictionAction `json:"action"`
	Reason string            `json:"reason"`
}

// AuditEntry records one administrative mutation: who did what to
// which entity, with before/after values and a human reason.
type AuditEntry struct {
	ID         string         `json:"id"`
	ActorID    string         `json:"actor_id"`
	ActionType string         `json:"action_type"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// System config keys recognised by the admin overlay.
const (
	ConfigKeyFreeBillLimit     = "free_bill_limit"
	ConfigKeyMaintenanceMode   = "maintenance_mode"
	ConfigKeyPaymentValidation = "payment_validation_enabled"
)
