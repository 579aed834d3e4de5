package domain

import "time"

// Entitlement is the coarse subscription tier gating features and limits.
type Entitlement string

const (
	EntitlementFree Entitlement = "FREE"
	EntitlementPro  Entitlement = "PRO"
)

// DefaultFreeBillLimit is the fallback free-tier bill cap when the
// configured value is unset or invalid.
const DefaultFreeBillLimit = 50

// UserProfile is the owning identity of a bill collection.
// Anonymous (guest) profiles are local-only and never mirrored.
type UserProfile struct {
	UID         string      `json:"uid"`
	Email       string      `json:"email,omitempty"`
	DisplayName string      `json:"display_name,omitempty"`
	PhoneNumber string      `json:"phone_number,omitempty"`
	IsAnonymous bool        `json:"is_anonymous"`
	Entitlement Entitlement `json:"entitlement"`
	Currency    string      `json:"currency"`
}

// ProfilePatch enumerates the fields a user may change on their own
// profile. Entitlement moves only through the upgrade flow or the
// administrative overlay.
type ProfilePatch struct {
	DisplayName *string `json:"display_name,omitempty"`
	PhoneNumber *string `json:"phone_number,omitempty"`
	Currency    *string `json:"currency,omitempty"`
}

// UpgradeRequest records a completed checkout for the Pro upgrade.
type UpgradeRequest struct {
	PaymentReference string `json:"payment_reference"`
}

// AttachAccountRequest links a local session to an authenticated
// account, after which bills are mirrored remotely.
type AttachAccountRequest struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
}

// AdminLoginRequest is the operator credential payload.
type AdminLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AdminLoginResponse carries the operator bearer token.
type AdminLoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}
