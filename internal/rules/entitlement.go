package rules

import "github.com/billminder/billminder-go/internal/domain"

// CanCreateBill enforces the free-tier bill ceiling. Pro profiles are
// unlimited. The limit comes from mutable system config, read by the
// caller at decision time; values below 1 fall back to the default.
func CanCreateBill(profile domain.UserProfile, currentCount, configuredLimit int) bool {
	if profile.Entitlement == domain.EntitlementPro {
		return true
	}
	if configuredLimit < 1 {
		configuredLimit = domain.DefaultFreeBillLimit
	}
	return currentCount < configuredLimit
}
