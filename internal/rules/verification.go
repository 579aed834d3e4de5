package rules

import "github.com/billminder/billminder-go/internal/domain"

// StrictVerificationRequired decides whether settling a bill demands a
// transaction reference and proof image. Strict audit is a Pro-gated
// capability: free-tier users are never forced into it, regardless of
// the global flag or the per-bill opt-in.
func StrictVerificationRequired(bill domain.Bill, profile domain.UserProfile, cfg domain.SecurityConfig) bool {
	if profile.Entitlement != domain.EntitlementPro {
		return false
	}
	return cfg.PaymentValidationEnabled || bill.RequireProof
}

// ValidateEvidence checks settlement evidence against the strict
// requirement. When strict mode is off, absent evidence is fine.
func ValidateEvidence(strict bool, transactionRef, proofImage string) error {
	if !strict {
		return nil
	}
	if transactionRef == "" {
		return &domain.ErrValidation{Field: "transaction_ref", Message: "required under strict verification"}
	}
	if proofImage == "" {
		return &domain.ErrValidation{Field: "proof_image", Message: "required under strict verification"}
	}
	return nil
}
