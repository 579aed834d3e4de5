package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/billminder/billminder-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// profileRow is the profiles table shape on the PostgREST side.
type profileRow struct {
	UID         string  `json:"uid"`
	Email       *string `json:"email"`
	DisplayName *string `json:"display_name"`
	PhoneNumber *string `json:"phone_number"`
	Entitlement string  `json:"entitlement"`
	Currency    *string `json:"currency"`
}

// GetProfile fetches the mirrored profile for uid, nil when absent.
func (c *Client) GetProfile(ctx context.Context, uid string) (*domain.UserProfile, error) {
	ctx, span := tracer.Start(ctx, "supabase.GetProfile")
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

	var rows []profileRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse profile response: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	p := rows[0].toDomain()
	return &p, nil
}

// UpsertProfile pushes a profile to the remote mirror. Anonymous
// profiles never reach here; the mirror only holds linked accounts.
func (c *Client) UpsertProfile(ctx context.Context, profile *domain.UserProfile) error {
	ctx, span := tracer.Start(ctx, "supabase.UpsertProfile")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", profile.UID))

	row := map[string]any{
		"uid":         profile.UID,
		"entitlement": string(profile.Entitlement),
	}
	if profile.Email != "" {
		row["email"] = profile.Email
	}
	if profile.DisplayName != "" {
		row["display_name"] = profile.DisplayName
	}
	if profile.PhoneNumber != "" {
		row["phone_number"] = profile.PhoneNumber
	}
	if profile.Currency != "" {
		row["currency"] = profile.Currency
	}

	return c.execute(ctx, func() error {
		_, err := c.doPost(ctx, "profiles?on_conflict=uid", row, true)
		return err
	})
}

func (r profileRow) toDomain() domain.UserProfile {
	p := domain.UserProfile{
		UID:         r.UID,
		Entitlement: domain.Entitlement(r.Entitlement),
	}
	if r.Email != nil {
		p.Email = *r.Email
	}
	if r.DisplayName != nil {
		p.DisplayName = *r.DisplayName
	}
	if r.PhoneNumber != nil {
		p.PhoneNumber = *r.PhoneNumber
	}
	if r.Currency != nil {
		p.Currency = *r.Currency
	}
	if p.Entitlement == "" {
		p.Entitlement = domain.EntitlementFree
	}
	if p.Currency == "" {
		p.Currency = "NGN"
	}
	return p
}
