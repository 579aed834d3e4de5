package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/billminder/billminder-go/internal/domain"
	"github.com/billminder/billminder-go/internal/infra/observability"
	"github.com/billminder/billminder-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var profileTracer = otel.Tracer("service/profile")

// ProfileService manages user profiles: guest bootstrap, account
// linking, currency and entitlement changes. Guests are local-only;
// linked accounts are mirrored and can pull their remote state.
type ProfileService struct {
	store   port.LocalStore
	remote  port.RemoteStore
	mirror  *Mirror
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewProfileService creates a new profile service. remote may be nil
// in local-only mode; AttachAccount then links without a remote pull.
func NewProfileService(store port.LocalStore, remote port.RemoteStore, mirror *Mirror, metrics *observability.Metrics, logger *zap.Logger) *ProfileService {
	return &ProfileService{
		store:   store,
		remote:  remote,
		mirror:  mirror,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Get returns the profile for uid, bootstrapping a guest profile when
// none exists yet.
func (s *ProfileService) Get(ctx context.Context, uid string) (*domain.UserProfile, error) {
	ctx, span := profileTracer.Start(ctx, "ProfileService.Get")
	defer span.End()

	profile, err := s.store.GetProfile(ctx, uid)
	if err == nil {
		return profile, nil
	}
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		return nil, err
	}
	return s.bootstrapGuest(ctx, uid)
}

// bootstrapGuest creates and persists a fresh anonymous profile.
// The supplied uid is kept when present so the caller's session id
// stays stable; otherwise a guest id is minted.
func (s *ProfileService) bootstrapGuest(ctx context.Context, uid string) (*domain.UserProfile, error) {
	if uid == "" {
		uid = "guest_" + uuid.NewString()
	}
	profile := &domain.UserProfile{
		UID:         uid,
		IsAnonymous: true,
		Entitlement: domain.EntitlementFree,
		Currency:    "NGN",
	}
	if err := s.store.PutProfile(ctx, profile); err != nil {
		return nil, err
	}
	s.logger.Info("guest profile bootstrapped", zap.String("user_id", uid))
	return profile, nil
}

// Update applies a profile patch and mirrors the result for linked
// accounts.
func (s *ProfileService) Update(ctx context.Context, uid string, patch *domain.ProfilePatch) (*domain.UserProfile, error) {
	ctx, span := profileTracer.Start(ctx, "ProfileService.Update")
	defer span.End()

	profile, err := s.Get(ctx, uid)
	if err != nil {
		return nil, err
	}

	if patch.DisplayName != nil {
		profile.DisplayName = *patch.DisplayName
	}
	if patch.PhoneNumber != nil {
		profile.PhoneNumber = *patch.PhoneNumber
	}
	if patch.Currency != nil {
		currency := strings.ToUpper(strings.TrimSpace(*patch.Currency))
		if len(currency) != 3 {
			return nil, &domain.ErrValidation{Field: "currency", Message: "currency must be a 3-letter code"}
		}
		profile.Currency = currency
	}

	if err := s.store.PutProfile(ctx, profile); err != nil {
		return nil, err
	}
	s.mirror.PushProfile(*profile)
	return profile, nil
}

// AttachAccount links a local session to an authenticated account.
// The remote profile and bills are pulled and become the local state
// for that uid; the cloud wins on attach.
func (s *ProfileService) AttachAccount(ctx context.Context, req *domain.AttachAccountRequest) (*domain.UserProfile, error) {
	ctx, span := profileTracer.Start(ctx, "ProfileService.AttachAccount")
	defer span.End()

	if req.UID == "" {
		return nil, &domain.ErrValidation{Field: "uid", Message: "uid is required"}
	}
	if req.Email == "" {
		return nil, &domain.ErrValidation{Field: "email", Message: "email is required"}
	}
	if strings.HasPrefix(req.UID, "guest_") {
		return nil, &domain.ErrValidation{Field: "uid", Message: "cannot attach a guest id"}
	}

	profile := &domain.UserProfile{
		UID:         req.UID,
		Email:       req.Email,
		DisplayName: req.DisplayName,
		IsAnonymous: false,
		Entitlement: domain.EntitlementFree,
		Currency:    "NGN",
	}

	if s.remote != nil {
		if remote, err := s.remote.GetProfile(ctx, req.UID); err != nil {
			s.logger.Warn("remote profile pull failed, using local defaults",
				zap.String("user_id", req.UID),
				zap.Error(err),
			)
			s.metrics.IncrSyncFailure("pull_profile")
		} else if remote != nil {
			profile.Entitlement = remote.Entitlement
			profile.Currency = remote.Currency
			if remote.DisplayName != "" && profile.DisplayName == "" {
				profile.DisplayName = remote.DisplayName
			}
			profile.PhoneNumber = remote.PhoneNumber
		}
	}

	if err := s.store.PutProfile(ctx, profile); err != nil {
		return nil, err
	}
	if err := s.PullBills(ctx, req.UID); err != nil {
		s.logger.Warn("remote bill pull failed on attach",
			zap.String("user_id", req.UID),
			zap.Error(err),
		)
	}
	s.mirror.PushProfile(*profile)

	s.logger.Info("account attached",
		zap.String("user_id", req.UID),
		zap.String("email", req.Email),
	)
	return profile, nil
}

// PullBills replaces the local bill set with the remote one. Used on
// attach and by the explicit sync endpoint.
func (s *ProfileService) PullBills(ctx context.Context, uid string) error {
	ctx, span := profileTracer.Start(ctx, "ProfileService.PullBills")
	defer span.End()

	if s.remote == nil {
		return nil
	}
	bills, err := s.remote.FetchBills(ctx, uid)
	if err != nil {
		s.metrics.IncrSyncFailure("pull_bills")
		return err
	}
	if bills == nil {
		return nil
	}
	return s.store.ReplaceBills(ctx, uid, bills)
}

// Upgrade moves the user to the PRO tier after a completed checkout.
func (s *ProfileService) Upgrade(ctx context.Context, uid string, req *domain.UpgradeRequest) (*domain.UserProfile, error) {
	ctx, span := profileTracer.Start(ctx, "ProfileService.Upgrade")
	defer span.End()

	if req.PaymentReference == "" {
		return nil, &domain.ErrValidation{Field: "paymentReference", Message: "payment reference is required"}
	}

	profile, err := s.Get(ctx, uid)
	if err != nil {
		return nil, err
	}
	if profile.Entitlement == domain.EntitlementPro {
		return nil, &domain.ErrConflict{Message: "already on the PRO tier"}
	}

	profile.Entitlement = domain.EntitlementPro
	if err := s.store.PutProfile(ctx, profile); err != nil {
		return nil, err
	}
	s.mirror.PushProfile(*profile)

	s.logger.Info("user upgraded to PRO",
		zap.String("user_id", uid),
		zap.String("payment_reference", req.PaymentReference),
	)
	return profile, nil
}

// SecurityConfig returns the install-wide security configuration.
func (s *ProfileService) SecurityConfig(ctx context.Context) (*domain.SecurityConfig, error) {
	return s.store.GetSecurityConfig(ctx)
}

// UpdateSecurityConfig stores the install-wide security configuration.
func (s *ProfileService) UpdateSecurityConfig(ctx context.Context, cfg *domain.SecurityConfig) error {
	ctx, span := profileTracer.Start(ctx, "ProfileService.UpdateSecurityConfig")
	defer span.End()

	if err := s.store.PutSecurityConfig(ctx, cfg); err != nil {
		return err
	}
	s.logger.Info("security config updated",
		zap.Bool("payment_validation_enabled", cfg.PaymentValidationEnabled),
	)
	return nil
}
