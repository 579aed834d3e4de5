// Package service provides the business logic layer (use cases).
// BillService is the bill lifecycle controller: create, update, pay,
// delete, list, always local-first with a best-effort remote mirror.
package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
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

var billTracer = otel.Tracer("service/bills")

// BillService orchestrates the bill lifecycle over the local store,
// mirroring every mutation to the remote store in the background.
// Mutations are serialized by a mutex; last write wins.
type BillService struct {
	store        port.LocalStore
	mirror       *Mirror
	metrics      *observability.Metrics
	logger       *zap.Logger
	defaultLimit int
	now          func() time.Time

	mu sync.Mutex
}

// NewBillService creates a new bill service. defaultLimit is the
// free-tier bill cap used when no value is configured.
func NewBillService(store port.LocalStore, mirror *Mirror, metrics *observability.Metrics, logger *zap.Logger, defaultLimit int) *BillService {
	if defaultLimit < 1 {
		defaultLimit = domain.DefaultFreeBillLimit
	}
	return &BillService{
		store:        store,
		mirror:       mirror,
		metrics:      metrics,
		logger:       logger,
		defaultLimit: defaultLimit,
		now:          time.Now,
	}
}

// List returns the user's bills ordered by due date, each with its
// effective status resolved against the current clock.
func (s *BillService) List(ctx context.Context, userID string) ([]domain.BillView, error) {
	ctx, span := billTracer.Start(ctx, "BillService.List")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	bills, err := s.store.ListBills(ctx, userID)
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

// Get returns one bill with its effective status.
func (s *BillService) Get(ctx context.Context, userID, billID string) (*domain.BillView, error) {
	ctx, span := billTracer.Start(ctx, "BillService.Get")
	defer span.End()

	bill, err := s.store.GetBill(ctx, userID, billID)
	if err != nil {
		return nil, err
	}
	return &domain.BillView{
		Bill:            *bill,
		EffectiveStatus: rules.ResolveStatus(bill.DueDate, bill.Status, s.now()),
	}, nil
}

// Create adds a new bill after enforcing the free-tier cap.
func (s *BillService) Create(ctx context.Context, userID string, req *domain.CreateBillRequest) (*domain.Bill, error) {
	ctx, span := billTracer.Start(ctx, "BillService.Create")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("create_bill", time.Since(start)) }()

	if err := validateCreateBillRequest(req); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	profile, err := s.profileOrDefault(ctx, userID)
	if err != nil {
		return nil, err
	}

	count, err := s.store.CountBills(ctx, userID)
	if err != nil {
		return nil, err
	}
	limit := s.configuredLimit(ctx)
	if !rules.CanCreateBill(*profile, count, limit) {
		return nil, &domain.ErrLimitExceeded{Limit: limit, Current: count}
	}

	now := s.now()
	requireProof := true
	if req.RequireProof != nil {
		requireProof = *req.RequireProof
	}
	currency := req.Currency
	if currency == "" {
		currency = profile.Currency
	}

	bill := &domain.Bill{
		ID:             uuid.NewString(),
		UserID:         userID,
		Name:           req.Name,
		Amount:         req.Amount,
		Currency:       currency,
		DueDate:        req.DueDate,
		Frequency:      req.Frequency,
		IntervalMonths: req.IntervalMonths,
		Status:         domain.StatusUpcoming,
		PaymentLink:    req.PaymentLink,
		RequireProof:   requireProof,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.store.PutBill(ctx, bill); err != nil {
		return nil, err
	}
	if !profile.IsAnonymous {
		s.mirror.PushBill(*bill)
	}

	s.logger.Info("bill created",
		zap.String("bill_id", bill.ID),
		zap.String("user_id", userID),
		zap.String("frequency", string(bill.Frequency)),
	)
	return bill, nil
}

// Update merges a user patch into an existing bill. The admin overlay
// fields are not reachable through this path.
func (s *BillService) Update(ctx context.Context, userID, billID string, patch *domain.BillPatch) (*domain.Bill, error) {
	ctx, span := billTracer.Start(ctx, "BillService.Update")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	bill, err := s.store.GetBill(ctx, userID, billID)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		if *patch.Name == "" {
			return nil, &domain.ErrValidation{Field: "name", Message: "name cannot be empty"}
		}
		bill.Name = *patch.Name
	}
	if patch.Amount != nil {
		bill.Amount = patch.Amount
	}
	if patch.Currency != nil {
		bill.Currency = *patch.Currency
	}
	if patch.DueDate != nil {
		bill.DueDate = *patch.DueDate
	}
	if patch.Frequency != nil {
		if err := validateFrequency(*patch.Frequency); err != nil {
			return nil, err
		}
		bill.Frequency = *patch.Frequency
	}
	if patch.IntervalMonths != nil {
		bill.IntervalMonths = *patch.IntervalMonths
	}
	if bill.Frequency == domain.FrequencyCustom && bill.IntervalMonths < 1 {
		return nil, &domain.ErrValidation{Field: "intervalMonths", Message: "custom frequency requires an interval of at least 1 month"}
	}
	if patch.PaymentLink != nil {
		bill.PaymentLink = *patch.PaymentLink
	}
	if patch.RequireProof != nil {
		bill.RequireProof = *patch.RequireProof
	}
	bill.UpdatedAt = s.now()

	if err := s.store.PutBill(ctx, bill); err != nil {
		return nil, err
	}
	s.mirrorIfLinked(ctx, userID, *bill)

	return bill, nil
}

// Delete removes a bill locally and fires a remote delete. Deleting a
// missing bill is a silent no-op.
func (s *BillService) Delete(ctx context.Context, userID, billID string) error {
	ctx, span := billTracer.Start(ctx, "BillService.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("bill.id", billID))

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.DeleteBill(ctx, userID, billID); err != nil {
		return err
	}
	if profile, err := s.profileOrDefault(ctx, userID); err == nil && !profile.IsAnonymous {
		s.mirror.RemoveBill(billID)
	}

	s.logger.Info("bill deleted",
		zap.String("bill_id", billID),
		zap.String("user_id", userID),
	)
	return nil
}

// Pay settles a bill. Recurring bills roll forward to the next due
// date and stay active; one-time bills become PAID terminally. A
// missing bill is a silent no-op (nil, nil).
func (s *BillService) Pay(ctx context.Context, userID, billID string, req *domain.PayBillRequest) (*domain.Bill, error) {
	ctx, span := billTracer.Start(ctx, "BillService.Pay")
	defer span.End()
	span.SetAttributes(attribute.String("bill.id", billID))

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("pay_bill", time.Since(start)) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	bill, err := s.store.GetBill(ctx, userID, billID)
	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			s.logger.Warn("pay ignored, bill not found",
				zap.String("bill_id", billID),
				zap.String("user_id", userID),
			)
			return nil, nil
		}
		return nil, err
	}

	profile, err := s.profileOrDefault(ctx, userID)
	if err != nil {
		return nil, err
	}
	secCfg, err := s.store.GetSecurityConfig(ctx)
	if err != nil {
		return nil, err
	}

	strict := rules.StrictVerificationRequired(*bill, *profile, *secCfg)
	if err := rules.ValidateEvidence(strict, req.TransactionRef, req.ProofImage); err != nil {
		return nil, err
	}

	now := s.now()
	if bill.Frequency.IsRecurring() {
		bill.DueDate = rules.NextDueDate(bill.DueDate, bill.Frequency, bill.IntervalMonths)
		bill.LastPaidDate = &now
		// Persisted status stays non-PAID: the next cycle's display
		// status is derived from the advanced due date.
	} else {
		bill.Status = domain.StatusPaid
		bill.LastPaidDate = &now
	}
	if req.TransactionRef != "" {
		bill.TransactionRef = req.TransactionRef
	}
	if req.ProofImage != "" {
		bill.ProofImage = req.ProofImage
	}
	bill.UpdatedAt = now

	if err := s.store.PutBill(ctx, bill); err != nil {
		return nil, err
	}
	if !profile.IsAnonymous {
		s.mirror.PushBill(*bill)
	}
	s.metrics.IncrBillPaid(string(bill.Frequency))

	s.logger.Info("bill paid",
		zap.String("bill_id", bill.ID),
		zap.String("user_id", userID),
		zap.String("frequency", string(bill.Frequency)),
		zap.Bool("strict_verification", strict),
	)
	return bill, nil
}

// configuredLimit reads the free-tier cap from system config, falling
// back to the service default when unset or invalid.
func (s *BillService) configuredLimit(ctx context.Context) int {
	raw, err := s.store.GetConfigValue(ctx, domain.ConfigKeyFreeBillLimit)
	if err != nil || raw == "" {
		return s.defaultLimit
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return s.defaultLimit
	}
	return limit
}

// profileOrDefault loads the user's profile, synthesizing an
// anonymous FREE profile for users that never bootstrapped one.
func (s *BillService) profileOrDefault(ctx context.Context, userID string) (*domain.UserProfile, error) {
	profile, err := s.store.GetProfile(ctx, userID)
	if err == nil {
		return profile, nil
	}
	var notFound *domain.ErrNotFound
	if errors.As(err, &notFound) {
		return &domain.UserProfile{
			UID:         userID,
			IsAnonymous: true,
			Entitlement: domain.EntitlementFree,
			Currency:    "NGN",
		}, nil
	}
	return nil, err
}

func (s *BillService) mirrorIfLinked(ctx context.Context, userID string, bill domain.Bill) {
	profile, err := s.profileOrDefault(ctx, userID)
	if err != nil || profile.IsAnonymous {
		return
	}
	s.mirror.PushBill(bill)
}

func validateCreateBillRequest(req *domain.CreateBillRequest) error {
	if req.Name == "" {
		return &domain.ErrValidation{Field: "name", Message: "name is required"}
	}
	if req.DueDate.IsZero() {
		return &domain.ErrValidation{Field: "dueDate", Message: "due date is required"}
	}
	if err := validateFrequency(req.Frequency); err != nil {
		return err
	}
	if req.Frequency == domain.FrequencyCustom && req.IntervalMonths < 1 {
		return &domain.ErrValidation{Field: "intervalMonths", Message: "custom frequency requires an interval of at least 1 month"}
	}
	if req.Amount != nil && *req.Amount < 0 {
		return &domain.ErrValidation{Field: "amount", Message: "amount cannot be negative"}
	}
	return nil
}

func validateFrequency(f domain.Frequency) error {
	switch f {
	case domain.FrequencyOneTime, domain.FrequencyMonthly, domain.FrequencyTermly,
		domain.FrequencyYearly, domain.FrequencyCustom:
		return nil
	}
	return &domain.ErrValidation{Field: "frequency", Message: "unknown frequency"}
}
