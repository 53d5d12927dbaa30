package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"streamvault/internal/domain"
	"streamvault/internal/models"
	"streamvault/internal/observability"
	"streamvault/pkg/gateway"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrPaymentsDisabled means the gateway is switched off or lacks
	// credentials. Surfaced to the customer as "payment unavailable", never
	// as a credential error.
	ErrPaymentsDisabled = errors.New("payments are disabled")
	// ErrTooManyAttempts is a cool-down violation, rejected before the
	// gateway is reached.
	ErrTooManyAttempts = errors.New("too many attempts, slow down")
	ErrOrderNotFound   = errors.New("order not found")
)

// CreateIntentRequest starts a checkout. AmountCents is in minor units.
type CreateIntentRequest struct {
	AmountCents int64
	Currency    string
	Customer    gateway.Customer
	Package     string
	Features    []string
	CouponCode  string
	IPAddress   string
	DeviceInfo  string
}

// IntentResponse hands the client what it needs to collect card details.
type IntentResponse struct {
	Order        *models.Order
	ClientSecret string
}

// AuthorizeMeta carries the per-request audit fields.
type AuthorizeMeta struct {
	PaymentType string
	IPAddress   string
	DeviceInfo  string
}

// Result is the caller-facing view of an order after an authorization,
// status poll, cancellation or reconciliation pass.
type Result struct {
	Status   string                 `json:"status"`
	Reason   string                 `json:"reason,omitempty"`
	NextStep *gateway.ChallengeStep `json:"next_step,omitempty"`
	Order    *models.Order          `json:"-"`
}

// Service drives one checkout from intent creation through a possible 3-D
// Secure challenge to a terminal state, keeping the order record consistent
// with the gateway's asynchronous view of truth.
type Service struct {
	orders   OrderStore
	resolver ConfigResolver
	audit    AuditTrail
	factory  AdapterFactory
	cooldown *Cooldown
	clock    Clock
	metrics  *observability.Metrics
	log      *zap.Logger
}

func NewService(
	orders OrderStore,
	resolver ConfigResolver,
	audit AuditTrail,
	factory AdapterFactory,
	cooldown *Cooldown,
	clock Clock,
	metrics *observability.Metrics,
	log *zap.Logger,
) *Service {
	if clock == nil {
		clock = RealClock()
	}
	return &Service{
		orders:   orders,
		resolver: resolver,
		audit:    audit,
		factory:  factory,
		cooldown: cooldown,
		clock:    clock,
		metrics:  metrics,
		log:      log,
	}
}

// CreateIntent validates input, creates the gateway-side payment object and
// only then persists the order row, so no record ever points at a gateway
// object that does not exist. The reference is assigned here, before any
// gateway call, and never changes.
func (s *Service) CreateIntent(ctx context.Context, req CreateIntentRequest) (*IntentResponse, error) {
	cfg := s.resolver.Full()
	if !cfg.IsEnabled {
		return nil, ErrPaymentsDisabled
	}
	if req.AmountCents < domain.MinAmountCents {
		return nil, fmt.Errorf("%w: amount must be at least 1.00", ErrValidation)
	}
	if len(req.Currency) != 3 {
		return nil, fmt.Errorf("%w: invalid currency code", ErrValidation)
	}
	if err := ValidateCustomer(req.Customer); err != nil {
		return nil, err
	}

	adapter, err := s.factory(cfg)
	if err != nil {
		s.log.Error("gateway adapter construction failed", zap.String("gateway", cfg.ActiveGateway), zap.Error(err))
		return nil, ErrPaymentsDisabled
	}

	reference := "ord-" + uuid.NewString()
	description := req.Package
	if description == "" {
		description = "StreamVault order"
	}
	intent, err := adapter.CreateIntent(ctx, gateway.IntentRequest{
		Reference:   reference,
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
		Description: description,
		Customer:    req.Customer,
		Metadata: map[string]string{
			"package": req.Package,
			"coupon":  req.CouponCode,
		},
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.GatewayErrors.WithLabelValues(adapter.Name()).Inc()
		}
		return nil, err
	}

	order := &models.Order{
		Reference:           reference,
		GatewayRef:          intent.GatewayRef,
		Gateway:             adapter.Name(),
		OriginalAmountCents: req.AmountCents,
		FinalAmountCents:    req.AmountCents,
		Currency:            req.Currency,
		Status:              domain.StatusPending,
		ClientEmail:         req.Customer.Email,
		ClientName:          req.Customer.Name,
		ClientPhone:         req.Customer.Phone,
		ClientCountry:       req.Customer.Country,
		Description:         description,
		CouponCode:          req.CouponCode,
		IPAddress:           req.IPAddress,
		DeviceInfo:          req.DeviceInfo,
	}
	if err := s.orders.Create(order); err != nil {
		s.log.Error("order create failed after gateway intent",
			zap.String("reference", reference), zap.String("gateway_ref", intent.GatewayRef), zap.Error(err))
		return nil, fmt.Errorf("create order: %w", err)
	}
	return &IntentResponse{Order: order, ClientSecret: intent.ClientSecret}, nil
}

// Authorize submits card details for an order. Re-invoking it on an order
// that is already terminal, or that is waiting on an open 3-D Secure
// challenge, returns the stored state without a second charge or a second
// attempt row. The attempt counter moves by exactly one per call that
// reaches the gateway; validation and cool-down rejections never touch it.
func (s *Service) Authorize(ctx context.Context, gatewayRef string, card gateway.CardDetails, meta AuthorizeMeta) (*Result, error) {
	order, err := s.getOrder(gatewayRef)
	if err != nil {
		return nil, err
	}
	if domain.IsTerminal(order.Status) {
		return s.view(order), nil
	}
	if order.Status == domain.StatusThreeDSNeeded {
		// An open challenge resolves only through the gateway's own flow
		// (status poll, webhook or redirect). Re-submitting card details here
		// would race the in-flight challenge, so the stored state is returned
		// without touching the gateway or the attempt counter.
		return s.view(order), nil
	}

	key := meta.IPAddress
	if key == "" {
		key = gatewayRef
	}
	if s.cooldown != nil && !s.cooldown.Allow(key) {
		return nil, ErrTooManyAttempts
	}
	if err := ValidateCard(card, s.clock.Now()); err != nil {
		return nil, err
	}

	cfg := s.resolver.Full()
	if !cfg.IsEnabled {
		return nil, ErrPaymentsDisabled
	}
	adapter, err := s.factory(cfg)
	if err != nil {
		return nil, ErrPaymentsDisabled
	}

	start := s.clock.Now()
	res, err := adapter.Authorize(ctx, gatewayRef, card)
	elapsed := s.clock.Now().Sub(start)
	if s.metrics != nil {
		s.metrics.AuthorizeDuration.Observe(elapsed.Seconds())
	}
	if err != nil {
		// The call never produced a gateway verdict: the order stays as it
		// was and no attempt is recorded.
		if s.metrics != nil {
			s.metrics.GatewayErrors.WithLabelValues(adapter.Name()).Inc()
		}
		s.log.Warn("authorize call failed",
			zap.String("gateway_ref", gatewayRef), zap.String("gateway", adapter.Name()), zap.Error(err))
		return nil, err
	}

	s.recordAttempt(order, res, meta, elapsed)
	return s.apply(order, res, elapsed, meta), nil
}

// Status re-queries the gateway once and converges the order to its verdict.
// Safe at sub-second frequency: GetStatus is side-effect free and the
// conditional terminal-guarded update makes repeated writes no-ops.
func (s *Service) Status(ctx context.Context, gatewayRef string) (*Result, error) {
	order, err := s.getOrder(gatewayRef)
	if err != nil {
		return nil, err
	}
	if domain.IsTerminal(order.Status) {
		return s.view(order), nil
	}

	cfg := s.resolver.Full()
	adapter, err := s.factory(cfg)
	if err != nil {
		return nil, ErrPaymentsDisabled
	}
	res, err := adapter.GetStatus(ctx, gatewayRef)
	if err != nil {
		if s.metrics != nil {
			s.metrics.GatewayErrors.WithLabelValues(adapter.Name()).Inc()
		}
		return nil, err
	}
	return s.apply(order, res, 0, AuthorizeMeta{}), nil
}

// Cancel marks an abandoned challenge as failed with the 3ds_cancelled
// category. Cancelling a terminal order is a no-op returning the stored
// state.
func (s *Service) Cancel(ctx context.Context, gatewayRef string) (*Result, error) {
	order, err := s.getOrder(gatewayRef)
	if err != nil {
		return nil, err
	}
	if domain.IsTerminal(order.Status) {
		return s.view(order), nil
	}
	return s.apply(order, &gateway.AuthorizationResult{
		Outcome:         gateway.OutcomeDeclined,
		ErrorCode:       domain.Category3DSCancelled,
		ErrorMessage:    "challenge cancelled by customer",
		FailureCategory: domain.Category3DSCancelled,
	}, 0, AuthorizeMeta{}), nil
}

func (s *Service) getOrder(gatewayRef string) (*models.Order, error) {
	order, err := s.orders.GetByGatewayRef(gatewayRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("load order: %w", err)
	}
	return order, nil
}

// recordAttempt appends the audit row for a call that reached the gateway.
// A bookkeeping failure here is an operational concern, not a payment
// failure: it is logged and audit-logged, never surfaced to the customer.
func (s *Service) recordAttempt(order *models.Order, res *gateway.AuthorizationResult, meta AuthorizeMeta, elapsed time.Duration) {
	outcome := domain.AttemptPending
	switch res.Outcome {
	case gateway.OutcomeApproved:
		outcome = domain.AttemptSuccess
	case gateway.OutcomeDeclined:
		outcome = domain.AttemptFailed
	}
	attempt := &models.PaymentAttempt{
		Outcome:         outcome,
		PaymentMethod:   meta.PaymentType,
		ErrorCode:       res.ErrorCode,
		ErrorMessage:    res.ErrorMessage,
		FailureCategory: res.FailureCategory,
		ThreeDSRequired: res.Outcome == gateway.OutcomeChallenge,
		ProcessingMs:    elapsed.Milliseconds(),
		IPAddress:       meta.IPAddress,
		DeviceInfo:      meta.DeviceInfo,
	}
	if err := s.orders.RecordAttempt(order.ID, attempt); err != nil {
		s.reportStoreFailure(order, "record_attempt", err)
		return
	}
	order.PaymentAttempts++
}

// apply converges the order row to a gateway verdict and builds the
// caller-facing result. The write is idempotent: whichever path (authorize,
// poll, webhook, redirect) observes the terminal verdict first wins, later
// writes change nothing.
func (s *Service) apply(order *models.Order, res *gateway.AuthorizationResult, elapsed time.Duration, meta AuthorizeMeta) *Result {
	wasChallenge := order.Status == domain.StatusThreeDSNeeded
	now := s.clock.Now()

	switch res.Outcome {
	case gateway.OutcomeApproved:
		fields := map[string]any{
			"transaction_id":   res.TransactionID,
			"transaction_code": res.TransactionCode,
			"payment_method":   nonEmpty(res.PaymentMethod, meta.PaymentType),
			"card_last4":       res.CardLast4,
			"card_brand":       res.CardBrand,
			"paid_at":          now,
		}
		if elapsed > 0 {
			fields["processing_ms"] = elapsed.Milliseconds()
		}
		if wasChallenge {
			fields["three_ds_successful"] = true
		}
		updated, err := s.orders.UpdateStatus(order.ID, domain.StatusPaid, fields)
		if err != nil {
			// The payment succeeded; the gateway holds the financial truth.
			s.reportStoreFailure(order, "mark_paid", err)
		}
		if updated && s.metrics != nil {
			s.metrics.PaymentsSucceeded.Inc()
		}
		order.Status = domain.StatusPaid
		order.TransactionID = res.TransactionID
		order.TransactionCode = res.TransactionCode
		order.CardLast4 = res.CardLast4
		order.CardBrand = res.CardBrand
		order.PaidAt = &now

	case gateway.OutcomeDeclined:
		category := res.FailureCategory
		if category == "" {
			category = gateway.CategorizeFailure(res.ErrorCode)
		}
		fields := map[string]any{
			"error_code":       res.ErrorCode,
			"error_message":    res.ErrorMessage,
			"failure_category": category,
		}
		if elapsed > 0 {
			fields["processing_ms"] = elapsed.Milliseconds()
		}
		if wasChallenge {
			fields["three_ds_successful"] = false
		}
		updated, err := s.orders.UpdateStatus(order.ID, domain.StatusFailed, fields)
		if err != nil {
			s.reportStoreFailure(order, "mark_failed", err)
		}
		if updated && s.metrics != nil {
			s.metrics.PaymentsFailed.WithLabelValues(category).Inc()
		}
		order.Status = domain.StatusFailed
		order.ErrorCode = res.ErrorCode
		order.ErrorMessage = res.ErrorMessage
		order.FailureCategory = category

	case gateway.OutcomeChallenge:
		if _, err := s.orders.UpdateStatus(order.ID, domain.StatusThreeDSNeeded, map[string]any{
			"three_ds_required": true,
		}); err != nil {
			s.reportStoreFailure(order, "mark_3ds_required", err)
		}
		if s.metrics != nil {
			s.metrics.ChallengesStarted.Inc()
		}
		order.Status = domain.StatusThreeDSNeeded
		order.ThreeDSRequired = true

	case gateway.OutcomePending:
		// Nothing to converge yet.
	}

	out := s.view(order)
	if res.Outcome == gateway.OutcomeChallenge {
		// The challenge parameters come straight from the provider response
		// and are never persisted; the provider remains their source of truth.
		out.NextStep = res.NextStep
	}
	return out
}

func (s *Service) view(order *models.Order) *Result {
	r := &Result{Status: order.Status, Order: order}
	if order.Status == domain.StatusFailed {
		r.Reason = reasonFor(order.FailureCategory)
	}
	return r
}

func reasonFor(category string) string {
	switch category {
	case domain.Category3DSFailed:
		return domain.Reason3DSFailed
	case domain.Category3DSCancelled:
		return domain.Reason3DSCancelled
	case domain.Category3DSTimeout:
		return domain.Reason3DSTimeout
	default:
		return domain.ReasonPaymentFailed
	}
}

func (s *Service) reportStoreFailure(order *models.Order, action string, err error) {
	s.log.Error("order store write failed",
		zap.String("action", action),
		zap.String("reference", order.Reference),
		zap.String("gateway_ref", order.GatewayRef),
		zap.Error(err))
	if s.audit != nil {
		_ = s.audit.Create(&models.AuditLog{
			Action:     "store_write_failed",
			Resource:   "order",
			ResourceID: order.Reference,
			Detail:     fmt.Sprintf("%s: %v", action, err),
		})
	}
}

func nonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
