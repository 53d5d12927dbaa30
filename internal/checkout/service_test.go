package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"streamvault/internal/domain"
	"streamvault/internal/models"
	"streamvault/pkg/gateway"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// memOrders is an in-memory OrderStore with the same terminal-guard semantics
// as the SQL implementation.
type memOrders struct {
	orders      map[string]*models.Order
	attempts    []*models.PaymentAttempt
	nextID      uint
	failCreate  error
	failUpdates error
}

func newMemOrders() *memOrders {
	return &memOrders{orders: make(map[string]*models.Order), nextID: 1}
}

func (m *memOrders) Create(o *models.Order) error {
	if m.failCreate != nil {
		return m.failCreate
	}
	o.ID = m.nextID
	m.nextID++
	m.orders[o.GatewayRef] = o
	return nil
}

func (m *memOrders) GetByReference(ref string) (*models.Order, error) {
	for _, o := range m.orders {
		if o.Reference == ref {
			cp := *o
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memOrders) GetByGatewayRef(ref string) (*models.Order, error) {
	o, ok := m.orders[ref]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrders) RecordAttempt(orderID uint, attempt *models.PaymentAttempt) error {
	attempt.OrderID = orderID
	m.attempts = append(m.attempts, attempt)
	for _, o := range m.orders {
		if o.ID == orderID {
			o.PaymentAttempts++
		}
	}
	return nil
}

func (m *memOrders) UpdateStatus(orderID uint, newStatus string, fields map[string]any) (bool, error) {
	if m.failUpdates != nil {
		return false, m.failUpdates
	}
	for _, o := range m.orders {
		if o.ID != orderID {
			continue
		}
		if domain.IsTerminal(o.Status) {
			return false, nil
		}
		o.Status = newStatus
		if v, ok := fields["error_code"].(string); ok {
			o.ErrorCode = v
		}
		if v, ok := fields["failure_category"].(string); ok {
			o.FailureCategory = v
		}
		if v, ok := fields["transaction_id"].(string); ok {
			o.TransactionID = v
		}
		return true, nil
	}
	return false, nil
}

type staticResolver struct {
	cfg *models.GatewayConfig
}

func (r *staticResolver) Full() *models.GatewayConfig { return r.cfg }

type auditSpy struct {
	entries []*models.AuditLog
}

func (a *auditSpy) Create(e *models.AuditLog) error {
	a.entries = append(a.entries, e)
	return nil
}

// scriptedAdapter returns canned results, one per call, in order.
type scriptedAdapter struct {
	createErr   error
	results     []*gateway.AuthorizationResult
	errs        []error
	calls       int
	createCalls int
}

func (a *scriptedAdapter) Name() string { return "sumup" }

func (a *scriptedAdapter) CreateIntent(ctx context.Context, req gateway.IntentRequest) (*gateway.Intent, error) {
	a.createCalls++
	if a.createErr != nil {
		return nil, a.createErr
	}
	return &gateway.Intent{GatewayRef: "co-1"}, nil
}

func (a *scriptedAdapter) next() (*gateway.AuthorizationResult, error) {
	i := a.calls
	a.calls++
	if i < len(a.errs) && a.errs[i] != nil {
		return nil, a.errs[i]
	}
	if i >= len(a.results) {
		i = len(a.results) - 1
	}
	return a.results[i], nil
}

func (a *scriptedAdapter) Authorize(ctx context.Context, ref string, card gateway.CardDetails) (*gateway.AuthorizationResult, error) {
	return a.next()
}

func (a *scriptedAdapter) GetStatus(ctx context.Context, ref string) (*gateway.AuthorizationResult, error) {
	return a.next()
}

func enabledConfig() *models.GatewayConfig {
	return &models.GatewayConfig{
		IsEnabled:          true,
		ActiveGateway:      domain.GatewaySumUp,
		SumupAPIKey:        "key",
		SumupMerchantEmail: "m@example.com",
	}
}

type serviceFixture struct {
	svc     *Service
	orders  *memOrders
	adapter *scriptedAdapter
	audit   *auditSpy
	clock   *fakeClock
}

func newServiceFixture(t *testing.T, cfg *models.GatewayConfig, adapter *scriptedAdapter) *serviceFixture {
	t.Helper()
	orders := newMemOrders()
	audit := &auditSpy{}
	clock := newFakeClock()
	factory := func(*models.GatewayConfig) (gateway.Adapter, error) { return adapter, nil }
	svc := NewService(orders, &staticResolver{cfg: cfg}, audit, factory,
		NewCooldown(3*time.Second, clock), clock, nil, zap.NewNop())
	return &serviceFixture{svc: svc, orders: orders, adapter: adapter, audit: audit, clock: clock}
}

func validIntentRequest() CreateIntentRequest {
	return CreateIntentRequest{
		AmountCents: 1999,
		Currency:    "EUR",
		Customer: gateway.Customer{
			Email:   "jane@example.com",
			Name:    "Jane Doe",
			Phone:   "+49 170 1234567",
			Country: "DE",
		},
		Package: "premium",
	}
}

func validCard() gateway.CardDetails {
	return gateway.CardDetails{
		Name:        "Jane Doe",
		Number:      "4242424242424242",
		ExpiryMonth: "12",
		ExpiryYear:  "2030",
		CVV:         "123",
	}
}

func TestCreateIntent(t *testing.T) {
	f := newServiceFixture(t, enabledConfig(), &scriptedAdapter{})

	resp, err := f.svc.CreateIntent(context.Background(), validIntentRequest())
	require.NoError(t, err)
	assert.Equal(t, "co-1", resp.Order.GatewayRef)
	assert.Equal(t, domain.StatusPending, resp.Order.Status)
	assert.Equal(t, int64(1999), resp.Order.FinalAmountCents)
	assert.Contains(t, resp.Order.Reference, "ord-")

	stored, err := f.orders.GetByGatewayRef("co-1")
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", stored.ClientEmail)
}

func TestCreateIntentPaymentsDisabled(t *testing.T) {
	cfg := enabledConfig()
	cfg.IsEnabled = false
	f := newServiceFixture(t, cfg, &scriptedAdapter{})

	_, err := f.svc.CreateIntent(context.Background(), validIntentRequest())
	assert.ErrorIs(t, err, ErrPaymentsDisabled)
	assert.Zero(t, f.adapter.createCalls, "no gateway call when disabled")
}

func TestCreateIntentAmountTooSmall(t *testing.T) {
	f := newServiceFixture(t, enabledConfig(), &scriptedAdapter{})
	req := validIntentRequest()
	req.AmountCents = 99
	_, err := f.svc.CreateIntent(context.Background(), req)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Zero(t, f.adapter.createCalls)
}

func TestCreateIntentGatewayFailureLeavesNoOrder(t *testing.T) {
	adapter := &scriptedAdapter{createErr: gateway.ErrUnavailable}
	f := newServiceFixture(t, enabledConfig(), adapter)

	_, err := f.svc.CreateIntent(context.Background(), validIntentRequest())
	assert.ErrorIs(t, err, gateway.ErrUnavailable)
	assert.Empty(t, f.orders.orders, "no order row for a gateway object that was never created")
}

func TestAuthorizeApproved(t *testing.T) {
	adapter := &scriptedAdapter{results: []*gateway.AuthorizationResult{
		{Outcome: gateway.OutcomeApproved, TransactionID: "tx-1", CardLast4: "4242", CardBrand: "visa"},
	}}
	f := newServiceFixture(t, enabledConfig(), adapter)
	resp, err := f.svc.CreateIntent(context.Background(), validIntentRequest())
	require.NoError(t, err)

	res, err := f.svc.Authorize(context.Background(), resp.Order.GatewayRef, validCard(), AuthorizeMeta{IPAddress: "1.2.3.4"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, res.Status)
	assert.Empty(t, res.Reason)

	stored, _ := f.orders.GetByGatewayRef(resp.Order.GatewayRef)
	assert.Equal(t, domain.StatusPaid, stored.Status)
	assert.Equal(t, "tx-1", stored.TransactionID)
	assert.Equal(t, 1, stored.PaymentAttempts)
	require.Len(t, f.orders.attempts, 1)
	assert.Equal(t, domain.AttemptSuccess, f.orders.attempts[0].Outcome)
}

func TestAuthorizeDeclined(t *testing.T) {
	adapter := &scriptedAdapter{results: []*gateway.AuthorizationResult{
		{Outcome: gateway.OutcomeDeclined, ErrorCode: "insufficient_funds", ErrorMessage: "no funds"},
	}}
	f := newServiceFixture(t, enabledConfig(), adapter)
	resp, err := f.svc.CreateIntent(context.Background(), validIntentRequest())
	require.NoError(t, err)

	res, err := f.svc.Authorize(context.Background(), resp.Order.GatewayRef, validCard(), AuthorizeMeta{IPAddress: "1.2.3.4"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, res.Status)
	assert.Equal(t, domain.ReasonPaymentFailed, res.Reason)
	assert.Equal(t, domain.CategoryInsufficientFunds, res.Order.FailureCategory)
}

func TestAuthorizeChallenge(t *testing.T) {
	step := &gateway.ChallengeStep{URL: "https://3ds.example.com", Method: "POST"}
	adapter := &scriptedAdapter{results: []*gateway.AuthorizationResult{
		{Outcome: gateway.OutcomeChallenge, NextStep: step},
	}}
	f := newServiceFixture(t, enabledConfig(), adapter)
	resp, err := f.svc.CreateIntent(context.Background(), validIntentRequest())
	require.NoError(t, err)

	res, err := f.svc.Authorize(context.Background(), resp.Order.GatewayRef, validCard(), AuthorizeMeta{IPAddress: "1.2.3.4"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusThreeDSNeeded, res.Status)
	require.NotNil(t, res.NextStep)
	assert.Equal(t, "https://3ds.example.com", res.NextStep.URL)

	stored, _ := f.orders.GetByGatewayRef(resp.Order.GatewayRef)
	assert.Equal(t, domain.StatusThreeDSNeeded, stored.Status)
	require.Len(t, f.orders.attempts, 1)
	assert.True(t, f.orders.attempts[0].ThreeDSRequired)
}

func TestAuthorizeDuringOpenChallengeSkipsGateway(t *testing.T) {
	adapter := &scriptedAdapter{results: []*gateway.AuthorizationResult{
		{Outcome: gateway.OutcomeChallenge, NextStep: &gateway.ChallengeStep{URL: "https://3ds.example.com"}},
		{Outcome: gateway.OutcomeDeclined, ErrorCode: "card_declined"},
	}}
	f := newServiceFixture(t, enabledConfig(), adapter)
	resp, err := f.svc.CreateIntent(context.Background(), validIntentRequest())
	require.NoError(t, err)

	_, err = f.svc.Authorize(context.Background(), resp.Order.GatewayRef, validCard(), AuthorizeMeta{IPAddress: "1.2.3.4"})
	require.NoError(t, err)

	// A second card submission while the challenge is open must not reach
	// the gateway: a provider decline here would race the challenge the
	// customer may still complete.
	f.clock.Advance(time.Minute)
	res, err := f.svc.Authorize(context.Background(), resp.Order.GatewayRef, validCard(), AuthorizeMeta{IPAddress: "1.2.3.4"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusThreeDSNeeded, res.Status)
	assert.Equal(t, 1, adapter.calls, "open challenge resolves via poll or webhook, not re-authorization")
	assert.Len(t, f.orders.attempts, 1)

	stored, _ := f.orders.GetByGatewayRef(resp.Order.GatewayRef)
	assert.Equal(t, domain.StatusThreeDSNeeded, stored.Status)
}

func TestAuthorizeTerminalOrderIsIdempotent(t *testing.T) {
	adapter := &scriptedAdapter{results: []*gateway.AuthorizationResult{
		{Outcome: gateway.OutcomeApproved, TransactionID: "tx-1"},
	}}
	f := newServiceFixture(t, enabledConfig(), adapter)
	resp, err := f.svc.CreateIntent(context.Background(), validIntentRequest())
	require.NoError(t, err)

	_, err = f.svc.Authorize(context.Background(), resp.Order.GatewayRef, validCard(), AuthorizeMeta{IPAddress: "1.2.3.4"})
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	res, err := f.svc.Authorize(context.Background(), resp.Order.GatewayRef, validCard(), AuthorizeMeta{IPAddress: "1.2.3.4"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, res.Status)
	assert.Equal(t, 1, adapter.calls, "no second charge")
	assert.Len(t, f.orders.attempts, 1, "no second attempt row")
}

func TestAuthorizeCooldown(t *testing.T) {
	adapter := &scriptedAdapter{results: []*gateway.AuthorizationResult{
		{Outcome: gateway.OutcomeDeclined, ErrorCode: "card_declined"},
	}}
	f := newServiceFixture(t, enabledConfig(), adapter)
	resp, err := f.svc.CreateIntent(context.Background(), validIntentRequest())
	require.NoError(t, err)

	// First submission declines, immediate retry is blocked before the
	// gateway, a retry after the window goes through.
	_, err = f.svc.Authorize(context.Background(), resp.Order.GatewayRef, validCard(), AuthorizeMeta{IPAddress: "1.2.3.4"})
	require.NoError(t, err)

	stored, _ := f.orders.GetByGatewayRef(resp.Order.GatewayRef)
	stored.Status = domain.StatusPending // reopen for the retry
	f.orders.orders[resp.Order.GatewayRef] = stored

	_, err = f.svc.Authorize(context.Background(), resp.Order.GatewayRef, validCard(), AuthorizeMeta{IPAddress: "1.2.3.4"})
	assert.ErrorIs(t, err, ErrTooManyAttempts)
	assert.Equal(t, 1, adapter.calls)
	assert.Len(t, f.orders.attempts, 1, "cool-down rejection records no attempt")

	f.clock.Advance(5 * time.Second)
	_, err = f.svc.Authorize(context.Background(), resp.Order.GatewayRef, validCard(), AuthorizeMeta{IPAddress: "1.2.3.4"})
	require.NoError(t, err)
	assert.Equal(t, 2, adapter.calls)
}

func TestAuthorizeValidationRecordsNoAttempt(t *testing.T) {
	adapter := &scriptedAdapter{}
	f := newServiceFixture(t, enabledConfig(), adapter)
	resp, err := f.svc.CreateIntent(context.Background(), validIntentRequest())
	require.NoError(t, err)

	card := validCard()
	card.Number = "1234"
	_, err = f.svc.Authorize(context.Background(), resp.Order.GatewayRef, card, AuthorizeMeta{IPAddress: "1.2.3.4"})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Zero(t, adapter.calls)
	assert.Empty(t, f.orders.attempts)
}

func TestAuthorizeTransportErrorRecordsNoAttempt(t *testing.T) {
	adapter := &scriptedAdapter{errs: []error{gateway.ErrUnavailable}}
	f := newServiceFixture(t, enabledConfig(), adapter)
	resp, err := f.svc.CreateIntent(context.Background(), validIntentRequest())
	require.NoError(t, err)

	_, err = f.svc.Authorize(context.Background(), resp.Order.GatewayRef, validCard(), AuthorizeMeta{IPAddress: "1.2.3.4"})
	assert.ErrorIs(t, err, gateway.ErrUnavailable)
	assert.Empty(t, f.orders.attempts, "no gateway verdict, no attempt row")

	stored, _ := f.orders.GetByGatewayRef(resp.Order.GatewayRef)
	assert.Equal(t, domain.StatusPending, stored.Status, "order state unchanged")
}

func TestAuthorizeUnknownOrder(t *testing.T) {
	f := newServiceFixture(t, enabledConfig(), &scriptedAdapter{})
	_, err := f.svc.Authorize(context.Background(), "co-missing", validCard(), AuthorizeMeta{})
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestAuthorizeStoreFailureAfterApprovalIsNotAPaymentFailure(t *testing.T) {
	adapter := &scriptedAdapter{results: []*gateway.AuthorizationResult{
		{Outcome: gateway.OutcomeApproved, TransactionID: "tx-1"},
	}}
	f := newServiceFixture(t, enabledConfig(), adapter)
	resp, err := f.svc.CreateIntent(context.Background(), validIntentRequest())
	require.NoError(t, err)

	f.orders.failUpdates = errors.New("connection reset")
	res, err := f.svc.Authorize(context.Background(), resp.Order.GatewayRef, validCard(), AuthorizeMeta{IPAddress: "1.2.3.4"})
	require.NoError(t, err, "the customer paid; bookkeeping trouble stays internal")
	assert.Equal(t, domain.StatusPaid, res.Status)
	require.NotEmpty(t, f.audit.entries)
	assert.Equal(t, "store_write_failed", f.audit.entries[0].Action)
}

func TestStatusConvergesChallengedOrder(t *testing.T) {
	adapter := &scriptedAdapter{results: []*gateway.AuthorizationResult{
		{Outcome: gateway.OutcomeChallenge, NextStep: &gateway.ChallengeStep{URL: "https://3ds"}},
		{Outcome: gateway.OutcomeApproved, TransactionID: "tx-9"},
	}}
	f := newServiceFixture(t, enabledConfig(), adapter)
	resp, err := f.svc.CreateIntent(context.Background(), validIntentRequest())
	require.NoError(t, err)

	_, err = f.svc.Authorize(context.Background(), resp.Order.GatewayRef, validCard(), AuthorizeMeta{IPAddress: "1.2.3.4"})
	require.NoError(t, err)

	res, err := f.svc.Status(context.Background(), resp.Order.GatewayRef)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, res.Status)

	stored, _ := f.orders.GetByGatewayRef(resp.Order.GatewayRef)
	assert.Equal(t, "tx-9", stored.TransactionID)
}

func TestStatusTerminalOrderSkipsGateway(t *testing.T) {
	adapter := &scriptedAdapter{results: []*gateway.AuthorizationResult{
		{Outcome: gateway.OutcomeApproved, TransactionID: "tx-1"},
	}}
	f := newServiceFixture(t, enabledConfig(), adapter)
	resp, err := f.svc.CreateIntent(context.Background(), validIntentRequest())
	require.NoError(t, err)
	_, err = f.svc.Authorize(context.Background(), resp.Order.GatewayRef, validCard(), AuthorizeMeta{IPAddress: "1.2.3.4"})
	require.NoError(t, err)

	res, err := f.svc.Status(context.Background(), resp.Order.GatewayRef)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, res.Status)
	assert.Equal(t, 1, adapter.calls, "terminal orders answer from the store")
}

func TestCancel(t *testing.T) {
	adapter := &scriptedAdapter{results: []*gateway.AuthorizationResult{
		{Outcome: gateway.OutcomeChallenge, NextStep: &gateway.ChallengeStep{URL: "https://3ds"}},
	}}
	f := newServiceFixture(t, enabledConfig(), adapter)
	resp, err := f.svc.CreateIntent(context.Background(), validIntentRequest())
	require.NoError(t, err)
	_, err = f.svc.Authorize(context.Background(), resp.Order.GatewayRef, validCard(), AuthorizeMeta{IPAddress: "1.2.3.4"})
	require.NoError(t, err)

	res, err := f.svc.Cancel(context.Background(), resp.Order.GatewayRef)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, res.Status)
	assert.Equal(t, domain.Reason3DSCancelled, res.Reason)

	// Cancelling again changes nothing.
	res, err = f.svc.Cancel(context.Background(), resp.Order.GatewayRef)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, res.Status)
}
