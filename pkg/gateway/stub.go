package gateway

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// StubAdapter is an in-memory provider for development. Magic card numbers
// steer the outcome: numbers ending in 0002 decline, numbers ending in 3155
// require a 3-D Secure challenge that approves on the next status poll.
type StubAdapter struct {
	mu       sync.Mutex
	seq      int
	statuses map[string]Outcome
}

func NewStubAdapter() *StubAdapter {
	return &StubAdapter{statuses: make(map[string]Outcome)}
}

func (a *StubAdapter) Name() string { return "stub" }

func (a *StubAdapter) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seq++
	ref := fmt.Sprintf("stub_%d_%d", time.Now().UnixNano(), a.seq)
	a.statuses[ref] = OutcomePending
	return &Intent{GatewayRef: ref}, nil
}

func (a *StubAdapter) Authorize(ctx context.Context, gatewayRef string, card CardDetails) (*AuthorizationResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.statuses[gatewayRef]; !ok {
		return nil, fmt.Errorf("stub: unknown checkout %s: %w", gatewayRef, ErrNotFound)
	}
	switch {
	case strings.HasSuffix(card.Number, "0002"):
		a.statuses[gatewayRef] = OutcomeDeclined
		return declined("card_declined", "card was declined"), nil
	case strings.HasSuffix(card.Number, "3155"):
		a.statuses[gatewayRef] = OutcomeChallenge
		return &AuthorizationResult{
			Outcome: OutcomeChallenge,
			NextStep: &ChallengeStep{
				URL:    "https://stub.local/3ds/" + gatewayRef,
				Method: "POST",
			},
		}, nil
	default:
		a.statuses[gatewayRef] = OutcomeApproved
		return a.approved(gatewayRef, card), nil
	}
}

func (a *StubAdapter) GetStatus(ctx context.Context, gatewayRef string) (*AuthorizationResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	st, ok := a.statuses[gatewayRef]
	if !ok {
		return nil, fmt.Errorf("stub: unknown checkout %s: %w", gatewayRef, ErrNotFound)
	}
	switch st {
	case OutcomeChallenge:
		// A pending challenge resolves on the first poll.
		a.statuses[gatewayRef] = OutcomeApproved
		return &AuthorizationResult{Outcome: OutcomePending}, nil
	case OutcomeApproved:
		return a.approved(gatewayRef, CardDetails{}), nil
	case OutcomeDeclined:
		return declined("card_declined", "card was declined"), nil
	default:
		return &AuthorizationResult{Outcome: OutcomePending}, nil
	}
}

func (a *StubAdapter) approved(gatewayRef string, card CardDetails) *AuthorizationResult {
	res := &AuthorizationResult{
		Outcome:       OutcomeApproved,
		TransactionID: "txn_" + gatewayRef,
		PaymentMethod: "card",
		PaidAt:        time.Now().UTC(),
	}
	if card.Number != "" {
		res.CardLast4 = last4(card.Number)
		res.CardBrand = DetectBrand(card.Number)
	}
	return res
}
