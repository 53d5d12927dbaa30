package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrUnavailable wraps network failures and non-success HTTP statuses
	// from the provider. The adapter never retries; retry policy belongs to
	// the caller.
	ErrUnavailable = errors.New("gateway unavailable")
	// ErrNotConfigured means required credentials are absent.
	ErrNotConfigured = errors.New("gateway not configured")
	// ErrNotFound means the provider does not know the given reference.
	ErrNotFound = errors.New("gateway object not found")
)

// Customer carries the contact fields attached to a gateway-side checkout.
type Customer struct {
	Email   string
	Name    string
	Phone   string
	Country string
}

// IntentRequest describes the payment object to create on the provider side.
// AmountCents is in minor units.
type IntentRequest struct {
	Reference   string
	AmountCents int64
	Currency    string
	Description string
	Customer    Customer
	Metadata    map[string]string
}

// Intent is the provider-side payment object. ClientSecret is empty for
// providers that do not hand a secret to the browser.
type Intent struct {
	GatewayRef   string
	ClientSecret string
}

// CardDetails is the raw card input submitted for authorization.
type CardDetails struct {
	Name        string
	Number      string
	ExpiryMonth string
	ExpiryYear  string
	CVV         string
}

// Outcome of an authorization or status query.
type Outcome string

const (
	OutcomeApproved  Outcome = "approved"
	OutcomeDeclined  Outcome = "declined"
	OutcomeChallenge Outcome = "challenge"
	OutcomePending   Outcome = "pending"
)

// ChallengeStep carries the 3-D Secure redirect the client must complete
// out of band.
type ChallengeStep struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Payload map[string]string `json:"payload,omitempty"`
}

// AuthorizationResult is the normalized verdict shared by all providers.
// Exactly one Outcome is set; the error fields are populated only for
// declined results and NextStep only for challenges.
type AuthorizationResult struct {
	Outcome         Outcome
	TransactionID   string
	TransactionCode string
	PaymentMethod   string
	CardLast4       string
	CardBrand       string
	PaidAt          time.Time
	ErrorCode       string
	ErrorMessage    string
	FailureCategory string
	NextStep        *ChallengeStep
}

// Adapter is the uniform interface to a card-payment processor. Adapters keep
// no local state; every call is a network round trip. GetStatus must be safe
// to call repeatedly without side effects on the remote object.
type Adapter interface {
	Name() string
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	Authorize(ctx context.Context, gatewayRef string, card CardDetails) (*AuthorizationResult, error)
	GetStatus(ctx context.Context, gatewayRef string) (*AuthorizationResult, error)
}

// providerError is a 4xx response the provider explained with an error code.
// Adapters convert it into a declined AuthorizationResult rather than
// surfacing it as a transport failure.
type providerError struct {
	code    string
	message string
}

func (e *providerError) Error() string {
	return fmt.Sprintf("provider error %s: %s", e.code, e.message)
}

func declined(code, message string) *AuthorizationResult {
	return &AuthorizationResult{
		Outcome:         OutcomeDeclined,
		ErrorCode:       code,
		ErrorMessage:    message,
		FailureCategory: CategorizeFailure(code),
	}
}

// DetectBrand gives a coarse card brand from the leading digits, used when a
// provider response carries no card metadata.
func DetectBrand(number string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, number)
	switch {
	case strings.HasPrefix(digits, "4"):
		return "visa"
	case len(digits) >= 2 && digits[0] == '5' && digits[1] >= '1' && digits[1] <= '5':
		return "mastercard"
	case strings.HasPrefix(digits, "34"), strings.HasPrefix(digits, "37"):
		return "amex"
	default:
		return "unknown"
	}
}

func last4(number string) string {
	if len(number) < 4 {
		return number
	}
	return number[len(number)-4:]
}
