package domain

const (
	RoleAdmin = "ADMIN"
)

// Order lifecycle statuses. Paid and Failed are terminal; ThreeDSNeeded is a
// soft-terminal state that a later poll, webhook or redirect may still
// resolve.
const (
	StatusPending       = "pending"
	StatusThreeDSNeeded = "3ds_required"
	StatusPaid          = "paid"
	StatusFailed        = "failed"
)

// IsTerminal reports whether status permits no further transitions.
func IsTerminal(status string) bool {
	return status == StatusPaid || status == StatusFailed
}

const (
	GatewaySumUp  = "sumup"
	GatewayStripe = "stripe"
)

// PaymentAttempt outcomes.
const (
	AttemptPending = "pending"
	AttemptSuccess = "success"
	AttemptFailed  = "failed"
)

// Failure categories. Every raw provider error code maps to exactly one of
// these, defaulting to CategoryOther.
const (
	CategoryCardDeclined      = "card_declined"
	CategoryInsufficientFunds = "insufficient_funds"
	CategoryCardExpired       = "card_expired"
	CategoryInvalidCard       = "invalid_card"
	Category3DSFailed         = "3ds_failed"
	Category3DSTimeout        = "3ds_timeout"
	Category3DSCancelled      = "3ds_cancelled"
	CategoryProcessingError   = "processing_error"
	CategoryNetworkError      = "network_error"
	CategoryFraudSuspected    = "fraud_suspected"
	CategoryOther             = "other"
)

// Stable reason codes consumed by the failed/success pages.
const (
	ReasonPaymentFailed = "payment_failed"
	Reason3DSFailed     = "3ds_failed"
	Reason3DSCancelled  = "3ds_cancelled"
	Reason3DSTimeout    = "3ds_timeout"
)

// MinAmountCents is the smallest accepted order total (1.00 in major units).
const MinAmountCents int64 = 100
