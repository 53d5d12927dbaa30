package gateway

import "strings"

// failureCategories maps raw provider error codes onto the fixed category
// set. Codes from both providers land here; anything unrecognized is "other".
var failureCategories = map[string]string{
	"card_declined":           "card_declined",
	"generic_decline":         "card_declined",
	"do_not_honor":            "card_declined",
	"transaction_not_allowed": "card_declined",
	"insufficient_funds":      "insufficient_funds",
	"expired_card":            "card_expired",
	"card_expired":            "card_expired",
	"invalid_card":            "invalid_card",
	"incorrect_number":        "invalid_card",
	"invalid_number":          "invalid_card",
	"incorrect_cvc":           "invalid_card",
	"invalid_cvc":             "invalid_card",
	"invalid_expiry_month":    "invalid_card",
	"invalid_expiry_year":     "invalid_card",
	"3ds_failed":              "3ds_failed",
	"authentication_required": "3ds_failed",
	"authentication_failure":  "3ds_failed",
	"payment_intent_authentication_failure": "3ds_failed",
	"3ds_timeout":            "3ds_timeout",
	"3ds_cancelled":          "3ds_cancelled",
	"processing_error":       "processing_error",
	"issuer_not_available":   "processing_error",
	"try_again_later":        "processing_error",
	"network_error":          "network_error",
	"fraud_suspected":        "fraud_suspected",
	"fraudulent":             "fraud_suspected",
	"stolen_card":            "fraud_suspected",
	"lost_card":              "fraud_suspected",
	"merchant_blacklist":     "fraud_suspected",
	"security_violation":     "fraud_suspected",
	"currency_not_supported": "processing_error",
	"amount_too_small":       "processing_error",
	"duplicate_transaction":  "processing_error",
}

// CategorizeFailure maps a raw provider error code onto one failure category.
// The mapping is total: unknown and empty codes become "other".
func CategorizeFailure(errorCode string) string {
	if c, ok := failureCategories[strings.ToLower(strings.TrimSpace(errorCode))]; ok {
		return c
	}
	return "other"
}
