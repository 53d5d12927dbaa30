package checkout

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"streamvault/pkg/gateway"
)

// ErrValidation marks malformed input rejected before any gateway call.
// Validation failures never increment the attempt counter.
var ErrValidation = errors.New("validation failed")

var (
	digitsOnly = regexp.MustCompile(`^\d{15,16}$`)
	emailRe    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRe    = regexp.MustCompile(`^\+?[\d\s-]{8,}$`)
	nameRe     = regexp.MustCompile(`^[a-zA-Z\s\-']+$`)
	cvvRe      = regexp.MustCompile(`^\d{3,4}$`)
)

// IsValidCardNumber runs the Luhn check over a 15–16 digit card number.
// Spaces and dashes are stripped first.
func IsValidCardNumber(cardNumber string) bool {
	sanitized := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, cardNumber)
	if !digitsOnly.MatchString(sanitized) {
		return false
	}
	sum := 0
	double := false
	for i := len(sanitized) - 1; i >= 0; i-- {
		d := int(sanitized[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// IsValidExpiry accepts the current month and anything later. Year is two or
// four digits.
func IsValidExpiry(month, year string, now time.Time) bool {
	m, err := strconv.Atoi(strings.TrimSpace(month))
	if err != nil || m < 1 || m > 12 {
		return false
	}
	y, err := strconv.Atoi(strings.TrimSpace(year))
	if err != nil {
		return false
	}
	if y < 100 {
		y += 2000
	}
	if y < now.Year() {
		return false
	}
	if y == now.Year() && m < int(now.Month()) {
		return false
	}
	return true
}

func IsValidCVV(cvv string) bool { return cvvRe.MatchString(cvv) }

func IsValidEmail(email string) bool { return emailRe.MatchString(email) }

func IsValidPhone(phone string) bool { return phoneRe.MatchString(phone) }

func IsValidName(name string) bool {
	return len(strings.TrimSpace(name)) >= 2 && nameRe.MatchString(name)
}

// ValidateCustomer checks the contact fields required at order creation.
func ValidateCustomer(c gateway.Customer) error {
	var problems []string
	if !IsValidEmail(c.Email) {
		problems = append(problems, "invalid email address")
	}
	if !IsValidName(c.Name) {
		problems = append(problems, "invalid name")
	}
	if !IsValidPhone(c.Phone) {
		problems = append(problems, "invalid phone number")
	}
	if len(strings.TrimSpace(c.Country)) != 2 {
		problems = append(problems, "invalid country code")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}

// ValidateCard rejects malformed card input before it reaches the gateway.
func ValidateCard(card gateway.CardDetails, now time.Time) error {
	var problems []string
	if !IsValidCardNumber(card.Number) {
		problems = append(problems, "invalid card number")
	}
	if !IsValidExpiry(card.ExpiryMonth, card.ExpiryYear, now) {
		problems = append(problems, "invalid expiry date")
	}
	if !IsValidCVV(card.CVV) {
		problems = append(problems, "invalid cvv")
	}
	if !IsValidName(card.Name) {
		problems = append(problems, "invalid cardholder name")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}
