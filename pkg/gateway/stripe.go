package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const stripeDefaultBaseURL = "https://api.stripe.com"

// StripeConfig carries the server-side credentials for the Stripe adapter.
type StripeConfig struct {
	SecretKey string
	BaseURL   string
	ReturnURL string
}

// StripeAdapter drives a payment intent: created at intent time, confirmed
// with card details, and re-queried for status. A confirm that comes back
// requires_action maps to a 3-D Secure challenge.
type StripeAdapter struct {
	cfg    StripeConfig
	client *http.Client
}

func NewStripeAdapter(cfg StripeConfig, client *http.Client) (*StripeAdapter, error) {
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("stripe: secret key is required: %w", ErrNotConfigured)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = stripeDefaultBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &StripeAdapter{cfg: cfg, client: client}, nil
}

func (a *StripeAdapter) Name() string { return "stripe" }

type stripeIntentResp struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
	NextAction   *struct {
		Type          string `json:"type"`
		RedirectToURL struct {
			URL string `json:"url"`
		} `json:"redirect_to_url"`
	} `json:"next_action"`
	LatestCharge     string `json:"latest_charge"`
	LastPaymentError *struct {
		Code        string `json:"code"`
		DeclineCode string `json:"decline_code"`
		Message     string `json:"message"`
	} `json:"last_payment_error"`
}

type stripeErrorResp struct {
	Error struct {
		Type        string `json:"type"`
		Code        string `json:"code"`
		DeclineCode string `json:"decline_code"`
		Message     string `json:"message"`
	} `json:"error"`
}

func (a *StripeAdapter) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(req.AmountCents, 10))
	form.Set("currency", strings.ToLower(req.Currency))
	form.Set("payment_method_types[]", "card")
	form.Set("description", req.Description)
	form.Set("metadata[checkout_reference]", req.Reference)
	form.Set("metadata[client_email]", req.Customer.Email)
	form.Set("metadata[client_name]", req.Customer.Name)
	for k, v := range req.Metadata {
		form.Set("metadata["+k+"]", v)
	}
	var out stripeIntentResp
	if err := a.do(ctx, http.MethodPost, "/v1/payment_intents", form, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, fmt.Errorf("stripe: intent created without id: %w", ErrUnavailable)
	}
	return &Intent{GatewayRef: out.ID, ClientSecret: out.ClientSecret}, nil
}

func (a *StripeAdapter) Authorize(ctx context.Context, gatewayRef string, card CardDetails) (*AuthorizationResult, error) {
	form := url.Values{}
	form.Set("payment_method_data[type]", "card")
	form.Set("payment_method_data[card][number]", card.Number)
	form.Set("payment_method_data[card][exp_month]", card.ExpiryMonth)
	form.Set("payment_method_data[card][exp_year]", card.ExpiryYear)
	form.Set("payment_method_data[card][cvc]", card.CVV)
	if a.cfg.ReturnURL != "" {
		form.Set("return_url", a.cfg.ReturnURL)
	}
	var out stripeIntentResp
	err := a.do(ctx, http.MethodPost, "/v1/payment_intents/"+gatewayRef+"/confirm", form, &out)
	if err != nil {
		var pe *providerError
		if errors.As(err, &pe) {
			return declined(pe.code, pe.message), nil
		}
		return nil, err
	}
	res := a.toResult(&out)
	if res.Outcome == OutcomeApproved {
		res.CardLast4 = last4(card.Number)
		res.CardBrand = DetectBrand(card.Number)
		res.PaymentMethod = "card"
	}
	return res, nil
}

func (a *StripeAdapter) GetStatus(ctx context.Context, gatewayRef string) (*AuthorizationResult, error) {
	var out stripeIntentResp
	if err := a.do(ctx, http.MethodGet, "/v1/payment_intents/"+gatewayRef, nil, &out); err != nil {
		return nil, err
	}
	return a.toResult(&out), nil
}

func (a *StripeAdapter) toResult(out *stripeIntentResp) *AuthorizationResult {
	switch out.Status {
	case "succeeded":
		return &AuthorizationResult{
			Outcome:       OutcomeApproved,
			TransactionID: out.ID,
			PaidAt:        time.Now().UTC(),
		}
	case "requires_action":
		step := &ChallengeStep{Method: http.MethodGet}
		if out.NextAction != nil {
			step.URL = out.NextAction.RedirectToURL.URL
		}
		return &AuthorizationResult{Outcome: OutcomeChallenge, NextStep: step}
	case "canceled":
		return declined("3ds_cancelled", "payment intent canceled")
	case "requires_payment_method":
		// Confirm was attempted and rejected; the intent is reusable but this
		// authorization is a decline.
		if out.LastPaymentError != nil {
			code := out.LastPaymentError.DeclineCode
			if code == "" {
				code = out.LastPaymentError.Code
			}
			return declined(code, out.LastPaymentError.Message)
		}
		return &AuthorizationResult{Outcome: OutcomePending}
	default:
		return &AuthorizationResult{Outcome: OutcomePending}
	}
}

func (a *StripeAdapter) do(ctx context.Context, method, path string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, a.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("stripe: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.cfg.SecretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("stripe: %v: %w", err, ErrUnavailable)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("stripe: payment intent not found: %w", ErrNotFound)
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("stripe: HTTP %d: %w", resp.StatusCode, ErrUnavailable)
	case resp.StatusCode >= 400:
		var e stripeErrorResp
		if err := json.Unmarshal(respBody, &e); err == nil && e.Error.Message != "" {
			code := e.Error.DeclineCode
			if code == "" {
				code = e.Error.Code
			}
			return &providerError{code: code, message: e.Error.Message}
		}
		return fmt.Errorf("stripe: HTTP %d: %s: %w", resp.StatusCode, string(respBody), ErrUnavailable)
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("stripe: decode response: %w", err)
		}
	}
	return nil
}
