package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const sumupDefaultBaseURL = "https://api.sumup.com"

// SumUpConfig carries the credentials the SumUp adapter needs. APIKey and
// MerchantEmail are required. RedirectBase, when set, is the prefix of the
// browser return URL for 3-D Secure; the checkout id is appended per call.
type SumUpConfig struct {
	APIKey        string
	MerchantEmail string
	BaseURL       string
	RedirectBase  string
}

// SumUpAdapter talks to the SumUp checkouts API: a checkout object is created
// first, then the card is attached to it with a PUT, which either settles the
// payment synchronously or returns a 3-D Secure next step.
type SumUpAdapter struct {
	cfg    SumUpConfig
	client *http.Client
}

func NewSumUpAdapter(cfg SumUpConfig, client *http.Client) (*SumUpAdapter, error) {
	if cfg.APIKey == "" || cfg.MerchantEmail == "" {
		return nil, fmt.Errorf("sumup: api key and merchant email are required: %w", ErrNotConfigured)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = sumupDefaultBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &SumUpAdapter{cfg: cfg, client: client}, nil
}

func (a *SumUpAdapter) Name() string { return "sumup" }

type sumupCheckoutReq struct {
	CheckoutReference string  `json:"checkout_reference"`
	Amount            float64 `json:"amount"`
	Currency          string  `json:"currency"`
	PayToEmail        string  `json:"pay_to_email"`
	Description       string  `json:"description,omitempty"`
	RedirectURL       string  `json:"redirect_url,omitempty"`
}

type sumupCard struct {
	Name        string `json:"name"`
	Number      string `json:"number"`
	ExpiryMonth string `json:"expiry_month"`
	ExpiryYear  string `json:"expiry_year"`
	CVV         string `json:"cvv"`
}

type sumupCompleteReq struct {
	PaymentType string    `json:"payment_type"`
	Card        sumupCard `json:"card"`
	RedirectURL string    `json:"redirect_url,omitempty"`
}

type sumupCheckoutResp struct {
	ID                string  `json:"id"`
	CheckoutReference string  `json:"checkout_reference"`
	Status            string  `json:"status"`
	Amount            float64 `json:"amount"`
	Currency          string  `json:"currency"`
	Date              string  `json:"date"`
	TransactionCode   string  `json:"transaction_code"`
	TransactionID     string  `json:"transaction_id"`
	NextStep          *struct {
		URL     string            `json:"url"`
		Method  string            `json:"method"`
		Payload map[string]string `json:"payload"`
	} `json:"next_step"`
	Transactions []struct {
		PaymentType   string `json:"payment_type"`
		PaymentMethod string `json:"payment_method"`
		Card          struct {
			Last4 string `json:"last_4_digits"`
			Type  string `json:"type"`
		} `json:"card"`
	} `json:"transactions"`
}

type sumupErrorResp struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	Param     string `json:"param"`
}

func (a *SumUpAdapter) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	payload := sumupCheckoutReq{
		CheckoutReference: req.Reference,
		Amount:            float64(req.AmountCents) / 100,
		Currency:          strings.ToUpper(req.Currency),
		PayToEmail:        a.cfg.MerchantEmail,
		Description:       req.Description,
	}
	var out sumupCheckoutResp
	if err := a.do(ctx, http.MethodPost, "/v0.1/checkouts", payload, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, fmt.Errorf("sumup: checkout created without id: %w", ErrUnavailable)
	}
	return &Intent{GatewayRef: out.ID}, nil
}

func (a *SumUpAdapter) Authorize(ctx context.Context, gatewayRef string, card CardDetails) (*AuthorizationResult, error) {
	payload := sumupCompleteReq{
		PaymentType: "card",
		Card: sumupCard{
			Name:        card.Name,
			Number:      card.Number,
			ExpiryMonth: card.ExpiryMonth,
			ExpiryYear:  card.ExpiryYear,
			CVV:         card.CVV,
		},
		RedirectURL: a.redirectFor(gatewayRef),
	}
	var out sumupCheckoutResp
	err := a.do(ctx, http.MethodPut, "/v0.1/checkouts/"+gatewayRef, payload, &out)
	if err != nil {
		var pe *providerError
		if errors.As(err, &pe) {
			return declined(pe.code, pe.message), nil
		}
		return nil, err
	}
	res := a.toResult(&out)
	if res.Outcome == OutcomeApproved && res.CardLast4 == "" {
		res.CardLast4 = last4(card.Number)
		res.CardBrand = DetectBrand(card.Number)
	}
	return res, nil
}

func (a *SumUpAdapter) GetStatus(ctx context.Context, gatewayRef string) (*AuthorizationResult, error) {
	var out sumupCheckoutResp
	if err := a.do(ctx, http.MethodGet, "/v0.1/checkouts/"+gatewayRef, nil, &out); err != nil {
		return nil, err
	}
	return a.toResult(&out), nil
}

// toResult normalizes a SumUp checkout object. SumUp reports PENDING both
// before authorization and while a 3DS challenge is open; the presence of
// next_step disambiguates.
func (a *SumUpAdapter) toResult(out *sumupCheckoutResp) *AuthorizationResult {
	switch strings.ToUpper(out.Status) {
	case "PAID", "PAID_OUT":
		res := &AuthorizationResult{
			Outcome:         OutcomeApproved,
			TransactionID:   out.TransactionID,
			TransactionCode: out.TransactionCode,
		}
		if t, err := time.Parse(time.RFC3339, out.Date); err == nil {
			res.PaidAt = t
		}
		if len(out.Transactions) > 0 {
			tx := out.Transactions[0]
			res.PaymentMethod = tx.PaymentMethod
			if res.PaymentMethod == "" {
				res.PaymentMethod = tx.PaymentType
			}
			res.CardLast4 = tx.Card.Last4
			res.CardBrand = strings.ToLower(tx.Card.Type)
		}
		return res
	case "FAILED", "CANCELLED":
		code := "card_declined"
		if strings.ToUpper(out.Status) == "CANCELLED" {
			code = "3ds_cancelled"
		}
		return declined(code, "payment "+strings.ToLower(out.Status))
	default:
		if out.NextStep != nil {
			return &AuthorizationResult{
				Outcome: OutcomeChallenge,
				NextStep: &ChallengeStep{
					URL:     out.NextStep.URL,
					Method:  out.NextStep.Method,
					Payload: out.NextStep.Payload,
				},
			}
		}
		return &AuthorizationResult{Outcome: OutcomePending}
	}
}

func (a *SumUpAdapter) redirectFor(gatewayRef string) string {
	if a.cfg.RedirectBase == "" {
		return ""
	}
	return strings.TrimSuffix(a.cfg.RedirectBase, "/") + "/" + gatewayRef + "/redirect"
}

func (a *SumUpAdapter) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("sumup: marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("sumup: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("sumup: %v: %w", err, ErrUnavailable)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("sumup: checkout not found: %w", ErrNotFound)
	case resp.StatusCode >= 500:
		return fmt.Errorf("sumup: HTTP %d: %w", resp.StatusCode, ErrUnavailable)
	case resp.StatusCode >= 400:
		var e sumupErrorResp
		if err := json.Unmarshal(respBody, &e); err == nil && (e.ErrorCode != "" || e.Message != "") {
			return &providerError{code: e.ErrorCode, message: e.Message}
		}
		return fmt.Errorf("sumup: HTTP %d: %s: %w", resp.StatusCode, string(respBody), ErrUnavailable)
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("sumup: decode response: %w", err)
		}
	}
	return nil
}
