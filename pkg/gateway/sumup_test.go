package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSumUpTestAdapter(t *testing.T, handler http.HandlerFunc) *SumUpAdapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	a, err := NewSumUpAdapter(SumUpConfig{
		APIKey:        "sup_test_key",
		MerchantEmail: "merchant@example.com",
		BaseURL:       srv.URL,
		RedirectBase:  "https://shop.example.com/api/v1/webhooks/sumup",
	}, srv.Client())
	require.NoError(t, err)
	return a
}

func TestNewSumUpAdapterRequiresCredentials(t *testing.T) {
	_, err := NewSumUpAdapter(SumUpConfig{APIKey: "k"}, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = NewSumUpAdapter(SumUpConfig{MerchantEmail: "m@x.com"}, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSumUpCreateIntent(t *testing.T) {
	var got map[string]any
	a := newSumUpTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v0.1/checkouts", r.URL.Path)
		assert.Equal(t, "Bearer sup_test_key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]any{"id": "co-123", "status": "PENDING"})
	})

	intent, err := a.CreateIntent(context.Background(), IntentRequest{
		Reference:   "ord-abc",
		AmountCents: 1999,
		Currency:    "eur",
		Customer:    Customer{Email: "buyer@example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, "co-123", intent.GatewayRef)
	assert.Equal(t, "ord-abc", got["checkout_reference"])
	assert.Equal(t, 19.99, got["amount"])
	assert.Equal(t, "EUR", got["currency"])
	assert.Equal(t, "merchant@example.com", got["pay_to_email"])
}

func TestSumUpAuthorizePaid(t *testing.T) {
	a := newSumUpTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/v0.1/checkouts/co-123", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "https://shop.example.com/api/v1/webhooks/sumup/co-123/redirect", body["redirect_url"])
		json.NewEncoder(w).Encode(map[string]any{
			"id":               "co-123",
			"status":           "PAID",
			"transaction_id":   "tx-1",
			"transaction_code": "TC1",
			"transactions": []map[string]any{
				{"payment_type": "card", "card": map[string]any{"last_4_digits": "4242", "type": "VISA"}},
			},
		})
	})

	res, err := a.Authorize(context.Background(), "co-123", CardDetails{Number: "4242424242424242"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApproved, res.Outcome)
	assert.Equal(t, "tx-1", res.TransactionID)
	assert.Equal(t, "4242", res.CardLast4)
	assert.Equal(t, "visa", res.CardBrand)
}

func TestSumUpAuthorizeChallenge(t *testing.T) {
	a := newSumUpTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "co-123",
			"status": "PENDING",
			"next_step": map[string]any{
				"url":     "https://3ds.example.com/challenge",
				"method":  "POST",
				"payload": map[string]string{"PaReq": "xyz"},
			},
		})
	})

	res, err := a.Authorize(context.Background(), "co-123", CardDetails{Number: "4242424242423155"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeChallenge, res.Outcome)
	require.NotNil(t, res.NextStep)
	assert.Equal(t, "https://3ds.example.com/challenge", res.NextStep.URL)
	assert.Equal(t, "POST", res.NextStep.Method)
}

func TestSumUpAuthorizeDeclinedByProviderError(t *testing.T) {
	a := newSumUpTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error_code": "CARD_DECLINED",
			"message":    "The card was declined",
		})
	})

	res, err := a.Authorize(context.Background(), "co-123", CardDetails{Number: "4000000000000002"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeclined, res.Outcome)
	assert.Equal(t, "CARD_DECLINED", res.ErrorCode)
	assert.Equal(t, "card_declined", res.FailureCategory)
}

func TestSumUpGetStatusCancelled(t *testing.T) {
	a := newSumUpTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		json.NewEncoder(w).Encode(map[string]any{"id": "co-123", "status": "CANCELLED"})
	})

	res, err := a.GetStatus(context.Background(), "co-123")
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeclined, res.Outcome)
	assert.Equal(t, "3ds_cancelled", res.FailureCategory)
}

func TestSumUpGetStatusNotFound(t *testing.T) {
	a := newSumUpTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	_, err := a.GetStatus(context.Background(), "co-missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSumUpServerErrorIsUnavailable(t *testing.T) {
	a := newSumUpTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := a.Authorize(context.Background(), "co-123", CardDetails{})
	assert.ErrorIs(t, err, ErrUnavailable)
}
