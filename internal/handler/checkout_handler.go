package handler

import (
	"context"
	"errors"
	"net/http"

	"streamvault/internal/checkout"
	"streamvault/internal/domain"
	"streamvault/pkg/gateway"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CheckoutHandler struct {
	svc        *checkout.Service
	reconciler *checkout.Reconciler
	log        *zap.Logger
}

func NewCheckoutHandler(svc *checkout.Service, reconciler *checkout.Reconciler, log *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{svc: svc, reconciler: reconciler, log: log}
}

type CustomerPayload struct {
	Email   string `json:"email" binding:"required,email"`
	Name    string `json:"name" binding:"required"`
	Phone   string `json:"phone" binding:"required"`
	Country string `json:"country" binding:"required,len=2"`
}

type CreateIntentRequest struct {
	AmountCents int64           `json:"amount_cents" binding:"required"`
	Currency    string          `json:"currency" binding:"required,len=3"`
	Customer    CustomerPayload `json:"customer" binding:"required"`
	Package     string          `json:"package"`
	Features    []string        `json:"features"`
	CouponCode  string          `json:"coupon_code"`
}

type CardPayload struct {
	Name        string `json:"name" binding:"required"`
	Number      string `json:"number" binding:"required"`
	ExpiryMonth string `json:"expiry_month" binding:"required"`
	ExpiryYear  string `json:"expiry_year" binding:"required"`
	CVV         string `json:"cvv" binding:"required"`
}

type AuthorizeRequest struct {
	PaymentType string      `json:"payment_type"`
	Card        CardPayload `json:"card" binding:"required"`
}

// CreateIntent opens a checkout: validates the request, creates the
// provider-side payment object and persists the pending order.
func (h *CheckoutHandler) CreateIntent(c *gin.Context) {
	var req CreateIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	resp, err := h.svc.CreateIntent(c.Request.Context(), checkout.CreateIntentRequest{
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
		Customer: gateway.Customer{
			Email:   req.Customer.Email,
			Name:    req.Customer.Name,
			Phone:   req.Customer.Phone,
			Country: req.Customer.Country,
		},
		Package:    req.Package,
		Features:   req.Features,
		CouponCode: req.CouponCode,
		IPAddress:  c.ClientIP(),
		DeviceInfo: c.Request.UserAgent(),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"checkout_reference": resp.Order.Reference,
		"gateway_ref":        resp.Order.GatewayRef,
		"gateway":            resp.Order.Gateway,
		"amount_cents":       resp.Order.FinalAmountCents,
		"currency":           resp.Order.Currency,
		"status":             resp.Order.Status,
		"client_secret":      resp.ClientSecret,
	})
}

// Authorize submits card details against the gateway-side object identified
// by :ref (the gateway reference, not the order reference).
func (h *CheckoutHandler) Authorize(c *gin.Context) {
	var req AuthorizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.svc.Authorize(c.Request.Context(), c.Param("ref"), gateway.CardDetails{
		Name:        req.Card.Name,
		Number:      req.Card.Number,
		ExpiryMonth: req.Card.ExpiryMonth,
		ExpiryYear:  req.Card.ExpiryYear,
		CVV:         req.Card.CVV,
	}, checkout.AuthorizeMeta{
		PaymentType: req.PaymentType,
		IPAddress:   c.ClientIP(),
		DeviceInfo:  c.Request.UserAgent(),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resultBody(res))
}

// Status does a single gateway round trip and reports where the order stands.
func (h *CheckoutHandler) Status(c *gin.Context) {
	res, err := h.svc.Status(c.Request.Context(), c.Param("ref"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resultBody(res))
}

// Await blocks until the order settles or the poll budget runs out. Meant for
// the post-3DS return leg, where the provider's verdict lands asynchronously.
func (h *CheckoutHandler) Await(c *gin.Context) {
	res, err := h.reconciler.Await(c.Request.Context(), c.Param("ref"))
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// Client went away mid-wait; nothing useful to write.
			return
		}
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resultBody(res))
}

// Cancel marks an abandoned 3-D Secure challenge as failed.
func (h *CheckoutHandler) Cancel(c *gin.Context) {
	res, err := h.svc.Cancel(c.Request.Context(), c.Param("ref"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resultBody(res))
}

func resultBody(res *checkout.Result) gin.H {
	body := gin.H{"status": res.Status}
	if res.Reason != "" {
		body["reason"] = res.Reason
	}
	if res.NextStep != nil {
		body["next_step"] = res.NextStep
	}
	if o := res.Order; o != nil {
		body["checkout_reference"] = o.Reference
		body["gateway_ref"] = o.GatewayRef
		if o.Status == domain.StatusFailed {
			// The raw provider message stays on the order record for
			// operators; clients get the stable code and category.
			body["error_code"] = o.ErrorCode
			body["failure_category"] = o.FailureCategory
		}
		if o.PaidAt != nil {
			body["paid_at"] = o.PaidAt
			body["transaction_id"] = o.TransactionID
			body["card_last4"] = o.CardLast4
			body["card_brand"] = o.CardBrand
		}
	}
	return body
}

func (h *CheckoutHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, checkout.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, checkout.ErrOrderNotFound), errors.Is(err, gateway.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
	case errors.Is(err, checkout.ErrTooManyAttempts):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	case errors.Is(err, checkout.ErrPaymentsDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "payments are currently unavailable"})
	case errors.Is(err, gateway.ErrUnavailable):
		h.log.Warn("gateway unavailable", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "payment provider unavailable, try again"})
	default:
		h.log.Error("checkout request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
