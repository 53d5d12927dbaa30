package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"

	"streamvault/config"
	"streamvault/internal/checkout"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// WebhookHandler converges orders from provider-initiated signals: Stripe
// webhooks and the SumUp 3-D Secure redirect. Both paths funnel into the same
// status convergence as a client poll, so whichever signal lands first wins
// and the rest become no-ops.
type WebhookHandler struct {
	svc *checkout.Service
	cfg *config.Config
	log *zap.Logger
}

func NewWebhookHandler(svc *checkout.Service, cfg *config.Config, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{svc: svc, cfg: cfg, log: log}
}

// Stripe accepts payment_intent.* events. The response is 200 for any event
// that does not match a known order, so the provider stops retrying ones we
// will never act on.
func (h *WebhookHandler) Stripe(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if h.cfg.Payment.WebhookSecret != "" {
		if !h.verifySignature(body, c.GetHeader("X-Webhook-Signature")) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}
	}
	var event struct {
		Type string `json:"type"`
		Data struct {
			Object struct {
				ID string `json:"id"`
			} `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if event.Data.Object.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "object id required"})
		return
	}

	// The event is only a hint; the verdict is re-read from the provider
	// rather than trusted from the payload.
	if _, err := h.svc.Status(c.Request.Context(), event.Data.Object.ID); err != nil {
		if errors.Is(err, checkout.ErrOrderNotFound) {
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}
		h.log.Warn("webhook convergence failed",
			zap.String("event", event.Type), zap.String("object", event.Data.Object.ID), zap.Error(err))
		// Non-2xx makes the provider retry later, which is what we want for
		// transient failures.
		c.JSON(http.StatusInternalServerError, gin.H{"error": "retry later"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// SumUpRedirect is the browser return leg after a SumUp 3-D Secure challenge.
// It converges the order and sends the customer back to the storefront result
// page; the page then uses the await endpoint if the verdict is still pending.
func (h *WebhookHandler) SumUpRedirect(c *gin.Context) {
	ref := c.Param("ref")
	status := "pending"
	if res, err := h.svc.Status(c.Request.Context(), ref); err == nil {
		status = res.Status
	} else if !errors.Is(err, checkout.ErrOrderNotFound) {
		h.log.Warn("redirect convergence failed", zap.String("gateway_ref", ref), zap.Error(err))
	}
	target := h.cfg.Server.SiteURL + "/checkout/result?" + url.Values{
		"ref":    {ref},
		"status": {status},
	}.Encode()
	c.Redirect(http.StatusFound, target)
}

func (h *WebhookHandler) verifySignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(h.cfg.Payment.WebhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}
