package handler

import (
	"errors"
	"net/http"

	"streamvault/internal/middleware"
	"streamvault/internal/models"
	"streamvault/internal/repository"
	"streamvault/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ConfigHandler struct {
	svc       *service.ConfigService
	auditRepo *repository.AuditLogRepository
	log       *zap.Logger
}

func NewConfigHandler(svc *service.ConfigService, auditRepo *repository.AuditLogRepository, log *zap.Logger) *ConfigHandler {
	return &ConfigHandler{svc: svc, auditRepo: auditRepo, log: log}
}

type ConfigUpdateRequest struct {
	IsEnabled            *bool   `json:"isEnabled"`
	ActiveGateway        *string `json:"activeGateway"`
	SumupAPIKey          *string `json:"sumupKey"`
	SumupMerchantEmail   *string `json:"sumupMerchantEmail"`
	StripePublishableKey *string `json:"stripePublishableKey"`
	StripeSecretKey      *string `json:"stripeSecretKey"`
}

// GetPublic is the unauthenticated view consumed by the storefront. Secrets
// never leave the server through this endpoint.
func (h *ConfigHandler) GetPublic(c *gin.Context) {
	c.Header("Cache-Control", "public, max-age=300")
	c.JSON(http.StatusOK, h.svc.Public())
}

// Get returns the full config to an administrator, secret values masked.
func (h *ConfigHandler) Get(c *gin.Context) {
	cfg := h.svc.Full()
	c.JSON(http.StatusOK, gin.H{
		"isEnabled":            cfg.IsEnabled,
		"activeGateway":        cfg.ActiveGateway,
		"sumupKey":             mask(cfg.SumupAPIKey),
		"sumupMerchantEmail":   cfg.SumupMerchantEmail,
		"stripePublishableKey": cfg.StripePublishableKey,
		"stripeSecretKey":      mask(cfg.StripeSecretKey),
		"updatedAt":            cfg.UpdatedAt,
	})
}

// Update applies a partial configuration change. Omitted fields keep their
// current value, so rotating one credential does not require re-sending the
// rest.
func (h *ConfigHandler) Update(c *gin.Context) {
	var req ConfigUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cfg, err := h.svc.Update(service.ConfigUpdate{
		IsEnabled:            req.IsEnabled,
		ActiveGateway:        req.ActiveGateway,
		SumupAPIKey:          req.SumupAPIKey,
		SumupMerchantEmail:   req.SumupMerchantEmail,
		StripePublishableKey: req.StripePublishableKey,
		StripeSecretKey:      req.StripeSecretKey,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidConfig) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.log.Error("payment config update failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if h.auditRepo != nil {
		_ = h.auditRepo.Create(&models.AuditLog{
			Actor:    middleware.GetUserEmail(c),
			Action:   "payment_config_updated",
			Resource: "payment_config",
			Detail:   "gateway=" + cfg.ActiveGateway,
			IP:       c.ClientIP(),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"isEnabled":     cfg.IsEnabled,
		"activeGateway": cfg.ActiveGateway,
		"updatedAt":     cfg.UpdatedAt,
	})
}

// mask hides all but the last four characters of a credential.
func mask(s string) string {
	if len(s) <= 4 {
		if s == "" {
			return ""
		}
		return "****"
	}
	return "****" + s[len(s)-4:]
}
