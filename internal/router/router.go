package router

import (
	"net/http"
	"time"

	"streamvault/config"
	"streamvault/internal/checkout"
	"streamvault/internal/domain"
	"streamvault/internal/handler"
	"streamvault/internal/middleware"
	"streamvault/internal/models"
	"streamvault/internal/observability"
	"streamvault/internal/repository"
	"streamvault/internal/service"
	"streamvault/pkg/gateway"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NewAdapterFactory builds a gateway adapter from the authoritative payment
// config. Called per request so a config change takes effect immediately.
func NewAdapterFactory(cfg *config.Config, client *http.Client) checkout.AdapterFactory {
	return func(gc *models.GatewayConfig) (gateway.Adapter, error) {
		switch gc.ActiveGateway {
		case domain.GatewayStripe:
			return gateway.NewStripeAdapter(gateway.StripeConfig{
				SecretKey: gc.StripeSecretKey,
				BaseURL:   cfg.Gateways.StripeBaseURL,
				ReturnURL: cfg.Server.SiteURL + "/checkout/result",
			}, client)
		default:
			return gateway.NewSumUpAdapter(gateway.SumUpConfig{
				APIKey:        gc.SumupAPIKey,
				MerchantEmail: gc.SumupMerchantEmail,
				BaseURL:       cfg.Gateways.SumupBaseURL,
				RedirectBase:  cfg.Server.SiteURL + "/api/v1/webhooks/sumup",
			}, client)
		}
	}
}

func Setup(cfg *config.Config, db *gorm.DB, log *zap.Logger) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	// Skip gin.Logger() to reduce log noise; use gin.Default() if you need request logging
	r.Use(middleware.RateLimit(middleware.NewRequestLimiter(100, 60*time.Second)))

	// Metrics registry; process and Go collectors alongside the payment ones.
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	// Repositories
	userRepo := repository.NewUserRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	configRepo := repository.NewConfigRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)

	// Services
	authSvc := service.NewAuthService(cfg, userRepo)
	configSvc := service.NewConfigService(configRepo, cfg.Payment.ConfigCacheTTL, log)

	factory := NewAdapterFactory(cfg, nil)
	cooldown := checkout.NewCooldown(cfg.Payment.CooldownWindow, nil)
	checkoutSvc := checkout.NewService(orderRepo, configSvc, auditRepo, factory, cooldown, nil, metrics, log)
	reconciler := checkout.NewReconciler(checkoutSvc, checkout.ReconcilerConfig{
		Interval:    cfg.Payment.PollInterval,
		MaxAttempts: cfg.Payment.PollMaxAttempts,
	}, nil, log)

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc, log)
	checkoutHandler := handler.NewCheckoutHandler(checkoutSvc, reconciler, log)
	configHandler := handler.NewConfigHandler(configSvc, auditRepo, log)
	webhookHandler := handler.NewWebhookHandler(checkoutSvc, cfg, log)
	healthHandler := handler.NewHealthHandler(db)

	authMw := middleware.AuthRequired(&cfg.JWT)
	adminMw := middleware.AdminRequired()

	r.GET("/health", healthHandler.Check)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	api := r.Group("/api/v1")
	{
		api.POST("/auth/login", authHandler.Login)

		co := api.Group("/checkout")
		{
			co.POST("/intent", checkoutHandler.CreateIntent)
			co.PUT("/:ref/authorize", checkoutHandler.Authorize)
			co.GET("/:ref/status", checkoutHandler.Status)
			co.GET("/:ref/await", checkoutHandler.Await)
			co.POST("/:ref/cancel", checkoutHandler.Cancel)
		}

		api.GET("/payment/config/public", configHandler.GetPublic)
		api.GET("/payment/config", authMw, adminMw, configHandler.Get)
		api.PUT("/payment/config", authMw, adminMw, configHandler.Update)

		api.POST("/webhooks/stripe", webhookHandler.Stripe)
		api.GET("/webhooks/sumup/:ref/redirect", webhookHandler.SumUpRedirect)
	}
	return r
}
