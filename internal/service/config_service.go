package service

import (
	"errors"
	"sync"
	"time"

	"streamvault/internal/domain"
	"streamvault/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("invalid payment configuration")

// ConfigStore is the persistence contract the resolver needs.
type ConfigStore interface {
	Latest() (*models.GatewayConfig, error)
	Save(*models.GatewayConfig) error
}

// PublicConfig is the unauthenticated view: which gateway is active and
// whether payments are available. Never carries secrets.
type PublicConfig struct {
	ActiveGateway        string `json:"activeGateway"`
	StripePublishableKey string `json:"stripePublishableKey,omitempty"`
	IsEnabled            bool   `json:"isEnabled"`
	Status               string `json:"status"`
}

// ConfigUpdate is a partial update; nil fields keep their current value.
type ConfigUpdate struct {
	IsEnabled            *bool
	ActiveGateway        *string
	SumupAPIKey          *string
	SumupMerchantEmail   *string
	StripePublishableKey *string
	StripeSecretKey      *string
}

// ConfigService answers "is payment enabled, and via which gateway" for both
// the public UI and the orchestrator. Reads are served from a short-TTL
// in-process cache; a store failure degrades to a safe disabled default
// instead of blocking all traffic.
type ConfigService struct {
	store ConfigStore
	ttl   time.Duration
	now   func() time.Time
	log   *zap.Logger

	mu        sync.Mutex
	cached    *models.GatewayConfig
	fetchedAt time.Time
	degraded  bool
}

func NewConfigService(store ConfigStore, ttl time.Duration, log *zap.Logger) *ConfigService {
	return &ConfigService{store: store, ttl: ttl, now: time.Now, log: log}
}

// Full returns the authoritative config including credentials. Server-side
// use only.
func (s *ConfigService) Full() *models.GatewayConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached != nil && s.now().Sub(s.fetchedAt) < s.ttl {
		return s.cached
	}
	cfg, err := s.store.Latest()
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Error("payment config read failed, degrading to disabled", zap.Error(err))
			s.degraded = true
		} else {
			s.degraded = false
		}
		cfg = defaultConfig()
	} else {
		s.degraded = false
	}
	s.cached = cfg
	s.fetchedAt = s.now()
	return cfg
}

// Public strips secrets from the authoritative config. A store failure shows
// up as status "error" so the storefront can tell "switched off" apart from
// "backend trouble"; both disable checkout.
func (s *ConfigService) Public() PublicConfig {
	cfg := s.Full()
	s.mu.Lock()
	degraded := s.degraded
	s.mu.Unlock()
	status := "unavailable"
	if cfg.IsEnabled {
		status = "available"
	}
	if degraded {
		status = "error"
	}
	return PublicConfig{
		ActiveGateway:        cfg.ActiveGateway,
		StripePublishableKey: cfg.StripePublishableKey,
		IsEnabled:            cfg.IsEnabled,
		Status:               status,
	}
}

// Update merges a partial change into the latest row (created lazily on the
// first write), validates that an enabled config has credentials for its
// active gateway, persists, and drops the cache.
func (s *ConfigService) Update(upd ConfigUpdate) (*models.GatewayConfig, error) {
	cfg, err := s.store.Latest()
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		cfg = defaultConfig()
	}
	if upd.IsEnabled != nil {
		cfg.IsEnabled = *upd.IsEnabled
	}
	if upd.ActiveGateway != nil {
		if *upd.ActiveGateway != domain.GatewaySumUp && *upd.ActiveGateway != domain.GatewayStripe {
			return nil, ErrInvalidConfig
		}
		cfg.ActiveGateway = *upd.ActiveGateway
	}
	if upd.SumupAPIKey != nil {
		cfg.SumupAPIKey = *upd.SumupAPIKey
	}
	if upd.SumupMerchantEmail != nil {
		cfg.SumupMerchantEmail = *upd.SumupMerchantEmail
	}
	if upd.StripePublishableKey != nil {
		cfg.StripePublishableKey = *upd.StripePublishableKey
	}
	if upd.StripeSecretKey != nil {
		cfg.StripeSecretKey = *upd.StripeSecretKey
	}
	if cfg.IsEnabled {
		switch cfg.ActiveGateway {
		case domain.GatewaySumUp:
			if cfg.SumupAPIKey == "" || cfg.SumupMerchantEmail == "" {
				return nil, ErrInvalidConfig
			}
		case domain.GatewayStripe:
			if cfg.StripeSecretKey == "" || cfg.StripePublishableKey == "" {
				return nil, ErrInvalidConfig
			}
		}
	}
	if err := s.store.Save(cfg); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
	return cfg, nil
}

func defaultConfig() *models.GatewayConfig {
	return &models.GatewayConfig{
		IsEnabled:     false,
		ActiveGateway: domain.GatewaySumUp,
	}
}
