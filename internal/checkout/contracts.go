package checkout

import (
	"time"

	"streamvault/internal/models"
	"streamvault/pkg/gateway"
)

// OrderStore is the durable order record. UpdateStatus must be conditional on
// the row not being terminal and report whether it changed anything.
type OrderStore interface {
	Create(*models.Order) error
	GetByReference(ref string) (*models.Order, error)
	GetByGatewayRef(ref string) (*models.Order, error)
	RecordAttempt(orderID uint, attempt *models.PaymentAttempt) error
	UpdateStatus(orderID uint, newStatus string, fields map[string]any) (bool, error)
}

// ConfigResolver yields the authoritative gateway configuration.
type ConfigResolver interface {
	Full() *models.GatewayConfig
}

// AuditTrail is the operator channel for bookkeeping failures.
type AuditTrail interface {
	Create(*models.AuditLog) error
}

// AdapterFactory builds a gateway adapter for the given configuration. Called
// per request so a config change takes effect without restarts and no adapter
// state outlives its credentials.
type AdapterFactory func(cfg *models.GatewayConfig) (gateway.Adapter, error)

// Clock abstracts time for the reconciler and the cool-down window so tests
// run without real delays.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock is the wall clock.
func RealClock() Clock { return realClock{} }
