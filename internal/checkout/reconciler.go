package checkout

import (
	"context"
	"errors"
	"time"

	"streamvault/internal/domain"

	"go.uber.org/zap"
)

// Reconciler polls a challenged order until the gateway reports a terminal
// verdict or the attempt budget runs out. It drives the same convergence path
// as a direct status query, so a webhook or redirect landing mid-poll simply
// wins the conditional write and the next poll observes the terminal row.
type Reconciler struct {
	service *Service
	cfg     ReconcilerConfig
	clock   Clock
	log     *zap.Logger
}

type ReconcilerConfig struct {
	Interval    time.Duration
	MaxAttempts int
}

func NewReconciler(service *Service, cfg ReconcilerConfig, clock Clock, log *zap.Logger) *Reconciler {
	if clock == nil {
		clock = RealClock()
	}
	return &Reconciler{service: service, cfg: cfg, clock: clock, log: log}
}

// Await blocks until the order reaches a terminal state or MaxAttempts polls
// have been spent. On exhaustion the order is left as it stands, still
// reconcilable by a later poll or webhook, and the result carries the
// 3ds_timeout reason so the caller can tell the customer what happened.
// Cancelling ctx stops polling without writing anything.
func (r *Reconciler) Await(ctx context.Context, gatewayRef string) (*Result, error) {
	var last *Result
	for attempt := 0; attempt < r.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			if ctx.Err() != nil {
				return last, ctx.Err()
			}
			select {
			case <-ctx.Done():
				return last, ctx.Err()
			case <-r.clock.After(r.cfg.Interval):
			}
		}

		res, err := r.service.Status(ctx, gatewayRef)
		if err != nil {
			if errors.Is(err, ErrOrderNotFound) {
				return nil, err
			}
			// Transient gateway trouble costs an attempt but not the wait.
			r.log.Warn("reconcile poll failed",
				zap.String("gateway_ref", gatewayRef), zap.Int("attempt", attempt+1), zap.Error(err))
			continue
		}
		last = res
		if domain.IsTerminal(res.Status) {
			return res, nil
		}
	}

	if last == nil {
		last = &Result{Status: domain.StatusThreeDSNeeded}
	}
	last.Reason = domain.Reason3DSTimeout
	r.log.Info("reconcile budget exhausted",
		zap.String("gateway_ref", gatewayRef), zap.Int("attempts", r.cfg.MaxAttempts))
	return last, nil
}
