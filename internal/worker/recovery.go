package worker

import (
	"context"
	"time"

	"github.com/ignite/sendguard/internal/pkg/distlock"
	"github.com/ignite/sendguard/internal/service/recovery"
)

// DefaultRecoveryInterval is how often the recovery scheduler runs.
const DefaultRecoveryInterval = 5 * time.Minute

// RecoveryTicker is implemented by recovery.Service.
type RecoveryTicker interface {
	Tick(ctx context.Context) (recovery.TickResult, error)
}

// RecoveryWorker periodically advances paused and recovering entities.
type RecoveryWorker struct {
	svc  RecoveryTicker
	loop *loop
}

// NewRecoveryWorker creates the scheduler loop. Zero interval uses the default.
func NewRecoveryWorker(svc RecoveryTicker, interval time.Duration) *RecoveryWorker {
	if interval <= 0 {
		interval = DefaultRecoveryInterval
	}
	w := &RecoveryWorker{svc: svc}
	w.loop = newLoop("recovery", interval, func(ctx context.Context) error {
		_, err := svc.Tick(ctx)
		return err
	})
	return w
}

// SetLocker enables cross-replica tick locking.
func (w *RecoveryWorker) SetLocker(f distlock.Factory) { w.loop.setLocker(f, 0) }

// Start begins the scheduler loop.
func (w *RecoveryWorker) Start() error { return w.loop.start() }

// Stop waits for the in-flight tick to finish.
func (w *RecoveryWorker) Stop() { w.loop.stop() }

// Stats reports the tick counters.
func (w *RecoveryWorker) Stats() Stats { return w.loop.stats() }

// Tick runs one guarded pass.
func (w *RecoveryWorker) Tick(ctx context.Context) (recovery.TickResult, error) {
	var res recovery.TickResult
	err := w.loop.once(ctx, func(ctx context.Context) error {
		var err error
		res, err = w.svc.Tick(ctx)
		return err
	})
	return res, err
}
