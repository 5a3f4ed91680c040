// Package worker runs the periodic background jobs: the processor loop that
// activates held leads and the recovery scheduler.
package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ignite/sendguard/internal/pkg/distlock"
	"github.com/ignite/sendguard/internal/pkg/logger"
)

// ErrTickSkipped is returned when a tick is already running in this process
// or another replica holds the tick lock.
var ErrTickSkipped = errors.New("tick skipped")

// loop runs fn on a fixed interval. Ticks never overlap: an in-process flag
// covers this replica and an optional distributed lock covers the others.
type loop struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context) error

	locks   distlock.Factory
	lockTTL time.Duration

	inFlight atomic.Bool
	ticks    atomic.Int64
	skipped  atomic.Int64
	failures atomic.Int64

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.RWMutex
}

// Stats is a snapshot of a worker's tick counters.
type Stats struct {
	Running  bool  `json:"running"`
	Ticks    int64 `json:"ticks"`
	Skipped  int64 `json:"skipped"`
	Failures int64 `json:"failures"`
}

func newLoop(name string, interval time.Duration, fn func(ctx context.Context) error) *loop {
	return &loop{name: name, interval: interval, fn: fn, lockTTL: 2 * interval}
}

func (l *loop) setLocker(f distlock.Factory, ttl time.Duration) {
	l.locks = f
	if ttl > 0 {
		l.lockTTL = ttl
	}
}

func (l *loop) start() error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return fmt.Errorf("%s already running", l.name)
	}
	if l.interval <= 0 {
		l.mu.Unlock()
		return fmt.Errorf("%s: interval must be positive", l.name)
	}
	l.running = true
	l.ctx, l.cancel = context.WithCancel(context.Background())
	l.mu.Unlock()

	logger.Info("worker starting", "worker", l.name, "interval", l.interval.String(), "host", hostname())

	l.wg.Add(1)
	go l.run()
	return nil
}

func (l *loop) stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	l.mu.Unlock()

	l.cancel()
	l.wg.Wait()
	logger.Info("worker stopped", "worker", l.name,
		"ticks", l.ticks.Load(), "skipped", l.skipped.Load(), "failures", l.failures.Load())
}

func (l *loop) isRunning() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.running
}

func (l *loop) stats() Stats {
	return Stats{
		Running:  l.isRunning(),
		Ticks:    l.ticks.Load(),
		Skipped:  l.skipped.Load(),
		Failures: l.failures.Load(),
	}
}

func (l *loop) run() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.ctx.Done():
			return
		case <-ticker.C:
			err := l.once(l.ctx, l.fn)
			if err != nil && !errors.Is(err, ErrTickSkipped) && l.ctx.Err() == nil {
				logger.Error("worker tick failed", "worker", l.name, "error", err)
			}
		}
	}
}

// once runs fn as a single guarded tick.
func (l *loop) once(ctx context.Context, fn func(ctx context.Context) error) error {
	if !l.inFlight.CompareAndSwap(false, true) {
		l.skipped.Add(1)
		logger.Debug("tick still running, skipping", "worker", l.name)
		return ErrTickSkipped
	}
	defer l.inFlight.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if l.locks != nil {
		lock := l.locks("sendguard:worker:"+l.name, l.lockTTL)
		acquired, err := lock.Acquire(ctx)
		if err != nil {
			l.failures.Add(1)
			return fmt.Errorf("acquire %s lock: %w", l.name, err)
		}
		if !acquired {
			l.skipped.Add(1)
			logger.Debug("tick lock held elsewhere, skipping", "worker", l.name)
			return ErrTickSkipped
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("release tick lock failed", "worker", l.name, "error", err)
			}
		}()
		if ext, ok := lock.(distlock.Extender); ok {
			stop := l.heartbeat(ctx, cancel, ext)
			defer stop()
		}
	}

	l.ticks.Add(1)
	if err := fn(ctx); err != nil {
		l.failures.Add(1)
		return err
	}
	return nil
}

// heartbeat refreshes the tick lock every third of its TTL until stop is
// called. Losing the lock cancels the tick so no other replica overlaps it.
func (l *loop) heartbeat(ctx context.Context, cancel context.CancelFunc, ext distlock.Extender) (stop func()) {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(l.lockTTL / 3)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				if err := ext.Extend(ctx, l.lockTTL); err != nil {
					logger.Error("tick lock lost, cancelling tick", "worker", l.name, "error", err)
					cancel()
					return
				}
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "sendguard-worker"
	}
	return h
}
