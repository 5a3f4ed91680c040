package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ignite/sendguard/internal/pkg/distlock"
	"github.com/ignite/sendguard/internal/service/recovery"
	"github.com/redis/go-redis/v9"
)

func TestLoop_TicksNeverOverlap(t *testing.T) {
	var (
		active  atomic.Int32
		overlap atomic.Bool
		release = make(chan struct{})
		started = make(chan struct{}, 1)
	)
	l := newLoop("test", time.Hour, nil)
	fn := func(ctx context.Context) error {
		if active.Add(1) > 1 {
			overlap.Store(true)
		}
		defer active.Add(-1)
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := l.once(context.Background(), fn); err != nil {
			t.Errorf("first tick: %v", err)
		}
	}()
	<-started

	for i := 0; i < 5; i++ {
		if err := l.once(context.Background(), fn); !errors.Is(err, ErrTickSkipped) {
			t.Errorf("concurrent tick error = %v, want ErrTickSkipped", err)
		}
	}
	close(release)
	wg.Wait()

	if overlap.Load() {
		t.Error("ticks overlapped")
	}
	if got := l.skipped.Load(); got != 5 {
		t.Errorf("skipped = %d, want 5", got)
	}
	if err := l.once(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Errorf("tick after release: %v", err)
	}
}

func TestLoop_DistributedLockSkipsOtherReplica(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	factory := distlock.NewFactory(client, nil)
	held := factory("sendguard:worker:test", time.Minute)
	ok, err := held.Acquire(context.Background())
	if err != nil || !ok {
		t.Fatalf("Acquire() = %v, %v", ok, err)
	}

	l := newLoop("test", time.Hour, nil)
	l.setLocker(factory, time.Minute)

	var ran bool
	fn := func(context.Context) error { ran = true; return nil }
	if err := l.once(context.Background(), fn); !errors.Is(err, ErrTickSkipped) {
		t.Errorf("error = %v, want ErrTickSkipped", err)
	}
	if ran {
		t.Error("tick ran while another replica held the lock")
	}

	if err := held.Release(context.Background()); err != nil {
		t.Fatalf("Release() error: %v", err)
	}
	if err := l.once(context.Background(), fn); err != nil {
		t.Errorf("error = %v after release", err)
	}
	if !ran {
		t.Error("tick did not run after lock was released")
	}
}

func newLockedPair(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *loop, *loop) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	factory := distlock.NewFactory(client, nil)
	a := newLoop("processor", 10*time.Second, nil)
	a.setLocker(factory, ttl)
	b := newLoop("processor", 10*time.Second, nil)
	b.setLocker(factory, ttl)
	return mr, a, b
}

func TestLoop_LongTickKeepsLock(t *testing.T) {
	mr, a, b := newLockedPair(t, 300*time.Millisecond)

	started := make(chan struct{})
	release := make(chan struct{})
	errc := make(chan error, 1)
	go func() {
		errc <- a.once(context.Background(), func(ctx context.Context) error {
			close(started)
			select {
			case <-release:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()
	<-started

	// Let the lock's TTL elapse several times over while the tick runs.
	for i := 0; i < 4; i++ {
		time.Sleep(250 * time.Millisecond)
		mr.FastForward(200 * time.Millisecond)
	}

	var ran bool
	if err := b.once(context.Background(), func(context.Context) error { ran = true; return nil }); !errors.Is(err, ErrTickSkipped) {
		t.Errorf("other replica error = %v, want ErrTickSkipped", err)
	}
	if ran {
		t.Error("other replica ran while the long tick was in flight")
	}

	close(release)
	if err := <-errc; err != nil {
		t.Fatalf("long tick: %v", err)
	}
	if err := b.once(context.Background(), func(context.Context) error { ran = true; return nil }); err != nil || !ran {
		t.Errorf("other replica after release: ran=%v err=%v", ran, err)
	}
}

func TestLoop_LostLockCancelsTick(t *testing.T) {
	mr, a, _ := newLockedPair(t, 300*time.Millisecond)

	started := make(chan struct{})
	errc := make(chan error, 1)
	go func() {
		errc <- a.once(context.Background(), func(ctx context.Context) error {
			close(started)
			select {
			case <-time.After(5 * time.Second):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()
	<-started

	// Another replica takes the key over after an expiry.
	mr.Set("sendguard:lock:sendguard:worker:processor", "someone-else")

	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("tick error = %v, want context.Canceled", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("tick kept running after losing its lock")
	}
}

type countingTicker struct{ n atomic.Int32 }

func (c *countingTicker) Tick(context.Context) (recovery.TickResult, error) {
	c.n.Add(1)
	return recovery.TickResult{Evaluated: 1}, nil
}

func TestRecoveryWorker_RunsOnInterval(t *testing.T) {
	svc := &countingTicker{}
	w := NewRecoveryWorker(svc, 10*time.Millisecond)
	if err := w.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	deadline := time.After(2 * time.Second)
	for svc.n.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("recovery worker did not tick")
		case <-time.After(5 * time.Millisecond):
		}
	}
	w.Stop()
	if w.loop.isRunning() {
		t.Error("worker should not be running after Stop()")
	}

	res, err := w.Tick(context.Background())
	if err != nil || res.Evaluated != 1 {
		t.Errorf("Tick() = %+v, %v", res, err)
	}
}
