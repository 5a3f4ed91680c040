// Package dedupe suppresses duplicate webhook deliveries by event id.
//
// Sending platforms retry webhooks on timeouts, so the same "sent" or
// "bounce" event can arrive twice. Counting it twice would trip thresholds
// early; the first delivery claims the id and later ones are skipped.
package dedupe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long an event id is remembered.
const DefaultTTL = 24 * time.Hour

// Deduper claims event ids. Claim returns true for the first caller only.
type Deduper interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	// Forget releases a claim so a failed event can be redelivered.
	Forget(ctx context.Context, eventID string) error
}

// RedisDeduper stores claimed ids as SET NX keys with a TTL.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper creates a Redis-backed deduper. ttl <= 0 uses DefaultTTL.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisDeduper{client: client, ttl: ttl}
}

func (d *RedisDeduper) key(eventID string) string {
	return "sendguard:event:" + eventID
}

// Claim marks eventID as seen.
func (d *RedisDeduper) Claim(ctx context.Context, eventID string) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.key(eventID), 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim event %s: %w", eventID, err)
	}
	return ok, nil
}

// Forget deletes the claim for eventID.
func (d *RedisDeduper) Forget(ctx context.Context, eventID string) error {
	return d.client.Del(ctx, d.key(eventID)).Err()
}

// MemoryDeduper is a process-local Deduper for single-instance deployments
// running without Redis.
type MemoryDeduper struct {
	mu        sync.Mutex
	ttl       time.Duration
	seen      map[string]time.Time
	now       func() time.Time
	nextSweep time.Time
}

// sweepEvery bounds how often Claim walks the whole map for expired ids.
const sweepEvery = time.Minute

// NewMemoryDeduper creates an in-process deduper.
func NewMemoryDeduper(ttl time.Duration) *MemoryDeduper {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryDeduper{ttl: ttl, seen: make(map[string]time.Time), now: time.Now}
}

// Claim marks eventID as seen. Expired ids are swept at most once per
// sweepEvery; an expired id is claimable again even before the sweep.
func (d *MemoryDeduper) Claim(_ context.Context, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	if !now.Before(d.nextSweep) {
		d.sweep(now)
		d.nextSweep = now.Add(sweepEvery)
	}
	if exp, ok := d.seen[eventID]; ok && !now.After(exp) {
		return false, nil
	}
	d.seen[eventID] = now.Add(d.ttl)
	return true, nil
}

func (d *MemoryDeduper) sweep(now time.Time) {
	for id, exp := range d.seen {
		if now.After(exp) {
			delete(d.seen, id)
		}
	}
}

// Forget removes the claim for eventID.
func (d *MemoryDeduper) Forget(_ context.Context, eventID string) error {
	d.mu.Lock()
	delete(d.seen, eventID)
	d.mu.Unlock()
	return nil
}
