package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/sendguard/internal/domain"
	"github.com/ignite/sendguard/internal/pkg/logger"
)

const (
	appendTimeout = 5 * time.Second
	defaultLimit  = 100
	maxLimit      = 1000
)

// New builds an entry stamped with a fresh id and the current time.
func New(entity domain.AuditEntity, entityID, trigger, action, details string) domain.AuditEntry {
	return domain.AuditEntry{
		ID:         uuid.New().String(),
		EntityType: entity,
		EntityID:   entityID,
		Trigger:    trigger,
		Action:     action,
		Details:    details,
		CreatedAt:  time.Now().UTC(),
	}
}

// Trail is the fire-and-forget Recorder. With a positive buffer size entries
// go through a bounded queue drained by one goroutine; a full queue drops the
// entry with a warning. With a zero buffer each Record writes synchronously.
type Trail struct {
	sink  Sink
	queue chan domain.AuditEntry

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

// NewTrail creates a trail writing to sink.
func NewTrail(sink Sink, bufferSize int) *Trail {
	t := &Trail{sink: sink}
	if bufferSize > 0 {
		t.queue = make(chan domain.AuditEntry, bufferSize)
	}
	return t
}

// Start launches the drain goroutine. It is a no-op for synchronous trails
// and on repeated calls.
func (t *Trail) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.queue == nil || t.started || t.closed {
		return
	}
	t.started = true
	t.wg.Add(1)
	go t.drain()
}

// Close stops accepting entries and flushes what is queued.
func (t *Trail) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	if t.queue != nil {
		close(t.queue)
	}
	started := t.started
	t.mu.Unlock()

	if started {
		t.wg.Wait()
		return
	}
	// Never started: flush inline so nothing queued is lost.
	if t.queue != nil {
		for e := range t.queue {
			t.write(e)
		}
	}
}

// Record implements Recorder. It never blocks on the sink when buffered.
func (t *Trail) Record(ctx context.Context, e domain.AuditEntry) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	if t.queue == nil {
		t.writeCtx(context.WithoutCancel(ctx), e)
		return
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		logger.Warn("audit entry dropped after close", "entity_type", e.EntityType, "entity_id", e.EntityID, "action", e.Action)
		return
	}
	select {
	case t.queue <- e:
	default:
		logger.Warn("audit queue full, entry dropped", "entity_type", e.EntityType, "entity_id", e.EntityID, "action", e.Action)
	}
}

// Query returns persisted entries when the sink can be read.
func (t *Trail) Query(ctx context.Context, f Filter) ([]domain.AuditEntry, error) {
	r, ok := t.sink.(Reader)
	if !ok {
		return nil, errors.New("audit sink is not queryable")
	}
	if f.Limit < 0 || f.Limit > maxLimit {
		return nil, fmt.Errorf("%w: limit must be between 0 and %d", ErrValidation, maxLimit)
	}
	if f.Limit == 0 {
		f.Limit = defaultLimit
	}
	f.EntityType = domain.AuditEntity(strings.TrimSpace(string(f.EntityType)))
	f.EntityID = strings.TrimSpace(f.EntityID)
	return r.ListAudit(ctx, f)
}

func (t *Trail) drain() {
	defer t.wg.Done()
	for e := range t.queue {
		t.write(e)
	}
}

func (t *Trail) write(e domain.AuditEntry) {
	t.writeCtx(context.Background(), e)
}

func (t *Trail) writeCtx(ctx context.Context, e domain.AuditEntry) {
	ctx, cancel := context.WithTimeout(ctx, appendTimeout)
	defer cancel()
	if err := t.sink.Append(ctx, e); err != nil {
		logger.Error("audit append failed", "entity_type", e.EntityType, "entity_id", e.EntityID, "action", e.Action, "error", err)
	}
}

// MultiSink fans an entry out to every sink. Each sink is attempted; the
// errors are joined.
type MultiSink []Sink

// Append implements Sink.
func (m MultiSink) Append(ctx context.Context, e domain.AuditEntry) error {
	var errs []error
	for _, s := range m {
		if err := s.Append(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ListAudit reads from the first sink that supports it.
func (m MultiSink) ListAudit(ctx context.Context, f Filter) ([]domain.AuditEntry, error) {
	for _, s := range m {
		if r, ok := s.(Reader); ok {
			return r.ListAudit(ctx, f)
		}
	}
	return nil, errors.New("no queryable audit sink")
}
