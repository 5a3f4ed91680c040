package audit_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ignite/sendguard/internal/domain"
	"github.com/ignite/sendguard/internal/service/audit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
	err     error
	block   chan struct{}
}

func (c *captureSink) Append(_ context.Context, e domain.AuditEntry) error {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.entries = append(c.entries, e)
	return nil
}

func (c *captureSink) ListAudit(_ context.Context, f audit.Filter) ([]domain.AuditEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.AuditEntry
	for _, e := range c.entries {
		if f.EntityID != "" && e.EntityID != f.EntityID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (c *captureSink) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func TestNewStampsEntry(t *testing.T) {
	e := audit.New(domain.EntityMailbox, "mb-1", domain.TriggerHealthMonitor, "pause", "exceeded 5 bounces in current window")
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.CreatedAt.IsZero())
	assert.Equal(t, domain.EntityMailbox, e.EntityType)
	assert.Equal(t, "pause", e.Action)
}

func TestSyncTrailWritesImmediately(t *testing.T) {
	sink := &captureSink{}
	tr := audit.NewTrail(sink, 0)

	tr.Record(context.Background(), domain.AuditEntry{EntityType: domain.EntityLead, EntityID: "l-1", Action: "activated"})

	require.Equal(t, 1, sink.len())
	assert.NotEmpty(t, sink.entries[0].ID)
	assert.False(t, sink.entries[0].CreatedAt.IsZero())
}

func TestSyncTrailIgnoresCancelledContext(t *testing.T) {
	sink := &captureSink{}
	tr := audit.NewTrail(sink, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tr.Record(ctx, audit.New(domain.EntityLead, "l-1", domain.TriggerGate, "denied", "campaign not found"))

	assert.Equal(t, 1, sink.len())
}

func TestAsyncTrailFlushesOnClose(t *testing.T) {
	sink := &captureSink{}
	tr := audit.NewTrail(sink, 16)
	tr.Start()

	for i := 0; i < 10; i++ {
		tr.Record(context.Background(), audit.New(domain.EntityMailbox, "mb-1", domain.TriggerHealthMonitor, "sent", ""))
	}
	tr.Close()

	assert.Equal(t, 10, sink.len())
}

func TestAsyncTrailDropsWhenFull(t *testing.T) {
	sink := &captureSink{}
	tr := audit.NewTrail(sink, 1)

	// Not started: the first entry fills the queue, the rest are dropped.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			tr.Record(context.Background(), audit.New(domain.EntityMailbox, "mb-1", domain.TriggerHealthMonitor, "bounce", ""))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Record blocked on a full queue")
	}

	tr.Close()
	assert.Equal(t, 1, sink.len())
}

func TestAsyncTrailDoesNotBlockOnSlowSink(t *testing.T) {
	sink := &captureSink{block: make(chan struct{})}
	tr := audit.NewTrail(sink, 4)
	tr.Start()

	start := time.Now()
	for i := 0; i < 20; i++ {
		tr.Record(context.Background(), audit.New(domain.EntityDomain, "d-1", domain.TriggerEscalation, "cascade", ""))
	}
	assert.Less(t, time.Since(start), time.Second)

	close(sink.block)
	tr.Close()
	assert.LessOrEqual(t, sink.len(), 5)
	assert.GreaterOrEqual(t, sink.len(), 1)
}

func TestRecordAfterCloseIsDropped(t *testing.T) {
	sink := &captureSink{}
	tr := audit.NewTrail(sink, 4)
	tr.Start()
	tr.Close()
	tr.Close()

	tr.Record(context.Background(), audit.New(domain.EntityLead, "l-1", domain.TriggerProcessor, "activated", ""))
	assert.Equal(t, 0, sink.len())
}

func TestSinkErrorIsSwallowed(t *testing.T) {
	sink := &captureSink{err: errors.New("db down")}
	tr := audit.NewTrail(sink, 0)

	assert.NotPanics(t, func() {
		tr.Record(context.Background(), audit.New(domain.EntityLead, "l-1", domain.TriggerProcessor, "activated", ""))
	})
}

func TestMultiSink(t *testing.T) {
	ok := &captureSink{}
	failing := &captureSink{err: errors.New("throttled")}
	m := audit.MultiSink{failing, ok}

	err := m.Append(context.Background(), audit.New(domain.EntityCampaign, "c-1", domain.TriggerOperator, "status", "paused"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
	assert.Equal(t, 1, ok.len())

	entries, err := m.ListAudit(context.Background(), audit.Filter{EntityID: "c-1"})
	require.NoError(t, err)
	assert.Len(t, entries, 0, "first queryable sink is the failing one")
}

func TestQuery(t *testing.T) {
	sink := &captureSink{}
	tr := audit.NewTrail(sink, 0)
	tr.Record(context.Background(), audit.New(domain.EntityMailbox, "mb-1", domain.TriggerHealthMonitor, "pause", ""))
	tr.Record(context.Background(), audit.New(domain.EntityMailbox, "mb-2", domain.TriggerHealthMonitor, "pause", ""))

	entries, err := tr.Query(context.Background(), audit.Filter{EntityID: " mb-1 "})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "mb-1", entries[0].EntityID)

	_, err = tr.Query(context.Background(), audit.Filter{Limit: 5000})
	assert.ErrorIs(t, err, audit.ErrValidation)
}
