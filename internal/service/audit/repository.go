package audit

import (
	"context"

	"github.com/ignite/sendguard/internal/domain"
)

// Sink persists audit entries. Implementations must be safe for concurrent use.
type Sink interface {
	Append(ctx context.Context, e domain.AuditEntry) error
}

// Reader lists persisted entries, newest first.
type Reader interface {
	ListAudit(ctx context.Context, f Filter) ([]domain.AuditEntry, error)
}

// Filter narrows an audit listing. Empty fields match everything.
type Filter struct {
	EntityType domain.AuditEntity
	EntityID   string
	Limit      int
}

// Recorder is what services depend on to emit entries.
type Recorder interface {
	Record(ctx context.Context, e domain.AuditEntry)
}

// Nop discards every entry.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(context.Context, domain.AuditEntry) {}
