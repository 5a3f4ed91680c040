package lead

import (
	"context"
	"time"

	"github.com/ignite/sendguard/internal/domain"
)

// Repository defines the data access contract for leads.
type Repository interface {
	CreateLead(ctx context.Context, l *domain.Lead) error

	// GetLead returns ErrNotFound if the lead doesn't exist.
	GetLead(ctx context.Context, id string) (*domain.Lead, error)

	// ListReadyLeads returns up to limit held leads that have a campaign and
	// a healthy health_state. Leads never denied by the gate come first, then
	// the least recently denied; ties go oldest first.
	ListReadyLeads(ctx context.Context, limit int) ([]domain.Lead, error)

	// DeferLead stamps a held lead's gate_checked_at so it moves behind
	// leads that have not been tried since.
	DeferLead(ctx context.Context, id string, at time.Time) error

	// ActivateLead moves a held lead to active. It returns false when the
	// lead was no longer held.
	ActivateLead(ctx context.Context, id string, at time.Time) (bool, error)
}

// Router picks the campaign for a lead.
type Router interface {
	Resolve(ctx context.Context, l domain.Lead) (string, bool, error)
}
