package routing

import (
	"context"

	"github.com/ignite/sendguard/internal/domain"
)

// Repository defines the data access contract for routing rules.
type Repository interface {
	// ListRules returns every rule. Order is not significant.
	ListRules(ctx context.Context) ([]domain.RoutingRule, error)

	// CreateRule persists r and assigns r.Seq from a monotonic sequence.
	CreateRule(ctx context.Context, r *domain.RoutingRule) error

	// DeleteRule returns ErrNotFound if the rule doesn't exist.
	DeleteRule(ctx context.Context, id string) error
}
