package recovery

import (
	"context"

	"github.com/ignite/sendguard/internal/domain"
)

// Repository is the slice of the health store the scheduler needs. Save
// methods compare-and-swap on Version and fail when another writer won.
type Repository interface {
	ListRecoveringMailboxes(ctx context.Context) ([]domain.Mailbox, error)
	ListRecoveringDomains(ctx context.Context) ([]domain.SendingDomain, error)
	GetDomain(ctx context.Context, id string) (*domain.SendingDomain, error)
	SaveMailbox(ctx context.Context, m *domain.Mailbox) error
	SaveDomain(ctx context.Context, d *domain.SendingDomain) error
}

// DNSChecker re-validates a domain's sending authentication records.
type DNSChecker interface {
	Validate(ctx context.Context, domainName string) (bool, error)
}
