package health

import (
	"context"
	"time"

	"github.com/ignite/sendguard/internal/domain"
)

// Repository defines the data access contract for mailbox and domain health.
// Implementations must be safe for concurrent use.
type Repository interface {
	// GetMailbox returns ErrNotFound if the mailbox doesn't exist.
	GetMailbox(ctx context.Context, id string) (*domain.Mailbox, error)
	GetMailboxByEmail(ctx context.Context, email string) (*domain.Mailbox, error)

	// CreateMailbox returns ErrConflict if the email is already registered.
	CreateMailbox(ctx context.Context, m *domain.Mailbox) error

	// SaveMailbox writes m if the stored version still equals m.Version and
	// bumps m.Version. Returns ErrStaleWrite when another writer got there first.
	SaveMailbox(ctx context.Context, m *domain.Mailbox) error

	GetDomain(ctx context.Context, id string) (*domain.SendingDomain, error)
	GetDomainByName(ctx context.Context, name string) (*domain.SendingDomain, error)
	CreateDomain(ctx context.Context, d *domain.SendingDomain) error
	SaveDomain(ctx context.Context, d *domain.SendingDomain) error

	// CountUnhealthyMailboxes counts mailboxes on the domain whose status is
	// neither active nor warming.
	CountUnhealthyMailboxes(ctx context.Context, domainID string) (int, error)

	// PauseActiveMailboxes pauses every active mailbox on the domain in a
	// single statement and returns the ids it changed. Mailboxes that are
	// not active are untouched.
	PauseActiveMailboxes(ctx context.Context, domainID string, p CascadePause) ([]string, error)
}

// CascadePause carries what a batch pause writes onto each mailbox.
type CascadePause struct {
	Reason            string
	At                time.Time
	ResiliencePenalty float64
}
