package campaign

import (
	"context"

	"github.com/ignite/sendguard/internal/domain"
)

// Repository defines the data access contract for campaigns.
// Implementations must be safe for concurrent use.
type Repository interface {
	// GetCampaign returns a single campaign with its linked mailbox ids.
	// Returns ErrNotFound if it doesn't exist.
	GetCampaign(ctx context.Context, id string) (*domain.Campaign, error)

	// ListCampaigns returns campaigns matching the given filter, ordered by created_at DESC.
	ListCampaigns(ctx context.Context, filter ListFilter) ([]domain.Campaign, int, error)

	// CreateCampaign inserts a new campaign. Returns ErrConflict on a duplicate id.
	CreateCampaign(ctx context.Context, c *domain.Campaign) error

	// UpdateCampaignStatus sets a campaign's status.
	UpdateCampaignStatus(ctx context.Context, id string, status domain.CampaignStatus) error

	// LinkMailboxes associates mailboxes with a campaign. Existing links are
	// kept. Returns ErrNotFound if the campaign or any mailbox is missing.
	LinkMailboxes(ctx context.Context, campaignID string, mailboxIDs []string) error
}

// ListFilter controls pagination and filtering for campaign lists.
type ListFilter struct {
	Status string
	Limit  int
	Offset int
}
