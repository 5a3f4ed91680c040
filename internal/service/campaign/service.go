package campaign

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/sendguard/internal/domain"
	"github.com/ignite/sendguard/internal/pkg/logger"
	"github.com/ignite/sendguard/internal/service/audit"
)

// Service implements campaign business logic. All public methods are safe
// for concurrent use if the underlying repository is concurrency-safe.
type Service struct {
	repo  Repository
	audit audit.Recorder
}

// NewService creates a campaign service backed by the given repository.
func NewService(repo Repository, rec audit.Recorder) *Service {
	if rec == nil {
		rec = audit.Nop{}
	}
	return &Service{repo: repo, audit: rec}
}

// Get returns a single campaign.
func (s *Service) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	return s.repo.GetCampaign(ctx, id)
}

// List returns campaigns matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.Campaign, int, error) {
	return s.repo.ListCampaigns(ctx, f)
}

// Create validates and persists a new campaign. Status defaults to active.
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.Campaign, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	status := input.Status
	if status == "" {
		status = domain.CampaignActive
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}

	id := strings.TrimSpace(input.ID)
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()
	c := &domain.Campaign{
		ID:        id,
		Name:      name,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateCampaign(ctx, c); err != nil {
		return nil, err
	}
	if len(input.MailboxIDs) > 0 {
		if err := s.repo.LinkMailboxes(ctx, c.ID, input.MailboxIDs); err != nil {
			return nil, fmt.Errorf("link mailboxes: %w", err)
		}
		c.MailboxIDs = append([]string(nil), input.MailboxIDs...)
	}
	s.audit.Record(ctx, audit.New(domain.EntityCampaign, c.ID, domain.TriggerOperator, "created", name))
	return c, nil
}

// UpdateStatus moves a campaign between active and paused, or completes it.
// Completed campaigns cannot be reopened.
func (s *Service) UpdateStatus(ctx context.Context, id string, status domain.CampaignStatus) (*domain.Campaign, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	c, err := s.repo.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status == status {
		return c, nil
	}
	if c.IsTerminal() {
		return nil, ErrInvalidTransition
	}
	if err := s.repo.UpdateCampaignStatus(ctx, id, status); err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	from := c.Status
	c.Status = status
	logger.Info("campaign status changed", "campaign_id", id, "from", from, "to", status)
	s.audit.Record(ctx, audit.New(domain.EntityCampaign, id, domain.TriggerOperator, "status", fmt.Sprintf("%s->%s", from, status)))
	return c, nil
}

// LinkMailboxes attaches mailboxes to the campaign's sending pool.
func (s *Service) LinkMailboxes(ctx context.Context, id string, mailboxIDs []string) (*domain.Campaign, error) {
	ids := make([]string, 0, len(mailboxIDs))
	for _, m := range mailboxIDs {
		if m = strings.TrimSpace(m); m != "" {
			ids = append(ids, m)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: mailbox_ids is required", ErrValidation)
	}
	if err := s.repo.LinkMailboxes(ctx, id, ids); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.New(domain.EntityCampaign, id, domain.TriggerOperator, "link_mailboxes", strings.Join(ids, ",")))
	return s.repo.GetCampaign(ctx, id)
}

// CreateInput holds the fields for creating a new campaign.
type CreateInput struct {
	ID         string                `json:"id"`
	Name       string                `json:"name"`
	Status     domain.CampaignStatus `json:"status"`
	MailboxIDs []string              `json:"mailbox_ids"`
}
