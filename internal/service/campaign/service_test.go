package campaign_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/ignite/sendguard/internal/domain"
	"github.com/ignite/sendguard/internal/service/campaign"
)

// memRepo is an in-memory campaign repository for unit testing.
type memRepo struct {
	mu        sync.Mutex
	campaigns map[string]*domain.Campaign // keyed by id
	mailboxes map[string]bool
}

func newMemRepo(mailboxIDs ...string) *memRepo {
	r := &memRepo{campaigns: make(map[string]*domain.Campaign), mailboxes: make(map[string]bool)}
	for _, id := range mailboxIDs {
		r.mailboxes[id] = true
	}
	return r
}

func (m *memRepo) GetCampaign(_ context.Context, id string) (*domain.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, campaign.ErrNotFound
	}
	cp := *c
	cp.MailboxIDs = append([]string(nil), c.MailboxIDs...)
	return &cp, nil
}

func (m *memRepo) ListCampaigns(_ context.Context, f campaign.ListFilter) ([]domain.Campaign, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Campaign
	for _, c := range m.campaigns {
		if f.Status != "" && string(c.Status) != f.Status {
			continue
		}
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (m *memRepo) CreateCampaign(_ context.Context, c *domain.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.campaigns[c.ID]; ok {
		return campaign.ErrConflict
	}
	cp := *c
	m.campaigns[cp.ID] = &cp
	return nil
}

func (m *memRepo) UpdateCampaignStatus(_ context.Context, id string, status domain.CampaignStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return campaign.ErrNotFound
	}
	c.Status = status
	return nil
}

func (m *memRepo) LinkMailboxes(_ context.Context, id string, mailboxIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return campaign.ErrNotFound
	}
	for _, mb := range mailboxIDs {
		if !m.mailboxes[mb] {
			return campaign.ErrNotFound
		}
	}
	seen := make(map[string]bool)
	for _, mb := range c.MailboxIDs {
		seen[mb] = true
	}
	for _, mb := range mailboxIDs {
		if !seen[mb] {
			c.MailboxIDs = append(c.MailboxIDs, mb)
			seen[mb] = true
		}
	}
	sort.Strings(c.MailboxIDs)
	return nil
}

func TestCreate(t *testing.T) {
	svc := campaign.NewService(newMemRepo(), nil)
	c, err := svc.Create(context.Background(), campaign.CreateInput{ID: "A", Name: "Executives"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.Status != domain.CampaignActive {
		t.Fatalf("expected active, got %s", c.Status)
	}
	if c.ID != "A" {
		t.Fatalf("expected id A, got %s", c.ID)
	}
}

func TestCreateGeneratesID(t *testing.T) {
	svc := campaign.NewService(newMemRepo(), nil)
	c, err := svc.Create(context.Background(), campaign.CreateInput{Name: "Interns", Status: domain.CampaignPaused})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.ID == "" || c.Status != domain.CampaignPaused {
		t.Fatalf("unexpected campaign %+v", c)
	}
}

func TestCreateValidation(t *testing.T) {
	svc := campaign.NewService(newMemRepo(), nil)
	if _, err := svc.Create(context.Background(), campaign.CreateInput{}); !errors.Is(err, campaign.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.Create(context.Background(), campaign.CreateInput{Name: "X", Status: "draft"}); !errors.Is(err, campaign.ErrValidation) {
		t.Fatalf("expected validation error for unknown status, got %v", err)
	}
}

func TestCreateDuplicate(t *testing.T) {
	svc := campaign.NewService(newMemRepo(), nil)
	svc.Create(context.Background(), campaign.CreateInput{ID: "A", Name: "One"})
	if _, err := svc.Create(context.Background(), campaign.CreateInput{ID: "A", Name: "Two"}); !errors.Is(err, campaign.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestGetNotFound(t *testing.T) {
	svc := campaign.NewService(newMemRepo(), nil)
	_, err := svc.Get(context.Background(), "nonexistent")
	if err != campaign.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateStatus(t *testing.T) {
	svc := campaign.NewService(newMemRepo(), nil)
	c, _ := svc.Create(context.Background(), campaign.CreateInput{Name: "Camp"})

	got, err := svc.UpdateStatus(context.Background(), c.ID, domain.CampaignPaused)
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if got.Status != domain.CampaignPaused {
		t.Fatalf("expected paused, got %s", got.Status)
	}

	if _, err := svc.UpdateStatus(context.Background(), c.ID, domain.CampaignCompleted); err != nil {
		t.Fatalf("complete: %v", err)
	}
	_, err = svc.UpdateStatus(context.Background(), c.ID, domain.CampaignActive)
	if err != campaign.ErrInvalidTransition {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestLinkMailboxes(t *testing.T) {
	svc := campaign.NewService(newMemRepo("mb-1", "mb-2"), nil)
	c, _ := svc.Create(context.Background(), campaign.CreateInput{Name: "Camp", MailboxIDs: []string{"mb-1"}})

	got, err := svc.LinkMailboxes(context.Background(), c.ID, []string{"mb-2", " mb-1 ", ""})
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	if len(got.MailboxIDs) != 2 {
		t.Fatalf("expected 2 linked mailboxes, got %v", got.MailboxIDs)
	}

	if _, err := svc.LinkMailboxes(context.Background(), c.ID, []string{"mb-9"}); !errors.Is(err, campaign.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown mailbox, got %v", err)
	}
	if _, err := svc.LinkMailboxes(context.Background(), c.ID, nil); !errors.Is(err, campaign.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestListWithFilter(t *testing.T) {
	svc := campaign.NewService(newMemRepo(), nil)
	svc.Create(context.Background(), campaign.CreateInput{Name: "A"})
	svc.Create(context.Background(), campaign.CreateInput{Name: "B", Status: domain.CampaignPaused})

	list, total, err := svc.List(context.Background(), campaign.ListFilter{Status: "active", Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(list) != 1 {
		t.Fatalf("expected 1 campaign, got %d (total %d)", len(list), total)
	}
}
