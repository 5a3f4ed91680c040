package memory

import (
	"context"
	"sort"

	"github.com/ignite/sendguard/internal/domain"
	"github.com/ignite/sendguard/internal/service/campaign"
)

// cloneCampaign copies c and fills MailboxIDs from the link table. Caller holds mu.
func (s *Store) cloneCampaign(c *domain.Campaign) *domain.Campaign {
	cp := *c
	cp.MailboxIDs = make([]string, 0, len(s.links[c.ID]))
	for id := range s.links[c.ID] {
		cp.MailboxIDs = append(cp.MailboxIDs, id)
	}
	sort.Strings(cp.MailboxIDs)
	return &cp
}

func (s *Store) GetCampaign(_ context.Context, id string) (*domain.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.campaigns[id]
	if !ok {
		return nil, campaign.ErrNotFound
	}
	return s.cloneCampaign(c), nil
}

func (s *Store) ListCampaigns(_ context.Context, f campaign.ListFilter) ([]domain.Campaign, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Campaign
	for _, c := range s.campaigns {
		if f.Status != "" && string(c.Status) != f.Status {
			continue
		}
		out = append(out, *s.cloneCampaign(c))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	total := len(out)
	if f.Offset >= len(out) {
		return nil, total, nil
	}
	end := f.Offset + f.Limit
	if end > len(out) || f.Limit <= 0 {
		end = len(out)
	}
	return out[f.Offset:end], total, nil
}

func (s *Store) CreateCampaign(_ context.Context, c *domain.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.campaigns[c.ID]; ok {
		return campaign.ErrConflict
	}
	cp := *c
	cp.MailboxIDs = nil
	s.campaigns[c.ID] = &cp
	return nil
}

func (s *Store) UpdateCampaignStatus(_ context.Context, id string, status domain.CampaignStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return campaign.ErrNotFound
	}
	c.Status = status
	return nil
}

func (s *Store) LinkMailboxes(_ context.Context, campaignID string, mailboxIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.campaigns[campaignID]; !ok {
		return campaign.ErrNotFound
	}
	for _, id := range mailboxIDs {
		if _, ok := s.mailboxes[id]; !ok {
			return campaign.ErrNotFound
		}
	}
	set, ok := s.links[campaignID]
	if !ok {
		set = make(map[string]struct{})
		s.links[campaignID] = set
	}
	for _, id := range mailboxIDs {
		set[id] = struct{}{}
	}
	return nil
}
