package memory

import (
	"context"
	"sort"
	"time"

	"github.com/ignite/sendguard/internal/domain"
	"github.com/ignite/sendguard/internal/service/lead"
)

func cloneLead(l *domain.Lead) *domain.Lead {
	cp := *l
	cp.AssignedCampaignID = clonePtr(l.AssignedCampaignID)
	cp.ActivatedAt = clonePtr(l.ActivatedAt)
	cp.GateCheckedAt = clonePtr(l.GateCheckedAt)
	return &cp
}

func (s *Store) CreateLead(_ context.Context, l *domain.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leads[l.ID] = cloneLead(l)
	return nil
}

func (s *Store) GetLead(_ context.Context, id string) (*domain.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.leads[id]
	if !ok {
		return nil, lead.ErrNotFound
	}
	return cloneLead(l), nil
}

func (s *Store) ListReadyLeads(_ context.Context, limit int) ([]domain.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Lead
	for _, l := range s.leads {
		if l.Status == domain.LeadHeld && l.AssignedCampaignID != nil && l.HealthState == domain.HealthStateHealthy {
			out = append(out, *cloneLead(l))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ci, cj := out[i].GateCheckedAt, out[j].GateCheckedAt
		switch {
		case ci == nil && cj != nil:
			return true
		case ci != nil && cj == nil:
			return false
		case ci != nil && !ci.Equal(*cj):
			return ci.Before(*cj)
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ActivateLead(_ context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leads[id]
	if !ok {
		return false, lead.ErrNotFound
	}
	if l.Status != domain.LeadHeld {
		return false, nil
	}
	l.Status = domain.LeadActive
	l.ActivatedAt = &at
	l.UpdatedAt = at
	return true, nil
}

func (s *Store) DeferLead(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leads[id]
	if !ok {
		return lead.ErrNotFound
	}
	if l.Status == domain.LeadHeld {
		l.GateCheckedAt = &at
	}
	return nil
}
