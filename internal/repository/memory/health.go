package memory

import (
	"context"
	"sort"

	"github.com/ignite/sendguard/internal/domain"
	"github.com/ignite/sendguard/internal/service/health"
)

func cloneMailbox(m *domain.Mailbox) *domain.Mailbox {
	cp := *m
	cp.LastBounceAt = clonePtr(m.LastBounceAt)
	return &cp
}

func cloneDomain(d *domain.SendingDomain) *domain.SendingDomain {
	cp := *d
	cp.LastBounceAt = clonePtr(d.LastBounceAt)
	return &cp
}

func (s *Store) GetMailbox(_ context.Context, id string) (*domain.Mailbox, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.mailboxes[id]
	if !ok {
		return nil, health.ErrNotFound
	}
	return cloneMailbox(m), nil
}

func (s *Store) GetMailboxByEmail(ctx context.Context, email string) (*domain.Mailbox, error) {
	s.mu.RLock()
	id, ok := s.mailboxEmails[email]
	s.mu.RUnlock()
	if !ok {
		return nil, health.ErrNotFound
	}
	return s.GetMailbox(ctx, id)
}

func (s *Store) CreateMailbox(_ context.Context, m *domain.Mailbox) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.mailboxEmails[m.Email]; ok {
		return health.ErrConflict
	}
	if _, ok := s.domains[m.DomainID]; !ok {
		return health.ErrNotFound
	}
	s.mailboxes[m.ID] = cloneMailbox(m)
	s.mailboxEmails[m.Email] = m.ID
	return nil
}

func (s *Store) SaveMailbox(_ context.Context, m *domain.Mailbox) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.mailboxes[m.ID]
	if !ok {
		return health.ErrNotFound
	}
	if cur.Version != m.Version {
		return health.ErrStaleWrite
	}
	m.Version++
	s.mailboxes[m.ID] = cloneMailbox(m)
	return nil
}

func (s *Store) GetDomain(_ context.Context, id string) (*domain.SendingDomain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.domains[id]
	if !ok {
		return nil, health.ErrNotFound
	}
	return cloneDomain(d), nil
}

func (s *Store) GetDomainByName(ctx context.Context, name string) (*domain.SendingDomain, error) {
	s.mu.RLock()
	id, ok := s.domainNames[name]
	s.mu.RUnlock()
	if !ok {
		return nil, health.ErrNotFound
	}
	return s.GetDomain(ctx, id)
}

func (s *Store) CreateDomain(_ context.Context, d *domain.SendingDomain) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.domainNames[d.Name]; ok {
		return health.ErrConflict
	}
	s.domains[d.ID] = cloneDomain(d)
	s.domainNames[d.Name] = d.ID
	return nil
}

func (s *Store) SaveDomain(_ context.Context, d *domain.SendingDomain) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.domains[d.ID]
	if !ok {
		return health.ErrNotFound
	}
	if cur.Version != d.Version {
		return health.ErrStaleWrite
	}
	d.Version++
	s.domains[d.ID] = cloneDomain(d)
	return nil
}

func (s *Store) CountUnhealthyMailboxes(_ context.Context, domainID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, m := range s.mailboxes {
		if m.DomainID == domainID && !m.Status.IsHealthy() {
			n++
		}
	}
	return n, nil
}

// PauseActiveMailboxes applies the whole cascade under one lock, matching
// the single UPDATE the Postgres repository issues.
func (s *Store) PauseActiveMailboxes(_ context.Context, domainID string, p health.CascadePause) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, m := range s.mailboxes {
		if m.DomainID != domainID || m.Status != domain.MailboxActive {
			continue
		}
		m.Status = domain.MailboxPaused
		m.PausedReason = p.Reason
		m.Recovery.Phase = domain.PhasePaused
		m.Recovery.PhaseEnteredAt = p.At
		m.Recovery.CleanSendsSincePhase = 0
		m.Recovery.PhaseSent = 0
		m.Recovery.PhaseBounces = 0
		m.Recovery.ConsecutivePauses++
		m.Recovery.ResilienceScore = max(0, m.Recovery.ResilienceScore-p.ResiliencePenalty)
		m.Version++
		m.UpdatedAt = p.At
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) ListRecoveringMailboxes(context.Context) ([]domain.Mailbox, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Mailbox
	for _, m := range s.mailboxes {
		if m.Recovery.Phase != domain.PhaseHealthy {
			out = append(out, *cloneMailbox(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListRecoveringDomains(context.Context) ([]domain.SendingDomain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.SendingDomain
	for _, d := range s.domains {
		if d.Recovery.Phase != domain.PhaseHealthy {
			out = append(out, *cloneDomain(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// qualifying reports whether a mailbox can carry gated work. Caller holds mu.
func (s *Store) qualifying(m *domain.Mailbox) bool {
	if m.Status != domain.MailboxActive {
		return false
	}
	d, ok := s.domains[m.DomainID]
	return ok && d.Status == domain.DomainHealthy
}

func (s *Store) CountQualifyingMailboxes(_ context.Context, campaignID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for id := range s.links[campaignID] {
		if m, ok := s.mailboxes[id]; ok && s.qualifying(m) {
			n++
		}
	}
	return n, nil
}

func (s *Store) CountAllQualifyingMailboxes(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, m := range s.mailboxes {
		if s.qualifying(m) {
			n++
		}
	}
	return n, nil
}
