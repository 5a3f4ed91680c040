package recovery

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/sendguard/internal/domain"
	"github.com/ignite/sendguard/internal/pkg/logger"
	"github.com/ignite/sendguard/internal/service/audit"
)

// TickResult summarises one scheduler pass.
type TickResult struct {
	Evaluated int
	Advanced  int
	Skipped   int
}

// Service advances every non-healthy entity at most one phase per Tick.
type Service struct {
	repo       Repository
	dns        DNSChecker
	audit      audit.Recorder
	machine    Machine
	dnsTimeout time.Duration
	now        func() time.Time
}

// NewService creates a recovery scheduler.
func NewService(repo Repository, dns DNSChecker, rec audit.Recorder, policy Policy) *Service {
	if rec == nil {
		rec = audit.Nop{}
	}
	return &Service{
		repo:       repo,
		dns:        dns,
		audit:      rec,
		machine:    Machine{Policy: policy},
		dnsTimeout: 10 * time.Second,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// SetDNSTimeout bounds each DNS validation.
func (s *Service) SetDNSTimeout(d time.Duration) {
	if d > 0 {
		s.dnsTimeout = d
	}
}

// Policy returns the policy in effect.
func (s *Service) Policy() Policy { return s.machine.Policy }

// Tick evaluates domains first so that mailboxes see their domain's new phase.
func (s *Service) Tick(ctx context.Context) (TickResult, error) {
	var res TickResult
	now := s.now()
	dnsCache := make(map[string]bool)

	domains, err := s.repo.ListRecoveringDomains(ctx)
	if err != nil {
		return res, fmt.Errorf("list recovering domains: %w", err)
	}
	for i := range domains {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		d := &domains[i]
		res.Evaluated++
		if s.advanceDomain(ctx, d, now, dnsCache) {
			res.Advanced++
		} else {
			res.Skipped++
		}
	}

	mailboxes, err := s.repo.ListRecoveringMailboxes(ctx)
	if err != nil {
		return res, fmt.Errorf("list recovering mailboxes: %w", err)
	}
	parents := make(map[string]*domain.SendingDomain)
	for i := range mailboxes {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		m := &mailboxes[i]
		res.Evaluated++

		parent, ok := parents[m.DomainID]
		if !ok {
			parent, err = s.repo.GetDomain(ctx, m.DomainID)
			if err != nil {
				logger.Warn("recovery: domain lookup failed", "mailbox_id", m.ID, "domain_id", m.DomainID, "error", err)
				res.Skipped++
				continue
			}
			parents[m.DomainID] = parent
		}
		if s.advanceMailbox(ctx, m, parent, now, dnsCache) {
			res.Advanced++
		} else {
			res.Skipped++
		}
	}

	if res.Advanced > 0 {
		logger.Info("recovery tick", "evaluated", res.Evaluated, "advanced", res.Advanced)
	}
	return res, nil
}

func (s *Service) advanceDomain(ctx context.Context, d *domain.SendingDomain, now time.Time, cache map[string]bool) bool {
	dec := s.machine.Next(d.Recovery, Facts{
		LastBounceAt: d.LastBounceAt,
		ValidateDNS:  s.validator(ctx, d.Name, cache),
	}, now)
	if !dec.Advance {
		if d.Recovery.Phase == domain.PhaseQuarantine {
			logger.Debug("recovery: domain held", "domain", d.Name, "reason", dec.Reason)
		}
		return false
	}

	s.machine.Policy.Advance(&d.Recovery, dec.To, now)
	d.Status = DomainStatusFor(dec.To)
	if dec.To == domain.PhaseHealthy {
		d.PausedReason = ""
	}
	d.UpdatedAt = now
	if err := s.repo.SaveDomain(ctx, d); err != nil {
		logger.Warn("recovery: domain save skipped", "domain_id", d.ID, "error", err)
		return false
	}
	s.audit.Record(ctx, audit.New(domain.EntityDomain, d.ID, domain.TriggerRecovery, dec.Action(), d.Name))
	return true
}

func (s *Service) advanceMailbox(ctx context.Context, m *domain.Mailbox, parent *domain.SendingDomain, now time.Time, cache map[string]bool) bool {
	dec := s.machine.Next(m.Recovery, Facts{
		LastBounceAt: m.LastBounceAt,
		ParentPaused: parent.Status == domain.DomainPaused,
		ValidateDNS:  s.validator(ctx, parent.Name, cache),
	}, now)
	if !dec.Advance {
		if m.Recovery.Phase == domain.PhaseQuarantine {
			logger.Debug("recovery: mailbox held", "mailbox_id", m.ID, "reason", dec.Reason)
		}
		return false
	}

	s.machine.Policy.Advance(&m.Recovery, dec.To, now)
	m.Status = MailboxStatusFor(dec.To)
	if dec.To.IsRecovering() {
		m.ResetWindow(now)
	}
	if dec.To == domain.PhaseHealthy {
		m.PausedReason = ""
	}
	m.UpdatedAt = now
	if err := s.repo.SaveMailbox(ctx, m); err != nil {
		logger.Warn("recovery: mailbox save skipped", "mailbox_id", m.ID, "error", err)
		return false
	}
	s.audit.Record(ctx, audit.New(domain.EntityMailbox, m.ID, domain.TriggerRecovery, dec.Action(), m.Email))
	return true
}

// validator returns a memoised DNS check for name, valid for one tick.
func (s *Service) validator(ctx context.Context, name string, cache map[string]bool) func() (bool, error) {
	if s.dns == nil {
		return nil
	}
	return func() (bool, error) {
		if ok, seen := cache[name]; seen {
			return ok, nil
		}
		cctx, cancel := context.WithTimeout(ctx, s.dnsTimeout)
		defer cancel()
		ok, err := s.dns.Validate(cctx, name)
		if err != nil {
			logger.Warn("recovery: dns validation error", "domain", name, "error", err)
			return false, err
		}
		cache[name] = ok
		return ok, nil
	}
}
