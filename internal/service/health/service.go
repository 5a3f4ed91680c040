package health

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/sendguard/internal/domain"
	"github.com/ignite/sendguard/internal/pkg/logger"
	"github.com/ignite/sendguard/internal/service/audit"
	"github.com/ignite/sendguard/internal/service/recovery"
)

const defaultMaxRetries = 8

// Service records delivery signals and applies the pause and escalation
// rules. All public methods are safe for concurrent use.
type Service struct {
	repo       Repository
	eval       Evaluator
	policy     recovery.Policy
	audit      audit.Recorder
	maxRetries int
	now        func() time.Time
}

// NewService creates a health service backed by the given repository.
func NewService(repo Repository, th Thresholds, policy recovery.Policy, rec audit.Recorder) *Service {
	if rec == nil {
		rec = audit.Nop{}
	}
	return &Service{
		repo:       repo,
		eval:       Evaluator{Thresholds: th},
		policy:     policy,
		audit:      rec,
		maxRetries: defaultMaxRetries,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetMaxRetries bounds compare-and-swap attempts per event.
func (s *Service) SetMaxRetries(n int) {
	if n > 0 {
		s.maxRetries = n
	}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Policy returns the recovery policy used for pause bookkeeping.
func (s *Service) Policy() recovery.Policy { return s.policy }

// GetMailbox returns a single mailbox.
func (s *Service) GetMailbox(ctx context.Context, id string) (*domain.Mailbox, error) {
	return s.repo.GetMailbox(ctx, id)
}

// GetDomain returns a single sending domain.
func (s *Service) GetDomain(ctx context.Context, id string) (*domain.SendingDomain, error) {
	return s.repo.GetDomain(ctx, id)
}

// RegisterMailbox creates a mailbox for email, creating its domain from the
// address host when needed. Registering an existing email returns it unchanged.
func (s *Service) RegisterMailbox(ctx context.Context, email string) (*domain.Mailbox, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return nil, fmt.Errorf("%w: invalid email %q", ErrValidation, email)
	}
	_, host, _ := strings.Cut(email, "@")

	if existing, err := s.repo.GetMailboxByEmail(ctx, email); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("lookup mailbox: %w", err)
	}

	d, err := s.ensureDomain(ctx, host)
	if err != nil {
		return nil, err
	}

	now := s.now()
	m := &domain.Mailbox{
		ID:            uuid.New().String(),
		Email:         email,
		DomainID:      d.ID,
		Status:        domain.MailboxActive,
		WindowStartAt: now,
		Recovery:      domain.NewRecoveryState(now),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.CreateMailbox(ctx, m); err != nil {
		if errors.Is(err, ErrConflict) {
			return s.repo.GetMailboxByEmail(ctx, email)
		}
		return nil, fmt.Errorf("create mailbox: %w", err)
	}
	s.audit.Record(ctx, audit.New(domain.EntityMailbox, m.ID, domain.TriggerOperator, "registered", email))
	return m, nil
}

func (s *Service) ensureDomain(ctx context.Context, name string) (*domain.SendingDomain, error) {
	d, err := s.repo.GetDomainByName(ctx, name)
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("lookup domain: %w", err)
	}

	now := s.now()
	d = &domain.SendingDomain{
		ID:        uuid.New().String(),
		Name:      name,
		Status:    domain.DomainHealthy,
		Recovery:  domain.NewRecoveryState(now),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateDomain(ctx, d); err != nil {
		if errors.Is(err, ErrConflict) {
			return s.repo.GetDomainByName(ctx, name)
		}
		return nil, fmt.Errorf("create domain: %w", err)
	}
	s.audit.Record(ctx, audit.New(domain.EntityDomain, d.ID, domain.TriggerOperator, "registered", name))
	return d, nil
}

// RecordSent counts one delivered message for the mailbox.
func (s *Service) RecordSent(ctx context.Context, mailboxID, campaignID string) (*domain.Mailbox, error) {
	var saved *domain.Mailbox
	err := s.withRetry(ctx, func() error {
		m, err := s.repo.GetMailbox(ctx, mailboxID)
		if err != nil {
			return err
		}
		now := s.now()
		m.WindowSentCount++
		m.SentTotal++
		if s.eval.ShouldResetWindow(*m) {
			m.ResetWindow(now)
		}
		s.policy.RecordCleanSend(&m.Recovery)
		m.UpdatedAt = now
		if err := s.repo.SaveMailbox(ctx, m); err != nil {
			return err
		}
		saved = m
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("record sent %s: %w", mailboxID, err)
	}

	if err := s.recordDomainSend(ctx, saved.DomainID); err != nil {
		logger.Warn("domain clean send not recorded", "domain_id", saved.DomainID, "campaign_id", campaignID, "error", err)
	}
	return saved, nil
}

func (s *Service) recordDomainSend(ctx context.Context, domainID string) error {
	return s.withRetry(ctx, func() error {
		d, err := s.repo.GetDomain(ctx, domainID)
		if err != nil {
			return err
		}
		if !d.Recovery.Phase.IsRecovering() {
			return nil
		}
		s.policy.RecordCleanSend(&d.Recovery)
		d.UpdatedAt = s.now()
		return s.repo.SaveDomain(ctx, d)
	})
}

type transition int

const (
	noTransition transition = iota
	paused
	relapsed
)

// RecordBounce counts one bounce for the mailbox, pauses it when the window
// threshold is crossed, and aggregates the owning domain.
func (s *Service) RecordBounce(ctx context.Context, mailboxID, campaignID string) (*domain.Mailbox, error) {
	var (
		saved   *domain.Mailbox
		outcome transition
		from    domain.RecoveryPhase
	)
	err := s.withRetry(ctx, func() error {
		m, err := s.repo.GetMailbox(ctx, mailboxID)
		if err != nil {
			return err
		}
		now := s.now()
		m.WindowBounceCount++
		m.BouncedTotal++
		if m.WindowBounceCount > m.WindowSentCount {
			m.WindowSentCount = m.WindowBounceCount
		}
		m.LastBounceAt = &now
		s.policy.RecordPhaseBounce(&m.Recovery)

		outcome, from = noTransition, m.Recovery.Phase
		switch {
		case s.eval.ShouldRelapse(m.Recovery, m.WindowBounceCount):
			s.policy.Relapse(&m.Recovery, now)
			m.Status = domain.MailboxPaused
			m.PausedReason = fmt.Sprintf("relapsed during %s: %s", from, s.eval.PauseReason())
			outcome = relapsed
		case s.eval.ShouldPauseMailbox(*m):
			s.policy.EnterPause(&m.Recovery, now)
			m.Status = domain.MailboxPaused
			m.PausedReason = s.eval.PauseReason()
			outcome = paused
		}
		m.UpdatedAt = now
		if err := s.repo.SaveMailbox(ctx, m); err != nil {
			return err
		}
		saved = m
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("record bounce %s: %w", mailboxID, err)
	}

	switch outcome {
	case paused:
		logger.Warn("mailbox paused", "mailbox_id", saved.ID, "campaign_id", campaignID, "window_bounces", saved.WindowBounceCount)
		s.audit.Record(ctx, audit.New(domain.EntityMailbox, saved.ID, domain.TriggerHealthMonitor, "pause", saved.PausedReason))
	case relapsed:
		logger.Warn("mailbox relapsed", "mailbox_id", saved.ID, "from_phase", from, "consecutive_pauses", saved.Recovery.ConsecutivePauses)
		s.audit.Record(ctx, audit.New(domain.EntityMailbox, saved.ID, domain.TriggerHealthMonitor, "relapse", saved.PausedReason))
	}

	if err := s.aggregateDomain(ctx, saved.DomainID); err != nil {
		// The mailbox write is durable; aggregation runs again on the next bounce.
		logger.Error("domain aggregation failed", "domain_id", saved.DomainID, "mailbox_id", saved.ID, "error", err)
	}
	return saved, nil
}

// aggregateDomain applies a child bounce to the domain: phase bookkeeping
// and relapse while recovering, escalation while healthy, and completion of
// any unfinished cascade while paused.
func (s *Service) aggregateDomain(ctx context.Context, domainID string) error {
	var (
		d       *domain.SendingDomain
		action  string
		cascade bool
	)
	err := s.withRetry(ctx, func() error {
		cur, err := s.repo.GetDomain(ctx, domainID)
		if err != nil {
			return err
		}
		now := s.now()
		action, cascade = "", false

		switch {
		case cur.Recovery.Phase.IsRecovering():
			from := cur.Recovery.Phase
			s.policy.RecordPhaseBounce(&cur.Recovery)
			if s.eval.ShouldRelapse(cur.Recovery, 0) {
				s.policy.Relapse(&cur.Recovery, now)
				cur.Status = domain.DomainPaused
				cur.PausedReason = fmt.Sprintf("relapsed during %s: %s", from, s.eval.PauseReason())
				action, cascade = "relapse", true
			}

		case cur.Status == domain.DomainPaused:
			cascade = true

		default:
			unhealthy, err := s.repo.CountUnhealthyMailboxes(ctx, domainID)
			if err != nil {
				return fmt.Errorf("count unhealthy mailboxes: %w", err)
			}
			if !s.eval.ShouldEscalateDomain(*cur, unhealthy) {
				d = cur
				return nil
			}
			cur.Status = domain.DomainPaused
			cur.WarningCount++
			cur.PausedReason = s.eval.EscalationReason(unhealthy)
			s.policy.EnterPause(&cur.Recovery, now)
			action, cascade = "pause", true
		}

		cur.LastBounceAt = &now
		cur.UpdatedAt = now
		if err := s.repo.SaveDomain(ctx, cur); err != nil {
			return err
		}
		d = cur
		return nil
	})
	if err != nil {
		return err
	}

	if action != "" {
		logger.Warn("domain paused", "domain", d.Name, "action", action, "reason", d.PausedReason)
		s.audit.Record(ctx, audit.New(domain.EntityDomain, d.ID, domain.TriggerEscalation, action, d.PausedReason))
	}
	if cascade {
		return s.cascade(ctx, d, domain.TriggerEscalation)
	}
	return nil
}

// PauseDomain is the operator pause. It runs the same cascade as escalation
// and is idempotent on an already-paused domain.
func (s *Service) PauseDomain(ctx context.Context, domainID, reason string) (*domain.SendingDomain, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "paused by operator"
	}

	var (
		d       *domain.SendingDomain
		changed bool
	)
	err := s.withRetry(ctx, func() error {
		cur, err := s.repo.GetDomain(ctx, domainID)
		if err != nil {
			return err
		}
		changed = false
		if cur.Status == domain.DomainPaused && cur.Recovery.Phase == domain.PhasePaused {
			d = cur
			return nil
		}
		now := s.now()
		cur.Status = domain.DomainPaused
		cur.PausedReason = reason
		s.policy.EnterPause(&cur.Recovery, now)
		cur.UpdatedAt = now
		if err := s.repo.SaveDomain(ctx, cur); err != nil {
			return err
		}
		d, changed = cur, true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("pause domain %s: %w", domainID, err)
	}

	if changed {
		s.audit.Record(ctx, audit.New(domain.EntityDomain, d.ID, domain.TriggerOperator, "pause", reason))
	}
	if err := s.cascade(ctx, d, domain.TriggerOperator); err != nil {
		return d, err
	}
	return d, nil
}

func (s *Service) cascade(ctx context.Context, d *domain.SendingDomain, trigger string) error {
	ids, err := s.repo.PauseActiveMailboxes(ctx, d.ID, CascadePause{
		Reason:            fmt.Sprintf("domain %s paused: %s", d.Name, d.PausedReason),
		At:                s.now(),
		ResiliencePenalty: s.policy.PausePenalty,
	})
	if err != nil {
		return fmt.Errorf("cascade pause %s: %w", d.Name, err)
	}
	if len(ids) == 0 {
		return nil
	}
	for _, id := range ids {
		s.audit.Record(ctx, audit.New(domain.EntityMailbox, id, trigger, "cascade_pause", "domain "+d.Name))
	}
	s.audit.Record(ctx, audit.New(domain.EntityDomain, d.ID, trigger, "cascade", fmt.Sprintf("paused %d active mailboxes", len(ids))))
	logger.Info("cascade pause", "domain", d.Name, "mailboxes", len(ids))
	return nil
}

// withRetry reruns fn while it loses compare-and-swap races.
func (s *Service) withRetry(ctx context.Context, fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if !errors.Is(err, ErrStaleWrite) {
			return err
		}
		if attempt >= s.maxRetries {
			return fmt.Errorf("gave up after %d attempts: %w", attempt, err)
		}
		backoff := time.Duration(rand.N(int64(attempt)*int64(time.Millisecond))) + 100*time.Microsecond
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}
