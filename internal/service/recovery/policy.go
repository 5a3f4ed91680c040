package recovery

import (
	"math"
	"time"

	"github.com/ignite/sendguard/internal/domain"
)

// Policy holds recovery thresholds and resilience weights.
type Policy struct {
	Cooldown    time.Duration
	MaxCooldown time.Duration

	RestrictedCleanSends     int
	RepeatOffenderCleanSends int
	WarmCleanSends           int
	WarmMinDuration          time.Duration
	WarmMaxBounceRate        float64

	RestrictedSendCapPct int
	WarmSendCapPct       int

	PausePenalty    float64
	RelapsePenalty  float64
	CleanSendGain   float64
	GraduationBonus float64
}

// DefaultPolicy returns the stock thresholds.
func DefaultPolicy() Policy {
	return Policy{
		Cooldown:                 4 * time.Hour,
		MaxCooldown:              48 * time.Hour,
		RestrictedCleanSends:     15,
		RepeatOffenderCleanSends: 25,
		WarmCleanSends:           50,
		WarmMinDuration:          72 * time.Hour,
		WarmMaxBounceRate:        0.02,
		RestrictedSendCapPct:     25,
		WarmSendCapPct:           50,
		PausePenalty:             10,
		RelapsePenalty:           25,
		CleanSendGain:            0.2,
		GraduationBonus:          10,
	}
}

// CooldownFor doubles the base cooldown for every pause beyond the first,
// capped at MaxCooldown.
func (p Policy) CooldownFor(consecutivePauses int) time.Duration {
	d := p.Cooldown
	for i := 1; i < consecutivePauses; i++ {
		d *= 2
		if d >= p.MaxCooldown {
			return p.MaxCooldown
		}
	}
	if p.MaxCooldown > 0 && d > p.MaxCooldown {
		return p.MaxCooldown
	}
	return d
}

// RequiredCleanSends is the restricted_send exit bar. Repeat offenders need more.
func (p Policy) RequiredCleanSends(s domain.RecoveryState) int {
	if s.ConsecutivePauses > 1 {
		return p.RepeatOffenderCleanSends
	}
	return p.RestrictedCleanSends
}

// SendCapPct is the share of normal capacity an entity may use in phase.
func (p Policy) SendCapPct(phase domain.RecoveryPhase) int {
	switch phase {
	case domain.PhaseHealthy:
		return 100
	case domain.PhaseRestrictedSend:
		return p.RestrictedSendCapPct
	case domain.PhaseWarmRecovery:
		return p.WarmSendCapPct
	default:
		return 0
	}
}

// EnterPause moves a state into paused after a threshold breach.
func (p Policy) EnterPause(s *domain.RecoveryState, now time.Time) {
	s.ConsecutivePauses++
	s.ResilienceScore = clamp(s.ResilienceScore - p.PausePenalty)
	enter(s, domain.PhasePaused, now)
}

// Relapse forces a recovering state back to paused.
func (p Policy) Relapse(s *domain.RecoveryState, now time.Time) {
	s.ConsecutivePauses++
	s.RelapseCount++
	s.ResilienceScore = clamp(s.ResilienceScore - p.RelapsePenalty)
	enter(s, domain.PhasePaused, now)
}

// RecordCleanSend counts a send made while recovering.
func (p Policy) RecordCleanSend(s *domain.RecoveryState) {
	if !s.Phase.IsRecovering() {
		return
	}
	s.CleanSendsSincePhase++
	s.PhaseSent++
	s.ResilienceScore = clamp(s.ResilienceScore + p.CleanSendGain)
}

// RecordPhaseBounce counts a bounce against the current phase.
func (p Policy) RecordPhaseBounce(s *domain.RecoveryState) {
	if !s.Phase.IsRecovering() {
		return
	}
	s.PhaseBounces++
	if s.PhaseSent < s.PhaseBounces {
		s.PhaseSent = s.PhaseBounces
	}
}

// Advance applies a forward transition to to.
func (p Policy) Advance(s *domain.RecoveryState, to domain.RecoveryPhase, now time.Time) {
	if to == domain.PhaseHealthy {
		s.ResilienceScore = clamp(s.ResilienceScore + p.GraduationBonus)
	}
	enter(s, to, now)
}

func enter(s *domain.RecoveryState, phase domain.RecoveryPhase, now time.Time) {
	s.Phase = phase
	s.PhaseEnteredAt = now
	s.CleanSendsSincePhase = 0
	s.PhaseSent = 0
	s.PhaseBounces = 0
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

// MailboxStatusFor maps a recovery phase onto mailbox health.
func MailboxStatusFor(phase domain.RecoveryPhase) domain.MailboxStatus {
	switch phase {
	case domain.PhaseHealthy:
		return domain.MailboxActive
	case domain.PhaseRestrictedSend, domain.PhaseWarmRecovery:
		return domain.MailboxWarming
	default:
		return domain.MailboxPaused
	}
}

// DomainStatusFor maps a recovery phase onto domain health.
func DomainStatusFor(phase domain.RecoveryPhase) domain.DomainStatus {
	switch phase {
	case domain.PhaseHealthy:
		return domain.DomainHealthy
	case domain.PhaseRestrictedSend, domain.PhaseWarmRecovery:
		return domain.DomainWarning
	default:
		return domain.DomainPaused
	}
}
