package recovery

import (
	"fmt"
	"time"

	"github.com/ignite/sendguard/internal/domain"
)

// Facts are the inputs to a step that are not part of the RecoveryState.
type Facts struct {
	LastBounceAt *time.Time
	// ParentPaused holds a mailbox in quarantine while its domain is paused.
	ParentPaused bool
	// ValidateDNS is consulted only on quarantine exit.
	ValidateDNS func() (bool, error)
}

// Decision is the outcome of one evaluation.
type Decision struct {
	From    domain.RecoveryPhase
	To      domain.RecoveryPhase
	Advance bool
	Reason  string
}

// Action is the audit action for an advancing decision.
func (d Decision) Action() string {
	return fmt.Sprintf("phase:%s->%s", d.From, d.To)
}

// Machine evaluates at most one forward step.
type Machine struct {
	Policy Policy
}

// Next decides whether s may leave its current phase at now. It never skips
// a phase, whatever later thresholds already hold.
func (m Machine) Next(s domain.RecoveryState, f Facts, now time.Time) Decision {
	d := Decision{From: s.Phase, To: s.Phase}
	to, ok := s.Phase.Next()
	if !ok {
		d.Reason = "not recovering"
		return d
	}

	switch s.Phase {
	case domain.PhasePaused:
		ref := s.PhaseEnteredAt
		if f.LastBounceAt != nil && f.LastBounceAt.After(ref) {
			ref = *f.LastBounceAt
		}
		cooldown := m.Policy.CooldownFor(s.ConsecutivePauses)
		if elapsed := now.Sub(ref); elapsed < cooldown {
			d.Reason = fmt.Sprintf("cooldown %s remaining", (cooldown - elapsed).Round(time.Second))
			return d
		}

	case domain.PhaseQuarantine:
		if f.ParentPaused {
			d.Reason = "domain is paused"
			return d
		}
		if f.ValidateDNS == nil {
			d.Reason = "no dns checker"
			return d
		}
		pass, err := f.ValidateDNS()
		if err != nil {
			d.Reason = "dns check failed: " + err.Error()
			return d
		}
		if !pass {
			d.Reason = "dns authentication not valid"
			return d
		}

	case domain.PhaseRestrictedSend:
		need := m.Policy.RequiredCleanSends(s)
		if s.CleanSendsSincePhase < need {
			d.Reason = fmt.Sprintf("%d/%d clean sends", s.CleanSendsSincePhase, need)
			return d
		}

	case domain.PhaseWarmRecovery:
		if s.CleanSendsSincePhase < m.Policy.WarmCleanSends {
			d.Reason = fmt.Sprintf("%d/%d clean sends", s.CleanSendsSincePhase, m.Policy.WarmCleanSends)
			return d
		}
		if now.Sub(s.PhaseEnteredAt) < m.Policy.WarmMinDuration {
			d.Reason = "minimum time in warm recovery not reached"
			return d
		}
		if rate := s.BounceRate(); rate >= m.Policy.WarmMaxBounceRate {
			d.Reason = fmt.Sprintf("bounce rate %.4f above %.4f", rate, m.Policy.WarmMaxBounceRate)
			return d
		}
	}

	d.To = to
	d.Advance = true
	return d
}
