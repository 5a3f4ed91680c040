package health

import (
	"fmt"

	"github.com/ignite/sendguard/internal/domain"
)

// Thresholds are the window and escalation limits.
type Thresholds struct {
	WindowSize             int
	BounceThreshold        int
	DomainWarningThreshold int
}

// DefaultThresholds returns the stock limits.
func DefaultThresholds() Thresholds {
	return Thresholds{WindowSize: 100, BounceThreshold: 5, DomainWarningThreshold: 2}
}

// Evaluator holds the stateless transition rules.
type Evaluator struct {
	Thresholds
}

// ShouldResetWindow: a full window of sends on an active mailbox starts a new one.
func (e Evaluator) ShouldResetWindow(m domain.Mailbox) bool {
	return m.Status == domain.MailboxActive && m.WindowSentCount > e.WindowSize
}

// ShouldPauseMailbox is the window threshold. It never re-fires on a paused mailbox.
func (e Evaluator) ShouldPauseMailbox(m domain.Mailbox) bool {
	return m.Status != domain.MailboxPaused && m.WindowBounceCount >= e.BounceThreshold
}

// ShouldRelapse reports a renewed breach during recovery. Quarantined
// mailboxes are already paused, so the phase counter is what catches them.
func (e Evaluator) ShouldRelapse(s domain.RecoveryState, windowBounces int) bool {
	if !s.Phase.IsRecovering() {
		return false
	}
	return s.PhaseBounces >= e.BounceThreshold || windowBounces >= e.BounceThreshold
}

// ShouldEscalateDomain is the domain aggregation rule.
func (e Evaluator) ShouldEscalateDomain(d domain.SendingDomain, unhealthy int) bool {
	return d.Status != domain.DomainPaused && unhealthy >= e.DomainWarningThreshold
}

// PauseReason is the mailbox pause reason.
func (e Evaluator) PauseReason() string {
	return fmt.Sprintf("exceeded %d bounces in current window", e.BounceThreshold)
}

// EscalationReason is the domain pause reason.
func (e Evaluator) EscalationReason(unhealthy int) string {
	return fmt.Sprintf("%d unhealthy mailboxes (threshold %d)", unhealthy, e.DomainWarningThreshold)
}
