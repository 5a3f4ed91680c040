package domain

import "time"

// RecoveryPhase is one step of the graduated restoration sequence.
type RecoveryPhase string

const (
	PhaseHealthy        RecoveryPhase = "healthy"
	PhasePaused         RecoveryPhase = "paused"
	PhaseQuarantine     RecoveryPhase = "quarantine"
	PhaseRestrictedSend RecoveryPhase = "restricted_send"
	PhaseWarmRecovery   RecoveryPhase = "warm_recovery"
)

// phaseOrder is the only legal forward path through recovery.
var phaseOrder = map[RecoveryPhase]RecoveryPhase{
	PhasePaused:         PhaseQuarantine,
	PhaseQuarantine:     PhaseRestrictedSend,
	PhaseRestrictedSend: PhaseWarmRecovery,
	PhaseWarmRecovery:   PhaseHealthy,
}

// Next returns the phase that follows p. The second value is false for
// healthy (nothing to recover) and for unknown phases.
func (p RecoveryPhase) Next() (RecoveryPhase, bool) {
	n, ok := phaseOrder[p]
	return n, ok
}

// IsRecovering reports whether p is a post-pause phase in which sends count
// as clean sends and bounces can cause a relapse.
func (p RecoveryPhase) IsRecovering() bool {
	return p == PhaseQuarantine || p == PhaseRestrictedSend || p == PhaseWarmRecovery
}

// RecoveryState is embedded in Mailbox and SendingDomain.
//
// PhaseSent and PhaseBounces count traffic since the phase was entered and
// feed the rolling bounce rate used to graduate out of warm recovery.
type RecoveryState struct {
	Phase                RecoveryPhase `json:"recovery_phase" db:"recovery_phase"`
	PhaseEnteredAt       time.Time     `json:"phase_entered_at" db:"phase_entered_at"`
	CleanSendsSincePhase int           `json:"clean_sends_since_phase" db:"clean_sends_since_phase"`
	PhaseSent            int           `json:"phase_sent" db:"phase_sent"`
	PhaseBounces         int           `json:"phase_bounces" db:"phase_bounces"`
	ConsecutivePauses    int           `json:"consecutive_pauses" db:"consecutive_pauses"`
	RelapseCount         int           `json:"relapse_count" db:"relapse_count"`
	ResilienceScore      float64       `json:"resilience_score" db:"resilience_score"`
}

// NewRecoveryState returns the state of an entity that has never been paused.
func NewRecoveryState(now time.Time) RecoveryState {
	return RecoveryState{
		Phase:           PhaseHealthy,
		PhaseEnteredAt:  now,
		ResilienceScore: 100,
	}
}

// BounceRate is the bounce rate observed since the current phase began.
func (s RecoveryState) BounceRate() float64 {
	if s.PhaseSent == 0 {
		return 0
	}
	return float64(s.PhaseBounces) / float64(s.PhaseSent)
}
