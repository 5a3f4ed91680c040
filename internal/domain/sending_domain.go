package domain

import "time"

// DomainStatus is the health classification of a sending domain.
type DomainStatus string

const (
	DomainHealthy DomainStatus = "healthy"
	DomainWarning DomainStatus = "warning"
	DomainPaused  DomainStatus = "paused"
)

// SendingDomain owns zero or more mailboxes. Pausing it cascades to every
// mailbox on it that is still active.
type SendingDomain struct {
	ID           string        `json:"id" db:"id"`
	Name         string        `json:"name" db:"name"`
	Status       DomainStatus  `json:"status" db:"status"`
	WarningCount int           `json:"warning_count" db:"warning_count"`
	PausedReason string        `json:"paused_reason,omitempty" db:"paused_reason"`
	LastBounceAt *time.Time    `json:"last_bounce_at,omitempty" db:"last_bounce_at"`
	Recovery     RecoveryState `json:"recovery"`
	Version      int64         `json:"version" db:"version"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at" db:"updated_at"`
}
