package domain

import "time"

// MailboxStatus is the health classification of a single sending mailbox.
type MailboxStatus string

const (
	MailboxWarming MailboxStatus = "warming"
	MailboxActive  MailboxStatus = "active"
	MailboxPaused  MailboxStatus = "paused"
)

// IsHealthy reports whether the status counts toward a domain's healthy
// mailboxes. Warming mailboxes are not unhealthy.
func (s MailboxStatus) IsHealthy() bool {
	return s == MailboxActive || s == MailboxWarming
}

// Mailbox is a sending identity on a SendingDomain.
//
// WindowSentCount and WindowBounceCount form the bounce window; it resets
// after a full window of sends while the mailbox is active. Version is the
// optimistic-concurrency token every counter write is checked against.
type Mailbox struct {
	ID                string        `json:"id" db:"id"`
	Email             string        `json:"email" db:"email"`
	DomainID          string        `json:"domain_id" db:"domain_id"`
	Status            MailboxStatus `json:"status" db:"status"`
	SentTotal         int64         `json:"sent_total" db:"sent_total"`
	BouncedTotal      int64         `json:"bounced_total" db:"bounced_total"`
	WindowSentCount   int           `json:"window_sent_count" db:"window_sent_count"`
	WindowBounceCount int           `json:"window_bounce_count" db:"window_bounce_count"`
	WindowStartAt     time.Time     `json:"window_start_at" db:"window_start_at"`
	PausedReason      string        `json:"paused_reason,omitempty" db:"paused_reason"`
	LastBounceAt      *time.Time    `json:"last_bounce_at,omitempty" db:"last_bounce_at"`
	Recovery          RecoveryState `json:"recovery"`
	Version           int64         `json:"version" db:"version"`
	CreatedAt         time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at" db:"updated_at"`
}

// ResetWindow starts a fresh bounce window at now.
func (m *Mailbox) ResetWindow(now time.Time) {
	m.WindowSentCount = 0
	m.WindowBounceCount = 0
	m.WindowStartAt = now
}
