package domain

import "time"

// LeadStatus enumerates the states a lead moves through in the engine.
type LeadStatus string

const (
	LeadHeld   LeadStatus = "held"
	LeadActive LeadStatus = "active"
	LeadPaused LeadStatus = "paused"
)

// HealthStateHealthy is the only lead health state the processor picks up.
const HealthStateHealthy = "healthy"

// Lead is an inbound prospect waiting to be routed and activated.
type Lead struct {
	ID                 string     `json:"id" db:"id"`
	Email              string     `json:"email" db:"email"`
	Persona            string     `json:"persona" db:"persona"`
	Score              float64    `json:"lead_score" db:"lead_score"`
	Source             string     `json:"source" db:"source"`
	Status             LeadStatus `json:"status" db:"status"`
	AssignedCampaignID *string    `json:"assigned_campaign_id" db:"assigned_campaign_id"`
	HealthState        string     `json:"health_state" db:"health_state"`
	ActivatedAt        *time.Time `json:"activated_at,omitempty" db:"activated_at"`
	GateCheckedAt      *time.Time `json:"gate_checked_at,omitempty" db:"gate_checked_at"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at" db:"updated_at"`
}
