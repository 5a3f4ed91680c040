package domain

import (
	"strings"
	"time"
)

// RoutingRule assigns leads of a persona at or above a score to a campaign.
// Rules are evaluated by Priority descending, then by Seq ascending.
type RoutingRule struct {
	ID               string    `json:"id" db:"id"`
	Persona          string    `json:"persona" db:"persona"`
	MinScore         float64   `json:"min_score" db:"min_score"`
	TargetCampaignID string    `json:"target_campaign_id" db:"target_campaign_id"`
	Priority         int       `json:"priority" db:"priority"`
	Seq              int64     `json:"seq" db:"seq"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// Matches reports whether the rule applies to a lead.
func (r RoutingRule) Matches(l Lead) bool {
	return strings.EqualFold(strings.TrimSpace(r.Persona), strings.TrimSpace(l.Persona)) &&
		l.Score >= r.MinScore
}
