package gate

import (
	"context"
	"errors"
	"fmt"

	"github.com/ignite/sendguard/internal/domain"
	"github.com/ignite/sendguard/internal/pkg/logger"
	"github.com/ignite/sendguard/internal/service/audit"
	"github.com/ignite/sendguard/internal/service/campaign"
)

// Scope selects which mailboxes count as capacity for a campaign.
type Scope string

const (
	// ScopeCampaign counts only mailboxes linked to the campaign.
	ScopeCampaign Scope = "campaign"
	// ScopeGlobal counts any qualifying mailbox in the system.
	ScopeGlobal Scope = "global"
)

// ParseScope maps a config value onto a Scope, defaulting to ScopeCampaign.
func ParseScope(s string) Scope {
	if Scope(s) == ScopeGlobal {
		return ScopeGlobal
	}
	return ScopeCampaign
}

// Repository is the read model the gate needs. A qualifying mailbox has
// status active and an owning domain with status healthy.
type Repository interface {
	GetCampaign(ctx context.Context, id string) (*domain.Campaign, error)
	CountQualifyingMailboxes(ctx context.Context, campaignID string) (int, error)
	CountAllQualifyingMailboxes(ctx context.Context) (int, error)
}

// Decision is the outcome of one check.
type Decision struct {
	Allowed    bool   `json:"allowed"`
	Reason     string `json:"reason"`
	Qualifying int    `json:"qualifying_mailboxes"`
}

// Gate decides whether work may run for a campaign.
type Gate struct {
	repo  Repository
	audit audit.Recorder
	scope Scope
}

// New creates a gate.
func New(repo Repository, rec audit.Recorder, scope Scope) *Gate {
	if rec == nil {
		rec = audit.Nop{}
	}
	return &Gate{repo: repo, audit: rec, scope: scope}
}

// CanExecute reports whether leadID may be activated on campaignID.
func (g *Gate) CanExecute(ctx context.Context, campaignID, leadID string) bool {
	return g.Check(ctx, campaignID, leadID).Allowed
}

// Check runs the gate and returns the audited decision.
func (g *Gate) Check(ctx context.Context, campaignID, leadID string) Decision {
	d := g.evaluate(ctx, campaignID)
	action := "denied"
	if d.Allowed {
		action = "allowed"
	}
	g.audit.Record(ctx, audit.New(domain.EntityLead, leadID, domain.TriggerGate, action,
		fmt.Sprintf("campaign %s: %s", campaignID, d.Reason)))
	return d
}

func (g *Gate) evaluate(ctx context.Context, campaignID string) Decision {
	c, err := g.repo.GetCampaign(ctx, campaignID)
	if errors.Is(err, campaign.ErrNotFound) {
		return Decision{Reason: "campaign not found"}
	}
	if err != nil {
		logger.Error("gate campaign lookup failed", "campaign_id", campaignID, "error", err)
		return Decision{Reason: "gate check failed: " + err.Error()}
	}
	if c.Status != domain.CampaignActive {
		return Decision{Reason: fmt.Sprintf("campaign is %s", c.Status)}
	}

	var n int
	if g.scope == ScopeGlobal {
		n, err = g.repo.CountAllQualifyingMailboxes(ctx)
	} else {
		n, err = g.repo.CountQualifyingMailboxes(ctx, campaignID)
	}
	if err != nil {
		logger.Error("gate capacity check failed", "campaign_id", campaignID, "error", err)
		return Decision{Reason: "gate check failed: " + err.Error()}
	}
	if n == 0 {
		return Decision{Reason: "no healthy mailboxes available"}
	}
	return Decision{Allowed: true, Reason: fmt.Sprintf("gate passed: %d qualifying mailboxes", n), Qualifying: n}
}
