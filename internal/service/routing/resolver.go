package routing

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/sendguard/internal/domain"
	"github.com/ignite/sendguard/internal/service/audit"
)

// Resolver matches leads against routing rules and manages the rule set.
type Resolver struct {
	repo  Repository
	audit audit.Recorder
}

// NewResolver creates a resolver backed by the given repository.
func NewResolver(repo Repository, rec audit.Recorder) *Resolver {
	if rec == nil {
		rec = audit.Nop{}
	}
	return &Resolver{repo: repo, audit: rec}
}

// Sort orders rules by priority descending, then seq ascending.
func Sort(rules []domain.RoutingRule) {
	slices.SortStableFunc(rules, func(a, b domain.RoutingRule) int {
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}
		return cmp.Compare(a.Seq, b.Seq)
	})
}

// Resolve returns the target campaign of the first matching rule. Both
// outcomes are audited against the lead.
func (r *Resolver) Resolve(ctx context.Context, lead domain.Lead) (string, bool, error) {
	rules, err := r.repo.ListRules(ctx)
	if err != nil {
		return "", false, fmt.Errorf("list routing rules: %w", err)
	}
	Sort(rules)

	for _, rule := range rules {
		if rule.Matches(lead) {
			r.audit.Record(ctx, audit.New(domain.EntityLead, lead.ID, domain.TriggerRouting, "matched",
				fmt.Sprintf("rule %s -> campaign %s", rule.ID, rule.TargetCampaignID)))
			return rule.TargetCampaignID, true, nil
		}
	}

	r.audit.Record(ctx, audit.New(domain.EntityLead, lead.ID, domain.TriggerRouting, "no_match",
		fmt.Sprintf("no rule for persona %q with score %.2f", lead.Persona, lead.Score)))
	return "", false, nil
}

// CreateRule validates and stores a rule.
func (r *Resolver) CreateRule(ctx context.Context, in RuleInput) (*domain.RoutingRule, error) {
	persona := strings.TrimSpace(in.Persona)
	target := strings.TrimSpace(in.TargetCampaignID)
	switch {
	case persona == "":
		return nil, fmt.Errorf("%w: persona is required", ErrValidation)
	case target == "":
		return nil, fmt.Errorf("%w: target_campaign_id is required", ErrValidation)
	case in.MinScore < 0:
		return nil, fmt.Errorf("%w: min_score must be >= 0", ErrValidation)
	}

	rule := &domain.RoutingRule{
		ID:               uuid.New().String(),
		Persona:          persona,
		MinScore:         in.MinScore,
		TargetCampaignID: target,
		Priority:         in.Priority,
		CreatedAt:        time.Now().UTC(),
	}
	if err := r.repo.CreateRule(ctx, rule); err != nil {
		return nil, fmt.Errorf("create routing rule: %w", err)
	}
	r.audit.Record(ctx, audit.New(domain.EntityRoutingRule, rule.ID, domain.TriggerOperator, "created",
		fmt.Sprintf("persona=%s min_score=%.2f priority=%d campaign=%s", persona, in.MinScore, in.Priority, target)))
	return rule, nil
}

// ListRules returns rules in evaluation order.
func (r *Resolver) ListRules(ctx context.Context) ([]domain.RoutingRule, error) {
	rules, err := r.repo.ListRules(ctx)
	if err != nil {
		return nil, err
	}
	Sort(rules)
	return rules, nil
}

// DeleteRule removes a rule.
func (r *Resolver) DeleteRule(ctx context.Context, id string) error {
	if err := r.repo.DeleteRule(ctx, id); err != nil {
		return err
	}
	r.audit.Record(ctx, audit.New(domain.EntityRoutingRule, id, domain.TriggerOperator, "deleted", ""))
	return nil
}

// RuleInput holds the fields for creating a routing rule.
type RuleInput struct {
	Persona          string  `json:"persona"`
	MinScore         float64 `json:"min_score"`
	TargetCampaignID string  `json:"target_campaign_id"`
	Priority         int     `json:"priority"`
}
