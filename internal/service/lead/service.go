package lead

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/sendguard/internal/domain"
	"github.com/ignite/sendguard/internal/pkg/logger"
	"github.com/ignite/sendguard/internal/service/audit"
)

// Service implements lead ingestion and activation.
type Service struct {
	repo   Repository
	router Router
	audit  audit.Recorder
}

// NewService creates a lead service.
func NewService(repo Repository, router Router, rec audit.Recorder) *Service {
	if rec == nil {
		rec = audit.Nop{}
	}
	return &Service{repo: repo, router: router, audit: rec}
}

// IngestInput holds the fields for a new lead. Score is a pointer so a
// missing score can be told apart from zero.
type IngestInput struct {
	Email   string   `json:"email"`
	Persona string   `json:"persona"`
	Score   *float64 `json:"lead_score"`
	Source  string   `json:"source"`
}

// Validate checks the input without touching state.
func (in IngestInput) Validate() error {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return fmt.Errorf("%w: invalid email", ErrValidation)
	}
	if strings.TrimSpace(in.Persona) == "" {
		return fmt.Errorf("%w: persona is required", ErrValidation)
	}
	if in.Score == nil {
		return fmt.Errorf("%w: lead_score is required", ErrValidation)
	}
	if *in.Score < 0 {
		return fmt.Errorf("%w: lead_score must be >= 0", ErrValidation)
	}
	return nil
}

// Ingest creates a held lead and assigns it a campaign when a rule matches.
// A routing failure leaves the lead unassigned rather than failing ingest.
func (s *Service) Ingest(ctx context.Context, in IngestInput) (*domain.Lead, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	l := &domain.Lead{
		ID:          uuid.New().String(),
		Email:       strings.ToLower(strings.TrimSpace(in.Email)),
		Persona:     strings.TrimSpace(in.Persona),
		Score:       *in.Score,
		Source:      strings.TrimSpace(in.Source),
		Status:      domain.LeadHeld,
		HealthState: domain.HealthStateHealthy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if campaignID, ok, err := s.router.Resolve(ctx, *l); err != nil {
		logger.Error("lead routing failed", "lead_id", l.ID, "error", err)
	} else if ok {
		l.AssignedCampaignID = &campaignID
	}

	if err := s.repo.CreateLead(ctx, l); err != nil {
		return nil, fmt.Errorf("create lead: %w", err)
	}
	s.audit.Record(ctx, audit.New(domain.EntityLead, l.ID, domain.TriggerRouting, "ingested", l.Source))
	return l, nil
}

// Get returns a single lead.
func (s *Service) Get(ctx context.Context, id string) (*domain.Lead, error) {
	return s.repo.GetLead(ctx, id)
}

// ListReady returns leads waiting for the gate.
func (s *Service) ListReady(ctx context.Context, limit int) ([]domain.Lead, error) {
	return s.repo.ListReadyLeads(ctx, limit)
}

// Defer records a gate denial so the next batch starts with other leads.
func (s *Service) Defer(ctx context.Context, id string) error {
	return s.repo.DeferLead(ctx, id, time.Now().UTC())
}

// Activate performs the conditional held-to-active transition.
func (s *Service) Activate(ctx context.Context, id string) (bool, error) {
	return s.repo.ActivateLead(ctx, id, time.Now().UTC())
}
