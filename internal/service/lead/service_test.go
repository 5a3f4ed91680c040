package lead_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/ignite/sendguard/internal/domain"
	"github.com/ignite/sendguard/internal/service/lead"
)

// memRepo is an in-memory lead repository for unit testing.
type memRepo struct {
	mu    sync.Mutex
	leads map[string]*domain.Lead
}

func newMemRepo() *memRepo { return &memRepo{leads: make(map[string]*domain.Lead)} }

func (m *memRepo) CreateLead(_ context.Context, l *domain.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *l
	m.leads[l.ID] = &cp
	return nil
}

func (m *memRepo) GetLead(_ context.Context, id string) (*domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[id]
	if !ok {
		return nil, lead.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *memRepo) ListReadyLeads(_ context.Context, limit int) ([]domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Lead
	for _, l := range m.leads {
		if l.Status == domain.LeadHeld && l.AssignedCampaignID != nil && l.HealthState == domain.HealthStateHealthy {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memRepo) ActivateLead(_ context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[id]
	if !ok || l.Status != domain.LeadHeld {
		return false, nil
	}
	l.Status = domain.LeadActive
	l.ActivatedAt = &at
	return true, nil
}

func (m *memRepo) DeferLead(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[id]
	if !ok {
		return lead.ErrNotFound
	}
	if l.Status == domain.LeadHeld {
		l.GateCheckedAt = &at
	}
	return nil
}

type stubRouter struct {
	campaign string
	err      error
}

func (s stubRouter) Resolve(context.Context, domain.Lead) (string, bool, error) {
	if s.err != nil {
		return "", false, s.err
	}
	return s.campaign, s.campaign != "", nil
}

func score(v float64) *float64 { return &v }

func TestIngestAssignsCampaign(t *testing.T) {
	svc := lead.NewService(newMemRepo(), stubRouter{campaign: "A"}, nil)
	l, err := svc.Ingest(context.Background(), lead.IngestInput{
		Email: " Elon@Tesla.com ", Persona: "CEO", Score: score(95), Source: "api",
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if l.Email != "elon@tesla.com" {
		t.Fatalf("email not normalised: %q", l.Email)
	}
	if l.Status != domain.LeadHeld || l.HealthState != domain.HealthStateHealthy {
		t.Fatalf("unexpected lead state %+v", l)
	}
	if l.AssignedCampaignID == nil || *l.AssignedCampaignID != "A" {
		t.Fatalf("expected campaign A, got %v", l.AssignedCampaignID)
	}
}

func TestIngestNoRoute(t *testing.T) {
	svc := lead.NewService(newMemRepo(), stubRouter{}, nil)
	l, err := svc.Ingest(context.Background(), lead.IngestInput{Email: "intern@tesla.com", Persona: "Intern", Score: score(99)})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if l.AssignedCampaignID != nil {
		t.Fatalf("expected unassigned, got %v", *l.AssignedCampaignID)
	}
}

func TestIngestRoutingErrorLeavesLeadUnassigned(t *testing.T) {
	repo := newMemRepo()
	svc := lead.NewService(repo, stubRouter{err: errors.New("db down")}, nil)
	l, err := svc.Ingest(context.Background(), lead.IngestInput{Email: "a@b.com", Persona: "CEO", Score: score(90)})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if l.AssignedCampaignID != nil {
		t.Fatal("expected unassigned lead")
	}
	if _, err := repo.GetLead(context.Background(), l.ID); err != nil {
		t.Fatalf("lead not stored: %v", err)
	}
}

func TestIngestValidation(t *testing.T) {
	repo := newMemRepo()
	svc := lead.NewService(repo, stubRouter{campaign: "A"}, nil)
	bad := []lead.IngestInput{
		{Persona: "CEO", Score: score(1)},
		{Email: "not-an-email", Persona: "CEO", Score: score(1)},
		{Email: "a@b.com", Score: score(1)},
		{Email: "a@b.com", Persona: "CEO"},
		{Email: "a@b.com", Persona: "CEO", Score: score(-5)},
	}
	for _, in := range bad {
		if _, err := svc.Ingest(context.Background(), in); !errors.Is(err, lead.ErrValidation) {
			t.Fatalf("%+v: expected ErrValidation, got %v", in, err)
		}
	}
	if len(repo.leads) != 0 {
		t.Fatal("validation failure must not store a lead")
	}
}

func TestActivateIsConditional(t *testing.T) {
	svc := lead.NewService(newMemRepo(), stubRouter{campaign: "A"}, nil)
	l, _ := svc.Ingest(context.Background(), lead.IngestInput{Email: "a@b.com", Persona: "CEO", Score: score(90)})

	ready, err := svc.ListReady(context.Background(), 50)
	if err != nil || len(ready) != 1 {
		t.Fatalf("ready = %v, err = %v", ready, err)
	}

	ok, err := svc.Activate(context.Background(), l.ID)
	if err != nil || !ok {
		t.Fatalf("first activate: %v %v", ok, err)
	}
	ok, err = svc.Activate(context.Background(), l.ID)
	if err != nil || ok {
		t.Fatalf("second activate should be a no-op: %v %v", ok, err)
	}

	got, _ := svc.Get(context.Background(), l.ID)
	if got.Status != domain.LeadActive || got.ActivatedAt == nil {
		t.Fatalf("unexpected lead %+v", got)
	}
}
