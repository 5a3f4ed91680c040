package gate_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ignite/sendguard/internal/domain"
	"github.com/ignite/sendguard/internal/service/campaign"
	"github.com/ignite/sendguard/internal/service/gate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	campaigns map[string]*domain.Campaign
	linked    map[string]int
	global    int
	err       error
	countErr  error
	calls     int
}

func (f *fakeRepo) GetCampaign(_ context.Context, id string) (*domain.Campaign, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.campaigns[id]
	if !ok {
		return nil, campaign.ErrNotFound
	}
	return c, nil
}

func (f *fakeRepo) CountQualifyingMailboxes(_ context.Context, id string) (int, error) {
	f.calls++
	return f.linked[id], f.countErr
}

func (f *fakeRepo) CountAllQualifyingMailboxes(context.Context) (int, error) {
	f.calls++
	return f.global, f.countErr
}

type recAudit struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (r *recAudit) Record(_ context.Context, e domain.AuditEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func newRepo() *fakeRepo {
	return &fakeRepo{
		campaigns: map[string]*domain.Campaign{
			"A":      {ID: "A", Status: domain.CampaignActive},
			"paused": {ID: "paused", Status: domain.CampaignPaused},
			"done":   {ID: "done", Status: domain.CampaignCompleted},
			"empty":  {ID: "empty", Status: domain.CampaignActive},
		},
		linked: map[string]int{"A": 2, "paused": 3},
		global: 5,
	}
}

func TestCanExecuteAllows(t *testing.T) {
	rec := &recAudit{}
	g := gate.New(newRepo(), rec, gate.ScopeCampaign)

	d := g.Check(context.Background(), "A", "lead-1")
	assert.True(t, d.Allowed)
	assert.Equal(t, 2, d.Qualifying)
	require.Len(t, rec.entries, 1)
	assert.Equal(t, "allowed", rec.entries[0].Action)
	assert.Equal(t, "lead-1", rec.entries[0].EntityID)
	assert.Contains(t, rec.entries[0].Details, "gate passed")
}

func TestCanExecuteFailsClosed(t *testing.T) {
	cases := []struct {
		name     string
		campaign string
		reason   string
	}{
		{"paused campaign", "paused", "campaign is paused"},
		{"completed campaign", "done", "campaign is completed"},
		{"missing campaign", "nope", "campaign not found"},
		{"no qualifying mailboxes", "empty", "no healthy mailboxes available"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := &recAudit{}
			g := gate.New(newRepo(), rec, gate.ScopeCampaign)

			d := g.Check(context.Background(), tc.campaign, "lead-1")
			assert.False(t, d.Allowed)
			assert.Equal(t, tc.reason, d.Reason)
			assert.False(t, g.CanExecute(context.Background(), tc.campaign, "lead-1"))
			require.NotEmpty(t, rec.entries)
			assert.Equal(t, "denied", rec.entries[0].Action)
		})
	}
}

func TestCanExecuteShortCircuits(t *testing.T) {
	repo := newRepo()
	g := gate.New(repo, nil, gate.ScopeCampaign)

	g.CanExecute(context.Background(), "paused", "lead-1")
	assert.Equal(t, 1, repo.calls, "capacity must not be counted for a paused campaign")
}

func TestCanExecuteRepositoryErrorsDeny(t *testing.T) {
	repo := newRepo()
	repo.err = errors.New("connection refused")
	g := gate.New(repo, nil, gate.ScopeCampaign)

	d := g.Check(context.Background(), "A", "lead-1")
	assert.False(t, d.Allowed)
	assert.Contains(t, d.Reason, "gate check failed")

	repo = newRepo()
	repo.countErr = errors.New("timeout")
	g = gate.New(repo, nil, gate.ScopeCampaign)
	assert.False(t, g.CanExecute(context.Background(), "A", "lead-1"))
}

func TestGlobalScope(t *testing.T) {
	g := gate.New(newRepo(), nil, gate.ScopeGlobal)
	// "empty" has no linked mailboxes but global capacity exists.
	assert.True(t, g.CanExecute(context.Background(), "empty", "lead-1"))

	g = gate.New(newRepo(), nil, gate.ScopeCampaign)
	assert.False(t, g.CanExecute(context.Background(), "empty", "lead-1"))
}

func TestParseScope(t *testing.T) {
	assert.Equal(t, gate.ScopeGlobal, gate.ParseScope("global"))
	assert.Equal(t, gate.ScopeCampaign, gate.ParseScope("campaign"))
	assert.Equal(t, gate.ScopeCampaign, gate.ParseScope(""))
}
