package sender

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ignite/sendguard/internal/domain"
	"github.com/ignite/sendguard/internal/pkg/httpretry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLead() domain.Lead {
	return domain.Lead{ID: "lead-1", Email: "elon@tesla.com", Persona: "CEO", Score: 95, Source: "webhook"}
}

func TestClient_PushLead(t *testing.T) {
	var got pushRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/campaigns/A/leads", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/api/", "secret", time.Second, 1)
	require.NoError(t, c.PushLead(context.Background(), "A", testLead()))
	assert.Equal(t, "lead-1", got.LeadID)
	assert.Equal(t, "elon@tesla.com", got.Email)
	assert.Equal(t, 95.0, got.Score)
}

func TestClient_PushLeadRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second, 2).
		WithDoer(httpretry.NewRetryClient(srv.Client(), 2).WithBackoff(time.Millisecond, 5*time.Millisecond))
	require.NoError(t, c.PushLead(context.Background(), "A", testLead()))
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_PushLeadClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown campaign", http.StatusNotFound)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, "k", time.Second, 1).PushLead(context.Background(), "nope", testLead())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "unknown campaign")
}

func TestNewFallsBackToNoop(t *testing.T) {
	p := New("", "", 0, 0)
	assert.IsType(t, NoopPusher{}, p)
	assert.NoError(t, p.PushLead(context.Background(), "A", testLead()))

	assert.IsType(t, &Client{}, New("http://sender.local", "k", 0, 0))
}
