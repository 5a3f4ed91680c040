package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ignite/sendguard/internal/domain"
	"github.com/ignite/sendguard/internal/pkg/httputil"
)

// mailboxView adds the recovery send cap to a mailbox.
type mailboxView struct {
	*domain.Mailbox
	SendCapPct int `json:"send_cap_pct"`
}

type domainView struct {
	*domain.SendingDomain
	SendCapPct int `json:"send_cap_pct"`
}

type registerRequest struct {
	Email string `json:"email"`
}

type pauseRequest struct {
	Reason string `json:"reason"`
}

func (h *Handlers) viewMailbox(m *domain.Mailbox) mailboxView {
	return mailboxView{Mailbox: m, SendCapPct: h.health.Policy().SendCapPct(m.Recovery.Phase)}
}

func (h *Handlers) viewDomain(d *domain.SendingDomain) domainView {
	return domainView{SendingDomain: d, SendCapPct: h.health.Policy().SendCapPct(d.Recovery.Phase)}
}

// RegisterMailbox creates a mailbox and, if needed, its sending domain.
//
//	POST /api/mailboxes
func (h *Handlers) RegisterMailbox(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	m, err := h.health.RegisterMailbox(r.Context(), req.Email)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.Created(w, h.viewMailbox(m))
}

// GetMailbox returns counters and recovery state.
//
//	GET /api/mailboxes/{id}
func (h *Handlers) GetMailbox(w http.ResponseWriter, r *http.Request) {
	m, err := h.health.GetMailbox(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, h.viewMailbox(m))
}

// GetDomain returns a sending domain.
//
//	GET /api/domains/{id}
func (h *Handlers) GetDomain(w http.ResponseWriter, r *http.Request) {
	d, err := h.health.GetDomain(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, h.viewDomain(d))
}

// PauseDomain is the operator pause. It cascades like an escalation.
//
//	PUT /api/domains/{id}/pause
func (h *Handlers) PauseDomain(w http.ResponseWriter, r *http.Request) {
	var req pauseRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Reason == "" {
		req.Reason = "paused by operator"
	}
	d, err := h.health.PauseDomain(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, h.viewDomain(d))
}
