package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ignite/sendguard/internal/domain"
	"github.com/ignite/sendguard/internal/pkg/httputil"
	"github.com/ignite/sendguard/internal/service/lead"
)

type leadResponse struct {
	LeadID             string            `json:"lead_id"`
	AssignedCampaignID *string           `json:"assigned_campaign_id"`
	Status             domain.LeadStatus `json:"status"`
}

// CreateLead ingests and routes a lead. An unmatched lead is still created,
// held with a null campaign.
//
//	POST /api/leads
func (h *Handlers) CreateLead(w http.ResponseWriter, r *http.Request) {
	var in lead.IngestInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	l, err := h.leads.Ingest(r.Context(), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.Created(w, leadResponse{
		LeadID:             l.ID,
		AssignedCampaignID: l.AssignedCampaignID,
		Status:             l.Status,
	})
}

// GetLead returns a lead.
//
//	GET /api/leads/{id}
func (h *Handlers) GetLead(w http.ResponseWriter, r *http.Request) {
	l, err := h.leads.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, l)
}
