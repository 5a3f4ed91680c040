package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/ignite/sendguard/internal/domain"
	"github.com/ignite/sendguard/internal/pkg/httputil"
	"github.com/ignite/sendguard/internal/service/campaign"
)

// ListCampaigns supports ?status=&limit=&offset=.
func (h *Handlers) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := campaign.ListFilter{Status: q.Get("status")}
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	f.Offset, _ = strconv.Atoi(q.Get("offset"))
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	items, total, err := h.campaigns.List(r.Context(), f)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if items == nil {
		items = []domain.Campaign{}
	}
	httputil.OK(w, map[string]interface{}{
		"campaigns": items,
		"total":     total,
		"limit":     f.Limit,
		"offset":    f.Offset,
	})
}

// CreateCampaign creates a campaign, optionally linking mailboxes.
func (h *Handlers) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var in campaign.CreateInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	c, err := h.campaigns.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.Created(w, c)
}

// GetCampaign returns a campaign with its linked mailbox ids.
func (h *Handlers) GetCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.campaigns.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, c)
}

type statusRequest struct {
	Status domain.CampaignStatus `json:"status"`
}

// UpdateCampaignStatus pauses, resumes or completes a campaign.
func (h *Handlers) UpdateCampaignStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	c, err := h.campaigns.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, c)
}

type linkRequest struct {
	MailboxIDs []string `json:"mailbox_ids"`
}

// LinkCampaignMailboxes adds mailboxes to a campaign's capacity.
func (h *Handlers) LinkCampaignMailboxes(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	c, err := h.campaigns.LinkMailboxes(r.Context(), chi.URLParam(r, "id"), req.MailboxIDs)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, c)
}
