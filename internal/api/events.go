package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/ignite/sendguard/internal/domain"
	"github.com/ignite/sendguard/internal/pkg/httputil"
	"github.com/ignite/sendguard/internal/pkg/logger"
)

const (
	eventSent   = "sent"
	eventBounce = "bounce"
)

type eventRequest struct {
	EventID    string `json:"event_id"`
	Type       string `json:"type"`
	MailboxID  string `json:"mailbox_id"`
	CampaignID string `json:"campaign_id"`
}

type eventResponse struct {
	Duplicate         bool                 `json:"duplicate,omitempty"`
	MailboxID         string               `json:"mailbox_id,omitempty"`
	Status            domain.MailboxStatus `json:"status,omitempty"`
	WindowSentCount   int                  `json:"window_sent_count"`
	WindowBounceCount int                  `json:"window_bounce_count"`
}

// HandleEvent applies a sent or bounce webhook from the sending platform.
//
//	POST /api/events
func (h *Handlers) HandleEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	req.Type = strings.ToLower(strings.TrimSpace(req.Type))
	if req.Type != eventSent && req.Type != eventBounce {
		httputil.BadRequest(w, `type must be "sent" or "bounce"`)
		return
	}
	if req.MailboxID == "" {
		httputil.BadRequest(w, "mailbox_id is required")
		return
	}

	ctx := r.Context()
	if req.EventID != "" && h.dedupe != nil {
		first, err := h.dedupe.Claim(ctx, req.EventID)
		if err != nil {
			logger.Warn("event dedupe unavailable, processing anyway", "event_id", req.EventID, "error", err)
		} else if !first {
			httputil.OK(w, eventResponse{Duplicate: true})
			return
		}
	}

	var (
		m   *domain.Mailbox
		err error
	)
	if req.Type == eventSent {
		m, err = h.health.RecordSent(ctx, req.MailboxID, req.CampaignID)
	} else {
		m, err = h.health.RecordBounce(ctx, req.MailboxID, req.CampaignID)
	}
	if err != nil {
		if req.EventID != "" && h.dedupe != nil {
			// Let the vendor's redelivery count, even when the request
			// context is what failed.
			if ferr := h.dedupe.Forget(context.WithoutCancel(ctx), req.EventID); ferr != nil {
				logger.Warn("release event claim failed", "event_id", req.EventID, "error", ferr)
			}
		}
		writeServiceError(w, err)
		return
	}

	httputil.OK(w, eventResponse{
		MailboxID:         m.ID,
		Status:            m.Status,
		WindowSentCount:   m.WindowSentCount,
		WindowBounceCount: m.WindowBounceCount,
	})
}
