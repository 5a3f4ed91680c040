package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/ignite/sendguard/internal/domain"
	"github.com/ignite/sendguard/internal/pkg/httputil"
	"github.com/ignite/sendguard/internal/service/audit"
)

// CheckGate runs the execution gate without activating anything.
//
//	GET /api/gate/{campaignID}/{leadID}
func (h *Handlers) CheckGate(w http.ResponseWriter, r *http.Request) {
	d := h.gate.Check(r.Context(), chi.URLParam(r, "campaignID"), chi.URLParam(r, "leadID"))
	httputil.OK(w, d)
}

// ListAudit returns audit entries newest first.
//
//	GET /api/audit?entity_type=&entity_id=&limit=
func (h *Handlers) ListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := audit.Filter{
		EntityType: domain.AuditEntity(q.Get("entity_type")),
		EntityID:   q.Get("entity_id"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			httputil.BadRequest(w, "limit must be an integer")
			return
		}
		f.Limit = n
	}

	entries, err := h.audit.Query(r.Context(), f)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	httputil.OK(w, map[string]interface{}{"entries": entries, "total": len(entries)})
}
