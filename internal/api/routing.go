package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ignite/sendguard/internal/pkg/httputil"
	"github.com/ignite/sendguard/internal/service/routing"
)

// ListRoutingRules returns rules in evaluation order.
func (h *Handlers) ListRoutingRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.routing.ListRules(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"rules": rules, "total": len(rules)})
}

// CreateRoutingRule adds a rule.
func (h *Handlers) CreateRoutingRule(w http.ResponseWriter, r *http.Request) {
	var in routing.RuleInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	rule, err := h.routing.CreateRule(r.Context(), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.Created(w, rule)
}

// DeleteRoutingRule removes a rule.
func (h *Handlers) DeleteRoutingRule(w http.ResponseWriter, r *http.Request) {
	if err := h.routing.DeleteRule(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.NoContent(w)
}
