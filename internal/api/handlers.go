package api

import (
	"errors"
	"net/http"

	"github.com/ignite/sendguard/internal/pkg/dedupe"
	"github.com/ignite/sendguard/internal/pkg/httputil"
	"github.com/ignite/sendguard/internal/service/audit"
	"github.com/ignite/sendguard/internal/service/campaign"
	"github.com/ignite/sendguard/internal/service/gate"
	"github.com/ignite/sendguard/internal/service/health"
	"github.com/ignite/sendguard/internal/service/lead"
	"github.com/ignite/sendguard/internal/service/routing"
)

// Handlers holds the services the HTTP layer calls.
type Handlers struct {
	health    *health.Service
	leads     *lead.Service
	routing   *routing.Resolver
	campaigns *campaign.Service
	gate      *gate.Gate
	audit     *audit.Trail
	dedupe    dedupe.Deduper
}

// Deps groups the constructor arguments. Dedupe may be nil, in which case
// webhook events are never treated as duplicates.
type Deps struct {
	Health    *health.Service
	Leads     *lead.Service
	Routing   *routing.Resolver
	Campaigns *campaign.Service
	Gate      *gate.Gate
	Audit     *audit.Trail
	Dedupe    dedupe.Deduper
}

// NewHandlers creates the handler set.
func NewHandlers(d Deps) *Handlers {
	return &Handlers{
		health:    d.Health,
		leads:     d.Leads,
		routing:   d.Routing,
		campaigns: d.Campaigns,
		gate:      d.Gate,
		audit:     d.Audit,
		dedupe:    d.Dedupe,
	}
}

// writeServiceError maps service sentinels onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, health.ErrValidation),
		errors.Is(err, lead.ErrValidation),
		errors.Is(err, routing.ErrValidation),
		errors.Is(err, campaign.ErrValidation),
		errors.Is(err, audit.ErrValidation):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, health.ErrNotFound),
		errors.Is(err, lead.ErrNotFound),
		errors.Is(err, routing.ErrNotFound),
		errors.Is(err, campaign.ErrNotFound):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, health.ErrStaleWrite),
		errors.Is(err, health.ErrConflict),
		errors.Is(err, campaign.ErrConflict),
		errors.Is(err, campaign.ErrInvalidTransition):
		httputil.Conflict(w, err.Error())
	default:
		httputil.InternalError(w, err)
	}
}
