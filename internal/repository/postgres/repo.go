// Package postgres holds the PostgreSQL implementations of the service
// repositories. Mailbox and domain writes are compare-and-swap on a version
// column; every other table is plain CRUD.
package postgres

import (
	"github.com/ignite/sendguard/internal/service/audit"
	"github.com/ignite/sendguard/internal/service/campaign"
	"github.com/ignite/sendguard/internal/service/gate"
	"github.com/ignite/sendguard/internal/service/health"
	"github.com/ignite/sendguard/internal/service/lead"
	"github.com/ignite/sendguard/internal/service/recovery"
	"github.com/ignite/sendguard/internal/service/routing"
)

var (
	_ health.Repository   = (*HealthRepo)(nil)
	_ recovery.Repository = (*HealthRepo)(nil)
	_ campaign.Repository = (*CampaignRepo)(nil)
	_ gate.Repository     = (*CampaignRepo)(nil)
	_ lead.Repository     = (*LeadRepo)(nil)
	_ routing.Repository  = (*RoutingRepo)(nil)
	_ audit.Sink          = (*AuditRepo)(nil)
	_ audit.Reader        = (*AuditRepo)(nil)
)
