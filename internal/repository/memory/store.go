// Package memory implements every repository contract in process. It backs
// storage.type "memory" and the service tests.
package memory

import (
	"sync"

	"github.com/ignite/sendguard/internal/domain"
	"github.com/ignite/sendguard/internal/service/audit"
	"github.com/ignite/sendguard/internal/service/campaign"
	"github.com/ignite/sendguard/internal/service/gate"
	"github.com/ignite/sendguard/internal/service/health"
	"github.com/ignite/sendguard/internal/service/lead"
	"github.com/ignite/sendguard/internal/service/recovery"
	"github.com/ignite/sendguard/internal/service/routing"
)

var (
	_ health.Repository   = (*Store)(nil)
	_ recovery.Repository = (*Store)(nil)
	_ campaign.Repository = (*Store)(nil)
	_ lead.Repository     = (*Store)(nil)
	_ routing.Repository  = (*Store)(nil)
	_ gate.Repository     = (*Store)(nil)
	_ audit.Sink          = (*Store)(nil)
	_ audit.Reader        = (*Store)(nil)
)

// Store is a mutex-guarded in-memory database. All reads return copies.
type Store struct {
	mu sync.RWMutex

	mailboxes     map[string]*domain.Mailbox
	mailboxEmails map[string]string
	domains       map[string]*domain.SendingDomain
	domainNames   map[string]string

	campaigns map[string]*domain.Campaign
	links     map[string]map[string]struct{} // campaign id -> mailbox ids

	leads   map[string]*domain.Lead
	rules   map[string]*domain.RoutingRule
	ruleSeq int64

	audit []domain.AuditEntry
}

// New creates an empty store.
func New() *Store {
	return &Store{
		mailboxes:     make(map[string]*domain.Mailbox),
		mailboxEmails: make(map[string]string),
		domains:       make(map[string]*domain.SendingDomain),
		domainNames:   make(map[string]string),
		campaigns:     make(map[string]*domain.Campaign),
		links:         make(map[string]map[string]struct{}),
		leads:         make(map[string]*domain.Lead),
		rules:         make(map[string]*domain.RoutingRule),
	}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
