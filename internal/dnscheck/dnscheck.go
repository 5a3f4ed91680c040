// Package dnscheck re-validates a sending domain's authentication records
// (SPF, DMARC and optionally DKIM) before it leaves quarantine.
package dnscheck

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/ignite/sendguard/internal/pkg/logger"
)

const (
	spfPrefix   = "v=spf1"
	dmarcPrefix = "v=DMARC1"
	dkimPrefix  = "v=DKIM1"
)

// record is one TXT record that has to exist for a domain to pass.
type record struct {
	name   string
	prefix string
}

func requiredRecords(domainName, dkimSelector string) []record {
	domainName = strings.TrimSuffix(strings.ToLower(domainName), ".")
	recs := []record{
		{name: domainName, prefix: spfPrefix},
		{name: "_dmarc." + domainName, prefix: dmarcPrefix},
	}
	if dkimSelector != "" {
		recs = append(recs, record{name: dkimSelector + "._domainkey." + domainName, prefix: dkimPrefix})
	}
	return recs
}

func hasPrefix(values []string, prefix string) bool {
	for _, v := range values {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(v)), strings.ToLower(prefix)) {
			return true
		}
	}
	return false
}

// TXTLookup resolves TXT records for a name.
type TXTLookup func(ctx context.Context, name string) ([]string, error)

// Resolver checks records through public DNS.
type Resolver struct {
	lookup       TXTLookup
	dkimSelector string
}

// NewResolver uses net.DefaultResolver. An empty selector skips DKIM.
func NewResolver(dkimSelector string) *Resolver {
	return &Resolver{lookup: net.DefaultResolver.LookupTXT, dkimSelector: dkimSelector}
}

// WithLookup replaces the TXT lookup.
func (r *Resolver) WithLookup(fn TXTLookup) *Resolver {
	r.lookup = fn
	return r
}

// Validate reports whether every required record is published. A missing
// name is a failed check, not an error.
func (r *Resolver) Validate(ctx context.Context, domainName string) (bool, error) {
	for _, rec := range requiredRecords(domainName, r.dkimSelector) {
		values, err := r.lookup(ctx, rec.name)
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			values, err = nil, nil
		}
		if err != nil {
			return false, fmt.Errorf("lookup TXT %s: %w", rec.name, err)
		}
		if !hasPrefix(values, rec.prefix) {
			logger.Info("dns validation failed", "domain", domainName, "record", rec.name)
			return false, nil
		}
	}
	return true, nil
}
