package dnscheck

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"
	"github.com/ignite/sendguard/internal/pkg/logger"
)

// Route53API is the subset of the Route53 client the checker calls.
type Route53API interface {
	ListResourceRecordSets(ctx context.Context, in *route53.ListResourceRecordSetsInput, optFns ...func(*route53.Options)) (*route53.ListResourceRecordSetsOutput, error)
}

// Route53 checks records in a hosted zone we manage, which avoids waiting
// on public DNS propagation.
type Route53 struct {
	client       Route53API
	hostedZoneID string
	dkimSelector string
}

// NewRoute53 creates a hosted-zone checker.
func NewRoute53(client Route53API, hostedZoneID, dkimSelector string) *Route53 {
	return &Route53{client: client, hostedZoneID: hostedZoneID, dkimSelector: dkimSelector}
}

// NewRoute53FromConfig builds the Route53 client from aws config.
func NewRoute53FromConfig(cfg aws.Config, hostedZoneID, dkimSelector string) *Route53 {
	return NewRoute53(route53.NewFromConfig(cfg), hostedZoneID, dkimSelector)
}

// Validate implements the same checks as Resolver against the hosted zone.
func (r *Route53) Validate(ctx context.Context, domainName string) (bool, error) {
	for _, rec := range requiredRecords(domainName, r.dkimSelector) {
		values, err := r.txtValues(ctx, rec.name)
		if err != nil {
			return false, err
		}
		if !hasPrefix(values, rec.prefix) {
			logger.Info("route53 validation failed", "domain", domainName, "record", rec.name)
			return false, nil
		}
	}
	return true, nil
}

// txtValues reads the TXT record set for name. ListResourceRecordSets
// starts at the given name, so the first set returned must be checked.
func (r *Route53) txtValues(ctx context.Context, name string) ([]string, error) {
	fqdn := name + "."
	out, err := r.client.ListResourceRecordSets(ctx, &route53.ListResourceRecordSetsInput{
		HostedZoneId:    aws.String(r.hostedZoneID),
		StartRecordName: aws.String(fqdn),
		StartRecordType: types.RRTypeTxt,
		MaxItems:        aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("list record sets %s: %w", name, err)
	}

	var values []string
	for _, set := range out.ResourceRecordSets {
		if !strings.EqualFold(aws.ToString(set.Name), fqdn) || set.Type != types.RRTypeTxt {
			continue
		}
		for _, rr := range set.ResourceRecords {
			values = append(values, unquoteTXT(aws.ToString(rr.Value)))
		}
	}
	return values, nil
}

// unquoteTXT joins the quoted chunks Route53 stores long TXT values in.
func unquoteTXT(v string) string {
	v = strings.TrimSpace(v)
	v = strings.ReplaceAll(v, `" "`, "")
	return strings.Trim(v, `"`)
}
