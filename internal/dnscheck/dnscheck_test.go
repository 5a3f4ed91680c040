package dnscheck

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeLookup(records map[string][]string) TXTLookup {
	return func(_ context.Context, name string) ([]string, error) {
		v, ok := records[name]
		if !ok {
			return nil, &net.DNSError{Err: "no such host", Name: name, IsNotFound: true}
		}
		return v, nil
	}
}

func TestResolver_Validate(t *testing.T) {
	good := map[string][]string{
		"acme.io":                   {"google-site-verification=x", "v=spf1 include:_spf.google.com ~all"},
		"_dmarc.acme.io":            {"v=DMARC1; p=quarantine"},
		"mail._domainkey.acme.io":   {"v=DKIM1; k=rsa; p=MIGf"},
		"_dmarc.nospf.io":           {"v=DMARC1; p=none"},
		"nodmarc.io":                {"v=spf1 -all"},
		"mail._domainkey.nodkim.io": {},
		"nodkim.io":                 {"v=spf1 -all"},
		"_dmarc.nodkim.io":          {"v=DMARC1; p=none"},
	}

	tests := []struct {
		name     string
		domain   string
		selector string
		want     bool
	}{
		{"all records", "acme.io", "mail", true},
		{"trailing dot and case", "ACME.io.", "", true},
		{"missing spf", "nospf.io", "", false},
		{"missing dmarc", "nodmarc.io", "", false},
		{"dkim required but empty", "nodkim.io", "mail", false},
		{"dkim not required", "nodkim.io", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(tt.selector).WithLookup(fakeLookup(good))
			ok, err := r.Validate(context.Background(), tt.domain)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestResolver_ValidateLookupError(t *testing.T) {
	r := NewResolver("").WithLookup(func(context.Context, string) ([]string, error) {
		return nil, &net.DNSError{Err: "i/o timeout", IsTimeout: true}
	})
	ok, err := r.Validate(context.Background(), "acme.io")
	assert.False(t, ok)
	assert.Error(t, err)
}

type fakeRoute53 struct {
	sets map[string]types.ResourceRecordSet
	err  error
}

func (f *fakeRoute53) ListResourceRecordSets(_ context.Context, in *route53.ListResourceRecordSetsInput, _ ...func(*route53.Options)) (*route53.ListResourceRecordSetsOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := &route53.ListResourceRecordSetsOutput{}
	if set, ok := f.sets[aws.ToString(in.StartRecordName)]; ok {
		out.ResourceRecordSets = []types.ResourceRecordSet{set}
	} else {
		// The API returns the next set in the zone instead of nothing.
		out.ResourceRecordSets = []types.ResourceRecordSet{{
			Name: aws.String("zzz.acme.io."), Type: types.RRTypeTxt,
			ResourceRecords: []types.ResourceRecord{{Value: aws.String(`"v=spf1 -all"`)}},
		}}
	}
	return out, nil
}

func txtSet(name string, values ...string) types.ResourceRecordSet {
	set := types.ResourceRecordSet{Name: aws.String(name), Type: types.RRTypeTxt}
	for _, v := range values {
		set.ResourceRecords = append(set.ResourceRecords, types.ResourceRecord{Value: aws.String(v)})
	}
	return set
}

func TestRoute53_Validate(t *testing.T) {
	fake := &fakeRoute53{sets: map[string]types.ResourceRecordSet{
		"acme.io.":        txtSet("acme.io.", `"v=spf1 include:amazonses.com" " ~all"`),
		"_dmarc.acme.io.": txtSet("_dmarc.acme.io.", `"v=DMARC1; p=reject"`),
		"other.io.":       txtSet("other.io.", `"v=spf1 -all"`),
	}}
	r := NewRoute53(fake, "Z123", "")

	ok, err := r.Validate(context.Background(), "acme.io")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.Validate(context.Background(), "other.io")
	require.NoError(t, err)
	assert.False(t, ok, "dmarc lookup returned a different record set")
}

func TestRoute53_ValidateAPIError(t *testing.T) {
	r := NewRoute53(&fakeRoute53{err: errors.New("throttled")}, "Z123", "")
	_, err := r.Validate(context.Background(), "acme.io")
	assert.Error(t, err)
}

func TestUnquoteTXT(t *testing.T) {
	assert.Equal(t, "v=spf1 include:a ~all", unquoteTXT(`"v=spf1 include:a" " ~all"`))
	assert.Equal(t, "plain", unquoteTXT("plain"))
}
