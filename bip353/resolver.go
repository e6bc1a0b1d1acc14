// Package bip353 resolves BIP353 DNS payment instructions: human readable
// addresses like "satoshi@lexe.app" mapped to "bitcoin:" URIs stored in
// DNSSEC-signed TXT records under user._bitcoin-payment.domain.
package bip353

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/miekg/dns"
)

const (
	// DefaultResolverAddr is the validating recursive resolver queried by
	// default.
	DefaultResolverAddr = "1.1.1.1:53"

	// DefaultTimeout bounds each DNS query.
	DefaultTimeout = time.Second * 5

	// bitcoinUriPrefix is the required prefix of a BIP353 TXT record.
	bitcoinUriPrefix = "bitcoin:"
)

// Config holds the resolver's tunable knobs.
type Config struct {
	// ResolverAddr is the "host:port" of a DNSSEC-validating recursive
	// resolver. If empty, DefaultResolverAddr is used.
	//
	// The AD bit set by this resolver is what we trust for DNSSEC
	// validation, so it must either be local or reached over a trusted
	// path.
	ResolverAddr string

	// Timeout bounds each DNS query. If zero, DefaultTimeout is used.
	Timeout time.Duration
}

// Resolver resolves BIP353 names to payment instruction URIs.
type Resolver struct {
	cfg    Config
	client *dns.Client
}

// NewResolver creates a BIP353 resolver, filling in defaults for unset
// config values.
func NewResolver(cfg Config) *Resolver {
	if cfg.ResolverAddr == "" {
		cfg.ResolverAddr = DefaultResolverAddr
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Resolver{
		cfg: cfg,
		client: &dns.Client{
			Net:     "tcp",
			Timeout: cfg.Timeout,
		},
	}
}

// ResolveURI looks up the payment instruction URI stored at the given fully
// qualified BIP353 name, e.g. "satoshi.user._bitcoin-payment.lexe.app.".
//
// Per BIP353, TXT records that don't begin with "bitcoin:" are ignored, and
// there must be exactly one record that does. The response must carry the AD
// bit, i.e. the resolver must have validated the DNSSEC chain.
func (r *Resolver) ResolveURI(ctx context.Context, fqdn string) (string,
	error) {

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(fqdn), dns.TypeTXT)
	msg.SetEdns0(4096, true)
	msg.AuthenticatedData = true

	log.Debugf("Querying TXT %v via %v", fqdn, r.cfg.ResolverAddr)

	resp, _, err := r.client.ExchangeContext(ctx, msg, r.cfg.ResolverAddr)
	if err != nil {
		return "", fmt.Errorf("BIP353 DNS query failed: %w", err)
	}

	if resp.Rcode != dns.RcodeSuccess {
		return "", fmt.Errorf("BIP353 DNS query for %v returned %v",
			fqdn, dns.RcodeToString[resp.Rcode])
	}

	// Without DNSSEC validation anyone on-path could swap out the
	// payment instructions.
	if !resp.AuthenticatedData {
		return "", fmt.Errorf("BIP353 record for %v is not DNSSEC "+
			"validated", fqdn)
	}

	var uris []string
	for _, rr := range resp.Answer {
		txt, ok := rr.(*dns.TXT)
		if !ok {
			continue
		}

		// Multiple character-strings within one TXT record are
		// concatenated, allowing URIs longer than 255 bytes.
		record := strings.Join(txt.Txt, "")

		if len(record) >= len(bitcoinUriPrefix) &&
			strings.EqualFold(
				record[:len(bitcoinUriPrefix)],
				bitcoinUriPrefix,
			) {

			uris = append(uris, record)
		}
	}

	switch len(uris) {
	case 0:
		return "", fmt.Errorf("no BIP353 payment instructions found "+
			"for %v", fqdn)

	case 1:
		return uris[0], nil

	default:
		return "", fmt.Errorf("found %d BIP353 payment instruction "+
			"records for %v, expected exactly one", len(uris),
			fqdn)
	}
}
