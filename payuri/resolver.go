package payuri

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
)

// LnurlFetcher fetches and validates an LNURL-pay payRequest from an https
// endpoint.
type LnurlFetcher interface {
	// GetPayRequest fetches the payRequest served at the given URL.
	GetPayRequest(ctx context.Context,
		url string) (*LnurlPayRequest, error)
}

// Bip353Resolver resolves a BIP353 DNS name into the "bitcoin:" URI stored
// in its TXT record.
type Bip353Resolver interface {
	// ResolveURI looks up the payment instruction URI for the given fully
	// qualified BIP353 name.
	ResolveURI(ctx context.Context, fqdn string) (string, error)
}

// Resolver resolves raw payment codes into a single best payment method.
type Resolver struct {
	cfg ResolverConfig
}

// ResolverConfig bundles the network collaborators a Resolver needs for the
// payment codes that can't be resolved offline.
type ResolverConfig struct {
	// Lnurl resolves LNURL endpoints and Lightning Addresses. Required
	// to resolve LNURLs; if nil those codes fail resolution.
	Lnurl LnurlFetcher

	// Bip353 resolves BIP353 DNS payment instructions. If nil, email-like
	// addresses resolve via Lightning Address only.
	Bip353 Bip353Resolver
}

// NewResolver creates a resolver with the given collaborators.
func NewResolver(cfg ResolverConfig) *Resolver {
	return &Resolver{cfg: cfg}
}

// ResolveBest parses a raw payment code and resolves it into the single most
// preferable payment method that is valid for the given network.
//
// Lightning methods are preferred over onchain: a BOLT11 invoice wins over a
// BOLT12 offer, which wins over an LNURL-pay request, which wins over any
// onchain address. Among onchain addresses, cheaper-to-spend address types
// win.
func (r *Resolver) ResolveBest(ctx context.Context, net *chaincfg.Params,
	raw string) (PaymentMethod, error) {

	uri, err := Parse(net, raw)
	if err != nil {
		return nil, err
	}

	methods, err := r.resolveMethods(ctx, net, uri)
	if err != nil {
		return nil, err
	}

	// Filter out all methods that aren't valid for our current network,
	// e.g. ignore testnet addresses when we're configured for mainnet.
	valid := methods[:0]
	for _, method := range methods {
		if method.SupportsNetwork(net) {
			valid = append(valid, method)
		}
	}

	if len(valid) == 0 {
		return nil, &ErrNoMethodForNetwork{Network: net.Name}
	}

	best := valid[0]
	for _, method := range valid[1:] {
		if methodPriority(method) > methodPriority(best) {
			best = method
		}
	}

	log.Debugf("Resolved payment code into %T (of %d candidate methods)",
		best, len(valid))

	return best, nil
}

// resolveMethods expands a parsed payment URI into its candidate payment
// methods, performing network round-trips for the variants that need them.
func (r *Resolver) resolveMethods(ctx context.Context, net *chaincfg.Params,
	uri PaymentUri) ([]PaymentMethod, error) {

	// The offline variants flatten directly.
	if methods, ok := Flatten(uri); ok {
		return methods, nil
	}

	switch u := uri.(type) {
	case *EmailLikeAddress:
		return r.resolveEmailLike(ctx, net, u)

	case *Lnurl:
		payReq, err := r.fetchPayRequest(ctx, u.URL)
		if err != nil {
			return nil, err
		}
		return []PaymentMethod{payReq}, nil

	default:
		panic("unreachable: non-exhaustive PaymentUri switch")
	}
}

// resolveEmailLike resolves an email-like payment address, preferring BIP353
// payment instructions when they exist and falling back to Lightning Address
// unless the input demanded BIP353 with a leading ₿.
func (r *Resolver) resolveEmailLike(ctx context.Context, net *chaincfg.Params,
	addr *EmailLikeAddress) ([]PaymentMethod, error) {

	var bip353Err error
	if r.cfg.Bip353 != nil {
		rawUri, err := r.cfg.Bip353.ResolveURI(ctx, addr.Bip353Fqdn())
		if err == nil {
			parsed, err := Parse(net, rawUri)
			if err != nil {
				return nil, fmt.Errorf("BIP353 record for %v "+
					"contains invalid payment URI: %w",
					addr, err)
			}

			bip321, ok := parsed.(*Bip321Uri)
			if !ok {
				return nil, fmt.Errorf("BIP353 record for %v "+
					"is not a bitcoin: URI", addr)
			}

			methods, _ := Flatten(bip321)
			return methods, nil
		}

		bip353Err = err
		log.Debugf("BIP353 resolution for %v failed, falling back "+
			"to Lightning Address: %v", addr, err)
	}

	if addr.Bip353Only {
		if bip353Err != nil {
			return nil, fmt.Errorf("could not resolve BIP353 "+
				"address %v: %w", addr, bip353Err)
		}
		return nil, fmt.Errorf("could not resolve BIP353 address "+
			"%v: no DNS resolver configured", addr)
	}

	payReq, err := r.fetchPayRequest(ctx, addr.LightningAddressUrl())
	if err != nil {
		return nil, fmt.Errorf("could not resolve Lightning Address "+
			"%v: %w", addr, err)
	}

	return []PaymentMethod{payReq}, nil
}

// fetchPayRequest fetches an LNURL payRequest if an LNURL collaborator is
// configured.
func (r *Resolver) fetchPayRequest(ctx context.Context,
	url string) (*LnurlPayRequest, error) {

	if r.cfg.Lnurl == nil {
		return nil, fmt.Errorf("no LNURL client configured")
	}

	return r.cfg.Lnurl.GetPayRequest(ctx, url)
}

// methodPriority ranks payment methods for best-method selection. Higher is
// better.
func methodPriority(method PaymentMethod) int {
	switch m := method.(type) {
	case *Invoice:
		return 40

	case *Offer:
		return 30

	case *LnurlPayRequest:
		return 20

	case *Onchain:
		return 10 + m.relativePriority()

	default:
		panic("unreachable: non-exhaustive PaymentMethod switch")
	}
}
