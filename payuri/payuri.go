// Package payuri parses and resolves bitcoin/lightning payment codes: onchain
// addresses, BOLT11 invoices, BOLT12 offers, LNURLs, email-like payment
// addresses (BIP353 / Lightning Address), and the BIP21 "bitcoin:" and
// "lightning:" URIs that wrap them.
//
// Parsing is intentionally permissive: inputs that are not strictly
// well-formed are accepted where the intent is unambiguous, matching the
// behavior of other widely used wallet parsers.
package payuri

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/fn"
)

// maxInputLen is the maximum input length we will attempt to parse, 8 KiB.
const maxInputLen = 8 << 10

// PaymentUri is a parsed payment code, prior to resolution. Some variants
// (email-like addresses, LNURLs) require network round-trips before they
// yield concrete payment methods; Flatten handles the rest.
//
// PaymentUri is a closed set: *Bip321Uri, *LightningUri, *Invoice, *Offer,
// *Onchain, *EmailLikeAddress and *Lnurl.
type PaymentUri interface {
	// paymentUri restricts implementations to this package.
	paymentUri()
}

// Compile time assertions that all variants implement PaymentUri.
var (
	_ PaymentUri = (*Bip321Uri)(nil)
	_ PaymentUri = (*LightningUri)(nil)
	_ PaymentUri = (*Invoice)(nil)
	_ PaymentUri = (*Offer)(nil)
	_ PaymentUri = (*Onchain)(nil)
	_ PaymentUri = (*EmailLikeAddress)(nil)
	_ PaymentUri = (*Lnurl)(nil)
)

// Bip321Uri is a parsed BIP21/BIP321 "bitcoin:" URI. It can describe an
// onchain payment plus an optional BOLT11 invoice and/or BOLT12 offer.
type Bip321Uri struct {
	// Onchain is the onchain portion of the URI, if it had an address.
	Onchain *Onchain

	// Invoice is the invoice from the "lightning" parameter, if present
	// and valid for the parse network.
	Invoice *Invoice

	// Offer is the offer from the "lno" parameter, if present.
	Offer *Offer
}

func (u *Bip321Uri) paymentUri() {}

// LightningUri is a parsed "lightning:" URI containing a BOLT11 invoice or a
// BOLT12 offer.
type LightningUri struct {
	// Invoice is the contained invoice, if the body was one.
	Invoice *Invoice

	// Offer is the contained offer, if the body was one.
	Offer *Offer
}

func (u *LightningUri) paymentUri() {}

func (i *Invoice) paymentUri() {}

func (o *Offer) paymentUri() {}

func (o *Onchain) paymentUri() {}

// EmailLikeAddress is a payment address of the form "username@domain",
// optionally prefixed with ₿. It can resolve via BIP353 DNS payment
// instructions, or via Lightning Address (LUD-16) when the prefix is absent.
type EmailLikeAddress struct {
	// Username is the local part, lowercased.
	Username string

	// Domain is the domain part, lowercased.
	Domain string

	// Bip353Only is true when the input had a leading ₿, which implies
	// the address must resolve via BIP353 only.
	Bip353Only bool
}

func (e *EmailLikeAddress) paymentUri() {}

// Bip353Fqdn returns the fully qualified DNS name holding this address's
// BIP353 payment instructions.
func (e *EmailLikeAddress) Bip353Fqdn() string {
	return e.Username + ".user._bitcoin-payment." + e.Domain + "."
}

// LightningAddressUrl returns the LUD-16 well-known URL for this address.
func (e *EmailLikeAddress) LightningAddressUrl() string {
	return "https://" + e.Domain + "/.well-known/lnurlp/" + e.Username
}

// String displays the address as the user would write it.
func (e *EmailLikeAddress) String() string {
	if e.Bip353Only {
		return "₿" + e.Username + "@" + e.Domain
	}

	return e.Username + "@" + e.Domain
}

// Lnurl is a decoded LNURL endpoint, not yet resolved into a payRequest.
type Lnurl struct {
	// URL is the https endpoint to fetch.
	URL string
}

func (l *Lnurl) paymentUri() {}

// Parse parses a raw payment code against the given network. It never
// guesses: input that doesn't match any known payment code shape is an
// error, and a code that parses but targets a different network is also an
// error.
func Parse(net *chaincfg.Params, raw string) (PaymentUri, error) {
	if len(raw) > maxInputLen {
		return nil, ErrUriTooLong
	}

	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, ErrUnknownCode
	}

	// Try parsing a URI-looking thing first, e.g. "bitcoin:bc1q...",
	// "lightning:lnbc..." or "lnurlp://domain.com/path".
	if uri, err := url.Parse(s); err == nil && uri.Scheme != "" {
		switch {
		case strings.EqualFold(uri.Scheme, "bitcoin"):
			return parseBip321Uri(net, uri)

		// LUD-17: "lnurlp://domain.com/path" is an LNURL-pay endpoint
		// with the scheme swapped out.
		case strings.EqualFold(uri.Scheme, "lnurlp"):
			return parseLud17Uri(uri)

		// "https://service.com?lightning=lnurl1..." is a common way
		// to make LNURLs clickable.
		case strings.EqualFold(uri.Scheme, "https"):
			if bech := httpLightningParam(uri); bech != "" {
				return DecodeLnurl(bech)
			}
			return nil, ErrUnknownScheme

		case strings.EqualFold(uri.Scheme, "lightning"):
			// "lightning:lnurl1..." must be checked before the
			// invoice/offer body.
			body := uri.Opaque
			if hasLnurlHrpPrefix(body) {
				return DecodeLnurl(body)
			}
			return parseLightningUri(net, uri)
		}

		// Only treat the input as a URI if the scheme part looks like
		// one; "satoshi@lexe.app:8080"-ish inputs fall through.
		if schemeLooksLikeUri(uri.Scheme) {
			return nil, ErrUnknownScheme
		}
	}

	// Email-like payment addresses: "satoshi@lexe.app", "₿satoshi@lexe.app".
	if username, domain, ok := matchEmailLike(s); ok {
		return parseEmailLike(username, domain)
	}

	// Standalone BOLT11 invoice, e.g. "lnbc1pvjlue...".
	if hasInvoiceHrpPrefix(s) {
		return ParseInvoice(net, s)
	}

	// Standalone BOLT12 offer, e.g. "lno1pqps7sj...".
	if hasOfferHrpPrefix(s) {
		return ParseOffer(s)
	}

	// Standalone bech32 LNURL, e.g. "lnurl1dp68g...".
	if hasLnurlHrpPrefix(s) {
		return DecodeLnurl(s)
	}

	// Finally, try a standalone onchain address. There is no reliable way
	// to detect legacy base58 addresses ahead of time, so we just try.
	if addr, err := btcutil.DecodeAddress(s, net); err == nil {
		if addr.IsForNet(net) {
			return &Onchain{
				Address:    addr,
				AddressStr: s,
				Amount:     fn.None[btcutil.Amount](),
				Label:      fn.None[string](),
				Message:    fn.None[string](),
			}, nil
		}
	}

	return nil, ErrUnknownCode
}

// Flatten returns the URI's component payment methods, or false when the URI
// requires further network resolution (email-like addresses and LNURLs).
func Flatten(uri PaymentUri) ([]PaymentMethod, bool) {
	switch u := uri.(type) {
	case *Bip321Uri:
		var methods []PaymentMethod
		if u.Invoice != nil {
			methods = append(methods, flattenInvoice(u.Invoice)...)
		}
		if u.Offer != nil {
			methods = append(methods, u.Offer)
		}
		if u.Onchain != nil {
			methods = append(methods, u.Onchain)
		}
		return methods, true

	case *LightningUri:
		var methods []PaymentMethod
		if u.Invoice != nil {
			methods = append(methods, flattenInvoice(u.Invoice)...)
		}
		if u.Offer != nil {
			methods = append(methods, u.Offer)
		}
		return methods, true

	case *Invoice:
		return flattenInvoice(u), true

	case *Offer:
		return []PaymentMethod{u}, true

	case *Onchain:
		return []PaymentMethod{u}, true

	case *EmailLikeAddress:
		return nil, false

	case *Lnurl:
		return nil, false

	default:
		panic("unreachable: non-exhaustive PaymentUri switch")
	}
}

// flattenInvoice returns the invoice itself plus an onchain method for its
// fallback address, if it carries one.
func flattenInvoice(invoice *Invoice) []PaymentMethod {
	methods := []PaymentMethod{invoice}

	if addr := invoice.Decoded.FallbackAddr; addr != nil {
		methods = append(methods, &Onchain{
			Address:    addr,
			AddressStr: addr.String(),
			Amount:     invoice.Amount(),
			Label:      fn.None[string](),
			Message:    invoice.Description(),
		})
	}

	return methods
}

// parseBip321Uri parses the body and query parameters of a "bitcoin:" URI.
// Unknown parameters are ignored, but required ("req-") parameters we don't
// understand must fail the whole parse per BIP21.
func parseBip321Uri(net *chaincfg.Params, uri *url.URL) (*Bip321Uri, error) {
	out := &Bip321Uri{}

	// The address lives in the opaque part: "bitcoin:bc1q...?amount=1".
	// Some encoders emit "bitcoin://bc1q..." instead.
	addrStr := uri.Opaque
	if addrStr == "" {
		addrStr = uri.Host
	}

	var (
		amount  = fn.None[btcutil.Amount]()
		label   = fn.None[string]()
		message = fn.None[string]()
	)

	params, err := url.ParseQuery(uri.RawQuery)
	if err != nil {
		return nil, &ParseError{
			Reason: "invalid bitcoin URI parameters",
			Err:    err,
		}
	}

	for key, values := range params {
		if len(values) == 0 {
			continue
		}
		value := values[0]

		switch strings.ToLower(key) {
		case "amount":
			// The BIP21 amount is in whole BTC, e.g. "0.0005".
			if btc, err := strconv.ParseFloat(value, 64); err == nil {
				if amt, err := btcutil.NewAmount(btc); err == nil && amt > 0 {
					amount = fn.Some(amt)
				}
			}

		case "label":
			label = fn.Some(value)

		case "message":
			message = fn.Some(value)

		case "lightning":
			// Skip, rather than fail on, lightning params that
			// don't decode for our network: the onchain portion
			// may still be payable.
			if invoice, err := ParseInvoice(net, value); err == nil {
				out.Invoice = invoice
			}

		case "lno":
			if offer, err := ParseOffer(value); err == nil {
				out.Offer = offer
			}

		default:
			if strings.HasPrefix(strings.ToLower(key), "req-") {
				return nil, &ParseError{
					Reason: "bitcoin URI requires " +
						"unsupported parameter: " + key,
				}
			}
		}
	}

	if addrStr != "" {
		addr, err := btcutil.DecodeAddress(addrStr, net)
		if err != nil || !addr.IsForNet(net) {
			return nil, &ParseError{
				Reason: "invalid bitcoin address in URI",
				Err:    err,
			}
		}

		out.Onchain = &Onchain{
			Address:    addr,
			AddressStr: addrStr,
			Amount:     amount,
			Label:      label,
			Message:    message,
		}
	}

	if out.Onchain == nil && out.Invoice == nil && out.Offer == nil {
		return nil, &ParseError{
			Reason: "bitcoin URI contains no payment method",
		}
	}

	return out, nil
}

// parseLightningUri parses the body of a "lightning:" URI into an invoice or
// an offer.
func parseLightningUri(net *chaincfg.Params, uri *url.URL) (*LightningUri,
	error) {

	body := uri.Opaque
	if body == "" {
		body = uri.Host
	}

	switch {
	case hasInvoiceHrpPrefix(body):
		invoice, err := ParseInvoice(net, body)
		if err != nil {
			return nil, err
		}
		return &LightningUri{Invoice: invoice}, nil

	case hasOfferHrpPrefix(body):
		offer, err := ParseOffer(body)
		if err != nil {
			return nil, err
		}
		return &LightningUri{Offer: offer}, nil

	default:
		return nil, &ParseError{
			Reason: "lightning URI contains no invoice or offer",
		}
	}
}

// parseLud17Uri converts a "lnurlp://" URI into its https endpoint.
func parseLud17Uri(uri *url.URL) (*Lnurl, error) {
	if uri.Host == "" {
		return nil, &ParseError{Reason: "lnurlp URI has no host"}
	}

	endpoint := *uri
	endpoint.Scheme = "https"

	return &Lnurl{URL: endpoint.String()}, nil
}

// httpLightningParam extracts a bech32 LNURL from the "lightning" query
// parameter of an http(s) URI, if present.
func httpLightningParam(uri *url.URL) string {
	value := uri.Query().Get("lightning")
	if hasLnurlHrpPrefix(value) {
		return value
	}

	return ""
}

// matchEmailLike reports whether the input has the shape "username@domain"
// and splits it. The username must be non-empty and must not itself contain
// whitespace or another '@'.
func matchEmailLike(s string) (string, string, bool) {
	at := strings.IndexByte(s, '@')
	if at <= 0 || at == len(s)-1 {
		return "", "", false
	}

	username, domain := s[:at], s[at+1:]
	if strings.ContainsAny(username, " \t") ||
		strings.ContainsRune(domain, '@') ||
		!strings.Contains(domain, ".") {

		return "", "", false
	}

	return username, domain, true
}

// bip353Prefixes are the accepted encodings of the leading ₿ character.
var bip353Prefixes = []string{"₿", "%E2%82%BF", "%e2%82%bf"}

// parseEmailLike validates the parts of an email-like payment address.
func parseEmailLike(username, domain string) (*EmailLikeAddress, error) {
	bip353Only := false
	for _, prefix := range bip353Prefixes {
		if strings.HasPrefix(username, prefix) {
			username = strings.TrimPrefix(username, prefix)
			bip353Only = true
			break
		}
	}

	username = strings.ToLower(username)
	domain = strings.ToLower(strings.TrimSuffix(domain, "."))

	if !validDnsLabel(username) {
		return nil, &ParseError{
			Reason: "invalid username in payment address",
		}
	}
	if !validDnsName(domain) {
		return nil, &ParseError{
			Reason: "invalid domain in payment address",
		}
	}

	return &EmailLikeAddress{
		Username:   username,
		Domain:     domain,
		Bip353Only: bip353Only,
	}, nil
}

// validDnsLabel reports whether the string is a valid lowercased DNS label,
// additionally permitting the LUD-16 '+tag', '_', and '.' username chars.
func validDnsLabel(label string) bool {
	if label == "" || len(label) > 63 {
		return false
	}

	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.' || r == '+':
		default:
			return false
		}
	}

	return true
}

// validDnsName reports whether the string is a valid lowercased DNS name.
func validDnsName(name string) bool {
	if name == "" || len(name) > 253 {
		return false
	}

	for _, label := range strings.Split(name, ".") {
		if label == "" || len(label) > 63 {
			return false
		}
		for _, r := range label {
			switch {
			case r >= 'a' && r <= 'z':
			case r >= '0' && r <= '9':
			case r == '-':
			default:
				return false
			}
		}
	}

	return true
}

// schemeLooksLikeUri reports whether a parsed scheme is plausibly an actual
// URI scheme rather than, say, the username of an email-like address that
// happens to contain a colon.
func schemeLooksLikeUri(scheme string) bool {
	for _, r := range scheme {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '+' || r == '-' || r == '.':
		default:
			return false
		}
	}

	return scheme != ""
}

// invoiceHrpPrefixes are the known BOLT11 human readable prefixes, one per
// network.
var invoiceHrpPrefixes = []string{"lnbc", "lntbs", "lntb", "lnbcrt", "lnsb"}

// hasInvoiceHrpPrefix reports whether the input looks like a BOLT11 invoice.
func hasInvoiceHrpPrefix(s string) bool {
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "lnurl") {
		return false
	}

	for _, prefix := range invoiceHrpPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}

	return false
}

// hasOfferHrpPrefix reports whether the input looks like a BOLT12 offer.
func hasOfferHrpPrefix(s string) bool {
	return strings.HasPrefix(strings.ToLower(s), offerHrp)
}

// hasLnurlHrpPrefix reports whether the input looks like a bech32 LNURL.
func hasLnurlHrpPrefix(s string) bool {
	return strings.HasPrefix(strings.ToLower(s), "lnurl1")
}
