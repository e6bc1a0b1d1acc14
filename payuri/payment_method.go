package payuri

import (
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/fn"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/lightningnetwork/lnd/zpay32"
)

// PaymentMethod is a single way to pay somebody, resolved to the point where
// there are no alternative methods left to choose between. A single scanned
// code (e.g. a unified BTC QR) may contain several discrete payment methods;
// resolution picks exactly one.
//
// PaymentMethod is a closed set: Onchain, Invoice, Offer and LnurlPayRequest.
// Every switch over the concrete types must be exhaustive with no default
// branch, so that adding a new method forces a review of each dispatch site.
type PaymentMethod interface {
	// SupportsNetwork reports whether this payment method can be paid on
	// the given network.
	SupportsNetwork(net *chaincfg.Params) bool

	// paymentMethod restricts implementations to this package.
	paymentMethod()
}

// Compile time assertions that our payment methods implement the
// PaymentMethod interface.
var (
	_ PaymentMethod = (*Onchain)(nil)
	_ PaymentMethod = (*Invoice)(nil)
	_ PaymentMethod = (*Offer)(nil)
	_ PaymentMethod = (*LnurlPayRequest)(nil)
)

// Onchain is an onchain payment method, usually parsed from a standalone
// bitcoin address or a BIP21 URI.
type Onchain struct {
	// Address is the decoded destination address.
	Address btcutil.Address

	// AddressStr is the original encoded address, preserved so that
	// requests to the wallet node round-trip the user's input exactly.
	AddressStr string

	// Amount is the payment amount, if the URI specified one.
	Amount fn.Option[btcutil.Amount]

	// Label is the recipient/payee name, if present.
	Label fn.Option[string]

	// Message is the payment description, if present.
	Message fn.Option[string]
}

// SupportsNetwork reports whether the address is valid for the given network.
func (o *Onchain) SupportsNetwork(net *chaincfg.Params) bool {
	return o.Address.IsForNet(net)
}

// relativePriority ranks this address against other onchain addresses when
// picking the best payment method. Higher is better.
func (o *Onchain) relativePriority() int {
	switch o.Address.(type) {
	// Native segwit spends are the cheapest, so prefer them.
	case *btcutil.AddressWitnessPubKeyHash:
		return 4

	case *btcutil.AddressWitnessScriptHash:
		return 4

	case *btcutil.AddressTaproot:
		return 3

	case *btcutil.AddressPubKeyHash:
		return 2

	case *btcutil.AddressScriptHash:
		return 2

	// Anything else is standard-but-unusual, rank it last.
	default:
		return 1
	}
}

func (o *Onchain) paymentMethod() {}

// Invoice is a parsed BOLT11 lightning invoice.
type Invoice struct {
	// Raw is the original bech32 encoded invoice string.
	Raw string

	// Decoded is the parsed invoice.
	Decoded *zpay32.Invoice
}

// ParseInvoice decodes a BOLT11 invoice string against the given network.
func ParseInvoice(net *chaincfg.Params, raw string) (*Invoice, error) {
	decoded, err := zpay32.Decode(raw, net)
	if err != nil {
		return nil, &ParseError{
			Reason: "invalid BOLT11 invoice",
			Err:    err,
		}
	}

	return &Invoice{
		Raw:     raw,
		Decoded: decoded,
	}, nil
}

// Amount returns the invoice's embedded amount in satoshis, if it has one.
// Amountless invoices let the payer choose the amount.
func (i *Invoice) Amount() fn.Option[btcutil.Amount] {
	if i.Decoded.MilliSat == nil {
		return fn.None[btcutil.Amount]()
	}

	return fn.Some(i.Decoded.MilliSat.ToSatoshis())
}

// AmountMsat returns the invoice's embedded amount in millisatoshis, if it
// has one.
func (i *Invoice) AmountMsat() fn.Option[lnwire.MilliSatoshi] {
	if i.Decoded.MilliSat == nil {
		return fn.None[lnwire.MilliSatoshi]()
	}

	return fn.Some(*i.Decoded.MilliSat)
}

// Description returns the payee-provided description, if the invoice carries
// one directly (rather than as a description hash).
func (i *Invoice) Description() fn.Option[string] {
	if i.Decoded.Description == nil {
		return fn.None[string]()
	}

	return fn.Some(*i.Decoded.Description)
}

// PayeePubKey returns the destination node's public key, if the invoice
// included an explicit destination.
func (i *Invoice) PayeePubKey() *btcec.PublicKey {
	return i.Decoded.Destination
}

// ExpiresAt returns the absolute time at which the invoice expires.
func (i *Invoice) ExpiresAt() time.Time {
	return i.Decoded.Timestamp.Add(i.Decoded.Expiry())
}

// IsExpired reports whether the invoice has expired as of the given time.
func (i *Invoice) IsExpired(now time.Time) bool {
	return now.After(i.ExpiresAt())
}

// SupportsNetwork reports whether the invoice was issued for the given
// network.
func (i *Invoice) SupportsNetwork(net *chaincfg.Params) bool {
	return i.Decoded.Net.Name == net.Name
}

func (i *Invoice) paymentMethod() {}

// Offer is a BOLT12 lightning offer. Offers are only lightly parsed: the
// human readable prefix and character set are validated, but the contained
// TLV stream is passed through to the wallet node opaquely, which owns the
// full decode. Amount and description are only populated when a wrapping URI
// supplied them out of band.
type Offer struct {
	// Raw is the original bech32 (checksum-less) encoded offer string.
	Raw string

	// Amount is the offer's amount in satoshis, when known.
	Amount fn.Option[btcutil.Amount]

	// Description is the offer description, when known.
	Description fn.Option[string]
}

// offerHrp is the human readable prefix for BOLT12 offers.
const offerHrp = "lno1"

// bech32Charset is the set of characters permitted in the data part of a
// bech32 string.
const bech32Charset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

// ParseOffer performs a light syntactic validation of a BOLT12 offer string.
func ParseOffer(raw string) (*Offer, error) {
	// Offers are case-insensitive but must not mix cases.
	lower := strings.ToLower(raw)
	if raw != lower && raw != strings.ToUpper(raw) {
		return nil, &ParseError{Reason: "offer mixes upper and " +
			"lower case"}
	}

	if !strings.HasPrefix(lower, offerHrp) {
		return nil, &ParseError{Reason: "not a BOLT12 offer"}
	}

	data := lower[len(offerHrp):]
	if len(data) == 0 {
		return nil, &ParseError{Reason: "offer has empty data part"}
	}

	// BOLT12 drops the bech32 checksum, so we can only validate the
	// character set here.
	for _, r := range data {
		if !strings.ContainsRune(bech32Charset, r) {
			return nil, &ParseError{
				Reason: "offer contains invalid character",
			}
		}
	}

	return &Offer{
		Raw:         raw,
		Amount:      fn.None[btcutil.Amount](),
		Description: fn.None[string](),
	}, nil
}

// SupportsNetwork always reports true: without a full TLV decode the offer's
// chain hash is unknowable, so network validation is deferred to the wallet
// node's preflight.
func (o *Offer) SupportsNetwork(net *chaincfg.Params) bool {
	return true
}

func (o *Offer) paymentMethod() {}

// LnurlPayRequest is a validated LUD-06 payRequest, fetched from an LNURL-pay
// endpoint or a Lightning Address. Unlike the other payment methods it
// expresses an amount *range* rather than an optional point amount.
type LnurlPayRequest struct {
	// Callback is the URL to request an invoice from.
	Callback string

	// MinSendable is the minimum amount the service will accept.
	MinSendable lnwire.MilliSatoshi

	// MaxSendable is the maximum amount the service will accept.
	MaxSendable lnwire.MilliSatoshi

	// Metadata is the parsed payRequest metadata.
	Metadata LnurlPayMetadata

	// CommentAllowed is the maximum accepted comment length in bytes, if
	// the service accepts payer comments at all (LUD-12). Services that
	// don't advertise this field have no way to receive a comment.
	CommentAllowed fn.Option[uint32]
}

// FixedAmount returns the request's amount when the sendable range pins it to
// a single value, i.e. min == max, and that value is a whole number of
// satoshis. Otherwise the payer must choose an amount within the range.
func (r *LnurlPayRequest) FixedAmount() fn.Option[btcutil.Amount] {
	if r.MinSendable != r.MaxSendable {
		return fn.None[btcutil.Amount]()
	}

	if r.MinSendable%1000 != 0 {
		return fn.None[btcutil.Amount]()
	}

	return fn.Some(r.MinSendable.ToSatoshis())
}

// SupportsNetwork always reports true; LNURL services are network-agnostic
// at this stage, and the invoice they return is network-checked when it is
// decoded.
func (r *LnurlPayRequest) SupportsNetwork(net *chaincfg.Params) bool {
	return true
}

func (r *LnurlPayRequest) paymentMethod() {}

// LnurlPayMetadata is the parsed payRequest metadata array (LUD-06/LUD-16).
type LnurlPayMetadata struct {
	// Raw is the original metadata string; its sha256 hash must match the
	// description hash of the invoice the service returns.
	Raw string

	// DescriptionHash is sha256(Raw).
	DescriptionHash [32]byte

	// Description is the required text/plain entry.
	Description string

	// LongDescription is the optional text/long-desc entry.
	LongDescription fn.Option[string]

	// Identifier is the optional text/identifier entry (LUD-16).
	Identifier fn.Option[string]

	// Email is the optional text/email entry (LUD-16).
	Email fn.Option[string]
}

// SendToHint returns a human readable "send to" identity for the service,
// preferring the internet identifier over the email entry.
func (m *LnurlPayMetadata) SendToHint() fn.Option[string] {
	if m.Identifier.IsSome() {
		return m.Identifier
	}

	return m.Email
}
