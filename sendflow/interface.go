package sendflow

import (
	"context"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/fn"
	"github.com/lightningnetwork/lnd/lnwire"

	"github.com/lexe-app/lexe-public-sub000/payuri"
)

// Resolver classifies a raw payment string into a single payment method.
type Resolver interface {
	// ResolveBest resolves a raw payment code into the single most
	// preferable payment method valid for the given network.
	ResolveBest(ctx context.Context, net *chaincfg.Params,
		raw string) (payuri.PaymentMethod, error)
}

// A compile time check that the payuri resolver satisfies the Resolver
// interface.
var _ Resolver = (*payuri.Resolver)(nil)

// LnurlResolver resolves an LNURL payRequest and a chosen amount into a
// concrete BOLT11 invoice.
type LnurlResolver interface {
	// ResolvePayRequest requests an invoice for the given amount from
	// the payRequest's callback, forwarding the optional payer comment,
	// and validates the result.
	ResolvePayRequest(ctx context.Context, net *chaincfg.Params,
		payReq *payuri.LnurlPayRequest, amount lnwire.MilliSatoshi,
		comment fn.Option[string]) (*payuri.Invoice, error)
}

// NodeClient is the wallet node's payment interface: non-committing
// feasibility checks (preflight) and actual submission (pay). The node owns
// balances, routing, transaction construction and signing; this library only
// orchestrates requests against it.
type NodeClient interface {
	// PreflightPayOnchain estimates fees for an onchain send at each
	// confirmation priority without committing to send.
	PreflightPayOnchain(ctx context.Context,
		req *PreflightPayOnchainRequest) (*PreflightPayOnchainResponse,
		error)

	// PreflightPayInvoice checks feasibility and routing fees for paying
	// a BOLT11 invoice without committing to send.
	PreflightPayInvoice(ctx context.Context,
		req *PreflightPayInvoiceRequest) (*PreflightPayInvoiceResponse,
		error)

	// PreflightPayOffer checks feasibility and routing fees for paying a
	// BOLT12 offer without committing to send.
	PreflightPayOffer(ctx context.Context,
		req *PreflightPayOfferRequest) (*PreflightPayOfferResponse,
		error)

	// PayOnchain submits an onchain send.
	PayOnchain(ctx context.Context,
		req *PayOnchainRequest) (*PayOnchainResponse, error)

	// PayInvoice submits a BOLT11 invoice payment.
	PayInvoice(ctx context.Context,
		req *PayInvoiceRequest) (*PayInvoiceResponse, error)

	// PayOffer submits a BOLT12 offer payment.
	PayOffer(ctx context.Context,
		req *PayOfferRequest) (*PayOfferResponse, error)
}

// PreflightPayOnchainRequest asks for fee estimates for an onchain send.
type PreflightPayOnchainRequest struct {
	// Address is the destination address, exactly as the user provided
	// it.
	Address string

	// Amount is how much to send.
	Amount btcutil.Amount
}

// PreflightPayOnchainResponse carries the precomputed fee estimate tiers.
type PreflightPayOnchainResponse struct {
	// Fees are the estimates per confirmation priority.
	Fees OnchainFeeEstimates
}

// PreflightPayInvoiceRequest asks whether a BOLT11 invoice can be paid.
type PreflightPayInvoiceRequest struct {
	// Invoice is the bech32 encoded invoice to pay.
	Invoice string

	// FallbackAmount is the amount to pay if the invoice itself is
	// amountless. It must be set for amountless invoices and must not be
	// set otherwise.
	FallbackAmount fn.Option[btcutil.Amount]
}

// PreflightPayInvoiceResponse is a successful invoice preflight.
type PreflightPayInvoiceResponse struct {
	// Amount is the total amount to be paid, excluding fees. It may
	// exceed the requested amount if intermediate hops' htlc minimums
	// forced a bump.
	Amount btcutil.Amount

	// Fees is the total routing fee to be paid.
	Fees btcutil.Amount
}

// PreflightPayOfferRequest asks whether a BOLT12 offer can be paid.
type PreflightPayOfferRequest struct {
	// Cid is the flow's client payment id.
	Cid ClientPaymentId

	// Offer is the bech32 encoded offer to pay.
	Offer string

	// FallbackAmount is the amount to pay if the offer itself specifies
	// no amount. It must be set for amountless offers and must not be
	// set otherwise.
	FallbackAmount fn.Option[btcutil.Amount]
}

// PreflightPayOfferResponse is a successful offer preflight.
type PreflightPayOfferResponse struct {
	// Amount is the total amount to be paid, excluding fees.
	Amount btcutil.Amount

	// Fees is the total routing fee to be paid.
	Fees btcutil.Amount
}

// PayOnchainRequest submits an onchain send.
type PayOnchainRequest struct {
	// Cid is the flow's client payment id, used by the node to
	// deduplicate resubmissions.
	Cid ClientPaymentId

	// Address is the destination address.
	Address string

	// Amount is how much to send.
	Amount btcutil.Amount

	// Priority selects the fee/confirmation-time tradeoff.
	Priority ConfirmationPriority

	// Note is an optional personal note, kept locally by the sender.
	Note fn.Option[string]
}

// PayOnchainResponse is a successful onchain submission.
type PayOnchainResponse struct {
	// Index is the node-assigned payment index.
	Index PaymentIndex
}

// PayInvoiceRequest submits a BOLT11 invoice payment. Invoices are
// deduplicated by payment hash, so no client payment id is needed.
type PayInvoiceRequest struct {
	// Invoice is the bech32 encoded invoice to pay.
	Invoice string

	// FallbackAmount is the amount to pay if the invoice is amountless.
	FallbackAmount fn.Option[btcutil.Amount]

	// Note is an optional personal note, kept locally by the sender.
	Note fn.Option[string]
}

// PayInvoiceResponse is a successful invoice submission.
type PayInvoiceResponse struct {
	// Index is the node-assigned payment index.
	Index PaymentIndex
}

// PayOfferRequest submits a BOLT12 offer payment.
type PayOfferRequest struct {
	// Cid is the flow's client payment id, used by the node to
	// deduplicate resubmissions.
	Cid ClientPaymentId

	// Offer is the bech32 encoded offer to pay.
	Offer string

	// FallbackAmount is the amount to pay if the offer specifies no
	// amount.
	FallbackAmount fn.Option[btcutil.Amount]

	// Note is an optional personal note, kept locally by the sender.
	Note fn.Option[string]

	// PayerNote is an optional free-text note disclosed to the
	// recipient, distinct from the private local Note.
	PayerNote fn.Option[string]
}

// PayOfferResponse is a successful offer submission.
type PayOfferResponse struct {
	// Index is the node-assigned payment index.
	Index PaymentIndex
}
