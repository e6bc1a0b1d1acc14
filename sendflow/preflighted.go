package sendflow

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/fn"

	"github.com/lexe-app/lexe-public-sub000/payuri"
)

// PreflightedPayment is a payment that passed a preflight check, carrying
// the final chosen amount and the protocol-specific fee result. It is only
// constructed from a successful preflight call and is immutable thereafter;
// in particular, switching the onchain confirmation priority reselects among
// the already-fetched fee tiers, it never re-calls the network.
//
// PreflightedPayment is a closed set mirroring payuri.PaymentMethod:
// PreflightedOnchain, PreflightedInvoice, PreflightedOffer and
// PreflightedLnurlPay. Every switch over the concrete types must be
// exhaustive with no default branch.
type PreflightedPayment interface {
	// preflightedPayment restricts implementations to this package.
	preflightedPayment()
}

// Compile time assertions that all variants implement PreflightedPayment.
var (
	_ PreflightedPayment = (*PreflightedOnchain)(nil)
	_ PreflightedPayment = (*PreflightedInvoice)(nil)
	_ PreflightedPayment = (*PreflightedOffer)(nil)
	_ PreflightedPayment = (*PreflightedLnurlPay)(nil)
)

// PreflightedOnchain is an onchain payment with precomputed fee estimates at
// each confirmation priority.
type PreflightedOnchain struct {
	// Onchain is the resolved payment method.
	Onchain *payuri.Onchain

	// Amount is the final chosen amount.
	Amount btcutil.Amount

	// Fees are the precomputed fee estimates per priority.
	Fees OnchainFeeEstimates
}

func (p *PreflightedOnchain) preflightedPayment() {}

// PreflightedInvoice is a BOLT11 invoice payment with its routing fee.
type PreflightedInvoice struct {
	// Invoice is the resolved payment method.
	Invoice *payuri.Invoice

	// Amount is the total amount to be paid, excluding fees. This is the
	// node-reported amount, which may exceed the user's chosen amount if
	// intermediate hops' htlc minimums forced a bump.
	Amount btcutil.Amount

	// Fees is the total routing fee.
	Fees btcutil.Amount
}

func (p *PreflightedInvoice) preflightedPayment() {}

// PreflightedOffer is a BOLT12 offer payment with its routing fee.
type PreflightedOffer struct {
	// Offer is the resolved payment method.
	Offer *payuri.Offer

	// Amount is the total amount to be paid, excluding fees.
	Amount btcutil.Amount

	// Fees is the total routing fee.
	Fees btcutil.Amount

	// PayerNote is the optional free-text note to be disclosed to the
	// recipient.
	PayerNote fn.Option[string]
}

func (p *PreflightedOffer) preflightedPayment() {}

// PreflightedLnurlPay is an LNURL-pay payment, resolved into a concrete
// invoice and preflighted over the invoice path.
type PreflightedLnurlPay struct {
	// PayRequest is the originally resolved payRequest.
	PayRequest *payuri.LnurlPayRequest

	// Invoice is the preflighted invoice the service returned.
	Invoice *PreflightedInvoice

	// SendToHint is a human readable recipient identity drawn from the
	// payRequest metadata, e.g. "satoshi@lexe.app".
	SendToHint fn.Option[string]
}

func (p *PreflightedLnurlPay) preflightedPayment() {}

// AmountSat returns the final amount of a preflighted payment, excluding
// fees.
func AmountSat(payment PreflightedPayment) btcutil.Amount {
	switch p := payment.(type) {
	case *PreflightedOnchain:
		return p.Amount

	case *PreflightedInvoice:
		return p.Amount

	case *PreflightedOffer:
		return p.Amount

	case *PreflightedLnurlPay:
		return p.Invoice.Amount

	default:
		panic("unreachable: non-exhaustive PreflightedPayment switch")
	}
}

// FeeSat returns the fee of a preflighted payment. The priority is only
// consulted for onchain payments, where it selects among the precomputed
// tiers; requesting the high tier when it is absent is an error.
func FeeSat(payment PreflightedPayment,
	priority fn.Option[ConfirmationPriority]) (btcutil.Amount, error) {

	switch p := payment.(type) {
	case *PreflightedOnchain:
		if !priority.IsSome() {
			return 0, ErrPriorityRequired
		}
		return p.Fees.FeeForPriority(
			priority.UnwrapOr(PriorityNormal),
		)

	case *PreflightedInvoice:
		return p.Fees, nil

	case *PreflightedOffer:
		return p.Fees, nil

	case *PreflightedLnurlPay:
		return p.Invoice.Fees, nil

	default:
		panic("unreachable: non-exhaustive PreflightedPayment switch")
	}
}

// TotalSat returns amount plus fee for a preflighted payment.
func TotalSat(payment PreflightedPayment,
	priority fn.Option[ConfirmationPriority]) (btcutil.Amount, error) {

	fee, err := FeeSat(payment, priority)
	if err != nil {
		return 0, err
	}

	return AmountSat(payment) + fee, nil
}

// DisplayTitle derives a short recipient-facing title for a preflighted
// payment, for confirmation screens.
func DisplayTitle(payment PreflightedPayment) string {
	switch p := payment.(type) {
	case *PreflightedOnchain:
		return p.Onchain.Label.UnwrapOr(p.Onchain.AddressStr)

	case *PreflightedInvoice:
		return p.Invoice.Description().UnwrapOr("Lightning invoice")

	case *PreflightedOffer:
		return p.Offer.Description.UnwrapOr("Lightning offer")

	case *PreflightedLnurlPay:
		return p.SendToHint.UnwrapOr(
			p.PayRequest.Metadata.Description,
		)

	default:
		panic("unreachable: non-exhaustive PreflightedPayment switch")
	}
}
