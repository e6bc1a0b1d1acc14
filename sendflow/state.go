// Package sendflow implements the state machine that drives a user-initiated
// bitcoin/lightning payment from a raw payment string through resolution,
// amount collection, fee preflight and final, exactly-once submission.
//
// The flow advances through three states: NeedUri (awaiting a payment
// string), NeedAmount (method resolved, awaiting an amount), and Preflighted
// (feasibility checked, awaiting confirmation). Each operation is a pure
// function of (current state, input) that either yields the next state or an
// error that leaves the flow where it was, so every failure is retryable by
// construction. Actual balance tracking, routing and submission live behind
// the NodeClient interface; idempotency across retries is delegated to the
// node via the flow's ClientPaymentId.
package sendflow

import (
	"context"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/fn"
	"github.com/lightningnetwork/lnd/lnwire"

	"github.com/lexe-app/lexe-public-sub000/payuri"
)

// FiatRates is a read-only snapshot of fiat exchange rates, carried through
// the flow for display purposes only; the state machine itself never
// consults it.
type FiatRates struct {
	// AsOf is when the rates were fetched.
	AsOf time.Time

	// Rates maps currency codes to the price of one BTC.
	Rates map[string]float64
}

// Config bundles the collaborators and environment of a send flow.
type Config struct {
	// Network is the network payments are made on.
	Network *chaincfg.Params

	// Resolver classifies raw payment strings.
	Resolver Resolver

	// Node performs preflight checks and payment submission.
	Node NodeClient

	// Lnurl resolves LNURL payRequests into invoices. Optional; LNURL
	// payments fail if unset.
	Lnurl LnurlResolver

	// Clock supplies timestamps for synthesized payments. If nil, the
	// system clock is used.
	Clock clock.Clock

	// Rates is an optional fiat-rate snapshot for display.
	Rates *FiatRates
}

// validate checks the config and fills in defaults.
func (c *Config) validate() error {
	if c.Network == nil {
		return fmt.Errorf("send flow config requires a network")
	}
	if c.Resolver == nil {
		return fmt.Errorf("send flow config requires a resolver")
	}
	if c.Node == nil {
		return fmt.Errorf("send flow config requires a node client")
	}
	if c.Clock == nil {
		c.Clock = clock.NewDefaultClock()
	}

	return nil
}

// State is a position in the send flow. It is a closed set: *NeedUri,
// *NeedAmount and *Preflighted.
type State interface {
	// Cid returns the flow's client payment id.
	Cid() ClientPaymentId

	// sendFlowState restricts implementations to this package.
	sendFlowState()
}

// Compile time assertions that all states implement State.
var (
	_ State = (*NeedUri)(nil)
	_ State = (*NeedAmount)(nil)
	_ State = (*Preflighted)(nil)
)

// NeedUri is the initial state: the flow is waiting for a raw payment
// string.
type NeedUri struct {
	cfg     *Config
	cid     ClientPaymentId
	balance Balance
}

// NewNeedUri opens a send flow, generating its client payment id.
func NewNeedUri(cfg *Config, balance Balance) (*NeedUri, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cid, err := NewClientPaymentId()
	if err != nil {
		return nil, err
	}

	log.Debugf("Opened send flow %v", cid)

	return &NeedUri{
		cfg:     cfg,
		cid:     cid,
		balance: balance,
	}, nil
}

// Cid returns the flow's client payment id.
func (s *NeedUri) Cid() ClientPaymentId {
	return s.cid
}

// Balance returns the balance snapshot the flow validates against.
func (s *NeedUri) Balance() Balance {
	return s.balance
}

func (s *NeedUri) sendFlowState() {}

// Resolve resolves a raw payment string into its best payment method and
// advances to NeedAmount. On failure it returns the error and the flow
// remains at NeedUri; Resolve may be retried with a corrected string.
func (s *NeedUri) Resolve(ctx context.Context, rawUri string) (*NeedAmount,
	error) {

	method, err := s.cfg.Resolver.ResolveBest(ctx, s.cfg.Network, rawUri)
	if err != nil {
		return nil, err
	}

	return &NeedAmount{
		cfg:     s.cfg,
		cid:     s.cid,
		balance: s.balance,
		method:  method,
	}, nil
}

// ResolveAndMaybePreflight resolves a raw payment string and, if the
// resolved method already carries a usable fixed amount, immediately
// attempts preflight.
//
// On resolution failure the returned state is nil and the flow remains at
// NeedUri. On resolution success the returned state is the *Preflighted
// state if the immediate preflight ran and succeeded, or the *NeedAmount
// state otherwise — including when the immediate preflight failed, in which
// case its error is returned alongside the still-usable *NeedAmount state so
// the caller may retry from there.
func (s *NeedUri) ResolveAndMaybePreflight(ctx context.Context,
	rawUri string) (State, error) {

	needAmount, err := s.Resolve(ctx, rawUri)
	if err != nil {
		return nil, err
	}

	amount := needAmount.CanPreflightImmediately()
	if !amount.IsSome() {
		return needAmount, nil
	}

	preflighted, err := needAmount.Preflight(
		ctx, amount.UnwrapOr(0), fn.None[string](),
	)
	if err != nil {
		return needAmount, err
	}

	return preflighted, nil
}

// NeedAmount holds a resolved payment method and waits for the amount (and
// optional payer note) needed to preflight it.
type NeedAmount struct {
	cfg     *Config
	cid     ClientPaymentId
	balance Balance
	method  payuri.PaymentMethod
}

// Cid returns the flow's client payment id.
func (s *NeedAmount) Cid() ClientPaymentId {
	return s.cid
}

// Method returns the resolved payment method.
func (s *NeedAmount) Method() payuri.PaymentMethod {
	return s.method
}

func (s *NeedAmount) sendFlowState() {}

// CanPreflightImmediately returns the payment's amount when the payee fixed
// it, meaning no amount entry step is needed: a point amount for
// onchain/invoice/offer methods, or an LNURL sendable range pinned to a
// single value (min == max).
func (s *NeedAmount) CanPreflightImmediately() fn.Option[btcutil.Amount] {
	switch m := s.method.(type) {
	case *payuri.Onchain:
		return m.Amount

	case *payuri.Invoice:
		return m.Amount()

	case *payuri.Offer:
		return m.Amount

	case *payuri.LnurlPayRequest:
		return m.FixedAmount()

	default:
		panic("unreachable: non-exhaustive PaymentMethod switch")
	}
}

// ValidateAmount locally checks an amount for this payment, with no network
// round-trip: the amount must not exceed the balance's max sendable for the
// payment's kind (amount == max is valid), and LNURL amounts must fall
// within the service's sendable range.
func (s *NeedAmount) ValidateAmount(amount btcutil.Amount) error {
	kind := kindOf(s.method)

	maxSendable := s.balance.MaxSendable(kind)
	if amount > maxSendable {
		return &AmountExceedsBalanceError{
			Amount:      amount,
			MaxSendable: maxSendable,
			Kind:        kind,
		}
	}

	if payReq, ok := s.method.(*payuri.LnurlPayRequest); ok {
		msat := lnwire.NewMSatFromSatoshis(amount)
		if msat < payReq.MinSendable || msat > payReq.MaxSendable {
			return &AmountOutOfRangeError{
				Amount:      msat,
				MinSendable: payReq.MinSendable,
				MaxSendable: payReq.MaxSendable,
			}
		}
	}

	return nil
}

// Preflight validates the amount locally and asks the node to check
// feasibility (balance, route, fees) without committing to send. The payer
// note is forwarded to the recipient for offer payments, and as an LNURL
// comment when the service accepts one; it is unused for the other kinds.
//
// On success the flow advances to Preflighted. On failure the error is
// returned verbatim and the flow remains at NeedAmount, so the caller may
// correct the amount and retry.
func (s *NeedAmount) Preflight(ctx context.Context, amount btcutil.Amount,
	payerNote fn.Option[string]) (*Preflighted, error) {

	if err := s.ValidateAmount(amount); err != nil {
		return nil, err
	}

	var (
		payment PreflightedPayment
		err     error
	)
	switch m := s.method.(type) {
	case *payuri.Onchain:
		payment, err = s.preflightOnchain(ctx, m, amount)

	case *payuri.Invoice:
		payment, err = s.preflightInvoice(ctx, m, amount)

	case *payuri.Offer:
		payment, err = s.preflightOffer(ctx, m, amount, payerNote)

	case *payuri.LnurlPayRequest:
		payment, err = s.preflightLnurl(ctx, m, amount, payerNote)

	default:
		panic("unreachable: non-exhaustive PaymentMethod switch")
	}
	if err != nil {
		return nil, err
	}

	log.Debugf("Send flow %v preflighted %v for %v", s.cid,
		DisplayTitle(payment), amount)

	return &Preflighted{
		cfg:     s.cfg,
		cid:     s.cid,
		payment: payment,
	}, nil
}

// preflightOnchain fetches fee estimates for an onchain send.
func (s *NeedAmount) preflightOnchain(ctx context.Context,
	onchain *payuri.Onchain,
	amount btcutil.Amount) (*PreflightedOnchain, error) {

	resp, err := s.cfg.Node.PreflightPayOnchain(
		ctx, &PreflightPayOnchainRequest{
			Address: onchain.AddressStr,
			Amount:  amount,
		},
	)
	if err != nil {
		return nil, err
	}

	return &PreflightedOnchain{
		Onchain: onchain,
		Amount:  amount,
		Fees:    resp.Fees,
	}, nil
}

// preflightInvoice checks feasibility of paying a BOLT11 invoice. The
// fallback amount is only supplied when the invoice itself is amountless.
func (s *NeedAmount) preflightInvoice(ctx context.Context,
	invoice *payuri.Invoice,
	amount btcutil.Amount) (*PreflightedInvoice, error) {

	fallback := fn.None[btcutil.Amount]()
	if !invoice.Amount().IsSome() {
		fallback = fn.Some(amount)
	}

	resp, err := s.cfg.Node.PreflightPayInvoice(
		ctx, &PreflightPayInvoiceRequest{
			Invoice:        invoice.Raw,
			FallbackAmount: fallback,
		},
	)
	if err != nil {
		return nil, err
	}

	return &PreflightedInvoice{
		Invoice: invoice,
		Amount:  resp.Amount,
		Fees:    resp.Fees,
	}, nil
}

// preflightOffer checks feasibility of paying a BOLT12 offer. The fallback
// amount is only supplied when the offer itself specifies no amount.
func (s *NeedAmount) preflightOffer(ctx context.Context, offer *payuri.Offer,
	amount btcutil.Amount,
	payerNote fn.Option[string]) (*PreflightedOffer, error) {

	fallback := fn.None[btcutil.Amount]()
	if !offer.Amount.IsSome() {
		fallback = fn.Some(amount)
	}

	resp, err := s.cfg.Node.PreflightPayOffer(
		ctx, &PreflightPayOfferRequest{
			Cid:            s.cid,
			Offer:          offer.Raw,
			FallbackAmount: fallback,
		},
	)
	if err != nil {
		return nil, err
	}

	return &PreflightedOffer{
		Offer:     offer,
		Amount:    resp.Amount,
		Fees:      resp.Fees,
		PayerNote: payerNote,
	}, nil
}

// preflightLnurl runs the two-step LNURL-pay path: resolve the payRequest
// callback into a concrete invoice for the chosen amount, then preflight
// that invoice. The payer note is forwarded as the LUD-12 comment when the
// service accepts comments; services that advertise no comment support give
// us no way to deliver one, so the note is dropped for them.
func (s *NeedAmount) preflightLnurl(ctx context.Context,
	payReq *payuri.LnurlPayRequest, amount btcutil.Amount,
	payerNote fn.Option[string]) (*PreflightedLnurlPay, error) {

	if s.cfg.Lnurl == nil {
		return nil, fmt.Errorf("no LNURL resolver configured")
	}

	comment := payerNote
	if payReq.CommentAllowed.UnwrapOr(0) == 0 {
		comment = fn.None[string]()
	}

	invoice, err := s.cfg.Lnurl.ResolvePayRequest(
		ctx, s.cfg.Network, payReq,
		lnwire.NewMSatFromSatoshis(amount), comment,
	)
	if err != nil {
		return nil, err
	}

	preflighted, err := s.preflightInvoice(ctx, invoice, amount)
	if err != nil {
		return nil, err
	}

	return &PreflightedLnurlPay{
		PayRequest: payReq,
		Invoice:    preflighted,
		SendToHint: payReq.Metadata.SendToHint(),
	}, nil
}

// Preflighted is the pre-terminal state: feasibility is checked and the flow
// waits for the user to confirm, optionally attaching a note and, for
// onchain payments, selecting a confirmation priority.
type Preflighted struct {
	cfg     *Config
	cid     ClientPaymentId
	payment PreflightedPayment
}

// Cid returns the flow's client payment id.
func (s *Preflighted) Cid() ClientPaymentId {
	return s.cid
}

// Payment returns the preflighted payment.
func (s *Preflighted) Payment() PreflightedPayment {
	return s.payment
}

func (s *Preflighted) sendFlowState() {}

// Pay submits the preflighted payment. The confirmation priority is
// required for onchain payments, where it selects among the precomputed fee
// tiers, and ignored for the other kinds. Requesting the high tier when the
// preflight returned none is an error; no lower tier is ever substituted.
//
// On success it returns the flow's result: a locally synthesized pending
// payment whose amount and fee come from the preflight data. On failure the
// error is returned verbatim and the flow remains at Preflighted, so the
// caller may retry, possibly with a different fee priority.
func (s *Preflighted) Pay(ctx context.Context, note fn.Option[string],
	priority fn.Option[ConfirmationPriority]) (*SendFlowResult, error) {

	switch p := s.payment.(type) {
	case *PreflightedOnchain:
		return s.payOnchain(ctx, p, note, priority)

	case *PreflightedInvoice:
		return s.payInvoice(ctx, p, note, fn.None[string]())

	case *PreflightedOffer:
		return s.payOffer(ctx, p, note)

	case *PreflightedLnurlPay:
		return s.payInvoice(ctx, p.Invoice, note,
			fn.Some(p.PayRequest.Metadata.Description))

	default:
		panic("unreachable: non-exhaustive PreflightedPayment switch")
	}
}

// payOnchain submits an onchain send at the selected priority.
func (s *Preflighted) payOnchain(ctx context.Context,
	payment *PreflightedOnchain, note fn.Option[string],
	priority fn.Option[ConfirmationPriority]) (*SendFlowResult, error) {

	if !priority.IsSome() {
		return nil, ErrPriorityRequired
	}
	selected := priority.UnwrapOr(PriorityNormal)

	fee, err := payment.Fees.FeeForPriority(selected)
	if err != nil {
		return nil, err
	}

	resp, err := s.cfg.Node.PayOnchain(ctx, &PayOnchainRequest{
		Cid:      s.cid,
		Address:  payment.Onchain.AddressStr,
		Amount:   payment.Amount,
		Priority: selected,
		Note:     note,
	})
	if err != nil {
		return nil, err
	}

	log.Infof("Send flow %v submitted onchain payment of %v (fee %v, "+
		"priority %v)", s.cid, payment.Amount, fee, selected)

	return s.newResult(
		resp.Index, RailOnchain, payment.Amount, fee, note,
		payment.Onchain.Message,
	), nil
}

// payInvoice submits a BOLT11 invoice payment, also used for the final leg
// of LNURL-pay.
func (s *Preflighted) payInvoice(ctx context.Context,
	payment *PreflightedInvoice, note fn.Option[string],
	fallbackDescription fn.Option[string]) (*SendFlowResult, error) {

	fallback := fn.None[btcutil.Amount]()
	if !payment.Invoice.Amount().IsSome() {
		fallback = fn.Some(payment.Amount)
	}

	resp, err := s.cfg.Node.PayInvoice(ctx, &PayInvoiceRequest{
		Invoice:        payment.Invoice.Raw,
		FallbackAmount: fallback,
		Note:           note,
	})
	if err != nil {
		return nil, err
	}

	log.Infof("Send flow %v submitted invoice payment of %v (fee %v)",
		s.cid, payment.Amount, payment.Fees)

	description := payment.Invoice.Description()
	if description.UnwrapOr("") == "" {
		description = fallbackDescription
	}

	return s.newResult(
		resp.Index, RailInvoice, payment.Amount, payment.Fees, note,
		description,
	), nil
}

// payOffer submits a BOLT12 offer payment.
func (s *Preflighted) payOffer(ctx context.Context,
	payment *PreflightedOffer,
	note fn.Option[string]) (*SendFlowResult, error) {

	fallback := fn.None[btcutil.Amount]()
	if !payment.Offer.Amount.IsSome() {
		fallback = fn.Some(payment.Amount)
	}

	resp, err := s.cfg.Node.PayOffer(ctx, &PayOfferRequest{
		Cid:            s.cid,
		Offer:          payment.Offer.Raw,
		FallbackAmount: fallback,
		Note:           note,
		PayerNote:      payment.PayerNote,
	})
	if err != nil {
		return nil, err
	}

	log.Infof("Send flow %v submitted offer payment of %v (fee %v)",
		s.cid, payment.Amount, payment.Fees)

	return s.newResult(
		resp.Index, RailOffer, payment.Amount, payment.Fees, note,
		payment.Offer.Description,
	), nil
}

// newResult synthesizes the pending outbound payment record for a
// successful submission.
func (s *Preflighted) newResult(index PaymentIndex, rail PaymentRail,
	amount, fee btcutil.Amount, note,
	description fn.Option[string]) *SendFlowResult {

	return &SendFlowResult{
		Payment: Payment{
			Index:       index,
			Rail:        rail,
			Direction:   DirectionOutbound,
			Status:      StatusPending,
			Amount:      amount,
			Fee:         fee,
			Note:        note,
			Description: description,
			CreatedAt:   s.cfg.Clock.Now(),
		},
	}
}
