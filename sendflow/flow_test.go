package sendflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/fn"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/stretchr/testify/require"

	"github.com/lexe-app/lexe-public-sub000/payuri"
)

const (
	// testAddress is a valid mainnet P2WPKH address.
	testAddress = "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"

	// testInvoiceNoAmount is a real amountless mainnet invoice.
	testInvoiceNoAmount = "lnbc1pn79l2rdqqpp5y3u8cttsjvusa34xnx9ceh8watmrvy99qw7pwpsvxjq3zl2mm8wscqpcsp5p4wrl7xfrgxj3w05ksjv2qtccyt0feg2c0suwcjc5pyrawxvlt0q9qyysgqxqyz5vqnp4q0vzagw8x7r9eyalw35t0u6syql8rtqf9tejep0z6xrwkqrua5advrzjqv22wafr68wtchd4vzq7mj7zf2uzpv67xsaxcemfzak7wp7p0r29wrf0egqqy2sqqcqqqqqqqqqqhwqqfqrzjqv22wafr68wtchd4vzq7mj7zf2uzpv67xsaxcemfzak7wp7p0r29wzmk4uqqj5sqqyqqqqqqqqqqhwqqfqrzjqv22wafr68wtchd4vzq7mj7zf2uzpv67xsaxcemfzak7wp7p0r29wz2g6uqqt5cqqcqqqqqqqqqqhwqqfqd5xs0luhzmmdmevhqtcyuwrcr43pq3xpmtdvdenvcsslg8vuhmfyqtcs3y54yxpsw8wlt5epz0y0y64ul7fc37zt5cklumx0u6at2dcphm9mhh"

	// testInvoice50Sat is a real mainnet invoice for 50 sats.
	testInvoice50Sat = "lnbc500n1pnapns2dq68skjqnr90pjjqstwv3ex76tyyqpp54yl0p0ezxl2qasdc0ect5tmxj9rdcxry7paszzdpfa5ka79t4jgscqpcsp5fc7u3hs62lr9d77xkwnjaa4fs2fch99lh96gh40kzgnufq2rvmks9qyysgqxqyz5vqnp4q0vzagw8x7r9eyalw35t0u6syql8rtqf9tejep0z6xrwkqrua5advrzjqv22wafr68wtchd4vzq7mj7zf2uzpv67xsaxcemfzak7wp7p0r29wz2g6uqqt5cqqcqqqqqqqqqqhwqqfqfhue440klc35tlmacewtk6sm3jxvkf8ddcvpggfqf4xj6mny6s7zvjwjqrjy4map9av4t82vtxrqlcqnedlwp67l6zw2x3ctf8a6amgp9v6j74"

	// testOffer is a BOLT12 offer.
	testOffer = "lno1pgx9getnwss8vetrw3hhyuckyypwa3eyt44h6txtxquqh7lz5djge4afgfjn7k4rgrkuag0jsd5xvxg"
)

var (
	testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	testBalance = Balance{
		Onchain:   100_000,
		Lightning: 200_000,
	}

	testFees = OnchainFeeEstimates{
		High:       fn.Some(FeeEstimate{Amount: 1_200}),
		Normal:     FeeEstimate{Amount: 600},
		Background: FeeEstimate{Amount: 200},
	}

	testIndex = PaymentIndex{
		CreatedAtMs: testTime.UnixMilli(),
		Id:          "payment-0",
	}
)

// fakeResolver hands back a canned payment method.
type fakeResolver struct {
	method payuri.PaymentMethod
	err    error
}

func (f *fakeResolver) ResolveBest(_ context.Context, _ *chaincfg.Params,
	_ string) (payuri.PaymentMethod, error) {

	return f.method, f.err
}

// fakeLnurl resolves payRequests into a canned invoice, recording what it
// was asked for.
type fakeLnurl struct {
	invoice *payuri.Invoice
	err     error

	gotAmount  lnwire.MilliSatoshi
	gotComment fn.Option[string]
}

func (f *fakeLnurl) ResolvePayRequest(_ context.Context, _ *chaincfg.Params,
	_ *payuri.LnurlPayRequest, amount lnwire.MilliSatoshi,
	comment fn.Option[string]) (*payuri.Invoice, error) {

	f.gotAmount = amount
	f.gotComment = comment

	return f.invoice, f.err
}

// fakeNode is an in-memory NodeClient recording every request it serves.
// The preflightErrs/payErrs queues let tests fail the first N calls.
type fakeNode struct {
	mu sync.Mutex

	fees OnchainFeeEstimates

	// lightningFee is the routing fee reported by invoice and offer
	// preflights.
	lightningFee btcutil.Amount

	preflightErrs []error
	payErrs       []error

	// payBlock, when set, is waited on before any pay call returns.
	// payEntered receives a token when a pay call starts waiting.
	payBlock   chan struct{}
	payEntered chan struct{}

	onchainPreflights []*PreflightPayOnchainRequest
	invoicePreflights []*PreflightPayInvoiceRequest
	offerPreflights   []*PreflightPayOfferRequest
	onchainPays       []*PayOnchainRequest
	invoicePays       []*PayInvoiceRequest
	offerPays         []*PayOfferRequest
}

func newFakeNode() *fakeNode {
	return &fakeNode{
		fees:         testFees,
		lightningFee: 12,
	}
}

func (f *fakeNode) popErr(queue *[]error) error {
	if len(*queue) == 0 {
		return nil
	}

	err := (*queue)[0]
	*queue = (*queue)[1:]

	return err
}

func (f *fakeNode) PreflightPayOnchain(_ context.Context,
	req *PreflightPayOnchainRequest) (*PreflightPayOnchainResponse,
	error) {

	f.mu.Lock()
	defer f.mu.Unlock()

	f.onchainPreflights = append(f.onchainPreflights, req)
	if err := f.popErr(&f.preflightErrs); err != nil {
		return nil, err
	}

	return &PreflightPayOnchainResponse{Fees: f.fees}, nil
}

func (f *fakeNode) PreflightPayInvoice(_ context.Context,
	req *PreflightPayInvoiceRequest) (*PreflightPayInvoiceResponse,
	error) {

	f.mu.Lock()
	defer f.mu.Unlock()

	f.invoicePreflights = append(f.invoicePreflights, req)
	if err := f.popErr(&f.preflightErrs); err != nil {
		return nil, err
	}

	// Echo the fallback amount for amountless invoices; a node would
	// read the amount out of the invoice otherwise.
	amount := req.FallbackAmount.UnwrapOr(50)

	return &PreflightPayInvoiceResponse{
		Amount: amount,
		Fees:   f.lightningFee,
	}, nil
}

func (f *fakeNode) PreflightPayOffer(_ context.Context,
	req *PreflightPayOfferRequest) (*PreflightPayOfferResponse, error) {

	f.mu.Lock()
	defer f.mu.Unlock()

	f.offerPreflights = append(f.offerPreflights, req)
	if err := f.popErr(&f.preflightErrs); err != nil {
		return nil, err
	}

	return &PreflightPayOfferResponse{
		Amount: req.FallbackAmount.UnwrapOr(777),
		Fees:   f.lightningFee,
	}, nil
}

func (f *fakeNode) PayOnchain(_ context.Context,
	req *PayOnchainRequest) (*PayOnchainResponse, error) {

	f.waitForBlock()

	f.mu.Lock()
	defer f.mu.Unlock()

	f.onchainPays = append(f.onchainPays, req)
	if err := f.popErr(&f.payErrs); err != nil {
		return nil, err
	}

	return &PayOnchainResponse{Index: testIndex}, nil
}

func (f *fakeNode) PayInvoice(_ context.Context,
	req *PayInvoiceRequest) (*PayInvoiceResponse, error) {

	f.waitForBlock()

	f.mu.Lock()
	defer f.mu.Unlock()

	f.invoicePays = append(f.invoicePays, req)
	if err := f.popErr(&f.payErrs); err != nil {
		return nil, err
	}

	return &PayInvoiceResponse{Index: testIndex}, nil
}

func (f *fakeNode) PayOffer(_ context.Context,
	req *PayOfferRequest) (*PayOfferResponse, error) {

	f.waitForBlock()

	f.mu.Lock()
	defer f.mu.Unlock()

	f.offerPays = append(f.offerPays, req)
	if err := f.popErr(&f.payErrs); err != nil {
		return nil, err
	}

	return &PayOfferResponse{Index: testIndex}, nil
}

func (f *fakeNode) waitForBlock() {
	f.mu.Lock()
	block, entered := f.payBlock, f.payEntered
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		<-block
	}
}

// testFlow wires a flow around the given fakes.
func testFlow(t *testing.T, node *fakeNode, resolver *fakeResolver,
	lnurl *fakeLnurl) *Flow {

	t.Helper()

	cfg := &Config{
		Network:  &chaincfg.MainNetParams,
		Resolver: resolver,
		Node:     node,
		Clock:    clock.NewTestClock(testTime),
	}
	if lnurl != nil {
		cfg.Lnurl = lnurl
	}

	flow, err := NewFlow(cfg, testBalance)
	require.NoError(t, err)

	return flow
}

func mustParseInvoice(t *testing.T, raw string) *payuri.Invoice {
	t.Helper()

	invoice, err := payuri.ParseInvoice(&chaincfg.MainNetParams, raw)
	require.NoError(t, err)

	return invoice
}

func testOnchainMethod(t *testing.T) *payuri.Onchain {
	t.Helper()

	uri, err := payuri.Parse(&chaincfg.MainNetParams, testAddress)
	require.NoError(t, err)

	onchain, ok := uri.(*payuri.Onchain)
	require.True(t, ok)

	return onchain
}

// TestFlowOnchainLifecycle walks an onchain payment through the whole flow,
// checking amount validation, priority handling and the synthesized result.
func TestFlowOnchainLifecycle(t *testing.T) {
	t.Parallel()

	node := newFakeNode()
	flow := testFlow(t, node,
		&fakeResolver{method: testOnchainMethod(t)}, nil)

	ctx := context.Background()

	state, err := flow.ResolveAndMaybePreflight(ctx, testAddress)
	require.NoError(t, err)

	// A bare address has no amount, so the flow must wait for one.
	needAmount, ok := state.(*NeedAmount)
	require.True(t, ok)
	require.False(t, needAmount.CanPreflightImmediately().IsSome())

	// Spending the whole onchain balance is allowed; one sat more is
	// not, and the rejection must carry the limit.
	require.NoError(t, needAmount.ValidateAmount(testBalance.Onchain))

	err = needAmount.ValidateAmount(testBalance.Onchain + 1)
	var balanceErr *AmountExceedsBalanceError
	require.ErrorAs(t, err, &balanceErr)
	require.Equal(t, testBalance.Onchain, balanceErr.MaxSendable)
	require.Equal(t, KindOnchain, balanceErr.Kind)

	// An over-balance preflight must fail locally, without reaching the
	// node, and leave the flow at NeedAmount.
	_, err = flow.Preflight(ctx, testBalance.Onchain+1, fn.None[string]())
	require.ErrorAs(t, err, &balanceErr)
	require.Empty(t, node.onchainPreflights)
	require.IsType(t, &NeedAmount{}, flow.State())

	preflighted, err := flow.Preflight(ctx, 50_000, fn.None[string]())
	require.NoError(t, err)
	require.Len(t, node.onchainPreflights, 1)
	require.Equal(t, testAddress, node.onchainPreflights[0].Address)
	require.Equal(t, btcutil.Amount(50_000),
		node.onchainPreflights[0].Amount)

	payment := preflighted.Payment()
	require.Equal(t, btcutil.Amount(50_000), AmountSat(payment))

	// Total at normal priority is amount plus the normal tier fee.
	total, err := TotalSat(payment, fn.Some(PriorityNormal))
	require.NoError(t, err)
	require.Equal(t, btcutil.Amount(50_600), total)

	// Onchain payments cannot be submitted without a priority.
	_, err = flow.Pay(ctx, fn.None[string](),
		fn.None[ConfirmationPriority]())
	require.ErrorIs(t, err, ErrPriorityRequired)
	require.IsType(t, &Preflighted{}, flow.State())

	result, err := flow.Pay(ctx, fn.Some("rent"),
		fn.Some(PriorityNormal))
	require.NoError(t, err)

	require.Len(t, node.onchainPays, 1)
	require.Equal(t, flow.Cid(), node.onchainPays[0].Cid)
	require.Equal(t, PriorityNormal, node.onchainPays[0].Priority)

	require.Equal(t, RailOnchain, result.Payment.Rail)
	require.Equal(t, DirectionOutbound, result.Payment.Direction)
	require.Equal(t, StatusPending, result.Payment.Status)
	require.Equal(t, btcutil.Amount(50_000), result.Payment.Amount)
	require.Equal(t, btcutil.Amount(600), result.Payment.Fee)
	require.Equal(t, fn.Some("rent"), result.Payment.Note)
	require.Equal(t, testTime, result.Payment.CreatedAt)

	// The flow is single-use.
	require.Nil(t, flow.State())
	require.True(t, flow.Result().IsSome())

	_, err = flow.Pay(ctx, fn.None[string](), fn.Some(PriorityNormal))
	require.ErrorIs(t, err, ErrFlowComplete)
}

// TestFlowHighPriorityUnavailable checks that a missing high fee tier fails
// the submission instead of silently downgrading.
func TestFlowHighPriorityUnavailable(t *testing.T) {
	t.Parallel()

	node := newFakeNode()
	node.fees.High = fn.None[FeeEstimate]()

	flow := testFlow(t, node,
		&fakeResolver{method: testOnchainMethod(t)}, nil)

	ctx := context.Background()

	_, err := flow.ResolveAndMaybePreflight(ctx, testAddress)
	require.NoError(t, err)

	_, err = flow.Preflight(ctx, 50_000, fn.None[string]())
	require.NoError(t, err)

	_, err = flow.Pay(ctx, fn.None[string](), fn.Some(PriorityHigh))
	require.ErrorIs(t, err, ErrHighPriorityUnavailable)
	require.Empty(t, node.onchainPays)

	// The flow is still usable at a lower priority.
	result, err := flow.Pay(ctx, fn.None[string](),
		fn.Some(PriorityBackground))
	require.NoError(t, err)
	require.Equal(t, btcutil.Amount(200), result.Payment.Fee)
}

// TestFlowFixedAmountInvoiceAutoPreflights checks that resolving an invoice
// that already carries an amount preflights immediately, skipping the
// amount entry state.
func TestFlowFixedAmountInvoiceAutoPreflights(t *testing.T) {
	t.Parallel()

	node := newFakeNode()
	invoice := mustParseInvoice(t, testInvoice50Sat)
	flow := testFlow(t, node, &fakeResolver{method: invoice}, nil)

	state, err := flow.ResolveAndMaybePreflight(
		context.Background(), testInvoice50Sat,
	)
	require.NoError(t, err)

	preflighted, ok := state.(*Preflighted)
	require.True(t, ok)
	require.Equal(t, btcutil.Amount(50),
		AmountSat(preflighted.Payment()))

	// The invoice carries its own amount, so no fallback must have been
	// sent.
	require.Len(t, node.invoicePreflights, 1)
	require.False(t,
		node.invoicePreflights[0].FallbackAmount.IsSome())
}

// TestFlowAutoPreflightFailureFallsBackToNeedAmount checks that when the
// immediate preflight of a fixed-amount code fails, the flow still advances
// to NeedAmount so the preflight can be retried.
func TestFlowAutoPreflightFailureFallsBackToNeedAmount(t *testing.T) {
	t.Parallel()

	node := newFakeNode()
	node.preflightErrs = []error{errors.New("no route")}

	invoice := mustParseInvoice(t, testInvoice50Sat)
	flow := testFlow(t, node, &fakeResolver{method: invoice}, nil)

	ctx := context.Background()

	state, err := flow.ResolveAndMaybePreflight(ctx, testInvoice50Sat)
	require.ErrorContains(t, err, "no route")
	require.IsType(t, &NeedAmount{}, state)
	require.IsType(t, &NeedAmount{}, flow.State())

	// The retry succeeds.
	_, err = flow.Preflight(ctx, 50, fn.None[string]())
	require.NoError(t, err)
	require.IsType(t, &Preflighted{}, flow.State())
}

// TestFlowAmountlessInvoice checks that an amountless invoice collects an
// amount and forwards it as the fallback.
func TestFlowAmountlessInvoice(t *testing.T) {
	t.Parallel()

	node := newFakeNode()
	invoice := mustParseInvoice(t, testInvoiceNoAmount)
	flow := testFlow(t, node, &fakeResolver{method: invoice}, nil)

	ctx := context.Background()

	state, err := flow.ResolveAndMaybePreflight(ctx, testInvoiceNoAmount)
	require.NoError(t, err)
	require.IsType(t, &NeedAmount{}, state)

	_, err = flow.Preflight(ctx, 25_000, fn.None[string]())
	require.NoError(t, err)

	require.Len(t, node.invoicePreflights, 1)
	require.Equal(t, fn.Some(btcutil.Amount(25_000)),
		node.invoicePreflights[0].FallbackAmount)

	result, err := flow.Pay(ctx, fn.None[string](),
		fn.None[ConfirmationPriority]())
	require.NoError(t, err)

	require.Equal(t, RailInvoice, result.Payment.Rail)
	require.Equal(t, btcutil.Amount(25_000), result.Payment.Amount)

	require.Len(t, node.invoicePays, 1)
	require.Equal(t, fn.Some(btcutil.Amount(25_000)),
		node.invoicePays[0].FallbackAmount)
}

// TestFlowOfferCidStability checks that the client payment id is generated
// once and reused across preflights, retries and the final submission.
func TestFlowOfferCidStability(t *testing.T) {
	t.Parallel()

	node := newFakeNode()
	node.preflightErrs = []error{errors.New("transient")}

	offer := &payuri.Offer{
		Raw:         testOffer,
		Amount:      fn.None[btcutil.Amount](),
		Description: fn.Some("donation"),
	}
	flow := testFlow(t, node, &fakeResolver{method: offer}, nil)

	ctx := context.Background()

	_, err := flow.ResolveAndMaybePreflight(ctx, testOffer)
	require.NoError(t, err)

	_, err = flow.Preflight(ctx, 10_000, fn.None[string]())
	require.ErrorContains(t, err, "transient")

	_, err = flow.Preflight(ctx, 10_000, fn.Some("from satoshi"))
	require.NoError(t, err)

	result, err := flow.Pay(ctx, fn.None[string](),
		fn.None[ConfirmationPriority]())
	require.NoError(t, err)
	require.Equal(t, RailOffer, result.Payment.Rail)
	require.Equal(t, fn.Some("donation"), result.Payment.Description)

	require.Len(t, node.offerPreflights, 2)
	require.Len(t, node.offerPays, 1)

	cid := flow.Cid()
	require.Equal(t, cid, node.offerPreflights[0].Cid)
	require.Equal(t, cid, node.offerPreflights[1].Cid)
	require.Equal(t, cid, node.offerPays[0].Cid)
	require.Equal(t, fn.Some("from satoshi"),
		node.offerPays[0].PayerNote)
}

// TestFlowLnurl checks the two-step LNURL path: amount range validation,
// comment policy and settlement over the invoice rail.
func TestFlowLnurl(t *testing.T) {
	t.Parallel()

	newPayRequest := func(min, max lnwire.MilliSatoshi,
		commentAllowed fn.Option[uint32]) *payuri.LnurlPayRequest {

		return &payuri.LnurlPayRequest{
			Callback:    "https://lexe.app/cb",
			MinSendable: min,
			MaxSendable: max,
			Metadata: payuri.LnurlPayMetadata{
				Description: "tip satoshi",
				Identifier:  fn.Some("satoshi@lexe.app"),
			},
			CommentAllowed: commentAllowed,
		}
	}

	t.Run("pinned range preflights immediately", func(t *testing.T) {
		t.Parallel()

		node := newFakeNode()
		payReq := newPayRequest(5_000_000, 5_000_000,
			fn.None[uint32]())
		lnurl := &fakeLnurl{
			invoice: mustParseInvoice(t, testInvoiceNoAmount),
		}
		flow := testFlow(t, node,
			&fakeResolver{method: payReq}, lnurl)

		state, err := flow.ResolveAndMaybePreflight(
			context.Background(), "satoshi@lexe.app",
		)
		require.NoError(t, err)

		preflighted, ok := state.(*Preflighted)
		require.True(t, ok)
		require.Equal(t, lnwire.MilliSatoshi(5_000_000),
			lnurl.gotAmount)
		require.Equal(t, btcutil.Amount(5_000),
			AmountSat(preflighted.Payment()))
	})

	t.Run("amount outside the service range", func(t *testing.T) {
		t.Parallel()

		node := newFakeNode()
		payReq := newPayRequest(10_000_000, 100_000_000,
			fn.None[uint32]())
		lnurl := &fakeLnurl{
			invoice: mustParseInvoice(t, testInvoiceNoAmount),
		}
		flow := testFlow(t, node,
			&fakeResolver{method: payReq}, lnurl)

		ctx := context.Background()

		_, err := flow.ResolveAndMaybePreflight(
			ctx, "satoshi@lexe.app",
		)
		require.NoError(t, err)

		_, err = flow.Preflight(ctx, 5_000, fn.None[string]())

		var rangeErr *AmountOutOfRangeError
		require.ErrorAs(t, err, &rangeErr)
		require.Equal(t, lnwire.MilliSatoshi(10_000_000),
			rangeErr.MinSendable)
	})

	t.Run("comment dropped when unsupported", func(t *testing.T) {
		t.Parallel()

		node := newFakeNode()
		payReq := newPayRequest(1_000, 100_000_000,
			fn.None[uint32]())
		lnurl := &fakeLnurl{
			invoice: mustParseInvoice(t, testInvoiceNoAmount),
		}
		flow := testFlow(t, node,
			&fakeResolver{method: payReq}, lnurl)

		ctx := context.Background()

		_, err := flow.ResolveAndMaybePreflight(
			ctx, "satoshi@lexe.app",
		)
		require.NoError(t, err)

		preflighted, err := flow.Preflight(
			ctx, 5_000, fn.Some("gj!"),
		)
		require.NoError(t, err)
		require.False(t, lnurl.gotComment.IsSome())

		lnurlPay, ok :=
			preflighted.Payment().(*PreflightedLnurlPay)
		require.True(t, ok)
		require.Equal(t, fn.Some("satoshi@lexe.app"),
			lnurlPay.SendToHint)

		result, err := flow.Pay(ctx, fn.None[string](),
			fn.None[ConfirmationPriority]())
		require.NoError(t, err)

		// LNURL settles over the invoice rail, and the payRequest
		// description stands in for the invoice's empty one.
		require.Equal(t, RailInvoice, result.Payment.Rail)
		require.Equal(t, fn.Some("tip satoshi"),
			result.Payment.Description)
		require.Len(t, node.invoicePays, 1)
	})

	t.Run("comment forwarded when supported", func(t *testing.T) {
		t.Parallel()

		node := newFakeNode()
		payReq := newPayRequest(1_000, 100_000_000,
			fn.Some(uint32(140)))
		lnurl := &fakeLnurl{
			invoice: mustParseInvoice(t, testInvoiceNoAmount),
		}
		flow := testFlow(t, node,
			&fakeResolver{method: payReq}, lnurl)

		ctx := context.Background()

		_, err := flow.ResolveAndMaybePreflight(
			ctx, "satoshi@lexe.app",
		)
		require.NoError(t, err)

		_, err = flow.Preflight(ctx, 5_000, fn.Some("gj!"))
		require.NoError(t, err)
		require.Equal(t, fn.Some("gj!"), lnurl.gotComment)
	})
}

// TestFlowInvalidStateOperations checks that operations invoked from the
// wrong state fail without advancing the flow.
func TestFlowInvalidStateOperations(t *testing.T) {
	t.Parallel()

	node := newFakeNode()
	flow := testFlow(t, node,
		&fakeResolver{method: testOnchainMethod(t)}, nil)

	ctx := context.Background()

	var stateErr *InvalidStateError

	_, err := flow.Preflight(ctx, 1_000, fn.None[string]())
	require.ErrorAs(t, err, &stateErr)

	_, err = flow.Pay(ctx, fn.None[string](), fn.Some(PriorityNormal))
	require.ErrorAs(t, err, &stateErr)

	_, err = flow.ResolveAndMaybePreflight(ctx, testAddress)
	require.NoError(t, err)

	_, err = flow.ResolveAndMaybePreflight(ctx, testAddress)
	require.ErrorAs(t, err, &stateErr)
}

// TestFlowBlocksConcurrentOperations checks that a second operation fails
// fast while one is in flight, instead of double-submitting.
func TestFlowBlocksConcurrentOperations(t *testing.T) {
	t.Parallel()

	node := newFakeNode()
	node.payBlock = make(chan struct{})
	node.payEntered = make(chan struct{}, 1)

	flow := testFlow(t, node,
		&fakeResolver{method: testOnchainMethod(t)}, nil)

	ctx := context.Background()

	_, err := flow.ResolveAndMaybePreflight(ctx, testAddress)
	require.NoError(t, err)
	_, err = flow.Preflight(ctx, 50_000, fn.None[string]())
	require.NoError(t, err)

	firstDone := make(chan error, 1)
	go func() {
		_, err := flow.Pay(ctx, fn.None[string](),
			fn.Some(PriorityNormal))
		firstDone <- err
	}()

	// Wait until the first submission is blocked inside the node call,
	// then try to submit again.
	<-node.payEntered
	_, err = flow.Pay(ctx, fn.None[string](), fn.Some(PriorityNormal))
	require.ErrorIs(t, err, ErrOperationInFlight)

	close(node.payBlock)
	require.NoError(t, <-firstDone)

	// Exactly one payment reached the node.
	require.Len(t, node.onchainPays, 1)
}

// TestFlowPayRetryAfterFailure checks that a failed submission leaves the
// flow at Preflighted for a retry with the same client payment id.
func TestFlowPayRetryAfterFailure(t *testing.T) {
	t.Parallel()

	node := newFakeNode()
	node.payErrs = []error{errors.New("node restarting")}

	flow := testFlow(t, node,
		&fakeResolver{method: testOnchainMethod(t)}, nil)

	ctx := context.Background()

	_, err := flow.ResolveAndMaybePreflight(ctx, testAddress)
	require.NoError(t, err)
	_, err = flow.Preflight(ctx, 50_000, fn.None[string]())
	require.NoError(t, err)

	_, err = flow.Pay(ctx, fn.None[string](), fn.Some(PriorityNormal))
	require.ErrorContains(t, err, "node restarting")
	require.IsType(t, &Preflighted{}, flow.State())
	require.False(t, flow.Result().IsSome())

	_, err = flow.Pay(ctx, fn.None[string](), fn.Some(PriorityNormal))
	require.NoError(t, err)

	require.Len(t, node.onchainPays, 2)
	require.Equal(t, node.onchainPays[0].Cid, node.onchainPays[1].Cid)
	require.Equal(t, flow.Cid(), node.onchainPays[0].Cid)
}

// TestFeeForPriority checks fee tier selection.
func TestFeeForPriority(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		fees     OnchainFeeEstimates
		priority ConfirmationPriority
		want     btcutil.Amount
		err      error
	}{
		{
			name:     "background",
			fees:     testFees,
			priority: PriorityBackground,
			want:     200,
		},
		{
			name:     "normal",
			fees:     testFees,
			priority: PriorityNormal,
			want:     600,
		},
		{
			name:     "high",
			fees:     testFees,
			priority: PriorityHigh,
			want:     1_200,
		},
		{
			name: "high absent",
			fees: OnchainFeeEstimates{
				High:       fn.None[FeeEstimate](),
				Normal:     FeeEstimate{Amount: 600},
				Background: FeeEstimate{Amount: 200},
			},
			priority: PriorityHigh,
			err:      ErrHighPriorityUnavailable,
		},
	}

	for _, testCase := range tests {
		testCase := testCase

		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			fee, err := testCase.fees.FeeForPriority(
				testCase.priority,
			)
			if testCase.err != nil {
				require.ErrorIs(t, err, testCase.err)
				return
			}

			require.NoError(t, err)
			require.Equal(t, testCase.want, fee)
		})
	}
}

// TestNewClientPaymentId checks that generated ids are distinct and render
// as hex.
func TestNewClientPaymentId(t *testing.T) {
	t.Parallel()

	a, err := NewClientPaymentId()
	require.NoError(t, err)
	b, err := NewClientPaymentId()
	require.NoError(t, err)

	require.NotEqual(t, a, b)
	require.Len(t, a.String(), ClientPaymentIdSize*2)
}
