// Package lnurl implements the client side of the LNURL-pay protocol: LUD-06
// payRequest fetching, LUD-12 payer comments, and LUD-16 Lightning
// Addresses. Decoding of the LNURL strings themselves lives in payuri; this
// package owns the network round-trips and response validation.
package lnurl

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/fn"
	"github.com/lightningnetwork/lnd/lnwire"

	"github.com/lexe-app/lexe-public-sub000/payuri"
)

const (
	// DefaultRequestTimeout bounds each LNURL http request.
	DefaultRequestTimeout = time.Second * 10

	// DefaultMaxResponseBytes bounds the size of LNURL responses we are
	// willing to read. Metadata may embed base64 thumbnails, so this is
	// fairly generous.
	DefaultMaxResponseBytes = 512 << 10
)

// Config holds the client's tunable knobs.
type Config struct {
	// HttpClient performs the requests. If nil, a client with
	// DefaultRequestTimeout is used.
	HttpClient *http.Client

	// MaxResponseBytes bounds response body reads. If zero,
	// DefaultMaxResponseBytes is used.
	MaxResponseBytes int64
}

// Client fetches and validates LNURL-pay responses.
type Client struct {
	cfg Config
}

// A compile time check that Client satisfies the payuri.LnurlFetcher
// interface.
var _ payuri.LnurlFetcher = (*Client)(nil)

// NewClient creates an LNURL client, filling in defaults for unset config
// values.
func NewClient(cfg Config) *Client {
	if cfg.HttpClient == nil {
		cfg.HttpClient = &http.Client{Timeout: DefaultRequestTimeout}
	}
	if cfg.MaxResponseBytes == 0 {
		cfg.MaxResponseBytes = DefaultMaxResponseBytes
	}

	return &Client{cfg: cfg}
}

// rawResponse is the union of every field an LNURL-pay endpoint may return.
// LNURL has no consistent response tagging, so the error envelope fields
// ride alongside the payRequest and callback fields and are checked first.
type rawResponse struct {
	Status         string          `json:"status"`
	Reason         string          `json:"reason"`
	Tag            string          `json:"tag"`
	Callback       string          `json:"callback"`
	MinSendable    uint64          `json:"minSendable"`
	MaxSendable    uint64          `json:"maxSendable"`
	Metadata       string          `json:"metadata"`
	CommentAllowed *uint32         `json:"commentAllowed"`
	Pr             string          `json:"pr"`
	Routes         json.RawMessage `json:"routes"`
}

// GetPayRequest fetches and validates a LUD-06 payRequest from an https
// endpoint.
func (c *Client) GetPayRequest(ctx context.Context,
	endpoint string) (*payuri.LnurlPayRequest, error) {

	log.Debugf("Fetching LNURL-pay response from: %v", endpoint)

	resp, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	if resp.Status == "ERROR" {
		return nil, fmt.Errorf("LNURL-pay service error: %v",
			resp.Reason)
	}

	if resp.Tag != "payRequest" {
		return nil, fmt.Errorf("expected a payRequest response, "+
			"got tag %q", resp.Tag)
	}

	callback, err := url.Parse(resp.Callback)
	if err != nil || !strings.EqualFold(callback.Scheme, "https") {
		return nil, fmt.Errorf("payRequest callback must be an "+
			"https URL, got %q", resp.Callback)
	}

	minSendable := lnwire.MilliSatoshi(resp.MinSendable)
	maxSendable := lnwire.MilliSatoshi(resp.MaxSendable)
	if minSendable == 0 {
		return nil, fmt.Errorf("payRequest minSendable must be " +
			"positive")
	}
	if minSendable > maxSendable {
		return nil, fmt.Errorf("invalid payRequest sendable range: "+
			"min %v > max %v", minSendable, maxSendable)
	}

	metadata, err := parseMetadata(resp.Metadata)
	if err != nil {
		return nil, fmt.Errorf("invalid payRequest metadata: %w", err)
	}

	commentAllowed := fn.None[uint32]()
	if resp.CommentAllowed != nil && *resp.CommentAllowed > 0 {
		commentAllowed = fn.Some(*resp.CommentAllowed)
	}

	return &payuri.LnurlPayRequest{
		Callback:       resp.Callback,
		MinSendable:    minSendable,
		MaxSendable:    maxSendable,
		Metadata:       metadata,
		CommentAllowed: commentAllowed,
	}, nil
}

// ResolvePayRequest requests a BOLT11 invoice for the given amount from a
// payRequest's callback, validating the returned invoice against the
// request: the invoice amount must equal the requested amount exactly, and
// its description hash must commit to the payRequest metadata.
func (c *Client) ResolvePayRequest(ctx context.Context, net *chaincfg.Params,
	payReq *payuri.LnurlPayRequest, amount lnwire.MilliSatoshi,
	comment fn.Option[string]) (*payuri.Invoice, error) {

	if amount < payReq.MinSendable || amount > payReq.MaxSendable {
		return nil, fmt.Errorf("amount %v is outside the service's "+
			"sendable range [%v, %v]", amount, payReq.MinSendable,
			payReq.MaxSendable)
	}

	// Build the callback URL. The callback may already carry query
	// parameters of its own.
	callbackUrl := payReq.Callback
	sep := "?"
	if strings.Contains(callbackUrl, "?") {
		sep = "&"
	}
	callbackUrl += sep + "amount=" +
		strconv.FormatUint(uint64(amount), 10)

	if comment.IsSome() {
		text := comment.UnwrapOr("")

		limit := payReq.CommentAllowed.UnwrapOr(0)
		if limit == 0 {
			return nil, fmt.Errorf("service does not accept " +
				"payment comments")
		}
		if uint32(len(text)) > limit {
			return nil, fmt.Errorf("comment is %d bytes, "+
				"service accepts at most %d", len(text),
				limit)
		}

		callbackUrl += "&comment=" + url.QueryEscape(text)
	}

	log.Debugf("Resolving LNURL-pay request for %v via callback", amount)

	resp, err := c.get(ctx, callbackUrl)
	if err != nil {
		return nil, err
	}

	if resp.Status == "ERROR" {
		return nil, fmt.Errorf("LNURL-pay callback error: %v",
			resp.Reason)
	}

	if resp.Pr == "" {
		return nil, fmt.Errorf("LNURL-pay callback returned no " +
			"invoice")
	}

	invoice, err := payuri.ParseInvoice(net, resp.Pr)
	if err != nil {
		return nil, fmt.Errorf("LNURL-pay callback returned an "+
			"unparseable invoice: %w", err)
	}

	// The returned invoice must carry the exact amount we asked for; an
	// amountless or repriced invoice could trick the payer.
	invoiceAmount := invoice.AmountMsat()
	if !invoiceAmount.IsSome() {
		return nil, fmt.Errorf("LNURL-pay invoice must carry an " +
			"amount")
	}
	if got := invoiceAmount.UnwrapOr(0); got != amount {
		return nil, fmt.Errorf("LNURL-pay invoice amount %v doesn't "+
			"match requested amount %v", got, amount)
	}

	// The invoice's description hash must commit to the payRequest
	// metadata, proving what is being paid for.
	descHash := invoice.Decoded.DescriptionHash
	if descHash == nil {
		return nil, fmt.Errorf("LNURL-pay invoice must commit to " +
			"the payRequest metadata via description hash")
	}
	if *descHash != payReq.Metadata.DescriptionHash {
		return nil, fmt.Errorf("LNURL-pay invoice description hash " +
			"doesn't match the payRequest metadata")
	}

	return invoice, nil
}

// get performs a GET against an https URL and decodes the response body.
func (c *Client) get(ctx context.Context, endpoint string) (*rawResponse,
	error) {

	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid LNURL endpoint: %w", err)
	}
	if !strings.EqualFold(parsed.Scheme, "https") {
		return nil, fmt.Errorf("LNURL endpoint must use https: %v",
			endpoint)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, endpoint, nil,
	)
	if err != nil {
		return nil, err
	}

	httpResp, err := c.cfg.HttpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("LNURL request failed: %w", err)
	}
	defer func() {
		_ = httpResp.Body.Close()
	}()

	var resp rawResponse
	limited := &io.LimitedReader{
		R: httpResp.Body,
		N: c.cfg.MaxResponseBytes,
	}
	if err := json.NewDecoder(limited).Decode(&resp); err != nil {
		return nil, fmt.Errorf("could not decode LNURL response: %w",
			err)
	}

	return &resp, nil
}

// parseMetadata parses the LUD-06 metadata string, a JSON array of
// [mimetype, value] pairs, requiring the mandatory text/plain entry.
func parseMetadata(raw string) (payuri.LnurlPayMetadata, error) {
	var zero payuri.LnurlPayMetadata

	var entries [][]string
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return zero, err
	}

	metadata := payuri.LnurlPayMetadata{
		Raw:             raw,
		DescriptionHash: sha256.Sum256([]byte(raw)),
		LongDescription: fn.None[string](),
		Identifier:      fn.None[string](),
		Email:           fn.None[string](),
	}

	haveDescription := false
	for _, entry := range entries {
		if len(entry) != 2 {
			continue
		}

		switch entry[0] {
		case "text/plain":
			metadata.Description = entry[1]
			haveDescription = true

		case "text/long-desc":
			metadata.LongDescription = fn.Some(entry[1])

		case "text/identifier":
			metadata.Identifier = fn.Some(entry[1])

		case "text/email":
			metadata.Email = fn.Some(entry[1])
		}
	}

	if !haveDescription {
		return zero, fmt.Errorf("metadata is missing the required " +
			"text/plain entry")
	}

	return metadata, nil
}
