package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/fn"
	"github.com/urfave/cli"

	"github.com/lexe-app/lexe-public-sub000/payuri"
)

var decodeCommand = cli.Command{
	Name:      "decode",
	Usage:     "parse a payment string without touching the network",
	ArgsUsage: "uri",
	Description: `
	Parses a payment string (BIP21 URI, address, BOLT11 invoice, BOLT12
	offer, LNURL or lightning address) and prints the payment methods it
	contains, without resolving LNURLs or lightning addresses.`,
	Action: decode,
}

func decode(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "decode")
	}

	net, err := network(ctx)
	if err != nil {
		return err
	}

	uri, err := payuri.Parse(net, ctx.Args().First())
	if err != nil {
		return err
	}

	methods, needsResolution := payuri.Flatten(uri)

	out := struct {
		NeedsResolution bool             `json:"needs_resolution"`
		Methods         []*displayMethod `json:"methods"`
	}{
		NeedsResolution: needsResolution,
	}
	for _, method := range methods {
		out.Methods = append(out.Methods, newDisplayMethod(net, method))
	}

	return printJson(out)
}

// displayMethod is the JSON rendering of a single payment method.
type displayMethod struct {
	Type            string `json:"type"`
	Address         string `json:"address,omitempty"`
	AmountSat       int64  `json:"amount_sat,omitempty"`
	Description     string `json:"description,omitempty"`
	Payee           string `json:"payee,omitempty"`
	ExpiresAt       string `json:"expires_at,omitempty"`
	Callback        string `json:"callback,omitempty"`
	MinSendableMsat uint64 `json:"min_sendable_msat,omitempty"`
	MaxSendableMsat uint64 `json:"max_sendable_msat,omitempty"`
	ValidOnNetwork  bool   `json:"valid_on_network"`
}

func newDisplayMethod(net *chaincfg.Params,
	method payuri.PaymentMethod) *displayMethod {

	out := &displayMethod{
		ValidOnNetwork: method.SupportsNetwork(net),
	}
	switch m := method.(type) {
	case *payuri.Onchain:
		out.Type = "onchain"
		out.Address = m.AddressStr
		out.AmountSat = optAmountSat(m.Amount)
		out.Description = m.Message.UnwrapOr("")

	case *payuri.Invoice:
		out.Type = "invoice"
		out.AmountSat = optAmountSat(m.Amount())
		out.Description = m.Description().UnwrapOr("")
		out.Payee = fmt.Sprintf("%x",
			m.PayeePubKey().SerializeCompressed())
		out.ExpiresAt = m.ExpiresAt().Format(time.RFC3339)

	case *payuri.Offer:
		out.Type = "offer"
		out.AmountSat = optAmountSat(m.Amount)
		out.Description = m.Description.UnwrapOr("")

	case *payuri.LnurlPayRequest:
		out.Type = "lnurl_pay"
		out.Callback = m.Callback
		out.Description = m.Metadata.Description
		out.MinSendableMsat = uint64(m.MinSendable)
		out.MaxSendableMsat = uint64(m.MaxSendable)

	default:
		panic("unreachable: non-exhaustive PaymentMethod switch")
	}

	return out
}

func optAmountSat(amount fn.Option[btcutil.Amount]) int64 {
	return int64(amount.UnwrapOr(0))
}

func printJson(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "    ")
	return enc.Encode(v)
}
