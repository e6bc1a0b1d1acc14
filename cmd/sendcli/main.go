// sendcli is a small debugging tool for the payment string resolution
// pipeline: it parses and resolves BIP21 URIs, BOLT11 invoices, BOLT12
// offers, LNURLs and lightning addresses and prints what a wallet would see.
package main

import (
	"fmt"
	"os"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "sendcli"
	app.Usage = "inspect and resolve bitcoin/lightning payment strings"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "network",
			Usage: "the network to validate against: mainnet, " +
				"testnet, signet or regtest",
			Value: "mainnet",
		},
	}
	app.Commands = []cli.Command{
		decodeCommand,
		resolveCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "[sendcli]", err)
		os.Exit(1)
	}
}

// network maps the --network flag to chain parameters.
func network(ctx *cli.Context) (*chaincfg.Params, error) {
	name := ctx.GlobalString("network")
	switch name {
	case "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet":
		return &chaincfg.TestNet3Params, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, fmt.Errorf("unknown network: %v", name)
	}
}
