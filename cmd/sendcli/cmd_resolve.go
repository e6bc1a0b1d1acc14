package main

import (
	"context"
	"time"

	"github.com/urfave/cli"

	"github.com/lexe-app/lexe-public-sub000/bip353"
	"github.com/lexe-app/lexe-public-sub000/lnurl"
	"github.com/lexe-app/lexe-public-sub000/payuri"
)

var resolveCommand = cli.Command{
	Name:      "resolve",
	Usage:     "fully resolve a payment string to its best payment method",
	ArgsUsage: "uri",
	Description: `
	Parses a payment string and resolves it to the single preferred
	payment method a wallet would pay, following LNURLs, lightning
	addresses (LUD-16) and BIP353 DNS payment instructions over the
	network.`,
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "dns",
			Usage: "the DNSSEC-validating resolver to query for " +
				"BIP353 lookups, as host:port",
			Value: "1.1.1.1:53",
		},
		cli.DurationFlag{
			Name:  "timeout",
			Usage: "overall resolution timeout",
			Value: 30 * time.Second,
		},
	},
	Action: resolve,
}

func resolve(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "resolve")
	}

	net, err := network(ctx)
	if err != nil {
		return err
	}

	resolver := payuri.NewResolver(payuri.ResolverConfig{
		Lnurl: lnurl.NewClient(lnurl.Config{}),
		Bip353: bip353.NewResolver(bip353.Config{
			ResolverAddr: ctx.String("dns"),
		}),
	})

	ctxt, cancel := context.WithTimeout(
		context.Background(), ctx.Duration("timeout"),
	)
	defer cancel()

	method, err := resolver.ResolveBest(ctxt, net, ctx.Args().First())
	if err != nil {
		return err
	}

	return printJson(newDisplayMethod(net, method))
}
