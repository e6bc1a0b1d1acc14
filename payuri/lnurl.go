package payuri

import (
	"net/url"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// lnurlHrp is the human readable prefix of bech32-encoded LNURLs (LUD-01).
const lnurlHrp = "lnurl"

// DecodeLnurl decodes a bech32-encoded LNURL into its https endpoint. LNURLs
// routinely exceed the 90 character bech32 limit, so the length check is
// skipped per LUD-01.
func DecodeLnurl(bech string) (*Lnurl, error) {
	hrp, data, err := bech32.DecodeNoLimit(bech)
	if err != nil {
		return nil, &ParseError{
			Reason: "invalid bech32 LNURL",
			Err:    err,
		}
	}

	if hrp != lnurlHrp {
		return nil, &ParseError{
			Reason: "unexpected LNURL prefix: " + hrp,
		}
	}

	converted, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, &ParseError{
			Reason: "invalid LNURL payload",
			Err:    err,
		}
	}

	endpoint := string(converted)
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, &ParseError{
			Reason: "LNURL does not contain a valid URL",
			Err:    err,
		}
	}

	// Only https endpoints are accepted; a payment request fetched over
	// cleartext http could be tampered with in transit.
	if !strings.EqualFold(parsed.Scheme, "https") {
		return nil, &ParseError{
			Reason: "LNURL endpoint must use https",
		}
	}

	return &Lnurl{URL: endpoint}, nil
}
