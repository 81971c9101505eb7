package cli

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gabapcia/ledgerwatch/internal/ledger"
	"github.com/gabapcia/ledgerwatch/internal/ledgerdata"
	"github.com/gabapcia/ledgerwatch/internal/submitter"

	"github.com/urfave/cli/v3"
)

// submitCommand returns a CLI command that signs and submits one call, waits
// for its terminal outcome, and prints the minted identifiers.
//
// Usage example:
//
//	ledgerwatch submit --module policies --function createPolicy \
//	    --args '{"holder":"0xabc...","totalShares":100}' \
//	    --seed 9d61b19deffd5a60ba844af492ec2cc44449c5697b326919703bac031cae7f60 \
//	    --finalized
func submitCommand(ld ledgerdata.Service) *cli.Command {
	return &cli.Command{
		Name:        "submit",
		Description: "Sign and submit a call, then await its terminal outcome.",
		Usage:       "Submits a transaction and prints the outcome and any minted identifiers.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "module",
				Usage:    "Target ledger module",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "function",
				Usage:    "Dispatchable function within the module",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "args",
				Usage: "Call arguments as a JSON object",
				Value: "{}",
			},
			&cli.StringFlag{
				Name:     "seed",
				Usage:    "Hex-encoded ed25519 seed of the signing account",
				Required: true,
				Sources:  cli.EnvVars("LEDGERWATCH_SIGNER_SEED"),
			},
			&cli.BoolFlag{
				Name:  "finalized",
				Usage: "Wait for finality instead of accepting in-block inclusion",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			var args map[string]any
			if err := json.Unmarshal([]byte(c.String("args")), &args); err != nil {
				return fmt.Errorf("parsing --args: %w", err)
			}

			signer, err := signerFromSeed(c.String("seed"))
			if err != nil {
				return err
			}

			call := ledger.Call{
				Module:   c.String("module"),
				Function: c.String("function"),
				Args:     args,
			}

			result, err := ld.SubmitAndAwait(ctx, call, signer, c.Bool("finalized"))
			if err != nil {
				return err
			}

			return printJSON(result)
		},
	}
}

// signerFromSeed builds the default ed25519 signer from a hex seed.
func signerFromSeed(seed string) (submitter.Signer, error) {
	raw, err := hex.DecodeString(seed)
	if err != nil {
		return nil, fmt.Errorf("decoding signer seed: %w", err)
	}
	if len(raw) != ed25519.SeedSize {
		return nil, fmt.Errorf("signer seed must be %d bytes, got %d", ed25519.SeedSize, len(raw))
	}

	return submitter.NewEd25519Signer(ed25519.NewKeyFromSeed(raw))
}
