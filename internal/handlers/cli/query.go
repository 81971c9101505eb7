package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gabapcia/ledgerwatch/internal/ledgerdata"

	"github.com/urfave/cli/v3"
)

// queryCommand returns a CLI command that fetches one record by key, or a
// whole collection when no key is given, and prints the normalized form.
//
// Usage examples:
//
//	ledgerwatch query --collection policies --key 0xabc...
//	ledgerwatch query --collection policies
func queryCommand(ld ledgerdata.Service) *cli.Command {
	return &cli.Command{
		Name:        "query",
		Description: "Fetch ledger records and print them in canonical normalized form.",
		Usage:       "Queries one record by key, or every record in a collection.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "collection",
				Usage:    "Collection (module/map) name, e.g. policies",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "key",
				Usage: "Record key; omit to list the whole collection",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			var (
				collection = c.String("collection")
				key        = c.String("key")
			)

			if key == "" {
				records, err := ld.QueryAll(ctx, collection)
				if err != nil {
					return err
				}
				return printJSON(records)
			}

			record, err := ld.Query(ctx, collection, key)
			if err != nil {
				if errors.Is(err, ledgerdata.ErrNotFound) {
					fmt.Println("not found")
					return nil
				}
				return err
			}

			return printJSON(record)
		},
	}
}

// outcomeCommand returns a CLI command that looks up a journaled submission
// outcome by transaction hash.
//
// Usage example:
//
//	ledgerwatch outcome --tx 0x5f1e...
func outcomeCommand(ld ledgerdata.Service) *cli.Command {
	return &cli.Command{
		Name:        "outcome",
		Description: "Look up the journaled terminal outcome of a past submission.",
		Usage:       "Prints the journal entry recorded under a transaction hash.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "tx",
				Usage:    "Transaction hash",
				Required: true,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			entry, err := ld.LookupOutcome(ctx, c.String("tx"))
			if err != nil {
				if errors.Is(err, ledgerdata.ErrOutcomeNotFound) {
					fmt.Println("not found")
					return nil
				}
				return err
			}

			return printJSON(entry)
		},
	}
}

// printJSON renders any value as indented JSON on stdout.
func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	fmt.Println(string(out))
	return nil
}
