// Package cli wires the caller-facing operations into a command-line
// interface: querying normalized records, submitting calls and awaiting
// their outcome, looking up journaled outcomes, and probing auxiliary
// service health.
package cli

import (
	"context"
	"os"

	"github.com/gabapcia/ledgerwatch/internal/health"
	"github.com/gabapcia/ledgerwatch/internal/ledgerdata"

	"github.com/urfave/cli/v3"
)

// Run initializes and executes the ledgerwatch CLI application.
//
// Registered commands:
//
//   - `query`: fetches and normalizes one record (or a whole collection).
//   - `submit`: signs, submits, and awaits a call's terminal outcome.
//   - `outcome`: looks up a journaled outcome by transaction hash.
//   - `health`: probes the auxiliary REST status endpoint.
func Run(ctx context.Context, ld ledgerdata.Service, hs health.Service) error {
	app := &cli.Command{
		EnableShellCompletion: true,
		Name:                  "ledgerwatch",
		Description:           "Client for submitting transactions to a ledger node and reconciling its query responses.",
		Usage:                 "ledgerwatch [command] [flags]",
		Commands: []*cli.Command{
			queryCommand(ld),
			submitCommand(ld),
			outcomeCommand(ld),
			healthCommand(hs),
		},
	}

	return app.Run(ctx, os.Args)
}
