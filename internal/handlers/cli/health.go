package cli

import (
	"context"

	"github.com/gabapcia/ledgerwatch/internal/health"

	"github.com/urfave/cli/v3"
)

// healthCommand returns a CLI command that probes the auxiliary REST status
// endpoint and prints the liveness picture. The probe is best-effort: an
// unreachable endpoint prints an offline status instead of failing.
//
// Usage example:
//
//	ledgerwatch health
func healthCommand(hs health.Service) *cli.Command {
	return &cli.Command{
		Name:        "health",
		Description: "Probe the auxiliary status endpoint and print subsystem liveness.",
		Usage:       "Prints the best-effort health status of the auxiliary services.",
		Action: func(ctx context.Context, c *cli.Command) error {
			return printJSON(hs.Check(ctx))
		},
	}
}
