// Package cli implements pawbookctl, an operator tool for the booking
// service: schema migrations plus thin wrappers over the gRPC API.
package cli

import (
	"os"
	"time"

	"github.com/spf13/cobra"
)

const defaultAddr = "127.0.0.1:50051"

var version = "dev"

func SetVersion(v string) {
	if v == "" {
		return
	}
	version = v
}

type options struct {
	addr       string
	timeout    time.Duration
	jsonOutput bool
}

// NewRootCmd builds a fresh command tree. Each call has its own flag state.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:     "pawbookctl",
		Version: version,
		Short:   "Operate the pawbook booking service",
		Long: `pawbookctl applies database migrations and talks to a running
pawbook-server over gRPC to list open slots, book them and move bookings
through their lifecycle.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	root.SetVersionTemplate("{{.Version}}\n")

	addr := os.Getenv("PAWBOOK_GRPC_ADDR")
	if addr == "" {
		addr = defaultAddr
	}
	root.PersistentFlags().StringVar(&opts.addr, "addr", addr, "pawbook-server gRPC address")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "per-request timeout")
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "Output in JSON format")

	root.AddGroup(
		&cobra.Group{ID: "bookings", Title: "Bookings:"},
		&cobra.Group{ID: "admin", Title: "Administration:"},
	)

	root.AddCommand(
		newSlotsCmd(opts),
		newBookCmd(opts),
		newTransitionCmd(opts),
		newShowCmd(opts),
		newTransitionsCmd(opts),
		newMigrateCmd(opts),
	)
	return root
}

func Execute() error {
	return NewRootCmd().Execute()
}
