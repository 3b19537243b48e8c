package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/rollcall/internal/grpcapi"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	Server     string        // gRPC address used by client commands
	Timeout    time.Duration // per-call deadline for client commands
	Format     string        // "text" | "json"

	// dial opens the client used by scan, reset and dump.
	dial func(addr string) (*grpcapi.Client, error)
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the rollcall CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{dial: func(addr string) (*grpcapi.Client, error) {
		return grpcapi.Dial(addr)
	}})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rollcall",
		Short: "rollcall - badge attendance ledger",
		Long: `Records badge scans as IN/OUT transitions, keeps a durable ledger of
every transition and pushes live snapshots to connected browsers.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "YAML config file (ROLLCALL_* env vars override it)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level override (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.Server, "server", "localhost:9090", "gRPC address of a running server")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 5*time.Second, "deadline for client calls")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewScanCommand(opts))
	cmd.AddCommand(NewResetCommand(opts))
	cmd.AddCommand(NewDumpCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
