package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

// NewScanCommand creates the scan command.
func NewScanCommand(rootOpts *RootOptions) *cobra.Command {
	var readerID string

	cmd := &cobra.Command{
		Use:   "scan <card-tag>",
		Short: "Submit one badge scan to a running server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := types.ParseTag(args[0]); err != nil {
				return err
			}
			return withClient(cmd, rootOpts, func(ctx context.Context, c clientAPI) error {
				resp, err := c.RecordScan(ctx, types.ScanRequest{ReaderID: readerID, CardTag: args[0]})
				if err != nil {
					return err
				}
				if rootOpts.Format == "json" {
					return writeJSON(cmd.OutOrStdout(), resp)
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", resp.CardTag, resp.DirectionName)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&readerID, "reader", "cli", "reader ID reported with the scan")
	return cmd
}

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Check every card out and erase the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, rootOpts, func(ctx context.Context, c clientAPI) error {
				if err := c.Reset(ctx); err != nil {
					return err
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "reset")
				return err
			})
		},
	}
}

// NewDumpCommand creates the dump command.
func NewDumpCommand(rootOpts *RootOptions) *cobra.Command {
	var chronological bool

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the ledger",
		Long: `Print every ledger row. Rows come in store order unless
--chronological is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, rootOpts, func(ctx context.Context, c clientAPI) error {
				snap, err := c.Snapshot(ctx)
				if err != nil {
					return err
				}
				if chronological {
					snap = snap.Chronological()
				}
				return writeSnapshot(cmd.OutOrStdout(), rootOpts.Format, snap)
			})
		},
	}
	cmd.Flags().BoolVar(&chronological, "chronological", false, "sort rows by time")
	return cmd
}

type clientAPI interface {
	RecordScan(ctx context.Context, req types.ScanRequest) (types.ScanResponse, error)
	Reset(ctx context.Context) error
	Snapshot(ctx context.Context) (types.Snapshot, error)
}

func withClient(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, c clientAPI) error) error {
	c, err := opts.dial(opts.Server)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
	defer cancel()
	return fn(ctx, c)
}

func writeSnapshot(w io.Writer, format string, snap types.Snapshot) error {
	if format == "json" {
		return writeJSON(w, snap.Records())
	}
	for _, e := range snap {
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\n", e.Time().Format("2006-01-02T15:04:05Z"), e.Tag, e.Direction); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
