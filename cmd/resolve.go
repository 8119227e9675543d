package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"truelink/internal"
)

var (
	resolveTimeout int
	resolveRetries int
	resolveDirect  bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <URL>",
	Short: "Resolve one URL and print the outcome as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(*config)
		if err != nil {
			return err
		}
		defer a.close()

		ctx, stop := signalContext()
		defer stop()

		req := a.request(args[0], time.Duration(resolveTimeout)*time.Second, resolveRetries)
		if resolveDirect {
			links, out := a.orch.DirectLinks(ctx, req)
			if out.Status != internal.StatusSuccess {
				return fmt.Errorf("%s: %s", out.Status, out.Message)
			}
			return printJSON(cmd.OutOrStdout(), links)
		}

		out := a.orch.ResolveSingle(ctx, req)
		if err := printJSON(cmd.OutOrStdout(), out); err != nil {
			return err
		}
		if out.Status != internal.StatusSuccess {
			return fmt.Errorf("resolution %s", out.Status)
		}
		return nil
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch <URL>...",
	Short: "Resolve several URLs concurrently and print the batch as JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(*config)
		if err != nil {
			return err
		}
		defer a.close()

		ctx, stop := signalContext()
		defer stop()

		batch, err := a.orch.ResolveBatch(ctx, args, a.request("", time.Duration(resolveTimeout)*time.Second, resolveRetries))
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), batch)
	},
}

var domainsCmd = &cobra.Command{
	Use:   "domains",
	Short: "List supported domains",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(*config)
		if err != nil {
			return err
		}
		defer a.close()

		out := cmd.OutOrStdout()
		for _, d := range a.generic.SupportedDomains() {
			fmt.Fprintln(out, d)
		}
		return nil
	},
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func init() {
	for _, c := range []*cobra.Command{resolveCmd, batchCmd} {
		c.Flags().IntVarP(&resolveTimeout, "timeout", "t", 0, "Per-URL timeout in seconds (default from config)")
		c.Flags().IntVar(&resolveRetries, "retries", -1, "Retry attempts per request, 0-10 (default from config)")
	}
	resolveCmd.Flags().BoolVar(&resolveDirect, "direct", false, "Print only the direct links found")
}
