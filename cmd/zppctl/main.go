// Command zppctl drives a running zppd from the shell.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/matheus3301/zpp/internal/api"
	"github.com/matheus3301/zpp/internal/session"
	"github.com/spf13/cobra"
)

type options struct {
	session string
	json    bool
	timeout time.Duration
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "zppctl",
		Short:         "Control a running zppd",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&opts.session, "session", "", "session name (overrides config default)")
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "output in JSON format")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "per-command deadline")

	root.AddCommand(
		statusCmd(opts),
		sendCmd(opts),
		composeCmd(opts),
		presenceCmd(opts),
		messagesCmd(opts),
		resendCmd(opts),
		unsentCmd(opts),
		watchCmd(opts),
		sessionsCmd(opts),
	)
	return root
}

// connect resolves the session and dials its daemon.
func connect(opts *options) (*api.Client, error) {
	name := session.Resolve(opts.session)
	if err := session.ValidateName(name); err != nil {
		return nil, err
	}
	c, err := api.Dial(session.SocketPath(name))
	if err != nil {
		return nil, fmt.Errorf("cannot connect to daemon for session %q: %w", name, err)
	}
	return c, nil
}

// withClient runs fn with a connected client and a bounded context.
func withClient(cmd *cobra.Command, opts *options, fn func(ctx context.Context, c *api.Client) error) error {
	c, err := connect(opts)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()
	return fn(ctx, c)
}

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
