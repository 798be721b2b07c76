package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/rwamarket/internal/dispatch"
	"github.com/roach88/rwamarket/internal/store"
)

// DispatchOptions holds flags for the dispatch command.
type DispatchOptions struct {
	*RootOptions
	Watch       bool
	RetryFailed bool
	Output      string
}

// DispatchResult holds the dispatch summary.
type DispatchResult struct {
	Delivered int            `json:"delivered"`
	Retrying  int            `json:"retrying"`
	Failed    int            `json:"failed"`
	Reset     int64          `json:"reset,omitempty"`
	Outbox    map[string]int `json:"outbox"`
}

// NewDispatchCommand creates the dispatch command.
func NewDispatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DispatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Deliver pending transfers from the outbox",
		Long: `Deliver pending transfers in the order they were decided.

Transfers are appended as JSON lines to --output (or dispatch.output), or
logged when neither is set. A transfer that fails dispatch.max_attempts
times is parked as failed; --retry-failed puts parked transfers back in
the queue first.

By default the outbox is drained once. With --watch the dispatcher polls
every dispatch.interval until interrupted.

Examples:
  rwamarket dispatch --output ./transfers.jsonl
  rwamarket dispatch --watch --retry-failed`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDispatch(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "keep polling until interrupted")
	cmd.Flags().BoolVar(&opts.RetryFailed, "retry-failed", false, "re-queue failed transfers before dispatching")
	cmd.Flags().StringVar(&opts.Output, "output", "", "JSON-lines file receiving transfers (overrides dispatch.output)")

	return cmd
}

// newDispatcher builds a dispatcher over st from the configuration. The
// returned cleanup releases the executor's output file.
func (o *RootOptions) newDispatcher(st *store.Store, output string, recorder dispatch.Recorder) (*dispatch.Dispatcher, func(), error) {
	if output == "" {
		output = o.Config.Dispatch.Output
	}

	var (
		exec    dispatch.Executor = dispatch.LogExecutor{Logger: o.Logger}
		cleanup                   = func() {}
	)
	if output != "" {
		jsonl, err := dispatch.OpenJSONLExecutor(output)
		if err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "failed to open transfer output", err)
		}
		exec = jsonl
		cleanup = func() {
			if err := jsonl.Close(); err != nil {
				o.Logger.Error("error closing transfer output", "path", output, "error", err)
			}
		}
	}

	dopts := []dispatch.Option{
		dispatch.WithInterval(o.Config.Dispatch.Interval),
		dispatch.WithBatchSize(o.Config.Dispatch.BatchSize),
		dispatch.WithMaxAttempts(o.Config.Dispatch.MaxAttempts),
		dispatch.WithLogger(o.Logger),
	}
	if recorder != nil {
		dopts = append(dopts, dispatch.WithRecorder(recorder))
	}
	d, err := dispatch.New(st, exec, dopts...)
	if err != nil {
		cleanup()
		return nil, nil, WrapExitError(ExitCommandError, "invalid dispatch settings", err)
	}
	return d, cleanup, nil
}

func runDispatch(opts *DispatchOptions, cmd *cobra.Command) error {
	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer opts.closeStore(st)

	d, cleanup, err := opts.newDispatcher(st, opts.Output, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var result DispatchResult
	if opts.RetryFailed {
		result.Reset, err = st.RetryFailed(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to re-queue transfers", err)
		}
		opts.Logger.Info("re-queued failed transfers", "count", result.Reset)
	}

	if opts.Watch {
		opts.Logger.Info("dispatcher starting", "interval", opts.Config.Dispatch.Interval)
		if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return WrapExitError(ExitCommandError, "dispatcher error", err)
		}
		opts.Logger.Info("dispatcher stopped gracefully")
		return nil
	}

	stats, err := d.Drain(ctx)
	result.Delivered, result.Retrying, result.Failed = stats.Delivered, stats.Retrying, stats.Failed
	if err != nil {
		return WrapExitError(ExitCommandError, "dispatch failed", err)
	}

	counts, err := st.OutboxCounts(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to count outbox", err)
	}
	result.Outbox = map[string]int{}
	for status, n := range counts {
		result.Outbox[string(status)] = n
	}

	if opts.Format == "json" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(CLIResponse{Status: "ok", Data: result})
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Dispatched: %d delivered, %d retrying, %d failed\n", result.Delivered, result.Retrying, result.Failed)
	fmt.Fprintf(w, "Outbox: %d pending, %d dispatched, %d failed\n",
		result.Outbox[string(store.StatusPending)],
		result.Outbox[string(store.StatusDispatched)],
		result.Outbox[string(store.StatusFailed)])
	return nil
}
