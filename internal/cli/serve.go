package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/rwamarket/internal/engine"
	"github.com/roach88/rwamarket/internal/ledger"
	"github.com/roach88/rwamarket/internal/metrics"
)

// maxLineSize bounds one JSON command line.
const maxLineSize = 1 << 20

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Input       string
	Dispatch    bool
	MetricsAddr string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Apply JSON-line commands through the single-writer processor",
		Long: `Read commands as JSON lines and apply them one at a time.

Each input line is a command envelope:
  {"caller":"buyer","funds":["1000earth"],"now":0,"op":{"kind":"buy","offering_id":"1"}}

and produces exactly one JSON response line on stdout. Seq numbers continue
after the last journaled command. With --dispatch the outbox is delivered in
the background and drained before exit; with --metrics-addr (or
metrics.addr) Prometheus metrics are served on /metrics.

Serving stops at end of input or on SIGINT/SIGTERM.

Examples:
  rwamarket serve --db ./market.db < commands.jsonl
  rwamarket serve --input commands.jsonl --dispatch --metrics-addr :9090`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Input, "input", "", "read commands from a file instead of stdin")
	cmd.Flags().BoolVar(&opts.Dispatch, "dispatch", false, "deliver outbox transfers while serving")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "Prometheus listen address (overrides metrics.addr)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	logger := opts.Logger

	var in io.Reader = cmd.InOrStdin()
	if opts.Input != "" {
		f, err := os.Open(opts.Input)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open input", err)
		}
		defer f.Close()
		in = f
	}

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer opts.closeStore(st)

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	last, err := st.LastSeq(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	m := metrics.New()
	if addr := firstNonEmpty(opts.MetricsAddr, opts.Config.Metrics.Addr); addr != "" {
		srv, err := metrics.NewServer(addr, m.Registry(), logger)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to start metrics server", err)
		}
		srv.Start()
		defer func() {
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelShutdown()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("error stopping metrics server", "error", err)
			}
		}()
	}

	proc := engine.NewProcessor(st,
		engine.WithClock(engine.NewClockAt(last)),
		engine.WithObserver(m),
		engine.WithLogger(logger),
	)
	procDone := make(chan error, 1)
	go func() { procDone <- proc.Run(ctx) }()

	var stopDispatch func() error
	if opts.Dispatch {
		d, cleanup, err := opts.newDispatcher(st, "", m)
		if err != nil {
			proc.Stop()
			<-procDone
			return err
		}
		defer cleanup()

		dctx, dcancel := context.WithCancel(ctx)
		dispatchDone := make(chan struct{})
		go func() {
			defer close(dispatchDone)
			_ = d.Run(dctx)
		}()
		stopDispatch = func() error {
			dcancel()
			<-dispatchDone
			if ctx.Err() != nil {
				return nil
			}
			stats, err := d.Drain(ctx)
			logger.Info("outbox drained", "delivered", stats.Delivered, "retrying", stats.Retrying, "failed", stats.Failed)
			return err
		}
	}

	logger.Info("serving", "db", opts.Config.Database.Path, "seq", last)
	counts, readErr := serveLines(ctx, in, cmd.OutOrStdout(), proc)

	proc.Stop()
	if err := <-procDone; err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitCommandError, "processor error", err)
	}
	if stopDispatch != nil {
		if err := stopDispatch(); err != nil {
			return WrapExitError(ExitCommandError, "dispatch failed", err)
		}
	}

	logger.Info("serve stopped", "accepted", counts.accepted, "rejected", counts.rejected)
	if readErr != nil {
		return WrapExitError(ExitCommandError, "failed to read input", readErr)
	}
	return nil
}

type serveCounts struct {
	accepted int
	rejected int
}

// serveLines submits every non-blank line of in and writes one response
// line per command to out. It returns at end of input or when ctx is done.
func serveLines(ctx context.Context, in io.Reader, out io.Writer, proc *engine.Processor) (serveCounts, error) {
	type line struct {
		text string
		err  error
	}
	lines := make(chan line)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for scanner.Scan() {
			select {
			case lines <- line{text: scanner.Text()}:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			select {
			case lines <- line{err: err}:
			case <-ctx.Done():
			}
		}
	}()

	var counts serveCounts
	encoder := json.NewEncoder(out)
	for {
		var l line
		var ok bool
		select {
		case <-ctx.Done():
			return counts, nil
		case l, ok = <-lines:
		}
		if !ok {
			return counts, nil
		}
		if l.err != nil {
			return counts, l.err
		}
		if strings.TrimSpace(l.text) == "" {
			continue
		}

		resp := serveOne(ctx, proc, []byte(l.text))
		if resp.Status == "ok" {
			counts.accepted++
		} else {
			counts.rejected++
		}
		if err := encoder.Encode(resp); err != nil {
			return counts, fmt.Errorf("write response: %w", err)
		}
	}
}

func serveOne(ctx context.Context, proc *engine.Processor, data []byte) CLIResponse {
	c, err := ledger.DecodeCommand(data, ledger.DefaultValidator{})
	if err != nil {
		return errorResponse(err)
	}
	out, err := proc.Submit(ctx, c)
	if err != nil {
		return errorResponse(err)
	}
	return CLIResponse{
		Status:    "ok",
		Data:      newOperationResult(c.Op.Kind(), out),
		RequestID: out.RequestID,
	}
}

func errorResponse(err error) CLIResponse {
	return CLIResponse{Status: "error", Error: NewCLIError(err, "E_APPLY")}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
