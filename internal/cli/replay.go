package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
)

// ReplayResult holds the replay result.
type ReplayResult struct {
	Commands      int      `json:"commands"`
	Transfers     int      `json:"transfers"`
	LastSeq       int64    `json:"last_seq"`
	StateDigest   string   `json:"state_digest,omitempty"`
	Deterministic bool     `json:"deterministic"`
	Mismatches    []string `json:"mismatches,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay the journal and verify the persisted state",
		Long: `Replay every journaled command against an empty in-memory state and
verify that it reproduces the persisted registry, offerings, rentals and
the full transfer outbox.

Exit codes:
  0 - Replay matches the database
  1 - Replay diverged (every mismatch is listed)
  2 - Command error (database not found, etc.)

Examples:
  rwamarket replay --db ./market.db
  rwamarket replay --db ./market.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(rootOpts, cmd)
		},
	}
	return cmd
}

func runReplay(opts *RootOptions, cmd *cobra.Command) error {
	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer opts.closeStore(st)

	report, err := st.Replay(cmd.Context())
	result := ReplayResult{
		Commands:      report.Commands,
		Transfers:     report.Transfers,
		LastSeq:       report.LastSeq,
		StateDigest:   report.StateDigest,
		Deterministic: err == nil,
	}
	if err != nil {
		var merr *multierror.Error
		if !errors.As(err, &merr) {
			return WrapExitError(ExitCommandError, "replay failed", err)
		}
		for _, e := range merr.Errors {
			result.Mismatches = append(result.Mismatches, e.Error())
		}
	}

	if opts.Format == "json" {
		return outputReplayJSON(cmd, result)
	}
	return outputReplayText(cmd, result, opts.Verbose)
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(cmd *cobra.Command, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	if !result.Deterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_DETERMINISM",
			Message: "replay diverged from the database",
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !result.Deterministic {
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Replay Summary: %d command(s), %d transfer(s)\n", result.Commands, result.Transfers)
	if verbose {
		fmt.Fprintf(w, "  Last seq: %d\n", result.LastSeq)
		if result.StateDigest != "" {
			fmt.Fprintf(w, "  State digest: %s\n", result.StateDigest)
		}
	}
	fmt.Fprintln(w)

	if result.Deterministic {
		fmt.Fprintln(w, "✓ Replay matches the database")
		return nil
	}

	for _, m := range result.Mismatches {
		fmt.Fprintf(w, "  ✗ %s\n", m)
	}
	fmt.Fprintln(w, "✗ Determinism verification failed")
	return NewExitError(ExitFailure, "determinism verification failed")
}
