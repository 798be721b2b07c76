package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/rwamarket/internal/store"
)

// JournalOptions holds flags for the journal command.
type JournalOptions struct {
	*RootOptions
	After int64
	Limit int
	Seq   int64 // optional - single entry only
}

// JournalView is one journaled command with the transfers it decided.
type JournalView struct {
	Seq       int64            `json:"seq"`
	RequestID string           `json:"request_id"`
	Command   map[string]any   `json:"command"`
	Events    []EventAttribute `json:"events"`
	Transfers []TransferView   `json:"transfers"`
}

// TransferView is an outbox row.
type TransferView struct {
	ID        string            `json:"id"`
	Position  int               `json:"position"`
	Transfer  map[string]string `json:"transfer"`
	Status    string            `json:"status"`
	Attempts  int               `json:"attempts"`
	LastError string            `json:"last_error,omitempty"`
}

// JournalResult holds the journal output.
type JournalResult struct {
	Entries []JournalView  `json:"entries"`
	Outbox  map[string]int `json:"outbox"`
}

// NewJournalCommand creates the journal command.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show journaled commands and their transfers",
		Long: `Show the command journal in seq order.

Each entry lists the accepted command, the events it emitted and the
transfers it decided, with their dispatch status from the outbox.

Examples:
  rwamarket journal --db ./market.db
  rwamarket journal --after 100 --limit 20
  rwamarket journal --seq 42 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournal(opts, cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.After, "after", 0, "show entries after this seq")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum entries (0 = all)")
	cmd.Flags().Int64Var(&opts.Seq, "seq", 0, "show a single entry")

	return cmd
}

func runJournal(opts *JournalOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer opts.closeStore(st)

	var entries []store.JournalEntry
	if opts.Seq > 0 {
		e, err := st.ReadJournalEntry(ctx, opts.Seq)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read journal", err)
		}
		entries = []store.JournalEntry{e}
	} else {
		entries, err = st.ReadJournal(ctx, opts.After, opts.Limit)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read journal", err)
		}
	}

	result, err := buildJournal(ctx, st, entries)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read outbox", err)
	}

	if opts.Format == "json" {
		return outputJournalJSON(cmd, result)
	}
	return outputJournalText(cmd, result)
}

func buildJournal(ctx context.Context, st *store.Store, entries []store.JournalEntry) (JournalResult, error) {
	result := JournalResult{
		Entries: make([]JournalView, 0, len(entries)),
		Outbox:  map[string]int{},
	}
	for _, e := range entries {
		rows, err := st.TransfersForSeq(ctx, e.Seq)
		if err != nil {
			return JournalResult{}, err
		}
		view := JournalView{
			Seq:       e.Seq,
			RequestID: e.RequestID,
			Command:   e.Command.Fields(),
			Events:    make([]EventAttribute, len(e.Events)),
			Transfers: make([]TransferView, len(rows)),
		}
		for i, a := range e.Events {
			view.Events[i] = EventAttribute{Key: a.Key, Value: a.Value}
		}
		for i, row := range rows {
			fields := map[string]string{}
			for k, v := range row.Transfer.Fields() {
				fields[k] = fmt.Sprint(v)
			}
			view.Transfers[i] = TransferView{
				ID:        row.ID,
				Position:  row.Position,
				Transfer:  fields,
				Status:    string(row.Status),
				Attempts:  row.Attempts,
				LastError: row.LastError,
			}
		}
		result.Entries = append(result.Entries, view)
	}

	counts, err := st.OutboxCounts(ctx)
	if err != nil {
		return JournalResult{}, err
	}
	for status, n := range counts {
		result.Outbox[string(status)] = n
	}
	return result, nil
}

// outputJournalJSON outputs the journal as JSON.
func outputJournalJSON(cmd *cobra.Command, result JournalResult) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(CLIResponse{Status: "ok", Data: result})
}

// outputJournalText outputs the journal as a human-readable timeline.
func outputJournalText(cmd *cobra.Command, result JournalResult) error {
	w := cmd.OutOrStdout()

	if len(result.Entries) == 0 {
		fmt.Fprintln(w, "Journal is empty.")
		return nil
	}

	for _, e := range result.Entries {
		op, _ := e.Command["op"].(map[string]any)
		fmt.Fprintf(w, "[%d] %v by %v at %v\n", e.Seq, op["kind"], e.Command["caller"], e.Command["now"])
		for _, a := range e.Events {
			fmt.Fprintf(w, "      %s=%s\n", a.Key, a.Value)
		}
		for _, t := range e.Transfers {
			fmt.Fprintf(w, "    → %s [%s]\n", describeTransfer(t.Transfer), t.Status)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Outbox: %d pending, %d dispatched, %d failed\n",
		result.Outbox[string(store.StatusPending)],
		result.Outbox[string(store.StatusDispatched)],
		result.Outbox[string(store.StatusFailed)])
	return nil
}
