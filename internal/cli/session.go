package cli

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rwamarket/internal/engine"
	"github.com/roach88/rwamarket/internal/ledger"
	"github.com/roach88/rwamarket/internal/store"
)

// OperationResult is the output of one accepted operation.
type OperationResult struct {
	Seq       int64               `json:"seq"`
	RequestID string              `json:"request_id"`
	Kind      string              `json:"kind"`
	Events    []EventAttribute    `json:"events"`
	Transfers []map[string]string `json:"transfers"`
}

// EventAttribute is one key/value event attribute.
type EventAttribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// openStore opens the configured database, creating it if needed.
func (o *RootOptions) openStore() (*store.Store, error) {
	path := o.Config.Database.Path
	o.Logger.Debug("opening database", "path", path)
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// closeStore closes st, logging a failure.
func (o *RootOptions) closeStore(st *store.Store) {
	if err := st.Close(); err != nil {
		o.Logger.Error("error closing database", "error", err)
	}
}

// applyNext applies cmd with the seq following the last journaled one.
// Rejections leave the journal untouched, so the next command reuses the seq.
func applyNext(ctx context.Context, st *store.Store, ids engine.RequestIDGenerator, cmd ledger.Command) (engine.Outcome, error) {
	last, err := st.LastSeq(ctx)
	if err != nil {
		return engine.Outcome{}, err
	}
	seq := engine.NewClockAt(last).Next()
	requestID := ids.Generate()

	res, err := st.Apply(ctx, seq, requestID, cmd)
	if err != nil {
		return engine.Outcome{}, err
	}
	return engine.Outcome{Seq: seq, RequestID: requestID, Result: res}, nil
}

// submit applies one command against the configured database and reports
// the outcome. A rejection is printed and returned as ExitFailure.
func (o *RootOptions) submit(cmd *cobra.Command, c ledger.Command) error {
	st, err := o.openStore()
	if err != nil {
		return err
	}
	defer o.closeStore(st)

	out, err := applyNext(cmd.Context(), st, engine.UUIDv7Generator{}, c)
	if err != nil {
		return o.reportFailure(cmd, c, err)
	}
	o.Logger.Debug("command accepted", "seq", out.Seq, "request_id", out.RequestID, "kind", c.Op.Kind())
	return o.reportOutcome(cmd, c.Op.Kind(), out)
}

// reportFailure prints a rejection and maps err to an exit code.
func (o *RootOptions) reportFailure(cmd *cobra.Command, c ledger.Command, err error) error {
	if !ledger.IsRejection(err) {
		return WrapExitError(ExitCommandError, fmt.Sprintf("failed to apply %s", c.Op.Kind()), err)
	}
	if ferr := o.formatter(cmd).Reject(NewCLIError(err, "")); ferr != nil {
		return ferr
	}
	return WrapExitError(ExitFailure, fmt.Sprintf("%s rejected", c.Op.Kind()), err)
}

func (o *RootOptions) reportOutcome(cmd *cobra.Command, kind ledger.OperationKind, out engine.Outcome) error {
	result := newOperationResult(kind, out)
	if o.Format == "json" {
		return o.formatter(cmd).Success(result)
	}
	writeOperationText(cmd.OutOrStdout(), result)
	return nil
}

func newOperationResult(kind ledger.OperationKind, out engine.Outcome) OperationResult {
	result := OperationResult{
		Seq:       out.Seq,
		RequestID: out.RequestID,
		Kind:      string(kind),
		Events:    make([]EventAttribute, len(out.Result.Events)),
		Transfers: make([]map[string]string, len(out.Result.Transfers)),
	}
	for i, a := range out.Result.Events {
		result.Events[i] = EventAttribute{Key: a.Key, Value: a.Value}
	}
	for i, t := range out.Result.Transfers {
		fields := map[string]string{}
		for k, v := range t.Fields() {
			fields[k] = fmt.Sprint(v)
		}
		result.Transfers[i] = fields
	}
	return result
}

func writeOperationText(w io.Writer, r OperationResult) {
	fmt.Fprintf(w, "✓ %s accepted (seq %d)\n", r.Kind, r.Seq)
	for _, a := range r.Events {
		fmt.Fprintf(w, "  %s=%s\n", a.Key, a.Value)
	}
	if len(r.Transfers) == 0 {
		return
	}
	fmt.Fprintln(w, "Transfers:")
	for _, t := range r.Transfers {
		fmt.Fprintf(w, "  %s\n", describeTransfer(t))
	}
}

// describeTransfer renders canonical transfer fields for humans.
func describeTransfer(f map[string]string) string {
	switch ledger.TransferKind(f["type"]) {
	case ledger.TransferBankSend:
		return fmt.Sprintf("bank_send %s%s -> %s", f["amount"], f["denom"], f["recipient"])
	case ledger.TransferAsset:
		return fmt.Sprintf("asset_transfer %s %s -> %s", f["amount"], f["contract"], f["recipient"])
	default:
		parts := make([]string, 0, len(f))
		for _, k := range slices.Sorted(maps.Keys(f)) {
			parts = append(parts, k+"="+f[k])
		}
		return strings.Join(parts, " ")
	}
}
