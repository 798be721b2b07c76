package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/rwamarket/internal/engine"
	"github.com/roach88/rwamarket/internal/genesis"
	"github.com/roach88/rwamarket/internal/ledger"
)

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	Flags   CommandFlags
	Fee     string
	Genesis string
}

// InitResult summarizes a genesis import.
type InitResult struct {
	Owner     string            `json:"owner"`
	Fee       string            `json:"fee"`
	Commands  int               `json:"commands"`
	Offerings int               `json:"offerings"`
	Results   []OperationResult `json:"results"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Instantiate the marketplace registry",
		Long: `Instantiate the marketplace registry, making the caller its owner.

With --genesis the owner, fee and any seed listings come from a CUE document
instead. The whole document is checked against an empty state before anything
is written, so a bad listing leaves the database untouched.

Examples:
  rwamarket init --caller owner --fee 0.02
  rwamarket init --genesis ./market.cue --db ./market.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Genesis != "" {
				return runGenesis(opts, cmd)
			}
			if opts.Flags.Caller == "" {
				return NewExitError(ExitCommandError, "--caller is required without --genesis")
			}
			fee, err := ledger.ParseFee(opts.Fee)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --fee", err)
			}
			c, err := opts.Flags.command(ledger.Instantiate{Fee: fee})
			if err != nil {
				return err
			}
			return opts.submit(cmd, c)
		},
	}

	cmd.Flags().StringVar(&opts.Flags.Caller, "caller", "", "identity becoming the owner")
	cmd.Flags().StringVar(&opts.Fee, "fee", "0", "fee fraction, e.g. 0.02")
	cmd.Flags().StringVar(&opts.Genesis, "genesis", "", "CUE genesis document")
	cmd.MarkFlagsMutuallyExclusive("genesis", "caller")
	cmd.MarkFlagsMutuallyExclusive("genesis", "fee")

	return cmd
}

func runGenesis(opts *InitOptions, cmd *cobra.Command) error {
	g, err := genesis.LoadFile(opts.Genesis)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid genesis document", err)
	}
	cmds := g.Commands()

	// Dry run against an empty state so a rejected listing writes nothing.
	state := engine.NewState()
	for i, c := range cmds {
		next, _, err := engine.Apply(state, c)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("genesis command %d (%s) rejected", i, c.Op.Kind()), err)
		}
		state = next
	}

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer opts.closeStore(st)

	ctx := cmd.Context()
	last, err := st.LastSeq(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}
	if last != 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("database already holds %d journaled commands", last))
	}

	result := InitResult{
		Owner:     string(g.Owner),
		Fee:       g.Fee.String(),
		Commands:  len(cmds),
		Offerings: len(g.Listings),
		Results:   make([]OperationResult, 0, len(cmds)),
	}
	ids := engine.UUIDv7Generator{}
	for _, c := range cmds {
		out, err := applyNext(ctx, st, ids, c)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to apply genesis %s", c.Op.Kind()), err)
		}
		result.Results = append(result.Results, newOperationResult(c.Op.Kind(), out))
	}
	opts.Logger.Info("genesis imported", "path", opts.Genesis, "owner", g.Owner, "offerings", len(g.Listings))

	if opts.Format == "json" {
		return opts.formatter(cmd).Success(result)
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "✓ Marketplace instantiated (owner %s, fee %s)\n", result.Owner, result.Fee)
	fmt.Fprintf(w, "  %d offering(s) listed\n", result.Offerings)
	return nil
}
