package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/rwamarket/internal/ledger"
)

// CommandFlags are the envelope flags shared by every operation command.
type CommandFlags struct {
	Caller string
	Funds  []string
	Now    uint64
}

func (f *CommandFlags) bind(cmd *cobra.Command, withFunds bool) {
	cmd.Flags().StringVar(&f.Caller, "caller", "", "identity issuing the operation (required)")
	_ = cmd.MarkFlagRequired("caller")
	cmd.Flags().Uint64Var(&f.Now, "now", 0, "block time in seconds")
	if withFunds {
		cmd.Flags().StringSliceVar(&f.Funds, "funds", nil, "attached coins, e.g. 1000earth (repeatable)")
	}
}

// command validates the envelope and wraps op.
func (f *CommandFlags) command(op ledger.Operation) (ledger.Command, error) {
	caller, err := ledger.ValidateIdentity(f.Caller)
	if err != nil {
		return ledger.Command{}, WrapExitError(ExitCommandError, "invalid --caller", err)
	}
	funds, err := ledger.ParseCoins(f.Funds)
	if err != nil {
		return ledger.Command{}, WrapExitError(ExitCommandError, "invalid --funds", err)
	}
	return ledger.Command{Caller: caller, Funds: funds, Now: f.Now, Op: op}, nil
}

// operationCommand builds a cobra command that decodes its args into an
// operation and submits it.
func operationCommand(opts *RootOptions, use, short, long string, nargs int, withFunds bool,
	build func(args []string) (ledger.Operation, error), extra func(*cobra.Command)) *cobra.Command {
	flags := &CommandFlags{}
	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		Long:          long,
		Args:          cobra.ExactArgs(nargs),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			op, err := build(args)
			if err != nil {
				return err
			}
			c, err := flags.command(op)
			if err != nil {
				return err
			}
			return opts.submit(cmd, c)
		},
	}
	flags.bind(cmd, withFunds)
	if extra != nil {
		extra(cmd)
	}
	return cmd
}

// NewOperationCommands creates one command per marketplace operation other
// than instantiate, which init covers.
func NewOperationCommands(opts *RootOptions) []*cobra.Command {
	return []*cobra.Command{
		newListCommand(opts),
		operationCommand(opts, "buy <offering-id>", "Buy an offering at its list price",
			`Buy an offering outright. The attached funds must cover the list price in
its denomination; the seller receives the price minus the marketplace fee.

Example:
  rwamarket buy 1 --caller buyer --funds 1000earth`,
			1, true,
			func(args []string) (ledger.Operation, error) {
				return ledger.Buy{OfferingID: args[0]}, nil
			}, nil),
		operationCommand(opts, "withdraw <offering-id>", "Withdraw an offering back to its seller",
			`Withdraw an offering. Only the seller may withdraw; the listed units are
returned to them.

Example:
  rwamarket withdraw 1 --caller seller`,
			1, false,
			func(args []string) (ledger.Operation, error) {
				return ledger.WithdrawRwa{OfferingID: args[0]}, nil
			}, nil),
		newRentCommand(opts),
		operationCommand(opts, "end-rental <rental-id>", "Return an expired rental's units to the seller",
			`End a rental once --now has reached its end time. Only the renter may end it.

Example:
  rwamarket end-rental 1 --caller renter --now 1030`,
			1, false,
			func(args []string) (ledger.Operation, error) {
				return ledger.EndRental{RentalID: args[0]}, nil
			}, nil),
		operationCommand(opts, "clawback <rental-id>", "Reclaim an expired rental as its seller",
			`Claw back a rental once --now has reached its end time. Only the seller of
the rented offering may claw back.

Example:
  rwamarket clawback 1 --caller seller --now 1030`,
			1, false,
			func(args []string) (ledger.Operation, error) {
				return ledger.Clawback{RentalID: args[0]}, nil
			}, nil),
		operationCommand(opts, "change-fee <fee>", "Replace the marketplace fee",
			`Replace the fee fraction charged on purchases and rentals. Only the owner
may change it.

Example:
  rwamarket change-fee 0.025 --caller owner`,
			1, false,
			func(args []string) (ledger.Operation, error) {
				fee, err := ledger.ParseFee(args[0])
				if err != nil {
					return nil, WrapExitError(ExitCommandError, "invalid fee", err)
				}
				return ledger.ChangeFee{Fee: fee}, nil
			}, nil),
		operationCommand(opts, "withdraw-fees <coin>", "Pay collected fees to the owner",
			`Pay an amount of the marketplace balance to the owner.

Example:
  rwamarket withdraw-fees 500earth --caller owner`,
			1, false,
			func(args []string) (ledger.Operation, error) {
				coin, err := ledger.ParseCoin(args[0])
				if err != nil {
					return nil, WrapExitError(ExitCommandError, "invalid coin", err)
				}
				return ledger.WithdrawFees{Amount: coin.Amount, Denom: coin.Denom}, nil
			}, nil),
	}
}

func newListCommand(opts *RootOptions) *cobra.Command {
	var sender, amount, price, msg string

	cmd := operationCommand(opts, "list", "Record an asset deposit as a new offering",
		`Record a deposit notification from an asset contract. The caller is the
contract; --sender is the seller who deposited --amount units. The price is
given either as --price or as the raw sell instruction --msg.

Examples:
  rwamarket list --caller rwa-token --sender seller --amount 100 --price 1000earth
  rwamarket list --caller rwa-token --sender seller --amount 100 \
    --msg '{"list_price":{"denom":"earth","amount":"1000"}}'`,
		0, false,
		func([]string) (ledger.Operation, error) {
			n, err := ledger.ParseAmount(amount)
			if err != nil {
				return nil, WrapExitError(ExitCommandError, "invalid --amount", err)
			}
			switch {
			case price != "" && msg != "":
				return nil, NewExitError(ExitCommandError, "--price and --msg are mutually exclusive")
			case price != "":
				coin, err := ledger.ParseCoin(price)
				if err != nil {
					return nil, WrapExitError(ExitCommandError, "invalid --price", err)
				}
				return ledger.List{Sender: sender, Amount: n, Msg: ledger.EncodeSellMessage(coin)}, nil
			case msg != "":
				return ledger.List{Sender: sender, Amount: n, Msg: []byte(msg)}, nil
			default:
				return nil, NewExitError(ExitCommandError, "one of --price or --msg is required")
			}
		},
		func(cmd *cobra.Command) {
			cmd.Flags().StringVar(&sender, "sender", "", "seller who deposited the units (required)")
			_ = cmd.MarkFlagRequired("sender")
			cmd.Flags().StringVar(&amount, "amount", "", "deposited units (required)")
			_ = cmd.MarkFlagRequired("amount")
			cmd.Flags().StringVar(&price, "price", "", "list price, e.g. 1000earth")
			cmd.Flags().StringVar(&msg, "msg", "", "raw sell instruction JSON")
		})
	return cmd
}

func newRentCommand(opts *RootOptions) *cobra.Command {
	var duration uint64

	return operationCommand(opts, "rent <offering-id>", "Rent an offering for a duration",
		`Rent an offering for --duration seconds starting at --now. The attached funds
must cover list price times duration.

Example:
  rwamarket rent 1 --caller renter --funds 300earth --duration 30 --now 1000`,
		1, true,
		func(args []string) (ledger.Operation, error) {
			if duration == 0 {
				return nil, NewExitError(ExitCommandError, "--duration must be positive")
			}
			return ledger.RentRwa{OfferingID: args[0], Duration: duration}, nil
		},
		func(cmd *cobra.Command) {
			cmd.Flags().Uint64Var(&duration, "duration", 0, "rental length in seconds (required)")
			_ = cmd.MarkFlagRequired("duration")
		})
}
