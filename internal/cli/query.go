package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/rwamarket/internal/engine"
	"github.com/roach88/rwamarket/internal/ledger"
)

// QueryOptions holds flags shared by the paginated query commands.
type QueryOptions struct {
	*RootOptions
	StartAfter string
	Limit      int
}

// OfferView is an offering as printed by query offers.
type OfferView struct {
	ID        string `json:"id"`
	Contract  string `json:"contract"`
	Seller    string `json:"seller"`
	Amount    string `json:"amount"`
	ListPrice string `json:"list_price"`
}

// RentalView is a rental as printed by query rentals and query rental.
type RentalView struct {
	ID         string `json:"id"`
	OfferingID string `json:"offering_id"`
	Renter     string `json:"renter"`
	StartTime  uint64 `json:"start_time"`
	EndTime    uint64 `json:"end_time"`
	Amount     string `json:"amount"`
}

// NewQueryCommand creates the query command and its subcommands.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Read marketplace state",
		Long: `Read marketplace state without modifying it.

Listing queries page in ascending id order: --start-after is exclusive and
--limit defaults to 10, capped at 30.

Examples:
  rwamarket query count
  rwamarket query offers --start-after 10 --limit 30
  rwamarket query rental 3 --format json`,
	}

	cmd.AddCommand(
		queryCommand(opts, "count", "Number of offerings ever listed", cobra.NoArgs,
			func(r engine.Reader, _ []string) (any, string, error) {
				n, err := engine.Count(r)
				return map[string]uint64{"count": n}, strconv.FormatUint(n, 10), err
			}),
		queryCommand(opts, "fee", "Current fee fraction", cobra.NoArgs,
			func(r engine.Reader, _ []string) (any, string, error) {
				fee, err := engine.CurrentFee(r)
				return map[string]string{"fee": fee.String()}, fee.String(), err
			}),
		queryCommand(opts, "owner", "Registry owner", cobra.NoArgs,
			func(r engine.Reader, _ []string) (any, string, error) {
				owner, err := engine.Owner(r)
				return map[string]string{"owner": string(owner)}, string(owner), err
			}),
		queryCommand(opts, "offers", "List offerings", cobra.NoArgs,
			func(r engine.Reader, _ []string) (any, string, error) {
				offers, err := engine.AllOffers(r, opts.StartAfter, opts.Limit)
				if err != nil {
					return nil, "", err
				}
				views := make([]OfferView, len(offers))
				lines := ""
				for i, o := range offers {
					views[i] = OfferView{
						ID:        o.ID,
						Contract:  string(o.Contract),
						Seller:    string(o.Seller),
						Amount:    o.Amount.String(),
						ListPrice: o.ListPrice.String(),
					}
					lines += fmt.Sprintf("%s\t%s %s from %s at %s\n", o.ID, o.Amount, o.Contract, o.Seller, o.ListPrice)
				}
				return map[string]any{"offers": views}, trimNewline(lines), nil
			}),
		queryCommand(opts, "rentals", "List rentals", cobra.NoArgs,
			func(r engine.Reader, _ []string) (any, string, error) {
				rentals, err := engine.AllRentals(r, opts.StartAfter, opts.Limit)
				if err != nil {
					return nil, "", err
				}
				views := make([]RentalView, len(rentals))
				lines := ""
				for i, rt := range rentals {
					views[i] = rentalView(rt.ID, rt.OfferingID, rt.Renter, rt.StartTime, rt.EndTime, rt.Amount)
					lines += formatRental(views[i]) + "\n"
				}
				return map[string]any{"rentals": views}, trimNewline(lines), nil
			}),
		queryCommand(opts, "rental <rental-id>", "Look up one rental", cobra.ExactArgs(1),
			func(r engine.Reader, args []string) (any, string, error) {
				info, err := engine.GetRental(r, args[0])
				if err != nil {
					return nil, "", err
				}
				v := rentalView(info.ID, info.OfferingID, info.Renter, info.StartTime, info.EndTime, info.Amount)
				return v, formatRental(v), nil
			}),
	)

	cmd.PersistentFlags().StringVar(&opts.StartAfter, "start-after", "", "exclusive id cursor (offers, rentals)")
	cmd.PersistentFlags().IntVar(&opts.Limit, "limit", 0, "page size, default 10, max 30 (offers, rentals)")

	return cmd
}

// queryCommand wraps fn, which returns the JSON payload and the text form.
func queryCommand(opts *QueryOptions, use, short string, args cobra.PositionalArgs,
	fn func(engine.Reader, []string) (any, string, error)) *cobra.Command {
	return &cobra.Command{
		Use:           use,
		Short:         short,
		Args:          args,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Limit < 0 {
				return NewExitError(ExitCommandError, "--limit must not be negative")
			}
			st, err := opts.openStore()
			if err != nil {
				return err
			}
			defer opts.closeStore(st)

			var (
				data any
				text string
			)
			err = st.Query(cmd.Context(), func(r engine.Reader) error {
				var qerr error
				data, text, qerr = fn(r, args)
				return qerr
			})
			if err != nil {
				return opts.reportQueryFailure(cmd, err)
			}

			if opts.Format == "json" {
				return opts.formatter(cmd).Success(data)
			}
			if text != "" {
				fmt.Fprintln(cmd.OutOrStdout(), text)
			}
			return nil
		},
	}
}

func (o *RootOptions) reportQueryFailure(cmd *cobra.Command, err error) error {
	if !ledger.IsRejection(err) {
		return WrapExitError(ExitCommandError, "query failed", err)
	}
	if ferr := o.formatter(cmd).Reject(NewCLIError(err, "")); ferr != nil {
		return ferr
	}
	return WrapExitError(ExitFailure, "query failed", err)
}

func rentalView(id, offeringID string, renter ledger.Identity, start, end uint64, amount ledger.Amount) RentalView {
	return RentalView{
		ID:         id,
		OfferingID: offeringID,
		Renter:     string(renter),
		StartTime:  start,
		EndTime:    end,
		Amount:     amount.String(),
	}
}

func formatRental(v RentalView) string {
	return fmt.Sprintf("%s\toffering %s rented by %s, %s units, %d..%d", v.ID, v.OfferingID, v.Renter, v.Amount, v.StartTime, v.EndTime)
}

func trimNewline(s string) string {
	if n := len(s); n > 0 && s[n-1] == '\n' {
		return s[:n-1]
	}
	return s
}
