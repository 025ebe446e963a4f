package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/renattofarid/fertiriego/internal/billing"
	"github.com/renattofarid/fertiriego/internal/money"
)

// BreakdownOptions defines the flags of the breakdown command.
type BreakdownOptions struct {
	File       string
	Mode       string
	Rate       string
	JSONOutput bool
}

func newBreakdownCommand() *cobra.Command {
	opts := BreakdownOptions{}
	cmd := &cobra.Command{
		Use:   "breakdown",
		Short: "Price a JSON array of line items without touching storage",
		Example: `  billingctl breakdown --file lines.json --mode TAX_INCLUSIVE --rate 0.18
  cat lines.json | billingctl breakdown --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in := cmd.InOrStdin()
			if opts.File != "" && opts.File != "-" {
				f, err := os.Open(opts.File)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			return RunBreakdown(in, cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().StringVarP(&opts.File, "file", "f", "-", "JSON file with line items, - for stdin")
	cmd.Flags().StringVar(&opts.Mode, "mode", string(billing.TaxInclusive), "pricing mode: TAX_INCLUSIVE or TAX_EXCLUSIVE")
	cmd.Flags().StringVar(&opts.Rate, "rate", "0.18", "tax rate as a fraction")
	cmd.Flags().BoolVar(&opts.JSONOutput, "json", false, "print the aggregation as JSON")
	return cmd
}

// RunBreakdown reads line items from in and writes their aggregation to out.
func RunBreakdown(in io.Reader, out io.Writer, opts BreakdownOptions) error {
	rate, err := money.ParseRate(opts.Rate)
	if err != nil {
		return err
	}
	var items []billing.LineItem
	if err := json.NewDecoder(in).Decode(&items); err != nil {
		return fmt.Errorf("breakdown: decode lines: %w", err)
	}
	agg, err := billing.Aggregate(items, billing.PricingMode(strings.ToUpper(opts.Mode)), rate)
	if err != nil {
		return err
	}
	if opts.JSONOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(agg)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintln(tw, "#\tPRODUCT\tQTY\tUNIT PRICE\tSUBTOTAL\tTAX\tTOTAL\t")
	for i, l := range agg.Lines {
		_, _ = fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\t%s\t\n",
			i+1, l.ProductID, l.Quantity.String(), l.UnitPrice, l.Subtotal, l.Tax, l.Total)
	}
	_, _ = fmt.Fprintf(tw, "\t\t\t\t%s\t%s\t%s\t\n", agg.Subtotal, agg.Tax, agg.Total)
	return tw.Flush()
}
