package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"evcharge/internal/core"
	"evcharge/internal/importer"
)

func newImportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Append the valid rows of a CSV file",
		Long: `Imports a CSV export (comma or semicolon separated, header row required).
Rows that fail validation are reported and skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening import file: %w", err)
			}
			defer f.Close()

			app, err := opts.openApp(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.Service.Import(cmd.Context(), f)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Imported %d of %d rows\n", res.Imported, res.Total)
			for _, r := range res.Rejected {
				fmt.Fprintf(out, "  line %d: %s (%s)\n", r.Line, r.Code, r.Message)
			}
			return nil
		},
	}
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write all sessions as canonical CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.openApp(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("creating export file: %w", err)
				}
				defer f.Close()
				w = f
			}
			return importer.Encode(w, app.Service.All())
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of stdout")
	return cmd
}

func newSummaryCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the monthly summary table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.openApp(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()

			rows := app.Service.Table()
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), rows)
			}
			printSummary(cmd.OutOrStdout(), rows)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func printSummary(out io.Writer, rows []core.SummaryRow) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Month\tSessions\tkWh\tCost\tCost/kWh\tCycles\tAvg cost\t")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%.2f\t%.2f\t%.4f\t%.2f\t%.2f\t\n",
			r.MonthKey, r.Sessions, r.TotalEnergyKwh, r.TotalCost, r.CostPerKwh, r.ChargeCycles, r.AverageCost)
	}
	tw.Flush()
}

func newChartCmd(opts *rootOptions) *cobra.Command {
	var view, kind string
	cmd := &cobra.Command{
		Use:   "chart",
		Short: "Print chart series as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := core.ParseChartView(view)
			if err != nil {
				return err
			}
			k, err := core.ParseChartKind(kind)
			if err != nil {
				return err
			}
			app, err := opts.openApp(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()

			chart, err := app.Service.Chart(v, k)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), chart)
		},
	}
	cmd.Flags().StringVar(&view, "view", string(core.ViewRecords), "records or monthly")
	cmd.Flags().StringVar(&kind, "kind", string(core.ChartBar), "bar or pie")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
