package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"evcharge/internal/core"
	"evcharge/internal/session"
)

// candidateFlags binds the record fields to add and update.
type candidateFlags struct {
	date     string
	energy   string
	cost     string
	location string
	percent  string
}

func (f *candidateFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.date, "date", "", "charging date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.energy, "energy", "", "energy delivered in kWh")
	cmd.Flags().StringVar(&f.cost, "cost", "", "session cost")
	cmd.Flags().StringVar(&f.location, "location", "", "charging location")
	cmd.Flags().StringVar(&f.percent, "percent", "", "charge percentage (1-100)")
}

func (f *candidateFlags) candidate() core.Candidate {
	return core.Candidate{
		Date:          f.date,
		EnergyKwh:     f.energy,
		Cost:          f.cost,
		Location:      f.location,
		ChargePercent: f.percent,
	}
}

func newListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored charging sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.openApp(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()

			entries := app.Service.Records()
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No charging sessions recorded")
				return nil
			}
			printEntries(out, entries)
			return nil
		},
	}
}

func printEntries(out io.Writer, entries []session.Entry) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Pos\tDate\tkWh\tCost\tPercent\tLocation\t")
	var energy, cost float64
	for _, e := range entries {
		percent := "-"
		if e.Record.HasChargePercent() {
			percent = strconv.Itoa(e.Record.ChargePercent)
		}
		fmt.Fprintf(tw, "%d\t%s\t%.2f\t%.2f\t%s\t%s\t\n",
			e.Position, e.Record.Date, e.Record.EnergyKwh, e.Record.Cost, percent, e.Record.Location)
		energy += e.Record.EnergyKwh
		cost += e.Record.Cost
	}
	tw.Flush()
	fmt.Fprintf(out, "Total: %.2f kWh, %.2f cost (%d sessions)\n", energy, cost, len(entries))
}

func newAddCmd(opts *rootOptions) *cobra.Command {
	var f candidateFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a charging session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.openApp(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()

			entry, err := app.Service.Add(cmd.Context(), f.candidate())
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added session %s at position %d\n", entry.Record.Date, entry.Position)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newUpdateCmd(opts *rootOptions) *cobra.Command {
	var f candidateFlags
	cmd := &cobra.Command{
		Use:   "update <position>",
		Short: "Replace the session at a position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := parsePosition(args[0])
			if err != nil {
				return err
			}
			app, err := opts.openApp(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()

			entry, err := app.Service.Update(cmd.Context(), pos, f.candidate())
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated session at position %d (%s)\n", entry.Position, entry.Record.Date)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <position>",
		Short: "Delete the session at a position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := parsePosition(args[0])
			if err != nil {
				return err
			}
			app, err := opts.openApp(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Service.Delete(cmd.Context(), pos); err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted session at position %d\n", pos)
			return nil
		},
	}
}

func parsePosition(s string) (int, error) {
	pos, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid position %q: must be a number", s)
	}
	return pos, nil
}

// describe prefixes validation errors with their stable code.
func describe(err error) error {
	if core.IsValidationError(err) {
		return fmt.Errorf("%s: %w", core.ErrorCode(err), err)
	}
	return err
}
