package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"fintrack/internal/core"
	"fintrack/internal/worker"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		e, err := open(ctx, false)
		if err != nil {
			return err
		}
		defer e.Close()

		fmt.Fprintf(cmd.OutOrStdout(), "Schema up to date (%s backend)\n", e.cfg.DataBackend)
		return nil
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Recompute every budget's spent and every goal's progress for an owner",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := requireOwner(); err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		e, err := open(ctx, false)
		if err != nil {
			return err
		}
		defer e.Close()

		budgets, err := e.svc.Reconcile.RecomputeOwner(ctx, flagOwner)
		if err != nil {
			return fmt.Errorf("recompute budgets: %w", err)
		}
		results, err := e.svc.Goals.ReconcileAll(ctx, flagOwner)
		if err != nil {
			return fmt.Errorf("reconcile goals: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Recomputed %d budget scopes\n", budgets)

		rows := make([][]string, 0, len(results))
		corrected := 0
		for _, r := range results {
			if r.Corrected {
				corrected++
			}
			rows = append(rows, []string{
				r.GoalID,
				r.Name,
				r.OldProgress.String(),
				r.NewProgress.String(),
				strconv.FormatBool(r.Corrected),
				r.Error,
			})
		}
		renderTable(out, "Goals", []string{"ID", "Name", "Old", "New", "Corrected", "Error"}, rows)
		fmt.Fprintf(out, "Reconciliation complete. %d goals were corrected.\n", corrected)
		return nil
	},
}

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Show low-budget and upcoming-expense alerts for an owner",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := requireOwner(); err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		e, err := open(ctx, false)
		if err != nil {
			return err
		}
		defer e.Close()

		var scope *core.DateRange
		if flagMonth != "" {
			window, ok := e.svc.Months.Parse(flagMonth)
			if !ok {
				return fmt.Errorf("invalid --month %q, want YYYY-MM", flagMonth)
			}
			scope = &window
		}

		alerts, err := e.svc.Alerts.Evaluate(ctx, flagOwner, scope)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(alerts) == 0 {
			renderNote(out, "No alerts found.")
			return nil
		}
		rows := make([][]string, 0, len(alerts))
		for _, a := range alerts {
			rows = append(rows, []string{a.Category, a.Message})
		}
		renderTable(out, "Alerts", []string{"Category", "Message"}, rows)
		return nil
	},
}

var rolloverCmd = &cobra.Command{
	Use:   "rollover",
	Short: "Carry last month's unspent allowance into this month's budgets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := requireOwner(); err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		e, err := open(ctx, false)
		if err != nil {
			return err
		}
		defer e.Close()

		if !e.svc.Rollover.Due() {
			renderNote(cmd.OutOrStdout(), "Outside the rollover window, nothing to do.")
			return nil
		}
		n, err := e.svc.Rollover.Process(ctx, flagOwner)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Applied rollover to %d budgets\n", n)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Backfill the Google Sheets ledger with a month of expenses",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := requireOwner(); err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		e, err := open(ctx, true)
		if err != nil {
			return err
		}
		defer e.Close()

		if e.backend.Ledger == nil {
			return fmt.Errorf("ledger export needs GOOGLE_SPREADSHEET_ID")
		}
		month := e.svc.Months.Resolve(flagMonth)
		w := worker.NewSyncWorker(e.svc.Cascade, e.backend.Store, e.backend.Ledger)
		n, err := w.Backfill(ctx, flagOwner, month)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d expenses for %s\n", n, month.Key())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd, reconcileCmd, alertsCmd, rolloverCmd, exportCmd)
}
