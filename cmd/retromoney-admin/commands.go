package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"retromoney/internal/cli"
	"retromoney/internal/config"
	"retromoney/internal/core"
	"retromoney/internal/log"
	"retromoney/internal/sheets"
	"retromoney/internal/sheets/memory"
	"retromoney/internal/storage"
)

// app holds what PersistentPreRunE prepared for the subcommands.
type app struct {
	cfg    *config.Config
	logger *log.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "retromoney-admin",
		Short:         "Maintenance commands for the retromoney ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cli.LoadEnvFile()
			a.logger = cli.SetupLogger("admin")
			a.cfg = config.Load()
			if db, _ := cmd.Flags().GetString("db"); db != "" {
				a.cfg.SQLiteDBPath = db
			}
			return a.cfg.Validate()
		},
	}
	root.PersistentFlags().String("db", "", "SQLite database path (overrides SQLITE_DB_PATH)")

	root.AddCommand(
		a.recomputeCmd(),
		a.resyncCmd(),
		a.exportCmd(),
		a.ratesCmd(),
		a.migrateCmd(),
	)
	return root
}

func monthFlag(cmd *cobra.Command) (core.Month, error) {
	v, _ := cmd.Flags().GetString("month")
	if v == "" {
		return "", nil
	}
	return core.ParseMonth(v)
}

func (a *app) open() (*storage.SQLiteRepository, *cli.Ledger, error) {
	store, err := storage.NewSQLiteRepository(a.cfg.SQLiteDBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return store, cli.NewLedger(a.logger, a.cfg, store, nil), nil
}

func (a *app) recomputeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recompute",
		Short: "Recompute a month's allocations from the expense ledger",
		Long: `Re-sums every non-deleted expense of the month per category, overwrites
actual and allocated amounts, and prints the resulting table.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			month, err := monthFlag(cmd)
			if err != nil {
				return err
			}
			store, ledger, err := a.open()
			if err != nil {
				return err
			}
			defer store.Close()

			report, err := ledger.Budget.GetAllocations(cmd.Context(), month)
			if err != nil {
				return err
			}
			return printReport(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().String("month", "", "month to recompute as YYYY-MM (default current month)")
	return cmd
}

func (a *app) resyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resync",
		Short: "Resync derived account balances and recompute the current month",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, ledger, err := a.open()
			if err != nil {
				return err
			}
			defer store.Close()

			changed, err := ledger.Accounts.Resync(cmd.Context())
			if err != nil {
				return err
			}
			report, err := ledger.Budget.GetAllocations(cmd.Context(), "")
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "accounts updated: %d, %s recomputed\n", changed, report.Month)
			return nil
		},
	}
}

func (a *app) exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a month's allocation report to Google Sheets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			month, err := monthFlag(cmd)
			if err != nil {
				return err
			}
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			var (
				writer sheets.ReportWriter
				rec    *memory.Store
			)
			if dryRun {
				rec = memory.New()
				writer = rec
			} else {
				client, err := cli.InitSheets(cmd.Context(), a.logger, a.cfg)
				if err != nil {
					return err
				}
				if client == nil {
					return fmt.Errorf("GOOGLE_SPREADSHEET_ID is not set; use --dry-run to preview")
				}
				writer = client
			}

			store, ledger, err := a.open()
			if err != nil {
				return err
			}
			defer store.Close()

			report, err := ledger.Budget.GetAllocations(cmd.Context(), month)
			if err != nil {
				return err
			}
			if err := writer.ExportReport(cmd.Context(), report); err != nil {
				return err
			}

			if rec != nil {
				return printRows(cmd.OutOrStdout(), rec.Rows(report.Month))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %s to sheet %q\n", report.Month, a.cfg.GoogleReportSheet)
			return nil
		},
	}
	cmd.Flags().String("month", "", "month to export as YYYY-MM (default current month)")
	cmd.Flags().Bool("dry-run", false, "print the rows instead of writing them")
	return cmd
}

func (a *app) ratesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rates",
		Short: "Show the exchange rate snapshot the ledger would use now",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := cli.NewNormalizer(a.logger, a.cfg).Snapshot(cmd.Context())
			source := "live"
			if r.Fallback {
				source = "fallback"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "buy %s  sell %s  (%s)\n", r.Buy.String(), r.Sell.String(), source)
			return nil
		},
	}
}

func (a *app) migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := storage.RunMigrations(a.cfg.SQLiteDBPath); err != nil {
				return err
			}
			return printVersion(cmd.OutOrStdout(), a.cfg.SQLiteDBPath)
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the applied schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printVersion(cmd.OutOrStdout(), a.cfg.SQLiteDBPath)
		},
	})
	return cmd
}

func printVersion(out io.Writer, dbPath string) error {
	version, dirty, err := storage.MigrationVersion(dbPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "schema version %d (dirty: %t)\n", version, dirty)
	return nil
}

func printReport(out io.Writer, r core.BudgetReport) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "%s\tsalary %s\t\t\t\n", r.Month, core.FormatAmount(r.Salary, core.CurrencyUSD))
	fmt.Fprintln(tw, "Category\tShare\tAllocated\tActual\tStatus\t")
	for _, v := range r.Allocations {
		status := "ok"
		switch {
		case v.ExceedsLimit:
			status = "over limit"
		case v.IsOverBudget:
			status = "over budget"
		}
		fmt.Fprintf(tw, "%s\t%s%%\t%s\t%s\t%s\t\n", v.Name, v.Percentage.StringFixed(0),
			core.FormatAmount(v.Allocated, core.CurrencyUSD),
			core.FormatAmount(v.Actual, core.CurrencyUSD), status)
	}
	fmt.Fprintf(tw, "Total\t\t%s\t%s\t\t\n",
		core.FormatAmount(r.TotalAllocated, core.CurrencyUSD),
		core.FormatAmount(r.TotalActual, core.CurrencyUSD))
	return tw.Flush()
}

func printRows(out io.Writer, rows [][]any) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, row := range rows {
		for _, cell := range row {
			fmt.Fprintf(tw, "%v\t", cell)
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}
