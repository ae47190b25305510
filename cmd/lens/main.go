package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spektr-org/lens/config"
	"github.com/spektr-org/lens/dashboard"
	"github.com/spektr-org/lens/helpers"
	"github.com/spektr-org/lens/table"
)

// ============================================================================
// LENS CLI — Interactive dashboards for tabular data
// ============================================================================

const version = "0.3.0"

type configKey struct{}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fatalf("%v", err)
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "lens",
		Short: "Dashboards for retail sales and any CSV",
		Long: `Lens computes filterable dashboards over a tabular dataset.

The retail variant expects customer shopping data (invoice_no, customer_id,
invoice_date, quantity, price, ...). The general variant accepts any CSV,
XLSX or Parquet file and classifies its columns automatically.`,
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "version" {
				return nil
			}
			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./lens.yaml)")
	pf.String("data", "", "Path to the dataset (CSV, XLSX or Parquet)")
	pf.String("variant", "", "Dashboard variant: retail, general")
	pf.String("currency", "", "Currency label for amounts, e.g. USD")
	pf.Int("top-customers", 0, "Number of customers in the ranking chart")
	pf.Int("preview-rows", 0, "Number of rows in the general preview")
	pf.String("log-level", "", "Log level: debug, info, warn, error")
	pf.String("log-format", "", "Log format: text, json")
	pf.StringP("output", "o", "", "Output format: table, json, csv")

	_ = root.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"table", "json", "csv"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = root.RegisterFlagCompletionFunc("variant", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"retail", "general"}, cobra.ShellCompDirectiveNoFileComp
	})

	root.AddCommand(
		newRetailCmd(),
		newExploreCmd(),
		newDiscoverCmd(),
		newQueryCmd(),
		newServeCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "lens %s\n", version)
		},
	}
}

// ============================================================================
// SHARED PLUMBING
// ============================================================================

func getConfig(cmd *cobra.Command) *config.Config {
	if c, ok := cmd.Context().Value(configKey{}).(*config.Config); ok {
		return c
	}
	cfg, err := config.Load("", nil)
	if err != nil {
		fatalf("%v", err)
	}
	return cfg
}

// logger writes to stderr so stdout stays clean for piped output.
func logger(cfg *config.Config) *slog.Logger {
	return cfg.Log.NewLogger(os.Stderr)
}

func sessionOptions(cfg *config.Config, log *slog.Logger) []dashboard.Option {
	return []dashboard.Option{
		dashboard.WithLogger(log),
		dashboard.WithDefaultPath(cfg.Data.Path),
		dashboard.WithTopCustomers(cfg.Dashboard.TopCustomers),
		dashboard.WithPreviewRows(cfg.Dashboard.PreviewRows),
		dashboard.WithCurrency(cfg.Dashboard.Currency),
	}
}

// openSession loads the configured dataset into a session of the configured
// variant.
func openSession(cmd *cobra.Command, cfg *config.Config) (*dashboard.Session, error) {
	variant, err := dashboard.ParseVariant(cfg.Data.Variant)
	if err != nil {
		return nil, err
	}
	sess := dashboard.NewSession(variant, sessionOptions(cfg, logger(cfg))...)
	if err := sess.LoadDefault(cmd.Context()); err != nil {
		return nil, err
	}
	return sess, nil
}

// ============================================================================
// OUTPUT
// ============================================================================

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// exportTable writes t to path; the extension picks the format.
func exportTable(path string, t *table.Table) error {
	var write func(io.Writer, *table.Table) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		write = func(w io.Writer, t *table.Table) error { return helpers.WriteXLSX(w, t, "") }
	case ".csv":
		write = helpers.WriteCSV
	default:
		return fmt.Errorf("unsupported export format %q (want .csv or .xlsx)", filepath.Ext(path))
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := write(f, t); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
