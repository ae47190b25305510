package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/spektr-org/lens/config"
	"github.com/spektr-org/lens/dashboard"
	"github.com/spektr-org/lens/engine"
	"github.com/spektr-org/lens/helpers"
	"github.com/spektr-org/lens/retail"
	"github.com/spektr-org/lens/schema"
	"github.com/spektr-org/lens/server"
	"github.com/spektr-org/lens/table"
)

// ============================================================================
// RETAIL
// ============================================================================

type retailOptions struct {
	categories []string
	malls      []string
	payments   []string
	genders    []string
	from, to   string
	out        string
}

func (o *retailOptions) filters() (engine.Filters, error) {
	f := engine.Filters{Dimensions: map[string][]string{}}
	add := func(col string, vals []string) {
		if len(vals) > 0 {
			f.Dimensions[col] = vals
		}
	}
	add(retail.ColCategory, o.categories)
	add(retail.ColShoppingMall, o.malls)
	add(retail.ColPaymentMethod, o.payments)
	add(retail.ColGender, o.genders)
	if o.from != "" || o.to != "" {
		r, err := engine.ParseDateRange(o.from, o.to)
		if err != nil {
			return f, fmt.Errorf("invalid --from/--to: %w", err)
		}
		f.Ranges = map[string]engine.DateRange{retail.ColInvoiceDate: r}
	}
	return f, nil
}

func newRetailCmd() *cobra.Command {
	opts := &retailOptions{}

	cmd := &cobra.Command{
		Use:   "retail",
		Short: "Show the retail sales dashboard",
		Example: `  # Whole dataset
  lens retail --data customer_shopping_data.csv

  # Books and Toys bought by card in January, as JSON
  lens retail --category Books,Toys --payment "Credit Card" --from 2024-01-01 --to 2024-01-31 -o json

  # Export the filtered rows for Excel
  lens retail --mall Kanyon --out kanyon.xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := opts.filters()
			if err != nil {
				return err
			}
			cfg := getConfig(cmd)
			cfg.Data.Variant = string(dashboard.VariantRetail)
			return runReport(cmd, cfg, f, opts.out)
		},
	}

	cmd.Flags().StringSliceVar(&opts.categories, "category", nil, "Keep only these categories")
	cmd.Flags().StringSliceVar(&opts.malls, "mall", nil, "Keep only these shopping malls")
	cmd.Flags().StringSliceVar(&opts.payments, "payment", nil, "Keep only these payment methods")
	cmd.Flags().StringSliceVar(&opts.genders, "gender", nil, "Keep only these genders")
	cmd.Flags().StringVar(&opts.from, "from", "", "First invoice date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.to, "to", "", "Last invoice date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.out, "out", "", "Also export the filtered rows to a .csv or .xlsx file")
	return cmd
}

// ============================================================================
// EXPLORE (general variant)
// ============================================================================

type exploreOptions struct {
	filters []string
	ranges  []string
	out     string
}

// parseFilters turns repeated col=value and col=from..to flags into Filters.
func parseFilters(selections, ranges []string) (engine.Filters, error) {
	f := engine.Filters{}
	for _, s := range selections {
		col, val, ok := strings.Cut(s, "=")
		if !ok || col == "" {
			return f, fmt.Errorf("invalid filter %q (want column=value)", s)
		}
		if f.Dimensions == nil {
			f.Dimensions = map[string][]string{}
		}
		f.Dimensions[col] = append(f.Dimensions[col], val)
	}
	for _, s := range ranges {
		col, span, ok := strings.Cut(s, "=")
		from, to, ok2 := strings.Cut(span, "..")
		if !ok || !ok2 || col == "" {
			return f, fmt.Errorf("invalid range %q (want column=from..to)", s)
		}
		r, err := engine.ParseDateRange(from, to)
		if err != nil {
			return f, fmt.Errorf("invalid range %q: %w", s, err)
		}
		if f.Ranges == nil {
			f.Ranges = map[string]engine.DateRange{}
		}
		f.Ranges[col] = r
	}
	return f, nil
}

func newExploreCmd() *cobra.Command {
	opts := &exploreOptions{}

	cmd := &cobra.Command{
		Use:   "explore",
		Short: "Show the general dashboard for any dataset",
		Example: `  lens explore --data orders.csv
  lens explore --data orders.xlsx --filter region=North --filter region=East
  lens explore --data orders.parquet --range date=2024-01-01..2024-03-31 -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := parseFilters(opts.filters, opts.ranges)
			if err != nil {
				return err
			}
			cfg := getConfig(cmd)
			cfg.Data.Variant = string(dashboard.VariantGeneral)
			return runReport(cmd, cfg, f, opts.out)
		},
	}

	cmd.Flags().StringArrayVar(&opts.filters, "filter", nil, "Keep rows where column=value (repeatable)")
	cmd.Flags().StringArrayVar(&opts.ranges, "range", nil, "Keep rows where column is within from..to (repeatable)")
	cmd.Flags().StringVar(&opts.out, "out", "", "Also export the filtered rows to a .csv or .xlsx file")
	return cmd
}

// runReport builds the dashboard of the configured variant and writes it in
// the configured output format.
func runReport(cmd *cobra.Command, cfg *config.Config, f engine.Filters, out string) error {
	sess, err := openSession(cmd, cfg)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()

	if out != "" {
		filtered, err := sess.Filtered(f)
		if err != nil {
			return err
		}
		if err := exportTable(out, filtered); err != nil {
			return err
		}
		logger(cfg).Info("rows exported", slog.String("path", out), slog.Int("rows", filtered.NumRows()))
	}

	if cfg.Output == "csv" {
		filtered, err := sess.Filtered(f)
		if err != nil {
			return err
		}
		return helpers.WriteCSV(w, filtered)
	}

	if sess.Variant() == dashboard.VariantRetail {
		report, err := sess.Retail(f)
		if err != nil {
			return err
		}
		if cfg.Output == "json" {
			return writeJSON(w, report)
		}
		helpers.RenderRetail(w, report)
		return nil
	}

	report, err := sess.General(f)
	if err != nil {
		return err
	}
	if cfg.Output == "json" {
		return writeJSON(w, report)
	}
	helpers.RenderGeneral(w, report)
	return nil
}

// ============================================================================
// DISCOVER
// ============================================================================

func newDiscoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "Print the detected column classes of a dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := getConfig(cmd)
			log := logger(cfg)

			raw, err := table.LoadFile(cfg.Data.Path)
			if err != nil {
				return err
			}
			t, cls := schema.ClassifyWithLogger(raw, log)
			profiles := schema.Profiles(t, cls)

			w := cmd.OutOrStdout()
			switch cfg.Output {
			case "json":
				return writeJSON(w, struct {
					Classification schema.Classification `json:"classification"`
					Profiles       []schema.Profile      `json:"profiles"`
				}{cls, profiles})
			case "csv":
				cw := csv.NewWriter(w)
				_ = cw.Write([]string{"column", "class", "layout"})
				for _, p := range profiles {
					_ = cw.Write([]string{p.Name, p.Class.String(), p.Layout})
				}
				cw.Flush()
				return cw.Error()
			default:
				helpers.RenderProfiles(w, profiles)
				return nil
			}
		},
	}
}

// ============================================================================
// QUERY
// ============================================================================

func newQueryCmd() *cobra.Command {
	var (
		q       engine.Query
		filters []string
		ranges  []string
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run an ad-hoc grouped aggregation",
		Example: `  # Revenue by category (retail measures default to revenue)
  lens query --group-by category

  # Average price per region as a table, top 5
  lens query --variant general --data orders.csv --group-by region --measure price --agg mean --viz table --limit 5

  # Row count for one mall as CSV
  lens query --agg count --filter shopping_mall=Kanyon -o csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := parseFilters(filters, ranges)
			if err != nil {
				return err
			}
			q.Filters = f
			if err := validator.New().Struct(q); err != nil {
				return fmt.Errorf("invalid query: %w", err)
			}

			cfg := getConfig(cmd)
			sess, err := openSession(cmd, cfg)
			if err != nil {
				return err
			}
			result, err := sess.Query(q)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			switch cfg.Output {
			case "json":
				return writeJSON(w, result)
			case "csv":
				return writeResultCSV(w, result)
			default:
				helpers.RenderResult(w, result)
				return nil
			}
		},
	}

	cmd.Flags().StringVar(&q.GroupBy, "group-by", "", "Column to group by")
	cmd.Flags().StringVar(&q.Measure, "measure", "", "Numeric column to aggregate")
	cmd.Flags().StringVar(&q.Aggregation, "agg", "", "Aggregation: sum, mean, count, min, max")
	cmd.Flags().StringVar(&q.SortBy, "sort", "", "Sort: key_asc, key_desc, value_asc, value_desc")
	cmd.Flags().IntVar(&q.Limit, "limit", 0, "Keep only the first N groups")
	cmd.Flags().StringVar(&q.Visualize, "viz", "", "Visualization: bar, line, pie, table, text")
	cmd.Flags().StringVar(&q.Title, "title", "", "Result title")
	cmd.Flags().StringArrayVar(&filters, "filter", nil, "Keep rows where column=value (repeatable)")
	cmd.Flags().StringArrayVar(&ranges, "range", nil, "Keep rows where column is within from..to (repeatable)")
	return cmd
}

// writeResultCSV writes chart or table data as Sheets-ready CSV, falling
// back to a one-row summary for text results.
func writeResultCSV(w io.Writer, r *engine.Result) error {
	cw := csv.NewWriter(w)

	switch {
	case r.ChartConfig != nil && len(r.ChartConfig.Series) > 0:
		writeChartCSV(cw, r.ChartConfig)
	case r.TableData != nil && len(r.TableData.Columns) > 0:
		header := make([]string, len(r.TableData.Columns))
		for i, c := range r.TableData.Columns {
			header[i] = c.Label
		}
		_ = cw.Write(header)
		for _, row := range r.TableData.Rows {
			_ = cw.Write(row)
		}
	default:
		_ = cw.Write([]string{"Summary", "Value", "Unit"})
		value, unit := "", ""
		if r.Data != nil {
			value, unit = r.Data.Value, r.Data.Unit
		}
		reply := r.Reply
		if reply == "" {
			reply = "No data"
		}
		_ = cw.Write([]string{reply, value, unit})
	}

	cw.Flush()
	return cw.Error()
}

func writeChartCSV(cw *csv.Writer, chart *engine.ChartConfig) {
	xLabel, yLabel := chart.XAxis, chart.YAxis
	if xLabel == "" {
		xLabel = "Label"
	}
	if yLabel == "" {
		yLabel = "Value"
	}

	// Single series → two columns
	if len(chart.Series) == 1 {
		_ = cw.Write([]string{xLabel, yLabel})
		for _, d := range chart.Series[0].Data {
			_ = cw.Write([]string{d.Label, fmtNum(d.Value)})
		}
		return
	}

	// Multi-series → label + one column per series
	headers := []string{xLabel}
	for _, s := range chart.Series {
		headers = append(headers, s.Name)
	}
	_ = cw.Write(headers)
	for i, d := range chart.Series[0].Data {
		row := []string{d.Label}
		for _, s := range chart.Series {
			if i < len(s.Data) {
				row = append(row, fmtNum(s.Data[i].Value))
			} else {
				row = append(row, "")
			}
		}
		_ = cw.Write(row)
	}
}

func fmtNum(v float64) string {
	// Whole numbers → no decimals, fractional → 2 decimals
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// ============================================================================
// SERVE
// ============================================================================

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve dashboards over HTTP",
		Example: `  lens serve --addr :8080 --data customer_shopping_data.csv
  LENS_SERVER_SESSION_KEY=... lens serve --variant general`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := getConfig(cmd)
			log := logger(cfg)

			variant, err := dashboard.ParseVariant(cfg.Data.Variant)
			if err != nil {
				return err
			}
			var key []byte
			if cfg.Server.SessionKey != "" {
				key = []byte(cfg.Server.SessionKey)
			} else {
				log.Warn("no session key configured, cookies will not survive a restart")
			}

			srv, err := server.New(server.Config{
				Addr:            cfg.Server.Addr,
				Variant:         variant,
				MaxUploadBytes:  cfg.Server.MaxUploadMB << 20,
				SessionKey:      key,
				MaxSessions:     cfg.Server.MaxSessions,
				SessionTTL:      cfg.Server.SessionTTL,
				ReadTimeout:     cfg.Server.ReadTimeout,
				WriteTimeout:    cfg.Server.WriteTimeout,
				ShutdownTimeout: cfg.Server.ShutdownTimeout,
				SecureCookies:   cfg.Server.SecureCookies,
				LoadRate:        cfg.Server.LoadRate,
				LoadBurst:       cfg.Server.LoadBurst,
				SessionOptions:  sessionOptions(cfg, log),
				Logger:          log,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Serve(ctx)
		},
	}

	cmd.Flags().String("addr", "", "Listen address (default :8080)")
	cmd.Flags().Int64("max-upload-mb", 0, "Largest accepted upload in MiB")
	return cmd
}
