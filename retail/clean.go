// Package retail cleans and enriches the fixed retail-transactions table:
// invoice rows with a customer, a date, a quantity and a unit price, plus
// optional category, shopping_mall, payment_method, gender and age columns.
package retail

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spektr-org/lens/schema"
	"github.com/spektr-org/lens/table"
)

// Column names of the retail schema.
const (
	ColInvoiceNo     = "invoice_no"
	ColCustomerID    = "customer_id"
	ColInvoiceDate   = "invoice_date"
	ColQuantity      = "quantity"
	ColPrice         = "price"
	ColCategory      = "category"
	ColShoppingMall  = "shopping_mall"
	ColPaymentMethod = "payment_method"
	ColGender        = "gender"
	ColAge           = "age"

	// Derived by Clean.
	ColRevenue  = "revenue"
	ColMonth    = "month"
	ColAgeGroup = "age_group"
)

// Required lists the columns Clean cannot work without.
var Required = []string{ColInvoiceNo, ColCustomerID, ColInvoiceDate, ColQuantity, ColPrice}

// SchemaError reports required columns absent from the input table.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Missing, ", "))
}

// Option configures Clean.
type Option func(*cleaner)

// WithLogger sets the logger used to report dropped rows.
func WithLogger(l *slog.Logger) Option {
	return func(c *cleaner) {
		if l != nil {
			c.logger = l
		}
	}
}

type cleaner struct {
	logger *slog.Logger
}

// ============================================================================
// CLEAN
// ============================================================================
// Steps run in order on a working copy; t itself is never modified.
//   1. invoice_date → time (unparseable → null)
//   2. drop rows with a null invoice_no, customer_id, invoice_date,
//      quantity or price
//   3. quantity → int (truncated, unparseable → 0); price → float
//      (unparseable → null)
//   4. keep quantity > 0 and price ≥ 0
//   5. revenue = quantity × price
//   6. month = first day of invoice_date's month
//   7. age_group from age, or "Unknown" without an age column
// ============================================================================

// Clean validates the retail schema and returns the cleaned, enriched table.
func Clean(t *table.Table, opts ...Option) (*table.Table, error) {
	c := &cleaner{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("component", "retail"))

	var missing []string
	for _, name := range Required {
		if !t.Has(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}

	work := t.Clone()

	// 1. dates
	dateCol, _ := t.Column(ColInvoiceDate)
	dates, layout, _ := schema.ParseTimes(dateCol)
	if err := work.SetColumn(dates); err != nil {
		return nil, fmt.Errorf("invoice dates: %w", err)
	}

	// 2-4. row selection, with coercion of the rows that survive step 2
	n := t.NumRows()
	quantities := make([]table.Value, n)
	prices := make([]table.Value, n)
	keep := make([]int, 0, n)
	droppedNull, droppedInvalid := 0, 0

	for row := 0; row < n; row++ {
		if work.Value(row, ColInvoiceNo).Null ||
			work.Value(row, ColCustomerID).Null ||
			work.Value(row, ColInvoiceDate).Null ||
			work.Value(row, ColQuantity).Null ||
			work.Value(row, ColPrice).Null {
			quantities[row] = table.NullValue(table.KindInt)
			prices[row] = table.NullValue(table.KindFloat)
			droppedNull++
			continue
		}

		qty := coerceQuantity(work.Value(row, ColQuantity))
		price, ok := coercePrice(work.Value(row, ColPrice))
		quantities[row] = table.IntValue(qty)
		if ok {
			prices[row] = table.FloatValue(price)
		} else {
			prices[row] = table.NullValue(table.KindFloat)
		}

		if qty <= 0 || !ok || price < 0 {
			droppedInvalid++
			continue
		}
		keep = append(keep, row)
	}

	for _, col := range []table.Column{
		{Name: ColQuantity, Kind: table.KindInt, Values: quantities},
		{Name: ColPrice, Kind: table.KindFloat, Values: prices},
	} {
		if err := work.SetColumn(col); err != nil {
			return nil, fmt.Errorf("coerce %s: %w", col.Name, err)
		}
	}

	out := work.Subset(keep)

	// 5-7. derived columns
	revenue := make([]table.Value, len(keep))
	months := make([]table.Value, len(keep))
	for i := range keep {
		qty := out.Value(i, ColQuantity).Int
		price := out.Value(i, ColPrice).Float
		revenue[i] = table.FloatValue(float64(qty) * price)
		months[i] = table.TimeValue(firstOfMonth(out.Value(i, ColInvoiceDate).Time))
	}

	groups := make([]table.Value, len(keep))
	hasAge := out.Has(ColAge)
	for i := range keep {
		if !hasAge {
			groups[i] = table.StringValue(Unknown)
			continue
		}
		groups[i] = table.StringValue(AgeGroup(coerceAge(out.Value(i, ColAge))))
	}

	for _, col := range []table.Column{
		{Name: ColRevenue, Kind: table.KindFloat, Values: revenue},
		{Name: ColMonth, Kind: table.KindTime, Values: months},
		{Name: ColAgeGroup, Kind: table.KindString, Values: groups},
	} {
		if err := out.SetColumn(col); err != nil {
			return nil, fmt.Errorf("derive %s: %w", col.Name, err)
		}
	}

	c.logger.Info("cleaned retail table",
		slog.Int("rows_in", n),
		slog.Int("rows_out", out.NumRows()),
		slog.Int("dropped_null", droppedNull),
		slog.Int("dropped_invalid", droppedInvalid),
		slog.String("date_layout", layout),
		slog.Bool("has_age", hasAge))

	return out, nil
}

func firstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// number reads a numeric cell, or parses the text of any other cell.
func number(v table.Value) (float64, bool) {
	if v.Null {
		return 0, false
	}
	if f, ok := v.Number(); ok {
		return f, !math.IsNaN(f)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v.String()), 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// coerceQuantity truncates toward zero; unparseable and non-finite values
// become 0.
func coerceQuantity(v table.Value) int64 {
	if v.Kind == table.KindInt && !v.Null {
		return v.Int
	}
	f, ok := number(v)
	if !ok || math.IsInf(f, 0) || math.Abs(f) >= math.MaxInt64 {
		return 0
	}
	return int64(f)
}

func coercePrice(v table.Value) (float64, bool) {
	return number(v)
}

// coerceAge reads age the way the bucketing expects it: null or unparseable
// is 0, fractions are truncated.
func coerceAge(v table.Value) int {
	f, ok := number(v)
	if !ok || math.IsInf(f, 0) || math.Abs(f) >= math.MaxInt32 {
		return 0
	}
	return int(f)
}
