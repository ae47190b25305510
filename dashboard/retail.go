package dashboard

import (
	"fmt"
	"time"

	"github.com/spektr-org/lens/engine"
	"github.com/spektr-org/lens/retail"
	"github.com/spektr-org/lens/table"
)

// ReportConfig holds the presentation knobs shared by both reports.
type ReportConfig struct {
	TopCustomers int
	PreviewRows  int
	Currency     string
}

// RetailOptions are the sidebar choices offered by the retail dashboard,
// computed from the unfiltered base table.
type RetailOptions struct {
	DateMin        *time.Time `json:"dateMin,omitempty"`
	DateMax        *time.Time `json:"dateMax,omitempty"`
	Categories     []string   `json:"categories,omitempty"`
	ShoppingMalls  []string   `json:"shoppingMalls,omitempty"`
	PaymentMethods []string   `json:"paymentMethods,omitempty"`
	Genders        []string   `json:"genders,omitempty"`
}

// RetailKPIs are the headline numbers of the retail dashboard.
type RetailKPIs struct {
	TotalRevenue      float64       `json:"totalRevenue"`
	Transactions      int           `json:"transactions"`
	UniqueCustomers   int           `json:"uniqueCustomers"`
	AverageOrderValue engine.Metric `json:"averageOrderValue"`
}

// RetailCharts holds one chart per view; a chart is nil when its column is
// absent or no rows remain.
type RetailCharts struct {
	MonthlyRevenue    *engine.ChartConfig `json:"monthlyRevenue,omitempty"`
	RevenueByCategory *engine.ChartConfig `json:"revenueByCategory,omitempty"`
	RevenueByPayment  *engine.ChartConfig `json:"revenueByPayment,omitempty"`
	TopCustomers      *engine.ChartConfig `json:"topCustomers,omitempty"`
	RevenueByMall     *engine.ChartConfig `json:"revenueByMall,omitempty"`
	RevenueByAgeGroup *engine.ChartConfig `json:"revenueByAgeGroup,omitempty"`
}

// RetailReport is everything the retail dashboard renders for one filter
// selection.
type RetailReport struct {
	Options  RetailOptions  `json:"options"`
	Applied  engine.Filters `json:"applied"`
	Rows     int            `json:"rows"`
	Empty    bool           `json:"empty"`
	KPIs     RetailKPIs     `json:"kpis"`
	Charts   RetailCharts   `json:"charts"`
	Currency string         `json:"currency,omitempty"`
}

// Err returns ErrEmptyResult when the filters matched no rows.
func (r *RetailReport) Err() error {
	if r.Empty {
		return ErrEmptyResult
	}
	return nil
}

// RetailFilterColumns are the categorical columns the retail sidebar offers.
var RetailFilterColumns = []string{retail.ColCategory, retail.ColShoppingMall, retail.ColPaymentMethod, retail.ColGender}

// BuildRetailReport filters a cleaned retail table and aggregates it. base
// is not modified.
func BuildRetailReport(base *table.Table, f engine.Filters, cfg ReportConfig) *RetailReport {
	filtered := engine.ApplyFilters(base, f)

	report := &RetailReport{
		Options:  retailOptions(base),
		Applied:  f,
		Rows:     filtered.NumRows(),
		Empty:    filtered.NumRows() == 0,
		KPIs:     retailKPIs(filtered),
		Currency: cfg.Currency,
	}

	revenue := "Revenue"
	if cfg.Currency != "" {
		revenue = fmt.Sprintf("Revenue (%s)", cfg.Currency)
	}

	chart := func(chartType, title, key string, groups []engine.Group) *engine.ChartConfig {
		if !filtered.Has(key) {
			return nil
		}
		return engine.BuildChart(engine.ChartSpec{
			Type:  chartType,
			Title: title,
			XAxis: engine.LabelForDimension(key),
			YAxis: revenue,
		}, groups)
	}
	sumBy := func(key string) []engine.Group {
		return engine.SumBy(filtered, key, retail.ColRevenue)
	}

	top := cfg.TopCustomers
	if top <= 0 {
		top = 10
	}

	report.Charts = RetailCharts{
		MonthlyRevenue:    chart("line", "Revenue Over Time (Monthly)", retail.ColMonth, sumBy(retail.ColMonth)),
		RevenueByCategory: chart("bar", "Revenue by Category", retail.ColCategory, sumBy(retail.ColCategory)),
		RevenueByPayment:  chart("pie", "Revenue by Payment Method", retail.ColPaymentMethod, sumBy(retail.ColPaymentMethod)),
		TopCustomers: chart("bar", fmt.Sprintf("Top %d Customers by Revenue", top), retail.ColCustomerID,
			engine.TopN(sumBy(retail.ColCustomerID), top)),
		RevenueByMall:     chart("bar", "Revenue by Shopping Mall", retail.ColShoppingMall, sumBy(retail.ColShoppingMall)),
		RevenueByAgeGroup: chart("bar", "Revenue by Age Group", retail.ColAgeGroup, ageGroupOrder(sumBy(retail.ColAgeGroup))),
	}

	return report
}

func retailOptions(base *table.Table) RetailOptions {
	var opts RetailOptions
	if minT, maxT, ok := engine.TimeBounds(base, retail.ColInvoiceDate); ok {
		opts.DateMin, opts.DateMax = &minT, &maxT
	}
	opts.Categories = engine.Options(base, retail.ColCategory)
	opts.ShoppingMalls = engine.Options(base, retail.ColShoppingMall)
	opts.PaymentMethods = engine.Options(base, retail.ColPaymentMethod)
	opts.Genders = engine.Options(base, retail.ColGender)
	return opts
}

// retailKPIs computes the headline numbers. The average order value is the
// mean of per-invoice revenue and is unavailable without invoices.
func retailKPIs(t *table.Table) RetailKPIs {
	return RetailKPIs{
		TotalRevenue:      engine.Sum(t, retail.ColRevenue),
		Transactions:      engine.NUnique(t, retail.ColInvoiceNo),
		UniqueCustomers:   engine.NUnique(t, retail.ColCustomerID),
		AverageOrderValue: averageOrderValue(t),
	}
}

func averageOrderValue(t *table.Table) engine.Metric {
	invoices := engine.SumBy(t, retail.ColInvoiceNo, retail.ColRevenue)
	if len(invoices) == 0 {
		return engine.Unavailable
	}
	var total float64
	for _, g := range invoices {
		total += g.Value
	}
	return engine.Some(total / float64(len(invoices)))
}

// ageGroupOrder puts age buckets in age order rather than text order
// ("≤24" sorts after the digits). Labels outside the buckets keep their
// place at the end.
func ageGroupOrder(groups []engine.Group) []engine.Group {
	rank := make(map[string]int, len(retail.AgeGroups))
	for i, l := range retail.AgeGroups {
		rank[l] = i
	}

	out := make([]engine.Group, 0, len(groups))
	for _, label := range retail.AgeGroups {
		for _, g := range groups {
			if g.Label == label {
				out = append(out, g)
			}
		}
	}
	for _, g := range groups {
		if _, known := rank[g.Label]; !known {
			out = append(out, g)
		}
	}
	return out
}
