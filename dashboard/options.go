package dashboard

import "log/slog"

// DefaultPath is the dataset loaded when nothing is uploaded.
const DefaultPath = "data/customer_shopping_data.csv"

// Option configures a Session.
type Option func(*options)

type options struct {
	logger       *slog.Logger
	defaultPath  string
	topCustomers int
	previewRows  int
	currency     string
}

func defaultOptions() options {
	return options{
		logger:       slog.New(slog.DiscardHandler),
		defaultPath:  DefaultPath,
		topCustomers: 10,
		previewRows:  5,
	}
}

func (o options) report() ReportConfig {
	return ReportConfig{
		TopCustomers: o.topCustomers,
		PreviewRows:  o.previewRows,
		Currency:     o.currency,
	}
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithDefaultPath sets the dataset LoadDefault reads.
func WithDefaultPath(path string) Option {
	return func(o *options) {
		if path != "" {
			o.defaultPath = path
		}
	}
}

// WithTopCustomers sets how many customers the ranking chart shows.
func WithTopCustomers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.topCustomers = n
		}
	}
}

// WithPreviewRows sets how many rows the general preview shows.
func WithPreviewRows(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.previewRows = n
		}
	}
}

// WithCurrency sets the currency label of formatted amounts.
func WithCurrency(c string) Option {
	return func(o *options) { o.currency = c }
}
