package engine

import "log/slog"

// ============================================================================
// ENGINE OPTIONS — Functional options for Execute()
// ============================================================================

// Option configures engine behavior via functional options pattern.
type Option func(*config)

type config struct {
	Logger         *slog.Logger
	Currency       string // prefix for formatted sums and means
	DefaultMeasure string // measure to aggregate when Query.Measure is empty
}

// WithLogger sets the logger for query execution.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.Logger = l
		}
	}
}

// WithCurrency sets the currency label used when formatting values
// (e.g., "$" or "TRY").
func WithCurrency(currency string) Option {
	return func(c *config) {
		c.Currency = currency
	}
}

// WithDefaultMeasure sets the measure to aggregate when Query.Measure is empty.
func WithDefaultMeasure(measure string) Option {
	return func(c *config) {
		c.DefaultMeasure = measure
	}
}

// applyOptions creates a config from functional options.
func applyOptions(opts []Option) *config {
	cfg := &config{
		Logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	cfg.Logger = cfg.Logger.With(slog.String("component", "engine"))
	return cfg
}
