// Package dashboard assembles filtered KPI and chart reports from a loaded
// table. A Session owns the base table for one user; every report is
// recomputed from it in full.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/spektr-org/lens/engine"
	"github.com/spektr-org/lens/retail"
	"github.com/spektr-org/lens/schema"
	"github.com/spektr-org/lens/table"
)

var (
	// ErrNoData is returned by reports on a session without a base table.
	ErrNoData = errors.New("no data available")

	// ErrEmptyResult is reported through Report.Err when the filters match
	// no rows. The report itself is still complete.
	ErrEmptyResult = errors.New("no rows match the current filters")
)

// Variant selects how a loaded table is prepared.
type Variant string

const (
	// VariantRetail cleans the fixed retail-transactions schema.
	VariantRetail Variant = "retail"
	// VariantGeneral classifies the columns of any table.
	VariantGeneral Variant = "general"
)

// ParseVariant validates a variant name.
func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case VariantRetail, VariantGeneral:
		return Variant(s), nil
	}
	return "", fmt.Errorf("unknown dashboard variant %q", s)
}

// Info describes the table a session currently holds.
type Info struct {
	Variant  Variant   `json:"variant"`
	Source   string    `json:"source"`
	Rows     int       `json:"rows"`
	Columns  []string  `json:"columns"`
	LoadedAt time.Time `json:"loadedAt"`
}

// Session is the explicit context of one dashboard user. It owns its base
// table exclusively: reports only read it, and Load swaps it as a whole.
type Session struct {
	variant Variant
	opts    options
	logger  *slog.Logger

	mu       sync.RWMutex
	base     *table.Table
	cls      schema.Classification
	source   string
	loadedAt time.Time
}

// NewSession returns an empty session of the given variant.
func NewSession(variant Variant, opts ...Option) *Session {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Session{
		variant: variant,
		opts:    o,
		logger:  o.logger.With(slog.String("component", "dashboard"), slog.String("variant", string(variant))),
	}
}

// Variant returns the session's variant.
func (s *Session) Variant() Variant { return s.variant }

// Load reads, then cleans or classifies, a table from r and makes it the new
// base table. name is a file name used to pick the format. If any step
// fails the previous base table stays in place.
func (s *Session) Load(ctx context.Context, name string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	raw, err := table.Read(name, r)
	if err != nil {
		return err
	}

	var (
		base *table.Table
		cls  schema.Classification
	)
	switch s.variant {
	case VariantRetail:
		base, err = retail.Clean(raw, retail.WithLogger(s.logger))
		if err != nil {
			return fmt.Errorf("clean %s: %w", name, err)
		}
	default:
		base, cls = schema.ClassifyWithLogger(raw, s.logger)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.base, s.cls, s.source, s.loadedAt = base, cls, name, time.Now()
	s.mu.Unlock()

	s.logger.Info("table loaded",
		slog.String("source", name),
		slog.Int("rows_raw", raw.NumRows()),
		slog.Int("rows", base.NumRows()),
		slog.Int("columns", base.NumCols()),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// LoadFile loads the table stored at path.
func (s *Session) LoadFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return &table.LoadError{Source: path, Err: err}
	}
	defer f.Close()
	return s.Load(ctx, path, f)
}

// LoadDefault loads the configured default dataset.
func (s *Session) LoadDefault(ctx context.Context) error {
	return s.LoadFile(ctx, s.opts.defaultPath)
}

// Info describes the current base table. ok is false before the first
// successful load.
func (s *Session) Info() (Info, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.base == nil {
		return Info{Variant: s.variant}, false
	}
	return Info{
		Variant:  s.variant,
		Source:   s.source,
		Rows:     s.base.NumRows(),
		Columns:  s.base.Names(),
		LoadedAt: s.loadedAt,
	}, true
}

// snapshot returns the current base table and classification. The table is
// never modified after it is installed, so callers may read it without the
// lock.
func (s *Session) snapshot() (*table.Table, schema.Classification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.base == nil {
		return nil, schema.Classification{}, ErrNoData
	}
	return s.base, s.cls, nil
}

// Filtered returns a fresh copy of the base rows that pass f.
func (s *Session) Filtered(f engine.Filters) (*table.Table, error) {
	base, _, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	if err := f.Validate(base); err != nil {
		return nil, err
	}
	return engine.ApplyFilters(base, f), nil
}

// Options are the unfiltered sidebar choices of either variant.
type Options struct {
	Retail  *RetailOptions  `json:"retail,omitempty"`
	General *GeneralOptions `json:"general,omitempty"`
}

// Options returns the sidebar choices for the current base table.
func (s *Session) Options() (Options, error) {
	base, cls, err := s.snapshot()
	if err != nil {
		return Options{}, err
	}
	if s.variant == VariantRetail {
		o := retailOptions(base)
		return Options{Retail: &o}, nil
	}
	o := BuildGeneralOptions(base, cls, engine.Filters{})
	return Options{General: &o}, nil
}

// Retail builds the retail report for f.
func (s *Session) Retail(f engine.Filters) (*RetailReport, error) {
	if s.variant != VariantRetail {
		return nil, fmt.Errorf("retail report on a %s session", s.variant)
	}
	base, _, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	if err := f.Validate(base); err != nil {
		return nil, err
	}
	return BuildRetailReport(base, f, s.opts.report()), nil
}

// General builds the general report for f.
func (s *Session) General(f engine.Filters) (*GeneralReport, error) {
	if s.variant != VariantGeneral {
		return nil, fmt.Errorf("general report on a %s session", s.variant)
	}
	base, cls, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	if err := f.Validate(base); err != nil {
		return nil, err
	}
	return BuildGeneralReport(base, cls, f, s.opts.report()), nil
}

// Query runs an ad-hoc grouped query against the base table.
func (s *Session) Query(q engine.Query) (*engine.Result, error) {
	base, _, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	opts := []engine.Option{engine.WithLogger(s.logger), engine.WithCurrency(s.opts.currency)}
	if s.variant == VariantRetail {
		opts = append(opts, engine.WithDefaultMeasure(retail.ColRevenue))
	}
	return engine.Execute(base, q, opts...)
}
