package services

import (
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"basket-insights/internal/config"
	"basket-insights/internal/dataset"
	"basket-insights/internal/metrics"
	"basket-insights/internal/mining"
	"basket-insights/internal/models"
)

const cacheVersion = "v2"

type PrecomputedData struct {
	Source         string                   `json:"source"`
	Params         models.RunParams         `json:"params"`
	MissingBefore  []models.MissingCount    `json:"missing_before"`
	MissingAfter   []models.MissingCount    `json:"missing_after"`
	QuantityBox    models.BoxStats          `json:"quantity_box"`
	PriceBox       models.BoxStats          `json:"price_box"`
	Scatter        []models.ScatterPoint    `json:"scatter"`
	Summary        models.PreprocessSummary `json:"summary"`
	CountryColumns []string                 `json:"country_columns"`
	Invoices       int                      `json:"invoices"`
	Items          int                      `json:"items"`
	Itemsets       []models.Itemset         `json:"itemsets"`
	Rules          []models.Rule            `json:"rules"`
	RulePoints     []models.RulePoint       `json:"rule_points"`
	TopProducts    []models.ValueCount      `json:"top_products"`
	TopCountries   []models.ValueCount      `json:"top_countries"`
	InvoiceTotals  []models.HistogramBin    `json:"invoice_totals"`
	LastModified   time.Time                `json:"last_modified"`
	RecordCount    int64                    `json:"record_count"`
}

// Options control loading, mining and caching.
type Options struct {
	Load          dataset.LoadOptions
	MinSupport    float64
	Metric        mining.Metric
	MinThreshold  float64
	MaxLen        int
	Workers       int
	HistogramBins int
	// CacheDir holds gob snapshots of precomputed results; empty disables
	// the cache.
	CacheDir string
}

func DefaultOptions() Options {
	return OptionsFromConfig(config.Default())
}

func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{
		Load: dataset.LoadOptions{
			Encoding: cfg.Dataset.Encoding,
			Sheet:    cfg.Dataset.Sheet,
			Workers:  cfg.Dataset.Workers,
		},
		MinSupport:    cfg.Mining.MinSupport,
		Metric:        mining.Metric(cfg.Mining.Metric),
		MinThreshold:  cfg.Mining.MinThreshold,
		MaxLen:        cfg.Mining.MaxLen,
		Workers:       cfg.Mining.Workers,
		HistogramBins: cfg.Mining.HistogramBins,
	}
	if cfg.Cache.Enabled {
		opts.CacheDir = cfg.Cache.Dir
	}
	return opts
}

type Option func(*Analytics)

func WithOptions(opts Options) Option {
	return func(a *Analytics) { a.opts = opts }
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *Analytics) { a.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Analytics) { a.metrics = m }
}

type Analytics struct {
	mu               sync.RWMutex
	precomputed      *PrecomputedData
	recordsProcessed atomic.Int64
	opts             Options
	logger           *slog.Logger
	metrics          *metrics.Metrics
}

func NewAnalytics(options ...Option) *Analytics {
	a := &Analytics{
		precomputed: &PrecomputedData{},
		opts:        DefaultOptions(),
		logger:      slog.Default(),
	}
	for _, o := range options {
		o(a)
	}
	return a
}

// SetData runs the pipeline over in-memory rows, all columns present.
func (a *Analytics) SetData(rows []models.Transaction) error {
	return a.setFrame(context.Background(), "memory", dataset.NewFrame(nil, rows))
}

func (a *Analytics) setFrame(ctx context.Context, source string, frame *dataset.Frame) error {
	data, err := a.run(ctx, frame)
	a.metrics.RunFinished(err)
	if err != nil {
		return err
	}
	data.Source = source

	a.mu.Lock()
	a.precomputed = data
	a.mu.Unlock()
	a.recordsProcessed.Store(data.RecordCount)
	return nil
}

// LoadFromFile runs the pipeline over a CSV or XLSX file, reusing a cached
// result when one newer than the file exists for the same parameters.
func (a *Analytics) LoadFromFile(ctx context.Context, path string) error {
	if cached, err := a.loadFromCache(path); err == nil {
		fileInfo, err := os.Stat(path)
		if err == nil && fileInfo.ModTime().Before(cached.LastModified) {
			a.mu.Lock()
			a.precomputed = cached
			a.mu.Unlock()
			a.logger.Info("loaded from cache", "records", cached.RecordCount, "rules", len(cached.Rules))
			return nil
		}
	}

	start := time.Now()
	a.logger.Info("processing transactions", "path", path)

	loadOpts := a.opts.Load
	if loadOpts.Logger == nil {
		loadOpts.Logger = a.logger
	}

	var frame *dataset.Frame
	err := a.stage(ctx, "load", func(ctx context.Context) (int, error) {
		var err error
		frame, err = dataset.Load(ctx, path, loadOpts)
		if err != nil {
			return 0, err
		}
		return frame.Len(), nil
	})
	if err != nil {
		a.metrics.RunFinished(err)
		return fmt.Errorf("load %s: %w", path, err)
	}

	if err := a.setFrame(ctx, path, frame); err != nil {
		return fmt.Errorf("analyse %s: %w", path, err)
	}

	if err := a.saveToCache(path); err != nil {
		a.logger.Warn("failed to save cache", "error", err)
	}

	duration := time.Since(start)
	count := a.recordsProcessed.Load()
	a.logger.Info("analysis complete",
		"records", count,
		"duration", duration,
		"rate", fmt.Sprintf("%.0f records/sec", float64(count)/duration.Seconds()))

	return nil
}

// Cache management
func (a *Analytics) getCacheFilename(path string) string {
	o := a.opts
	safe := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "*", "all")
	key := fmt.Sprintf("%s_%s_e%s_t%s_s%g_%s%g_l%d_b%d",
		safe.Replace(path), cacheVersion,
		safe.Replace(strings.ToLower(o.Load.Encoding)), safe.Replace(o.Load.Sheet),
		o.MinSupport, o.Metric, o.MinThreshold, o.MaxLen, o.HistogramBins)
	return filepath.Join(o.CacheDir, key+".gob")
}

func (a *Analytics) saveToCache(path string) error {
	if a.opts.CacheDir == "" {
		return nil
	}
	if err := os.MkdirAll(a.opts.CacheDir, 0o755); err != nil {
		return err
	}

	file, err := os.Create(a.getCacheFilename(path))
	if err != nil {
		return err
	}
	defer file.Close()

	a.mu.RLock()
	defer a.mu.RUnlock()

	return gob.NewEncoder(file).Encode(a.precomputed)
}

func (a *Analytics) loadFromCache(path string) (*PrecomputedData, error) {
	if a.opts.CacheDir == "" {
		return nil, os.ErrNotExist
	}
	file, err := os.Open(a.getCacheFilename(path))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var data PrecomputedData
	if err := gob.NewDecoder(file).Decode(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// head returns the first n items, all of them when n is negative, and never
// nil.
func head[T any](items []T, n int) []T {
	if items == nil {
		return []T{}
	}
	if n < 0 || len(items) <= n {
		return items
	}
	return items[:n]
}

func (a *Analytics) MissingValues() []models.MissingCount {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return head(a.precomputed.MissingBefore, -1)
}

func (a *Analytics) CleanMissingValues() []models.MissingCount {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return head(a.precomputed.MissingAfter, -1)
}

func (a *Analytics) QuantityBox() models.BoxStats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.precomputed.QuantityBox
}

func (a *Analytics) PriceBox() models.BoxStats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.precomputed.PriceBox
}

func (a *Analytics) NormalizedScatter() []models.ScatterPoint {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return head(a.precomputed.Scatter, -1)
}

func (a *Analytics) Summary() models.PreprocessSummary {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.precomputed.Summary
}

func (a *Analytics) CountryColumns() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return head(a.precomputed.CountryColumns, -1)
}

// TopRules returns the limit rules with the highest lift.
func (a *Analytics) TopRules(limit int) []models.Rule {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return head(a.precomputed.Rules, limit)
}

func (a *Analytics) Rules() []models.Rule {
	return a.TopRules(-1)
}

func (a *Analytics) RuleScatter() []models.RulePoint {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return head(a.precomputed.RulePoints, -1)
}

func (a *Analytics) TopItemsets(limit int) []models.Itemset {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return head(a.precomputed.Itemsets, limit)
}

func (a *Analytics) TopProducts(limit int) []models.ValueCount {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return head(a.precomputed.TopProducts, limit)
}

func (a *Analytics) TopCountries(limit int) []models.ValueCount {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return head(a.precomputed.TopCountries, limit)
}

func (a *Analytics) InvoiceTotals() []models.HistogramBin {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return head(a.precomputed.InvoiceTotals, -1)
}

// Result snapshots the current run for export.
func (a *Analytics) Result() models.RunResult {
	a.mu.RLock()
	defer a.mu.RUnlock()
	p := a.precomputed
	return models.RunResult{
		Source:         p.Source,
		Params:         p.Params,
		MissingBefore:  head(p.MissingBefore, -1),
		MissingAfter:   head(p.MissingAfter, -1),
		Summary:        p.Summary,
		CountryColumns: head(p.CountryColumns, -1),
		Invoices:       p.Invoices,
		Items:          p.Items,
		Itemsets:       head(p.Itemsets, -1),
		Rules:          head(p.Rules, -1),
		GeneratedAt:    p.LastModified,
	}
}

// Utility method for monitoring
func (a *Analytics) Stats() map[string]any {
	a.mu.RLock()
	defer a.mu.RUnlock()

	p := a.precomputed
	return map[string]any{
		"source":          p.Source,
		"record_count":    p.RecordCount,
		"clean_rows":      p.Summary.CleanRows,
		"last_processed":  p.LastModified,
		"invoices":        p.Invoices,
		"items":           p.Items,
		"itemsets":        len(p.Itemsets),
		"rules":           len(p.Rules),
		"country_columns": len(p.CountryColumns),
		"min_support":     p.Params.MinSupport,
		"metric":          p.Params.Metric,
		"min_threshold":   p.Params.MinThreshold,
	}
}
