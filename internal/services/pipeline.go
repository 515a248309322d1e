package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"basket-insights/internal/dataset"
	"basket-insights/internal/mining"
	"basket-insights/internal/models"
	"basket-insights/internal/observability"
)

// ErrNoRows is returned when nothing survives cleaning.
var ErrNoRows = errors.New("no rows left after cleaning")

const (
	maxScatterPoints = 2000
	maxRulePoints    = 2000
)

// stage runs fn inside a span, then logs and records it. fn reports the row
// count the stage produced, or -1 when rows do not apply.
func (a *Analytics) stage(ctx context.Context, name string, fn func(ctx context.Context) (int, error)) error {
	ctx, span := observability.StartSpan(ctx, "pipeline."+name)
	rows, err := fn(ctx)
	if err != nil {
		span.SetError(err)
	}
	if rows >= 0 {
		span.SetTag("rows", strconv.Itoa(rows))
	}
	d := span.Finish()
	a.metrics.ObserveStage(name, d, rows)

	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelError
	}
	observability.LoggerFrom(ctx, a.logger).Log(ctx, level, "pipeline stage", span.LogAttrs()...)
	return err
}

// run cleans raw, mines it and precomputes every series the queries serve.
func (a *Analytics) run(ctx context.Context, raw *dataset.Frame) (*PrecomputedData, error) {
	ctx, span := observability.StartSpan(ctx, "pipeline")
	defer span.Finish()

	opts := a.opts
	data := &PrecomputedData{
		Params: models.RunParams{
			MinSupport:   opts.MinSupport,
			Metric:       string(opts.Metric),
			MinThreshold: opts.MinThreshold,
			MaxLen:       opts.MaxLen,
		},
		RecordCount: int64(raw.Len()),
	}

	var clean, positive, scaled *dataset.Frame

	err := a.stage(ctx, "missing", func(context.Context) (int, error) {
		data.MissingBefore = raw.MissingCounts()
		clean = raw.DropMissing()
		data.MissingAfter = clean.MissingCounts()
		return clean.Len(), nil
	})
	if err != nil {
		return nil, err
	}

	err = a.stage(ctx, "outliers", func(context.Context) (int, error) {
		data.QuantityBox = dataset.Box(models.ColQuantity.String(), clean.Values(models.ColQuantity))
		data.PriceBox = dataset.Box(models.ColPrice.String(), clean.Values(models.ColPrice))
		positive = clean.FilterPositive()
		if positive.Len() == 0 {
			return 0, ErrNoRows
		}
		return positive.Len(), nil
	})
	if err != nil {
		return nil, err
	}

	err = a.stage(ctx, "normalize", func(context.Context) (int, error) {
		var scaler dataset.MinMaxScaler
		var err error
		if scaled, err = scaler.FitTransform(positive); err != nil {
			return 0, fmt.Errorf("normalize: %w", err)
		}

		points := make([]models.ScatterPoint, scaled.Len())
		for i, tx := range scaled.Rows() {
			points[i] = models.ScatterPoint{X: tx.Quantity, Y: tx.Price}
		}
		data.Scatter = dataset.Sample(points, maxScatterPoints)

		data.Summary = models.PreprocessSummary{
			OriginalRows:         raw.Len(),
			CleanRows:            scaled.Len(),
			OriginalMeanPrice:    raw.Mean(models.ColPrice),
			CleanMeanPrice:       scaled.Mean(models.ColPrice),
			OriginalMeanQuantity: raw.Mean(models.ColQuantity),
			CleanMeanQuantity:    scaled.Mean(models.ColQuantity),
		}
		return scaled.Len(), nil
	})
	if err != nil {
		return nil, err
	}

	err = a.stage(ctx, "encode", func(context.Context) (int, error) {
		enc, err := dataset.OneHot(scaled, models.ColCountry)
		if err != nil {
			return 0, fmt.Errorf("encode: %w", err)
		}
		data.CountryColumns = enc.Columns()
		return enc.Len(), nil
	})
	if err != nil {
		return nil, err
	}

	var basket *mining.Basket
	var itemsets []models.Itemset
	err = a.stage(ctx, "apriori", func(ctx context.Context) (int, error) {
		basket = mining.NewBasket(positive)
		data.Invoices = basket.Len()
		data.Items = len(basket.Items())

		var err error
		itemsets, err = mining.Apriori(ctx, basket, mining.Options{
			MinSupport: opts.MinSupport,
			MaxLen:     opts.MaxLen,
			Workers:    opts.Workers,
		})
		if err != nil {
			return 0, fmt.Errorf("apriori: %w", err)
		}
		data.Itemsets = mining.TopItemsets(itemsets, -1)
		return len(itemsets), nil
	})
	if err != nil {
		return nil, err
	}

	err = a.stage(ctx, "rules", func(context.Context) (int, error) {
		rules := []models.Rule{}
		if len(itemsets) > 0 {
			var err error
			rules, err = mining.AssociationRules(itemsets, opts.Metric, opts.MinThreshold)
			if err != nil {
				return 0, fmt.Errorf("association rules: %w", err)
			}
		}
		mining.SortByLift(rules)
		data.Rules = rules

		points := make([]models.RulePoint, len(rules))
		for i, r := range rules {
			points[i] = models.RulePoint{Support: r.Support, Confidence: r.Confidence, Lift: r.Lift}
		}
		data.RulePoints = dataset.Sample(points, maxRulePoints)
		return len(rules), nil
	})
	if err != nil {
		return nil, err
	}

	err = a.stage(ctx, "charts", func(context.Context) (int, error) {
		data.TopProducts = positive.ValueCounts(models.ColDescription)
		data.TopCountries = positive.ValueCounts(models.ColCountry)
		data.InvoiceTotals = dataset.Histogram(positive.InvoiceTotals(), opts.HistogramBins)
		return -1, nil
	})
	if err != nil {
		return nil, err
	}

	a.metrics.SetResults(len(data.Itemsets), len(data.Rules))
	data.LastModified = time.Now()
	return data, nil
}
