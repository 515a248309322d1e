// Package dataset loads a retail transaction log and implements the
// preprocessing steps applied before basket mining: missing value
// accounting, row filtering, min-max scaling and one-hot encoding.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"basket-insights/internal/models"
)

const (
	batchSize      = 10000
	defaultWorkers = 10
)

var (
	ErrEmptyFile         = errors.New("empty file")
	ErrMissingColumn     = errors.New("missing required column")
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// Cell values read as missing.
var naValues = map[string]struct{}{
	"": {}, "na": {}, "n/a": {}, "nan": {}, "-nan": {}, "null": {},
	"none": {}, "<na>": {}, "#n/a": {}, "#na": {},
}

var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
	"1/2/06 15:04",
	"2006-01-02",
}

type LoadOptions struct {
	// Encoding of CSV input, one of Encodings. Empty means DefaultEncoding.
	Encoding string
	// Sheet selects the XLSX worksheet; empty means the first sheet and
	// "*" concatenates every sheet.
	Sheet   string
	Workers int
	Logger  *slog.Logger
}

// Load reads a .csv or .xlsx transaction log into a Frame.
func Load(ctx context.Context, path string, opts LoadOptions) (*Frame, error) {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	var (
		tables []table
		err    error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		var t table
		t, err = readCSV(path, opts.Encoding)
		tables = []table{t}
	case ".xlsx", ".xlsm":
		tables, err = readXLSX(path, opts.Sheet)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	// The frame carries the union of every table's columns. A table without
	// one of them reads as missing in that column.
	var (
		columns []models.Column
		seen    [models.NumColumns]bool
		indexes = make([]headerIndex, len(tables))
	)
	for i, t := range tables {
		idx, err := newHeaderIndex(t.header)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t.name, err)
		}
		indexes[i] = idx
		for _, c := range idx.columns {
			if !seen[c] {
				seen[c] = true
				columns = append(columns, c)
			}
		}
	}

	var rows []models.Transaction
	for i, t := range tables {
		idx := indexes[i]
		parsed, err := parseRecords(ctx, idx, t.records, opts.Workers)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", t.name, err)
		}
		for _, c := range columns {
			if idx.pos[c] >= 0 {
				continue
			}
			for j := range parsed {
				parsed[j].Missing = parsed[j].Missing.With(c)
			}
			opts.Logger.Debug("column absent from table", "table", t.name, "column", c.String())
		}
		rows = append(rows, parsed...)
		opts.Logger.Debug("table parsed", "table", t.name, "rows", len(parsed))
	}

	return NewFrame(columns, rows), nil
}

// table is a header plus raw records, as read from a CSV file or sheet.
type table struct {
	name    string
	header  []string
	records [][]string
}

type headerIndex struct {
	pos     [models.NumColumns]int
	columns []models.Column
}

func newHeaderIndex(header []string) (headerIndex, error) {
	var idx headerIndex
	for i := range idx.pos {
		idx.pos[i] = -1
	}

	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		h = strings.TrimPrefix(h, "\u00ef\u00bb\u00bf")
		c, ok := models.ParseColumn(h)
		if !ok || idx.pos[c] >= 0 {
			continue
		}
		idx.pos[c] = i
		idx.columns = append(idx.columns, c)
	}

	var missing []string
	for _, c := range models.RequiredColumns {
		if idx.pos[c] < 0 {
			missing = append(missing, c.String())
		}
	}
	if len(missing) > 0 {
		return idx, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return idx, nil
}

func (idx headerIndex) cell(record []string, c models.Column) (string, bool) {
	p := idx.pos[c]
	if p < 0 || p >= len(record) {
		return "", false
	}
	v := strings.TrimSpace(record[p])
	if _, na := naValues[strings.ToLower(v)]; na {
		return "", false
	}
	return v, true
}

func (idx headerIndex) parse(record []string) models.Transaction {
	var tx models.Transaction
	for _, c := range idx.columns {
		v, ok := idx.cell(record, c)
		if !ok {
			tx.Missing = tx.Missing.With(c)
			continue
		}

		switch c {
		case models.ColInvoice:
			tx.Invoice = v
		case models.ColStockCode:
			tx.StockCode = v
		case models.ColDescription:
			tx.Description = v
		case models.ColCustomerID:
			tx.CustomerID = strings.TrimSuffix(v, ".0")
		case models.ColCountry:
			tx.Country = v
		case models.ColQuantity, models.ColPrice:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				tx.Missing = tx.Missing.With(c)
				continue
			}
			if c == models.ColQuantity {
				tx.Quantity = f
			} else {
				tx.Price = f
			}
		case models.ColInvoiceDate:
			d, err := parseDate(v)
			if err != nil {
				tx.Missing = tx.Missing.With(c)
				continue
			}
			tx.InvoiceDate = d
		}
	}
	return tx
}

func parseDate(v string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, v); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", v)
}

func parseRecords(ctx context.Context, idx headerIndex, records [][]string, workers int) ([]models.Transaction, error) {
	rows := make([]models.Transaction, len(records))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for start := 0; start < len(records); start += batchSize {
		end := min(start+batchSize, len(records))
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				rows[i] = idx.parse(records[i])
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}
