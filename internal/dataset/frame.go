package dataset

import (
	"cmp"
	"slices"

	"basket-insights/internal/models"
)

// Frame is an immutable table of transactions together with the columns
// the source actually carried.
type Frame struct {
	columns []models.Column
	present models.ColumnSet
	rows    []models.Transaction
}

// NewFrame wraps rows. A nil columns slice means every known column.
func NewFrame(columns []models.Column, rows []models.Transaction) *Frame {
	if columns == nil {
		for c := models.Column(0); c < models.NumColumns; c++ {
			columns = append(columns, c)
		}
	}

	f := &Frame{columns: columns, rows: rows}
	for _, c := range columns {
		f.present = f.present.With(c)
	}
	return f
}

func (f *Frame) Columns() []models.Column { return f.columns }

func (f *Frame) Rows() []models.Transaction { return f.rows }

func (f *Frame) Len() int { return len(f.rows) }

func (f *Frame) derive(rows []models.Transaction) *Frame {
	return &Frame{columns: f.columns, present: f.present, rows: rows}
}

// Filter returns the rows for which keep reports true.
func (f *Frame) Filter(keep func(models.Transaction) bool) *Frame {
	rows := make([]models.Transaction, 0, len(f.rows))
	for _, tx := range f.rows {
		if keep(tx) {
			rows = append(rows, tx)
		}
	}
	return f.derive(rows)
}

// MissingCounts reports, per present column in header order, how many
// rows lack a value.
func (f *Frame) MissingCounts() []models.MissingCount {
	counts := make([]int, models.NumColumns)
	for _, tx := range f.rows {
		if tx.Missing == 0 {
			continue
		}
		for _, c := range f.columns {
			if tx.Missing.Has(c) {
				counts[c]++
			}
		}
	}

	result := make([]models.MissingCount, 0, len(f.columns))
	for _, c := range f.columns {
		result = append(result, models.MissingCount{Column: c.String(), Missing: counts[c]})
	}
	return result
}

// DropMissing keeps rows that have a value in every present column.
func (f *Frame) DropMissing() *Frame {
	return f.Filter(func(tx models.Transaction) bool {
		return !tx.Missing.Intersects(f.present)
	})
}

// FilterPositive keeps rows with strictly positive quantity and price.
func (f *Frame) FilterPositive() *Frame {
	return f.Filter(func(tx models.Transaction) bool {
		return tx.Quantity > 0 && tx.Price > 0 &&
			!tx.Missing.Has(models.ColQuantity) && !tx.Missing.Has(models.ColPrice)
	})
}

// Values extracts the non-missing values of a numeric column.
func (f *Frame) Values(c models.Column) []float64 {
	values := make([]float64, 0, len(f.rows))
	for _, tx := range f.rows {
		if tx.Missing.Has(c) {
			continue
		}
		switch c {
		case models.ColQuantity:
			values = append(values, tx.Quantity)
		case models.ColPrice:
			values = append(values, tx.Price)
		}
	}
	return values
}

// Mean of the non-missing values of a numeric column; 0 when there are none.
func (f *Frame) Mean(c models.Column) float64 {
	return Mean(f.Values(c))
}

func (f *Frame) label(tx models.Transaction, c models.Column) string {
	switch c {
	case models.ColInvoice:
		return tx.Invoice
	case models.ColStockCode:
		return tx.StockCode
	case models.ColDescription:
		return tx.Description
	case models.ColCustomerID:
		return tx.CustomerID
	case models.ColCountry:
		return tx.Country
	}
	return ""
}

// ValueCounts counts the distinct values of a text column, most frequent
// first and ties broken alphabetically.
func (f *Frame) ValueCounts(c models.Column) []models.ValueCount {
	counts := make(map[string]int)
	for _, tx := range f.rows {
		if tx.Missing.Has(c) {
			continue
		}
		counts[f.label(tx, c)]++
	}

	result := make([]models.ValueCount, 0, len(counts))
	for v, n := range counts {
		result = append(result, models.ValueCount{Value: v, Count: n})
	}
	slices.SortFunc(result, func(a, b models.ValueCount) int {
		if a.Count != b.Count {
			return cmp.Compare(b.Count, a.Count)
		}
		return cmp.Compare(a.Value, b.Value)
	})
	return result
}

// InvoiceTotals sums Quantity*Price per invoice, ordered by invoice id.
func (f *Frame) InvoiceTotals() []float64 {
	totals := make(map[string]float64)
	for _, tx := range f.rows {
		totals[tx.Invoice] += tx.Amount()
	}

	invoices := make([]string, 0, len(totals))
	for inv := range totals {
		invoices = append(invoices, inv)
	}
	slices.Sort(invoices)

	result := make([]float64, len(invoices))
	for i, inv := range invoices {
		result[i] = totals[inv]
	}
	return result
}
