package dataset

import (
	"fmt"
	"slices"

	"basket-insights/internal/models"
)

// OneHotEncoding is a dummy-variable expansion of a categorical column.
// Only the category index of each row is stored; Row expands it.
type OneHotEncoding struct {
	Source     models.Column
	Categories []string
	index      []int
}

// OneHot encodes column c of f. Categories are sorted and named
// "<Column>_<value>".
func OneHot(f *Frame, c models.Column) (*OneHotEncoding, error) {
	switch c {
	case models.ColCountry, models.ColStockCode, models.ColDescription, models.ColCustomerID, models.ColInvoice:
	default:
		return nil, fmt.Errorf("column %s is not categorical", c)
	}

	seen := make(map[string]int)
	for _, tx := range f.rows {
		seen[f.label(tx, c)] = 0
	}
	categories := make([]string, 0, len(seen))
	for v := range seen {
		categories = append(categories, v)
	}
	slices.Sort(categories)
	for i, v := range categories {
		seen[v] = i
	}

	index := make([]int, len(f.rows))
	for i, tx := range f.rows {
		index[i] = seen[f.label(tx, c)]
	}

	return &OneHotEncoding{Source: c, Categories: categories, index: index}, nil
}

func (e *OneHotEncoding) Columns() []string {
	names := make([]string, len(e.Categories))
	for i, v := range e.Categories {
		names[i] = e.Source.String() + "_" + v
	}
	return names
}

func (e *OneHotEncoding) Len() int { return len(e.index) }

// Row returns the 0/1 vector of row i.
func (e *OneHotEncoding) Row(i int) []uint8 {
	row := make([]uint8, len(e.Categories))
	row[e.index[i]] = 1
	return row
}

// Counts returns the number of rows set in each dummy column.
func (e *OneHotEncoding) Counts() []int {
	counts := make([]int, len(e.Categories))
	for _, i := range e.index {
		counts[i]++
	}
	return counts
}

// Matrix materialises every row.
func (e *OneHotEncoding) Matrix() [][]uint8 {
	m := make([][]uint8, len(e.index))
	for i := range e.index {
		m[i] = e.Row(i)
	}
	return m
}
