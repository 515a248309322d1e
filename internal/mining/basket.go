package mining

import (
	"slices"

	"basket-insights/internal/dataset"
	"basket-insights/internal/models"
)

// Basket is the invoice x item presence matrix, stored column-wise: one
// bitset of invoices per item. An item is present on an invoice when its
// summed quantity there is positive.
type Basket struct {
	invoices []string
	items    []string
	tids     []bitset
}

// NewBasket pivots the transactions of f into a presence matrix. Rows
// without an invoice or description are ignored.
func NewBasket(f *dataset.Frame) *Basket {
	type cell struct{ invoice, item string }

	sums := make(map[cell]float64)
	invoiceSet := make(map[string]struct{})
	itemSet := make(map[string]struct{})

	for _, tx := range f.Rows() {
		if tx.Missing.Has(models.ColInvoice) || tx.Missing.Has(models.ColDescription) {
			continue
		}
		invoiceSet[tx.Invoice] = struct{}{}
		itemSet[tx.Description] = struct{}{}
		sums[cell{tx.Invoice, tx.Description}] += tx.Quantity
	}

	b := &Basket{
		invoices: sortedKeys(invoiceSet),
		items:    sortedKeys(itemSet),
	}

	invoiceIdx := indexOf(b.invoices)
	itemIdx := indexOf(b.items)

	b.tids = make([]bitset, len(b.items))
	for i := range b.tids {
		b.tids[i] = newBitset(len(b.invoices))
	}
	for c, qty := range sums {
		if qty > 0 {
			b.tids[itemIdx[c.item]].set(invoiceIdx[c.invoice])
		}
	}
	return b
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func indexOf(values []string) map[string]int {
	idx := make(map[string]int, len(values))
	for i, v := range values {
		idx[v] = i
	}
	return idx
}

// Len is the number of invoices (rows).
func (b *Basket) Len() int { return len(b.invoices) }

func (b *Basket) Invoices() []string { return b.invoices }

func (b *Basket) Items() []string { return b.items }

// Contains reports whether invoice row i contains item column j.
func (b *Basket) Contains(i, j int) bool {
	return b.tids[j].has(i)
}

// Row returns the 0/1 presence vector of invoice i.
func (b *Basket) Row(i int) []uint8 {
	row := make([]uint8, len(b.items))
	for j := range b.items {
		if b.tids[j].has(i) {
			row[j] = 1
		}
	}
	return row
}

// Support is the fraction of invoices containing every named item. Unknown
// items have support 0.
func (b *Basket) Support(items ...string) float64 {
	if b.Len() == 0 {
		return 0
	}
	var acc bitset
	for _, name := range items {
		j, ok := slices.BinarySearch(b.items, name)
		if !ok {
			return 0
		}
		if acc == nil {
			acc = b.tids[j]
			continue
		}
		acc = acc.and(b.tids[j])
	}
	if acc == nil {
		return 1
	}
	return float64(acc.count()) / float64(b.Len())
}
