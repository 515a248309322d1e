// Package mining finds frequent itemsets in a Basket with the Apriori
// algorithm and derives association rules from them.
package mining

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"basket-insights/internal/models"
)

const (
	defaultWorkers = 10
	countChunk     = 256
)

var (
	ErrInvalidSupport = errors.New("min support must be in (0, 1]")
	ErrEmptyBasket    = errors.New("basket has no invoices")
)

type Options struct {
	MinSupport float64
	// MaxLen caps the itemset size; 0 means no limit.
	MaxLen  int
	Workers int
}

type candidate struct {
	ids   []int
	tids  bitset
	count int
}

func key(ids []int) string {
	var sb strings.Builder
	for i, id := range ids {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(id))
	}
	return sb.String()
}

// Apriori returns every itemset whose support is at least opts.MinSupport,
// ordered by size and then by item order.
func Apriori(ctx context.Context, b *Basket, opts Options) ([]models.Itemset, error) {
	if opts.MinSupport <= 0 || opts.MinSupport > 1 {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidSupport, opts.MinSupport)
	}
	if b.Len() == 0 {
		return nil, ErrEmptyBasket
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}

	n := float64(b.Len())
	frequent := func(count int) bool {
		return float64(count)/n >= opts.MinSupport
	}

	var level []candidate
	for j, tids := range b.tids {
		if c := tids.count(); frequent(c) {
			level = append(level, candidate{ids: []int{j}, tids: tids, count: c})
		}
	}

	var result []models.Itemset
	for k := 1; len(level) > 0; k++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, c := range level {
			result = append(result, b.itemset(c))
		}
		if opts.MaxLen > 0 && k >= opts.MaxLen {
			break
		}

		candidates := generate(level)
		if err := countSupport(ctx, candidates, b.tids, opts.Workers); err != nil {
			return nil, err
		}

		next := level[:0:0]
		for _, c := range candidates {
			if frequent(c.count) {
				next = append(next, c)
			}
		}
		level = next
	}

	return result, nil
}

// generate joins pairs of k-itemsets that share their first k-1 items and
// drops candidates with an infrequent k-subset. level must be sorted.
func generate(level []candidate) []candidate {
	known := make(map[string]struct{}, len(level))
	for _, c := range level {
		known[key(c.ids)] = struct{}{}
	}

	var out []candidate
	for i := 0; i < len(level); i++ {
		a := level[i]
		prefix := a.ids[:len(a.ids)-1]
		for j := i + 1; j < len(level); j++ {
			b := level[j]
			if !slices.Equal(prefix, b.ids[:len(b.ids)-1]) {
				break
			}
			ids := append(slices.Clone(a.ids), b.ids[len(b.ids)-1])
			if !allSubsetsKnown(ids, known) {
				continue
			}
			out = append(out, candidate{ids: ids, tids: a.tids})
		}
	}
	return out
}

func allSubsetsKnown(ids []int, known map[string]struct{}) bool {
	if len(ids) <= 2 {
		return true
	}
	sub := make([]int, 0, len(ids)-1)
	// dropping either of the last two items gives the joined parents
	for skip := 0; skip < len(ids)-2; skip++ {
		sub = sub[:0]
		sub = append(sub, ids[:skip]...)
		sub = append(sub, ids[skip+1:]...)
		if _, ok := known[key(sub)]; !ok {
			return false
		}
	}
	return true
}

// countSupport intersects each candidate's parent tids with the tids of its
// last item, in parallel chunks.
func countSupport(ctx context.Context, candidates []candidate, items []bitset, workers int) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for start := 0; start < len(candidates); start += countChunk {
		end := min(start+countChunk, len(candidates))
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				c := &candidates[i]
				c.tids = c.tids.and(items[c.ids[len(c.ids)-1]])
				c.count = c.tids.count()
			}
			return nil
		})
	}

	return g.Wait()
}

func (b *Basket) itemset(c candidate) models.Itemset {
	items := make([]string, len(c.ids))
	for i, id := range c.ids {
		items[i] = b.items[id]
	}
	return models.Itemset{
		Items:   items,
		Count:   c.count,
		Support: float64(c.count) / float64(b.Len()),
	}
}
