package mining

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"basket-insights/internal/models"
)

var (
	ErrNoItemsets         = errors.New("no frequent itemsets")
	ErrIncompleteItemsets = errors.New("itemset table is missing a subset")
	ErrUnknownMetric      = errors.New("unknown rule metric")
)

// Metric selects the measure rules are filtered on.
type Metric string

const (
	MetricSupport    Metric = "support"
	MetricConfidence Metric = "confidence"
	MetricLift       Metric = "lift"
	MetricLeverage   Metric = "leverage"
	MetricConviction Metric = "conviction"
	MetricZhangs     Metric = "zhangs_metric"
)

func ParseMetric(s string) (Metric, error) {
	switch m := Metric(strings.ToLower(strings.TrimSpace(s))); m {
	case MetricSupport, MetricConfidence, MetricLift, MetricLeverage, MetricConviction, MetricZhangs:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMetric, s)
}

func (m Metric) value(r models.Rule) float64 {
	switch m {
	case MetricSupport:
		return r.Support
	case MetricLift:
		return r.Lift
	case MetricLeverage:
		return r.Leverage
	case MetricConviction:
		return float64(r.Conviction)
	case MetricZhangs:
		return r.ZhangsMetric
	default:
		return r.Confidence
	}
}

func itemsKey(items []string) string {
	return strings.Join(items, "\x00")
}

// AssociationRules splits every frequent itemset of two or more items into
// each antecedent/consequent pair and keeps the rules whose metric is at
// least threshold. Itemsets must be closed under subsets, as Apriori output
// is.
func AssociationRules(itemsets []models.Itemset, metric Metric, threshold float64) ([]models.Rule, error) {
	if len(itemsets) == 0 {
		return nil, ErrNoItemsets
	}
	if _, err := ParseMetric(string(metric)); err != nil {
		return nil, err
	}

	support := make(map[string]float64, len(itemsets))
	for _, s := range itemsets {
		support[itemsKey(s.Items)] = s.Support
	}
	lookup := func(items []string) (float64, error) {
		s, ok := support[itemsKey(items)]
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrIncompleteItemsets, models.JoinItems(items))
		}
		return s, nil
	}

	rules := []models.Rule{}
	for _, set := range itemsets {
		k := len(set.Items)
		if k < 2 {
			continue
		}
		// larger antecedents first
		for size := k - 1; size >= 1; size-- {
			var err error
			combinations(k, size, func(pick []bool) bool {
				ante := make([]string, 0, size)
				cons := make([]string, 0, k-size)
				for i, item := range set.Items {
					if pick[i] {
						ante = append(ante, item)
					} else {
						cons = append(cons, item)
					}
				}

				var sA, sC float64
				if sA, err = lookup(ante); err != nil {
					return false
				}
				if sC, err = lookup(cons); err != nil {
					return false
				}

				r := newRule(ante, cons, sA, sC, set.Support)
				if metric.value(r) >= threshold {
					rules = append(rules, r)
				}
				return true
			})
			if err != nil {
				return nil, err
			}
		}
	}
	return rules, nil
}

// combinations calls fn with a selection mask for every way of choosing r of
// n positions, in lexicographic order. fn returns false to stop.
func combinations(n, r int, fn func(pick []bool) bool) {
	idx := make([]int, r)
	for i := range idx {
		idx[i] = i
	}
	pick := make([]bool, n)
	for {
		clear(pick)
		for _, i := range idx {
			pick[i] = true
		}
		if !fn(pick) {
			return
		}

		i := r - 1
		for i >= 0 && idx[i] == n-r+i {
			i--
		}
		if i < 0 {
			return
		}
		idx[i]++
		for j := i + 1; j < r; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}

func newRule(ante, cons []string, sA, sC, sAC float64) models.Rule {
	confidence := sAC / sA
	leverage := sAC - sA*sC

	conviction := math.Inf(1)
	if confidence < 1 {
		conviction = (1 - sC) / (1 - confidence)
	}

	var zhang float64
	if denom := math.Max(sAC*(1-sA), sA*(sC-sAC)); denom != 0 {
		zhang = leverage / denom
	}

	var certainty float64
	if sC < 1 {
		certainty = (confidence - sC) / (1 - sC)
	}

	return models.Rule{
		Antecedents:       ante,
		Consequents:       cons,
		AntecedentSupport: sA,
		ConsequentSupport: sC,
		Support:           sAC,
		Confidence:        confidence,
		Lift:              confidence / sC,
		Leverage:          leverage,
		Conviction:        models.Measure(conviction),
		ZhangsMetric:      zhang,
		Jaccard:           sAC / (sA + sC - sAC),
		Certainty:         certainty,
		Kulczynski:        (sAC/sA + sAC/sC) / 2,
	}
}

// SortByLift orders rules by descending lift, breaking ties on support,
// confidence and finally the rendered antecedents and consequents.
func SortByLift(rules []models.Rule) {
	slices.SortStableFunc(rules, func(a, b models.Rule) int {
		if c := cmp.Compare(b.Lift, a.Lift); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Support, a.Support); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Confidence, a.Confidence); c != 0 {
			return c
		}
		if c := cmp.Compare(models.JoinItems(a.Antecedents), models.JoinItems(b.Antecedents)); c != 0 {
			return c
		}
		return cmp.Compare(models.JoinItems(a.Consequents), models.JoinItems(b.Consequents))
	})
}

// TopRules returns the n rules with the highest lift without modifying
// rules.
func TopRules(rules []models.Rule, n int) []models.Rule {
	sorted := slices.Clone(rules)
	SortByLift(sorted)
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	if sorted == nil {
		sorted = []models.Rule{}
	}
	return sorted
}

// TopItemsets returns the n itemsets with the highest support.
func TopItemsets(itemsets []models.Itemset, n int) []models.Itemset {
	sorted := slices.Clone(itemsets)
	slices.SortStableFunc(sorted, func(a, b models.Itemset) int {
		return cmp.Compare(b.Support, a.Support)
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	if sorted == nil {
		sorted = []models.Itemset{}
	}
	return sorted
}
