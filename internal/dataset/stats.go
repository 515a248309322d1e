package dataset

import (
	"math"
	"slices"

	"basket-insights/internal/models"
)

func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// quantile uses linear interpolation between closest ranks, matching
// numpy's default. sorted must be ascending and non-empty.
func quantile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// Box computes the five-number summary drawn by a box plot. Whiskers reach
// the most extreme values within 1.5 IQR of the quartiles.
func Box(column string, values []float64) models.BoxStats {
	box := models.BoxStats{Column: column, Count: len(values)}
	if len(values) == 0 {
		return box
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	box.Min = sorted[0]
	box.Max = sorted[len(sorted)-1]
	box.Q1 = quantile(sorted, 0.25)
	box.Median = quantile(sorted, 0.5)
	box.Q3 = quantile(sorted, 0.75)

	iqr := box.Q3 - box.Q1
	lowFence := box.Q1 - 1.5*iqr
	highFence := box.Q3 + 1.5*iqr

	box.LowerWhisker = box.Max
	box.UpperWhisker = box.Min
	for _, v := range sorted {
		if v < lowFence || v > highFence {
			box.Outliers++
			continue
		}
		box.LowerWhisker = min(box.LowerWhisker, v)
		box.UpperWhisker = max(box.UpperWhisker, v)
	}
	return box
}

// Histogram splits [min, max] into bins equal-width intervals. The last bin
// is closed on the right.
func Histogram(values []float64, bins int) []models.HistogramBin {
	if len(values) == 0 || bins <= 0 {
		return []models.HistogramBin{}
	}

	lo, hi := slices.Min(values), slices.Max(values)
	if lo == hi {
		// numpy widens a degenerate range by 0.5 on both sides
		lo -= 0.5
		hi += 0.5
	}
	width := (hi - lo) / float64(bins)

	result := make([]models.HistogramBin, bins)
	for i := range result {
		result[i].Lower = lo + float64(i)*width
		result[i].Upper = lo + float64(i+1)*width
	}
	result[bins-1].Upper = hi

	for _, v := range values {
		i := int((v - lo) / width)
		if i >= bins {
			i = bins - 1
		}
		if i < 0 {
			i = 0
		}
		result[i].Count++
	}
	return result
}

// Sample picks at most n evenly spaced points, preserving order.
func Sample[T any](items []T, n int) []T {
	if n <= 0 || len(items) <= n {
		return slices.Clone(items)
	}
	out := make([]T, n)
	step := float64(len(items)) / float64(n)
	for i := range out {
		out[i] = items[int(float64(i)*step)]
	}
	return out
}
