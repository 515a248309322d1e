package dataset

import (
	"errors"
	"slices"

	"basket-insights/internal/models"
)

var ErrNotFitted = errors.New("scaler not fitted")

// MinMaxScaler rescales Quantity and Price into [0, 1] using the range seen
// by Fit.
type MinMaxScaler struct {
	fitted bool
	min    [2]float64
	max    [2]float64
}

var scaledColumns = [2]models.Column{models.ColQuantity, models.ColPrice}

func (s *MinMaxScaler) Fit(f *Frame) error {
	if f.Len() == 0 {
		return errors.New("fit scaler: empty frame")
	}
	for i, c := range scaledColumns {
		values := f.Values(c)
		if len(values) == 0 {
			return errors.New("fit scaler: no values for " + c.String())
		}
		s.min[i] = slices.Min(values)
		s.max[i] = slices.Max(values)
	}
	s.fitted = true
	return nil
}

// Range returns the fitted minimum and maximum of a scaled column.
func (s *MinMaxScaler) Range(c models.Column) (lo, hi float64, ok bool) {
	for i, sc := range scaledColumns {
		if sc == c && s.fitted {
			return s.min[i], s.max[i], true
		}
	}
	return 0, 0, false
}

func (s *MinMaxScaler) scale(i int, v float64) float64 {
	span := s.max[i] - s.min[i]
	if span == 0 {
		return v - s.min[i]
	}
	return (v - s.min[i]) / span
}

// Transform returns a copy of f with Quantity and Price rescaled.
func (s *MinMaxScaler) Transform(f *Frame) (*Frame, error) {
	if !s.fitted {
		return nil, ErrNotFitted
	}
	rows := make([]models.Transaction, len(f.rows))
	for i, tx := range f.rows {
		tx.Quantity = s.scale(0, tx.Quantity)
		tx.Price = s.scale(1, tx.Price)
		rows[i] = tx
	}
	return f.derive(rows), nil
}

func (s *MinMaxScaler) FitTransform(f *Frame) (*Frame, error) {
	if err := s.Fit(f); err != nil {
		return nil, err
	}
	return s.Transform(f)
}
