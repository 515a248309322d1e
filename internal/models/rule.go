package models

import (
	"math"
	"strconv"
	"strings"
)

// Measure is a rule metric. Conviction is unbounded, so infinities are
// encoded to JSON as the strings "inf" and "-inf".
type Measure float64

func (m Measure) MarshalJSON() ([]byte, error) {
	f := float64(m)
	switch {
	case math.IsInf(f, 1):
		return []byte(`"inf"`), nil
	case math.IsInf(f, -1):
		return []byte(`"-inf"`), nil
	case math.IsNaN(f):
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, f, 'g', -1, 64), nil
}

func (m *Measure) UnmarshalJSON(b []byte) error {
	switch string(b) {
	case `"inf"`:
		*m = Measure(math.Inf(1))
		return nil
	case `"-inf"`:
		*m = Measure(math.Inf(-1))
		return nil
	case "null":
		*m = Measure(math.NaN())
		return nil
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*m = Measure(f)
	return nil
}

// Itemset is a frequent set of item descriptions.
type Itemset struct {
	Items   []string `json:"items"`
	Count   int      `json:"count"`
	Support float64  `json:"support"`
}

func (s Itemset) Label() string {
	return JoinItems(s.Items)
}

// Rule is an association rule Antecedents -> Consequents.
type Rule struct {
	Antecedents       []string `json:"antecedents"`
	Consequents       []string `json:"consequents"`
	AntecedentSupport float64  `json:"antecedent_support"`
	ConsequentSupport float64  `json:"consequent_support"`
	Support           float64  `json:"support"`
	Confidence        float64  `json:"confidence"`
	Lift              float64  `json:"lift"`
	Leverage          float64  `json:"leverage"`
	Conviction        Measure  `json:"conviction"`
	ZhangsMetric      float64  `json:"zhangs_metric"`
	Jaccard           float64  `json:"jaccard"`
	Certainty         float64  `json:"certainty"`
	Kulczynski        float64  `json:"kulczynski"`
}

// RulePoint is one dot of the support/confidence scatter, coloured by lift.
type RulePoint struct {
	Support    float64 `json:"support"`
	Confidence float64 `json:"confidence"`
	Lift       float64 `json:"lift"`
}

// JoinItems renders an item set the way reports print it.
func JoinItems(items []string) string {
	return "{" + strings.Join(items, ", ") + "}"
}
