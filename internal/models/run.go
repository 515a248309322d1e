package models

import "time"

// RunParams are the mining parameters a run was produced with.
type RunParams struct {
	MinSupport   float64 `json:"min_support"`
	Metric       string  `json:"metric"`
	MinThreshold float64 `json:"min_threshold"`
	MaxLen       int     `json:"max_len"`
}

// RunResult is the outcome of one pipeline run, as exported.
type RunResult struct {
	Source         string            `json:"source"`
	Params         RunParams         `json:"params"`
	MissingBefore  []MissingCount    `json:"missing_before"`
	MissingAfter   []MissingCount    `json:"missing_after"`
	Summary        PreprocessSummary `json:"summary"`
	CountryColumns []string          `json:"country_columns"`
	Invoices       int               `json:"invoices"`
	Items          int               `json:"items"`
	Itemsets       []Itemset         `json:"itemsets"`
	Rules          []Rule            `json:"rules"`
	GeneratedAt    time.Time         `json:"generated_at"`
}
