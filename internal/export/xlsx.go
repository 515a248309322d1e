// Package export writes finished runs to files other tools can open.
package export

import (
	"fmt"
	"math"
	"time"

	"github.com/xuri/excelize/v2"

	"basket-insights/internal/models"
)

const (
	SummarySheet  = "Summary"
	ItemsetsSheet = "Itemsets"
	RulesSheet    = "Rules"
)

var (
	itemsetHeader = []any{"Items", "Length", "Count", "Support"}
	ruleHeader    = []any{
		"Antecedents", "Consequents", "Antecedent support", "Consequent support",
		"Support", "Confidence", "Lift", "Leverage", "Conviction",
		"Zhang's metric", "Jaccard", "Certainty", "Kulczynski",
	}
)

// WriteXLSX saves res as a workbook with Summary, Itemsets and Rules sheets.
func WriteXLSX(path string, res models.RunResult) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return fmt.Errorf("rename default sheet: %w", err)
	}
	for _, name := range []string{ItemsetsSheet, RulesSheet} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	w := &sheetWriter{f: f, bold: bold}
	w.summary(res)
	w.itemsets(res.Itemsets)
	w.rules(res.Rules)
	if w.err != nil {
		return w.err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// sheetWriter keeps the first error so each sheet is written without checks
// on every cell.
type sheetWriter struct {
	f    *excelize.File
	bold int
	err  error
}

func (w *sheetWriter) row(sheet string, n int, values []any) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		w.err = err
		return
	}
	if err := w.f.SetSheetRow(sheet, cell, &values); err != nil {
		w.err = fmt.Errorf("%s row %d: %w", sheet, n, err)
	}
}

func (w *sheetWriter) header(sheet string, values []any) {
	w.row(sheet, 1, values)
	if w.err == nil {
		w.err = w.f.SetRowStyle(sheet, 1, 1, w.bold)
	}
}

func (w *sheetWriter) summary(res models.RunResult) {
	s := res.Summary
	rows := [][]any{
		{"Source", res.Source},
		{"Generated at", res.GeneratedAt.Format(time.RFC3339)},
		{"Min support", res.Params.MinSupport},
		{"Metric", res.Params.Metric},
		{"Min threshold", res.Params.MinThreshold},
		{"Max length", res.Params.MaxLen},
		{"Original rows", s.OriginalRows},
		{"Clean rows", s.CleanRows},
		{"Original mean price", s.OriginalMeanPrice},
		{"Clean mean price", s.CleanMeanPrice},
		{"Original mean quantity", s.OriginalMeanQuantity},
		{"Clean mean quantity", s.CleanMeanQuantity},
		{"Country columns", len(res.CountryColumns)},
		{"Invoices", res.Invoices},
		{"Items", res.Items},
		{"Frequent itemsets", len(res.Itemsets)},
		{"Rules", len(res.Rules)},
	}

	w.header(SummarySheet, []any{"Field", "Value"})
	for i, r := range rows {
		w.row(SummarySheet, i+2, r)
	}

	n := len(rows) + 3
	w.row(SummarySheet, n, []any{"Column", "Missing before", "Missing after"})
	after := make(map[string]int, len(res.MissingAfter))
	for _, m := range res.MissingAfter {
		after[m.Column] = m.Missing
	}
	for i, m := range res.MissingBefore {
		w.row(SummarySheet, n+i+1, []any{m.Column, m.Missing, after[m.Column]})
	}
}

func (w *sheetWriter) itemsets(itemsets []models.Itemset) {
	w.header(ItemsetsSheet, itemsetHeader)
	for i, s := range itemsets {
		w.row(ItemsetsSheet, i+2, []any{s.Label(), len(s.Items), s.Count, s.Support})
	}
}

func (w *sheetWriter) rules(rules []models.Rule) {
	w.header(RulesSheet, ruleHeader)
	for i, r := range rules {
		w.row(RulesSheet, i+2, []any{
			models.JoinItems(r.Antecedents), models.JoinItems(r.Consequents),
			r.AntecedentSupport, r.ConsequentSupport,
			r.Support, r.Confidence, r.Lift, r.Leverage, cellFloat(float64(r.Conviction)),
			r.ZhangsMetric, r.Jaccard, r.Certainty, r.Kulczynski,
		})
	}
}

// cellFloat keeps infinities readable; spreadsheets have no number for them.
func cellFloat(v float64) any {
	switch {
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	case math.IsNaN(v):
		return ""
	}
	return v
}
