// Package report prints a finished run as plain-text console tables.
package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"basket-insights/internal/models"
)

// Write renders res to w, listing at most top rules.
func Write(w io.Writer, res models.RunResult, top int) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	p := &printer{w: tw}

	p.section("Missing values before cleaning")
	p.missing(res.MissingBefore)
	p.section("Missing values after cleaning")
	p.missing(res.MissingAfter)

	s := res.Summary
	p.section("Preprocessing summary")
	p.line("\toriginal\tcleaned")
	p.line("rows\t%s\t%s", humanize.Comma(int64(s.OriginalRows)), humanize.Comma(int64(s.CleanRows)))
	p.line("mean price\t%.4f\t%.4f", s.OriginalMeanPrice, s.CleanMeanPrice)
	p.line("mean quantity\t%.4f\t%.4f", s.OriginalMeanQuantity, s.CleanMeanQuantity)

	p.section("Encoding")
	p.line("one-hot country columns\t%d", len(res.CountryColumns))
	p.line("invoices\t%s", humanize.Comma(int64(res.Invoices)))
	p.line("distinct items\t%s", humanize.Comma(int64(res.Items)))
	p.line("frequent itemsets (min support %g)\t%d", res.Params.MinSupport, len(res.Itemsets))

	p.section(fmt.Sprintf("Top %d rules by lift (%s >= %g)", top, res.Params.Metric, res.Params.MinThreshold))
	if len(res.Rules) == 0 {
		p.line("no rules")
	} else {
		p.line("antecedents\tconsequents\tsupport\tconfidence\tlift")
		for i, r := range res.Rules {
			if i == top {
				break
			}
			p.line("%s\t%s\t%.4f\t%.4f\t%.4f",
				models.JoinItems(r.Antecedents), models.JoinItems(r.Consequents),
				r.Support, r.Confidence, r.Lift)
		}
	}

	if p.err != nil {
		return p.err
	}
	return tw.Flush()
}

// printer keeps the first write error so callers check once.
type printer struct {
	w     io.Writer
	err   error
	wrote bool
}

func (p *printer) line(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format+"\n", args...)
	p.wrote = true
}

func (p *printer) section(title string) {
	if p.wrote {
		p.line("")
	}
	p.line("== %s ==", title)
}

func (p *printer) missing(counts []models.MissingCount) {
	for _, c := range counts {
		p.line("%s\t%d", c.Column, c.Missing)
	}
}
