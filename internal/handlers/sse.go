package handlers

import (
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/starfederation/datastar-go/datastar"

	"basket-insights/internal/models"
	"basket-insights/internal/observability"
	"basket-insights/internal/services"
)

const (
	maxTableRows = 50
	maxRules     = 10
	maxProducts  = 10
	maxCountries = 10
	maxItemsets  = 15
)

var templateFuncs = template.FuncMap{
	"items": models.JoinItems,
	"inc":   func(i int) int { return i + 1 },
}

var rulesTableTemplate = template.Must(template.New("rulesTable").Funcs(templateFuncs).Parse(`
<div id="rules-content">
<table class="modern-table">
<thead><tr><th>#</th><th>Antecedents</th><th>Consequents</th><th>Support</th><th>Confidence</th><th>Lift</th></tr></thead>
<tbody>
{{range $i, $r := .Data}}{{if lt $i $.MaxRows}}<tr>
<td>{{inc $i}}</td>
<td>{{items .Antecedents}}</td>
<td>{{items .Consequents}}</td>
<td>{{printf "%.4f" .Support}}</td>
<td>{{printf "%.4f" .Confidence}}</td>
<td><strong>{{printf "%.3f" .Lift}}</strong></td>
</tr>{{end}}{{else}}<tr><td colspan="6" class="empty">No rules met the thresholds</td></tr>{{end}}
</tbody>
</table>
</div>`))

var summaryTemplate = template.Must(template.New("summary").Parse(`
<div id="summary-content" class="summary-grid">
<div class="stat"><span class="label">Rows read</span><span class="value">{{.OriginalRows}}</span></div>
<div class="stat"><span class="label">Rows after cleaning</span><span class="value">{{.CleanRows}}</span></div>
<div class="stat"><span class="label">Mean price (raw / normalized)</span><span class="value">{{printf "%.3f" .OriginalMeanPrice}} / {{printf "%.3f" .CleanMeanPrice}}</span></div>
<div class="stat"><span class="label">Mean quantity (raw / normalized)</span><span class="value">{{printf "%.3f" .OriginalMeanQuantity}} / {{printf "%.3f" .CleanMeanQuantity}}</span></div>
<div class="stat"><span class="label">Country columns</span><span class="value">{{.CountryColumns}}</span></div>
<div class="stat"><span class="label">Frequent itemsets</span><span class="value">{{.Itemsets}}</span></div>
<div class="stat"><span class="label">Rules</span><span class="value">{{.Rules}}</span></div>
</div>`))

type SSEHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
}

func NewSSEHandlers(analytics *services.Analytics, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		analytics: analytics,
		logger:    logger,
	}
}

type templateData struct {
	Data    any
	MaxRows int
}

func (h *SSEHandlers) renderRulesTable(rules []models.Rule) (string, error) {
	if len(rules) > maxTableRows {
		rules = rules[:maxTableRows]
	}
	var buf strings.Builder
	err := rulesTableTemplate.Execute(&buf, templateData{Data: rules, MaxRows: maxTableRows})
	return buf.String(), err
}

func (h *SSEHandlers) renderSummary() (string, error) {
	var buf strings.Builder
	err := summaryTemplate.Execute(&buf, summaryResponse{
		PreprocessSummary: h.analytics.Summary(),
		CountryColumns:    len(h.analytics.CountryColumns()),
		Itemsets:          len(h.analytics.TopItemsets(-1)),
		Rules:             len(h.analytics.Rules()),
	})
	return buf.String(), err
}

// signals collects every chart series keyed by its dashboard signal name.
func (h *SSEHandlers) signals() map[string]any {
	return map[string]any{
		"missingData": missingResponse{
			Before: h.analytics.MissingValues(),
			After:  h.analytics.CleanMissingValues(),
		},
		"outlierData": outlierResponse{
			Quantity: h.analytics.QuantityBox(),
			Price:    h.analytics.PriceBox(),
		},
		"scatterData":       h.analytics.NormalizedScatter(),
		"ruleScatterData":   h.analytics.RuleScatter(),
		"itemsetsData":      h.analytics.TopItemsets(maxItemsets),
		"productsData":      h.analytics.TopProducts(maxProducts),
		"countriesData":     h.analytics.TopCountries(maxCountries),
		"invoiceTotalsData": h.analytics.InvoiceTotals(),
	}
}

func (h *SSEHandlers) patchSignals(r *http.Request, sse *datastar.ServerSentEventGenerator, signals map[string]any) {
	payload, err := json.Marshal(signals)
	if err != nil {
		h.logError(r, "marshal signals", err)
		return
	}
	if err := sse.PatchSignals(payload); err != nil {
		h.logError(r, "patch signals", err)
	}
}

func (h *SSEHandlers) patchElements(r *http.Request, sse *datastar.ServerSentEventGenerator, render func() (string, error)) {
	html, err := render()
	if err != nil {
		h.logError(r, "render fragment", err)
		return
	}
	if err := sse.PatchElements(html); err != nil {
		h.logError(r, "patch elements", err)
	}
}

func (h *SSEHandlers) logError(r *http.Request, msg string, err error) {
	observability.LoggerFrom(r.Context(), h.logger).Error(msg, "error", err, "path", r.URL.Path)
}

// signalHandler streams one chart series and a loaded marker into target.
func (h *SSEHandlers) signalHandler(key, target, label string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sse := datastar.NewSSE(w, r)
		h.patchSignals(r, sse, map[string]any{key: h.signals()[key]})
		h.patchElements(r, sse, func() (string, error) {
			return fmt.Sprintf(`<div id="%s">%s chart data loaded</div>`, target, template.HTMLEscapeString(label)), nil
		})
	}
}

func (h *SSEHandlers) HandleRules(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)
	h.patchElements(r, sse, func() (string, error) {
		return h.renderRulesTable(h.analytics.TopRules(maxRules))
	})
}

func (h *SSEHandlers) HandleSummary(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)
	h.patchElements(r, sse, h.renderSummary)
}

func (h *SSEHandlers) HandleMissingValues(w http.ResponseWriter, r *http.Request) {
	h.signalHandler("missingData", "missing-content", "Missing values")(w, r)
}

func (h *SSEHandlers) HandleOutliers(w http.ResponseWriter, r *http.Request) {
	h.signalHandler("outlierData", "outliers-content", "Outlier")(w, r)
}

func (h *SSEHandlers) HandleNormalizedScatter(w http.ResponseWriter, r *http.Request) {
	h.signalHandler("scatterData", "scatter-content", "Normalized scatter")(w, r)
}

func (h *SSEHandlers) HandleRuleScatter(w http.ResponseWriter, r *http.Request) {
	h.signalHandler("ruleScatterData", "rule-scatter-content", "Rule scatter")(w, r)
}

func (h *SSEHandlers) HandleItemsets(w http.ResponseWriter, r *http.Request) {
	h.signalHandler("itemsetsData", "itemsets-content", "Itemsets")(w, r)
}

func (h *SSEHandlers) HandleTopProducts(w http.ResponseWriter, r *http.Request) {
	h.signalHandler("productsData", "products-content", "Products")(w, r)
}

func (h *SSEHandlers) HandleTopCountries(w http.ResponseWriter, r *http.Request) {
	h.signalHandler("countriesData", "countries-content", "Countries")(w, r)
}

func (h *SSEHandlers) HandleInvoiceTotals(w http.ResponseWriter, r *http.Request) {
	h.signalHandler("invoiceTotalsData", "invoice-totals-content", "Invoice totals")(w, r)
}

// HandleRefreshAll re-sends the rules table, the summary and every series.
func (h *SSEHandlers) HandleRefreshAll(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)
	h.patchElements(r, sse, func() (string, error) {
		return h.renderRulesTable(h.analytics.TopRules(maxRules))
	})
	h.patchElements(r, sse, h.renderSummary)
	h.patchSignals(r, sse, h.signals())
}
