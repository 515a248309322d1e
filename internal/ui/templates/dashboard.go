// Package templates renders the dashboard shell. Every panel starts empty and
// is filled by the /sse endpoints once the page loads.
package templates

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
)

const (
	pageTitle   = "Market Basket Insights"
	datastarCDN = "https://cdn.jsdelivr.net/gh/starfederation/datastar@v1.0.0-RC.5/bundles/datastar.js"
	chartCDN    = "https://cdn.jsdelivr.net/npm/chart.js@4.4.4/dist/chart.umd.min.js"
)

// Panel is one dashboard section bound to an SSE endpoint. Panels with a
// Signal draw it into a canvas using the Chart builder of the same name.
type Panel struct {
	ID       string
	Title    string
	Endpoint string
	Signal   string
	Chart    string
}

// Panels lists the dashboard sections in display order.
var Panels = []Panel{
	{ID: "summary-content", Title: "Preprocessing Summary", Endpoint: "/sse/summary"},
	{ID: "rules-content", Title: "Top Association Rules", Endpoint: "/sse/rules"},
	{ID: "missing-content", Title: "Missing Values", Endpoint: "/sse/missing-values", Signal: "missingData", Chart: "missing"},
	{ID: "outliers-content", Title: "Quantity and Price Outliers", Endpoint: "/sse/outliers", Signal: "outlierData", Chart: "box"},
	{ID: "scatter-content", Title: "Normalized Quantity vs Price", Endpoint: "/sse/normalized-scatter", Signal: "scatterData", Chart: "scatter"},
	{ID: "rule-scatter-content", Title: "Rule Support vs Confidence", Endpoint: "/sse/rule-scatter", Signal: "ruleScatterData", Chart: "rules"},
	{ID: "itemsets-content", Title: "Top Frequent Itemsets", Endpoint: "/sse/itemsets", Signal: "itemsetsData", Chart: "itemsets"},
	{ID: "products-content", Title: "Top Products", Endpoint: "/sse/top-products", Signal: "productsData", Chart: "products"},
	{ID: "countries-content", Title: "Top Countries", Endpoint: "/sse/top-countries", Signal: "countriesData", Chart: "countries"},
	{ID: "invoice-totals-content", Title: "Invoice Totals", Endpoint: "/sse/invoice-totals", Signal: "invoiceTotalsData", Chart: "histogram"},
}

// chartScript holds one Chart.js config builder per Panel.Chart. draw is
// called from each canvas's data-effect, so it reruns on every signal patch.
const chartScript = `<script>
window.basketCharts = (function () {
  const charts = new Map();
  const palette = ["#3e7cb1", "#f0a202", "#d7263d", "#2e933c", "#7f5a83"];
  const axis = function (text) { return {title: {display: true, text: text}}; };
  const bar = function (labels, datasets, options) {
    return {type: "bar", data: {labels: labels, datasets: datasets}, options: options || {}};
  };
  const builders = {
    missing: function (d) {
      return bar(d.before.map(function (m) { return m.column; }), [
        {label: "Before cleaning", data: d.before.map(function (m) { return m.missing; }), backgroundColor: palette[2]},
        {label: "After cleaning", data: d.after.map(function (m) { return m.missing; }), backgroundColor: palette[3]}
      ]);
    },
    box: function (d) {
      const stats = [d.quantity, d.price];
      return bar(stats.map(function (s) { return s.column + " (" + s.outliers + " outliers)"; }), [
        {label: "Whiskers", data: stats.map(function (s) { return [s.lower_whisker, s.upper_whisker]; }), backgroundColor: "#cbd2d9", barPercentage: 0.1, grouped: false},
        {label: "Q1 to Q3", data: stats.map(function (s) { return [s.q1, s.q3]; }), backgroundColor: palette[0], barPercentage: 0.5, grouped: false},
        {label: "Median", type: "line", data: stats.map(function (s) { return s.median; }), showLine: false, pointStyle: "line", pointRadius: 30, borderWidth: 3, borderColor: "#1f2933"}
      ]);
    },
    scatter: function (d) {
      return {type: "scatter", data: {datasets: [{label: "Rows", data: d, pointRadius: 2, backgroundColor: palette[0]}]},
        options: {scales: {x: axis("Quantity (normalized)"), y: axis("Price (normalized)")}}};
    },
    rules: function (d) {
      const points = d.map(function (p) { return {x: p.support, y: p.confidence, r: 3 + 2 * p.lift}; });
      return {type: "bubble", data: {datasets: [{label: "Rules (size = lift)", data: points, backgroundColor: "rgba(215,38,61,0.5)"}]},
        options: {scales: {x: axis("Support"), y: axis("Confidence")}}};
    },
    itemsets: function (d) {
      return bar(d.map(function (i) { return "{" + i.items.join(", ") + "}"; }), [
        {label: "Support", data: d.map(function (i) { return i.support; }), backgroundColor: palette[4]}
      ], {indexAxis: "y"});
    },
    products: function (d) {
      return bar(d.map(function (v) { return v.value; }), [
        {label: "Rows", data: d.map(function (v) { return v.count; }), backgroundColor: palette[1]}
      ], {indexAxis: "y"});
    },
    countries: function (d) {
      return bar(d.map(function (v) { return v.value; }), [
        {label: "Rows", data: d.map(function (v) { return v.count; }), backgroundColor: palette[3]}
      ]);
    },
    histogram: function (d) {
      return bar(d.map(function (b) { return b.lower.toFixed(1) + " to " + b.upper.toFixed(1); }), [
        {label: "Invoices", data: d.map(function (b) { return b.count; }), backgroundColor: palette[0], barPercentage: 1, categoryPercentage: 1}
      ], {scales: {x: axis("Invoice total"), y: axis("Invoices")}});
    }
  };
  return {
    draw: function (kind, canvas, data) {
      if (!data || !window.Chart || !builders[kind]) {
        return;
      }
      const config = builders[kind](data);
      config.options = Object.assign({responsive: true, maintainAspectRatio: false, animation: false}, config.options);
      const previous = charts.get(canvas.id);
      if (previous) {
        previous.destroy();
      }
      charts.set(canvas.id, new Chart(canvas, config));
    }
  };
})();
</script>
`

const head = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>` + pageTitle + `</title>
<script type="module" src="` + datastarCDN + `"></script>
<script src="` + chartCDN + `"></script>
` + chartScript + `<style>
body{font-family:system-ui,sans-serif;margin:0;background:#f5f6f8;color:#1f2933}
header{padding:1.5rem 2rem;background:#1f2933;color:#fff}
header p{margin:.25rem 0 0;color:#cbd2d9}
main{display:grid;grid-template-columns:repeat(auto-fit,minmax(420px,1fr));gap:1rem;padding:1rem 2rem}
section{background:#fff;border-radius:8px;padding:1rem;box-shadow:0 1px 3px rgba(0,0,0,.08)}
section.wide{grid-column:1/-1}
.modern-table{width:100%;border-collapse:collapse;font-size:.9rem}
.modern-table th,.modern-table td{padding:.4rem .6rem;border-bottom:1px solid #e4e7eb;text-align:left}
.summary-grid{display:grid;grid-template-columns:repeat(auto-fit,minmax(160px,1fr));gap:.75rem}
.stat .label{display:block;font-size:.8rem;color:#616e7c}
.stat .value{font-size:1.2rem;font-weight:600}
.empty{color:#9aa5b1;text-align:center}
.chart{position:relative;height:320px}
.status{font-size:.8rem;color:#616e7c}
</style>
</head>
`

// Dashboard renders the full page.
func Dashboard() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, head); err != nil {
			return err
		}
		if _, err := io.WriteString(w, `<body data-signals="`+templ.EscapeString(initialSignals())+`">
<header><h1>`+pageTitle+`</h1><p>Retail transaction cleaning and Apriori association rules</p></header>
<main>
`); err != nil {
			return err
		}
		for _, p := range Panels {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := renderPanel(w, p); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</main>
<footer><button data-on-click="@get('/sse/refresh-all')">Refresh all</button></footer>
</body>
</html>
`)
		return err
	})
}

func renderPanel(w io.Writer, p Panel) error {
	if p.Signal == "" {
		_, err := io.WriteString(w, `<section class="wide">
<h2>`+templ.EscapeString(p.Title)+`</h2>
<div id="`+templ.EscapeString(p.ID)+`" data-on-load="@get('`+templ.EscapeString(p.Endpoint)+`')">Loading...</div>
</section>
`)
		return err
	}

	_, err := io.WriteString(w, `<section>
<h2>`+templ.EscapeString(p.Title)+`</h2>
<div class="chart"><canvas id="`+templ.EscapeString(p.ID)+`-chart" data-effect="`+chartEffect(p)+`"></canvas></div>
<div id="`+templ.EscapeString(p.ID)+`" class="status" data-on-load="@get('`+templ.EscapeString(p.Endpoint)+`')">Loading...</div>
</section>
`)
	return err
}

// chartEffect redraws the panel's chart whenever its signal changes.
func chartEffect(p Panel) string {
	return "window.basketCharts.draw('" + templ.EscapeString(p.Chart) + "', el, $" + templ.EscapeString(p.Signal) + ")"
}

// initialSignals declares every chart signal so datastar can merge patches.
func initialSignals() string {
	var fields []string
	for _, p := range Panels {
		if p.Signal != "" {
			fields = append(fields, p.Signal+":null")
		}
	}
	return "{" + strings.Join(fields, ",") + "}"
}
