package templates

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboard(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Dashboard().Render(context.Background(), &buf))

	html := buf.String()
	assert.Contains(t, html, "<title>Market Basket Insights</title>")
	assert.Contains(t, html, "datastar")
	for _, p := range Panels {
		assert.Contains(t, html, `id="`+p.ID+`"`)
		assert.Contains(t, html, "@get('"+p.Endpoint+"')")
	}
	assert.Contains(t, html, "/sse/refresh-all")
}

func TestDashboard_ChartBindings(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Dashboard().Render(context.Background(), &buf))
	html := buf.String()

	assert.Contains(t, html, "window.basketCharts")
	assert.Contains(t, html, "new Chart(canvas, config)")

	charts := 0
	for _, p := range Panels {
		if p.Signal == "" {
			assert.Empty(t, p.Chart, p.ID)
			continue
		}
		charts++
		t.Run(p.Signal, func(t *testing.T) {
			require.NotEmpty(t, p.Chart, "every signal needs a chart")
			assert.Contains(t, chartScript, "    "+p.Chart+": function (d)", "no builder for %q", p.Chart)
			assert.Contains(t, html, `<canvas id="`+p.ID+`-chart" data-effect="`)
			assert.Contains(t, html, "window.basketCharts.draw('"+p.Chart+"', el, $"+p.Signal+")")
		})
	}
	assert.Equal(t, charts, strings.Count(html, "data-effect="))
	assert.Equal(t, charts, strings.Count(html, "<canvas"))
}

func TestPanels_Unique(t *testing.T) {
	ids := make(map[string]bool)
	signals := make(map[string]bool)
	for _, p := range Panels {
		assert.False(t, ids[p.ID], "duplicate panel id %q", p.ID)
		ids[p.ID] = true
		if p.Signal != "" {
			assert.False(t, signals[p.Signal], "duplicate signal %q", p.Signal)
			signals[p.Signal] = true
		}
	}
	assert.True(t, signals["itemsetsData"])
}

func TestDashboard_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	assert.ErrorIs(t, Dashboard().Render(ctx, &buf), context.Canceled)
}

func TestInitialSignals(t *testing.T) {
	got := initialSignals()
	assert.Equal(t, "{missingData:null,outlierData:null,scatterData:null,ruleScatterData:null,itemsetsData:null,productsData:null,countriesData:null,invoiceTotalsData:null}", got)
}
