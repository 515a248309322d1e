package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"basket-insights/internal/config"
	"basket-insights/internal/metrics"
	"basket-insights/internal/middleware"
	"basket-insights/internal/models"
	"basket-insights/internal/server"
	"basket-insights/internal/services"
)

// Test helper to create analytics with a handful of grocery invoices
func newTestAnalytics(m *metrics.Metrics) *services.Analytics {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts := services.DefaultOptions()
	opts.MinSupport = 0.4
	opts.CacheDir = ""

	a := services.NewAnalytics(services.WithOptions(opts), services.WithLogger(logger), services.WithMetrics(m))

	baskets := [][]string{
		{"BREAD", "MILK"},
		{"BREAD", "DIAPER", "BEER", "EGGS"},
		{"MILK", "DIAPER", "BEER", "COLA"},
		{"BREAD", "MILK", "DIAPER", "BEER"},
		{"BREAD", "MILK", "DIAPER", "COLA"},
	}
	var rows []models.Transaction
	for i, items := range baskets {
		for _, item := range items {
			rows = append(rows, models.Transaction{
				Invoice:     string(rune('A' + i)),
				Description: item,
				Quantity:    2,
				Price:       float64(i + 1),
				Country:     "United Kingdom",
			})
		}
	}
	if err := a.SetData(rows); err != nil {
		panic(err)
	}
	return a
}

func newTestServer() (*server.Server, *metrics.Metrics) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New()
	templateHandlers := &server.TemplateHandlers{Dashboard: handleDashboard}
	return server.NewServer(newTestAnalytics(m), logger, templateHandlers, m), m
}

// Integration tests for HTTP routes
func TestServer_Routes(t *testing.T) {
	srv, _ := newTestServer()

	tests := []struct {
		path           string
		expectedStatus int
		contentType    string
	}{
		{"/", http.StatusOK, "text/html"},
		{"/api/missing-values", http.StatusOK, "application/json"},
		{"/api/outliers", http.StatusOK, "application/json"},
		{"/api/normalized-scatter", http.StatusOK, "application/json"},
		{"/api/summary", http.StatusOK, "application/json"},
		{"/api/country-encoding", http.StatusOK, "application/json"},
		{"/api/rules", http.StatusOK, "application/json"},
		{"/api/rule-scatter", http.StatusOK, "application/json"},
		{"/api/itemsets", http.StatusOK, "application/json"},
		{"/api/top-products", http.StatusOK, "application/json"},
		{"/api/top-countries", http.StatusOK, "application/json"},
		{"/api/invoice-totals", http.StatusOK, "application/json"},
		{"/health", http.StatusOK, "application/json"},
		{"/admin/stats", http.StatusOK, "application/json"},
		{"/metrics", http.StatusOK, "text/plain"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest("GET", tt.path, nil)

			srv.ServeHTTP(w, r)

			if w.Code != tt.expectedStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.expectedStatus)
			}

			ct := w.Header().Get("Content-Type")
			if !strings.Contains(ct, tt.contentType) {
				t.Errorf("content-type = %q, want %q", ct, tt.contentType)
			}

			if tt.contentType == "application/json" {
				var result any
				if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
					t.Errorf("invalid json: %v", err)
				}
			}
		})
	}
}

func TestServer_UnknownPath(t *testing.T) {
	srv, _ := newTestServer()

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest("GET", "/no-such-page", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// Test JSON API responses
func TestServer_JSONResponse(t *testing.T) {
	srv, _ := newTestServer()

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest("GET", "/api/rules?limit=5", nil))

	var response map[string]any
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}

	if success, ok := response["success"].(bool); !ok || !success {
		t.Error("expected success=true in response")
	}

	data, ok := response["data"].([]any)
	if !ok {
		t.Fatalf("expected data array in response")
	}
	if len(data) == 0 || len(data) > 5 {
		t.Fatalf("expected 1..5 rules, got %d", len(data))
	}

	rule, ok := data[0].(map[string]any)
	if !ok {
		t.Fatal("invalid rule structure")
	}
	for _, field := range []string{"antecedents", "consequents", "support", "confidence", "lift"} {
		if _, ok := rule[field]; !ok {
			t.Errorf("rule should have %q field", field)
		}
	}
}

// Test Server-Sent Events routes
func TestServer_SSERoutes(t *testing.T) {
	srv, _ := newTestServer()

	sseRoutes := []string{
		"/sse/rules",
		"/sse/summary",
		"/sse/missing-values",
		"/sse/outliers",
		"/sse/normalized-scatter",
		"/sse/rule-scatter",
		"/sse/itemsets",
		"/sse/top-products",
		"/sse/top-countries",
		"/sse/invoice-totals",
		"/sse/refresh-all",
	}

	for _, route := range sseRoutes {
		t.Run(route, func(t *testing.T) {
			w := httptest.NewRecorder()
			srv.ServeHTTP(w, httptest.NewRequest("GET", route, nil))

			if w.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
			}
			if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
				t.Errorf("content-type = %q, should contain 'text/event-stream'", ct)
			}
			if cc := w.Header().Get("Cache-Control"); cc != "no-cache" {
				t.Errorf("cache-control = %q, want 'no-cache'", cc)
			}
		})
	}
}

// Test error handling for invalid methods and parameters
func TestServer_ErrorHandling(t *testing.T) {
	srv, _ := newTestServer()

	tests := []struct {
		method string
		path   string
		status int
	}{
		{"POST", "/api/rules", http.StatusMethodNotAllowed},
		{"PUT", "/", http.StatusMethodNotAllowed},
		{"DELETE", "/health", http.StatusMethodNotAllowed},
		{"PATCH", "/api/top-products", http.StatusMethodNotAllowed},
		{"POST", "/sse/refresh-all", http.StatusMethodNotAllowed},
		{"GET", "/api/rules?limit=0", http.StatusBadRequest},
		{"GET", "/api/itemsets?limit=abc", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			srv.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
		})
	}
}

// Test the full middleware stack in front of the routes
func TestServer_Handler(t *testing.T) {
	srv, m := newTestServer()
	cfg := config.Default().Security
	handler := srv.Handler(cfg, middleware.NewRateLimiter(cfg))

	r := httptest.NewRequest("GET", "/api/summary", nil)
	r.Header.Set("Origin", "http://localhost:8084")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("response should carry a request id")
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers should be set")
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "http://localhost:8084" {
		t.Error("allowed origin should be echoed")
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(w.Body.String(), "basket_http_requests_total") {
		t.Error("metrics should count the previous request")
	}
	if m.Registry() == nil {
		t.Error("metrics registry should be available")
	}
}

// Test dashboard template rendering
func TestDashboardTemplate(t *testing.T) {
	w := httptest.NewRecorder()
	handleDashboard(w, httptest.NewRequest("GET", "/", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if cc := w.Header().Get("Cache-Control"); cc != cacheMaxAge {
		t.Errorf("cache-control = %q, want %q", cc, cacheMaxAge)
	}

	body := w.Body.String()
	if !strings.Contains(body, "Market Basket Insights") {
		t.Error("dashboard should contain title")
	}
	if !strings.Contains(body, "Apriori association rules") {
		t.Error("dashboard should contain subtitle")
	}

	expectedComponents := []string{
		"Preprocessing Summary",
		"Top Association Rules",
		"Missing Values",
		"Quantity and Price Outliers",
		"Normalized Quantity vs Price",
		"Rule Support vs Confidence",
		"Top Frequent Itemsets",
		"Top Products",
		"Top Countries",
		"Invoice Totals",
	}
	for _, component := range expectedComponents {
		if !strings.Contains(body, component) {
			t.Errorf("dashboard should contain '%s'", component)
		}
	}
}
