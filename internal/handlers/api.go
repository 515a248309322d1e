package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"basket-insights/internal/errors"
	"basket-insights/internal/models"
	"basket-insights/internal/services"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

var cacheHeaders = map[string]string{
	"Cache-Control": "public, max-age=300",
}

type APIHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
	version   string
}

func NewAPIHandlers(analytics *services.Analytics, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		analytics: analytics,
		logger:    logger,
		version:   "1.0.0",
	}
}

// parseLimit reads the optional limit query parameter.
func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > maxLimit {
		return 0, errors.BadRequest("limit must be an integer between 1 and 100").WithDetails("got %q", raw)
	}
	return n, nil
}

// limited serves the first limit items of a ranked series.
func limited[T any](h *APIHandlers, query func(int) []T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := parseLimit(r)
		if err != nil {
			errors.WriteError(w, r, h.logger, err)
			return
		}
		errors.WriteSuccessWithHeaders(w, query(limit), cacheHeaders)
	}
}

type missingResponse struct {
	Before []models.MissingCount `json:"before"`
	After  []models.MissingCount `json:"after"`
}

func (h *APIHandlers) HandleMissingValues(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccessWithHeaders(w, missingResponse{
		Before: h.analytics.MissingValues(),
		After:  h.analytics.CleanMissingValues(),
	}, cacheHeaders)
}

type outlierResponse struct {
	Quantity models.BoxStats `json:"quantity"`
	Price    models.BoxStats `json:"price"`
}

func (h *APIHandlers) HandleOutliers(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccessWithHeaders(w, outlierResponse{
		Quantity: h.analytics.QuantityBox(),
		Price:    h.analytics.PriceBox(),
	}, cacheHeaders)
}

func (h *APIHandlers) HandleNormalizedScatter(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccessWithHeaders(w, h.analytics.NormalizedScatter(), cacheHeaders)
}

type summaryResponse struct {
	models.PreprocessSummary
	CountryColumns int `json:"country_columns"`
	Itemsets       int `json:"itemsets"`
	Rules          int `json:"rules"`
}

func (h *APIHandlers) HandleSummary(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccessWithHeaders(w, summaryResponse{
		PreprocessSummary: h.analytics.Summary(),
		CountryColumns:    len(h.analytics.CountryColumns()),
		Itemsets:          len(h.analytics.TopItemsets(-1)),
		Rules:             len(h.analytics.Rules()),
	}, cacheHeaders)
}

func (h *APIHandlers) HandleRules(w http.ResponseWriter, r *http.Request) {
	limited(h, h.analytics.TopRules)(w, r)
}

func (h *APIHandlers) HandleRuleScatter(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccessWithHeaders(w, h.analytics.RuleScatter(), cacheHeaders)
}

func (h *APIHandlers) HandleItemsets(w http.ResponseWriter, r *http.Request) {
	limited(h, h.analytics.TopItemsets)(w, r)
}

func (h *APIHandlers) HandleTopProducts(w http.ResponseWriter, r *http.Request) {
	limited(h, h.analytics.TopProducts)(w, r)
}

func (h *APIHandlers) HandleTopCountries(w http.ResponseWriter, r *http.Request) {
	limited(h, h.analytics.TopCountries)(w, r)
}

func (h *APIHandlers) HandleInvoiceTotals(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccessWithHeaders(w, h.analytics.InvoiceTotals(), cacheHeaders)
}

func (h *APIHandlers) HandleCountryEncoding(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccessWithHeaders(w, h.analytics.CountryColumns(), cacheHeaders)
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   h.version,
	})
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, h.analytics.Stats())
}
