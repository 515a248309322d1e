package server

import (
	"log/slog"
	"net/http"

	"basket-insights/internal/config"
	"basket-insights/internal/handlers"
	"basket-insights/internal/metrics"
	"basket-insights/internal/middleware"
	"basket-insights/internal/services"
)

type Server struct {
	analytics   *services.Analytics
	mux         *http.ServeMux
	logger      *slog.Logger
	metrics     *metrics.Metrics
	apiHandlers *handlers.APIHandlers
	sseHandlers *handlers.SSEHandlers
}

type TemplateHandlers struct {
	Dashboard http.HandlerFunc
}

// NewServer registers every route. m may be nil, in which case /metrics is
// not served.
func NewServer(analytics *services.Analytics, logger *slog.Logger, templateHandlers *TemplateHandlers, m *metrics.Metrics) *Server {
	s := &Server{
		analytics:   analytics,
		mux:         http.NewServeMux(),
		logger:      logger,
		metrics:     m,
		apiHandlers: handlers.NewAPIHandlers(analytics, logger),
		sseHandlers: handlers.NewSSEHandlers(analytics, logger),
	}
	s.setupRoutes(templateHandlers)
	return s
}

func (s *Server) setupRoutes(templateHandlers *TemplateHandlers) {
	// Dashboard and operations
	s.mux.HandleFunc("GET /{$}", templateHandlers.Dashboard)
	s.mux.HandleFunc("GET /health", s.apiHandlers.HandleHealth)
	s.mux.HandleFunc("GET /admin/stats", s.apiHandlers.HandleStats)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}

	// REST API endpoints
	s.mux.HandleFunc("GET /api/missing-values", s.apiHandlers.HandleMissingValues)
	s.mux.HandleFunc("GET /api/outliers", s.apiHandlers.HandleOutliers)
	s.mux.HandleFunc("GET /api/normalized-scatter", s.apiHandlers.HandleNormalizedScatter)
	s.mux.HandleFunc("GET /api/summary", s.apiHandlers.HandleSummary)
	s.mux.HandleFunc("GET /api/country-encoding", s.apiHandlers.HandleCountryEncoding)
	s.mux.HandleFunc("GET /api/rules", s.apiHandlers.HandleRules)
	s.mux.HandleFunc("GET /api/rule-scatter", s.apiHandlers.HandleRuleScatter)
	s.mux.HandleFunc("GET /api/itemsets", s.apiHandlers.HandleItemsets)
	s.mux.HandleFunc("GET /api/top-products", s.apiHandlers.HandleTopProducts)
	s.mux.HandleFunc("GET /api/top-countries", s.apiHandlers.HandleTopCountries)
	s.mux.HandleFunc("GET /api/invoice-totals", s.apiHandlers.HandleInvoiceTotals)

	// Datastar SSE endpoints
	s.mux.HandleFunc("GET /sse/rules", s.sseHandlers.HandleRules)
	s.mux.HandleFunc("GET /sse/summary", s.sseHandlers.HandleSummary)
	s.mux.HandleFunc("GET /sse/missing-values", s.sseHandlers.HandleMissingValues)
	s.mux.HandleFunc("GET /sse/outliers", s.sseHandlers.HandleOutliers)
	s.mux.HandleFunc("GET /sse/normalized-scatter", s.sseHandlers.HandleNormalizedScatter)
	s.mux.HandleFunc("GET /sse/rule-scatter", s.sseHandlers.HandleRuleScatter)
	s.mux.HandleFunc("GET /sse/itemsets", s.sseHandlers.HandleItemsets)
	s.mux.HandleFunc("GET /sse/top-products", s.sseHandlers.HandleTopProducts)
	s.mux.HandleFunc("GET /sse/top-countries", s.sseHandlers.HandleTopCountries)
	s.mux.HandleFunc("GET /sse/invoice-totals", s.sseHandlers.HandleInvoiceTotals)
	s.mux.HandleFunc("GET /sse/refresh-all", s.sseHandlers.HandleRefreshAll)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Handler wraps the routes in the full middleware stack, outermost first.
func (s *Server) Handler(cfg config.SecurityConfig, limiter *middleware.RateLimiter) http.Handler {
	return middleware.Chain(
		middleware.Recovery(s.logger),
		middleware.RequestID(),
		middleware.Metrics(s.metrics),
		middleware.Logger(s.logger),
		middleware.Tracing(),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg),
		middleware.TrustedProxy(cfg),
		middleware.RateLimit(limiter, s.logger),
	)(s)
}
