package routes

import (
	"net/http"

	"github.com/cryptofundraises/tracker/internal/api/handlers"
	"github.com/cryptofundraises/tracker/internal/api/middleware"
	"github.com/cryptofundraises/tracker/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	fundraiseHandler *handlers.FundraiseHandler
	ingestionHandler *handlers.IngestionHandler
	streamHandler    *handlers.StreamHandler

	metricsHandler http.Handler
	metrics        *observability.Metrics
	allowedOrigins []string
}

// NewRouter creates a new router. The ingestion and stream handlers and
// metricsHandler may be nil; their routes are then not registered.
func NewRouter(
	fundraiseHandler *handlers.FundraiseHandler,
	ingestionHandler *handlers.IngestionHandler,
	streamHandler *handlers.StreamHandler,
	metricsHandler http.Handler,
	metrics *observability.Metrics,
	allowedOrigins []string,
) *Router {
	return &Router{
		mux:              http.NewServeMux(),
		fundraiseHandler: fundraiseHandler,
		ingestionHandler: ingestionHandler,
		streamHandler:    streamHandler,
		metricsHandler:   metricsHandler,
		metrics:          metrics,
		allowedOrigins:   allowedOrigins,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	if r.metricsHandler != nil {
		r.mux.Handle("GET /metrics", r.metricsHandler)
	}

	// Read side
	listCache := middleware.ReadOptimization(60)
	detailCache := middleware.ReadOptimization(300)
	r.mux.Handle("GET /api/fundraises", listCache(http.HandlerFunc(r.fundraiseHandler.ListFundraises)))
	r.mux.Handle("GET /api/fundraises/ticker", listCache(http.HandlerFunc(r.fundraiseHandler.GetTicker)))
	r.mux.Handle("GET /api/fundraises/export", middleware.Compression(http.HandlerFunc(r.fundraiseHandler.ExportFundraises)))
	r.mux.Handle("GET /api/fundraises/{slug}", detailCache(http.HandlerFunc(r.fundraiseHandler.GetFundraise)))

	if r.streamHandler != nil {
		r.mux.HandleFunc("GET /api/stream/fundraises", r.streamHandler.StreamFundraises)
	}

	// Pipeline triggers
	if r.ingestionHandler != nil {
		r.mux.HandleFunc("POST /api/ingest/{source}", r.ingestionHandler.TriggerIngestion)
		r.mux.HandleFunc("POST /api/enrich", r.ingestionHandler.TriggerEnrichment)
		r.mux.HandleFunc("POST /api/import/csv", r.ingestionHandler.ImportCSV)
	}

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	// CORS wraps everything so preflight requests never reach the handlers
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}
