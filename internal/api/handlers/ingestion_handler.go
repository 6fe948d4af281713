package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/cryptofundraises/tracker/internal/adapters/sources"
	"github.com/cryptofundraises/tracker/internal/application/services"
	"github.com/cryptofundraises/tracker/internal/domain/entities"
	"github.com/cryptofundraises/tracker/internal/domain/providers"
	"github.com/rs/zerolog/log"
)

const (
	idempotencyKeyPrefix = "fundraise_ingest_idem:"
	maxCSVUploadBytes    = 10 << 20
)

// Pipeline is the part of the fundraise pipeline the ingestion endpoints drive
type Pipeline interface {
	RunSource(ctx context.Context, source providers.AnnouncementSource) (*services.IngestionSummary, error)
	IngestBatch(ctx context.Context, source string, items []entities.RawAnnouncement) (*services.IngestionSummary, error)
	EnrichPending(ctx context.Context) (*services.EnrichmentSummary, error)
}

// SourceFactory resolves a source name to a configured feed
type SourceFactory func(name string) (providers.AnnouncementSource, error)

// IngestionHandler triggers ingestion and enrichment runs.
type IngestionHandler struct {
	pipeline       Pipeline
	sources        SourceFactory
	cache          providers.CacheProvider
	idempotencyTTL time.Duration
}

// NewIngestionHandler creates a new ingestion handler. cache may be nil,
// which disables Idempotency-Key handling.
func NewIngestionHandler(
	pipeline Pipeline,
	sources SourceFactory,
	cache providers.CacheProvider,
	idempotencyTTL time.Duration,
) *IngestionHandler {
	if idempotencyTTL <= 0 {
		idempotencyTTL = 24 * time.Hour
	}
	return &IngestionHandler{
		pipeline:       pipeline,
		sources:        sources,
		cache:          cache,
		idempotencyTTL: idempotencyTTL,
	}
}

// TriggerIngestion handles POST /api/ingest/{source}
func (h *IngestionHandler) TriggerIngestion(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.PathValue("source"))
	source, err := h.sources(name)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	scope := "ingest:" + name
	duplicate, key := h.isDuplicate(r.Context(), r, scope)
	if duplicate {
		respondWithJSON(w, http.StatusOK, map[string]string{
			"status":          "duplicate",
			"idempotency_key": key,
		})
		return
	}

	summary, err := h.pipeline.RunSource(r.Context(), source)
	if err != nil {
		h.releaseKey(r.Context(), scope, key)
		respondWithBatchFailure(w, err, summary)
		return
	}

	respondWithJSON(w, http.StatusOK, summary)
}

// TriggerEnrichment handles POST /api/enrich
func (h *IngestionHandler) TriggerEnrichment(w http.ResponseWriter, r *http.Request) {
	duplicate, key := h.isDuplicate(r.Context(), r, "enrich")
	if duplicate {
		respondWithJSON(w, http.StatusOK, map[string]string{
			"status":          "duplicate",
			"idempotency_key": key,
		})
		return
	}

	summary, err := h.pipeline.EnrichPending(r.Context())
	if err != nil {
		h.releaseKey(r.Context(), "enrich", key)
		respondWithBatchFailure(w, err, summary)
		return
	}

	respondWithJSON(w, http.StatusOK, summary)
}

// ImportCSV handles POST /api/import/csv with the CSV export as the body
func (h *IngestionHandler) ImportCSV(w http.ResponseWriter, r *http.Request) {
	duplicate, key := h.isDuplicate(r.Context(), r, "import:csv")
	if duplicate {
		respondWithJSON(w, http.StatusOK, map[string]string{
			"status":          "duplicate",
			"idempotency_key": key,
		})
		return
	}

	items, err := sources.ParseCSV(http.MaxBytesReader(w, r.Body, maxCSVUploadBytes))
	if err == nil && len(items) == 0 {
		err = errors.New("csv contains no rows")
	}
	if err != nil {
		h.releaseKey(r.Context(), "import:csv", key)
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := h.pipeline.IngestBatch(r.Context(), entities.SourceCSV, items)
	if err != nil {
		h.releaseKey(r.Context(), "import:csv", key)
		respondWithBatchFailure(w, err, summary)
		return
	}

	respondWithJSON(w, http.StatusOK, summary)
}

// respondWithBatchFailure reports an aborted batch as retryable, with the
// partial summary when there is one.
func respondWithBatchFailure(w http.ResponseWriter, err error, summary interface{}) {
	log.Error().Err(err).Msg("batch failed")
	respondWithJSON(w, http.StatusBadGateway, map[string]interface{}{
		"error":     "batch failed, retry later: " + err.Error(),
		"retryable": true,
		"partial":   summary,
	})
}

// releaseKey frees a claimed idempotency key so a failed request can be
// retried with the same key.
func (h *IngestionHandler) releaseKey(ctx context.Context, scope, key string) {
	if key == "" || h.cache == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if err := h.cache.Delete(ctx, idempotencyCacheKey(scope, key)); err != nil {
		log.Warn().Err(err).Str("idempotency_key", key).Msg("failed to release idempotency key")
	}
}

func idempotencyCacheKey(scope, key string) string {
	return idempotencyKeyPrefix + scope + ":" + key
}

func (h *IngestionHandler) isDuplicate(ctx context.Context, r *http.Request, scope string) (bool, string) {
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key == "" {
		key = strings.TrimSpace(r.Header.Get("X-Idempotency-Key"))
	}
	if key == "" || h.cache == nil {
		return false, key
	}

	stamp := []byte(time.Now().UTC().Format(time.RFC3339Nano))
	ok, err := h.cache.SetNX(ctx, idempotencyCacheKey(scope, key), stamp, h.idempotencyTTL)
	if err != nil {
		log.Warn().Err(err).Str("idempotency_key", key).Msg("idempotency check failed")
		return false, key
	}
	return !ok, key
}
