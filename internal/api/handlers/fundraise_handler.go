package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cryptofundraises/tracker/internal/adapters/sources"
	"github.com/cryptofundraises/tracker/internal/domain/entities"
	"github.com/cryptofundraises/tracker/internal/domain/repositories"
	apperrors "github.com/cryptofundraises/tracker/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	maxListLimit   = 200
	maxTickerLimit = 100
	maxExportLimit = 5000
)

// windows maps the list window parameter to a lookback duration
var windows = map[string]time.Duration{
	"day":   24 * time.Hour,
	"week":  7 * 24 * time.Hour,
	"month": 30 * 24 * time.Hour,
}

// FundraiseHandler serves the read side of the fundraise store
type FundraiseHandler struct {
	repo   repositories.FundraiseRepository
	search repositories.FundraiseSearchRepository
	now    func() time.Time
}

// NewFundraiseHandler creates a new fundraise handler. search may be nil,
// in which case free-text queries run against the database.
func NewFundraiseHandler(repo repositories.FundraiseRepository, search repositories.FundraiseSearchRepository) *FundraiseHandler {
	return &FundraiseHandler{
		repo:   repo,
		search: search,
		now:    time.Now,
	}
}

type listResponse struct {
	Fundraises []*entities.Fundraise `json:"fundraises"`
	Count      int                   `json:"count"`
	Total      int                   `json:"total"`
	Limit      int                   `json:"limit"`
	Offset     int                   `json:"offset"`
}

// ListFundraises handles GET /api/fundraises
func (h *FundraiseHandler) ListFundraises(w http.ResponseWriter, r *http.Request) {
	filter, err := h.parseFilter(r)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	if filter.Query != "" && h.search != nil {
		if h.listFromSearch(w, r, filter) {
			return
		}
	}

	items, err := h.repo.List(r.Context(), filter)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	total, err := h.repo.Count(r.Context(), filter)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, listResponse{
		Fundraises: items,
		Count:      len(items),
		Total:      total,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	})
}

// listFromSearch pages through the search index and loads the hits from
// the store, keeping the index's ranking. It reports false when the index
// failed and the caller should fall back to the database.
func (h *FundraiseHandler) listFromSearch(w http.ResponseWriter, r *http.Request, filter repositories.FundraiseFilter) bool {
	ids, found, err := h.search.Search(r.Context(), repositories.FundraiseSearchParams{
		Query:  filter.Query,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
	if err != nil {
		log.Warn().Err(err).Str("q", filter.Query).Msg("search index failed, falling back to database")
		return false
	}

	items := []*entities.Fundraise{}
	if len(ids) > 0 {
		byID := filter
		byID.Query = ""
		byID.IDs = ids
		byID.Limit = len(ids)
		byID.Offset = 0

		loaded, err := h.repo.List(r.Context(), byID)
		if err != nil {
			respondWithAppError(w, err)
			return true
		}
		items = orderByIDs(loaded, ids)
	}

	respondWithJSON(w, http.StatusOK, listResponse{
		Fundraises: items,
		Count:      len(items),
		Total:      found,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	})
	return true
}

func orderByIDs(items []*entities.Fundraise, ids []string) []*entities.Fundraise {
	byID := make(map[string]*entities.Fundraise, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	out := make([]*entities.Fundraise, 0, len(items))
	for _, id := range ids {
		if item, ok := byID[id]; ok {
			out = append(out, item)
		}
	}
	return out
}

// ExportFundraises handles GET /api/fundraises/export?format=csv|json.
// It accepts the list filters; limit defaults to and is capped at 5000.
func (h *FundraiseHandler) ExportFundraises(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "json" {
		respondWithError(w, http.StatusBadRequest, "format must be csv or json")
		return
	}

	filter, err := h.parseFilter(r)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	if filter.Limit, err = parseLimit(r.URL.Query().Get("limit"), maxExportLimit, maxExportLimit); err != nil {
		respondWithAppError(w, err)
		return
	}

	items, err := h.repo.List(r.Context(), filter)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	if format == "json" {
		w.Header().Set("Content-Disposition", `attachment; filename="fundraising-data.json"`)
		respondWithJSON(w, http.StatusOK, items)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="fundraising-data.csv"`)
	w.WriteHeader(http.StatusOK)
	if err := sources.WriteCSV(w, items); err != nil {
		log.Error().Err(err).Msg("failed to write csv export")
	}
}

// GetTicker handles GET /api/fundraises/ticker
func (h *FundraiseHandler) GetTicker(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"), repositories.DefaultTickerLimit, maxTickerLimit)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	items, err := h.repo.List(r.Context(), repositories.TickerFilter(limit))
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"fundraises": items,
		"count":      len(items),
	})
}

// GetFundraise handles GET /api/fundraises/{slug}. The path value may also
// be a record ID.
func (h *FundraiseHandler) GetFundraise(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.PathValue("slug"))
	if key == "" {
		respondWithError(w, http.StatusBadRequest, "slug is required")
		return
	}

	fundraise, err := h.repo.GetBySlug(r.Context(), key)
	if apperrors.IsNotFound(err) {
		fundraise, err = h.repo.GetByID(r.Context(), key)
	}
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, fundraise)
}

func (h *FundraiseHandler) parseFilter(r *http.Request) (repositories.FundraiseFilter, error) {
	q := r.URL.Query()
	filter := repositories.DefaultFundraiseFilter()
	filter.Query = strings.TrimSpace(q.Get("q"))
	filter.RoundType = strings.TrimSpace(q.Get("round"))
	filter.Category = strings.TrimSpace(q.Get("category"))

	switch window := strings.ToLower(strings.TrimSpace(q.Get("window"))); window {
	case "", "all":
	default:
		lookback, ok := windows[window]
		if !ok {
			return filter, apperrors.NewValidationError("window must be one of day, week, month, all")
		}
		// Minute precision keeps equal queries on the same cache entry.
		since := h.now().UTC().Add(-lookback).Truncate(time.Minute)
		filter.Since = &since
	}

	var err error
	if filter.MinAmount, err = parseAmountParam(q.Get("min_amount"), "min_amount"); err != nil {
		return filter, err
	}
	if filter.MaxAmount, err = parseAmountParam(q.Get("max_amount"), "max_amount"); err != nil {
		return filter, err
	}

	switch sortBy := strings.TrimSpace(q.Get("sort")); sortBy {
	case "":
	case repositories.SortByAnnouncedAt, repositories.SortByAmount, repositories.SortByProcessedAt:
		filter.SortBy = sortBy
	default:
		return filter, apperrors.NewValidationError("sort must be one of announced_at, amount, processed_at")
	}

	switch order := strings.ToLower(strings.TrimSpace(q.Get("order"))); order {
	case "", "desc":
	case "asc":
		filter.SortDesc = false
	default:
		return filter, apperrors.NewValidationError("order must be asc or desc")
	}

	if filter.Limit, err = parseLimit(q.Get("limit"), repositories.DefaultListLimit, maxListLimit); err != nil {
		return filter, err
	}
	if raw := strings.TrimSpace(q.Get("offset")); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return filter, apperrors.NewValidationError("offset must be a non-negative integer")
		}
		filter.Offset = offset
	}

	return filter, nil
}

func parseAmountParam(raw, name string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return nil, apperrors.NewValidationError(name + " must be a non-negative number")
	}
	return &v, nil
}

func parseLimit(raw string, def, maxLimit int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, apperrors.NewValidationError("limit must be a positive integer")
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit, nil
}
