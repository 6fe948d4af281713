package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cryptofundraises/tracker/internal/api/handlers"
	"github.com/cryptofundraises/tracker/internal/domain/entities"
	"github.com/cryptofundraises/tracker/internal/domain/repositories"
	apperrors "github.com/cryptofundraises/tracker/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockFundraiseRepository struct {
	mock.Mock
}

func (m *MockFundraiseRepository) Create(ctx context.Context, f *entities.Fundraise) error {
	return m.Called(ctx, f).Error(0)
}

func (m *MockFundraiseRepository) fundraise(args mock.Arguments) (*entities.Fundraise, error) {
	f, _ := args.Get(0).(*entities.Fundraise)
	return f, args.Error(1)
}

func (m *MockFundraiseRepository) GetByID(ctx context.Context, id string) (*entities.Fundraise, error) {
	return m.fundraise(m.Called(ctx, id))
}

func (m *MockFundraiseRepository) GetBySlug(ctx context.Context, slug string) (*entities.Fundraise, error) {
	return m.fundraise(m.Called(ctx, slug))
}

func (m *MockFundraiseRepository) GetByExternalID(ctx context.Context, externalID string) (*entities.Fundraise, error) {
	return m.fundraise(m.Called(ctx, externalID))
}

func (m *MockFundraiseRepository) GetByProjectAndDate(ctx context.Context, projectName string, announcedAt *time.Time) (*entities.Fundraise, error) {
	return m.fundraise(m.Called(ctx, projectName, announcedAt))
}

func (m *MockFundraiseRepository) Update(ctx context.Context, f *entities.Fundraise) error {
	return m.Called(ctx, f).Error(0)
}

func (m *MockFundraiseRepository) List(ctx context.Context, filter repositories.FundraiseFilter) ([]*entities.Fundraise, error) {
	args := m.Called(ctx, filter)
	items, _ := args.Get(0).([]*entities.Fundraise)
	return items, args.Error(1)
}

func (m *MockFundraiseRepository) Count(ctx context.Context, filter repositories.FundraiseFilter) (int, error) {
	args := m.Called(ctx, filter)
	return args.Int(0), args.Error(1)
}

func (m *MockFundraiseRepository) ListPendingEnrichment(ctx context.Context, maxAttempts, limit int) ([]*entities.Fundraise, error) {
	args := m.Called(ctx, maxAttempts, limit)
	items, _ := args.Get(0).([]*entities.Fundraise)
	return items, args.Error(1)
}

type MockSearchRepository struct {
	mock.Mock
}

func (m *MockSearchRepository) Search(ctx context.Context, params repositories.FundraiseSearchParams) ([]string, int, error) {
	args := m.Called(ctx, params)
	ids, _ := args.Get(0).([]string)
	return ids, args.Int(1), args.Error(2)
}

func (m *MockSearchRepository) Index(ctx context.Context, f *entities.Fundraise) error {
	return m.Called(ctx, f).Error(0)
}

func (m *MockSearchRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type listBody struct {
	Fundraises []*entities.Fundraise `json:"fundraises"`
	Count      int                   `json:"count"`
	Total      int                   `json:"total"`
	Limit      int                   `json:"limit"`
}

func serve(handler http.HandlerFunc, pattern, target string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.HandleFunc(pattern, handler)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestFundraiseHandler_ListFundraises_Filters(t *testing.T) {
	repo := new(MockFundraiseRepository)
	handler := handlers.NewFundraiseHandler(repo, nil)

	matches := mock.MatchedBy(func(f repositories.FundraiseFilter) bool {
		return f.Since != nil &&
			time.Since(*f.Since) > 6*24*time.Hour &&
			f.MinAmount != nil && *f.MinAmount == 1000000 &&
			f.RoundType == "seed" &&
			f.SortBy == repositories.SortByAmount &&
			!f.SortDesc &&
			f.Limit == 200 &&
			f.Offset == 10
	})
	repo.On("List", mock.Anything, matches).Return([]*entities.Fundraise{{ID: "a", ProjectName: "Acme"}}, nil)
	repo.On("Count", mock.Anything, matches).Return(11, nil)

	w := serve(handler.ListFundraises, "GET /api/fundraises",
		"/api/fundraises?window=week&min_amount=1000000&round=seed&sort=amount&order=asc&limit=500&offset=10")

	require.Equal(t, http.StatusOK, w.Code)
	var body listBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, 11, body.Total)
	assert.Equal(t, 200, body.Limit)
	repo.AssertExpectations(t)
}

func TestFundraiseHandler_ListFundraises_InvalidParams(t *testing.T) {
	handler := handlers.NewFundraiseHandler(new(MockFundraiseRepository), nil)

	for _, target := range []string{
		"/api/fundraises?window=year",
		"/api/fundraises?min_amount=lots",
		"/api/fundraises?sort=name",
		"/api/fundraises?order=sideways",
		"/api/fundraises?limit=0",
		"/api/fundraises?offset=-1",
	} {
		w := serve(handler.ListFundraises, "GET /api/fundraises", target)
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
	}
}

func TestFundraiseHandler_ListFundraises_UsesSearchIndex(t *testing.T) {
	repo := new(MockFundraiseRepository)
	search := new(MockSearchRepository)
	handler := handlers.NewFundraiseHandler(repo, search)

	search.On("Search", mock.Anything, repositories.FundraiseSearchParams{Query: "defi", Limit: 50}).
		Return([]string{"b", "a"}, 7, nil)
	repo.On("List", mock.Anything, mock.MatchedBy(func(f repositories.FundraiseFilter) bool {
		return f.Query == "" && len(f.IDs) == 2 && f.Limit == 2
	})).Return([]*entities.Fundraise{{ID: "a"}, {ID: "b"}}, nil)

	w := serve(handler.ListFundraises, "GET /api/fundraises", "/api/fundraises?q=defi")

	require.Equal(t, http.StatusOK, w.Code)
	var body listBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	require.Len(t, body.Fundraises, 2)
	assert.Equal(t, "b", body.Fundraises[0].ID)
	assert.Equal(t, 7, body.Total)
	repo.AssertNotCalled(t, "Count", mock.Anything, mock.Anything)
}

func TestFundraiseHandler_ListFundraises_SearchFailureFallsBack(t *testing.T) {
	repo := new(MockFundraiseRepository)
	search := new(MockSearchRepository)
	handler := handlers.NewFundraiseHandler(repo, search)

	search.On("Search", mock.Anything, mock.Anything).Return(nil, 0, errors.New("typesense down"))
	withQuery := mock.MatchedBy(func(f repositories.FundraiseFilter) bool { return f.Query == "defi" })
	repo.On("List", mock.Anything, withQuery).Return([]*entities.Fundraise{}, nil)
	repo.On("Count", mock.Anything, withQuery).Return(0, nil)

	w := serve(handler.ListFundraises, "GET /api/fundraises", "/api/fundraises?q=defi")

	assert.Equal(t, http.StatusOK, w.Code)
	repo.AssertExpectations(t)
}

func TestFundraiseHandler_GetTicker(t *testing.T) {
	repo := new(MockFundraiseRepository)
	handler := handlers.NewFundraiseHandler(repo, nil)

	repo.On("List", mock.Anything, mock.MatchedBy(func(f repositories.FundraiseFilter) bool {
		return f.AIProcessed != nil && *f.AIProcessed && f.SortDesc && f.Limit == 5
	})).Return([]*entities.Fundraise{{ID: "a"}}, nil)

	w := serve(handler.GetTicker, "GET /api/fundraises/ticker", "/api/fundraises/ticker?limit=5")

	assert.Equal(t, http.StatusOK, w.Code)
	repo.AssertExpectations(t)
}

func TestFundraiseHandler_GetFundraise_FallsBackToID(t *testing.T) {
	repo := new(MockFundraiseRepository)
	handler := handlers.NewFundraiseHandler(repo, nil)

	id := "11111111-1111-1111-1111-111111111111"
	repo.On("GetBySlug", mock.Anything, id).Return(nil, apperrors.NewNotFoundError("fundraise not found"))
	repo.On("GetByID", mock.Anything, id).Return(&entities.Fundraise{ID: id, Slug: "acme-2024-03"}, nil)

	w := serve(handler.GetFundraise, "GET /api/fundraises/{slug}", "/api/fundraises/"+id)

	require.Equal(t, http.StatusOK, w.Code)
	var body entities.Fundraise
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "acme-2024-03", body.Slug)
}

func TestFundraiseHandler_GetFundraise_NotFound(t *testing.T) {
	repo := new(MockFundraiseRepository)
	handler := handlers.NewFundraiseHandler(repo, nil)

	repo.On("GetBySlug", mock.Anything, "missing").Return(nil, apperrors.NewNotFoundError("fundraise not found"))
	repo.On("GetByID", mock.Anything, "missing").Return(nil, apperrors.NewNotFoundError("fundraise not found"))

	w := serve(handler.GetFundraise, "GET /api/fundraises/{slug}", "/api/fundraises/missing")

	assert.Equal(t, http.StatusNotFound, w.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "fundraise not found", body["error"])
}

func TestFundraiseHandler_InternalErrorIsHidden(t *testing.T) {
	repo := new(MockFundraiseRepository)
	handler := handlers.NewFundraiseHandler(repo, nil)

	repo.On("GetBySlug", mock.Anything, "acme").Return(nil, apperrors.NewInternalError("failed to query", errors.New("password=secret")))

	w := serve(handler.GetFundraise, "GET /api/fundraises/{slug}", "/api/fundraises/acme")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "secret")
}

func TestFundraiseHandler_ExportFundraises_CSV(t *testing.T) {
	repo := new(MockFundraiseRepository)
	handler := handlers.NewFundraiseHandler(repo, nil)

	amount := 5000000.0
	announced := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	repo.On("List", mock.Anything, mock.MatchedBy(func(f repositories.FundraiseFilter) bool {
		return f.RoundType == "seed" && f.Limit == 5000
	})).Return([]*entities.Fundraise{{ID: "a", ProjectName: "Acme", AmountRaisedUSD: &amount, AnnouncedAt: &announced}}, nil)

	w := serve(handler.ExportFundraises, "GET /api/fundraises/export", "/api/fundraises/export?round=seed&limit=9000")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "fundraising-data.csv")
	assert.Contains(t, w.Body.String(), "Project,Round,Website")
	assert.Contains(t, w.Body.String(), "Acme")
	assert.Contains(t, w.Body.String(), "2024-03-01")
	repo.AssertExpectations(t)
}

func TestFundraiseHandler_ExportFundraises_JSON(t *testing.T) {
	repo := new(MockFundraiseRepository)
	handler := handlers.NewFundraiseHandler(repo, nil)

	repo.On("List", mock.Anything, mock.MatchedBy(func(f repositories.FundraiseFilter) bool {
		return f.Limit == 10
	})).Return([]*entities.Fundraise{{ID: "a"}, {ID: "b"}}, nil)

	w := serve(handler.ExportFundraises, "GET /api/fundraises/export", "/api/fundraises/export?format=json&limit=10")

	require.Equal(t, http.StatusOK, w.Code)
	var body []*entities.Fundraise
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Len(t, body, 2)
}

func TestFundraiseHandler_ExportFundraises_InvalidFormat(t *testing.T) {
	handler := handlers.NewFundraiseHandler(new(MockFundraiseRepository), nil)

	w := serve(handler.ExportFundraises, "GET /api/fundraises/export", "/api/fundraises/export?format=xml")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
