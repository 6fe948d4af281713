package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cryptofundraises/tracker/internal/domain/entities"
	"github.com/cryptofundraises/tracker/internal/domain/providers"
	"github.com/cryptofundraises/tracker/internal/domain/repositories"
	"github.com/cryptofundraises/tracker/pkg/config"
	apperrors "github.com/cryptofundraises/tracker/pkg/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// memoryRepo is an in-memory FundraiseRepository
type memoryRepo struct {
	mu           sync.Mutex
	records      map[string]*entities.Fundraise
	createErr    error
	failUpdateAt int
	updates      int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{records: map[string]*entities.Fundraise{}}
}

func (r *memoryRepo) put(f *entities.Fundraise) {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	cp := *f
	r.records[f.ID] = &cp
}

func (r *memoryRepo) Create(ctx context.Context, f *entities.Fundraise) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if f.ExternalID != "" {
		for _, existing := range r.records {
			if existing.ExternalID == f.ExternalID {
				return apperrors.NewConflictError("duplicate external id", nil)
			}
		}
	}
	f.CreatedAt = time.Now()
	r.put(f)
	return nil
}

func (r *memoryRepo) find(match func(*entities.Fundraise) bool) (*entities.Fundraise, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.records {
		if match(f) {
			cp := *f
			return &cp, nil
		}
	}
	return nil, apperrors.NewNotFoundError("fundraise not found")
}

func (r *memoryRepo) GetByID(ctx context.Context, id string) (*entities.Fundraise, error) {
	return r.find(func(f *entities.Fundraise) bool { return f.ID == id })
}

func (r *memoryRepo) GetBySlug(ctx context.Context, slug string) (*entities.Fundraise, error) {
	return r.find(func(f *entities.Fundraise) bool { return f.Slug == slug })
}

func (r *memoryRepo) GetByExternalID(ctx context.Context, externalID string) (*entities.Fundraise, error) {
	return r.find(func(f *entities.Fundraise) bool { return f.ExternalID == externalID })
}

func (r *memoryRepo) GetByProjectAndDate(ctx context.Context, projectName string, announcedAt *time.Time) (*entities.Fundraise, error) {
	return r.find(func(f *entities.Fundraise) bool {
		if !strings.EqualFold(f.ProjectName, projectName) {
			return false
		}
		if announcedAt == nil || f.AnnouncedAt == nil {
			return announcedAt == nil && f.AnnouncedAt == nil
		}
		return f.AnnouncedAt.Equal(*announcedAt)
	})
}

func (r *memoryRepo) Update(ctx context.Context, f *entities.Fundraise) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates++
	if r.failUpdateAt > 0 && r.updates >= r.failUpdateAt {
		return apperrors.NewInternalError("failed to update fundraise", errors.New("connection reset"))
	}
	if _, ok := r.records[f.ID]; !ok {
		return apperrors.NewNotFoundError("fundraise not found")
	}
	r.put(f)
	return nil
}

func (r *memoryRepo) List(ctx context.Context, filter repositories.FundraiseFilter) ([]*entities.Fundraise, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*entities.Fundraise{}
	for _, f := range r.records {
		cp := *f
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memoryRepo) Count(ctx context.Context, filter repositories.FundraiseFilter) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records), nil
}

func (r *memoryRepo) ListPendingEnrichment(ctx context.Context, maxAttempts, limit int) ([]*entities.Fundraise, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*entities.Fundraise{}
	for _, f := range r.records {
		if !f.AIProcessed && f.AIProcessingAttempts < maxAttempts {
			cp := *f
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AIProcessingAttempts != out[j].AIProcessingAttempts {
			return out[i].AIProcessingAttempts < out[j].AIProcessingAttempts
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryRepo) all() []*entities.Fundraise {
	out, _ := r.List(context.Background(), repositories.FundraiseFilter{})
	return out
}

// MockExtractionProvider is a testify mock of the extraction provider
type MockExtractionProvider struct {
	mock.Mock
}

func (m *MockExtractionProvider) ExtractFundraise(ctx context.Context, text string) (*entities.ExtractionGuess, error) {
	args := m.Called(ctx, text)
	guess, _ := args.Get(0).(*entities.ExtractionGuess)
	return guess, args.Error(1)
}

type recordingObserver struct {
	ingest    map[string]int
	enrich    map[string]int
	fallbacks int
	fetchErrs int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{ingest: map[string]int{}, enrich: map[string]int{}}
}

func (o *recordingObserver) IngestOutcome(source, outcome string) { o.ingest[source+"/"+outcome]++ }
func (o *recordingObserver) EnrichOutcome(outcome string)         { o.enrich[outcome]++ }
func (o *recordingObserver) ExtractionFallback()                  { o.fallbacks++ }
func (o *recordingObserver) SourceFetched(source string, d time.Duration, err error) {
	if err != nil {
		o.fetchErrs++
	}
}

type stubSource struct {
	name  string
	items []entities.RawAnnouncement
	err   error
}

func (s *stubSource) Name() string { return s.name }
func (s *stubSource) Fetch(ctx context.Context) ([]entities.RawAnnouncement, error) {
	return s.items, s.err
}

var _ providers.AnnouncementSource = (*stubSource)(nil)

func newTestPipeline(repo *memoryRepo, provider providers.FundraiseExtractionProvider, enrichOnIngest bool) (*FundraisePipeline, *[]time.Duration) {
	cfg := config.PipelineConfig{
		BatchSize:      10,
		MaxAttempts:    entities.MaxEnrichmentAttempts,
		EnrichDelay:    time.Second,
		EnrichOnIngest: enrichOnIngest,
	}
	p := NewFundraisePipeline(repo, NewFieldExtractor(provider, time.Second), cfg)
	pauses := &[]time.Duration{}
	p.pause = func(ctx context.Context, d time.Duration) error {
		*pauses = append(*pauses, d)
		return nil
	}
	return p, pauses
}

func TestPipeline_IngestNewItemIsEnriched(t *testing.T) {
	repo := newMemoryRepo()
	provider := new(MockExtractionProvider)
	provider.On("ExtractFundraise", mock.Anything, "Acme raised $10M\nCurator Notes: Series A").Return(&entities.ExtractionGuess{
		AmountRaisedRaw: "$10M",
		Investors:       []string{"@BigVC", "OtherFund"},
		LeadInvestor:    "@BigVC",
		RoundType:       "Series A",
		Description:     "Acme closed a $10M Series A",
	}, nil).Once()

	p, _ := newTestPipeline(repo, provider, true)
	outcome, record, err := p.Ingest(context.Background(), entities.RawAnnouncement{
		ExternalID:   "t1",
		Content:      "Acme raised $10M",
		CuratorNotes: "Series A",
		Source:       entities.SourceCurated,
		Project:      "acme",
		Date:         "2024-03-01T10:00:00Z",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeInserted, outcome)

	stored, err := repo.GetByExternalID(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, record.ID, stored.ID)
	require.NotNil(t, stored.AmountRaisedUSD)
	assert.Equal(t, 10000000.0, *stored.AmountRaisedUSD)
	assert.Equal(t, 1, stored.AIProcessingAttempts)
	assert.True(t, stored.AIProcessed)
	assert.Equal(t, entities.EnrichmentStateProcessed, stored.State())
	assert.Equal(t, "BigVC", *stored.LeadInvestor)
	assert.Equal(t, []string{"BigVC", "OtherFund"}, stored.OtherInvestors)
	assert.Equal(t, "Acme closed a $10M Series A", stored.Description)
	require.NotNil(t, stored.CuratorNotes)
	assert.Equal(t, "Series A", *stored.CuratorNotes)
	assert.Equal(t, "acme-2024-03", stored.Slug)
	provider.AssertExpectations(t)
}

func TestPipeline_DuplicateExternalIDIsSkipped(t *testing.T) {
	repo := newMemoryRepo()
	provider := new(MockExtractionProvider)
	provider.On("ExtractFundraise", mock.Anything, mock.Anything).Return(&entities.ExtractionGuess{AmountRaisedRaw: "5M"}, nil).Once()

	p, _ := newTestPipeline(repo, provider, true)
	raw := entities.RawAnnouncement{ExternalID: "t1", Content: "Beta raised 5M", Source: entities.SourceCurated}

	summary, err := p.IngestBatch(context.Background(), entities.SourceCurated, []entities.RawAnnouncement{raw, raw})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Fetched)
	assert.Equal(t, 1, summary.Inserted)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Enriched)
	assert.Len(t, repo.all(), 1)
	provider.AssertNumberOfCalls(t, "ExtractFundraise", 1)
}

func TestPipeline_InsertConflictIsSkipped(t *testing.T) {
	repo := newMemoryRepo()
	repo.createErr = apperrors.NewConflictError("duplicate external id", nil)
	provider := new(MockExtractionProvider)

	p, _ := newTestPipeline(repo, provider, true)
	outcome, _, err := p.Ingest(context.Background(), entities.RawAnnouncement{ExternalID: "t1", Content: "x"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
	provider.AssertNotCalled(t, "ExtractFundraise", mock.Anything, mock.Anything)
}

func TestPipeline_ExtractionFailureCountsAttempt(t *testing.T) {
	repo := newMemoryRepo()
	provider := new(MockExtractionProvider)
	provider.On("ExtractFundraise", mock.Anything, mock.Anything).Return(nil, errors.New("timeout")).Once()
	observer := newRecordingObserver()

	p, _ := newTestPipeline(repo, provider, true)
	p.SetObserver(observer)

	summary, err := p.IngestBatch(context.Background(), entities.SourceTelegram, []entities.RawAnnouncement{
		{ExternalID: "telegram:c/1", Content: "Gamma raised 2M", Source: entities.SourceTelegram},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.EnrichmentFailed)

	stored, err := repo.GetByExternalID(context.Background(), "telegram:c/1")
	require.NoError(t, err)
	assert.False(t, stored.AIProcessed)
	assert.Equal(t, 1, stored.AIProcessingAttempts)
	assert.Nil(t, stored.AmountRaisedUSD)
	assert.Equal(t, "Gamma raised 2M", stored.Description)
	assert.Equal(t, 1, observer.fallbacks)
	assert.Equal(t, 1, observer.ingest["telegram/inserted"])
	assert.Equal(t, 1, observer.enrich[OutcomeEnrichmentFailed])
}

func TestPipeline_RetryKeepsCuratorNotes(t *testing.T) {
	repo := newMemoryRepo()
	text := "Acme raised\nCurator Notes: Series A, $10M led by BigVC"
	provider := new(MockExtractionProvider)
	provider.On("ExtractFundraise", mock.Anything, text).Return(nil, errors.New("timeout")).Once()
	provider.On("ExtractFundraise", mock.Anything, text).Return(&entities.ExtractionGuess{
		AmountRaisedRaw: "10M",
		LeadInvestor:    "BigVC",
		Description:     "Acme raised $10M led by BigVC",
	}, nil).Once()

	p, _ := newTestPipeline(repo, provider, true)
	_, _, err := p.Ingest(context.Background(), entities.RawAnnouncement{
		ExternalID:   "t1",
		Content:      "Acme raised",
		CuratorNotes: "Series A, $10M led by BigVC",
		Source:       entities.SourceCurated,
	})
	require.NoError(t, err)

	summary, err := p.EnrichPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Enriched)

	stored, err := repo.GetByExternalID(context.Background(), "t1")
	require.NoError(t, err)
	assert.True(t, stored.AIProcessed)
	assert.Equal(t, 2, stored.AIProcessingAttempts)
	assert.Equal(t, 10000000.0, *stored.AmountRaisedUSD)
	provider.AssertExpectations(t)
}

func TestPipeline_EnrichKeepsImportedDescription(t *testing.T) {
	repo := newMemoryRepo()
	repo.put(&entities.Fundraise{ID: "csv-1", Source: entities.SourceCSV, Description: "Acme raised a seed round from friends"})

	provider := new(MockExtractionProvider)
	provider.On("ExtractFundraise", mock.Anything, mock.Anything).Return(&entities.ExtractionGuess{
		RoundType:   "Seed",
		Description: "Acme closed a seed round",
	}, nil)

	p, _ := newTestPipeline(repo, provider, false)
	_, err := p.EnrichPending(context.Background())
	require.NoError(t, err)

	written, _ := repo.GetByID(context.Background(), "csv-1")
	assert.Equal(t, "Acme raised a seed round from friends", written.Description)
	assert.Equal(t, "Seed", *written.RoundType)
}

func TestPipeline_MergeKeepsEnrichedFields(t *testing.T) {
	repo := newMemoryRepo()
	amount := 10000000.0
	lead := "BigVC"
	at := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	existing := &entities.Fundraise{
		ProjectName:          "Acme",
		Description:          "Acme closed a $10M round led by BigVC",
		AmountRaisedUSD:      &amount,
		LeadInvestor:         &lead,
		AnnouncedAt:          &at,
		AIProcessed:          true,
		AIProcessingAttempts: 1,
	}
	repo.put(existing)

	p, _ := newTestPipeline(repo, nil, false)
	raw := csvRaw("Acme", "2024-03-15", "acme round")
	raw.Amount = "5M"
	raw.Round = "Seed"
	raw.Category = "DeFi"
	raw.Website = "https://acme.xyz"

	outcome, _, err := p.Ingest(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMerged, outcome)

	stored, err := repo.GetByID(context.Background(), existing.ID)
	require.NoError(t, err)
	assert.True(t, stored.AIProcessed)
	assert.Equal(t, 10000000.0, *stored.AmountRaisedUSD)
	assert.Equal(t, "BigVC", *stored.LeadInvestor)
	assert.Equal(t, "Acme closed a $10M round led by BigVC", stored.Description)
	assert.Equal(t, "Seed", *stored.RoundType)
	assert.Equal(t, "DeFi", *stored.Category)
}

func csvRaw(project, date, description string) entities.RawAnnouncement {
	return entities.RawAnnouncement{Source: entities.SourceCSV, Project: project, Date: date, Description: description, Content: description}
}

func TestPipeline_MergeOverwritesWhenCandidateRicher(t *testing.T) {
	repo := newMemoryRepo()
	seed := "Seed"
	at := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	existing := &entities.Fundraise{ProjectName: "Acme", Description: "old", AnnouncedAt: &at, RoundType: &seed, AIProcessingAttempts: 2, Slug: "acme-2024-03"}
	repo.put(existing)
	require.Equal(t, 4, existing.PopulatedFieldCount())

	p, _ := newTestPipeline(repo, nil, false)
	raw := csvRaw("Acme", "2024-03-15", "new")
	raw.Round = "Seed"
	raw.Amount = "5M"
	raw.Category = "DeFi"

	outcome, record, err := p.Ingest(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMerged, outcome)
	assert.Equal(t, existing.ID, record.ID)

	stored, err := repo.GetByID(context.Background(), existing.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, stored.PopulatedFieldCount())
	assert.Equal(t, "new", stored.Description)
	assert.Equal(t, 5000000.0, *stored.AmountRaisedUSD)
	assert.Equal(t, 2, stored.AIProcessingAttempts)
	assert.Len(t, repo.all(), 1)
}

func TestPipeline_MergeKeepsExistingWhenCandidatePoorer(t *testing.T) {
	repo := newMemoryRepo()
	seed := "Seed"
	at := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	existing := &entities.Fundraise{ProjectName: "Acme", Description: "old", AnnouncedAt: &at, RoundType: &seed}
	repo.put(existing)

	p, _ := newTestPipeline(repo, nil, false)
	outcome, _, err := p.Ingest(context.Background(), csvRaw("ACME", "2024-03-15", "new"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)

	stored, err := repo.GetByID(context.Background(), existing.ID)
	require.NoError(t, err)
	assert.Equal(t, "old", stored.Description)
}

func TestPipeline_MergeTieKeepsExisting(t *testing.T) {
	repo := newMemoryRepo()
	at := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	existing := &entities.Fundraise{ProjectName: "Acme", Description: "old", AnnouncedAt: &at}
	repo.put(existing)

	p, _ := newTestPipeline(repo, nil, false)
	outcome, _, err := p.Ingest(context.Background(), csvRaw("Acme", "2024-03-15", "new"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
}

func TestPipeline_CSVRowWithoutMatchIsInsertedUnprocessed(t *testing.T) {
	repo := newMemoryRepo()
	provider := new(MockExtractionProvider)
	p, _ := newTestPipeline(repo, provider, true)

	outcome, record, err := p.Ingest(context.Background(), csvRaw("Acme Labs!!", "2024-03-15", "Acme raised"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeInserted, outcome)
	assert.Equal(t, "acme-labs-2024-03", record.Slug)
	assert.Equal(t, entities.EnrichmentStateUnprocessed, record.State())
	provider.AssertNotCalled(t, "ExtractFundraise", mock.Anything, mock.Anything)
}

func TestPipeline_EnrichPendingExcludesTerminalRecords(t *testing.T) {
	repo := newMemoryRepo()
	repo.put(&entities.Fundraise{ID: "exhausted", Description: "a", AIProcessingAttempts: 3})
	repo.put(&entities.Fundraise{ID: "processed", Description: "b", AIProcessed: true, AIProcessingAttempts: 1})
	repo.put(&entities.Fundraise{ID: "last-chance", Description: "c", AIProcessingAttempts: 2})

	provider := new(MockExtractionProvider)
	provider.On("ExtractFundraise", mock.Anything, "c").Return(nil, errors.New("malformed output")).Once()

	p, pauses := newTestPipeline(repo, provider, false)
	summary, err := p.EnrichPending(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Selected)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Exhausted)
	assert.Empty(t, *pauses)

	stored, _ := repo.GetByID(context.Background(), "last-chance")
	assert.Equal(t, 3, stored.AIProcessingAttempts)
	assert.Equal(t, entities.EnrichmentStateExhausted, stored.State())

	untouched, _ := repo.GetByID(context.Background(), "exhausted")
	assert.Equal(t, 3, untouched.AIProcessingAttempts)

	summary, err = p.EnrichPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Selected)
	provider.AssertExpectations(t)
}

func TestPipeline_EnrichPendingPausesBetweenCalls(t *testing.T) {
	repo := newMemoryRepo()
	for i := 0; i < 3; i++ {
		repo.put(&entities.Fundraise{Description: "raised 1 million", CreatedAt: time.Now().Add(time.Duration(i) * time.Second)})
	}
	provider := new(MockExtractionProvider)
	provider.On("ExtractFundraise", mock.Anything, mock.Anything).Return(&entities.ExtractionGuess{Description: "raised 1 million"}, nil)

	p, pauses := newTestPipeline(repo, provider, false)
	summary, err := p.EnrichPending(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Enriched)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, *pauses)
	for _, f := range repo.all() {
		assert.True(t, f.AIProcessed)
		assert.Equal(t, 1000000.0, *f.AmountRaisedUSD)
	}
}

func TestPipeline_EnrichPendingStoreErrorAborts(t *testing.T) {
	repo := newMemoryRepo()
	for i := 0; i < 3; i++ {
		repo.put(&entities.Fundraise{Description: "x", CreatedAt: time.Now().Add(time.Duration(i) * time.Second)})
	}
	repo.failUpdateAt = 2

	provider := new(MockExtractionProvider)
	provider.On("ExtractFundraise", mock.Anything, mock.Anything).Return(&entities.ExtractionGuess{RoundType: "Seed"}, nil)

	p, _ := newTestPipeline(repo, provider, false)
	summary, err := p.EnrichPending(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, summary.Enriched)
	provider.AssertNumberOfCalls(t, "ExtractFundraise", 2)
}

func TestPipeline_EnrichSkipsTerminalRecord(t *testing.T) {
	p, _ := newTestPipeline(newMemoryRepo(), new(MockExtractionProvider), false)
	outcome, err := p.Enrich(context.Background(), &entities.Fundraise{AIProcessed: true, AIProcessingAttempts: 1})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
}

func TestPipeline_RunSourceFetchError(t *testing.T) {
	observer := newRecordingObserver()
	p, _ := newTestPipeline(newMemoryRepo(), nil, false)
	p.SetObserver(observer)

	_, err := p.RunSource(context.Background(), &stubSource{name: "curated", err: errors.New("status 503")})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))
	assert.Equal(t, 1, observer.fetchErrs)
}

func TestPipeline_RunSourceIngests(t *testing.T) {
	repo := newMemoryRepo()
	p, _ := newTestPipeline(repo, nil, false)

	summary, err := p.RunSource(context.Background(), &stubSource{name: "telegram", items: []entities.RawAnnouncement{
		{ExternalID: "telegram:c/1", Content: "one"},
		{ExternalID: "telegram:c/2", Content: "two"},
	}})
	require.NoError(t, err)
	assert.Equal(t, "telegram", summary.Source)
	assert.Equal(t, 2, summary.Inserted)
	assert.Len(t, repo.all(), 2)
}

func TestPipeline_Normalize(t *testing.T) {
	p, _ := newTestPipeline(newMemoryRepo(), nil, false)
	now := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)

	f := p.Normalize(entities.RawAnnouncement{
		Content:        "Acme raised",
		Project:        " Acme ",
		Amount:         "$8-10M",
		Tags:           "defi, , infra",
		LeadInvestors:  "@BigVC",
		OtherInvestors: "@a16z, Paradigm",
		Round:          " ",
	}, now)

	assert.Equal(t, "Acme", f.ProjectName)
	assert.Equal(t, 10000000.0, *f.AmountRaisedUSD)
	assert.Equal(t, []string{"defi", "infra"}, f.Tags)
	assert.Equal(t, "BigVC", *f.LeadInvestor)
	assert.Equal(t, []string{"a16z", "Paradigm"}, f.OtherInvestors)
	assert.Nil(t, f.RoundType)
	assert.Nil(t, f.AnnouncedAt)
	assert.Equal(t, "acme-2024-05", f.Slug)
	assert.Equal(t, "Acme raised", f.Description)
	assert.Equal(t, entities.EnrichmentStateUnprocessed, f.State())
}

type listRecorder struct {
	*memoryRepo
	filters []repositories.FundraiseFilter
	counts  int
}

func (r *listRecorder) List(ctx context.Context, filter repositories.FundraiseFilter) ([]*entities.Fundraise, error) {
	r.filters = append(r.filters, filter)
	return r.memoryRepo.List(ctx, filter)
}

func (r *listRecorder) Count(ctx context.Context, filter repositories.FundraiseFilter) (int, error) {
	r.counts++
	return r.memoryRepo.Count(ctx, filter)
}

func TestCacheWarmingService_WarmsHotReads(t *testing.T) {
	repo := &listRecorder{memoryRepo: newMemoryRepo()}

	require.NoError(t, NewCacheWarmingService(repo).WarmCache(context.Background()))

	require.Len(t, repo.filters, 2)
	assert.Equal(t, repositories.TickerFilter(repositories.DefaultTickerLimit), repo.filters[0])
	assert.Equal(t, repositories.DefaultFundraiseFilter(), repo.filters[1])
	assert.Equal(t, 1, repo.counts)
}
