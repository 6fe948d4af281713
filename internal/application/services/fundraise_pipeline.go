package services

import (
	"context"
	"strings"
	"time"

	"github.com/cryptofundraises/tracker/internal/domain/entities"
	"github.com/cryptofundraises/tracker/internal/domain/providers"
	"github.com/cryptofundraises/tracker/internal/domain/repositories"
	"github.com/cryptofundraises/tracker/internal/infrastructure/observability"
	"github.com/cryptofundraises/tracker/pkg/config"
	apperrors "github.com/cryptofundraises/tracker/pkg/errors"
	"github.com/cryptofundraises/tracker/pkg/retry"
	"github.com/cryptofundraises/tracker/pkg/utils"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

// Per-item outcomes reported in logs, metrics and summaries.
const (
	OutcomeInserted         = "inserted"
	OutcomeSkipped          = "skipped"
	OutcomeMerged           = "merged"
	OutcomeEnriched         = "enriched"
	OutcomeEnrichmentFailed = "enrichment_failed"
	OutcomeExhausted        = "exhausted"
)

// PipelineObserver receives pipeline outcome counts.
type PipelineObserver interface {
	IngestOutcome(source, outcome string)
	EnrichOutcome(outcome string)
	ExtractionFallback()
	SourceFetched(source string, duration time.Duration, err error)
}

// IngestionSummary reports what one ingestion run did.
type IngestionSummary struct {
	Source           string `json:"source"`
	Fetched          int    `json:"fetched"`
	Inserted         int    `json:"inserted"`
	Skipped          int    `json:"skipped"`
	Merged           int    `json:"merged"`
	Enriched         int    `json:"enriched"`
	EnrichmentFailed int    `json:"enrichment_failed"`
}

// EnrichmentSummary reports what one enrichment batch did.
type EnrichmentSummary struct {
	Selected  int `json:"selected"`
	Enriched  int `json:"enriched"`
	Failed    int `json:"failed"`
	Exhausted int `json:"exhausted"`
}

// FundraisePipeline turns raw announcements into canonical records and
// drives them through enrichment.
type FundraisePipeline struct {
	repo      repositories.FundraiseRepository
	extractor *FieldExtractor
	cfg       config.PipelineConfig
	search    repositories.FundraiseSearchRepository
	eventBus  providers.EventBus
	observer  PipelineObserver
	now       func() time.Time
	pause     func(ctx context.Context, d time.Duration) error
}

// NewFundraisePipeline creates a new pipeline
func NewFundraisePipeline(repo repositories.FundraiseRepository, extractor *FieldExtractor, cfg config.PipelineConfig) *FundraisePipeline {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = entities.MaxEnrichmentAttempts
	}
	if extractor == nil {
		extractor = NewFieldExtractor(nil, 0)
	}
	return &FundraisePipeline{
		repo:      repo,
		extractor: extractor,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
		pause:     retry.Pause,
	}
}

// SetSearchIndex enables indexing of written records
func (p *FundraisePipeline) SetSearchIndex(search repositories.FundraiseSearchRepository) {
	p.search = search
}

// SetEventBus enables change events for written records
func (p *FundraisePipeline) SetEventBus(eventBus providers.EventBus) {
	p.eventBus = eventBus
}

// SetObserver enables outcome metrics
func (p *FundraisePipeline) SetObserver(observer PipelineObserver) {
	p.observer = observer
	if observer != nil && p.extractor != nil {
		p.extractor.OnFallback(observer.ExtractionFallback)
	}
}

// Normalize builds the unprocessed canonical record for raw.
func (p *FundraisePipeline) Normalize(raw entities.RawAnnouncement, now time.Time) *entities.Fundraise {
	announcedAt := utils.ParseDate(raw.Date)
	if announcedAt == nil && raw.SubmittedAt != nil {
		t := raw.SubmittedAt.UTC()
		announcedAt = &t
	}

	projectName := strings.TrimSpace(raw.Project)
	description := strings.TrimSpace(raw.Description)
	if description == "" {
		description = raw.Content
	}

	var lead *string
	if names := utils.CleanNames(utils.SplitList(raw.LeadInvestors)); len(names) > 0 {
		lead = utils.OptionalString(strings.Join(names, ", "))
	}

	return &entities.Fundraise{
		ExternalID:           strings.TrimSpace(raw.ExternalID),
		ProjectName:          projectName,
		AmountRaisedUSD:      utils.NormalizeAmount(utils.ResolveAmountRange(raw.Amount)),
		RoundType:            utils.OptionalString(raw.Round),
		LeadInvestor:         lead,
		OtherInvestors:       utils.CleanNames(utils.SplitList(raw.OtherInvestors)),
		Description:          description,
		CuratorNotes:         utils.OptionalString(raw.CuratorNotes),
		Category:             utils.OptionalString(raw.Category),
		Tags:                 utils.SplitList(raw.Tags),
		Website:              utils.OptionalString(raw.Website),
		Valuation:            utils.OptionalString(raw.Valuation),
		AnnouncementLink:     utils.OptionalString(raw.AnnouncementLink),
		SocialLinks:          utils.OptionalString(raw.SocialLinks),
		Source:               raw.Source,
		AnnouncementUsername: utils.OptionalString(raw.Username),
		SourceURL:            utils.OptionalString(raw.SourceURL),
		AnnouncedAt:          announcedAt,
		ProcessedAt:          now,
		Slug:                 utils.GenerateSlug(projectName, announcedAt, now),
	}
}

// Ingest folds one raw announcement into the store and returns the outcome
// with the stored record. Items with an external ID are inserted once and
// skipped afterwards; items without one go through the merge rule.
func (p *FundraisePipeline) Ingest(ctx context.Context, raw entities.RawAnnouncement) (string, *entities.Fundraise, error) {
	candidate := p.Normalize(raw, p.now())
	if candidate.ExternalID == "" {
		return p.merge(ctx, candidate)
	}

	existing, err := p.repo.GetByExternalID(ctx, candidate.ExternalID)
	if err == nil {
		return OutcomeSkipped, existing, nil
	}
	if !apperrors.IsNotFound(err) {
		return "", nil, err
	}

	if err := p.repo.Create(ctx, candidate); err != nil {
		if apperrors.IsConflict(err) {
			return OutcomeSkipped, nil, nil
		}
		return "", nil, err
	}
	p.afterWrite(ctx, candidate, entities.FundraiseEventTypeCreated, nil)

	if p.cfg.EnrichOnIngest {
		if _, err := p.enrichWithText(ctx, candidate, raw.ExtractionText()); err != nil {
			return OutcomeInserted, candidate, err
		}
	}

	return OutcomeInserted, candidate, nil
}

// merge applies the bulk-import rule on the (project, announcement date) key:
// the candidate replaces an existing record only when it carries strictly
// more populated fields.
func (p *FundraisePipeline) merge(ctx context.Context, candidate *entities.Fundraise) (string, *entities.Fundraise, error) {
	existing, err := p.repo.GetByProjectAndDate(ctx, candidate.ProjectName, candidate.AnnouncedAt)
	if err != nil {
		if !apperrors.IsNotFound(err) {
			return "", nil, err
		}
		if err := p.repo.Create(ctx, candidate); err != nil {
			if apperrors.IsConflict(err) {
				return OutcomeSkipped, nil, nil
			}
			return "", nil, err
		}
		p.afterWrite(ctx, candidate, entities.FundraiseEventTypeCreated, nil)
		return OutcomeInserted, candidate, nil
	}

	existingCount, candidateCount := existing.PopulatedFieldCount(), candidate.PopulatedFieldCount()
	if candidateCount <= existingCount {
		return OutcomeSkipped, existing, nil
	}

	candidate.ID = existing.ID
	candidate.ExternalID = existing.ExternalID
	candidate.CreatedAt = existing.CreatedAt
	candidate.AIProcessed = existing.AIProcessed
	if candidate.CuratorNotes == nil {
		candidate.CuratorNotes = existing.CuratorNotes
	}
	if existing.AIProcessed {
		keepEnriched(candidate, existing)
	}
	if existing.AIProcessingAttempts > candidate.AIProcessingAttempts {
		candidate.AIProcessingAttempts = existing.AIProcessingAttempts
	}

	if err := p.repo.Update(ctx, candidate); err != nil {
		return "", nil, err
	}
	p.afterWrite(ctx, candidate, entities.FundraiseEventTypeUpdated, map[string]interface{}{
		"populated_fields": candidateCount,
		"previous_fields":  existingCount,
	})
	return OutcomeMerged, candidate, nil
}

// IngestBatch ingests items sequentially. A store error aborts the batch;
// items already written stay written.
func (p *FundraisePipeline) IngestBatch(ctx context.Context, source string, items []entities.RawAnnouncement) (*IngestionSummary, error) {
	ctx, span := observability.StartSpan(ctx, "pipeline.ingest_batch")
	defer span.End()
	observability.SetSpanAttributes(span,
		attribute.String("pipeline.source", source),
		attribute.Int("pipeline.items", len(items)),
	)

	summary := &IngestionSummary{Source: source, Fetched: len(items)}
	for _, raw := range items {
		outcome, record, err := p.Ingest(ctx, raw)
		if outcome != "" {
			p.countIngest(summary, source, outcome, record)
		}
		if err != nil {
			observability.RecordError(span, err)
			log.Error().Err(err).Str("source", source).Str("external_id", raw.ExternalID).Msg("ingestion aborted")
			return summary, err
		}
	}

	log.Info().
		Str("source", source).
		Int("fetched", summary.Fetched).
		Int("inserted", summary.Inserted).
		Int("skipped", summary.Skipped).
		Int("merged", summary.Merged).
		Msg("ingestion batch complete")
	return summary, nil
}

func (p *FundraisePipeline) countIngest(summary *IngestionSummary, source, outcome string, record *entities.Fundraise) {
	event := log.Info().Str("source", source).Str("outcome", outcome)
	if record != nil {
		event = event.Str("fundraise_id", record.ID).Str("slug", record.Slug)
	}
	event.Msg("ingested item")

	switch outcome {
	case OutcomeInserted:
		summary.Inserted++
		if record != nil && p.cfg.EnrichOnIngest && record.ExternalID != "" {
			if record.AIProcessed {
				summary.Enriched++
			} else {
				summary.EnrichmentFailed++
			}
		}
	case OutcomeSkipped:
		summary.Skipped++
	case OutcomeMerged:
		summary.Merged++
	}
	if p.observer != nil {
		p.observer.IngestOutcome(source, outcome)
	}
}

// Enrich runs one enrichment attempt on record using its stored description
// and curator notes. Records that are processed or exhausted are left
// untouched.
func (p *FundraisePipeline) Enrich(ctx context.Context, record *entities.Fundraise) (string, error) {
	return p.enrichWithText(ctx, record, record.ExtractionText())
}

func (p *FundraisePipeline) enrichWithText(ctx context.Context, record *entities.Fundraise, text string) (string, error) {
	if record.AIProcessed || record.AIProcessingAttempts >= p.cfg.MaxAttempts {
		return OutcomeSkipped, nil
	}

	ctx, span := observability.StartSpan(ctx, "pipeline.enrich")
	defer span.End()
	observability.SetSpanAttributes(span,
		attribute.String("fundraise.id", record.ID),
		attribute.Int("fundraise.attempts", record.AIProcessingAttempts),
	)

	guess, ok := p.extractor.Extract(ctx, text)
	record.AIProcessingAttempts++

	changed := map[string]interface{}{"ai_processing_attempts": record.AIProcessingAttempts}
	outcome := OutcomeEnrichmentFailed
	if ok {
		applyGuess(record, guess, changed)
		record.AIProcessed = true
		record.ProcessedAt = p.now()
		changed["ai_processed"] = true
		outcome = OutcomeEnriched
	} else if record.AIProcessingAttempts >= p.cfg.MaxAttempts {
		outcome = OutcomeExhausted
	}

	if err := p.repo.Update(ctx, record); err != nil {
		observability.RecordError(span, err)
		return "", err
	}

	log.Info().
		Str("fundraise_id", record.ID).
		Str("outcome", outcome).
		Int("attempts", record.AIProcessingAttempts).
		Msg("enrichment attempt")
	if p.observer != nil {
		p.observer.EnrichOutcome(outcome)
	}
	p.afterWrite(ctx, record, entities.FundraiseEventTypeUpdated, changed)

	return outcome, nil
}

// applyGuess copies the non-empty guessed fields onto record.
func applyGuess(record *entities.Fundraise, guess entities.ExtractionGuess, changed map[string]interface{}) {
	if amount := utils.NormalizeAmount(guess.AmountRaisedRaw); amount != nil {
		record.AmountRaisedUSD = amount
		changed["amount_raised_usd"] = *amount
	}
	if len(guess.Investors) > 0 {
		record.OtherInvestors = guess.Investors
		changed["other_investors"] = guess.Investors
	}
	if v := utils.OptionalString(guess.LeadInvestor); v != nil {
		record.LeadInvestor = v
		changed["lead_investor"] = *v
	}
	if v := utils.OptionalString(guess.RoundType); v != nil {
		record.RoundType = v
		changed["round_type"] = *v
	}
	if v := utils.OptionalString(guess.Token); v != nil {
		record.Token = v
		changed["token"] = *v
	}
	// Imported CSV descriptions are written by people and only filled when blank.
	if strings.TrimSpace(guess.Description) != "" &&
		(record.Source != entities.SourceCSV || strings.TrimSpace(record.Description) == "") {
		record.Description = guess.Description
		changed["description"] = guess.Description
	}
}

// keepEnriched carries the fields enrichment fills over from an enriched
// record, so a merged candidate never shows import values under the
// processed flag. Candidate values survive only where the record had none.
func keepEnriched(candidate, existing *entities.Fundraise) {
	if existing.AmountRaisedUSD != nil {
		candidate.AmountRaisedUSD = existing.AmountRaisedUSD
	}
	if len(existing.OtherInvestors) > 0 {
		candidate.OtherInvestors = existing.OtherInvestors
	}
	if nonBlank(existing.LeadInvestor) {
		candidate.LeadInvestor = existing.LeadInvestor
	}
	if nonBlank(existing.RoundType) {
		candidate.RoundType = existing.RoundType
	}
	if nonBlank(existing.Token) {
		candidate.Token = existing.Token
	}
	if strings.TrimSpace(existing.Description) != "" {
		candidate.Description = existing.Description
	}
}

func nonBlank(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

// EnrichPending runs one bounded enrichment batch over unprocessed records,
// least attempted first, pausing between model calls.
func (p *FundraisePipeline) EnrichPending(ctx context.Context) (*EnrichmentSummary, error) {
	ctx, span := observability.StartSpan(ctx, "pipeline.enrich_pending")
	defer span.End()

	records, err := p.repo.ListPendingEnrichment(ctx, p.cfg.MaxAttempts, p.cfg.BatchSize)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	summary := &EnrichmentSummary{Selected: len(records)}
	for i, record := range records {
		if i > 0 && p.cfg.EnrichDelay > 0 {
			if err := p.pause(ctx, p.cfg.EnrichDelay); err != nil {
				return summary, err
			}
		}

		outcome, err := p.Enrich(ctx, record)
		if err != nil {
			observability.RecordError(span, err)
			log.Error().Err(err).Str("fundraise_id", record.ID).Msg("enrichment batch aborted")
			return summary, err
		}

		switch outcome {
		case OutcomeEnriched:
			summary.Enriched++
		case OutcomeExhausted:
			summary.Failed++
			summary.Exhausted++
		case OutcomeEnrichmentFailed:
			summary.Failed++
		}
	}

	log.Info().
		Int("selected", summary.Selected).
		Int("enriched", summary.Enriched).
		Int("failed", summary.Failed).
		Int("exhausted", summary.Exhausted).
		Msg("enrichment batch complete")
	return summary, nil
}

// RunSource fetches a source and ingests what it returned.
func (p *FundraisePipeline) RunSource(ctx context.Context, source providers.AnnouncementSource) (*IngestionSummary, error) {
	start := time.Now()
	items, err := source.Fetch(ctx)
	if p.observer != nil {
		p.observer.SourceFetched(source.Name(), time.Since(start), err)
	}
	if err != nil {
		log.Error().Err(err).Str("source", source.Name()).Msg("failed to fetch source")
		return nil, apperrors.NewExternalError("failed to fetch "+source.Name(), err)
	}

	return p.IngestBatch(ctx, source.Name(), items)
}

// afterWrite indexes the record and publishes its change event. Failures
// are logged only.
func (p *FundraisePipeline) afterWrite(ctx context.Context, record *entities.Fundraise, eventType entities.FundraiseEventType, changed map[string]interface{}) {
	if p.search != nil {
		if err := p.search.Index(ctx, record); err != nil {
			log.Warn().Err(err).Str("fundraise_id", record.ID).Msg("failed to index fundraise")
		}
	}
	if p.eventBus != nil {
		event := entities.NewFundraiseEvent(record, eventType, changed)
		if err := p.eventBus.Publish(ctx, providers.EventChannelFundraiseUpdates, event); err != nil {
			log.Warn().Err(err).Str("fundraise_id", record.ID).Msg("failed to publish fundraise event")
		}
	}
}
