package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cryptofundraises/tracker/internal/domain/entities"
	"github.com/cryptofundraises/tracker/internal/domain/repositories"
	"github.com/cryptofundraises/tracker/internal/infrastructure/clients/postgres"
	apperrors "github.com/cryptofundraises/tracker/pkg/errors"
	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const (
	fundraisesTable     = "fundraises"
	uniqueViolationCode = "23505"
)

var fundraiseColumns = []interface{}{
	"id", "external_id", "project_name", "amount_raised_usd", "round_type",
	"lead_investor", "other_investors", "token", "description", "curator_notes",
	"category", "tags", "website", "valuation", "announcement_link", "social_links",
	"source", "announcement_username", "source_url", "announced_at",
	"processed_at", "ai_processed", "ai_processing_attempts", "slug",
	"created_at", "updated_at",
}

// FundraiseAdapter implements FundraiseRepository on PostgreSQL
type FundraiseAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewFundraiseAdapter creates a new fundraise adapter
func NewFundraiseAdapter(client *postgres.Client) repositories.FundraiseRepository {
	return &FundraiseAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create inserts a new record
func (a *FundraiseAdapter) Create(ctx context.Context, fundraise *entities.Fundraise) error {
	if fundraise.ID == "" {
		fundraise.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if fundraise.CreatedAt.IsZero() {
		fundraise.CreatedAt = now
	}
	fundraise.UpdatedAt = now

	record := a.record(fundraise)
	record["id"] = fundraise.ID
	record["external_id"] = nullString(fundraise.ExternalID)
	record["created_at"] = fundraise.CreatedAt

	query, args, err := a.db.Insert(fundraisesTable).Prepared(true).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode {
			return apperrors.NewConflictError(fmt.Sprintf("fundraise with external_id %s already exists", fundraise.ExternalID), err)
		}
		return apperrors.NewInternalError("failed to create fundraise", err)
	}

	return nil
}

// GetByID retrieves a record by ID
func (a *FundraiseAdapter) GetByID(ctx context.Context, id string) (*entities.Fundraise, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("fundraise with id %s not found", id))
	}
	return a.getOne(ctx, a.selectFundraises().Where(goqu.Ex{"id": id}), "id "+id)
}

// GetBySlug retrieves the most recently announced record with the slug
func (a *FundraiseAdapter) GetBySlug(ctx context.Context, slug string) (*entities.Fundraise, error) {
	ds := a.selectFundraises().
		Where(goqu.Ex{"slug": slug}).
		Order(goqu.I("announced_at").Desc().NullsLast(), goqu.I("created_at").Desc())
	return a.getOne(ctx, ds, "slug "+slug)
}

// GetByExternalID retrieves a record by its source identifier
func (a *FundraiseAdapter) GetByExternalID(ctx context.Context, externalID string) (*entities.Fundraise, error) {
	return a.getOne(ctx, a.selectFundraises().Where(goqu.Ex{"external_id": externalID}), "external_id "+externalID)
}

// GetByProjectAndDate retrieves a record by case-insensitive project name and announcement date
func (a *FundraiseAdapter) GetByProjectAndDate(ctx context.Context, projectName string, announcedAt *time.Time) (*entities.Fundraise, error) {
	dateCond := goqu.C("announced_at").IsNull()
	if announcedAt != nil {
		dateCond = goqu.C("announced_at").Eq(announcedAt.UTC())
	}

	ds := a.selectFundraises().
		Where(
			goqu.Func("LOWER", goqu.C("project_name")).Eq(strings.ToLower(projectName)),
			dateCond,
		).
		Order(goqu.I("created_at").Asc())
	return a.getOne(ctx, ds, "project "+projectName)
}

// Update replaces the mutable fields of an existing record
func (a *FundraiseAdapter) Update(ctx context.Context, fundraise *entities.Fundraise) error {
	fundraise.UpdatedAt = time.Now().UTC()

	query, args, err := a.db.Update(fundraisesTable).
		Prepared(true).
		Set(a.record(fundraise)).
		Where(goqu.Ex{"id": fundraise.ID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update fundraise", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("fundraise with id %s not found", fundraise.ID))
	}

	return nil
}

// List retrieves records matching the filter
func (a *FundraiseAdapter) List(ctx context.Context, filter repositories.FundraiseFilter) ([]*entities.Fundraise, error) {
	ds := a.selectFundraises().Where(filterExpressions(filter)...)
	ds = ds.Order(orderFor(filter)...)

	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	return a.getMany(ctx, ds)
}

// Count counts records matching the filter
func (a *FundraiseAdapter) Count(ctx context.Context, filter repositories.FundraiseFilter) (int, error) {
	query, args, err := a.db.From(fundraisesTable).
		Prepared(true).
		Select(goqu.COUNT(goqu.Star())).
		Where(filterExpressions(filter)...).
		ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build count query", err)
	}

	var count int
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, apperrors.NewInternalError("failed to count fundraises", err)
	}
	return count, nil
}

// ListPendingEnrichment returns unprocessed records below the attempt ceiling
func (a *FundraiseAdapter) ListPendingEnrichment(ctx context.Context, maxAttempts, limit int) ([]*entities.Fundraise, error) {
	ds := a.selectFundraises().
		Where(
			goqu.C("ai_processed").IsFalse(),
			goqu.C("ai_processing_attempts").Lt(maxAttempts),
		).
		Order(goqu.I("ai_processing_attempts").Asc(), goqu.I("created_at").Asc())
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}
	return a.getMany(ctx, ds)
}

func (a *FundraiseAdapter) selectFundraises() *goqu.SelectDataset {
	return a.db.From(fundraisesTable).Prepared(true).Select(fundraiseColumns...)
}

func (a *FundraiseAdapter) getOne(ctx context.Context, ds *goqu.SelectDataset, what string) (*entities.Fundraise, error) {
	query, args, err := ds.Limit(1).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	fundraise, err := scanFundraise(a.client.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("fundraise with %s not found", what))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get fundraise", err)
	}
	return fundraise, nil
}

func (a *FundraiseAdapter) getMany(ctx context.Context, ds *goqu.SelectDataset) ([]*entities.Fundraise, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list fundraises", err)
	}
	defer rows.Close()

	fundraises := []*entities.Fundraise{}
	for rows.Next() {
		fundraise, err := scanFundraise(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan fundraise", err)
		}
		fundraises = append(fundraises, fundraise)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate fundraises", err)
	}

	return fundraises, nil
}

// record holds every column Update may touch. Create adds the immutable ones.
func (a *FundraiseAdapter) record(f *entities.Fundraise) goqu.Record {
	return goqu.Record{
		"project_name":           f.ProjectName,
		"amount_raised_usd":      nullFloat(f.AmountRaisedUSD),
		"round_type":             nullStringPtr(f.RoundType),
		"lead_investor":          nullStringPtr(f.LeadInvestor),
		"other_investors":        pq.Array(nonNil(f.OtherInvestors)),
		"token":                  nullStringPtr(f.Token),
		"description":            f.Description,
		"curator_notes":          nullStringPtr(f.CuratorNotes),
		"category":               nullStringPtr(f.Category),
		"tags":                   pq.Array(nonNil(f.Tags)),
		"website":                nullStringPtr(f.Website),
		"valuation":              nullStringPtr(f.Valuation),
		"announcement_link":      nullStringPtr(f.AnnouncementLink),
		"social_links":           nullStringPtr(f.SocialLinks),
		"source":                 f.Source,
		"announcement_username":  nullStringPtr(f.AnnouncementUsername),
		"source_url":             nullStringPtr(f.SourceURL),
		"announced_at":           nullTime(f.AnnouncedAt),
		"processed_at":           f.ProcessedAt,
		"ai_processed":           f.AIProcessed,
		"ai_processing_attempts": f.AIProcessingAttempts,
		"slug":                   f.Slug,
		"updated_at":             f.UpdatedAt,
	}
}

func filterExpressions(filter repositories.FundraiseFilter) []exp.Expression {
	var where []exp.Expression

	if filter.Since != nil {
		where = append(where, goqu.C("announced_at").Gte(filter.Since.UTC()))
	}
	if len(filter.IDs) > 0 {
		where = append(where, goqu.C("id").In(filter.IDs))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		pattern := "%" + q + "%"
		where = append(where, goqu.Or(
			goqu.C("project_name").ILike(pattern),
			goqu.C("description").ILike(pattern),
			goqu.C("lead_investor").ILike(pattern),
			goqu.L("array_to_string(other_investors, ' ') ILIKE ?", pattern),
		))
	}
	if filter.MinAmount != nil {
		where = append(where, goqu.C("amount_raised_usd").Gte(*filter.MinAmount))
	}
	if filter.MaxAmount != nil {
		where = append(where, goqu.C("amount_raised_usd").Lte(*filter.MaxAmount))
	}
	if filter.RoundType != "" {
		where = append(where, goqu.C("round_type").ILike(filter.RoundType))
	}
	if filter.Category != "" {
		where = append(where, goqu.C("category").ILike(filter.Category))
	}
	if filter.AIProcessed != nil {
		where = append(where, goqu.C("ai_processed").Eq(*filter.AIProcessed))
	}

	return where
}

func orderFor(filter repositories.FundraiseFilter) []exp.OrderedExpression {
	column := "announced_at"
	switch filter.SortBy {
	case repositories.SortByAmount:
		column = "amount_raised_usd"
	case repositories.SortByProcessedAt:
		column = "processed_at"
	}

	primary := goqu.I(column).Asc().NullsLast()
	if filter.SortDesc {
		primary = goqu.I(column).Desc().NullsLast()
	}
	return []exp.OrderedExpression{primary, goqu.I("created_at").Desc()}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFundraise(row rowScanner) (*entities.Fundraise, error) {
	f := &entities.Fundraise{}
	var (
		externalID, roundType, leadInvestor, token, category sql.NullString
		curatorNotes                                         sql.NullString
		website, valuation, announcementLink, socialLinks    sql.NullString
		username, sourceURL                                  sql.NullString
		amount                                               sql.NullFloat64
		announcedAt                                          sql.NullTime
	)

	err := row.Scan(
		&f.ID,
		&externalID,
		&f.ProjectName,
		&amount,
		&roundType,
		&leadInvestor,
		pq.Array(&f.OtherInvestors),
		&token,
		&f.Description,
		&curatorNotes,
		&category,
		pq.Array(&f.Tags),
		&website,
		&valuation,
		&announcementLink,
		&socialLinks,
		&f.Source,
		&username,
		&sourceURL,
		&announcedAt,
		&f.ProcessedAt,
		&f.AIProcessed,
		&f.AIProcessingAttempts,
		&f.Slug,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	f.ExternalID = externalID.String
	f.AmountRaisedUSD = floatPtr(amount)
	f.RoundType = stringPtr(roundType)
	f.LeadInvestor = stringPtr(leadInvestor)
	f.Token = stringPtr(token)
	f.CuratorNotes = stringPtr(curatorNotes)
	f.Category = stringPtr(category)
	f.Website = stringPtr(website)
	f.Valuation = stringPtr(valuation)
	f.AnnouncementLink = stringPtr(announcementLink)
	f.SocialLinks = stringPtr(socialLinks)
	f.AnnouncementUsername = stringPtr(username)
	f.SourceURL = stringPtr(sourceURL)
	if announcedAt.Valid {
		t := announcedAt.Time.UTC()
		f.AnnouncedAt = &t
	}
	f.OtherInvestors = nonNil(f.OtherInvestors)
	f.Tags = nonNil(f.Tags)

	return f, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return nullString(*s)
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func floatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	v := nf.Float64
	return &v
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
