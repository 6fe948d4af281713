package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/cryptofundraises/tracker/internal/domain/entities"
	"github.com/cryptofundraises/tracker/internal/domain/repositories"
	tsclient "github.com/cryptofundraises/tracker/internal/infrastructure/clients/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"
)

const queryFields = "project_name,description,lead_investor,other_investors,tags,token"

// TypesenseAdapter implements fundraise search using Typesense
type TypesenseAdapter struct {
	client *tsclient.Client
}

var _ repositories.FundraiseSearchRepository = (*TypesenseAdapter)(nil)

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client *tsclient.Client) *TypesenseAdapter {
	return &TypesenseAdapter{client: client}
}

// Index upserts a record into the collection
func (a *TypesenseAdapter) Index(ctx context.Context, fundraise *entities.Fundraise) error {
	document := buildFundraiseDocument(fundraise)
	_, err := a.client.Client().Collection(tsclient.FundraisesCollection).Documents().Upsert(ctx, document)
	if err != nil {
		return fmt.Errorf("failed to index fundraise: %w", err)
	}
	return nil
}

// Delete removes a record from the index
func (a *TypesenseAdapter) Delete(ctx context.Context, id string) error {
	_, err := a.client.Client().Collection(tsclient.FundraisesCollection).Document(id).Delete(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete fundraise from index: %w", err)
	}
	return nil
}

// Search returns matching record IDs in relevance order
func (a *TypesenseAdapter) Search(ctx context.Context, params repositories.FundraiseSearchParams) ([]string, int, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 20
	}
	q := strings.TrimSpace(params.Query)
	if q == "" {
		q = "*"
	}

	searchParams := &api.SearchCollectionParams{
		Q:       pointer.String(q),
		QueryBy: pointer.String(queryFields),
		SortBy:  pointer.String("_text_match:desc,announced_at:desc"),
		Page:    pointer.Int(params.Offset/limit + 1),
		PerPage: pointer.Int(limit),
	}

	result, err := a.client.Client().Collection(tsclient.FundraisesCollection).Documents().Search(ctx, searchParams)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search fundraises: %w", err)
	}

	ids := []string{}
	if result.Hits != nil {
		for _, hit := range *result.Hits {
			if hit.Document == nil {
				continue
			}
			if id, ok := (*hit.Document)["id"].(string); ok && id != "" {
				ids = append(ids, id)
			}
		}
	}

	total := len(ids)
	if result.Found != nil {
		total = *result.Found
	}
	return ids, total, nil
}

func buildFundraiseDocument(f *entities.Fundraise) map[string]interface{} {
	doc := map[string]interface{}{
		"id":              f.ID,
		"slug":            f.Slug,
		"project_name":    f.ProjectName,
		"description":     f.Description,
		"other_investors": nonNil(f.OtherInvestors),
		"tags":            nonNil(f.Tags),
		"announced_at":    int64(0),
	}
	if f.AnnouncedAt != nil {
		doc["announced_at"] = f.AnnouncedAt.Unix()
	}
	if f.AmountRaisedUSD != nil {
		doc["amount_raised_usd"] = *f.AmountRaisedUSD
	}
	optional := map[string]*string{
		"lead_investor": f.LeadInvestor,
		"round_type":    f.RoundType,
		"category":      f.Category,
		"token":         f.Token,
	}
	for field, value := range optional {
		if value != nil && *value != "" {
			doc[field] = *value
		}
	}
	return doc
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
