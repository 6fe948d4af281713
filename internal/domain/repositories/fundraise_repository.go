package repositories

import (
	"context"
	"time"

	"github.com/cryptofundraises/tracker/internal/domain/entities"
)

// FundraiseRepository defines the interface for canonical record storage
type FundraiseRepository interface {
	// Create inserts a new record. A duplicate external ID yields a conflict error.
	Create(ctx context.Context, fundraise *entities.Fundraise) error

	// GetByID retrieves a record by ID
	GetByID(ctx context.Context, id string) (*entities.Fundraise, error)

	// GetBySlug retrieves the most recently announced record with the slug
	GetBySlug(ctx context.Context, slug string) (*entities.Fundraise, error)

	// GetByExternalID retrieves a record by its source identifier
	GetByExternalID(ctx context.Context, externalID string) (*entities.Fundraise, error)

	// GetByProjectAndDate retrieves a record by the bulk-import key
	GetByProjectAndDate(ctx context.Context, projectName string, announcedAt *time.Time) (*entities.Fundraise, error)

	// Update replaces the mutable fields of an existing record
	Update(ctx context.Context, fundraise *entities.Fundraise) error

	// List retrieves records matching the filter
	List(ctx context.Context, filter FundraiseFilter) ([]*entities.Fundraise, error)

	// Count counts records matching the filter, ignoring limit and offset
	Count(ctx context.Context, filter FundraiseFilter) (int, error)

	// ListPendingEnrichment returns unprocessed records below the attempt
	// ceiling, least attempted first, then oldest first
	ListPendingEnrichment(ctx context.Context, maxAttempts, limit int) ([]*entities.Fundraise, error)
}

// FundraiseSearchRepository defines free-text search over records (e.g. Typesense)
type FundraiseSearchRepository interface {
	// Search returns the IDs of matching records, best match first, and the total hit count
	Search(ctx context.Context, params FundraiseSearchParams) ([]string, int, error)

	// Index upserts a record into the index
	Index(ctx context.Context, fundraise *entities.Fundraise) error

	// Delete removes a record from the index
	Delete(ctx context.Context, id string) error
}

// Sort fields accepted by FundraiseFilter
const (
	SortByAnnouncedAt = "announced_at"
	SortByAmount      = "amount"
	SortByProcessedAt = "processed_at"
)

// FundraiseFilter defines filters for listing records
type FundraiseFilter struct {
	Since       *time.Time
	Query       string
	IDs         []string
	MinAmount   *float64
	MaxAmount   *float64
	RoundType   string
	Category    string
	AIProcessed *bool
	SortBy      string
	SortDesc    bool
	Limit       int
	Offset      int
}

// FundraiseSearchParams defines parameters for free-text search
type FundraiseSearchParams struct {
	Query  string
	Limit  int
	Offset int
}

// Default page sizes for list reads
const (
	DefaultListLimit   = 50
	DefaultTickerLimit = 20
)

// DefaultFundraiseFilter is the unfiltered first page: newest announcements first
func DefaultFundraiseFilter() FundraiseFilter {
	return FundraiseFilter{
		SortBy:   SortByAnnouncedAt,
		SortDesc: true,
		Limit:    DefaultListLimit,
	}
}

// TickerFilter selects the latest processed records
func TickerFilter(limit int) FundraiseFilter {
	processed := true
	return FundraiseFilter{
		AIProcessed: &processed,
		SortBy:      SortByAnnouncedAt,
		SortDesc:    true,
		Limit:       limit,
	}
}
