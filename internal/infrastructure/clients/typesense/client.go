package typesense

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cryptofundraises/tracker/pkg/config"
	"github.com/cryptofundraises/tracker/pkg/retry"
	"github.com/rs/zerolog/log"
	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"
)

// FundraisesCollection holds one document per fundraise record
const FundraisesCollection = "fundraises"

// Client wraps a Typesense client that passed a health check
type Client struct {
	client *typesense.Client
}

// NewClient waits for the server at cfg.URL to report healthy
func NewClient(ctx context.Context, cfg *config.TypesenseConfig) (*Client, error) {
	client := typesense.NewClient(
		typesense.WithServer(cfg.URL),
		typesense.WithAPIKey(cfg.APIKey),
		typesense.WithConnectionTimeout(5*time.Second),
	)

	healthy := func() error {
		ok, err := client.Health(ctx, 2*time.Second)
		switch {
		case err != nil:
			return err
		case !ok:
			return errors.New("typesense reported unhealthy")
		}
		return nil
	}
	if err := retry.Do(ctx, retry.DefaultConfig(), "Typesense", healthy); err != nil {
		return nil, fmt.Errorf("failed to connect to Typesense: %w", err)
	}

	log.Info().Str("url", cfg.URL).Msg("connected to Typesense")
	return &Client{client: client}, nil
}

// Client returns the underlying Typesense client
func (c *Client) Client() *typesense.Client {
	return c.client
}

// InitSchema creates the fundraises collection when it is missing
func (c *Client) InitSchema(ctx context.Context) error {
	exists, err := c.hasCollection(ctx)
	if err != nil || exists {
		return err
	}

	if _, err := c.client.Collections().Create(ctx, FundraiseSchema()); err != nil {
		return fmt.Errorf("failed to create collection %s: %w", FundraisesCollection, err)
	}
	log.Info().Str("collection", FundraisesCollection).Msg("created Typesense collection")
	return nil
}

// ResetCollection drops the fundraises collection, if present, and recreates
// it empty
func (c *Client) ResetCollection(ctx context.Context) error {
	exists, err := c.hasCollection(ctx)
	if err != nil {
		return err
	}
	if exists {
		if _, err := c.client.Collection(FundraisesCollection).Delete(ctx); err != nil {
			return fmt.Errorf("failed to drop collection %s: %w", FundraisesCollection, err)
		}
		log.Warn().Str("collection", FundraisesCollection).Msg("dropped Typesense collection")
	}
	return c.InitSchema(ctx)
}

func (c *Client) hasCollection(ctx context.Context) (bool, error) {
	collections, err := c.client.Collections().Retrieve(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list collections: %w", err)
	}
	for _, col := range collections {
		if col.Name == FundraisesCollection {
			return true, nil
		}
	}
	return false, nil
}

// FundraiseSchema describes the indexed projection of a record
func FundraiseSchema() *api.CollectionSchema {
	return &api.CollectionSchema{
		Name: FundraisesCollection,
		Fields: []api.Field{
			{Name: "id", Type: "string"},
			{Name: "slug", Type: "string"},
			{Name: "project_name", Type: "string"},
			{Name: "description", Type: "string"},
			{Name: "lead_investor", Type: "string", Optional: pointer.True()},
			{Name: "other_investors", Type: "string[]", Optional: pointer.True()},
			{Name: "tags", Type: "string[]", Facet: pointer.True(), Optional: pointer.True()},
			{Name: "round_type", Type: "string", Facet: pointer.True(), Optional: pointer.True()},
			{Name: "category", Type: "string", Facet: pointer.True(), Optional: pointer.True()},
			{Name: "token", Type: "string", Optional: pointer.True()},
			{Name: "amount_raised_usd", Type: "float", Optional: pointer.True()},
			{Name: "announced_at", Type: "int64"},
		},
		DefaultSortingField: pointer.String("announced_at"),
	}
}
