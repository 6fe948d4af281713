package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/cryptofundraises/tracker/internal/domain/entities"
	"github.com/cryptofundraises/tracker/pkg/utils"
	"github.com/rs/zerolog/log"
)

const defaultCuratedBaseURL = "https://curatedotfun-floral-sun-1539.fly.dev"

// CuratedSource reads approved submissions from the curation API.
type CuratedSource struct {
	baseURL string
	feed    string
	status  string
	client  *http.Client
}

// NewCuratedSource creates a curated submissions source
func NewCuratedSource(baseURL, feed, status string, client *http.Client) *CuratedSource {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = defaultCuratedBaseURL
	}
	if feed == "" {
		feed = "cryptofundraise"
	}
	if status == "" {
		status = "approved"
	}
	return &CuratedSource{baseURL: baseURL, feed: feed, status: status, client: client}
}

func (s *CuratedSource) Name() string { return entities.SourceCurated }

// Fetch returns one announcement per submission that carries an id and content.
func (s *CuratedSource) Fetch(ctx context.Context) ([]entities.RawAnnouncement, error) {
	endpoint := fmt.Sprintf("%s/api/submissions/%s?status=%s", s.baseURL, url.PathEscape(s.feed), url.QueryEscape(s.status))

	body, err := fetchBody(ctx, s.client, "curated submissions", endpoint, "application/json")
	if err != nil {
		return nil, err
	}

	items, err := decodeSubmissions(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode curated submissions: %w", err)
	}

	out := make([]entities.RawAnnouncement, 0, len(items))
	for _, item := range items {
		raw, ok := submissionToRaw(item)
		if !ok {
			log.Warn().Str("source", s.Name()).Msg("skipping submission without id or content")
			continue
		}
		out = append(out, raw)
	}

	log.Info().Str("source", s.Name()).Int("count", len(out)).Msg("fetched submissions")
	return out, nil
}

// decodeSubmissions accepts a bare array or an object wrapping one.
func decodeSubmissions(body []byte) ([]map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, err
	}

	var list []any
	switch v := payload.(type) {
	case []any:
		list = v
	case map[string]any:
		for _, key := range []string{"items", "submissions", "data"} {
			if inner, ok := v[key].([]any); ok {
				list = inner
				break
			}
		}
		if list == nil {
			return nil, fmt.Errorf("unexpected submissions payload")
		}
	default:
		return nil, fmt.Errorf("unexpected submissions payload")
	}

	items := make([]map[string]any, 0, len(list))
	for _, entry := range list {
		if m, ok := entry.(map[string]any); ok {
			items = append(items, m)
		}
	}
	return items, nil
}

func submissionToRaw(item map[string]any) (entities.RawAnnouncement, bool) {
	id := pickStr(item, "tweetId", "tweet_id", "id")
	content := pickStr(item, "content", "tweet_data.text", "text")
	if id == "" || content == "" {
		return entities.RawAnnouncement{}, false
	}

	username := utils.StripHandle(pickStr(item, "username", "tweet_data.author_username", "author_username"))
	submittedAt := pickStr(item, "submittedAt", "submitted_at", "created_at", "createdAt")
	link := pickStr(item, "tweet_url", "tweetUrl")
	if link == "" && username != "" {
		link = fmt.Sprintf("https://twitter.com/%s/status/%s", username, id)
	}

	return entities.RawAnnouncement{
		ExternalID:       id,
		Content:          content,
		CuratorNotes:     pickStr(item, "curatorNotes", "curator_notes"),
		Source:           entities.SourceCurated,
		Username:         username,
		SourceURL:        link,
		SubmittedAt:      utils.ParseDate(submittedAt),
		Project:          username,
		Date:             submittedAt,
		AnnouncementLink: link,
	}, true
}
