package sources

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/cryptofundraises/tracker/internal/domain/entities"
	"github.com/cryptofundraises/tracker/pkg/utils"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"
)

const (
	defaultTelegramBaseURL = "https://t.me"
	minTelegramPageSize    = 100
)

// TelegramSource scrapes the public web preview of a Telegram channel.
type TelegramSource struct {
	baseURL string
	channel string
	limit   int
	client  *http.Client
}

// NewTelegramSource creates a Telegram channel source
func NewTelegramSource(channel string, limit int, client *http.Client) *TelegramSource {
	if channel == "" {
		channel = "cryptofundraises"
	}
	if limit <= 0 {
		limit = 10
	}
	return &TelegramSource{baseURL: defaultTelegramBaseURL, channel: strings.TrimPrefix(channel, "@"), limit: limit, client: client}
}

func (s *TelegramSource) Name() string { return entities.SourceTelegram }

type telegramPost struct {
	id        string
	text      string
	timestamp time.Time
	rawTime   string
}

// Fetch returns the newest posts on the channel page.
func (s *TelegramSource) Fetch(ctx context.Context) ([]entities.RawAnnouncement, error) {
	pageURL := fmt.Sprintf("%s/s/%s", strings.TrimRight(s.baseURL, "/"), s.channel)

	body, err := fetchBody(ctx, s.client, "telegram feed", pageURL, "text/html")
	if err != nil {
		return nil, err
	}
	if len(body) < minTelegramPageSize {
		return nil, fmt.Errorf("invalid response from telegram: %d bytes", len(body))
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse telegram HTML: %w", err)
	}

	posts := collectTelegramPosts(doc)
	if len(posts) == 0 {
		log.Warn().Str("channel", s.channel).Msg("no posts found in telegram page")
	}

	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].timestamp.After(posts[j].timestamp)
	})
	if len(posts) > s.limit {
		posts = posts[:s.limit]
	}

	out := make([]entities.RawAnnouncement, 0, len(posts))
	for _, p := range posts {
		ts := p.timestamp
		link := fmt.Sprintf("%s/%s", defaultTelegramBaseURL, p.id)
		out = append(out, entities.RawAnnouncement{
			ExternalID:       "telegram:" + p.id,
			Content:          p.text,
			Source:           entities.SourceTelegram,
			Username:         s.channel,
			SourceURL:        link,
			SubmittedAt:      &ts,
			Date:             p.rawTime,
			AnnouncementLink: link,
		})
	}

	log.Info().Str("channel", s.channel).Int("count", len(out)).Msg("fetched telegram posts")
	return out, nil
}

func collectTelegramPosts(doc *html.Node) []telegramPost {
	var posts []telegramPost
	var walk func(*html.Node)

	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "div" && hasClass(n, "tgme_widget_message") {
			if id := attr(n, "data-post"); id != "" {
				if post, ok := parseTelegramPost(n, id); ok {
					posts = append(posts, post)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return posts
}

func parseTelegramPost(n *html.Node, id string) (telegramPost, bool) {
	textNode := findNode(n, func(c *html.Node) bool {
		return c.Type == html.ElementNode && hasClass(c, "tgme_widget_message_text")
	})
	timeNode := findNode(n, func(c *html.Node) bool {
		return c.Type == html.ElementNode && c.Data == "time" && attr(c, "datetime") != ""
	})
	if textNode == nil || timeNode == nil {
		return telegramPost{}, false
	}

	text := strings.TrimSpace(messageText(textNode))
	rawTime := attr(timeNode, "datetime")
	ts := utils.ParseDate(rawTime)
	if text == "" || ts == nil {
		return telegramPost{}, false
	}

	return telegramPost{id: id, text: text, timestamp: *ts, rawTime: rawTime}, true
}

// messageText flattens a message body, turning <br> into newlines.
func messageText(n *html.Node) string {
	var sb strings.Builder
	var extract func(*html.Node)

	extract = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			sb.WriteString(n.Data)
		case n.Type == html.ElementNode && n.Data == "br":
			sb.WriteString("\n")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)

	return sb.String()
}

func findNode(n *html.Node, match func(*html.Node) bool) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if match(c) {
			return c
		}
		if found := findNode(c, match); found != nil {
			return found
		}
	}
	return nil
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
