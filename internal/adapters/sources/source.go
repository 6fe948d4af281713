package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cryptofundraises/tracker/internal/domain/entities"
	"github.com/cryptofundraises/tracker/internal/domain/providers"
	"github.com/cryptofundraises/tracker/pkg/config"
	"github.com/cryptofundraises/tracker/pkg/retry"
)

const userAgent = "Mozilla/5.0 (compatible; cryptofundraises-tracker/1.0)"

var (
	_ providers.AnnouncementSource = (*CuratedSource)(nil)
	_ providers.AnnouncementSource = (*TelegramSource)(nil)
	_ providers.AnnouncementSource = (*CSVSource)(nil)
)

// New builds the named source from configuration.
func New(name string, cfg config.SourcesConfig, client *http.Client) (providers.AnnouncementSource, error) {
	if client == nil {
		client = NewHTTPClient(30 * time.Second)
	}
	switch strings.ToLower(name) {
	case entities.SourceCurated:
		return NewCuratedSource(cfg.CuratedBaseURL, cfg.CuratedFeed, cfg.CuratedStatus, client), nil
	case entities.SourceTelegram:
		return NewTelegramSource(cfg.TelegramChannel, cfg.TelegramLimit, client), nil
	case entities.SourceCSV:
		if cfg.CSVLocation == "" {
			return nil, fmt.Errorf("csv source requires CSV_LOCATION")
		}
		return NewCSVSource(cfg.CSVLocation, client), nil
	default:
		return nil, fmt.Errorf("unknown source type: %s", name)
	}
}

// NewHTTPClient returns a client tuned for polling feeds.
func NewHTTPClient(timeout time.Duration) *http.Client {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        20,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

// fetchBody GETs url with retries. 4xx responses are not retried.
func fetchBody(ctx context.Context, client *http.Client, name, url, accept string) ([]byte, error) {
	var body []byte
	err := retry.Do(ctx, retry.FetchConfig(), name, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Accept", accept)
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Cache-Control", "no-cache")

		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("%s responded with status %d", name, resp.StatusCode)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return retry.Permanent(err)
			}
			return err
		}

		body, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// pickStr returns the first non-empty string value under any of the keys.
// A dotted key descends into nested objects.
func pickStr(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := lookup(m, k); ok {
			switch s := v.(type) {
			case string:
				if s = strings.TrimSpace(s); s != "" {
					return s
				}
			case json.Number:
				return s.String()
			}
		}
	}
	return ""
}

func lookup(m map[string]any, key string) (any, bool) {
	parts := strings.Split(key, ".")
	var cur any = m
	for _, p := range parts {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = obj[p]; !ok {
			return nil, false
		}
	}
	return cur, true
}
