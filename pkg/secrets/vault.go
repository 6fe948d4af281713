// Package secrets overlays API keys and credentials stored in HashiCorp
// Vault onto the process environment before configuration is read.
package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cryptofundraises/tracker/pkg/retry"
	"github.com/rs/zerolog/log"
)

// VaultConfig locates one KV secret. Every key in the secret becomes an
// environment variable of the same name.
type VaultConfig struct {
	Enabled   bool
	Addr      string
	Token     string
	Namespace string
	Mount     string
	Path      string
	KVVersion int
	Timeout   time.Duration
	Overwrite bool
}

// VaultResult reports what ApplyVaultSecrets did
type VaultResult struct {
	Enabled bool
	Path    string
	Loaded  int
	Skipped int
}

// LoadVaultConfigFromEnv reads VAULT_* variables. pathOverride replaces
// VAULT_PATH when set.
func LoadVaultConfigFromEnv(pathOverride string) VaultConfig {
	cfg := VaultConfig{
		Enabled:   strings.EqualFold(os.Getenv("VAULT_ENABLED"), "true"),
		Addr:      os.Getenv("VAULT_ADDR"),
		Token:     os.Getenv("VAULT_TOKEN"),
		Namespace: os.Getenv("VAULT_NAMESPACE"),
		Mount:     envOr("VAULT_MOUNT", "secret"),
		Path:      pathOverride,
		KVVersion: 2,
		Timeout:   5 * time.Second,
		Overwrite: strings.EqualFold(os.Getenv("VAULT_OVERWRITE"), "true"),
	}
	if cfg.Path == "" {
		cfg.Path = os.Getenv("VAULT_PATH")
	}
	if v, err := strconv.Atoi(os.Getenv("VAULT_KV_VERSION")); err == nil {
		cfg.KVVersion = v
	}
	if v, err := strconv.Atoi(os.Getenv("VAULT_TIMEOUT_MS")); err == nil && v > 0 {
		cfg.Timeout = time.Duration(v) * time.Millisecond
	}
	return cfg
}

// ApplyVaultSecrets fetches the secret and exports its keys. Existing
// variables win unless Overwrite is set. A disabled config is a no-op.
func ApplyVaultSecrets(ctx context.Context, cfg VaultConfig) (VaultResult, error) {
	result := VaultResult{Enabled: cfg.Enabled, Path: cfg.Path}
	if !cfg.Enabled {
		return result, nil
	}
	if cfg.Addr == "" || cfg.Token == "" || cfg.Path == "" {
		return result, errors.New("vault configuration incomplete (VAULT_ADDR, VAULT_TOKEN, VAULT_PATH)")
	}

	data, err := FetchVaultSecret(ctx, cfg)
	if err != nil {
		return result, err
	}

	for key, value := range data {
		if !cfg.Overwrite && os.Getenv(key) != "" {
			result.Skipped++
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return result, fmt.Errorf("set %s: %w", key, err)
		}
		result.Loaded++
	}

	log.Info().Str("path", cfg.Path).Int("loaded", result.Loaded).Int("skipped", result.Skipped).Msg("applied Vault secrets")
	return result, nil
}

// FetchVaultSecret reads the secret's key/value pairs. Server errors are
// retried; 4xx responses are not.
func FetchVaultSecret(ctx context.Context, cfg VaultConfig) (map[string]string, error) {
	endpoint, err := buildVaultURL(cfg.Addr, cfg.Mount, cfg.Path, cfg.KVVersion)
	if err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: cfg.Timeout}
	var body []byte
	err = retry.Do(ctx, retry.FetchConfig(), "Vault", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("X-Vault-Token", cfg.Token)
		if cfg.Namespace != "" {
			req.Header.Set("X-Vault-Namespace", cfg.Namespace)
		}

		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			err := fmt.Errorf("vault fetch failed: %s %s", resp.Status, strings.TrimSpace(string(b)))
			if resp.StatusCode < 500 {
				return retry.Permanent(err)
			}
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	values, err := decodeKV(body, cfg.KVVersion)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(values))
	for key, raw := range values {
		out[key] = envValue(raw)
	}
	return out, nil
}

func buildVaultURL(addr, mount, path string, kvVersion int) (string, error) {
	mount = strings.Trim(mount, "/")
	path = strings.Trim(path, "/")
	if strings.TrimRight(addr, "/") == "" || mount == "" || path == "" {
		return "", errors.New("vault address, mount, and path must be set")
	}

	segments := []string{"v1", mount, path}
	if kvVersion != 1 {
		segments = []string{"v1", mount, "data", path}
	}
	return url.JoinPath(addr, segments...)
}

// kvResponse covers both engine versions: v1 puts the pairs directly under
// data, v2 nests them one level deeper next to the version metadata.
type kvResponse struct {
	Data json.RawMessage `json:"data"`
}

func decodeKV(body []byte, kvVersion int) (map[string]json.RawMessage, error) {
	var outer kvResponse
	if err := json.Unmarshal(body, &outer); err != nil {
		return nil, fmt.Errorf("decode vault response: %w", err)
	}
	if kvVersion != 1 {
		var inner kvResponse
		if err := json.Unmarshal(outer.Data, &inner); err != nil || len(inner.Data) == 0 {
			return nil, errors.New("vault response missing data for KV v2")
		}
		outer = inner
	}

	var values map[string]json.RawMessage
	if err := json.Unmarshal(outer.Data, &values); err != nil || values == nil {
		return nil, fmt.Errorf("vault response missing data for KV v%d", kvVersion)
	}
	return values, nil
}

// envValue renders a secret value for the environment. Strings are unquoted,
// null becomes empty and anything else keeps its JSON form.
func envValue(raw json.RawMessage) string {
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str
	}
	if string(raw) == "null" {
		return ""
	}
	return string(raw)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
