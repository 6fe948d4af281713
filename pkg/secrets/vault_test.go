package secrets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vaultServer(t *testing.T, status int, body string, hits *int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		assert.Equal(t, "root-token", r.Header.Get("X-Vault-Token"))
		assert.Equal(t, "/v1/secret/data/tracker/prod", r.URL.Path)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestApplyVaultSecrets_KVv2(t *testing.T) {
	server := vaultServer(t, http.StatusOK, `{"data":{"data":{"TRACKER_TEST_GEMINI_KEY":"gm-secret","TRACKER_TEST_PORT":8080,"TRACKER_TEST_EXISTING":"vault"}}}`, nil)

	t.Setenv("TRACKER_TEST_GEMINI_KEY", "")
	t.Setenv("TRACKER_TEST_PORT", "")
	t.Setenv("TRACKER_TEST_EXISTING", "local")

	result, err := ApplyVaultSecrets(context.Background(), VaultConfig{
		Enabled: true, Addr: server.URL, Token: "root-token", Mount: "secret", Path: "tracker/prod", KVVersion: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Loaded)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, "gm-secret", os.Getenv("TRACKER_TEST_GEMINI_KEY"))
	assert.Equal(t, "8080", os.Getenv("TRACKER_TEST_PORT"))
	assert.Equal(t, "local", os.Getenv("TRACKER_TEST_EXISTING"))
}

func TestApplyVaultSecrets_Disabled(t *testing.T) {
	result, err := ApplyVaultSecrets(context.Background(), VaultConfig{})
	require.NoError(t, err)
	assert.False(t, result.Enabled)
}

func TestApplyVaultSecrets_Incomplete(t *testing.T) {
	_, err := ApplyVaultSecrets(context.Background(), VaultConfig{Enabled: true, Addr: "http://vault:8200"})
	assert.Error(t, err)
}

func TestFetchVaultSecret_ClientErrorIsNotRetried(t *testing.T) {
	var hits int32
	server := vaultServer(t, http.StatusForbidden, `{"errors":["permission denied"]}`, &hits)

	_, err := FetchVaultSecret(context.Background(), VaultConfig{
		Addr: server.URL, Token: "root-token", Mount: "secret", Path: "tracker/prod", KVVersion: 2,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestBuildVaultURL(t *testing.T) {
	url, err := buildVaultURL("http://vault:8200/", "/secret/", "/tracker/prod", 1)
	require.NoError(t, err)
	assert.Equal(t, "http://vault:8200/v1/secret/tracker/prod", url)

	url, err = buildVaultURL("http://vault:8200", "secret", "tracker/prod", 2)
	require.NoError(t, err)
	assert.Equal(t, "http://vault:8200/v1/secret/data/tracker/prod", url)

	_, err = buildVaultURL("", "secret", "tracker", 2)
	assert.Error(t, err)
}

func TestLoadVaultConfigFromEnv(t *testing.T) {
	t.Setenv("VAULT_ENABLED", "TRUE")
	t.Setenv("VAULT_ADDR", "http://vault:8200")
	t.Setenv("VAULT_MOUNT", "")
	t.Setenv("VAULT_PATH", "tracker/prod")
	t.Setenv("VAULT_KV_VERSION", "1")
	t.Setenv("VAULT_TIMEOUT_MS", "250")

	cfg := LoadVaultConfigFromEnv("")
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "secret", cfg.Mount)
	assert.Equal(t, "tracker/prod", cfg.Path)
	assert.Equal(t, 1, cfg.KVVersion)
	assert.Equal(t, int64(250), cfg.Timeout.Milliseconds())

	assert.Equal(t, "override", LoadVaultConfigFromEnv("override").Path)
}
