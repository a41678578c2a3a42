package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

// clearEnv blanks every variable Load reads so the host environment does
// not leak into the test.
func clearEnv(t *testing.T) {
	for _, k := range []string{
		"TENANT_ID", "CLIENT_ID", "CLIENT_SECRET", "MAILBOX_USER",
		"MQ_URL", "REDIS_ADDR", "REDIS_PASSWORD", "JWT_SECRET", "SERVER_PORT",
		"LOG_LEVEL", "LOG_FILE", "ENABLE_LLM", "OPENAI_API_KEY",
		"POLL_SECONDS", "BUILDINGS_FILE",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadLayeredFiles(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
graph:
  tenant_id: ${TENANT}
  client_id: base-client
  client_secret: ""
poller:
  poll_seconds: 20
folder_cache:
  backend: memory
  ttl: 10m
`)
	writeFile(t, dir, "staging.yaml", `
graph:
  client_id: staging-client
poller:
  poll_seconds: 45
  isolate_failures: false
`)
	writeFile(t, dir, "secrets.env", "TENANT=tenant-from-secrets\n")

	t.Setenv("CONFIG_DIR", dir)
	t.Setenv("CONFIG_ENV", "staging")
	t.Setenv("CLIENT_SECRET", "from-env")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "tenant-from-secrets", cfg.Graph.TenantID)
	assert.Equal(t, "staging-client", cfg.Graph.ClientID)
	assert.Equal(t, "from-env", cfg.Graph.ClientSecret)
	assert.Equal(t, 45*time.Second, cfg.PollInterval())
	assert.False(t, cfg.Poller.IsolateFailures)
	assert.Equal(t, "memory", cfg.FolderCache.Backend)
	assert.Equal(t, 10*time.Minute, cfg.FolderCache.TTL)

	// untouched keys keep their defaults
	assert.Equal(t, 10, cfg.Poller.MaxPages)
	assert.Equal(t, "Immobili", cfg.Folders.Properties)
	assert.Equal(t, "https://graph.microsoft.com/v1.0", cfg.Graph.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Graph.Timeout)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "poller:\n  poll_seconds: 20\n")

	t.Setenv("CONFIG_DIR", dir)
	t.Setenv("CONFIG_ENV", "local")
	t.Setenv("TENANT_ID", "t")
	t.Setenv("CLIENT_ID", "c")
	t.Setenv("CLIENT_SECRET", "s")
	t.Setenv("POLL_SECONDS", "5")
	t.Setenv("BUILDINGS_FILE", "/etc/agent/buildings.json")
	t.Setenv("ENABLE_LLM", "true")
	t.Setenv("JWT_SECRET", "jwt")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.PollInterval())
	assert.Equal(t, "/etc/agent/buildings.json", cfg.BuildingsFile)
	assert.True(t, cfg.LLM.Enabled)
	assert.Equal(t, "jwt", cfg.JWT.Secret)
}

func TestLoadRequiresCredentials(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "{}\n")
	t.Setenv("CONFIG_DIR", dir)

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Defaults()
		cfg.Graph.TenantID, cfg.Graph.ClientID, cfg.Graph.ClientSecret = "t", "c", "s"
		return &cfg
	}

	require.NoError(t, valid().Validate())

	cfg := valid()
	cfg.Poller.PollSeconds = 0
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.FolderCache.Backend = "redis"
	assert.Error(t, cfg.Validate())
	cfg.Redis.Addr = "localhost:6379"
	assert.NoError(t, cfg.Validate())

	cfg = valid()
	cfg.FolderCache.Backend = "memcached"
	assert.Error(t, cfg.Validate())
}
