// internal/common/config/loader_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimalConfig = `
database:
  postgres:
    host: localhost
    database: loans
    user: loans
  redis:
    address: localhost:6379
auth:
  jwt:
    secret: ${TEST_JWT_SECRET}
`

// ==========================
// Loading
// ==========================

func TestLoadFromFile_DefaultsAndExpansion(t *testing.T) {
	t.Setenv("TEST_JWT_SECRET", "s3cret")
	t.Setenv("APP_ENVIRONMENT", "")

	cfg, err := LoadFromFile(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Auth.JWT.Secret)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, ":9090", cfg.Server.MetricsAddress)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
	assert.Equal(t, "loan_applications", cfg.Database.Elasticsearch.Index)
	assert.Equal(t, "loan-application-review", cfg.Camunda.ReviewProcess)
	assert.Equal(t, 30*time.Minute, cfg.Auth.AccessTTL())
	assert.Equal(t, 30*24*time.Hour, cfg.Auth.RefreshTTL())
	assert.Equal(t, 30*time.Minute, GetDuration(cfg.MCP.SessionIdleTimeout))
	assert.Equal(t, int64(5*1024*1024), cfg.Upload.MaxFileSize)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "@every 1m", cfg.Scheduler.StatusGaugeSpec)
	assert.Equal(t, "loan-origination", cfg.Observability.ServiceName)
	assert.False(t, cfg.App.IsProduction())
}

func TestLoadFromFile_EnvFallbacks(t *testing.T) {
	t.Setenv("TEST_JWT_SECRET", "s3cret")
	t.Setenv("MCP_API_KEY", "mcp-key")
	t.Setenv("INFRA_PROVIDER", "GCP")

	cfg, err := LoadFromFile(writeConfig(t, minimalConfig+"mcp:\n  enabled: true\n"))
	require.NoError(t, err)
	assert.Equal(t, "mcp-key", cfg.MCP.APIKey)
	assert.Equal(t, "GCP", cfg.Storage.Provider)
}

func TestLoadFromFile_WorkerDefaults(t *testing.T) {
	t.Setenv("TEST_JWT_SECRET", "s3cret")

	cfg, err := LoadFromFile(writeConfig(t, minimalConfig+`
workers:
  send-notification:
    enabled: true
`))
	require.NoError(t, err)

	w := GetWorkerConfig(cfg, "send-notification")
	assert.True(t, w.Enabled)
	assert.Equal(t, 5, w.MaxJobsActive)
	assert.Equal(t, 30000, w.Timeout)
	assert.Equal(t, 3, w.MaxRetries)

	assert.True(t, IsWorkerEnabled(cfg, "validate-application-data"))
	assert.Equal(t, 5, GetWorkerConfig(cfg, "validate-application-data").MaxJobsActive)
}

// ==========================
// Validation
// ==========================

func TestLoadFromFile_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing jwt secret",
			body:    "database:\n  postgres:\n    host: h\n    database: d\n    user: u\n  redis:\n    address: r\n",
			wantErr: "auth.jwt.secret is required",
		},
		{
			name:    "camunda without broker",
			body:    minimalConfig + "camunda:\n  enabled: true\n",
			wantErr: "camunda.broker_address is required",
		},
		{
			name:    "mcp without key",
			body:    minimalConfig + "mcp:\n  enabled: true\n",
			wantErr: "mcp.api_key is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_JWT_SECRET", "s3cret")
			t.Setenv("JWT_SECRET", "")
			t.Setenv("MCP_API_KEY", "")

			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestAppConfig_IsProduction(t *testing.T) {
	assert.True(t, AppConfig{Environment: "production"}.IsProduction())
	assert.False(t, AppConfig{Environment: "staging"}.IsProduction())
}
