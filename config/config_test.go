package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const minimalConfig = `
source:
  base_url: https://dumps.wikimedia.org/other/pageviews/2025/2025-12
  execution_hour: 20251210-16
paths:
  raw_dir: /data/raw
  staging_dir: /data/staging
postgres:
  database: pageviews
`

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, 60, cfg.Source.TimeoutSeconds)
	assert.Equal(t, 60*time.Second, cfg.DownloadTimeout())
	assert.Equal(t, "logs/analysis_result.log", cfg.Paths.AnalysisLog)
	assert.Equal(t, "logs/run_summary.json", cfg.Paths.RunSummary)
	assert.Equal(t, "localhost", cfg.Postgres.Host)
	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.Equal(t, "disable", cfg.Postgres.SSLMode)
	assert.Equal(t, 3, cfg.Retry.Retries)
	assert.Equal(t, 30*time.Second, cfg.RetryDelay())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadConfig_ExplicitValuesWin(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
source:
  base_url: http://localhost:9999
  execution_hour: 20251210-16
  timeout_seconds: 5
paths:
  raw_dir: raw
  staging_dir: staging
postgres:
  host: db.internal
  port: 5433
  database: pageviews
  user: etl
  password: secret
  sslmode: require
retry:
  retries: 1
  delay_seconds: 2
logging:
  level: debug
  format: console
`))
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.DownloadTimeout())
	assert.Equal(t, 1, cfg.Retry.Retries)
	assert.Equal(t, 2*time.Second, cfg.RetryDelay())
	assert.Equal(t,
		"host=db.internal port=5433 user=etl password=secret dbname=pageviews sslmode=require",
		cfg.GetPostgresConnectionString())
}

func TestLoadConfig_MissingRequiredValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "missing base_url",
			content: `
source:
  execution_hour: 20251210-16
paths:
  raw_dir: raw
  staging_dir: staging
postgres:
  database: pageviews
`,
		},
		{
			name: "missing execution_hour",
			content: `
source:
  base_url: http://localhost
paths:
  raw_dir: raw
  staging_dir: staging
postgres:
  database: pageviews
`,
		},
		{
			name: "missing staging_dir",
			content: `
source:
  base_url: http://localhost
  execution_hour: 20251210-16
paths:
  raw_dir: raw
postgres:
  database: pageviews
`,
		},
		{
			name: "missing database",
			content: `
source:
  base_url: http://localhost
  execution_hour: 20251210-16
paths:
  raw_dir: raw
  staging_dir: staging
`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfig)
		})
	}
}

func TestLoadConfig_FileMissing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
