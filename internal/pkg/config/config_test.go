package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// multiServerYAML представляет современный формат конфигурации с несколькими аккаунтами.
const multiServerYAML = `
server:
  host: "127.0.0.1"
  port: 8081
  shutdown_timeout_seconds: 15
telegram_api:
  servers:
    - api_id: 12345
      api_hash: "hash1"
      phone_number: "+111"
      session_file: "tg1.session"
    - api_id: 67890
      api_hash: "hash2"
      phone_number: "+222"
      session_file: "tg2.session"
  health_check_interval_seconds: 60
scraper:
  page_size: 100
  request_delay_ms: 250
  client_retry_pause_seconds: 2
  fetch_bios: true
aggregation:
  recent_limit: 5
  max_recent_chars: 500
export:
  output_dir: "exports"
  format: "xlsx"
processing:
  task_timeout_seconds: 120
  cache_ttl_minutes: 30
logging:
  level: "info"
`

// legacyYAML представляет устаревший формат для проверки обратной совместимости.
const legacyYAML = `
server:
  host: "0.0.0.0"
  port: 8080
  shutdown_timeout_seconds: 5
telegram_api:
  api_id: 98765
  api_hash: "legacy_hash"
  phone_number: "+333"
  session_file: "legacy.session"
  health_check_interval_seconds: 30
processing:
  task_timeout_seconds: 0
  cache_ttl_minutes: 60
logging:
  level: "debug"
`

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	err := os.WriteFile(path, []byte(content), 0644)
	require.NoError(t, err)
	return path
}

func loadTestConfig(t *testing.T, content string) *Config {
	t.Helper()
	cfg, err := loadFromYAML(createTempConfigFile(t, content))
	require.NoError(t, err)
	cfg.applyDefaults()
	return cfg
}

func TestLoadFromYAML(t *testing.T) {
	t.Run("success with multi-server format", func(t *testing.T) {
		cfg := loadTestConfig(t, multiServerYAML)

		assert.Equal(t, "127.0.0.1", cfg.Server.Host)
		assert.Equal(t, 8081, cfg.Server.Port)
		assert.Equal(t, 15, cfg.Server.ShutdownTimeoutSeconds)
		assert.Equal(t, "127.0.0.1:8081", cfg.Address())

		require.Len(t, cfg.TelegramAPI.Servers, 2)
		assert.Equal(t, 12345, cfg.TelegramAPI.Servers[0].APIID)
		assert.Equal(t, "hash1", cfg.TelegramAPI.Servers[0].APIHash)
		assert.Equal(t, 67890, cfg.TelegramAPI.Servers[1].APIID)
		assert.Equal(t, "hash2", cfg.TelegramAPI.Servers[1].APIHash)
		assert.Equal(t, 60, cfg.TelegramAPI.HealthCheckIntervalSeconds)

		assert.Equal(t, 100, cfg.Scraper.PageSize)
		assert.Equal(t, 250, cfg.Scraper.RequestDelayMs)
		assert.True(t, cfg.Scraper.FetchBios)
		assert.Equal(t, 5, cfg.Aggregation.RecentLimit)
		assert.Equal(t, 500, cfg.Aggregation.MaxRecentChars)
		assert.Equal(t, "exports", cfg.Export.OutputDir)
		assert.Equal(t, "xlsx", cfg.Export.Format)
		assert.Equal(t, 120, cfg.Processing.TaskTimeoutSeconds)
		assert.Equal(t, 30, cfg.Processing.CacheTTLMinutes)
		assert.Equal(t, "info", cfg.Logging.Level)
	})

	t.Run("file not found", func(t *testing.T) {
		_, err := loadFromYAML("non_existent_file.yml")
		assert.Error(t, err)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := loadFromYAML(createTempConfigFile(t, "invalid yaml: {"))
		assert.Error(t, err)
	})
}

func TestApplyDefaults(t *testing.T) {
	cfg := loadTestConfig(t, legacyYAML)

	// Незаполненные секции получают значения по умолчанию.
	assert.Equal(t, DefaultScrapePageSize, cfg.Scraper.PageSize)
	assert.Equal(t, int(DefaultScrapeRequestDelay.Milliseconds()), cfg.Scraper.RequestDelayMs)
	assert.Equal(t, DefaultRecentLimit, cfg.Aggregation.RecentLimit)
	assert.Equal(t, DefaultMaxRecentChars, cfg.Aggregation.MaxRecentChars)
	assert.Equal(t, DefaultOutputDir, cfg.Export.OutputDir)
	assert.Equal(t, DefaultExportFormat, cfg.Export.Format)
	assert.Equal(t, DefaultLogFormat, cfg.Logging.Format)

	// Явно заданные значения не перезаписываются.
	assert.Equal(t, 5, cfg.Server.ShutdownTimeoutSeconds)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestGetTelegramServers(t *testing.T) {
	t.Run("from modern config", func(t *testing.T) {
		cfg := loadTestConfig(t, multiServerYAML)
		servers := cfg.GetTelegramServers()
		require.Len(t, servers, 2)
		assert.Equal(t, 12345, servers[0].APIID)
		assert.Equal(t, 67890, servers[1].APIID)
	})

	t.Run("from legacy config", func(t *testing.T) {
		cfg := loadTestConfig(t, legacyYAML)
		servers := cfg.GetTelegramServers()
		require.Len(t, servers, 1)
		assert.Equal(t, 98765, servers[0].APIID)
		assert.Equal(t, "legacy_hash", servers[0].APIHash)
		assert.Equal(t, "legacy.session", servers[0].SessionFile)
	})

	t.Run("empty config returns nil", func(t *testing.T) {
		cfg := &Config{}
		servers := cfg.GetTelegramServers()
		assert.Nil(t, servers)
	})
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutator func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"no servers", func(c *Config) { c.TelegramAPI.Servers = nil }, true},
		{"invalid server api_id", func(c *Config) { c.TelegramAPI.Servers[0].APIID = 0 }, true},
		{"empty server api_hash", func(c *Config) { c.TelegramAPI.Servers[0].APIHash = "" }, true},
		{"empty server phone", func(c *Config) { c.TelegramAPI.Servers[0].PhoneNumber = "" }, true},
		{"invalid port", func(c *Config) { c.Server.Port = 0 }, true},
		{"invalid shutdown timeout", func(c *Config) { c.Server.ShutdownTimeoutSeconds = 0 }, true},
		{"invalid page_size", func(c *Config) { c.Scraper.PageSize = 500 }, true},
		{"negative request_delay", func(c *Config) { c.Scraper.RequestDelayMs = -1 }, true},
		{"invalid recent_limit", func(c *Config) { c.Aggregation.RecentLimit = 0 }, true},
		{"invalid export format", func(c *Config) { c.Export.Format = "pdf" }, true},
		{"invalid task_timeout", func(c *Config) { c.Processing.TaskTimeoutSeconds = -1 }, true},
		{"invalid cache_ttl", func(c *Config) { c.Processing.CacheTTLMinutes = 0 }, true},
		{"invalid health_check", func(c *Config) { c.TelegramAPI.HealthCheckIntervalSeconds = 0 }, true},
		{"invalid logging level", func(c *Config) { c.Logging.Level = "wrong" }, true},
		{"invalid logging format", func(c *Config) { c.Logging.Format = "xml" }, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := loadTestConfig(t, multiServerYAML)
			tc.mutator(cfg)
			err := cfg.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
