package config

import "time"

// Default values for configuration.
const (
	// Server defaults
	DefaultServerHost      = "0.0.0.0"
	DefaultServerPort      = 8080
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 15 * time.Second

	// Processing defaults
	DefaultTaskTimeout = 600 * time.Second
	DefaultCacheTTL    = 60 * time.Minute

	// Telegram API defaults
	DefaultHealthCheckInterval = 30 * time.Second

	// Scraper defaults
	DefaultScrapePageSize         = 200
	DefaultScrapeRequestDelay     = 500 * time.Millisecond
	DefaultScrapeOperationTimeout = 30 * time.Second
	DefaultScrapeClientRetryPause = 1 * time.Second

	// Aggregation defaults
	DefaultRecentLimit    = 10
	DefaultMaxRecentChars = 2000

	// Export defaults
	DefaultOutputDir    = "output"
	DefaultExportFormat = "csv"

	// Logging defaults
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)
