package config

// Default values for optional bot settings.
const (
	DefaultPollingIntervalSeconds = 5
	DefaultHTTPTimeoutSeconds     = 30
	DefaultLogLevel               = "info"
	DefaultLogFormat              = "json"
)
