// Package config предоставляет управление конфигурацией приложения
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Server содержит конфигурацию сервера
type Server struct {
	Host                   string `json:"host" yaml:"host"`
	Port                   int    `json:"port" yaml:"port"`
	ShutdownTimeoutSeconds int    `json:"shutdown_timeout_seconds" yaml:"shutdown_timeout_seconds"`
}

// TelegramAPIServer содержит конфигурацию одного аккаунта Telegram API
type TelegramAPIServer struct {
	APIID       int    `json:"api_id" yaml:"api_id"`
	APIHash     string `json:"api_hash" yaml:"api_hash"`
	PhoneNumber string `json:"phone_number" yaml:"phone_number"`
	SessionFile string `json:"session_file" yaml:"session_file"`
}

// TelegramAPI содержит конфигурацию Telegram API
type TelegramAPI struct {
	// Для обратной совместимости. Используйте Servers.
	APIID       int    `json:"api_id,omitempty" yaml:"api_id,omitempty"`
	APIHash     string `json:"api_hash,omitempty" yaml:"api_hash,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty" yaml:"phone_number,omitempty"`
	SessionFile string `json:"session_file,omitempty" yaml:"session_file,omitempty"`

	// Новый формат для нескольких аккаунтов
	Servers []TelegramAPIServer `json:"servers" yaml:"servers"`

	HealthCheckIntervalSeconds int `json:"health_check_interval_seconds" yaml:"health_check_interval_seconds"`
}

// Scraper содержит конфигурацию драйвера выгрузки
type Scraper struct {
	PageSize                int  `json:"page_size" yaml:"page_size"`
	RequestDelayMs          int  `json:"request_delay_ms" yaml:"request_delay_ms"`
	OperationTimeoutSeconds int  `json:"operation_timeout_seconds" yaml:"operation_timeout_seconds"`
	ClientRetryPauseSeconds int  `json:"client_retry_pause_seconds" yaml:"client_retry_pause_seconds"`
	FetchBios               bool `json:"fetch_bios" yaml:"fetch_bios"`
}

// Aggregation содержит конфигурацию построения сводных строк
type Aggregation struct {
	RecentLimit    int `json:"recent_limit" yaml:"recent_limit"`
	MaxRecentChars int `json:"max_recent_chars" yaml:"max_recent_chars"`
}

// Export содержит конфигурацию вывода результатов
type Export struct {
	OutputDir string `json:"output_dir" yaml:"output_dir"`
	Format    string `json:"format" yaml:"format"` // csv, xlsx, console
}

// Processing содержит конфигурацию обработки задач
type Processing struct {
	TaskTimeoutSeconds int `json:"task_timeout_seconds" yaml:"task_timeout_seconds"` // 0 - без ограничений
	CacheTTLMinutes    int `json:"cache_ttl_minutes" yaml:"cache_ttl_minutes"`
}

// Logging содержит конфигурацию логирования
type Logging struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // text, json
}

// Config содержит конфигурацию приложения
type Config struct {
	Server      Server      `json:"server" yaml:"server"`
	TelegramAPI TelegramAPI `json:"telegram_api" yaml:"telegram_api"`
	Scraper     Scraper     `json:"scraper" yaml:"scraper"`
	Aggregation Aggregation `json:"aggregation" yaml:"aggregation"`
	Export      Export      `json:"export" yaml:"export"`
	Processing  Processing  `json:"processing" yaml:"processing"`
	Logging     Logging     `json:"logging" yaml:"logging"`
}

// GetTelegramServers возвращает список конфигураций аккаунтов Telegram,
// обеспечивая обратную совместимость со старым форматом.
func (c *Config) GetTelegramServers() []TelegramAPIServer {
	if len(c.TelegramAPI.Servers) > 0 {
		return c.TelegramAPI.Servers
	}
	// Поддержка старого формата из корневого объекта telegram_api
	if c.TelegramAPI.APIID != 0 && c.TelegramAPI.APIHash != "" {
		return []TelegramAPIServer{
			{
				APIID:       c.TelegramAPI.APIID,
				APIHash:     c.TelegramAPI.APIHash,
				PhoneNumber: c.TelegramAPI.PhoneNumber,
				SessionFile: c.TelegramAPI.SessionFile,
			},
		}
	}
	return nil
}

// LoadConfig загружает конфигурацию приложения из переменных окружения, .env файла или config.yml
func LoadConfig() (*Config, error) {
	// Загрузка переменных окружения из .env файла, если он существует
	if err := godotenv.Load(); err != nil {
		// Если .env файла не существует, это нормально, мы будем полагаться на переменные окружения или config.yml
	}

	// Попытка загрузки из config.yml сначала
	cfg, err := loadFromYAML("config.yml")
	if err != nil {
		// Если загрузка YAML не удалась, используем переменные окружения
		cfg, err = loadFromEnv()
		if err != nil {
			return nil, fmt.Errorf("не удалось загрузить конфигурацию из env: %w", err)
		}
	}

	cfg.applyDefaults()
	return cfg, nil
}

// loadFromYAML загружает конфигурацию из YAML-файла
func loadFromYAML(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать файл конфигурации %s: %w", filename, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("не удалось разобрать YAML конфигурацию: %w", err)
	}

	return &cfg, nil
}

// loadFromEnv загружает конфигурацию из переменных окружения (обратная совместимость)
func loadFromEnv() (*Config, error) {
	apiIDStr := getEnv("API_ID", "")
	apiHash := getEnv("API_HASH", "")
	phoneNumber := getEnv("PHONE_NUMBER", "")
	sessionFile := getEnv("SESSION_FILE", "tg.session")
	host := getEnv("SERVER_HOST", DefaultServerHost)
	portStr := getEnv("SERVER_PORT", "8080")
	taskTimeoutStr := getEnv("TASK_TIMEOUT_SECONDS", "600")
	cacheTTLStr := getEnv("CACHE_TTL_MINUTES", "60")
	outputDir := getEnv("OUTPUT_DIR", DefaultOutputDir)

	if apiIDStr == "" || apiHash == "" || phoneNumber == "" {
		return nil, fmt.Errorf("API_ID, API_HASH и PHONE_NUMBER должны быть установлены в переменных окружения")
	}

	apiID, err := strconv.Atoi(apiIDStr)
	if err != nil {
		return nil, fmt.Errorf("недопустимый API_ID: %w", err)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("недопустимый SERVER_PORT: %w", err)
	}

	taskTimeout, err := strconv.Atoi(taskTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("недопустимый TASK_TIMEOUT_SECONDS: %w", err)
	}

	cacheTTL, err := strconv.Atoi(cacheTTLStr)
	if err != nil {
		return nil, fmt.Errorf("недопустимый CACHE_TTL_MINUTES: %w", err)
	}

	return &Config{
		Server: Server{
			Host: host,
			Port: port,
		},
		TelegramAPI: TelegramAPI{
			APIID:       apiID,
			APIHash:     apiHash,
			PhoneNumber: phoneNumber,
			SessionFile: sessionFile,
		},
		Export: Export{
			OutputDir: outputDir,
		},
		Processing: Processing{
			TaskTimeoutSeconds: taskTimeout,
			CacheTTLMinutes:    cacheTTL,
		},
	}, nil
}

// applyDefaults заполняет нулевые поля значениями по умолчанию.
func (c *Config) applyDefaults() {
	if c.Server.ShutdownTimeoutSeconds == 0 {
		c.Server.ShutdownTimeoutSeconds = int(DefaultShutdownTimeout.Seconds())
	}
	if c.TelegramAPI.HealthCheckIntervalSeconds == 0 {
		c.TelegramAPI.HealthCheckIntervalSeconds = int(DefaultHealthCheckInterval.Seconds())
	}
	if c.Scraper.PageSize == 0 {
		c.Scraper.PageSize = DefaultScrapePageSize
	}
	if c.Scraper.RequestDelayMs == 0 {
		c.Scraper.RequestDelayMs = int(DefaultScrapeRequestDelay.Milliseconds())
	}
	if c.Scraper.OperationTimeoutSeconds == 0 {
		c.Scraper.OperationTimeoutSeconds = int(DefaultScrapeOperationTimeout.Seconds())
	}
	if c.Scraper.ClientRetryPauseSeconds == 0 {
		c.Scraper.ClientRetryPauseSeconds = int(DefaultScrapeClientRetryPause.Seconds())
	}
	if c.Aggregation.RecentLimit == 0 {
		c.Aggregation.RecentLimit = DefaultRecentLimit
	}
	if c.Aggregation.MaxRecentChars == 0 {
		c.Aggregation.MaxRecentChars = DefaultMaxRecentChars
	}
	if c.Export.OutputDir == "" {
		c.Export.OutputDir = DefaultOutputDir
	}
	if c.Export.Format == "" {
		c.Export.Format = DefaultExportFormat
	}
	if c.Processing.CacheTTLMinutes == 0 {
		c.Processing.CacheTTLMinutes = int(DefaultCacheTTL.Minutes())
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}

// Address возвращает адрес сервера в формате "host:port"
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate проверяет, являются ли значения конфигурации допустимыми
func (c *Config) Validate() error {
	// Валидация Telegram API
	servers := c.GetTelegramServers()
	if len(servers) == 0 {
		return fmt.Errorf("конфигурация telegram_api не найдена или пуста")
	}

	for i, s := range servers {
		if s.APIID <= 0 {
			return fmt.Errorf("telegram_api.servers[%d].api_id должно быть положительным целым числом", i)
		}
		if s.APIHash == "" {
			return fmt.Errorf("telegram_api.servers[%d].api_hash не может быть пустым", i)
		}
		if s.PhoneNumber == "" {
			return fmt.Errorf("telegram_api.servers[%d].phone_number не может быть пустым", i)
		}
	}

	// Валидация остальных полей
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port должен быть действительным номером порта (1-65535)")
	}

	if c.Server.ShutdownTimeoutSeconds <= 0 {
		return fmt.Errorf("server.shutdown_timeout_seconds должно быть положительным")
	}

	if c.TelegramAPI.HealthCheckIntervalSeconds <= 0 {
		return fmt.Errorf("telegram_api.health_check_interval_seconds должно быть положительным")
	}

	if c.Scraper.PageSize <= 0 || c.Scraper.PageSize > 200 {
		return fmt.Errorf("scraper.page_size должно быть в диапазоне 1-200")
	}

	if c.Scraper.RequestDelayMs < 0 {
		return fmt.Errorf("scraper.request_delay_ms должно быть неотрицательным")
	}

	if c.Scraper.ClientRetryPauseSeconds <= 0 {
		return fmt.Errorf("scraper.client_retry_pause_seconds должно быть положительным")
	}

	if c.Aggregation.RecentLimit <= 0 {
		return fmt.Errorf("aggregation.recent_limit должно быть положительным")
	}

	if c.Aggregation.MaxRecentChars <= 0 {
		return fmt.Errorf("aggregation.max_recent_chars должно быть положительным")
	}

	switch c.Export.Format {
	case "csv", "xlsx", "console":
		// all good
	default:
		return fmt.Errorf("export.format должен быть одним из: csv, xlsx, console")
	}

	if c.Processing.TaskTimeoutSeconds < 0 {
		return fmt.Errorf("processing.task_timeout_seconds должно быть неотрицательным (0 для отсутствия ограничений)")
	}

	if c.Processing.CacheTTLMinutes <= 0 {
		return fmt.Errorf("processing.cache_ttl_minutes должно быть положительным целым числом")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// all good
	default:
		return fmt.Errorf("logging.level должен быть одним из: debug, info, warn, error")
	}

	switch c.Logging.Format {
	case "text", "json":
		// all good
	default:
		return fmt.Errorf("logging.format должен быть одним из: text, json")
	}

	return nil
}

// getEnv извлекает значение переменной окружения или возвращает значение по умолчанию, если она не установлена
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
