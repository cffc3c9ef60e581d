package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"splunk-log-downloader/internal/models"
)

// Config combines the search definition (read from a JSON config file) with
// operational settings read from environment variables.
type Config struct {
	// Search definition, loaded from the config file.
	Search models.SearchConfig

	// Connection settings.
	SplunkURL string `env:"SPLUNK_URL"`
	Username  string `env:"SPLUNK_USERNAME"`
	Password  string `env:"SPLUNK_PASSWORD"`

	// Output settings.
	OutputFile string `env:"OUTPUT_FILE" envDefault:"output.csv"`
	Compress   bool   `env:"COMPRESS_OUTPUT" envDefault:"false"`
	S3Bucket   string `env:"S3_BUCKET"`
	S3Region   string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Endpoint string `env:"S3_ENDPOINT"`

	// Polling policy.
	PollInterval    time.Duration `env:"POLL_INTERVAL" envDefault:"2s"`
	PollIntervalMax time.Duration `env:"POLL_INTERVAL_MAX" envDefault:"30s"`
	PollBudget      time.Duration `env:"POLL_BUDGET" envDefault:"15m"`
	PagesPerSecond  float64       `env:"PAGES_PER_SECOND" envDefault:"1"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"120s"`

	// Bookkeeping.
	CacheFile   string `env:"JOB_CACHE_FILE" envDefault:".job_cache.json"`
	RedisAddr   string `env:"REDIS_ADDR"`
	HistoryDB   string `env:"HISTORY_DB"`
	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9090"`
}

// fileConfig mirrors the JSON config file layout. Connection fields may live
// here or in the environment; the environment wins when both are set.
type fileConfig struct {
	SplunkURL  string `json:"splunk_url"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	OutputFile string `json:"output_file"`
	models.SearchConfig
}

// Load reads the config file and applies environment overrides.
func Load(path string) (*Config, error) {
	// Attempt to load .env for local development.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	var fc fileConfig
	fc.OutputMode = models.ModeCSV
	fc.PageSize = 10000
	fc.App = "search"
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	cfg := &Config{Search: fc.SearchConfig}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.SplunkURL == "" {
		cfg.SplunkURL = fc.SplunkURL
	}
	if cfg.Username == "" {
		cfg.Username = fc.Username
	}
	if cfg.Password == "" {
		cfg.Password = fc.Password
	}
	if fc.OutputFile != "" && cfg.OutputFile == "output.csv" {
		cfg.OutputFile = fc.OutputFile
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces the SearchConfig invariants and connection requirements.
func (c *Config) Validate() error {
	if c.SplunkURL == "" {
		return fmt.Errorf("splunk_url is required")
	}
	if c.Username == "" || c.Password == "" {
		return fmt.Errorf("username and password are required")
	}
	if c.Search.Query == "" {
		return fmt.Errorf("search_query is required")
	}
	if c.Search.PageSize <= 0 {
		return fmt.Errorf("page_size must be positive, got %d", c.Search.PageSize)
	}
	switch c.Search.OutputMode {
	case models.ModeCSV, models.ModeJSON, models.ModeRawLog:
	default:
		return fmt.Errorf("output_mode must be one of csv, json, raw-log; got %q", c.Search.OutputMode)
	}
	if c.PollInterval <= 0 || c.PollIntervalMax < c.PollInterval {
		return fmt.Errorf("invalid poll interval settings")
	}
	if c.PollBudget <= 0 {
		return fmt.Errorf("poll budget must be positive")
	}
	return nil
}
