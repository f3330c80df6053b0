package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/richard-senior/football-analyzer/internal/logger"
	"github.com/richard-senior/football-analyzer/pkg/league"
	"github.com/richard-senior/football-analyzer/pkg/poisson"
	"github.com/richard-senior/football-analyzer/pkg/retry"
)

// Config contains every runtime parameter of the analyzer.
// The struct tags let kong fill it from flags and environment variables;
// DefaultConfig returns the same defaults for programmatic use.
type Config struct {
	// === Credentials ===
	TelegramToken   string `help:"Telegram bot token." env:"TELEGRAM_TOKEN"`
	GeminiAPIKey    string `help:"Gemini API key." env:"GEMINI_API_KEY"`
	OpenAIAPIKey    string `help:"API key for an OpenAI compatible chat endpoint." env:"OPENAI_API_KEY"`
	GoogleSearchKey string `help:"Google Custom Search API key." env:"GOOGLE_SEARCH_API_KEY"`
	GoogleSearchCX  string `help:"Google Custom Search engine id." env:"GOOGLE_SEARCH_CX"`

	// === Stats provider ===
	Provider      string `help:"Stats provider (gemini, openai or footballdata)." enum:"gemini,openai,footballdata" default:"gemini" env:"STATS_PROVIDER"`
	GeminiModel   string `help:"Gemini model name." default:"gemini-2.0-flash" env:"GEMINI_MODEL"`
	GeminiBaseURL string `help:"Gemini REST base URL." default:"https://generativelanguage.googleapis.com/v1beta" env:"GEMINI_BASE_URL"`
	OpenAIModel   string `help:"Chat model name." default:"gpt-4o-mini" env:"OPENAI_MODEL"`
	OpenAIBaseURL string `help:"OpenAI compatible base URL." default:"https://api.openai.com/v1" env:"OPENAI_BASE_URL"`
	Season        string `help:"Season whose statistics are requested." default:"2025-2026" env:"SEASON"`

	// === Prediction ===
	LeaguesFile string `help:"YAML file replacing the built in league baselines." type:"path" env:"LEAGUES_FILE"`
	MaxGoals    int    `help:"Per side goal cap of the scoreline grid." default:"8" env:"MAX_GOALS"`

	// === Storage ===
	DBPath   string        `help:"SQLite database for the stats cache and prediction history. Empty disables both." default:"football-analyzer.db" env:"DB_PATH"`
	CacheTTL time.Duration `help:"How long fetched team statistics are reused." default:"6h" env:"STATS_CACHE_TTL"`

	// === Networking ===
	HTTPAddr       string        `help:"Listen address of the HTTP API." default:":8080" env:"HTTP_ADDR"`
	CORSOrigins    []string      `help:"Origins allowed to call the HTTP API." default:"*" env:"CORS_ORIGINS"`
	RequestTimeout time.Duration `help:"Timeout of a single analysis." default:"90s" env:"REQUEST_TIMEOUT"`
	RetryAttempts  int           `help:"Attempts per stats request." default:"3" env:"RETRY_ATTEMPTS"`
	RetryDelay     time.Duration `help:"Initial delay between stats request attempts." default:"2s" env:"RETRY_DELAY"`

	// === Logging ===
	LogLevel  string `help:"Minimum log level." default:"info" env:"LOG_LEVEL"`
	LogOutput string `help:"Log destination: c (console), f (file) or b (both)." enum:"c,f,b" default:"c" env:"LOG_OUTPUT"`
	LogPath   string `help:"Log file used when output is f or b." default:"/tmp/football-analyzer.log" env:"LOG_PATH"`
}

// DefaultConfig returns the default configuration with all standard values
func DefaultConfig() *Config {
	return &Config{
		Provider:       "gemini",
		GeminiModel:    "gemini-2.0-flash",
		GeminiBaseURL:  "https://generativelanguage.googleapis.com/v1beta",
		OpenAIModel:    "gpt-4o-mini",
		OpenAIBaseURL:  "https://api.openai.com/v1",
		Season:         "2025-2026",
		MaxGoals:       poisson.DefaultMaxGoals,
		DBPath:         "football-analyzer.db",
		CacheTTL:       6 * time.Hour,
		HTTPAddr:       ":8080",
		CORSOrigins:    []string{"*"},
		RequestTimeout: 90 * time.Second,
		RetryAttempts:  3,
		RetryDelay:     2 * time.Second,
		LogLevel:       "info",
		LogOutput:      "c",
		LogPath:        logger.DefaultLogPath,
	}
}

// === CONFIGURATION VALIDATION ===

// Validate ensures all configuration values are within reasonable ranges
func (c *Config) Validate() error {
	switch c.Provider {
	case "gemini", "openai", "footballdata":
	default:
		return fmt.Errorf("Provider must be gemini, openai or footballdata, got: %q", c.Provider)
	}
	if c.MaxGoals < 2 || c.MaxGoals > 20 {
		return fmt.Errorf("MaxGoals should be between 2 and 20, got: %d", c.MaxGoals)
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("RetryAttempts must be at least 1, got: %d", c.RetryAttempts)
	}
	if c.RetryDelay < 0 || c.CacheTTL < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("RequestTimeout must be positive, got: %s", c.RequestTimeout)
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if len(c.LogOutput) != 1 {
		return fmt.Errorf("LogOutput must be one of c, f or b, got: %q", c.LogOutput)
	}
	return nil
}

// RequireTelegram checks the credentials the bot cannot start without
func (c *Config) RequireTelegram() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is not set")
	}
	return nil
}

// RequireProvider checks the credentials of the selected stats provider
func (c *Config) RequireProvider() error {
	switch c.Provider {
	case "gemini":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is not set")
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is not set")
		}
		if c.GoogleSearchKey == "" || c.GoogleSearchCX == "" {
			return fmt.Errorf("the openai provider needs GOOGLE_SEARCH_API_KEY and GOOGLE_SEARCH_CX")
		}
	case "footballdata":
		// public result files, no key
	}
	return nil
}

// ApplyLogging configures the package logger from the log settings
func (c *Config) ApplyLogging() error {
	level, err := logger.ParseLevel(c.LogLevel)
	if err != nil {
		return err
	}
	logger.SetLevel(level)
	logger.SetShowDateTime(true)
	return logger.SetLogOutput(rune(c.LogOutput[0]), c.LogPath)
}

// RetryPolicy builds the backoff policy used for stats requests
func (c *Config) RetryPolicy() *retry.Policy {
	return retry.NewPolicy(c.RetryAttempts, c.RetryDelay)
}

// Leagues returns the league table: the built in one, or the contents of LeaguesFile
func (c *Config) Leagues() (*league.Table, error) {
	if c.LeaguesFile == "" {
		return league.DefaultTable(), nil
	}
	return LoadLeagues(c.LeaguesFile)
}

// LoadLeagues reads a YAML league table such as
//
//	default: {home: 1.45, away: 1.10}
//	leagues:
//	  - key: eredivisie
//	    baseline: {home: 1.70, away: 1.35}
//
// A missing default keeps the built in one.
func LoadLeagues(path string) (*league.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read league file: %w", err)
	}
	return ParseLeagues(data)
}

// ParseLeagues decodes and validates a YAML league table
func ParseLeagues(data []byte) (*league.Table, error) {
	table := &league.Table{Default: league.DefaultTable().Default}
	if err := yaml.Unmarshal(data, table); err != nil {
		return nil, fmt.Errorf("failed to parse league file: %w", err)
	}
	if len(table.Entries) == 0 {
		return nil, fmt.Errorf("league file defines no leagues")
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	logger.Debug("loaded league table with entries:", len(table.Entries))
	return table, nil
}
