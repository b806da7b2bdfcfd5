package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"officequeue/internal/models"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

type Config struct {
	App      AppConfig      `yaml:"app"`
	Telegram TelegramConfig `yaml:"telegram"`
	Operator OperatorConfig `yaml:"operator"`
	Office   OfficeConfig   `yaml:"office"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Backup   BackupConfig   `yaml:"backup"`
	Logging  LoggingConfig  `yaml:"logging"`
	API      APIConfig      `yaml:"api"`
	Exports  ExportConfig   `yaml:"exports"`
	Google   GoogleConfig   `yaml:"google"`
	Bot      BotConfig      `yaml:"bot"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token" env:"BOT_TOKEN"`
	Debug    bool   `yaml:"debug"`
}

// OperatorConfig holds the single privileged identity.
type OperatorConfig struct {
	ID   int64  `yaml:"id" env:"ADMIN_ID"`
	Name string `yaml:"name"`
}

type OfficeConfig struct {
	// DefaultStatus is the admission state written on first start only.
	DefaultStatus string `yaml:"default_status" env:"OFFICE_DEFAULT_STATUS"`
	Store         string `yaml:"store" env:"OFFICE_STORE"`
}

type DatabaseConfig struct {
	Path string `yaml:"path" env:"DATABASE_PATH"`
}

type RedisConfig struct {
	URL      string `yaml:"url" env:"REDIS_URL"`
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type LoggingConfig struct {
	Level    string `yaml:"level" env:"LOG_LEVEL"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIGRPCConfig struct {
	Enabled    bool `yaml:"enabled"`
	Port       int  `yaml:"port"`
	Reflection bool `yaml:"reflection"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

// GoogleConfig enables the optional mirror of the visit journal into a spreadsheet.
type GoogleConfig struct {
	Enabled              bool   `yaml:"enabled"`
	CredentialsFile      string `yaml:"credentials_file" env:"GOOGLE_CREDENTIALS_FILE"`
	JournalSpreadsheetID string `yaml:"journal_spreadsheet_id" env:"JOURNAL_SPREADSHEET_ID"`
	JournalSheet         string `yaml:"journal_sheet"`
}

type BotConfig struct {
	RateLimitMessages int  `yaml:"rate_limit_messages"`
	RateLimitWindow   int  `yaml:"rate_limit_window"`
	StateTTL          int  `yaml:"state_ttl"`
	BroadcastRetries  *int `yaml:"broadcast_retries"` // nil: default, 0: no retries
	BroadcastReport   bool `yaml:"broadcast_report"`
	StatsWindowHours  int  `yaml:"stats_window_hours"`
}

func Load(configPath string) (*Config, error) {
	// .env необязателен
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	if err := env.Parse(&config); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" || c.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
		return errors.New("telegram bot token is required")
	}

	if c.Operator.ID == 0 {
		return errors.New("operator id is required")
	}

	if c.Office.DefaultStatus == "" {
		return errors.New("office.default_status is required (open, closed or paused)")
	}
	if _, ok := models.ParseOfficeState(c.Office.DefaultStatus); !ok {
		return fmt.Errorf("office.default_status %q is not one of open, closed, paused", c.Office.DefaultStatus)
	}

	switch c.Office.Store {
	case StoreSQLite:
		if c.Database.Path == "" {
			return errors.New("database path is required")
		}
	case StoreRedis:
		if c.Redis.URL == "" && c.Redis.Address == "" {
			return errors.New("redis url or address is required for the redis store")
		}
	default:
		return fmt.Errorf("unknown office.store %q", c.Office.Store)
	}

	if c.Google.Enabled && (c.Google.CredentialsFile == "" || c.Google.JournalSpreadsheetID == "") {
		return errors.New("google.credentials_file and google.journal_spreadsheet_id are required when google is enabled")
	}

	return nil
}

// DefaultOfficeState returns the parsed startup default; call after Validate.
func (c *Config) DefaultOfficeState() models.OfficeState {
	state, _ := models.ParseOfficeState(c.Office.DefaultStatus)
	return state
}

func (c *Config) applyDefaults() {
	c.Office.Store = strings.ToLower(strings.TrimSpace(c.Office.Store))
	if c.Office.Store == "" {
		c.Office.Store = StoreSQLite
	}

	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}

	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
	if c.Google.JournalSheet == "" {
		c.Google.JournalSheet = "Journal"
	}

	// Bot defaults
	if c.Bot.RateLimitMessages == 0 {
		c.Bot.RateLimitMessages = models.RateLimitMessages
	}
	if c.Bot.RateLimitWindow == 0 {
		c.Bot.RateLimitWindow = models.RateLimitWindow
	}
	if c.Bot.StateTTL == 0 {
		c.Bot.StateTTL = models.DefaultStateTTL
	}
	if c.Bot.BroadcastRetries == nil {
		retries := 3
		c.Bot.BroadcastRetries = &retries
	}
	if c.Bot.StatsWindowHours == 0 {
		c.Bot.StatsWindowHours = models.DefaultStatsWindowHours
	}
}
