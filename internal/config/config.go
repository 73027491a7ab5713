package config

import (
	"errors"
	"fmt"
	"os"

	"fieldhire/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig         `yaml:"app"`
	Database   DatabaseConfig    `yaml:"database"`
	Redis      RedisConfig       `yaml:"redis"`
	Backup     BackupConfig      `yaml:"backup"`
	Monitoring MonitoringConfig  `yaml:"monitoring"`
	Logging    LoggingConfig     `yaml:"logging"`
	API        APIConfig         `yaml:"api"`
	Engine     EngineConfig      `yaml:"engine"`
	Telegram   TelegramConfig    `yaml:"telegram"`
	Exports    ExportConfig      `yaml:"exports"`
	Resources  []models.Resource `yaml:"resources"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
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

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

// APIClientKey binds an API key to an actor identity. The role gates which
// operations the key may call; the actor id is what booking records carry.
type APIClientKey struct {
	Key     string `yaml:"key"`
	Name    string `yaml:"name"`
	Role    string `yaml:"role"`     // farmer, supplier, admin
	ActorID string `yaml:"actor_id"` // party id the key acts as
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type EngineConfig struct {
	SweepIntervalSeconds int `yaml:"sweep_interval_seconds"`
	MaxBookingDays       int `yaml:"max_booking_days"`
	BroadcastHorizonDays int `yaml:"broadcast_horizon_days"`
	OfferIndexTTLSeconds int `yaml:"offer_index_ttl_seconds"`
}

type TelegramConfig struct {
	Enabled     bool   `yaml:"enabled"`
	BotToken    string `yaml:"bot_token"`
	AdminChatID int64  `yaml:"admin_chat_id"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; environment variables referenced in the YAML are
	// expanded before parsing.
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Telegram.Enabled && c.Telegram.BotToken == "" {
		return errors.New("telegram.bot_token is required when telegram notifications are enabled")
	}
	return ValidateResources(c.Resources)
}

func ValidateResources(resources []models.Resource) error {
	seen := make(map[string]bool)
	for _, r := range resources {
		if r.ID == "" {
			return fmt.Errorf("resource '%s' has empty ID", r.Name)
		}
		if seen[r.ID] {
			return fmt.Errorf("duplicate resource ID found: %s", r.ID)
		}
		if r.SupplierID == "" {
			return fmt.Errorf("resource %s has no supplier", r.ID)
		}
		seen[r.ID] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.API.Enabled && !c.API.HTTP.Enabled {
		c.API.HTTP.Enabled = true
	}
	if !c.API.Auth.Enabled {
		c.API.Auth.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	if c.Engine.SweepIntervalSeconds == 0 {
		c.Engine.SweepIntervalSeconds = models.DefaultSweepInterval
	}
	if c.Engine.MaxBookingDays == 0 {
		c.Engine.MaxBookingDays = models.DefaultMaxBookingDays
	}
	if c.Engine.BroadcastHorizonDays == 0 {
		c.Engine.BroadcastHorizonDays = 30
	}
	if c.Engine.OfferIndexTTLSeconds == 0 {
		c.Engine.OfferIndexTTLSeconds = models.DefaultOfferIndexTTL
	}
}
