package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Moderation ModerationConfig `mapstructure:"moderation"`
	Webhooks   WebhookConfig    `mapstructure:"webhooks"`
	Security   SecurityConfig   `mapstructure:"security"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	JWTIssuer string `mapstructure:"jwt_issuer"`
}

type ModerationConfig struct {
	// APIKey empty means the remote classifier is skipped entirely and
	// the deterministic fallback scorer handles every request.
	APIURL    string  `mapstructure:"api_url"`
	APIKey    string  `mapstructure:"api_key"`
	Threshold float64 `mapstructure:"threshold"`
	Language  string  `mapstructure:"language"`
}

type WebhookConfig struct {
	Workers   int `mapstructure:"workers"`
	QueueSize int `mapstructure:"queue_size"`
}

type SecurityConfig struct {
	EnableCORS     bool     `mapstructure:"enable_cors"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LoggingConfig struct {
	Level         string `mapstructure:"level"`
	Format        string `mapstructure:"format"`
	Output        string `mapstructure:"output"`
	ConsoleOutput bool   `mapstructure:"console_output"`
	MaxSize       int    `mapstructure:"max_size"`
	MaxBackups    int    `mapstructure:"max_backups"`
	MaxAge        int    `mapstructure:"max_age"`
	Compress      bool   `mapstructure:"compress"`
}

// Load loads the configuration from file and environment
func Load() (*Config, error) {
	var cfg Config

	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// LoadOrCreate loads the configuration, creating a default config file
// with a generated JWT secret when none exists yet.
func LoadOrCreate() (*Config, error) {
	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		configFile = "./config.yaml"
	}

	if _, err := os.Stat(configFile); err == nil {
		cfg, err := Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configFile, err)
		}
		return cfg, nil
	}

	fmt.Println("Config file not found, creating default config...")

	cfg := &Config{}
	setDefaults(cfg)
	cfg.Auth.JWTSecret = generateSecret()

	if err := SaveConfig(cfg); err != nil {
		fmt.Printf("Warning: failed to save config file: %v\n", err)
		fmt.Println("Continuing with in-memory config...")
	} else {
		fmt.Println("Config file created: config.yaml")
	}

	return cfg, nil
}

// SaveConfig saves the configuration to file
func SaveConfig(cfg *Config) error {
	viper.Set("server", cfg.Server)
	viper.Set("database", cfg.Database)
	viper.Set("auth", cfg.Auth)
	viper.Set("moderation", cfg.Moderation)
	viper.Set("webhooks", cfg.Webhooks)
	viper.Set("security", cfg.Security)
	viper.Set("logging", cfg.Logging)

	configPath := viper.ConfigFileUsed()
	if configPath == "" {
		configPath = "./config.yaml"
	}

	return viper.WriteConfigAs(configPath)
}

// generateSecret returns a random 256-bit hex string for JWT signing.
func generateSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("config: crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(b)
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "release"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "./data/aegis.db"
	}

	if cfg.Auth.JWTIssuer == "" {
		cfg.Auth.JWTIssuer = "aegis-api"
	}

	if cfg.Moderation.Threshold == 0 {
		cfg.Moderation.Threshold = 0.7
	}
	if cfg.Moderation.Language == "" {
		cfg.Moderation.Language = "pt"
	}

	if cfg.Webhooks.Workers == 0 {
		cfg.Webhooks.Workers = 4
	}
	if cfg.Webhooks.QueueSize == 0 {
		cfg.Webhooks.QueueSize = 256
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "logs/aegis.log"
	}
	cfg.Logging.ConsoleOutput = true
	if cfg.Logging.MaxSize == 0 {
		cfg.Logging.MaxSize = 100
	}
	if cfg.Logging.MaxBackups == 0 {
		cfg.Logging.MaxBackups = 10
	}
	if cfg.Logging.MaxAge == 0 {
		cfg.Logging.MaxAge = 30
	}
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Server.Port)
	}
	if cfg.Moderation.Threshold < 0 || cfg.Moderation.Threshold > 1 {
		return fmt.Errorf("invalid moderation threshold: %f", cfg.Moderation.Threshold)
	}
	return nil
}
