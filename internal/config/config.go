package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Logger    Logger    `mapstructure:"logger"`
	Database  Database  `mapstructure:"database"`
	Server    Server    `mapstructure:"server"`
	Workspace Workspace `mapstructure:"workspace"`
	Runner    Runner    `mapstructure:"runner"`
	API       API       `mapstructure:"api"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Database holds the configuration for the document database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Server holds the configuration for the web server.
type Server struct {
	Port int `mapstructure:"port"`
}

// Workspace holds the configuration for editing sessions.
// Empty file paths select the catalogs embedded in the binary.
type Workspace struct {
	DefaultDocument string `mapstructure:"default_document"`
	StrategiesFile  string `mapstructure:"strategies_file"`
	LocaleFile      string `mapstructure:"locale_file"`
}

// Runner holds the configuration for the bot execution coordinator.
type Runner struct {
	TickIntervalMs int `mapstructure:"tick_interval_ms"`
	MaxTicks       int `mapstructure:"max_ticks"`
}

// API holds the configuration for the account API used by the account screens.
type API struct {
	BaseURL        string  `mapstructure:"base_url"`
	Token          string  `mapstructure:"token"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")

	// Allow environment variables to override config file
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	err = v.ReadInConfig()
	if err != nil {
		return
	}

	err = v.Unmarshal(&config)
	return
}

// Default returns the configuration used when no config file is present.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("database.dsn", "bot-builder.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("workspace.default_document", "default")
	v.SetDefault("runner.tick_interval_ms", 1000)
	v.SetDefault("runner.max_ticks", 0)
	v.SetDefault("api.rate_limit", 5)       // requests per second
	v.SetDefault("api.rate_limit_burst", 2) // burst size
}
