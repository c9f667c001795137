package config

import (
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/jwaldner/bsheat/internal/blackscholes"
)

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

// HeatmapConfig controls the price surface sweep and its rendering
type HeatmapConfig struct {
	Resolution    int                `yaml:"resolution"`
	MaxResolution int                `yaml:"max_resolution"` // Upper bound accepted from requests
	VolRange      blackscholes.Range `yaml:"vol_range"`
	SpotRange     blackscholes.Range `yaml:"spot_range"`
	CellSize      int                `yaml:"cell_size"` // Pixels per cell side
	Annotate      bool               `yaml:"annotate"`  // Print prices inside cells
}

// StoreConfig selects the relational store for quote history.
// An empty driver disables persistence.
type StoreConfig struct {
	Driver string `yaml:"driver"` // mysql, sqlite
	DSN    string `yaml:"dsn"`
}

// SMTPConfig represents outgoing mail configuration.
// An empty host disables e-mail delivery.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	Subject  string `yaml:"subject"`
	Body     string `yaml:"body"`
}

// DispatchConfig sizes the background side-effect worker
type DispatchConfig struct {
	QueueSize   int `yaml:"queue_size"`
	MaxAttempts int `yaml:"max_attempts"`
}

type Config struct {
	// Server settings
	Port string

	// Initial values shown on the pricing form
	Defaults blackscholes.Quote

	Logging  LoggingConfig
	Heatmap  HeatmapConfig
	Store    StoreConfig
	SMTP     SMTPConfig
	Dispatch DispatchConfig
}

// yamlHeatmapConfig keeps annotate optional so an absent key keeps the default
type yamlHeatmapConfig struct {
	Resolution    int                `yaml:"resolution"`
	MaxResolution int                `yaml:"max_resolution"`
	VolRange      blackscholes.Range `yaml:"vol_range"`
	SpotRange     blackscholes.Range `yaml:"spot_range"`
	CellSize      int                `yaml:"cell_size"`
	Annotate      *bool              `yaml:"annotate"`
}

type YAMLConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Defaults *blackscholes.Quote `yaml:"defaults"`
	Logging  LoggingConfig       `yaml:"logging"`
	Heatmap  yamlHeatmapConfig   `yaml:"heatmap"`
	Store    StoreConfig         `yaml:"store"`
	SMTP     SMTPConfig          `yaml:"smtp"`
	Dispatch DispatchConfig      `yaml:"dispatch"`
}

// Load builds the configuration from environment variables and then overlays
// the YAML file named by CONFIG_FILE (default config.yaml) when it exists.
func Load() *Config {
	cfg := &Config{
		Port: getEnv("PORT", "8080"),
		Defaults: blackscholes.Quote{
			Spot:   getEnvFloat("DEFAULT_SPOT", 100.0),
			Strike: getEnvFloat("DEFAULT_STRIKE", 100.0),
			Expiry: getEnvFloat("DEFAULT_EXPIRY", 1.0),
			Rate:   getEnvFloat("DEFAULT_RATE", 0.05),
			Vol:    getEnvFloat("DEFAULT_VOLATILITY", 0.2),
			Type:   getEnvOptionType("DEFAULT_OPTION_TYPE", blackscholes.Call),
		},
		Logging: LoggingConfig{
			LogLevel: getEnv("LOG_LEVEL", "info"),
			LogFile:  getEnv("LOG_FILE", ""),
		},
		Heatmap: HeatmapConfig{
			Resolution:    getEnvInt("HEATMAP_RESOLUTION", blackscholes.DefaultResolution),
			MaxResolution: getEnvInt("HEATMAP_MAX_RESOLUTION", 50),
			VolRange:      blackscholes.DefaultVolRange,
			SpotRange:     blackscholes.DefaultSpotRange,
			CellSize:      getEnvInt("HEATMAP_CELL_SIZE", 48),
			Annotate:      getEnvBool("HEATMAP_ANNOTATE", true),
		},
		Store: StoreConfig{
			Driver: getEnv("STORE_DRIVER", ""),
			DSN:    getEnv("STORE_DSN", ""),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnvInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", ""),
			Subject:  getEnv("SMTP_SUBJECT", "Your Black-Scholes Option Price Heatmap"),
			Body:     getEnv("SMTP_BODY", "Attached is your generated heatmap from the Black-Scholes option pricer."),
		},
		Dispatch: DispatchConfig{
			QueueSize:   getEnvInt("DISPATCH_QUEUE_SIZE", 100),
			MaxAttempts: getEnvInt("DISPATCH_MAX_ATTEMPTS", 3),
		},
	}

	if yamlCfg := loadYAMLConfig(getEnv("CONFIG_FILE", "config.yaml")); yamlCfg != nil {
		cfg.apply(yamlCfg)
	}

	return cfg
}

// apply overlays non-zero YAML values on top of the environment defaults
func (cfg *Config) apply(y *YAMLConfig) {
	if y.Server.Port != "" {
		cfg.Port = y.Server.Port
	}
	if d := y.Defaults; d != nil {
		if d.Spot != 0 {
			cfg.Defaults.Spot = d.Spot
		}
		if d.Strike != 0 {
			cfg.Defaults.Strike = d.Strike
		}
		if d.Expiry != 0 {
			cfg.Defaults.Expiry = d.Expiry
		}
		if d.Rate != 0 {
			cfg.Defaults.Rate = d.Rate
		}
		if d.Vol != 0 {
			cfg.Defaults.Vol = d.Vol
		}
		if d.Type != 0 {
			cfg.Defaults.Type = d.Type
		}
	}

	// Logging configuration from YAML
	if y.Logging.LogLevel != "" {
		cfg.Logging.LogLevel = y.Logging.LogLevel
	}
	if y.Logging.LogFile != "" {
		cfg.Logging.LogFile = y.Logging.LogFile
	}

	if y.Heatmap.Resolution > 0 {
		cfg.Heatmap.Resolution = y.Heatmap.Resolution
	}
	if y.Heatmap.MaxResolution > 0 {
		cfg.Heatmap.MaxResolution = y.Heatmap.MaxResolution
	}
	if y.Heatmap.VolRange != (blackscholes.Range{}) {
		cfg.Heatmap.VolRange = y.Heatmap.VolRange
	}
	if y.Heatmap.SpotRange != (blackscholes.Range{}) {
		cfg.Heatmap.SpotRange = y.Heatmap.SpotRange
	}
	if y.Heatmap.CellSize > 0 {
		cfg.Heatmap.CellSize = y.Heatmap.CellSize
	}
	if y.Heatmap.Annotate != nil {
		cfg.Heatmap.Annotate = *y.Heatmap.Annotate
	}

	if y.Store.Driver != "" {
		cfg.Store = y.Store
	}

	if y.SMTP.Host != "" {
		subject, body := cfg.SMTP.Subject, cfg.SMTP.Body
		cfg.SMTP = y.SMTP
		if cfg.SMTP.Port == 0 {
			cfg.SMTP.Port = 587
		}
		if cfg.SMTP.Subject == "" {
			cfg.SMTP.Subject = subject
		}
		if cfg.SMTP.Body == "" {
			cfg.SMTP.Body = body
		}
	}

	if y.Dispatch.QueueSize > 0 {
		cfg.Dispatch.QueueSize = y.Dispatch.QueueSize
	}
	if y.Dispatch.MaxAttempts > 0 {
		cfg.Dispatch.MaxAttempts = y.Dispatch.MaxAttempts
	}
}

func loadYAMLConfig(path string) *YAMLConfig {
	data, err := os.ReadFile(path)
	if err != nil {
		// Could not read config file - silently return nil
		return nil
	}

	var yamlCfg YAMLConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		// Could not parse config file - silently return nil
		return nil
	}

	return &yamlCfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvOptionType(key string, defaultValue blackscholes.OptionType) blackscholes.OptionType {
	if value := os.Getenv(key); value != "" {
		if parsed, err := blackscholes.ParseOptionType(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
