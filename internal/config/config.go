// Package config loads application configuration from file and
// environment and owns global logger setup.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Calibration CalibrationConfig `yaml:"calibration" mapstructure:"calibration"`
	Measure     MeasureConfig     `yaml:"measure" mapstructure:"measure"`
	Rules       RulesConfig       `yaml:"rules" mapstructure:"rules"`
	Cost        CostConfig        `yaml:"cost" mapstructure:"cost"`
	Plan        PlanConfig        `yaml:"plan" mapstructure:"plan"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// CalibrationConfig configures pixel-to-inches scale resolution.
type CalibrationConfig struct {
	// FallbackInchesPerPx is used when an image has no calibration
	// context. Zero disables the fallback; such assets are measured at
	// unit scale and flagged uncalibrated.
	FallbackInchesPerPx float64 `yaml:"fallback_inches_per_px" mapstructure:"fallback_inches_per_px"`
}

// MeasureConfig configures the measurement extractor.
type MeasureConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// RulesConfig configures rule evaluation.
type RulesConfig struct {
	// Path to a YAML rule table; empty uses the built-in ADA 2010 table.
	Path                string  `yaml:"path" mapstructure:"path"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold" mapstructure:"confidence_threshold"`
}

// CostConfig configures remediation pricing.
type CostConfig struct {
	// Path to a YAML cost model; empty uses the built-in unit cost table.
	Path string `yaml:"path" mapstructure:"path"`
}

// PlanConfig configures prioritization and phase scheduling.
type PlanConfig struct {
	ImpactWeight float64 `yaml:"impact_weight" mapstructure:"impact_weight"`
	TieBreak     string  `yaml:"tie_break" mapstructure:"tie_break"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ADAAUDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "ada-audit.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("calibration.fallback_inches_per_px", 0.0)
	v.SetDefault("measure.workers", 8)
	v.SetDefault("rules.confidence_threshold", 0.5)
	v.SetDefault("plan.impact_weight", 1.0)
	v.SetDefault("plan.tie_break", "cost_desc")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
