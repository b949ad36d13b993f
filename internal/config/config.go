// Package config loads application configuration from file and
// environment and wires the global logger.
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
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Reference ReferenceConfig `yaml:"reference" mapstructure:"reference"`
	Import    ImportConfig    `yaml:"import" mapstructure:"import"`
	Match     MatchConfig     `yaml:"match" mapstructure:"match"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ReferenceConfig points at the canonical reference seed files.
type ReferenceConfig struct {
	CollegesPath string `yaml:"colleges_path" mapstructure:"colleges_path"`
	ProgramsPath string `yaml:"programs_path" mapstructure:"programs_path"`
	IncludeStore bool   `yaml:"include_store" mapstructure:"include_store"`
}

// ImportConfig holds defaults applied when the filename carries no metadata.
type ImportConfig struct {
	DefaultAuthority string `yaml:"default_authority" mapstructure:"default_authority"`
	DefaultQuota     string `yaml:"default_quota" mapstructure:"default_quota"`
	DefaultYear      int    `yaml:"default_year" mapstructure:"default_year"`
	DefaultRound     string `yaml:"default_round" mapstructure:"default_round"`
	ProgressInterval int    `yaml:"progress_interval" mapstructure:"progress_interval"`
}

// MatchConfig tunes the entity-matching cascade.
type MatchConfig struct {
	// MaxTier caps how deep the cascade may go (1-5). Tier 5 is the
	// single-keyword fallback; lowering this trades recall for precision.
	MaxTier int `yaml:"max_tier" mapstructure:"max_tier"`
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
	v.SetEnvPrefix("CUTOFF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("reference.include_store", true)
	v.SetDefault("import.default_quota", "state")
	v.SetDefault("import.default_round", "r1")
	v.SetDefault("import.progress_interval", 1000)
	v.SetDefault("match.max_tier", 5)

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
