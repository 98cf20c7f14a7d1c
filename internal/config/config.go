package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Parse  ParseConfig  `yaml:"parse" mapstructure:"parse"`
	Match  MatchConfig  `yaml:"match" mapstructure:"match"`
	NGList NGListConfig `yaml:"nglist" mapstructure:"nglist"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Batch  BatchConfig  `yaml:"batch" mapstructure:"batch"`
	Output OutputConfig `yaml:"output" mapstructure:"output"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// ParseConfig configures the directory parser heuristics.
type ParseConfig struct {
	HeaderMode     string   `yaml:"header_mode" mapstructure:"header_mode"`
	AttributeGuard bool     `yaml:"attribute_guard" mapstructure:"attribute_guard"`
	FilterKeywords bool     `yaml:"filter_keywords" mapstructure:"filter_keywords"`
	PhonePolicy    string   `yaml:"phone_policy" mapstructure:"phone_policy"`
	ExtraKeywords  []string `yaml:"extra_keywords" mapstructure:"extra_keywords"`
}

// MatchConfig configures NG-list matching and post-filters.
type MatchConfig struct {
	StrictNameClean     bool   `yaml:"strict_name_clean" mapstructure:"strict_name_clean"`
	PhoneSubstring      bool   `yaml:"phone_substring" mapstructure:"phone_substring"`
	DropDuplicatePhones bool   `yaml:"drop_duplicate_phones" mapstructure:"drop_duplicate_phones"`
	DropEmpty           bool   `yaml:"drop_empty" mapstructure:"drop_empty"`
	OnMissingList       string `yaml:"on_missing_list" mapstructure:"on_missing_list"`
}

// NGListConfig selects where NG lists come from.
type NGListConfig struct {
	Source string `yaml:"source" mapstructure:"source"`
	Dir    string `yaml:"dir" mapstructure:"dir"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	RecordRuns  bool   `yaml:"record_runs" mapstructure:"record_runs"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	RateLimit      float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst      int      `yaml:"rate_burst" mapstructure:"rate_burst"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	MaxUploadMB    int      `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrentFiles int `yaml:"max_concurrent_files" mapstructure:"max_concurrent_files"`
}

// OutputConfig configures the formatted workbook.
type OutputConfig struct {
	IncludeExcluded bool `yaml:"include_excluded" mapstructure:"include_excluded"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from path, or from an optional config.yaml in
// the working directory when path is empty, then from the environment.
// An explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("GCHANGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("parse.header_mode", "strict")
	v.SetDefault("parse.attribute_guard", true)
	v.SetDefault("parse.filter_keywords", true)
	v.SetDefault("parse.phone_policy", "first")
	v.SetDefault("parse.extra_keywords", []string{})
	v.SetDefault("match.strict_name_clean", false)
	v.SetDefault("match.phone_substring", false)
	v.SetDefault("match.drop_duplicate_phones", false)
	v.SetDefault("match.drop_empty", false)
	v.SetDefault("match.on_missing_list", "abort")
	v.SetDefault("nglist.source", "dir")
	v.SetDefault("nglist.dir", "nglists")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "gchange.db")
	v.SetDefault("store.record_runs", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit", 5.0)
	v.SetDefault("server.rate_burst", 10)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.max_upload_mb", 20)
	v.SetDefault("batch.max_concurrent_files", 4)
	v.SetDefault("output.include_excluded", false)

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

// Validate checks the settings a command mode depends on. Modes are
// "format", "serve" and "store".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "format", "serve", "store":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Parse.HeaderMode {
	case "", "strict", "lenient":
	default:
		errs = append(errs, fmt.Sprintf("parse.header_mode %q must be strict or lenient", c.Parse.HeaderMode))
	}
	switch c.Parse.PhonePolicy {
	case "", "first", "last":
	default:
		errs = append(errs, fmt.Sprintf("parse.phone_policy %q must be first or last", c.Parse.PhonePolicy))
	}
	switch c.Match.OnMissingList {
	case "", "abort", "unfiltered":
	default:
		errs = append(errs, fmt.Sprintf("match.on_missing_list %q must be abort or unfiltered", c.Match.OnMissingList))
	}
	switch c.NGList.Source {
	case "", "dir":
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required when nglist.source is "+c.NGList.Source)
		}
	default:
		errs = append(errs, fmt.Sprintf("nglist.source %q must be dir, sqlite or postgres", c.NGList.Source))
	}

	switch mode {
	case "format":
		if c.Batch.MaxConcurrentFiles < 1 || c.Batch.MaxConcurrentFiles > 64 {
			errs = append(errs, "batch.max_concurrent_files must be between 1 and 64")
		}
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server.rate_limit must be >= 0")
		}
		if c.Server.RateLimit > 0 && c.Server.RateBurst < 1 {
			errs = append(errs, "server.rate_burst must be >= 1 when rate_limit is set")
		}
		if c.Server.MaxUploadMB <= 0 {
			errs = append(errs, "server.max_upload_mb must be > 0")
		}
	case "store":
		switch c.Store.Driver {
		case "sqlite", "postgres":
		default:
			errs = append(errs, fmt.Sprintf("store.driver %q must be sqlite or postgres", c.Store.Driver))
		}
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	}

	if len(errs) > 0 {
		return eris.New("config: " + strings.Join(errs, "; "))
	}
	return nil
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
