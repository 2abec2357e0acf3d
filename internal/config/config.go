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
	Lake    LakeConfig    `yaml:"lake" mapstructure:"lake"`
	API     APIConfig     `yaml:"api" mapstructure:"api"`
	Extract ExtractConfig `yaml:"extract" mapstructure:"extract"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// LakeConfig locates the data lake on disk.
type LakeConfig struct {
	Root string `yaml:"root" mapstructure:"root"`
}

// APIConfig holds The News API credentials and client tuning.
type APIConfig struct {
	Token            string  `yaml:"token" mapstructure:"token"`
	BaseURL          string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimitRPS     float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	RateLimitBurst   int     `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// ExtractConfig holds the corpus filters shared by both endpoints.
type ExtractConfig struct {
	Locale   string `yaml:"locale" mapstructure:"locale"`
	Language string `yaml:"language" mapstructure:"language"`
	Limit    int    `yaml:"limit" mapstructure:"limit"`
}

// StoreConfig configures the run-metadata database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the read-only status server.
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
	v.SetEnvPrefix("NEWSLAKE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("lake.root", "./lake")
	v.SetDefault("api.base_url", "https://api.thenewsapi.com/v1")
	v.SetDefault("api.rate_limit_rps", 2.0)
	v.SetDefault("api.rate_limit_burst", 2)
	v.SetDefault("api.max_attempts", 3)
	v.SetDefault("api.initial_backoff_ms", 500)
	v.SetDefault("api.max_backoff_ms", 30000)
	v.SetDefault("extract.locale", "us")
	v.SetDefault("extract.language", "en")
	v.SetDefault("extract.limit", 25)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "./newslake.db")
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

// Validate checks that the configuration can support the given command mode.
// All problems are reported at once rather than one per invocation.
func (c *Config) Validate(mode string) error {
	var problems []string

	checkStore := func() {
		switch c.Store.Driver {
		case "sqlite":
			if c.Store.Path == "" {
				problems = append(problems, "store.path is required for the sqlite driver")
			}
		case "postgres":
			if c.Store.DatabaseURL == "" {
				problems = append(problems, "store.database_url is required for the postgres driver")
			}
		default:
			problems = append(problems, "store.driver must be sqlite or postgres")
		}
	}

	switch mode {
	case "run":
		if c.API.Token == "" {
			problems = append(problems, "api.token is required")
		}
		if c.Lake.Root == "" {
			problems = append(problems, "lake.root is required")
		}
		if c.Extract.Limit < 0 {
			problems = append(problems, "extract.limit must be >= 0")
		}
		if c.API.MaxAttempts < 1 {
			problems = append(problems, "api.max_attempts must be >= 1")
		}
		checkStore()
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		checkStore()
	case "status":
		checkStore()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
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
