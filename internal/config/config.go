package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Data      DataConfig      `yaml:"data" mapstructure:"data"`
	Dashboard DashboardConfig `yaml:"dashboard" mapstructure:"dashboard"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// DataConfig locates the static datasets. Each location is a local path or an
// http(s):// or ftp:// URL.
type DataConfig struct {
	Boundaries string `yaml:"boundaries" mapstructure:"boundaries"`
	Series     string `yaml:"series" mapstructure:"series"`
	RawTable   string `yaml:"raw_table" mapstructure:"raw_table"`
	TempDir    string `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// DashboardConfig overrides the initial selection. Zero values mean "derive
// from the data": latest year, first district in load order.
type DashboardConfig struct {
	DefaultYear     int    `yaml:"default_year" mapstructure:"default_year"`
	DefaultDistrict string `yaml:"default_district" mapstructure:"default_district"`
}

// FetchConfig configures remote dataset downloads.
type FetchConfig struct {
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
}

// ServerConfig configures the dashboard API server.
type ServerConfig struct {
	Port         int      `yaml:"port" mapstructure:"port"`
	StaticDir    string   `yaml:"static_dir" mapstructure:"static_dir"`
	CORSOrigins  []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	RatePerSec   float64  `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	RateBurst    int      `yaml:"rate_burst" mapstructure:"rate_burst"`
	CacheSize    int      `yaml:"cache_size" mapstructure:"cache_size"`
	CacheTTLMins int      `yaml:"cache_ttl_mins" mapstructure:"cache_ttl_mins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config file, and environment.
func Load() (*Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("POPDASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data.boundaries", "data/yemen_adm3.geojson")
	v.SetDefault("data.series", "data/adm3_timeseries.json")
	v.SetDefault("data.raw_table", "data/adm3_population_timeseries.csv")
	v.SetDefault("data.temp_dir", "/tmp/popdash")
	v.SetDefault("dashboard.default_year", 0)
	v.SetDefault("dashboard.default_district", "")
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.rate_per_sec", 5.0)
	v.SetDefault("fetch.user_agent", "popdash/1.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.static_dir", "")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.rate_per_sec", 20.0)
	v.SetDefault("server.rate_burst", 40)
	v.SetDefault("server.cache_size", 64)
	v.SetDefault("server.cache_ttl_mins", 60)
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

// Validate checks that the fields required by the given mode are set.
// Modes: "data" (dataset locations), "serve" (data plus server settings).
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "data", "serve":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Data.Boundaries == "" {
		problems = append(problems, "data.boundaries is required")
	}
	if c.Data.Series == "" {
		problems = append(problems, "data.series is required")
	}
	if c.Dashboard.DefaultYear < 0 {
		problems = append(problems, "dashboard.default_year must be >= 0")
	}

	if mode == "serve" {
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Server.RatePerSec <= 0 {
			problems = append(problems, "server.rate_per_sec must be > 0")
		}
		if c.Server.RateBurst < 1 {
			problems = append(problems, "server.rate_burst must be >= 1")
		}
		if c.Server.CacheSize < 1 {
			problems = append(problems, "server.cache_size must be >= 1")
		}
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
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
