// Package config loads lease-match configuration from config.yaml and LEASEMATCH_* environment variables.
package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Matching MatchingConfig `yaml:"matching" mapstructure:"matching"`
	Density  DensityConfig  `yaml:"density" mapstructure:"density"`
	Batch    BatchConfig    `yaml:"batch" mapstructure:"batch"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Temporal TemporalConfig `yaml:"temporal" mapstructure:"temporal"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // postgres | sqlite
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// WeightsConfig holds the factor weights. They must sum to 1.0.
type WeightsConfig struct {
	Location        float64 `yaml:"location" mapstructure:"location"`
	Space           float64 `yaml:"space" mapstructure:"space"`
	Building        float64 `yaml:"building" mapstructure:"building"`
	PricingTimeline float64 `yaml:"pricing_timeline" mapstructure:"pricing_timeline"`
	Experience      float64 `yaml:"experience" mapstructure:"experience"`
}

// Sum returns the total of all factor weights.
func (w WeightsConfig) Sum() float64 {
	return w.Location + w.Space + w.Building + w.PricingTimeline + w.Experience
}

// PrefilterConfig holds the hard-reject tolerances. The same values gate the
// full scorer.
type PrefilterConfig struct {
	MinSizeRatio  float64 `yaml:"min_size_ratio" mapstructure:"min_size_ratio"`
	MaxSizeRatio  float64 `yaml:"max_size_ratio" mapstructure:"max_size_ratio"`
	RadiusMiles   float64 `yaml:"radius_miles" mapstructure:"radius_miles"`
	DateGraceDays int     `yaml:"date_grace_days" mapstructure:"date_grace_days"`
}

// DateGrace returns the availability grace period.
func (p PrefilterConfig) DateGrace() time.Duration {
	return time.Duration(p.DateGraceDays) * 24 * time.Hour
}

// MatchingConfig configures scoring and grading.
type MatchingConfig struct {
	Weights              WeightsConfig   `yaml:"weights" mapstructure:"weights"`
	QualifyThreshold     int             `yaml:"qualify_threshold" mapstructure:"qualify_threshold"`
	CompetitiveThreshold int             `yaml:"competitive_threshold" mapstructure:"competitive_threshold"`
	DefaultMinScore      int             `yaml:"default_min_score" mapstructure:"default_min_score"`
	DefaultRadiusMiles   float64         `yaml:"default_radius_miles" mapstructure:"default_radius_miles"`
	RegionsFile          string          `yaml:"regions_file" mapstructure:"regions_file"`
	Prefilter            PrefilterConfig `yaml:"prefilter" mapstructure:"prefilter"`
}

// DensityConfig configures the federal density scorer.
type DensityConfig struct {
	RadiusMiles         float64 `yaml:"radius_miles" mapstructure:"radius_miles"`
	MaxRadiusMiles      float64 `yaml:"max_radius_miles" mapstructure:"max_radius_miles"`
	CacheTTLSecs        int     `yaml:"cache_ttl_secs" mapstructure:"cache_ttl_secs"`
	CacheMaxEntries     int     `yaml:"cache_max_entries" mapstructure:"cache_max_entries"`
	CoordPrecision      int     `yaml:"coord_precision" mapstructure:"coord_precision"`
	ReferenceSampleSize int     `yaml:"reference_sample_size" mapstructure:"reference_sample_size"`
	ReferenceTTLSecs    int     `yaml:"reference_ttl_secs" mapstructure:"reference_ttl_secs"`
	SaturationDensity   float64 `yaml:"saturation_density" mapstructure:"saturation_density"`
	QueryLimit          int     `yaml:"query_limit" mapstructure:"query_limit"`
}

// BatchConfig configures the batch orchestrator.
type BatchConfig struct {
	Workers          int `yaml:"workers" mapstructure:"workers"`
	RunTimeoutSecs   int `yaml:"run_timeout_secs" mapstructure:"run_timeout_secs"`
	MaxErrors        int `yaml:"max_errors" mapstructure:"max_errors"`
	RetryAttempts    int `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryBackoffMs   int `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
}

// RunTimeout returns the wall-clock budget of one run.
func (b BatchConfig) RunTimeout() time.Duration {
	return time.Duration(b.RunTimeoutSecs) * time.Second
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port              int      `yaml:"port" mapstructure:"port"`
	CronSecret        string   `yaml:"cron_secret" mapstructure:"cron_secret"`
	SessionSecret     string   `yaml:"session_secret" mapstructure:"session_secret"`
	AllowedOrigins    []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	TriggerRatePerMin int      `yaml:"trigger_rate_per_min" mapstructure:"trigger_rate_per_min"`
}

// TemporalConfig configures the scheduler worker.
type TemporalConfig struct {
	HostPort  string `yaml:"host_port" mapstructure:"host_port"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
	TaskQueue string `yaml:"task_queue" mapstructure:"task_queue"`
	Schedule  string `yaml:"schedule" mapstructure:"schedule"`
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
	v.SetEnvPrefix("LEASEMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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

// Default returns the built-in defaults without reading a file or the environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	// Keys without a real default are registered so AutomaticEnv picks them up.
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)

	v.SetDefault("matching.weights.location", 0.35)
	v.SetDefault("matching.weights.space", 0.30)
	v.SetDefault("matching.weights.building", 0.20)
	v.SetDefault("matching.weights.pricing_timeline", 0.10)
	v.SetDefault("matching.weights.experience", 0.05)
	v.SetDefault("matching.qualify_threshold", 40)
	v.SetDefault("matching.competitive_threshold", 70)
	v.SetDefault("matching.default_min_score", 40)
	v.SetDefault("matching.default_radius_miles", 25.0)
	v.SetDefault("matching.regions_file", "")
	v.SetDefault("matching.prefilter.min_size_ratio", 0.5)
	v.SetDefault("matching.prefilter.max_size_ratio", 3.0)
	v.SetDefault("matching.prefilter.radius_miles", 50.0)
	v.SetDefault("matching.prefilter.date_grace_days", 90)

	v.SetDefault("density.radius_miles", 5.0)
	v.SetDefault("density.max_radius_miles", 100.0)
	v.SetDefault("density.cache_ttl_secs", 300)
	v.SetDefault("density.cache_max_entries", 10000)
	v.SetDefault("density.coord_precision", 3)
	v.SetDefault("density.reference_sample_size", 250)
	v.SetDefault("density.reference_ttl_secs", 3600)
	v.SetDefault("density.saturation_density", 2.0)
	v.SetDefault("density.query_limit", 5000)

	v.SetDefault("batch.workers", 10)
	v.SetDefault("batch.run_timeout_secs", 240)
	v.SetDefault("batch.max_errors", 200)
	v.SetDefault("batch.retry_attempts", 3)
	v.SetDefault("batch.retry_backoff_ms", 250)
	v.SetDefault("batch.failure_threshold", 5)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cron_secret", "")
	v.SetDefault("server.session_secret", "")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:*"})
	v.SetDefault("server.trigger_rate_per_min", 6)

	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "lease-match")
	v.SetDefault("temporal.schedule", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks the configuration for the given command mode ("run",
// "serve", "worker", "read"). Weight and threshold problems are configuration
// bugs in every mode and must stop startup.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "run", "read":
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server.port must be in (0, 65535], got %d", c.Server.Port))
		}
		if c.Server.CronSecret == "" && c.Server.SessionSecret == "" {
			errs = append(errs, "server.cron_secret or server.session_secret is required")
		}
	case "worker":
		if c.Temporal.HostPort == "" {
			errs = append(errs, "temporal.host_port is required")
		}
		if c.Temporal.TaskQueue == "" {
			errs = append(errs, "temporal.task_queue is required")
		}
	default:
		return eris.Errorf("config: unknown validation mode %q", mode)
	}

	w := c.Matching.Weights
	weights := map[string]float64{
		"location":         w.Location,
		"space":            w.Space,
		"building":         w.Building,
		"pricing_timeline": w.PricingTimeline,
		"experience":       w.Experience,
	}
	for _, name := range []string{"location", "space", "building", "pricing_timeline", "experience"} {
		if v := weights[name]; v < 0 || v > 1 {
			errs = append(errs, fmt.Sprintf("matching.weights.%s must be in [0, 1], got %.3f", name, v))
		}
	}
	if sum := w.Sum(); math.Abs(sum-1.0) > 0.001 {
		errs = append(errs, fmt.Sprintf("matching.weights must sum to 1.0, got %.3f", sum))
	}

	q, cp := c.Matching.QualifyThreshold, c.Matching.CompetitiveThreshold
	if q <= 0 || q > 100 {
		errs = append(errs, fmt.Sprintf("matching.qualify_threshold must be in (0, 100], got %d", q))
	}
	if cp <= 0 || cp > 100 {
		errs = append(errs, fmt.Sprintf("matching.competitive_threshold must be in (0, 100], got %d", cp))
	}
	if cp < q {
		errs = append(errs, fmt.Sprintf("matching.competitive_threshold (%d) must be >= qualify_threshold (%d)", cp, q))
	}
	if m := c.Matching.DefaultMinScore; m < 0 || m > 100 {
		errs = append(errs, fmt.Sprintf("matching.default_min_score must be in [0, 100], got %d", m))
	}

	p := c.Matching.Prefilter
	if p.MinSizeRatio <= 0 || p.MinSizeRatio > 1 {
		errs = append(errs, "matching.prefilter.min_size_ratio must be in (0, 1]")
	}
	if p.MaxSizeRatio < 1 {
		errs = append(errs, "matching.prefilter.max_size_ratio must be >= 1")
	}
	if p.RadiusMiles < 0 {
		errs = append(errs, "matching.prefilter.radius_miles must be >= 0")
	}
	if p.DateGraceDays < 0 {
		errs = append(errs, "matching.prefilter.date_grace_days must be >= 0")
	}

	d := c.Density
	if d.RadiusMiles <= 0 || d.RadiusMiles > d.MaxRadiusMiles {
		errs = append(errs, fmt.Sprintf("density.radius_miles must be in (0, %.0f]", d.MaxRadiusMiles))
	}
	if d.SaturationDensity <= 0 {
		errs = append(errs, "density.saturation_density must be > 0")
	}

	if c.Batch.Workers <= 0 {
		errs = append(errs, "batch.workers must be > 0")
	}
	if c.Batch.RunTimeoutSecs <= 0 {
		errs = append(errs, "batch.run_timeout_secs must be > 0")
	}

	switch c.Store.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be postgres or sqlite, got %q", c.Store.Driver))
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
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
