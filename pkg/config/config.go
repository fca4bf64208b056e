// Package config loads healthfang settings from an optional YAML file,
// HEALTHFANG_* environment variables, a .env file and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/healthfang/pkg/aggregator"
)

// Sentinel validation errors.
var (
	ErrInvalidDate          = errors.New("invalid date, expected YYYY-MM-DD")
	ErrInvalidWindow        = errors.New("from date must be before to date")
	ErrInvalidThreshold     = errors.New("threshold must be in (0, 1]")
	ErrInvalidDevCategories = errors.New("dev categories thresholds must be two ascending values in (0, 1]")
	ErrInvalidWorkers       = errors.New("workers must be positive")
	ErrInvalidDuration      = errors.New("duration must be positive")
	ErrInvalidPageSize      = errors.New("page size must be positive")
	ErrInvalidLogFormat     = errors.New("log format must be text or json")
	ErrInvalidRateLimit     = errors.New("rate limit must not be negative")
)

const envPrefix = "HEALTHFANG"

// Config holds all healthfang configuration.
type Config struct {
	GrimoireLab GrimoireLabConfig `mapstructure:"grimoirelab"`
	OpenSearch  OpenSearchConfig  `mapstructure:"opensearch"`
	Analysis    AnalysisConfig    `mapstructure:"analysis"`
	Coordinator CoordinatorConfig `mapstructure:"coordinator"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
}

// GrimoireLabConfig configures the analysis backend API.
type GrimoireLabConfig struct {
	URL      string `mapstructure:"url"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	// RateLimit is requests per second; zero is unlimited.
	RateLimit float64 `mapstructure:"rate_limit"`
}

// OpenSearchConfig configures the events index.
type OpenSearchConfig struct {
	URL         string `mapstructure:"url"`
	Index       string `mapstructure:"index"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	CACerts     string `mapstructure:"ca_certs"`
	VerifyCerts bool   `mapstructure:"verify_certs"`
	PageSize    int    `mapstructure:"page_size"`
}

// AnalysisConfig holds aggregator settings.
type AnalysisConfig struct {
	FromDate                string    `mapstructure:"from_date"`
	ToDate                  string    `mapstructure:"to_date"`
	CodeFilePattern         string    `mapstructure:"code_file_pattern"`
	BinaryFilePattern       string    `mapstructure:"binary_file_pattern"`
	PonyThreshold           float64   `mapstructure:"pony_threshold"`
	ElephantThreshold       float64   `mapstructure:"elephant_threshold"`
	DevCategoriesThresholds []float64 `mapstructure:"dev_categories_thresholds"`
}

// CoordinatorConfig controls readiness polling and parallelism.
type CoordinatorConfig struct {
	RepositoryTimeout time.Duration `mapstructure:"repository_timeout"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	ReadyAfter        time.Duration `mapstructure:"ready_after"`
	Workers           int           `mapstructure:"workers"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	MetricsAddr  string  `mapstructure:"metrics_addr"`
}

// New returns a viper instance with defaults and environment binding, ready
// for flags to be bound before Load.
func New() *viper.Viper {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// LoadConfig loads configuration with no flags bound.
func LoadConfig(configPath string) (*Config, error) {
	return Load(New(), configPath)
}

// Load reads the config file into v and decodes the result. An empty
// configPath searches ./healthfang.yaml, ./config and /etc/healthfang.
func Load(v *viper.Viper, configPath string) (*Config, error) {
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("healthfang")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/healthfang")
	}

	readErr := v.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := v.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := validateConfig(&cfg)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &cfg, nil
}

// LoadEnvFile exports the variables of a .env file that are not already
// set. An empty path reads ./.env; a missing default file is not an error.
func LoadEnvFile(path string) error {
	explicit := path != ""
	if !explicit {
		path = ".env"
	}

	err := godotenv.Load(path)
	if err != nil && (explicit || !errors.Is(err, os.ErrNotExist)) {
		return fmt.Errorf("load env file: %w", err)
	}

	return nil
}

// Window parses the analysis dates. Empty dates are returned as zero times
// and resolved to the default window by the aggregator.
func (a AnalysisConfig) Window() (from, to time.Time, err error) {
	from, err = parseDate(a.FromDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("from_date: %w", err)
	}

	to, err = parseDate(a.ToDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("to_date: %w", err)
	}

	return from, to, nil
}

// AggregatorOptions translates the analysis section.
func (a AnalysisConfig) AggregatorOptions() ([]aggregator.Option, error) {
	from, to, err := a.Window()
	if err != nil {
		return nil, err
	}

	opts := []aggregator.Option{
		aggregator.WithWindow(from, to),
		aggregator.WithPonyThreshold(a.PonyThreshold),
		aggregator.WithElephantThreshold(a.ElephantThreshold),
	}

	if a.CodeFilePattern != "" {
		opts = append(opts, aggregator.WithCodePattern(a.CodeFilePattern))
	}

	if a.BinaryFilePattern != "" {
		opts = append(opts, aggregator.WithBinaryPattern(a.BinaryFilePattern))
	}

	if len(a.DevCategoriesThresholds) == 2 {
		opts = append(opts, aggregator.WithDevCategoryThresholds(a.DevCategoriesThresholds[0], a.DevCategoriesThresholds[1]))
	}

	return opts, nil
}

func parseDate(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}

	t, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}

	return t, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("grimoirelab.url", DefaultGrimoireLabURL)
	v.SetDefault("grimoirelab.user", "")
	v.SetDefault("grimoirelab.password", "")
	v.SetDefault("grimoirelab.rate_limit", 0.0)

	v.SetDefault("opensearch.url", DefaultOpenSearchURL)
	v.SetDefault("opensearch.index", DefaultOpenSearchIndex)
	v.SetDefault("opensearch.user", "")
	v.SetDefault("opensearch.password", "")
	v.SetDefault("opensearch.ca_certs", "")
	v.SetDefault("opensearch.verify_certs", false)
	v.SetDefault("opensearch.page_size", DefaultPageSize)

	v.SetDefault("analysis.from_date", "")
	v.SetDefault("analysis.to_date", "")
	v.SetDefault("analysis.code_file_pattern", aggregator.DefaultCodePattern)
	v.SetDefault("analysis.binary_file_pattern", aggregator.DefaultBinaryPattern)
	v.SetDefault("analysis.pony_threshold", aggregator.DefaultPonyThreshold)
	v.SetDefault("analysis.elephant_threshold", aggregator.DefaultElephantThreshold)
	v.SetDefault("analysis.dev_categories_thresholds", []float64{
		aggregator.DefaultRegularThreshold, aggregator.DefaultCasualThreshold,
	})

	v.SetDefault("coordinator.repository_timeout", DefaultRepositoryTimeout)
	v.SetDefault("coordinator.poll_interval", DefaultPollInterval)
	v.SetDefault("coordinator.ready_after", DefaultReadyAfter)
	v.SetDefault("coordinator.workers", DefaultWorkers)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.otlp_insecure", false)
	v.SetDefault("telemetry.otlp_headers", "")
	v.SetDefault("telemetry.sample_ratio", 0.0)
	v.SetDefault("telemetry.metrics_addr", "")
}

// validateConfig validates the configuration.
func validateConfig(cfg *Config) error {
	from, to, err := cfg.Analysis.Window()
	if err != nil {
		return err
	}

	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return fmt.Errorf("%w: %s >= %s", ErrInvalidWindow, cfg.Analysis.FromDate, cfg.Analysis.ToDate)
	}

	for name, threshold := range map[string]float64{
		"pony_threshold":     cfg.Analysis.PonyThreshold,
		"elephant_threshold": cfg.Analysis.ElephantThreshold,
	} {
		if !inUnitRange(threshold) {
			return fmt.Errorf("%w: %s=%v", ErrInvalidThreshold, name, threshold)
		}
	}

	cats := cfg.Analysis.DevCategoriesThresholds
	if len(cats) != 2 || !inUnitRange(cats[0]) || !inUnitRange(cats[1]) || !slices.IsSorted(cats) {
		return fmt.Errorf("%w: %v", ErrInvalidDevCategories, cats)
	}

	if cfg.Coordinator.Workers <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, cfg.Coordinator.Workers)
	}

	for name, d := range map[string]time.Duration{
		"repository_timeout": cfg.Coordinator.RepositoryTimeout,
		"poll_interval":      cfg.Coordinator.PollInterval,
		"ready_after":        cfg.Coordinator.ReadyAfter,
	} {
		if d <= 0 {
			return fmt.Errorf("%w: %s=%s", ErrInvalidDuration, name, d)
		}
	}

	if cfg.OpenSearch.PageSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPageSize, cfg.OpenSearch.PageSize)
	}

	if cfg.GrimoireLab.RateLimit < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidRateLimit, cfg.GrimoireLab.RateLimit)
	}

	switch cfg.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, cfg.Logging.Format)
	}

	return nil
}

func inUnitRange(v float64) bool {
	return v > 0 && v <= 1
}
