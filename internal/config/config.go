// Package config loads the service configuration.
//
// Values come from built-in defaults, an optional config/config.yaml and
// VECTORIZE_* environment variables, in increasing order of precedence.
// Nested keys map to variables with dots replaced by underscores, so
// limits.max_side is VECTORIZE_LIMITS_MAX_SIDE.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ironsheep/vectorize-mcp/internal/convert"
	"github.com/ironsheep/vectorize-mcp/internal/imaging"
)

// EnvPrefix prefixes every environment variable the service reads.
const EnvPrefix = "VECTORIZE"

// Config is the full service configuration.
type Config struct {
	Limits    LimitsConfig    `mapstructure:"limits"`
	Normalize NormalizeConfig `mapstructure:"normalize"`
	Edge      EdgeConfig      `mapstructure:"edge"`
	Flat      FlatConfig      `mapstructure:"flat"`
	Trace     TraceConfig     `mapstructure:"trace"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
}

// LimitsConfig holds the upload and pixel ceilings enforced by the limit guard.
type LimitsConfig struct {
	MaxUploadBytes int64    `mapstructure:"max_upload_bytes"`
	MaxMegapixels  float64  `mapstructure:"max_megapixels"`
	MaxSide        int      `mapstructure:"max_side"`
	AllowedMIME    []string `mapstructure:"allowed_mime"`
	WorkingSize    int      `mapstructure:"working_size"`
}

// NormalizeConfig tunes gamma and the percentile contrast stretch.
type NormalizeConfig struct {
	Gamma       float64 `mapstructure:"gamma"`
	StretchLow  float64 `mapstructure:"stretch_low"`
	StretchHigh float64 `mapstructure:"stretch_high"`
}

// EdgeConfig holds the edge settings applied when a request omits them.
type EdgeConfig struct {
	BlurSigma float64 `mapstructure:"blur_sigma"`
	EdgeBoost float64 `mapstructure:"edge_boost"`
}

// FlatConfig holds the thresholds that decide an edge raster is degenerate.
type FlatConfig struct {
	SampleStep  int     `mapstructure:"sample_step"`
	MinRange    int     `mapstructure:"min_range"`
	DarkMean    float64 `mapstructure:"dark_mean"`
	LightMean   float64 `mapstructure:"light_mean"`
	MinVariance float64 `mapstructure:"min_variance"`
}

// TraceConfig locates the potrace binary and bounds each trace.
type TraceConfig struct {
	PotracePath string        `mapstructure:"potrace_path"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host        string        `mapstructure:"host"`
	Port        string        `mapstructure:"port"`
	Mode        string        `mapstructure:"mode"`
	Timeout     time.Duration `mapstructure:"timeout"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
}

// LogConfig sets the logrus level.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("limits.max_upload_bytes", imaging.DefaultMaxUploadBytes)
	v.SetDefault("limits.max_megapixels", imaging.DefaultMaxMegapixels)
	v.SetDefault("limits.max_side", imaging.DefaultMaxSide)
	v.SetDefault("limits.allowed_mime", imaging.DefaultAllowedMIME)
	v.SetDefault("limits.working_size", imaging.DefaultWorkingSize)

	norm := imaging.DefaultNormalizeOptions()
	v.SetDefault("normalize.gamma", norm.Gamma)
	v.SetDefault("normalize.stretch_low", norm.StretchLow)
	v.SetDefault("normalize.stretch_high", norm.StretchHigh)

	edge := imaging.DefaultEdgeConfig()
	v.SetDefault("edge.blur_sigma", edge.BlurSigma)
	v.SetDefault("edge.edge_boost", edge.EdgeBoost)

	flat := imaging.DefaultFlatThresholds()
	v.SetDefault("flat.sample_step", flat.SampleStep)
	v.SetDefault("flat.min_range", flat.MinRange)
	v.SetDefault("flat.dark_mean", flat.DarkMean)
	v.SetDefault("flat.light_mean", flat.LightMean)
	v.SetDefault("flat.min_variance", flat.MinVariance)

	v.SetDefault("trace.potrace_path", "potrace")
	v.SetDefault("trace.timeout", 60*time.Second)

	v.SetDefault("server.host", "")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.timeout", 90*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)

	v.SetDefault("log.level", "info")
}

// LoadConfig builds a viper instance with defaults, environment binding and,
// when present, config.yaml from ./config or any of extraPaths. A missing
// config file is not an error.
func LoadConfig(extraPaths ...string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	for _, p := range extraPaths {
		v.AddConfigPath(p)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return v, nil
}

// ParseConfig decodes v into a Config and validates it.
func ParseConfig(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load is LoadConfig followed by ParseConfig.
func Load(extraPaths ...string) (*Config, error) {
	v, err := LoadConfig(extraPaths...)
	if err != nil {
		return nil, err
	}
	return ParseConfig(v)
}

// Validate rejects values the pipeline cannot work with.
func (c *Config) Validate() error {
	var errs []error
	if c.Limits.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("limits.max_upload_bytes must be > 0"))
	}
	if c.Limits.MaxMegapixels <= 0 {
		errs = append(errs, errors.New("limits.max_megapixels must be > 0"))
	}
	if c.Limits.MaxSide <= 0 {
		errs = append(errs, errors.New("limits.max_side must be > 0"))
	}
	if c.Limits.WorkingSize <= 0 {
		errs = append(errs, errors.New("limits.working_size must be > 0"))
	}
	if len(c.Limits.AllowedMIME) == 0 {
		errs = append(errs, errors.New("limits.allowed_mime must not be empty"))
	}
	if c.Normalize.StretchLow < 0 || c.Normalize.StretchHigh > 100 || c.Normalize.StretchLow >= c.Normalize.StretchHigh {
		errs = append(errs, errors.New("normalize.stretch_low and stretch_high must satisfy 0 <= low < high <= 100"))
	}
	if err := c.EdgeDefaults().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("edge: %w", err))
	}
	if c.Flat.SampleStep <= 0 {
		errs = append(errs, errors.New("flat.sample_step must be > 0"))
	}
	if c.Trace.Timeout < 0 {
		errs = append(errs, errors.New("trace.timeout must not be negative"))
	}
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port must be set"))
	}
	return errors.Join(errs...)
}

// GuardLimits returns the limit guard settings.
func (c *Config) GuardLimits() imaging.Limits {
	return imaging.Limits{
		MaxUploadBytes: c.Limits.MaxUploadBytes,
		MaxMegapixels:  c.Limits.MaxMegapixels,
		MaxSide:        c.Limits.MaxSide,
		AllowedMIME:    c.Limits.AllowedMIME,
		WorkingSize:    c.Limits.WorkingSize,
	}
}

// EdgeDefaults returns the edge settings used when a request has none.
func (c *Config) EdgeDefaults() imaging.EdgeConfig {
	return imaging.EdgeConfig{BlurSigma: c.Edge.BlurSigma, EdgeBoost: c.Edge.EdgeBoost}
}

// Service returns the conversion service configuration.
func (c *Config) Service() convert.Config {
	return convert.Config{
		Limits: c.GuardLimits(),
		Normalize: imaging.NormalizeOptions{
			Gamma:       c.Normalize.Gamma,
			StretchLow:  c.Normalize.StretchLow,
			StretchHigh: c.Normalize.StretchHigh,
		},
		Flat: imaging.FlatThresholds{
			SampleStep:  c.Flat.SampleStep,
			MinRange:    c.Flat.MinRange,
			DarkMean:    c.Flat.DarkMean,
			LightMean:   c.Flat.LightMean,
			MinVariance: c.Flat.MinVariance,
		},
		Edge:         c.EdgeDefaults(),
		TraceTimeout: c.Trace.Timeout,
	}
}
