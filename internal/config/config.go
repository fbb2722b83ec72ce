package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/obiente/translate/goscore/internal/transcribe"
)

// EnvPrefix prefixes every environment variable, e.g. GOSCORE_ADDR.
const EnvPrefix = "GOSCORE"

type Config struct {
	Addr          string             `mapstructure:"addr"`
	LogLevel      string             `mapstructure:"log_level"`
	LogFormat     string             `mapstructure:"log_format"`
	Server        ServerConfig       `mapstructure:"server"`
	Transcription transcribe.Options `mapstructure:"transcription"`
}

type ServerConfig struct {
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	MaxUploadBytes    int64         `mapstructure:"max_upload_bytes"`
	MaxSessionSeconds int           `mapstructure:"max_session_seconds"`
	InterimInterval   time.Duration `mapstructure:"interim_interval"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins"`
}

var ErrInvalid = errors.New("invalid config")

// New returns a viper instance with defaults and environment lookup set up.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	// LOG_LEVEL is honoured for compatibility with existing deployments.
	_ = v.BindEnv("log_level", EnvPrefix+"_LOG_LEVEL", "LOG_LEVEL")
	SetDefaults(v)
	return v
}

// SetDefaults sets default configuration values
func SetDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.max_upload_bytes", 64<<20)
	v.SetDefault("server.max_session_seconds", 300)
	v.SetDefault("server.interim_interval", "300ms")
	v.SetDefault("server.allowed_origins", []string{"*"})

	d := transcribe.DefaultOptions()
	v.SetDefault("transcription.window_size", d.WindowSize)
	v.SetDefault("transcription.hop_size", 0)
	v.SetDefault("transcription.clarity_threshold", d.ClarityThreshold)
	v.SetDefault("transcription.continuation_tolerance", d.ContinuationTolerance)
	v.SetDefault("transcription.min_candidate_frames", d.MinCandidateFrames)
	v.SetDefault("transcription.min_clarity", d.MinClarity)
	v.SetDefault("transcription.continuation_clarity", d.ContinuationClarity)
	v.SetDefault("transcription.weak_frame_limit", d.WeakFrameLimit)
	v.SetDefault("transcription.silence_rms", d.SilenceRMS)
	v.SetDefault("transcription.workers", 0)
}

// ReadFile loads path, or when path is empty searches for goscore.yaml in
// the working directory, $HOME/.config/goscore and /etc/goscore. A missing
// file is not an error when searching.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		return nil
	}

	v.SetConfigName("goscore")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "goscore"))
	}
	v.AddConfigPath("/etc/goscore")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Load unmarshals and validates the configuration held by v.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	cfg, err := Load(New())
	if err != nil {
		panic(err)
	}
	return cfg
}

// Validate checks every section.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr is required", ErrInvalid)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level: %v", ErrInvalid, err)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("%w: log_format %q must be json or console", ErrInvalid, c.LogFormat)
	}
	s := c.Server
	switch {
	case s.ReadTimeout <= 0, s.WriteTimeout <= 0:
		return fmt.Errorf("%w: server timeouts must be positive", ErrInvalid)
	case s.MaxUploadBytes <= 0:
		return fmt.Errorf("%w: server.max_upload_bytes must be positive", ErrInvalid)
	case s.MaxSessionSeconds <= 0:
		return fmt.Errorf("%w: server.max_session_seconds must be positive", ErrInvalid)
	case s.InterimInterval < 0:
		return fmt.Errorf("%w: server.interim_interval must not be negative", ErrInvalid)
	}
	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription: %w", err)
	}
	return nil
}
