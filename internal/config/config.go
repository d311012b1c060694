package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/dgallion1/hl7gest/internal/delim"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Worker pool
	WorkerCount        int
	MaxQueueSize       int
	MaxConcurrentParse int

	// Limits
	MaxUploadBytes    int64
	MaxConnections    int
	MaxMessagesPerJob int

	// Job state
	JobTTL time.Duration

	// Parsing
	SegmentDelimiter string // "cr", "lf", "crlf", "auto" or a literal
	AutoDetect       bool

	// Lint
	LintRulesFile string

	LogLevel string
}

// fileConfig mirrors Config for the optional TOML file. Pointers tell
// "unset" apart from zero values.
type fileConfig struct {
	Port               string    `toml:"port"`
	APIKey             string    `toml:"api_key"`
	WorkerCount        int       `toml:"worker_count"`
	MaxQueueSize       int       `toml:"max_queue_size"`
	MaxConcurrentParse int       `toml:"max_concurrent_parse"`
	MaxUploadBytes     int64     `toml:"max_upload_bytes"`
	MaxConnections     int       `toml:"max_connections"`
	MaxMessagesPerJob  int       `toml:"max_messages_per_job"`
	JobTTL             *Duration `toml:"job_ttl"`
	SegmentDelimiter   string    `toml:"segment_delimiter"`
	AutoDetect         *bool     `toml:"auto_detect"`
	LintRulesFile      string    `toml:"lint_rules_file"`
	LogLevel           string    `toml:"log_level"`
}

// Duration wraps time.Duration for TOML parsing.
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// Load builds the configuration from defaults, then the TOML file named by
// HL7GEST_CONFIG (if any), then environment variables. Later sources win.
func Load() (Config, error) {
	var f fileConfig
	if path := os.Getenv("HL7GEST_CONFIG"); path != "" {
		if _, err := toml.DecodeFile(path, &f); err != nil {
			return Config{}, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	jobTTL := 1 * time.Hour
	if f.JobTTL != nil {
		jobTTL = f.JobTTL.Duration
	}
	autoDetect := true
	if f.AutoDetect != nil {
		autoDetect = *f.AutoDetect
	}

	cfg := Config{
		Port: envOr("PORT", or(f.Port, "8090")),

		APIKey: envOr("HL7GEST_API_KEY", f.APIKey),

		WorkerCount:        envInt("WORKER_COUNT", orInt(f.WorkerCount, 4)),
		MaxQueueSize:       envInt("MAX_QUEUE_SIZE", orInt(f.MaxQueueSize, 100)),
		MaxConcurrentParse: envInt("MAX_CONCURRENT_PARSE", orInt(f.MaxConcurrentParse, 8)),

		MaxUploadBytes:    envInt64("MAX_UPLOAD_BYTES", orInt64(f.MaxUploadBytes, 10485760)), // 10MB
		MaxConnections:    envInt("MAX_CONNECTIONS", orInt(f.MaxConnections, 256)),
		MaxMessagesPerJob: envInt("MAX_MESSAGES_PER_JOB", orInt(f.MaxMessagesPerJob, 10000)),

		JobTTL: envDuration("JOB_TTL", jobTTL),

		SegmentDelimiter: envOr("HL7_SEGMENT_DELIMITER", or(f.SegmentDelimiter, "cr")),
		AutoDetect:       envBool("HL7_AUTO_DETECT", autoDetect),

		LintRulesFile: envOr("LINT_RULES_FILE", f.LintRulesFile),

		LogLevel: envOr("HL7GEST_LOG_LEVEL", or(f.LogLevel, "info")),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxConcurrentParse <= 0 {
		cfg.MaxConcurrentParse = 8
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10485760
	}
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = 256
	}
	if cfg.MaxMessagesPerJob <= 0 {
		cfg.MaxMessagesPerJob = 10000
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg, nil
}

func (c Config) Validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a number between 1 and 65535, got %q", c.Port)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LintRulesFile != "" {
		if _, err := os.Stat(c.LintRulesFile); err != nil {
			return fmt.Errorf("LINT_RULES_FILE: %w", err)
		}
	}
	if seg := c.Segment(); seg != "" && strings.TrimSpace(seg) != "" {
		return fmt.Errorf("HL7_SEGMENT_DELIMITER must be whitespace, got %q", c.SegmentDelimiter)
	}
	return nil
}

// Segment returns the configured segment delimiter. "" means sniff the
// input.
func (c Config) Segment() string {
	return delim.ParseSegment(c.SegmentDelimiter)
}

// SlogLevel returns the configured log level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	l, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return l
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("HL7GEST_LOG_LEVEL: %w", err)
	}
	return l, nil
}

func or(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func orInt(v, fallback int) int {
	if v != 0 {
		return v
	}
	return fallback
}

func orInt64(v, fallback int64) int64 {
	if v != 0 {
		return v
	}
	return fallback
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
