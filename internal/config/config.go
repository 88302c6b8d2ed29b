// Package config reads server settings from the environment, after loading
// an optional .env file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends.
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
)

// Export sinks.
const (
	SinkNone       = "none"
	SinkFilesystem = "filesystem"
	SinkS3         = "s3"
)

// Config is everything the server needs to start.
type Config struct {
	Port     int
	LogLevel slog.Level

	StorageType string
	DBPath      string

	ExportSink string
	ExportDir  string
	S3Bucket   string
	S3Prefix   string

	DecodeWorkers int
	SessionTTL    time.Duration
	CORSOrigins   []string
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Port:          8080,
		LogLevel:      slog.LevelInfo,
		StorageType:   StorageSQLite,
		DBPath:        "data/promo.db",
		ExportSink:    SinkNone,
		ExportDir:     "data/exports",
		DecodeWorkers: 4,
		SessionTTL:    30 * time.Minute,
		CORSOrigins:   []string{"*"},
	}
}

// Load reads files (default ".env") into the process environment and then
// builds a Config. Missing .env files are not an error.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load env file: %w", err)
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from lookup, applying defaults for unset keys.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	r := reader{lookup: lookup}

	cfg.Port = r.int("PORT", cfg.Port)
	cfg.LogLevel = r.level("LOG_LEVEL", cfg.LogLevel)
	cfg.StorageType = r.oneOf("STORAGE_TYPE", cfg.StorageType, StorageMemory, StorageSQLite)
	cfg.DBPath = r.string("DB_PATH", cfg.DBPath)
	cfg.ExportSink = r.oneOf("EXPORT_SINK", cfg.ExportSink, SinkNone, SinkFilesystem, SinkS3)
	cfg.ExportDir = r.string("EXPORT_DIR", cfg.ExportDir)
	cfg.S3Bucket = r.string("S3_BUCKET_NAME", cfg.S3Bucket)
	cfg.S3Prefix = r.string("S3_PREFIX", cfg.S3Prefix)
	cfg.DecodeWorkers = r.int("DECODE_WORKERS", cfg.DecodeWorkers)
	cfg.SessionTTL = r.duration("SESSION_TTL", cfg.SessionTTL)
	cfg.CORSOrigins = r.list("CORS_ORIGINS", cfg.CORSOrigins)

	if r.err != nil {
		return Config{}, r.err
	}
	return cfg, cfg.Validate()
}

// Validate checks settings that depend on each other.
func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config: PORT out of range: %d", c.Port)
	}
	if c.DecodeWorkers < 1 {
		return fmt.Errorf("config: DECODE_WORKERS must be positive: %d", c.DecodeWorkers)
	}
	if c.SessionTTL < 0 {
		return fmt.Errorf("config: SESSION_TTL must not be negative: %s", c.SessionTTL)
	}
	if c.ExportSink == SinkS3 && c.S3Bucket == "" {
		return errors.New("config: S3_BUCKET_NAME is required when EXPORT_SINK=s3")
	}
	return nil
}

// reader keeps the first parse error so keys can be read in a row.
type reader struct {
	lookup func(string) (string, bool)
	err    error
}

func (r *reader) raw(key string) (string, bool) {
	v, ok := r.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (r *reader) fail(key, value string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("config: invalid %s value %q: %w", key, value, err)
	}
}

func (r *reader) string(key, def string) string {
	if v, ok := r.raw(key); ok {
		return v
	}
	return def
}

func (r *reader) int(key string, def int) int {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return n
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return d
}

func (r *reader) level(key string, def slog.Level) slog.Level {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(v)); err != nil {
		r.fail(key, v, err)
		return def
	}
	return lvl
}

func (r *reader) oneOf(key, def string, allowed ...string) string {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	v = strings.ToLower(v)
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	r.fail(key, v, fmt.Errorf("want one of %s", strings.Join(allowed, ", ")))
	return def
}

func (r *reader) list(key string, def []string) []string {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
