package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// envPrefix is prepended to every env tag below.
const envPrefix = "ROLLCALL_"

type Config struct {
	HTTPAddr string `yaml:"http_addr" env:"HTTP_ADDR"`
	GRPCAddr string `yaml:"grpc_addr"` // "" disables the gRPC listener

	Env string `yaml:"env" env:"ENV"` // "dev" | "prod"

	// Storage
	Store            string `yaml:"store" env:"STORE"`     // "sqlite" | "memory" | "nats"
	DBPath           string `yaml:"db_path" env:"DB_PATH"` // e.g. "./data/rollcall.db"
	NATSURL          string `yaml:"nats_url" env:"NATS_URL"`
	NATSBucketPrefix string `yaml:"nats_bucket_prefix" env:"NATS_BUCKET_PREFIX"`

	WebRoot      string   `yaml:"web_root" env:"WEB_ROOT"` // static files served at "/", empty = none
	KnownReaders []string `yaml:"known_readers" env:"KNOWN_READERS" envSeparator:","`

	LedgerKeys            string `yaml:"ledger_keys" env:"LEDGER_KEYS"`                         // "seconds" | "sequenced"
	ResyncIntervalSeconds int    `yaml:"resync_interval_seconds" env:"RESYNC_INTERVAL_SECONDS"` // 0 = no periodic resync
	ScanInput             string `yaml:"scan_input" env:"SCAN_INPUT"`                           // "-" for stdin, a path, or empty

	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`
}

var ErrUnknownStore = errors.New("store must be sqlite, memory or nats")

func Defaults() Config {
	return Config{
		HTTPAddr:         ":8080",
		GRPCAddr:         ":9090",
		Env:              "dev",
		Store:            "sqlite",
		DBPath:           "./data/rollcall.db",
		NATSURL:          "nats://127.0.0.1:4222",
		NATSBucketPrefix: "rollcall",
		LedgerKeys:       "seconds",
		LogLevel:         "info",
	}
}

// FromEnv returns the defaults with ROLLCALL_* overrides applied.
func FromEnv() (Config, error) {
	cfg := Defaults()
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	normalize(&cfg)
	return cfg, nil
}

// Load reads path (when non-empty) over the defaults, then applies
// ROLLCALL_* overrides. Unknown YAML fields are rejected.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	normalize(&cfg)

	switch cfg.Store {
	case "sqlite", "memory", "nats":
	default:
		return Config{}, fmt.Errorf("%w, got %q", ErrUnknownStore, cfg.Store)
	}
	return cfg, nil
}

// applyEnv overrides fields whose variable is set and non-empty.
// ROLLCALL_GRPC_ADDR is read by hand so that an empty value can disable
// the listener.
func applyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: envPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if v, ok := os.LookupEnv(envPrefix + "GRPC_ADDR"); ok {
		cfg.GRPCAddr = strings.TrimSpace(v)
	}
	return nil
}

func normalize(cfg *Config) {
	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))
	if cfg.Env != "dev" && cfg.Env != "prod" {
		// fail-soft: treat unknown as dev
		cfg.Env = "dev"
	}
	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))
	cfg.LedgerKeys = strings.ToLower(strings.TrimSpace(cfg.LedgerKeys))
	if cfg.ResyncIntervalSeconds < 0 {
		cfg.ResyncIntervalSeconds = 0
	}
	cfg.KnownReaders = compact(cfg.KnownReaders)
}

// compact trims every entry and drops blanks.
func compact(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, p := range in {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
