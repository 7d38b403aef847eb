package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultAddr          = "127.0.0.1:8090"
	defaultTickInterval  = 100 * time.Millisecond
	defaultLeaseTTL      = 10 * time.Second
	defaultRetention     = 7 * 24 * time.Hour
	defaultPruneInterval = time.Hour
	defaultLogLevel      = "info"
)

type Config struct {
	WorldPath     string
	DBPath        string
	Addr          string
	AdvertiseURL  string
	RedisAddr     string
	ArchiveDir    string
	TickInterval  time.Duration
	LeaseTTL      time.Duration
	Retention     time.Duration
	PruneInterval time.Duration
	LogLevel      string
}

// LoadConfig layers defaults, SPAWNLORD_* environment variables and flags,
// in that order. The caller loads any .env file before calling it.
func LoadConfig(args []string) (Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, fmt.Errorf("failed to get cwd: %w", err)
	}

	worldPath := envOrDefault("SPAWNLORD_WORLD", filepath.Join(cwd, "world.yaml"))
	dbPath := envOrDefault("SPAWNLORD_DB_PATH", filepath.Join(cwd, "spawnlord.db"))
	addr := addrFromEnv(defaultAddr)

	durations := map[string]time.Duration{
		"SPAWNLORD_TICK_INTERVAL":  defaultTickInterval,
		"SPAWNLORD_LEASE_TTL":      defaultLeaseTTL,
		"SPAWNLORD_RETENTION":      defaultRetention,
		"SPAWNLORD_PRUNE_INTERVAL": defaultPruneInterval,
	}
	for key := range durations {
		raw := os.Getenv(key)
		if raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		if parsed < 0 || (parsed == 0 && key != "SPAWNLORD_RETENTION") {
			return Config{}, fmt.Errorf("%s must be positive", key)
		}
		durations[key] = parsed
	}

	flagSet := flag.NewFlagSet("spawnlord-d", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagWorld := flagSet.String("world", worldPath, "path to the world file (YAML or JSON)")
	flagDB := flagSet.String("db", dbPath, "path to SQLite database")
	flagAddr := flagSet.String("addr", addr, "HTTP listen address")
	flagAdvertise := flagSet.String("advertise", os.Getenv("SPAWNLORD_ADVERTISE_URL"), "URL other nodes redirect writes to (default http://<addr>)")
	flagRedis := flagSet.String("redis", os.Getenv("SPAWNLORD_REDIS_ADDR"), "Redis address; enables shared tier state and Redis leases")
	flagArchive := flagSet.String("archive-dir", os.Getenv("SPAWNLORD_ARCHIVE_DIR"), "archive expired events to gzipped blobs under this directory instead of deleting them")
	flagTick := flagSet.String("tick", durations["SPAWNLORD_TICK_INTERVAL"].String(), "driver tick interval")
	flagLease := flagSet.String("lease-ttl", durations["SPAWNLORD_LEASE_TTL"].String(), "leadership lease TTL")
	flagRetention := flagSet.String("retention", durations["SPAWNLORD_RETENTION"].String(), "event retention (0 disables pruning)")
	flagPrune := flagSet.String("prune-interval", durations["SPAWNLORD_PRUNE_INTERVAL"].String(), "how often to prune events")
	flagLog := flagSet.String("log-level", envOrDefault("SPAWNLORD_LOG_LEVEL", defaultLogLevel), "log level: debug|info|warn|error")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			flagSet.SetOutput(os.Stdout)
			flagSet.PrintDefaults()
		}
		return Config{}, err
	}

	tick, err := positiveDuration("tick interval", *flagTick)
	if err != nil {
		return Config{}, err
	}
	leaseTTL, err := positiveDuration("lease ttl", *flagLease)
	if err != nil {
		return Config{}, err
	}
	pruneInterval, err := positiveDuration("prune interval", *flagPrune)
	if err != nil {
		return Config{}, err
	}
	retention, err := time.ParseDuration(*flagRetention)
	if err != nil {
		return Config{}, fmt.Errorf("invalid retention: %w", err)
	}
	if retention < 0 {
		return Config{}, errors.New("retention must not be negative")
	}

	config := Config{
		WorldPath:     resolvePath(*flagWorld, cwd),
		DBPath:        resolvePath(*flagDB, cwd),
		Addr:          strings.TrimSpace(*flagAddr),
		AdvertiseURL:  strings.TrimRight(strings.TrimSpace(*flagAdvertise), "/"),
		RedisAddr:     strings.TrimSpace(*flagRedis),
		ArchiveDir:    resolvePath(*flagArchive, cwd),
		TickInterval:  tick,
		LeaseTTL:      leaseTTL,
		Retention:     retention,
		PruneInterval: pruneInterval,
		LogLevel:      strings.ToLower(strings.TrimSpace(*flagLog)),
	}

	if config.Addr == "" {
		return Config{}, errors.New("addr cannot be empty")
	}
	if config.WorldPath == "" {
		return Config{}, errors.New("world cannot be empty")
	}
	if config.AdvertiseURL == "" {
		config.AdvertiseURL = "http://" + config.Addr
	}
	switch config.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return Config{}, fmt.Errorf("unsupported log level: %s", config.LogLevel)
	}

	return config, nil
}

func positiveDuration(name, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", name)
	}
	return d, nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func addrFromEnv(fallback string) string {
	if value := os.Getenv("SPAWNLORD_ADDR"); value != "" {
		return value
	}
	if port := os.Getenv("SPAWNLORD_PORT"); port != "" {
		return fmt.Sprintf("127.0.0.1:%s", port)
	}
	return fallback
}

func resolvePath(path string, cwd string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" || filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Join(cwd, trimmed)
}
