package lib

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"gopkg.in/yaml.v3"
)

// Config contains runtime configuration loaded from environment variables.
type Config struct {
	DatabaseURL          string
	HTTPAddr             string
	LogLevel             string
	SeedRelays           []string
	FetchBurst           int
	FetchPerMinute       int
	DesiredFetchInterval time.Duration
	SubscribeLookback    time.Duration
}

type seedRelaysFile struct {
	Relays []string `yaml:"relays"`
}

func LoadConfig() (Config, error) {
	cfg := Config{
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		HTTPAddr:             getOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:             getOrDefault("LOG_LEVEL", "INFO"),
		FetchBurst:           getIntOrDefault("FETCH_BURST", 10),
		FetchPerMinute:       getIntOrDefault("FETCH_PER_MIN", 60),
		DesiredFetchInterval: time.Duration(getIntOrDefault("DESIRED_FETCH_INTERVAL_SECONDS", 10)) * time.Second,
		SubscribeLookback:    time.Duration(getIntOrDefault("SUBSCRIBE_LOOKBACK_SECONDS", 3600)) * time.Second,
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.FetchBurst <= 0 {
		return Config{}, fmt.Errorf("FETCH_BURST must be > 0")
	}
	if cfg.FetchPerMinute <= 0 {
		return Config{}, fmt.Errorf("FETCH_PER_MIN must be > 0")
	}
	if cfg.DesiredFetchInterval <= 0 {
		return Config{}, fmt.Errorf("DESIRED_FETCH_INTERVAL_SECONDS must be > 0")
	}
	if cfg.SubscribeLookback < 0 {
		return Config{}, fmt.Errorf("SUBSCRIBE_LOOKBACK_SECONDS must be >= 0")
	}

	seeds := splitList(os.Getenv("SEED_RELAYS"))
	if path := strings.TrimSpace(os.Getenv("SEED_RELAYS_FILE")); path != "" {
		fromFile, err := loadSeedRelaysFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("SEED_RELAYS_FILE is invalid: %w", err)
		}
		seeds = append(seeds, fromFile...)
	}

	relays, err := normalizeSeedRelays(seeds)
	if err != nil {
		return Config{}, err
	}
	cfg.SeedRelays = relays

	return cfg, nil
}

func loadSeedRelaysFile(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file seedRelaysFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return file.Relays, nil
}

func normalizeSeedRelays(raw []string) ([]string, error) {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, url := range raw {
		url = strings.TrimSpace(url)
		if url == "" {
			continue
		}
		if !nostr.IsValidRelayURL(url) {
			return nil, fmt.Errorf("seed relay %q is not a valid relay URL", url)
		}
		url = nostr.NormalizeURL(url)
		if _, ok := seen[url]; ok {
			continue
		}
		seen[url] = struct{}{}
		out = append(out, url)
	}
	return out, nil
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

func getOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getIntOrDefault(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
