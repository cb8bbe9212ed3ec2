// Herald - Multi-Source Content Monitoring and Notification
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/herald/config.yaml",
	"/etc/herald/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "HERALD_CONFIG_PATH"

// envPrefix is stripped from environment variables before mapping them to
// config paths: HERALD_SCHEDULER_FAST_INTERVAL -> scheduler.fast_interval.
const envPrefix = "HERALD_"

// defaultConfig returns a Config with all defaults applied. Defaults are
// loaded first, then overridden by the config file and environment.
func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8990,
			Timeout:         30 * time.Second,
			RateLimitReqs:   60,
			RateLimitWindow: time.Minute,
		},
		Storage: StorageConfig{
			Path: "/data/herald",
		},
		Notify: NotifyConfig{
			DescriptionLimit: 4096,
		},
		Scheduler: SchedulerConfig{
			FastInterval: 90 * time.Second,
			SlowInterval: time.Hour,
		},
		Sources: SourcesConfig{
			Alienware: SourceConfig{
				Enabled:   false,
				URL:       "https://eu.alienwarearena.com/esi/featured-tile-data/Giveaway",
				CacheSize: 5,
				MaxItems:  5,
			},
			Fanatical: SourceConfig{
				Enabled:   false,
				URL:       "https://www.fanatical.com/api/all-promotions/en",
				CacheSize: 5,
				MaxItems:  5,
			},
			GameUpdates: GameUpdatesSourceConfig{
				Enabled:   false,
				CacheSize: 10,
				MaxItems:  30,
				StripTokens: []string{
					"Download ", " Free Download", "-GOG", "-FLT", "-TENOKE",
					"-RUNE", "-SKIDROW", "-CODEX", "-PLAZA", "-EMPRESS",
					" (Build", " [Repack]", " Repack",
				},
			},
			ChatLog: ChatLogSourceConfig{
				Enabled:      false,
				CacheSize:    10,
				Marker:       "update",
				MessageLimit: 15,
			},
			OutageFeed: FeedSourceConfig{
				Enabled:   false,
				CacheSize: 3,
				MaxItems:  10,
				Keywords:  []string{"power outage", "planned outage", "electricity"},
			},
			ContestFeed: FeedSourceConfig{
				Enabled:   false,
				CacheSize: 3,
				MaxItems:  10,
				Keywords:  []string{"giveaway", "contest", "sweepstake"},
			},
			FreeGames: RedditSourceConfig{
				Enabled:   false,
				CacheSize: 10,
				MaxItems:  25,
				Subreddit: "FreeGameFindings",
			},
			CrackWatch: RedditSourceConfig{
				Enabled:   false,
				CacheSize: 10,
				MaxItems:  25,
				Subreddit: "CrackWatch",
				TagMarker: "[",
			},
		},
		Nodes: NodesConfig{
			Endpoints:       []DiscoveryEndpoint{},
			RequiredVersion: "4",
			RequiredPlugins: []string{},
			Fallback: NodeConfig{
				Host: "127.0.0.1",
				Port: 2333,
			},
			ConnectTimeout: 3 * time.Second,
			SwitchAttempts: 5,
		},
		Activity: ActivityConfig{
			Enabled:        false,
			SampleInterval: 6 * time.Minute,
			ShortCapacity:  240,
			LongCapacity:   168,
			GroupSize:      10,
			AggregateEvery: 6 * time.Hour,
			MaxCatchUp:     4,
		},
	}
}

// Load builds the configuration from layered sources:
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. Environment variables (HERALD_ prefix, highest priority)
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	applyDerived(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDerived fills values computed from other settings.
func applyDerived(cfg *Config) {
	if cfg.Sources.FreeGames.URL == "" && cfg.Sources.FreeGames.Subreddit != "" {
		cfg.Sources.FreeGames.URL = subredditListingURL(cfg.Sources.FreeGames.Subreddit)
	}
	if cfg.Sources.CrackWatch.URL == "" && cfg.Sources.CrackWatch.Subreddit != "" {
		cfg.Sources.CrackWatch.URL = subredditListingURL(cfg.Sources.CrackWatch.Subreddit)
	}
	if cfg.Notify.OperatorWebhookURL == "" {
		cfg.Notify.OperatorWebhookURL = cfg.Notify.WebhookURL
	}
}

// subredditListingURL returns the newest-first listing endpoint for a
// subreddit.
func subredditListingURL(sub string) string {
	return fmt.Sprintf("https://www.reddit.com/r/%s/new.json", sub)
}

// findConfigFile searches the env override then the default paths.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths defines which config paths parse as comma-separated
// slices when they arrive as env var strings.
var sliceConfigPaths = []string{
	"sources.gameupdates.strip_tokens",
	"sources.outagefeed.keywords",
	"sources.contestfeed.keywords",
	"nodes.required_plugins",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. Env vars come in as strings but the config expects
// slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths:
// SCHEDULER_FAST_INTERVAL (after prefix strip) -> scheduler.fast_interval.
// Only the first underscore separates the section from the key; the rest of
// the name is the snake_case field name.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))

	parts := strings.SplitN(key, "_", 2)
	if len(parts) == 1 {
		return parts[0]
	}

	// Source sections nest one level deeper:
	// SOURCES_FANATICAL_CACHE_SIZE -> sources.fanatical.cache_size
	if parts[0] == "sources" {
		sub := strings.SplitN(parts[1], "_", 2)
		if len(sub) == 2 {
			return "sources." + sub[0] + "." + sub[1]
		}
		return "sources." + sub[0]
	}

	return parts[0] + "." + parts[1]
}
