// Herald - Multi-Source Content Monitoring and Notification
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

// Package config provides Herald's layered configuration: built-in defaults,
// an optional YAML file, then environment variables, loaded with koanf and
// validated before use.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration for the Herald service.
type Config struct {
	Logging   LoggingConfig   `koanf:"logging"`
	Server    ServerConfig    `koanf:"server"`
	Storage   StorageConfig   `koanf:"storage"`
	Notify    NotifyConfig    `koanf:"notify"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Sources   SourcesConfig   `koanf:"sources"`
	Nodes     NodesConfig     `koanf:"nodes"`
	Activity  ActivityConfig  `koanf:"activity"`
}

// LoggingConfig controls the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error fatal panic disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// ServerConfig controls the operator HTTP surface.
type ServerConfig struct {
	Host    string        `koanf:"host" validate:"required"`
	Port    int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout time.Duration `koanf:"timeout" validate:"min=1s"`

	// RateLimitReqs caps requests per client per RateLimitWindow.
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"min=1"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window" validate:"min=1s"`
}

// StorageConfig controls the badger persistent store.
type StorageConfig struct {
	Path string `koanf:"path" validate:"required"`
}

// NotifyConfig controls notification delivery.
type NotifyConfig struct {
	// WebhookURL receives the normalized notification payloads.
	WebhookURL string `koanf:"webhook_url"`

	// OperatorWebhookURL receives out-of-band operator reports such as
	// unparseable listing titles. Falls back to WebhookURL when empty.
	OperatorWebhookURL string `koanf:"operator_webhook_url"`

	// DescriptionLimit clamps payload descriptions to the platform limit.
	DescriptionLimit int `koanf:"description_limit" validate:"min=1"`
}

// SchedulerConfig controls the polling cadences.
type SchedulerConfig struct {
	// FastInterval is the cadence of the round-robin source rotation.
	// Exactly one source adapter runs per fast tick.
	FastInterval time.Duration `koanf:"fast_interval" validate:"min=1s"`

	// SlowInterval is the cadence of registry refresh and store maintenance.
	SlowInterval time.Duration `koanf:"slow_interval" validate:"min=1s"`
}

// SourceConfig is the shared per-source adapter configuration.
type SourceConfig struct {
	Enabled   bool   `koanf:"enabled"`
	URL       string `koanf:"url"`
	CacheSize int    `koanf:"cache_size" validate:"min=1"`

	// MaxItems bounds how many upstream entries one pass examines.
	MaxItems int `koanf:"max_items" validate:"min=1"`
}

// FeedSourceConfig configures an RSS/Atom feed adapter.
type FeedSourceConfig struct {
	Enabled   bool   `koanf:"enabled"`
	URL       string `koanf:"url"`
	CacheSize int    `koanf:"cache_size" validate:"min=1"`
	MaxItems  int    `koanf:"max_items" validate:"min=1"`

	// Keywords gates relevance: an entry must contain at least one keyword
	// (case-insensitive) in its title or content to be eligible.
	Keywords []string `koanf:"keywords"`
}

// RedditSourceConfig configures a subreddit-listing adapter.
type RedditSourceConfig struct {
	Enabled   bool   `koanf:"enabled"`
	URL       string `koanf:"url"`
	CacheSize int    `koanf:"cache_size" validate:"min=1"`
	MaxItems  int    `koanf:"max_items" validate:"min=1"`

	Subreddit string `koanf:"subreddit"`

	// TagMarker, when set, requires the submission title to contain it.
	TagMarker string `koanf:"tag_marker"`

	AllowNSFW bool `koanf:"allow_nsfw"`
}

// ChatLogSourceConfig configures the chat-log adapter.
type ChatLogSourceConfig struct {
	Enabled   bool   `koanf:"enabled"`
	URL       string `koanf:"url"`
	CacheSize int    `koanf:"cache_size" validate:"min=1"`

	// Marker identifies announcement messages within the log.
	Marker string `koanf:"marker"`

	// MessageLimit caps processed messages per cycle, independent of the
	// cache size.
	MessageLimit int `koanf:"message_limit" validate:"min=1"`

	// TranslateURL is the translation endpoint for detail-page text.
	// Translation failures degrade to the untranslated text.
	TranslateURL string `koanf:"translate_url"`
}

// GameUpdatesSourceConfig configures the game-update listing adapter.
type GameUpdatesSourceConfig struct {
	Enabled   bool   `koanf:"enabled"`
	URL       string `koanf:"url"`
	CacheSize int    `koanf:"cache_size" validate:"min=1"`
	MaxItems  int    `koanf:"max_items" validate:"min=1"`

	// StripTokens are decoration substrings removed from raw titles before
	// version extraction (distributor tags, repack markers).
	StripTokens []string `koanf:"strip_tokens"`
}

// SourcesConfig holds configuration for every source adapter.
type SourcesConfig struct {
	Alienware   SourceConfig            `koanf:"alienware"`
	Fanatical   SourceConfig            `koanf:"fanatical"`
	GameUpdates GameUpdatesSourceConfig `koanf:"gameupdates"`
	ChatLog     ChatLogSourceConfig     `koanf:"chatlog"`
	OutageFeed  FeedSourceConfig        `koanf:"outagefeed"`
	ContestFeed FeedSourceConfig        `koanf:"contestfeed"`
	FreeGames   RedditSourceConfig      `koanf:"freegames"`
	CrackWatch  RedditSourceConfig      `koanf:"crackwatch"`
}

// DiscoveryEndpoint is one node-discovery API, queried in listed order.
type DiscoveryEndpoint struct {
	URL string `koanf:"url" validate:"required,url"`
}

// NodeConfig describes one streaming backend node.
type NodeConfig struct {
	Host     string `koanf:"host" validate:"required"`
	Port     int    `koanf:"port" validate:"min=1,max=65535"`
	Password string `koanf:"password"`
	Secure   bool   `koanf:"secure"`
}

// NodesConfig controls the streaming node registry and selector.
type NodesConfig struct {
	Endpoints []DiscoveryEndpoint `koanf:"endpoints" validate:"dive"`

	// RequiredVersion filters discovery candidates by protocol version.
	RequiredVersion string `koanf:"required_version"`

	// RequiredPlugins filters candidates missing any listed capability.
	RequiredPlugins []string `koanf:"required_plugins"`

	// Fallback is used when every discovery endpoint comes back empty.
	Fallback NodeConfig `koanf:"fallback"`

	ConnectTimeout time.Duration `koanf:"connect_timeout" validate:"min=1s"`

	// SwitchAttempts bounds the failover retry loop.
	SwitchAttempts int `koanf:"switch_attempts" validate:"min=1"`
}

// ActivityConfig controls the server-activity sampler. The sampler runs on
// its own cadence, independent of the scheduler ticks; the buffer sizing
// derives from it: SampleInterval x ShortCapacity is the short horizon,
// SampleInterval x GroupSize is one long-horizon point, and AggregateEvery
// must be a whole number of those points.
type ActivityConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Endpoint string `koanf:"endpoint"`

	// SampleInterval is the sampling cadence. The default of six minutes
	// makes ShortCapacity span one day and GroupSize span one hour.
	SampleInterval time.Duration `koanf:"sample_interval" validate:"min=1s"`

	// ShortCapacity is the sampling-resolution buffer length (one day at
	// the default cadence).
	ShortCapacity int `koanf:"short_capacity" validate:"min=1"`

	// LongCapacity is the aggregated buffer length (one week of hourly
	// points at the default cadence).
	LongCapacity int `koanf:"long_capacity" validate:"min=1"`

	// GroupSize is how many consecutive samples average into one
	// long-horizon point (one hour at the default cadence).
	GroupSize int `koanf:"group_size" validate:"min=1"`

	// AggregateEvery is the decimation cadence. Each trigger decimates
	// the elapsed window's worth of short samples into all its group
	// averages.
	AggregateEvery time.Duration `koanf:"aggregate_every" validate:"min=1m"`

	// MaxCatchUp bounds how many elapsed windows a late invocation may
	// decimate at once.
	MaxCatchUp int `koanf:"max_catch_up" validate:"min=1"`
}

// sourceURL pairs a source name with its enablement and URL for the
// cross-field validation pass.
type sourceURL struct {
	name    string
	enabled bool
	url     string
}

// Validate checks the configuration for structural errors plus the
// cross-field rules the struct tags cannot express.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	srcs := []sourceURL{
		{"alienware", c.Sources.Alienware.Enabled, c.Sources.Alienware.URL},
		{"fanatical", c.Sources.Fanatical.Enabled, c.Sources.Fanatical.URL},
		{"gameupdates", c.Sources.GameUpdates.Enabled, c.Sources.GameUpdates.URL},
		{"chatlog", c.Sources.ChatLog.Enabled, c.Sources.ChatLog.URL},
		{"outagefeed", c.Sources.OutageFeed.Enabled, c.Sources.OutageFeed.URL},
		{"contestfeed", c.Sources.ContestFeed.Enabled, c.Sources.ContestFeed.URL},
		{"freegames", c.Sources.FreeGames.Enabled, c.Sources.FreeGames.URL},
		{"crackwatch", c.Sources.CrackWatch.Enabled, c.Sources.CrackWatch.URL},
	}
	for _, s := range srcs {
		if s.enabled && s.url == "" {
			return fmt.Errorf("source %s is enabled but has no url", s.name)
		}
	}

	if c.Activity.Enabled && c.Activity.Endpoint == "" {
		return fmt.Errorf("activity sampler is enabled but has no endpoint")
	}
	if c.Nodes.Fallback.Host == "" {
		return fmt.Errorf("nodes.fallback.host is required")
	}
	return nil
}
