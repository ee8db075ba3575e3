package config

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.zpp/config.toml.
type Config struct {
	DefaultSession string   `toml:"default_session"`
	LogLevel       string   `toml:"log_level"`
	Server         Server   `toml:"server"`
	Realm          Realm    `toml:"realm"`
	Presence       Presence `toml:"presence"`
	Compose        Compose  `toml:"compose"`
}

// Server holds the Zulip endpoint and bot/user credentials.
type Server struct {
	URL    string `toml:"url"`
	Email  string `toml:"email"`
	APIKey string `toml:"api_key"`
}

// Realm holds organization-level policy the compose pipeline enforces locally.
type Realm struct {
	AllEveryoneWarnThreshold int    `toml:"all_everyone_warn_threshold"`
	AnnounceWarnThreshold    int    `toml:"announce_warn_threshold"`
	MandatoryTopics          bool   `toml:"mandatory_topics"`
	EmptyTopicPlaceholder    string `toml:"empty_topic_placeholder"`
	AnnounceStream           string `toml:"announce_stream"`
	// MirrorRealm accepts recipient addresses that are not known users.
	MirrorRealm bool `toml:"mirror_realm"`
	// RequireMirror refuses to send while the mirroring bridge is down.
	RequireMirror bool `toml:"require_mirror"`
}

// Presence configures the presence model and the heartbeat.
type Presence struct {
	OfflineThresholdSeconds int64 `toml:"offline_threshold_seconds"`
	ShareEnabled            bool  `toml:"share_enabled"`
	PingIntervalSeconds     int   `toml:"ping_interval_seconds"`
}

// Compose holds per-user compose preferences.
type Compose struct {
	EnterSends bool `toml:"enter_sends"`
}

// Defaults mirror the server-side defaults of a fresh organization.
const (
	DefaultAllEveryoneWarnThreshold = 15
	DefaultAnnounceWarnThreshold    = 60
	DefaultEmptyTopicPlaceholder    = "(no topic)"
	DefaultAnnounceStream           = "announce"
	DefaultOfflineThresholdSeconds  = 140
	DefaultPingIntervalSeconds      = 60
)

// Default returns a config with every threshold at its default.
func Default() *Config {
	return &Config{
		Realm: Realm{
			AllEveryoneWarnThreshold: DefaultAllEveryoneWarnThreshold,
			AnnounceWarnThreshold:    DefaultAnnounceWarnThreshold,
			EmptyTopicPlaceholder:    DefaultEmptyTopicPlaceholder,
			AnnounceStream:           DefaultAnnounceStream,
		},
		Presence: Presence{
			OfflineThresholdSeconds: DefaultOfflineThresholdSeconds,
			ShareEnabled:            true,
			PingIntervalSeconds:     DefaultPingIntervalSeconds,
		},
		Compose: Compose{EnterSends: true},
	}
}

// WithDefaults fills zero-valued thresholds so a partial file still behaves.
func (c *Config) WithDefaults() *Config {
	if c.Realm.AllEveryoneWarnThreshold <= 0 {
		c.Realm.AllEveryoneWarnThreshold = DefaultAllEveryoneWarnThreshold
	}
	if c.Realm.AnnounceWarnThreshold <= 0 {
		c.Realm.AnnounceWarnThreshold = DefaultAnnounceWarnThreshold
	}
	if c.Realm.EmptyTopicPlaceholder == "" {
		c.Realm.EmptyTopicPlaceholder = DefaultEmptyTopicPlaceholder
	}
	if c.Realm.AnnounceStream == "" {
		c.Realm.AnnounceStream = DefaultAnnounceStream
	}
	if c.Presence.OfflineThresholdSeconds <= 0 {
		c.Presence.OfflineThresholdSeconds = DefaultOfflineThresholdSeconds
	}
	if c.Presence.PingIntervalSeconds <= 0 {
		c.Presence.PingIntervalSeconds = DefaultPingIntervalSeconds
	}
	return c
}

// Validate checks that the server section is usable for a daemon.
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return errors.New("server.url is required")
	}
	u, err := url.Parse(c.Server.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("server.url must be an absolute URL")
	}
	if c.Server.Email == "" || c.Server.APIKey == "" {
		return errors.New("server.email and server.api_key are required")
	}
	return nil
}

// RealmURL returns the server URL without a trailing slash.
func (c *Config) RealmURL() string {
	return strings.TrimRight(c.Server.URL, "/")
}

// Load reads config from the given path. Keys missing from the file keep
// their defaults. Returns nil and error if the file is missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	_, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	return cfg.WithDefaults(), nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
