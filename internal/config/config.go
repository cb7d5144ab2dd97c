// Package config loads and validates backup configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SiteSpec identifies one site to mirror and archive. Name doubles as
// the remote namespace and the log tag; DownloadDir must be unique per
// site because each pipeline owns its directory exclusively.
type SiteSpec struct {
	Name        string `mapstructure:"name"`
	URL         string `mapstructure:"url"`
	DownloadDir string `mapstructure:"download_dir"`
}

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Sites   []SiteSpec    `mapstructure:"sites"`
	Crawl   CrawlConfig   `mapstructure:"crawl"`
	Watch   WatchConfig   `mapstructure:"watch"`
	Storage StorageConfig `mapstructure:"storage"`
	History HistoryConfig `mapstructure:"history"`
	Notify  NotifyConfig  `mapstructure:"notify"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// CrawlConfig governs the external wget invocation.
type CrawlConfig struct {
	Binary          string             `mapstructure:"binary"`
	TimeoutSeconds  int                `mapstructure:"timeout_seconds"`
	WaitRetrySec    int                `mapstructure:"wait_retry_seconds"`
	Tries           int                `mapstructure:"tries"`
	RateLimit       string             `mapstructure:"rate_limit"`
	RecursionLevel  int                `mapstructure:"recursion_level"`
	ForceRedownload bool               `mapstructure:"force_redownload"`
	NodeRecovery    NodeRecoveryConfig `mapstructure:"node_recovery"`
}

// NodeRecoveryConfig enables Drupal node-gap recovery for sites whose
// content lives under sequential /SECTION/node/N paths.
type NodeRecoveryConfig struct {
	Sections       []string `mapstructure:"sections"`
	ProbeTimeout   string   `mapstructure:"probe_timeout"`
	MaxForwardScan int      `mapstructure:"max_forward_scan"`
}

// WatchConfig controls completion-marker polling.
type WatchConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Marker       string        `mapstructure:"marker"`
	GraceWindow  time.Duration `mapstructure:"grace_window"`
}

// StorageConfig selects and parameterizes the blob store backend.
type StorageConfig struct {
	Provider string `mapstructure:"provider"`
	Prefix   string `mapstructure:"prefix"`
	GCS      struct {
		Bucket string `mapstructure:"bucket"`
	} `mapstructure:"gcs"`
	Local struct {
		BaseDir string `mapstructure:"base_dir"`
	} `mapstructure:"local"`
}

// HistoryConfig controls run-history persistence.
type HistoryConfig struct {
	Provider string `mapstructure:"provider"`
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
}

// NotifyConfig selects the run notification channel.
type NotifyConfig struct {
	Provider string `mapstructure:"provider"`
	Mail     struct {
		To      string `mapstructure:"to"`
		Command string `mapstructure:"command"`
	} `mapstructure:"mail"`
	PubSub struct {
		ProjectID string `mapstructure:"project_id"`
		Topic     string `mapstructure:"topic"`
	} `mapstructure:"pubsub"`
}

// ServerConfig controls the optional health/metrics endpoint.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features and the file sink.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	File        string `mapstructure:"file"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BACKUP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawl.binary", "wget")
	v.SetDefault("crawl.timeout_seconds", 60)
	v.SetDefault("crawl.wait_retry_seconds", 30)
	v.SetDefault("crawl.tries", 5)
	v.SetDefault("crawl.rate_limit", "100k")
	v.SetDefault("crawl.recursion_level", 15)
	v.SetDefault("crawl.force_redownload", false)
	v.SetDefault("crawl.node_recovery.probe_timeout", "5s")
	v.SetDefault("crawl.node_recovery.max_forward_scan", 200)
	v.SetDefault("watch.timeout", "10m")
	v.SetDefault("watch.poll_interval", "5s")
	v.SetDefault("watch.marker", ".backup_complete")
	v.SetDefault("watch.grace_window", "1h")
	v.SetDefault("storage.provider", "noop")
	v.SetDefault("storage.prefix", "")
	v.SetDefault("history.provider", "noop")
	v.SetDefault("history.table", "backup_runs")
	v.SetDefault("notify.provider", "noop")
	v.SetDefault("notify.mail.command", "mail")
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 9090)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values before any pipeline starts.
// A malformed site entry fails the whole run up front.
func (c Config) Validate() error {
	if len(c.Sites) == 0 {
		return fmt.Errorf("config: at least one site is required")
	}
	names := make(map[string]struct{}, len(c.Sites))
	dirs := make(map[string]struct{}, len(c.Sites))
	for i, site := range c.Sites {
		if strings.TrimSpace(site.Name) == "" {
			return fmt.Errorf("config: sites[%d]: name is required", i)
		}
		if strings.TrimSpace(site.URL) == "" {
			return fmt.Errorf("config: sites[%d] (%s): url is required", i, site.Name)
		}
		if strings.TrimSpace(site.DownloadDir) == "" {
			return fmt.Errorf("config: sites[%d] (%s): download_dir is required", i, site.Name)
		}
		if _, dup := names[site.Name]; dup {
			return fmt.Errorf("config: duplicate site name %q", site.Name)
		}
		if _, dup := dirs[site.DownloadDir]; dup {
			return fmt.Errorf("config: download_dir %q is used by more than one site", site.DownloadDir)
		}
		names[site.Name] = struct{}{}
		dirs[site.DownloadDir] = struct{}{}
	}
	if c.Watch.Timeout <= 0 {
		return fmt.Errorf("config: watch.timeout must be > 0")
	}
	if c.Watch.PollInterval <= 0 {
		return fmt.Errorf("config: watch.poll_interval must be > 0")
	}
	if c.Watch.PollInterval > c.Watch.Timeout {
		return fmt.Errorf("config: watch.poll_interval must not exceed watch.timeout")
	}
	if c.Watch.Marker == "" {
		return fmt.Errorf("config: watch.marker is required")
	}
	switch c.Storage.Provider {
	case "gcs":
		if c.Storage.GCS.Bucket == "" {
			return fmt.Errorf("config: storage.gcs.bucket is required for the gcs provider")
		}
	case "local":
		if c.Storage.Local.BaseDir == "" {
			return fmt.Errorf("config: storage.local.base_dir is required for the local provider")
		}
	case "noop":
	default:
		return fmt.Errorf("config: unknown storage provider %q", c.Storage.Provider)
	}
	switch c.History.Provider {
	case "postgres":
		if c.History.DSN == "" {
			return fmt.Errorf("config: history.dsn is required for the postgres provider")
		}
	case "noop":
	default:
		return fmt.Errorf("config: unknown history provider %q", c.History.Provider)
	}
	switch c.Notify.Provider {
	case "mail":
		if c.Notify.Mail.To == "" {
			return fmt.Errorf("config: notify.mail.to is required for the mail provider")
		}
	case "pubsub":
		if c.Notify.PubSub.ProjectID == "" || c.Notify.PubSub.Topic == "" {
			return fmt.Errorf("config: notify.pubsub.project_id and topic are required for the pubsub provider")
		}
	case "noop":
	default:
		return fmt.Errorf("config: unknown notify provider %q", c.Notify.Provider)
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("config: server.port must be > 0 when the server is enabled")
	}
	return nil
}
