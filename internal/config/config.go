// Package config provides configuration types and loading for thebase.
package config

import "time"

// Config is the root configuration struct.
// Top-level groups: Paths, Store, Ingest, Gateway, Status, Autosave, Kafka, Slack.
type Config struct {
	Paths    PathsConfig    `json:"paths"`
	Store    StoreConfig    `json:"store"`
	Ingest   IngestConfig   `json:"ingest"`
	Gateway  GatewayConfig  `json:"gateway"`
	Status   StatusConfig   `json:"status"`
	Autosave AutosaveConfig `json:"autosave"`
	Kafka    KafkaConfig    `json:"kafka"`
	Slack    SlackConfig    `json:"slack"`
}

// ---------------------------------------------------------------------------
// Paths – filesystem locations
// ---------------------------------------------------------------------------

// PathsConfig groups all filesystem path settings.
type PathsConfig struct {
	DataDir string `json:"dataDir" envconfig:"DATA_DIR"`
}

// ---------------------------------------------------------------------------
// Store – row storage backend
// ---------------------------------------------------------------------------

// StoreConfig selects and configures the row store.
type StoreConfig struct {
	Driver string `json:"driver" envconfig:"DRIVER"`    // "sqlite" (default) or "postgres"
	Path   string `json:"path" envconfig:"SQLITE_PATH"` // sqlite database file
	DSN    string `json:"dsn" envconfig:"DSN"`          // postgres connection string
}

// ---------------------------------------------------------------------------
// Ingest – bot-facing endpoints
// ---------------------------------------------------------------------------

// IngestConfig configures the shared-secret ingestion endpoints.
type IngestConfig struct {
	Secret        string `json:"secret" envconfig:"SECRET"`
	DefaultSource string `json:"defaultSource" envconfig:"DEFAULT_SOURCE"`
	MaxBodyBytes  int64  `json:"maxBodyBytes" envconfig:"MAX_BODY_BYTES"`
}

// ---------------------------------------------------------------------------
// Gateway – HTTP server networking
// ---------------------------------------------------------------------------

// GatewayConfig contains HTTP server settings.
type GatewayConfig struct {
	Host         string `json:"host" envconfig:"HOST"`
	Port         int    `json:"port" envconfig:"PORT"`
	PublicURL    string `json:"publicUrl" envconfig:"PUBLIC_URL"`
	AllowOrigin  string `json:"allowOrigin" envconfig:"ALLOW_ORIGIN"`
	AllowSignUp  bool   `json:"allowSignUp" envconfig:"ALLOW_SIGNUP"`
	SessionHours int    `json:"sessionHours" envconfig:"SESSION_HOURS"`
}

// ---------------------------------------------------------------------------
// Status – working/idle indicator
// ---------------------------------------------------------------------------

// StatusConfig configures the status indicator timers.
type StatusConfig struct {
	PollInterval  time.Duration `json:"pollInterval" envconfig:"POLL_INTERVAL"`
	TickInterval  time.Duration `json:"tickInterval" envconfig:"TICK_INTERVAL"`
	StaleAfter    time.Duration `json:"staleAfter" envconfig:"STALE_AFTER"`
	CalendarLimit int           `json:"calendarLimit" envconfig:"CALENDAR_LIMIT"`
}

// AutosaveConfig configures the document/file editor autosave debounce.
type AutosaveConfig struct {
	Quiet time.Duration `json:"quiet" envconfig:"QUIET"`
}

// ---------------------------------------------------------------------------
// Kafka – optional event mirroring
// ---------------------------------------------------------------------------

// KafkaConfig configures mirroring of ingested events to a Kafka topic.
type KafkaConfig struct {
	Enabled bool   `json:"enabled" envconfig:"ENABLED"`
	Brokers string `json:"brokers" envconfig:"BROKERS"`
	Topic   string `json:"topic" envconfig:"TOPIC"`
}

// ---------------------------------------------------------------------------
// Slack – optional status notifications
// ---------------------------------------------------------------------------

// SlackConfig configures status change notifications.
type SlackConfig struct {
	Enabled    bool   `json:"enabled" envconfig:"ENABLED"`
	WebhookURL string `json:"webhookUrl" envconfig:"WEBHOOK_URL"`
	Channel    string `json:"channel,omitempty" envconfig:"CHANNEL"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			DataDir: "~/.thebase",
		},
		Store: StoreConfig{
			Driver: "sqlite",
			Path:   "~/.thebase/thebase.db",
		},
		Ingest: IngestConfig{
			DefaultSource: "clawdbot",
			MaxBodyBytes:  1 << 20,
		},
		Gateway: GatewayConfig{
			Host:         "127.0.0.1", // Secure default
			Port:         18800,
			SessionHours: 24 * 7,
		},
		Status: StatusConfig{
			PollInterval:  30 * time.Second,
			TickInterval:  60 * time.Second,
			StaleAfter:    10 * time.Minute,
			CalendarLimit: 500,
		},
		Autosave: AutosaveConfig{
			Quiet: 900 * time.Millisecond,
		},
		Kafka: KafkaConfig{
			Topic: "thebase.events",
		},
	}
}
