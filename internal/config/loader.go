package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".thebase"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
)

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("THEBASE_CONFIG")); explicit != "" {
		if strings.HasPrefix(explicit, "~") {
			home, err := resolveHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, explicit[1:]), nil
		}
		return explicit, nil
	}
	home, err := resolveHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

func resolveHomeDir() (string, error) {
	if h := strings.TrimSpace(os.Getenv("THEBASE_HOME")); h != "" {
		if strings.HasPrefix(h, "~") {
			base, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(base, h[1:]), nil
		}
		return h, nil
	}
	return os.UserHomeDir()
}

// Load loads the configuration from file and environment variables.
// Priority: environment > file > defaults.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	// Load process env vars from ~/.config/thebase/env (and fallbacks) first.
	LoadEnvFiles()

	path, err := ConfigPath()
	if err != nil {
		applyEnv(cfg)
		normalize(cfg)
		return cfg, nil // Use defaults if we can't find config path
	}

	data, err := loadResolvedConfig(path)
	if err == nil {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	// If file doesn't exist, continue with defaults

	applyEnv(cfg)
	normalize(cfg)
	return cfg, nil
}

// applyEnv overrides each group from THEBASE_<GROUP>_* variables and honours the
// variable names used by the hosted serverless deployment.
func applyEnv(cfg *Config) {
	explicitDriver := strings.TrimSpace(os.Getenv("THEBASE_STORE_DRIVER")) != ""

	envconfig.Process("THEBASE_PATHS", &cfg.Paths)
	envconfig.Process("THEBASE_STORE", &cfg.Store)
	envconfig.Process("THEBASE_INGEST", &cfg.Ingest)
	envconfig.Process("THEBASE_GATEWAY", &cfg.Gateway)
	envconfig.Process("THEBASE_STATUS", &cfg.Status)
	envconfig.Process("THEBASE_AUTOSAVE", &cfg.Autosave)
	envconfig.Process("THEBASE_KAFKA", &cfg.Kafka)
	envconfig.Process("THEBASE_SLACK", &cfg.Slack)

	// Fallback for the store DSN: the managed service exposes plain Postgres.
	if cfg.Store.DSN == "" {
		for _, key := range []string{"DATABASE_URL", "SUPABASE_DB_URL", "SUPABASE_URL", "VITE_SUPABASE_URL"} {
			if v := strings.TrimSpace(os.Getenv(key)); isPostgresURL(v) {
				cfg.Store.DSN = v
				break
			}
		}
		if cfg.Store.DSN != "" && !explicitDriver {
			cfg.Store.Driver = "postgres"
		}
	}
	if cfg.Slack.WebhookURL == "" {
		if v := strings.TrimSpace(os.Getenv("SLACK_WEBHOOK_URL")); v != "" {
			cfg.Slack.WebhookURL = v
		}
	}
}

func isPostgresURL(v string) bool {
	return strings.HasPrefix(v, "postgres://") || strings.HasPrefix(v, "postgresql://")
}

func normalize(cfg *Config) {
	expandHome := func(p *string) {
		if strings.HasPrefix(*p, "~") {
			if home, err := os.UserHomeDir(); err == nil {
				*p = filepath.Join(home, (*p)[1:])
			}
		}
	}
	expandHome(&cfg.Paths.DataDir)
	expandHome(&cfg.Store.Path)

	defaults := DefaultConfig()
	switch strings.ToLower(strings.TrimSpace(cfg.Store.Driver)) {
	case "", "sqlite", "sqlite3":
		cfg.Store.Driver = "sqlite"
	case "postgres", "postgresql", "pgx":
		cfg.Store.Driver = "postgres"
	}
	if cfg.Store.Driver == "sqlite" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = filepath.Join(cfg.Paths.DataDir, "thebase.db")
	}
	if strings.TrimSpace(cfg.Ingest.DefaultSource) == "" {
		cfg.Ingest.DefaultSource = defaults.Ingest.DefaultSource
	}
	if cfg.Ingest.MaxBodyBytes <= 0 {
		cfg.Ingest.MaxBodyBytes = defaults.Ingest.MaxBodyBytes
	}
	if cfg.Gateway.Port <= 0 {
		cfg.Gateway.Port = defaults.Gateway.Port
	}
	if cfg.Gateway.SessionHours <= 0 {
		cfg.Gateway.SessionHours = defaults.Gateway.SessionHours
	}
	if cfg.Status.PollInterval <= 0 {
		cfg.Status.PollInterval = defaults.Status.PollInterval
	}
	if cfg.Status.TickInterval <= 0 {
		cfg.Status.TickInterval = defaults.Status.TickInterval
	}
	if cfg.Status.StaleAfter <= 0 {
		cfg.Status.StaleAfter = defaults.Status.StaleAfter
	}
	if cfg.Status.CalendarLimit <= 0 {
		cfg.Status.CalendarLimit = defaults.Status.CalendarLimit
	}
	if cfg.Autosave.Quiet <= 0 {
		cfg.Autosave.Quiet = defaults.Autosave.Quiet
	}
	if strings.TrimSpace(cfg.Kafka.Topic) == "" {
		cfg.Kafka.Topic = defaults.Kafka.Topic
	}
}

// Validate reports configuration problems that block serving.
func (c *Config) Validate() error {
	var problems []string
	switch c.Store.Driver {
	case "sqlite":
		if strings.TrimSpace(c.Store.Path) == "" {
			problems = append(problems, "store.path is required for the sqlite driver")
		}
	case "postgres":
		if strings.TrimSpace(c.Store.DSN) == "" {
			problems = append(problems, "store.dsn (or DATABASE_URL) is required for the postgres driver")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown store driver %q", c.Store.Driver))
	}
	if c.Kafka.Enabled && strings.TrimSpace(c.Kafka.Brokers) == "" {
		problems = append(problems, "kafka.brokers is required when kafka is enabled")
	}
	if c.Slack.Enabled && strings.TrimSpace(c.Slack.WebhookURL) == "" {
		problems = append(problems, "slack.webhookUrl is required when slack is enabled")
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
}

// Save writes the configuration to the config file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// EnsureDir ensures a directory exists with proper permissions.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// envRef matches ${NAME} and ${NAME:-fallback}.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// includeResolver flattens a config file and its "$include" chain into one
// object. Later files override earlier ones and the including file wins.
type includeResolver struct {
	stack map[string]bool
}

func loadResolvedConfig(path string) ([]byte, error) {
	r := &includeResolver{stack: map[string]bool{}}
	obj, err := r.resolve(path)
	if err != nil {
		return nil, err
	}
	return json.Marshal(obj)
}

func (r *includeResolver) resolve(path string) (map[string]any, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if r.stack[abs] {
		return nil, fmt.Errorf("config include cycle detected at %s", abs)
	}
	r.stack[abs] = true
	defer delete(r.stack, abs)

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}
	own := map[string]any{}
	if err := json.Unmarshal(data, &own); err != nil {
		return nil, err
	}

	includes, err := includeList(own["$include"])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", abs, err)
	}
	delete(own, "$include")

	out := map[string]any{}
	for _, inc := range includes {
		if !filepath.IsAbs(inc) {
			inc = filepath.Join(filepath.Dir(abs), inc)
		}
		child, err := r.resolve(inc)
		if err != nil {
			// A missing include is an error even though a missing top-level file is not.
			return nil, fmt.Errorf("include %s: %v", inc, err)
		}
		mergeInto(out, child)
	}
	mergeInto(out, expandEnv(own).(map[string]any))
	return out, nil
}

func includeList(v any) ([]string, error) {
	var raw []any
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		raw = []any{t}
	case []any:
		raw = t
	default:
		return nil, fmt.Errorf("$include must be a string or array of strings")
	}
	var out []string
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("$include entries must be strings")
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// mergeInto copies src over dst, descending into nested objects.
func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		sub, ok := v.(map[string]any)
		if !ok {
			dst[k] = v
			continue
		}
		target, ok := dst[k].(map[string]any)
		if !ok {
			target = map[string]any{}
			dst[k] = target
		}
		mergeInto(target, sub)
	}
}

// expandEnv substitutes environment references in every string value.
// Unset variables without a fallback are left as written.
func expandEnv(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			t[k] = expandEnv(item)
		}
	case []any:
		for i, item := range t {
			t[i] = expandEnv(item)
		}
	case string:
		return envRef.ReplaceAllStringFunc(t, func(ref string) string {
			m := envRef.FindStringSubmatch(ref)
			if value, ok := os.LookupEnv(m[1]); ok && value != "" {
				return value
			}
			if m[2] != "" {
				return m[3]
			}
			if value, ok := os.LookupEnv(m[1]); ok {
				return value
			}
			return ref
		})
	}
	return v
}
