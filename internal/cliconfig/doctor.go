package cliconfig

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/TheBase/TheBase/internal/config"
	"github.com/TheBase/TheBase/internal/store"
)

type DoctorStatus string

const (
	DoctorPass DoctorStatus = "pass"
	DoctorWarn DoctorStatus = "warn"
	DoctorFail DoctorStatus = "fail"
)

type DoctorCheck struct {
	Name    string       `json:"name"`
	Status  DoctorStatus `json:"status"`
	Message string       `json:"message"`
}

type DoctorReport struct {
	Checks []DoctorCheck `json:"checks"`
}

type DoctorOptions struct {
	Fix                  bool
	GenerateIngestSecret bool
}

func (r DoctorReport) HasFailures() bool {
	for _, c := range r.Checks {
		if c.Status == DoctorFail {
			return true
		}
	}
	return false
}

func (r *DoctorReport) add(name string, status DoctorStatus, format string, args ...any) {
	r.Checks = append(r.Checks, DoctorCheck{Name: name, Status: status, Message: fmt.Sprintf(format, args...)})
}

func RunDoctor() (DoctorReport, error) {
	return RunDoctorWithOptions(DoctorOptions{})
}

func RunDoctorWithOptions(opts DoctorOptions) (DoctorReport, error) {
	report := DoctorReport{Checks: make([]DoctorCheck, 0, 10)}

	cfgPath, err := config.ConfigPath()
	if err != nil {
		report.add("config_path", DoctorFail, "cannot resolve config path: %v", err)
		return report, nil
	}
	if _, err := os.Stat(cfgPath); err != nil {
		if os.IsNotExist(err) {
			report.add("config_file", DoctorWarn, "config file not found at %s (defaults will be used)", cfgPath)
		} else {
			report.add("config_file", DoctorFail, "cannot access config file: %v", err)
		}
	} else {
		report.add("config_file", DoctorPass, "config file found at %s", cfgPath)
	}

	if opts.Fix {
		envPath, mergedKeys, fixErr := mergeDiscoveredEnvFiles()
		if fixErr != nil {
			report.add("env_merge", DoctorFail, "failed to merge env files: %v", fixErr)
		} else {
			report.add("env_merge", DoctorPass, "merged %d env key(s) into %s", mergedKeys, envPath)
		}
	}

	if files := config.LoadEnvFiles(); len(files) > 0 {
		report.add("env_files", DoctorPass, "env loaded from %s", strings.Join(files, ", "))
	}

	cfg, err := config.Load()
	if err != nil {
		report.add("config_load", DoctorFail, "config load failed: %v", err)
		return report, nil
	}
	report.add("config_load", DoctorPass, "config loaded successfully")

	if opts.GenerateIngestSecret {
		secret, genErr := randomToken()
		switch {
		case genErr != nil:
			report.add("ingest_secret_generate", DoctorFail, "failed to generate secret: %v", genErr)
		default:
			cfg.Ingest.Secret = secret
			if saveErr := config.Save(cfg); saveErr != nil {
				report.add("ingest_secret_generate", DoctorFail, "generated secret but failed to save config: %v", saveErr)
			} else {
				report.add("ingest_secret_generate", DoctorPass, "generated and saved ingest secret")
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		report.add("config_valid", DoctorFail, "%v", err)
	} else {
		report.add("config_valid", DoctorPass, "configuration is valid")
	}

	if strings.TrimSpace(cfg.Ingest.Secret) == "" {
		report.add("ingest_secret", DoctorWarn, "ingest.secret is empty; ingestion endpoints answer 500 until THEBASE_INGEST_SECRET is set")
	} else {
		report.add("ingest_secret", DoctorPass, "ingest secret is configured")
	}

	checkStore(cfg, &report)

	if isLoopbackHost(cfg.Gateway.Host) {
		report.add("gateway_loopback", DoctorPass, "gateway.host is loopback (%s)", cfg.Gateway.Host)
	} else {
		report.add("gateway_loopback", DoctorWarn, "gateway.host is not loopback (%s); the dashboard API is reachable from the network", cfg.Gateway.Host)
		if cfg.Gateway.AllowSignUp {
			report.add("gateway_signup", DoctorWarn, "open sign-up on a non-loopback gateway lets anyone create an account")
		}
	}

	if cfg.Kafka.Enabled {
		report.add("kafka", DoctorPass, "mirroring events to %s on %s", cfg.Kafka.Topic, cfg.Kafka.Brokers)
	}
	if cfg.Slack.Enabled {
		report.add("slack", DoctorPass, "status changes are posted to Slack")
	}
	return report, nil
}

// checkStore opens the configured store. A sqlite file that does not exist
// yet only warns since serve creates it.
func checkStore(cfg *config.Config, report *DoctorReport) {
	source := cfg.Store.DSN
	if cfg.Store.Driver == store.DriverSQLite {
		source = cfg.Store.Path
		if _, err := os.Stat(source); os.IsNotExist(err) {
			report.add("store", DoctorWarn, "sqlite store %s does not exist yet (created on first serve)", source)
			return
		}
	}
	st, err := store.Open(cfg.Store.Driver, source)
	if err != nil {
		report.add("store", DoctorFail, "%v", err)
		return
	}
	defer st.Close()
	report.add("store", DoctorPass, "%s store is reachable", st.Driver())
}

func mergeDiscoveredEnvFiles() (string, int, error) {
	targetPath, err := config.RuntimeEnvPath()
	if err != nil {
		return "", 0, err
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", 0, err
	}
	cwd, _ := os.Getwd()

	merged := map[string]string{}
	seen := map[string]bool{}
	for _, src := range []string{
		filepath.Join(cwd, ".env"),
		filepath.Join(home, config.ConfigDir, ".env"),
		filepath.Join(home, config.ConfigDir, "env"),
		targetPath,
	} {
		if seen[src] {
			continue
		}
		seen[src] = true
		kv, err := config.ReadEnvFile(src)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", 0, fmt.Errorf("read %s: %w", src, err)
		}
		for k, v := range kv {
			merged[k] = v
		}
	}

	if err := config.WriteEnvFile(targetPath, "thebase runtime env (managed by doctor --fix)", merged); err != nil {
		return "", 0, err
	}
	return targetPath, len(merged), nil
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func isLoopbackHost(host string) bool {
	h := strings.TrimSpace(strings.ToLower(host))
	if h == "" {
		return false
	}
	if h == "localhost" {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
