package cli

import (
	"fmt"
	"path/filepath"

	"github.com/TheBase/TheBase/internal/config"
	"github.com/TheBase/TheBase/internal/store"
)

// loadConfig loads and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openStore opens the configured store, creating the sqlite directory.
func openStore(cfg *config.Config) (*store.Store, error) {
	source := cfg.Store.DSN
	if cfg.Store.Driver == store.DriverSQLite {
		source = cfg.Store.Path
		if err := config.EnsureDir(filepath.Dir(source)); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}
	return store.Open(cfg.Store.Driver, source)
}

// withStore loads config, opens the store and runs fn.
func withStore(fn func(cfg *config.Config, st *store.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(cfg, st)
}
