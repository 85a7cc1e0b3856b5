package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
)

// Config holds the flowc settings.
// Priority: flags > env vars > settings.json > defaults.
type Config struct {
	LogLevel    string            `json:"log_level"`
	CatalogDir  string            `json:"catalog_dir"`
	CatalogDB   string            `json:"catalog_db"`
	Workers     int               `json:"workers"`
	ForceAssign bool              `json:"force_assign"`
	Versions    map[string]string `json:"versions"`
}

func defaultConfig() Config {
	return Config{
		LogLevel: "warn",
		Workers:  runtime.NumCPU(),
	}
}

func flowcDir() string {
	if v := os.Getenv("FLOWC_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".flowc"
	}
	return filepath.Join(home, ".flowc")
}

func settingsPath() string {
	return filepath.Join(flowcDir(), "settings.json")
}

func loadConfig() (Config, error) {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("reading %s: %w", settingsPath(), err)
		}
	}

	// Layer 3: env vars override.
	if v := os.Getenv("FLOWC_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("FLOWC_CATALOG_DIR"); v != "" {
		cfg.CatalogDir = v
	}
	if v := os.Getenv("FLOWC_CATALOG_DB"); v != "" {
		cfg.CatalogDB = v
	}
	if v := os.Getenv("FLOWC_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workers = n
		}
	}
	if v := os.Getenv("FLOWC_FORCE_ASSIGN"); v != "" {
		cfg.ForceAssign = v == "true" || v == "1"
	}

	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return cfg, nil
}

// bindFlags registers the command-line layer. Flag defaults are the values
// loaded so far, so an unset flag leaves them alone.
func (c *Config) bindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: debug, info, warn or error")
	fs.StringVar(&c.CatalogDir, "catalog-dir", c.CatalogDir, "directory of library catalog documents")
	fs.StringVar(&c.CatalogDB, "catalog-db", c.CatalogDB, "SQLite library catalog")
	fs.IntVar(&c.Workers, "workers", c.Workers, "files lowered at once")
	fs.BoolVar(&c.ForceAssign, "force-assign", c.ForceAssign, "lower payload literals as plain variables")
}
