package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultOutputDir   = "."
	defaultSessionPath = "~/.config/kobodown/kobodown.json"
	defaultLogFormat   = "console"
	defaultLogLevel    = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir:   defaultOutputDir,
			SessionPath: defaultSessionPath,
		},
		CatalogCache: CatalogCache{
			Enabled: true,
			Path:    defaultCatalogCachePath(),
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

func defaultCatalogCachePath() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "kobodown", "catalog.db")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/.cache/kobodown/catalog.db"
	}
	return filepath.Join(home, ".cache", "kobodown", "catalog.db")
}
