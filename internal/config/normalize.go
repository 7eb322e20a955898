package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeCatalogCache(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	c.Paths.OutputDir = strings.TrimSpace(c.Paths.OutputDir)
	if c.Paths.OutputDir == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	c.Paths.SessionPath = strings.TrimSpace(c.Paths.SessionPath)
	if c.Paths.SessionPath == "" {
		c.Paths.SessionPath = defaultSessionPath
	}
	if c.Paths.SessionPath, err = expandPath(c.Paths.SessionPath); err != nil {
		return fmt.Errorf("paths.session_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeCatalogCache() error {
	var err error
	c.CatalogCache.Path = strings.TrimSpace(c.CatalogCache.Path)
	if c.CatalogCache.Path == "" {
		c.CatalogCache.Path = defaultCatalogCachePath()
	}
	if c.CatalogCache.Path, err = expandPath(c.CatalogCache.Path); err != nil {
		return fmt.Errorf("catalog_cache.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
