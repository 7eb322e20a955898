package main

import (
	"context"
	"time"

	"kobodown/internal/catalogcache"
	"kobodown/internal/kobo"
)

// catalogMaxAge bounds how long a cached library listing is trusted
// before a fresh sync is forced.
const catalogMaxAge = 24 * time.Hour

// bookList returns the user's library, serving from the local catalog
// cache when it is enabled and fresh. Cache failures degrade to a live
// sync rather than failing the command.
func (c *commandContext) bookList(ctx context.Context, client *kobo.Client, all, refresh bool) ([]kobo.Book, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}

	if !cfg.CatalogCache.Enabled {
		return client.BookList(ctx, all)
	}

	store, err := catalogcache.Open(cfg.CatalogCache.Path)
	if err != nil {
		logger.Warn("catalog cache unavailable", "path", cfg.CatalogCache.Path, "error", err)
		return client.BookList(ctx, all)
	}
	defer store.Close()

	if !refresh {
		books, ok, err := store.Get(ctx, all, catalogMaxAge)
		if err != nil {
			logger.Warn("catalog cache read failed", "error", err)
		} else if ok {
			logger.Debug("catalog served from cache", "books", len(books))
			return books, nil
		}
	}

	books, err := client.BookList(ctx, all)
	if err != nil {
		return nil, err
	}
	if err := store.Put(ctx, all, books); err != nil {
		logger.Warn("catalog cache write failed", "error", err)
	}
	return books, nil
}
