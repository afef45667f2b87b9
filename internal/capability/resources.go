package capability

import (
	"context"
	"fmt"
	"log/slog"
)

// Source performs live resource I/O against the server.
type Source interface {
	ReadResource(ctx context.Context, uri string) (string, error)
	Subscribe(ctx context.Context, uri string) error
	SupportsSubscribe() bool
}

// Resources serves resource content from the cache, falling back to the source.
type Resources struct {
	cache  *Cache
	source Source
	logger *slog.Logger
}

// NewResources creates a resource reader over cache and source.
func NewResources(cache *Cache, source Source, logger *slog.Logger) *Resources {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resources{cache: cache, source: source, logger: logger}
}

// ReadCached returns the cached content for uri without network I/O when a fresh
// entry exists, and refreshes otherwise.
func (r *Resources) ReadCached(ctx context.Context, uri string) (string, error) {
	if content, ok := r.cache.Lookup(uri); ok {
		return content, nil
	}
	return r.Refresh(ctx, uri)
}

// Refresh reads uri live, overwrites the cache entry and subscribes to updates
// the first time the uri is read on a server that supports it. A failed
// subscribe is retried on the next refresh.
func (r *Resources) Refresh(ctx context.Context, uri string) (string, error) {
	content, err := r.source.ReadResource(ctx, uri)
	if err != nil {
		return "", fmt.Errorf("reading resource %s: %w", uri, err)
	}
	r.cache.Store(uri, content)

	if r.source.SupportsSubscribe() && r.cache.ClaimSubscription(uri) {
		if err := r.source.Subscribe(ctx, uri); err != nil {
			r.cache.ReleaseSubscription(uri)
			r.logger.Warn("resource subscribe failed", "uri", uri, "error", err)
		} else {
			r.logger.Debug("subscribed to resource", "uri", uri)
		}
	}
	return content, nil
}

// Invalidate marks uri stale.
func (r *Resources) Invalidate(uri string) {
	r.cache.Invalidate(uri)
}
