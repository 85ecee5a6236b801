package backend

import (
	"context"
	"log/slog"
	"time"

	"yoyaku/internal/cache"
	"yoyaku/internal/core"
	applog "yoyaku/internal/log"
)

const cleanupInterval = time.Minute

// NewSnapshotCache returns the reservation snapshot cache: Redis when
// redisURL is set and reachable, otherwise an in-process LRU. A zero ttl
// disables Redis and keeps the in-process snapshot until the next write.
func NewSnapshotCache(ctx context.Context, redisURL string, ttl time.Duration, logger *slog.Logger) (cache.Cache[[]core.Reservation], CleanupFunc) {
	if logger == nil {
		logger = slog.Default()
	}

	if redisURL != "" && ttl > 0 {
		client, err := cache.NewRedisClient(ctx, redisURL)
		if err == nil {
			logger.Info("Using Redis snapshot cache", applog.FieldComponent, applog.ComponentCache, "ttl", ttl.String())
			return cache.NewRedisCache[[]core.Reservation](client, "yoyaku:", ttl), client.Close
		}
		logger.Warn("Redis unavailable, using in-process cache", applog.FieldComponent, applog.ComponentCache, "error", err)
	}

	lru := cache.NewLRUCache[[]core.Reservation](1, ttl)
	manager := cache.NewManager()
	manager.Register(lru)
	manager.StartCleanup(cleanupInterval)
	return lru, func() error {
		manager.Stop()
		st := lru.Stats()
		logger.Info("Snapshot cache closed", applog.FieldComponent, applog.ComponentCache,
			"hits", st.Hits, "misses", st.Misses, "expired", st.Expired)
		return nil
	}
}
