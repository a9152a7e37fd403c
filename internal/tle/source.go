package tle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/metrics"
)

// Source resolves the element set for a satellite: the disk cache while it
// is fresh, otherwise the remote source, falling back to a stale cache entry
// when the fetch fails.
type Source struct {
	fetcher *Fetcher
	cache   *Cache
	maxAge  time.Duration
	logger  *slog.Logger
	now     func() time.Time

	mu sync.Mutex // serializes fetches so concurrent requests share one download
}

// NewSource creates a Source. cache may be nil to always fetch.
func NewSource(fetcher *Fetcher, cache *Cache, maxAge time.Duration, logger *slog.Logger) *Source {
	return &Source{
		fetcher: fetcher,
		cache:   cache,
		maxAge:  maxAge,
		logger:  logger,
		now:     time.Now,
	}
}

// Lookup returns the element set for noradID.
func (s *Source) Lookup(ctx context.Context, noradID int) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.cache != nil {
		if e, err := s.cache.LoadFresh(noradID, s.maxAge, now); err == nil {
			metrics.IncTLEFetch("cache")
			return e, nil
		}
	}

	e, fetchErr := s.fetcher.Fetch(ctx, noradID)
	if fetchErr == nil {
		metrics.IncTLEFetch("fetched")
		if s.cache != nil {
			if err := s.cache.Write(e, now); err != nil {
				s.logger.Warn("failed to write TLE cache", "norad_id", noradID, "error", err)
			}
		}
		s.logger.Info("tle refreshed",
			"norad_id", noradID,
			"name", e.Name,
			"epoch", e.Epoch.Format(time.RFC3339),
		)
		return e, nil
	}

	if s.cache != nil {
		if e, fetchedAt, err := s.cache.LoadLatest(noradID); err == nil {
			metrics.IncTLEFetch("stale")
			s.logger.Warn("tle fetch failed, using stale cache",
				"norad_id", noradID,
				"cache_age_seconds", int(now.Sub(fetchedAt).Seconds()),
				"error", fetchErr,
			)
			return e, nil
		}
	}

	metrics.IncTLEFetch("error")
	if errors.Is(fetchErr, ErrNotFound) {
		return Entry{}, fetchErr
	}
	return Entry{}, fmt.Errorf("%w: NORAD %d: %v", ErrUnavailable, noradID, fetchErr)
}
