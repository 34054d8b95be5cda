package services

import (
	"context"
	"time"

	"github.com/zatekoja/mindcare-directory/internal/infrastructure/observability"
)

// CacheWarmingService keeps the availability of frequently viewed providers
// in the cache so the first booking screen of the day does not wait on the
// back office
type CacheWarmingService struct {
	availability *ProviderAvailabilityService
	providerIDs  []string
}

// NewCacheWarmingService creates a new cache warming service
func NewCacheWarmingService(availability *ProviderAvailabilityService, providerIDs []string) *CacheWarmingService {
	return &CacheWarmingService{availability: availability, providerIDs: providerIDs}
}

// WarmCache reloads every configured provider. All loads are issued before
// any is awaited so they share one back-office batch. It returns the number
// of providers warmed.
func (s *CacheWarmingService) WarmCache(ctx context.Context) int {
	logger := observability.LoggerFromContext(ctx)

	thunks := make([]AvailabilityThunk, len(s.providerIDs))
	for i, id := range s.providerIDs {
		// drop the cached copy so Prefetch goes through the loader
		if err := s.availability.Invalidate(ctx, id); err != nil {
			logger.Warn().Err(err).Str("provider_id", id).Msg("failed to drop cached availability")
		}
		thunks[i] = s.availability.Prefetch(ctx, id)
	}

	warmed := 0
	for i, thunk := range thunks {
		if _, err := thunk(); err != nil {
			logger.Warn().Err(err).Str("provider_id", s.providerIDs[i]).Msg("failed to warm provider availability")
			continue
		}
		warmed++
	}
	logger.Info().Int("warmed", warmed).Int("configured", len(s.providerIDs)).Msg("availability cache warmed")
	return warmed
}

// StartPeriodicWarming warms immediately and then every interval until ctx is done
func (s *CacheWarmingService) StartPeriodicWarming(ctx context.Context, interval time.Duration) {
	if len(s.providerIDs) == 0 || interval <= 0 {
		return
	}
	s.WarmCache(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.WarmCache(ctx)
		}
	}
}
