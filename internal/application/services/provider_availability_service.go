package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/zatekoja/mindcare-directory/internal/domain/entities"
	"github.com/zatekoja/mindcare-directory/internal/domain/providers"
	"github.com/zatekoja/mindcare-directory/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/mindcare-directory/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

const availabilityCachePrefix = "provider_availability:"

// AvailabilityThunk resolves a pending availability load
type AvailabilityThunk func() (*AvailabilityStore, error)

// ProviderAvailabilityService loads provider availability through a batching
// loader and keeps a short-lived copy in the cache. Concurrent loads issued
// within the batch window reach the back office as one request.
type ProviderAvailabilityService struct {
	loader   *dataloader.Loader[string, *entities.ProviderAvailability]
	cache    providers.CacheProvider
	cacheTTL int
	metrics  *observability.Metrics
}

// NewProviderAvailabilityService wires the loader. cache may be nil;
// cacheTTLSeconds <= 0 disables caching.
func NewProviderAvailabilityService(
	source providers.ProviderDataLoader,
	cache providers.CacheProvider,
	cacheTTLSeconds int,
	batchWait time.Duration,
	metrics *observability.Metrics,
) *ProviderAvailabilityService {
	s := &ProviderAvailabilityService{
		cache:    cache,
		cacheTTL: cacheTTLSeconds,
		metrics:  metrics,
	}

	if batchWait <= 0 {
		batchWait = 5 * time.Millisecond
	}
	s.loader = dataloader.NewBatchedLoader(
		s.batchFn(source),
		dataloader.WithWait[string, *entities.ProviderAvailability](batchWait),
		dataloader.WithCache[string, *entities.ProviderAvailability](&dataloader.NoCache[string, *entities.ProviderAvailability]{}),
	)
	return s
}

func (s *ProviderAvailabilityService) batchFn(source providers.ProviderDataLoader) dataloader.BatchFunc[string, *entities.ProviderAvailability] {
	return func(ctx context.Context, keys []string) []*dataloader.Result[*entities.ProviderAvailability] {
		results := make([]*dataloader.Result[*entities.ProviderAvailability], len(keys))

		start := time.Now()
		loaded, err := source.LoadAvailability(ctx, keys)
		observability.RecordProviderLoad(ctx, s.metrics, len(keys), time.Since(start))

		if err == nil && len(loaded) != len(keys) {
			err = fmt.Errorf("provider loader returned %d results for %d ids", len(loaded), len(keys))
		}

		for i, key := range keys {
			switch {
			case err != nil:
				results[i] = &dataloader.Result[*entities.ProviderAvailability]{
					Error: apperrors.NewExternalError("failed to load provider availability", err),
				}
			case loaded[i] == nil:
				results[i] = &dataloader.Result[*entities.ProviderAvailability]{
					Error: apperrors.NewNotFoundError(fmt.Sprintf("provider %s not found", key)),
				}
			default:
				results[i] = &dataloader.Result[*entities.ProviderAvailability]{Data: loaded[i]}
			}
		}
		return results
	}
}

// Prefetch starts loading a provider and returns a thunk that blocks until
// the store is ready
func (s *ProviderAvailabilityService) Prefetch(ctx context.Context, providerID string) AvailabilityThunk {
	if data, ok := s.fromCache(ctx, providerID); ok {
		return func() (*AvailabilityStore, error) {
			return NewAvailabilityStore(data)
		}
	}

	thunk := s.loader.Load(ctx, providerID)
	return func() (*AvailabilityStore, error) {
		data, err := thunk()
		if err != nil {
			return nil, err
		}
		if data.ProviderID == "" {
			data.ProviderID = providerID
		}
		store, err := NewAvailabilityStore(data)
		if err != nil {
			return nil, apperrors.NewExternalError(fmt.Sprintf("provider %s returned invalid availability", providerID), err)
		}
		s.toCache(ctx, providerID, data)
		return store, nil
	}
}

// Load returns the availability store for one provider
func (s *ProviderAvailabilityService) Load(ctx context.Context, providerID string) (*AvailabilityStore, error) {
	ctx, span := observability.StartSpan(ctx, "provider_availability.load")
	defer span.End()
	observability.SetSpanAttributes(span, attribute.String("provider.id", providerID))

	if providerID == "" {
		return nil, apperrors.NewValidationError("provider id is required")
	}

	store, err := s.Prefetch(ctx, providerID)()
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	return store, nil
}

// Invalidate drops the cached copy so the next load goes to the back office
func (s *ProviderAvailabilityService) Invalidate(ctx context.Context, providerID string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, availabilityCachePrefix+providerID)
}

func (s *ProviderAvailabilityService) fromCache(ctx context.Context, providerID string) (*entities.ProviderAvailability, bool) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return nil, false
	}
	key := availabilityCachePrefix + providerID

	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, providers.ErrCacheMiss) {
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("availability cache read failed")
		}
		observability.RecordCacheMiss(ctx, s.metrics, availabilityCachePrefix)
		return nil, false
	}

	var data entities.ProviderAvailability
	if err := json.Unmarshal(raw, &data); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("discarding corrupt availability cache entry")
		_ = s.cache.Delete(ctx, key)
		return nil, false
	}
	observability.RecordCacheHit(ctx, s.metrics, availabilityCachePrefix)
	return &data, true
}

func (s *ProviderAvailabilityService) toCache(ctx context.Context, providerID string, data *entities.ProviderAvailability) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, availabilityCachePrefix+providerID, raw, s.cacheTTL); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("provider_id", providerID).Msg("availability cache write failed")
	}
}

// MonthSummary is the read-only calendar overview of a provider
type MonthSummary struct {
	ProviderID string                             `json:"provider_id"`
	Month      entities.YearMonth                 `json:"month"`
	Locations  []entities.Location                `json:"locations"`
	Dates      map[string][]entities.CalendarDate `json:"dates"`
}

// MonthSummary lists, per location, the dates of month that have open slots.
// An empty locationID covers every location of the provider.
func (s *ProviderAvailabilityService) MonthSummary(ctx context.Context, providerID, locationID string, month entities.YearMonth) (*MonthSummary, error) {
	store, err := s.Load(ctx, providerID)
	if err != nil {
		return nil, err
	}

	locations := store.Locations()
	if locationID != "" {
		loc, ok := store.Location(locationID)
		if !ok {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("location %s not found", locationID))
		}
		locations = []entities.Location{loc}
	}

	summary := &MonthSummary{
		ProviderID: store.ProviderID(),
		Month:      month,
		Locations:  store.Locations(),
		Dates:      make(map[string][]entities.CalendarDate, len(locations)),
	}
	for _, loc := range locations {
		dates := store.AvailableDates(loc.ID, month)
		if dates == nil {
			dates = []entities.CalendarDate{}
		}
		summary.Dates[loc.ID] = dates
	}
	return summary, nil
}
