package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zatekoja/mindcare-directory/internal/domain/entities"
	"github.com/zatekoja/mindcare-directory/internal/domain/providers"
	"github.com/zatekoja/mindcare-directory/internal/infrastructure/observability"
)

// AvailabilityInvalidator drops cached provider availability
type AvailabilityInvalidator interface {
	Invalidate(ctx context.Context, providerID string) error
}

// QuotaRefresher reloads a user's contact quota from the store
type QuotaRefresher interface {
	RefreshQuota(ctx context.Context, userID string) error
}

// CacheInvalidationService keeps process-local state in line with events
// published by other instances. A confirmed booking drops the provider's
// cached availability; a quota reset reloads the user's counter.
type CacheInvalidationService struct {
	availability AvailabilityInvalidator
	quotas       QuotaRefresher
	eventBus     providers.EventBus

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCacheInvalidationService creates a new cache invalidation service.
// Either target may be nil.
func NewCacheInvalidationService(availability AvailabilityInvalidator, quotas QuotaRefresher, eventBus providers.EventBus) *CacheInvalidationService {
	ctx, cancel := context.WithCancel(context.Background())
	return &CacheInvalidationService{
		availability: availability,
		quotas:       quotas,
		eventBus:     eventBus,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start subscribes to the booking and contact channels
func (s *CacheInvalidationService) Start() error {
	for _, channel := range []string{providers.EventChannelBookings, providers.EventChannelContacts} {
		events, err := s.eventBus.Subscribe(s.ctx, channel)
		if err != nil {
			s.cancel()
			return fmt.Errorf("failed to subscribe to %s: %w", channel, err)
		}
		s.wg.Add(1)
		go s.processEvents(events)
	}
	observability.GetLogger().Info().Msg("cache invalidation service started")
	return nil
}

// Stop ends the subscriptions and waits for in-flight events
func (s *CacheInvalidationService) Stop() {
	s.cancel()
	s.wg.Wait()
	observability.GetLogger().Info().Msg("cache invalidation service stopped")
}

func (s *CacheInvalidationService) processEvents(events <-chan *entities.DomainEvent) {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if event != nil {
				s.handleEvent(event)
			}
		}
	}
}

func (s *CacheInvalidationService) handleEvent(event *entities.DomainEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger := observability.GetLogger().With().Str("event_id", event.ID).Str("event_type", string(event.Type)).Logger()

	switch event.Type {
	case entities.DomainEventBookingConfirmed:
		providerID, _ := event.Data["provider_id"].(string)
		if s.availability == nil || providerID == "" {
			return
		}
		if err := s.availability.Invalidate(ctx, providerID); err != nil {
			logger.Warn().Err(err).Str("provider_id", providerID).Msg("failed to invalidate provider availability")
			return
		}
		logger.Debug().Str("provider_id", providerID).Msg("invalidated provider availability")

	case entities.DomainEventQuotaReset:
		if s.quotas == nil || event.UserID == "" {
			return
		}
		if err := s.quotas.RefreshQuota(ctx, event.UserID); err != nil {
			logger.Warn().Err(err).Str("user_id", event.UserID).Msg("failed to refresh contact quota")
		}
	}
}
