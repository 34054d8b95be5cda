package providers

import (
	"context"

	"github.com/zatekoja/mindcare-directory/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to domain events
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.DomainEvent) error

	// Subscribe subscribes to events on a channel until ctx is done
	Subscribe(ctx context.Context, channel string) (<-chan *entities.DomainEvent, error)

	// Close closes the event bus and all subscriptions
	Close() error
}

const (
	// EventChannelBookings carries booking_confirmed events
	EventChannelBookings = "bookings:events"

	// EventChannelContacts carries contact_resolved and quota_reset events
	EventChannelContacts = "contacts:events"

	// EventChannelUserPrefix is the prefix for per-user channels
	EventChannelUserPrefix = "user:"
)

// GetUserChannel returns the channel name for a specific user
func GetUserChannel(userID string) string {
	return EventChannelUserPrefix + userID
}
