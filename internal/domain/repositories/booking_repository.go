package repositories

import (
	"context"

	"github.com/zatekoja/mindcare-directory/internal/domain/entities"
)

// BookingRepository persists confirmed bookings
type BookingRepository interface {
	// Create stores a confirmed booking record
	Create(ctx context.Context, record *entities.BookingRecord) error

	// ListByUser retrieves bookings for a user, most recent first
	ListByUser(ctx context.Context, userID string, filter BookingFilter) ([]*entities.BookingRecord, error)
}

// BookingFilter defines filters for listing bookings
type BookingFilter struct {
	ProviderID string
	From       *entities.CalendarDate
	Limit      int
	Offset     int
}
