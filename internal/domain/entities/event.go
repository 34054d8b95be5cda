package entities

import (
	"time"
)

// DomainEventType represents the type of a published domain event
type DomainEventType string

const (
	DomainEventBookingConfirmed DomainEventType = "booking_confirmed"
	DomainEventContactResolved  DomainEventType = "contact_resolved"
	DomainEventQuotaReset       DomainEventType = "quota_reset"
)

// DomainEvent is published on the event bus after a core flow emits a record
type DomainEvent struct {
	ID        string                 `json:"id"`
	Type      DomainEventType        `json:"type"`
	UserID    string                 `json:"user_id"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// NewBookingConfirmedEvent builds the event for a confirmed booking
func NewBookingConfirmedEvent(record *BookingRecord) *DomainEvent {
	return &DomainEvent{
		ID:        record.ID,
		Type:      DomainEventBookingConfirmed,
		UserID:    record.UserID,
		Timestamp: record.CreatedAt,
		Data: map[string]interface{}{
			"provider_id": record.ProviderID,
			"location_id": record.LocationID,
			"date":        record.Date.String(),
			"time_slot":   record.TimeSlot,
		},
	}
}

// NewContactResolvedEvent builds the event for a resolved contact request
func NewContactResolvedEvent(record *ContactRecord) *DomainEvent {
	ts := record.CreatedAt
	if record.ResolvedAt != nil {
		ts = *record.ResolvedAt
	}
	return &DomainEvent{
		ID:        record.ID,
		Type:      DomainEventContactResolved,
		UserID:    record.UserID,
		Timestamp: ts,
		Data: map[string]interface{}{
			"provider_id": record.Request.ProviderID,
			"status":      string(record.Status),
			"urgency":     string(record.Request.Urgency),
		},
	}
}

// NewQuotaResetEvent builds the event for an administrative quota reset
func NewQuotaResetEvent(id string, state ContactQuotaState, at time.Time) *DomainEvent {
	return &DomainEvent{
		ID:        id,
		Type:      DomainEventQuotaReset,
		UserID:    state.UserID,
		Timestamp: at,
		Data: map[string]interface{}{
			"allowance": state.Allowance,
			"used":      state.Used,
		},
	}
}
