package entities

import (
	"time"
)

// BookingSelection is the in-progress (location, date, slot) tuple a patient
// assembles before confirming. Empty strings and the zero date mean "unset".
type BookingSelection struct {
	LocationID string       `json:"location_id,omitempty"`
	Date       CalendarDate `json:"date,omitzero"`
	TimeSlot   string       `json:"time_slot,omitempty"`
}

// HasLocation reports whether a location has been chosen
func (s BookingSelection) HasLocation() bool {
	return s.LocationID != ""
}

// HasDate reports whether a date has been chosen
func (s BookingSelection) HasDate() bool {
	return !s.Date.IsZero()
}

// HasTimeSlot reports whether a slot has been chosen
func (s BookingSelection) HasTimeSlot() bool {
	return s.TimeSlot != ""
}

// Complete reports whether all three fields are set
func (s BookingSelection) Complete() bool {
	return s.HasLocation() && s.HasDate() && s.HasTimeSlot()
}

// BookingRecord is emitted when a selection is confirmed
type BookingRecord struct {
	ID         string       `json:"id" db:"id"`
	SessionID  string       `json:"session_id" db:"session_id"`
	ProviderID string       `json:"provider_id" db:"provider_id"`
	UserID     string       `json:"user_id" db:"user_id"`
	LocationID string       `json:"location_id" db:"location_id"`
	Date       CalendarDate `json:"date" db:"date"`
	TimeSlot   string       `json:"time_slot" db:"time_slot"`
	CreatedAt  time.Time    `json:"created_at" db:"created_at"`
}

// BookingSnapshot is the reload-surviving view of a booking session
type BookingSnapshot struct {
	SessionID      string           `json:"session_id"`
	ProviderID     string           `json:"provider_id"`
	UserID         string           `json:"user_id"`
	DisplayedMonth YearMonth        `json:"displayed_month"`
	Band           DayBand          `json:"band"`
	Selection      BookingSelection `json:"selection"`
	SavedAt        time.Time        `json:"saved_at"`
}
