package services

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/zatekoja/mindcare-directory/internal/domain/entities"
	apperrors "github.com/zatekoja/mindcare-directory/pkg/errors"
)

// BookingSession owns the patient's in-progress selection for one provider.
// Every mutation of location or date goes through here, which is the only
// place that clears a previously chosen time slot.
type BookingSession struct {
	id         string
	providerID string
	userID     string
	store      *AvailabilityStore
	clock      Clock

	selection entities.BookingSelection
	discarded atomic.Bool
}

// NewBookingSession creates an empty session over a loaded availability store
func NewBookingSession(id, userID string, store *AvailabilityStore, clock Clock) *BookingSession {
	if id == "" {
		id = uuid.New().String()
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &BookingSession{
		id:         id,
		providerID: store.ProviderID(),
		userID:     userID,
		store:      store,
		clock:      clock,
	}
}

// ID returns the session id
func (s *BookingSession) ID() string { return s.id }

// ProviderID returns the provider being booked
func (s *BookingSession) ProviderID() string { return s.providerID }

// UserID returns the patient the session belongs to
func (s *BookingSession) UserID() string { return s.userID }

// Store returns the availability the session books against
func (s *BookingSession) Store() *AvailabilityStore { return s.store }

// Selection returns a copy of the current selection
func (s *BookingSession) Selection() entities.BookingSelection {
	return s.selection
}

// SetLocation switches the attention location; a different location clears the slot
func (s *BookingSession) SetLocation(locationID string) error {
	if err := s.checkActive(); err != nil {
		return err
	}
	if _, ok := s.store.Location(locationID); !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("location %s not found", locationID))
	}
	if s.selection.LocationID != locationID {
		s.selection.LocationID = locationID
		s.selection.TimeSlot = ""
	}
	return nil
}

// SetDate switches the appointment date; a different date clears the slot
func (s *BookingSession) SetDate(date entities.CalendarDate) error {
	if err := s.checkActive(); err != nil {
		return err
	}
	if date.IsZero() {
		return apperrors.NewValidationError("date is required")
	}
	if s.selection.Date != date {
		s.selection.Date = date
		s.selection.TimeSlot = ""
	}
	return nil
}

// ClearDate drops the date and the slot, e.g. when the calendar month changes
func (s *BookingSession) ClearDate() {
	s.selection.Date = entities.CalendarDate{}
	s.selection.TimeSlot = ""
}

// chooseTimeSlot is reserved for SlotSelector, which validates the slot first
func (s *BookingSession) chooseTimeSlot(slot string) {
	s.selection.TimeSlot = slot
}

func (s *BookingSession) clearTimeSlot() {
	s.selection.TimeSlot = ""
}

// restoreSelection puts back a selection that Confirm reset when the booking
// could not be stored
func (s *BookingSession) restoreSelection(sel entities.BookingSelection) {
	if s.discarded.Load() {
		return
	}
	s.selection = sel
}

// IsReadyToConfirm reports whether location, date and slot are all set
func (s *BookingSession) IsReadyToConfirm() bool {
	return s.selection.Complete()
}

// Confirm emits the booking record and resets the selection
func (s *BookingSession) Confirm() (*entities.BookingRecord, error) {
	if err := s.checkActive(); err != nil {
		return nil, err
	}
	if !s.IsReadyToConfirm() {
		return nil, apperrors.NewIncompleteSelectionError(s.missingFields()...)
	}
	now := s.clock.Now()
	if s.selection.Date.Before(entities.DateOf(now)) {
		return nil, apperrors.NewValidationError("cannot book a date in the past")
	}

	record := &entities.BookingRecord{
		ID:         uuid.New().String(),
		SessionID:  s.id,
		ProviderID: s.providerID,
		UserID:     s.userID,
		LocationID: s.selection.LocationID,
		Date:       s.selection.Date,
		TimeSlot:   s.selection.TimeSlot,
		CreatedAt:  now,
	}
	s.selection = entities.BookingSelection{}
	return record, nil
}

// Discard marks the session as abandoned; later calls fail with CONFLICT
func (s *BookingSession) Discard() {
	s.discarded.Store(true)
}

// Discarded reports whether the session was abandoned
func (s *BookingSession) Discarded() bool {
	return s.discarded.Load()
}

func (s *BookingSession) checkActive() error {
	if s.discarded.Load() {
		return apperrors.NewConflictError(fmt.Sprintf("booking session %s was discarded", s.id))
	}
	return nil
}

func (s *BookingSession) missingFields() []string {
	var missing []string
	if !s.selection.HasLocation() {
		missing = append(missing, "location")
	}
	if !s.selection.HasDate() {
		missing = append(missing, "date")
	}
	if !s.selection.HasTimeSlot() {
		missing = append(missing, "time slot")
	}
	return missing
}
