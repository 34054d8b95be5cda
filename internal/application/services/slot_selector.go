package services

import (
	"fmt"

	"github.com/zatekoja/mindcare-directory/internal/domain/entities"
	apperrors "github.com/zatekoja/mindcare-directory/pkg/errors"
)

// DefaultDayBand is the band shown when a session opens
const DefaultDayBand = entities.DayBandMorning

// SlotSelector lists the bookable slots for the session's location and date
// under the active band filter, and records the chosen one.
type SlotSelector struct {
	session *BookingSession
	band    entities.DayBand
}

// NewSlotSelector creates a selector bound to a session
func NewSlotSelector(session *BookingSession) *SlotSelector {
	return &SlotSelector{
		session: session,
		band:    DefaultDayBand,
	}
}

// Band returns the active band filter
func (s *SlotSelector) Band() entities.DayBand {
	return s.band
}

// SelectDate sets the active date. Dates without availability are accepted;
// CurrentSlots simply returns nothing for them.
func (s *SlotSelector) SelectDate(date entities.CalendarDate) error {
	return s.session.SetDate(date)
}

// SetBand changes the band filter and clears the chosen slot
func (s *SlotSelector) SetBand(band entities.DayBand) error {
	if !band.Valid() {
		return apperrors.NewValidationError(fmt.Sprintf("unknown day band %q", band))
	}
	if err := s.session.checkActive(); err != nil {
		return err
	}
	s.band = band
	s.session.clearTimeSlot()
	return nil
}

// CurrentSlots returns the slots for (location, date, band) as of this call
func (s *SlotSelector) CurrentSlots() []string {
	sel := s.session.Selection()
	if !sel.HasLocation() || !sel.HasDate() {
		return []string{}
	}
	return s.session.Store().SlotsFor(sel.LocationID, sel.Date, s.band)
}

// ChooseSlot records slot as the chosen time. It panics when called before a
// location and date are selected, since callers must check that first.
func (s *SlotSelector) ChooseSlot(slot string) error {
	sel := s.session.Selection()
	if !sel.HasLocation() || !sel.HasDate() {
		panic("services: ChooseSlot called before a location and date were selected")
	}
	if err := s.session.checkActive(); err != nil {
		return err
	}
	for _, offered := range s.CurrentSlots() {
		if offered == slot {
			s.session.chooseTimeSlot(slot)
			return nil
		}
	}
	return apperrors.NewInvalidSlotError(slot)
}
