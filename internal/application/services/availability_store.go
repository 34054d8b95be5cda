package services

import (
	"fmt"
	"sort"

	"github.com/zatekoja/mindcare-directory/internal/domain/entities"
	apperrors "github.com/zatekoja/mindcare-directory/pkg/errors"
)

type availabilityKey struct {
	locationID string
	date       entities.CalendarDate
}

// AvailabilityStore is the read-only lookup table of open slots for one
// provider, keyed by (location, date) and partitioned by day band.
type AvailabilityStore struct {
	providerID string
	locations  []entities.Location
	byID       map[string]entities.Location
	days       map[availabilityKey]entities.DayAvailability
}

// NewAvailabilityStore validates the loader payload and builds the store.
// Slots are kept sorted ascending; a time may appear only once per day.
func NewAvailabilityStore(data *entities.ProviderAvailability) (*AvailabilityStore, error) {
	if data == nil {
		return nil, apperrors.NewValidationError("provider availability is required")
	}

	store := &AvailabilityStore{
		providerID: data.ProviderID,
		locations:  make([]entities.Location, 0, len(data.Locations)),
		byID:       make(map[string]entities.Location, len(data.Locations)),
		days:       make(map[availabilityKey]entities.DayAvailability),
	}

	for _, loc := range data.Locations {
		if loc.ID == "" {
			return nil, apperrors.NewValidationError("location id is required")
		}
		if _, dup := store.byID[loc.ID]; dup {
			return nil, apperrors.NewValidationError(fmt.Sprintf("duplicate location %q", loc.ID))
		}
		store.byID[loc.ID] = loc
		store.locations = append(store.locations, loc)
	}

	for locationID, dates := range data.Days {
		if _, ok := store.byID[locationID]; !ok {
			return nil, apperrors.NewValidationError(fmt.Sprintf("availability for unknown location %q", locationID))
		}
		for isoDate, slots := range dates {
			date, err := entities.ParseCalendarDate(isoDate)
			if err != nil {
				return nil, apperrors.NewValidationError(err.Error())
			}
			day, err := buildDayAvailability(slots)
			if err != nil {
				return nil, apperrors.NewValidationError(fmt.Sprintf("location %s on %s: %v", locationID, isoDate, err))
			}
			store.days[availabilityKey{locationID: locationID, date: date}] = day
		}
	}

	return store, nil
}

func buildDayAvailability(slots entities.DaySlots) (entities.DayAvailability, error) {
	if unknown := slots.UnknownBands(); len(unknown) > 0 {
		return nil, fmt.Errorf("unknown band %q", unknown[0])
	}

	day := make(entities.DayAvailability, len(entities.DayBands))
	seen := make(map[string]entities.DayBand)

	for _, band := range entities.DayBands {
		times := slots.Bands()[band]
		if len(times) == 0 {
			continue
		}
		minutes := make(map[string]int, len(times))
		for _, t := range times {
			m, err := entities.ParseTimeOfDay(t)
			if err != nil {
				return nil, err
			}
			if other, ok := seen[t]; ok {
				if other == band {
					return nil, fmt.Errorf("time %s repeated in %s", t, band)
				}
				return nil, fmt.Errorf("time %s listed in both %s and %s", t, other, band)
			}
			seen[t] = band
			minutes[t] = m
		}
		ordered := append([]string(nil), times...)
		sort.Slice(ordered, func(i, j int) bool { return minutes[ordered[i]] < minutes[ordered[j]] })
		day[band] = ordered
	}
	return day, nil
}

// ProviderID returns the provider the store was built for
func (s *AvailabilityStore) ProviderID() string {
	return s.providerID
}

// Locations returns the provider's locations in loader order
func (s *AvailabilityStore) Locations() []entities.Location {
	return append([]entities.Location(nil), s.locations...)
}

// Location looks up a location by id
func (s *AvailabilityStore) Location(id string) (entities.Location, bool) {
	loc, ok := s.byID[id]
	return loc, ok
}

// HasAvailability reports whether any band has a slot for the key
func (s *AvailabilityStore) HasAvailability(locationID string, date entities.CalendarDate) bool {
	day, ok := s.days[availabilityKey{locationID: locationID, date: date}]
	if !ok {
		return false
	}
	for _, times := range day {
		if len(times) > 0 {
			return true
		}
	}
	return false
}

// SlotsFor returns the ordered slots for the key and band. Absent keys or
// bands yield an empty slice, never an error.
func (s *AvailabilityStore) SlotsFor(locationID string, date entities.CalendarDate, band entities.DayBand) []string {
	day, ok := s.days[availabilityKey{locationID: locationID, date: date}]
	if !ok {
		return []string{}
	}
	return append([]string{}, day[band]...)
}

// AvailableDates lists the dates of month that have at least one slot at the location
func (s *AvailabilityStore) AvailableDates(locationID string, month entities.YearMonth) []entities.CalendarDate {
	var dates []entities.CalendarDate
	for day := 1; day <= month.DaysIn(); day++ {
		date := entities.CalendarDate{Year: month.Year, Month: month.Month, Day: day}
		if s.HasAvailability(locationID, date) {
			dates = append(dates, date)
		}
	}
	return dates
}
