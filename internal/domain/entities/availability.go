package entities

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// DayBand is a coarse partition of the day used to group bookable slots
type DayBand string

const (
	DayBandMorning   DayBand = "morning"
	DayBandAfternoon DayBand = "afternoon"
	DayBandEvening   DayBand = "evening"
)

// DayBands lists every band in display order
var DayBands = []DayBand{DayBandMorning, DayBandAfternoon, DayBandEvening}

// Valid reports whether b is a known band
func (b DayBand) Valid() bool {
	switch b {
	case DayBandMorning, DayBandAfternoon, DayBandEvening:
		return true
	}
	return false
}

// ParseDayBand converts a raw string into a DayBand
func ParseDayBand(value string) (DayBand, error) {
	band := DayBand(value)
	if !band.Valid() {
		return "", fmt.Errorf("unknown day band %q", value)
	}
	return band, nil
}

// Location is an attention location of a provider (office, clinic, online room)
type Location struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// DaySlots is the wire shape of one (location, date) entry as delivered by the
// provider data loader.
type DaySlots struct {
	Morning   []string `json:"morning"`
	Afternoon []string `json:"afternoon"`
	Evening   []string `json:"evening"`

	unknown []DayBand
}

// UnmarshalJSON decodes a day keyed by band name. Names that are not a known
// band are kept aside for UnknownBands instead of being dropped.
func (s *DaySlots) UnmarshalJSON(data []byte) error {
	var raw map[DayBand][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = DaySlots{}
	for band, times := range raw {
		switch band {
		case DayBandMorning:
			s.Morning = times
		case DayBandAfternoon:
			s.Afternoon = times
		case DayBandEvening:
			s.Evening = times
		default:
			s.unknown = append(s.unknown, band)
		}
	}
	sort.Slice(s.unknown, func(i, j int) bool { return s.unknown[i] < s.unknown[j] })
	return nil
}

// UnknownBands returns the band names of the decoded payload that are not valid
func (s DaySlots) UnknownBands() []DayBand {
	return s.unknown
}

// Bands returns the slot lists keyed by band
func (s DaySlots) Bands() map[DayBand][]string {
	return map[DayBand][]string{
		DayBandMorning:   s.Morning,
		DayBandAfternoon: s.Afternoon,
		DayBandEvening:   s.Evening,
	}
}

// DayAvailability maps each band to its ordered HH:MM slots for one day
type DayAvailability map[DayBand][]string

// ProviderAvailability is everything the loader returns for one provider:
// its locations and the sparse location -> ISO date -> slots map.
type ProviderAvailability struct {
	ProviderID string                         `json:"provider_id"`
	Locations  []Location                     `json:"locations"`
	Days       map[string]map[string]DaySlots `json:"days"`
	LoadedAt   time.Time                      `json:"loaded_at"`
}

// ParseTimeOfDay validates an HH:MM 24h time and returns minutes since midnight
func ParseTimeOfDay(value string) (int, error) {
	if len(value) != 5 {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", value)
	}
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", value)
	}
	return t.Hour()*60 + t.Minute(), nil
}
