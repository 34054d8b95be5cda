package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/zatekoja/mindcare-directory/internal/domain/entities"
)

// Fixtures is the on-disk shape accepted by LoadFixtureFile
type Fixtures struct {
	Providers  []*entities.ProviderAvailability       `json:"providers"`
	Dependents map[string][]entities.DependentPatient `json:"dependents"`
	Contacts   map[string]*entities.ContactDetails    `json:"contacts"`
}

// FixtureAdapter serves deterministic directory data for local development
// and tests. It implements ProviderDataLoader, PatientRosterProvider and
// ContactRevealProvider.
type FixtureAdapter struct {
	mu         sync.RWMutex
	providers  map[string]*entities.ProviderAvailability
	dependents map[string][]entities.DependentPatient
	contacts   map[string]*entities.ContactDetails
	// defaultRoster is returned for users without an explicit roster
	defaultRoster []entities.DependentPatient
	calls         int
}

// NewFixtureAdapter builds an adapter from in-memory fixtures
func NewFixtureAdapter(f Fixtures) *FixtureAdapter {
	a := &FixtureAdapter{
		providers:  make(map[string]*entities.ProviderAvailability, len(f.Providers)),
		dependents: f.Dependents,
		contacts:   f.Contacts,
	}
	if a.dependents == nil {
		a.dependents = make(map[string][]entities.DependentPatient)
	}
	if a.contacts == nil {
		a.contacts = make(map[string]*entities.ContactDetails)
	}
	for _, p := range f.Providers {
		if p != nil && p.ProviderID != "" {
			a.providers[p.ProviderID] = p
		}
	}
	return a
}

// LoadFixtureFile reads fixtures from a JSON file
func LoadFixtureFile(path string) (*FixtureAdapter, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixtures: %w", err)
	}
	var f Fixtures
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixtures %s: %w", path, err)
	}
	return NewFixtureAdapter(f), nil
}

// NewSampleAdapter generates two providers with weekday availability over
// the next horizonDays days, counted from now
func NewSampleAdapter(now time.Time, horizonDays int) *FixtureAdapter {
	if horizonDays <= 0 {
		horizonDays = 60
	}
	start := entities.DateOf(now)

	office := entities.Location{ID: "loc-office", DisplayName: "Consultorio Privado"}
	online := entities.Location{ID: "loc-online", DisplayName: "Telemedicina"}
	clinic := entities.Location{ID: "loc-clinic", DisplayName: "Clínica Norte"}

	officeDays := make(map[string]entities.DaySlots)
	onlineDays := make(map[string]entities.DaySlots)
	clinicDays := make(map[string]entities.DaySlots)

	for i := 0; i < horizonDays; i++ {
		d := start.AddDays(i)
		key := d.String()
		switch d.Weekday() {
		case time.Saturday, time.Sunday:
			continue
		case time.Monday, time.Wednesday, time.Friday:
			officeDays[key] = entities.DaySlots{
				Morning:   []string{"09:00", "09:30", "10:00", "11:30"},
				Afternoon: []string{"14:00", "15:30"},
			}
			clinicDays[key] = entities.DaySlots{
				Morning: []string{"08:00", "08:45"},
			}
		default:
			onlineDays[key] = entities.DaySlots{
				Afternoon: []string{"13:00", "16:00"},
				Evening:   []string{"18:00", "19:00", "20:30"},
			}
		}
	}

	return NewFixtureAdapter(Fixtures{
		Providers: []*entities.ProviderAvailability{
			{
				ProviderID: "prov-1",
				Locations:  []entities.Location{office, online},
				Days: map[string]map[string]entities.DaySlots{
					office.ID: officeDays,
					online.ID: onlineDays,
				},
			},
			{
				ProviderID: "prov-2",
				Locations:  []entities.Location{clinic},
				Days: map[string]map[string]entities.DaySlots{
					clinic.ID: clinicDays,
				},
			},
		},
		Contacts: map[string]*entities.ContactDetails{
			"prov-1": {ProviderID: "prov-1", Phone: "+52 55 5555 0101", Email: "consulta@example.com", Address: "Av. Reforma 100, CDMX", Hours: "Mon-Fri 09:00-19:00"},
			"prov-2": {ProviderID: "prov-2", Phone: "+52 81 5555 0202", Email: "clinica.norte@example.com", Address: "Calle Hidalgo 22, Monterrey", Hours: "Mon, Wed, Fri 08:00-12:00"},
		},
	}).WithDefaultRoster([]entities.DependentPatient{
		{ID: "dep-child", FullName: "Sofía Ramírez", Relationship: "child"},
		{ID: "dep-parent", FullName: "Jorge Ramírez", Relationship: "parent"},
	})
}

// WithDefaultRoster sets the dependents returned for users with no roster
func (a *FixtureAdapter) WithDefaultRoster(roster []entities.DependentPatient) *FixtureAdapter {
	a.defaultRoster = roster
	return a
}

// LoadAvailability returns one entry per id, nil for unknown providers
func (a *FixtureAdapter) LoadAvailability(ctx context.Context, providerIDs []string) ([]*entities.ProviderAvailability, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.calls++
	a.mu.Unlock()

	a.mu.RLock()
	defer a.mu.RUnlock()

	now := time.Now().UTC()
	out := make([]*entities.ProviderAvailability, len(providerIDs))
	for i, id := range providerIDs {
		p, ok := a.providers[id]
		if !ok {
			continue
		}
		cp := *p
		cp.LoadedAt = now
		out[i] = &cp
	}
	return out, nil
}

// ListDependents returns the user's roster
func (a *FixtureAdapter) ListDependents(ctx context.Context, userID string) ([]entities.DependentPatient, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if roster, ok := a.dependents[userID]; ok {
		return append([]entities.DependentPatient(nil), roster...), nil
	}
	return append([]entities.DependentPatient{}, a.defaultRoster...), nil
}

// RevealContact returns the provider's contact details
func (a *FixtureAdapter) RevealContact(ctx context.Context, providerID string) (*entities.ContactDetails, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	details, ok := a.contacts[providerID]
	if !ok {
		return nil, fmt.Errorf("%w: contact details for %s", ErrNotFound, providerID)
	}
	cp := *details
	return &cp, nil
}

// Calls reports how many batched availability loads were served
func (a *FixtureAdapter) Calls() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.calls
}
