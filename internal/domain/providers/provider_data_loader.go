package providers

import (
	"context"

	"github.com/zatekoja/mindcare-directory/internal/domain/entities"
)

// ProviderDataLoader fetches provider locations and availability from the
// directory back office. Implementations must return one entry per requested
// id, in order; a nil entry means the provider is unknown.
type ProviderDataLoader interface {
	LoadAvailability(ctx context.Context, providerIDs []string) ([]*entities.ProviderAvailability, error)
}

// PatientRosterProvider lists the dependents a user may request care for
type PatientRosterProvider interface {
	ListDependents(ctx context.Context, userID string) ([]entities.DependentPatient, error)
}

// ContactRevealProvider returns a provider's private contact details
type ContactRevealProvider interface {
	RevealContact(ctx context.Context, providerID string) (*entities.ContactDetails, error)
}
