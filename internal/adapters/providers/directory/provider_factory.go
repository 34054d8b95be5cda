package directory

import (
	"time"

	"github.com/zatekoja/mindcare-directory/internal/domain/providers"
)

// Config selects and configures the directory backend
type Config struct {
	BaseURL      string
	APIKey       string
	Timeout      time.Duration
	FixturesPath string
}

// Directory bundles the three directory capabilities
type Directory struct {
	Loader   providers.ProviderDataLoader
	Roster   providers.PatientRosterProvider
	Revealer providers.ContactRevealProvider
	// Source names the backend in use, for logging
	Source string
}

// New returns the REST backend when a base URL is configured, otherwise
// fixtures from FixturesPath, otherwise generated sample data
func New(cfg Config, now time.Time) (*Directory, error) {
	if cfg.BaseURL != "" {
		a := NewHTTPAdapter(cfg.BaseURL, cfg.APIKey, cfg.Timeout)
		return &Directory{Loader: a, Roster: a, Revealer: a, Source: "http"}, nil
	}

	if cfg.FixturesPath != "" {
		a, err := LoadFixtureFile(cfg.FixturesPath)
		if err != nil {
			return nil, err
		}
		return &Directory{Loader: a, Roster: a, Revealer: a, Source: "fixtures"}, nil
	}

	a := NewSampleAdapter(now, 60)
	return &Directory{Loader: a, Roster: a, Revealer: a, Source: "sample"}, nil
}
