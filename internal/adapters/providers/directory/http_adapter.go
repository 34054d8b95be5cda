package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zatekoja/mindcare-directory/internal/domain/entities"
)

// ErrNotFound is returned when the directory does not know the resource
var ErrNotFound = errors.New("directory: not found")

// StatusError is returned for non-2xx responses
type StatusError struct {
	StatusCode int
	Endpoint   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("directory api returned status %d for %s", e.StatusCode, e.Endpoint)
}

// HTTPAdapter talks to the directory back office over REST
type HTTPAdapter struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPAdapter creates a REST adapter; timeout <= 0 means 10s
func NewHTTPAdapter(baseURL, apiKey string, timeout time.Duration) *HTTPAdapter {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPAdapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// LoadAvailability fetches a batch of providers in one request. The result
// is aligned to providerIDs; providers missing from the response are nil.
func (a *HTTPAdapter) LoadAvailability(ctx context.Context, providerIDs []string) ([]*entities.ProviderAvailability, error) {
	out := make([]*entities.ProviderAvailability, len(providerIDs))
	if len(providerIDs) == 0 {
		return out, nil
	}

	parsed, err := url.Parse(fmt.Sprintf("%s/providers/availability", a.baseURL))
	if err != nil {
		return nil, err
	}
	query := parsed.Query()
	for _, id := range providerIDs {
		query.Add("ids", id)
	}
	parsed.RawQuery = query.Encode()

	var response struct {
		Data []*entities.ProviderAvailability `json:"data"`
	}
	if err := a.doJSON(ctx, http.MethodGet, parsed.String(), nil, &response); err != nil {
		return nil, err
	}

	byID := make(map[string]*entities.ProviderAvailability, len(response.Data))
	for _, p := range response.Data {
		if p != nil {
			byID[p.ProviderID] = p
		}
	}
	for i, id := range providerIDs {
		out[i] = byID[id]
	}
	return out, nil
}

// ListDependents returns the user's roster
func (a *HTTPAdapter) ListDependents(ctx context.Context, userID string) ([]entities.DependentPatient, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id is required")
	}
	endpoint := fmt.Sprintf("%s/users/%s/dependents", a.baseURL, url.PathEscape(userID))

	var response struct {
		Data []entities.DependentPatient `json:"data"`
	}
	err := a.doJSON(ctx, http.MethodGet, endpoint, nil, &response)
	if errors.Is(err, ErrNotFound) {
		return []entities.DependentPatient{}, nil
	}
	if err != nil {
		return nil, err
	}
	if response.Data == nil {
		response.Data = []entities.DependentPatient{}
	}
	return response.Data, nil
}

// RevealContact returns the provider's contact details
func (a *HTTPAdapter) RevealContact(ctx context.Context, providerID string) (*entities.ContactDetails, error) {
	if strings.TrimSpace(providerID) == "" {
		return nil, fmt.Errorf("provider id is required")
	}
	endpoint := fmt.Sprintf("%s/providers/%s/contact", a.baseURL, url.PathEscape(providerID))

	out := &entities.ContactDetails{}
	if err := a.doJSON(ctx, http.MethodGet, endpoint, nil, out); err != nil {
		return nil, err
	}
	if out.ProviderID == "" {
		out.ProviderID = providerID
	}
	return out, nil
}

func (a *HTTPAdapter) doJSON(ctx context.Context, method, endpoint string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: %s", ErrNotFound, endpoint)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{StatusCode: resp.StatusCode, Endpoint: endpoint}
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
