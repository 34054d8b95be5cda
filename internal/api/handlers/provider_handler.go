package handlers

import (
	"context"
	"net/http"

	"github.com/zatekoja/mindcare-directory/internal/application/services"
	"github.com/zatekoja/mindcare-directory/internal/domain/entities"
)

// AvailabilityService defines the read-only provider calendar operations
type AvailabilityService interface {
	MonthSummary(ctx context.Context, providerID, locationID string, month entities.YearMonth) (*services.MonthSummary, error)
}

// ProviderHandler serves provider calendars
type ProviderHandler struct {
	service AvailabilityService
	clock   services.Clock
}

// NewProviderHandler creates a new provider handler
func NewProviderHandler(service AvailabilityService, clock services.Clock) *ProviderHandler {
	if clock == nil {
		clock = services.SystemClock{}
	}
	return &ProviderHandler{service: service, clock: clock}
}

// GetAvailability handles GET /api/providers/{id}/availability?month=YYYY-MM&location_id=
func (h *ProviderHandler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	month := entities.DateOf(h.clock.Now()).YearMonth()
	if raw := r.URL.Query().Get("month"); raw != "" {
		parsed, err := entities.ParseYearMonth(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		month = parsed
	}

	summary, err := h.service.MonthSummary(r.Context(), r.PathValue("id"), r.URL.Query().Get("location_id"), month)
	if err != nil {
		writeAppError(w, r, err, nil)
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}
