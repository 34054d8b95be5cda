package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/zatekoja/mindcare-directory/internal/application/services"
	"github.com/zatekoja/mindcare-directory/internal/domain/entities"
	"github.com/zatekoja/mindcare-directory/internal/domain/repositories"
)

// BookingService defines the booking operations exposed over HTTP
type BookingService interface {
	StartSession(ctx context.Context, userID, providerID string) (*services.BookingView, error)
	GetSession(ctx context.Context, userID, sessionID string) (*services.BookingView, error)
	SelectLocation(ctx context.Context, userID, sessionID, locationID string) (*services.BookingView, error)
	SelectDate(ctx context.Context, userID, sessionID string, date entities.CalendarDate) (*services.BookingView, error)
	SetBand(ctx context.Context, userID, sessionID string, band entities.DayBand) (*services.BookingView, error)
	ChooseSlot(ctx context.Context, userID, sessionID, slot string) (*services.BookingView, error)
	AdvanceMonth(ctx context.Context, userID, sessionID string, direction int) (*services.BookingView, error)
	Confirm(ctx context.Context, userID, sessionID string) (*entities.BookingRecord, error)
	Discard(ctx context.Context, userID, sessionID string) error
	ListBookings(ctx context.Context, userID string, filter repositories.BookingFilter) ([]*entities.BookingRecord, error)
}

// BookingHandler handles appointment booking requests
type BookingHandler struct {
	service BookingService
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(service BookingService) *BookingHandler {
	return &BookingHandler{service: service}
}

// StartSession handles POST /api/providers/{id}/booking-sessions
func (h *BookingHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	view, err := h.service.StartSession(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeAppError(w, r, err, nil)
		return
	}
	respondWithJSON(w, http.StatusCreated, view)
}

// GetSession handles GET /api/booking-sessions/{id}
func (h *BookingHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	view, err := h.service.GetSession(r.Context(), userID, r.PathValue("id"))
	h.respondView(w, r, view, err)
}

// SelectLocation handles PUT /api/booking-sessions/{id}/location
func (h *BookingHandler) SelectLocation(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		LocationID string `json:"location_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.LocationID == "" {
		respondWithError(w, http.StatusBadRequest, "location_id is required")
		return
	}
	view, err := h.service.SelectLocation(r.Context(), userID, r.PathValue("id"), req.LocationID)
	h.respondView(w, r, view, err)
}

// SelectDate handles PUT /api/booking-sessions/{id}/date
func (h *BookingHandler) SelectDate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		Date string `json:"date"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	date, err := entities.ParseCalendarDate(req.Date)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	view, err := h.service.SelectDate(r.Context(), userID, r.PathValue("id"), date)
	h.respondView(w, r, view, err)
}

// SetBand handles PUT /api/booking-sessions/{id}/band
func (h *BookingHandler) SetBand(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		Band string `json:"band"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	band, err := entities.ParseDayBand(req.Band)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	view, err := h.service.SetBand(r.Context(), userID, r.PathValue("id"), band)
	h.respondView(w, r, view, err)
}

// ChooseSlot handles PUT /api/booking-sessions/{id}/slot
func (h *BookingHandler) ChooseSlot(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		TimeSlot string `json:"time_slot"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.TimeSlot == "" {
		respondWithError(w, http.StatusBadRequest, "time_slot is required")
		return
	}
	view, err := h.service.ChooseSlot(r.Context(), userID, r.PathValue("id"), req.TimeSlot)
	h.respondView(w, r, view, err)
}

// AdvanceMonth handles POST /api/booking-sessions/{id}/month
func (h *BookingHandler) AdvanceMonth(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		Direction int `json:"direction"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	view, err := h.service.AdvanceMonth(r.Context(), userID, r.PathValue("id"), req.Direction)
	h.respondView(w, r, view, err)
}

// Confirm handles POST /api/booking-sessions/{id}/confirm
func (h *BookingHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	record, err := h.service.Confirm(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeAppError(w, r, err, nil)
		return
	}
	respondWithJSON(w, http.StatusCreated, record)
}

// Discard handles DELETE /api/booking-sessions/{id}
func (h *BookingHandler) Discard(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	sessionID := r.PathValue("id")
	if err := h.service.Discard(r.Context(), userID, sessionID); err != nil {
		writeAppError(w, r, err, nil)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"session_id": sessionID, "status": "discarded"})
}

// ListBookings handles GET /api/bookings
func (h *BookingHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := repositories.BookingFilter{ProviderID: q.Get("provider_id")}
	if from := q.Get("from"); from != "" {
		date, err := entities.ParseCalendarDate(from)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.From = &date
	}
	if limit := q.Get("limit"); limit != "" {
		if val, err := strconv.Atoi(limit); err == nil {
			filter.Limit = val
		}
	}
	if offset := q.Get("offset"); offset != "" {
		if val, err := strconv.Atoi(offset); err == nil {
			filter.Offset = val
		}
	}

	bookings, err := h.service.ListBookings(r.Context(), userID, filter)
	if err != nil {
		writeAppError(w, r, err, nil)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"bookings": bookings,
		"count":    len(bookings),
	})
}

func (h *BookingHandler) respondView(w http.ResponseWriter, r *http.Request, view *services.BookingView, err error) {
	if err != nil {
		writeAppError(w, r, err, nil)
		return
	}
	respondWithJSON(w, http.StatusOK, view)
}
