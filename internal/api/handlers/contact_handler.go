package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/zatekoja/mindcare-directory/internal/application/services"
	"github.com/zatekoja/mindcare-directory/internal/domain/entities"
)

// ContactService defines the contact request operations exposed over HTTP
type ContactService interface {
	QuotaStatus(ctx context.Context, userID string) (entities.ContactQuotaState, error)
	ListDependents(ctx context.Context, userID string) ([]entities.DependentPatient, error)
	StartRequest(ctx context.Context, userID, providerID string) (*services.ContactFlowView, error)
	GetRequest(ctx context.Context, userID, flowID string) (*services.ContactFlowView, error)
	SelectPatient(ctx context.Context, userID, flowID string, requesterIsPatient bool, dependentID string) (*services.ContactFlowView, error)
	SubmitDetails(ctx context.Context, userID, flowID, reason, urgency, notes string) (*services.ContactFlowView, error)
	Reveal(ctx context.Context, userID, flowID string) (*entities.ContactDetails, error)
	Discard(ctx context.Context, userID, flowID string) error
	ListRequests(ctx context.Context, userID string, limit int) ([]*entities.ContactRecord, error)
	ResetQuota(ctx context.Context, userID string) (entities.ContactQuotaState, error)
}

// quotaResponse adds the derived remaining count to the persisted counter
type quotaResponse struct {
	entities.ContactQuotaState
	Remaining int `json:"remaining"`
}

func newQuotaResponse(state entities.ContactQuotaState) quotaResponse {
	return quotaResponse{ContactQuotaState: state, Remaining: state.Remaining()}
}

// ContactHandler handles contact request and quota requests
type ContactHandler struct {
	service ContactService
}

// NewContactHandler creates a new contact handler
func NewContactHandler(service ContactService) *ContactHandler {
	return &ContactHandler{service: service}
}

// GetQuota handles GET /api/contact-quota
func (h *ContactHandler) GetQuota(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	state, err := h.service.QuotaStatus(r.Context(), userID)
	if err != nil {
		writeAppError(w, r, err, nil)
		return
	}
	respondWithJSON(w, http.StatusOK, newQuotaResponse(state))
}

// ListDependents handles GET /api/dependents
func (h *ContactHandler) ListDependents(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	roster, err := h.service.ListDependents(r.Context(), userID)
	if err != nil {
		writeAppError(w, r, err, nil)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"dependents": roster})
}

// StartRequest handles POST /api/providers/{id}/contact-requests. A used-up
// quota answers 429 with the denied request in the body.
func (h *ContactHandler) StartRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	view, err := h.service.StartRequest(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeAppError(w, r, err, viewOrNil(view))
		return
	}
	respondWithJSON(w, http.StatusCreated, view)
}

// GetRequest handles GET /api/contact-requests/{id}
func (h *ContactHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	view, err := h.service.GetRequest(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeAppError(w, r, err, nil)
		return
	}
	respondWithJSON(w, http.StatusOK, view)
}

// SelectPatient handles PUT /api/contact-requests/{id}/patient
func (h *ContactHandler) SelectPatient(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		RequesterIsPatient bool   `json:"requester_is_patient"`
		DependentPatientID string `json:"dependent_patient_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	view, err := h.service.SelectPatient(r.Context(), userID, r.PathValue("id"), req.RequesterIsPatient, req.DependentPatientID)
	if err != nil {
		writeAppError(w, r, err, nil)
		return
	}
	respondWithJSON(w, http.StatusOK, view)
}

// SubmitDetails handles POST /api/contact-requests/{id}/details
func (h *ContactHandler) SubmitDetails(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		ReasonForVisit string `json:"reason_for_visit"`
		Urgency        string `json:"urgency"`
		Notes          string `json:"notes"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	view, err := h.service.SubmitDetails(r.Context(), userID, r.PathValue("id"), req.ReasonForVisit, req.Urgency, req.Notes)
	if err != nil {
		writeAppError(w, r, err, viewOrNil(view))
		return
	}
	respondWithJSON(w, http.StatusOK, view)
}

// RevealContact handles GET /api/contact-requests/{id}/contact
func (h *ContactHandler) RevealContact(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	details, err := h.service.Reveal(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeAppError(w, r, err, nil)
		return
	}
	respondWithJSON(w, http.StatusOK, details)
}

// Discard handles DELETE /api/contact-requests/{id}
func (h *ContactHandler) Discard(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	flowID := r.PathValue("id")
	if err := h.service.Discard(r.Context(), userID, flowID); err != nil {
		writeAppError(w, r, err, nil)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"flow_id": flowID, "status": "discarded"})
}

// ListRequests handles GET /api/contact-requests
func (h *ContactHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if val, err := strconv.Atoi(raw); err == nil {
			limit = val
		}
	}
	records, err := h.service.ListRequests(r.Context(), userID, limit)
	if err != nil {
		writeAppError(w, r, err, nil)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"requests": records,
		"count":    len(records),
	})
}

// ResetQuota handles POST /api/admin/contact-quotas/{userId}/reset
func (h *ContactHandler) ResetQuota(w http.ResponseWriter, r *http.Request) {
	state, err := h.service.ResetQuota(r.Context(), r.PathValue("userId"))
	if err != nil {
		writeAppError(w, r, err, nil)
		return
	}
	respondWithJSON(w, http.StatusOK, newQuotaResponse(state))
}

// viewOrNil keeps a typed nil pointer out of the error body
func viewOrNil(view *services.ContactFlowView) interface{} {
	if view == nil {
		return nil
	}
	return view
}
