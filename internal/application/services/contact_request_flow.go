package services

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/zatekoja/mindcare-directory/internal/domain/entities"
	"github.com/zatekoja/mindcare-directory/internal/domain/providers"
	"github.com/zatekoja/mindcare-directory/internal/domain/repositories"
	"github.com/zatekoja/mindcare-directory/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/mindcare-directory/pkg/errors"
)

// ContactFlowState is a step of the contact request state machine
type ContactFlowState string

const (
	ContactFlowIdle                    ContactFlowState = "idle"
	ContactFlowPatientSelectionPending ContactFlowState = "patient_selection_pending"
	ContactFlowDetailsPending          ContactFlowState = "details_pending"
	ContactFlowSubmitting              ContactFlowState = "submitting"
	ContactFlowResolved                ContactFlowState = "resolved"
)

// ContactOutcome is the result carried by the resolved state
type ContactOutcome string

const (
	ContactOutcomeNone    ContactOutcome = ""
	ContactOutcomeSuccess ContactOutcome = "success"
	ContactOutcomeDenied  ContactOutcome = "denied"
	ContactOutcomeFailed  ContactOutcome = "failed"
)

// ContactFlowDeps are the collaborators a contact request needs
type ContactFlowDeps struct {
	Quota    *ContactQuota
	Roster   providers.PatientRosterProvider
	Revealer providers.ContactRevealProvider
	Requests repositories.ContactRequestRepository
	Clock    Clock
}

// ContactRequestFlow drives one attempt to reveal a provider's contact
// details. The quota is checked before any data entry and consumed as the
// very last step of submission, so a failed submission never costs quota.
type ContactRequestFlow struct {
	id      string
	userID  string
	deps    ContactFlowDeps
	state   ContactFlowState
	outcome ContactOutcome
	request entities.ContactRequestContext
	record  *entities.ContactRecord
	failure error
	discard atomic.Bool
}

// NewContactRequestFlow creates a flow in the idle state
func NewContactRequestFlow(userID, providerID string, deps ContactFlowDeps) *ContactRequestFlow {
	if deps.Quota == nil {
		panic("services: contact request flow requires a quota")
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	return &ContactRequestFlow{
		id:      uuid.New().String(),
		userID:  userID,
		deps:    deps,
		state:   ContactFlowIdle,
		request: entities.ContactRequestContext{ProviderID: providerID, Urgency: entities.UrgencyNormal},
	}
}

// ID returns the flow id
func (f *ContactRequestFlow) ID() string { return f.id }

// UserID returns the requesting user
func (f *ContactRequestFlow) UserID() string { return f.userID }

// State returns the current state
func (f *ContactRequestFlow) State() ContactFlowState { return f.state }

// Outcome returns the resolution, empty until resolved
func (f *ContactRequestFlow) Outcome() ContactOutcome { return f.outcome }

// Request returns the data collected so far
func (f *ContactRequestFlow) Request() entities.ContactRequestContext { return f.request }

// Record returns the emitted record after a successful resolution
func (f *ContactRequestFlow) Record() *entities.ContactRecord { return f.record }

// Failure returns the error that caused a denied or failed resolution
func (f *ContactRequestFlow) Failure() error { return f.failure }

// Start moves from idle to patient selection, or straight to denied when
// the quota is already used up.
func (f *ContactRequestFlow) Start(ctx context.Context) error {
	if err := f.expect(ContactFlowIdle); err != nil {
		return err
	}
	if !f.deps.Quota.CanConsume() {
		return f.deny(ctx)
	}
	f.state = ContactFlowPatientSelectionPending
	return nil
}

// SelectPatient records who the appointment is for. Either the requester is
// the patient, or dependentID must belong to the requester's roster.
// Validation errors leave the flow where it is.
func (f *ContactRequestFlow) SelectPatient(ctx context.Context, requesterIsPatient bool, dependentID string) error {
	if err := f.expect(ContactFlowPatientSelectionPending); err != nil {
		return err
	}

	if requesterIsPatient {
		f.request.RequesterIsPatient = true
		f.request.DependentPatientID = ""
		f.state = ContactFlowDetailsPending
		return nil
	}

	dependentID = strings.TrimSpace(dependentID)
	if dependentID == "" {
		return apperrors.NewValidationError("select yourself or a dependent patient")
	}
	if f.deps.Roster == nil {
		return apperrors.NewValidationError("dependent patients are not available")
	}

	roster, err := f.deps.Roster.ListDependents(ctx, f.userID)
	if err != nil {
		return apperrors.NewExternalError("failed to load patient roster", err)
	}
	if err := f.checkActive(); err != nil {
		return err
	}

	for _, p := range roster {
		if p.ID == dependentID {
			f.request.RequesterIsPatient = false
			f.request.DependentPatientID = dependentID
			f.state = ContactFlowDetailsPending
			return nil
		}
	}
	return apperrors.NewValidationError(fmt.Sprintf("patient %s is not in your roster", dependentID))
}

// SubmitDetails validates the visit details and submits the request. The
// returned error is QUOTA_EXHAUSTED on denial and EXTERNAL on failure; in both
// cases the flow is resolved.
func (f *ContactRequestFlow) SubmitDetails(ctx context.Context, reason, urgency, notes string) (*entities.ContactRecord, error) {
	if err := f.expect(ContactFlowDetailsPending); err != nil {
		return nil, err
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.NewValidationError("reason for visit is required")
	}
	level, err := entities.ParseUrgency(strings.TrimSpace(urgency))
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	f.request.ReasonForVisit = reason
	f.request.Urgency = level
	f.request.Notes = strings.TrimSpace(notes)
	f.state = ContactFlowSubmitting

	record := &entities.ContactRecord{
		ID:        f.id,
		UserID:    f.userID,
		Request:   f.request,
		Status:    entities.ContactRequestStatusPending,
		CreatedAt: f.deps.Clock.Now(),
	}

	if f.deps.Requests != nil {
		if err := f.deps.Requests.Create(ctx, record); err != nil {
			return nil, f.fail(apperrors.NewExternalError("failed to submit contact request", err))
		}
	}
	if err := f.checkActive(); err != nil {
		f.finish(ctx, record, entities.ContactRequestStatusFailed)
		return nil, err
	}

	// Consume is the last step: nothing after it can fail the request.
	consumed, err := f.deps.Quota.Consume(ctx)
	if err != nil {
		f.finish(ctx, record, entities.ContactRequestStatusFailed)
		return nil, f.fail(err)
	}
	if !consumed {
		f.finish(ctx, record, entities.ContactRequestStatusDenied)
		return nil, f.deny(ctx)
	}

	f.finish(ctx, record, entities.ContactRequestStatusSuccess)
	f.record = record
	f.state = ContactFlowResolved
	f.outcome = ContactOutcomeSuccess
	return record, nil
}

// Reveal fetches the provider's contact details; only valid after success
func (f *ContactRequestFlow) Reveal(ctx context.Context) (*entities.ContactDetails, error) {
	if f.state != ContactFlowResolved || f.outcome != ContactOutcomeSuccess {
		return nil, apperrors.NewConflictError("contact details are only available after a successful request")
	}
	if f.deps.Revealer == nil {
		return nil, apperrors.NewInternalError("contact revelation service not configured", nil)
	}
	details, err := f.deps.Revealer.RevealContact(ctx, f.request.ProviderID)
	if err != nil {
		return nil, apperrors.NewExternalError("failed to reveal contact details", err)
	}
	return details, nil
}

// Discard abandons the flow; pending completions no longer advance it
func (f *ContactRequestFlow) Discard() {
	f.discard.Store(true)
}

// Discarded reports whether the flow was abandoned
func (f *ContactRequestFlow) Discarded() bool {
	return f.discard.Load()
}

func (f *ContactRequestFlow) expect(state ContactFlowState) error {
	if err := f.checkActive(); err != nil {
		return err
	}
	if f.state != state {
		return apperrors.NewConflictError(fmt.Sprintf("contact request is %s, expected %s", f.describe(), state))
	}
	return nil
}

func (f *ContactRequestFlow) checkActive() error {
	if f.discard.Load() {
		return apperrors.NewConflictError(fmt.Sprintf("contact request %s was discarded", f.id))
	}
	return nil
}

func (f *ContactRequestFlow) describe() string {
	if f.state == ContactFlowResolved {
		return fmt.Sprintf("%s(%s)", f.state, f.outcome)
	}
	return string(f.state)
}

func (f *ContactRequestFlow) deny(ctx context.Context) error {
	err := apperrors.NewQuotaExhaustedError(f.deps.Quota.State().Allowance)
	f.state = ContactFlowResolved
	f.outcome = ContactOutcomeDenied
	f.failure = err
	observability.LoggerFromContext(ctx).Info().
		Str("flow_id", f.id).
		Str("user_id", f.userID).
		Str("provider_id", f.request.ProviderID).
		Msg("contact request denied")
	return err
}

func (f *ContactRequestFlow) fail(err error) error {
	f.state = ContactFlowResolved
	f.outcome = ContactOutcomeFailed
	f.failure = err
	return err
}

// finish records the outcome; a failure here does not change the resolution
func (f *ContactRequestFlow) finish(ctx context.Context, record *entities.ContactRecord, status entities.ContactRequestStatus) {
	now := f.deps.Clock.Now()
	record.Status = status
	record.ResolvedAt = &now
	if f.deps.Requests == nil {
		return
	}
	if err := f.deps.Requests.UpdateStatus(ctx, record.ID, status, now); err != nil {
		observability.LoggerFromContext(ctx).Warn().
			Err(err).
			Str("flow_id", f.id).
			Str("status", string(status)).
			Msg("failed to record contact request outcome")
	}
}
