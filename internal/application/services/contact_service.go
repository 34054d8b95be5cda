package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/zatekoja/mindcare-directory/internal/domain/entities"
	"github.com/zatekoja/mindcare-directory/internal/domain/providers"
	"github.com/zatekoja/mindcare-directory/internal/domain/repositories"
	"github.com/zatekoja/mindcare-directory/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/mindcare-directory/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// ContactFlowView is what a client renders for a contact request
type ContactFlowView struct {
	FlowID  string                         `json:"flow_id"`
	State   ContactFlowState               `json:"state"`
	Outcome ContactOutcome                 `json:"outcome,omitempty"`
	Request entities.ContactRequestContext `json:"request"`
	Quota   entities.ContactQuotaState     `json:"quota"`
	Record  *entities.ContactRecord        `json:"record,omitempty"`
}

// ContactServiceDeps are the collaborators of ContactService
type ContactServiceDeps struct {
	Quotas    providers.QuotaStore
	Roster    providers.PatientRosterProvider
	Revealer  providers.ContactRevealProvider
	Requests  repositories.ContactRequestRepository
	Events    providers.EventBus
	Clock     Clock
	Metrics   *observability.Metrics
	Allowance int
	// FlowTTL is how long an untouched flow is kept; zero means 30 minutes
	FlowTTL time.Duration
}

const defaultContactFlowTTL = 30 * time.Minute

type contactEntry struct {
	mu   sync.Mutex
	flow *ContactRequestFlow
	// lastSeen is unix nanoseconds of the latest lookup
	lastSeen atomic.Int64
}

// ContactService hosts contact request flows. Each user has exactly one
// ContactQuota instance in this process, shared by all of their flows.
// Denied and failed flows are dropped once their view is returned; the others
// are dropped after FlowTTL without use.
type ContactService struct {
	deps ContactServiceDeps

	mu        sync.Mutex
	quotas    map[string]*ContactQuota
	flows     map[string]*contactEntry
	lastSweep time.Time
}

// NewContactService creates a new contact service
func NewContactService(deps ContactServiceDeps) *ContactService {
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	if deps.Allowance <= 0 {
		deps.Allowance = entities.DefaultContactAllowance
	}
	if deps.FlowTTL <= 0 {
		deps.FlowTTL = defaultContactFlowTTL
	}
	return &ContactService{
		deps:   deps,
		quotas: make(map[string]*ContactQuota),
		flows:  make(map[string]*contactEntry),
	}
}

// QuotaStatus returns the user's counter as currently persisted
func (s *ContactService) QuotaStatus(ctx context.Context, userID string) (entities.ContactQuotaState, error) {
	quota, err := s.quotaFor(ctx, userID)
	if err != nil {
		return entities.ContactQuotaState{}, err
	}
	if err := quota.refresh(ctx); err != nil {
		return entities.ContactQuotaState{}, err
	}
	return quota.State(), nil
}

// ListDependents returns who the user may request care for
func (s *ContactService) ListDependents(ctx context.Context, userID string) ([]entities.DependentPatient, error) {
	if userID == "" {
		return nil, apperrors.NewValidationError("user id is required")
	}
	if s.deps.Roster == nil {
		return []entities.DependentPatient{}, nil
	}
	roster, err := s.deps.Roster.ListDependents(ctx, userID)
	if err != nil {
		return nil, apperrors.NewExternalError("failed to load patient roster", err)
	}
	return roster, nil
}

// StartRequest opens a contact request for providerID. When the quota is
// used up the flow is registered already denied and QUOTA_EXHAUSTED is
// returned alongside its view.
func (s *ContactService) StartRequest(ctx context.Context, userID, providerID string) (*ContactFlowView, error) {
	ctx, span := observability.StartSpan(ctx, "contact.start_request")
	defer span.End()
	observability.SetSpanAttributes(span, attribute.String("provider.id", providerID))

	if providerID == "" {
		return nil, apperrors.NewValidationError("provider id is required")
	}
	quota, err := s.quotaFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	flow := NewContactRequestFlow(userID, providerID, ContactFlowDeps{
		Quota:    quota,
		Roster:   s.deps.Roster,
		Revealer: s.deps.Revealer,
		Requests: s.deps.Requests,
		Clock:    s.deps.Clock,
	})

	// Not registered yet, so nothing else can reach the flow during Start.
	startErr := flow.Start(ctx)
	if flow.State() == ContactFlowResolved {
		observability.RecordContactOutcome(ctx, s.deps.Metrics, string(flow.Outcome()))
	} else {
		now := s.deps.Clock.Now()
		entry := &contactEntry{flow: flow}
		entry.lastSeen.Store(now.UnixNano())

		s.mu.Lock()
		s.sweepIdleLocked(now)
		s.flows[flow.ID()] = entry
		s.mu.Unlock()
	}
	if startErr != nil {
		observability.RecordError(span, startErr)
	}
	return s.view(flow), startErr
}

// GetRequest returns the current view of a flow
func (s *ContactService) GetRequest(ctx context.Context, userID, flowID string) (*ContactFlowView, error) {
	var view *ContactFlowView
	err := s.withFlow(userID, flowID, func(f *ContactRequestFlow) error {
		view = s.view(f)
		return nil
	})
	return view, err
}

// SelectPatient records who the appointment is for
func (s *ContactService) SelectPatient(ctx context.Context, userID, flowID string, requesterIsPatient bool, dependentID string) (*ContactFlowView, error) {
	var view *ContactFlowView
	err := s.withFlow(userID, flowID, func(f *ContactRequestFlow) error {
		if err := f.SelectPatient(ctx, requesterIsPatient, dependentID); err != nil {
			return err
		}
		view = s.view(f)
		return nil
	})
	return view, err
}

// SubmitDetails submits the request. On denial or failure the resolved view
// is returned together with the error.
func (s *ContactService) SubmitDetails(ctx context.Context, userID, flowID, reason, urgency, notes string) (*ContactFlowView, error) {
	ctx, span := observability.StartSpan(ctx, "contact.submit_details")
	defer span.End()
	observability.SetSpanAttributes(span, attribute.String("contact.flow_id", flowID))

	var (
		view   *ContactFlowView
		record *entities.ContactRecord
	)
	err := s.withFlow(userID, flowID, func(f *ContactRequestFlow) error {
		rec, err := f.SubmitDetails(ctx, reason, urgency, notes)
		if f.State() == ContactFlowResolved {
			observability.RecordContactOutcome(ctx, s.deps.Metrics, string(f.Outcome()))
			view = s.view(f)
		}
		if err != nil {
			return err
		}
		record = rec
		return nil
	})
	if err != nil {
		if view != nil && view.Outcome != ContactOutcomeSuccess {
			s.forget(flowID)
		}
		observability.RecordError(span, err)
		return view, err
	}

	s.publish(ctx, providers.EventChannelContacts, entities.NewContactResolvedEvent(record))
	observability.LoggerFromContext(ctx).Info().
		Str("flow_id", flowID).
		Str("provider_id", record.Request.ProviderID).
		Str("urgency", string(record.Request.Urgency)).
		Msg("contact request succeeded")

	return view, nil
}

// Reveal returns the provider's contact details after a successful request
func (s *ContactService) Reveal(ctx context.Context, userID, flowID string) (*entities.ContactDetails, error) {
	var details *entities.ContactDetails
	err := s.withFlow(userID, flowID, func(f *ContactRequestFlow) error {
		d, err := f.Reveal(ctx)
		details = d
		return err
	})
	return details, err
}

// Discard abandons a flow; a submission still in flight no longer advances it
func (s *ContactService) Discard(ctx context.Context, userID, flowID string) error {
	entry, err := s.lookup(userID, flowID)
	if err != nil {
		return err
	}
	// Not under entry.mu: a submission in flight must observe the discard.
	entry.flow.Discard()
	s.forget(flowID)
	return nil
}

// ListRequests returns the user's past contact requests, newest first
func (s *ContactService) ListRequests(ctx context.Context, userID string, limit int) ([]*entities.ContactRecord, error) {
	if userID == "" {
		return nil, apperrors.NewValidationError("user id is required")
	}
	if s.deps.Requests == nil {
		return []*entities.ContactRecord{}, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	records, err := s.deps.Requests.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, apperrors.NewExternalError("failed to list contact requests", err)
	}
	return records, nil
}

// ResetQuota sets the user's counter back to zero. Administrative use only.
func (s *ContactService) ResetQuota(ctx context.Context, userID string) (entities.ContactQuotaState, error) {
	quota, err := s.quotaFor(ctx, userID)
	if err != nil {
		return entities.ContactQuotaState{}, err
	}
	if err := quota.Reset(ctx); err != nil {
		return entities.ContactQuotaState{}, err
	}

	state := quota.State()
	s.publish(ctx, providers.EventChannelContacts, entities.NewQuotaResetEvent(uuid.New().String(), state, s.deps.Clock.Now()))
	observability.LoggerFromContext(ctx).Info().Str("user_id", userID).Msg("contact quota reset")
	return state, nil
}

// RefreshQuota re-reads a user's counter if this process holds it, so a
// reset made by another instance is seen before the next request
func (s *ContactService) RefreshQuota(ctx context.Context, userID string) error {
	s.mu.Lock()
	quota, ok := s.quotas[userID]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return quota.refresh(ctx)
}

// quotaFor returns the single shared quota of a user, loading it on first use
func (s *ContactService) quotaFor(ctx context.Context, userID string) (*ContactQuota, error) {
	if userID == "" {
		return nil, apperrors.NewValidationError("user id is required")
	}
	if s.deps.Quotas == nil {
		return nil, apperrors.NewInternalError("quota store not configured", nil)
	}

	s.mu.Lock()
	quota, ok := s.quotas[userID]
	s.mu.Unlock()
	if ok {
		return quota, nil
	}

	loaded, err := LoadContactQuota(ctx, s.deps.Quotas, userID, s.deps.Allowance)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.quotas[userID]; ok {
		return existing, nil
	}
	s.quotas[userID] = loaded
	return loaded, nil
}

func (s *ContactService) lookup(userID, flowID string) (*contactEntry, error) {
	now := s.deps.Clock.Now()

	s.mu.Lock()
	s.sweepIdleLocked(now)
	entry, ok := s.flows[flowID]
	s.mu.Unlock()

	if !ok || entry.flow.UserID() != userID {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("contact request %s not found", flowID))
	}
	entry.lastSeen.Store(now.UnixNano())
	return entry, nil
}

func (s *ContactService) forget(flowID string) {
	s.mu.Lock()
	delete(s.flows, flowID)
	s.mu.Unlock()
}

// sweepIdleLocked drops flows not looked up within FlowTTL. Caller holds s.mu.
func (s *ContactService) sweepIdleLocked(now time.Time) {
	if now.Sub(s.lastSweep) < sessionSweepInterval {
		return
	}
	s.lastSweep = now
	cutoff := now.Add(-s.deps.FlowTTL).UnixNano()
	for id, e := range s.flows {
		if e.lastSeen.Load() < cutoff {
			delete(s.flows, id)
		}
	}
}

// ActiveFlows returns how many contact flows are held in memory
func (s *ContactService) ActiveFlows() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.flows)
}

func (s *ContactService) withFlow(userID, flowID string, fn func(*ContactRequestFlow) error) error {
	entry, err := s.lookup(userID, flowID)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return fn(entry.flow)
}

func (s *ContactService) view(f *ContactRequestFlow) *ContactFlowView {
	return &ContactFlowView{
		FlowID:  f.ID(),
		State:   f.State(),
		Outcome: f.Outcome(),
		Request: f.Request(),
		Quota:   f.deps.Quota.State(),
		Record:  f.Record(),
	}
}

func (s *ContactService) publish(ctx context.Context, channel string, event *entities.DomainEvent) {
	if s.deps.Events == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.deps.Events.Publish(pubCtx, channel, event); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("event_id", event.ID).Msg("failed to publish contact event")
	}
}
