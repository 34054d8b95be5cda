package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zatekoja/mindcare-directory/internal/domain/entities"
	"github.com/zatekoja/mindcare-directory/internal/domain/providers"
	"github.com/zatekoja/mindcare-directory/internal/domain/repositories"
	"github.com/zatekoja/mindcare-directory/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/mindcare-directory/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

const (
	bookingSnapshotPrefix = "booking_session:"

	defaultSessionIdleTTL = 24 * time.Hour
	sessionSweepInterval  = time.Minute
)

// BookingView is what a client renders for a booking session
type BookingView struct {
	SessionID      string                    `json:"session_id"`
	ProviderID     string                    `json:"provider_id"`
	Locations      []entities.Location       `json:"locations"`
	Selection      entities.BookingSelection `json:"selection"`
	DisplayedMonth entities.YearMonth        `json:"displayed_month"`
	Band           entities.DayBand          `json:"band"`
	Days           []entities.CalendarDay    `json:"days"`
	Slots          []string                  `json:"slots"`
	ReadyToConfirm bool                      `json:"ready_to_confirm"`
}

// BookingServiceDeps are the collaborators of BookingService
type BookingServiceDeps struct {
	Availability *ProviderAvailabilityService
	Bookings     repositories.BookingRepository
	Cache        providers.CacheProvider
	Events       providers.EventBus
	Clock        Clock
	Metrics      *observability.Metrics
	// SnapshotTTL is how long an idle session survives in the cache, in seconds
	SnapshotTTL int
}

type bookingEntry struct {
	mu        sync.Mutex
	session   *BookingSession
	selector  *SlotSelector
	navigator *CalendarNavigator
	// lastSeen is unix nanoseconds of the latest lookup
	lastSeen atomic.Int64
}

// BookingService hosts booking sessions for the HTTP surface. Each session is
// serialized by its own lock; its state is snapshotted after every change so
// it survives a reload or a restart. Sessions idle for longer than the
// snapshot TTL are dropped from memory, and a confirmed session is dropped
// right away; both can still be restored from a snapshot that has not expired.
type BookingService struct {
	deps    BookingServiceDeps
	idleTTL time.Duration

	mu        sync.RWMutex
	sessions  map[string]*bookingEntry
	lastSweep time.Time
}

// NewBookingService creates a new booking service
func NewBookingService(deps BookingServiceDeps) *BookingService {
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	idleTTL := defaultSessionIdleTTL
	if deps.SnapshotTTL > 0 {
		idleTTL = time.Duration(deps.SnapshotTTL) * time.Second
	}
	return &BookingService{
		deps:     deps,
		idleTTL:  idleTTL,
		sessions: make(map[string]*bookingEntry),
	}
}

// StartSession loads the provider's availability and opens an empty session
func (s *BookingService) StartSession(ctx context.Context, userID, providerID string) (*BookingView, error) {
	ctx, span := observability.StartSpan(ctx, "booking.start_session")
	defer span.End()
	observability.SetSpanAttributes(span,
		attribute.String("provider.id", providerID),
		attribute.String("user.id", userID),
	)

	if userID == "" {
		return nil, apperrors.NewValidationError("user id is required")
	}
	if s.deps.Availability == nil {
		return nil, apperrors.NewInternalError("availability service not configured", nil)
	}

	store, err := s.deps.Availability.Load(ctx, providerID)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	entry := s.newEntry(NewBookingSession("", userID, store, s.deps.Clock))
	now := s.deps.Clock.Now()
	entry.lastSeen.Store(now.UnixNano())

	s.mu.Lock()
	s.sweepIdleLocked(now)
	s.sessions[entry.session.ID()] = entry
	s.mu.Unlock()

	s.saveSnapshot(ctx, entry)

	observability.LoggerFromContext(ctx).Info().
		Str("session_id", entry.session.ID()).
		Str("provider_id", providerID).
		Msg("booking session started")

	return s.view(entry), nil
}

// GetSession returns the current view of a session
func (s *BookingService) GetSession(ctx context.Context, userID, sessionID string) (*BookingView, error) {
	var view *BookingView
	err := s.withEntry(ctx, userID, sessionID, func(e *bookingEntry) error {
		view = s.view(e)
		return nil
	})
	return view, err
}

// SelectLocation switches the attention location
func (s *BookingService) SelectLocation(ctx context.Context, userID, sessionID, locationID string) (*BookingView, error) {
	return s.mutate(ctx, userID, sessionID, func(e *bookingEntry) error {
		return e.session.SetLocation(locationID)
	})
}

// SelectDate selects a calendar day; past days are rejected
func (s *BookingService) SelectDate(ctx context.Context, userID, sessionID string, date entities.CalendarDate) (*BookingView, error) {
	return s.mutate(ctx, userID, sessionID, func(e *bookingEntry) error {
		if date.IsZero() {
			return apperrors.NewValidationError("date is required")
		}
		ok, err := e.navigator.SelectDay(date)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.NewValidationError(fmt.Sprintf("date %s is in the past", date))
		}
		return nil
	})
}

// SetBand changes the band filter
func (s *BookingService) SetBand(ctx context.Context, userID, sessionID string, band entities.DayBand) (*BookingView, error) {
	return s.mutate(ctx, userID, sessionID, func(e *bookingEntry) error {
		return e.selector.SetBand(band)
	})
}

// ChooseSlot picks a time slot among the ones currently offered
func (s *BookingService) ChooseSlot(ctx context.Context, userID, sessionID, slot string) (*BookingView, error) {
	return s.mutate(ctx, userID, sessionID, func(e *bookingEntry) error {
		sel := e.session.Selection()
		if !sel.HasLocation() || !sel.HasDate() {
			return apperrors.NewIncompleteSelectionError(missingBefore(sel)...)
		}
		return e.selector.ChooseSlot(slot)
	})
}

// AdvanceMonth moves the calendar one month back (-1) or forward (+1)
func (s *BookingService) AdvanceMonth(ctx context.Context, userID, sessionID string, direction int) (*BookingView, error) {
	return s.mutate(ctx, userID, sessionID, func(e *bookingEntry) error {
		if direction != -1 && direction != 1 {
			return apperrors.NewValidationError("direction must be -1 or 1")
		}
		return e.navigator.AdvanceMonth(direction)
	})
}

// Confirm stores the booking and publishes it. When storing fails the
// selection is kept so the patient can retry.
func (s *BookingService) Confirm(ctx context.Context, userID, sessionID string) (*entities.BookingRecord, error) {
	ctx, span := observability.StartSpan(ctx, "booking.confirm")
	defer span.End()
	observability.SetSpanAttributes(span, attribute.String("booking.session_id", sessionID))

	var (
		record *entities.BookingRecord
		done   *bookingEntry
	)
	err := s.withEntry(ctx, userID, sessionID, func(e *bookingEntry) error {
		before := e.session.Selection()

		rec, err := e.session.Confirm()
		if err != nil {
			return err
		}

		if s.deps.Bookings != nil {
			if err := s.deps.Bookings.Create(ctx, rec); err != nil {
				e.session.restoreSelection(before)
				return apperrors.NewExternalError("failed to store booking", err)
			}
		}

		record = rec
		done = e
		s.saveSnapshot(ctx, e)
		return nil
	})
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	s.evict(sessionID, done)

	observability.RecordBookingConfirmed(ctx, s.deps.Metrics, record.ProviderID)
	s.publish(ctx, providers.EventChannelBookings, entities.NewBookingConfirmedEvent(record))

	observability.LoggerFromContext(ctx).Info().
		Str("booking_id", record.ID).
		Str("provider_id", record.ProviderID).
		Str("date", record.Date.String()).
		Str("time_slot", record.TimeSlot).
		Msg("booking confirmed")

	return record, nil
}

// Discard abandons a session; in-flight operations on it fail with CONFLICT
func (s *BookingService) Discard(ctx context.Context, userID, sessionID string) error {
	e, err := s.lookup(ctx, userID, sessionID)
	if err != nil {
		return err
	}

	// Waits for an operation in flight so its snapshot cannot outlive the delete.
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session.Discard()

	if s.deps.Cache != nil {
		if err := s.deps.Cache.Delete(ctx, bookingSnapshotPrefix+sessionID); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("session_id", sessionID).Msg("failed to delete booking snapshot")
		}
	}
	s.evict(sessionID, e)
	return nil
}

// ListBookings returns the user's confirmed bookings
func (s *BookingService) ListBookings(ctx context.Context, userID string, filter repositories.BookingFilter) ([]*entities.BookingRecord, error) {
	if userID == "" {
		return nil, apperrors.NewValidationError("user id is required")
	}
	if s.deps.Bookings == nil {
		return []*entities.BookingRecord{}, nil
	}
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	records, err := s.deps.Bookings.ListByUser(ctx, userID, filter)
	if err != nil {
		return nil, apperrors.NewExternalError("failed to list bookings", err)
	}
	return records, nil
}

func (s *BookingService) mutate(ctx context.Context, userID, sessionID string, fn func(*bookingEntry) error) (*BookingView, error) {
	var view *BookingView
	err := s.withEntry(ctx, userID, sessionID, func(e *bookingEntry) error {
		if err := fn(e); err != nil {
			return err
		}
		s.saveSnapshot(ctx, e)
		view = s.view(e)
		return nil
	})
	return view, err
}

func (s *BookingService) withEntry(ctx context.Context, userID, sessionID string, fn func(*bookingEntry) error) error {
	e, err := s.lookup(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e)
}

// lookup finds a live session, restoring it from its snapshot when this
// process has not seen it yet
func (s *BookingService) lookup(ctx context.Context, userID, sessionID string) (*bookingEntry, error) {
	now := s.deps.Clock.Now()

	s.mu.Lock()
	s.sweepIdleLocked(now)
	e, ok := s.sessions[sessionID]
	s.mu.Unlock()

	if !ok {
		restored, err := s.restore(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		restored.lastSeen.Store(now.UnixNano())
		s.mu.Lock()
		if existing, found := s.sessions[sessionID]; found {
			restored = existing
		} else {
			s.sessions[sessionID] = restored
		}
		s.mu.Unlock()
		e = restored
	}

	// Sessions of other users are reported as missing.
	if e.session.UserID() != userID || e.session.Discarded() {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("booking session %s not found", sessionID))
	}
	e.lastSeen.Store(now.UnixNano())
	return e, nil
}

// evict drops a session from memory if it is still the registered entry
func (s *BookingService) evict(sessionID string, e *bookingEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[sessionID] == e {
		delete(s.sessions, sessionID)
	}
}

// sweepIdleLocked drops sessions not looked up within the idle TTL. Caller
// holds s.mu.
func (s *BookingService) sweepIdleLocked(now time.Time) {
	if now.Sub(s.lastSweep) < sessionSweepInterval {
		return
	}
	s.lastSweep = now
	cutoff := now.Add(-s.idleTTL).UnixNano()
	for id, e := range s.sessions {
		if e.lastSeen.Load() < cutoff {
			delete(s.sessions, id)
		}
	}
}

// ActiveSessions returns how many sessions are held in memory
func (s *BookingService) ActiveSessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *BookingService) restore(ctx context.Context, sessionID string) (*bookingEntry, error) {
	notFound := apperrors.NewNotFoundError(fmt.Sprintf("booking session %s not found", sessionID))
	if s.deps.Cache == nil || s.deps.Availability == nil {
		return nil, notFound
	}

	raw, err := s.deps.Cache.Get(ctx, bookingSnapshotPrefix+sessionID)
	if errors.Is(err, providers.ErrCacheMiss) {
		return nil, notFound
	}
	if err != nil {
		return nil, apperrors.NewExternalError("failed to read booking session", err)
	}

	var snap entities.BookingSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, notFound
	}

	store, err := s.deps.Availability.Load(ctx, snap.ProviderID)
	if err != nil {
		return nil, err
	}

	e := s.newEntry(NewBookingSession(snap.SessionID, snap.UserID, store, s.deps.Clock))
	e.navigator.ShowMonth(snap.DisplayedMonth)

	// Replay through the normal operations so anything no longer offered is dropped.
	sel := snap.Selection
	if snap.Band.Valid() {
		_ = e.selector.SetBand(snap.Band)
	}
	if sel.HasLocation() && e.session.SetLocation(sel.LocationID) == nil && sel.HasDate() {
		if ok, _ := e.navigator.SelectDay(sel.Date); ok && sel.HasTimeSlot() {
			_ = e.selector.ChooseSlot(sel.TimeSlot)
		}
	}

	observability.LoggerFromContext(ctx).Debug().
		Str("session_id", sessionID).
		Time("saved_at", snap.SavedAt).
		Msg("booking session restored")
	return e, nil
}

func (s *BookingService) saveSnapshot(ctx context.Context, e *bookingEntry) {
	if s.deps.Cache == nil || e.session.Discarded() {
		return
	}
	snap := entities.BookingSnapshot{
		SessionID:      e.session.ID(),
		ProviderID:     e.session.ProviderID(),
		UserID:         e.session.UserID(),
		DisplayedMonth: e.navigator.DisplayedMonth(),
		Band:           e.selector.Band(),
		Selection:      e.session.Selection(),
		SavedAt:        s.deps.Clock.Now().UTC(),
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := s.deps.Cache.Set(ctx, bookingSnapshotPrefix+snap.SessionID, raw, s.deps.SnapshotTTL); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("session_id", snap.SessionID).Msg("failed to save booking snapshot")
	}
}

func (s *BookingService) publish(ctx context.Context, channel string, event *entities.DomainEvent) {
	if s.deps.Events == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.deps.Events.Publish(pubCtx, channel, event); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("event_id", event.ID).Msg("failed to publish booking event")
	}
}

func (s *BookingService) newEntry(session *BookingSession) *bookingEntry {
	selector := NewSlotSelector(session)
	return &bookingEntry{
		session:   session,
		selector:  selector,
		navigator: NewCalendarNavigator(session, selector, s.deps.Clock),
	}
}

func (s *BookingService) view(e *bookingEntry) *BookingView {
	return &BookingView{
		SessionID:      e.session.ID(),
		ProviderID:     e.session.ProviderID(),
		Locations:      e.session.Store().Locations(),
		Selection:      e.session.Selection(),
		DisplayedMonth: e.navigator.DisplayedMonth(),
		Band:           e.selector.Band(),
		Days:           e.navigator.DaysInDisplayedMonth(),
		Slots:          e.selector.CurrentSlots(),
		ReadyToConfirm: e.session.IsReadyToConfirm(),
	}
}

func missingBefore(sel entities.BookingSelection) []string {
	var missing []string
	if !sel.HasLocation() {
		missing = append(missing, "location")
	}
	if !sel.HasDate() {
		missing = append(missing, "date")
	}
	return missing
}
