package routes

import (
	"net/http"

	"github.com/zatekoja/mindcare-directory/internal/api/handlers"
	"github.com/zatekoja/mindcare-directory/internal/api/middleware"
	"github.com/zatekoja/mindcare-directory/internal/infrastructure/observability"
)

// Options holds the router settings that do not come from handlers
type Options struct {
	AdminToken  string
	CORSOrigins []string
	// AvailabilityCacheTTL is the response cache lifetime of provider calendars, in seconds
	AvailabilityCacheTTL int
	// ContactLimiter throttles contact request creation and submission; nil disables it
	ContactLimiter *middleware.RateLimiter
	// EventStream serves GET /api/events when set
	EventStream *handlers.SSEHandler
}

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	bookingHandler  *handlers.BookingHandler
	contactHandler  *handlers.ContactHandler
	providerHandler *handlers.ProviderHandler
	healthHandler   *handlers.HealthHandler

	cacheMiddleware *middleware.CacheMiddleware
	metrics         *observability.Metrics
	opts            Options
}

// NewRouter creates a new router
func NewRouter(
	bookingHandler *handlers.BookingHandler,
	contactHandler *handlers.ContactHandler,
	providerHandler *handlers.ProviderHandler,
	healthHandler *handlers.HealthHandler,
	cacheMiddleware *middleware.CacheMiddleware,
	metrics *observability.Metrics,
	opts Options,
) *Router {
	if healthHandler == nil {
		healthHandler = handlers.NewHealthHandler(nil)
	}
	return &Router{
		mux:             http.NewServeMux(),
		bookingHandler:  bookingHandler,
		contactHandler:  contactHandler,
		providerHandler: providerHandler,
		healthHandler:   healthHandler,
		cacheMiddleware: cacheMiddleware,
		metrics:         metrics,
		opts:            opts,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", r.healthHandler.Live)
	r.mux.HandleFunc("GET /ready", r.healthHandler.Ready)

	// Provider calendars are the same for every patient and safe to cache
	r.mux.Handle("GET /api/providers/{id}/availability",
		r.cacheMiddleware.Handler(r.opts.AvailabilityCacheTTL, http.HandlerFunc(r.providerHandler.GetAvailability)))

	// Booking endpoints
	r.mux.HandleFunc("POST /api/providers/{id}/booking-sessions", r.bookingHandler.StartSession)
	r.mux.HandleFunc("GET /api/booking-sessions/{id}", r.bookingHandler.GetSession)
	r.mux.HandleFunc("PUT /api/booking-sessions/{id}/location", r.bookingHandler.SelectLocation)
	r.mux.HandleFunc("PUT /api/booking-sessions/{id}/date", r.bookingHandler.SelectDate)
	r.mux.HandleFunc("PUT /api/booking-sessions/{id}/band", r.bookingHandler.SetBand)
	r.mux.HandleFunc("PUT /api/booking-sessions/{id}/slot", r.bookingHandler.ChooseSlot)
	r.mux.HandleFunc("POST /api/booking-sessions/{id}/month", r.bookingHandler.AdvanceMonth)
	r.mux.HandleFunc("POST /api/booking-sessions/{id}/confirm", r.bookingHandler.Confirm)
	r.mux.HandleFunc("DELETE /api/booking-sessions/{id}", r.bookingHandler.Discard)
	r.mux.HandleFunc("GET /api/bookings", r.bookingHandler.ListBookings)

	// Contact request endpoints
	r.mux.HandleFunc("GET /api/contact-quota", r.contactHandler.GetQuota)
	r.mux.HandleFunc("GET /api/dependents", r.contactHandler.ListDependents)
	r.mux.Handle("POST /api/providers/{id}/contact-requests", r.limited(r.contactHandler.StartRequest))
	r.mux.HandleFunc("GET /api/contact-requests", r.contactHandler.ListRequests)
	r.mux.HandleFunc("GET /api/contact-requests/{id}", r.contactHandler.GetRequest)
	r.mux.HandleFunc("PUT /api/contact-requests/{id}/patient", r.contactHandler.SelectPatient)
	r.mux.Handle("POST /api/contact-requests/{id}/details", r.limited(r.contactHandler.SubmitDetails))
	r.mux.HandleFunc("GET /api/contact-requests/{id}/contact", r.contactHandler.RevealContact)
	r.mux.HandleFunc("DELETE /api/contact-requests/{id}", r.contactHandler.Discard)

	if r.opts.EventStream != nil {
		r.mux.HandleFunc("GET /api/events", r.opts.EventStream.StreamUserEvents)
	}

	// Admin endpoints
	r.mux.Handle("POST /api/admin/contact-quotas/{userId}/reset",
		middleware.AdminOnly(r.opts.AdminToken)(http.HandlerFunc(r.contactHandler.ResetQuota)))

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	handler = middleware.Identity(handler)
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics, r.mux)(handler)
	handler = middleware.ResponseOptimization(handler)

	// CORS wraps everything so headers are set even on cache HITs
	handler = middleware.CORSMiddleware(r.opts.CORSOrigins)(handler)

	return handler
}

func (r *Router) limited(fn http.HandlerFunc) http.Handler {
	if r.opts.ContactLimiter == nil {
		return fn
	}
	return r.opts.ContactLimiter.Middleware(fn)
}
