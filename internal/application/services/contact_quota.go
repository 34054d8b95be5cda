package services

import (
	"context"
	"sync"

	"github.com/zatekoja/mindcare-directory/internal/domain/entities"
	"github.com/zatekoja/mindcare-directory/internal/domain/providers"
	"github.com/zatekoja/mindcare-directory/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/mindcare-directory/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// ContactQuota tracks how many contact reveals a user has consumed. It is
// loaded once per user and shared by reference; every successful Consume or
// Reset is durable before it returns.
type ContactQuota struct {
	mu        sync.Mutex
	store     providers.QuotaStore
	userID    string
	allowance int
	used      int
}

// LoadContactQuota reads the user's counter once from the store
func LoadContactQuota(ctx context.Context, store providers.QuotaStore, userID string, allowance int) (*ContactQuota, error) {
	if userID == "" {
		return nil, apperrors.NewValidationError("user id is required")
	}
	if allowance <= 0 {
		allowance = entities.DefaultContactAllowance
	}

	used, err := store.GetUsed(ctx, userID)
	if err != nil {
		return nil, apperrors.NewExternalError("failed to load contact quota", err)
	}
	if used > allowance {
		used = allowance
	}
	if used < 0 {
		used = 0
	}

	return &ContactQuota{
		store:     store,
		userID:    userID,
		allowance: allowance,
		used:      used,
	}, nil
}

// UserID returns the owner of the quota
func (q *ContactQuota) UserID() string {
	return q.userID
}

// State returns a snapshot of the counter
func (q *ContactQuota) State() entities.ContactQuotaState {
	q.mu.Lock()
	defer q.mu.Unlock()
	return entities.ContactQuotaState{UserID: q.userID, Allowance: q.allowance, Used: q.used}
}

// Remaining returns max(0, allowance-used)
func (q *ContactQuota) Remaining() int {
	return q.State().Remaining()
}

// CanConsume reports whether at least one reveal is left
func (q *ContactQuota) CanConsume() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.used < q.allowance
}

// Consume takes one unit. It returns false, without error, when the
// allowance is used up; an error means the store failed and nothing changed.
func (q *ContactQuota) Consume(ctx context.Context) (bool, error) {
	ctx, span := observability.StartSpan(ctx, "contact_quota.consume")
	defer span.End()
	observability.SetSpanAttributes(span, attribute.String("quota.user_id", q.userID))

	q.mu.Lock()
	defer q.mu.Unlock()

	// The store is authoritative: another session may have consumed since load.
	used, ok, err := q.store.IncrementIfBelow(ctx, q.userID, q.allowance)
	if err != nil {
		observability.RecordError(span, err)
		return false, apperrors.NewExternalError("failed to persist contact quota", err)
	}
	if used > q.allowance {
		used = q.allowance
	}
	q.used = used
	observability.SetSpanAttributes(span,
		attribute.Bool("quota.consumed", ok),
		attribute.Int("quota.used", used),
	)

	if !ok {
		observability.LoggerFromContext(ctx).Info().Str("user_id", q.userID).Int("allowance", q.allowance).Msg("contact quota exhausted")
	}
	return ok, nil
}

// Reset sets the counter back to zero. Administrative and testing use only.
func (q *ContactQuota) Reset(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.store.Reset(ctx, q.userID); err != nil {
		return apperrors.NewExternalError("failed to reset contact quota", err)
	}
	q.used = 0
	return nil
}

// refresh re-reads the counter, e.g. after an out-of-band admin reset
func (q *ContactQuota) refresh(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	used, err := q.store.GetUsed(ctx, q.userID)
	if err != nil {
		return apperrors.NewExternalError("failed to load contact quota", err)
	}
	if used > q.allowance {
		used = q.allowance
	}
	q.used = used
	return nil
}
