package providers

import (
	"context"
)

// QuotaStore persists contact quota counters per user. IncrementIfBelow must
// be atomic: two concurrent calls with one unit left cannot both succeed.
type QuotaStore interface {
	// GetUsed returns the consumed count; 0 when the user has no counter yet
	GetUsed(ctx context.Context, userID string) (int, error)

	// IncrementIfBelow increments the counter only while it is below limit and
	// returns the resulting count and whether the increment happened
	IncrementIfBelow(ctx context.Context, userID string, limit int) (used int, incremented bool, err error)

	// Reset sets the counter back to zero
	Reset(ctx context.Context, userID string) error
}
