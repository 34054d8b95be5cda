package repositories

import (
	"context"
	"time"

	"github.com/zatekoja/mindcare-directory/internal/domain/entities"
)

// ContactRequestRepository records submitted contact requests
type ContactRequestRepository interface {
	// Create stores a request in pending status
	Create(ctx context.Context, record *entities.ContactRecord) error

	// UpdateStatus records the final outcome of a request
	UpdateStatus(ctx context.Context, id string, status entities.ContactRequestStatus, resolvedAt time.Time) error

	// ListByUser retrieves contact requests made by a user
	ListByUser(ctx context.Context, userID string, limit int) ([]*entities.ContactRecord, error)
}
