package database

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/zatekoja/mindcare-directory/internal/domain/entities"
	"github.com/zatekoja/mindcare-directory/internal/domain/repositories"
	"github.com/zatekoja/mindcare-directory/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/mindcare-directory/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/mindcare-directory/pkg/errors"
)

const bookingsTable = "bookings"

var bookingColumns = []interface{}{
	"id", "session_id", "provider_id", "user_id", "location_id",
	"appointment_date", "time_slot", "created_at",
}

// BookingAdapter implements the BookingRepository interface
type BookingAdapter struct {
	client  *postgres.Client
	db      *goqu.Database
	metrics *observability.Metrics
}

// NewBookingAdapter creates a new booking adapter
func NewBookingAdapter(client *postgres.Client, metrics *observability.Metrics) *BookingAdapter {
	return &BookingAdapter{
		client:  client,
		db:      goqu.New("postgres", client.DB()),
		metrics: metrics,
	}
}

// Create stores a confirmed booking
func (a *BookingAdapter) Create(ctx context.Context, record *entities.BookingRecord) error {
	defer observeDB(ctx, a.metrics, "bookings.create", time.Now())

	query, args, err := a.db.Insert(bookingsTable).Prepared(true).Rows(goqu.Record{
		"id":               record.ID,
		"session_id":       record.SessionID,
		"provider_id":      record.ProviderID,
		"user_id":          record.UserID,
		"location_id":      record.LocationID,
		"appointment_date": record.Date.Time(),
		"time_slot":        record.TimeSlot,
		"created_at":       record.CreatedAt,
	}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create booking", err)
	}
	return nil
}

// ListByUser retrieves bookings for a user, most recent first
func (a *BookingAdapter) ListByUser(ctx context.Context, userID string, filter repositories.BookingFilter) ([]*entities.BookingRecord, error) {
	defer observeDB(ctx, a.metrics, "bookings.list_by_user", time.Now())

	conds := []exp.Expression{goqu.C("user_id").Eq(userID)}
	if filter.ProviderID != "" {
		conds = append(conds, goqu.C("provider_id").Eq(filter.ProviderID))
	}
	if filter.From != nil {
		conds = append(conds, goqu.C("appointment_date").Gte(filter.From.Time()))
	}

	ds := a.db.Select(bookingColumns...).Prepared(true).
		From(bookingsTable).
		Where(conds...).
		Order(goqu.C("created_at").Desc())
	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list bookings", err)
	}
	defer rows.Close()

	records := make([]*entities.BookingRecord, 0)
	for rows.Next() {
		record := &entities.BookingRecord{}
		var date time.Time
		if err := rows.Scan(
			&record.ID,
			&record.SessionID,
			&record.ProviderID,
			&record.UserID,
			&record.LocationID,
			&date,
			&record.TimeSlot,
			&record.CreatedAt,
		); err != nil {
			return nil, apperrors.NewInternalError("failed to scan booking", err)
		}
		record.Date = entities.DateOf(date)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate bookings", err)
	}
	return records, nil
}
