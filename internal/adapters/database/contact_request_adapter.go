package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/zatekoja/mindcare-directory/internal/domain/entities"
	"github.com/zatekoja/mindcare-directory/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/mindcare-directory/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/mindcare-directory/pkg/errors"
)

const contactRequestsTable = "contact_requests"

// ContactRequestAdapter implements the ContactRequestRepository interface
type ContactRequestAdapter struct {
	client  *postgres.Client
	db      *goqu.Database
	metrics *observability.Metrics
}

// NewContactRequestAdapter creates a new contact request adapter
func NewContactRequestAdapter(client *postgres.Client, metrics *observability.Metrics) *ContactRequestAdapter {
	return &ContactRequestAdapter{
		client:  client,
		db:      goqu.New("postgres", client.DB()),
		metrics: metrics,
	}
}

// Create stores a request in pending status
func (a *ContactRequestAdapter) Create(ctx context.Context, record *entities.ContactRecord) error {
	defer observeDB(ctx, a.metrics, "contact_requests.create", time.Now())

	var dependent interface{}
	if record.Request.DependentPatientID != "" {
		dependent = record.Request.DependentPatientID
	}

	query, args, err := a.db.Insert(contactRequestsTable).Prepared(true).Rows(goqu.Record{
		"id":                   record.ID,
		"user_id":              record.UserID,
		"provider_id":          record.Request.ProviderID,
		"requester_is_patient": record.Request.RequesterIsPatient,
		"dependent_patient_id": dependent,
		"reason_for_visit":     record.Request.ReasonForVisit,
		"urgency":              string(record.Request.Urgency),
		"notes":                record.Request.Notes,
		"status":               string(record.Status),
		"created_at":           record.CreatedAt,
	}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create contact request", err)
	}
	return nil
}

// UpdateStatus records the final outcome of a request
func (a *ContactRequestAdapter) UpdateStatus(ctx context.Context, id string, status entities.ContactRequestStatus, resolvedAt time.Time) error {
	defer observeDB(ctx, a.metrics, "contact_requests.update_status", time.Now())

	query, args, err := a.db.Update(contactRequestsTable).Prepared(true).
		Set(goqu.Record{
			"status":      string(status),
			"resolved_at": resolvedAt,
		}).
		Where(goqu.C("id").Eq(id)).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update contact request", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("contact request with id %s not found", id))
	}
	return nil
}

// ListByUser retrieves contact requests made by a user, newest first
func (a *ContactRequestAdapter) ListByUser(ctx context.Context, userID string, limit int) ([]*entities.ContactRecord, error) {
	defer observeDB(ctx, a.metrics, "contact_requests.list_by_user", time.Now())

	ds := a.db.Select(
		"id", "user_id", "provider_id", "requester_is_patient", "dependent_patient_id",
		"reason_for_visit", "urgency", "notes", "status", "created_at", "resolved_at",
	).Prepared(true).
		From(contactRequestsTable).
		Where(goqu.C("user_id").Eq(userID)).
		Order(goqu.C("created_at").Desc())
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list contact requests", err)
	}
	defer rows.Close()

	records := make([]*entities.ContactRecord, 0)
	for rows.Next() {
		record := &entities.ContactRecord{}
		var (
			dependent, notes sql.NullString
			urgency, status  string
			resolvedAt       sql.NullTime
		)
		if err := rows.Scan(
			&record.ID,
			&record.UserID,
			&record.Request.ProviderID,
			&record.Request.RequesterIsPatient,
			&dependent,
			&record.Request.ReasonForVisit,
			&urgency,
			&notes,
			&status,
			&record.CreatedAt,
			&resolvedAt,
		); err != nil {
			return nil, apperrors.NewInternalError("failed to scan contact request", err)
		}
		record.Request.DependentPatientID = dependent.String
		record.Request.Notes = notes.String
		record.Request.Urgency = entities.Urgency(urgency)
		record.Status = entities.ContactRequestStatus(status)
		if resolvedAt.Valid {
			t := resolvedAt.Time
			record.ResolvedAt = &t
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate contact requests", err)
	}
	return records, nil
}
