package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/zatekoja/mindcare-directory/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/mindcare-directory/internal/infrastructure/observability"
)

const contactQuotasTable = "contact_quotas"

// ContactQuotaAdapter implements QuotaStore on PostgreSQL. The increment is
// a single upsert guarded by used < limit, so concurrent callers serialize on
// the row lock and cannot overshoot.
type ContactQuotaAdapter struct {
	client  *postgres.Client
	db      *goqu.Database
	metrics *observability.Metrics
	now     func() time.Time
}

// NewContactQuotaAdapter creates a new quota adapter
func NewContactQuotaAdapter(client *postgres.Client, metrics *observability.Metrics) *ContactQuotaAdapter {
	return &ContactQuotaAdapter{
		client:  client,
		db:      goqu.New("postgres", client.DB()),
		metrics: metrics,
		now:     time.Now,
	}
}

// GetUsed returns the consumed count; 0 when the user has no row yet
func (a *ContactQuotaAdapter) GetUsed(ctx context.Context, userID string) (int, error) {
	defer observeDB(ctx, a.metrics, "contact_quotas.get", time.Now())

	query, args, err := a.db.From(contactQuotasTable).Prepared(true).
		Select("used").
		Where(goqu.C("user_id").Eq(userID)).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("failed to build quota query: %w", err)
	}

	var used int
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(&used)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read quota for %s: %w", userID, err)
	}
	return used, nil
}

// IncrementIfBelow increments the counter while it is below limit
func (a *ContactQuotaAdapter) IncrementIfBelow(ctx context.Context, userID string, limit int) (int, bool, error) {
	if limit <= 0 {
		used, err := a.GetUsed(ctx, userID)
		return used, false, err
	}
	defer observeDB(ctx, a.metrics, "contact_quotas.increment", time.Now())

	now := a.now().UTC()
	query, args, err := a.db.Insert(contactQuotasTable).Prepared(true).
		Rows(goqu.Record{"user_id": userID, "used": 1, "updated_at": now}).
		OnConflict(goqu.DoUpdate("user_id", goqu.Record{
			"used":       goqu.L(`"contact_quotas"."used" + 1`),
			"updated_at": now,
		}).Where(goqu.I("contact_quotas.used").Lt(limit))).
		Returning("used").
		ToSQL()
	if err != nil {
		return 0, false, fmt.Errorf("failed to build quota upsert: %w", err)
	}

	var used int
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(&used)
	if errors.Is(err, sql.ErrNoRows) {
		// The guard rejected the update: the allowance is used up.
		current, err := a.GetUsed(ctx, userID)
		return current, false, err
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to increment quota for %s: %w", userID, err)
	}
	return used, true, nil
}

// Reset sets the counter back to zero
func (a *ContactQuotaAdapter) Reset(ctx context.Context, userID string) error {
	defer observeDB(ctx, a.metrics, "contact_quotas.reset", time.Now())

	now := a.now().UTC()
	query, args, err := a.db.Insert(contactQuotasTable).Prepared(true).
		Rows(goqu.Record{"user_id": userID, "used": 0, "updated_at": now}).
		OnConflict(goqu.DoUpdate("user_id", goqu.Record{"used": 0, "updated_at": now})).
		ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build quota reset: %w", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to reset quota for %s: %w", userID, err)
	}
	return nil
}

func observeDB(ctx context.Context, metrics *observability.Metrics, operation string, start time.Time) {
	observability.RecordDBMetric(ctx, metrics, operation, time.Since(start))
}
