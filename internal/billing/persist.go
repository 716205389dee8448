package billing

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"tradehax/internal/types"
)

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx, so the
// persister works inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgxPersister is the PostgreSQL-backed Persister implementation. It mirrors
// subscription records to a durable table so tier state survives restarts in
// deployments that opt into it. Writes are best-effort: the in-memory store
// remains authoritative and a failed write never fails the request.
type PgxPersister struct {
	db DBTX
}

// NewPgxPersister creates a PgxPersister over the given connection.
func NewPgxPersister(db DBTX) *PgxPersister {
	return &PgxPersister{db: db}
}

// SaveSubscription upserts the subscription row keyed by user_id.
func (p *PgxPersister) SaveSubscription(ctx context.Context, rec types.SubscriptionRecord) error {
	_, err := p.db.Exec(ctx,
		`INSERT INTO subscriptions (
		     user_id, tier, status, provider, billing_cycle,
		     current_period_start, current_period_end, cancel_at_period_end, updated_at
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (user_id) DO UPDATE SET
		     tier = EXCLUDED.tier,
		     status = EXCLUDED.status,
		     provider = EXCLUDED.provider,
		     billing_cycle = EXCLUDED.billing_cycle,
		     current_period_start = EXCLUDED.current_period_start,
		     current_period_end = EXCLUDED.current_period_end,
		     cancel_at_period_end = EXCLUDED.cancel_at_period_end,
		     updated_at = EXCLUDED.updated_at`,
		rec.UserID,
		rec.Tier,
		rec.Status,
		rec.Provider,
		rec.BillingCycle,
		rec.CurrentPeriodStart,
		rec.CurrentPeriodEnd,
		rec.CancelAtPeriodEnd,
		rec.UpdatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalPersistence, "failed to persist subscription record", err)
	}
	return nil
}

// LoadSubscriptions reads every persisted record, for warm-starting the
// in-memory store at boot.
func (p *PgxPersister) LoadSubscriptions(ctx context.Context) ([]types.SubscriptionRecord, error) {
	rows, err := p.db.Query(ctx,
		`SELECT user_id, tier, status, provider, billing_cycle,
		        current_period_start, current_period_end, cancel_at_period_end, updated_at
		 FROM subscriptions`)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalPersistence, "failed to load subscription records", err)
	}
	defer rows.Close()

	var records []types.SubscriptionRecord
	for rows.Next() {
		var rec types.SubscriptionRecord
		if err := rows.Scan(
			&rec.UserID,
			&rec.Tier,
			&rec.Status,
			&rec.Provider,
			&rec.BillingCycle,
			&rec.CurrentPeriodStart,
			&rec.CurrentPeriodEnd,
			&rec.CancelAtPeriodEnd,
			&rec.UpdatedAt,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalPersistence, "failed to scan subscription row", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalPersistence, "error iterating subscription rows", err)
	}

	return records, nil
}
