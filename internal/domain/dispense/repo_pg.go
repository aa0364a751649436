package dispense

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medtrack/medtrack/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const logCols = `id, pharmacist_id, patient_id, prescription_id,
	pharmacist_med_track_id, patient_med_track_id, remarks, dispensed_at, created_at`

// Upsert records the dispense atomically. Identity columns are written only
// on insert; a replay refreshes remarks and dispensed_at. The conditional
// dispense_date stamp runs in the same transaction, so the first committer
// owns the stamp and later replays leave it untouched. xmax = 0 holds only
// for rows created by the current transaction, which distinguishes insert
// from update without a second round trip.
func (r *repoPG) Upsert(ctx context.Context, log *Log) (bool, error) {
	log.ID = uuid.New()
	var inserted bool

	err := db.RunInTx(ctx, r.pool, func(txCtx context.Context) error {
		err := r.conn(txCtx).QueryRow(txCtx, `
			INSERT INTO dispense_logs (id, pharmacist_id, patient_id, prescription_id,
				pharmacist_med_track_id, patient_med_track_id, remarks)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			ON CONFLICT (pharmacist_id, prescription_id) DO UPDATE
				SET remarks = EXCLUDED.remarks, dispensed_at = NOW()
			RETURNING id, dispensed_at, created_at, (xmax = 0)`,
			log.ID, log.PharmacistID, log.PatientID, log.PrescriptionID,
			log.PharmacistMedTrackID, log.PatientMedTrackID, log.Remarks).
			Scan(&log.ID, &log.DispensedAt, &log.CreatedAt, &inserted)
		if err != nil {
			return err
		}

		// First committer wins the stamp; it never reverts.
		_, err = r.conn(txCtx).Exec(txCtx, `
			UPDATE prescriptions SET dispense_date = NOW(), updated_at = NOW()
			WHERE id = $1 AND dispense_date IS NULL`, log.PrescriptionID)
		return err
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return false, ErrConflict
		}
		return false, err
	}
	return inserted, nil
}

func (r *repoPG) ListByPharmacist(ctx context.Context, pharmacistID uuid.UUID, limit, offset int) ([]*Log, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM dispense_logs WHERE pharmacist_id = $1`, pharmacistID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+logCols+` FROM dispense_logs WHERE pharmacist_id = $1 ORDER BY dispensed_at DESC LIMIT $2 OFFSET $3`, pharmacistID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Log
	for rows.Next() {
		var l Log
		if err := rows.Scan(&l.ID, &l.PharmacistID, &l.PatientID, &l.PrescriptionID,
			&l.PharmacistMedTrackID, &l.PatientMedTrackID, &l.Remarks, &l.DispensedAt, &l.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &l)
	}
	return items, total, nil
}
