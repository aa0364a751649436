package prescription

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

const presCols = `id, patient_id, doctor_id, patient_med_track_id, doctor_med_track_id,
	visit_reason, diagnosis, notes,
	medicine_names, medicine_dosages, medicine_frequencies, medicine_routes,
	medicine_duration_days, medicine_instructions,
	issue_date, dispense_date, attachment_url, created_at, updated_at`

func (r *repoPG) scanPres(row pgx.Row) (*Prescription, error) {
	var p Prescription
	err := row.Scan(&p.ID, &p.PatientID, &p.DoctorID, &p.PatientMedTrackID, &p.DoctorMedTrackID,
		&p.VisitReason, &p.Diagnosis, &p.Notes,
		&p.MedicineNames, &p.Dosages, &p.Frequencies, &p.Routes,
		&p.DurationDays, &p.Instructions,
		&p.IssueDate, &p.DispenseDate, &p.AttachmentURL, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts the prescription row and its issuance log atomically.
func (r *repoPG) Create(ctx context.Context, p *Prescription, log *IssuanceLog) error {
	p.ID = uuid.New()
	log.ID = uuid.New()
	log.PrescriptionID = p.ID

	err := db.RunInTx(ctx, r.pool, func(txCtx context.Context) error {
		err := r.conn(txCtx).QueryRow(txCtx, `
			INSERT INTO prescriptions (id, patient_id, doctor_id,
				patient_med_track_id, doctor_med_track_id,
				visit_reason, diagnosis, notes,
				medicine_names, medicine_dosages, medicine_frequencies, medicine_routes,
				medicine_duration_days, medicine_instructions, attachment_url)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
			RETURNING issue_date, created_at, updated_at`,
			p.ID, p.PatientID, p.DoctorID,
			p.PatientMedTrackID, p.DoctorMedTrackID,
			p.VisitReason, p.Diagnosis, p.Notes,
			p.MedicineNames, p.Dosages, p.Frequencies, p.Routes,
			p.DurationDays, p.Instructions, p.AttachmentURL).
			Scan(&p.IssueDate, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return err
		}

		return r.conn(txCtx).QueryRow(txCtx, `
			INSERT INTO issuance_logs (id, doctor_id, patient_id, prescription_id,
				doctor_med_track_id, patient_med_track_id, notes)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			RETURNING created_at`,
			log.ID, p.DoctorID, p.PatientID, p.ID,
			p.DoctorMedTrackID, p.PatientMedTrackID, log.Notes).
			Scan(&log.CreatedAt)
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return err
	}
	log.DoctorID = p.DoctorID
	log.PatientID = p.PatientID
	log.DoctorMedTrackID = p.DoctorMedTrackID
	log.PatientMedTrackID = p.PatientMedTrackID
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	return r.scanPres(r.conn(ctx).QueryRow(ctx, `SELECT `+presCols+` FROM prescriptions WHERE id = $1`, id))
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	return r.list(ctx, `patient_id`, patientID, limit, offset)
}

func (r *repoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	return r.list(ctx, `doctor_id`, doctorID, limit, offset)
}

func (r *repoPG) list(ctx context.Context, col string, owner uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM prescriptions WHERE `+col+` = $1`, owner).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+presCols+` FROM prescriptions WHERE `+col+` = $1 ORDER BY issue_date DESC LIMIT $2 OFFSET $3`, owner, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Prescription
	for rows.Next() {
		p, err := r.scanPres(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, nil
}
