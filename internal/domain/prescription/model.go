package prescription

import (
	"time"

	"github.com/google/uuid"

	"github.com/medtrack/medtrack/internal/domain/identity"
)

const (
	StatusPending   = "PENDING"
	StatusDispensed = "DISPENSED"
)

// Prescription holds one issued prescription. The six medicine attribute
// slices are index-aligned: element i of each slice describes medicine i.
type Prescription struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	PatientID         uuid.UUID  `db:"patient_id" json:"-"`
	DoctorID          uuid.UUID  `db:"doctor_id" json:"-"`
	PatientMedTrackID string     `db:"patient_med_track_id" json:"patientMedTrackId"`
	DoctorMedTrackID  string     `db:"doctor_med_track_id" json:"doctorMedTrackId"`
	VisitReason       string     `db:"visit_reason" json:"visitReason"`
	Diagnosis         string     `db:"diagnosis" json:"diagnosis"`
	Notes             string     `db:"notes" json:"notes,omitempty"`
	MedicineNames     []string   `db:"medicine_names" json:"medicineNames"`
	Dosages           []string   `db:"medicine_dosages" json:"dosages"`
	Frequencies       []string   `db:"medicine_frequencies" json:"frequencies"`
	Routes            []string   `db:"medicine_routes" json:"routes"`
	DurationDays      []int32    `db:"medicine_duration_days" json:"durationDays"`
	Instructions      []string   `db:"medicine_instructions" json:"instructions"`
	IssueDate         time.Time  `db:"issue_date" json:"issueDate"`
	DispenseDate      *time.Time `db:"dispense_date" json:"dispenseDate,omitempty"`
	AttachmentURL     string     `db:"attachment_url" json:"attachmentUrl,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updatedAt"`
}

// Status derives the lifecycle state from dispense_date.
func (p *Prescription) Status() string {
	if p.DispenseDate != nil {
		return StatusDispensed
	}
	return StatusPending
}

// IssuanceLog records that a doctor issued a prescription for a patient.
// It is written in the same transaction as the prescription row.
type IssuanceLog struct {
	ID                uuid.UUID `db:"id" json:"id"`
	DoctorID          uuid.UUID `db:"doctor_id" json:"-"`
	PatientID         uuid.UUID `db:"patient_id" json:"-"`
	PrescriptionID    uuid.UUID `db:"prescription_id" json:"prescriptionId"`
	DoctorMedTrackID  string    `db:"doctor_med_track_id" json:"doctorMedTrackId"`
	PatientMedTrackID string    `db:"patient_med_track_id" json:"patientMedTrackId"`
	Notes             string    `db:"notes" json:"notes,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"createdAt"`
}

// IssueRequest is the doctor-facing issuance payload. Identity comes from
// the verified token, never from the body.
type IssueRequest struct {
	PatientMedTrackID string   `json:"patientMedTrackId"`
	VisitReason       string   `json:"visitReason"`
	Diagnosis         string   `json:"diagnosis"`
	Notes             string   `json:"notes"`
	MedicineNames     []string `json:"medicineNames"`
	Dosages           []string `json:"dosages"`
	Frequencies       []string `json:"frequencies"`
	Routes            []string `json:"routes"`
	DurationDays      []int32  `json:"durationDays"`
	Instructions      []string `json:"instructions"`
	AttachmentURL     string   `json:"attachmentUrl"`
	DoctorNote        string   `json:"doctorNote"`
}

// View is a prescription decorated with its derived status and the safe
// projections of the people involved, shaped per the requesting role.
type View struct {
	*Prescription
	Status  string            `json:"status"`
	Doctor  *identity.Profile `json:"doctor,omitempty"`
	Patient *identity.Profile `json:"patient,omitempty"`
}
