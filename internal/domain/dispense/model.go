package dispense

import (
	"time"

	"github.com/google/uuid"

	"github.com/medtrack/medtrack/internal/domain/identity"
	"github.com/medtrack/medtrack/internal/domain/prescription"
)

// Log records that a pharmacist dispensed a prescription. At most one log
// exists per (pharmacist, prescription) pair; replays refresh remarks and
// dispensed_at but never duplicate the row.
type Log struct {
	ID                   uuid.UUID `db:"id" json:"id"`
	PharmacistID         uuid.UUID `db:"pharmacist_id" json:"-"`
	PatientID            uuid.UUID `db:"patient_id" json:"-"`
	PrescriptionID       uuid.UUID `db:"prescription_id" json:"prescriptionId"`
	PharmacistMedTrackID string    `db:"pharmacist_med_track_id" json:"pharmacistMedTrackId"`
	PatientMedTrackID    string    `db:"patient_med_track_id" json:"patientMedTrackId"`
	Remarks              string    `db:"remarks" json:"remarks,omitempty"`
	DispensedAt          time.Time `db:"dispensed_at" json:"dispensedAt"`
	CreatedAt            time.Time `db:"created_at" json:"createdAt"`
}

// Request is the dispense payload; everything else derives from the token
// and the path.
type Request struct {
	Remarks string `json:"remarks"`
}

// Result reports one dispense call. Recorded is true on first dispense and
// false on an idempotent replay.
type Result struct {
	Recorded bool   `json:"-"`
	Message  string `json:"message"`
	Log      *Log   `json:"log"`
}

// LogView is a dispense log decorated with the patient's safe profile and a
// prescription summary for the pharmacist's history listing.
type LogView struct {
	*Log
	Patient      *identity.Profile  `json:"patient,omitempty"`
	Prescription *prescription.View `json:"prescription,omitempty"`
}

// PatientHistory is the pharmacist's patient lookup: safe profile plus the
// patient's full prescription list with issuing doctors attached.
type PatientHistory struct {
	Patient       identity.Profile     `json:"patient"`
	Prescriptions []*prescription.View `json:"prescriptions"`
}
