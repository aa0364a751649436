package prescription

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound   = errors.New("prescription not found")
	ErrForbidden  = errors.New("prescription belongs to another user")
	ErrConflict   = errors.New("duplicate issuance")
	ErrValidation = errors.New("invalid prescription")
)

// Repository is the persistence contract for prescriptions. Create writes
// the prescription and its issuance log in one transaction.
type Repository interface {
	Create(ctx context.Context, p *Prescription, log *IssuanceLog) error
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Prescription, int, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Prescription, int, error)
}
