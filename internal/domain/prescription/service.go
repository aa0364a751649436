package prescription

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/medtrack/medtrack/internal/domain/identity"
	"github.com/medtrack/medtrack/internal/platform/metrics"
)

// UserDirectory resolves account records for issuance and view decoration.
// identity.Service satisfies it.
type UserDirectory interface {
	UserByID(ctx context.Context, id uuid.UUID) (*identity.User, error)
	PatientByMedTrackID(ctx context.Context, medTrackID string) (*identity.User, error)
}

type Service struct {
	prescriptions Repository
	users         UserDirectory
	metrics       *metrics.Metrics
}

func NewService(prescriptions Repository, users UserDirectory) *Service {
	return &Service{prescriptions: prescriptions, users: users}
}

// SetMetrics attaches optional domain counters to the service.
func (s *Service) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// Issue creates a prescription on behalf of the doctor identified by the
// verified token subject. The patient is addressed by tracking id.
func (s *Service) Issue(ctx context.Context, doctorID string, req IssueRequest) (*View, error) {
	docID, err := uuid.Parse(doctorID)
	if err != nil {
		return nil, ErrNotFound
	}
	doctor, err := s.users.UserByID(ctx, docID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("resolve doctor: %w", err)
	}

	patient, err := s.users.PatientByMedTrackID(ctx, req.PatientMedTrackID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("resolve patient: %w", err)
	}

	if err := validateMedicines(&req); err != nil {
		return nil, err
	}

	p := &Prescription{
		PatientID:         patient.ID,
		DoctorID:          doctor.ID,
		PatientMedTrackID: patient.MedTrackID,
		DoctorMedTrackID:  doctor.MedTrackID,
		VisitReason:       strings.TrimSpace(req.VisitReason),
		Diagnosis:         strings.TrimSpace(req.Diagnosis),
		Notes:             strings.TrimSpace(req.Notes),
		MedicineNames:     req.MedicineNames,
		Dosages:           req.Dosages,
		Frequencies:       req.Frequencies,
		Routes:            req.Routes,
		DurationDays:      req.DurationDays,
		Instructions:      req.Instructions,
		AttachmentURL:     strings.TrimSpace(req.AttachmentURL),
	}
	log := &IssuanceLog{Notes: strings.TrimSpace(req.DoctorNote)}

	if err := s.prescriptions.Create(ctx, p, log); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.PrescriptionsIssued.Inc()
	}

	docProfile := doctor.Profile()
	patProfile := patient.Profile()
	return &View{
		Prescription: p,
		Status:       p.Status(),
		Doctor:       &docProfile,
		Patient:      &patProfile,
	}, nil
}

// validateMedicines enforces the index alignment of the six attribute
// sequences: every non-empty companion sequence exactly as long as the name
// sequence. All sequences empty is a note-only prescription and is allowed.
func validateMedicines(req *IssueRequest) error {
	n := len(req.MedicineNames)
	for i, name := range req.MedicineNames {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: medicine name at index %d is empty", ErrValidation, i)
		}
	}
	aligned := []struct {
		field  string
		length int
	}{
		{"dosages", len(req.Dosages)},
		{"frequencies", len(req.Frequencies)},
		{"routes", len(req.Routes)},
		{"durationDays", len(req.DurationDays)},
		{"instructions", len(req.Instructions)},
	}
	for _, a := range aligned {
		if a.length != 0 && a.length != n {
			return fmt.Errorf("%w: %s has %d entries, expected %d or none", ErrValidation, a.field, a.length, n)
		}
	}
	return nil
}

// ListForPatient returns the patient's own prescriptions, newest first,
// with the issuing doctor's safe profile attached.
func (s *Service) ListForPatient(ctx context.Context, patientID string, limit, offset int) ([]*View, int, error) {
	id, err := uuid.Parse(patientID)
	if err != nil {
		return nil, 0, ErrNotFound
	}
	items, total, err := s.prescriptions.ListByPatient(ctx, id, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	views, err := s.decorate(ctx, items, true, false)
	return views, total, err
}

// GetForPatient fetches one prescription and re-checks ownership.
func (s *Service) GetForPatient(ctx context.Context, patientID, prescriptionID string) (*View, error) {
	id, err := uuid.Parse(prescriptionID)
	if err != nil {
		return nil, ErrNotFound
	}
	ownerID, err := uuid.Parse(patientID)
	if err != nil {
		return nil, ErrNotFound
	}
	p, err := s.prescriptions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.PatientID != ownerID {
		return nil, ErrForbidden
	}
	views, err := s.decorate(ctx, []*Prescription{p}, true, false)
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// ListForDoctor returns prescriptions issued by the doctor, newest first,
// with the patient's safe profile attached.
func (s *Service) ListForDoctor(ctx context.Context, doctorID string, limit, offset int) ([]*View, int, error) {
	id, err := uuid.Parse(doctorID)
	if err != nil {
		return nil, 0, ErrNotFound
	}
	items, total, err := s.prescriptions.ListByDoctor(ctx, id, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	views, err := s.decorate(ctx, items, false, true)
	return views, total, err
}

// GetForDoctor fetches one prescription scoped to the issuing doctor.
// Another doctor's prescription is indistinguishable from a missing one.
func (s *Service) GetForDoctor(ctx context.Context, doctorID, prescriptionID string) (*View, error) {
	id, err := uuid.Parse(prescriptionID)
	if err != nil {
		return nil, ErrNotFound
	}
	ownerID, err := uuid.Parse(doctorID)
	if err != nil {
		return nil, ErrNotFound
	}
	p, err := s.prescriptions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.DoctorID != ownerID {
		return nil, ErrNotFound
	}
	views, err := s.decorate(ctx, []*Prescription{p}, false, true)
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// decorate attaches derived status and requested participant profiles,
// resolving each distinct user once.
func (s *Service) decorate(ctx context.Context, items []*Prescription, withDoctor, withPatient bool) ([]*View, error) {
	cache := make(map[uuid.UUID]*identity.Profile)
	lookup := func(id uuid.UUID) (*identity.Profile, error) {
		if p, ok := cache[id]; ok {
			return p, nil
		}
		u, err := s.users.UserByID(ctx, id)
		if err != nil {
			if errors.Is(err, identity.ErrNotFound) {
				cache[id] = nil
				return nil, nil
			}
			return nil, err
		}
		p := u.Profile()
		cache[id] = &p
		return &p, nil
	}

	views := make([]*View, 0, len(items))
	for _, p := range items {
		v := &View{Prescription: p, Status: p.Status()}
		var err error
		if withDoctor {
			if v.Doctor, err = lookup(p.DoctorID); err != nil {
				return nil, err
			}
		}
		if withPatient {
			if v.Patient, err = lookup(p.PatientID); err != nil {
				return nil, err
			}
		}
		views = append(views, v)
	}
	return views, nil
}
