package dispense

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/medtrack/medtrack/internal/domain/identity"
	"github.com/medtrack/medtrack/internal/domain/prescription"
	"github.com/medtrack/medtrack/internal/platform/metrics"
)

// PrescriptionSource exposes the prescription lookups the pharmacy flows
// need. prescription.Repository satisfies it.
type PrescriptionSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*prescription.Prescription, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*prescription.Prescription, int, error)
}

// UserDirectory resolves accounts for denormalized tracking ids and view
// decoration. identity.Service satisfies it.
type UserDirectory interface {
	UserByID(ctx context.Context, id uuid.UUID) (*identity.User, error)
	PatientByMedTrackID(ctx context.Context, medTrackID string) (*identity.User, error)
}

type Service struct {
	logs          Repository
	prescriptions PrescriptionSource
	users         UserDirectory
	metrics       *metrics.Metrics
}

func NewService(logs Repository, prescriptions PrescriptionSource, users UserDirectory) *Service {
	return &Service{logs: logs, prescriptions: prescriptions, users: users}
}

// SetMetrics attaches optional domain counters to the service.
func (s *Service) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// Dispense records that the pharmacist handed over the prescription. The
// operation is idempotent per (pharmacist, prescription): the first call
// inserts the log and stamps the prescription, a replay refreshes remarks
// and dispensed_at and reports Recorded=false.
func (s *Service) Dispense(ctx context.Context, pharmacistID, prescriptionID string, req Request) (*Result, error) {
	pharmID, err := uuid.Parse(pharmacistID)
	if err != nil {
		return nil, prescription.ErrNotFound
	}
	presID, err := uuid.Parse(prescriptionID)
	if err != nil {
		return nil, prescription.ErrNotFound
	}

	pres, err := s.prescriptions.GetByID(ctx, presID)
	if err != nil {
		return nil, err
	}
	patient, err := s.users.UserByID(ctx, pres.PatientID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return nil, prescription.ErrNotFound
		}
		return nil, fmt.Errorf("resolve patient: %w", err)
	}
	pharmacist, err := s.users.UserByID(ctx, pharmID)
	if err != nil {
		return nil, fmt.Errorf("resolve pharmacist: %w", err)
	}

	log := &Log{
		PharmacistID:         pharmacist.ID,
		PatientID:            patient.ID,
		PrescriptionID:       pres.ID,
		PharmacistMedTrackID: pharmacist.MedTrackID,
		PatientMedTrackID:    patient.MedTrackID,
		Remarks:              strings.TrimSpace(req.Remarks),
	}
	inserted, err := s.logs.Upsert(ctx, log)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		if inserted {
			s.metrics.DispensesRecorded.Inc()
		} else {
			s.metrics.DispensesReplayed.Inc()
		}
	}

	message := "dispense recorded"
	if !inserted {
		message = "dispense already recorded"
	}
	return &Result{Recorded: inserted, Message: message, Log: log}, nil
}

// ListDispensed returns the pharmacist's dispense history, newest first,
// with patient profiles and prescription summaries attached.
func (s *Service) ListDispensed(ctx context.Context, pharmacistID string, limit, offset int) ([]*LogView, int, error) {
	id, err := uuid.Parse(pharmacistID)
	if err != nil {
		return nil, 0, ErrNotFound
	}
	logs, total, err := s.logs.ListByPharmacist(ctx, id, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	patients := make(map[uuid.UUID]*identity.Profile)
	views := make([]*LogView, 0, len(logs))
	for _, l := range logs {
		v := &LogView{Log: l}

		if p, ok := patients[l.PatientID]; ok {
			v.Patient = p
		} else if u, err := s.users.UserByID(ctx, l.PatientID); err == nil {
			profile := u.Profile()
			patients[l.PatientID] = &profile
			v.Patient = &profile
		}

		if pres, err := s.prescriptions.GetByID(ctx, l.PrescriptionID); err == nil {
			v.Prescription = &prescription.View{Prescription: pres, Status: pres.Status()}
		}

		views = append(views, v)
	}
	return views, total, nil
}

// GetPrescription is the pharmacist's single-prescription fetch, decorated
// with derived status and both participants' safe profiles.
func (s *Service) GetPrescription(ctx context.Context, prescriptionID string) (*prescription.View, error) {
	id, err := uuid.Parse(prescriptionID)
	if err != nil {
		return nil, prescription.ErrNotFound
	}
	pres, err := s.prescriptions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	view := &prescription.View{Prescription: pres, Status: pres.Status()}
	if u, err := s.users.UserByID(ctx, pres.DoctorID); err == nil {
		profile := u.Profile()
		view.Doctor = &profile
	}
	if u, err := s.users.UserByID(ctx, pres.PatientID); err == nil {
		profile := u.Profile()
		view.Patient = &profile
	}
	return view, nil
}

// PatientHistory resolves a patient by tracking id and returns their full
// prescription list with issuing doctors attached.
func (s *Service) PatientHistory(ctx context.Context, medTrackID string) (*PatientHistory, error) {
	patient, err := s.users.PatientByMedTrackID(ctx, medTrackID)
	if err != nil {
		return nil, err
	}

	// The pharmacy counter needs the whole history, not a page.
	items, _, err := s.prescriptions.ListByPatient(ctx, patient.ID, 1000, 0)
	if err != nil {
		return nil, err
	}

	doctors := make(map[uuid.UUID]*identity.Profile)
	views := make([]*prescription.View, 0, len(items))
	for _, p := range items {
		v := &prescription.View{Prescription: p, Status: p.Status()}
		if profile, ok := doctors[p.DoctorID]; ok {
			v.Doctor = profile
		} else if u, err := s.users.UserByID(ctx, p.DoctorID); err == nil {
			profile := u.Profile()
			doctors[p.DoctorID] = &profile
			v.Doctor = &profile
		}
		views = append(views, v)
	}

	return &PatientHistory{Patient: patient.Profile(), Prescriptions: views}, nil
}
