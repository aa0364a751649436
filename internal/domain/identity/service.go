package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medtrack/medtrack/internal/platform/auth"
	"github.com/medtrack/medtrack/internal/platform/metrics"
)

// ErrInvalidCredentials is returned for both unknown identifiers and wrong
// passwords so login failures do not reveal which accounts exist.
var ErrInvalidCredentials = errors.New("invalid credentials")

var (
	emailPattern      = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern      = regexp.MustCompile(`^\+?[0-9]{10,15}$`)
	nationalIDPattern = regexp.MustCompile(`^[2-9][0-9]{11}$`)
)

const minPasswordLen = 8

type Service struct {
	users      Repository
	tokens     *auth.Issuer
	bcryptCost int
	metrics    *metrics.Metrics
}

func NewService(users Repository, tokens *auth.Issuer, bcryptCost int) *Service {
	return &Service{users: users, tokens: tokens, bcryptCost: bcryptCost}
}

// SetMetrics attaches optional domain counters to the service.
func (s *Service) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

func (s *Service) Signup(ctx context.Context, req SignupRequest) (*AuthResult, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Phone = strings.TrimSpace(req.Phone)
	req.Role = strings.ToUpper(strings.TrimSpace(req.Role))

	if req.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if !emailPattern.MatchString(req.Email) {
		return nil, fmt.Errorf("invalid email")
	}
	if !phonePattern.MatchString(req.Phone) {
		return nil, fmt.Errorf("invalid phone number")
	}
	if !nationalIDPattern.MatchString(req.NationalID) {
		return nil, fmt.Errorf("invalid national id")
	}
	if len(req.Password) < minPasswordLen {
		return nil, fmt.Errorf("password must be at least %d characters", minPasswordLen)
	}
	switch req.Role {
	case auth.RolePatient, auth.RoleDoctor, auth.RolePharmacist:
	default:
		return nil, fmt.Errorf("invalid role: %s", req.Role)
	}

	hash, err := auth.HashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &User{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		NationalID:   req.NationalID,
		PasswordHash: hash,
		Role:         req.Role,
		MedTrackID:   NewMedTrackID(time.Now()),
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.SignupsTotal.Inc()
	}
	return s.authResult(u)
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	identifier := strings.TrimSpace(req.Identifier)
	if identifier == "" || req.Password == "" {
		return nil, ErrInvalidCredentials
	}

	var (
		u   *User
		err error
	)
	if strings.Contains(identifier, "@") {
		u, err = s.users.GetByEmail(ctx, strings.ToLower(identifier))
	} else {
		u, err = s.users.GetByPhone(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.countLogin("failure")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !auth.CheckPassword(u.PasswordHash, req.Password) {
		s.countLogin("failure")
		return nil, ErrInvalidCredentials
	}

	s.countLogin("success")
	return s.authResult(u)
}

func (s *Service) Profile(ctx context.Context, userID string) (*Profile, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, ErrNotFound
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p := u.Profile()
	return &p, nil
}

// ResolveByMedTrackID returns the safe projection of the patient with the
// given tracking id. Only PATIENT accounts are resolvable this way.
func (s *Service) ResolveByMedTrackID(ctx context.Context, medTrackID string) (*Profile, error) {
	u, err := s.users.GetByMedTrackID(ctx, strings.ToUpper(strings.TrimSpace(medTrackID)))
	if err != nil {
		return nil, err
	}
	if u.Role != auth.RolePatient {
		return nil, ErrNotFound
	}
	p := u.Profile()
	return &p, nil
}

// UserByID returns the full user record for other domain services. Handlers
// must project through Profile before returning it.
func (s *Service) UserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

// PatientByMedTrackID returns the full patient record for other domain
// services. Non-patient accounts are not resolvable.
func (s *Service) PatientByMedTrackID(ctx context.Context, medTrackID string) (*User, error) {
	u, err := s.users.GetByMedTrackID(ctx, strings.ToUpper(strings.TrimSpace(medTrackID)))
	if err != nil {
		return nil, err
	}
	if u.Role != auth.RolePatient {
		return nil, ErrNotFound
	}
	return u, nil
}

func (s *Service) authResult(u *User) (*AuthResult, error) {
	token, err := s.tokens.Issue(u.ID.String(), u.Role, u.MedTrackID)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &AuthResult{Token: token, User: u.Profile()}, nil
}

func (s *Service) countLogin(outcome string) {
	if s.metrics != nil {
		s.metrics.LoginsTotal.WithLabelValues(outcome).Inc()
	}
}
