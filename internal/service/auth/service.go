package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/vidaplus/hospital-api/internal/model"
	"github.com/vidaplus/hospital-api/internal/repository"
	"github.com/vidaplus/hospital-api/pkg/auth"
	apperrors "github.com/vidaplus/hospital-api/pkg/errors"
	"github.com/vidaplus/hospital-api/pkg/logger"
	"github.com/vidaplus/hospital-api/pkg/metrics"
	"github.com/vidaplus/hospital-api/pkg/security"
)

var ErrInvalidCredentials = apperrors.Unauthorized("invalid credentials", nil)

type Service struct {
	identities    repository.IdentityRepository
	patients      repository.PatientRepository
	professionals repository.ProfessionalRepository
	hasher        security.PasswordHasher
	jwtSvc        auth.JWTService
	metrics       *metrics.Metrics
	log           *logger.Logger
}

func NewService(
	identities repository.IdentityRepository,
	patients repository.PatientRepository,
	professionals repository.ProfessionalRepository,
	hasher security.PasswordHasher,
	jwtSvc auth.JWTService,
	m *metrics.Metrics,
	log *logger.Logger,
) *Service {
	return &Service{
		identities:    identities,
		patients:      patients,
		professionals: professionals,
		hasher:        hasher,
		jwtSvc:        jwtSvc,
		metrics:       m,
		log:           log.With("auth"),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Register creates the identity and the sub-profile its role calls for,
// then signs a token so the caller is logged in straight away.
func (s *Service) Register(ctx context.Context, req *model.RegisterRequest) (*model.AuthResponse, error) {
	if !req.Role.Valid() {
		return nil, apperrors.Validation("invalid role", nil)
	}

	identity := &model.Identity{
		Name:       strings.TrimSpace(req.Name),
		Email:      normalizeEmail(req.Email),
		Role:       req.Role,
		NationalID: req.NationalID,
		Phone:      optional(req.Phone),
		Address:    optional(req.Address),
	}
	if req.BirthDate != "" {
		birth, err := time.Parse(time.DateOnly, req.BirthDate)
		if err != nil {
			return nil, apperrors.Validation("birth_date must be YYYY-MM-DD", err)
		}
		identity.BirthDate = &birth
	}

	var patient *model.PatientProfile
	var professional *model.ProfessionalProfile
	switch {
	case req.Role == model.RolePatient:
		patient = &model.PatientProfile{
			BloodType:             optional(req.BloodType),
			Allergies:             optional(req.Allergies),
			PreexistingConditions: optional(req.PreexistingConditions),
			EmergencyContact:      optional(req.EmergencyContact),
			EmergencyPhone:        optional(req.EmergencyPhone),
			InsurancePlan:         optional(req.InsurancePlan),
			InsuranceNumber:       optional(req.InsuranceNumber),
		}
	case req.Role.IsProfessional():
		if strings.TrimSpace(req.Specialty) == "" || strings.TrimSpace(req.LicenseNumber) == "" {
			return nil, apperrors.Validation("specialty and license_number are required for professionals", nil).
				WithDetails(map[string]string{
					"specialty":      "required for professionals",
					"license_number": "required for professionals",
				})
		}
		availability := req.Availability
		if availability == nil {
			availability = model.WeeklyAvailability{}
		}
		if err := availability.Validate(); err != nil {
			return nil, apperrors.Validation(err.Error(), err)
		}
		professional = &model.ProfessionalProfile{
			Name:          identity.Name,
			Specialty:     strings.TrimSpace(req.Specialty),
			LicenseNumber: strings.TrimSpace(req.LicenseNumber),
			Council:       optional(req.Council),
			Availability:  availability,
		}
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooShort) {
			return nil, apperrors.Validation("password must be at least 6 characters", err)
		}
		return nil, apperrors.Internal(err)
	}
	identity.PasswordHash = hash

	if err := s.identities.CreateWithProfile(ctx, identity, patient, professional); err != nil {
		return nil, err
	}

	resp, err := s.issue(identity)
	if err != nil {
		return nil, err
	}
	resp.Patient = patient
	resp.Professional = professional

	s.log.Info("identity registered", "identity_id", identity.ID, "role", identity.Role)
	return resp, nil
}

// Login verifies the password first so that an inactive account is only
// revealed to someone holding its credentials.
func (s *Service) Login(ctx context.Context, email, password string) (*model.AuthResponse, error) {
	identity, err := s.identities.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			s.metrics.LoginAttempts.WithLabelValues("invalid").Inc()
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := s.hasher.Compare(identity.PasswordHash, password); err != nil {
		s.metrics.LoginAttempts.WithLabelValues("invalid").Inc()
		return nil, ErrInvalidCredentials
	}

	if !identity.Active {
		s.metrics.LoginAttempts.WithLabelValues("inactive").Inc()
		return nil, apperrors.Forbidden("account is deactivated")
	}

	resp, err := s.issue(identity)
	if err != nil {
		return nil, err
	}
	if err := s.attachProfile(ctx, identity, &resp.Patient, &resp.Professional); err != nil {
		return nil, err
	}

	s.metrics.LoginAttempts.WithLabelValues("success").Inc()
	return resp, nil
}

// ChangePassword replaces the stored hash after verifying the current password
func (s *Service) ChangePassword(ctx context.Context, identityID int64, current, next string) error {
	identity, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		return err
	}

	if err := s.hasher.Compare(identity.PasswordHash, current); err != nil {
		return apperrors.Unauthorized("current password is incorrect", nil)
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooShort) {
			return apperrors.Validation("password must be at least 6 characters", err)
		}
		return apperrors.Internal(err)
	}

	return s.identities.UpdatePasswordHash(ctx, identityID, hash)
}

// Me returns the caller's identity joined with its role sub-profile
func (s *Service) Me(ctx context.Context, identityID int64) (*model.Profile, error) {
	identity, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		return nil, err
	}

	profile := &model.Profile{Identity: identity}
	if err := s.attachProfile(ctx, identity, &profile.Patient, &profile.Professional); err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *Service) issue(identity *model.Identity) (*model.AuthResponse, error) {
	token, expiresAt, err := s.jwtSvc.GenerateToken(identity)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return &model.AuthResponse{
		Identity:  identity,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

// attachProfile loads the sub-profile matching the role; a missing one is not an error
func (s *Service) attachProfile(ctx context.Context, identity *model.Identity, patient **model.PatientProfile, professional **model.ProfessionalProfile) error {
	var err error
	switch {
	case identity.Role == model.RolePatient:
		*patient, err = s.patients.GetByIdentityID(ctx, identity.ID)
	case identity.Role.IsProfessional():
		*professional, err = s.professionals.GetByIdentityID(ctx, identity.ID)
	}
	if err != nil && !apperrors.Is(err, apperrors.ErrNotFound) {
		return err
	}
	return nil
}
