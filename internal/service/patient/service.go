package patient

import (
	"context"

	"github.com/vidaplus/hospital-api/internal/model"
	"github.com/vidaplus/hospital-api/internal/repository"
	"github.com/vidaplus/hospital-api/internal/service/authz"
	apperrors "github.com/vidaplus/hospital-api/pkg/errors"
	"github.com/vidaplus/hospital-api/pkg/logger"
)

// roles that may read any patient record
var readers = []model.Role{model.RoleAdmin, model.RoleDoctor, model.RoleNurse}

// roles that may edit any patient record
var editors = []model.Role{model.RoleAdmin}

type Service struct {
	patients repository.PatientRepository
	history  repository.HistoryRepository
	log      *logger.Logger
}

func NewService(patients repository.PatientRepository, history repository.HistoryRepository, log *logger.Logger) *Service {
	return &Service{
		patients: patients,
		history:  history,
		log:      log.With("patients"),
	}
}

func (s *Service) List(ctx context.Context, filter model.PatientFilter) (*model.Page[model.PatientSummary], error) {
	filter.Normalize()

	items, total, err := s.patients.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &model.Page[model.PatientSummary]{
		Items:       items,
		Total:       total,
		PageRequest: filter.PageRequest,
	}, nil
}

// Get returns an active patient the caller is allowed to read
func (s *Service) Get(ctx context.Context, claims *model.Claims, id int64) (*model.Patient, error) {
	patient, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.AuthorizeSelfOrRoles(claims, patient.IdentityID, readers...); err != nil {
		return nil, err
	}
	return patient, nil
}

// Update applies the patch and returns the state before and after it
func (s *Service) Update(ctx context.Context, claims *model.Claims, id int64, patch model.PatientPatch) (before, after *model.Patient, err error) {
	if patch.IsEmpty() {
		return nil, nil, apperrors.Validation("no fields to update", nil)
	}

	before, err = s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := authz.AuthorizeSelfOrRoles(claims, before.IdentityID, editors...); err != nil {
		return nil, nil, err
	}

	if err := s.patients.Update(ctx, id, patch); err != nil {
		return nil, nil, err
	}

	after, err = s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return before, after, nil
}

// History gathers the most recent records of each kind
func (s *Service) History(ctx context.Context, claims *model.Claims, id int64) (*model.PatientHistory, error) {
	patient, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.AuthorizeSelfOrRoles(claims, patient.IdentityID, readers...); err != nil {
		return nil, err
	}

	var h model.PatientHistory
	if h.Appointments, err = s.history.Appointments(ctx, id, model.HistoryLimit); err != nil {
		return nil, err
	}
	if h.ClinicalNotes, err = s.history.ClinicalNotes(ctx, id, model.HistoryLimit); err != nil {
		return nil, err
	}
	if h.Exams, err = s.history.Exams(ctx, id, model.HistoryLimit); err != nil {
		return nil, err
	}
	if h.Prescriptions, err = s.history.Prescriptions(ctx, id, model.HistoryLimit); err != nil {
		return nil, err
	}
	return &h, nil
}

// Deactivate soft-deletes the patient by switching off the owning identity
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	if err := s.patients.Deactivate(ctx, id); err != nil {
		return err
	}
	s.log.Info("patient deactivated", "patient_id", id)
	return nil
}
