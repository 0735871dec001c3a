package repository

import (
	"context"
	"time"

	"github.com/vidaplus/hospital-api/internal/model"
)

// All repository interfaces in one file
type (
	// IdentityRepository owns identities and their role sub-profiles
	IdentityRepository interface {
		// CreateWithProfile inserts the identity and at most one sub-profile in a
		// single transaction, failing with CONFLICT when email or national id exist.
		CreateWithProfile(ctx context.Context, identity *model.Identity, patient *model.PatientProfile, professional *model.ProfessionalProfile) error
		GetByID(ctx context.Context, id int64) (*model.Identity, error)
		GetByEmail(ctx context.Context, email string) (*model.Identity, error)
		UpdatePasswordHash(ctx context.Context, id int64, hash string) error
	}

	ProfessionalRepository interface {
		GetByID(ctx context.Context, id int64) (*model.ProfessionalProfile, error)
		GetByIdentityID(ctx context.Context, identityID int64) (*model.ProfessionalProfile, error)
	}

	PatientRepository interface {
		// GetByID returns active patients only
		GetByID(ctx context.Context, id int64) (*model.Patient, error)
		GetByIdentityID(ctx context.Context, identityID int64) (*model.PatientProfile, error)
		List(ctx context.Context, filter model.PatientFilter) ([]model.PatientSummary, int, error)
		Update(ctx context.Context, id int64, patch model.PatientPatch) error
		Deactivate(ctx context.Context, id int64) error
	}

	HistoryRepository interface {
		Appointments(ctx context.Context, patientID int64, limit int) ([]model.HistoryAppointment, error)
		ClinicalNotes(ctx context.Context, patientID int64, limit int) ([]model.ClinicalNote, error)
		Exams(ctx context.Context, patientID int64, limit int) ([]model.Exam, error)
		Prescriptions(ctx context.Context, patientID int64, limit int) ([]model.Prescription, error)
	}

	// StatusGuard decides whether the stored status may move to the requested one
	StatusGuard func(current model.AppointmentStatus) error

	AppointmentRepository interface {
		// Create checks the slot and inserts in one transaction; an occupied
		// slot fails with CONFLICT.
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id int64) (*model.AppointmentDetail, error)
		List(ctx context.Context, filter model.AppointmentFilter) ([]model.AppointmentDetail, int, error)
		// UpdateStatus appends notes, when given, to the existing ones
		UpdateStatus(ctx context.Context, id int64, status model.AppointmentStatus, notes *string, guard StatusGuard) (*model.Appointment, error)
		// Cancel moves a SCHEDULED or CONFIRMED appointment to CANCELLED and
		// appends the note; NOT_FOUND when absent, CONFLICT otherwise.
		Cancel(ctx context.Context, id int64, note string) (*model.Appointment, error)
		BookedSlots(ctx context.Context, professionalID int64, day time.Time) ([]model.BookedSlot, error)
	}

	AuditRepository interface {
		Create(ctx context.Context, record *model.AuditRecord) error
	}
)
