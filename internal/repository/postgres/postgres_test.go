package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/kelseyhightower/envconfig"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidaplus/hospital-api/internal/model"
	apperrors "github.com/vidaplus/hospital-api/pkg/errors"
)

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code apperrors.ErrorCode
		msg  string
	}{
		{"no rows", sql.ErrNoRows, apperrors.ErrNotFound, "patient not found"},
		{"deadline", context.DeadlineExceeded, apperrors.ErrTimeout, ""},
		{"known unique constraint", &pq.Error{Code: pqUniqueViolation, Constraint: "identities_email_key"}, apperrors.ErrConflict, "email already registered"},
		{"slot index", &pq.Error{Code: pqUniqueViolation, Constraint: "ux_appointments_professional_slot"}, apperrors.ErrConflict, "slot already taken"},
		{"other unique constraint", &pq.Error{Code: pqUniqueViolation, Constraint: "whatever"}, apperrors.ErrConflict, "patient already exists"},
		{"foreign key", &pq.Error{Code: pqForeignKeyViolation}, apperrors.ErrValidation, ""},
		{"bad text", &pq.Error{Code: pqInvalidTextRepr}, apperrors.ErrValidation, ""},
		{"check", &pq.Error{Code: pqCheckViolation}, apperrors.ErrValidation, ""},
		{"anything else", fmt.Errorf("connection reset"), apperrors.ErrInternal, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := translateError(tt.err, "patient")
			appErr, ok := apperrors.As(err)
			require.True(t, ok, "got %T", err)
			assert.Equal(t, tt.code, appErr.Code)
			if tt.msg != "" {
				assert.Equal(t, tt.msg, appErr.Message)
			}
		})
	}

	assert.NoError(t, translateError(nil, "patient"))

	already := apperrors.Forbidden("nope")
	assert.Same(t, already, translateError(already, "patient"), "application errors pass through")
}

// integrationConfig is read from TEST_DATABASE_*
type integrationConfig struct {
	URL          string        `envconfig:"URL"`
	QueryTimeout time.Duration `envconfig:"QUERY_TIMEOUT" default:"5s"`
}

var uniq atomic.Int64

// openTestDB connects to a disposable database, applies the schema and
// empties every table the repositories touch.
func openTestDB(t *testing.T) (*Repositories, *sqlx.DB) {
	t.Helper()

	var cfg integrationConfig
	require.NoError(t, envconfig.Process("test_database", &cfg))
	if cfg.URL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.URL)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, Migrate(ctx, db))
	_, err = db.ExecContext(ctx, `TRUNCATE audit_records, prescriptions, exams, clinical_notes, admissions,
		appointments, beds, facilities, professionals, patients, identities RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	return NewRepositories(NewBaseRepository(db, cfg.QueryTimeout)), db
}

func newIdentity(role model.Role) *model.Identity {
	n := uniq.Add(1)
	return &model.Identity{
		Name:         fmt.Sprintf("Person %d", n),
		Email:        fmt.Sprintf("person%d@vidaplus.test", n),
		PasswordHash: "$2a$04$notarealhashbutlongenoughforthecolumn",
		Role:         role,
		NationalID:   fmt.Sprintf("%011d", 20000000000+n),
	}
}

func TestIntegration_Identities(t *testing.T) {
	repos, _ := openTestDB(t)
	ctx := context.Background()

	identity := newIdentity(model.RolePatient)
	patient := &model.PatientProfile{}
	require.NoError(t, repos.Identities.CreateWithProfile(ctx, identity, patient, nil))
	assert.NotZero(t, identity.ID)
	assert.True(t, identity.Active)
	assert.Equal(t, model.RecordNumberFor(identity.ID), patient.RecordNumber)

	byEmail, err := repos.Identities.GetByEmail(ctx, identity.Email)
	require.NoError(t, err)
	assert.Equal(t, identity.ID, byEmail.ID)

	dup := newIdentity(model.RolePatient)
	dup.Email = identity.Email
	err = repos.Identities.CreateWithProfile(ctx, dup, &model.PatientProfile{}, nil)
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))

	_, err = repos.Identities.GetByEmail(ctx, dup.Email+".missing")
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	require.NoError(t, repos.Identities.UpdatePasswordHash(ctx, identity.ID, "$2a$04$another"))
	assert.True(t, apperrors.Is(repos.Identities.UpdatePasswordHash(ctx, 987654, "x"), apperrors.ErrNotFound))
}

func TestIntegration_Appointments(t *testing.T) {
	repos, _ := openTestDB(t)
	ctx := context.Background()

	patientIdentity := newIdentity(model.RolePatient)
	patient := &model.PatientProfile{}
	require.NoError(t, repos.Identities.CreateWithProfile(ctx, patientIdentity, patient, nil))

	doctorIdentity := newIdentity(model.RoleDoctor)
	doctor := &model.ProfessionalProfile{
		Specialty:     "Cardiology",
		LicenseNumber: fmt.Sprintf("CRM%d", uniq.Add(1)),
		Availability: model.WeeklyAvailability{
			model.Monday: {{Start: 8 * 60, End: 12 * 60}},
		},
	}
	require.NoError(t, repos.Identities.CreateWithProfile(ctx, doctorIdentity, nil, doctor))

	stored, err := repos.Professionals.GetByID(ctx, doctor.ID)
	require.NoError(t, err)
	assert.Equal(t, doctor.Availability, stored.Availability)

	at := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	newAppointment := func() *model.Appointment {
		return &model.Appointment{
			PatientID:       patient.ID,
			ProfessionalID:  doctor.ID,
			ScheduledAt:     at,
			Modality:        model.ModalityInPerson,
			Status:          model.AppointmentStatusScheduled,
			DurationMinutes: model.DefaultAppointmentDuration,
		}
	}

	t.Run("concurrent bookings of one slot", func(t *testing.T) {
		var wg sync.WaitGroup
		var ok, conflicts atomic.Int32
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := repos.Appointments.Create(ctx, newAppointment())
				switch {
				case err == nil:
					ok.Add(1)
				case apperrors.Is(err, apperrors.ErrConflict):
					conflicts.Add(1)
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), ok.Load())
		assert.Equal(t, int32(7), conflicts.Load())
	})

	items, total, err := repos.Appointments.List(ctx, model.AppointmentFilter{
		PatientID:   patient.ID,
		PageRequest: model.PageRequest{Page: 1, Limit: 10},
	})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	booked := items[0]
	assert.Equal(t, patientIdentity.ID, booked.PatientIdentityID)

	slots, err := repos.Appointments.BookedSlots(ctx, doctor.ID, at)
	require.NoError(t, err)
	assert.Equal(t, []model.BookedSlot{{Time: "09:00", Duration: 30}}, slots)

	confirm := func(current model.AppointmentStatus) error {
		if !current.CanTransitionTo(model.AppointmentStatusConfirmed) {
			return apperrors.Conflict("illegal", nil)
		}
		return nil
	}
	confirmed, err := repos.Appointments.UpdateStatus(ctx, booked.ID, model.AppointmentStatusConfirmed, nil, confirm)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusConfirmed, confirmed.Status)
	assert.Nil(t, confirmed.Notes)

	for _, note := range []string{"arrived", "vitals taken"} {
		note := note
		confirmed, err = repos.Appointments.UpdateStatus(ctx, booked.ID, model.AppointmentStatusConfirmed, &note, confirm)
		require.NoError(t, err)
	}
	require.NotNil(t, confirmed.Notes)
	assert.Equal(t, "arrived | vitals taken", *confirmed.Notes)

	cancelled, err := repos.Appointments.Cancel(ctx, booked.ID, "Cancellation: travelling")
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.Notes)
	assert.Equal(t, "arrived | vitals taken | Cancellation: travelling", *cancelled.Notes)

	_, err = repos.Appointments.Cancel(ctx, booked.ID, "again")
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
	overwrite := "overwritten"
	_, err = repos.Appointments.UpdateStatus(ctx, booked.ID, model.AppointmentStatusCancelled, &overwrite, func(current model.AppointmentStatus) error {
		if !current.CanTransitionTo(model.AppointmentStatusCancelled) {
			return apperrors.Conflict("illegal", nil)
		}
		return nil
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
	_, err = repos.Appointments.Cancel(ctx, 987654, "missing")
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	slots, err = repos.Appointments.BookedSlots(ctx, doctor.ID, at)
	require.NoError(t, err)
	assert.Empty(t, slots)

	require.NoError(t, repos.Appointments.Create(ctx, newAppointment()), "a cancelled slot is free again")
}

func TestIntegration_PatientsAndAudit(t *testing.T) {
	repos, db := openTestDB(t)
	ctx := context.Background()

	identity := newIdentity(model.RolePatient)
	patient := &model.PatientProfile{}
	require.NoError(t, repos.Identities.CreateWithProfile(ctx, identity, patient, nil))

	phone := "11988887777"
	allergies := "penicillin"
	require.NoError(t, repos.Patients.Update(ctx, patient.ID, model.PatientPatch{Phone: &phone, Allergies: &allergies}))

	got, err := repos.Patients.GetByID(ctx, patient.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Phone)
	assert.Equal(t, phone, *got.Phone)
	require.NotNil(t, got.Allergies)
	assert.Equal(t, allergies, *got.Allergies)

	list, total, err := repos.Patients.List(ctx, model.PatientFilter{
		Search:      identity.Name,
		PageRequest: model.PageRequest{Page: 1, Limit: 10},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, patient.ID, list[0].ID)

	require.NoError(t, repos.Patients.Deactivate(ctx, patient.ID))
	_, err = repos.Patients.GetByID(ctx, patient.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	assert.True(t, apperrors.Is(repos.Patients.Deactivate(ctx, patient.ID), apperrors.ErrNotFound))

	history, err := repos.History.Appointments(ctx, patient.ID, model.HistoryLimit)
	require.NoError(t, err)
	assert.Empty(t, history)

	resourceType := "pacientes"
	record := &model.AuditRecord{
		ActorID:      identity.ID,
		Action:       model.AuditActionUpdatePatient,
		ResourceType: &resourceType,
		ResourceID:   &patient.ID,
		NewData:      []byte(`{"phone":"11988887777"}`),
		StatusCode:   200,
		IPAddress:    "127.0.0.1",
		UserAgent:    "go-test",
	}
	require.NoError(t, repos.Audit.Create(ctx, record))
	assert.NotZero(t, record.ID)

	var count int
	require.NoError(t, db.GetContext(ctx, &count, `SELECT COUNT(*) FROM audit_records WHERE actor_id = $1`, identity.ID))
	assert.Equal(t, 1, count)
}
