package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vidaplus/hospital-api/internal/model"
	"github.com/vidaplus/hospital-api/internal/repository/memory"
	"github.com/vidaplus/hospital-api/pkg/auth"
	apperrors "github.com/vidaplus/hospital-api/pkg/errors"
	"github.com/vidaplus/hospital-api/pkg/logger"
	"github.com/vidaplus/hospital-api/pkg/metrics"
	"github.com/vidaplus/hospital-api/pkg/security"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	svc := NewService(
		store.Identities(),
		store.Patients(),
		store.Professionals(),
		security.NewBcryptHasher(bcrypt.MinCost),
		auth.NewJWTService("test-secret", "test", time.Hour),
		metrics.NewNop(),
		logger.Nop(),
	)
	return svc, store
}

func patientRequest(email, nationalID string) *model.RegisterRequest {
	return &model.RegisterRequest{
		Name:       "Maria Souza",
		Email:      email,
		Password:   "senha123",
		Role:       model.RolePatient,
		NationalID: nationalID,
		BirthDate:  "1990-05-17",
		BloodType:  "O+",
	}
}

func TestRegister_Patient(t *testing.T) {
	svc, _ := newTestService(t)

	resp, err := svc.Register(context.Background(), patientRequest(" Maria@Example.com ", "12345678901"))
	require.NoError(t, err)

	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "maria@example.com", resp.Identity.Email)
	assert.True(t, resp.Identity.Active)
	require.NotNil(t, resp.Patient)
	assert.Equal(t, model.RecordNumberFor(resp.Identity.ID), resp.Patient.RecordNumber)
	assert.Equal(t, "O+", *resp.Patient.BloodType)
	assert.Nil(t, resp.Professional)
	assert.NotEqual(t, "senha123", resp.Identity.PasswordHash)
}

func TestRegister_Uniqueness(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, patientRequest("a@example.com", "11111111111"))
	require.NoError(t, err)

	_, err = svc.Register(ctx, patientRequest("A@EXAMPLE.COM", "22222222222"))
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict), "duplicate email: %v", err)

	_, err = svc.Register(ctx, patientRequest("b@example.com", "11111111111"))
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict), "duplicate national id: %v", err)
}

func TestRegister_Professional(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	morning, err := model.ParseTimeRange("08:00-12:00")
	require.NoError(t, err)

	req := &model.RegisterRequest{
		Name:          "Dr. Paulo",
		Email:         "paulo@example.com",
		Password:      "senha123",
		Role:          model.RoleDoctor,
		NationalID:    "33333333333",
		Specialty:     "Cardiologia",
		LicenseNumber: "CRM12345",
		Availability:  model.WeeklyAvailability{model.Monday: {morning}},
	}
	resp, err := svc.Register(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, resp.Professional)
	assert.Equal(t, "Cardiologia", resp.Professional.Specialty)
	assert.Equal(t, resp.Identity.ID, resp.Professional.IdentityID)

	t.Run("license must be unique", func(t *testing.T) {
		dup := *req
		dup.Email = "other@example.com"
		dup.NationalID = "44444444444"
		_, err := svc.Register(ctx, &dup)
		assert.True(t, apperrors.Is(err, apperrors.ErrConflict), "got %v", err)
	})

	t.Run("specialty and license required", func(t *testing.T) {
		_, err := svc.Register(ctx, &model.RegisterRequest{
			Name:       "Enf. Carla",
			Email:      "carla@example.com",
			Password:   "senha123",
			Role:       model.RoleNurse,
			NationalID: "55555555555",
		})
		assert.True(t, apperrors.Is(err, apperrors.ErrValidation), "got %v", err)
	})
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	short := patientRequest("short@example.com", "66666666666")
	short.Password = "123"
	_, err := svc.Register(ctx, short)
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	badDate := patientRequest("date@example.com", "77777777777")
	badDate.BirthDate = "17/05/1990"
	_, err = svc.Register(ctx, badDate)
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	badRole := patientRequest("role@example.com", "88888888888")
	badRole.Role = "SURGEON"
	_, err = svc.Register(ctx, badRole)
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}

func TestLogin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, patientRequest("login@example.com", "12312312312"))
	require.NoError(t, err)

	t.Run("success attaches the profile", func(t *testing.T) {
		resp, err := svc.Login(ctx, "LOGIN@example.com", "senha123")
		require.NoError(t, err)
		assert.Equal(t, registered.Identity.ID, resp.Identity.ID)
		assert.NotEmpty(t, resp.Token)
		require.NotNil(t, resp.Patient)
		assert.Equal(t, registered.Patient.ID, resp.Patient.ID)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(ctx, "login@example.com", "wrong-pass")
		assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
	})

	t.Run("unknown email looks the same", func(t *testing.T) {
		_, err := svc.Login(ctx, "nobody@example.com", "senha123")
		assert.Equal(t, ErrInvalidCredentials, err)
	})
}

func TestLogin_InactiveAccount(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, patientRequest("gone@example.com", "98798798798"))
	require.NoError(t, err)
	require.NoError(t, store.Patients().Deactivate(ctx, registered.Patient.ID))

	_, err = svc.Login(ctx, "gone@example.com", "senha123")
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden), "got %v", err)

	// a wrong password still reads as bad credentials
	_, err = svc.Login(ctx, "gone@example.com", "wrong-pass")
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized), "got %v", err)
}

func TestChangePassword(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, patientRequest("change@example.com", "45645645645"))
	require.NoError(t, err)
	id := registered.Identity.ID

	err = svc.ChangePassword(ctx, id, "wrong-pass", "novaSenha1")
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))

	err = svc.ChangePassword(ctx, id, "senha123", "123")
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	require.NoError(t, svc.ChangePassword(ctx, id, "senha123", "novaSenha1"))

	_, err = svc.Login(ctx, "change@example.com", "senha123")
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
	_, err = svc.Login(ctx, "change@example.com", "novaSenha1")
	assert.NoError(t, err)
}

func TestMe(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, patientRequest("me@example.com", "78978978978"))
	require.NoError(t, err)

	profile, err := svc.Me(ctx, registered.Identity.ID)
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", profile.Email)
	require.NotNil(t, profile.Patient)
	assert.Equal(t, registered.Patient.ID, profile.Patient.ID)

	_, err = svc.Me(ctx, 9999)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}
