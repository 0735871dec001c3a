package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/vidaplus/hospital-api/internal/model"
	"github.com/vidaplus/hospital-api/internal/repository"
	apperrors "github.com/vidaplus/hospital-api/pkg/errors"
)

const identityColumns = `
	id, name, email, password_hash, role, national_id,
	phone, birth_date, address, active, created_at, updated_at`

type identityRepository struct {
	BaseRepository
}

func NewIdentityRepository(base BaseRepository) repository.IdentityRepository {
	return &identityRepository{base}
}

func (r *identityRepository) CreateWithProfile(ctx context.Context, identity *model.Identity, patient *model.PatientProfile, professional *model.ProfessionalProfile) error {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		var exists bool
		err := tx.GetContext(ctx, &exists,
			`SELECT EXISTS (SELECT 1 FROM identities WHERE email = $1 OR national_id = $2)`,
			identity.Email, identity.NationalID)
		if err != nil {
			return fmt.Errorf("failed to check identity uniqueness: %w", err)
		}
		if exists {
			return apperrors.Conflict("email or national id already registered", nil)
		}

		err = tx.QueryRowxContext(ctx, `
			INSERT INTO identities (
				name, email, password_hash, role, national_id,
				phone, birth_date, address
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id, active, created_at, updated_at`,
			identity.Name,
			identity.Email,
			identity.PasswordHash,
			identity.Role,
			identity.NationalID,
			identity.Phone,
			identity.BirthDate,
			identity.Address,
		).Scan(&identity.ID, &identity.Active, &identity.CreatedAt, &identity.UpdatedAt)
		if err != nil {
			return err
		}

		if patient != nil {
			patient.IdentityID = identity.ID
			patient.RecordNumber = model.RecordNumberFor(identity.ID)
			err = tx.QueryRowxContext(ctx, `
				INSERT INTO patients (
					identity_id, record_number, blood_type, allergies,
					preexisting_conditions, emergency_contact, emergency_phone,
					insurance_plan, insurance_number
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				RETURNING id, created_at`,
				patient.IdentityID,
				patient.RecordNumber,
				patient.BloodType,
				patient.Allergies,
				patient.PreexistingConditions,
				patient.EmergencyContact,
				patient.EmergencyPhone,
				patient.InsurancePlan,
				patient.InsuranceNumber,
			).Scan(&patient.ID, &patient.CreatedAt)
			if err != nil {
				return err
			}
		}

		if professional != nil {
			professional.IdentityID = identity.ID
			professional.Name = identity.Name
			err = tx.QueryRowxContext(ctx, `
				INSERT INTO professionals (
					identity_id, specialty, license_number, council, availability
				) VALUES ($1, $2, $3, $4, $5)
				RETURNING id, created_at`,
				professional.IdentityID,
				professional.Specialty,
				professional.LicenseNumber,
				professional.Council,
				professional.Availability,
			).Scan(&professional.ID, &professional.CreatedAt)
			if err != nil {
				return err
			}
		}

		return nil
	})
	return translateError(err, "identity")
}

func (r *identityRepository) GetByID(ctx context.Context, id int64) (*model.Identity, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	var identity model.Identity
	err := r.db.GetContext(ctx, &identity,
		`SELECT `+identityColumns+` FROM identities WHERE id = $1`, id)
	if err != nil {
		return nil, translateError(err, "user")
	}
	return &identity, nil
}

func (r *identityRepository) GetByEmail(ctx context.Context, email string) (*model.Identity, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	var identity model.Identity
	err := r.db.GetContext(ctx, &identity,
		`SELECT `+identityColumns+` FROM identities WHERE email = $1`, email)
	if err != nil {
		return nil, translateError(err, "user")
	}
	return &identity, nil
}

func (r *identityRepository) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE identities
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1`, id, hash)
	if err != nil {
		return translateError(err, "user")
	}
	return ensureAffected(res, "user")
}
