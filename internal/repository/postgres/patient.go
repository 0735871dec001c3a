package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/vidaplus/hospital-api/internal/model"
	"github.com/vidaplus/hospital-api/internal/repository"
)

const patientProfileColumns = `
	p.id, p.identity_id, p.record_number, p.blood_type, p.allergies,
	p.preexisting_conditions, p.emergency_contact, p.emergency_phone,
	p.insurance_plan, p.insurance_number, p.created_at`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

type patientRepository struct {
	BaseRepository
}

func NewPatientRepository(base BaseRepository) repository.PatientRepository {
	return &patientRepository{base}
}

func (r *patientRepository) GetByID(ctx context.Context, id int64) (*model.Patient, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	query := `
		SELECT ` + patientProfileColumns + `,
		       i.name, i.email, i.national_id, i.phone, i.birth_date, i.address, i.active
		FROM patients p
		JOIN identities i ON i.id = p.identity_id
		WHERE p.id = $1 AND i.active = TRUE
	`
	var patient model.Patient
	if err := r.db.GetContext(ctx, &patient, query, id); err != nil {
		return nil, translateError(err, "patient")
	}
	return &patient, nil
}

func (r *patientRepository) GetByIdentityID(ctx context.Context, identityID int64) (*model.PatientProfile, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	var profile model.PatientProfile
	err := r.db.GetContext(ctx, &profile,
		`SELECT `+patientProfileColumns+` FROM patients p WHERE p.identity_id = $1`, identityID)
	if err != nil {
		return nil, translateError(err, "patient")
	}
	return &profile, nil
}

func (r *patientRepository) List(ctx context.Context, filter model.PatientFilter) ([]model.PatientSummary, int, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	where := ` WHERE i.active = TRUE AND i.role = 'PATIENT'`
	var args []interface{}

	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+likeEscaper.Replace(search)+"%")
		where += fmt.Sprintf(` AND (i.name ILIKE $%[1]d OR i.national_id ILIKE $%[1]d OR p.record_number ILIKE $%[1]d)`, len(args))
	}

	from := ` FROM patients p JOIN identities i ON i.id = p.identity_id`

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*)`+from+where, args...); err != nil {
		return nil, 0, translateError(err, "patients")
	}

	query := `
		SELECT p.id, p.record_number, i.name, i.email, i.national_id,
		       i.phone, i.birth_date, p.blood_type` + from + where +
		fmt.Sprintf(` ORDER BY i.name ASC, p.id ASC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset())

	patients := []model.PatientSummary{}
	if err := r.db.SelectContext(ctx, &patients, query, args...); err != nil {
		return nil, 0, translateError(err, "patients")
	}
	return patients, total, nil
}

// Update applies the patch with a fixed set of conditional assignments.
// Absent fields bind as NULL and COALESCE keeps the stored value.
func (r *patientRepository) Update(ctx context.Context, id int64, patch model.PatientPatch) error {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		var identityID int64
		err := tx.GetContext(ctx, &identityID, `
			SELECT p.identity_id
			FROM patients p
			JOIN identities i ON i.id = p.identity_id
			WHERE p.id = $1 AND i.active = TRUE
			FOR UPDATE OF p`, id)
		if err != nil {
			return err
		}

		if patch.TouchesIdentity() {
			_, err = tx.ExecContext(ctx, `
				UPDATE identities SET
					name       = COALESCE($2, name),
					phone      = COALESCE($3, phone),
					address    = COALESCE($4, address),
					updated_at = NOW()
				WHERE id = $1`,
				identityID, patch.Name, patch.Phone, patch.Address)
			if err != nil {
				return err
			}
		}

		if patch.TouchesProfile() {
			_, err = tx.ExecContext(ctx, `
				UPDATE patients SET
					blood_type             = COALESCE($2, blood_type),
					allergies              = COALESCE($3, allergies),
					preexisting_conditions = COALESCE($4, preexisting_conditions),
					emergency_contact      = COALESCE($5, emergency_contact),
					emergency_phone        = COALESCE($6, emergency_phone),
					insurance_plan         = COALESCE($7, insurance_plan),
					insurance_number       = COALESCE($8, insurance_number)
				WHERE id = $1`,
				id,
				patch.BloodType,
				patch.Allergies,
				patch.PreexistingConditions,
				patch.EmergencyContact,
				patch.EmergencyPhone,
				patch.InsurancePlan,
				patch.InsuranceNumber,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
	return translateError(err, "patient")
}

func (r *patientRepository) Deactivate(ctx context.Context, id int64) error {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE identities i
		SET active = FALSE, updated_at = NOW()
		FROM patients p
		WHERE p.identity_id = i.id AND p.id = $1 AND i.active = TRUE`, id)
	if err != nil {
		return translateError(err, "patient")
	}
	return ensureAffected(res, "patient")
}
