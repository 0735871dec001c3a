package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vidaplus/hospital-api/internal/model"
	"github.com/vidaplus/hospital-api/internal/repository"
	apperrors "github.com/vidaplus/hospital-api/pkg/errors"
)

const appointmentColumns = `
	id, patient_id, professional_id, facility_id, scheduled_at, modality,
	status, reason, notes, meeting_link, duration_minutes, created_at, updated_at`

const appointmentDetailSelect = `
	SELECT a.id, a.patient_id, a.professional_id, a.facility_id, a.scheduled_at,
	       a.modality, a.status, a.reason, a.notes, a.meeting_link,
	       a.duration_minutes, a.created_at, a.updated_at,
	       pi.name AS patient_name,
	       p.record_number AS patient_record_number,
	       p.identity_id AS patient_identity_id,
	       ri.name AS professional_name,
	       pr.specialty AS professional_specialty,
	       f.name AS facility_name,
	       f.address AS facility_address`

const appointmentDetailFrom = `
	FROM appointments a
	JOIN patients p ON p.id = a.patient_id
	JOIN identities pi ON pi.id = p.identity_id
	JOIN professionals pr ON pr.id = a.professional_id
	JOIN identities ri ON ri.id = pr.identity_id
	LEFT JOIN facilities f ON f.id = a.facility_id`

// statuses that release their slot
const freedStatuses = `('CANCELLED', 'NO_SHOW')`

type appointmentRepository struct {
	BaseRepository
}

func NewAppointmentRepository(base BaseRepository) repository.AppointmentRepository {
	return &appointmentRepository{base}
}

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		var taken bool
		err := tx.GetContext(ctx, &taken, `
			SELECT EXISTS (
				SELECT 1 FROM appointments
				WHERE professional_id = $1
				AND scheduled_at = $2
				AND status NOT IN `+freedStatuses+`
			)`, appointment.ProfessionalID, appointment.ScheduledAt)
		if err != nil {
			return fmt.Errorf("failed to check conflicts: %w", err)
		}
		if taken {
			return apperrors.Conflict("slot already taken", nil)
		}

		return tx.QueryRowxContext(ctx, `
			INSERT INTO appointments (
				patient_id, professional_id, facility_id, scheduled_at, modality,
				status, reason, notes, meeting_link, duration_minutes
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id, created_at, updated_at`,
			appointment.PatientID,
			appointment.ProfessionalID,
			appointment.FacilityID,
			appointment.ScheduledAt,
			appointment.Modality,
			appointment.Status,
			appointment.Reason,
			appointment.Notes,
			appointment.MeetingLink,
			appointment.DurationMinutes,
		).Scan(&appointment.ID, &appointment.CreatedAt, &appointment.UpdatedAt)
	})
	return translateError(err, "appointment")
}

func (r *appointmentRepository) Get(ctx context.Context, id int64) (*model.AppointmentDetail, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	var detail model.AppointmentDetail
	err := r.db.GetContext(ctx, &detail, appointmentDetailSelect+appointmentDetailFrom+` WHERE a.id = $1`, id)
	if err != nil {
		return nil, translateError(err, "appointment")
	}
	return &detail, nil
}

func (r *appointmentRepository) List(ctx context.Context, filter model.AppointmentFilter) ([]model.AppointmentDetail, int, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	where := ` WHERE 1=1`
	var args []interface{}

	if filter.PatientID != 0 {
		args = append(args, filter.PatientID)
		where += fmt.Sprintf(" AND a.patient_id = $%d", len(args))
	}
	if filter.ProfessionalID != 0 {
		args = append(args, filter.ProfessionalID)
		where += fmt.Sprintf(" AND a.professional_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(" AND a.status = $%d", len(args))
	}
	if filter.Modality != "" {
		args = append(args, filter.Modality)
		where += fmt.Sprintf(" AND a.modality = $%d", len(args))
	}
	if filter.DateFrom != "" {
		args = append(args, filter.DateFrom)
		where += fmt.Sprintf(" AND a.scheduled_at >= $%d::date", len(args))
	}
	if filter.DateTo != "" {
		args = append(args, filter.DateTo)
		where += fmt.Sprintf(" AND a.scheduled_at < $%d::date + INTERVAL '1 day'", len(args))
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*)`+appointmentDetailFrom+where, args...); err != nil {
		return nil, 0, translateError(err, "appointments")
	}

	query := appointmentDetailSelect + appointmentDetailFrom + where +
		fmt.Sprintf(" ORDER BY a.scheduled_at DESC, a.id DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset())

	items := []model.AppointmentDetail{}
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, translateError(err, "appointments")
	}
	return items, total, nil
}

func (r *appointmentRepository) UpdateStatus(ctx context.Context, id int64, status model.AppointmentStatus, notes *string, guard repository.StatusGuard) (*model.Appointment, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	var updated model.Appointment
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		var current model.AppointmentStatus
		if err := tx.GetContext(ctx, &current,
			`SELECT status FROM appointments WHERE id = $1 FOR UPDATE`, id); err != nil {
			return err
		}
		if guard != nil {
			if err := guard(current); err != nil {
				return err
			}
		}
		return tx.GetContext(ctx, &updated, `
			UPDATE appointments
			SET status = $2,
			    notes = CASE
			        WHEN $3::text IS NULL THEN notes
			        WHEN notes IS NULL OR notes = '' THEN $3::text
			        ELSE notes || ' | ' || $3::text
			    END,
			    updated_at = NOW()
			WHERE id = $1
			RETURNING`+appointmentColumns, id, status, notes)
	})
	if err != nil {
		return nil, translateError(err, "appointment")
	}
	return &updated, nil
}

func (r *appointmentRepository) Cancel(ctx context.Context, id int64, note string) (*model.Appointment, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	var cancelled model.Appointment
	err := r.db.GetContext(ctx, &cancelled, `
		UPDATE appointments
		SET status = 'CANCELLED',
		    notes = CASE
		        WHEN notes IS NULL OR notes = '' THEN $2::text
		        ELSE notes || ' | ' || $2::text
		    END,
		    updated_at = NOW()
		WHERE id = $1 AND status IN ('SCHEDULED', 'CONFIRMED')
		RETURNING`+appointmentColumns, id, note)
	if err == nil {
		return &cancelled, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, translateError(err, "appointment")
	}

	// nothing updated: tell a missing row from one in a final state
	var status model.AppointmentStatus
	if err := r.db.GetContext(ctx, &status, `SELECT status FROM appointments WHERE id = $1`, id); err != nil {
		return nil, translateError(err, "appointment")
	}
	return nil, apperrors.Conflict(fmt.Sprintf("appointment in status %s cannot be cancelled", status), nil)
}

func (r *appointmentRepository) BookedSlots(ctx context.Context, professionalID int64, day time.Time) ([]model.BookedSlot, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	query := `
		SELECT TO_CHAR(scheduled_at, 'HH24:MI') AS time, duration_minutes AS duration
		FROM appointments
		WHERE professional_id = $1
		AND scheduled_at >= $2::date
		AND scheduled_at < $2::date + INTERVAL '1 day'
		AND status NOT IN ` + freedStatuses + `
		ORDER BY scheduled_at ASC
	`
	slots := []model.BookedSlot{}
	if err := r.db.SelectContext(ctx, &slots, query, professionalID, day.Format("2006-01-02")); err != nil {
		return nil, translateError(err, "booked slots")
	}
	return slots, nil
}
