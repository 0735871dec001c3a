package postgres

import (
	"context"

	"github.com/vidaplus/hospital-api/internal/model"
	"github.com/vidaplus/hospital-api/internal/repository"
)

type historyRepository struct {
	BaseRepository
}

func NewHistoryRepository(base BaseRepository) repository.HistoryRepository {
	return &historyRepository{base}
}

func (r *historyRepository) Appointments(ctx context.Context, patientID int64, limit int) ([]model.HistoryAppointment, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	query := `
		SELECT a.id, a.scheduled_at, a.modality, a.status, a.reason, a.notes,
		       i.name AS professional_name, pr.specialty, f.name AS facility_name
		FROM appointments a
		JOIN professionals pr ON pr.id = a.professional_id
		JOIN identities i ON i.id = pr.identity_id
		LEFT JOIN facilities f ON f.id = a.facility_id
		WHERE a.patient_id = $1
		ORDER BY a.scheduled_at DESC
		LIMIT $2
	`
	items := []model.HistoryAppointment{}
	if err := r.db.SelectContext(ctx, &items, query, patientID, limit); err != nil {
		return nil, translateError(err, "appointment history")
	}
	return items, nil
}

func (r *historyRepository) ClinicalNotes(ctx context.Context, patientID int64, limit int) ([]model.ClinicalNote, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	query := `
		SELECT n.id, n.appointment_id, n.chief_complaint, n.illness_history,
		       n.physical_exam, n.diagnostic_hypothesis, n.plan,
		       i.name AS professional_name, n.created_at
		FROM clinical_notes n
		JOIN professionals pr ON pr.id = n.professional_id
		JOIN identities i ON i.id = pr.identity_id
		WHERE n.patient_id = $1
		ORDER BY n.created_at DESC
		LIMIT $2
	`
	items := []model.ClinicalNote{}
	if err := r.db.SelectContext(ctx, &items, query, patientID, limit); err != nil {
		return nil, translateError(err, "clinical notes")
	}
	return items, nil
}

func (r *historyRepository) Exams(ctx context.Context, patientID int64, limit int) ([]model.Exam, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	query := `
		SELECT e.id, e.type, e.name, e.requested_at, e.performed_at, e.result, e.notes,
		       i.name AS requested_by, f.name AS facility_name
		FROM exams e
		LEFT JOIN professionals pr ON pr.id = e.requested_by
		LEFT JOIN identities i ON i.id = pr.identity_id
		LEFT JOIN facilities f ON f.id = e.facility_id
		WHERE e.patient_id = $1
		ORDER BY e.requested_at DESC
		LIMIT $2
	`
	items := []model.Exam{}
	if err := r.db.SelectContext(ctx, &items, query, patientID, limit); err != nil {
		return nil, translateError(err, "exams")
	}
	return items, nil
}

func (r *historyRepository) Prescriptions(ctx context.Context, patientID int64, limit int) ([]model.Prescription, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	query := `
		SELECT rx.id, rx.medication, rx.dosage, rx.frequency, rx.duration,
		       rx.instructions, rx.prescribed_at, rx.valid_until,
		       i.name AS professional_name
		FROM prescriptions rx
		JOIN professionals pr ON pr.id = rx.professional_id
		JOIN identities i ON i.id = pr.identity_id
		WHERE rx.patient_id = $1
		ORDER BY rx.prescribed_at DESC
		LIMIT $2
	`
	items := []model.Prescription{}
	if err := r.db.SelectContext(ctx, &items, query, patientID, limit); err != nil {
		return nil, translateError(err, "prescriptions")
	}
	return items, nil
}
