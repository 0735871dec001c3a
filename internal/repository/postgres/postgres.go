package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/vidaplus/hospital-api/internal/repository"
)

//go:embed schema.sql
var schemaSQL string

// Schema returns the DDL the repositories expect
func Schema() string {
	return schemaSQL
}

// Migrate applies the embedded schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Repositories groups every Postgres-backed repository
type Repositories struct {
	Identities    repository.IdentityRepository
	Professionals repository.ProfessionalRepository
	Patients      repository.PatientRepository
	History       repository.HistoryRepository
	Appointments  repository.AppointmentRepository
	Audit         repository.AuditRepository
}

func NewRepositories(base BaseRepository) *Repositories {
	return &Repositories{
		Identities:    NewIdentityRepository(base),
		Professionals: NewProfessionalRepository(base),
		Patients:      NewPatientRepository(base),
		History:       NewHistoryRepository(base),
		Appointments:  NewAppointmentRepository(base),
		Audit:         NewAuditRepository(base),
	}
}
