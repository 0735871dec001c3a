package postgres

import (
	"context"

	"github.com/vidaplus/hospital-api/internal/model"
	"github.com/vidaplus/hospital-api/internal/repository"
)

type auditRepository struct {
	BaseRepository
}

func NewAuditRepository(base BaseRepository) repository.AuditRepository {
	return &auditRepository{base}
}

// Create appends one record; audit rows are never updated or deleted
func (r *auditRepository) Create(ctx context.Context, record *model.AuditRecord) error {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	query := `
		INSERT INTO audit_records (
			actor_id, action, resource_type, resource_id,
			previous_data, new_data, status_code, ip_address, user_agent
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		record.ActorID,
		record.Action,
		record.ResourceType,
		record.ResourceID,
		nullableJSON(record.PreviousData),
		nullableJSON(record.NewData),
		record.StatusCode,
		record.IPAddress,
		record.UserAgent,
	).Scan(&record.ID, &record.CreatedAt)
	return translateError(err, "audit record")
}

// nullableJSON binds an empty payload as SQL NULL instead of invalid JSONB
func nullableJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
