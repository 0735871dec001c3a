package postgres

import (
	"context"

	"github.com/vidaplus/hospital-api/internal/model"
	"github.com/vidaplus/hospital-api/internal/repository"
)

const professionalSelect = `
	SELECT p.id, p.identity_id, i.name, p.specialty, p.license_number,
	       p.council, p.availability, p.created_at
	FROM professionals p
	JOIN identities i ON i.id = p.identity_id`

type professionalRepository struct {
	BaseRepository
}

func NewProfessionalRepository(base BaseRepository) repository.ProfessionalRepository {
	return &professionalRepository{base}
}

func (r *professionalRepository) GetByID(ctx context.Context, id int64) (*model.ProfessionalProfile, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	var p model.ProfessionalProfile
	if err := r.db.GetContext(ctx, &p, professionalSelect+` WHERE p.id = $1`, id); err != nil {
		return nil, translateError(err, "professional")
	}
	return &p, nil
}

func (r *professionalRepository) GetByIdentityID(ctx context.Context, identityID int64) (*model.ProfessionalProfile, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	var p model.ProfessionalProfile
	if err := r.db.GetContext(ctx, &p, professionalSelect+` WHERE p.identity_id = $1`, identityID); err != nil {
		return nil, translateError(err, "professional")
	}
	return &p, nil
}
