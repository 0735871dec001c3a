package model

import "time"

type ProfessionalProfile struct {
	ID            int64              `json:"id" db:"id"`
	IdentityID    int64              `json:"identity_id" db:"identity_id"`
	Name          string             `json:"name,omitempty" db:"name"`
	Specialty     string             `json:"specialty" db:"specialty"`
	LicenseNumber string             `json:"license_number" db:"license_number"`
	Council       *string            `json:"council,omitempty" db:"council"`
	Availability  WeeklyAvailability `json:"availability" db:"availability"`
	CreatedAt     time.Time          `json:"created_at" db:"created_at"`
}
