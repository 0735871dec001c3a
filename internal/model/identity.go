package model

import (
	"fmt"
	"time"
)

type Role string

const (
	RolePatient    Role = "PATIENT"
	RoleDoctor     Role = "DOCTOR"
	RoleNurse      Role = "NURSE"
	RoleTechnician Role = "TECHNICIAN"
	RoleAdmin      Role = "ADMIN"
)

var AllRoles = []Role{RolePatient, RoleDoctor, RoleNurse, RoleTechnician, RoleAdmin}

func (r Role) Valid() bool {
	for _, v := range AllRoles {
		if v == r {
			return true
		}
	}
	return false
}

// IsProfessional reports whether the role carries a professional profile
func (r Role) IsProfessional() bool {
	return r == RoleDoctor || r == RoleNurse || r == RoleTechnician
}

type Identity struct {
	ID           int64      `json:"id" db:"id"`
	Name         string     `json:"name" db:"name"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"`
	Role         Role       `json:"role" db:"role"`
	NationalID   string     `json:"national_id" db:"national_id"`
	Phone        *string    `json:"phone,omitempty" db:"phone"`
	BirthDate    *time.Time `json:"birth_date,omitempty" db:"birth_date"`
	Address      *string    `json:"address,omitempty" db:"address"`
	Active       bool       `json:"active" db:"active"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// Claims is the verified content of a bearer credential
type Claims struct {
	IdentityID int64     `json:"id"`
	Email      string    `json:"email"`
	Role       Role      `json:"role"`
	Name       string    `json:"name"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// RecordNumberFor derives a patient's record number from the owning identity id
func RecordNumberFor(identityID int64) string {
	return fmt.Sprintf("PRONT%06d", identityID)
}

type RegisterRequest struct {
	Name       string `json:"name" binding:"required,min=2,max=255"`
	Email      string `json:"email" binding:"required,email,max=255"`
	Password   string `json:"password" binding:"required,min=6,max=72"`
	Role       Role   `json:"role" binding:"required,role"`
	NationalID string `json:"national_id" binding:"required,national_id"`
	Phone      string `json:"phone" binding:"omitempty,max=20"`
	BirthDate  string `json:"birth_date" binding:"omitempty,datetime=2006-01-02"`
	Address    string `json:"address" binding:"omitempty,max=500"`

	// Patient fields
	BloodType             string `json:"blood_type" binding:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
	Allergies             string `json:"allergies"`
	PreexistingConditions string `json:"preexisting_conditions"`
	EmergencyContact      string `json:"emergency_contact" binding:"omitempty,max=255"`
	EmergencyPhone        string `json:"emergency_phone" binding:"omitempty,max=20"`
	InsurancePlan         string `json:"insurance_plan" binding:"omitempty,max=100"`
	InsuranceNumber       string `json:"insurance_number" binding:"omitempty,max=50"`

	// Professional fields
	Specialty     string             `json:"specialty" binding:"omitempty,max=100"`
	LicenseNumber string             `json:"license_number" binding:"omitempty,max=20"`
	Council       string             `json:"council" binding:"omitempty,max=10"`
	Availability  WeeklyAvailability `json:"availability"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=6,max=72"`
}

// AuthResponse is returned by register and login
type AuthResponse struct {
	Identity     *Identity            `json:"user"`
	Patient      *PatientProfile      `json:"patient,omitempty"`
	Professional *ProfessionalProfile `json:"professional,omitempty"`
	Token        string               `json:"token"`
	ExpiresAt    time.Time            `json:"expires_at"`
}

// AuditSnapshot keeps the credential out of audit records
func (r *AuthResponse) AuditSnapshot() interface{} {
	return r.Identity
}

// Profile is the identity together with whichever sub-profile its role has
type Profile struct {
	*Identity
	Patient      *PatientProfile      `json:"patient,omitempty"`
	Professional *ProfessionalProfile `json:"professional,omitempty"`
}
