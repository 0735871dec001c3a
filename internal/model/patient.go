package model

import "time"

type PatientProfile struct {
	ID                    int64     `json:"id" db:"id"`
	IdentityID            int64     `json:"identity_id" db:"identity_id"`
	RecordNumber          string    `json:"record_number" db:"record_number"`
	BloodType             *string   `json:"blood_type,omitempty" db:"blood_type"`
	Allergies             *string   `json:"allergies,omitempty" db:"allergies"`
	PreexistingConditions *string   `json:"preexisting_conditions,omitempty" db:"preexisting_conditions"`
	EmergencyContact      *string   `json:"emergency_contact,omitempty" db:"emergency_contact"`
	EmergencyPhone        *string   `json:"emergency_phone,omitempty" db:"emergency_phone"`
	InsurancePlan         *string   `json:"insurance_plan,omitempty" db:"insurance_plan"`
	InsuranceNumber       *string   `json:"insurance_number,omitempty" db:"insurance_number"`
	CreatedAt             time.Time `json:"created_at" db:"created_at"`
}

// Patient is the profile joined with its owning identity
type Patient struct {
	PatientProfile
	Name       string     `json:"name" db:"name"`
	Email      string     `json:"email" db:"email"`
	NationalID string     `json:"national_id" db:"national_id"`
	Phone      *string    `json:"phone,omitempty" db:"phone"`
	BirthDate  *time.Time `json:"birth_date,omitempty" db:"birth_date"`
	Address    *string    `json:"address,omitempty" db:"address"`
	Active     bool       `json:"active" db:"active"`
}

type PatientSummary struct {
	ID           int64      `json:"id" db:"id"`
	RecordNumber string     `json:"record_number" db:"record_number"`
	Name         string     `json:"name" db:"name"`
	Email        string     `json:"email" db:"email"`
	NationalID   string     `json:"national_id" db:"national_id"`
	Phone        *string    `json:"phone,omitempty" db:"phone"`
	BirthDate    *time.Time `json:"birth_date,omitempty" db:"birth_date"`
	BloodType    *string    `json:"blood_type,omitempty" db:"blood_type"`
}

type PatientFilter struct {
	Search string `form:"search" binding:"omitempty,max=100"`
	PageRequest
}

// PatientPatch lists every field a patient update may touch; nil means unchanged.
type PatientPatch struct {
	Name    *string `json:"name" binding:"omitempty,min=2,max=255"`
	Phone   *string `json:"phone" binding:"omitempty,max=20"`
	Address *string `json:"address" binding:"omitempty,max=500"`

	BloodType             *string `json:"blood_type" binding:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
	Allergies             *string `json:"allergies"`
	PreexistingConditions *string `json:"preexisting_conditions"`
	EmergencyContact      *string `json:"emergency_contact" binding:"omitempty,max=255"`
	EmergencyPhone        *string `json:"emergency_phone" binding:"omitempty,max=20"`
	InsurancePlan         *string `json:"insurance_plan" binding:"omitempty,max=100"`
	InsuranceNumber       *string `json:"insurance_number" binding:"omitempty,max=50"`
}

// TouchesIdentity reports whether the identity row needs an update
func (p PatientPatch) TouchesIdentity() bool {
	return p.Name != nil || p.Phone != nil || p.Address != nil
}

// TouchesProfile reports whether the patient row needs an update
func (p PatientPatch) TouchesProfile() bool {
	return p.BloodType != nil || p.Allergies != nil || p.PreexistingConditions != nil ||
		p.EmergencyContact != nil || p.EmergencyPhone != nil ||
		p.InsurancePlan != nil || p.InsuranceNumber != nil
}

func (p PatientPatch) IsEmpty() bool {
	return !p.TouchesIdentity() && !p.TouchesProfile()
}

// Apply copies the supplied fields onto a loaded patient
func (p PatientPatch) Apply(pt *Patient) {
	if p.Name != nil {
		pt.Name = *p.Name
	}
	if p.Phone != nil {
		pt.Phone = p.Phone
	}
	if p.Address != nil {
		pt.Address = p.Address
	}
	if p.BloodType != nil {
		pt.BloodType = p.BloodType
	}
	if p.Allergies != nil {
		pt.Allergies = p.Allergies
	}
	if p.PreexistingConditions != nil {
		pt.PreexistingConditions = p.PreexistingConditions
	}
	if p.EmergencyContact != nil {
		pt.EmergencyContact = p.EmergencyContact
	}
	if p.EmergencyPhone != nil {
		pt.EmergencyPhone = p.EmergencyPhone
	}
	if p.InsurancePlan != nil {
		pt.InsurancePlan = p.InsurancePlan
	}
	if p.InsuranceNumber != nil {
		pt.InsuranceNumber = p.InsuranceNumber
	}
}
