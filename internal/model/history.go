package model

import "time"

const HistoryLimit = 50

type ExamType string

const (
	ExamTypeBlood      ExamType = "BLOOD"
	ExamTypeUrine      ExamType = "URINE"
	ExamTypeImaging    ExamType = "IMAGING"
	ExamTypeCardiology ExamType = "CARDIOLOGY"
	ExamTypeOther      ExamType = "OTHER"
)

type BedStatus string

const (
	BedStatusAvailable   BedStatus = "AVAILABLE"
	BedStatusOccupied    BedStatus = "OCCUPIED"
	BedStatusMaintenance BedStatus = "MAINTENANCE"
	BedStatusReserved    BedStatus = "RESERVED"
)

type HistoryAppointment struct {
	ID               int64             `json:"id" db:"id"`
	ScheduledAt      time.Time         `json:"scheduled_at" db:"scheduled_at"`
	Modality         Modality          `json:"modality" db:"modality"`
	Status           AppointmentStatus `json:"status" db:"status"`
	Reason           *string           `json:"reason,omitempty" db:"reason"`
	Notes            *string           `json:"notes,omitempty" db:"notes"`
	ProfessionalName string            `json:"professional_name" db:"professional_name"`
	Specialty        string            `json:"specialty" db:"specialty"`
	FacilityName     *string           `json:"facility_name,omitempty" db:"facility_name"`
}

type ClinicalNote struct {
	ID                   int64     `json:"id" db:"id"`
	AppointmentID        *int64    `json:"appointment_id,omitempty" db:"appointment_id"`
	ChiefComplaint       *string   `json:"chief_complaint,omitempty" db:"chief_complaint"`
	IllnessHistory       *string   `json:"illness_history,omitempty" db:"illness_history"`
	PhysicalExam         *string   `json:"physical_exam,omitempty" db:"physical_exam"`
	DiagnosticHypothesis *string   `json:"diagnostic_hypothesis,omitempty" db:"diagnostic_hypothesis"`
	Plan                 *string   `json:"plan,omitempty" db:"plan"`
	ProfessionalName     string    `json:"professional_name" db:"professional_name"`
	CreatedAt            time.Time `json:"created_at" db:"created_at"`
}

type Exam struct {
	ID           int64      `json:"id" db:"id"`
	Type         ExamType   `json:"type" db:"type"`
	Name         string     `json:"name" db:"name"`
	RequestedAt  time.Time  `json:"requested_at" db:"requested_at"`
	PerformedAt  *time.Time `json:"performed_at,omitempty" db:"performed_at"`
	Result       *string    `json:"result,omitempty" db:"result"`
	Notes        *string    `json:"notes,omitempty" db:"notes"`
	RequestedBy  *string    `json:"requested_by,omitempty" db:"requested_by"`
	FacilityName *string    `json:"facility_name,omitempty" db:"facility_name"`
}

type Prescription struct {
	ID               int64      `json:"id" db:"id"`
	Medication       string     `json:"medication" db:"medication"`
	Dosage           string     `json:"dosage" db:"dosage"`
	Frequency        string     `json:"frequency" db:"frequency"`
	Duration         *string    `json:"duration,omitempty" db:"duration"`
	Instructions     *string    `json:"instructions,omitempty" db:"instructions"`
	PrescribedAt     time.Time  `json:"prescribed_at" db:"prescribed_at"`
	ValidUntil       *time.Time `json:"valid_until,omitempty" db:"valid_until"`
	ProfessionalName string     `json:"professional_name" db:"professional_name"`
}

type PatientHistory struct {
	Appointments  []HistoryAppointment `json:"appointments"`
	ClinicalNotes []ClinicalNote       `json:"clinical_notes"`
	Exams         []Exam               `json:"exams"`
	Prescriptions []Prescription       `json:"prescriptions"`
}
