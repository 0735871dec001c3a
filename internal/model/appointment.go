package model

import (
	"time"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled  AppointmentStatus = "SCHEDULED"
	AppointmentStatusConfirmed  AppointmentStatus = "CONFIRMED"
	AppointmentStatusInProgress AppointmentStatus = "IN_PROGRESS"
	AppointmentStatusCompleted  AppointmentStatus = "COMPLETED"
	AppointmentStatusCancelled  AppointmentStatus = "CANCELLED"
	AppointmentStatusNoShow     AppointmentStatus = "NO_SHOW"
)

// allowed status changes; a status missing as a key is final
var appointmentTransitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentStatusScheduled: {
		AppointmentStatusConfirmed,
		AppointmentStatusInProgress,
		AppointmentStatusCancelled,
		AppointmentStatusNoShow,
	},
	AppointmentStatusConfirmed: {
		AppointmentStatusInProgress,
		AppointmentStatusCancelled,
		AppointmentStatusNoShow,
	},
	AppointmentStatusInProgress: {
		AppointmentStatusCompleted,
	},
}

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentStatusScheduled, AppointmentStatusConfirmed, AppointmentStatusInProgress,
		AppointmentStatusCompleted, AppointmentStatusCancelled, AppointmentStatusNoShow:
		return true
	}
	return false
}

// OccupiesSlot reports whether an appointment in this status holds its time slot
func (s AppointmentStatus) OccupiesSlot() bool {
	return s != AppointmentStatusCancelled && s != AppointmentStatusNoShow
}

// Cancellable reports whether cancel may act on this status
func (s AppointmentStatus) Cancellable() bool {
	return s == AppointmentStatusScheduled || s == AppointmentStatusConfirmed
}

// IsFinal reports whether no further status change is allowed
func (s AppointmentStatus) IsFinal() bool {
	return len(appointmentTransitions[s]) == 0
}

// CanTransitionTo reports whether next may follow s. A status that is not
// final may be re-asserted so notes can be amended.
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	if s == next {
		return !s.IsFinal()
	}
	for _, allowed := range appointmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Modality string

const (
	ModalityInPerson     Modality = "IN_PERSON"
	ModalityTelemedicine Modality = "TELEMEDICINE"
)

const DefaultAppointmentDuration = 30

type Appointment struct {
	ID              int64             `json:"id" db:"id"`
	PatientID       int64             `json:"patient_id" db:"patient_id"`
	ProfessionalID  int64             `json:"professional_id" db:"professional_id"`
	FacilityID      *int64            `json:"facility_id,omitempty" db:"facility_id"`
	ScheduledAt     time.Time         `json:"scheduled_at" db:"scheduled_at"`
	Modality        Modality          `json:"modality" db:"modality"`
	Status          AppointmentStatus `json:"status" db:"status"`
	Reason          *string           `json:"reason,omitempty" db:"reason"`
	Notes           *string           `json:"notes,omitempty" db:"notes"`
	MeetingLink     *string           `json:"meeting_link,omitempty" db:"meeting_link"`
	DurationMinutes int               `json:"duration_minutes" db:"duration_minutes"`
	CreatedAt       time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at" db:"updated_at"`
}

// AppointmentDetail is an appointment joined with display names
type AppointmentDetail struct {
	Appointment
	PatientName           string  `json:"patient_name" db:"patient_name"`
	PatientRecordNumber   string  `json:"patient_record_number" db:"patient_record_number"`
	PatientIdentityID     int64   `json:"-" db:"patient_identity_id"`
	ProfessionalName      string  `json:"professional_name" db:"professional_name"`
	ProfessionalSpecialty string  `json:"professional_specialty" db:"professional_specialty"`
	FacilityName          *string `json:"facility_name,omitempty" db:"facility_name"`
	FacilityAddress       *string `json:"facility_address,omitempty" db:"facility_address"`
}

type BookAppointmentRequest struct {
	PatientID       int64    `json:"patient_id" binding:"required,min=1"`
	ProfessionalID  int64    `json:"professional_id" binding:"required,min=1"`
	FacilityID      *int64   `json:"facility_id" binding:"omitempty,min=1"`
	ScheduledAt     string   `json:"scheduled_at" binding:"required"`
	Modality        Modality `json:"modality" binding:"omitempty,oneof=IN_PERSON TELEMEDICINE"`
	Reason          string   `json:"reason" binding:"omitempty,max=1000"`
	Notes           string   `json:"notes" binding:"omitempty,max=2000"`
	DurationMinutes int      `json:"duration_minutes" binding:"omitempty,min=5,max=480"`
}

type UpdateStatusRequest struct {
	Status AppointmentStatus `json:"status" binding:"required,oneof=SCHEDULED CONFIRMED IN_PROGRESS COMPLETED CANCELLED NO_SHOW"`
	Notes  *string           `json:"notes" binding:"omitempty,max=2000"`
}

type CancelRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=1000"`
}

type AppointmentFilter struct {
	Status         AppointmentStatus `form:"status" binding:"omitempty,oneof=SCHEDULED CONFIRMED IN_PROGRESS COMPLETED CANCELLED NO_SHOW"`
	Modality       Modality          `form:"modality" binding:"omitempty,oneof=IN_PERSON TELEMEDICINE"`
	DateFrom       string            `form:"date_from" binding:"omitempty,datetime=2006-01-02"`
	DateTo         string            `form:"date_to" binding:"omitempty,datetime=2006-01-02"`
	PatientID      int64             `form:"patient_id" binding:"omitempty,min=1"`
	ProfessionalID int64             `form:"professional_id" binding:"omitempty,min=1"`
	PageRequest
}

// BookedSlot is an occupied start time on a given day
type BookedSlot struct {
	Time     string `json:"time" db:"time"`
	Duration int    `json:"duration" db:"duration"`
}

// Availability pairs declared windows with what is already booked that day.
// Free slots are left for the caller to derive.
type Availability struct {
	ProfessionalID  int64        `json:"professional_id"`
	Date            string       `json:"date"`
	Weekday         Weekday      `json:"weekday"`
	DeclaredWindows []TimeRange  `json:"declared_windows"`
	BookedSlots     []BookedSlot `json:"booked_slots"`
}
