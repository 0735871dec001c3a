package model

import (
	"encoding/json"
	"time"
)

// AuditRecord is append-only; the application never updates or deletes one
type AuditRecord struct {
	ID           int64           `json:"id" db:"id"`
	ActorID      int64           `json:"actor_id" db:"actor_id"`
	Action       string          `json:"action" db:"action"`
	ResourceType *string         `json:"resource_type,omitempty" db:"resource_type"`
	ResourceID   *int64          `json:"resource_id,omitempty" db:"resource_id"`
	PreviousData json.RawMessage `json:"previous_data,omitempty" db:"previous_data"`
	NewData      json.RawMessage `json:"new_data,omitempty" db:"new_data"`
	StatusCode   int             `json:"status_code" db:"status_code"`
	IPAddress    string          `json:"ip_address" db:"ip_address"`
	UserAgent    string          `json:"user_agent" db:"user_agent"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

const (
	AuditActionRegister       = "REGISTER_USER"
	AuditActionLogin          = "LOGIN"
	AuditActionChangePassword = "CHANGE_PASSWORD"
	AuditActionBook           = "BOOK_APPOINTMENT"
	AuditActionUpdateStatus   = "UPDATE_APPOINTMENT_STATUS"
	AuditActionCancel         = "CANCEL_APPOINTMENT"
	AuditActionUpdatePatient  = "UPDATE_PATIENT"
	AuditActionDeactivate     = "DEACTIVATE_PATIENT"
)
