package appointment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/vidaplus/hospital-api/internal/model"
	"github.com/vidaplus/hospital-api/internal/redisclient"
	"github.com/vidaplus/hospital-api/internal/repository"
	apperrors "github.com/vidaplus/hospital-api/pkg/errors"
	"github.com/vidaplus/hospital-api/pkg/logger"
	"github.com/vidaplus/hospital-api/pkg/metrics"
)

const (
	professionalCacheTTL     = 5 * time.Minute
	professionalCacheCleanup = 10 * time.Minute

	meetingLinkBase     = "https://meet.vidaplus.com.br/"
	cancellationDefault = "not informed"
)

// accepted scheduled_at layouts; any offset is dropped and the wall clock kept
var scheduledAtLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

type Service struct {
	appointments  repository.AppointmentRepository
	patients      repository.PatientRepository
	professionals repository.ProfessionalRepository
	locker        redisclient.SlotLocker
	cache         *cache.Cache
	metrics       *metrics.Metrics
	log           *logger.Logger
	now           func() time.Time
}

func NewService(
	appointments repository.AppointmentRepository,
	patients repository.PatientRepository,
	professionals repository.ProfessionalRepository,
	locker redisclient.SlotLocker,
	m *metrics.Metrics,
	log *logger.Logger,
) *Service {
	if locker == nil {
		locker = redisclient.NewNoopLocker()
	}
	return &Service{
		appointments:  appointments,
		patients:      patients,
		professionals: professionals,
		locker:        locker,
		cache:         cache.New(professionalCacheTTL, professionalCacheCleanup),
		metrics:       m,
		log:           log.With("scheduling"),
		now:           time.Now,
	}
}

// ParseScheduledAt reads a booking time as a wall-clock timestamp
func ParseScheduledAt(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range scheduledAtLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC), nil
		}
	}
	return time.Time{}, apperrors.Validation("scheduled_at must be an ISO 8601 date-time", nil)
}

// Book reserves a professional's slot for a patient
func (s *Service) Book(ctx context.Context, claims *model.Claims, req model.BookAppointmentRequest) (*model.Appointment, error) {
	scheduledAt, err := ParseScheduledAt(req.ScheduledAt)
	if err != nil {
		return nil, err
	}

	if claims.Role == model.RolePatient {
		own, err := s.ownPatient(ctx, claims)
		if err != nil {
			return nil, err
		}
		if own.ID != req.PatientID {
			return nil, apperrors.Forbidden("patients can only book appointments for themselves")
		}
	}

	if _, err := s.professional(ctx, req.ProfessionalID); err != nil {
		return nil, err
	}
	if _, err := s.patients.GetByID(ctx, req.PatientID); err != nil {
		return nil, err
	}

	appointment := &model.Appointment{
		PatientID:       req.PatientID,
		ProfessionalID:  req.ProfessionalID,
		FacilityID:      req.FacilityID,
		ScheduledAt:     scheduledAt,
		Modality:        req.Modality,
		Status:          model.AppointmentStatusScheduled,
		Reason:          optional(req.Reason),
		Notes:           optional(req.Notes),
		DurationMinutes: req.DurationMinutes,
	}
	if appointment.Modality == "" {
		appointment.Modality = model.ModalityInPerson
	}
	if appointment.DurationMinutes <= 0 {
		appointment.DurationMinutes = model.DefaultAppointmentDuration
	}
	if appointment.Modality == model.ModalityTelemedicine {
		link := fmt.Sprintf("%s%d-%d", meetingLinkBase, s.now().UnixMilli(), req.PatientID)
		appointment.MeetingLink = &link
	}

	create := func(ctx context.Context) error {
		return s.appointments.Create(ctx, appointment)
	}

	err = s.locker.WithSlotLock(ctx, req.ProfessionalID, scheduledAt, create)
	switch {
	case err == nil:
		s.metrics.SlotLocks.WithLabelValues("acquired").Inc()
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		s.metrics.SlotLocks.WithLabelValues("contended").Inc()
		s.metrics.BookingConflicts.Inc()
		return nil, apperrors.Conflict("slot already taken", err)
	case errors.Is(err, redisclient.ErrLockUnavailable):
		// the unique index still guards the slot
		s.metrics.SlotLocks.WithLabelValues("unavailable").Inc()
		s.log.Warn("booking without slot lock", "error", err.Error())
		err = create(ctx)
	}
	if err != nil {
		if apperrors.Is(err, apperrors.ErrConflict) {
			s.metrics.BookingConflicts.Inc()
		}
		return nil, err
	}

	s.metrics.AppointmentsBooked.WithLabelValues(string(appointment.Modality)).Inc()
	return appointment, nil
}

// List narrows the filter to what the caller may see
func (s *Service) List(ctx context.Context, claims *model.Claims, filter model.AppointmentFilter) (*model.Page[model.AppointmentDetail], error) {
	filter.Normalize()

	if filter.DateFrom != "" && filter.DateTo != "" && filter.DateFrom > filter.DateTo {
		return nil, apperrors.Validation("date_from must not be after date_to", nil)
	}

	switch {
	case claims.Role == model.RolePatient:
		own, err := s.ownPatient(ctx, claims)
		if err != nil {
			return nil, err
		}
		if filter.PatientID != 0 && filter.PatientID != own.ID {
			return nil, apperrors.Forbidden("patients can only list their own appointments")
		}
		filter.PatientID = own.ID
	case claims.Role.IsProfessional():
		own, err := s.professionals.GetByIdentityID(ctx, claims.IdentityID)
		if err != nil {
			if apperrors.Is(err, apperrors.ErrNotFound) {
				return nil, apperrors.Forbidden("no professional profile for this account")
			}
			return nil, err
		}
		if filter.ProfessionalID != 0 && filter.ProfessionalID != own.ID {
			return nil, apperrors.Forbidden("professionals can only list their own appointments")
		}
		filter.ProfessionalID = own.ID
	}

	items, total, err := s.appointments.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &model.Page[model.AppointmentDetail]{
		Items:       items,
		Total:       total,
		PageRequest: filter.PageRequest,
	}, nil
}

// Get does not narrow by ownership; any caller with route access may read
func (s *Service) Get(ctx context.Context, id int64) (*model.AppointmentDetail, error) {
	return s.appointments.Get(ctx, id)
}

// UpdateStatus moves an appointment along the status lifecycle
func (s *Service) UpdateStatus(ctx context.Context, id int64, req model.UpdateStatusRequest) (*model.Appointment, error) {
	if !req.Status.Valid() {
		return nil, apperrors.Validation("invalid status", nil)
	}
	// notes are appended to the history, never replace it
	var notes *string
	if req.Notes != nil {
		notes = optional(*req.Notes)
	}

	guard := func(current model.AppointmentStatus) error {
		if !current.CanTransitionTo(req.Status) {
			return apperrors.Conflict(fmt.Sprintf("cannot change status from %s to %s", current, req.Status), nil)
		}
		return nil
	}

	updated, err := s.appointments.UpdateStatus(ctx, id, req.Status, notes, guard)
	if err != nil {
		return nil, err
	}
	if updated.Status == model.AppointmentStatusCancelled {
		s.metrics.AppointmentsCanceled.Inc()
	}
	return updated, nil
}

// Cancel frees the slot of a SCHEDULED or CONFIRMED appointment, keeping
// the row and appending the reason to its notes.
func (s *Service) Cancel(ctx context.Context, claims *model.Claims, id int64, reason string) (*model.Appointment, error) {
	if claims.Role == model.RolePatient {
		detail, err := s.appointments.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if detail.PatientIdentityID != claims.IdentityID {
			return nil, apperrors.Forbidden("patients can only cancel their own appointments")
		}
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = cancellationDefault
	}

	cancelled, err := s.appointments.Cancel(ctx, id, "Cancellation: "+reason)
	if err != nil {
		return nil, err
	}
	s.metrics.AppointmentsCanceled.Inc()
	return cancelled, nil
}

// Availability returns the declared windows for the date's weekday and the
// slots already taken that day. Free slots are left to the caller.
func (s *Service) Availability(ctx context.Context, professionalID int64, date string) (*model.Availability, error) {
	if strings.TrimSpace(date) == "" {
		return nil, apperrors.Validation("date is required (YYYY-MM-DD)", nil)
	}
	day, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return nil, apperrors.Validation("date must be YYYY-MM-DD", err)
	}

	professional, err := s.professional(ctx, professionalID)
	if err != nil {
		return nil, err
	}

	booked, err := s.appointments.BookedSlots(ctx, professionalID, day)
	if err != nil {
		return nil, err
	}

	return &model.Availability{
		ProfessionalID:  professionalID,
		Date:            day.Format(time.DateOnly),
		Weekday:         model.WeekdayOf(day),
		DeclaredWindows: professional.Availability.WindowsFor(day),
		BookedSlots:     booked,
	}, nil
}

// professional is read through a short-lived cache; profiles are never
// edited after registration.
func (s *Service) professional(ctx context.Context, id int64) (*model.ProfessionalProfile, error) {
	key := strconv.FormatInt(id, 10)
	if cached, ok := s.cache.Get(key); ok {
		return cached.(*model.ProfessionalProfile), nil
	}

	p, err := s.professionals.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(key, p)
	return p, nil
}

func (s *Service) ownPatient(ctx context.Context, claims *model.Claims) (*model.PatientProfile, error) {
	own, err := s.patients.GetByIdentityID(ctx, claims.IdentityID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Forbidden("no patient profile for this account")
		}
		return nil, err
	}
	return own, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
