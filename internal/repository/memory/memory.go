// Package memory provides map-backed repositories with the same error
// semantics as the Postgres ones. Used by service and handler tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vidaplus/hospital-api/internal/model"
	"github.com/vidaplus/hospital-api/internal/repository"
	apperrors "github.com/vidaplus/hospital-api/pkg/errors"
)

// Store holds every table behind one mutex
type Store struct {
	mu     sync.Mutex
	nextID int64
	now    func() time.Time

	identities    map[int64]*model.Identity
	patients      map[int64]*model.PatientProfile
	professionals map[int64]*model.ProfessionalProfile
	appointments  map[int64]*model.Appointment
	facilities    map[int64]string

	notes         map[int64][]model.ClinicalNote
	exams         map[int64][]model.Exam
	prescriptions map[int64][]model.Prescription

	audit []model.AuditRecord
}

func NewStore() *Store {
	return &Store{
		now:           time.Now,
		identities:    make(map[int64]*model.Identity),
		patients:      make(map[int64]*model.PatientProfile),
		professionals: make(map[int64]*model.ProfessionalProfile),
		appointments:  make(map[int64]*model.Appointment),
		facilities:    make(map[int64]string),
		notes:         make(map[int64][]model.ClinicalNote),
		exams:         make(map[int64][]model.Exam),
		prescriptions: make(map[int64][]model.Prescription),
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) Identities() repository.IdentityRepository       { return &identityRepo{s} }
func (s *Store) Professionals() repository.ProfessionalRepository { return &professionalRepo{s} }
func (s *Store) Patients() repository.PatientRepository           { return &patientRepo{s} }
func (s *Store) History() repository.HistoryRepository            { return &historyRepo{s} }
func (s *Store) Appointments() repository.AppointmentRepository   { return &appointmentRepo{s} }
func (s *Store) Audit() repository.AuditRepository                { return &auditRepo{s} }

// AddFacility registers a facility name for joins
func (s *Store) AddFacility(name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	s.facilities[id] = name
	return id
}

// AddClinicalNote, AddExam and AddPrescription seed history rows
func (s *Store) AddClinicalNote(patientID int64, n model.ClinicalNote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = s.id()
	s.notes[patientID] = append(s.notes[patientID], n)
}

func (s *Store) AddExam(patientID int64, e model.Exam) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.id()
	s.exams[patientID] = append(s.exams[patientID], e)
}

func (s *Store) AddPrescription(patientID int64, p model.Prescription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.id()
	s.prescriptions[patientID] = append(s.prescriptions[patientID], p)
}

// AuditRecords returns a copy of the appended audit rows
func (s *Store) AuditRecords() []model.AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.AuditRecord, len(s.audit))
	copy(out, s.audit)
	return out
}

// Appointment returns the stored row as is, for assertions
func (s *Store) Appointment(id int64) (model.Appointment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return model.Appointment{}, false
	}
	return *a, true
}

type identityRepo struct{ s *Store }

func (r *identityRepo) CreateWithProfile(_ context.Context, identity *model.Identity, patient *model.PatientProfile, professional *model.ProfessionalProfile) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.identities {
		if existing.Email == identity.Email || existing.NationalID == identity.NationalID {
			return apperrors.Conflict("email or national id already registered", nil)
		}
	}
	if professional != nil {
		for _, existing := range s.professionals {
			if existing.LicenseNumber == professional.LicenseNumber {
				return apperrors.Conflict("license number already registered", nil)
			}
		}
	}

	now := s.now()
	identity.ID = s.id()
	identity.Active = true
	identity.CreatedAt = now
	identity.UpdatedAt = now
	stored := *identity
	s.identities[identity.ID] = &stored

	if patient != nil {
		patient.ID = s.id()
		patient.IdentityID = identity.ID
		patient.RecordNumber = model.RecordNumberFor(identity.ID)
		patient.CreatedAt = now
		p := *patient
		s.patients[patient.ID] = &p
	}
	if professional != nil {
		professional.ID = s.id()
		professional.IdentityID = identity.ID
		professional.Name = identity.Name
		professional.CreatedAt = now
		p := *professional
		s.professionals[professional.ID] = &p
	}
	return nil
}

func (r *identityRepo) GetByID(_ context.Context, id int64) (*model.Identity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	identity, ok := r.s.identities[id]
	if !ok {
		return nil, apperrors.NotFound("identity", nil)
	}
	cp := *identity
	return &cp, nil
}

func (r *identityRepo) GetByEmail(_ context.Context, email string) (*model.Identity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, identity := range r.s.identities {
		if identity.Email == email {
			cp := *identity
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("identity", nil)
}

func (r *identityRepo) UpdatePasswordHash(_ context.Context, id int64, hash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	identity, ok := r.s.identities[id]
	if !ok {
		return apperrors.NotFound("identity", nil)
	}
	identity.PasswordHash = hash
	identity.UpdatedAt = r.s.now()
	return nil
}

type professionalRepo struct{ s *Store }

func (r *professionalRepo) GetByID(_ context.Context, id int64) (*model.ProfessionalProfile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.professionals[id]
	if !ok {
		return nil, apperrors.NotFound("professional", nil)
	}
	cp := *p
	return &cp, nil
}

func (r *professionalRepo) GetByIdentityID(_ context.Context, identityID int64) (*model.ProfessionalProfile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.professionals {
		if p.IdentityID == identityID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("professional", nil)
}

type patientRepo struct{ s *Store }

// joinedPatient assumes the lock is held
func (s *Store) joinedPatient(p *model.PatientProfile) *model.Patient {
	identity := s.identities[p.IdentityID]
	return &model.Patient{
		PatientProfile: *p,
		Name:           identity.Name,
		Email:          identity.Email,
		NationalID:     identity.NationalID,
		Phone:          identity.Phone,
		BirthDate:      identity.BirthDate,
		Address:        identity.Address,
		Active:         identity.Active,
	}
}

func (r *patientRepo) GetByID(_ context.Context, id int64) (*model.Patient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.patients[id]
	if !ok || !r.s.identities[p.IdentityID].Active {
		return nil, apperrors.NotFound("patient", nil)
	}
	return r.s.joinedPatient(p), nil
}

func (r *patientRepo) GetByIdentityID(_ context.Context, identityID int64) (*model.PatientProfile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.patients {
		if p.IdentityID == identityID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("patient", nil)
}

func (r *patientRepo) List(_ context.Context, filter model.PatientFilter) ([]model.PatientSummary, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	search := strings.ToLower(filter.Search)
	var matched []model.PatientSummary
	for _, p := range r.s.patients {
		identity := r.s.identities[p.IdentityID]
		if !identity.Active {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(identity.Name), search) &&
			!strings.Contains(strings.ToLower(identity.NationalID), search) &&
			!strings.Contains(strings.ToLower(p.RecordNumber), search) {
			continue
		}
		matched = append(matched, model.PatientSummary{
			ID:           p.ID,
			RecordNumber: p.RecordNumber,
			Name:         identity.Name,
			Email:        identity.Email,
			NationalID:   identity.NationalID,
			Phone:        identity.Phone,
			BirthDate:    identity.BirthDate,
			BloodType:    p.BloodType,
		})
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Name == matched[j].Name {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].Name < matched[j].Name
	})
	return paginate(matched, filter.PageRequest), len(matched), nil
}

func (r *patientRepo) Update(_ context.Context, id int64, patch model.PatientPatch) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.patients[id]
	if !ok || !r.s.identities[p.IdentityID].Active {
		return apperrors.NotFound("patient", nil)
	}
	joined := r.s.joinedPatient(p)
	patch.Apply(joined)

	identity := r.s.identities[p.IdentityID]
	identity.Name = joined.Name
	identity.Phone = joined.Phone
	identity.Address = joined.Address
	identity.UpdatedAt = r.s.now()
	*p = joined.PatientProfile
	return nil
}

func (r *patientRepo) Deactivate(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.patients[id]
	if !ok || !r.s.identities[p.IdentityID].Active {
		return apperrors.NotFound("patient", nil)
	}
	r.s.identities[p.IdentityID].Active = false
	return nil
}

type historyRepo struct{ s *Store }

func (r *historyRepo) Appointments(_ context.Context, patientID int64, limit int) ([]model.HistoryAppointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	items := []model.HistoryAppointment{}
	for _, a := range r.s.appointments {
		if a.PatientID != patientID {
			continue
		}
		prof := r.s.professionals[a.ProfessionalID]
		item := model.HistoryAppointment{
			ID:               a.ID,
			ScheduledAt:      a.ScheduledAt,
			Modality:         a.Modality,
			Status:           a.Status,
			Reason:           a.Reason,
			Notes:            a.Notes,
			ProfessionalName: r.s.identities[prof.IdentityID].Name,
			Specialty:        prof.Specialty,
		}
		if a.FacilityID != nil {
			name := r.s.facilities[*a.FacilityID]
			item.FacilityName = &name
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ScheduledAt.After(items[j].ScheduledAt) })
	return truncate(items, limit), nil
}

func (r *historyRepo) ClinicalNotes(_ context.Context, patientID int64, limit int) ([]model.ClinicalNote, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	items := append([]model.ClinicalNote{}, r.s.notes[patientID]...)
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return truncate(items, limit), nil
}

func (r *historyRepo) Exams(_ context.Context, patientID int64, limit int) ([]model.Exam, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	items := append([]model.Exam{}, r.s.exams[patientID]...)
	sort.Slice(items, func(i, j int) bool { return items[i].RequestedAt.After(items[j].RequestedAt) })
	return truncate(items, limit), nil
}

func (r *historyRepo) Prescriptions(_ context.Context, patientID int64, limit int) ([]model.Prescription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	items := append([]model.Prescription{}, r.s.prescriptions[patientID]...)
	sort.Slice(items, func(i, j int) bool { return items[i].PrescribedAt.After(items[j].PrescribedAt) })
	return truncate(items, limit), nil
}

type appointmentRepo struct{ s *Store }

func (r *appointmentRepo) Create(_ context.Context, appointment *model.Appointment) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.patients[appointment.PatientID]; !ok {
		return apperrors.Validation("referenced record does not exist", nil)
	}
	if _, ok := s.professionals[appointment.ProfessionalID]; !ok {
		return apperrors.Validation("referenced record does not exist", nil)
	}
	for _, existing := range s.appointments {
		if existing.ProfessionalID == appointment.ProfessionalID &&
			existing.ScheduledAt.Equal(appointment.ScheduledAt) &&
			existing.Status.OccupiesSlot() {
			return apperrors.Conflict("slot already taken", nil)
		}
	}

	now := s.now()
	appointment.ID = s.id()
	appointment.CreatedAt = now
	appointment.UpdatedAt = now
	stored := *appointment
	s.appointments[appointment.ID] = &stored
	return nil
}

// detail assumes the lock is held
func (s *Store) detail(a *model.Appointment) model.AppointmentDetail {
	patient := s.patients[a.PatientID]
	prof := s.professionals[a.ProfessionalID]
	d := model.AppointmentDetail{
		Appointment:           *a,
		PatientName:           s.identities[patient.IdentityID].Name,
		PatientRecordNumber:   patient.RecordNumber,
		PatientIdentityID:     patient.IdentityID,
		ProfessionalName:      s.identities[prof.IdentityID].Name,
		ProfessionalSpecialty: prof.Specialty,
	}
	if a.FacilityID != nil {
		name := s.facilities[*a.FacilityID]
		d.FacilityName = &name
	}
	return d
}

func (r *appointmentRepo) Get(_ context.Context, id int64) (*model.AppointmentDetail, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.appointments[id]
	if !ok {
		return nil, apperrors.NotFound("appointment", nil)
	}
	d := r.s.detail(a)
	return &d, nil
}

func (r *appointmentRepo) List(_ context.Context, filter model.AppointmentFilter) ([]model.AppointmentDetail, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var from, to time.Time
	if filter.DateFrom != "" {
		from, _ = time.Parse(time.DateOnly, filter.DateFrom)
	}
	if filter.DateTo != "" {
		to, _ = time.Parse(time.DateOnly, filter.DateTo)
		to = to.AddDate(0, 0, 1)
	}

	var matched []model.AppointmentDetail
	for _, a := range r.s.appointments {
		switch {
		case filter.PatientID != 0 && a.PatientID != filter.PatientID,
			filter.ProfessionalID != 0 && a.ProfessionalID != filter.ProfessionalID,
			filter.Status != "" && a.Status != filter.Status,
			filter.Modality != "" && a.Modality != filter.Modality,
			!from.IsZero() && a.ScheduledAt.Before(from),
			!to.IsZero() && !a.ScheduledAt.Before(to):
			continue
		}
		matched = append(matched, r.s.detail(a))
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].ScheduledAt.Equal(matched[j].ScheduledAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].ScheduledAt.After(matched[j].ScheduledAt)
	})
	return paginate(matched, filter.PageRequest), len(matched), nil
}

func (r *appointmentRepo) UpdateStatus(_ context.Context, id int64, status model.AppointmentStatus, notes *string, guard repository.StatusGuard) (*model.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.appointments[id]
	if !ok {
		return nil, apperrors.NotFound("appointment", nil)
	}
	if guard != nil {
		if err := guard(a.Status); err != nil {
			return nil, err
		}
	}
	a.Status = status
	if notes != nil {
		a.Notes = appendNote(a.Notes, *notes)
	}
	a.UpdatedAt = r.s.now()
	cp := *a
	return &cp, nil
}

func (r *appointmentRepo) Cancel(_ context.Context, id int64, note string) (*model.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.appointments[id]
	if !ok {
		return nil, apperrors.NotFound("appointment", nil)
	}
	if !a.Status.Cancellable() {
		return nil, apperrors.Conflict(fmt.Sprintf("appointment in status %s cannot be cancelled", a.Status), nil)
	}
	a.Status = model.AppointmentStatusCancelled
	a.Notes = appendNote(a.Notes, note)
	a.UpdatedAt = r.s.now()
	cp := *a
	return &cp, nil
}

// appendNote joins notes the way the Postgres store does
func appendNote(existing *string, note string) *string {
	if existing == nil || *existing == "" {
		return &note
	}
	joined := *existing + " | " + note
	return &joined
}

func (r *appointmentRepo) BookedSlots(_ context.Context, professionalID int64, day time.Time) ([]model.BookedSlot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	y, m, d := day.Date()
	var occupied []*model.Appointment
	for _, a := range r.s.appointments {
		ay, am, ad := a.ScheduledAt.Date()
		if a.ProfessionalID == professionalID && ay == y && am == m && ad == d && a.Status.OccupiesSlot() {
			occupied = append(occupied, a)
		}
	}
	sort.Slice(occupied, func(i, j int) bool { return occupied[i].ScheduledAt.Before(occupied[j].ScheduledAt) })

	slots := []model.BookedSlot{}
	for _, a := range occupied {
		slots = append(slots, model.BookedSlot{Time: a.ScheduledAt.Format("15:04"), Duration: a.DurationMinutes})
	}
	return slots, nil
}

type auditRepo struct{ s *Store }

func (r *auditRepo) Create(_ context.Context, record *model.AuditRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	record.ID = r.s.id()
	record.CreatedAt = r.s.now()
	r.s.audit = append(r.s.audit, *record)
	return nil
}

func paginate[T any](items []T, page model.PageRequest) []T {
	page.Normalize()
	start := page.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + page.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
