package model

import (
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/pkg/schedule"
)

type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "pending"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusClosed    AppointmentStatus = "closed"
	AppointmentStatusNoShow    AppointmentStatus = "no-show"
)

func (s AppointmentStatus) IsValid() bool {
	switch s {
	case AppointmentStatusPending, AppointmentStatusConfirmed, AppointmentStatusCompleted,
		AppointmentStatusCancelled, AppointmentStatusClosed, AppointmentStatusNoShow:
		return true
	}
	return false
}

// IsActive reports whether the appointment still occupies the doctor's calendar.
func (s AppointmentStatus) IsActive() bool {
	return schedule.IsActiveStatus(string(s))
}

// Appointment keeps date and time as timezone-naive strings.
type Appointment struct {
	Base
	PatientID       uuid.UUID         `db:"patient_id" json:"patient_id"`
	DoctorID        uuid.UUID         `db:"doctor_id" json:"doctor_id"`
	Date            string            `db:"appointment_date" json:"date"`
	Time            string            `db:"start_time" json:"time"`
	DurationMinutes int               `db:"duration_minutes" json:"duration_minutes"`
	Status          AppointmentStatus `db:"status" json:"status"`
	Treatment       string            `db:"treatment" json:"treatment,omitempty"`
	Notes           string            `db:"notes" json:"notes,omitempty"`
}

// Slot converts the appointment to the validator's view of it.
func (a *Appointment) Slot() schedule.Slot {
	return schedule.Slot{
		ID:              a.ID.String(),
		DoctorID:        a.DoctorID.String(),
		Date:            a.Date,
		Time:            a.Time,
		DurationMinutes: a.DurationMinutes,
		Status:          string(a.Status),
	}
}

// Candidate describes the appointment as a proposed slot. Persisted
// appointments exclude themselves.
func (a *Appointment) Candidate() schedule.Candidate {
	c := schedule.Candidate{
		DoctorID:        a.DoctorID.String(),
		Date:            a.Date,
		Time:            a.Time,
		DurationMinutes: a.DurationMinutes,
	}
	if a.ID != uuid.Nil {
		c.ExcludeID = a.ID.String()
	}
	return c
}

type CreateAppointmentRequest struct {
	PatientID       uuid.UUID `json:"patient_id" binding:"required"`
	DoctorID        uuid.UUID `json:"doctor_id" binding:"required"`
	Date            string    `json:"date" binding:"required,dateonly"`
	Time            string    `json:"time" binding:"required,clocktime"`
	DurationMinutes int       `json:"duration_minutes" binding:"omitempty,min=1,max=480"`
	Treatment       string    `json:"treatment" binding:"max=200"`
	Notes           string    `json:"notes" binding:"max=1000"`
}

type UpdateAppointmentRequest struct {
	DoctorID        *uuid.UUID         `json:"doctor_id"`
	Date            *string            `json:"date" binding:"omitempty,dateonly"`
	Time            *string            `json:"time" binding:"omitempty,clocktime"`
	DurationMinutes *int               `json:"duration_minutes" binding:"omitempty,min=1,max=480"`
	Status          *AppointmentStatus `json:"status" binding:"omitempty,appointmentstatus"`
	Treatment       *string            `json:"treatment" binding:"omitempty,max=200"`
	Notes           *string            `json:"notes" binding:"omitempty,max=1000"`
}

type UpdateStatusRequest struct {
	Status AppointmentStatus `json:"status" binding:"required,appointmentstatus"`
}

// CheckAvailabilityRequest is a dry-run scheduling check.
type CheckAvailabilityRequest struct {
	DoctorID             uuid.UUID  `json:"doctor_id" binding:"required"`
	Date                 string     `json:"date" binding:"required,dateonly"`
	Time                 string     `json:"time" binding:"required,clocktime"`
	DurationMinutes      int        `json:"duration_minutes" binding:"omitempty,min=1,max=480"`
	ExcludeAppointmentID *uuid.UUID `json:"exclude_appointment_id"`
}

func (r *CheckAvailabilityRequest) Candidate() schedule.Candidate {
	c := schedule.Candidate{
		DoctorID:        r.DoctorID.String(),
		Date:            r.Date,
		Time:            r.Time,
		DurationMinutes: r.DurationMinutes,
	}
	if r.ExcludeAppointmentID != nil {
		c.ExcludeID = r.ExcludeAppointmentID.String()
	}
	return c
}

type AppointmentFilters struct {
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	Status    AppointmentStatus
	// inclusive YYYY-MM-DD bounds
	FromDate string
	ToDate   string
	Pagination
}
