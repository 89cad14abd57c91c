package schedule

import (
	"context"
	"fmt"

	"github.com/jwalitptl/clinic-api/pkg/logger"
)

// DefaultDurationMinutes applies to slots stored without a duration.
const DefaultDurationMinutes = 30

const (
	msgValidationFailed = "Error validating appointment scheduling"
	msgInvalidInput     = "Invalid appointment date or time"
)

// Statuses that no longer occupy the doctor's calendar. "no-show" is
// intentionally absent: a no-show slot still blocks.
var inactiveStatuses = map[string]struct{}{
	"cancelled": {},
	"closed":    {},
	"completed": {},
}

// IsActiveStatus reports whether an appointment in this status blocks its slot.
func IsActiveStatus(status string) bool {
	_, inactive := inactiveStatuses[status]
	return !inactive
}

// Slot is a persisted appointment as seen by the validator.
type Slot struct {
	ID              string
	DoctorID        string
	Date            string
	Time            string
	DurationMinutes int
	Status          string
}

// Candidate is the slot being proposed. ExcludeID names the appointment
// being edited so it never conflicts with its own stored state.
type Candidate struct {
	DoctorID        string
	Date            string
	Time            string
	DurationMinutes int
	ExcludeID       string
}

// ResultKind tells apart why a candidate was rejected.
type ResultKind string

const (
	KindNone           ResultKind = "none"
	KindConflict       ResultKind = "conflict"
	KindInfrastructure ResultKind = "infrastructure"
	KindInvalidInput   ResultKind = "invalid_input"
)

// Result is the outcome of a scheduling validation.
type Result struct {
	IsValid       bool       `json:"is_valid"`
	ConflictError string     `json:"conflict_error,omitempty"`
	Kind          ResultKind `json:"kind"`
	ConflictID    string     `json:"conflict_id,omitempty"`
}

// AppointmentFetcher returns every stored appointment of a doctor, optionally
// leaving out excludeID.
type AppointmentFetcher interface {
	FetchAppointmentsForDoctor(ctx context.Context, doctorID, excludeID string) ([]Slot, error)
}

// FetcherFunc adapts a function to AppointmentFetcher.
type FetcherFunc func(ctx context.Context, doctorID, excludeID string) ([]Slot, error)

func (f FetcherFunc) FetchAppointmentsForDoctor(ctx context.Context, doctorID, excludeID string) ([]Slot, error) {
	return f(ctx, doctorID, excludeID)
}

// Validator detects doctor calendar conflicts. It is advisory: two callers
// can both pass validation and then persist overlapping appointments unless
// persistence is serialized elsewhere.
type Validator struct {
	fetcher AppointmentFetcher
	logger  *logger.Logger
}

func NewValidator(fetcher AppointmentFetcher, log *logger.Logger) *Validator {
	if log == nil {
		log = logger.Nop()
	}
	return &Validator{fetcher: fetcher, logger: log}
}

// ValidateAppointmentScheduling checks the candidate against the doctor's
// active appointments and reports the first conflict found, in fetch order.
// Failures are folded into the returned Result.
func (v *Validator) ValidateAppointmentScheduling(ctx context.Context, c Candidate) Result {
	candidate, err := NewInterval(c.Date, c.Time, withDefaultDuration(c.DurationMinutes))
	if err != nil {
		v.logger.Warn("rejecting candidate with malformed date or time",
			"doctor_id", c.DoctorID, "date", c.Date, "time", c.Time, "error", err.Error())
		return Result{IsValid: false, ConflictError: msgInvalidInput, Kind: KindInvalidInput}
	}

	slots, err := v.fetcher.FetchAppointmentsForDoctor(ctx, c.DoctorID, c.ExcludeID)
	if err != nil {
		v.logger.Error(err, "failed to fetch doctor appointments", "doctor_id", c.DoctorID)
		return Result{IsValid: false, ConflictError: msgValidationFailed, Kind: KindInfrastructure}
	}

	for _, s := range slots {
		if !IsActiveStatus(s.Status) {
			continue
		}
		if c.ExcludeID != "" && s.ID == c.ExcludeID {
			continue
		}

		existing, err := NewInterval(s.Date, s.Time, withDefaultDuration(s.DurationMinutes))
		if err != nil {
			v.logger.Warn("skipping stored appointment with malformed date or time",
				"appointment_id", s.ID, "doctor_id", s.DoctorID, "error", err.Error())
			continue
		}

		if candidate.Overlaps(existing) {
			return Result{
				IsValid:       false,
				ConflictError: conflictMessage(s, existing, c, candidate),
				Kind:          KindConflict,
				ConflictID:    s.ID,
			}
		}
	}

	return Result{IsValid: true, Kind: KindNone}
}

func conflictMessage(s Slot, existing Interval, c Candidate, candidate Interval) string {
	_, existingEnd := FormatAbsoluteMinutes(existing.End)
	_, candidateEnd := FormatAbsoluteMinutes(candidate.End)
	return fmt.Sprintf(
		"Doctor has a conflicting appointment from %s to %s on %s. Your appointment would be from %s to %s on %s.",
		s.Time, existingEnd, s.Date, c.Time, candidateEnd, c.Date,
	)
}

func withDefaultDuration(minutes int) int {
	if minutes <= 0 {
		return DefaultDurationMinutes
	}
	return minutes
}
