package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/doctor"
	"github.com/jwalitptl/clinic-api/pkg/circuitbreaker"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/lock"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	"github.com/jwalitptl/clinic-api/pkg/schedule"
)

// Event types published on the appointments channel
const (
	EventCreated       = "appointment.created"
	EventUpdated       = "appointment.updated"
	EventStatusChanged = "appointment.status_changed"
	EventDeleted       = "appointment.deleted"
)

var tracer = otel.Tracer("github.com/jwalitptl/clinic-api/internal/service/appointment")

type Service interface {
	CreateAppointment(ctx context.Context, req *model.CreateAppointmentRequest) (*model.Appointment, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
	ListAppointments(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error)
	UpdateAppointment(ctx context.Context, id uuid.UUID, req *model.UpdateAppointmentRequest) (*model.Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.AppointmentStatus) (*model.Appointment, error)
	DeleteAppointment(ctx context.Context, id uuid.UUID) error
	CheckAvailability(ctx context.Context, req *model.CheckAvailabilityRequest) (schedule.Result, error)
}

type Config struct {
	LockTTL         time.Duration
	LockWait        time.Duration
	BreakerTimeout  time.Duration
	BreakerFailures uint32
}

type service struct {
	repo      repository.AppointmentRepository
	doctors   doctor.Service
	validator *schedule.Validator
	locker    lock.Locker
	publisher messaging.Publisher
	metrics   *metrics.Metrics
	logger    *logger.Logger
	cfg       Config
}

func NewService(
	repo repository.AppointmentRepository,
	doctors doctor.Service,
	locker lock.Locker,
	publisher messaging.Publisher,
	m *metrics.Metrics,
	log *logger.Logger,
	cfg Config,
) Service {
	if log == nil {
		log = logger.Nop()
	}
	if publisher == nil {
		publisher = messaging.NopPublisher{}
	}
	log = log.With("component", "appointment-service")

	breaker := circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
		Name:        "appointment-store",
		MaxFailures: cfg.BreakerFailures,
		Timeout:     cfg.BreakerTimeout,
	}, log)

	return &service{
		repo:      repo,
		doctors:   doctors,
		validator: schedule.NewValidator(newRepositoryFetcher(repo, breaker, m), log),
		locker:    locker,
		publisher: publisher,
		metrics:   m,
		logger:    log,
		cfg:       cfg,
	}
}

func (s *service) CreateAppointment(ctx context.Context, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	if err := s.requireActiveDoctor(ctx, req.DoctorID); err != nil {
		return nil, err
	}

	apt := &model.Appointment{
		PatientID:       req.PatientID,
		DoctorID:        req.DoctorID,
		Date:            req.Date,
		Time:            req.Time,
		DurationMinutes: withDefaultDuration(req.DurationMinutes),
		Status:          model.AppointmentStatusPending,
		Treatment:       req.Treatment,
		Notes:           req.Notes,
	}

	err := s.withDoctorLock(ctx, apt.DoctorID, func() error {
		if err := s.validate(ctx, apt.Candidate()); err != nil {
			return err
		}
		return s.observeDB("create_appointment", func() error {
			return s.repo.Create(ctx, apt)
		})
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, EventCreated, apt)
	return apt, nil
}

func (s *service) GetAppointment(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	var apt *model.Appointment
	err := s.observeDB("get_appointment", func() (err error) {
		apt, err = s.repo.Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return apt, nil
}

func (s *service) ListAppointments(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	var appointments []*model.Appointment
	err := s.observeDB("list_appointments", func() (err error) {
		appointments, err = s.repo.List(ctx, filters)
		return err
	})
	if err != nil {
		return nil, err
	}
	return appointments, nil
}

func (s *service) UpdateAppointment(ctx context.Context, id uuid.UUID, req *model.UpdateAppointmentRequest) (*model.Appointment, error) {
	apt, err := s.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.DoctorID != nil && *req.DoctorID != apt.DoctorID {
		if err := s.requireActiveDoctor(ctx, *req.DoctorID); err != nil {
			return nil, err
		}
		apt.DoctorID = *req.DoctorID
	}
	if req.Date != nil {
		apt.Date = *req.Date
	}
	if req.Time != nil {
		apt.Time = *req.Time
	}
	if req.DurationMinutes != nil {
		apt.DurationMinutes = withDefaultDuration(*req.DurationMinutes)
	}
	if req.Status != nil {
		if !req.Status.IsValid() {
			return nil, apperrors.BadRequest(fmt.Sprintf("invalid appointment status %q", *req.Status), nil)
		}
		apt.Status = *req.Status
	}
	if req.Treatment != nil {
		apt.Treatment = *req.Treatment
	}
	if req.Notes != nil {
		apt.Notes = *req.Notes
	}

	persist := func() error {
		return s.observeDB("update_appointment", func() error {
			return s.repo.Update(ctx, apt)
		})
	}

	if apt.Status.IsActive() {
		err = s.withDoctorLock(ctx, apt.DoctorID, func() error {
			if err := s.validate(ctx, apt.Candidate()); err != nil {
				return err
			}
			return persist()
		})
	} else {
		err = persist()
	}
	if err != nil {
		return nil, err
	}

	s.publish(ctx, EventUpdated, apt)
	return apt, nil
}

func (s *service) UpdateStatus(ctx context.Context, id uuid.UUID, status model.AppointmentStatus) (*model.Appointment, error) {
	if !status.IsValid() {
		return nil, apperrors.BadRequest(fmt.Sprintf("invalid appointment status %q", status), nil)
	}

	apt, err := s.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if apt.Status == status {
		return apt, nil
	}

	reactivating := !apt.Status.IsActive() && status.IsActive()
	apt.Status = status

	persist := func() error {
		return s.observeDB("update_appointment_status", func() error {
			return s.repo.UpdateStatus(ctx, id, status)
		})
	}

	// a terminal appointment may have lost its slot in the meantime
	if reactivating {
		err = s.withDoctorLock(ctx, apt.DoctorID, func() error {
			if err := s.validate(ctx, apt.Candidate()); err != nil {
				return err
			}
			return persist()
		})
	} else {
		err = persist()
	}
	if err != nil {
		return nil, err
	}

	s.publish(ctx, EventStatusChanged, apt)
	return apt, nil
}

func (s *service) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	apt, err := s.GetAppointment(ctx, id)
	if err != nil {
		return err
	}

	err = s.observeDB("delete_appointment", func() error {
		return s.repo.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.publish(ctx, EventDeleted, apt)
	return nil
}

func (s *service) CheckAvailability(ctx context.Context, req *model.CheckAvailabilityRequest) (schedule.Result, error) {
	if _, err := s.doctors.GetDoctor(ctx, req.DoctorID); err != nil {
		return schedule.Result{}, err
	}
	return s.runValidator(ctx, req.Candidate()), nil
}

func (s *service) requireActiveDoctor(ctx context.Context, doctorID uuid.UUID) error {
	d, err := s.doctors.GetDoctor(ctx, doctorID)
	if err != nil {
		return err
	}
	if !d.Active {
		return apperrors.BadRequest("doctor is not accepting appointments", nil)
	}
	return nil
}

// validate turns a rejected candidate into an AppError. Infrastructure
// failures map to Conflict like real conflicts; Kind tells them apart in
// logs and metrics.
func (s *service) validate(ctx context.Context, c schedule.Candidate) error {
	res := s.runValidator(ctx, c)
	if res.IsValid {
		return nil
	}
	if res.Kind == schedule.KindInvalidInput {
		return apperrors.BadRequest(res.ConflictError, nil)
	}
	return apperrors.Conflict(res.ConflictError)
}

func (s *service) runValidator(ctx context.Context, c schedule.Candidate) schedule.Result {
	ctx, span := tracer.Start(ctx, "appointment.validate")
	defer span.End()

	timer := prometheus.NewTimer(s.metrics.ValidationDuration)
	res := s.validator.ValidateAppointmentScheduling(ctx, c)
	timer.ObserveDuration()

	s.metrics.ValidationsTotal.WithLabelValues(string(res.Kind)).Inc()
	span.SetAttributes(
		attribute.String("doctor_id", c.DoctorID),
		attribute.String("validation.result", string(res.Kind)),
	)
	if !res.IsValid {
		s.logger.Info("appointment rejected",
			"request_id", logger.RequestIDFromContext(ctx),
			"doctor_id", c.DoctorID, "date", c.Date, "time", c.Time,
			"kind", string(res.Kind), "conflict_id", res.ConflictID)
	}
	return res
}

func (s *service) withDoctorLock(ctx context.Context, doctorID uuid.UUID, fn func() error) error {
	release, err := s.locker.Acquire(ctx, "doctor:"+doctorID.String(), s.cfg.LockTTL, s.cfg.LockWait)
	if errors.Is(err, lock.ErrNotAcquired) {
		return apperrors.Unavailable("doctor schedule is busy, please retry", err)
	}
	if err != nil {
		return fmt.Errorf("failed to lock doctor schedule: %w", err)
	}
	defer release()
	return fn()
}

func (s *service) observeDB(operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	s.metrics.ObserveDB(operation, time.Since(start).Seconds(), err)
	return err
}

func (s *service) publish(ctx context.Context, eventType string, apt *model.Appointment) {
	status := "success"
	if err := s.publisher.Publish(ctx, eventType, apt); err != nil {
		status = "error"
		s.logger.Error(err, "failed to publish appointment event",
			"request_id", logger.RequestIDFromContext(ctx),
			"event_type", eventType, "appointment_id", apt.ID.String())
	}
	s.metrics.EventsPublished.WithLabelValues(eventType, status).Inc()
}

func withDefaultDuration(minutes int) int {
	if minutes <= 0 {
		return schedule.DefaultDurationMinutes
	}
	return minutes
}
