package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

const appointmentColumns = `id, patient_id, doctor_id, appointment_date, start_time,
			   duration_minutes, status, treatment, notes, created_at, updated_at`

type appointmentRepository struct {
	BaseRepository
}

func NewAppointmentRepository(db *sqlx.DB) repository.AppointmentRepository {
	return &appointmentRepository{NewBaseRepository(db)}
}

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, patient_id, doctor_id, appointment_date, start_time,
			duration_minutes, status, treatment, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}
	ts := now()
	appointment.CreatedAt = ts
	appointment.UpdatedAt = ts

	_, err := r.db.ExecContext(ctx, query,
		appointment.ID,
		appointment.PatientID,
		appointment.DoctorID,
		appointment.Date,
		appointment.Time,
		appointment.DurationMinutes,
		appointment.Status,
		appointment.Treatment,
		appointment.Notes,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE id = $1
	`
	var appointment model.Appointment
	err := r.db.GetContext(ctx, &appointment, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("appointment", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &appointment, nil
}

// Update writes every mutable column. appointment.UpdatedAt must hold the
// value read from the store; a row changed since then is not overwritten and
// Conflict is returned.
func (r *appointmentRepository) Update(ctx context.Context, appointment *model.Appointment) error {
	query := `
		UPDATE appointments
		SET doctor_id = $1, appointment_date = $2, start_time = $3, duration_minutes = $4,
			status = $5, treatment = $6, notes = $7, updated_at = $8
		WHERE id = $9 AND updated_at = $10
	`
	updatedAt := now()

	result, err := r.db.ExecContext(ctx, query,
		appointment.DoctorID,
		appointment.Date,
		appointment.Time,
		appointment.DurationMinutes,
		appointment.Status,
		appointment.Treatment,
		appointment.Notes,
		updatedAt,
		appointment.ID,
		appointment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return r.staleOrMissing(ctx, appointment.ID)
	}

	appointment.UpdatedAt = updatedAt
	return nil
}

func (r *appointmentRepository) staleOrMissing(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)`, id); err != nil {
		return fmt.Errorf("failed to check appointment: %w", err)
	}
	if !exists {
		return apperrors.NotFound("appointment", nil)
	}
	return apperrors.Conflict("Appointment was modified by another request, reload and retry")
}

func (r *appointmentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.AppointmentStatus) error {
	query := `
		UPDATE appointments
		SET status = $1, updated_at = $2
		WHERE id = $3
	`
	result, err := r.db.ExecContext(ctx, query, status, now(), id)
	if err != nil {
		return fmt.Errorf("failed to update appointment status: %w", err)
	}
	return requireAffected(result, "appointment")
}

func (r *appointmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `
		DELETE FROM appointments
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}
	return requireAffected(result, "appointment")
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	if filters == nil {
		filters = &model.AppointmentFilters{}
	}
	filters.Normalize()

	where := goqu.Ex{}
	if filters.DoctorID != uuid.Nil {
		where["doctor_id"] = filters.DoctorID.String()
	}
	if filters.PatientID != uuid.Nil {
		where["patient_id"] = filters.PatientID.String()
	}
	if filters.Status != "" {
		where["status"] = string(filters.Status)
	}

	ds := r.dialect.From("appointments").
		Prepared(true).
		Select(
			"id", "patient_id", "doctor_id", "appointment_date", "start_time",
			"duration_minutes", "status", "treatment", "notes", "created_at", "updated_at",
		).
		Where(where)

	if filters.FromDate != "" {
		ds = ds.Where(goqu.C("appointment_date").Gte(filters.FromDate))
	}
	if filters.ToDate != "" {
		ds = ds.Where(goqu.C("appointment_date").Lte(filters.ToDate))
	}

	ds = ds.Order(goqu.C("appointment_date").Asc(), goqu.C("start_time").Asc()).
		Limit(uint(filters.PageSize)).
		Offset(uint(filters.Offset()))

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build list query: %w", err)
	}

	var appointments []*model.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID, excludeID *uuid.UUID) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE doctor_id = $1
	`
	args := []interface{}{doctorID}

	if excludeID != nil {
		query += " AND id <> $2"
		args = append(args, *excludeID)
	}

	query += " ORDER BY appointment_date ASC, start_time ASC"

	var appointments []*model.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list doctor appointments: %w", err)
	}
	return appointments, nil
}

func requireAffected(result sql.Result, resource string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound(resource, nil)
	}
	return nil
}

// now matches the microsecond precision of TIMESTAMPTZ so values read back
// compare equal to the ones written.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
