package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

func setupMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return sqlx.NewDb(mockDB, "postgres"), mock
}

var appointmentRowColumns = []string{
	"id", "patient_id", "doctor_id", "appointment_date", "start_time",
	"duration_minutes", "status", "treatment", "notes", "created_at", "updated_at",
}

func TestAppointmentRepository_Create(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewAppointmentRepository(db)

	apt := &model.Appointment{
		PatientID:       uuid.New(),
		DoctorID:        uuid.New(),
		Date:            "2024-05-01",
		Time:            "09:00",
		DurationMinutes: 30,
		Status:          model.AppointmentStatusPending,
	}

	mock.ExpectExec("INSERT INTO appointments").
		WithArgs(sqlmock.AnyArg(), apt.PatientID, apt.DoctorID, "2024-05-01", "09:00", 30,
			model.AppointmentStatusPending, "", "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Create(context.Background(), apt))
	assert.NotEqual(t, uuid.Nil, apt.ID)
	assert.False(t, apt.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepository_GetNotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewAppointmentRepository(db)
	id := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM appointments WHERE id = \\$1").
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), id)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepository_Get(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewAppointmentRepository(db)
	id, patientID, doctorID := uuid.New(), uuid.New(), uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT (.+) FROM appointments WHERE id = \\$1").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(appointmentRowColumns).
			AddRow(id.String(), patientID.String(), doctorID.String(), "2024-05-01", "09:00",
				45, "confirmed", "cleaning", "", now, now))

	apt, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, apt.ID)
	assert.Equal(t, doctorID, apt.DoctorID)
	assert.Equal(t, 45, apt.DurationMinutes)
	assert.Equal(t, model.AppointmentStatusConfirmed, apt.Status)
}

func TestAppointmentRepository_UpdateStatusMissingRow(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewAppointmentRepository(db)
	id := uuid.New()

	mock.ExpectExec("UPDATE appointments").
		WithArgs(model.AppointmentStatusCancelled, sqlmock.AnyArg(), id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), id, model.AppointmentStatusCancelled)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestAppointmentRepository_Delete(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewAppointmentRepository(db)
	id := uuid.New()

	mock.ExpectExec("DELETE FROM appointments").
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.Delete(context.Background(), id))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepository_ListByDoctorExcludes(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewAppointmentRepository(db)
	doctorID, excludeID := uuid.New(), uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery("WHERE doctor_id = \\$1\\s+AND id <> \\$2 ORDER BY appointment_date ASC, start_time ASC").
		WithArgs(doctorID, excludeID).
		WillReturnRows(sqlmock.NewRows(appointmentRowColumns).
			AddRow(uuid.NewString(), uuid.NewString(), doctorID.String(), "2024-05-01", "09:00",
				30, "pending", "", "", now, now).
			AddRow(uuid.NewString(), uuid.NewString(), doctorID.String(), "2024-05-01", "10:00",
				0, "no-show", "", "", now, now))

	appointments, err := repo.ListByDoctor(context.Background(), doctorID, &excludeID)
	require.NoError(t, err)
	require.Len(t, appointments, 2)
	assert.Equal(t, "09:00", appointments[0].Time)
	assert.Equal(t, model.AppointmentStatusNoShow, appointments[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepository_List(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewAppointmentRepository(db)

	mock.ExpectQuery(`SELECT (.+) FROM "appointments" WHERE (.+) ORDER BY "appointment_date" ASC, "start_time" ASC`).
		WillReturnRows(sqlmock.NewRows(appointmentRowColumns))

	appointments, err := repo.List(context.Background(), &model.AppointmentFilters{
		DoctorID: uuid.New(),
		FromDate: "2024-05-01",
		ToDate:   "2024-05-31",
	})
	require.NoError(t, err)
	assert.Empty(t, appointments)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func updatedAppointment() *model.Appointment {
	return &model.Appointment{
		Base:            model.Base{ID: uuid.New(), UpdatedAt: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)},
		PatientID:       uuid.New(),
		DoctorID:        uuid.New(),
		Date:            "2024-05-01",
		Time:            "10:00",
		DurationMinutes: 30,
		Status:          model.AppointmentStatusConfirmed,
	}
}

func TestAppointmentRepository_Update(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewAppointmentRepository(db)
	apt := updatedAppointment()
	readAt := apt.UpdatedAt

	mock.ExpectExec("UPDATE appointments (.+) WHERE id = \\$9 AND updated_at = \\$10").
		WithArgs(apt.DoctorID, "2024-05-01", "10:00", 30, model.AppointmentStatusConfirmed, "", "",
			sqlmock.AnyArg(), apt.ID, readAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Update(context.Background(), apt))
	assert.True(t, apt.UpdatedAt.After(readAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepository_UpdateStaleRow(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewAppointmentRepository(db)
	apt := updatedAppointment()
	readAt := apt.UpdatedAt

	mock.ExpectExec("UPDATE appointments").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(apt.ID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := repo.Update(context.Background(), apt)
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
	assert.Equal(t, readAt, apt.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepository_UpdateMissingRow(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewAppointmentRepository(db)
	apt := updatedAppointment()

	mock.ExpectExec("UPDATE appointments").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(apt.ID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err := repo.Update(context.Background(), apt)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}
