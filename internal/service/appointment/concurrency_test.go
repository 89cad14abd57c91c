package appointment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/lock"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

// memoryStore is an AppointmentRepository that keeps rows in a map and
// applies the same updated_at check as the postgres store.
type memoryStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]model.Appointment
	// Optional hook run at the start of each Update, outside the mutex
	beforeUpdate func()
}

func newMemoryStore() *memoryStore {
	return &memoryStore{rows: make(map[uuid.UUID]model.Appointment)}
}

func (s *memoryStore) Create(_ context.Context, apt *model.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if apt.ID == uuid.Nil {
		apt.ID = uuid.New()
	}
	apt.CreatedAt = time.Now().UTC()
	apt.UpdatedAt = apt.CreatedAt
	s.rows[apt.ID] = *apt
	return nil
}

func (s *memoryStore) Get(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return nil, apperrors.NotFound("appointment", nil)
	}
	return &row, nil
}

func (s *memoryStore) Update(_ context.Context, apt *model.Appointment) error {
	if s.beforeUpdate != nil {
		s.beforeUpdate()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[apt.ID]
	if !ok {
		return apperrors.NotFound("appointment", nil)
	}
	if !row.UpdatedAt.Equal(apt.UpdatedAt) {
		return apperrors.Conflict("Appointment was modified by another request, reload and retry")
	}
	apt.UpdatedAt = row.UpdatedAt.Add(time.Microsecond)
	s.rows[apt.ID] = *apt
	return nil
}

func (s *memoryStore) UpdateStatus(_ context.Context, id uuid.UUID, status model.AppointmentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return apperrors.NotFound("appointment", nil)
	}
	row.Status = status
	row.UpdatedAt = row.UpdatedAt.Add(time.Microsecond)
	s.rows[id] = row
	return nil
}

func (s *memoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

func (s *memoryStore) List(context.Context, *model.AppointmentFilters) ([]*model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Appointment, 0, len(s.rows))
	for _, row := range s.rows {
		row := row
		out = append(out, &row)
	}
	return out, nil
}

func (s *memoryStore) ListByDoctor(_ context.Context, doctorID uuid.UUID, excludeID *uuid.UUID) ([]*model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Appointment
	for _, row := range s.rows {
		if row.DoctorID != doctorID || (excludeID != nil && row.ID == *excludeID) {
			continue
		}
		row := row
		out = append(out, &row)
	}
	return out, nil
}

func (s *memoryStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func newStoreBackedService(t *testing.T, store *memoryStore, doctorID uuid.UUID) Service {
	t.Helper()
	doctors := new(MockDoctorService)
	doctors.On("GetDoctor", mock.Anything, doctorID).
		Return(&model.Doctor{Base: model.Base{ID: doctorID}, Name: "Dr. Baker", Active: true}, nil)
	publisher := new(MockPublisher)
	publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	return NewService(store, doctors, lock.NewMemoryLocker(), publisher,
		metrics.NewMetrics(prometheus.NewRegistry(), "test"), nil, Config{
			LockTTL:         5 * time.Second,
			LockWait:        5 * time.Second,
			BreakerTimeout:  time.Minute,
			BreakerFailures: 5,
		})
}

func TestCreateAppointment_ConcurrentRequestsForSameSlot(t *testing.T) {
	const attempts = 8

	store := newMemoryStore()
	doctorID := uuid.New()
	svc := newStoreBackedService(t, store, doctorID)

	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make([]error, attempts)
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = svc.CreateAppointment(context.Background(), &model.CreateAppointmentRequest{
				PatientID:       uuid.New(),
				DoctorID:        doctorID,
				Date:            "2024-05-01",
				Time:            "09:00",
				DurationMinutes: 30,
			})
		}(i)
	}
	close(start)
	wg.Wait()

	var created, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			created++
		case apperrors.Is(err, apperrors.ErrConflict):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, attempts-1, conflicts)
	assert.Equal(t, 1, store.count())
}

func TestUpdateAppointment_ConcurrentEditIsNotLost(t *testing.T) {
	store := newMemoryStore()
	doctorID := uuid.New()
	svc := newStoreBackedService(t, store, doctorID)

	apt, err := svc.CreateAppointment(context.Background(), &model.CreateAppointmentRequest{
		PatientID: uuid.New(),
		DoctorID:  doctorID,
		Date:      "2024-05-01",
		Time:      "09:00",
	})
	require.NoError(t, err)

	// another writer confirms the appointment after this request read it
	var once sync.Once
	store.beforeUpdate = func() {
		once.Do(func() {
			require.NoError(t, store.UpdateStatus(context.Background(), apt.ID, model.AppointmentStatusConfirmed))
		})
	}

	notes := "bring x-rays"
	_, err = svc.UpdateAppointment(context.Background(), apt.ID, &model.UpdateAppointmentRequest{Notes: &notes})
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))

	stored, err := store.Get(context.Background(), apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusConfirmed, stored.Status)
	assert.Empty(t, stored.Notes)

	// a retry on fresh state goes through
	_, err = svc.UpdateAppointment(context.Background(), apt.ID, &model.UpdateAppointmentRequest{Notes: &notes})
	require.NoError(t, err)
	stored, err = store.Get(context.Background(), apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusConfirmed, stored.Status)
	assert.Equal(t, notes, stored.Notes)
}
