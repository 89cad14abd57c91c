package doctor

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

type MockDoctorRepository struct {
	mock.Mock
}

func (m *MockDoctorRepository) Create(ctx context.Context, doctor *model.Doctor) error {
	args := m.Called(ctx, doctor)
	doctor.ID = uuid.New()
	return args.Error(0)
}

func (m *MockDoctorRepository) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Doctor), args.Error(1)
}

func (m *MockDoctorRepository) List(ctx context.Context, activeOnly bool) ([]*model.Doctor, error) {
	args := m.Called(ctx, activeOnly)
	return args.Get(0).([]*model.Doctor), args.Error(1)
}

func TestGetDoctor_CachesLookups(t *testing.T) {
	repo := new(MockDoctorRepository)
	m := metrics.NewMetrics(prometheus.NewRegistry(), "test")
	svc := NewService(repo, time.Minute, time.Minute, m)

	id := uuid.New()
	repo.On("Get", mock.Anything, id).Return(&model.Doctor{Base: model.Base{ID: id}, Name: "Dr. Adams", Active: true}, nil).Once()

	first, err := svc.GetDoctor(context.Background(), id)
	require.NoError(t, err)
	second, err := svc.GetDoctor(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	repo.AssertNumberOfCalls(t, "Get", 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("doctor", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("doctor", "miss")))
}

func TestGetDoctor_NotFoundIsNotCached(t *testing.T) {
	repo := new(MockDoctorRepository)
	svc := NewService(repo, time.Minute, time.Minute, nil)

	id := uuid.New()
	repo.On("Get", mock.Anything, id).Return(nil, apperrors.NotFound("doctor", nil)).Twice()

	_, err := svc.GetDoctor(context.Background(), id)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	_, err = svc.GetDoctor(context.Background(), id)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	repo.AssertExpectations(t)
}

func TestCreateDoctor_StartsActiveAndIsCached(t *testing.T) {
	repo := new(MockDoctorRepository)
	svc := NewService(repo, time.Minute, time.Minute, nil)

	repo.On("Create", mock.Anything, mock.MatchedBy(func(d *model.Doctor) bool {
		return d.Name == "Dr. Rivera" && d.Active
	})).Return(nil)

	doctor, err := svc.CreateDoctor(context.Background(), &model.CreateDoctorRequest{Name: "Dr. Rivera"})
	require.NoError(t, err)

	got, err := svc.GetDoctor(context.Background(), doctor.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dr. Rivera", got.Name)
	repo.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}
