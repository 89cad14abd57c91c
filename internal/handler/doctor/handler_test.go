package doctor

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/jwalitptl/clinic-api/internal/model"
)

type MockDoctorService struct {
	mock.Mock
}

func (m *MockDoctorService) CreateDoctor(ctx context.Context, req *model.CreateDoctorRequest) (*model.Doctor, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Doctor), args.Error(1)
}

func (m *MockDoctorService) GetDoctor(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Doctor), args.Error(1)
}

func (m *MockDoctorService) ListDoctors(ctx context.Context, activeOnly bool) ([]*model.Doctor, error) {
	args := m.Called(ctx, activeOnly)
	return args.Get(0).([]*model.Doctor), args.Error(1)
}

func setupRouter(svc *MockDoctorService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func TestCreateDoctor(t *testing.T) {
	svc := new(MockDoctorService)
	r := setupRouter(svc)
	svc.On("CreateDoctor", mock.Anything, mock.MatchedBy(func(req *model.CreateDoctorRequest) bool {
		return req.Name == "Dr. Rivera"
	})).Return(&model.Doctor{Base: model.Base{ID: uuid.New()}, Name: "Dr. Rivera", Active: true}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/doctors",
		bytes.NewBufferString(`{"name":"Dr. Rivera","specialty":"orthodontics"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	svc.AssertExpectations(t)
}

func TestCreateDoctor_RejectsUnknownSpecialty(t *testing.T) {
	svc := new(MockDoctorService)
	r := setupRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/doctors",
		bytes.NewBufferString(`{"name":"Dr. Rivera","specialty":"cardiology"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "CreateDoctor", mock.Anything, mock.Anything)
}

func TestListDoctors_ActiveByDefault(t *testing.T) {
	svc := new(MockDoctorService)
	r := setupRouter(svc)
	svc.On("ListDoctors", mock.Anything, true).Return([]*model.Doctor{}, nil)
	svc.On("ListDoctors", mock.Anything, false).Return([]*model.Doctor{}, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/doctors", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/doctors?all=true", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	svc.AssertExpectations(t)
}
