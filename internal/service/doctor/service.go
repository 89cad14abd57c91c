package doctor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

type Service interface {
	CreateDoctor(ctx context.Context, req *model.CreateDoctorRequest) (*model.Doctor, error)
	GetDoctor(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
	ListDoctors(ctx context.Context, activeOnly bool) ([]*model.Doctor, error)
}

type service struct {
	repo    repository.DoctorRepository
	cache   *cache.Cache
	metrics *metrics.Metrics
}

// NewService returns a doctor service that caches lookups by ID for ttl.
func NewService(repo repository.DoctorRepository, ttl, cleanupInterval time.Duration, m *metrics.Metrics) Service {
	return &service{
		repo:    repo,
		cache:   cache.New(ttl, cleanupInterval),
		metrics: m,
	}
}

func (s *service) CreateDoctor(ctx context.Context, req *model.CreateDoctorRequest) (*model.Doctor, error) {
	doctor := &model.Doctor{
		Name:      req.Name,
		Specialty: req.Specialty,
		Email:     req.Email,
		Active:    true,
	}
	if err := s.repo.Create(ctx, doctor); err != nil {
		return nil, fmt.Errorf("failed to create doctor: %w", err)
	}
	s.cache.SetDefault(doctor.ID.String(), doctor)
	return doctor, nil
}

func (s *service) GetDoctor(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	key := id.String()
	if cached, found := s.cache.Get(key); found {
		s.recordLookup("hit")
		d := *cached.(*model.Doctor)
		return &d, nil
	}
	s.recordLookup("miss")

	doctor, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(key, doctor)

	d := *doctor
	return &d, nil
}

func (s *service) ListDoctors(ctx context.Context, activeOnly bool) ([]*model.Doctor, error) {
	doctors, err := s.repo.List(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list doctors: %w", err)
	}
	return doctors, nil
}

func (s *service) recordLookup(outcome string) {
	if s.metrics != nil {
		s.metrics.CacheLookups.WithLabelValues("doctor", outcome).Inc()
	}
}
