package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/pkg/circuitbreaker"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	"github.com/jwalitptl/clinic-api/pkg/schedule"
)

// repositoryFetcher feeds the validator from the appointment store through
// the circuit breaker.
type repositoryFetcher struct {
	repo    repository.AppointmentRepository
	breaker *circuitbreaker.CircuitBreaker
	metrics *metrics.Metrics
}

func newRepositoryFetcher(repo repository.AppointmentRepository, breaker *circuitbreaker.CircuitBreaker, m *metrics.Metrics) *repositoryFetcher {
	return &repositoryFetcher{repo: repo, breaker: breaker, metrics: m}
}

func (f *repositoryFetcher) FetchAppointmentsForDoctor(ctx context.Context, doctorID, excludeID string) ([]schedule.Slot, error) {
	id, err := uuid.Parse(doctorID)
	if err != nil {
		return nil, fmt.Errorf("invalid doctor id %q: %w", doctorID, err)
	}

	var exclude *uuid.UUID
	if excludeID != "" {
		parsed, err := uuid.Parse(excludeID)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude id %q: %w", excludeID, err)
		}
		exclude = &parsed
	}

	start := time.Now()
	var slots []schedule.Slot
	err = f.breaker.Execute(func() error {
		appointments, err := f.repo.ListByDoctor(ctx, id, exclude)
		if err != nil {
			return err
		}
		slots = make([]schedule.Slot, 0, len(appointments))
		for _, apt := range appointments {
			slots = append(slots, apt.Slot())
		}
		return nil
	})
	f.metrics.ObserveDB("list_by_doctor", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch doctor appointments: %w", err)
	}
	return slots, nil
}
