package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/internal/repository/postgres"
	"github.com/jwalitptl/clinic-api/internal/service/appointment"
	"github.com/jwalitptl/clinic-api/internal/service/doctor"
	"github.com/jwalitptl/clinic-api/pkg/lock"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
	"github.com/jwalitptl/clinic-api/pkg/messaging/redis"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

const lockPrefix = "clinic:lock:"

// app holds everything the subcommands share. Fields that a command does not
// need stay nil.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	db      *sqlx.DB
	redis   *goredis.Client
	broker  messaging.Broker
	metrics *metrics.Metrics

	appointments appointment.Service
	doctors      doctor.Service
}

func loadApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		JSON:       cfg.Log.JSON,
	})

	return &app{cfg: cfg, log: log}, nil
}

func (a *app) openDB() error {
	db, err := postgres.NewDB(a.cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	a.db = db
	return nil
}

// openBroker connects to Redis when it is configured. Without Redis the
// service runs single-instance with an in-process lock and no events.
func (a *app) openBroker() error {
	if !a.cfg.Redis.Enabled() {
		a.log.Warn("redis not configured, using in-process lock and no event publishing")
		return nil
	}

	client, err := redis.NewClient(a.cfg.Redis)
	if err != nil {
		return err
	}
	broker, err := redis.NewRedisBroker(client, a.log)
	if err != nil {
		client.Close()
		return err
	}
	a.redis = client
	a.broker = broker
	return nil
}

// buildServices wires repositories, cache, lock and publisher into the
// domain services. openDB must have been called first.
func (a *app) buildServices(reg prometheus.Registerer) {
	a.metrics = metrics.NewMetrics(reg, a.cfg.Scheduling.MetricsPrefix)

	appointmentRepo := postgres.NewAppointmentRepository(a.db)
	doctorRepo := postgres.NewDoctorRepository(a.db)

	a.doctors = doctor.NewService(doctorRepo, a.cfg.Cache.DoctorTTL, a.cfg.Cache.CleanupInterval, a.metrics)

	var locker lock.Locker = lock.NewMemoryLocker()
	var publisher messaging.Publisher = messaging.NopPublisher{}
	if a.redis != nil {
		locker = lock.NewRedisLocker(a.redis, lockPrefix, a.log)
		publisher = messaging.NewChannelPublisher(a.broker, a.cfg.Redis.EventsChannel)
	}

	a.appointments = appointment.NewService(
		appointmentRepo,
		a.doctors,
		locker,
		publisher,
		a.metrics,
		a.log,
		appointment.Config{
			LockTTL:         a.cfg.Scheduling.LockTTL,
			LockWait:        a.cfg.Scheduling.LockWait,
			BreakerTimeout:  a.cfg.Scheduling.BreakerTimeout,
			BreakerFailures: a.cfg.Scheduling.BreakerFailures,
		},
	)
}

func (a *app) close() {
	if a.broker != nil {
		if err := a.broker.Close(); err != nil {
			a.log.Error(err, "failed to close broker")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Error(err, "failed to close database")
		}
	}
}

func (a *app) redisPing(ctx context.Context) error {
	return a.redis.Ping(ctx).Err()
}
