package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/clinic-api/pkg/messaging"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

// eventsCmd tails the appointment events channel until interrupted.
func eventsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Tail appointment events from Redis",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			if !a.cfg.Redis.Enabled() {
				return errors.New("redis is not configured")
			}
			if err := a.openBroker(); err != nil {
				return err
			}
			m := metrics.NewMetrics(prometheus.DefaultRegisterer, a.cfg.Scheduling.MetricsPrefix)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			channel := a.cfg.Redis.EventsChannel
			a.log.Info("subscribed", "channel", channel)

			return messaging.Consume(ctx, a.broker, channel,
				func(msg messaging.Message) error {
					m.EventsConsumed.WithLabelValues(msg.Type).Inc()
					a.log.Info("event received",
						"type", msg.Type,
						"occurred_at", msg.OccurredAt,
						"payload", msg.Payload,
					)
					return nil
				},
				func(err error) {
					a.log.Error(err, "failed to handle event")
				},
			)
		},
	}
}
