package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/pkg/schedule"
)

// errSlotUnavailable makes the process exit with status 2.
var errSlotUnavailable = errors.New("slot is not available")

// checkCmd runs a dry scheduling check against the live store and prints the
// result as JSON. It exits non-zero when the slot is not available.
func checkCmd(configPath *string) *cobra.Command {
	var (
		doctorID  string
		date      string
		clock     string
		duration  int
		excludeID string
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check whether a doctor is free for a slot",
		RunE: func(cmd *cobra.Command, args []string) error {
			docID, err := uuid.Parse(doctorID)
			if err != nil {
				return fmt.Errorf("invalid --doctor: %w", err)
			}
			req := &model.CheckAvailabilityRequest{
				DoctorID:        docID,
				Date:            date,
				Time:            clock,
				DurationMinutes: duration,
			}
			if excludeID != "" {
				id, err := uuid.Parse(excludeID)
				if err != nil {
					return fmt.Errorf("invalid --exclude: %w", err)
				}
				req.ExcludeAppointmentID = &id
			}

			res, err := runCheck(*configPath, req)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return err
			}
			if !res.IsValid {
				// the JSON above already explains why
				cmd.SilenceErrors = true
				return errSlotUnavailable
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&doctorID, "doctor", "", "doctor ID")
	cmd.Flags().StringVar(&date, "date", "", "date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&clock, "time", "", "start time (HH:MM)")
	cmd.Flags().IntVar(&duration, "duration", 30, "duration in minutes")
	cmd.Flags().StringVar(&excludeID, "exclude", "", "appointment ID to leave out, when rescheduling")
	_ = cmd.MarkFlagRequired("doctor")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("time")
	return cmd
}

func runCheck(configPath string, req *model.CheckAvailabilityRequest) (schedule.Result, error) {
	a, err := loadApp(configPath)
	if err != nil {
		return schedule.Result{}, err
	}
	defer a.close()

	if err := a.openDB(); err != nil {
		return schedule.Result{}, err
	}
	a.buildServices(prometheus.NewRegistry())

	return a.appointments.CheckAvailability(context.Background(), req)
}
