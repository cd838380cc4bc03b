package geofence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/geofence-service/internal/observability"
	"github.com/couchcryptid/geofence-service/internal/platform"
)

// JobScheduler runs the re-registration job after a fixed delay, and again
// after every run, until stopped.
type JobScheduler struct {
	clock    clockwork.Clock
	delay    time.Duration
	perms    platform.PermissionChecker
	settings platform.DeviceSettings
	logger   *slog.Logger
	metrics  *observability.Metrics

	mu      sync.Mutex
	timer   clockwork.Timer
	stopped bool
}

// NewJobScheduler creates a scheduler that fires every delay.
func NewJobScheduler(
	clock clockwork.Clock,
	delay time.Duration,
	perms platform.PermissionChecker,
	settings platform.DeviceSettings,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *JobScheduler {
	return &JobScheduler{
		clock:    clock,
		delay:    delay,
		perms:    perms,
		settings: settings,
		logger:   logger,
		metrics:  metrics,
	}
}

// ScheduleReRegistration replaces any pending job with one that restarts r.
func (s *JobScheduler) ScheduleReRegistration(r Restarter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = s.clock.AfterFunc(s.delay, func() { s.run(r) })
	s.logger.Debug("geofence re-registration scheduled", "delay", s.delay)
}

// Stop cancels the pending job. Later ScheduleReRegistration calls are ignored.
func (s *JobScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *JobScheduler) run(r Restarter) {
	if !s.perms.HasFineOrCoarseLocationPermission() {
		s.logger.Warn("location permission not granted, cannot restart geofencing")
	}

	if s.settings.IsLocationEnabled() {
		restarted, err := r.Restart(context.Background(),
			func() { s.logger.Info("geofences re-registered") },
			func(err error) { s.logger.Warn("geofence re-registration failed", "error", err) },
		)
		switch {
		case err != nil:
			s.logger.Error("geofence re-registration aborted", "error", err)
			s.metrics.ReregistrationRuns.WithLabelValues("error").Inc()
		case restarted:
			s.metrics.ReregistrationRuns.WithLabelValues("restarted").Inc()
		default:
			s.metrics.ReregistrationRuns.WithLabelValues("skipped").Inc()
		}
	} else {
		s.logger.Info("device location disabled, skipping geofence re-registration")
		s.metrics.ReregistrationRuns.WithLabelValues("skipped").Inc()
	}

	s.ScheduleReRegistration(r)
}
