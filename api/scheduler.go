/*
scheduler.go - Special-event announcer and background sampling

PURPOSE:
  Periodically broadcasts one notification for each special event that
  is active today. Announcements are keyed per event, so repeated runs
  and restarts never announce the same event twice.

  When Store and Metrics are set, the same scheduler samples database
  pool statistics into the db_connection_pool gauge.

DESIGN:
  - A gocron scheduler runs the jobs every Interval, first run immediately
  - Singleton mode: a slow run delays the next one instead of overlapping
  - The jobs write notifications and gauges only, never points or progress

CONFIGURATION:
  - Interval: How often to check (ANNOUNCE_INTERVAL, default 1m)
  - A zero Interval disables the announcer

USAGE:
  announcer := NewEventAnnouncer(engine, time.Minute)
  announcer.Start()
  // ... later
  announcer.Stop()

SEE ALSO:
  - rewards/catalog.go: Engine.AnnounceEvents
*/
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"

	"github.com/warp/recognition-engine/metrics"
	"github.com/warp/recognition-engine/rewards"
	"github.com/warp/recognition-engine/store/sqlite"
)

// EventAnnouncer broadcasts special events as they become active.
type EventAnnouncer struct {
	Engine   *rewards.Engine
	Interval time.Duration
	Log      logrus.FieldLogger

	// Optional pool sampling.
	Store   *sqlite.Store
	Metrics *metrics.Metrics

	mu        sync.Mutex
	scheduler gocron.Scheduler
}

// NewEventAnnouncer creates a new announcer.
func NewEventAnnouncer(engine *rewards.Engine, interval time.Duration) *EventAnnouncer {
	log := engine.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &EventAnnouncer{
		Engine:   engine,
		Interval: interval,
		Log:      log.WithField("component", "event_announcer"),
	}
}

// Start schedules the job. It is a no-op when Interval is zero or the
// announcer already runs.
func (a *EventAnnouncer) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.Interval <= 0 {
		a.Log.Info("announcer disabled")
		return nil
	}
	if a.scheduler != nil {
		return nil
	}

	opts := []gocron.SchedulerOption{}
	if a.Engine.Location != nil {
		opts = append(opts, gocron.WithLocation(a.Engine.Location))
	}
	s, err := gocron.NewScheduler(opts...)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = s.NewJob(
		gocron.DurationJob(a.Interval),
		gocron.NewTask(func() {
			_, _ = a.RunOnce(context.Background())
		}),
		gocron.WithName("announce-special-events"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("failed to schedule announcer: %w", err)
	}

	if a.Store != nil && a.Metrics != nil {
		_, err = s.NewJob(
			gocron.DurationJob(a.Interval),
			gocron.NewTask(a.SamplePool),
			gocron.WithName("sample-db-pool"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithStartAt(gocron.WithStartImmediately()),
		)
		if err != nil {
			_ = s.Shutdown()
			return fmt.Errorf("failed to schedule pool sampling: %w", err)
		}
	}

	s.Start()
	a.scheduler = s
	a.Log.WithField("interval", a.Interval.String()).Info("announcer started")
	return nil
}

// Stop waits for a running job and stops the scheduler.
func (a *EventAnnouncer) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.scheduler == nil {
		return nil
	}
	err := a.scheduler.Shutdown()
	a.scheduler = nil
	a.Log.Info("announcer stopped")
	return err
}

// RunOnce announces today's active events and reports how many were new.
func (a *EventAnnouncer) RunOnce(ctx context.Context) (int, error) {
	n, err := a.Engine.AnnounceEvents(ctx)
	if err != nil {
		a.Log.WithError(err).Error("failed to announce special events")
		return 0, err
	}
	if n > 0 {
		a.Log.WithField("announced", n).Info("special events announced")
	} else {
		a.Log.Debug("no new special events")
	}
	return n, nil
}

// SamplePool copies the store's connection pool statistics into metrics.
func (a *EventAnnouncer) SamplePool() {
	if a.Store == nil || a.Metrics == nil {
		return
	}
	a.Metrics.RecordDBPoolStats(a.Store.Stats())
}
