package maintenance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/campusalert/internal/dispatch"
	"github.com/charlesng35/campusalert/pkg/logger"
)

const (
	// every two hours between 08:00 and 22:00
	DefaultMaintenanceSchedule = "0 8-22/2 * * *"
	DefaultQuotaResetSchedule  = "0 0 * * *"
)

// Dispatcher is the dispatch state the scheduler maintains.
type Dispatcher interface {
	Evict(now time.Time) []dispatch.Notification
	Flush(ctx context.Context) (*dispatch.Notification, error)
	ResetQuota()
}

// Scheduler runs the recurring dispatch jobs: queue eviction followed by a
// single flush, and the daily quota reset.
type Scheduler struct {
	dispatcher Dispatcher
	cron       *cron.Cron
	now        func() time.Time
	log        *zap.Logger
	location   *time.Location

	maintenanceSchedule string
	quotaResetSchedule  string
	jobTimeout          time.Duration

	mu     sync.Mutex
	status JobStatus
}

// JobStatus summarises scheduled maintenance runs. Gateway delivery failures
// are tracked apart from job failures: the job itself ran.
type JobStatus struct {
	LastRunAt           time.Time `json:"last_run_at"`
	LastError           string    `json:"last_error,omitempty"`
	TotalRuns           int       `json:"total_runs"`
	ConsecutiveFailures int       `json:"consecutive_failures"`

	LastDeliveryError           string `json:"last_delivery_error,omitempty"`
	ConsecutiveDeliveryFailures int    `json:"consecutive_delivery_failures"`
}

// Option customises the Scheduler.
type Option func(*Scheduler)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithNow overrides the clock used for eviction comparisons.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger overrides the scheduler logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}

// WithLocation sets the time zone cron expressions are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithMaintenanceSchedule overrides the cron specification for evict and flush.
func WithMaintenanceSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.maintenanceSchedule = spec
		}
	}
}

// WithQuotaResetSchedule overrides the cron specification for the daily quota reset.
func WithQuotaResetSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.quotaResetSchedule = spec
		}
	}
}

// WithJobTimeout bounds a single maintenance run.
func WithJobTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.jobTimeout = d
		}
	}
}

// NewScheduler constructs a Scheduler for dispatcher. Jobs are registered by Start.
func NewScheduler(dispatcher Dispatcher, opts ...Option) (*Scheduler, error) {
	if dispatcher == nil {
		return nil, errors.New("maintenance: dispatcher is required")
	}

	s := &Scheduler{
		dispatcher:          dispatcher,
		now:                 time.Now,
		log:                 logger.WithModule("maintenance"),
		location:            time.Local,
		maintenanceSchedule: DefaultMaintenanceSchedule,
		quotaResetSchedule:  DefaultQuotaResetSchedule,
		jobTimeout:          time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.cron == nil {
		cronLog := logger.CronLogger(s.log)
		s.cron = cron.New(
			cron.WithLocation(s.location),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog)),
		)
	}
	return s, nil
}

// Start registers the jobs and launches the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.maintenanceSchedule, s.runMaintenance); err != nil {
		return fmt.Errorf("maintenance schedule %q: %w", s.maintenanceSchedule, err)
	}
	if _, err := s.cron.AddFunc(s.quotaResetSchedule, s.runQuotaReset); err != nil {
		return fmt.Errorf("quota reset schedule %q: %w", s.quotaResetSchedule, err)
	}

	s.cron.Start()
	s.log.Info("scheduler started",
		zap.String("maintenance_schedule", s.maintenanceSchedule),
		zap.String("quota_reset_schedule", s.quotaResetSchedule),
		zap.String("location", s.location.String()),
	)
	return nil
}

// Stop halts the cron loop. The returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	if s.cron == nil {
		return context.Background()
	}
	return s.cron.Stop()
}

// RunOnce evicts expired notifications and then flushes one. A failure in
// either step does not prevent the other; failures are combined.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	errs = multierr.Append(errs, guard("evict", func() error {
		s.dispatcher.Evict(s.now())
		return nil
	}))
	errs = multierr.Append(errs, guard("flush", func() error {
		_, err := s.dispatcher.Flush(ctx)
		return err
	}))

	return errs
}

func (s *Scheduler) runMaintenance() {
	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()

	var jobErr, deliveryErr error
	for _, err := range multierr.Errors(s.RunOnce(ctx)) {
		if isDeliveryFailure(err) {
			s.log.Warn("scheduled delivery failed", zap.Error(err))
			deliveryErr = multierr.Append(deliveryErr, err)
			continue
		}
		s.log.Warn("maintenance job failed", zap.Error(err))
		jobErr = multierr.Append(jobErr, err)
	}
	s.recordRun(jobErr, deliveryErr)
}

func isDeliveryFailure(err error) bool {
	var deliveryErr *dispatch.DeliveryError
	return errors.As(err, &deliveryErr)
}

// Status reports the outcome of scheduled maintenance runs so far.
func (s *Scheduler) Status() JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Scheduler) recordRun(jobErr, deliveryErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.LastRunAt = s.now()
	s.status.TotalRuns++

	if deliveryErr != nil {
		s.status.LastDeliveryError = deliveryErr.Error()
		s.status.ConsecutiveDeliveryFailures++
	} else {
		s.status.LastDeliveryError = ""
		s.status.ConsecutiveDeliveryFailures = 0
	}

	if jobErr != nil {
		s.status.LastError = jobErr.Error()
		s.status.ConsecutiveFailures++
		return
	}
	s.status.LastError = ""
	s.status.ConsecutiveFailures = 0
}

func (s *Scheduler) runQuotaReset() {
	if err := guard("quota reset", func() error {
		s.dispatcher.ResetQuota()
		return nil
	}); err != nil {
		s.log.Error("quota reset failed", zap.Error(err))
	}
}

// guard runs fn and converts a panic into an error.
func guard(job string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v", job, r)
		}
	}()
	if err := fn(); err != nil {
		return fmt.Errorf("%s: %w", job, err)
	}
	return nil
}
