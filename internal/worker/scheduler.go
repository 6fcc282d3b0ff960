// Package worker runs the daily notification jobs.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/familyhub/aniversaris/internal/config"
	"github.com/familyhub/aniversaris/internal/service/notify"
)

// DefaultTickInterval is how often the scheduler checks the clock.
const DefaultTickInterval = time.Minute

// Job names, also used as log fields.
const (
	JobBirthdayEmails = "birthday_emails"
	JobBirthdaySMS    = "birthday_sms"
	JobReminders      = "reminders"
)

// Jobs are the batches the scheduler triggers. *notify.Notifier
// implements it.
type Jobs interface {
	SendBirthdayEmails(ctx context.Context, force bool) (*notify.Summary, error)
	SendBirthdaySMS(ctx context.Context) (*notify.Summary, error)
	SendReminders(ctx context.Context) (*notify.ReminderSummary, error)
}

type job struct {
	name string
	hour int
	run  func(ctx context.Context) error
}

// Scheduler runs each job once per local date, on the first tick at or
// after the job's hour. A job that fails is retried on the next tick; the
// notification gate keeps retries and concurrent replicas from sending
// twice.
type Scheduler struct {
	cal      *notify.Calendar
	interval time.Duration
	jobs     []job
	log      *zap.Logger

	mu   sync.Mutex
	done map[string]string // job name -> local date of the last completed run
}

// NewScheduler creates a scheduler for the configured hours.
func NewScheduler(jobs Jobs, cal *notify.Calendar, cfg config.NotifyConfig, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	interval := cfg.Tick()
	if interval <= 0 {
		interval = DefaultTickInterval
	}

	s := &Scheduler{cal: cal, interval: interval, log: log, done: make(map[string]string)}
	s.jobs = []job{
		{name: JobBirthdayEmails, hour: cfg.BirthdayHour, run: func(ctx context.Context) error {
			sum, err := jobs.SendBirthdayEmails(ctx, false)
			s.logSummary(JobBirthdayEmails, sum)
			return err
		}},
		{name: JobBirthdaySMS, hour: cfg.BirthdayHour, run: func(ctx context.Context) error {
			sum, err := jobs.SendBirthdaySMS(ctx)
			s.logSummary(JobBirthdaySMS, sum)
			return err
		}},
		{name: JobReminders, hour: cfg.ReminderHour, run: func(ctx context.Context) error {
			sum, err := jobs.SendReminders(ctx)
			if sum != nil {
				s.log.Info("job finished",
					zap.String("job", JobReminders),
					zap.Strings("birthdays", sum.Birthdays),
					zap.Int("email_sent", sum.Email.Sent),
					zap.Int("sms_sent", sum.SMS.Sent))
			}
			return err
		}},
	}
	return s
}

// Start runs the tick loop. It blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.log.Info("scheduler starting", zap.Duration("interval", s.interval))

	s.Tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopping")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs every job that is due and returns the names of the jobs it
// completed.
func (s *Scheduler) Tick(ctx context.Context) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := s.cal.LocalDate()
	hour := s.cal.Now().Hour()

	var ran []string
	for _, j := range s.jobs {
		if ctx.Err() != nil {
			break
		}
		if hour < j.hour || s.done[j.name] == today {
			continue
		}

		err := j.run(ctx)
		switch {
		case err == nil:
		case errors.Is(err, notify.ErrChannelDisabled):
			s.log.Info("job skipped, channel disabled", zap.String("job", j.name))
		default:
			s.log.Warn("job failed, retrying next tick", zap.String("job", j.name), zap.Error(err))
			continue
		}
		s.done[j.name] = today
		ran = append(ran, j.name)
	}
	return ran
}

func (s *Scheduler) logSummary(name string, sum *notify.Summary) {
	if sum == nil {
		return
	}
	s.log.Info("job finished",
		zap.String("job", name),
		zap.Int("sent", sum.Sent),
		zap.Int("skipped", sum.Skipped),
		zap.Int("failed", sum.Failed))
}
