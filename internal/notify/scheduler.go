package notify

import (
	"bizdesk/internal/observability"
	"bizdesk/internal/settings"
	"bizdesk/pkg/domain"
	"context"
	"log/slog"
	"sync"
	"time"
)

// SettingsOwner is the user whose settings receive project reminders.
const SettingsOwner = 1

// ProjectLister lists projects with refreshed client names.
type ProjectLister interface {
	ListProjects(ctx context.Context) ([]domain.Project, error)
}

// SettingsReader returns a user's settings.
type SettingsReader interface {
	Get(ctx context.Context, userID int) settings.Record
}

// SchedulerConfig tunes the reminder scan.
type SchedulerConfig struct {
	Interval time.Duration
	LeadDays int
}

// Summary counts the outcome of one scan.
type Summary struct {
	Due    int
	Sent   int
	Failed int
}

// Scheduler mails a reminder for every open project whose end date falls
// LeadDays after the scan date.
type Scheduler struct {
	projects ProjectLister
	settings SettingsReader
	mailer   Mailer
	cfg      SchedulerConfig
	logger   *slog.Logger
	metrics  observability.MetricsRecorder
	now      func() time.Time
	wg       sync.WaitGroup
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerLogger sets the scheduler logger.
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSchedulerMetrics records each scan as operation "project_reminders".
func WithSchedulerMetrics(m observability.MetricsRecorder) SchedulerOption {
	return func(s *Scheduler) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithSchedulerClock overrides the time source.
func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// NewScheduler builds a scheduler. Interval defaults to 24h and LeadDays to 5.
func NewScheduler(projects ProjectLister, prefs SettingsReader, mailer Mailer, cfg SchedulerConfig, opts ...SchedulerOption) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	if cfg.LeadDays <= 0 {
		cfg.LeadDays = 5
	}
	s := &Scheduler{
		projects: projects,
		settings: prefs,
		mailer:   mailer,
		cfg:      cfg,
		logger:   slog.New(slog.DiscardHandler),
		metrics:  observability.NoopMetricsRecorder{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start scans every Interval until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.RunOnce(ctx, s.now()); err != nil {
					s.logger.ErrorContext(ctx, "project reminder scan failed", "error", err)
				}
			}
		}
	}()
}

// Wait blocks until the loop started by Start has returned.
func (s *Scheduler) Wait() { s.wg.Wait() }

// RunOnce scans projects as of now. Delivery failures are logged and counted;
// only a failed project listing is returned as an error.
func (s *Scheduler) RunOnce(ctx context.Context, now time.Time) (Summary, error) {
	start := time.Now()
	summary, err := s.scan(ctx, now)
	s.metrics.Observe(ctx, "project_reminders", err == nil && summary.Failed == 0, time.Since(start))
	return summary, err
}

func (s *Scheduler) scan(ctx context.Context, now time.Time) (Summary, error) {
	var summary Summary
	projects, err := s.projects.ListProjects(ctx)
	if err != nil {
		return summary, err
	}
	target := now.AddDate(0, 0, s.cfg.LeadDays).Format(time.DateOnly)
	prefs := s.settings.Get(ctx, SettingsOwner)
	for _, p := range projects {
		if p.EndDate != target || p.Status == "Completed" || p.Status == "Cancelled" {
			continue
		}
		summary.Due++
		if prefs.EmailForNotifications == "" {
			s.logger.WarnContext(ctx, "no notification email set", "project", p.ProjectName)
			continue
		}
		msg := ProjectReminder(prefs.EmailForNotifications, prefs.PhoneticName, p, s.cfg.LeadDays)
		if err := s.mailer.Send(ctx, msg); err != nil {
			summary.Failed++
			s.logger.ErrorContext(ctx, "project reminder failed", "project", p.ProjectName, "error", err)
			continue
		}
		summary.Sent++
		s.logger.InfoContext(ctx, "project reminder sent", "project", p.ProjectName, "to", msg.To, "simulated", s.mailer.Simulated())
	}
	return summary, nil
}
