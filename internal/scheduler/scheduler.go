// Package scheduler runs the daily birthday broadcast and the periodic feed
// refresh on cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/tartampluch/go-birthday-bot/internal/config"
)

// Notifier builds the text of today's broadcast.
type Notifier interface {
	TodaysNotification(ctx context.Context) (text string, ok bool, err error)
}

// Broadcaster delivers a text to every member.
type Broadcaster interface {
	Broadcast(ctx context.Context, text string) (sent, failed int, err error)
}

// FeedSource builds the iCalendar feed.
type FeedSource interface {
	Feed(ctx context.Context) ([]byte, error)
}

// FeedSink receives a freshly built feed.
type FeedSink interface {
	Update(data []byte)
}

// Options configures a Scheduler. Empty cron specs fall back to the defaults.
type Options struct {
	Location    *time.Location
	NotifyCron  string
	RefreshCron string

	Notifier    Notifier
	Broadcaster Broadcaster
	Feed        FeedSource
	Sink        FeedSink
}

// Scheduler owns the cron instance.
type Scheduler struct {
	opts Options
}

// New validates the cron specs.
func New(opts Options) (*Scheduler, error) {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.NotifyCron == "" {
		opts.NotifyCron = config.DefaultNotifyCron
	}
	if opts.RefreshCron == "" {
		opts.RefreshCron = config.DefaultRefreshCron
	}
	for _, spec := range []string{opts.NotifyCron, opts.RefreshCron} {
		if _, err := cron.ParseStandard(spec); err != nil {
			return nil, fmt.Errorf("%s: %q: %w", config.ErrSchedule, spec, err)
		}
	}
	return &Scheduler{opts: opts}, nil
}

// Notify broadcasts today's birthdays, if any.
func (s *Scheduler) Notify(ctx context.Context) error {
	if s.opts.Notifier == nil || s.opts.Broadcaster == nil {
		return nil
	}
	text, ok, err := s.opts.Notifier.TodaysNotification(ctx)
	if err != nil {
		return err
	}
	if !ok {
		slog.Info(config.MsgNoBirthdays, config.LogKeyComponent, config.CompScheduler)
		return nil
	}
	sent, failed, err := s.opts.Broadcaster.Broadcast(ctx, text)
	if err != nil {
		return err
	}
	slog.Info(config.MsgJobDone,
		config.LogKeyComponent, config.CompScheduler,
		config.LogKeyJob, config.JobNotify,
		config.LogKeySent, sent,
		config.LogKeyFailed, failed,
	)
	return nil
}

// RefreshFeed rebuilds the feed and hands it to the sink.
func (s *Scheduler) RefreshFeed(ctx context.Context) error {
	if s.opts.Feed == nil || s.opts.Sink == nil {
		return nil
	}
	data, err := s.opts.Feed.Feed(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", config.ErrFeedRefresh, err)
	}
	s.opts.Sink.Update(data)
	return nil
}

// Run refreshes the feed once, then fires the jobs until ctx is cancelled.
// It waits for a running job to finish before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.RefreshFeed(ctx); err != nil {
		logJobError(config.JobFeedRefresh, err)
	}

	c := cron.New(
		cron.WithLocation(s.opts.Location),
		cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	jobs := []struct {
		name, spec string
		run        func(context.Context) error
	}{
		{config.JobNotify, s.opts.NotifyCron, s.Notify},
		{config.JobFeedRefresh, s.opts.RefreshCron, s.RefreshFeed},
	}
	for _, j := range jobs {
		if _, err := c.AddFunc(j.spec, func() {
			if err := j.run(ctx); err != nil {
				logJobError(j.name, err)
			}
		}); err != nil {
			return fmt.Errorf("%s: %w", config.ErrSchedule, err)
		}
		slog.Debug(config.MsgSchedulerStart,
			config.LogKeyComponent, config.CompScheduler,
			config.LogKeyJob, j.name,
			config.LogKeySchedule, j.spec,
		)
	}

	c.Start()
	slog.Info(config.MsgSchedulerStart,
		config.LogKeyComponent, config.CompScheduler,
		config.LogKeyName, s.opts.Location.String(),
	)
	<-ctx.Done()
	<-c.Stop().Done()
	slog.Info(config.MsgSchedulerStop, config.LogKeyComponent, config.CompScheduler)
	return nil
}

func logJobError(job string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	slog.Error(config.ErrSchedule,
		config.LogKeyComponent, config.CompScheduler,
		config.LogKeyJob, job,
		config.LogKeyError, err,
	)
}
