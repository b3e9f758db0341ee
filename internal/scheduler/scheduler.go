package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"apodposter/internal/domain"
	"apodposter/internal/pipeline"

	"github.com/robfig/cron/v3"
)

const DefaultSpec = "0 6 * * *"

// HighWaterMark reads the latest recorded date.
type HighWaterMark interface {
	LatestDate(ctx context.Context) (time.Time, bool, error)
}

type Runner interface {
	Run(ctx context.Context, w domain.Window) (pipeline.Report, error)
}

type Scheduler struct {
	ctx        context.Context
	cron       *cron.Cron
	spec       string
	runTimeout time.Duration
	location   *time.Location
	store      HighWaterMark
	runner     Runner
	now        func() time.Time
	log        *slog.Logger
}

func New(
	ctx context.Context,
	spec string,
	location *time.Location,
	runTimeout time.Duration,
	store HighWaterMark,
	runner Runner,
	log *slog.Logger,
) *Scheduler {
	if spec == "" {
		spec = DefaultSpec
	}
	if location == nil {
		location = time.UTC
	}

	c := cron.New(cron.WithLocation(location))

	return &Scheduler{
		ctx:        ctx,
		cron:       c,
		spec:       spec,
		runTimeout: runTimeout,
		location:   location,
		store:      store,
		runner:     runner,
		now:        time.Now,
		log:        log,
	}
}

func (s *Scheduler) Spec() string {
	return s.spec
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.runScheduled); err != nil {
		return fmt.Errorf("add cron job (spec = %s): %w", s.spec, err)
	}

	s.cron.Start()

	return nil
}

// Stop halts the cron and waits for a running job to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunOnce computes the next unprocessed window from the store and runs the
// pipeline for it.
func (s *Scheduler) RunOnce(ctx context.Context) (pipeline.Report, error) {
	latest, ok, err := s.store.LatestDate(ctx)
	if err != nil {
		return pipeline.Report{}, fmt.Errorf("get latest date: %w", err)
	}

	today := s.today()

	w, due := NextWindow(latest, ok, today)
	if !due {
		s.log.InfoContext(ctx, "Store is up to date",
			"latestDate", latest.Format(domain.DateLayout),
			"today", today.Format(domain.DateLayout))

		return pipeline.Report{}, nil
	}

	fields := []any{
		"startDate", w.Start.Format(domain.DateLayout),
	}
	if !w.End.IsZero() {
		fields = append(fields, "endDate", w.End.Format(domain.DateLayout))
	}
	s.log.InfoContext(ctx, "Pipeline is started", fields...)

	return s.runner.Run(ctx, w)
}

func (s *Scheduler) runScheduled() {
	ctx := s.ctx
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, s.runTimeout)
		defer cancel()
	}

	select {
	case <-ctx.Done():
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	default:
	}

	started := s.now()

	report, err := s.RunOnce(ctx)
	if err != nil {
		level := slog.LevelError
		if errors.Is(err, context.Canceled) {
			level = slog.LevelInfo
		}

		s.log.Log(ctx, level, "Failed to run pipeline",
			"error", err,
			"results", len(report.Results),
			"durationSeconds", s.now().Sub(started).Seconds())

		return
	}

	s.log.InfoContext(ctx, "Scheduled run is finished",
		"results", len(report.Results),
		"recorded", report.Count(pipeline.StateRecorded),
		"durationSeconds", s.now().Sub(started).Seconds())
}

func (s *Scheduler) today() time.Time {
	now := s.now().In(s.location)

	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// NextWindow returns the fetch window following the high-water mark. An empty
// store yields today only. due is false when the store already covers today.
func NextWindow(latest time.Time, ok bool, today time.Time) (w domain.Window, due bool) {
	today = truncateDay(today)

	if !ok {
		return domain.Window{Start: today, End: today}, true
	}

	start := truncateDay(latest).AddDate(0, 0, 1)
	if start.After(today) {
		return domain.Window{}, false
	}

	return domain.Window{Start: start}, true
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
