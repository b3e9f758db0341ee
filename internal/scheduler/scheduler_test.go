package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"
	_ "time/tzdata"

	"apodposter/internal/domain"
	"apodposter/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	latest time.Time
	ok     bool
	err    error
}

func (s fakeStore) LatestDate(context.Context) (time.Time, bool, error) {
	return s.latest, s.ok, s.err
}

type fakeRunner struct {
	windows []domain.Window
	err     error
}

func (r *fakeRunner) Run(_ context.Context, w domain.Window) (pipeline.Report, error) {
	r.windows = append(r.windows, w)
	return pipeline.Report{}, r.err
}

func date(s string) time.Time {
	t, _ := time.Parse(domain.DateLayout, s)
	return t
}

func newTestScheduler(store HighWaterMark, runner Runner, now time.Time, loc *time.Location) *Scheduler {
	s := New(context.Background(), "", loc, time.Minute, store, runner, slog.Default())
	s.now = func() time.Time { return now }

	return s
}

func TestNextWindowEmptyStore(t *testing.T) {
	w, due := NextWindow(time.Time{}, false, date("2024-02-15"))

	assert.True(t, due)
	assert.Equal(t, date("2024-02-15"), w.Start)
	assert.Equal(t, date("2024-02-15"), w.End)
}

func TestNextWindowFromHighWaterMark(t *testing.T) {
	w, due := NextWindow(date("2024-02-10"), true, date("2024-02-15"))

	assert.True(t, due)
	assert.Equal(t, date("2024-02-11"), w.Start)
	assert.True(t, w.End.IsZero(), "window must stay open-ended")
}

func TestNextWindowUpToDate(t *testing.T) {
	_, due := NextWindow(date("2024-02-15"), true, date("2024-02-15"))
	assert.False(t, due)

	w, due := NextWindow(date("2024-02-14"), true, date("2024-02-15"))
	assert.True(t, due)
	assert.Equal(t, date("2024-02-15"), w.Start)
}

func TestRunOnceUsesScheduleTimezone(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 02:00 UTC on Feb 16 is still Feb 15 in New York.
	now := time.Date(2024, 2, 16, 2, 0, 0, 0, time.UTC)
	runner := &fakeRunner{}
	s := newTestScheduler(fakeStore{}, runner, now, loc)

	_, err = s.RunOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, runner.windows, 1)
	assert.Equal(t, date("2024-02-15"), runner.windows[0].Start)
	assert.Equal(t, date("2024-02-15"), runner.windows[0].End)
}

func TestRunOnceSkipsWhenUpToDate(t *testing.T) {
	runner := &fakeRunner{}
	now := time.Date(2024, 2, 15, 12, 0, 0, 0, time.UTC)
	s := newTestScheduler(fakeStore{latest: date("2024-02-15"), ok: true}, runner, now, time.UTC)

	_, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, runner.windows)
}

func TestRunOnceStoreError(t *testing.T) {
	runner := &fakeRunner{}
	s := newTestScheduler(fakeStore{err: errors.New("db locked")}, runner, time.Now(), time.UTC)

	_, err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.Empty(t, runner.windows)
}

func TestRunScheduledInvokesRunner(t *testing.T) {
	runner := &fakeRunner{err: errors.New("boom")}
	now := time.Date(2024, 2, 15, 12, 0, 0, 0, time.UTC)
	s := newTestScheduler(fakeStore{latest: date("2024-02-13"), ok: true}, runner, now, time.UTC)

	s.runScheduled()

	require.Len(t, runner.windows, 1)
	assert.Equal(t, date("2024-02-14"), runner.windows[0].Start)
}

func TestRunScheduledSkipsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := &fakeRunner{}
	s := New(ctx, "", time.UTC, time.Minute, fakeStore{}, runner, slog.Default())

	s.runScheduled()
	assert.Empty(t, runner.windows)
}

func TestStartRejectsInvalidSpec(t *testing.T) {
	s := New(context.Background(), "not a spec", time.UTC, 0, fakeStore{}, &fakeRunner{}, slog.Default())

	require.Error(t, s.Start())
}

func TestStartAndStop(t *testing.T) {
	s := New(context.Background(), "", time.UTC, 0, fakeStore{}, &fakeRunner{}, slog.Default())

	require.NoError(t, s.Start())
	assert.Equal(t, DefaultSpec, s.Spec())
	s.Stop()
}
