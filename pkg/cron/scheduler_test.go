package cron

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUndo struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeUndo) ExpireUndo() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return 1
}

func (f *fakeUndo) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeReindexer struct {
	mu    sync.Mutex
	since []time.Time
	err   error
}

func (f *fakeReindexer) Reindex(_ context.Context, since time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.since = append(f.since, since)
	return 3, f.err
}

func (f *fakeReindexer) Calls() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.since...)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestScheduler_StartRegistersConfiguredJobs(t *testing.T) {
	s := NewScheduler(Jobs{UndoExpiry: "@every 1m", Reindex: "0 3 * * *"}, &fakeUndo{}, &fakeReindexer{}, discard())
	require.NoError(t, s.Start())
	defer s.Stop()
	assert.Len(t, s.cron.Entries(), 2)
}

func TestScheduler_SkipsMissingCollaborators(t *testing.T) {
	s := NewScheduler(Jobs{UndoExpiry: "@every 1m", Reindex: "0 3 * * *"}, &fakeUndo{}, nil, discard())
	require.NoError(t, s.Start())
	defer s.Stop()
	assert.Len(t, s.cron.Entries(), 1)
}

func TestScheduler_InvalidSpec(t *testing.T) {
	s := NewScheduler(Jobs{UndoExpiry: "not a spec"}, &fakeUndo{}, nil, discard())
	assert.Error(t, s.Start())
}

func TestScheduler_ReindexLookback(t *testing.T) {
	now := time.Date(2024, 5, 10, 3, 0, 0, 0, time.UTC)
	r := &fakeReindexer{}
	s := NewScheduler(Jobs{ReindexLookback: 48 * time.Hour}, nil, r, discard())
	s.clock = func() time.Time { return now }

	s.reindex()
	s.jobs.ReindexLookback = 0
	s.reindex()

	calls := r.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, now.Add(-48*time.Hour), calls[0])
	assert.True(t, calls[1].IsZero())
}

func TestScheduler_RunNow(t *testing.T) {
	u := &fakeUndo{}
	r := &fakeReindexer{err: errors.New("index closed")}
	s := NewScheduler(Jobs{}, u, r, discard())

	s.RunNow()
	assert.Eventually(t, func() bool {
		return u.Calls() == 1 && len(r.Calls()) == 1
	}, time.Second, 10*time.Millisecond)
}
