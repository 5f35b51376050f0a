package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestQueueRunsEnqueuedJobs(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}
	q := NewQueue("test", func(_ context.Context, job Job) error {
		mu.Lock()
		seen[job.ID] = true
		mu.Unlock()
		return nil
	}, QueueConfig{Workers: 2, BufferSize: 8})
	q.Start(context.Background())

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(Job{ID: id}))
	}
	q.Stop()

	assert.Len(t, seen, 3)
}

func TestQueueNeverRetriesFailedJobs(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	var calls int32
	q := NewQueue("test", func(context.Context, Job) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("boom")
	}, QueueConfig{Workers: 1, Logger: zap.New(core)})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job{ID: "once"}))
	q.Stop()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, 1, logs.FilterMessage("job failed").Len())
}

func TestQueueRejectsWhenClosed(t *testing.T) {
	q := NewQueue("test", func(context.Context, Job) error { return nil }, QueueConfig{})
	assert.ErrorIs(t, q.Enqueue(Job{ID: "early"}), ErrQueueClosed)

	q.Start(context.Background())
	q.Stop()
	assert.ErrorIs(t, q.Enqueue(Job{ID: "late"}), ErrQueueClosed)
}

func TestQueueReportsFullBuffer(t *testing.T) {
	release := make(chan struct{})
	q := NewQueue("test", func(context.Context, Job) error {
		<-release
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())

	var full bool
	for i := 0; i < 5; i++ {
		if err := q.Enqueue(Job{ID: "x"}); errors.Is(err, ErrQueueFull) {
			full = true
			break
		}
	}
	close(release)
	q.Stop()

	assert.True(t, full)
}

func TestQueueSurvivesPanics(t *testing.T) {
	var calls int32
	q := NewQueue("test", func(_ context.Context, job Job) error {
		atomic.AddInt32(&calls, 1)
		if job.ID == "bad" {
			panic("kaboom")
		}
		return nil
	}, QueueConfig{Workers: 1})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job{ID: "bad"}))
	require.NoError(t, q.Enqueue(Job{ID: "good"}))
	q.Stop()

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}
