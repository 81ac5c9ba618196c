package tracker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/prodscope_tracker/internal/model"
)

type notFoundErr struct{}

func (notFoundErr) Error() string   { return "job not found" }
func (notFoundErr) Permanent() bool { return true }

type updateRecorder struct {
	mu      sync.Mutex
	updates []*model.Job
}

func (r *updateRecorder) record(job *model.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, job)
}

func (r *updateRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates)
}

func staticFetch(status model.JobStatus) FetchFunc {
	return func(ctx context.Context, jobID string) (*model.Job, error) {
		return &model.Job{ID: jobID, Status: status}, nil
	}
}

func TestPoller_ImmediateFetchThenTicks(t *testing.T) {
	p := NewPoller(NewStore())
	rec := &updateRecorder{}

	p.Start("job-1", 20*time.Millisecond, staticFetch(model.StatusInProgress), rec.record, nil)
	defer p.Stop("job-1")

	// 首次拉取不等 tick
	require.Eventually(t, func() bool { return rec.count() >= 1 }, time.Second, time.Millisecond)
	// 之后按固定间隔继续
	require.Eventually(t, func() bool { return rec.count() >= 3 }, time.Second, time.Millisecond)
}

func TestPoller_TransientErrorKeepsPolling(t *testing.T) {
	p := NewPoller(NewStore())
	rec := &updateRecorder{}

	var calls atomic.Int32
	fetch := func(ctx context.Context, jobID string) (*model.Job, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("connection refused")
		}
		return &model.Job{ID: jobID, Status: model.StatusInProgress}, nil
	}

	p.Start("job-1", 20*time.Millisecond, fetch, rec.record, nil)
	defer p.Stop("job-1")

	// 第一次失败被吞掉，下一轮重试成功
	require.Eventually(t, func() bool { return rec.count() >= 1 }, time.Second, time.Millisecond)
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}

func TestPoller_PermanentErrorStopsSchedule(t *testing.T) {
	p := NewPoller(NewStore())
	rec := &updateRecorder{}

	var calls atomic.Int32
	fetch := func(ctx context.Context, jobID string) (*model.Job, error) {
		calls.Add(1)
		return nil, notFoundErr{}
	}

	var gotErr atomic.Bool
	p.Start("job-1", 10*time.Millisecond, fetch, rec.record, func(jobID string, err error) {
		assert.Equal(t, "job-1", jobID)
		assert.True(t, IsPermanentError(err))
		gotErr.Store(true)
	})

	require.Eventually(t, func() bool { return gotErr.Load() }, time.Second, time.Millisecond)

	// 调度已停止：不再发起新的拉取
	settled := calls.Load()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, settled, calls.Load())
	assert.Equal(t, 0, rec.count())
}

func TestPoller_StopIsCancellationFinal(t *testing.T) {
	p := NewPoller(NewStore())
	rec := &updateRecorder{}

	started := make(chan struct{})
	release := make(chan struct{})
	fetch := func(ctx context.Context, jobID string) (*model.Job, error) {
		close(started)
		<-release
		return &model.Job{ID: jobID, Status: model.StatusCompleted}, nil
	}

	p.Start("job-1", time.Minute, fetch, rec.record, nil)

	<-started
	p.Stop("job-1")
	close(release)

	// Stop 之前发出的在途请求完成后也不得再触发 onUpdate
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, rec.count())
}

func TestPoller_StopIsIdempotent(t *testing.T) {
	p := NewPoller(NewStore())

	p.Stop("never-started")

	p.Start("job-1", time.Minute, staticFetch(model.StatusPending), func(*model.Job) {}, nil)
	p.Stop("job-1")
	p.Stop("job-1")
}

func TestPoller_IndependentSchedules(t *testing.T) {
	p := NewPoller(NewStore())
	recA := &updateRecorder{}
	recB := &updateRecorder{}

	p.Start("job-a", 20*time.Millisecond, staticFetch(model.StatusInProgress), recA.record, nil)
	p.Start("job-b", 20*time.Millisecond, staticFetch(model.StatusInProgress), recB.record, nil)
	defer p.StopAll()

	require.Eventually(t, func() bool { return recA.count() >= 2 && recB.count() >= 2 }, time.Second, time.Millisecond)

	// 停掉一个不影响另一个
	p.Stop("job-a")
	settled := recA.count()
	before := recB.count()

	require.Eventually(t, func() bool { return recB.count() > before }, time.Second, time.Millisecond)
	assert.Equal(t, settled, recA.count())
}

func TestPoller_MergesLogsAcrossTicks(t *testing.T) {
	store := NewStore()
	p := NewPoller(store)
	rec := &updateRecorder{}

	// 实时事件先落库
	store.AppendLog("job-1", model.LogEntry{Step: "live", Message: "event"})

	fetch := func(ctx context.Context, jobID string) (*model.Job, error) {
		return &model.Job{
			ID:     jobID,
			Status: model.StatusInProgress,
			Logs:   []model.LogEntry{{Step: "poll", Message: "snapshot"}},
		}, nil
	}

	p.Start("job-1", time.Minute, fetch, rec.record, nil)
	defer p.Stop("job-1")

	require.Eventually(t, func() bool { return rec.count() >= 1 }, time.Second, time.Millisecond)

	job, ok := store.Get("job-1")
	require.True(t, ok)
	assert.Len(t, job.Logs, 2)
}
