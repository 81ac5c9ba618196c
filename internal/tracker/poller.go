package tracker

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/qs3c/prodscope_tracker/internal/model"
)

// FetchFunc 拉取一次任务全量快照
type FetchFunc func(ctx context.Context, jobID string) (*model.Job, error)

// UpdateFunc 合并完成后同步回调，参数为合并后的快照
type UpdateFunc func(job *model.Job)

// ErrorFunc 永久性失败（404/403 等）回调，此后该任务的轮询已停止
type ErrorFunc func(jobID string, err error)

// permanentError 由上游客户端实现：语义性 4xx 错误重试也不会成功
type permanentError interface {
	Permanent() bool
}

// IsPermanentError 判断错误是否不值得重试
func IsPermanentError(err error) bool {
	var pe permanentError
	return errors.As(err, &pe) && pe.Permanent()
}

// Poller 按固定间隔逐任务轮询。每个任务一条独立调度，互不影响。
// 瞬时错误记日志后继续下一轮；Stop 返回后不会再有 onUpdate 回调，
// 包括 Stop 之前已发出的在途请求
type Poller struct {
	store *Store

	mu        sync.Mutex
	schedules map[string]*schedule
}

type schedule struct {
	cancel context.CancelFunc
	ctx    context.Context

	// applyMu 串行化结果落库：stopped 置位与合并回调互斥，
	// 保证 Stop 返回后不再触发 onUpdate
	applyMu sync.Mutex
	stopped bool
}

func NewPoller(store *Store) *Poller {
	return &Poller{
		store:     store,
		schedules: make(map[string]*schedule),
	}
}

// Start 立即拉取一次，然后按 interval 固定间隔重复。
// 同一任务重复 Start 会先停掉旧调度
func (p *Poller) Start(jobID string, interval time.Duration, fetch FetchFunc, onUpdate UpdateFunc, onError ErrorFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sched := &schedule{ctx: ctx, cancel: cancel}

	p.mu.Lock()
	if old, ok := p.schedules[jobID]; ok {
		p.stopSchedule(old)
	}
	p.schedules[jobID] = sched
	p.mu.Unlock()

	go p.run(jobID, interval, sched, fetch, onUpdate, onError)
}

func (p *Poller) run(jobID string, interval time.Duration, sched *schedule, fetch FetchFunc, onUpdate UpdateFunc, onError ErrorFunc) {
	p.poll(jobID, sched, fetch, onUpdate, onError)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-sched.ctx.Done():
			return
		case <-ticker.C:
			// 固定间隔发起，不等上一次完成；慢响应按 "最新优先但日志合并" 落库
			go p.poll(jobID, sched, fetch, onUpdate, onError)
		}
	}
}

func (p *Poller) poll(jobID string, sched *schedule, fetch FetchFunc, onUpdate UpdateFunc, onError ErrorFunc) {
	job, err := fetch(sched.ctx, jobID)

	sched.applyMu.Lock()
	defer sched.applyMu.Unlock()

	if sched.stopped {
		return
	}

	if err != nil {
		if sched.ctx.Err() != nil {
			return
		}
		if IsPermanentError(err) {
			// 后续轮询不可能成功，就地停掉调度再上报
			sched.stopped = true
			sched.cancel()
			go p.Stop(jobID)
			if onError != nil {
				onError(jobID, err)
			}
			return
		}
		log.Printf("Poller: job %s fetch failed, will retry next tick: %v", jobID, err)
		return
	}

	merged := p.store.Merge(jobID, job)
	onUpdate(merged)
}

// Stop 取消调度，幂等。返回后保证不再有该任务的 onUpdate
func (p *Poller) Stop(jobID string) {
	p.mu.Lock()
	sched, ok := p.schedules[jobID]
	if ok {
		delete(p.schedules, jobID)
	}
	p.mu.Unlock()

	if ok {
		p.stopSchedule(sched)
	}
}

// StopAll 停掉所有调度，用于进程退出
func (p *Poller) StopAll() {
	p.mu.Lock()
	scheds := make([]*schedule, 0, len(p.schedules))
	for id, sched := range p.schedules {
		scheds = append(scheds, sched)
		delete(p.schedules, id)
	}
	p.mu.Unlock()

	for _, sched := range scheds {
		p.stopSchedule(sched)
	}
}

func (p *Poller) stopSchedule(sched *schedule) {
	sched.cancel()
	sched.applyMu.Lock()
	sched.stopped = true
	sched.applyMu.Unlock()
}
