package tracker

import (
	"log"
	"sync"
	"time"

	"github.com/qs3c/prodscope_tracker/internal/model"
)

// Slot 逻辑用途槽位。分析任务与各推荐类型各占一个槽位，互不串扰
type Slot string

const SlotAnalysis Slot = "analysis"

// RecommendationSlot 推荐类型对应的槽位
func RecommendationSlot(rt model.RecommendationType) Slot {
	return Slot("recommendations:" + string(rt))
}

// SlotForJob 按任务参数推导槽位
func SlotForJob(job *model.Job) Slot {
	if job.Parameters.Type == model.JobTypeRecommendations {
		return RecommendationSlot(job.Parameters.RecommendationType)
	}
	return SlotAnalysis
}

// FinalizeFunc 任务首次进入终态时的一次性副作用：拉取产物、发通知。
// 只会被调用一次，调用时该任务的轮询与订阅均已停止
type FinalizeFunc func(slot Slot, job *model.Job)

// PermanentErrorFunc 任务被判定为不可恢复（404/403）后的回调
type PermanentErrorFunc func(slot Slot, jobID string, err error)

// Orchestrator 决定哪些任务处于活跃追踪中，把 Poller 与 Subscriber
// 接到 Store 上，并对状态迁移做出反应
type Orchestrator struct {
	store      *Store
	poller     *Poller
	subscriber *Subscriber

	fetch    FetchFunc
	interval time.Duration
	finalize FinalizeFunc
	onError  PermanentErrorFunc

	// onUpdate / onEvent 旁路广播钩子（ws 扇出），可为 nil
	onUpdate UpdateFunc
	onEvent  EventFunc

	mu    sync.Mutex
	slots map[Slot]*trackedJob
}

type trackedJob struct {
	jobID     string
	finalized bool
}

// Options Orchestrator 的可选钩子
type Options struct {
	OnUpdate UpdateFunc
	OnEvent  EventFunc
	OnError  PermanentErrorFunc
}

func NewOrchestrator(store *Store, poller *Poller, subscriber *Subscriber, fetch FetchFunc, interval time.Duration, finalize FinalizeFunc, opts Options) *Orchestrator {
	return &Orchestrator{
		store:      store,
		poller:     poller,
		subscriber: subscriber,
		fetch:      fetch,
		interval:   interval,
		finalize:   finalize,
		onError:    opts.OnError,
		onUpdate:   opts.OnUpdate,
		onEvent:    opts.OnEvent,
		slots:      make(map[Slot]*trackedJob),
	}
}

// Track 激活一个槽位：启动轮询并挂上实时订阅。
// 槽位已在追踪同一任务时为幂等；追踪其他任务时先释放旧任务
func (o *Orchestrator) Track(slot Slot, jobID string) {
	o.mu.Lock()
	if cur, ok := o.slots[slot]; ok {
		if cur.jobID == jobID {
			o.mu.Unlock()
			return
		}
		o.releaseLocked(cur.jobID)
	}
	o.slots[slot] = &trackedJob{jobID: jobID}
	o.mu.Unlock()

	log.Printf("Orchestrator: tracking job %s in slot %s", jobID, slot)

	o.subscriber.Subscribe(jobID, func(job *model.Job, entry model.LogEntry) {
		if o.onEvent != nil {
			o.onEvent(job, entry)
		}
	})
	o.poller.Start(jobID, o.interval, o.fetch, func(job *model.Job) {
		o.handleUpdate(slot, jobID, job)
	}, func(id string, err error) {
		o.handlePermanentError(slot, id, err)
	})
}

// Untrack 释放槽位：轮询与订阅都必须停掉，漏掉任何一个都会泄漏
func (o *Orchestrator) Untrack(slot Slot) {
	o.mu.Lock()
	cur, ok := o.slots[slot]
	if ok {
		delete(o.slots, slot)
	}
	o.mu.Unlock()

	if ok {
		o.release(cur.jobID)
	}
}

// ActiveJob 槽位当前追踪的任务 id
func (o *Orchestrator) ActiveJob(slot Slot) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	cur, ok := o.slots[slot]
	if !ok {
		return "", false
	}
	return cur.jobID, true
}

// FindSlot 反查任务当前占用的槽位
func (o *Orchestrator) FindSlot(jobID string) (Slot, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for slot, cur := range o.slots {
		if cur.jobID == jobID {
			return slot, true
		}
	}
	return "", false
}

// Shutdown 释放全部槽位
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	jobs := make([]string, 0, len(o.slots))
	for slot, cur := range o.slots {
		jobs = append(jobs, cur.jobID)
		delete(o.slots, slot)
	}
	o.mu.Unlock()

	for _, id := range jobs {
		o.release(id)
	}
}

func (o *Orchestrator) handleUpdate(slot Slot, jobID string, job *model.Job) {
	if o.onUpdate != nil {
		o.onUpdate(job)
	}

	if !job.Status.Terminal() {
		return
	}

	o.mu.Lock()
	cur, ok := o.slots[slot]
	if !ok || cur.jobID != jobID || cur.finalized {
		// 停表不够快时同一终态会被重复观察到，副作用只触发一次
		o.mu.Unlock()
		return
	}
	cur.finalized = true
	o.mu.Unlock()

	log.Printf("Orchestrator: job %s reached terminal status %s", jobID, job.Status)

	// 回调来自轮询调度内部，停表与一次性副作用移出当前调用链执行
	go func() {
		o.release(jobID)
		if o.finalize != nil {
			o.finalize(slot, job)
		}

		o.mu.Lock()
		if cur, ok := o.slots[slot]; ok && cur.jobID == jobID {
			delete(o.slots, slot)
		}
		o.mu.Unlock()
	}()
}

func (o *Orchestrator) handlePermanentError(slot Slot, jobID string, err error) {
	o.mu.Lock()
	cur, ok := o.slots[slot]
	if !ok || cur.jobID != jobID || cur.finalized {
		o.mu.Unlock()
		return
	}
	cur.finalized = true
	o.mu.Unlock()

	log.Printf("Orchestrator: job %s is gone, giving up: %v", jobID, err)

	go func() {
		o.release(jobID)
		if o.onError != nil {
			o.onError(slot, jobID, err)
		}

		o.mu.Lock()
		if cur, ok := o.slots[slot]; ok && cur.jobID == jobID {
			delete(o.slots, slot)
		}
		o.mu.Unlock()
	}()
}

func (o *Orchestrator) release(jobID string) {
	o.poller.Stop(jobID)
	o.subscriber.Unsubscribe(jobID)
}

// releaseLocked 持有 o.mu 时的释放路径，实际停表动作移出锁外执行
func (o *Orchestrator) releaseLocked(jobID string) {
	go o.release(jobID)
}
