package tracker

import (
	"context"
	"log"
	"sync"

	"github.com/qs3c/prodscope_tracker/internal/model"
)

// Feed 实时日志通道。Subscribe 阻塞消费 jobID 的事件直到 ctx 取消，
// 具体实现见 internal/feed（WebSocket / Redis pub-sub）
type Feed interface {
	Subscribe(ctx context.Context, jobID string, handler func(model.LogEntry)) error
}

// EventFunc 事件写入 Store 之后的同步回调，携带合并后的快照
type EventFunc func(job *model.Job, entry model.LogEntry)

// Subscriber 给每个任务挂一条实时日志订阅。每次 Subscribe 发放新的
// 代数编号，退订后迟到的旧代数事件直接丢弃，不会串到新回调上
type Subscriber struct {
	feed  Feed
	store *Store

	mu   sync.Mutex
	gens map[string]uint64
	subs map[string]*subscription
}

type subscription struct {
	gen    uint64
	cancel context.CancelFunc
}

func NewSubscriber(feed Feed, store *Store) *Subscriber {
	return &Subscriber{
		feed:  feed,
		store: store,
		gens:  make(map[string]uint64),
		subs:  make(map[string]*subscription),
	}
}

// Subscribe 打开 jobID 的事件通道。重复订阅会替换旧通道
func (s *Subscriber) Subscribe(jobID string, onEvent EventFunc) {
	s.mu.Lock()
	if old, ok := s.subs[jobID]; ok {
		old.cancel()
	}
	s.gens[jobID]++
	gen := s.gens[jobID]

	ctx, cancel := context.WithCancel(context.Background())
	s.subs[jobID] = &subscription{gen: gen, cancel: cancel}
	s.mu.Unlock()

	go func() {
		err := s.feed.Subscribe(ctx, jobID, func(entry model.LogEntry) {
			s.apply(jobID, gen, entry, onEvent)
		})
		if err != nil && ctx.Err() == nil {
			log.Printf("Subscriber: feed for job %s closed: %v", jobID, err)
		}
	}()
}

// apply 代数校验与落库在同一把锁内完成：Unsubscribe 返回后不可能
// 再有旧回调执行
func (s *Subscriber) apply(jobID string, gen uint64, entry model.LogEntry, onEvent EventFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[jobID]
	if !ok || sub.gen != gen {
		log.Printf("Subscriber: dropping stale event for job %s (gen %d)", jobID, gen)
		return
	}

	job := s.store.AppendLog(jobID, entry)
	if onEvent != nil {
		onEvent(job, entry)
	}
}

// Unsubscribe 关闭通道，幂等
func (s *Subscriber) Unsubscribe(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sub, ok := s.subs[jobID]; ok {
		sub.cancel()
		delete(s.subs, jobID)
	}
}

// UnsubscribeAll 关闭全部通道
func (s *Subscriber) UnsubscribeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sub := range s.subs {
		sub.cancel()
		delete(s.subs, id)
	}
}
