package tracker

import (
	"sync"

	"github.com/qs3c/prodscope_tracker/internal/model"
)

// Store 任务快照缓存。Poller 与 Subscriber 共同写入同一个任务，
// 合并规则（日志只增不减）是唯一的正确性保障，读-合并-写在一次加锁内完成
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*model.Job
}

func NewStore() *Store {
	return &Store{
		jobs: make(map[string]*model.Job),
	}
}

// Get 返回快照副本，调用方可安全修改
func (s *Store) Get(jobID string) (*model.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, false
	}
	return job.Clone(), true
}

// Put 整体替换。调用方若在合并日志，必须自行保证 Logs 已含全部旧条目，
// 一般应优先使用 Merge / AppendLog
func (s *Store) Put(jobID string, job *model.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[jobID] = job.Clone()
}

// Merge 合并一份刷新快照：新快照字段优先，但日志取并集，
// 且不丢弃旧快照已有而新快照缺失的可选字段。返回合并后的副本
func (s *Store) Merge(jobID string, snapshot *model.Job) *model.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := snapshot.Clone()
	if existing, ok := s.jobs[jobID]; ok {
		merged.Logs = mergeLogs(existing.Logs, snapshot.Logs)

		// 较慢的旧响应可能缺少较新响应已带上的字段，保留已知值
		if merged.StartedAt == nil {
			merged.StartedAt = existing.StartedAt
		}
		if merged.CompletedAt == nil {
			merged.CompletedAt = existing.CompletedAt
		}
		if merged.Results == nil {
			merged.Results = existing.Results
		}
		if merged.CreditsUsed == nil {
			merged.CreditsUsed = existing.CreditsUsed
		}
		if merged.Error == "" {
			merged.Error = existing.Error
		}
	}

	s.jobs[jobID] = merged
	return merged.Clone()
}

// AppendLog 追加一条实时日志。任务尚未入库时先建一个骨架快照，
// 等下一次轮询合并补全其余字段
func (s *Store) AppendLog(jobID string, entry model.LogEntry) *model.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		job = &model.Job{ID: jobID}
		s.jobs[jobID] = job
	}

	for _, existing := range job.Logs {
		if existing.Equal(entry) {
			return job.Clone()
		}
	}
	job.Logs = append(job.Logs, entry)
	return job.Clone()
}

// Remove 丢弃缓存状态
func (s *Store) Remove(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, jobID)
}

// Len 当前缓存的任务数
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// mergeLogs 取并集：保留 existing 全部条目及顺序，追加 incoming 中的新条目。
// 两个来源各自的相对顺序都不被打乱
func mergeLogs(existing, incoming []model.LogEntry) []model.LogEntry {
	if len(existing) == 0 {
		return incoming
	}

	merged := make([]model.LogEntry, len(existing), len(existing)+len(incoming))
	copy(merged, existing)

	for _, in := range incoming {
		seen := false
		for _, ex := range merged {
			if ex.Equal(in) {
				seen = true
				break
			}
		}
		if !seen {
			merged = append(merged, in)
		}
	}
	return merged
}
