package statuswatch

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/qs3c/prodscope_tracker/internal/model"
)

// FetchFunc 拉取一次全局状态
type FetchFunc func(ctx context.Context) (*model.StatusOverview, error)

// Watcher 全局状态轮询器。常规 15 秒一拍；上游抓取进行中时切到快拍；
// RefreshNow 支持外部信号（如 scrapeStarted）触发立即刷新。
// 拉取失败保留上一次成功的快照，错误以横幅状态暴露，下次成功自动清除
type Watcher struct {
	fetch        FetchFunc
	interval     time.Duration
	fastInterval time.Duration
	onUpdate     func(*model.StatusOverview)

	mu      sync.RWMutex
	latest  *model.StatusOverview
	lastErr error

	refreshCh chan struct{}
	stopCh    chan struct{}
	stopOnce  sync.Once
}

func New(fetch FetchFunc, interval, fastInterval time.Duration, onUpdate func(*model.StatusOverview)) *Watcher {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if fastInterval <= 0 || fastInterval > interval {
		fastInterval = interval
	}
	return &Watcher{
		fetch:        fetch,
		interval:     interval,
		fastInterval: fastInterval,
		onUpdate:     onUpdate,
		refreshCh:    make(chan struct{}, 1),
		stopCh:       make(chan struct{}),
	}
}

// Start 启动轮询循环
func (w *Watcher) Start() {
	go w.run()
}

func (w *Watcher) run() {
	w.refresh()

	timer := time.NewTimer(w.nextInterval())
	defer timer.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-w.refreshCh:
			// 外部唤醒：立即拉一拍
			w.refresh()
		case <-timer.C:
			w.refresh()
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(w.nextInterval())
	}
}

func (w *Watcher) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	overview, err := w.fetch(ctx)

	w.mu.Lock()
	if err != nil {
		w.lastErr = err
		w.mu.Unlock()
		log.Printf("StatusWatcher: refresh failed: %v", err)
		return
	}
	w.latest = overview
	w.lastErr = nil
	w.mu.Unlock()

	if w.onUpdate != nil {
		w.onUpdate(overview)
	}
}

func (w *Watcher) nextInterval() time.Duration {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.latest != nil && w.latest.ScrapeInProgress {
		return w.fastInterval
	}
	return w.interval
}

// RefreshNow 请求立即刷新；重复请求合并为一拍
func (w *Watcher) RefreshNow() {
	select {
	case w.refreshCh <- struct{}{}:
	default:
	}
}

// Latest 最近一次成功的快照
func (w *Watcher) Latest() (*model.StatusOverview, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.latest == nil {
		return nil, false
	}
	overview := *w.latest
	return &overview, true
}

// LastError 当前横幅错误，成功刷新后为 nil
func (w *Watcher) LastError() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastErr
}

// Stop 停止轮询，幂等
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}
