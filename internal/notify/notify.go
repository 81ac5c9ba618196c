package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/qs3c/prodscope_tracker/internal/pkg/ws"
)

type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
)

// Notification 用户可见的一次性提示（完成横幅、失败横幅等）
type Notification struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	JobID     string    `json:"job_id,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

func New(kind Kind, jobID, message string) Notification {
	return Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		JobID:     jobID,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
}

type Notifier interface {
	Notify(n Notification)
}

// LogNotifier 本地日志通知，兜底实现
type LogNotifier struct{}

func (LogNotifier) Notify(n Notification) {
	log.Printf("Notification [%s] job=%s: %s", n.Kind, n.JobID, n.Message)
}

// RedisNotifier 把通知发布到 Redis 频道，供其他实例或前端网关消费
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel}
}

func (r *RedisNotifier) Notify(n Notification) {
	data, err := json.Marshal(n)
	if err != nil {
		log.Printf("RedisNotifier: failed to marshal notification: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		log.Printf("RedisNotifier: publish failed: %v", err)
	}
}

// HubNotifier 把通知推给所有在线看板连接
type HubNotifier struct {
	hub *ws.Hub
}

func NewHubNotifier(hub *ws.Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

func (h *HubNotifier) Notify(n Notification) {
	if err := h.hub.Broadcast(&ws.Message{Type: "notification", Data: n}); err != nil {
		log.Printf("HubNotifier: broadcast failed: %v", err)
	}
}

// Multi 把一条通知扇出给多个 Notifier
type Multi []Notifier

func (m Multi) Notify(n Notification) {
	for _, notifier := range m {
		notifier.Notify(n)
	}
}
