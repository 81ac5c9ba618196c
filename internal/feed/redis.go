package feed

import (
	"context"
	"encoding/json"
	"log"

	"github.com/go-redis/redis/v8"

	"github.com/qs3c/prodscope_tracker/internal/model"
)

const jobLogsChannelPrefix = "job_logs:"

// JobLogsChannel 某任务实时日志的 Redis 频道名
func JobLogsChannel(jobID string) string {
	return jobLogsChannelPrefix + jobID
}

// RedisFeed 从 Redis pub/sub 消费任务日志事件，适用于与上游同机房部署
type RedisFeed struct {
	client *redis.Client
}

func NewRedisFeed(client *redis.Client) *RedisFeed {
	return &RedisFeed{client: client}
}

// Subscribe 阻塞消费 jobID 的日志事件直到 ctx 取消。
// 无法解析的载荷丢弃并记日志，不中断订阅
func (f *RedisFeed) Subscribe(ctx context.Context, jobID string, handler func(model.LogEntry)) error {
	pubsub := f.client.Subscribe(ctx, JobLogsChannel(jobID))
	defer pubsub.Close()

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var entry model.LogEntry
			if err := json.Unmarshal([]byte(msg.Payload), &entry); err != nil {
				log.Printf("RedisFeed: dropping malformed event for job %s: %v", jobID, err)
				continue
			}

			handler(entry)
		}
	}
}
