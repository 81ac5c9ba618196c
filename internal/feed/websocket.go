package feed

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/qs3c/prodscope_tracker/config"
	"github.com/qs3c/prodscope_tracker/internal/model"
)

// wireMessage 上游 WebSocket 消息信封
type wireMessage struct {
	Type  string          `json:"type"`
	JobID string          `json:"job_id"`
	Data  json.RawMessage `json:"data"`
}

const msgTypeJobLog = "job_log"

// WebSocketFeed 通过上游 WebSocket 端点消费任务日志事件。
// 连接断开后按指数退避重连，直到 ctx 取消
type WebSocketFeed struct {
	baseURL  string
	apiToken string
}

func NewWebSocketFeed(cfg *config.UpstreamConfig) *WebSocketFeed {
	return &WebSocketFeed{
		baseURL:  strings.TrimRight(cfg.WSBaseURL, "/"),
		apiToken: cfg.APIToken,
	}
}

func (f *WebSocketFeed) url(jobID string) string {
	return f.baseURL + "/api/jobs/" + jobID + "/logs/ws"
}

// Subscribe 阻塞消费 jobID 的日志事件直到 ctx 取消
func (f *WebSocketFeed) Subscribe(ctx context.Context, jobID string, handler func(model.LogEntry)) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0 // 一直重连，只有 ctx 取消才停

	header := http.Header{}
	if f.apiToken != "" {
		header.Set("Authorization", "Bearer "+f.apiToken)
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url(jobID), header)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			wait := bo.NextBackOff()
			log.Printf("WebSocketFeed: dial failed for job %s, retrying in %s: %v", jobID, wait, err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}

		bo.Reset()
		f.readLoop(ctx, conn, jobID, handler)
		conn.Close()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("WebSocketFeed: connection for job %s closed, reconnecting", jobID)
	}
}

func (f *WebSocketFeed) readLoop(ctx context.Context, conn *websocket.Conn, jobID string, handler func(model.LogEntry)) {
	// ctx 取消时强制关闭连接，解除 ReadMessage 阻塞
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg wireMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("WebSocketFeed: dropping malformed message for job %s: %v", jobID, err)
			continue
		}
		if msg.Type != msgTypeJobLog {
			continue
		}
		if msg.JobID != "" && msg.JobID != jobID {
			continue
		}

		var entry model.LogEntry
		if err := json.Unmarshal(msg.Data, &entry); err != nil {
			log.Printf("WebSocketFeed: dropping malformed log entry for job %s: %v", jobID, err)
			continue
		}

		handler(entry)
	}
}
