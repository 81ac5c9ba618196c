package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/prodscope_tracker/config"
	"github.com/qs3c/prodscope_tracker/internal/model"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func TestWebSocketFeed_Subscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/jobs/job-1/logs/ws", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		conn, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		messages := []string{
			`{"type":"job_log","job_id":"job-1","data":{"step":"scrape","message":"started"}}`,
			`garbage`, // 畸形消息丢弃
			`{"type":"heartbeat"}`,                                                          // 非日志消息忽略
			`{"type":"job_log","job_id":"job-2","data":{"step":"x","message":"other job"}}`, // 串台消息忽略
			`{"type":"job_log","job_id":"job-1","data":{"step":"analyze","message":"done"}}`,
		}
		for _, m := range messages {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(m)))
		}

		// 保持连接直到客户端断开
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	f := NewWebSocketFeed(&config.UpstreamConfig{
		WSBaseURL: "ws" + strings.TrimPrefix(srv.URL, "http"),
		APIToken:  "test-token",
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []model.LogEntry
	done := make(chan error, 1)
	go func() {
		done <- f.Subscribe(ctx, "job-1", func(e model.LogEntry) {
			mu.Lock()
			got = append(got, e)
			mu.Unlock()
		})
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, "started", got[0].Message)
	assert.Equal(t, "done", got[1].Message)
	mu.Unlock()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("subscribe did not return after cancel")
	}
}

func TestWebSocketFeed_ReconnectsAfterDrop(t *testing.T) {
	var mu sync.Mutex
	conns := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)

		mu.Lock()
		conns++
		n := conns
		mu.Unlock()

		if n == 1 {
			// 第一条连接发一条后立刻断开
			conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"job_log","data":{"step":"s","message":"first"}}`))
			conn.Close()
			return
		}

		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"job_log","data":{"step":"s","message":"second"}}`))
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	f := NewWebSocketFeed(&config.UpstreamConfig{
		WSBaseURL: "ws" + strings.TrimPrefix(srv.URL, "http"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var gotMu sync.Mutex
	var got []string
	go f.Subscribe(ctx, "job-1", func(e model.LogEntry) {
		gotMu.Lock()
		got = append(got, e.Message)
		gotMu.Unlock()
	})

	require.Eventually(t, func() bool {
		gotMu.Lock()
		defer gotMu.Unlock()
		return len(got) >= 2
	}, 5*time.Second, 10*time.Millisecond)

	gotMu.Lock()
	assert.Equal(t, "first", got[0])
	assert.Equal(t, "second", got[1])
	gotMu.Unlock()
}
