package feed

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/prodscope_tracker/internal/model"
)

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return client, cleanup
}

func TestJobLogsChannel(t *testing.T) {
	assert.Equal(t, "job_logs:job-1", JobLogsChannel("job-1"))
}

func TestRedisFeed_Subscribe(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	f := NewRedisFeed(client)
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

	// 等订阅建立
	require.Eventually(t, func() bool {
		n, err := client.PubSubNumSub(context.Background(), JobLogsChannel("job-1")).Result()
		return err == nil && n[JobLogsChannel("job-1")] == 1
	}, time.Second, 5*time.Millisecond)

	publish := func(payload string) {
		require.NoError(t, client.Publish(context.Background(), JobLogsChannel("job-1"), payload).Err())
	}

	publish(`{"step":"scrape","message":"started"}`)
	publish(`not json at all`) // 畸形载荷丢弃，订阅不中断
	publish(`{"step":"scrape","message":"done","details":{"pages":3}}`)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, "started", got[0].Message)
	assert.Equal(t, "done", got[1].Message)
	assert.Equal(t, model.DetailsMap, got[1].Details.Kind)
	mu.Unlock()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("subscribe did not return after cancel")
	}
}

func TestRedisFeed_ChannelsAreScoped(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	f := NewRedisFeed(client)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []model.LogEntry
	go f.Subscribe(ctx, "job-1", func(e model.LogEntry) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
	})

	require.Eventually(t, func() bool {
		n, err := client.PubSubNumSub(context.Background(), JobLogsChannel("job-1")).Result()
		return err == nil && n[JobLogsChannel("job-1")] == 1
	}, time.Second, 5*time.Millisecond)

	// 别的任务的事件不会串台
	require.NoError(t, client.Publish(context.Background(), JobLogsChannel("job-2"), `{"step":"x","message":"other"}`).Err())
	require.NoError(t, client.Publish(context.Background(), JobLogsChannel("job-1"), `{"step":"x","message":"mine"}`).Err())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, "mine", got[0].Message)
	mu.Unlock()
}
