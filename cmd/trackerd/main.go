package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/qs3c/prodscope_tracker/config"
	"github.com/qs3c/prodscope_tracker/internal/api"
	"github.com/qs3c/prodscope_tracker/internal/api/handler"
	"github.com/qs3c/prodscope_tracker/internal/artifact"
	"github.com/qs3c/prodscope_tracker/internal/client"
	"github.com/qs3c/prodscope_tracker/internal/database"
	"github.com/qs3c/prodscope_tracker/internal/feed"
	"github.com/qs3c/prodscope_tracker/internal/format"
	"github.com/qs3c/prodscope_tracker/internal/model"
	"github.com/qs3c/prodscope_tracker/internal/notify"
	"github.com/qs3c/prodscope_tracker/internal/pkg/cron"
	"github.com/qs3c/prodscope_tracker/internal/pkg/ws"
	"github.com/qs3c/prodscope_tracker/internal/repository"
	"github.com/qs3c/prodscope_tracker/internal/statuswatch"
	"github.com/qs3c/prodscope_tracker/internal/tracker"
)

func main() {
	// 加载配置
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化数据库
	db, err := database.New(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	log.Println("Database connected")

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect redis: %v", err)
	}
	log.Println("Redis connected")

	// 上游客户端
	apiClient := client.New(&cfg.Upstream)

	// 实时日志通道
	var logFeed tracker.Feed
	switch cfg.Upstream.Feed {
	case "redis":
		logFeed = feed.NewRedisFeed(rdb)
	default:
		logFeed = feed.NewWebSocketFeed(&cfg.Upstream)
	}
	log.Printf("Log feed: %s", cfg.Upstream.Feed)

	// 成品拉取：配好 OSS 就走桶，否则走上游 REST
	var fetcher artifact.Fetcher
	if cfg.OSS.Endpoint != "" && cfg.OSS.AccessKeyID != "" {
		fetcher, err = artifact.NewOSSFetcher(&cfg.OSS)
		if err != nil {
			log.Fatalf("Failed to init OSS fetcher: %v", err)
		}
		log.Println("Artifact fetcher: OSS")
	} else {
		fetcher = artifact.NewAPIFetcher(apiClient)
		log.Println("Artifact fetcher: upstream API")
	}

	// WebSocket Hub
	hub := ws.NewHub()

	// 通知链路：本地日志 + 看板全量广播，配了频道再加 Redis
	notifier := notify.Multi{notify.LogNotifier{}, notify.NewHubNotifier(hub)}
	if cfg.Notify.Channel != "" {
		notifier = append(notifier, notify.NewRedisNotifier(rdb, cfg.Notify.Channel))
	}

	// Repository
	recordRepo := repository.NewRecordRepository(db)

	// 追踪核心
	store := tracker.NewStore()
	poller := tracker.NewPoller(store)
	subscriber := tracker.NewSubscriber(logFeed, store)

	finalize := func(slot tracker.Slot, job *model.Job) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		var raw []byte
		if job.Status == model.StatusCompleted {
			data, ferr := fetcher.Fetch(ctx, job)
			if ferr != nil {
				log.Printf("Artifact fetch failed for job %s: %v", job.ID, ferr)
			} else {
				raw = data
			}
		}

		if err := recordRepo.Save(model.NewJobRecord(job, raw)); err != nil {
			log.Printf("Failed to save record for job %s: %v", job.ID, err)
		}

		switch job.Status {
		case model.StatusCompleted:
			notifier.Notify(notify.New(notify.KindSuccess, job.ID,
				fmt.Sprintf("Job completed in %s", format.Duration(job.StartedAt, job.CompletedAt))))
		case model.StatusFailed:
			notifier.Notify(notify.New(notify.KindError, job.ID, "Job failed: "+job.Error))
		case model.StatusCancelled:
			notifier.Notify(notify.New(notify.KindInfo, job.ID, "Job cancelled"))
		}
	}

	orch := tracker.NewOrchestrator(store, poller, subscriber, apiClient.GetJob, cfg.Tracker.PollInterval, finalize, tracker.Options{
		OnUpdate: func(job *model.Job) {
			hub.SendToTopic(job.ID, &ws.Message{Type: "job_update", Data: job})
		},
		OnEvent: func(job *model.Job, entry model.LogEntry) {
			hub.SendToTopic(job.ID, &ws.Message{Type: "job_log", Data: entry})
		},
		OnError: func(slot tracker.Slot, jobID string, err error) {
			notifier.Notify(notify.New(notify.KindError, jobID, "Tracking aborted: "+err.Error()))
		},
	})

	// 平台总览轮询
	watcher := statuswatch.New(apiClient.GetStatus, cfg.Status.PollInterval, cfg.Status.FastInterval,
		func(overview *model.StatusOverview) {
			hub.Broadcast(&ws.Message{Type: "status_update", Data: overview})
		})
	watcher.Start()

	// 历史存档清理
	cronService := cron.NewService(recordRepo, cfg.Tracker.RetentionDays)
	cronService.Start()

	// Handler 与路由
	jobHandler := handler.NewJobHandler(store, orch, recordRepo)
	statusHandler := handler.NewStatusHandler(watcher)
	websocketHandler := handler.NewWebSocketHandler(hub, &cfg.JWT)

	router := api.NewRouter(jobHandler, statusHandler, websocketHandler, cfg)
	engine := router.Setup()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{Addr: addr, Handler: engine}

	go func() {
		log.Printf("Server starting on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 监听退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Println("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}

	cronService.Stop()
	watcher.Stop()
	orch.Shutdown()
	log.Println("Tracker shutdown complete")
}
