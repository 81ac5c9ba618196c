package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/qs3c/prodscope_tracker/config"
	"github.com/qs3c/prodscope_tracker/internal/client"
	"github.com/qs3c/prodscope_tracker/internal/database"
	"github.com/qs3c/prodscope_tracker/internal/feed"
	"github.com/qs3c/prodscope_tracker/internal/format"
	"github.com/qs3c/prodscope_tracker/internal/model"
	"github.com/qs3c/prodscope_tracker/internal/tracker"
)

// watch 在终端里跟踪单个任务直到终态，适合调试上游接入
func main() {
	var (
		configPath = flag.String("config", "config.yaml", "config file path")
		jobID      = flag.String("job", "", "job id to follow")
		jobType    = flag.String("type", model.JobTypeAnalysis, "job type: analysis / recommendations / topic_search")
		recType    = flag.String("rec-type", "", "recommendation type (recommendations jobs only)")
	)
	flag.Parse()

	if *jobID == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	apiClient := client.New(&cfg.Upstream)

	var logFeed tracker.Feed
	switch cfg.Upstream.Feed {
	case "redis":
		rdb, err := database.NewRedis(&cfg.Redis)
		if err != nil {
			log.Fatalf("Failed to connect redis: %v", err)
		}
		logFeed = feed.NewRedisFeed(rdb)
	default:
		logFeed = feed.NewWebSocketFeed(&cfg.Upstream)
	}

	var slot tracker.Slot
	switch *jobType {
	case model.JobTypeRecommendations:
		slot = tracker.RecommendationSlot(model.NormalizeRecommendationType(*recType))
	default:
		slot = tracker.SlotAnalysis
	}

	store := tracker.NewStore()
	poller := tracker.NewPoller(store)
	subscriber := tracker.NewSubscriber(logFeed, store)

	done := make(chan *model.Job, 1)

	finalize := func(slot tracker.Slot, job *model.Job) {
		done <- job
	}

	seen := 0
	orch := tracker.NewOrchestrator(store, poller, subscriber, apiClient.GetJob, cfg.Tracker.PollInterval, finalize, tracker.Options{
		// 实时事件也会并入快照，这里统一在轮询回调里按序输出，避免重复打印
		OnUpdate: func(job *model.Job) {
			for ; seen < len(job.Logs); seen++ {
				fmt.Println(format.LogLine(job.Logs[seen]))
			}
			fmt.Printf("-- %s\n", format.StatusLabel(job.Status))
		},
		OnError: func(slot tracker.Slot, jobID string, err error) {
			log.Fatalf("Tracking aborted: %v", err)
		},
	})

	fmt.Printf("Following job %s (%s)\n", *jobID, slot)
	orch.Track(slot, *jobID)

	job := <-done
	orch.Shutdown()

	fmt.Printf("\nJob %s: %s", job.ID, format.StatusLabel(job.Status))
	if d := format.Duration(job.StartedAt, job.CompletedAt); d != "" {
		fmt.Printf(" in %s", d)
	}
	fmt.Println()
	if job.Error != "" {
		fmt.Printf("Error: %s\n", job.Error)
	}
	if job.Results != nil {
		fmt.Printf("Results: %d posts, %d products\n", job.Results.PostsCount, job.Results.ProductsCount)
	}
	if job.Status != model.StatusCompleted {
		os.Exit(1)
	}
}
