package testutil

import (
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/prodscope_tracker/internal/model"
)

// NewCompletedJob 一个已完成的分析任务快照
func NewCompletedJob(jobID string) *model.Job {
	created := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	started := created.Add(5 * time.Second)
	completed := started.Add(2 * time.Minute)

	return &model.Job{
		ID:          jobID,
		Status:      model.StatusCompleted,
		Parameters:  model.JobParameters{Type: model.JobTypeAnalysis},
		CreatedAt:   created,
		StartedAt:   &started,
		CompletedAt: &completed,
		Results:     &model.JobResults{PostsCount: 42, ProductsCount: 7},
		Logs: []model.LogEntry{
			{Step: "scrape", Message: "fetching posts"},
			{Step: "analyze", Message: "llm pass"},
		},
	}
}

// CreateJobRecord 落一条存档
func CreateJobRecord(t *testing.T, db *gorm.DB, jobID string, status model.JobStatus) *model.JobRecord {
	t.Helper()

	rec := model.NewJobRecord(NewCompletedJob(jobID), nil)
	rec.Status = string(status)
	if err := db.Create(rec).Error; err != nil {
		t.Fatalf("Failed to create job record fixture: %v", err)
	}
	return rec
}
