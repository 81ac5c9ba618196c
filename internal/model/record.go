package model

import (
	"encoding/json"
	"time"
)

// JobRecord 终态任务的落库存档，供看板历史列表查询。
// 活跃任务只存在于内存快照里，进入终态后由 finalize 流程写入一条存档
type JobRecord struct {
	ID                 int64      `gorm:"primaryKey" json:"id"`
	JobID              string     `gorm:"size:64;uniqueIndex;not null" json:"job_id"`
	JobType            string     `gorm:"size:32;index" json:"job_type"`
	RecommendationType string     `gorm:"size:32" json:"recommendation_type,omitempty"`
	Status             string     `gorm:"size:20;index" json:"status"`
	Error              string     `gorm:"type:text" json:"error,omitempty"`
	PostsCount         int        `json:"posts_count"`
	ProductsCount      int        `json:"products_count"`
	CreditsUsed        float64    `json:"credits_used"`
	LogCount           int        `json:"log_count"`
	Artifact           string     `gorm:"type:text" json:"artifact,omitempty"` // 成品 JSON 原文
	JobCreatedAt       time.Time  `json:"job_created_at"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CreatedAt          time.Time  `gorm:"index" json:"created_at"`
}

func (JobRecord) TableName() string {
	return "job_records"
}

// NewJobRecord 从终态快照生成存档
func NewJobRecord(job *Job, artifact json.RawMessage) *JobRecord {
	rec := &JobRecord{
		JobID:        job.ID,
		JobType:      job.Parameters.Type,
		Status:       string(job.Status),
		Error:        job.Error,
		LogCount:     len(job.Logs),
		JobCreatedAt: job.CreatedAt,
		StartedAt:    job.StartedAt,
		CompletedAt:  job.CompletedAt,
		Artifact:     string(artifact),
	}
	if job.Parameters.Type == JobTypeRecommendations {
		rec.RecommendationType = string(job.Parameters.RecommendationType)
	}
	if job.Results != nil {
		rec.PostsCount = job.Results.PostsCount
		rec.ProductsCount = job.Results.ProductsCount
	}
	if job.CreditsUsed != nil {
		rec.CreditsUsed = *job.CreditsUsed
	}
	return rec
}
