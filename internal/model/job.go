package model

import (
	"encoding/json"
	"time"
)

// JobStatus 任务状态（封闭集合）
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusInProgress JobStatus = "in_progress"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusCancelled  JobStatus = "cancelled"
)

// Terminal 是否为终态：completed / failed / cancelled 之后不再有状态迁移
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Valid 是否为已知状态值
func (s JobStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// 任务类型判别标签
const (
	JobTypeAnalysis        = "analysis"
	JobTypeRecommendations = "recommendations"
	JobTypeTopicSearch     = "topic_search" // 旧版自由话题搜索
)

// RecommendationType 推荐任务的子类型
type RecommendationType string

const (
	RecImproveProduct   RecommendationType = "improve_product"
	RecNewFeature       RecommendationType = "new_feature"
	RecCompetingProduct RecommendationType = "competing_product"
)

// NormalizeRecommendationType 校验推荐类型，未知值回落到 improve_product
func NormalizeRecommendationType(v string) RecommendationType {
	switch RecommendationType(v) {
	case RecImproveProduct, RecNewFeature, RecCompetingProduct:
		return RecommendationType(v)
	}
	return RecImproveProduct
}

// JobParameters 任务参数。载荷随任务类型变化，这里只解析判别标签，
// 其余字段原样保留给消费方
type JobParameters struct {
	Type               string             `json:"type"`
	RecommendationType RecommendationType `json:"recommendation_type,omitempty"`
	Raw                json.RawMessage    `json:"-"`
}

func (p *JobParameters) UnmarshalJSON(data []byte) error {
	type alias struct {
		Type               string `json:"type"`
		RecommendationType string `json:"recommendation_type"`
	}
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	p.Type = a.Type
	if a.Type == JobTypeRecommendations {
		p.RecommendationType = NormalizeRecommendationType(a.RecommendationType)
	}
	p.Raw = append(p.Raw[:0], data...)
	return nil
}

func (p JobParameters) MarshalJSON() ([]byte, error) {
	if len(p.Raw) > 0 {
		return p.Raw, nil
	}
	type alias struct {
		Type               string             `json:"type"`
		RecommendationType RecommendationType `json:"recommendation_type,omitempty"`
	}
	return json.Marshal(alias{Type: p.Type, RecommendationType: p.RecommendationType})
}

// JobResults 任务结果。后端填充后才出现；载荷整体保留，计数字段单独解出
type JobResults struct {
	PostsCount    int             `json:"posts_count"`
	ProductsCount int             `json:"products_count"`
	Raw           json.RawMessage `json:"-"`
}

func (r *JobResults) UnmarshalJSON(data []byte) error {
	type alias struct {
		PostsCount    int `json:"posts_count"`
		ProductsCount int `json:"products_count"`
	}
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	r.PostsCount = a.PostsCount
	r.ProductsCount = a.ProductsCount
	r.Raw = append(r.Raw[:0], data...)
	return nil
}

func (r JobResults) MarshalJSON() ([]byte, error) {
	if len(r.Raw) > 0 {
		return r.Raw, nil
	}
	type alias struct {
		PostsCount    int `json:"posts_count"`
		ProductsCount int `json:"products_count"`
	}
	return json.Marshal(alias{PostsCount: r.PostsCount, ProductsCount: r.ProductsCount})
}

// Job 上游后端拥有的异步任务，本服务只持有只读快照
type Job struct {
	ID          string        `json:"id"`
	Status      JobStatus     `json:"status"`
	Parameters  JobParameters `json:"parameters"`
	CreatedAt   time.Time     `json:"created_at"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Results     *JobResults   `json:"results,omitempty"`
	Error       string        `json:"error,omitempty"`
	Logs        []LogEntry    `json:"logs,omitempty"`
	CreditsUsed *float64      `json:"credits_used,omitempty"`
}

// Clone 深拷贝快照，Logs 切片独立
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	if j.Logs != nil {
		c.Logs = make([]LogEntry, len(j.Logs))
		copy(c.Logs, j.Logs)
	}
	return &c
}
