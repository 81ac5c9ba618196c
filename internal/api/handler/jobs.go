package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/qs3c/prodscope_tracker/internal/format"
	"github.com/qs3c/prodscope_tracker/internal/model"
	"github.com/qs3c/prodscope_tracker/internal/pkg/response"
	"github.com/qs3c/prodscope_tracker/internal/repository"
	"github.com/qs3c/prodscope_tracker/internal/tracker"
)

type JobHandler struct {
	store *tracker.Store
	orch  *tracker.Orchestrator
	repo  *repository.RecordRepository
}

func NewJobHandler(store *tracker.Store, orch *tracker.Orchestrator, repo *repository.RecordRepository) *JobHandler {
	return &JobHandler{
		store: store,
		orch:  orch,
		repo:  repo,
	}
}

// jobView 面向看板的快照视图，展示字段在服务端算好
type jobView struct {
	*model.Job
	StatusLabel string   `json:"status_label"`
	StatusBadge string   `json:"status_badge"`
	Duration    string   `json:"duration,omitempty"`
	LogLines    []string `json:"log_lines,omitempty"`
	Tracking    bool     `json:"tracking"`
}

func (h *JobHandler) view(job *model.Job) *jobView {
	v := &jobView{
		Job:         job,
		StatusLabel: format.StatusLabel(job.Status),
		StatusBadge: format.StatusBadge(job.Status),
		Duration:    format.Duration(job.StartedAt, job.CompletedAt),
	}
	for _, e := range job.Logs {
		v.LogLines = append(v.LogLines, format.LogLine(e))
	}
	_, v.Tracking = h.orch.FindSlot(job.ID)
	return v
}

// GetJob 任务快照
// GET /api/v1/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID := c.Param("id")

	job, ok := h.store.Get(jobID)
	if !ok {
		response.NotFoundError(c, "job "+jobID+" not found")
		return
	}

	response.Success(c, h.view(job))
}

// trackRequest 激活追踪的请求体
type trackRequest struct {
	Type               string `json:"type" binding:"required"`
	RecommendationType string `json:"recommendation_type"`
}

// TrackJob 开始追踪任务
// POST /api/v1/jobs/:id/track
func (h *JobHandler) TrackJob(c *gin.Context) {
	jobID := c.Param("id")

	var req trackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	var slot tracker.Slot
	switch req.Type {
	case model.JobTypeAnalysis, model.JobTypeTopicSearch:
		slot = tracker.SlotAnalysis
	case model.JobTypeRecommendations:
		slot = tracker.RecommendationSlot(model.NormalizeRecommendationType(req.RecommendationType))
	default:
		response.ParamError(c, "unknown job type: "+req.Type)
		return
	}

	h.orch.Track(slot, jobID)
	response.Success(c, gin.H{"job_id": jobID, "slot": string(slot)})
}

// UntrackJob 停止追踪任务
// DELETE /api/v1/jobs/:id/track
func (h *JobHandler) UntrackJob(c *gin.Context) {
	jobID := c.Param("id")

	slot, ok := h.orch.FindSlot(jobID)
	if !ok {
		response.NotFoundError(c, "job "+jobID+" is not tracked")
		return
	}

	h.orch.Untrack(slot)
	response.Success(c, gin.H{"job_id": jobID})
}

// ListRecords 终态任务历史
// GET /api/v1/jobs?page=1&page_size=20&type=analysis
func (h *JobHandler) ListRecords(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var (
		records []model.JobRecord
		total   int64
		err     error
	)
	if jobType := c.Query("type"); jobType != "" {
		records, total, err = h.repo.ListByType(jobType, page, pageSize)
	} else {
		records, total, err = h.repo.List(page, pageSize)
	}
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.SuccessPage(c, total, page, pageSize, records)
}

// GetRecord 单条历史存档（含成品原文）
// GET /api/v1/jobs/:id/record
func (h *JobHandler) GetRecord(c *gin.Context) {
	jobID := c.Param("id")

	rec, err := h.repo.GetByJobID(jobID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			response.NotFoundError(c, "no record for job "+jobID)
			return
		}
		response.ServerError(c, "")
		return
	}

	response.Success(c, rec)
}
