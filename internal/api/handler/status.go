package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/prodscope_tracker/internal/pkg/response"
	"github.com/qs3c/prodscope_tracker/internal/statuswatch"
)

type StatusHandler struct {
	watcher *statuswatch.Watcher
}

func NewStatusHandler(watcher *statuswatch.Watcher) *StatusHandler {
	return &StatusHandler{watcher: watcher}
}

// GetStatus 平台总览（末次成功快照 + 连通性横幅）
// GET /api/v1/status
func (h *StatusHandler) GetStatus(c *gin.Context) {
	overview, ready := h.watcher.Latest()

	data := gin.H{"overview": overview, "ready": ready}
	if err := h.watcher.LastError(); err != nil {
		data["banner"] = "status refresh failed: " + err.Error()
	}
	response.Success(c, data)
}

// RefreshStatus 立即触发一次总览刷新
// POST /api/v1/status/refresh
func (h *StatusHandler) RefreshStatus(c *gin.Context) {
	h.watcher.RefreshNow()
	response.Success(c, gin.H{"scheduled": true})
}
