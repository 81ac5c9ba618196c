package format

import (
	"fmt"
	"time"

	"github.com/qs3c/prodscope_tracker/internal/model"
)

// Duration 任务耗时，如 "2m 5s" / "45s"。completedAt 缺失时返回空串（不渲染）
func Duration(startedAt, completedAt *time.Time) string {
	if startedAt == nil || completedAt == nil {
		return ""
	}

	total := int(completedAt.Sub(*startedAt).Seconds())
	if total < 0 {
		total = 0
	}

	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

// Timestamp 日志时间戳，HH:MM:SS，缺失返回空串
func Timestamp(ts *time.Time) string {
	if ts == nil {
		return ""
	}
	return ts.Format("15:04:05")
}

// DateTime 完整时间展示
func DateTime(ts time.Time) string {
	return ts.Format("2006-01-02 15:04:05")
}

var statusLabels = map[model.JobStatus]string{
	model.StatusPending:    "Pending",
	model.StatusInProgress: "In Progress",
	model.StatusCompleted:  "Completed",
	model.StatusFailed:     "Failed",
	model.StatusCancelled:  "Cancelled",
}

var statusBadges = map[model.JobStatus]string{
	model.StatusPending:    "badge-pending",
	model.StatusInProgress: "badge-running",
	model.StatusCompleted:  "badge-success",
	model.StatusFailed:     "badge-error",
	model.StatusCancelled:  "badge-muted",
}

// StatusLabel 状态展示文案，未知状态原样返回
func StatusLabel(s model.JobStatus) string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// StatusBadge 状态徽标样式名
func StatusBadge(s model.JobStatus) string {
	if badge, ok := statusBadges[s]; ok {
		return badge
	}
	return "badge-muted"
}

// LogLine 单条日志的展示行: "[HH:MM:SS] step: message (details)"
func LogLine(e model.LogEntry) string {
	line := e.Message
	if e.Step != "" {
		line = e.Step + ": " + line
	}
	if ts := Timestamp(e.Timestamp); ts != "" {
		line = "[" + ts + "] " + line
	}
	if details := e.Details.String(); details != "" {
		line += " (" + details + ")"
	}
	return line
}
