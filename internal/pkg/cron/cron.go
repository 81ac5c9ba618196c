package cron

import (
	"log"
	"time"

	"github.com/qs3c/prodscope_tracker/internal/repository"
)

// Service 后台定时任务：每日清理过期的任务历史存档
type Service struct {
	recordRepo    *repository.RecordRepository
	retentionDays int
	stopChan      chan struct{}
}

func NewService(recordRepo *repository.RecordRepository, retentionDays int) *Service {
	return &Service{
		recordRepo:    recordRepo,
		retentionDays: retentionDays,
		stopChan:      make(chan struct{}),
	}
}

// Start 启动定时任务
func (s *Service) Start() {
	go s.runDailyPrune()
	log.Println("Cron service started (record retention)")
}

// Stop 停止定时任务
func (s *Service) Stop() {
	close(s.stopChan)
	log.Println("Cron service stopped")
}

// runDailyPrune 每日零点（UTC）清理一次
func (s *Service) runDailyPrune() {
	now := time.Now().UTC()
	nextMidnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
	timer := time.NewTimer(nextMidnight.Sub(now))

	for {
		select {
		case <-s.stopChan:
			timer.Stop()
			return
		case <-timer.C:
			s.pruneRecords()
			timer.Reset(24 * time.Hour)
		}
	}
}

// pruneRecords 删除超出保留期的历史存档
func (s *Service) pruneRecords() {
	retentionDays := s.retentionDays
	if retentionDays <= 0 {
		retentionDays = 90
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	deleted, err := s.recordRepo.DeleteOlderThan(cutoff)
	if err != nil {
		log.Printf("Record prune failed: %v", err)
		return
	}
	if deleted > 0 {
		log.Printf("Record prune completed: removed %d records older than %s", deleted, cutoff.Format("2006-01-02"))
	}
}

// RunNow 立即执行一次清理（用于测试或手动触发）
func (s *Service) RunNow() {
	s.pruneRecords()
}
