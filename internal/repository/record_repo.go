package repository

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qs3c/prodscope_tracker/internal/model"
)

type RecordRepository struct {
	db *gorm.DB
}

func NewRecordRepository(db *gorm.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// Save 按 job_id 幂等落档：重复 finalize（进程重启后重放）覆盖旧档
func (r *RecordRepository) Save(rec *model.JobRecord) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "job_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status", "error", "posts_count", "products_count",
			"credits_used", "log_count", "artifact", "started_at", "completed_at",
		}),
	}).Create(rec).Error
}

func (r *RecordRepository) GetByJobID(jobID string) (*model.JobRecord, error) {
	var rec model.JobRecord
	err := r.db.Where("job_id = ?", jobID).First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List 按落档时间倒序分页
func (r *RecordRepository) List(page, pageSize int) ([]model.JobRecord, int64, error) {
	var total int64
	if err := r.db.Model(&model.JobRecord{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []model.JobRecord
	err := r.db.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&records).Error
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// ListByType 按任务类型过滤
func (r *RecordRepository) ListByType(jobType string, page, pageSize int) ([]model.JobRecord, int64, error) {
	q := r.db.Model(&model.JobRecord{}).Where("job_type = ?", jobType)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []model.JobRecord
	err := q.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&records).Error
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// DeleteOlderThan 清理过期存档，返回删除行数
func (r *RecordRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result := r.db.Where("created_at < ?", cutoff).Delete(&model.JobRecord{})
	return result.RowsAffected, result.Error
}
