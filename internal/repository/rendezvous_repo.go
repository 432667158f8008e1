package repository

import (
	"context"

	"gorm.io/gorm"

	"paname-consulting/backend/internal/model"
	pkgerrors "paname-consulting/backend/pkg/errors"
)

// RendezvousFilter 预约列表过滤条件
type RendezvousFilter struct {
	UserID string
	Status model.RendezvousStatus
	Date   string
	Search string // 姓名 / 邮箱模糊匹配
}

// RendezvousRepository 预约数据访问接口
type RendezvousRepository interface {
	Create(ctx context.Context, rdv *model.Rendezvous) error
	GetByID(ctx context.Context, id string) (*model.Rendezvous, error)
	ListActiveSlotsByDate(ctx context.Context, date string) ([]string, error)
	List(ctx context.Context, filter RendezvousFilter, page Page) ([]model.Rendezvous, int64, error)
	ListByDateRange(ctx context.Context, from, to string) ([]model.Rendezvous, error)
	Update(ctx context.Context, rdv *model.Rendezvous) error
	SoftDelete(ctx context.Context, id, deletedBy string) error
}

type rendezvousRepo struct {
	db *gorm.DB
}

// NewRendezvousRepo 创建 RendezvousRepository 实例
func NewRendezvousRepo(db *gorm.DB) RendezvousRepository {
	return &rendezvousRepo{db: db}
}

// Create 插入预约；同一时段已有活跃预约时部分唯一索引冲突，返回 pkgerrors.ErrDuplicate
func (r *rendezvousRepo) Create(ctx context.Context, rdv *model.Rendezvous) error {
	return translateWriteError(r.db.WithContext(ctx).Create(rdv).Error)
}

func (r *rendezvousRepo) GetByID(ctx context.Context, id string) (*model.Rendezvous, error) {
	if !validID(id) {
		return nil, gorm.ErrRecordNotFound
	}
	var rdv model.Rendezvous
	err := r.db.WithContext(ctx).
		Where("rendezvous_id = ?", id).
		First(&rdv).Error
	if err != nil {
		return nil, err
	}
	return &rdv, nil
}

// ListActiveSlotsByDate 某日 pending / confirmed 预约占用的时段，升序
func (r *rendezvousRepo) ListActiveSlotsByDate(ctx context.Context, date string) ([]string, error) {
	var slots []string
	err := r.db.WithContext(ctx).
		Model(&model.Rendezvous{}).
		Where("date = ? AND status IN ?", date, model.ActiveRendezvousStatuses).
		Order("time ASC").
		Pluck("time", &slots).Error
	if err != nil {
		return nil, err
	}
	return slots, nil
}

func (r *rendezvousRepo) List(ctx context.Context, filter RendezvousFilter, page Page) ([]model.Rendezvous, int64, error) {
	var list []model.Rendezvous
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Rendezvous{})
	if filter.UserID != "" {
		db = db.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.Date != "" {
		db = db.Where("date = ?", filter.Date)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		db = db.Where("(first_name ILIKE ? OR last_name ILIKE ? OR email ILIKE ?)", like, like, like)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.
		Offset(page.Offset).Limit(page.Limit).
		Order("date DESC, time DESC").
		Find(&list).Error; err != nil {
		return nil, 0, err
	}

	return list, total, nil
}

// ListByDateRange 闭区间 [from, to] 内的全部预约（导出用）
func (r *rendezvousRepo) ListByDateRange(ctx context.Context, from, to string) ([]model.Rendezvous, error) {
	var list []model.Rendezvous
	err := r.db.WithContext(ctx).
		Where("date >= ? AND date <= ?", from, to).
		Order("date ASC, time ASC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

// Update 按 version 条件写入全部可变字段
func (r *rendezvousRepo) Update(ctx context.Context, rdv *model.Rendezvous) error {
	oldVersion := rdv.Version
	result := r.db.WithContext(ctx).
		Model(&model.Rendezvous{}).
		Where("rendezvous_id = ? AND version = ?", rdv.RendezvousID, oldVersion).
		Updates(map[string]interface{}{
			"first_name":          rdv.FirstName,
			"last_name":           rdv.LastName,
			"email":               rdv.Email,
			"phone":               rdv.Phone,
			"destination":         rdv.Destination,
			"education_level":     rdv.EducationLevel,
			"field_of_study":      rdv.FieldOfStudy,
			"date":                rdv.Date,
			"time":                rdv.Time,
			"status":              rdv.Status,
			"admin_verdict":       rdv.AdminVerdict,
			"confirmed_at":        rdv.ConfirmedAt,
			"completed_at":        rdv.CompletedAt,
			"cancelled_at":        rdv.CancelledAt,
			"cancelled_by":        rdv.CancelledBy,
			"cancellation_reason": rdv.CancellationReason,
			"updated_by":          rdv.UpdatedBy,
			"version":             oldVersion + 1,
		})
	if result.Error != nil {
		return translateWriteError(result.Error)
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	rdv.Version = oldVersion + 1
	return nil
}

func (r *rendezvousRepo) SoftDelete(ctx context.Context, id, deletedBy string) error {
	if !validID(id) {
		return gorm.ErrRecordNotFound
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Rendezvous{}).
			Where("rendezvous_id = ?", id).
			Update("deleted_by", deletedBy).Error; err != nil {
			return err
		}
		result := tx.Where("rendezvous_id = ?", id).Delete(&model.Rendezvous{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
