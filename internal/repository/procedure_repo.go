package repository

import (
	"context"

	"gorm.io/gorm"

	"paname-consulting/backend/internal/model"
	pkgerrors "paname-consulting/backend/pkg/errors"
)

// ProcedureFilter 流程列表过滤条件
type ProcedureFilter struct {
	UserID string
	Status model.ProcedureStatus
	Search string
}

// ProcedureRepository 办理流程数据访问接口
type ProcedureRepository interface {
	Create(ctx context.Context, proc *model.Procedure) error
	GetByID(ctx context.Context, id string) (*model.Procedure, error)
	GetByRendezvousID(ctx context.Context, rendezvousID string) (*model.Procedure, error)
	List(ctx context.Context, filter ProcedureFilter, page Page) ([]model.Procedure, int64, error)
	Update(ctx context.Context, proc *model.Procedure) error
	SoftDelete(ctx context.Context, id, deletedBy, reason string) error
}

type procedureRepo struct {
	db *gorm.DB
}

// NewProcedureRepo 创建 ProcedureRepository 实例
func NewProcedureRepo(db *gorm.DB) ProcedureRepository {
	return &procedureRepo{db: db}
}

// Create 插入流程；同一预约重复建流程时返回 pkgerrors.ErrDuplicate
func (r *procedureRepo) Create(ctx context.Context, proc *model.Procedure) error {
	return translateWriteError(r.db.WithContext(ctx).Create(proc).Error)
}

func (r *procedureRepo) GetByID(ctx context.Context, id string) (*model.Procedure, error) {
	if !validID(id) {
		return nil, gorm.ErrRecordNotFound
	}
	var proc model.Procedure
	err := r.db.WithContext(ctx).
		Where("procedure_id = ?", id).
		First(&proc).Error
	if err != nil {
		return nil, err
	}
	return &proc, nil
}

func (r *procedureRepo) GetByRendezvousID(ctx context.Context, rendezvousID string) (*model.Procedure, error) {
	if !validID(rendezvousID) {
		return nil, gorm.ErrRecordNotFound
	}
	var proc model.Procedure
	err := r.db.WithContext(ctx).
		Where("rendezvous_id = ?", rendezvousID).
		First(&proc).Error
	if err != nil {
		return nil, err
	}
	return &proc, nil
}

func (r *procedureRepo) List(ctx context.Context, filter ProcedureFilter, page Page) ([]model.Procedure, int64, error) {
	var list []model.Procedure
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Procedure{})
	if filter.UserID != "" {
		db = db.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		db = db.Where("(first_name ILIKE ? OR last_name ILIKE ? OR email ILIKE ? OR destination ILIKE ?)", like, like, like, like)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.
		Offset(page.Offset).Limit(page.Limit).
		Order("created_at DESC").
		Find(&list).Error; err != nil {
		return nil, 0, err
	}

	return list, total, nil
}

// Update 步骤与整体状态在同一次带 version 条件的写入中落库
func (r *procedureRepo) Update(ctx context.Context, proc *model.Procedure) error {
	oldVersion := proc.Version
	result := r.db.WithContext(ctx).
		Model(&model.Procedure{}).
		Where("procedure_id = ? AND version = ?", proc.ProcedureID, oldVersion).
		Updates(map[string]interface{}{
			"status":           proc.Status,
			"rejection_reason": proc.RejectionReason,
			"steps":            proc.Steps,
			"updated_by":       proc.UpdatedBy,
			"version":          oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	proc.Version = oldVersion + 1
	return nil
}

// SoftDelete 记录删除原因后软删除
func (r *procedureRepo) SoftDelete(ctx context.Context, id, deletedBy, reason string) error {
	if !validID(id) {
		return gorm.ErrRecordNotFound
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Procedure{}).
			Where("procedure_id = ?", id).
			Updates(map[string]interface{}{
				"deleted_by":      deletedBy,
				"deletion_reason": reason,
			}).Error; err != nil {
			return err
		}
		result := tx.Where("procedure_id = ?", id).Delete(&model.Procedure{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
