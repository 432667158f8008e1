package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "paname-consulting/backend/pkg/errors"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	db         *gorm.DB
	User       UserRepository
	Rendezvous RendezvousRepository
	Procedure  ProcedureRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:         db,
		User:       NewUserRepo(db),
		Rendezvous: NewRendezvousRepo(db),
		Procedure:  NewProcedureRepo(db),
	}
}

// Ping 检查数据库连通性（健康检查）
func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// IsNotFound 是否为记录不存在
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// validID 主键列均为 uuid 类型，非法 id 直接视为记录不存在，不下发到数据库
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// translateWriteError 唯一约束冲突统一转换为 pkgerrors.ErrDuplicate
func translateWriteError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return pkgerrors.ErrDuplicate
	}
	return err
}

// Page 分页参数
type Page struct {
	Offset int
	Limit  int
}
