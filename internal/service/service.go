package service

import (
	"go.uber.org/zap"

	"paname-consulting/backend/config"
	"paname-consulting/backend/internal/repository"
	"paname-consulting/backend/pkg/jwt"
)

// Cache Redis 提供的能力集合；Redis 不可用时传 nil，各服务降级运行
type Cache interface {
	SlotCache
	TokenBlacklist
}

// Service 所有 Service 的聚合入口
type Service struct {
	Auth       AuthService
	Rendezvous RendezvousService
	Procedure  ProcedureService
	Export     ExportService
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	cache Cache,
	logger *zap.Logger,
) *Service {
	var (
		slots     SlotCache
		blacklist TokenBlacklist
	)
	if cache != nil {
		slots, blacklist = cache, cache
	}
	return &Service{
		Auth:       NewAuthService(cfg, repo, jwtMgr, blacklist, logger),
		Rendezvous: NewRendezvousService(&cfg.Booking, repo, slots, logger),
		Procedure:  NewProcedureService(repo, logger),
		Export:     NewExportService(&cfg.Booking, repo, logger),
	}
}
