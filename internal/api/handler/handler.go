package handler

import (
	"paname-consulting/backend/config"
	"paname-consulting/backend/internal/service"
)

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth       *AuthHandler
	Rendezvous *RendezvousHandler
	Procedure  *ProcedureHandler
	Export     *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(cfg *config.Config, svc *service.Service) *Handler {
	return &Handler{
		Auth:       NewAuthHandler(svc.Auth, &cfg.Auth),
		Rendezvous: NewRendezvousHandler(svc.Rendezvous),
		Procedure:  NewProcedureHandler(svc.Procedure),
		Export:     NewExportHandler(svc.Export),
	}
}
