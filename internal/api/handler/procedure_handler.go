package handler

import (
	"github.com/gin-gonic/gin"

	"paname-consulting/backend/internal/dto"
	"paname-consulting/backend/internal/service"
	"paname-consulting/backend/pkg/response"
)

// ProcedureHandler 办理流程模块 HTTP 处理器
type ProcedureHandler struct {
	procSvc service.ProcedureService
}

// NewProcedureHandler 创建 ProcedureHandler
func NewProcedureHandler(procSvc service.ProcedureService) *ProcedureHandler {
	return &ProcedureHandler{procSvc: procSvc}
}

// Create 由已完成且结论有利的预约创建流程（管理员）
// POST /api/v1/procedures
func (h *ProcedureHandler) Create(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.CreateProcedureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	proc, err := h.procSvc.CreateFromAppointment(c.Request.Context(), req.RendezvousID, actor)
	if err != nil {
		h.handleProcedureError(c, err)
		return
	}

	response.Created(c, proc)
}

// UpdateStep 更新步骤状态（管理员）
// PUT /api/v1/procedures/:id/steps/:step
func (h *ProcedureHandler) UpdateStep(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.UpdateStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	proc, err := h.procSvc.UpdateStep(c.Request.Context(), c.Param("id"), c.Param("step"), &req, actor)
	if err != nil {
		h.handleProcedureError(c, err)
		return
	}

	response.OK(c, proc)
}

// Reject 驳回流程（管理员）
// PUT /api/v1/procedures/:id/reject
func (h *ProcedureHandler) Reject(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.RejectProcedureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	proc, err := h.procSvc.Reject(c.Request.Context(), c.Param("id"), req.Reason, actor)
	if err != nil {
		h.handleProcedureError(c, err)
		return
	}

	response.OK(c, proc)
}

// Cancel 取消流程（本人或管理员）
// PUT /api/v1/procedures/:id/cancel
func (h *ProcedureHandler) Cancel(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	proc, err := h.procSvc.Cancel(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		h.handleProcedureError(c, err)
		return
	}

	response.OK(c, proc)
}

// Delete 软删除流程（管理员），原因可省略
// DELETE /api/v1/procedures/:id
func (h *ProcedureHandler) Delete(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.DeleteProcedureRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindFailed(c, err)
			return
		}
	}

	if err := h.procSvc.SoftDelete(c.Request.Context(), c.Param("id"), req.Reason, actor); err != nil {
		h.handleProcedureError(c, err)
		return
	}

	response.OK(c, nil)
}

// Get 流程详情
// GET /api/v1/procedures/:id
func (h *ProcedureHandler) Get(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	proc, err := h.procSvc.Get(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		h.handleProcedureError(c, err)
		return
	}

	response.OK(c, proc)
}

// ListMine 我的流程
// GET /api/v1/procedures/me
func (h *ProcedureHandler) ListMine(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var page dto.PaginationRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		bindFailed(c, err)
		return
	}

	list, total, err := h.procSvc.ListMine(c.Request.Context(), &page, actor)
	if err != nil {
		h.handleProcedureError(c, err)
		return
	}

	response.OKPage(c, list, total, page.GetPage(), page.GetPageSize())
}

// List 流程列表（管理员）
// GET /api/v1/procedures
func (h *ProcedureHandler) List(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.ProcedureListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err)
		return
	}

	list, total, err := h.procSvc.List(c.Request.Context(), &req, actor)
	if err != nil {
		h.handleProcedureError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

func (h *ProcedureHandler) handleProcedureError(c *gin.Context, err error) {
	writeDomainError(c, err, codeProcedureTransition)
}
