package handler

import (
	"github.com/gin-gonic/gin"

	"paname-consulting/backend/internal/dto"
	"paname-consulting/backend/internal/service"
	"paname-consulting/backend/pkg/response"
)

// RendezvousHandler 预约模块 HTTP 处理器
type RendezvousHandler struct {
	rdvSvc service.RendezvousService
}

// NewRendezvousHandler 创建 RendezvousHandler
func NewRendezvousHandler(rdvSvc service.RendezvousService) *RendezvousHandler {
	return &RendezvousHandler{rdvSvc: rdvSvc}
}

// Slots 某日时段占用情况（公开）
// GET /api/v1/rendezvous/slots?date=YYYY-MM-DD
func (h *RendezvousHandler) Slots(c *gin.Context) {
	var req dto.SlotsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err)
		return
	}

	slots, err := h.rdvSvc.ListOccupiedSlots(c.Request.Context(), req.Date)
	if err != nil {
		h.handleRendezvousError(c, err)
		return
	}

	response.OK(c, slots)
}

// Book 预约
// POST /api/v1/rendezvous
func (h *RendezvousHandler) Book(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.BookRendezvousRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	rdv, err := h.rdvSvc.Book(c.Request.Context(), &req, actor)
	if err != nil {
		h.handleRendezvousError(c, err)
		return
	}

	response.Created(c, rdv)
}

// ListMine 我的预约
// GET /api/v1/rendezvous/me
func (h *RendezvousHandler) ListMine(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var page dto.PaginationRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		bindFailed(c, err)
		return
	}

	list, total, err := h.rdvSvc.ListMine(c.Request.Context(), &page, actor)
	if err != nil {
		h.handleRendezvousError(c, err)
		return
	}

	response.OKPage(c, list, total, page.GetPage(), page.GetPageSize())
}

// List 预约列表（管理员）
// GET /api/v1/rendezvous
func (h *RendezvousHandler) List(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.RendezvousListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err)
		return
	}

	list, total, err := h.rdvSvc.List(c.Request.Context(), &req, actor)
	if err != nil {
		h.handleRendezvousError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// Get 预约详情
// GET /api/v1/rendezvous/:id
func (h *RendezvousHandler) Get(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	rdv, err := h.rdvSvc.Get(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		h.handleRendezvousError(c, err)
		return
	}

	response.OK(c, rdv)
}

// Confirm 确认预约
// PUT /api/v1/rendezvous/:id/confirm
func (h *RendezvousHandler) Confirm(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	rdv, err := h.rdvSvc.Confirm(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		h.handleRendezvousError(c, err)
		return
	}

	response.OK(c, rdv)
}

// Complete 完成预约并给出结论（管理员）
// PUT /api/v1/rendezvous/:id/complete
func (h *RendezvousHandler) Complete(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.CompleteRendezvousRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	rdv, err := h.rdvSvc.Complete(c.Request.Context(), c.Param("id"), req.AdminVerdict, actor)
	if err != nil {
		h.handleRendezvousError(c, err)
		return
	}

	response.OK(c, rdv)
}

// Cancel 取消预约，请求体可省略
// PUT /api/v1/rendezvous/:id/cancel
func (h *RendezvousHandler) Cancel(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.CancelRendezvousRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindFailed(c, err)
			return
		}
	}

	rdv, err := h.rdvSvc.Cancel(c.Request.Context(), c.Param("id"), req.Reason, actor)
	if err != nil {
		h.handleRendezvousError(c, err)
		return
	}

	response.OK(c, rdv)
}

// Delete 软删除预约（管理员）
// DELETE /api/v1/rendezvous/:id
func (h *RendezvousHandler) Delete(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	if err := h.rdvSvc.Delete(c.Request.Context(), c.Param("id"), actor); err != nil {
		h.handleRendezvousError(c, err)
		return
	}

	response.OK(c, nil)
}

func (h *RendezvousHandler) handleRendezvousError(c *gin.Context, err error) {
	writeDomainError(c, err, codeRendezvousTransition)
}
