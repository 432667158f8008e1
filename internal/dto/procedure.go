package dto

import (
	"time"

	"paname-consulting/backend/internal/model"
)

// ── 办理流程 DTO ──

// CreateProcedureRequest 由预约创建流程
type CreateProcedureRequest struct {
	RendezvousID string `json:"rendezvous_id" binding:"required,uuid"`
}

// UpdateStepRequest 更新步骤状态
type UpdateStepRequest struct {
	Status string `json:"status" binding:"required,oneof=pending in_progress completed rejected cancelled"`
	Reason string `json:"reason" binding:"omitempty,max=500"`
}

// RejectProcedureRequest 驳回流程
type RejectProcedureRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// DeleteProcedureRequest 软删除流程
type DeleteProcedureRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=500"`
}

// ProcedureListRequest 流程列表查询参数（管理员）
type ProcedureListRequest struct {
	PaginationRequest
	Status string `form:"status" binding:"omitempty,oneof=in_progress completed rejected cancelled"`
	Search string `form:"search" binding:"omitempty,max=100"`
}

// StepResponse 步骤响应
type StepResponse struct {
	Name            string  `json:"name"`
	Label           string  `json:"label"`
	Status          string  `json:"status"`
	RejectionReason *string `json:"rejection_reason,omitempty"`
	UpdatedAt       string  `json:"updated_at"`
}

// ProcedureResponse 流程响应
type ProcedureResponse struct {
	ID              string         `json:"id"`
	UserID          string         `json:"user_id"`
	RendezvousID    *string        `json:"rendezvous_id,omitempty"`
	FirstName       string         `json:"first_name"`
	LastName        string         `json:"last_name"`
	Email           string         `json:"email"`
	Phone           string         `json:"phone"`
	Destination     string         `json:"destination"`
	EducationLevel  string         `json:"education_level"`
	FieldOfStudy    string         `json:"field_of_study"`
	Status          string         `json:"status"`
	RejectionReason *string        `json:"rejection_reason,omitempty"`
	Steps           []StepResponse `json:"steps"`
	Version         int            `json:"version"`
	CreatedAt       string         `json:"created_at"`
}

// NewProcedureResponse 模型转响应
func NewProcedureResponse(p *model.Procedure) *ProcedureResponse {
	steps := make([]StepResponse, 0, len(p.Steps))
	for _, s := range p.Steps {
		steps = append(steps, StepResponse{
			Name:            string(s.Name),
			Label:           s.Name.Label(),
			Status:          string(s.Status),
			RejectionReason: s.RejectionReason,
			UpdatedAt:       s.UpdatedAt.Format(time.RFC3339),
		})
	}
	return &ProcedureResponse{
		ID:              p.ProcedureID,
		UserID:          p.UserID,
		RendezvousID:    p.RendezvousID,
		FirstName:       p.FirstName,
		LastName:        p.LastName,
		Email:           p.Email,
		Phone:           p.Phone,
		Destination:     p.Destination,
		EducationLevel:  p.EducationLevel,
		FieldOfStudy:    p.FieldOfStudy,
		Status:          string(p.Status),
		RejectionReason: p.RejectionReason,
		Steps:           steps,
		Version:         p.Version,
		CreatedAt:       p.CreatedAt.Format(time.RFC3339),
	}
}
