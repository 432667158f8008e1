package dto

import (
	"time"

	"paname-consulting/backend/internal/model"
)

// ── 预约模块 DTO ──

// BookRendezvousRequest 预约请求
// date / time 的格式由自定义校验标签 isodate / hhmm 在绑定阶段拦截，
// 时段网格、日期不早于今天等规则由 service 校验
type BookRendezvousRequest struct {
	FirstName         string `json:"first_name"           binding:"required,max=100"`
	LastName          string `json:"last_name"            binding:"required,max=100"`
	Email             string `json:"email"                binding:"required,email,max=255"`
	Phone             string `json:"phone"                binding:"required,max=30"`
	Destination       string `json:"destination"          binding:"required,max=100"`
	DestinationOther  string `json:"destination_other"    binding:"omitempty,max=100"`
	EducationLevel    string `json:"education_level"      binding:"required,max=50"`
	FieldOfStudy      string `json:"field_of_study"       binding:"required,max=100"`
	FieldOfStudyOther string `json:"field_of_study_other" binding:"omitempty,max=100"`
	Date              string `json:"date"                 binding:"required,isodate"`
	Time              string `json:"time"                 binding:"required,hhmm"`
}

// CompleteRendezvousRequest 完成预约请求
type CompleteRendezvousRequest struct {
	AdminVerdict string `json:"admin_verdict" binding:"required,oneof=favorable unfavorable"`
}

// CancelRendezvousRequest 取消预约请求
type CancelRendezvousRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=500"`
}

// RendezvousListRequest 预约列表查询参数（管理员）
type RendezvousListRequest struct {
	PaginationRequest
	Status string `form:"status" binding:"omitempty,oneof=pending confirmed completed cancelled"`
	Date   string `form:"date"   binding:"omitempty,isodate"`
	Search string `form:"search" binding:"omitempty,max=100"`
}

// SlotsRequest 时段查询参数
type SlotsRequest struct {
	Date string `form:"date" binding:"required,isodate"`
}

// ExportRendezvousRequest 导出参数（闭区间）
type ExportRendezvousRequest struct {
	From string `form:"from" binding:"required,isodate"`
	To   string `form:"to"   binding:"required,isodate"`
}

// RendezvousResponse 预约响应
type RendezvousResponse struct {
	ID                 string  `json:"id"`
	UserID             string  `json:"user_id"`
	FirstName          string  `json:"first_name"`
	LastName           string  `json:"last_name"`
	Email              string  `json:"email"`
	Phone              string  `json:"phone"`
	Destination        string  `json:"destination"`
	EducationLevel     string  `json:"education_level"`
	FieldOfStudy       string  `json:"field_of_study"`
	Date               string  `json:"date"`
	Time               string  `json:"time"`
	Status             string  `json:"status"`
	AdminVerdict       *string `json:"admin_verdict,omitempty"`
	ConfirmedAt        *string `json:"confirmed_at,omitempty"`
	CompletedAt        *string `json:"completed_at,omitempty"`
	CancelledAt        *string `json:"cancelled_at,omitempty"`
	CancelledBy        *string `json:"cancelled_by,omitempty"`
	CancellationReason *string `json:"cancellation_reason,omitempty"`
	Version            int     `json:"version"`
	CreatedAt          string  `json:"created_at"`
}

// NewRendezvousResponse 模型转响应
func NewRendezvousResponse(r *model.Rendezvous) *RendezvousResponse {
	resp := &RendezvousResponse{
		ID:                 r.RendezvousID,
		UserID:             r.UserID,
		FirstName:          r.FirstName,
		LastName:           r.LastName,
		Email:              r.Email,
		Phone:              r.Phone,
		Destination:        r.Destination,
		EducationLevel:     r.EducationLevel,
		FieldOfStudy:       r.FieldOfStudy,
		Date:               r.Date,
		Time:               r.Time,
		Status:             string(r.Status),
		ConfirmedAt:        formatTime(r.ConfirmedAt),
		CompletedAt:        formatTime(r.CompletedAt),
		CancelledAt:        formatTime(r.CancelledAt),
		CancelledBy:        r.CancelledBy,
		CancellationReason: r.CancellationReason,
		Version:            r.Version,
		CreatedAt:          r.CreatedAt.Format(time.RFC3339),
	}
	if r.AdminVerdict != nil {
		v := string(*r.AdminVerdict)
		resp.AdminVerdict = &v
	}
	return resp
}

// SlotsResponse 某日时段占用情况
type SlotsResponse struct {
	Date      string   `json:"date"`
	Occupied  []string `json:"occupied"`
	Available []string `json:"available"`
}
