package model

import "time"

// RendezvousStatus 预约状态（封闭集合）
type RendezvousStatus string

const (
	RendezvousPending   RendezvousStatus = "pending"
	RendezvousConfirmed RendezvousStatus = "confirmed"
	RendezvousCompleted RendezvousStatus = "completed"
	RendezvousCancelled RendezvousStatus = "cancelled"
)

// Valid 是否为合法状态
func (s RendezvousStatus) Valid() bool {
	switch s {
	case RendezvousPending, RendezvousConfirmed, RendezvousCompleted, RendezvousCancelled:
		return true
	}
	return false
}

// IsActive pending / confirmed 占用时段
func (s RendezvousStatus) IsActive() bool {
	return s == RendezvousPending || s == RendezvousConfirmed
}

// IsTerminal completed / cancelled 之后不允许任何流转
func (s RendezvousStatus) IsTerminal() bool {
	return s == RendezvousCompleted || s == RendezvousCancelled
}

// ActiveRendezvousStatuses 占用时段的状态集合
var ActiveRendezvousStatuses = []RendezvousStatus{RendezvousPending, RendezvousConfirmed}

// Verdict 管理员结论
type Verdict string

const (
	VerdictFavorable   Verdict = "favorable"
	VerdictUnfavorable Verdict = "unfavorable"
)

// Valid 是否为合法结论
func (v Verdict) Valid() bool {
	return v == VerdictFavorable || v == VerdictUnfavorable
}

// CancelledBy 取消发起方
const (
	CancelledByClient = "client"
	CancelledByAdmin  = "admin"
)

// OtherChoice 目的地 / 专业选择“其他”时需填写补充文本
const OtherChoice = "Autre"

// Rendezvous 咨询预约表 — 对应 rendezvous
type Rendezvous struct {
	RendezvousID       string           `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"rendezvous_id"`
	UserID             string           `gorm:"type:uuid;not null;index"                       json:"user_id"`
	FirstName          string           `gorm:"type:varchar(100);not null"                     json:"first_name"`
	LastName           string           `gorm:"type:varchar(100);not null"                     json:"last_name"`
	Email              string           `gorm:"type:varchar(255);not null"                     json:"email"`
	Phone              string           `gorm:"type:varchar(30);not null"                      json:"phone"`
	Destination        string           `gorm:"type:varchar(100);not null"                     json:"destination"`
	EducationLevel     string           `gorm:"type:varchar(50);not null"                      json:"education_level"`
	FieldOfStudy       string           `gorm:"type:varchar(100);not null"                     json:"field_of_study"`
	Date               string           `gorm:"type:varchar(10);not null"                      json:"date"` // YYYY-MM-DD
	Time               string           `gorm:"type:varchar(5);not null"                       json:"time"` // HH:MM
	Status             RendezvousStatus `gorm:"type:varchar(20);not null;default:'pending'"    json:"status"`
	AdminVerdict       *Verdict         `gorm:"type:varchar(20)"                               json:"admin_verdict,omitempty"`
	ConfirmedAt        *time.Time       `json:"confirmed_at,omitempty"`
	CompletedAt        *time.Time       `json:"completed_at,omitempty"`
	CancelledAt        *time.Time       `json:"cancelled_at,omitempty"`
	CancelledBy        *string          `gorm:"type:varchar(20)"                               json:"cancelled_by,omitempty"`
	CancellationReason *string          `gorm:"type:varchar(500)"                              json:"cancellation_reason,omitempty"`
	VersionedModel

	// 关联
	User *User `gorm:"foreignKey:UserID;references:UserID" json:"user,omitempty"`
}

// TableName 指定表名
func (Rendezvous) TableName() string { return "rendezvous" }
