package model

import (
	"time"

	"gorm.io/datatypes"
)

// ProcedureStatus 流程整体状态
type ProcedureStatus string

const (
	ProcedureInProgress ProcedureStatus = "in_progress"
	ProcedureCompleted  ProcedureStatus = "completed"
	ProcedureRejected   ProcedureStatus = "rejected"
	ProcedureCancelled  ProcedureStatus = "cancelled"
)

// Valid 是否为合法状态
func (s ProcedureStatus) Valid() bool {
	switch s {
	case ProcedureInProgress, ProcedureCompleted, ProcedureRejected, ProcedureCancelled:
		return true
	}
	return false
}

// StepName 流程步骤（固定三步，有序）
type StepName string

const (
	StepAdmissionRequest  StepName = "admission_request"
	StepVisaRequest       StepName = "visa_request"
	StepTravelPreparation StepName = "travel_preparation"
)

// StepOrder 固定步骤顺序
var StepOrder = []StepName{StepAdmissionRequest, StepVisaRequest, StepTravelPreparation}

// Valid 是否为三个固定步骤之一
func (n StepName) Valid() bool {
	return n.Index() >= 0
}

// Index 步骤在固定顺序中的位置，未知步骤返回 -1
func (n StepName) Index() int {
	for i, s := range StepOrder {
		if s == n {
			return i
		}
	}
	return -1
}

// Prerequisite 前置步骤；第一步没有前置
func (n StepName) Prerequisite() (StepName, bool) {
	i := n.Index()
	if i <= 0 {
		return "", false
	}
	return StepOrder[i-1], true
}

// Label 步骤的法语名称，用于面向客户的提示
func (n StepName) Label() string {
	switch n {
	case StepAdmissionRequest:
		return "Demande d'admission"
	case StepVisaRequest:
		return "Demande de visa"
	case StepTravelPreparation:
		return "Préparation du départ"
	}
	return string(n)
}

// StepStatus 步骤状态
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepRejected   StepStatus = "rejected"
	StepCancelled  StepStatus = "cancelled"
)

// Valid 是否为合法步骤状态
func (s StepStatus) Valid() bool {
	switch s {
	case StepPending, StepInProgress, StepCompleted, StepRejected, StepCancelled:
		return true
	}
	return false
}

// IsTerminal completed / rejected / cancelled 不可再变更
func (s StepStatus) IsTerminal() bool {
	return s == StepCompleted || s == StepRejected || s == StepCancelled
}

// ProcedureStep 流程步骤，整体以 JSONB 存在 procedures.steps 中
type ProcedureStep struct {
	Name            StepName   `json:"name"`
	Status          StepStatus `json:"status"`
	RejectionReason *string    `json:"rejection_reason,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// NewProcedureSteps 生成三个 pending 步骤
func NewProcedureSteps(now time.Time) datatypes.JSONSlice[ProcedureStep] {
	steps := make(datatypes.JSONSlice[ProcedureStep], 0, len(StepOrder))
	for _, name := range StepOrder {
		steps = append(steps, ProcedureStep{Name: name, Status: StepPending, UpdatedAt: now})
	}
	return steps
}

// DefaultDeletionReason 软删除未给出原因时使用
const DefaultDeletionReason = "Supprimée par l'administrateur"

// Procedure 留学办理流程表 — 对应 procedures
type Procedure struct {
	ProcedureID     string                             `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"procedure_id"`
	UserID          string                             `gorm:"type:uuid;not null;index"                       json:"user_id"`
	RendezvousID    *string                            `gorm:"type:uuid"                                      json:"rendezvous_id,omitempty"`
	FirstName       string                             `gorm:"type:varchar(100);not null"                     json:"first_name"`
	LastName        string                             `gorm:"type:varchar(100);not null"                     json:"last_name"`
	Email           string                             `gorm:"type:varchar(255);not null"                     json:"email"`
	Phone           string                             `gorm:"type:varchar(30);not null;default:''"           json:"phone"`
	Destination     string                             `gorm:"type:varchar(100);not null"                     json:"destination"`
	EducationLevel  string                             `gorm:"type:varchar(50);not null"                      json:"education_level"`
	FieldOfStudy    string                             `gorm:"type:varchar(100);not null"                     json:"field_of_study"`
	Status          ProcedureStatus                    `gorm:"type:varchar(20);not null;default:'in_progress'" json:"status"`
	RejectionReason *string                            `gorm:"type:varchar(500)"                              json:"rejection_reason,omitempty"`
	Steps           datatypes.JSONSlice[ProcedureStep] `gorm:"type:jsonb;not null"                            json:"steps"`
	DeletionReason  *string                            `gorm:"type:varchar(500)"                              json:"deletion_reason,omitempty"`
	VersionedModel
}

// TableName 指定表名
func (Procedure) TableName() string { return "procedures" }

// Step 按名称查找步骤；返回下标便于原地修改
func (p *Procedure) Step(name StepName) (*ProcedureStep, bool) {
	for i := range p.Steps {
		if p.Steps[i].Name == name {
			return &p.Steps[i], true
		}
	}
	return nil, false
}

// AllStepsCompleted 三个步骤是否全部完成
func (p *Procedure) AllStepsCompleted() bool {
	if len(p.Steps) != len(StepOrder) {
		return false
	}
	for _, s := range p.Steps {
		if s.Status != StepCompleted {
			return false
		}
	}
	return true
}
