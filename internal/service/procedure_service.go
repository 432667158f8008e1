package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"paname-consulting/backend/internal/dto"
	"paname-consulting/backend/internal/model"
	"paname-consulting/backend/internal/repository"
	pkgerrors "paname-consulting/backend/pkg/errors"
	"paname-consulting/backend/pkg/metrics"
)

// ProcedureService 办理流程（三步门控）业务接口
type ProcedureService interface {
	CreateFromAppointment(ctx context.Context, rendezvousID string, actor Actor) (*dto.ProcedureResponse, error)
	UpdateStep(ctx context.Context, procedureID, stepName string, req *dto.UpdateStepRequest, actor Actor) (*dto.ProcedureResponse, error)
	Reject(ctx context.Context, procedureID, reason string, actor Actor) (*dto.ProcedureResponse, error)
	Cancel(ctx context.Context, procedureID string, actor Actor) (*dto.ProcedureResponse, error)
	SoftDelete(ctx context.Context, procedureID, reason string, actor Actor) error
	Get(ctx context.Context, procedureID string, actor Actor) (*dto.ProcedureResponse, error)
	ListMine(ctx context.Context, page *dto.PaginationRequest, actor Actor) ([]dto.ProcedureResponse, int64, error)
	List(ctx context.Context, req *dto.ProcedureListRequest, actor Actor) ([]dto.ProcedureResponse, int64, error)
}

type procedureService struct {
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewProcedureService 创建 ProcedureService 实例
func NewProcedureService(repo *repository.Repository, logger *zap.Logger) ProcedureService {
	return &procedureService{repo: repo, logger: logger, now: time.Now}
}

// ────── CreateFromAppointment ──────

func (s *procedureService) CreateFromAppointment(ctx context.Context, rendezvousID string, actor Actor) (*dto.ProcedureResponse, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	rdv, err := s.repo.Rendezvous.GetByID(ctx, rendezvousID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, newError(ErrRendezvousNotFound, "rendez-vous %s", rendezvousID)
		}
		s.logger.Error("查询预约失败", zap.String("rendezvous_id", rendezvousID), zap.Error(err))
		return nil, unavailable(err)
	}

	if rdv.Status != model.RendezvousCompleted || rdv.AdminVerdict == nil || *rdv.AdminVerdict != model.VerdictFavorable {
		return nil, newError(ErrPrecondition,
			"le rendez-vous doit être terminé avec un avis favorable (statut actuel : %s)", rdv.Status)
	}

	// 一个预约只能生成一个流程
	existing, err := s.repo.Procedure.GetByRendezvousID(ctx, rendezvousID)
	if err != nil && !repository.IsNotFound(err) {
		s.logger.Error("查询流程失败", zap.String("rendezvous_id", rendezvousID), zap.Error(err))
		return nil, unavailable(err)
	}
	if existing != nil {
		return nil, newError(ErrPrecondition, "une procédure existe déjà pour ce rendez-vous (%s)", existing.ProcedureID)
	}

	now := s.now()
	proc := &model.Procedure{
		UserID:         rdv.UserID,
		RendezvousID:   &rdv.RendezvousID,
		FirstName:      rdv.FirstName,
		LastName:       rdv.LastName,
		Email:          rdv.Email,
		Phone:          rdv.Phone,
		Destination:    rdv.Destination,
		EducationLevel: rdv.EducationLevel,
		FieldOfStudy:   rdv.FieldOfStudy,
		Status:         model.ProcedureInProgress,
		Steps:          model.NewProcedureSteps(now),
	}
	proc.CreatedBy = &actor.UserID

	if err := s.repo.Procedure.Create(ctx, proc); err != nil {
		if errors.Is(err, pkgerrors.ErrDuplicate) {
			return nil, newError(ErrPrecondition, "une procédure existe déjà pour ce rendez-vous")
		}
		s.logger.Error("创建流程失败", zap.String("rendezvous_id", rendezvousID), zap.Error(err))
		return nil, unavailable(err)
	}

	s.logger.Info("流程已创建",
		zap.String("procedure_id", proc.ProcedureID),
		zap.String("rendezvous_id", rendezvousID),
		zap.String("by", actor.UserID),
	)
	return dto.NewProcedureResponse(proc), nil
}

// ────── UpdateStep ──────
//
// 校验顺序：
//   1. 步骤名与目标状态属于封闭集合
//   2. 当前为终态：目标相同 → 幂等成功，不写库；否则非法流转
//   3. 前置步骤未完成 → ErrStepOrder，说明阻塞的步骤（相同状态也不例外）
//   4. 目标状态与当前相同 → 幂等成功，不写库
//   5. rejected 必须附原因
// 三步全部 completed 时整体状态在同一次写入中变为 completed。

func (s *procedureService) UpdateStep(ctx context.Context, procedureID, stepName string, req *dto.UpdateStepRequest, actor Actor) (resp *dto.ProcedureResponse, err error) {
	name := model.StepName(stepName)
	var target model.StepStatus
	if req != nil {
		target = model.StepStatus(req.Status)
	}
	defer func() {
		metrics.ProcedureStepUpdates.WithLabelValues(string(name), string(target), resultLabel(err)).Inc()
	}()

	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if !name.Valid() {
		return nil, newError(ErrValidation, "étape %q inconnue", stepName)
	}
	if !target.Valid() {
		return nil, newError(ErrValidation, "statut d'étape %q inconnu", target)
	}

	proc, err := s.load(ctx, procedureID)
	if err != nil {
		return nil, err
	}
	step, ok := proc.Step(name)
	if !ok {
		s.logger.Error("流程步骤缺失", zap.String("procedure_id", procedureID), zap.String("step", stepName))
		return nil, newError(ErrValidation, "étape %q absente de la procédure", stepName)
	}

	if step.Status.IsTerminal() {
		if step.Status == target {
			return dto.NewProcedureResponse(proc), nil
		}
		return nil, newError(ErrInvalidTransition,
			"l'étape « %s » est déjà %s et ne peut plus changer", name.Label(), step.Status)
	}
	if step.Status == model.StepInProgress && target == model.StepPending {
		return nil, newError(ErrInvalidTransition, "l'étape « %s » ne peut pas revenir en attente", name.Label())
	}
	if proc.Status != model.ProcedureInProgress {
		return nil, newError(ErrInvalidTransition, "la procédure est %s, ses étapes ne peuvent plus évoluer", proc.Status)
	}

	if prereq, ok := name.Prerequisite(); ok {
		if p, _ := proc.Step(prereq); p == nil || p.Status != model.StepCompleted {
			return nil, newError(ErrStepOrder,
				"l'étape « %s » (%s) doit être terminée avant « %s »", prereq.Label(), prereq, name.Label())
		}
	}
	if step.Status == target {
		return dto.NewProcedureResponse(proc), nil
	}

	reason := strings.TrimSpace(reqReason(req))
	if target == model.StepRejected && reason == "" {
		return nil, newError(ErrValidation, "un motif est obligatoire pour rejeter l'étape « %s »", name.Label())
	}

	step.Status = target
	step.UpdatedAt = s.now()
	step.RejectionReason = nil
	if target == model.StepRejected {
		step.RejectionReason = &reason
	}
	if proc.AllStepsCompleted() {
		proc.Status = model.ProcedureCompleted
	}
	proc.UpdatedBy = &actor.UserID

	if err := s.save(ctx, proc); err != nil {
		return nil, err
	}

	s.logger.Info("流程步骤已更新",
		zap.String("procedure_id", proc.ProcedureID),
		zap.String("step", stepName),
		zap.String("status", string(target)),
		zap.String("procedure_status", string(proc.Status)),
	)
	return dto.NewProcedureResponse(proc), nil
}

func reqReason(req *dto.UpdateStepRequest) string {
	if req == nil {
		return ""
	}
	return req.Reason
}

// ────── Reject ──────

func (s *procedureService) Reject(ctx context.Context, procedureID, reason string, actor Actor) (*dto.ProcedureResponse, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, newError(ErrValidation, "un motif de rejet est obligatoire")
	}

	proc, err := s.load(ctx, procedureID)
	if err != nil {
		return nil, err
	}
	if proc.Status != model.ProcedureInProgress {
		return nil, newError(ErrInvalidTransition, "impossible de rejeter une procédure au statut %s", proc.Status)
	}

	proc.Status = model.ProcedureRejected
	proc.RejectionReason = &reason
	proc.UpdatedBy = &actor.UserID
	if err := s.save(ctx, proc); err != nil {
		return nil, err
	}

	s.logger.Info("流程已驳回", zap.String("procedure_id", proc.ProcedureID), zap.String("by", actor.UserID))
	return dto.NewProcedureResponse(proc), nil
}

// ────── Cancel ──────

// Cancel 客户本人或管理员取消；未结束的步骤一并置为 cancelled
func (s *procedureService) Cancel(ctx context.Context, procedureID string, actor Actor) (*dto.ProcedureResponse, error) {
	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}
	proc, err := s.load(ctx, procedureID)
	if err != nil {
		return nil, err
	}
	if err := requireOwnerOrAdmin(actor, proc.UserID); err != nil {
		return nil, err
	}
	if proc.Status == model.ProcedureCompleted || proc.Status == model.ProcedureCancelled {
		return nil, newError(ErrInvalidTransition, "impossible d'annuler une procédure au statut %s", proc.Status)
	}

	now := s.now()
	for i := range proc.Steps {
		if !proc.Steps[i].Status.IsTerminal() {
			proc.Steps[i].Status = model.StepCancelled
			proc.Steps[i].UpdatedAt = now
		}
	}
	proc.Status = model.ProcedureCancelled
	proc.UpdatedBy = &actor.UserID
	if err := s.save(ctx, proc); err != nil {
		return nil, err
	}

	s.logger.Info("流程已取消", zap.String("procedure_id", proc.ProcedureID), zap.String("by", actor.UserID))
	return dto.NewProcedureResponse(proc), nil
}

// ────── SoftDelete ──────

func (s *procedureService) SoftDelete(ctx context.Context, procedureID, reason string, actor Actor) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = model.DefaultDeletionReason
	}

	if err := s.repo.Procedure.SoftDelete(ctx, procedureID, actor.UserID, reason); err != nil {
		if repository.IsNotFound(err) {
			return newError(ErrProcedureNotFound, "procédure %s", procedureID)
		}
		s.logger.Error("删除流程失败", zap.String("procedure_id", procedureID), zap.Error(err))
		return unavailable(err)
	}

	s.logger.Info("流程已软删除",
		zap.String("procedure_id", procedureID),
		zap.String("reason", reason),
		zap.String("by", actor.UserID),
	)
	return nil
}

// ────── 查询 ──────

func (s *procedureService) Get(ctx context.Context, procedureID string, actor Actor) (*dto.ProcedureResponse, error) {
	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}
	proc, err := s.load(ctx, procedureID)
	if err != nil {
		return nil, err
	}
	if err := requireOwnerOrAdmin(actor, proc.UserID); err != nil {
		return nil, err
	}
	return dto.NewProcedureResponse(proc), nil
}

func (s *procedureService) ListMine(ctx context.Context, page *dto.PaginationRequest, actor Actor) ([]dto.ProcedureResponse, int64, error) {
	if err := requireAuthenticated(actor); err != nil {
		return nil, 0, err
	}
	return s.list(ctx, repository.ProcedureFilter{UserID: actor.UserID}, page)
}

func (s *procedureService) List(ctx context.Context, req *dto.ProcedureListRequest, actor Actor) ([]dto.ProcedureResponse, int64, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, 0, err
	}
	filter := repository.ProcedureFilter{
		Status: model.ProcedureStatus(req.Status),
		Search: strings.TrimSpace(req.Search),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, newError(ErrValidation, "statut %q inconnu", req.Status)
	}
	return s.list(ctx, filter, &req.PaginationRequest)
}

func (s *procedureService) list(ctx context.Context, filter repository.ProcedureFilter, page *dto.PaginationRequest) ([]dto.ProcedureResponse, int64, error) {
	rows, total, err := s.repo.Procedure.List(ctx, filter, repository.Page{Offset: page.GetOffset(), Limit: page.GetPageSize()})
	if err != nil {
		s.logger.Error("查询流程列表失败", zap.Error(err))
		return nil, 0, unavailable(err)
	}
	list := make([]dto.ProcedureResponse, 0, len(rows))
	for i := range rows {
		list = append(list, *dto.NewProcedureResponse(&rows[i]))
	}
	return list, total, nil
}

// ── 辅助 ──

func (s *procedureService) load(ctx context.Context, id string) (*model.Procedure, error) {
	proc, err := s.repo.Procedure.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, newError(ErrProcedureNotFound, "procédure %s", id)
		}
		s.logger.Error("查询流程失败", zap.String("procedure_id", id), zap.Error(err))
		return nil, unavailable(err)
	}
	return proc, nil
}

func (s *procedureService) save(ctx context.Context, proc *model.Procedure) error {
	if err := s.repo.Procedure.Update(ctx, proc); err != nil {
		if lostRace(err) {
			return newError(ErrInvalidTransition, "la procédure a été modifiée entre-temps, rechargez-la")
		}
		s.logger.Error("更新流程失败", zap.String("procedure_id", proc.ProcedureID), zap.Error(err))
		return unavailable(err)
	}
	return nil
}
