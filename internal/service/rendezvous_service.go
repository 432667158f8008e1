package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"paname-consulting/backend/config"
	"paname-consulting/backend/internal/dto"
	"paname-consulting/backend/internal/model"
	"paname-consulting/backend/internal/repository"
	pkgerrors "paname-consulting/backend/pkg/errors"
	"paname-consulting/backend/pkg/metrics"
)

// SlotCache 某日已占用时段的缓存（Redis 实现见 pkg/redis）
type SlotCache interface {
	GetOccupiedSlots(ctx context.Context, date string) ([]string, bool, error)
	SetOccupiedSlots(ctx context.Context, date string, slots []string, ttl time.Duration) error
	InvalidateOccupiedSlots(ctx context.Context, date string) error
}

// RendezvousService 预约生命周期业务接口
type RendezvousService interface {
	Book(ctx context.Context, req *dto.BookRendezvousRequest, actor Actor) (*dto.RendezvousResponse, error)
	Confirm(ctx context.Context, id string, actor Actor) (*dto.RendezvousResponse, error)
	Complete(ctx context.Context, id string, verdict string, actor Actor) (*dto.RendezvousResponse, error)
	Cancel(ctx context.Context, id string, reason string, actor Actor) (*dto.RendezvousResponse, error)
	ListOccupiedSlots(ctx context.Context, date string) (*dto.SlotsResponse, error)
	Get(ctx context.Context, id string, actor Actor) (*dto.RendezvousResponse, error)
	ListMine(ctx context.Context, page *dto.PaginationRequest, actor Actor) ([]dto.RendezvousResponse, int64, error)
	List(ctx context.Context, req *dto.RendezvousListRequest, actor Actor) ([]dto.RendezvousResponse, int64, error)
	Delete(ctx context.Context, id string, actor Actor) error
}

type rendezvousService struct {
	repo     *repository.Repository
	cache    SlotCache // 可为 nil：Redis 不可用时直接查库
	cacheTTL time.Duration
	rules    *bookingRules
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

// NewRendezvousService 创建 RendezvousService 实例
func NewRendezvousService(
	cfg *config.BookingConfig,
	repo *repository.Repository,
	cache SlotCache,
	logger *zap.Logger,
) RendezvousService {
	return &rendezvousService{
		repo:     repo,
		cache:    cache,
		cacheTTL: cfg.SlotCacheTTL,
		rules:    newBookingRules(cfg),
		validate: validator.New(),
		logger:   logger,
		now:      time.Now,
	}
}

// ────── Book ──────

func (s *rendezvousService) Book(ctx context.Context, req *dto.BookRendezvousRequest, actor Actor) (resp *dto.RendezvousResponse, err error) {
	defer func() { metrics.RendezvousTransitions.WithLabelValues("book", resultLabel(err)).Inc() }()

	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}

	rdv, err := s.buildRendezvous(req, actor)
	if err != nil {
		return nil, err
	}

	// 1. 读检查：给出明确的占用提示
	occupied, err := s.repo.Rendezvous.ListActiveSlotsByDate(ctx, rdv.Date)
	if err != nil {
		s.logger.Error("查询占用时段失败", zap.String("date", rdv.Date), zap.Error(err))
		return nil, unavailable(err)
	}
	for _, t := range occupied {
		if t == rdv.Time {
			return nil, newError(ErrSlotOccupied, "le créneau du %s à %s est déjà réservé", rdv.Date, rdv.Time)
		}
	}

	// 2. 写入：并发抢占由部分唯一索引兜底
	if err := s.repo.Rendezvous.Create(ctx, rdv); err != nil {
		if errors.Is(err, pkgerrors.ErrDuplicate) {
			return nil, newError(ErrSlotOccupied, "le créneau du %s à %s vient d'être réservé", rdv.Date, rdv.Time)
		}
		s.logger.Error("创建预约失败", zap.Error(err))
		return nil, unavailable(err)
	}

	s.invalidateSlots(ctx, rdv.Date)
	s.logger.Info("预约已创建",
		zap.String("rendezvous_id", rdv.RendezvousID),
		zap.String("user_id", rdv.UserID),
		zap.String("date", rdv.Date),
		zap.String("time", rdv.Time),
	)
	return dto.NewRendezvousResponse(rdv), nil
}

// buildRendezvous 校验预约请求并生成待写入的记录；任一校验失败都不写库
func (s *rendezvousService) buildRendezvous(req *dto.BookRendezvousRequest, actor Actor) (*model.Rendezvous, error) {
	if req == nil {
		return nil, newError(ErrValidation, "requête vide")
	}

	rdv := &model.Rendezvous{
		UserID:         actor.UserID,
		FirstName:      strings.TrimSpace(req.FirstName),
		LastName:       strings.TrimSpace(req.LastName),
		Email:          strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:          strings.TrimSpace(req.Phone),
		EducationLevel: strings.TrimSpace(req.EducationLevel),
		Date:           strings.TrimSpace(req.Date),
		Time:           strings.TrimSpace(req.Time),
		Status:         model.RendezvousPending,
	}
	rdv.CreatedBy = &actor.UserID

	required := []struct{ field, value string }{
		{"first_name", rdv.FirstName},
		{"last_name", rdv.LastName},
		{"email", rdv.Email},
		{"phone", rdv.Phone},
		{"education_level", rdv.EducationLevel},
		{"date", rdv.Date},
		{"time", rdv.Time},
	}
	for _, r := range required {
		if r.value == "" {
			return nil, newError(ErrValidation, "le champ %s est obligatoire", r.field)
		}
	}
	if err := s.validate.Var(rdv.Email, "email"); err != nil {
		return nil, newError(ErrValidation, "adresse e-mail invalide")
	}

	var err error
	if rdv.Destination, err = resolveChoice("destination", req.Destination, req.DestinationOther); err != nil {
		return nil, err
	}
	if rdv.FieldOfStudy, err = resolveChoice("field_of_study", req.FieldOfStudy, req.FieldOfStudyOther); err != nil {
		return nil, err
	}

	if _, err := s.rules.ParseDate(rdv.Date); err != nil {
		return nil, newError(ErrValidation, "date invalide, format attendu AAAA-MM-JJ")
	}
	if !s.rules.OnGrid(rdv.Time) {
		return nil, newError(ErrValidation, "créneau %s hors de la grille horaire", rdv.Time)
	}

	now := s.now()
	today := s.rules.Today(now)
	if rdv.Date < today {
		return nil, newError(ErrValidation, "la date %s est déjà passée", rdv.Date)
	}
	if rdv.Date == today {
		startsAt, _ := s.rules.StartsAt(rdv.Date, rdv.Time)
		if !startsAt.After(now) {
			return nil, newError(ErrValidation, "le créneau de %s est déjà passé", rdv.Time)
		}
	}

	return rdv, nil
}

// resolveChoice 选择“Autre”时补充文本必填，并作为实际存储值
func resolveChoice(field, choice, other string) (string, error) {
	choice = strings.TrimSpace(choice)
	other = strings.TrimSpace(other)
	if choice == "" {
		return "", newError(ErrValidation, "le champ %s est obligatoire", field)
	}
	if choice == model.OtherChoice {
		if other == "" {
			return "", newError(ErrValidation, "précisez la valeur de %s lorsque « Autre » est choisi", field)
		}
		return other, nil
	}
	return choice, nil
}

// ────── Confirm ──────

func (s *rendezvousService) Confirm(ctx context.Context, id string, actor Actor) (resp *dto.RendezvousResponse, err error) {
	defer func() { metrics.RendezvousTransitions.WithLabelValues("confirm", resultLabel(err)).Inc() }()

	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}
	rdv, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireOwnerOrAdmin(actor, rdv.UserID); err != nil {
		return nil, err
	}

	if rdv.Status != model.RendezvousPending {
		return nil, newError(ErrInvalidTransition, "impossible de confirmer un rendez-vous au statut %s", rdv.Status)
	}

	now := s.now()
	rdv.Status = model.RendezvousConfirmed
	rdv.ConfirmedAt = &now
	rdv.UpdatedBy = &actor.UserID
	if err := s.save(ctx, rdv); err != nil {
		return nil, err
	}

	s.logger.Info("预约已确认", zap.String("rendezvous_id", rdv.RendezvousID), zap.String("by", actor.UserID))
	return dto.NewRendezvousResponse(rdv), nil
}

// ────── Complete ──────

func (s *rendezvousService) Complete(ctx context.Context, id string, verdict string, actor Actor) (resp *dto.RendezvousResponse, err error) {
	defer func() { metrics.RendezvousTransitions.WithLabelValues("complete", resultLabel(err)).Inc() }()

	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	v := model.Verdict(verdict)
	if !v.Valid() {
		return nil, newError(ErrValidation, "avis %q invalide, attendu favorable ou unfavorable", verdict)
	}

	rdv, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	// 只能从 confirmed 完成，pending 不可跳过确认
	if rdv.Status != model.RendezvousConfirmed {
		return nil, newError(ErrInvalidTransition, "impossible de terminer un rendez-vous au statut %s", rdv.Status)
	}

	now := s.now()
	rdv.Status = model.RendezvousCompleted
	rdv.AdminVerdict = &v
	rdv.CompletedAt = &now
	rdv.UpdatedBy = &actor.UserID
	if err := s.save(ctx, rdv); err != nil {
		return nil, err
	}

	s.logger.Info("预约已完成",
		zap.String("rendezvous_id", rdv.RendezvousID),
		zap.String("verdict", verdict),
	)
	return dto.NewRendezvousResponse(rdv), nil
}

// ────── Cancel ──────

func (s *rendezvousService) Cancel(ctx context.Context, id string, reason string, actor Actor) (resp *dto.RendezvousResponse, err error) {
	defer func() { metrics.RendezvousTransitions.WithLabelValues("cancel", resultLabel(err)).Inc() }()

	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}
	rdv, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireOwnerOrAdmin(actor, rdv.UserID); err != nil {
		return nil, err
	}

	if rdv.Status.IsTerminal() {
		return nil, newError(ErrInvalidTransition, "impossible d'annuler un rendez-vous au statut %s", rdv.Status)
	}

	now := s.now()
	cancelledBy := model.CancelledByAdmin
	if !actor.IsAdmin() {
		cancelledBy = model.CancelledByClient
		startsAt, err := s.rules.StartsAt(rdv.Date, rdv.Time)
		if err != nil {
			s.logger.Error("预约时间无法解析", zap.String("rendezvous_id", rdv.RendezvousID), zap.Error(err))
			return nil, unavailable(err)
		}
		if s.rules.WithinCutoff(startsAt, now) {
			return nil, newError(ErrCancellationWindow,
				"l'annulation n'est plus possible à moins de %s du rendez-vous", formatCutoff(s.rules.cutoff))
		}
	}

	rdv.Status = model.RendezvousCancelled
	rdv.CancelledAt = &now
	rdv.CancelledBy = &cancelledBy
	if r := strings.TrimSpace(reason); r != "" {
		rdv.CancellationReason = &r
	}
	rdv.UpdatedBy = &actor.UserID
	if err := s.save(ctx, rdv); err != nil {
		return nil, err
	}

	s.logger.Info("预约已取消",
		zap.String("rendezvous_id", rdv.RendezvousID),
		zap.String("cancelled_by", cancelledBy),
	)
	return dto.NewRendezvousResponse(rdv), nil
}

// formatCutoff 整小时显示为 2h，其余沿用 Duration 格式
func formatCutoff(d time.Duration) string {
	if d%time.Hour == 0 {
		return fmt.Sprintf("%dh", d/time.Hour)
	}
	return d.String()
}

// ────── ListOccupiedSlots ──────

func (s *rendezvousService) ListOccupiedSlots(ctx context.Context, date string) (*dto.SlotsResponse, error) {
	date = strings.TrimSpace(date)
	if _, err := s.rules.ParseDate(date); err != nil {
		return nil, newError(ErrValidation, "date invalide, format attendu AAAA-MM-JJ")
	}

	occupied, err := s.occupiedSlots(ctx, date)
	if err != nil {
		return nil, err
	}

	taken := make(map[string]bool, len(occupied))
	for _, t := range occupied {
		taken[t] = true
	}

	now := s.now()
	today := s.rules.Today(now)
	available := make([]string, 0)
	if date >= today {
		for _, slot := range s.rules.Grid() {
			if taken[slot] {
				continue
			}
			if date == today {
				if startsAt, _ := s.rules.StartsAt(date, slot); !startsAt.After(now) {
					continue
				}
			}
			available = append(available, slot)
		}
	}

	return &dto.SlotsResponse{Date: date, Occupied: occupied, Available: available}, nil
}

// occupiedSlots 先查缓存，未命中或缓存异常时回源数据库
func (s *rendezvousService) occupiedSlots(ctx context.Context, date string) ([]string, error) {
	if s.cache != nil {
		slots, hit, err := s.cache.GetOccupiedSlots(ctx, date)
		switch {
		case err != nil:
			metrics.SlotCacheLookups.WithLabelValues("error").Inc()
			s.logger.Warn("读取时段缓存失败，回源数据库", zap.String("date", date), zap.Error(err))
		case hit:
			metrics.SlotCacheLookups.WithLabelValues("hit").Inc()
			return normalizeSlots(slots), nil
		default:
			metrics.SlotCacheLookups.WithLabelValues("miss").Inc()
		}
	}

	slots, err := s.repo.Rendezvous.ListActiveSlotsByDate(ctx, date)
	if err != nil {
		s.logger.Error("查询占用时段失败", zap.String("date", date), zap.Error(err))
		return nil, unavailable(err)
	}
	slots = normalizeSlots(slots)

	if s.cache != nil {
		if err := s.cache.SetOccupiedSlots(ctx, date, slots, s.cacheTTL); err != nil {
			s.logger.Warn("写入时段缓存失败", zap.String("date", date), zap.Error(err))
		}
	}
	return slots, nil
}

func normalizeSlots(slots []string) []string {
	out := make([]string, 0, len(slots))
	out = append(out, slots...)
	sort.Strings(out)
	return out
}

// ────── 查询 / 删除 ──────

func (s *rendezvousService) Get(ctx context.Context, id string, actor Actor) (*dto.RendezvousResponse, error) {
	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}
	rdv, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireOwnerOrAdmin(actor, rdv.UserID); err != nil {
		return nil, err
	}
	return dto.NewRendezvousResponse(rdv), nil
}

func (s *rendezvousService) ListMine(ctx context.Context, page *dto.PaginationRequest, actor Actor) ([]dto.RendezvousResponse, int64, error) {
	if err := requireAuthenticated(actor); err != nil {
		return nil, 0, err
	}
	return s.list(ctx, repository.RendezvousFilter{UserID: actor.UserID}, page)
}

func (s *rendezvousService) List(ctx context.Context, req *dto.RendezvousListRequest, actor Actor) ([]dto.RendezvousResponse, int64, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, 0, err
	}
	filter := repository.RendezvousFilter{
		Status: model.RendezvousStatus(req.Status),
		Date:   req.Date,
		Search: strings.TrimSpace(req.Search),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, newError(ErrValidation, "statut %q inconnu", req.Status)
	}
	return s.list(ctx, filter, &req.PaginationRequest)
}

func (s *rendezvousService) list(ctx context.Context, filter repository.RendezvousFilter, page *dto.PaginationRequest) ([]dto.RendezvousResponse, int64, error) {
	rows, total, err := s.repo.Rendezvous.List(ctx, filter, repository.Page{Offset: page.GetOffset(), Limit: page.GetPageSize()})
	if err != nil {
		s.logger.Error("查询预约列表失败", zap.Error(err))
		return nil, 0, unavailable(err)
	}
	list := make([]dto.RendezvousResponse, 0, len(rows))
	for i := range rows {
		list = append(list, *dto.NewRendezvousResponse(&rows[i]))
	}
	return list, total, nil
}

// Delete 软删除，同时释放其占用的时段
func (s *rendezvousService) Delete(ctx context.Context, id string, actor Actor) (err error) {
	defer func() { metrics.RendezvousTransitions.WithLabelValues("delete", resultLabel(err)).Inc() }()

	if err := requireAdmin(actor); err != nil {
		return err
	}
	rdv, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Rendezvous.SoftDelete(ctx, rdv.RendezvousID, actor.UserID); err != nil {
		if repository.IsNotFound(err) {
			return newError(ErrRendezvousNotFound, "rendez-vous %s", id)
		}
		s.logger.Error("删除预约失败", zap.String("rendezvous_id", id), zap.Error(err))
		return unavailable(err)
	}
	s.invalidateSlots(ctx, rdv.Date)
	s.logger.Info("预约已删除", zap.String("rendezvous_id", id), zap.String("by", actor.UserID))
	return nil
}

// ── 辅助 ──

func (s *rendezvousService) load(ctx context.Context, id string) (*model.Rendezvous, error) {
	rdv, err := s.repo.Rendezvous.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, newError(ErrRendezvousNotFound, "rendez-vous %s", id)
		}
		s.logger.Error("查询预约失败", zap.String("rendezvous_id", id), zap.Error(err))
		return nil, unavailable(err)
	}
	return rdv, nil
}

// save 带版本条件写回；输掉并发竞争的一方得到 ErrInvalidTransition
func (s *rendezvousService) save(ctx context.Context, rdv *model.Rendezvous) error {
	if err := s.repo.Rendezvous.Update(ctx, rdv); err != nil {
		if lostRace(err) {
			return newError(ErrInvalidTransition, "le rendez-vous a été modifié entre-temps, rechargez-le")
		}
		if errors.Is(err, pkgerrors.ErrDuplicate) {
			return newError(ErrSlotOccupied, "le créneau du %s à %s est déjà réservé", rdv.Date, rdv.Time)
		}
		s.logger.Error("更新预约失败", zap.String("rendezvous_id", rdv.RendezvousID), zap.Error(err))
		return unavailable(err)
	}
	s.invalidateSlots(ctx, rdv.Date)
	return nil
}

func (s *rendezvousService) invalidateSlots(ctx context.Context, date string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateOccupiedSlots(ctx, date); err != nil {
		s.logger.Warn("清除时段缓存失败", zap.String("date", date), zap.Error(err))
	}
}
