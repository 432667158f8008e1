package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"paname-consulting/backend/config"
	"paname-consulting/backend/internal/model"
	"paname-consulting/backend/internal/repository"
)

// ── 导出模块业务错误 ──

var ErrExportGenerateFail = errors.New("échec de la génération du fichier Excel")

// ExportService 导出业务接口
//
// 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response
type ExportService interface {
	// ExportRendezvous 导出 [from, to] 闭区间内的预约为 Excel
	ExportRendezvous(ctx context.Context, from, to string, actor Actor) (*bytes.Buffer, string, error)
	// RendezvousCalendar 导出单个预约为 iCalendar 事件，供客户加入日历
	RendezvousCalendar(ctx context.Context, id string, actor Actor) ([]byte, string, error)
}

type exportService struct {
	repo     *repository.Repository
	rules    *bookingRules
	duration time.Duration
	maxDays  int
	logger   *zap.Logger
	now      func() time.Time
}

// NewExportService 创建 ExportService 实例
func NewExportService(cfg *config.BookingConfig, repo *repository.Repository, logger *zap.Logger) ExportService {
	maxDays := cfg.ExportMaxDays
	if maxDays <= 0 {
		maxDays = 366
	}
	return &exportService{
		repo:     repo,
		rules:    newBookingRules(cfg),
		duration: time.Duration(cfg.SlotMinutes) * time.Minute,
		maxDays:  maxDays,
		logger:   logger,
		now:      time.Now,
	}
}

var exportHeaders = []string{
	"Date", "Heure", "Statut", "Nom", "Prénom", "E-mail", "Téléphone",
	"Destination", "Niveau d'études", "Filière", "Avis", "Annulé par", "Motif d'annulation",
}

var statusLabels = map[string]string{
	"pending":   "En attente",
	"confirmed": "Confirmé",
	"completed": "Terminé",
	"cancelled": "Annulé",
}

// ═══════════════════════════════════════════════════════════
// ExportRendezvous — 导出预约为 Excel
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - Sheet "Rendez-vous"
//   - 第 1 行标题，第 2 行表头，之后每行一条预约（按日期、时间升序）
//   - 区间内没有预约时仍输出表头

func (s *exportService) ExportRendezvous(ctx context.Context, from, to string, actor Actor) (*bytes.Buffer, string, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, "", err
	}

	// 1. 校验区间
	start, err := s.rules.ParseDate(from)
	if err != nil {
		return nil, "", newError(ErrValidation, "date de début invalide")
	}
	end, err := s.rules.ParseDate(to)
	if err != nil {
		return nil, "", newError(ErrValidation, "date de fin invalide")
	}
	if end.Before(start) {
		return nil, "", newError(ErrValidation, "la date de fin précède la date de début")
	}
	if days := calendarDays(start, end); days > s.maxDays {
		return nil, "", newError(ErrValidation, "période trop longue (%d jours, maximum %d)", days, s.maxDays)
	}

	// 2. 查询预约
	rows, err := s.repo.Rendezvous.ListByDateRange(ctx, from, to)
	if err != nil {
		s.logger.Error("查询导出预约失败", zap.Error(err))
		return nil, "", unavailable(err)
	}

	// 3. 生成 Excel
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Rendez-vous"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	// 删除默认 Sheet1
	f.DeleteSheet("Sheet1")

	f.SetColWidth(sheetName, "A", "B", 12)
	f.SetColWidth(sheetName, "C", "C", 14)
	f.SetColWidth(sheetName, "D", "G", 22)
	f.SetColWidth(sheetName, "H", "M", 20)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// 标题行
	f.SetCellValue(sheetName, "A1", fmt.Sprintf("Rendez-vous du %s au %s", from, to))
	f.MergeCell(sheetName, "A1", cell(colName(len(exportHeaders)-1), 1))
	f.SetCellStyle(sheetName, "A1", "A1", headerStyle)

	// 表头
	for i, h := range exportHeaders {
		f.SetCellValue(sheetName, cell(colName(i), 2), h)
	}
	f.SetCellStyle(sheetName, "A2", cell(colName(len(exportHeaders)-1), 2), headerStyle)

	// 数据行
	for i, r := range rows {
		row := i + 3
		verdict, cancelledBy, reason := "", "", ""
		if r.AdminVerdict != nil {
			verdict = string(*r.AdminVerdict)
		}
		if r.CancelledBy != nil {
			cancelledBy = *r.CancelledBy
		}
		if r.CancellationReason != nil {
			reason = *r.CancellationReason
		}
		status := statusLabels[string(r.Status)]
		if status == "" {
			status = string(r.Status)
		}
		values := []interface{}{
			r.Date, r.Time, status, r.LastName, r.FirstName, r.Email, r.Phone,
			r.Destination, r.EducationLevel, r.FieldOfStudy, verdict, cancelledBy, reason,
		}
		for col, v := range values {
			f.SetCellValue(sheetName, cell(colName(col), row), v)
		}
	}

	// 写入 buffer
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("rendez-vous_%s_%s.xlsx", from, to)
	return buf, filename, nil
}

// ═══════════════════════════════════════════════════════════
// RendezvousCalendar — 导出单个预约为 .ics
// ═══════════════════════════════════════════════════════════
//
// UID 使用预约 ID，客户重复导入时日历软件覆盖同一事件；
// 已取消的预约仍可导出，STATUS 为 CANCELLED 以便撤销已加入的事件

const calendarProductID = "-//Paname Consulting//Rendez-vous//FR"

var calendarStatus = map[model.RendezvousStatus]string{
	model.RendezvousPending:   "TENTATIVE",
	model.RendezvousConfirmed: "CONFIRMED",
	model.RendezvousCompleted: "CONFIRMED",
	model.RendezvousCancelled: "CANCELLED",
}

func (s *exportService) RendezvousCalendar(ctx context.Context, id string, actor Actor) ([]byte, string, error) {
	if err := requireAuthenticated(actor); err != nil {
		return nil, "", err
	}

	rdv, err := s.repo.Rendezvous.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, "", newError(ErrRendezvousNotFound, "rendez-vous %s", id)
		}
		s.logger.Error("查询预约失败", zap.String("rendezvous_id", id), zap.Error(err))
		return nil, "", unavailable(err)
	}
	if err := requireOwnerOrAdmin(actor, rdv.UserID); err != nil {
		return nil, "", err
	}

	start, err := s.rules.StartsAt(rdv.Date, rdv.Time)
	if err != nil {
		s.logger.Error("预约日期无法解析", zap.String("rendezvous_id", id), zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(calendarProductID)

	event := cal.AddEvent(rdv.RendezvousID + "@paname-consulting")
	event.SetDtStampTime(s.now().UTC())
	event.SetCreatedTime(rdv.CreatedAt.UTC())
	event.SetModifiedAt(rdv.UpdatedAt.UTC())
	event.SetStartAt(start.UTC())
	event.SetEndAt(start.Add(s.duration).UTC())
	event.SetSummary("Rendez-vous Paname Consulting")
	event.SetDescription(fmt.Sprintf("Destination : %s\nFilière : %s\nNiveau : %s",
		rdv.Destination, rdv.FieldOfStudy, rdv.EducationLevel))
	event.SetProperty(ics.ComponentPropertyStatus, calendarStatus[rdv.Status])
	event.SetProperty(ics.ComponentPropertySequence, fmt.Sprintf("%d", rdv.Version))

	filename := fmt.Sprintf("rendez-vous_%s_%s.ics", rdv.Date, rdv.RendezvousID)
	return []byte(cal.Serialize()), filename, nil
}

// ── 辅助函数 ──

// calendarDays [start, end] 闭区间包含的日历天数，与夏令时切换无关
func calendarDays(start, end time.Time) int {
	utcDate := func(t time.Time) time.Time {
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	return int(utcDate(end).Sub(utcDate(start))/(24*time.Hour)) + 1
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
