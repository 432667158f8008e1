package service

import (
	"errors"
	"fmt"

	pkgerrors "paname-consulting/backend/pkg/errors"
)

// ── 领域错误类别 ──
// 每个类别是一个哨兵错误，具体原因通过 newError 附加，调用方用 errors.Is 判断类别、
// 用 Detail 取出可展示给用户的说明。

var (
	ErrValidation         = errors.New("données invalides")
	ErrForbidden          = errors.New("action non autorisée")
	ErrRendezvousNotFound = errors.New("rendez-vous introuvable")
	ErrProcedureNotFound  = errors.New("procédure introuvable")
	ErrUserNotFound       = errors.New("utilisateur introuvable")
	ErrSlotOccupied       = errors.New("créneau déjà réservé")
	ErrInvalidTransition  = errors.New("changement de statut non autorisé")
	ErrCancellationWindow = errors.New("annulation trop tardive")
	ErrStepOrder          = errors.New("étape précédente non terminée")
	ErrPrecondition       = errors.New("condition préalable non remplie")

	// ErrUnavailable 基础设施故障（数据库连接、超时等），与领域错误区分
	ErrUnavailable = errors.New("service temporairement indisponible")
)

// detailedError 领域错误类别 + 具体原因
type detailedError struct {
	kind   error
	detail string
}

func (e *detailedError) Error() string { return e.kind.Error() + ": " + e.detail }
func (e *detailedError) Unwrap() error { return e.kind }

func newError(kind error, format string, args ...interface{}) error {
	return &detailedError{kind: kind, detail: fmt.Sprintf(format, args...)}
}

// Detail 取出错误附带的具体原因；没有则返回空串
func Detail(err error) string {
	var d *detailedError
	if errors.As(err, &d) {
		return d.detail
	}
	return ""
}

// unavailable 包装持久层错误，保留原始错误链
func unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

// resultLabel 指标中使用的结果标签
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrRendezvousNotFound), errors.Is(err, ErrProcedureNotFound), errors.Is(err, ErrUserNotFound):
		return "not_found"
	case errors.Is(err, ErrSlotOccupied):
		return "slot_occupied"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrCancellationWindow):
		return "cancellation_window"
	case errors.Is(err, ErrStepOrder):
		return "step_order"
	case errors.Is(err, ErrPrecondition):
		return "precondition"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

// lostRace 乐观锁冲突说明并发请求已先一步修改了记录
func lostRace(err error) bool {
	return errors.Is(err, pkgerrors.ErrOptimisticLock)
}
