package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"paname-consulting/backend/internal/service"
	"paname-consulting/backend/pkg/response"
)

// 业务错误码：1xxxx 通用/认证，2xxxx 预约，3xxxx 流程，4xxxx 导出，5xxxx 基础设施
const (
	codeValidation   = 10001
	codeUnauthorized = 10002
	codeForbidden    = 10003

	codeInvalidCredentials = 11001
	codeAccountDisabled    = 11002
	codeEmailTaken         = 11003
	codeUserNotFound       = 11004
	codeInvalidRefresh     = 11005

	codeRendezvousNotFound   = 20001
	codeSlotOccupied         = 20002
	codeRendezvousTransition = 20003
	codeCancellationWindow   = 20004
	codeProcedureNotFound    = 30001
	codePrecondition         = 30002
	codeProcedureTransition  = 30003
	codeStepOrder            = 30004
	codeExportGenerateFail   = 40001
)

// writeDomainError 按错误类别映射 HTTP 状态码；details 为 service 附带的具体原因
// transitionCode 区分预约与流程模块的非法流转错误码
func writeDomainError(c *gin.Context, err error, transitionCode int) {
	detail := service.Detail(err)

	switch {
	case errors.Is(err, service.ErrValidation):
		response.ErrorWithDetails(c, http.StatusBadRequest, codeValidation, "Données invalides", detail)
	case errors.Is(err, service.ErrForbidden):
		response.ErrorWithDetails(c, http.StatusForbidden, codeForbidden, "Action non autorisée", detail)
	case errors.Is(err, service.ErrRendezvousNotFound):
		response.ErrorWithDetails(c, http.StatusNotFound, codeRendezvousNotFound, "Rendez-vous introuvable", detail)
	case errors.Is(err, service.ErrProcedureNotFound):
		response.ErrorWithDetails(c, http.StatusNotFound, codeProcedureNotFound, "Procédure introuvable", detail)
	case errors.Is(err, service.ErrUserNotFound):
		response.ErrorWithDetails(c, http.StatusNotFound, codeUserNotFound, "Utilisateur introuvable", detail)
	case errors.Is(err, service.ErrSlotOccupied):
		response.Conflict(c, codeSlotOccupied, "Créneau déjà réservé", detail)
	case errors.Is(err, service.ErrInvalidTransition):
		response.Conflict(c, transitionCode, "Changement de statut non autorisé", detail)
	case errors.Is(err, service.ErrStepOrder):
		response.Conflict(c, codeStepOrder, "Étape précédente non terminée", detail)
	case errors.Is(err, service.ErrCancellationWindow):
		response.Unprocessable(c, codeCancellationWindow, "Annulation trop tardive", detail)
	case errors.Is(err, service.ErrPrecondition):
		response.Unprocessable(c, codePrecondition, "Condition préalable non remplie", detail)
	case errors.Is(err, service.ErrUnavailable):
		response.Unavailable(c)
	default:
		response.InternalError(c)
	}
}

// bindFailed 请求体或查询参数未通过绑定校验
func bindFailed(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		response.Error(c, http.StatusRequestEntityTooLarge, 10005, "Corps de requête trop volumineux")
		return
	}
	response.ErrorWithDetails(c, http.StatusBadRequest, codeValidation, "Paramètres invalides", err.Error())
}
