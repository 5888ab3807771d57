package handler

import (
	"errors"

	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/repository"
	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/service"
	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/pkg/response"

	"github.com/gin-gonic/gin"
)

// writeServiceError translates service and repository errors into business
// response codes. Anything unmapped is a 500.
func (h *Handler) writeServiceError(c *gin.Context, err error) {
	var limitErr *service.LimitExceededError
	var declinedErr *service.DeclinedError
	var holdErr *service.ComplianceHoldError
	var counterpartyErr *service.CounterpartyFailureError

	switch {
	case errors.As(err, &limitErr):
		response.ErrorWithData(c, response.CodeLimitExceeded, limitErr.Error(), gin.H{
			"scope":     limitErr.Scope,
			"limit":     limitErr.Limit,
			"used":      limitErr.Used,
			"requested": limitErr.Requested,
		})
	case errors.As(err, &declinedErr):
		response.ErrorWithData(c, response.CodeRiskDeclined, declinedErr.Error(), gin.H{
			"assessment": declinedErr.Assessment,
		})
	case errors.As(err, &holdErr):
		// A hold is an accepted payment awaiting a compliance decision,
		// reported with its own code so the client can poll it.
		response.ErrorWithData(c, response.CodeComplianceHold, holdErr.Error(), gin.H{
			"payment_no": holdErr.PaymentNo,
			"assessment": holdErr.Assessment,
		})
	case errors.As(err, &counterpartyErr):
		response.ErrorWithData(c, response.CodeCounterpartyFailure, counterpartyErr.Error(), gin.H{
			"original_transaction_no": counterpartyErr.OriginalNo,
			"reversal_transaction_no": counterpartyErr.ReversalNo,
		})
	case errors.Is(err, repository.ErrUserNotFound):
		response.BusinessError(c, response.CodeUserNotFound, err.Error())
	case errors.Is(err, repository.ErrAccountNotFound):
		response.BusinessError(c, response.CodeAccountNotFound, err.Error())
	case errors.Is(err, repository.ErrInsufficientFunds):
		response.BusinessError(c, response.CodeInsufficientFunds, err.Error())
	case errors.Is(err, repository.ErrRateUnavailable):
		response.BusinessError(c, response.CodeRateUnavailable, err.Error())
	case errors.Is(err, repository.ErrPaymentNotFound):
		response.BusinessError(c, response.CodePaymentNotFound, err.Error())
	case errors.Is(err, repository.ErrPaymentStatusInvalid):
		response.Error(c, response.CodeParamError, err.Error())
	case errors.Is(err, service.ErrInvalidAmount):
		response.BusinessError(c, response.CodeInvalidAmount, err.Error())
	case errors.Is(err, service.ErrUnsupportedCurrency):
		response.Error(c, response.CodeParamError, err.Error())
	case errors.Is(err, service.ErrRequestIDRequired):
		response.Error(c, response.CodeParamError, err.Error())
	case errors.Is(err, service.ErrInternationalDisabled):
		response.Error(c, response.CodeForbidden, err.Error())
	case errors.Is(err, service.ErrComplianceRequired):
		response.BusinessError(c, response.CodeComplianceRequired, err.Error())
	case errors.Is(err, service.ErrDuplicateRequest):
		response.BusinessError(c, response.CodeDuplicateRequest, err.Error())
	case errors.Is(err, service.ErrPaymentFailed):
		response.BusinessError(c, response.CodePaymentFailed, err.Error())
	default:
		response.ServerError(c, err.Error())
	}
}
