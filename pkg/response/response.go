package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess      = 0
	CodeParamError   = 400
	CodeUnauthorized = 401
	CodeForbidden    = 403
	CodeNotFound     = 404
	CodeServerError  = 500
)

// Business codes, one per gate in the error taxonomy.
const (
	CodeUserNotFound        = 1001
	CodeAccountNotFound     = 1002
	CodeInvalidAmount       = 1003
	CodeInsufficientFunds   = 1004
	CodeLimitExceeded       = 1005
	CodeRiskDeclined        = 1006
	CodeComplianceHold      = 1007
	CodeComplianceRequired  = 1008
	CodeCounterpartyFailure = 1009
	CodeRateUnavailable     = 1010
	CodePaymentNotFound     = 1011
	CodeDuplicateRequest    = 1012
	CodeExternalUnavailable = 1013
	CodePaymentFailed       = 1014
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
	})
}

func ErrorWithData(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

func Unauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, Response{
		Code:    CodeUnauthorized,
		Message: message,
	})
}

func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}

func BusinessError(c *gin.Context, code int, message string) {
	Error(c, code, message)
}
