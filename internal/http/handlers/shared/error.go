package shared

import (
	"errors"

	"github.com/wxpay-bridge/internal/http/response"
	"github.com/wxpay-bridge/internal/logger"
	"github.com/wxpay-bridge/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLog 提供携带 request_id 的日志实例。
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil {
		return logger.S()
	}
	if requestID, ok := c.Get("request_id"); ok {
		if id, ok := requestID.(string); ok && id != "" {
			return logger.SW("request_id", id)
		}
	}
	return logger.S()
}

// RespondError 返回错误响应，有原始错误时记录日志
func RespondError(c *gin.Context, code int, msg string, err error) {
	appErr := response.NewAppError(code, msg, err)
	logAppError(c, appErr)
	response.Error(c, appErr.Code, appErr.Message)
}

// RespondGatewayRejected 网关拒绝时附带原始结果返回
func RespondGatewayRejected(c *gin.Context, msg string, result map[string]string, err error) {
	logAppError(c, response.NewAppError(response.CodeBadGateway, msg, err))
	response.GatewayRejected(c, msg, result)
}

// logAppError 网关侧故障按 warn 记录，其余按 error 记录
func logAppError(c *gin.Context, appErr *response.AppError) {
	if appErr.Cause == nil {
		return
	}
	kv := []interface{}{"code", appErr.Code, "message", appErr.Message, "error", appErr.Cause}
	if appErr.Upstream() {
		RequestLog(c).Warnw("handler_error", kv...)
		return
	}
	RequestLog(c).Errorw("handler_error", kv...)
}

// MapServiceError 将服务层错误映射为业务码与提示
func MapServiceError(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrPaymentParamsInvalid):
		return response.CodeBadRequest, err.Error()
	case errors.Is(err, service.ErrNotFound):
		return response.CodeNotFound, "记录不存在"
	case errors.Is(err, service.ErrInvalidCredentials):
		return response.CodeUnauthorized, "用户名或密码错误"
	case errors.Is(err, service.ErrRoleInvalid):
		return response.CodeBadRequest, "角色无效"
	case errors.Is(err, service.ErrCertificateUnavailable):
		return response.CodeServiceUnavailable, "未配置商户证书"
	case errors.Is(err, service.ErrOAuthDisabled):
		return response.CodeServiceUnavailable, "未配置网页授权"
	case errors.Is(err, service.ErrPaymentConfigInvalid):
		return response.CodeInternal, "支付配置错误"
	case errors.Is(err, service.ErrGatewayRejected):
		return response.CodeBadGateway, err.Error()
	case errors.Is(err, service.ErrGatewaySignatureMismatch):
		return response.CodeBadGateway, "支付网关响应验签失败"
	case errors.Is(err, service.ErrGatewayResponseInvalid):
		return response.CodeBadGateway, "支付网关响应异常"
	case errors.Is(err, service.ErrGatewayRequestFailed):
		return response.CodeBadGateway, "支付网关请求失败"
	case errors.Is(err, service.ErrOAuthRequestFailed):
		return response.CodeBadGateway, "网页授权请求失败"
	default:
		return response.CodeInternal, "服务器内部错误"
	}
}

// RespondServiceError 按服务层错误返回响应
func RespondServiceError(c *gin.Context, err error) {
	code, msg := MapServiceError(err)
	RespondError(c, code, msg, err)
}
