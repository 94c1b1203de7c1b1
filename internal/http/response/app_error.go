package response

import "fmt"

// AppError 携带业务码的接口错误，Cause 只写日志不返回调用方
type AppError struct {
	Code    int
	Message string
	Cause   error
}

// NewAppError 创建接口错误
func NewAppError(code int, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Cause: cause}
}

func (e *AppError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%d %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%d %s: %v", e.Code, e.Message, e.Cause)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Upstream 故障出在微信网关一侧
func (e *AppError) Upstream() bool {
	return e.Code == CodeBadGateway
}
