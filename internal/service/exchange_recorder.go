package service

import (
	"context"

	"github.com/wxpay-bridge/internal/logger"
	"github.com/wxpay-bridge/internal/models"
	"github.com/wxpay-bridge/internal/payment/wxpay"
	"github.com/wxpay-bridge/internal/repository"
)

// ExchangeRecorder 将网关调用写入审计表
type ExchangeRecorder struct {
	repo repository.ExchangeRepository
}

// NewExchangeRecorder 创建审计记录器
func NewExchangeRecorder(repo repository.ExchangeRepository) *ExchangeRecorder {
	return &ExchangeRecorder{repo: repo}
}

// Observe 记录一次网关调用，写库失败仅记日志
func (r *ExchangeRecorder) Observe(_ context.Context, ex wxpay.Exchange) {
	if r == nil || r.repo == nil {
		return
	}
	row := &models.GatewayExchange{
		Operation:         ex.Operation,
		Endpoint:          ex.Endpoint,
		Reference:         ex.Reference,
		MutualTLS:         ex.MutualTLS,
		StatusCode:        ex.StatusCode,
		ReturnCode:        ex.ReturnCode,
		ResultCode:        ex.ResultCode,
		ErrCode:           ex.ErrCode,
		Outcome:           ex.Outcome(),
		SignatureMismatch: ex.IsSignatureMismatch(),
		DurationMs:        ex.Duration.Milliseconds(),
	}
	if ex.Err != nil {
		row.ErrorMessage = ex.Err.Error()
	}
	if err := r.repo.Create(row); err != nil {
		logger.Warnw("gateway_exchange_record_failed",
			"operation", ex.Operation,
			"reference", ex.Reference,
			"error", err,
		)
	}
}

// Observer 适配为 wxpay 客户端观察者
func (r *ExchangeRecorder) Observer() wxpay.Observer {
	return r.Observe
}
