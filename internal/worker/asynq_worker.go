package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/wxpay-bridge/internal/logger"
	"github.com/wxpay-bridge/internal/provider"
	"github.com/wxpay-bridge/internal/queue"
	"github.com/wxpay-bridge/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskNotifyConfirm, c.handleNotifyConfirm)
}

func (c *Consumer) handleNotifyConfirm(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_notify_confirm_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	payload, err := queue.ParseNotifyConfirmPayload(task)
	if err != nil {
		logger.Warnw("worker_notify_confirm_unmarshal_failed", "error", err)
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if payload.NotificationID == 0 {
		logger.Debugw("worker_notify_confirm_skip_invalid_payload", "notification_id", payload.NotificationID)
		return nil
	}
	if c.Container == nil || c.PaymentService == nil {
		logger.Warnw("worker_notify_confirm_skip_payment_service_nil", "notification_id", payload.NotificationID)
		return nil
	}
	err = c.PaymentService.ConfirmNotification(ctx, payload.NotificationID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			logger.Debugw("worker_notify_confirm_skip_not_found", "notification_id", payload.NotificationID)
			return nil
		case errors.Is(err, service.ErrPaymentConfigInvalid), errors.Is(err, service.ErrCertificateUnavailable):
			logger.Warnw("worker_notify_confirm_config_invalid", "notification_id", payload.NotificationID, "error", err)
			return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
		default:
			logger.Warnw("worker_notify_confirm_failed",
				"notification_id", payload.NotificationID,
				"out_trade_no", payload.OutTradeNo,
				"error", err,
			)
			return err
		}
	}
	return nil
}
