package queue

import (
	"encoding/json"
	"errors"

	"github.com/wxpay-bridge/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskNotifyConfirm 支付通知确认任务
	TaskNotifyConfirm = constants.TaskNotifyConfirm
)

// NotifyConfirmPayload 支付通知确认任务载荷
type NotifyConfirmPayload struct {
	NotificationID uint   `json:"notification_id"`
	OutTradeNo     string `json:"out_trade_no"`
	TransactionID  string `json:"transaction_id"`
}

// NewNotifyConfirmTask 创建支付通知确认任务
func NewNotifyConfirmTask(payload NotifyConfirmPayload) (*asynq.Task, error) {
	if payload.NotificationID == 0 {
		return nil, errors.New("notification id is required")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotifyConfirm, body), nil
}

// ParseNotifyConfirmPayload 解析支付通知确认任务载荷
func ParseNotifyConfirmPayload(task *asynq.Task) (NotifyConfirmPayload, error) {
	var payload NotifyConfirmPayload
	if task == nil {
		return payload, errors.New("task is nil")
	}
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, err
	}
	return payload, nil
}
