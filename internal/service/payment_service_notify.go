package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/wxpay-bridge/internal/cache"
	"github.com/wxpay-bridge/internal/constants"
	"github.com/wxpay-bridge/internal/models"
	"github.com/wxpay-bridge/internal/payment/wxpay"
	"github.com/wxpay-bridge/internal/queue"
)

const (
	defaultNotifyDedupeTTL    = 24 * time.Hour
	defaultConfirmGrace       = 2 * time.Minute
	defaultConfirmMaxAttempts = 10
	defaultConfirmBatchSize   = 50
)

// NotifyResult 支付通知处理结果
type NotifyResult struct {
	Notification *models.PaymentNotification
	Duplicate    bool
	// Ack 非空时作为响应体返回，否则返回空 200
	Ack []byte
}

// HandleNotify 处理微信支付结果通知
// 通知先验签入库再应答；确认查询异步进行，队列未启用时同步执行。
func (s *PaymentService) HandleNotify(ctx context.Context, body []byte) (*NotifyResult, error) {
	if s.gateway == nil || s.notificationRepo == nil {
		return nil, ErrPaymentConfigInvalid
	}
	params, err := s.gateway.VerifyNotify(body)
	if err != nil {
		if errors.Is(err, wxpay.ErrSignatureMismatch) && params != nil {
			rejected := notificationFromParams(params, false, constants.NotifyStatusRejected)
			rejected.LastError = err.Error()
			if createErr := s.notificationRepo.Create(rejected); createErr != nil {
				paymentLogger("out_trade_no", rejected.OutTradeNo).Errorw("payment_notify_journal_failed", "error", createErr)
			}
			s.metrics.ObserveNotify(constants.NotifyStatusRejected)
			paymentLogger(
				"out_trade_no", rejected.OutTradeNo,
				"transaction_id", rejected.TransactionID,
			).Warnw("payment_notify_signature_invalid")
			return nil, ErrNotifySignatureInvalid
		}
		paymentLogger().Warnw("payment_notify_invalid", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrNotifyInvalid, err)
	}

	status := constants.NotifyStatusReceived
	if !params.IsSuccess() {
		status = constants.NotifyStatusMismatch
	}
	notification := notificationFromParams(params, true, status)
	if status == constants.NotifyStatusMismatch {
		notification.LastError = params.ErrorMessage()
	}
	log := paymentLogger(
		"out_trade_no", notification.OutTradeNo,
		"transaction_id", notification.TransactionID,
	)

	duplicate, err := s.isDuplicateNotify(ctx, notification.TransactionID)
	if err != nil {
		return nil, err
	}
	if duplicate {
		notification.Status = constants.NotifyStatusDuplicate
	}
	if err := s.notificationRepo.Create(notification); err != nil {
		if !duplicate {
			s.releaseNotify(ctx, notification.TransactionID)
		}
		log.Errorw("payment_notify_journal_failed", "error", err)
		return nil, err
	}
	s.metrics.ObserveNotify(notification.Status)
	result := &NotifyResult{Notification: notification, Duplicate: duplicate, Ack: s.notifyAck()}
	if duplicate {
		log.Infow("payment_notify_duplicate", "notification_id", notification.ID)
		return result, nil
	}
	log.Infow("payment_notify_received",
		"notification_id", notification.ID,
		"status", notification.Status,
		"total_fee", notification.TotalFee,
	)
	if notification.Status == constants.NotifyStatusReceived {
		s.dispatchConfirm(ctx, notification)
	}
	return result, nil
}

func (s *PaymentService) notifyAck() []byte {
	if !s.notifyCfg.ReplyXML {
		return nil
	}
	return wxpay.NotifyAck(true, "")
}

// isDuplicateNotify 先占用缓存去重键，再以已验签流水兜底
func (s *PaymentService) isDuplicateNotify(ctx context.Context, transactionID string) (bool, error) {
	if transactionID == "" {
		return false, nil
	}
	ttl := defaultNotifyDedupeTTL
	if s.notifyCfg.DedupeTTLSeconds > 0 {
		ttl = time.Duration(s.notifyCfg.DedupeTTLSeconds) * time.Second
	}
	log := paymentLogger("transaction_id", transactionID)
	claimed, err := cache.ClaimNotify(ctx, transactionID, ttl)
	if err != nil {
		log.Warnw("payment_notify_dedupe_cache_failed", "error", err)
	} else if !claimed {
		return true, nil
	}
	latest, err := s.notificationRepo.GetLatestByTransactionID(transactionID)
	if err != nil {
		// 占用键必须释放，否则网关重推会被当作重复通知
		if claimed {
			s.releaseNotify(ctx, transactionID)
		}
		return false, err
	}
	return latest != nil, nil
}

func (s *PaymentService) releaseNotify(ctx context.Context, transactionID string) {
	if err := cache.ReleaseNotify(ctx, transactionID); err != nil {
		paymentLogger("transaction_id", transactionID).Warnw("payment_notify_dedupe_release_failed", "error", err)
	}
}

func (s *PaymentService) dispatchConfirm(ctx context.Context, notification *models.PaymentNotification) {
	log := paymentLogger("notification_id", notification.ID, "out_trade_no", notification.OutTradeNo)
	if s.queueClient.Enabled() {
		delay := time.Duration(s.notifyCfg.ConfirmDelaySecs) * time.Second
		err := s.queueClient.EnqueueNotifyConfirm(queue.NotifyConfirmPayload{
			NotificationID: notification.ID,
			OutTradeNo:     notification.OutTradeNo,
			TransactionID:  notification.TransactionID,
		}, delay)
		if err == nil {
			return
		}
		// 入队失败由 worker 定时补偿
		log.Warnw("payment_notify_enqueue_failed", "error", err)
		return
	}
	if err := s.ConfirmNotification(ctx, notification.ID); err != nil {
		log.Warnw("payment_notify_confirm_inline_failed", "error", err)
	}
}

// ConfirmNotification 以验签后的订单查询结果确认通知
// 查询结果验签失败时返回错误，由调用方重试。
func (s *PaymentService) ConfirmNotification(ctx context.Context, notificationID uint) error {
	notification, err := s.notificationRepo.GetByID(notificationID)
	if err != nil {
		return err
	}
	if notification == nil {
		return ErrNotFound
	}
	switch notification.Status {
	case constants.NotifyStatusReceived, constants.NotifyStatusUnverifiedQuery:
	default:
		return nil
	}
	log := paymentLogger(
		"notification_id", notification.ID,
		"out_trade_no", notification.OutTradeNo,
		"transaction_id", notification.TransactionID,
	)
	if err := s.notificationRepo.IncrementAttempts(notification.ID); err != nil {
		return err
	}

	result, err := s.gateway.OrderQuery(ctx, notification.OutTradeNo)
	if err != nil {
		if updateErr := s.notificationRepo.UpdateStatus(notification.ID, notification.Status, map[string]interface{}{
			"last_error": err.Error(),
		}); updateErr != nil {
			log.Warnw("payment_notify_last_error_update_failed", "error", updateErr)
		}
		log.Warnw("payment_notify_confirm_query_failed", "error", err)
		return mapGatewayError(err)
	}
	if result.IsEmpty() {
		if err := s.notificationRepo.UpdateStatus(notification.ID, constants.NotifyStatusUnverifiedQuery, map[string]interface{}{
			"last_error": "order query response signature mismatch",
		}); err != nil {
			return err
		}
		s.metrics.ObserveNotify(constants.NotifyStatusUnverifiedQuery)
		log.Warnw("payment_notify_confirm_unverified")
		return ErrGatewaySignatureMismatch
	}

	tradeState := result.Get(wxpay.FieldTradeState)
	status, reason := matchOrderQuery(notification, result)
	fields := map[string]interface{}{
		"trade_state": tradeState,
		"last_error":  reason,
	}
	if status == constants.NotifyStatusConfirmed {
		fields["confirmed_at"] = s.now()
	}
	if err := s.notificationRepo.UpdateStatus(notification.ID, status, fields); err != nil {
		return err
	}
	s.evictOrderQuery(ctx, notification.OutTradeNo)
	s.metrics.ObserveNotify(status)
	if status == constants.NotifyStatusConfirmed {
		log.Infow("payment_notify_confirmed", "trade_state", tradeState)
	} else {
		log.Warnw("payment_notify_mismatch", "trade_state", tradeState, "reason", reason)
	}
	return nil
}

// ConfirmPending 补偿确认超时未完成的通知，返回处理条数
func (s *PaymentService) ConfirmPending(ctx context.Context) (int, error) {
	before := s.now().Add(-defaultConfirmGrace)
	pending, err := s.notificationRepo.ListPendingBefore(
		[]string{constants.NotifyStatusReceived, constants.NotifyStatusUnverifiedQuery},
		before,
		defaultConfirmMaxAttempts,
		defaultConfirmBatchSize,
	)
	if err != nil {
		return 0, err
	}
	processed := 0
	for _, item := range pending {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}
		if err := s.ConfirmNotification(ctx, item.ID); err != nil {
			paymentLogger("notification_id", item.ID).Warnw("payment_notify_confirm_pending_failed", "error", err)
			continue
		}
		processed++
	}
	return processed, nil
}

// matchOrderQuery 核对通知与订单查询结果
func matchOrderQuery(notification *models.PaymentNotification, result wxpay.Params) (string, string) {
	if !result.IsSuccess() {
		return constants.NotifyStatusMismatch, result.ErrorMessage()
	}
	if state := result.Get(wxpay.FieldTradeState); state != constants.TradeStateSuccess {
		return constants.NotifyStatusMismatch, "trade_state " + state
	}
	if fee := result.Get(wxpay.FieldTotalFee); fee != strconv.FormatInt(notification.TotalFee, 10) {
		return constants.NotifyStatusMismatch, fmt.Sprintf("total_fee %s != %d", fee, notification.TotalFee)
	}
	txID := result.Get(wxpay.FieldTransactionID)
	if notification.TransactionID != "" && txID != "" && txID != notification.TransactionID {
		return constants.NotifyStatusMismatch, "transaction_id " + txID
	}
	return constants.NotifyStatusConfirmed, ""
}

func notificationFromParams(params wxpay.Params, verified bool, status string) *models.PaymentNotification {
	totalFee, _ := strconv.ParseInt(params.Get(wxpay.FieldTotalFee), 10, 64)
	payload := make(models.StringMap, len(params))
	for key, value := range params {
		if key == wxpay.FieldSign {
			continue
		}
		payload[key] = value
	}
	return &models.PaymentNotification{
		OutTradeNo:    params.Get(wxpay.FieldOutTradeNo),
		TransactionID: params.Get(wxpay.FieldTransactionID),
		TotalFee:      totalFee,
		ResultCode:    params.ResultCode(),
		Verified:      verified,
		Status:        status,
		Payload:       payload,
	}
}
