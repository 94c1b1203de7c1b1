package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/wxpay-bridge/internal/config"
	"github.com/wxpay-bridge/internal/constants"
	"github.com/wxpay-bridge/internal/models"
	"github.com/wxpay-bridge/internal/payment/wxpay"
	"github.com/wxpay-bridge/internal/provider"
	"github.com/wxpay-bridge/internal/queue"
	"github.com/wxpay-bridge/internal/repository"
	"github.com/wxpay-bridge/internal/service"

	"github.com/glebarez/sqlite"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

// queryGateway 只实现订单查询的网关
type queryGateway struct {
	service.PaymentGateway
	result wxpay.Params
	err    error
	calls  int
}

func (g *queryGateway) OrderQuery(_ context.Context, _ string) (wxpay.Params, error) {
	g.calls++
	return g.result, g.err
}

func setupConsumerTest(t *testing.T, gateway *queryGateway) (*Consumer, *repository.GormNotificationRepository) {
	t.Helper()
	dsn := fmt.Sprintf("file:worker_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := models.Migrate(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	notificationRepo := repository.NewNotificationRepository(db)
	queueClient, _ := queue.NewClient(nil)
	paymentService := service.NewPaymentService(service.PaymentServiceOptions{
		Gateway:          gateway,
		ExchangeRepo:     repository.NewExchangeRepository(db),
		NotificationRepo: notificationRepo,
		QueueClient:      queueClient,
	})
	return NewConsumer(&provider.Container{
		Config:           &config.Config{},
		QueueClient:      queueClient,
		NotificationRepo: notificationRepo,
		PaymentService:   paymentService,
	}), notificationRepo
}

func createReceivedNotification(t *testing.T, repo *repository.GormNotificationRepository) *models.PaymentNotification {
	t.Helper()
	notification := &models.PaymentNotification{
		OutTradeNo:    "202401020304051234",
		TransactionID: "4200000001",
		TotalFee:      1,
		ResultCode:    "SUCCESS",
		Verified:      true,
		Status:        constants.NotifyStatusReceived,
	}
	if err := repo.Create(notification); err != nil {
		t.Fatalf("create notification failed: %v", err)
	}
	return notification
}

func newConfirmTask(t *testing.T, id uint) *asynq.Task {
	t.Helper()
	task, err := queue.NewNotifyConfirmTask(queue.NotifyConfirmPayload{NotificationID: id, OutTradeNo: "202401020304051234"})
	if err != nil {
		t.Fatalf("build task failed: %v", err)
	}
	return task
}

func TestHandleNotifyConfirmMarksConfirmed(t *testing.T) {
	gateway := &queryGateway{result: wxpay.Params{
		"return_code":    "SUCCESS",
		"result_code":    "SUCCESS",
		"trade_state":    "SUCCESS",
		"total_fee":      "1",
		"transaction_id": "4200000001",
	}}
	consumer, repo := setupConsumerTest(t, gateway)
	notification := createReceivedNotification(t, repo)

	if err := consumer.handleNotifyConfirm(context.Background(), newConfirmTask(t, notification.ID)); err != nil {
		t.Fatalf("handle task failed: %v", err)
	}
	got, err := repo.GetByID(notification.ID)
	if err != nil || got == nil {
		t.Fatalf("reload notification failed: %v", err)
	}
	if got.Status != constants.NotifyStatusConfirmed || got.ConfirmedAt == nil {
		t.Fatalf("notification should be confirmed, got %+v", got)
	}
	if got.Attempts != 1 {
		t.Fatalf("attempts want 1 got %d", got.Attempts)
	}

	if err := consumer.handleNotifyConfirm(context.Background(), newConfirmTask(t, notification.ID)); err != nil {
		t.Fatalf("confirmed notification should be skipped: %v", err)
	}
	if gateway.calls != 1 {
		t.Fatalf("confirmed notification should not query again, calls=%d", gateway.calls)
	}
}

func TestHandleNotifyConfirmRetriesOnGatewayFailure(t *testing.T) {
	gateway := &queryGateway{err: fmt.Errorf("%w: dial timeout", wxpay.ErrTransport)}
	consumer, repo := setupConsumerTest(t, gateway)
	notification := createReceivedNotification(t, repo)

	err := consumer.handleNotifyConfirm(context.Background(), newConfirmTask(t, notification.ID))
	if !errors.Is(err, service.ErrGatewayRequestFailed) {
		t.Fatalf("want gateway request failed, got %v", err)
	}
	if errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("transport failure should be retried")
	}
	got, _ := repo.GetByID(notification.ID)
	if got.Status != constants.NotifyStatusReceived || got.LastError == "" {
		t.Fatalf("notification should stay received with last error, got %+v", got)
	}
}

func TestHandleNotifyConfirmSkipsBadPayload(t *testing.T) {
	consumer, _ := setupConsumerTest(t, &queryGateway{})

	err := consumer.handleNotifyConfirm(context.Background(), asynq.NewTask(queue.TaskNotifyConfirm, []byte("{bad")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("bad payload should skip retry, got %v", err)
	}
	if err := consumer.handleNotifyConfirm(context.Background(), newConfirmTask(t, 999)); err != nil {
		t.Fatalf("missing notification should be skipped, got %v", err)
	}
}

func TestServiceWithoutQueueRunsSweepOnly(t *testing.T) {
	consumer, _ := setupConsumerTest(t, &queryGateway{})
	svc, err := NewService(&config.QueueConfig{Enabled: false}, consumer)
	if err != nil {
		t.Fatalf("new service failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("start with canceled context should return nil, got %v", err)
	}
	if err := svc.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}
