package worker

import (
	"context"
	"errors"
	"time"

	"github.com/wxpay-bridge/internal/config"
	"github.com/wxpay-bridge/internal/logger"
	"github.com/wxpay-bridge/internal/queue"

	"github.com/hibiken/asynq"
)

const (
	pendingConfirmInterval = time.Minute
)

// Service 异步队列服务
// 队列未启用时只运行待确认通知的补偿循环。
type Service struct {
	name     string
	server   *asynq.Server
	mux      *asynq.ServeMux
	consumer *Consumer
	interval time.Duration
}

// NewService 创建异步队列服务
func NewService(cfg *config.QueueConfig, consumer *Consumer) (*Service, error) {
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	svc := &Service{
		name:     "worker",
		consumer: consumer,
		interval: pendingConfirmInterval,
	}
	if cfg != nil && cfg.Enabled {
		opt, serverCfg := queue.BuildServerConfig(cfg)
		svc.server = asynq.NewServer(opt, serverCfg)
		svc.mux = asynq.NewServeMux()
		consumer.Register(svc.mux)
	}
	return svc, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.consumer == nil {
		return errors.New("worker not initialized")
	}
	if s.server == nil {
		s.runPendingConfirmLoop(ctx)
		return nil
	}
	go s.runPendingConfirmLoop(ctx)
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	s.server.Shutdown()
	return nil
}

func (s *Service) runPendingConfirmLoop(ctx context.Context) {
	if s == nil || s.consumer == nil || s.consumer.Container == nil || s.consumer.PaymentService == nil {
		return
	}
	runOnce := func() {
		processed, err := s.consumer.PaymentService.ConfirmPending(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Warnw("worker_notify_confirm_pending_failed", "error", err)
			return
		}
		if processed > 0 {
			logger.Infow("worker_notify_confirm_pending_done", "processed", processed)
		}
	}
	runOnce()

	interval := s.interval
	if interval <= 0 {
		interval = pendingConfirmInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}
