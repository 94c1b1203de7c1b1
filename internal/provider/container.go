package provider

import (
	"fmt"

	"github.com/wxpay-bridge/internal/authz"
	"github.com/wxpay-bridge/internal/cache"
	"github.com/wxpay-bridge/internal/config"
	"github.com/wxpay-bridge/internal/logger"
	"github.com/wxpay-bridge/internal/metrics"
	"github.com/wxpay-bridge/internal/models"
	"github.com/wxpay-bridge/internal/payment/wxauth"
	"github.com/wxpay-bridge/internal/payment/wxpay"
	"github.com/wxpay-bridge/internal/queue"
	"github.com/wxpay-bridge/internal/repository"
	"github.com/wxpay-bridge/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client
	Metrics     *metrics.Metrics
	WxpayClient *wxpay.Client

	// Repositories
	AdminRepo        repository.AdminRepository
	ExchangeRepo     repository.ExchangeRepository
	NotificationRepo repository.NotificationRepository

	// Services
	AuthzService   *authz.Service
	AuthService    *service.AuthService
	PaymentService *service.PaymentService
	OAuthService   *service.OAuthService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) (*Container, error) {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端，未启用时为空操作客户端
	queueClient, err := queue.NewClient(&cfg.Queue)
	if err != nil {
		logger.Errorw("provider_init_queue_client_failed", "error", err)
		return nil, err
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
		Metrics:     metrics.New(metrics.NewRegistry()),
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	if err := c.initServices(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Container) initRepositories() {
	db := models.DB
	c.AdminRepo = repository.NewAdminRepository(db)
	c.ExchangeRepo = repository.NewExchangeRepository(db)
	c.NotificationRepo = repository.NewNotificationRepository(db)
}

func (c *Container) initServices() error {
	authzService, err := authz.NewService(models.DB)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		return err
	}
	c.AuthzService = authzService
	if err := c.AuthzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_builtin_roles_failed", "error", err)
		return err
	}
	c.AuthService = service.NewAuthService(c.Config, c.AdminRepo, c.AuthzService)

	client, err := NewWxpayClient(c.Config, c.Metrics, service.NewExchangeRecorder(c.ExchangeRepo))
	if err != nil {
		logger.Errorw("provider_init_wxpay_client_failed", "error", err)
		return err
	}
	c.WxpayClient = client
	c.PaymentService = service.NewPaymentService(service.PaymentServiceOptions{
		Gateway:          client,
		ExchangeRepo:     c.ExchangeRepo,
		NotificationRepo: c.NotificationRepo,
		QueueClient:      c.QueueClient,
		Metrics:          c.Metrics,
		Order:            c.Config.Order,
		Notify:           c.Config.Notify,
		LocalIP:          c.Config.Wechat.LocalIP,
	})

	c.OAuthService = service.NewOAuthService(nil)
	if authCfg := c.Config.Wechat.Auth; authCfg.Enabled() {
		oauthClient, err := wxauth.NewClient(wxauth.Config{
			AppID:     authCfg.AppID,
			AppSecret: authCfg.AppSecret,
			BaseURL:   authCfg.BaseURL,
			Timeout:   c.Config.Wechat.Pay.Timeout(),
		})
		if err != nil {
			logger.Warnw("provider_init_wechat_oauth_failed", "error", err)
		} else {
			c.OAuthService = service.NewOAuthService(oauthClient)
		}
	}
	return nil
}

// NewWxpayClient 按配置创建商户网关客户端，证书只在此处加载一次
func NewWxpayClient(cfg *config.Config, m *metrics.Metrics, recorder *service.ExchangeRecorder) (*wxpay.Client, error) {
	payCfg := cfg.Wechat.Pay
	certPEM, keyPEM, err := wxpay.LoadCertificate(wxpay.CertConfig{
		CertPath:    payCfg.CertPath,
		KeyPath:     payCfg.KeyPath,
		P12Path:     payCfg.P12Path,
		P12Password: payCfg.P12Password,
	}, payCfg.MchID)
	if err != nil {
		return nil, fmt.Errorf("load merchant certificate: %w", err)
	}
	opts := []wxpay.Option{
		wxpay.WithTimeout(payCfg.Timeout()),
		wxpay.WithStrictVerify(payCfg.StrictVerify),
		wxpay.WithLogger(logger.SW("component", "wxpay")),
		wxpay.WithObserver(wxpay.Observers(m.Observer(), recorder.Observer())),
	}
	if payCfg.BaseURL != "" {
		opts = append(opts, wxpay.WithBaseURL(payCfg.BaseURL))
	}
	client, err := wxpay.NewClient(wxpay.Credentials{
		AppID:      payCfg.AppID,
		MchID:      payCfg.MchID,
		PartnerKey: payCfg.PartnerKey,
		CertPEM:    certPEM,
		KeyPEM:     keyPEM,
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !client.SupportsMutualTLS() {
		logger.Warnw("wxpay_client_certificate_absent", "mch_id", payCfg.MchID)
	} else {
		logger.Infow("wxpay_client_ready", "mch_id", payCfg.MchID, "cert_serial", client.CertificateSerial())
	}
	return client, nil
}

// Close 释放容器持有的连接
func (c *Container) Close() {
	if c == nil {
		return
	}
	if c.WxpayClient != nil {
		c.WxpayClient.Close()
	}
	if c.QueueClient != nil {
		_ = c.QueueClient.Close()
	}
	_ = cache.Close()
}
