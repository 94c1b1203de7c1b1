package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wxpay-bridge/internal/logger"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Queue    QueueConfig    `mapstructure:"queue"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Security SecurityConfig `mapstructure:"security"`
	Wechat   WechatConfig   `mapstructure:"wechat"`
	Order    OrderConfig    `mapstructure:"order"`
	Notify   NotifyConfig   `mapstructure:"notify"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug / release
	// 通知回调需在网关超时前应答，写超时不宜过长
	ReadTimeoutSeconds     int `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds    int `mapstructure:"write_timeout_seconds"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
}

// Addr 监听地址
func (c ServerConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// ShutdownTimeout 优雅退出等待时长
func (c ServerConfig) ShutdownTimeout() time.Duration {
	if c.ShutdownTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// LogConfig 日志配置
type LogConfig struct {
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
	Stdout     bool   `mapstructure:"stdout"`
}

// ToLoggerOptions 转换为 logger 配置
func (c LogConfig) ToLoggerOptions() logger.Options {
	return logger.Options{
		Dir:        c.Dir,
		Filename:   c.Filename,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
		Stdout:     c.Stdout,
	}
}

// DatabasePoolConfig 数据库连接池配置
type DatabasePoolConfig struct {
	MaxOpenConns           int `mapstructure:"max_open_conns"`
	MaxIdleConns           int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSeconds int `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int `mapstructure:"conn_max_idle_time_seconds"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver string             `mapstructure:"driver"` // 数据库驱动（sqlite/postgres）
	DSN    string             `mapstructure:"dsn"`    // 数据库连接串
	Pool   DatabasePoolConfig `mapstructure:"pool"`
}

// JWTConfig 管理端 JWT 配置
type JWTConfig struct {
	SecretKey   string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// QueueConfig 异步队列配置
type QueueConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	Host        string         `mapstructure:"host"`
	Port        int            `mapstructure:"port"`
	Password    string         `mapstructure:"password"`
	DB          int            `mapstructure:"db"`
	Concurrency int            `mapstructure:"concurrency"`
	Queues      map[string]int `mapstructure:"queues"`
	MaxRetry    int            `mapstructure:"max_retry"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	PayRateLimit   RateLimitConfig `mapstructure:"pay_rate_limit"`
	LoginRateLimit RateLimitConfig `mapstructure:"login_rate_limit"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	WindowSeconds int `mapstructure:"window_seconds"`
	MaxRequests   int `mapstructure:"max_requests"`
}

// WechatConfig 微信配置
type WechatConfig struct {
	LocalIP string           `mapstructure:"local_ip"`
	Pay     WechatPayConfig  `mapstructure:"pay"`
	Auth    WechatAuthConfig `mapstructure:"auth"`
}

// WechatPayConfig 商户支付配置
type WechatPayConfig struct {
	AppID          string `mapstructure:"app_id"`
	MchID          string `mapstructure:"mch_id"`
	PartnerKey     string `mapstructure:"partner_key"`
	CertPath       string `mapstructure:"cert_path"`
	KeyPath        string `mapstructure:"key_path"`
	P12Path        string `mapstructure:"p12_path"`
	P12Password    string `mapstructure:"p12_password"`
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	StrictVerify   bool   `mapstructure:"strict_verify"`
}

// Timeout 单次请求超时
func (c WechatPayConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// WechatAuthConfig 网页授权配置
type WechatAuthConfig struct {
	AppID     string `mapstructure:"app_id"`
	AppSecret string `mapstructure:"app_secret"`
	BaseURL   string `mapstructure:"base_url"`
}

// Enabled 是否配置了网页授权
func (c WechatAuthConfig) Enabled() bool {
	return strings.TrimSpace(c.AppID) != "" && strings.TrimSpace(c.AppSecret) != ""
}

// OrderConfig APP 下单配置
type OrderConfig struct {
	Body           string `mapstructure:"body"`
	TotalAmount    string `mapstructure:"total_amount"` // 单位：元
	NotifyURL      string `mapstructure:"notify_url"`
	TransferDesc   string `mapstructure:"transfer_desc"`
	QueryCacheSecs int    `mapstructure:"query_cache_seconds"`
}

// NotifyConfig 支付通知配置
type NotifyConfig struct {
	DedupeTTLSeconds int  `mapstructure:"dedupe_ttl_seconds"`
	ReplyXML         bool `mapstructure:"reply_xml"`
	ConfirmDelaySecs int  `mapstructure:"confirm_delay_seconds"`
}

// Validate 校验必填项
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	var missing []string
	if strings.TrimSpace(c.Wechat.Pay.AppID) == "" {
		missing = append(missing, "wechat.pay.app_id")
	}
	if strings.TrimSpace(c.Wechat.Pay.MchID) == "" {
		missing = append(missing, "wechat.pay.mch_id")
	}
	if strings.TrimSpace(c.Wechat.Pay.PartnerKey) == "" {
		missing = append(missing, "wechat.pay.partner_key")
	}
	if strings.TrimSpace(c.Wechat.LocalIP) == "" {
		missing = append(missing, "wechat.local_ip")
	}
	if strings.TrimSpace(c.Order.NotifyURL) == "" {
		missing = append(missing, "order.notify_url")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing config: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Load 从 config.yml 加载配置
func Load() *Config {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("../")
	v.AddConfigPath("./etc")

	setDefaults(v)

	// 环境变量支持，例如 wechat.pay.mch_id -> WECHAT_PAY_MCH_ID
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		logger.Warnw("config_file_read_failed",
			"error", err,
			"fallback", "env_or_defaults",
		)
	} else {
		logger.Infow("config_file_loaded", "file", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		logger.Errorw("config_unmarshal_failed", "error", err)
		panic(fmt.Errorf("配置解析失败: %w", err))
	}
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "3000")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout_seconds", 10)
	v.SetDefault("server.write_timeout_seconds", 30)
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("log.dir", "")
	v.SetDefault("log.filename", "logs.txt")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
	v.SetDefault("log.stdout", true)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./db/wxpay.db")
	v.SetDefault("database.pool.max_open_conns", 1)
	v.SetDefault("database.pool.max_idle_conns", 1)
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.expire_hours", 12)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "wxpay")
	v.SetDefault("queue.enabled", false)
	v.SetDefault("queue.host", "127.0.0.1")
	v.SetDefault("queue.port", 6379)
	v.SetDefault("queue.db", 1)
	v.SetDefault("queue.concurrency", 10)
	v.SetDefault("queue.max_retry", 5)
	v.SetDefault("queue.queues", map[string]int{
		"default":  10,
		"critical": 5,
	})
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{
		"Content-Type",
		"Content-Length",
		"Authorization",
		"X-Requested-With",
		"X-Request-ID",
	})
	v.SetDefault("cors.allow_credentials", true)
	v.SetDefault("cors.max_age", 600)
	v.SetDefault("security.pay_rate_limit.window_seconds", 60)
	v.SetDefault("security.pay_rate_limit.max_requests", 30)
	v.SetDefault("security.login_rate_limit.window_seconds", 300)
	v.SetDefault("security.login_rate_limit.max_requests", 5)
	v.SetDefault("wechat.local_ip", "127.0.0.1")
	v.SetDefault("wechat.pay.app_id", "")
	v.SetDefault("wechat.pay.mch_id", "")
	v.SetDefault("wechat.pay.partner_key", "")
	v.SetDefault("wechat.pay.cert_path", "")
	v.SetDefault("wechat.pay.key_path", "")
	v.SetDefault("wechat.pay.p12_path", "")
	v.SetDefault("wechat.pay.p12_password", "")
	v.SetDefault("wechat.auth.app_id", "")
	v.SetDefault("wechat.auth.app_secret", "")
	v.SetDefault("order.notify_url", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("queue.password", "")
	v.SetDefault("wechat.pay.base_url", "https://api.mch.weixin.qq.com")
	v.SetDefault("wechat.pay.timeout_seconds", 10)
	v.SetDefault("wechat.pay.strict_verify", false)
	v.SetDefault("wechat.auth.base_url", "https://api.weixin.qq.com/sns/oauth2/access_token")
	v.SetDefault("order.body", "用户微信支付")
	v.SetDefault("order.total_amount", "0.01")
	v.SetDefault("order.transfer_desc", "用户提现")
	v.SetDefault("order.query_cache_seconds", 5)
	v.SetDefault("notify.dedupe_ttl_seconds", 86400)
	v.SetDefault("notify.reply_xml", false)
	v.SetDefault("notify.confirm_delay_seconds", 5)
}
