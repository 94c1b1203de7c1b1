package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/wxpay-bridge/internal/config"
	"github.com/wxpay-bridge/internal/logger"

	"go.uber.org/zap"
)

// Mode 进程启动模式
type Mode string

const (
	ModeAll    Mode = "all"    // 接口与 worker 同进程
	ModeAPI    Mode = "api"    // 仅下单入口、通知回调与管理端
	ModeWorker Mode = "worker" // 仅通知确认与补偿
)

// ParseMode 解析 -mode 参数，空值视为 all
func ParseMode(raw string) (Mode, error) {
	switch mode := Mode(strings.ToLower(strings.TrimSpace(raw))); mode {
	case "":
		return ModeAll, nil
	case ModeAll, ModeAPI, ModeWorker:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown mode %q (all, api, worker)", raw)
	}
}

// ServesHTTP 是否启动 HTTP 服务
func (m Mode) ServesHTTP() bool {
	return m == ModeAll || m == ModeAPI
}

// RunsWorker 是否启动确认 worker
func (m Mode) RunsWorker() bool {
	return m == ModeAll || m == ModeWorker
}

// Options 应用启动选项
type Options struct {
	Config  *config.Config
	Logger  *zap.SugaredLogger
	Signals []os.Signal
	Mode    Mode
}

func normalizeOptions(opts Options) Options {
	if opts.Logger == nil {
		opts.Logger = logger.S()
	}
	if opts.Mode == "" {
		opts.Mode = ModeAll
	}
	return opts
}

// shutdownTimeout 退出等待时长取自 server 配置
func (o Options) shutdownTimeout() time.Duration {
	if o.Config == nil {
		return config.ServerConfig{}.ShutdownTimeout()
	}
	return o.Config.Server.ShutdownTimeout()
}
