package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/wxpay-bridge/internal/authz"
	"github.com/wxpay-bridge/internal/config"
	"github.com/wxpay-bridge/internal/logger"
	"github.com/wxpay-bridge/internal/models"
	"github.com/wxpay-bridge/internal/repository"
	"github.com/wxpay-bridge/internal/service"
)

// 管理员维护工具：创建管理员并签发管理端 token
func main() {
	var (
		username string
		password string
		role     string
		create   bool
	)
	flag.StringVar(&username, "username", "", "管理员用户名")
	flag.StringVar(&password, "password", os.Getenv("WXPAY_ADMIN_PASSWORD"), "管理员密码，默认读取 WXPAY_ADMIN_PASSWORD")
	flag.StringVar(&role, "role", "operator", "创建时的角色: viewer / operator")
	flag.BoolVar(&create, "create", false, "管理员不存在时创建")
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if username == "" || password == "" {
		stdLog.Fatalf("username 与 password 不能为空")
	}

	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("数据库初始化失败: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("数据库迁移失败: %v", err)
	}

	authzService, err := authz.NewService(models.DB)
	if err != nil {
		stdLog.Fatalf("权限服务初始化失败: %v", err)
	}
	if err := authzService.BootstrapBuiltinRoles(); err != nil {
		stdLog.Fatalf("预置角色初始化失败: %v", err)
	}
	authService := service.NewAuthService(cfg, repository.NewAdminRepository(models.DB), authzService)

	if create {
		admin, err := authService.CreateAdmin(username, password, role)
		switch {
		case errors.Is(err, service.ErrAdminExists):
			stdLog.Printf("管理员已存在，跳过创建: %s", username)
		case err != nil:
			stdLog.Fatalf("创建管理员失败: %v", err)
		default:
			stdLog.Printf("已创建管理员: %s (%s)", admin.Username, admin.Role)
		}
	}

	admin, token, expiresAt, err := authService.Login(context.Background(), username, password)
	if err != nil {
		stdLog.Fatalf("签发 token 失败: %v", err)
	}
	fmt.Printf("admin_id=%d username=%s role=%s\n", admin.ID, admin.Username, admin.Role)
	fmt.Printf("expires_at=%s\n", expiresAt.Format(time.RFC3339))
	fmt.Println(token)
}
