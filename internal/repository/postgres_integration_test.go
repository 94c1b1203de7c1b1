//go:build integration
// +build integration

package repository

import (
	"os"
	"strings"
	"testing"

	"github.com/wxpay-bridge/internal/constants"
	"github.com/wxpay-bridge/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupPostgresIntegrationDB 初始化 PostgreSQL 集成测试数据库。
func setupPostgresIntegrationDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("skip postgres integration test: TEST_POSTGRES_DSN is empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open postgres failed: %v", err)
	}

	cleanupModels := []interface{}{
		&models.PaymentNotification{},
		&models.GatewayExchange{},
	}
	_ = db.Migrator().DropTable(cleanupModels...)

	if err := models.Migrate(db); err != nil {
		t.Fatalf("migrate postgres models failed: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Migrator().DropTable(cleanupModels...)
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})

	return db
}

func TestPostgresNotificationPayloadFilter(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	repo := NewNotificationRepository(db)

	for _, openID := range []string{"o-pg-1", "o-pg-2"} {
		row := &models.PaymentNotification{
			OutTradeNo: "PG" + openID,
			Verified:   true,
			Status:     constants.NotifyStatusReceived,
			Payload:    models.StringMap{"openid": openID},
		}
		if err := repo.Create(row); err != nil {
			t.Fatalf("create notification failed: %v", err)
		}
	}

	rows, total, err := repo.List(NotificationListFilter{Page: 1, PageSize: 10, OpenID: "o-pg-2"})
	if err != nil {
		t.Fatalf("list by openid failed: %v", err)
	}
	if total != 1 || len(rows) != 1 || rows[0].OutTradeNo != "PGo-pg-2" {
		t.Fatalf("openid filter want PGo-pg-2 got total=%d rows=%+v", total, rows)
	}
}
