package public

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/wxpay-bridge/internal/cache"
	"github.com/wxpay-bridge/internal/models"

	"github.com/gin-gonic/gin"
)

var errDatabaseUnavailable = errors.New("database not initialized")

// Healthz 健康检查，数据库不可用时返回 503
func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := gin.H{"database": "ok"}
	if err := pingDatabase(ctx); err != nil {
		status = http.StatusServiceUnavailable
		checks["database"] = err.Error()
	}
	if cache.Enabled() {
		checks["redis"] = "ok"
		if err := cache.Ping(ctx); err != nil {
			checks["redis"] = err.Error()
		}
	}
	c.JSON(status, gin.H{"status": http.StatusText(status), "checks": checks})
}

func pingDatabase(ctx context.Context) error {
	if models.DB == nil {
		return errDatabaseUnavailable
	}
	sqlDB, err := models.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
