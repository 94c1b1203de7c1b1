package repository

import (
	"errors"
	"time"

	"github.com/wxpay-bridge/internal/models"

	"gorm.io/gorm"
)

// NotificationRepository 支付通知流水数据访问接口
type NotificationRepository interface {
	Create(notification *models.PaymentNotification) error
	GetByID(id uint) (*models.PaymentNotification, error)
	GetLatestByTransactionID(transactionID string) (*models.PaymentNotification, error)
	UpdateStatus(id uint, status string, fields map[string]interface{}) error
	IncrementAttempts(id uint) error
	ListPendingBefore(statuses []string, before time.Time, maxAttempts int, limit int) ([]models.PaymentNotification, error)
	List(filter NotificationListFilter) ([]models.PaymentNotification, int64, error)
}

// GormNotificationRepository GORM 实现
type GormNotificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository 创建通知流水仓库
func NewNotificationRepository(db *gorm.DB) *GormNotificationRepository {
	return &GormNotificationRepository{db: db}
}

// Create 写入通知流水
func (r *GormNotificationRepository) Create(notification *models.PaymentNotification) error {
	return r.db.Create(notification).Error
}

// GetByID 根据 ID 获取通知
func (r *GormNotificationRepository) GetByID(id uint) (*models.PaymentNotification, error) {
	var notification models.PaymentNotification
	if err := r.db.First(&notification, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &notification, nil
}

// GetLatestByTransactionID 获取同一微信订单号最近一次已验签通知
func (r *GormNotificationRepository) GetLatestByTransactionID(transactionID string) (*models.PaymentNotification, error) {
	if transactionID == "" {
		return nil, nil
	}
	var notification models.PaymentNotification
	err := r.db.Where("transaction_id = ? AND verified = ?", transactionID, true).Order("id desc").First(&notification).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &notification, nil
}

// UpdateStatus 更新状态及附加字段
func (r *GormNotificationRepository) UpdateStatus(id uint, status string, fields map[string]interface{}) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}
	for key, value := range fields {
		updates[key] = value
	}
	return r.db.Model(&models.PaymentNotification{}).Where("id = ?", id).Updates(updates).Error
}

// IncrementAttempts 确认次数加一
func (r *GormNotificationRepository) IncrementAttempts(id uint) error {
	return r.db.Model(&models.PaymentNotification{}).
		Where("id = ?", id).
		UpdateColumn("attempts", gorm.Expr("attempts + ?", 1)).Error
}

// ListPendingBefore 查询待确认的已验签通知
func (r *GormNotificationRepository) ListPendingBefore(statuses []string, before time.Time, maxAttempts int, limit int) ([]models.PaymentNotification, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	query := r.db.Model(&models.PaymentNotification{}).
		Where("verified = ?", true).
		Where("status IN ?", statuses).
		Where("created_at <= ?", before)
	if maxAttempts > 0 {
		query = query.Where("attempts < ?", maxAttempts)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	notifications := make([]models.PaymentNotification, 0)
	if err := query.Order("id asc").Find(&notifications).Error; err != nil {
		return nil, err
	}
	return notifications, nil
}

// List 分页查询通知流水
func (r *GormNotificationRepository) List(filter NotificationListFilter) ([]models.PaymentNotification, int64, error) {
	query := r.db.Model(&models.PaymentNotification{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.OutTradeNo != "" {
		query = query.Where("out_trade_no = ?", filter.OutTradeNo)
	}
	if filter.TransactionID != "" {
		query = query.Where("transaction_id = ?", filter.TransactionID)
	}
	if filter.Verified != nil {
		query = query.Where("verified = ?", *filter.Verified)
	}
	if filter.OpenID != "" {
		query = query.Where(payloadTextExpr(r.db, "openid")+" = ?", filter.OpenID)
	}
	query = whereCreatedBetween(query, filter.CreatedFrom, filter.CreatedTo)
	return findPage[models.PaymentNotification](query, filter.Page, filter.PageSize)
}
