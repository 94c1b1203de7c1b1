package repository

import (
	"github.com/wxpay-bridge/internal/models"

	"gorm.io/gorm"
)

// ExchangeRepository 网关调用审计数据访问接口
type ExchangeRepository interface {
	Create(exchange *models.GatewayExchange) error
	List(filter ExchangeListFilter) ([]models.GatewayExchange, int64, error)
}

// GormExchangeRepository GORM 实现
type GormExchangeRepository struct {
	db *gorm.DB
}

// NewExchangeRepository 创建审计仓库
func NewExchangeRepository(db *gorm.DB) *GormExchangeRepository {
	return &GormExchangeRepository{db: db}
}

// Create 写入一条调用记录
func (r *GormExchangeRepository) Create(exchange *models.GatewayExchange) error {
	return r.db.Create(exchange).Error
}

// List 分页查询调用记录，按 ID 倒序
func (r *GormExchangeRepository) List(filter ExchangeListFilter) ([]models.GatewayExchange, int64, error) {
	query := r.db.Model(&models.GatewayExchange{})
	if filter.Operation != "" {
		query = query.Where("operation = ?", filter.Operation)
	}
	if filter.Reference != "" {
		query = query.Where("reference = ?", filter.Reference)
	}
	if filter.Outcome != "" {
		query = query.Where("outcome = ?", filter.Outcome)
	}
	query = whereCreatedBetween(query, filter.CreatedFrom, filter.CreatedTo)
	return findPage[models.GatewayExchange](query, filter.Page, filter.PageSize)
}
