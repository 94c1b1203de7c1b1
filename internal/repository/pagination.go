package repository

import (
	"time"

	"gorm.io/gorm"
)

// maxPageSize 审计列表单页上限
const maxPageSize = 200

// whereCreatedBetween 按创建时间闭区间过滤
func whereCreatedBetween(query *gorm.DB, from, to *time.Time) *gorm.DB {
	if from != nil {
		query = query.Where("created_at >= ?", *from)
	}
	if to != nil {
		query = query.Where("created_at <= ?", *to)
	}
	return query
}

// findPage 统计总数后按 ID 倒序取一页，pageSize 不大于 0 时返回全部
func findPage[T any](query *gorm.DB, page, pageSize int) ([]T, int64, error) {
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	if pageSize > 0 {
		if page < 1 {
			page = 1
		}
		query = query.Limit(pageSize).Offset((page - 1) * pageSize)
	}
	rows := make([]T, 0)
	if err := query.Order("id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
