package cache

import (
	"context"
	"strings"
	"time"

	"github.com/wxpay-bridge/internal/constants"
)

// ClaimNotify 以微信订单号占用通知处理权，重复通知返回 false
func ClaimNotify(ctx context.Context, transactionID string, ttl time.Duration) (bool, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return true, nil
	}
	return SetNX(ctx, notifyDedupeKey(transactionID), time.Now().Unix(), ttl)
}

// ReleaseNotify 处理失败时释放占用，允许网关重推
func ReleaseNotify(ctx context.Context, transactionID string) error {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return nil
	}
	return Del(ctx, notifyDedupeKey(transactionID))
}

// GetOrderQuery 读取订单查询缓存
func GetOrderQuery(ctx context.Context, outTradeNo string) (map[string]string, bool, error) {
	var result map[string]string
	hit, err := GetJSON(ctx, orderQueryKey(outTradeNo), &result)
	if err != nil || !hit {
		return nil, hit, err
	}
	return result, true, nil
}

// SetOrderQuery 写入订单查询缓存，空结果不缓存
func SetOrderQuery(ctx context.Context, outTradeNo string, result map[string]string, ttl time.Duration) error {
	if len(result) == 0 || ttl <= 0 {
		return nil
	}
	return SetJSON(ctx, orderQueryKey(outTradeNo), result, ttl)
}

// DelOrderQuery 删除订单查询缓存
func DelOrderQuery(ctx context.Context, outTradeNo string) error {
	return Del(ctx, orderQueryKey(outTradeNo))
}

func notifyDedupeKey(transactionID string) string {
	return constants.CacheKeyNotifyDedupe + ":" + transactionID
}

func orderQueryKey(outTradeNo string) string {
	return constants.CacheKeyOrderQuery + ":" + strings.TrimSpace(outTradeNo)
}
