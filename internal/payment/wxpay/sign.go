package wxpay

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"sort"
	"strings"
)

// BuildSignContent 生成待签名串（不含 key 后缀）
func BuildSignContent(params Params) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if k == FieldSign || v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(params[k])
	}
	return sb.String()
}

// Sign 计算 MD5 签名（大写十六进制）
func Sign(params Params, key string) string {
	content := BuildSignContent(params) + "&key=" + key
	sum := md5.Sum([]byte(content))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// Verify 校验参数集中的 sign 字段
func Verify(params Params, key string) bool {
	got, ok := params[FieldSign]
	if !ok || got == "" {
		return false
	}
	expected := Sign(params, key)
	return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1
}
