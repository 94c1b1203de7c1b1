package wxpay

import (
	"sort"
	"strings"
)

// Params 网关报文参数集（扁平 key/value）
type Params map[string]string

// Get 读取字段，nil 安全
func (p Params) Get(key string) string {
	if p == nil {
		return ""
	}
	return p[key]
}

// Clone 复制参数集
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// IsEmpty 是否为空结果
func (p Params) IsEmpty() bool {
	return len(p) == 0
}

// ReturnCode 通信标识
func (p Params) ReturnCode() string {
	return strings.TrimSpace(p.Get(FieldReturnCode))
}

// ResultCode 业务结果
func (p Params) ResultCode() string {
	return strings.TrimSpace(p.Get(FieldResultCode))
}

// IsSuccess return_code 与 result_code 均为 SUCCESS
func (p Params) IsSuccess() bool {
	return p.ReturnCode() == codeSuccess && p.ResultCode() == codeSuccess
}

// ErrorMessage 返回网关给出的错误描述
func (p Params) ErrorMessage() string {
	for _, key := range []string{FieldErrCodeDes, FieldReturnMsg, FieldErrCode} {
		if msg := strings.TrimSpace(p.Get(key)); msg != "" && msg != "OK" {
			return msg
		}
	}
	return ""
}

// Keys 返回排序后的字段名
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
