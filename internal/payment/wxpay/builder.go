package wxpay

import (
	"fmt"
	"strconv"
)

// Builder 组装请求参数，始终在副本上操作，不修改调用方传入的参数集
type Builder struct {
	params Params
}

// NewBuilder 以 base 的副本为起点创建 Builder
func NewBuilder(base Params) *Builder {
	return &Builder{params: base.Clone()}
}

// Set 写入字段，数字按十进制字符串化
func (b *Builder) Set(key string, value interface{}) *Builder {
	b.params[key] = FormatValue(value)
	return b
}

// SetIfNotEmpty 仅在值非空时写入
func (b *Builder) SetIfNotEmpty(key, value string) *Builder {
	if value != "" {
		b.params[key] = value
	}
	return b
}

// Merge 合并参数集，后者覆盖前者
func (b *Builder) Merge(extra Params) *Builder {
	for k, v := range extra {
		b.params[k] = v
	}
	return b
}

// Delete 移除字段
func (b *Builder) Delete(key string) *Builder {
	delete(b.params, key)
	return b
}

// Build 返回新的参数集
func (b *Builder) Build() Params {
	return b.params.Clone()
}

// FormatValue 将标量值转换为报文文本
func FormatValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int8:
		return strconv.FormatInt(int64(v), 10)
	case int16:
		return strconv.FormatInt(int64(v), 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint8:
		return strconv.FormatUint(uint64(v), 10)
	case uint16:
		return strconv.FormatUint(uint64(v), 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
