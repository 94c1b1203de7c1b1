package wxpay

import "math/rand/v2"

// DefaultNonceLength 随机串默认长度
const DefaultNonceLength = 32

const nonceAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// NonceStr 生成防重放随机串，非密码学用途
func NonceStr(length int) string {
	if length <= 0 {
		length = DefaultNonceLength
	}
	buf := make([]byte, length)
	for i := range buf {
		buf[i] = nonceAlphabet[rand.IntN(len(nonceAlphabet))]
	}
	return string(buf)
}
