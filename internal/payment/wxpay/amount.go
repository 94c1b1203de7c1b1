package wxpay

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// YuanToFen 将元金额字符串转换为分
func YuanToFen(amount string) (int64, error) {
	amountDec, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return 0, fmt.Errorf("%w: invalid amount %q", ErrParamsInvalid, amount)
	}
	if amountDec.LessThanOrEqual(decimal.Zero) {
		return 0, fmt.Errorf("%w: amount must be positive", ErrParamsInvalid)
	}
	fen := amountDec.Mul(hundred)
	if !fen.Equal(fen.Truncate(0)) {
		return 0, fmt.Errorf("%w: amount %q has more than two decimal places", ErrParamsInvalid, amount)
	}
	return fen.IntPart(), nil
}

// FenToYuan 将分转换为两位小数的元字符串
func FenToYuan(fen int64) string {
	return decimal.NewFromInt(fen).Div(hundred).StringFixed(2)
}
