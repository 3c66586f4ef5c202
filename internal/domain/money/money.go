// Package money は最小通貨単位(int64)と表示用の10進数の変換をまとめる。
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// 小数桁を持たない通貨
var zeroDecimalCurrencies = map[string]bool{
	"JPY": true,
	"KRW": true,
	"VND": true,
}

// Exponent は通貨の小数桁数を返す。
func Exponent(currency string) int32 {
	if zeroDecimalCurrencies[strings.ToUpper(currency)] {
		return 0
	}
	return 2
}

// ToDecimal は最小単位の整数を 10進数に変換する（2000 USD -> 20.00）。
func ToDecimal(minor int64, currency string) decimal.Decimal {
	return decimal.New(minor, -Exponent(currency))
}

// Format はゲートウェイやAPIに渡す固定小数表記を返す。
func Format(minor int64, currency string) string {
	return ToDecimal(minor, currency).StringFixed(Exponent(currency))
}

// FromDecimal は 10進数表記から最小単位に戻す。端数は切り捨てない（丸める）。
func FromDecimal(s string, currency string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return d.Shift(Exponent(currency)).Round(0).IntPart(), nil
}
