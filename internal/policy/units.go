package policy

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/openfire/firemarket/internal/domain"
)

var (
	hundred      = decimal.NewFromInt(100)
	maxBpsAmount = decimal.NewFromInt(BasisPointsDenominator)
)

// ParseCommissionPercent 把百分比字符串（如 "2.5"）精确换算成基点（250）。
// 不接受超过 100% 或精度细于 0.01% 的值。
func ParseCommissionPercent(s string) (uint64, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" {
		return 0, fmt.Errorf("empty commission percent: %w", domain.ErrInvalidAmount)
	}
	pct, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse commission percent %q: %w", s, err)
	}
	bps := pct.Mul(hundred)
	if bps.IsNegative() || bps.GreaterThan(maxBpsAmount) {
		return 0, fmt.Errorf("commission %s%% out of range: %w", s, domain.ErrInvalidAmount)
	}
	if !bps.IsInteger() {
		return 0, fmt.Errorf("commission %s%% finer than one basis point: %w", s, domain.ErrInvalidAmount)
	}
	return uint64(bps.IntPart()), nil
}

// FormatPercent 基点 -> 百分比字符串（250 -> "2.5"）
func FormatPercent(bps uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(bps), -2).String()
}

// FormatAmount 最小单位 -> 带小数的展示值（decimals=18 时 1e18 -> "1"）
func FormatAmount(amount uint64, decimals int32) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -decimals).String()
}

// ParseAmount 展示值 -> 最小单位，超出 uint64 或有多余小数位时报错
func ParseAmount(s string, decimals int32) (uint64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("negative amount %q: %w", s, domain.ErrInvalidAmount)
	}
	units := d.Shift(decimals)
	if !units.IsInteger() {
		return 0, fmt.Errorf("amount %q has more than %d decimals: %w", s, decimals, domain.ErrInvalidAmount)
	}
	bi := units.BigInt()
	if !bi.IsUint64() {
		return 0, fmt.Errorf("amount %q: %w", s, domain.ErrOverflow)
	}
	return bi.Uint64(), nil
}
