// Package policy 市场共享的数值与授权规则：版税/价格校验、佣金与版税拆分。
// 所有计算都是无符号整数运算，溢出直接报错，不会回绕。
package policy

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/math"

	"github.com/openfire/firemarket/internal/domain"
)

const (
	// MaxRoyaltyRate 版税上限（百分比）
	MaxRoyaltyRate = 10
	// MinPriceExclusive 挂单价必须严格大于该值（最小货币单位）
	MinPriceExclusive = 100
	// BasisPointsDenominator 1 = 0.01%
	BasisPointsDenominator = 10000
	// DefaultCommissionBps 默认佣金 2.5%
	DefaultCommissionBps = 250

	percentDenominator = 100
)

// ValidateRoyalty 版税必须在 [0,10]
func ValidateRoyalty(rate uint64) error {
	if rate > MaxRoyaltyRate {
		return fmt.Errorf("royalty %d: %w", rate, domain.ErrInvalidRoyalty)
	}
	return nil
}

// ValidatePrice 挂单价必须 > 100
func ValidatePrice(price uint64) error {
	if price <= MinPriceExclusive {
		return fmt.Errorf("price %d: %w", price, domain.ErrPriceTooLow)
	}
	return nil
}

// ValidateOffer 报价不能低于挂单价（结算只收挂单价）
func ValidateOffer(offered, sellingPrice uint64) error {
	if offered < sellingPrice {
		return fmt.Errorf("offered %d < price %d: %w", offered, sellingPrice, domain.ErrInsufficientOffer)
	}
	return nil
}

// FeePolicy 佣金规则
type FeePolicy struct {
	CommissionBps uint64
}

// DefaultFeePolicy 2.5% 佣金
func DefaultFeePolicy() FeePolicy {
	return FeePolicy{CommissionBps: DefaultCommissionBps}
}

// Validate 佣金不能超过 100%
func (p FeePolicy) Validate() error {
	if p.CommissionBps > BasisPointsDenominator {
		return fmt.Errorf("commission %d bps exceeds %d: %w", p.CommissionBps, BasisPointsDenominator, domain.ErrInvalidAmount)
	}
	return nil
}

// Split 一笔成交的资金拆分。Commission + Royalty + SellerProceeds == Price。
type Split struct {
	Price          uint64 `json:"price"`
	Commission     uint64 `json:"commission"`
	Royalty        uint64 `json:"royalty"`
	SellerProceeds uint64 `json:"seller_proceeds"`
}

// Commission floor(price * bps / 10000)
func (p FeePolicy) Commission(price uint64) (uint64, error) {
	return mulDiv(price, p.CommissionBps, BasisPointsDenominator)
}

// Split 按挂单价计算拆分：
//
//	commission = floor(price * bps / 10000)
//	royalty    = floor((price - commission) * rate / 100)，仅当 creator != seller
//	proceeds   = price - commission - royalty
//
// 首次销售（卖家就是创作者）版税并入卖家所得，不重复支付。
func (p FeePolicy) Split(price, royaltyRate uint64, creator, seller domain.Account) (Split, error) {
	if err := p.Validate(); err != nil {
		return Split{}, err
	}
	if err := ValidateRoyalty(royaltyRate); err != nil {
		return Split{}, err
	}
	commission, err := p.Commission(price)
	if err != nil {
		return Split{}, err
	}
	afterCommission, underflow := math.SafeSub(price, commission)
	if underflow {
		return Split{}, fmt.Errorf("commission %d > price %d: %w", commission, price, domain.ErrOverflow)
	}

	var royalty uint64
	if creator != seller {
		royalty, err = mulDiv(afterCommission, royaltyRate, percentDenominator)
		if err != nil {
			return Split{}, err
		}
	}

	return Split{
		Price:          price,
		Commission:     commission,
		Royalty:        royalty,
		SellerProceeds: afterCommission - royalty,
	}, nil
}

// mulDiv floor(a * b / d)，乘法溢出时报错
func mulDiv(a, b, d uint64) (uint64, error) {
	prod, overflow := math.SafeMul(a, b)
	if overflow {
		return 0, fmt.Errorf("%d * %d: %w", a, b, domain.ErrOverflow)
	}
	return prod / d, nil
}

// Add 溢出检查的加法
func Add(a, b uint64) (uint64, error) {
	sum, overflow := math.SafeAdd(a, b)
	if overflow {
		return 0, fmt.Errorf("%d + %d: %w", a, b, domain.ErrOverflow)
	}
	return sum, nil
}
