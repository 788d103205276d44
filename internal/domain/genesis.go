package domain

import "time"

// Genesis 创世参数，只写入一次。重启后以存储中的记录为准。
type Genesis struct {
	Supply        uint64    `json:"supply"`
	Holder        Account   `json:"holder"`      // 初始供应接收者（部署者）
	Marketplace   Account   `json:"marketplace"` // 市场账本自身的身份（operator approval / allowance spender）
	Operator      Account   `json:"operator"`    // 佣金接收者
	CommissionBps uint64    `json:"commission_bps"`
	TokenName     string    `json:"token_name"`
	TokenSymbol   string    `json:"token_symbol"`
	TokenDecimals uint8     `json:"token_decimals"`
	CreatedAt     time.Time `json:"created_at"`
}
