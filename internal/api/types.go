package api

import (
	"github.com/openfire/firemarket/internal/domain"
	"github.com/openfire/firemarket/internal/ledger"
)

// ---------- 请求 ----------

type MintRequest struct {
	From        string `json:"from" binding:"required"`
	TokenURI    string `json:"token_uri"`
	MetadataURI string `json:"metadata_uri"`
	RoyaltyRate uint64 `json:"royalty_rate"`
}

type AssetTransferRequest struct {
	From string `json:"from" binding:"required"`
	To   string `json:"to" binding:"required"`
}

type ApprovalRequest struct {
	From     string `json:"from" binding:"required"`
	Operator string `json:"operator" binding:"required"`
	Approved bool   `json:"approved"`
}

type PaymentTransferRequest struct {
	From   string `json:"from" binding:"required"`
	To     string `json:"to" binding:"required"`
	Amount uint64 `json:"amount"`
}

type PaymentApproveRequest struct {
	From    string `json:"from" binding:"required"`
	Spender string `json:"spender" binding:"required"`
	Amount  uint64 `json:"amount"`
}

// PaymentTransferFromRequest from 为 spender，owner 为被扣款账户
type PaymentTransferFromRequest struct {
	From   string `json:"from" binding:"required"`
	Owner  string `json:"owner" binding:"required"`
	To     string `json:"to" binding:"required"`
	Amount uint64 `json:"amount"`
}

type ListRequest struct {
	From    string         `json:"from" binding:"required"`
	AssetID domain.AssetID `json:"asset_id"`
	Price   uint64         `json:"price"`
}

type CancelRequest struct {
	From string `json:"from" binding:"required"`
}

type PurchaseRequest struct {
	From    string `json:"from" binding:"required"`
	Offered uint64 `json:"offered"`
}

// ---------- 响应 ----------

// InfoResponse 市场与代币信息
type InfoResponse struct {
	Genesis           domain.Genesis `json:"genesis"`
	Marketplace       domain.Account `json:"marketplace"`
	Operator          domain.Account `json:"operator"`
	CommissionPercent string         `json:"commission_percent"`
	TotalSupply       uint64         `json:"total_supply"`
	NextAssetID       domain.AssetID `json:"next_asset_id"`
	Subscribers       int            `json:"subscribers"`
}

// AccountResponse 账户余额与持有资产
type AccountResponse struct {
	Address        domain.Account `json:"address"`
	Balance        uint64         `json:"balance"`
	BalanceDisplay string         `json:"balance_display"`
	Holdings       uint64         `json:"holdings"`
	Assets         []domain.Asset `json:"assets"`
}

type ApprovalResponse struct {
	Owner    domain.Account `json:"owner"`
	Operator domain.Account `json:"operator"`
	Approved bool           `json:"approved"`
}

type AllowanceResponse struct {
	Owner   domain.Account `json:"owner"`
	Spender domain.Account `json:"spender"`
	Amount  uint64         `json:"amount"`
}

type MintResponse struct {
	Asset domain.Asset `json:"asset"`
}

// AssetResponse 资产及其挂单（未挂单过时为空）
type AssetResponse struct {
	Asset   domain.Asset    `json:"asset"`
	Listing *domain.Listing `json:"listing,omitempty"`
}

type QuoteResponse = ledger.Quote
