package events

import (
	"time"

	"github.com/openfire/firemarket/internal/domain"
)

// Type 事件类型
type Type string

const (
	TypeGenesis          Type = "genesis"
	TypeAssetMinted      Type = "asset_minted"
	TypeAssetTransferred Type = "asset_transferred"
	TypeApprovalForAll   Type = "approval_for_all"
	TypePaymentTransfer  Type = "payment_transfer"
	TypePaymentApproval  Type = "payment_approval"
	TypeListed           Type = "listed"
	TypeListingCancelled Type = "listing_cancelled"
	TypeSold             Type = "sold"
)

// Event 已提交的账本变更。只在事务提交后发布。
type Event interface {
	EventType() Type
}

// GenesisEvent 创世完成
type GenesisEvent struct {
	Genesis domain.Genesis `json:"genesis"`
}

// AssetMintedEvent 铸造
type AssetMintedEvent struct {
	Asset domain.Asset `json:"asset"`
}

// AssetTransferredEvent 资产所有权变更
type AssetTransferredEvent struct {
	AssetID   domain.AssetID `json:"asset_id"`
	From      domain.Account `json:"from"`
	To        domain.Account `json:"to"`
	Initiator domain.Account `json:"initiator"`
}

// ApprovalForAllEvent operator 授权变更
type ApprovalForAllEvent struct {
	Owner    domain.Account `json:"owner"`
	Operator domain.Account `json:"operator"`
	Approved bool           `json:"approved"`
}

// PaymentTransferEvent 代币转账（结算中的每一笔入账都会单独发出）
type PaymentTransferEvent struct {
	From   domain.Account `json:"from"`
	To     domain.Account `json:"to"`
	Amount uint64         `json:"amount"`
}

// PaymentApprovalEvent 额度设置
type PaymentApprovalEvent struct {
	Owner   domain.Account `json:"owner"`
	Spender domain.Account `json:"spender"`
	Amount  uint64         `json:"amount"`
}

// ListedEvent 挂单
type ListedEvent struct {
	Listing domain.Listing `json:"listing"`
}

// ListingCancelledEvent 撤单
type ListingCancelledEvent struct {
	AssetID domain.AssetID `json:"asset_id"`
	Seller  domain.Account `json:"seller"`
}

// SoldEvent 成交
type SoldEvent struct {
	Receipt domain.SaleReceipt `json:"receipt"`
}

func (GenesisEvent) EventType() Type          { return TypeGenesis }
func (AssetMintedEvent) EventType() Type      { return TypeAssetMinted }
func (AssetTransferredEvent) EventType() Type { return TypeAssetTransferred }
func (ApprovalForAllEvent) EventType() Type   { return TypeApprovalForAll }
func (PaymentTransferEvent) EventType() Type  { return TypePaymentTransfer }
func (PaymentApprovalEvent) EventType() Type  { return TypePaymentApproval }
func (ListedEvent) EventType() Type           { return TypeListed }
func (ListingCancelledEvent) EventType() Type { return TypeListingCancelled }
func (SoldEvent) EventType() Type             { return TypeSold }

// Envelope 总线上传递的事件（带全局序号）
type Envelope struct {
	Seq       uint64    `json:"seq"`
	Type      Type      `json:"type"`
	Op        string    `json:"op"` // 产生该事件的账本操作
	Timestamp time.Time `json:"timestamp"`
	Payload   Event     `json:"payload"`
}
