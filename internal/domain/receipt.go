package domain

import "time"

// SaleReceipt 一次成交的结算凭证（与成交在同一事务内写入）
type SaleReceipt struct {
	ID             string    `json:"id"`
	Seq            uint64    `json:"seq"`
	AssetID        AssetID   `json:"asset_id"`
	Buyer          Account   `json:"buyer"`
	Seller         Account   `json:"seller"`
	Creator        Account   `json:"creator"`
	Operator       Account   `json:"operator"`
	Price          uint64    `json:"price"`   // 实际结算金额（挂单价）
	Offered        uint64    `json:"offered"` // 买家报价，超出部分不收取
	Commission     uint64    `json:"commission"`
	Royalty        uint64    `json:"royalty"`
	SellerProceeds uint64    `json:"seller_proceeds"`
	SettledAt      time.Time `json:"settled_at"`
}
