package domain

// Listing 市场挂单，按资产编号索引。
// 记录永不删除，只在 OnSale 上切换，便于按编号查询历史。
type Listing struct {
	AssetID      AssetID `json:"asset_id"`
	TokenURI     string  `json:"token_uri"` // 挂单时从资产复制
	Seller       Account `json:"seller"`
	SellingPrice uint64  `json:"selling_price"`
	OnSale       bool    `json:"on_sale"`
}

// IsActive 是否在售
func (l *Listing) IsActive() bool {
	return l != nil && l.OnSale
}

// Deactivate 下架：价格清零
func (l *Listing) Deactivate() {
	l.OnSale = false
	l.SellingPrice = 0
}
