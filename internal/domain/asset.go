package domain

// AssetID 资产编号，从 1 开始顺序分配，永不复用。
type AssetID uint64

// Asset 非同质化资产
type Asset struct {
	ID          AssetID `json:"id"`
	Creator     Account `json:"creator"`      // 铸造者（不可变）
	Owner       Account `json:"owner"`        // 当前持有者，只能通过 registry transfer 修改
	TokenURI    string  `json:"token_uri"`    // 内容定位符（不可变）
	MetadataURI string  `json:"metadata_uri"` // 描述信息定位符（不可变）
	RoyaltyRate uint64  `json:"royalty_rate"` // 版税百分比 [0,10]（不可变）
}

// AssetDetails getDetails 的返回值
type AssetDetails struct {
	Creator     Account `json:"creator"`
	MetadataURI string  `json:"metadata_uri"`
	RoyaltyRate uint64  `json:"royalty_rate"`
}

// Details 返回资产的创作者信息
func (a *Asset) Details() AssetDetails {
	return AssetDetails{
		Creator:     a.Creator,
		MetadataURI: a.MetadataURI,
		RoyaltyRate: a.RoyaltyRate,
	}
}

// IsResale 卖家不是创作者时为二次销售（需要支付版税）
func (a *Asset) IsResale(seller Account) bool {
	return a.Creator != seller
}
