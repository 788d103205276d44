package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/openfire/firemarket/internal/domain"
	"github.com/openfire/firemarket/internal/events"
	"github.com/openfire/firemarket/internal/metrics"
	"github.com/openfire/firemarket/internal/policy"
	"github.com/openfire/firemarket/internal/store"
)

// Marketplace 挂单、撤单与成交结算。
// 市场自身有一个账户身份：卖家需授权它为 operator，买家需给它代币额度。
type Marketplace struct {
	exec     *executor
	registry *AssetRegistry
	payment  *PaymentLedger

	account  domain.Account // 市场身份
	operator domain.Account // 佣金接收者
	fees     policy.FeePolicy

	now   func() time.Time
	newID func() string
}

// Quote 购买前的资金拆分预览
type Quote struct {
	AssetID domain.AssetID `json:"asset_id"`
	Seller  domain.Account `json:"seller"`
	Creator domain.Account `json:"creator"`
	policy.Split
}

// Account 市场身份（approve / setApprovalForAll 的目标）
func (m *Marketplace) Account() domain.Account { return m.account }

// Operator 佣金接收者
func (m *Marketplace) Operator() domain.Account { return m.operator }

func (m *Marketplace) FeePolicy() policy.FeePolicy { return m.fees }

// List seller 以 price 挂单出售资产
func (m *Marketplace) List(seller domain.Account, id domain.AssetID, price uint64) error {
	fields := logrus.Fields{"seller": seller.Hex(), "asset": id, "price": price}
	return m.exec.update("list", fields, func(t *txn) error {
		return m.list(t, seller, id, price)
	})
}

// Cancel 撤销挂单
func (m *Marketplace) Cancel(caller domain.Account, id domain.AssetID) error {
	fields := logrus.Fields{"caller": caller.Hex(), "asset": id}
	return m.exec.update("cancel", fields, func(t *txn) error {
		return m.cancel(t, caller, id)
	})
}

// Purchase buyer 出价购买。只收取挂单价，成功后返回结算凭证。
func (m *Marketplace) Purchase(buyer domain.Account, id domain.AssetID, offered uint64) (*domain.SaleReceipt, error) {
	var receipt *domain.SaleReceipt
	fields := logrus.Fields{"buyer": buyer.Hex(), "asset": id, "offered": offered}
	err := m.exec.update("purchase", fields, func(t *txn) (err error) {
		receipt, err = m.purchase(t, buyer, id, offered)
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.ObserveSale(receipt.Price, receipt.Commission, receipt.Royalty)
	log.WithFields(logrus.Fields{
		"asset":      receipt.AssetID,
		"buyer":      domain.ShortAccount(receipt.Buyer),
		"seller":     domain.ShortAccount(receipt.Seller),
		"price":      receipt.Price,
		"commission": receipt.Commission,
		"royalty":    receipt.Royalty,
	}).Info("成交")
	return receipt, nil
}

// GetListing 查询挂单；从未挂单过返回 ErrUnknownListing
func (m *Marketplace) GetListing(id domain.AssetID) (*domain.Listing, error) {
	var l *domain.Listing
	err := m.exec.view(func(tx *store.Tx) (err error) {
		l, err = lookupListing(tx, id)
		return err
	})
	return l, err
}

// Listings 按资产编号顺序返回挂单记录
func (m *Marketplace) Listings(activeOnly bool) ([]domain.Listing, error) {
	var out []domain.Listing
	err := m.exec.view(func(tx *store.Tx) error {
		return tx.Listings(func(l *domain.Listing) error {
			if !activeOnly || l.IsActive() {
				out = append(out, *l)
			}
			return nil
		})
	})
	return out, err
}

// Receipts 按成交顺序返回凭证；assetID 非 nil 时只返回该资产的
func (m *Marketplace) Receipts(assetID *domain.AssetID) ([]domain.SaleReceipt, error) {
	var out []domain.SaleReceipt
	err := m.exec.view(func(tx *store.Tx) error {
		return tx.Receipts(func(r *domain.SaleReceipt) error {
			if assetID == nil || r.AssetID == *assetID {
				out = append(out, *r)
			}
			return nil
		})
	})
	return out, err
}

// Quote 按当前挂单计算拆分，不修改任何状态
func (m *Marketplace) Quote(id domain.AssetID) (*Quote, error) {
	var q *Quote
	err := m.exec.view(func(tx *store.Tx) error {
		l, err := lookupListing(tx, id)
		if err != nil {
			return err
		}
		if !l.IsActive() {
			return domain.ErrNotOnSale
		}
		asset, err := lookupAsset(tx, id)
		if err != nil {
			return err
		}
		split, err := m.fees.Split(l.SellingPrice, asset.RoyaltyRate, asset.Creator, l.Seller)
		if err != nil {
			return err
		}
		q = &Quote{AssetID: id, Seller: l.Seller, Creator: asset.Creator, Split: split}
		return nil
	})
	return q, err
}

// ---------- 事务内实现 ----------

func lookupListing(tx *store.Tx, id domain.AssetID) (*domain.Listing, error) {
	l, err := tx.Listing(id)
	if err != nil {
		return nil, notFound(err, fmt.Errorf("listing %d: %w", id, domain.ErrUnknownListing))
	}
	return l, nil
}

// activeListing 不存在的挂单视为未上架
func activeListing(tx *store.Tx, id domain.AssetID) (*domain.Listing, error) {
	l, err := tx.Listing(id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !l.IsActive() {
		return nil, nil
	}
	return l, nil
}

func (m *Marketplace) list(t *txn, seller domain.Account, id domain.AssetID, price uint64) error {
	asset, err := lookupAsset(t.Tx, id)
	if err != nil {
		return err
	}
	if asset.Owner != seller {
		return fmt.Errorf("asset %d: %w", id, domain.ErrNotOwner)
	}
	approved, err := t.ApprovedForAll(seller, m.account)
	if err != nil {
		return err
	}
	if !approved {
		return domain.ErrNotApproved
	}
	current, err := activeListing(t.Tx, id)
	if err != nil {
		return err
	}
	if current != nil {
		return fmt.Errorf("asset %d: %w", id, domain.ErrAlreadyListed)
	}
	if err := policy.ValidatePrice(price); err != nil {
		return err
	}

	l := &domain.Listing{
		AssetID:      id,
		TokenURI:     asset.TokenURI,
		Seller:       seller,
		SellingPrice: price,
		OnSale:       true,
	}
	if err := t.PutListing(l); err != nil {
		return err
	}
	t.emit(events.ListedEvent{Listing: *l})
	return nil
}

func (m *Marketplace) cancel(t *txn, caller domain.Account, id domain.AssetID) error {
	l, err := activeListing(t.Tx, id)
	if err != nil {
		return err
	}
	if l == nil {
		// 没有有效挂单：资产持有者得到 NotOnSale，其他人得到 NotOwner
		asset, err := lookupAsset(t.Tx, id)
		if err != nil {
			return err
		}
		if asset.Owner != caller {
			return fmt.Errorf("asset %d: %w", id, domain.ErrNotOwner)
		}
		return fmt.Errorf("asset %d: %w", id, domain.ErrNotOnSale)
	}
	if l.Seller != caller {
		return fmt.Errorf("asset %d: %w", id, domain.ErrNotOwner)
	}

	l.Deactivate()
	if err := t.PutListing(l); err != nil {
		return err
	}
	t.emit(events.ListingCancelledEvent{AssetID: id, Seller: caller})
	return nil
}

// purchase 先完成全部校验，再把挂单置为下架，最后才划转资金和资产。
// 任何一步失败，整个事务回滚。
func (m *Marketplace) purchase(t *txn, buyer domain.Account, id domain.AssetID, offered uint64) (*domain.SaleReceipt, error) {
	l, err := activeListing(t.Tx, id)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, fmt.Errorf("asset %d: %w", id, domain.ErrNotOnSale)
	}
	if err := policy.ValidateOffer(offered, l.SellingPrice); err != nil {
		return nil, err
	}
	asset, err := lookupAsset(t.Tx, id)
	if err != nil {
		return nil, err
	}
	seller, price := l.Seller, l.SellingPrice
	if asset.Owner != seller {
		return nil, fmt.Errorf("seller %s no longer owns asset %d: %w", seller.Hex(), id, domain.ErrNotOwner)
	}
	approved, err := t.ApprovedForAll(seller, m.account)
	if err != nil {
		return nil, err
	}
	if !approved {
		return nil, domain.ErrNotApproved
	}
	split, err := m.fees.Split(price, asset.RoyaltyRate, asset.Creator, seller)
	if err != nil {
		return nil, err
	}

	l.Deactivate()
	if err := t.PutListing(l); err != nil {
		return nil, err
	}

	credits := []credit{
		{to: m.operator, amount: split.Commission},
		{to: asset.Creator, amount: split.Royalty},
		{to: seller, amount: split.SellerProceeds},
	}
	if err := m.payment.transferFromSplit(t, m.account, buyer, credits); err != nil {
		return nil, err
	}
	if err := m.registry.transfer(t, m.account, id, buyer); err != nil {
		return nil, err
	}

	receipt := &domain.SaleReceipt{
		ID:             m.newID(),
		AssetID:        id,
		Buyer:          buyer,
		Seller:         seller,
		Creator:        asset.Creator,
		Operator:       m.operator,
		Price:          price,
		Offered:        offered,
		Commission:     split.Commission,
		Royalty:        split.Royalty,
		SellerProceeds: split.SellerProceeds,
		SettledAt:      m.now().UTC(),
	}
	if err := t.AppendReceipt(receipt); err != nil {
		return nil, err
	}
	t.emit(events.SoldEvent{Receipt: *receipt})
	return receipt, nil
}
