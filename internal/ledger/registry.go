package ledger

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/openfire/firemarket/internal/domain"
	"github.com/openfire/firemarket/internal/events"
	"github.com/openfire/firemarket/internal/policy"
	"github.com/openfire/firemarket/internal/store"
)

// AssetRegistry 非同质化资产登记：铸造、所有权、operator 授权。
type AssetRegistry struct {
	exec *executor
}

// Mint 为 creator 铸造新资产，返回新编号
func (r *AssetRegistry) Mint(creator domain.Account, tokenURI, metadataURI string, royaltyRate uint64) (domain.AssetID, error) {
	var id domain.AssetID
	fields := logrus.Fields{"creator": creator.Hex(), "royalty": royaltyRate}
	err := r.exec.update("mint", fields, func(t *txn) (err error) {
		id, err = r.mint(t, creator, tokenURI, metadataURI, royaltyRate)
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// SetApprovalForAll 授权/撤销 operator 转移 owner 的全部资产
func (r *AssetRegistry) SetApprovalForAll(owner, operator domain.Account, approved bool) error {
	fields := logrus.Fields{"owner": owner.Hex(), "operator": operator.Hex(), "approved": approved}
	return r.exec.update("setApprovalForAll", fields, func(t *txn) error {
		return r.setApprovalForAll(t, owner, operator, approved)
	})
}

// Transfer 由 initiator 发起的资产转移。initiator 必须是持有者或其授权 operator。
func (r *AssetRegistry) Transfer(initiator domain.Account, id domain.AssetID, to domain.Account) error {
	fields := logrus.Fields{"initiator": initiator.Hex(), "asset": id, "to": to.Hex()}
	return r.exec.update("transferAsset", fields, func(t *txn) error {
		return r.transfer(t, initiator, id, to)
	})
}

// Asset 完整资产记录
func (r *AssetRegistry) Asset(id domain.AssetID) (*domain.Asset, error) {
	var a *domain.Asset
	err := r.exec.view(func(tx *store.Tx) (err error) {
		a, err = lookupAsset(tx, id)
		return err
	})
	return a, err
}

// GetDetails 创作者、描述信息与版税
func (r *AssetRegistry) GetDetails(id domain.AssetID) (domain.AssetDetails, error) {
	a, err := r.Asset(id)
	if err != nil {
		return domain.AssetDetails{}, err
	}
	return a.Details(), nil
}

func (r *AssetRegistry) OwnerOf(id domain.AssetID) (domain.Account, error) {
	a, err := r.Asset(id)
	if err != nil {
		return domain.ZeroAccount, err
	}
	return a.Owner, nil
}

func (r *AssetRegistry) RoyaltyOf(id domain.AssetID) (uint64, error) {
	a, err := r.Asset(id)
	if err != nil {
		return 0, err
	}
	return a.RoyaltyRate, nil
}

func (r *AssetRegistry) TokenURI(id domain.AssetID) (string, error) {
	a, err := r.Asset(id)
	if err != nil {
		return "", err
	}
	return a.TokenURI, nil
}

// BalanceOf owner 持有的资产数量
func (r *AssetRegistry) BalanceOf(owner domain.Account) (uint64, error) {
	var n uint64
	err := r.exec.view(func(tx *store.Tx) (err error) {
		n, err = tx.Holdings(owner)
		return err
	})
	return n, err
}

func (r *AssetRegistry) IsApprovedForAll(owner, operator domain.Account) (bool, error) {
	var ok bool
	err := r.exec.view(func(tx *store.Tx) (err error) {
		ok, err = tx.ApprovedForAll(owner, operator)
		return err
	})
	return ok, err
}

// NextID 下一个将被分配的编号
func (r *AssetRegistry) NextID() (domain.AssetID, error) {
	var id domain.AssetID
	err := r.exec.view(func(tx *store.Tx) (err error) {
		id, err = tx.NextAssetID()
		return err
	})
	return id, err
}

// Assets 按编号顺序返回资产；owner 非 nil 时只返回其持有的
func (r *AssetRegistry) Assets(owner *domain.Account) ([]domain.Asset, error) {
	var out []domain.Asset
	err := r.exec.view(func(tx *store.Tx) error {
		return tx.Assets(func(a *domain.Asset) error {
			if owner == nil || a.Owner == *owner {
				out = append(out, *a)
			}
			return nil
		})
	})
	return out, err
}

// ---------- 事务内实现 ----------

func lookupAsset(tx *store.Tx, id domain.AssetID) (*domain.Asset, error) {
	a, err := tx.Asset(id)
	if err != nil {
		return nil, notFound(err, fmt.Errorf("asset %d: %w", id, domain.ErrUnknownAsset))
	}
	return a, nil
}

func (r *AssetRegistry) mint(t *txn, creator domain.Account, tokenURI, metadataURI string, royaltyRate uint64) (domain.AssetID, error) {
	if err := policy.ValidateRoyalty(royaltyRate); err != nil {
		return 0, err
	}
	if domain.IsZeroAccount(creator) {
		return 0, domain.ErrInvalidOwner
	}

	id, err := t.NextAssetID()
	if err != nil {
		return 0, err
	}
	asset := &domain.Asset{
		ID:          id,
		Creator:     creator,
		Owner:       creator,
		TokenURI:    tokenURI,
		MetadataURI: metadataURI,
		RoyaltyRate: royaltyRate,
	}
	if err := t.PutAsset(asset); err != nil {
		return 0, err
	}
	if err := t.SetNextAssetID(id + 1); err != nil {
		return 0, err
	}
	if err := adjustHoldings(t, creator, 1); err != nil {
		return 0, err
	}
	t.emit(events.AssetMintedEvent{Asset: *asset})
	return id, nil
}

func (r *AssetRegistry) setApprovalForAll(t *txn, owner, operator domain.Account, approved bool) error {
	if domain.IsZeroAccount(operator) || operator == owner {
		return domain.ErrInvalidOperator
	}
	if err := t.SetApprovedForAll(owner, operator, approved); err != nil {
		return err
	}
	t.emit(events.ApprovalForAllEvent{Owner: owner, Operator: operator, Approved: approved})
	return nil
}

func (r *AssetRegistry) transfer(t *txn, initiator domain.Account, id domain.AssetID, to domain.Account) error {
	asset, err := lookupAsset(t.Tx, id)
	if err != nil {
		return err
	}
	if domain.IsZeroAccount(to) {
		return domain.ErrInvalidOwner
	}
	from := asset.Owner
	if initiator != from {
		approved, err := t.ApprovedForAll(from, initiator)
		if err != nil {
			return err
		}
		if !approved {
			return fmt.Errorf("asset %d: %w", id, domain.ErrNotOwner)
		}
	}

	asset.Owner = to
	if err := t.PutAsset(asset); err != nil {
		return err
	}
	if from != to {
		if err := adjustHoldings(t, from, -1); err != nil {
			return err
		}
		if err := adjustHoldings(t, to, 1); err != nil {
			return err
		}
	}
	t.emit(events.AssetTransferredEvent{AssetID: id, From: from, To: to, Initiator: initiator})

	// 挂单期间卖家必须是持有者：资产被直接转走时同一事务内撤下旧挂单
	if from != to {
		l, err := activeListing(t.Tx, id)
		if err != nil {
			return err
		}
		if l != nil {
			l.Deactivate()
			if err := t.PutListing(l); err != nil {
				return err
			}
			t.emit(events.ListingCancelledEvent{AssetID: id, Seller: l.Seller})
		}
	}
	return nil
}

func adjustHoldings(t *txn, owner domain.Account, delta int) error {
	n, err := t.Holdings(owner)
	if err != nil {
		return err
	}
	if delta < 0 {
		if n == 0 {
			return fmt.Errorf("holdings of %s: %w", owner.Hex(), domain.ErrOverflow)
		}
		return t.SetHoldings(owner, n-1)
	}
	next, err := policy.Add(n, 1)
	if err != nil {
		return err
	}
	return t.SetHoldings(owner, next)
}
