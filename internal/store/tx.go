package store

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openfire/firemarket/internal/domain"
)

const (
	keyGenesis     = "meta/genesis"
	keyNextAssetID = "meta/next_asset_id"
	keyTotalSupply = "meta/total_supply"
	keyNextReceipt = "meta/next_receipt"

	prefixAsset     = "asset/"
	prefixHolding   = "holding/"
	prefixApproval  = "approval/"
	prefixBalance   = "balance/"
	prefixAllowance = "allowance/"
	prefixListing   = "listing/"
	prefixReceipt   = "receipt/"
)

func seqKey(prefix string, n uint64) string {
	return fmt.Sprintf("%s%020d", prefix, n)
}

func accountHex(a domain.Account) string {
	return hex.EncodeToString(a.Bytes())
}

func accountKey(prefix string, a domain.Account) string {
	return prefix + accountHex(a)
}

func pairKey(prefix string, a, b domain.Account) string {
	return prefix + accountHex(a) + "/" + accountHex(b)
}

// Tx 单个事务内的类型化访问
type Tx struct {
	kv KVTx
}

// ---------- 通用编码 ----------

func (t *Tx) getJSON(key string, v any) error {
	b, err := t.kv.Get(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (t *Tx) putJSON(key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return t.kv.Set(key, b)
}

// getUint 不存在视为 0
func (t *Tx) getUint(key string) (uint64, error) {
	b, err := t.kv.Get(key)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode %s: %w", key, err)
	}
	return n, nil
}

// setUint 0 值直接删除键，保持遍历结果只含非零记录
func (t *Tx) setUint(key string, n uint64) error {
	if n == 0 {
		return t.kv.Delete(key)
	}
	return t.kv.Set(key, []byte(strconv.FormatUint(n, 10)))
}

// ---------- meta ----------

// Genesis 不存在时返回 ErrNotFound
func (t *Tx) Genesis() (*domain.Genesis, error) {
	var g domain.Genesis
	if err := t.getJSON(keyGenesis, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (t *Tx) PutGenesis(g *domain.Genesis) error {
	return t.putJSON(keyGenesis, g)
}

// NextAssetID 下一个待分配的资产编号（从 1 开始）
func (t *Tx) NextAssetID() (domain.AssetID, error) {
	n, err := t.getUint(keyNextAssetID)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		n = 1
	}
	return domain.AssetID(n), nil
}

func (t *Tx) SetNextAssetID(id domain.AssetID) error {
	return t.setUint(keyNextAssetID, uint64(id))
}

func (t *Tx) TotalSupply() (uint64, error) {
	return t.getUint(keyTotalSupply)
}

func (t *Tx) SetTotalSupply(n uint64) error {
	return t.setUint(keyTotalSupply, n)
}

// ---------- asset registry ----------

// Asset 不存在时返回 ErrNotFound
func (t *Tx) Asset(id domain.AssetID) (*domain.Asset, error) {
	var a domain.Asset
	if err := t.getJSON(seqKey(prefixAsset, uint64(id)), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (t *Tx) PutAsset(a *domain.Asset) error {
	return t.putJSON(seqKey(prefixAsset, uint64(a.ID)), a)
}

// Assets 按编号升序遍历所有资产
func (t *Tx) Assets(fn func(a *domain.Asset) error) error {
	return t.kv.Iterate(prefixAsset, func(key string, value []byte) error {
		var a domain.Asset
		if err := json.Unmarshal(value, &a); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		return fn(&a)
	})
}

// Holdings 账户持有的资产数量
func (t *Tx) Holdings(owner domain.Account) (uint64, error) {
	return t.getUint(accountKey(prefixHolding, owner))
}

func (t *Tx) SetHoldings(owner domain.Account, n uint64) error {
	return t.setUint(accountKey(prefixHolding, owner), n)
}

func (t *Tx) ApprovedForAll(owner, operator domain.Account) (bool, error) {
	_, err := t.kv.Get(pairKey(prefixApproval, owner, operator))
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// SetApprovedForAll 撤销授权即删除记录
func (t *Tx) SetApprovedForAll(owner, operator domain.Account, approved bool) error {
	key := pairKey(prefixApproval, owner, operator)
	if !approved {
		return t.kv.Delete(key)
	}
	return t.kv.Set(key, []byte("1"))
}

// ---------- payment ledger ----------

func (t *Tx) Balance(a domain.Account) (uint64, error) {
	return t.getUint(accountKey(prefixBalance, a))
}

func (t *Tx) SetBalance(a domain.Account, n uint64) error {
	return t.setUint(accountKey(prefixBalance, a), n)
}

// Balances 遍历所有非零余额
func (t *Tx) Balances(fn func(a domain.Account, balance uint64) error) error {
	return t.kv.Iterate(prefixBalance, func(key string, value []byte) error {
		raw, err := hex.DecodeString(key[len(prefixBalance):])
		if err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		n, err := strconv.ParseUint(string(value), 10, 64)
		if err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		return fn(common.BytesToAddress(raw), n)
	})
}

func (t *Tx) Allowance(owner, spender domain.Account) (uint64, error) {
	return t.getUint(pairKey(prefixAllowance, owner, spender))
}

func (t *Tx) SetAllowance(owner, spender domain.Account, n uint64) error {
	return t.setUint(pairKey(prefixAllowance, owner, spender), n)
}

// ---------- marketplace ----------

// Listing 从未挂单时返回 ErrNotFound
func (t *Tx) Listing(id domain.AssetID) (*domain.Listing, error) {
	var l domain.Listing
	if err := t.getJSON(seqKey(prefixListing, uint64(id)), &l); err != nil {
		return nil, err
	}
	return &l, nil
}

func (t *Tx) PutListing(l *domain.Listing) error {
	return t.putJSON(seqKey(prefixListing, uint64(l.AssetID)), l)
}

// Listings 按资产编号升序遍历
func (t *Tx) Listings(fn func(l *domain.Listing) error) error {
	return t.kv.Iterate(prefixListing, func(key string, value []byte) error {
		var l domain.Listing
		if err := json.Unmarshal(value, &l); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		return fn(&l)
	})
}

// AppendReceipt 分配顺序号并写入成交凭证
func (t *Tx) AppendReceipt(r *domain.SaleReceipt) error {
	seq, err := t.getUint(keyNextReceipt)
	if err != nil {
		return err
	}
	seq++
	r.Seq = seq
	if err := t.putJSON(seqKey(prefixReceipt, seq), r); err != nil {
		return err
	}
	return t.setUint(keyNextReceipt, seq)
}

// Receipts 按成交顺序遍历
func (t *Tx) Receipts(fn func(r *domain.SaleReceipt) error) error {
	return t.kv.Iterate(prefixReceipt, func(key string, value []byte) error {
		var r domain.SaleReceipt
		if err := json.Unmarshal(value, &r); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		return fn(&r)
	})
}
