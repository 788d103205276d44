// Package wallet 从助记词派生开发账户：创世注资与 CLI 的 #n 账户别名都用它。
// 账本不验证签名，这里只需要地址。
package wallet

import (
	"fmt"
	"strconv"
	"strings"

	hdwallet "github.com/miguelmota/go-ethereum-hdwallet"

	"github.com/openfire/firemarket/internal/domain"
)

// DevMnemonic 本地开发链通用的测试助记词
const DevMnemonic = "test test test test test test test test test test test junk"

// PathTemplate BIP-44 以太坊路径，%d 为账户序号
const PathTemplate = "m/44'/60'/0'/0/%d"

// DevAccount 派生出的账户
type DevAccount struct {
	Index   int            `json:"index"`
	Path    string         `json:"path"`
	Address domain.Account `json:"address"`
}

// Deriver 持有已解析的助记词
type Deriver struct {
	w *hdwallet.Wallet
}

// NewDeriver 解析助记词
func NewDeriver(mnemonic string) (*Deriver, error) {
	mnemonic = strings.TrimSpace(mnemonic)
	if mnemonic == "" {
		return nil, fmt.Errorf("mnemonic is required")
	}
	w, err := hdwallet.NewFromMnemonic(mnemonic)
	if err != nil {
		return nil, fmt.Errorf("invalid mnemonic: %w", err)
	}
	return &Deriver{w: w}, nil
}

// Account 派生第 index 个账户
func (d *Deriver) Account(index int) (DevAccount, error) {
	if index < 0 {
		return DevAccount{}, fmt.Errorf("invalid account index %d", index)
	}
	p := fmt.Sprintf(PathTemplate, index)
	path, err := hdwallet.ParseDerivationPath(p)
	if err != nil {
		return DevAccount{}, fmt.Errorf("invalid derivation path %s: %w", p, err)
	}
	acct, err := d.w.Derive(path, false)
	if err != nil {
		return DevAccount{}, fmt.Errorf("derive %s: %w", p, err)
	}
	return DevAccount{Index: index, Path: p, Address: acct.Address}, nil
}

// Accounts 派生前 count 个账户
func (d *Deriver) Accounts(count int) ([]DevAccount, error) {
	out := make([]DevAccount, 0, count)
	for i := 0; i < count; i++ {
		a, err := d.Account(i)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// DeriveAccounts NewDeriver + Accounts
func DeriveAccounts(mnemonic string, count int) ([]DevAccount, error) {
	d, err := NewDeriver(mnemonic)
	if err != nil {
		return nil, err
	}
	return d.Accounts(count)
}

// Resolve 解析账户参数：0x 地址，或 #n 表示第 n 个派生账户
func Resolve(s, mnemonic string) (domain.Account, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#") {
		return domain.ParseAccount(s)
	}
	index, err := strconv.Atoi(s[1:])
	if err != nil {
		return domain.ZeroAccount, fmt.Errorf("invalid account alias %q", s)
	}
	d, err := NewDeriver(mnemonic)
	if err != nil {
		return domain.ZeroAccount, err
	}
	a, err := d.Account(index)
	if err != nil {
		return domain.ZeroAccount, err
	}
	return a.Address, nil
}
