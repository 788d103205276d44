// Package bootstrap 根据配置组装账本：打开存储、解析创世参数、执行创世并为开发账户注资。
package bootstrap

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/openfire/firemarket/internal/domain"
	"github.com/openfire/firemarket/internal/events"
	"github.com/openfire/firemarket/internal/ledger"
	"github.com/openfire/firemarket/internal/store"
	"github.com/openfire/firemarket/internal/store/backends"
	"github.com/openfire/firemarket/internal/wallet"
	"github.com/openfire/firemarket/pkg/config"
)

var log = logrus.WithField("component", "bootstrap")

// Runtime 组装完成的账本
type Runtime struct {
	Store       *store.Store
	Engine      *ledger.Engine
	Bus         *events.Bus
	DevAccounts []wallet.DevAccount
}

// Open 打开存储并创建引擎。首次启动时执行创世并为 1..count-1 号开发账户注资。
func Open(cfg *config.Config) (*Runtime, error) {
	devs, g, err := ResolveGenesis(cfg)
	if err != nil {
		return nil, err
	}

	st, err := backends.Open(cfg.StoreOptions())
	if err != nil {
		return nil, err
	}

	bus := events.NewBus(1024)
	engine, err := ledger.New(st, g, ledger.WithBus(bus))
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	rt := &Runtime{Store: st, Engine: engine, Bus: bus, DevAccounts: devs}
	if engine.Fresh() {
		if err := FundDevAccounts(engine, devs, cfg.DevAccounts.Fund); err != nil {
			_ = st.Close()
			return nil, err
		}
	}
	return rt, nil
}

// Close 关闭存储（memory 后端会写出快照）
func (r *Runtime) Close() error {
	return r.Store.Close()
}

// ResolveGenesis 派生开发账户并把配置中的地址解析为创世参数
func ResolveGenesis(cfg *config.Config) ([]wallet.DevAccount, domain.Genesis, error) {
	var (
		deriver *wallet.Deriver
		devs    []wallet.DevAccount
		err     error
	)
	needDeriver := cfg.DevAccounts.Count > 0 || cfg.Genesis.Holder == "" || cfg.Genesis.Marketplace == ""
	if needDeriver {
		deriver, err = wallet.NewDeriver(cfg.DevAccounts.Mnemonic)
		if err != nil {
			return nil, domain.Genesis{}, fmt.Errorf("dev accounts: %w", err)
		}
		devs, err = deriver.Accounts(cfg.DevAccounts.Count)
		if err != nil {
			return nil, domain.Genesis{}, err
		}
	}

	g := domain.Genesis{
		Supply:        cfg.Genesis.Supply,
		CommissionBps: cfg.Genesis.CommissionBps,
		TokenName:     cfg.Genesis.TokenName,
		TokenSymbol:   cfg.Genesis.TokenSymbol,
		TokenDecimals: cfg.Genesis.TokenDecimals,
	}

	switch {
	case cfg.Genesis.Holder != "":
		if g.Holder, err = domain.ParseAccount(cfg.Genesis.Holder); err != nil {
			return nil, g, fmt.Errorf("genesis.holder: %w", err)
		}
	case len(devs) > 0:
		g.Holder = devs[0].Address
	default:
		return nil, g, fmt.Errorf("genesis.holder: %w", domain.ErrInvalidOwner)
	}

	if cfg.Genesis.Marketplace != "" {
		if g.Marketplace, err = domain.ParseAccount(cfg.Genesis.Marketplace); err != nil {
			return nil, g, fmt.Errorf("genesis.marketplace: %w", err)
		}
	} else {
		acct, err := deriver.Account(cfg.DevAccounts.MarketplaceIndex)
		if err != nil {
			return nil, g, fmt.Errorf("marketplace account: %w", err)
		}
		g.Marketplace = acct.Address
	}

	if cfg.Genesis.Operator != "" {
		if g.Operator, err = domain.ParseAccount(cfg.Genesis.Operator); err != nil {
			return nil, g, fmt.Errorf("genesis.operator: %w", err)
		}
	}
	return devs, g, nil
}

// FundDevAccounts 从创世持有者向其余开发账户各转 amount
func FundDevAccounts(e *ledger.Engine, devs []wallet.DevAccount, amount uint64) error {
	if amount == 0 {
		return nil
	}
	holder := e.Genesis().Holder
	funded := 0
	for _, d := range devs {
		if d.Address == holder || d.Address == e.Market().Account() {
			continue
		}
		if err := e.Payment().Transfer(holder, d.Address, amount); err != nil {
			return fmt.Errorf("fund dev account #%d %s: %w", d.Index, d.Address.Hex(), err)
		}
		funded++
	}
	log.WithFields(logrus.Fields{"accounts": funded, "amount": amount}).Info("开发账户注资完成")
	return nil
}
