package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfire/firemarket/internal/wallet"
	"github.com/openfire/firemarket/pkg/config"
)

func devConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Store: config.StoreConfig{Backend: "memory"},
		Genesis: config.GenesisConfig{
			Supply:        1_000_000,
			CommissionBps: 250,
		},
		DevAccounts: config.DevAccountsConfig{
			Mnemonic:         wallet.DevMnemonic,
			Count:            4,
			Fund:             100_000,
			MarketplaceIndex: 4,
		},
		PersistenceDir:  t.TempDir(),
		ShutdownTimeout: time.Second,
	}
}

var (
	dev0 = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	dev1 = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
)

func TestResolveGenesis_DevAccounts(t *testing.T) {
	devs, g, err := ResolveGenesis(devConfig(t))
	require.NoError(t, err)
	require.Len(t, devs, 4)
	assert.Equal(t, dev0, g.Holder)
	assert.NotEqual(t, g.Holder, g.Marketplace)
	for _, d := range devs {
		assert.NotEqual(t, d.Address, g.Marketplace, "marketplace account is not a funded dev account")
	}
}

func TestResolveGenesis_Explicit(t *testing.T) {
	cfg := devConfig(t)
	cfg.DevAccounts.Count = 0
	cfg.Genesis.Holder = dev1.Hex()
	cfg.Genesis.Marketplace = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	cfg.Genesis.Operator = dev0.Hex()

	devs, g, err := ResolveGenesis(cfg)
	require.NoError(t, err)
	assert.Empty(t, devs)
	assert.Equal(t, dev1, g.Holder)
	assert.Equal(t, dev0, g.Operator)

	cfg.Genesis.Holder = "nope"
	_, _, err = ResolveGenesis(cfg)
	assert.Error(t, err)
}

func TestOpen_FundsOnceAndRestarts(t *testing.T) {
	cfg := devConfig(t)

	rt, err := Open(cfg)
	require.NoError(t, err)
	e := rt.Engine
	require.True(t, e.Fresh())

	bal, err := e.Payment().BalanceOf(dev1)
	require.NoError(t, err)
	assert.Equal(t, uint64(100_000), bal)
	holderBal, err := e.Payment().BalanceOf(dev0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000-3*100_000), holderBal)
	require.NoError(t, rt.Close())

	// 快照恢复后不再创世、不再注资
	rt, err = Open(cfg)
	require.NoError(t, err)
	defer rt.Close()
	assert.False(t, rt.Engine.Fresh())
	bal, err = rt.Engine.Payment().BalanceOf(dev1)
	require.NoError(t, err)
	assert.Equal(t, uint64(100_000), bal)
}

func TestRunCheckpoints_SavesAfterCommit(t *testing.T) {
	cfg := devConfig(t)
	rt, err := Open(cfg)
	require.NoError(t, err)
	defer rt.Close()

	snapshot := filepath.Join(cfg.PersistenceDir, "ledger_snapshot.json")
	_, err = os.Stat(snapshot)
	require.True(t, os.IsNotExist(err), "nothing written before the first checkpoint")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		rt.RunCheckpoints(ctx, 20*time.Millisecond)
	}()
	require.Eventually(t, func() bool { return rt.Bus.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, rt.Engine.Payment().Transfer(dev1, dev0, 1))
	require.Eventually(t, func() bool {
		_, err := os.Stat(snapshot)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
