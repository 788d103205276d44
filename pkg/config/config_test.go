package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfire/firemarket/internal/wallet"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFromFile_Defaults(t *testing.T) {
	cfg, err := LoadFromFile("")
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, uint64(250), cfg.Genesis.CommissionBps)
	assert.Equal(t, uint64(1_000_000_000), cfg.Genesis.Supply)
	assert.Equal(t, wallet.DevMnemonic, cfg.DevAccounts.Mnemonic)
	assert.Equal(t, 10, cfg.DevAccounts.Count)
	assert.Equal(t, 10, cfg.DevAccounts.MarketplaceIndex)
	assert.Equal(t, ":8080", cfg.APIListen)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 30*time.Second, cfg.CheckpointEvery)
	assert.Zero(t, cfg.APIWriteRate)
	assert.Same(t, cfg, Get())
}

func TestLoadFromFile_YAML(t *testing.T) {
	path := writeFile(t, "market.yaml", `
store:
  backend: sqlite
genesis:
  supply: 500000
  commission_percent: "1.25"
  operator: "0x90F79bf6EB2c4f870365E785982E1f101E93b906"
dev_accounts:
  count: 4
  fund: 100000
  marketplace_index: 19
log:
  level: debug
api:
  listen: ":9090"
  write_rate: 2.5
persistence:
  checkpoint_seconds: 5
`)
	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, "data/ledger.db", cfg.Store.Path)
	assert.Equal(t, uint64(500000), cfg.Genesis.Supply)
	assert.Equal(t, uint64(125), cfg.Genesis.CommissionBps)
	assert.Equal(t, 4, cfg.DevAccounts.Count)
	assert.Equal(t, uint64(100000), cfg.DevAccounts.Fund)
	assert.Equal(t, 19, cfg.DevAccounts.MarketplaceIndex)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ":9090", cfg.APIListen)
	assert.Equal(t, 2.5, cfg.APIWriteRate)
	assert.Equal(t, 20, cfg.APIWriteBurst)
	assert.Equal(t, 5*time.Second, cfg.CheckpointEvery)
	assert.Equal(t, path, GetConfigPath())
}

func TestLoadFromFile_EnvOverrides(t *testing.T) {
	path := writeFile(t, "market.json", `{"store":{"backend":"memory"},"api":{"listen":":9090"}}`)
	t.Setenv("FIREMARKET_STORE_BACKEND", "badger")
	t.Setenv("FIREMARKET_API_LISTEN", ":7070")
	t.Setenv("FIREMARKET_COMMISSION_PERCENT", "5")
	t.Setenv("FIREMARKET_DEV_COUNT", "0")
	t.Setenv("FIREMARKET_GENESIS_HOLDER", "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "badger", cfg.Store.Backend)
	assert.Equal(t, "data/badger", cfg.Store.Path)
	assert.Equal(t, ":7070", cfg.APIListen)
	assert.Equal(t, uint64(500), cfg.Genesis.CommissionBps)
	assert.Equal(t, 0, cfg.DevAccounts.Count)
}

func TestLoadFromFile_Invalid(t *testing.T) {
	cases := map[string]string{
		"backend":    "store:\n  backend: postgres\n",
		"commission": "genesis:\n  commission_percent: \"abc\"\n",
		"overfund":   "genesis:\n  supply: 1000\ndev_accounts:\n  count: 3\n  fund: 600\n",
		"no holder":  "dev_accounts:\n  count: 0\n",
		"write rate": "api:\n  write_rate: -1\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFromFile(writeFile(t, "bad.yaml", content))
			assert.Error(t, err)
		})
	}

	_, err := LoadFromFile(writeFile(t, "bad.toml", "x = 1"))
	assert.ErrorContains(t, err, "不支持的配置文件格式")

	_, err = LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
