package ledger_test

import (
	"fmt"
	"math/big"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfire/firemarket/internal/domain"
	"github.com/openfire/firemarket/internal/events"
	"github.com/openfire/firemarket/internal/ledger"
	"github.com/openfire/firemarket/internal/store"
	"github.com/openfire/firemarket/internal/store/badgerstore"
	"github.com/openfire/firemarket/internal/store/memory"
	"github.com/openfire/firemarket/internal/store/sqlitestore"
)

const supply = 1_000_000

var (
	deployer = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	market   = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	alice    = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	bob      = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
	carol    = common.HexToAddress("0x90F79bf6EB2c4f870365E785982E1f101E93b906")
)

var fixedNow = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func testGenesis() domain.Genesis {
	return domain.Genesis{
		Supply:        supply,
		Holder:        deployer,
		Marketplace:   market,
		CommissionBps: 250,
	}
}

func newEngineOn(t *testing.T, kv store.KV) *ledger.Engine {
	t.Helper()
	var n atomic.Int64
	e, err := ledger.New(store.New(kv), testGenesis(),
		ledger.WithClock(func() time.Time { return fixedNow }),
		ledger.WithIDGenerator(func() string { return fmt.Sprintf("receipt-%d", n.Add(1)) }),
	)
	require.NoError(t, err)
	return e
}

func newEngine(t *testing.T) *ledger.Engine {
	t.Helper()
	return newEngineOn(t, memory.New())
}

// fund 从 deployer 给账户转初始资金
func fund(t *testing.T, e *ledger.Engine, amount uint64, accounts ...domain.Account) {
	t.Helper()
	for _, a := range accounts {
		require.NoError(t, e.Payment().Transfer(deployer, a, amount))
	}
}

// requireConserved 余额之和始终等于总供应量
func requireConserved(t *testing.T, e *ledger.Engine) {
	t.Helper()
	total, err := e.Payment().TotalSupply()
	require.NoError(t, err)
	balances, err := e.Payment().Balances()
	require.NoError(t, err)
	var sum uint64
	for _, b := range balances {
		sum += b
	}
	require.Equal(t, total, sum)
}

func TestNew_Genesis(t *testing.T) {
	e := newEngine(t)

	assert.True(t, e.Fresh())
	g := e.Genesis()
	assert.Equal(t, deployer, g.Holder)
	assert.Equal(t, deployer, g.Operator, "operator defaults to holder")
	assert.Equal(t, ledger.DefaultTokenSymbol, g.TokenSymbol)
	assert.Equal(t, uint8(ledger.DefaultTokenDecimals), g.TokenDecimals)
	assert.Equal(t, market, e.Market().Account())

	bal, err := e.Payment().BalanceOf(deployer)
	require.NoError(t, err)
	assert.Equal(t, uint64(supply), bal)
	requireConserved(t, e)
}

func TestNew_InvalidGenesis(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(g *domain.Genesis)
		want   error
	}{
		{"zero holder", func(g *domain.Genesis) { g.Holder = domain.ZeroAccount }, domain.ErrInvalidOwner},
		{"zero marketplace", func(g *domain.Genesis) { g.Marketplace = domain.ZeroAccount }, domain.ErrInvalidOperator},
		{"marketplace is holder", func(g *domain.Genesis) { g.Marketplace = g.Holder }, domain.ErrInvalidOperator},
		{"commission over 100%", func(g *domain.Genesis) { g.CommissionBps = 10001 }, domain.ErrInvalidAmount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := testGenesis()
			tc.mutate(&g)
			_, err := ledger.New(store.New(memory.New()), g)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestNew_ReopenKeepsState(t *testing.T) {
	kv := memory.New()
	st := store.New(kv)

	e1, err := ledger.New(st, testGenesis())
	require.NoError(t, err)
	require.NoError(t, e1.Payment().Transfer(deployer, alice, 500))
	id, err := e1.Registry().Mint(alice, "tokendata/uri/", "metadata/uri/", 5)
	require.NoError(t, err)

	other := testGenesis()
	other.Holder = carol
	other.Supply = 42
	e2, err := ledger.New(st, other)
	require.NoError(t, err)

	assert.False(t, e2.Fresh())
	assert.Equal(t, deployer, e2.Genesis().Holder)
	bal, err := e2.Payment().BalanceOf(alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), bal)
	owner, err := e2.Registry().OwnerOf(id)
	require.NoError(t, err)
	assert.Equal(t, alice, owner)
	next, err := e2.Registry().NextID()
	require.NoError(t, err)
	assert.Equal(t, id+1, next)
	requireConserved(t, e2)
}

func TestEngine_Backends(t *testing.T) {
	bkv, err := badgerstore.Open(badgerstore.Options{InMemory: true})
	require.NoError(t, err)
	skv, err := sqlitestore.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)

	kvs := map[string]store.KV{"memory": memory.New(), "badger": bkv, "sqlite": skv}
	t.Cleanup(func() {
		for _, kv := range kvs {
			_ = kv.Close()
		}
	})

	for name, kv := range kvs {
		t.Run(name, func(t *testing.T) {
			e := newEngineOn(t, kv)
			runEndToEnd(t, e)
			requireConserved(t, e)
		})
	}
}

func TestEngine_ConcurrentPurchaseSettlesOnce(t *testing.T) {
	e := newEngine(t)
	id := mintAndList(t, e, alice, 5, 5000)

	buyers := make([]domain.Account, 8)
	for i := range buyers {
		buyers[i] = common.BigToAddress(big.NewInt(int64(1000 + i)))
		fund(t, e, 10_000, buyers[i])
		require.NoError(t, e.Payment().Approve(buyers[i], market, 10_000))
	}

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		errs      = make(chan error, len(buyers))
	)
	for _, b := range buyers {
		wg.Add(1)
		go func(buyer domain.Account) {
			defer wg.Done()
			if _, err := e.Market().Purchase(buyer, id, 5000); err != nil {
				errs <- err
				return
			}
			succeeded.Add(1)
		}(b)
	}
	wg.Wait()
	close(errs)

	assert.Equal(t, int32(1), succeeded.Load())
	for err := range errs {
		assert.ErrorIs(t, err, domain.ErrNotOnSale)
	}

	receipts, err := e.Market().Receipts(nil)
	require.NoError(t, err)
	require.Len(t, receipts, 1)

	sellerBal, err := e.Payment().BalanceOf(alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(4875), sellerBal)
	requireConserved(t, e)
}

func TestEngine_EventSeqFollowsCommitOrder(t *testing.T) {
	const workers, perWorker = 8, 25
	bus := events.NewBus(workers * perWorker * 2)
	ch, cancel := bus.Subscribe()
	defer cancel()

	e, err := ledger.New(store.New(memory.New()), testGenesis(), ledger.WithBus(bus))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_, err := e.Registry().Mint(alice, "tokendata/uri/", "metadata/uri/", 0)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	// 资产 id 按提交顺序分配，铸造事件的 Seq 必须与之同序
	var ids []domain.AssetID
	for len(ids) < workers*perWorker {
		select {
		case env := <-ch:
			if ev, ok := env.Payload.(events.AssetMintedEvent); ok {
				ids = append(ids, ev.Asset.ID)
			}
		case <-time.After(time.Second):
			t.Fatalf("received %d of %d mint events", len(ids), workers*perWorker)
		}
	}
	for i := 1; i < len(ids); i++ {
		require.Equal(t, ids[i-1]+1, ids[i], "event %d out of commit order", i)
	}
}
