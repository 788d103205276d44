package store_test

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfire/firemarket/internal/domain"
	"github.com/openfire/firemarket/internal/store"
	"github.com/openfire/firemarket/internal/store/badgerstore"
	"github.com/openfire/firemarket/internal/store/memory"
	"github.com/openfire/firemarket/internal/store/sqlitestore"
)

var (
	alice = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	bob   = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
	carol = common.HexToAddress("0x90F79bf6EB2c4f870365E785982E1f101E93b906")
)

// backends 返回三种实现，保证行为一致
func backends(t *testing.T) map[string]*store.Store {
	t.Helper()

	bkv, err := badgerstore.Open(badgerstore.Options{InMemory: true})
	require.NoError(t, err)

	skv, err := sqlitestore.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)

	out := map[string]*store.Store{
		"memory": store.New(memory.New()),
		"badger": store.New(bkv),
		"sqlite": store.New(skv),
	}
	t.Cleanup(func() {
		for _, s := range out {
			_ = s.Close()
		}
	})
	return out
}

func TestStore_Records(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			asset := &domain.Asset{ID: 1, Creator: alice, Owner: alice, TokenURI: "tokendata/uri/", MetadataURI: "metadata/uri/", RoyaltyRate: 5}
			listing := &domain.Listing{AssetID: 1, TokenURI: "tokendata/uri/", Seller: alice, SellingPrice: 1000, OnSale: true}
			g := &domain.Genesis{Supply: 1_000_000, Holder: carol, Marketplace: bob, Operator: carol, CommissionBps: 250, TokenName: "OpenTradeToken", TokenSymbol: "OTT", TokenDecimals: 18, CreatedAt: time.Unix(1700000000, 0).UTC()}

			require.NoError(t, s.Update(func(tx *store.Tx) error {
				require.NoError(t, tx.PutGenesis(g))
				require.NoError(t, tx.PutAsset(asset))
				require.NoError(t, tx.SetNextAssetID(2))
				require.NoError(t, tx.SetHoldings(alice, 1))
				require.NoError(t, tx.SetApprovedForAll(alice, bob, true))
				require.NoError(t, tx.SetBalance(alice, 10000))
				require.NoError(t, tx.SetAllowance(alice, bob, 5010))
				require.NoError(t, tx.SetTotalSupply(10000))
				require.NoError(t, tx.PutListing(listing))
				return nil
			}))

			require.NoError(t, s.View(func(tx *store.Tx) error {
				gotG, err := tx.Genesis()
				require.NoError(t, err)
				assert.Equal(t, g, gotG)

				gotA, err := tx.Asset(1)
				require.NoError(t, err)
				assert.Equal(t, asset, gotA)

				_, err = tx.Asset(2)
				assert.ErrorIs(t, err, store.ErrNotFound)

				next, err := tx.NextAssetID()
				require.NoError(t, err)
				assert.Equal(t, domain.AssetID(2), next)

				ok, err := tx.ApprovedForAll(alice, bob)
				require.NoError(t, err)
				assert.True(t, ok)
				ok, err = tx.ApprovedForAll(bob, alice)
				require.NoError(t, err)
				assert.False(t, ok)

				bal, err := tx.Balance(alice)
				require.NoError(t, err)
				assert.Equal(t, uint64(10000), bal)
				bal, err = tx.Balance(bob)
				require.NoError(t, err)
				assert.Zero(t, bal)

				allowance, err := tx.Allowance(alice, bob)
				require.NoError(t, err)
				assert.Equal(t, uint64(5010), allowance)

				gotL, err := tx.Listing(1)
				require.NoError(t, err)
				assert.Equal(t, listing, gotL)
				_, err = tx.Listing(9)
				assert.ErrorIs(t, err, store.ErrNotFound)
				return nil
			}))
		})
	}
}

func TestStore_RollbackOnError(t *testing.T) {
	boom := errors.New("boom")
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Update(func(tx *store.Tx) error {
				return tx.SetBalance(alice, 100)
			}))

			err := s.Update(func(tx *store.Tx) error {
				require.NoError(t, tx.SetBalance(alice, 0))
				require.NoError(t, tx.SetBalance(bob, 100))
				require.NoError(t, tx.PutListing(&domain.Listing{AssetID: 3, Seller: alice, SellingPrice: 500, OnSale: true}))
				return boom
			})
			assert.ErrorIs(t, err, boom)

			require.NoError(t, s.View(func(tx *store.Tx) error {
				a, err := tx.Balance(alice)
				require.NoError(t, err)
				b, err := tx.Balance(bob)
				require.NoError(t, err)
				assert.Equal(t, uint64(100), a)
				assert.Zero(t, b)
				_, err = tx.Listing(3)
				assert.ErrorIs(t, err, store.ErrNotFound)
				return nil
			}))
		})
	}
}

func TestStore_IterationOrder(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Update(func(tx *store.Tx) error {
				// 乱序写入，遍历必须按编号升序
				for _, id := range []domain.AssetID{10, 2, 1, 100} {
					if err := tx.PutListing(&domain.Listing{AssetID: id, Seller: alice, SellingPrice: 200, OnSale: true}); err != nil {
						return err
					}
				}
				for i := 0; i < 3; i++ {
					if err := tx.AppendReceipt(&domain.SaleReceipt{AssetID: domain.AssetID(i + 1), Price: 1000}); err != nil {
						return err
					}
				}
				if err := tx.SetBalance(alice, 7); err != nil {
					return err
				}
				if err := tx.SetBalance(bob, 3); err != nil {
					return err
				}
				// 0 余额不出现在遍历中
				return tx.SetBalance(carol, 0)
			}))

			require.NoError(t, s.View(func(tx *store.Tx) error {
				var ids []domain.AssetID
				require.NoError(t, tx.Listings(func(l *domain.Listing) error {
					ids = append(ids, l.AssetID)
					return nil
				}))
				assert.Equal(t, []domain.AssetID{1, 2, 10, 100}, ids)

				var seqs []uint64
				require.NoError(t, tx.Receipts(func(r *domain.SaleReceipt) error {
					seqs = append(seqs, r.Seq)
					return nil
				}))
				assert.Equal(t, []uint64{1, 2, 3}, seqs)

				balances := map[domain.Account]uint64{}
				require.NoError(t, tx.Balances(func(a domain.Account, n uint64) error {
					balances[a] = n
					return nil
				}))
				assert.Equal(t, map[domain.Account]uint64{alice: 7, bob: 3}, balances)
				return nil
			}))
		})
	}
}

func TestStore_NextAssetIDDefaultsToOne(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.View(func(tx *store.Tx) error {
				id, err := tx.NextAssetID()
				require.NoError(t, err)
				assert.Equal(t, domain.AssetID(1), id)
				_, err = tx.Genesis()
				assert.ErrorIs(t, err, store.ErrNotFound)
				return nil
			}))
		})
	}
}
