package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfire/firemarket/internal/api"
	"github.com/openfire/firemarket/internal/domain"
	"github.com/openfire/firemarket/internal/ledger"
	"github.com/openfire/firemarket/internal/store"
	"github.com/openfire/firemarket/internal/store/memory"
)

var (
	deployer = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	market   = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	alice    = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	bob      = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
	carol    = common.HexToAddress("0x90F79bf6EB2c4f870365E785982E1f101E93b906")
)

func newClient(t *testing.T) *Client {
	t.Helper()
	e, err := ledger.New(store.New(memory.New()), domain.Genesis{
		Supply:        1_000_000,
		Holder:        deployer,
		Marketplace:   market,
		CommissionBps: 250,
	})
	require.NoError(t, err)
	srv := httptest.NewServer(api.New(e).Router())
	t.Cleanup(srv.Close)
	return New(srv.URL + "/")
}

func TestClient_ResaleFlow(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	info, err := c.Info(ctx)
	require.NoError(t, err)
	mkt := info.Marketplace
	assert.Equal(t, market, mkt)

	require.NoError(t, c.Transfer(ctx, deployer, bob, 100_000))
	require.NoError(t, c.Transfer(ctx, deployer, carol, 100_000))

	asset, err := c.Mint(ctx, alice, "tokendata/uri/", "metadata/uri/", 5)
	require.NoError(t, err)
	require.NoError(t, c.SetApprovalForAll(ctx, alice, mkt, true))
	ok, err := c.Approval(ctx, alice, mkt)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = c.List(ctx, alice, asset.ID, 5000)
	require.NoError(t, err)
	require.NoError(t, c.Approve(ctx, bob, mkt, 5009))
	_, err = c.Purchase(ctx, bob, asset.ID, 5009)
	require.NoError(t, err)

	// 二次销售：版税归创作者
	require.NoError(t, c.SetApprovalForAll(ctx, bob, mkt, true))
	_, err = c.List(ctx, bob, asset.ID, 5000)
	require.NoError(t, err)
	q, err := c.Quote(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(243), q.Royalty)

	require.NoError(t, c.Approve(ctx, carol, mkt, 5000))
	receipt, err := c.Purchase(ctx, carol, asset.ID, 5000)
	require.NoError(t, err)
	assert.Equal(t, uint64(4632), receipt.SellerProceeds)

	acct, err := c.Account(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(4875+243), acct.Balance)

	got, err := c.Asset(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, carol, got.Asset.Owner)
	require.NotNil(t, got.Listing)
	assert.False(t, got.Listing.OnSale)

	id := asset.ID
	receipts, err := c.Receipts(ctx, &id)
	require.NoError(t, err)
	assert.Len(t, receipts, 2)

	owned, err := c.Assets(ctx, &carol)
	require.NoError(t, err)
	assert.Len(t, owned, 1)
}

func TestClient_LedgerErrorsUnwrap(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	_, err := c.Purchase(ctx, bob, 1, 5000)
	require.ErrorIs(t, err, domain.ErrNotOnSale)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "NotOnSale", apiErr.Code)

	_, err = c.Mint(ctx, alice, "", "", 11)
	require.ErrorIs(t, err, domain.ErrInvalidRoyalty)

	err = c.Transfer(ctx, bob, alice, 1)
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)
}

func TestClient_RetriesOnlyReads(t *testing.T) {
	var gets, posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			gets.Add(1)
		} else {
			posts.Add(1)
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	c := New(srv.URL)

	_, err := c.Info(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(4), gets.Load(), "one attempt plus three retries")

	err = c.Transfer(context.Background(), alice, bob, 1)
	require.Error(t, err)
	assert.Equal(t, int32(1), posts.Load())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
}

func TestClient_TransportError(t *testing.T) {
	c := New("http://127.0.0.1:1")
	c.client.SetRetryCount(0)
	err := c.Transfer(context.Background(), alice, bob, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POST /api/payments/transfer")
}
