package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfire/firemarket/internal/domain"
	"github.com/openfire/firemarket/internal/events"
	"github.com/openfire/firemarket/internal/ledger"
	"github.com/openfire/firemarket/internal/store"
	"github.com/openfire/firemarket/internal/store/memory"
	"github.com/openfire/firemarket/pkg/ratelimit"
)

var (
	deployer = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	market   = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	alice    = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	bob      = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
)

type harness struct {
	t      *testing.T
	engine *ledger.Engine
	api    *Server
	srv    *httptest.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	e, err := ledger.New(store.New(memory.New()), domain.Genesis{
		Supply:        1_000_000,
		Holder:        deployer,
		Marketplace:   market,
		CommissionBps: 250,
	})
	require.NoError(t, err)
	api := New(e)
	srv := httptest.NewServer(api.Router())
	t.Cleanup(srv.Close)
	return &harness{t: t, engine: e, api: api, srv: srv}
}

// do 发送请求并把响应解码到 out（out 为 nil 时忽略响应体）
func (h *harness) do(method, path string, body any, out any) int {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, h.srv.URL+path, &buf)
	require.NoError(h.t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(h.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (h *harness) expectError(method, path string, body any, status int, code string) {
	h.t.Helper()
	var er ErrorResponse
	got := h.do(method, path, body, &er)
	assert.Equal(h.t, status, got, "%s %s", method, path)
	assert.Equal(h.t, code, er.Code, "%s %s: %s", method, path, er.Error)
}

func TestAPI_FullSale(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, http.StatusNoContent, h.do("POST", "/api/payments/transfer",
		PaymentTransferRequest{From: deployer.Hex(), To: bob.Hex(), Amount: 100_000}, nil))

	var minted MintResponse
	require.Equal(t, http.StatusCreated, h.do("POST", "/api/assets",
		MintRequest{From: alice.Hex(), TokenURI: "tokendata/uri/", MetadataURI: "metadata/uri/", RoyaltyRate: 5}, &minted))
	id := minted.Asset.ID
	assert.Equal(t, domain.AssetID(1), id)
	assert.Equal(t, alice, minted.Asset.Owner)

	require.Equal(t, http.StatusOK, h.do("POST", "/api/approvals",
		ApprovalRequest{From: alice.Hex(), Operator: market.Hex(), Approved: true}, nil))

	var listing domain.Listing
	require.Equal(t, http.StatusCreated, h.do("POST", "/api/listings",
		ListRequest{From: alice.Hex(), AssetID: id, Price: 5000}, &listing))
	assert.True(t, listing.OnSale)

	var quote QuoteResponse
	require.Equal(t, http.StatusOK, h.do("GET", "/api/listings/1/quote", nil, &quote))
	assert.Equal(t, uint64(125), quote.Commission)
	assert.Equal(t, uint64(4875), quote.SellerProceeds)

	require.Equal(t, http.StatusOK, h.do("POST", "/api/payments/approve",
		PaymentApproveRequest{From: bob.Hex(), Spender: market.Hex(), Amount: 5009}, nil))

	var receipt domain.SaleReceipt
	require.Equal(t, http.StatusOK, h.do("POST", "/api/listings/1/purchase",
		PurchaseRequest{From: bob.Hex(), Offered: 5009}, &receipt))
	assert.Equal(t, uint64(5000), receipt.Price)
	assert.Equal(t, uint64(4875), receipt.SellerProceeds)

	var acct AccountResponse
	require.Equal(t, http.StatusOK, h.do("GET", "/api/accounts/"+alice.Hex(), nil, &acct))
	assert.Equal(t, uint64(4875), acct.Balance)
	assert.Equal(t, uint64(0), acct.Holdings)

	require.Equal(t, http.StatusOK, h.do("GET", "/api/accounts/"+bob.Hex(), nil, &acct))
	assert.Equal(t, uint64(1), acct.Holdings)
	require.Len(t, acct.Assets, 1)

	var allowance AllowanceResponse
	require.Equal(t, http.StatusOK, h.do("GET", "/api/allowances/"+bob.Hex()+"/"+market.Hex(), nil, &allowance))
	assert.Equal(t, uint64(9), allowance.Amount)

	h.expectError("POST", "/api/listings/1/purchase", PurchaseRequest{From: bob.Hex(), Offered: 5009}, http.StatusConflict, "NotOnSale")

	var receipts []domain.SaleReceipt
	require.Equal(t, http.StatusOK, h.do("GET", "/api/receipts?asset_id=1", nil, &receipts))
	require.Len(t, receipts, 1)

	var active []domain.Listing
	require.Equal(t, http.StatusOK, h.do("GET", "/api/listings", nil, &active))
	assert.Empty(t, active)
	var all []domain.Listing
	require.Equal(t, http.StatusOK, h.do("GET", "/api/listings?active=false", nil, &all))
	assert.Len(t, all, 1)
}

func TestAPI_ErrorMapping(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.Registry().Mint(alice, "tokendata/uri/", "metadata/uri/", 5)
	require.NoError(t, err)

	h.expectError("POST", "/api/assets", MintRequest{From: alice.Hex(), RoyaltyRate: 11}, http.StatusBadRequest, "InvalidRoyalty")
	h.expectError("POST", "/api/assets", map[string]any{"royalty_rate": 1}, http.StatusBadRequest, CodeBadRequest)
	h.expectError("POST", "/api/assets", MintRequest{From: "alice"}, http.StatusBadRequest, CodeBadRequest)
	h.expectError("GET", "/api/assets/9", nil, http.StatusNotFound, "UnknownAsset")
	h.expectError("GET", "/api/assets/x", nil, http.StatusBadRequest, CodeBadRequest)
	h.expectError("GET", "/api/listings/1", nil, http.StatusNotFound, "UnknownListing")
	h.expectError("POST", "/api/listings", ListRequest{From: bob.Hex(), AssetID: 1, Price: 5000}, http.StatusForbidden, "NotOwner")
	h.expectError("POST", "/api/listings", ListRequest{From: alice.Hex(), AssetID: 1, Price: 5000}, http.StatusForbidden, "NotApproved")

	require.NoError(t, h.engine.Registry().SetApprovalForAll(alice, market, true))
	h.expectError("POST", "/api/listings", ListRequest{From: alice.Hex(), AssetID: 1, Price: 100}, http.StatusBadRequest, "PriceTooLow")
	require.NoError(t, h.engine.Market().List(alice, 1, 5000))
	h.expectError("POST", "/api/listings", ListRequest{From: alice.Hex(), AssetID: 1, Price: 5000}, http.StatusConflict, "AlreadyListed")
	h.expectError("POST", "/api/listings/1/cancel", CancelRequest{From: bob.Hex()}, http.StatusForbidden, "NotOwner")
	h.expectError("POST", "/api/listings/1/purchase", PurchaseRequest{From: bob.Hex(), Offered: 10}, http.StatusUnprocessableEntity, "InsufficientOffer")
	h.expectError("POST", "/api/listings/1/purchase", PurchaseRequest{From: bob.Hex(), Offered: 5000}, http.StatusUnprocessableEntity, "InsufficientAllowance")
	h.expectError("POST", "/api/payments/transfer", PaymentTransferRequest{From: bob.Hex(), To: alice.Hex(), Amount: 1}, http.StatusUnprocessableEntity, "InsufficientBalance")

	var l domain.Listing
	require.Equal(t, http.StatusOK, h.do("POST", "/api/listings/1/cancel", CancelRequest{From: alice.Hex()}, &l))
	assert.False(t, l.OnSale)
	assert.Equal(t, uint64(0), l.SellingPrice)
}

func TestAPI_Info(t *testing.T) {
	h := newHarness(t)
	var info InfoResponse
	require.Equal(t, http.StatusOK, h.do("GET", "/api/info", nil, &info))
	assert.Equal(t, market, info.Marketplace)
	assert.Equal(t, deployer, info.Operator)
	assert.Equal(t, "2.5", info.CommissionPercent)
	assert.Equal(t, uint64(1_000_000), info.TotalSupply)
	assert.Equal(t, domain.AssetID(1), info.NextAssetID)

	resp, err := http.Get(h.srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_EventStream(t *testing.T) {
	h := newHarness(t)

	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/ws/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// 等待订阅生效
	require.Eventually(t, func() bool { return h.engine.Bus().Subscribers() == 1 }, time.Second, 10*time.Millisecond)

	_, err = h.engine.Registry().Mint(alice, "tokendata/uri/", "metadata/uri/", 3)
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var raw events.RawEnvelope
	require.NoError(t, conn.ReadJSON(&raw))
	assert.Equal(t, events.TypeAssetMinted, raw.Type)
	assert.Equal(t, "mint", raw.Op)

	ev, err := raw.Decode()
	require.NoError(t, err)
	minted, ok := ev.(*events.AssetMintedEvent)
	require.True(t, ok)
	assert.Equal(t, alice, minted.Asset.Creator)
	assert.Equal(t, uint64(3), minted.Asset.RoyaltyRate)
}

func TestAPI_CloseStreams(t *testing.T) {
	h := newHarness(t)

	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/ws/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return h.engine.Bus().Subscribers() == 1 }, time.Second, 10*time.Millisecond)

	h.api.CloseStreams()
	h.api.CloseStreams()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
	require.Eventually(t, func() bool { return h.engine.Bus().Subscribers() == 0 }, time.Second, 10*time.Millisecond)
}

func TestAPI_WriteLimit(t *testing.T) {
	e, err := ledger.New(store.New(memory.New()), domain.Genesis{
		Supply:        1_000_000,
		Holder:        deployer,
		Marketplace:   market,
		CommissionBps: 250,
	})
	require.NoError(t, err)
	srv := httptest.NewServer(New(e, WithWriteLimit(ratelimit.NewKeyed(0.001, 2))).Router())
	t.Cleanup(srv.Close)
	h := &harness{t: t, engine: e, srv: srv}

	mint := MintRequest{From: alice.Hex(), TokenURI: "tokendata/uri/", RoyaltyRate: 1}
	assert.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/api/assets", mint, nil))
	assert.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/api/assets", mint, nil))
	h.expectError(http.MethodPost, "/api/assets", mint, http.StatusTooManyRequests, CodeRateLimited)

	// 读请求不受影响
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/info", nil, nil))
}

func TestErrorResponse(t *testing.T) {
	status, resp := errorResponse(domain.ErrInsufficientAllowance)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "InsufficientAllowance", resp.Code)

	status, resp = errorResponse(assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, CodeInternal, resp.Code)
}
