// Package client marketd HTTP API 的 Go 客户端（marketctl / market-tui 使用）。
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/openfire/firemarket/internal/api"
	"github.com/openfire/firemarket/internal/domain"
)

// APIError 服务端返回的非 2xx 响应。账本错误可以用 errors.Is 与 domain 哨兵错误比较。
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d %s)", e.Message, e.Status, e.Code)
}

// Unwrap 还原账本哨兵错误
func (e *APIError) Unwrap() error {
	return domain.ErrorByKind(e.Code)
}

type Client struct {
	client *resty.Client
}

// New host 形如 http://127.0.0.1:8080
func New(host string) *Client {
	host = strings.TrimSuffix(host, "/")
	client := resty.New().
		SetBaseURL(host).
		SetTimeout(15 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		// 写操作不可重放，只重试 GET
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if resp == nil || resp.Request == nil || resp.Request.Method != http.MethodGet {
				return false
			}
			return err != nil || resp.StatusCode() >= http.StatusInternalServerError
		})
	return &Client{client: client}
}

// BaseURL 服务地址
func (c *Client) BaseURL() string {
	return c.client.BaseURL
}

func (c *Client) newRequest(ctx context.Context) *resty.Request {
	r := c.client.R()
	if ctx != nil {
		r.SetContext(ctx)
	}
	r.SetHeader("Accept", "application/json")
	r.SetHeader("User-Agent", "firemarket-client")
	return r
}

// do 发送请求；out 为 nil 时忽略响应体
func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	rc := c.newRequest(ctx)
	if body != nil {
		rc.SetHeader("Content-Type", "application/json")
		rc.SetBody(body)
	}
	if out != nil {
		rc.SetResult(out)
	}

	resp, err := rc.Execute(method, endpoint)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, endpoint)
	}
	if resp.IsSuccess() {
		return nil
	}
	return parseError(resp)
}

func parseError(resp *resty.Response) error {
	var er api.ErrorResponse
	if err := json.Unmarshal(resp.Body(), &er); err != nil || er.Code == "" {
		return &APIError{Status: resp.StatusCode(), Code: api.CodeInternal, Message: strings.TrimSpace(string(resp.Body()))}
	}
	return &APIError{Status: resp.StatusCode(), Code: er.Code, Message: er.Error}
}

func assetPath(id domain.AssetID, suffix string) string {
	return "/api/listings/" + strconv.FormatUint(uint64(id), 10) + suffix
}

// ---------- 查询 ----------

func (c *Client) Info(ctx context.Context) (*api.InfoResponse, error) {
	var out api.InfoResponse
	if err := c.do(ctx, http.MethodGet, "/api/info", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Asset(ctx context.Context, id domain.AssetID) (*api.AssetResponse, error) {
	var out api.AssetResponse
	if err := c.do(ctx, http.MethodGet, "/api/assets/"+strconv.FormatUint(uint64(id), 10), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Assets owner 为 nil 时返回全部
func (c *Client) Assets(ctx context.Context, owner *domain.Account) ([]domain.Asset, error) {
	endpoint := "/api/assets"
	if owner != nil {
		endpoint += "?owner=" + owner.Hex()
	}
	var out []domain.Asset
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Account(ctx context.Context, addr domain.Account) (*api.AccountResponse, error) {
	var out api.AccountResponse
	if err := c.do(ctx, http.MethodGet, "/api/accounts/"+addr.Hex(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Approval(ctx context.Context, owner, operator domain.Account) (bool, error) {
	var out api.ApprovalResponse
	if err := c.do(ctx, http.MethodGet, "/api/approvals/"+owner.Hex()+"/"+operator.Hex(), nil, &out); err != nil {
		return false, err
	}
	return out.Approved, nil
}

func (c *Client) Allowance(ctx context.Context, owner, spender domain.Account) (uint64, error) {
	var out api.AllowanceResponse
	if err := c.do(ctx, http.MethodGet, "/api/allowances/"+owner.Hex()+"/"+spender.Hex(), nil, &out); err != nil {
		return 0, err
	}
	return out.Amount, nil
}

func (c *Client) Listings(ctx context.Context, activeOnly bool) ([]domain.Listing, error) {
	var out []domain.Listing
	endpoint := "/api/listings?active=" + strconv.FormatBool(activeOnly)
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Listing(ctx context.Context, id domain.AssetID) (*domain.Listing, error) {
	var out domain.Listing
	if err := c.do(ctx, http.MethodGet, assetPath(id, ""), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Quote(ctx context.Context, id domain.AssetID) (*api.QuoteResponse, error) {
	var out api.QuoteResponse
	if err := c.do(ctx, http.MethodGet, assetPath(id, "/quote"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Receipts assetID 为 nil 时返回全部
func (c *Client) Receipts(ctx context.Context, assetID *domain.AssetID) ([]domain.SaleReceipt, error) {
	endpoint := "/api/receipts"
	if assetID != nil {
		endpoint += "?asset_id=" + strconv.FormatUint(uint64(*assetID), 10)
	}
	var out []domain.SaleReceipt
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ---------- 写操作 ----------

func (c *Client) Mint(ctx context.Context, from domain.Account, tokenURI, metadataURI string, royaltyRate uint64) (*domain.Asset, error) {
	var out api.MintResponse
	req := api.MintRequest{From: from.Hex(), TokenURI: tokenURI, MetadataURI: metadataURI, RoyaltyRate: royaltyRate}
	if err := c.do(ctx, http.MethodPost, "/api/assets", req, &out); err != nil {
		return nil, err
	}
	return &out.Asset, nil
}

func (c *Client) TransferAsset(ctx context.Context, from domain.Account, id domain.AssetID, to domain.Account) error {
	req := api.AssetTransferRequest{From: from.Hex(), To: to.Hex()}
	return c.do(ctx, http.MethodPost, "/api/assets/"+strconv.FormatUint(uint64(id), 10)+"/transfer", req, nil)
}

func (c *Client) SetApprovalForAll(ctx context.Context, owner, operator domain.Account, approved bool) error {
	req := api.ApprovalRequest{From: owner.Hex(), Operator: operator.Hex(), Approved: approved}
	return c.do(ctx, http.MethodPost, "/api/approvals", req, nil)
}

func (c *Client) Transfer(ctx context.Context, from, to domain.Account, amount uint64) error {
	req := api.PaymentTransferRequest{From: from.Hex(), To: to.Hex(), Amount: amount}
	return c.do(ctx, http.MethodPost, "/api/payments/transfer", req, nil)
}

func (c *Client) Approve(ctx context.Context, owner, spender domain.Account, amount uint64) error {
	req := api.PaymentApproveRequest{From: owner.Hex(), Spender: spender.Hex(), Amount: amount}
	return c.do(ctx, http.MethodPost, "/api/payments/approve", req, nil)
}

func (c *Client) TransferFrom(ctx context.Context, spender, owner, to domain.Account, amount uint64) error {
	req := api.PaymentTransferFromRequest{From: spender.Hex(), Owner: owner.Hex(), To: to.Hex(), Amount: amount}
	return c.do(ctx, http.MethodPost, "/api/payments/transfer-from", req, nil)
}

func (c *Client) List(ctx context.Context, seller domain.Account, id domain.AssetID, price uint64) (*domain.Listing, error) {
	var out domain.Listing
	req := api.ListRequest{From: seller.Hex(), AssetID: id, Price: price}
	if err := c.do(ctx, http.MethodPost, "/api/listings", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Cancel(ctx context.Context, caller domain.Account, id domain.AssetID) (*domain.Listing, error) {
	var out domain.Listing
	if err := c.do(ctx, http.MethodPost, assetPath(id, "/cancel"), api.CancelRequest{From: caller.Hex()}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Purchase(ctx context.Context, buyer domain.Account, id domain.AssetID, offered uint64) (*domain.SaleReceipt, error) {
	var out domain.SaleReceipt
	req := api.PurchaseRequest{From: buyer.Hex(), Offered: offered}
	if err := c.do(ctx, http.MethodPost, assetPath(id, "/purchase"), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
