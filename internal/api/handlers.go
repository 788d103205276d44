package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/openfire/firemarket/internal/domain"
	"github.com/openfire/firemarket/internal/policy"
)

func (s *Server) handleInfo(c *gin.Context) (int, any, error) {
	g := s.engine.Genesis()
	total, err := s.engine.Payment().TotalSupply()
	if err != nil {
		return 0, nil, err
	}
	next, err := s.engine.Registry().NextID()
	if err != nil {
		return 0, nil, err
	}
	m := s.engine.Market()
	return http.StatusOK, InfoResponse{
		Genesis:           g,
		Marketplace:       m.Account(),
		Operator:          m.Operator(),
		CommissionPercent: policy.FormatPercent(m.FeePolicy().CommissionBps),
		TotalSupply:       total,
		NextAssetID:       next,
		Subscribers:       s.engine.Bus().Subscribers(),
	}, nil
}

// ---------- asset registry ----------

func (s *Server) handleMint(c *gin.Context) (int, any, error) {
	var req MintRequest
	if err := bindJSON(c, &req); err != nil {
		return 0, nil, err
	}
	from, err := parseAccount("from", req.From)
	if err != nil {
		return 0, nil, err
	}
	id, err := s.engine.Registry().Mint(from, req.TokenURI, req.MetadataURI, req.RoyaltyRate)
	if err != nil {
		return 0, nil, err
	}
	asset, err := s.engine.Registry().Asset(id)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusCreated, MintResponse{Asset: *asset}, nil
}

func (s *Server) handleAssetsList(c *gin.Context) (int, any, error) {
	var owner *domain.Account
	if q := c.Query("owner"); q != "" {
		a, err := parseAccount("owner", q)
		if err != nil {
			return 0, nil, err
		}
		owner = &a
	}
	assets, err := s.engine.Registry().Assets(owner)
	if err != nil {
		return 0, nil, err
	}
	if assets == nil {
		assets = []domain.Asset{}
	}
	return http.StatusOK, assets, nil
}

func (s *Server) handleAssetGet(c *gin.Context) (int, any, error) {
	id, err := paramAssetID(c)
	if err != nil {
		return 0, nil, err
	}
	asset, err := s.engine.Registry().Asset(id)
	if err != nil {
		return 0, nil, err
	}
	resp := AssetResponse{Asset: *asset}
	l, err := s.engine.Market().GetListing(id)
	switch {
	case err == nil:
		resp.Listing = l
	case !errors.Is(err, domain.ErrUnknownListing):
		return 0, nil, err
	}
	return http.StatusOK, resp, nil
}

func (s *Server) handleAssetTransfer(c *gin.Context) (int, any, error) {
	id, err := paramAssetID(c)
	if err != nil {
		return 0, nil, err
	}
	var req AssetTransferRequest
	if err := bindJSON(c, &req); err != nil {
		return 0, nil, err
	}
	from, err := parseAccount("from", req.From)
	if err != nil {
		return 0, nil, err
	}
	to, err := parseAccount("to", req.To)
	if err != nil {
		return 0, nil, err
	}
	if err := s.engine.Registry().Transfer(from, id, to); err != nil {
		return 0, nil, err
	}
	return http.StatusNoContent, nil, nil
}

func (s *Server) handleSetApproval(c *gin.Context) (int, any, error) {
	var req ApprovalRequest
	if err := bindJSON(c, &req); err != nil {
		return 0, nil, err
	}
	owner, err := parseAccount("from", req.From)
	if err != nil {
		return 0, nil, err
	}
	operator, err := parseAccount("operator", req.Operator)
	if err != nil {
		return 0, nil, err
	}
	if err := s.engine.Registry().SetApprovalForAll(owner, operator, req.Approved); err != nil {
		return 0, nil, err
	}
	return http.StatusOK, ApprovalResponse{Owner: owner, Operator: operator, Approved: req.Approved}, nil
}

func (s *Server) handleApprovalGet(c *gin.Context) (int, any, error) {
	owner, err := paramAccount(c, "owner")
	if err != nil {
		return 0, nil, err
	}
	operator, err := paramAccount(c, "operator")
	if err != nil {
		return 0, nil, err
	}
	ok, err := s.engine.Registry().IsApprovedForAll(owner, operator)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, ApprovalResponse{Owner: owner, Operator: operator, Approved: ok}, nil
}

// ---------- payment ledger ----------

func (s *Server) handleAccountGet(c *gin.Context) (int, any, error) {
	addr, err := paramAccount(c, "addr")
	if err != nil {
		return 0, nil, err
	}
	bal, err := s.engine.Payment().BalanceOf(addr)
	if err != nil {
		return 0, nil, err
	}
	holdings, err := s.engine.Registry().BalanceOf(addr)
	if err != nil {
		return 0, nil, err
	}
	assets, err := s.engine.Registry().Assets(&addr)
	if err != nil {
		return 0, nil, err
	}
	if assets == nil {
		assets = []domain.Asset{}
	}
	return http.StatusOK, AccountResponse{
		Address:        addr,
		Balance:        bal,
		BalanceDisplay: policy.FormatAmount(bal, int32(s.engine.Genesis().TokenDecimals)),
		Holdings:       holdings,
		Assets:         assets,
	}, nil
}

func (s *Server) handlePaymentTransfer(c *gin.Context) (int, any, error) {
	var req PaymentTransferRequest
	if err := bindJSON(c, &req); err != nil {
		return 0, nil, err
	}
	from, err := parseAccount("from", req.From)
	if err != nil {
		return 0, nil, err
	}
	to, err := parseAccount("to", req.To)
	if err != nil {
		return 0, nil, err
	}
	if err := s.engine.Payment().Transfer(from, to, req.Amount); err != nil {
		return 0, nil, err
	}
	return http.StatusNoContent, nil, nil
}

func (s *Server) handlePaymentApprove(c *gin.Context) (int, any, error) {
	var req PaymentApproveRequest
	if err := bindJSON(c, &req); err != nil {
		return 0, nil, err
	}
	owner, err := parseAccount("from", req.From)
	if err != nil {
		return 0, nil, err
	}
	spender, err := parseAccount("spender", req.Spender)
	if err != nil {
		return 0, nil, err
	}
	if err := s.engine.Payment().Approve(owner, spender, req.Amount); err != nil {
		return 0, nil, err
	}
	return http.StatusOK, AllowanceResponse{Owner: owner, Spender: spender, Amount: req.Amount}, nil
}

func (s *Server) handlePaymentTransferFrom(c *gin.Context) (int, any, error) {
	var req PaymentTransferFromRequest
	if err := bindJSON(c, &req); err != nil {
		return 0, nil, err
	}
	spender, err := parseAccount("from", req.From)
	if err != nil {
		return 0, nil, err
	}
	owner, err := parseAccount("owner", req.Owner)
	if err != nil {
		return 0, nil, err
	}
	to, err := parseAccount("to", req.To)
	if err != nil {
		return 0, nil, err
	}
	if err := s.engine.Payment().TransferFrom(spender, owner, to, req.Amount); err != nil {
		return 0, nil, err
	}
	return http.StatusNoContent, nil, nil
}

func (s *Server) handleAllowanceGet(c *gin.Context) (int, any, error) {
	owner, err := paramAccount(c, "owner")
	if err != nil {
		return 0, nil, err
	}
	spender, err := paramAccount(c, "spender")
	if err != nil {
		return 0, nil, err
	}
	n, err := s.engine.Payment().Allowance(owner, spender)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, AllowanceResponse{Owner: owner, Spender: spender, Amount: n}, nil
}

// ---------- marketplace ----------

func (s *Server) handleListingsList(c *gin.Context) (int, any, error) {
	activeOnly := true
	if q := c.Query("active"); q != "" {
		v, err := strconv.ParseBool(q)
		if err != nil {
			return 0, nil, badRequestf("invalid active flag %q", q)
		}
		activeOnly = v
	}
	listings, err := s.engine.Market().Listings(activeOnly)
	if err != nil {
		return 0, nil, err
	}
	if listings == nil {
		listings = []domain.Listing{}
	}
	return http.StatusOK, listings, nil
}

func (s *Server) handleListingGet(c *gin.Context) (int, any, error) {
	id, err := paramAssetID(c)
	if err != nil {
		return 0, nil, err
	}
	l, err := s.engine.Market().GetListing(id)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, l, nil
}

func (s *Server) handleQuote(c *gin.Context) (int, any, error) {
	id, err := paramAssetID(c)
	if err != nil {
		return 0, nil, err
	}
	q, err := s.engine.Market().Quote(id)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, q, nil
}

func (s *Server) handleList(c *gin.Context) (int, any, error) {
	var req ListRequest
	if err := bindJSON(c, &req); err != nil {
		return 0, nil, err
	}
	seller, err := parseAccount("from", req.From)
	if err != nil {
		return 0, nil, err
	}
	if err := s.engine.Market().List(seller, req.AssetID, req.Price); err != nil {
		return 0, nil, err
	}
	l, err := s.engine.Market().GetListing(req.AssetID)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusCreated, l, nil
}

func (s *Server) handleCancel(c *gin.Context) (int, any, error) {
	id, err := paramAssetID(c)
	if err != nil {
		return 0, nil, err
	}
	var req CancelRequest
	if err := bindJSON(c, &req); err != nil {
		return 0, nil, err
	}
	caller, err := parseAccount("from", req.From)
	if err != nil {
		return 0, nil, err
	}
	if err := s.engine.Market().Cancel(caller, id); err != nil {
		return 0, nil, err
	}
	l, err := s.engine.Market().GetListing(id)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, l, nil
}

func (s *Server) handlePurchase(c *gin.Context) (int, any, error) {
	id, err := paramAssetID(c)
	if err != nil {
		return 0, nil, err
	}
	var req PurchaseRequest
	if err := bindJSON(c, &req); err != nil {
		return 0, nil, err
	}
	buyer, err := parseAccount("from", req.From)
	if err != nil {
		return 0, nil, err
	}
	receipt, err := s.engine.Market().Purchase(buyer, id, req.Offered)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, receipt, nil
}

func (s *Server) handleReceipts(c *gin.Context) (int, any, error) {
	var filter *domain.AssetID
	if q := c.Query("asset_id"); q != "" {
		id, err := parseAssetID(q)
		if err != nil {
			return 0, nil, err
		}
		filter = &id
	}
	receipts, err := s.engine.Market().Receipts(filter)
	if err != nil {
		return 0, nil, err
	}
	if receipts == nil {
		receipts = []domain.SaleReceipt{}
	}
	return http.StatusOK, receipts, nil
}
