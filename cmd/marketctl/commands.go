package main

import (
	"fmt"

	"github.com/openfire/firemarket/internal/domain"
	"github.com/openfire/firemarket/internal/wallet"
)

func cmdInfo(e *env, args []string) error {
	fs := newFlags("info")
	_ = fs.Parse(args)
	info, err := e.client.Info(e.ctx)
	if err != nil {
		return err
	}
	g := info.Genesis
	printKV(
		"server", e.client.BaseURL(),
		"token", fmt.Sprintf("%s (%s, %d decimals)", g.TokenName, g.TokenSymbol, g.TokenDecimals),
		"total supply", fmt.Sprint(info.TotalSupply),
		"holder", g.Holder.Hex(),
		"marketplace", info.Marketplace.Hex(),
		"operator", info.Operator.Hex(),
		"commission", info.CommissionPercent+"%",
		"next asset", fmt.Sprint(info.NextAssetID),
		"subscribers", fmt.Sprint(info.Subscribers),
	)
	return nil
}

func cmdAccounts(e *env, args []string) error {
	fs := newFlags("accounts")
	n := fs.Int("n", e.devCount, "派生账户数量")
	_ = fs.Parse(args)
	devs, err := wallet.DeriveAccounts(e.mnemonic, *n)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(devs))
	for _, d := range devs {
		acc, err := e.client.Account(e.ctx, d.Address)
		if err != nil {
			return err
		}
		rows = append(rows, []string{fmt.Sprintf("#%d", d.Index), d.Address.Hex(), fmt.Sprint(acc.Balance), fmt.Sprint(acc.Holdings)})
	}
	printTable([]string{"", "ADDRESS", "BALANCE", "ASSETS"}, rows)
	return nil
}

func cmdMint(e *env, args []string) error {
	fs := newFlags("mint")
	from := fs.String("from", "", "创作者")
	uri := fs.String("uri", "", "token uri")
	meta := fs.String("meta", "", "metadata uri")
	royalty := fs.Uint64("royalty", 0, "版税百分比 0-10")
	_ = fs.Parse(args)
	if _, err := wantArgs(fs, 0); err != nil {
		return err
	}
	creator, err := e.caller(*from)
	if err != nil {
		return err
	}
	a, err := e.client.Mint(e.ctx, creator, *uri, *meta, *royalty)
	if err != nil {
		return err
	}
	printAssets([]domain.Asset{*a})
	return nil
}

func cmdAsset(e *env, args []string) error {
	fs := newFlags("asset")
	_ = fs.Parse(args)
	rest, err := wantArgs(fs, 1)
	if err != nil {
		return err
	}
	id, err := parseAssetID(rest[0])
	if err != nil {
		return err
	}
	resp, err := e.client.Asset(e.ctx, id)
	if err != nil {
		return err
	}
	printAssets([]domain.Asset{resp.Asset})
	if resp.Listing != nil {
		fmt.Println()
		printListings([]domain.Listing{*resp.Listing})
	}
	return nil
}

func cmdAssets(e *env, args []string) error {
	fs := newFlags("assets")
	owner := fs.String("owner", "", "只看该账户持有的资产")
	_ = fs.Parse(args)
	var filter *domain.Account
	if *owner != "" {
		acc, err := e.account(*owner)
		if err != nil {
			return err
		}
		filter = &acc
	}
	assets, err := e.client.Assets(e.ctx, filter)
	if err != nil {
		return err
	}
	printAssets(assets)
	return nil
}

func cmdTransferAsset(e *env, args []string) error {
	fs := newFlags("transfer-asset")
	from := fs.String("from", "", "发起人（持有者或已授权操作员）")
	_ = fs.Parse(args)
	rest, err := wantArgs(fs, 2)
	if err != nil {
		return err
	}
	caller, err := e.caller(*from)
	if err != nil {
		return err
	}
	id, err := parseAssetID(rest[0])
	if err != nil {
		return err
	}
	to, err := e.account(rest[1])
	if err != nil {
		return err
	}
	if err := e.client.TransferAsset(e.ctx, caller, id, to); err != nil {
		return err
	}
	fmt.Printf("asset %d -> %s\n", id, to.Hex())
	return nil
}

func cmdApproveMarket(e *env, args []string) error {
	fs := newFlags("approve-market")
	from := fs.String("from", "", "持有者")
	revoke := fs.Bool("revoke", false, "撤销授权")
	_ = fs.Parse(args)
	owner, err := e.caller(*from)
	if err != nil {
		return err
	}
	info, err := e.client.Info(e.ctx)
	if err != nil {
		return err
	}
	if err := e.client.SetApprovalForAll(e.ctx, owner, info.Marketplace, !*revoke); err != nil {
		return err
	}
	fmt.Printf("marketplace %s approved=%t for %s\n", info.Marketplace.Hex(), !*revoke, owner.Hex())
	return nil
}

func cmdList(e *env, args []string) error {
	fs := newFlags("list")
	from := fs.String("from", "", "卖家")
	_ = fs.Parse(args)
	rest, err := wantArgs(fs, 2)
	if err != nil {
		return err
	}
	seller, err := e.caller(*from)
	if err != nil {
		return err
	}
	id, err := parseAssetID(rest[0])
	if err != nil {
		return err
	}
	price, err := parseUint("price", rest[1])
	if err != nil {
		return err
	}
	l, err := e.client.List(e.ctx, seller, id, price)
	if err != nil {
		return err
	}
	printListings([]domain.Listing{*l})
	return nil
}

func cmdCancel(e *env, args []string) error {
	fs := newFlags("cancel")
	from := fs.String("from", "", "卖家")
	_ = fs.Parse(args)
	rest, err := wantArgs(fs, 1)
	if err != nil {
		return err
	}
	caller, err := e.caller(*from)
	if err != nil {
		return err
	}
	id, err := parseAssetID(rest[0])
	if err != nil {
		return err
	}
	l, err := e.client.Cancel(e.ctx, caller, id)
	if err != nil {
		return err
	}
	printListings([]domain.Listing{*l})
	return nil
}

func cmdQuote(e *env, args []string) error {
	fs := newFlags("quote")
	_ = fs.Parse(args)
	rest, err := wantArgs(fs, 1)
	if err != nil {
		return err
	}
	id, err := parseAssetID(rest[0])
	if err != nil {
		return err
	}
	q, err := e.client.Quote(e.ctx, id)
	if err != nil {
		return err
	}
	printKV(
		"asset", fmt.Sprint(q.AssetID),
		"seller", q.Seller.Hex(),
		"creator", q.Creator.Hex(),
		"price", fmt.Sprint(q.Price),
		"commission", fmt.Sprint(q.Commission),
		"royalty", fmt.Sprint(q.Royalty),
		"seller proceeds", fmt.Sprint(q.SellerProceeds),
	)
	return nil
}

// cmdPurchase 未给出报价时按挂单价出价
func cmdPurchase(e *env, args []string) error {
	fs := newFlags("purchase")
	from := fs.String("from", "", "买家")
	_ = fs.Parse(args)
	if fs.NArg() < 1 || fs.NArg() > 2 {
		fs.Usage()
		return fmt.Errorf("purchase: expected ID [OFFER]")
	}
	buyer, err := e.caller(*from)
	if err != nil {
		return err
	}
	id, err := parseAssetID(fs.Arg(0))
	if err != nil {
		return err
	}
	var offered uint64
	if fs.NArg() == 2 {
		if offered, err = parseUint("offer", fs.Arg(1)); err != nil {
			return err
		}
	} else {
		l, err := e.client.Listing(e.ctx, id)
		if err != nil {
			return err
		}
		offered = l.SellingPrice
	}
	r, err := e.client.Purchase(e.ctx, buyer, id, offered)
	if err != nil {
		return err
	}
	printReceipts([]domain.SaleReceipt{*r})
	return nil
}

func cmdListings(e *env, args []string) error {
	fs := newFlags("listings")
	all := fs.Bool("all", false, "包含已下架/已成交的记录")
	_ = fs.Parse(args)
	ls, err := e.client.Listings(e.ctx, !*all)
	if err != nil {
		return err
	}
	printListings(ls)
	return nil
}

func cmdReceipts(e *env, args []string) error {
	fs := newFlags("receipts")
	asset := fs.String("asset", "", "只看该资产的成交")
	_ = fs.Parse(args)
	var filter *domain.AssetID
	if *asset != "" {
		id, err := parseAssetID(*asset)
		if err != nil {
			return err
		}
		filter = &id
	}
	rs, err := e.client.Receipts(e.ctx, filter)
	if err != nil {
		return err
	}
	printReceipts(rs)
	return nil
}

func cmdBalance(e *env, args []string) error {
	fs := newFlags("balance")
	_ = fs.Parse(args)
	rest, err := wantArgs(fs, 1)
	if err != nil {
		return err
	}
	addr, err := e.account(rest[0])
	if err != nil {
		return err
	}
	acc, err := e.client.Account(e.ctx, addr)
	if err != nil {
		return err
	}
	printKV(
		"address", acc.Address.Hex(),
		"balance", fmt.Sprintf("%d (%s)", acc.Balance, acc.BalanceDisplay),
		"assets held", fmt.Sprint(acc.Holdings),
	)
	if len(acc.Assets) > 0 {
		fmt.Println()
		printAssets(acc.Assets)
	}
	return nil
}

func cmdAllowance(e *env, args []string) error {
	fs := newFlags("allowance")
	_ = fs.Parse(args)
	rest, err := wantArgs(fs, 2)
	if err != nil {
		return err
	}
	owner, err := e.account(rest[0])
	if err != nil {
		return err
	}
	spender, err := e.account(rest[1])
	if err != nil {
		return err
	}
	amount, err := e.client.Allowance(e.ctx, owner, spender)
	if err != nil {
		return err
	}
	fmt.Println(amount)
	return nil
}

func cmdPay(e *env, args []string) error {
	fs := newFlags("pay")
	from := fs.String("from", "", "付款人")
	_ = fs.Parse(args)
	rest, err := wantArgs(fs, 2)
	if err != nil {
		return err
	}
	payer, err := e.caller(*from)
	if err != nil {
		return err
	}
	to, err := e.account(rest[0])
	if err != nil {
		return err
	}
	amount, err := parseUint("amount", rest[1])
	if err != nil {
		return err
	}
	if err := e.client.Transfer(e.ctx, payer, to, amount); err != nil {
		return err
	}
	fmt.Printf("%d: %s -> %s\n", amount, payer.Hex(), to.Hex())
	return nil
}

func cmdApprove(e *env, args []string) error {
	fs := newFlags("approve")
	from := fs.String("from", "", "授权人")
	_ = fs.Parse(args)
	rest, err := wantArgs(fs, 2)
	if err != nil {
		return err
	}
	owner, err := e.caller(*from)
	if err != nil {
		return err
	}
	spender, err := e.account(rest[0])
	if err != nil {
		return err
	}
	amount, err := parseUint("amount", rest[1])
	if err != nil {
		return err
	}
	if err := e.client.Approve(e.ctx, owner, spender, amount); err != nil {
		return err
	}
	fmt.Printf("allowance %s -> %s = %d\n", owner.Hex(), spender.Hex(), amount)
	return nil
}

func cmdTransferFrom(e *env, args []string) error {
	fs := newFlags("transfer-from")
	from := fs.String("from", "", "spender")
	_ = fs.Parse(args)
	rest, err := wantArgs(fs, 3)
	if err != nil {
		return err
	}
	spender, err := e.caller(*from)
	if err != nil {
		return err
	}
	owner, err := e.account(rest[0])
	if err != nil {
		return err
	}
	to, err := e.account(rest[1])
	if err != nil {
		return err
	}
	amount, err := parseUint("amount", rest[2])
	if err != nil {
		return err
	}
	if err := e.client.TransferFrom(e.ctx, spender, owner, to, amount); err != nil {
		return err
	}
	fmt.Printf("%d: %s -> %s (spender %s)\n", amount, owner.Hex(), to.Hex(), spender.Hex())
	return nil
}
