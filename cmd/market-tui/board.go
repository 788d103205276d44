package main

import (
	"sort"

	"github.com/openfire/firemarket/internal/domain"
	"github.com/openfire/firemarket/internal/events"
)

const maxRecentSales = 12

// board 终端展示的市场状态：在售挂单与最近成交
type board struct {
	listings map[domain.AssetID]domain.Listing
	sales    []domain.SaleReceipt // 新的在前
	lastSeq  uint64
	volume   uint64
	fees     uint64
}

func newBoard() *board {
	return &board{listings: make(map[domain.AssetID]domain.Listing)}
}

// reset 用 REST 拉取的快照替换当前状态
func (b *board) reset(active []domain.Listing, receipts []domain.SaleReceipt) {
	b.listings = make(map[domain.AssetID]domain.Listing, len(active))
	for _, l := range active {
		if l.OnSale {
			b.listings[l.AssetID] = l
		}
	}
	b.sales = b.sales[:0]
	b.volume, b.fees = 0, 0
	b.lastSeq = 0
	for _, r := range receipts {
		b.addSale(r)
	}
}

// addSale 快照与事件流可能重叠，按凭证 id 去重
func (b *board) addSale(r domain.SaleReceipt) {
	for _, s := range b.sales {
		if s.ID == r.ID {
			return
		}
	}
	b.volume += r.Price
	b.fees += r.Commission
	b.sales = append([]domain.SaleReceipt{r}, b.sales...)
	if len(b.sales) > maxRecentSales {
		b.sales = b.sales[:maxRecentSales]
	}
}

// apply 处理一条事件，返回是否影响展示
func (b *board) apply(env events.RawEnvelope) (bool, error) {
	if env.Seq != 0 && env.Seq <= b.lastSeq {
		return false, nil
	}
	b.lastSeq = env.Seq

	ev, err := env.Decode()
	if err != nil {
		return false, err
	}
	switch e := ev.(type) {
	case *events.ListedEvent:
		b.listings[e.Listing.AssetID] = e.Listing
	case *events.ListingCancelledEvent:
		delete(b.listings, e.AssetID)
	case *events.SoldEvent:
		delete(b.listings, e.Receipt.AssetID)
		b.addSale(e.Receipt)
	default:
		return false, nil
	}
	return true, nil
}

// active 按资产编号排序的在售挂单
func (b *board) active() []domain.Listing {
	out := make([]domain.Listing, 0, len(b.listings))
	for _, l := range b.listings {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssetID < out[j].AssetID })
	return out
}
