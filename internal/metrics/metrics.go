package metrics

import (
	"expvar"
	"math"
	"sync"
)

var (
	// OpsCommitted 按操作名统计已提交的账本操作
	OpsCommitted = expvar.NewMap("ledger_ops_committed")
	// OpsRejected 按错误码统计被拒绝的账本操作
	OpsRejected = expvar.NewMap("ledger_ops_rejected")

	Sales           = expvar.NewInt("market_sales")
	SalesVolume     = expvar.NewInt("market_sales_volume")
	CommissionTotal = expvar.NewInt("market_commission_total")
	RoyaltyTotal    = expvar.NewInt("market_royalty_total")

	SnapshotSaves = expvar.NewInt("snapshot_saves")
	WSClients     = expvar.NewInt("ws_clients")
	RateLimited   = expvar.NewInt("api_rate_limited")
)

// ObserveOp 记录一次账本操作结果；errKind 为空表示已提交
func ObserveOp(op, errKind string) {
	if errKind == "" {
		OpsCommitted.Add(op, 1)
		return
	}
	OpsRejected.Add(errKind, 1)
}

var saleMu sync.Mutex

// ObserveSale 记录一笔成交；金额累计到 MaxInt64 封顶，不会回绕为负数
func ObserveSale(price, commission, royalty uint64) {
	saleMu.Lock()
	defer saleMu.Unlock()
	Sales.Add(1)
	addSaturating(SalesVolume, price)
	addSaturating(CommissionTotal, commission)
	addSaturating(RoyaltyTotal, royalty)
}

func addSaturating(v *expvar.Int, n uint64) {
	cur := v.Value()
	if cur < 0 || n > uint64(math.MaxInt64-cur) {
		v.Set(math.MaxInt64)
		return
	}
	v.Add(int64(n))
}
