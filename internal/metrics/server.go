package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/openfire/firemarket/pkg/logger"
)

// Summary 市场指标摘要（/debug/market）
type Summary struct {
	Sales           int64 `json:"sales"`
	SalesVolume     int64 `json:"sales_volume"`
	CommissionTotal int64 `json:"commission_total"`
	RoyaltyTotal    int64 `json:"royalty_total"`
	WSClients       int64 `json:"ws_clients"`
	SnapshotSaves   int64 `json:"snapshot_saves"`
	RateLimited     int64 `json:"rate_limited"`
}

// Snapshot 读取当前计数
func Snapshot() Summary {
	return Summary{
		Sales:           Sales.Value(),
		SalesVolume:     SalesVolume.Value(),
		CommissionTotal: CommissionTotal.Value(),
		RoyaltyTotal:    RoyaltyTotal.Value(),
		WSClients:       WSClients.Value(),
		SnapshotSaves:   SnapshotSaves.Value(),
		RateLimited:     RateLimited.Value(),
	}
}

// Handler /debug/vars、/debug/market 与 /debug/pprof
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/debug/vars", expvar.Handler())
	mux.HandleFunc("/debug/market", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Snapshot())
	})

	// 不使用 DefaultServeMux
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}

// StartAsync 非阻塞启动 debug 服务，ctx 结束时关闭。建议只监听 localhost。
func StartAsync(ctx context.Context, listenAddr string) (*http.Server, error) {
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, err
	}
	s := &http.Server{
		Handler:           Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := s.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("metrics server error: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
	}()

	logger.Infof("metrics/pprof listening on %s", ln.Addr())
	return s, nil
}
