package bootstrap

import (
	"context"
	"time"

	"github.com/openfire/firemarket/internal/metrics"
	"github.com/openfire/firemarket/pkg/sigchan"
)

// RunCheckpoints 账本有提交时每隔 interval 写一次快照，ctx 结束时返回。
// 只对支持 Checkpoint 的存储（memory）有意义。
func (r *Runtime) RunCheckpoints(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	events, cancel := r.Bus.Subscribe()
	defer cancel()

	dirty := sigchan.New(1)
	go func() {
		for range events {
			dirty.Emit()
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if dirty.Pending() {
				r.checkpoint()
			}
		}
	}
}

func (r *Runtime) checkpoint() {
	ok, err := r.Store.Checkpoint()
	if err != nil {
		log.Errorf("写快照失败: %v", err)
		return
	}
	if ok {
		metrics.SnapshotSaves.Add(1)
		log.Debug("快照已写出")
	}
}
