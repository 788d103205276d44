package ledger

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/openfire/firemarket/internal/domain"
	"github.com/openfire/firemarket/internal/events"
	"github.com/openfire/firemarket/internal/metrics"
	"github.com/openfire/firemarket/internal/store"
)

var log = logrus.WithField("component", "ledger")

// executor 所有账本操作的串行执行器：一把全局锁 + 一个存储事务。
// 操作要么全部提交，要么零写入；事件在提交后、释放锁之前发布，Seq 与提交顺序一致。
type executor struct {
	mu    sync.RWMutex
	store *store.Store
	bus   *events.Bus
}

// txn 单个操作的事务上下文，收集待发布事件
type txn struct {
	*store.Tx
	events []events.Event
}

func (t *txn) emit(e events.Event) {
	t.events = append(t.events, e)
}

// update 串行执行一个写操作
func (x *executor) update(op string, fields logrus.Fields, fn func(t *txn) error) error {
	var committed []events.Event

	x.mu.Lock()
	err := x.store.Update(func(tx *store.Tx) error {
		t := &txn{Tx: tx}
		if err := fn(t); err != nil {
			return err
		}
		committed = t.events
		return nil
	})
	if err == nil {
		x.bus.Publish(op, committed...)
	}
	x.mu.Unlock()

	entry := log.WithFields(fields).WithField("op", op)
	if err != nil {
		kind := domain.ErrorKind(err)
		if kind == "" {
			kind = "Internal"
			entry.Errorf("账本操作失败（已回滚）: %v", err)
		} else {
			entry.WithField("kind", kind).Debugf("账本操作被拒绝: %v", err)
		}
		metrics.ObserveOp(op, kind)
		return err
	}

	metrics.ObserveOp(op, "")
	entry.Debug("账本操作已提交")
	return nil
}

// view 只读操作：与写操作互斥，读到的总是最新已提交状态
func (x *executor) view(fn func(tx *store.Tx) error) error {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.store.View(fn)
}

// notFound 把存储层的 ErrNotFound 映射为账本错误
func notFound(err error, kind error) error {
	if errors.Is(err, store.ErrNotFound) {
		return kind
	}
	return err
}
