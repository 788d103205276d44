// Package memory 进程内 KV 实现：map + 撤销日志，事务失败时逐键恢复。
package memory

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/openfire/firemarket/internal/store"
	"github.com/openfire/firemarket/pkg/logger"
	"github.com/openfire/firemarket/pkg/persistence"
)

// KV 内存存储。同一时刻只允许一个写事务。
type KV struct {
	mu   sync.RWMutex
	data map[string][]byte

	snapshot persistence.Store // 可选：关闭时保存快照
}

// New 创建空的内存存储
func New() *KV {
	return &KV{data: make(map[string][]byte)}
}

// NewPersistent 从快照恢复（不存在则为空），Close 时写回快照。
func NewPersistent(svc persistence.Service, id string) (*KV, error) {
	kv := New()
	kv.snapshot = svc.NewStore("ledger", id)

	var saved map[string]string
	err := kv.snapshot.Load(&saved)
	if err != nil && !errors.Is(err, persistence.ErrNotExists) {
		return nil, fmt.Errorf("load snapshot %s: %w", kv.snapshot.Path(), err)
	}
	for k, v := range saved {
		kv.data[k] = []byte(v)
	}
	logger.Infof("内存账本已加载快照: %s (%d 条记录)", kv.snapshot.Path(), len(saved))
	return kv, nil
}

// Save 立即写出快照
func (kv *KV) Save() error {
	if kv.snapshot == nil {
		return nil
	}
	kv.mu.RLock()
	out := make(map[string]string, len(kv.data))
	for k, v := range kv.data {
		out[k] = string(v)
	}
	kv.mu.RUnlock()
	return kv.snapshot.Save(out)
}

// Checkpoint 实现 store.Checkpointer
func (kv *KV) Checkpoint() (bool, error) {
	if kv.snapshot == nil {
		return false, nil
	}
	return true, kv.Save()
}

// Len 记录数量
func (kv *KV) Len() int {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	return len(kv.data)
}

func (kv *KV) View(fn func(tx store.KVTx) error) error {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	return fn(&tx{kv: kv, readOnly: true})
}

func (kv *KV) Update(fn func(tx store.KVTx) error) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	t := &tx{kv: kv, undo: make(map[string]undoEntry)}
	// panic 与返回错误一样全部撤销，再继续向上抛
	defer func() {
		if r := recover(); r != nil {
			t.rollback()
			panic(r)
		}
	}()
	if err := fn(t); err != nil {
		t.rollback()
		return err
	}
	return nil
}

func (kv *KV) Close() error {
	return kv.Save()
}

type undoEntry struct {
	value   []byte
	existed bool
}

type tx struct {
	kv       *KV
	readOnly bool
	undo     map[string]undoEntry
}

var errReadOnly = errors.New("memory: write in read-only transaction")

func (t *tx) Get(key string) ([]byte, error) {
	v, ok := t.kv.data[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// remember 每个键只记录第一次修改前的值
func (t *tx) remember(key string) {
	if _, seen := t.undo[key]; seen {
		return
	}
	old, existed := t.kv.data[key]
	t.undo[key] = undoEntry{value: old, existed: existed}
}

func (t *tx) Set(key string, value []byte) error {
	if t.readOnly {
		return errReadOnly
	}
	t.remember(key)
	v := make([]byte, len(value))
	copy(v, value)
	t.kv.data[key] = v
	return nil
}

func (t *tx) Delete(key string) error {
	if t.readOnly {
		return errReadOnly
	}
	t.remember(key)
	delete(t.kv.data, key)
	return nil
}

func (t *tx) Iterate(prefix string, fn func(key string, value []byte) error) error {
	keys := make([]string, 0)
	for k := range t.kv.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		v, ok := t.kv.data[k]
		if !ok {
			continue
		}
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) rollback() {
	for k, u := range t.undo {
		if u.existed {
			t.kv.data[k] = u.value
		} else {
			delete(t.kv.data, k)
		}
	}
}
