// Package store 账本持久化层：在事务型 KV 之上提供按键 O(1) 访问的类型化记录。
//
// 键布局：
//
//	meta/genesis, meta/next_asset_id, meta/total_supply, meta/next_receipt
//	asset/<id>                  holding/<owner>
//	approval/<owner>/<operator> balance/<account>
//	allowance/<owner>/<spender> listing/<id>
//	receipt/<seq>
//
// 编号左侧补零到 20 位，保证前缀遍历按编号升序。
package store

import (
	"errors"
	"fmt"
)

// ErrNotFound 键不存在
var ErrNotFound = errors.New("store: key not found")

// KV 事务型键值存储（memory / badger / sqlite 三种实现）。
// Update 中 fn 返回错误时，本次事务的全部写入都必须丢弃。
type KV interface {
	View(fn func(tx KVTx) error) error
	Update(fn func(tx KVTx) error) error
	Close() error
}

// KVTx 单个事务内的读写
type KVTx interface {
	// Get 不存在时返回 ErrNotFound
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
	// Iterate 按键升序遍历前缀下的所有键
	Iterate(prefix string, fn func(key string, value []byte) error) error
}

// Store 类型化的账本存储
type Store struct {
	kv KV
}

// New 包装一个 KV 实现
func New(kv KV) *Store {
	return &Store{kv: kv}
}

// View 只读事务
func (s *Store) View(fn func(tx *Tx) error) error {
	return s.kv.View(func(kvtx KVTx) error {
		return fn(&Tx{kv: kvtx})
	})
}

// Update 读写事务：fn 返回错误时整体回滚
func (s *Store) Update(fn func(tx *Tx) error) error {
	return s.kv.Update(func(kvtx KVTx) error {
		return fn(&Tx{kv: kvtx})
	})
}

// Close 关闭底层存储
func (s *Store) Close() error {
	if s == nil || s.kv == nil {
		return nil
	}
	if err := s.kv.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}

// Checkpointer 支持主动落盘的 KV（memory 快照）。
// 返回 false 表示没有配置落盘位置。
type Checkpointer interface {
	Checkpoint() (bool, error)
}

// Checkpoint 底层 KV 支持时立即落盘，否则什么都不做（badger/sqlite 每次提交即持久）
func (s *Store) Checkpoint() (bool, error) {
	c, ok := s.kv.(Checkpointer)
	if !ok {
		return false, nil
	}
	return c.Checkpoint()
}
