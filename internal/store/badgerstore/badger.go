// Package badgerstore Badger 事务型 KV 实现，db.Update 失败时由 Badger 丢弃整个事务。
package badgerstore

import (
	"errors"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/openfire/firemarket/internal/store"
)

// Options 打开参数
type Options struct {
	Path          string
	InMemory      bool   // 测试用，不落盘
	EncryptionKey []byte // 32 字节；为空时不加密
	SyncWrites    bool
}

// KV Badger 存储
type KV struct {
	db *badger.DB
}

// Open 打开（或创建）Badger 数据库
func Open(opts Options) (*KV, error) {
	path := strings.TrimSpace(opts.Path)
	if path == "" && !opts.InMemory {
		return nil, errors.New("badgerstore: path is required")
	}
	bopts := badger.DefaultOptions(path).
		WithLogger(nil).
		WithSyncWrites(opts.SyncWrites)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	if len(opts.EncryptionKey) > 0 {
		// 加密模式下 Badger 要求开启 index cache
		bopts = bopts.
			WithEncryptionKey(opts.EncryptionKey).
			WithIndexCacheSize(100 << 20)
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, err
	}
	return &KV{db: db}, nil
}

func (kv *KV) View(fn func(tx store.KVTx) error) error {
	return kv.db.View(func(txn *badger.Txn) error {
		return fn(&tx{txn: txn})
	})
}

func (kv *KV) Update(fn func(tx store.KVTx) error) error {
	return kv.db.Update(func(txn *badger.Txn) error {
		return fn(&tx{txn: txn})
	})
}

func (kv *KV) Close() error {
	if kv == nil || kv.db == nil {
		return nil
	}
	return kv.db.Close()
}

type tx struct {
	txn *badger.Txn
}

func (t *tx) Get(key string) ([]byte, error) {
	item, err := t.txn.Get([]byte(key))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (t *tx) Set(key string, value []byte) error {
	return t.txn.Set([]byte(key), value)
}

func (t *tx) Delete(key string) error {
	return t.txn.Delete([]byte(key))
}

func (t *tx) Iterate(prefix string, fn func(key string, value []byte) error) error {
	it := t.txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	p := []byte(prefix)
	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		item := it.Item()
		v, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := fn(string(item.KeyCopy(nil)), v); err != nil {
			return err
		}
	}
	return nil
}
