// Package sqlitestore SQLite KV 实现：每个账本操作对应一个 database/sql 事务。
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/openfire/firemarket/internal/store"
)

// KV SQLite 存储
type KV struct {
	db *sql.DB
}

// Open 打开数据库并建表
func Open(path string) (*KV, error) {
	if path == "" {
		return nil, errors.New("sqlitestore: path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("mkdir db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite：单连接，事务天然串行
	db.SetMaxIdleConns(1)

	kv := &KV{db: db}
	if err := kv.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return kv, nil
}

func (kv *KV) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`
CREATE TABLE IF NOT EXISTS ledger_kv (
  k TEXT PRIMARY KEY,
  v BLOB NOT NULL
) WITHOUT ROWID;`,
	}
	for _, s := range stmts {
		if _, err := kv.db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// View 只读：始终回滚
func (kv *KV) View(fn func(tx store.KVTx) error) error {
	sqlTx, err := kv.db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = sqlTx.Rollback() }()
	return fn(&tx{tx: sqlTx})
}

func (kv *KV) Update(fn func(tx store.KVTx) error) error {
	sqlTx, err := kv.db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(&tx{tx: sqlTx}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (kv *KV) Close() error {
	if kv == nil || kv.db == nil {
		return nil
	}
	return kv.db.Close()
}

type tx struct {
	tx *sql.Tx
}

func (t *tx) Get(key string) ([]byte, error) {
	var v []byte
	err := t.tx.QueryRow(`SELECT v FROM ledger_kv WHERE k = ?`, key).Scan(&v)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

func (t *tx) Set(key string, value []byte) error {
	_, err := t.tx.Exec(`
INSERT INTO ledger_kv (k, v) VALUES (?, ?)
ON CONFLICT(k) DO UPDATE SET v = excluded.v
`, key, value)
	return err
}

func (t *tx) Delete(key string) error {
	_, err := t.tx.Exec(`DELETE FROM ledger_kv WHERE k = ?`, key)
	return err
}

type row struct {
	k string
	v []byte
}

// Iterate 先读完再回调：单连接下不能在游标打开时执行其他语句
func (t *tx) Iterate(prefix string, fn func(key string, value []byte) error) error {
	rows, err := t.tx.Query(`SELECT k, v FROM ledger_kv WHERE k >= ? AND k < ? ORDER BY k`, prefix, prefixEnd(prefix))
	if err != nil {
		return err
	}
	var out []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.k, &r.v); err != nil {
			_ = rows.Close()
			return err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	_ = rows.Close()

	for _, r := range out {
		if err := fn(r.k, r.v); err != nil {
			return err
		}
	}
	return nil
}

// prefixEnd 前缀的上界（最后一个字节加一）。键都是 ASCII，不会出现 0xff。
func prefixEnd(prefix string) string {
	if prefix == "" {
		return "\xff"
	}
	b := []byte(prefix)
	b[len(b)-1]++
	return string(b)
}
