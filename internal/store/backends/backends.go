// Package backends 按名称打开账本存储。
package backends

import (
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/openfire/firemarket/internal/store"
	"github.com/openfire/firemarket/internal/store/badgerstore"
	"github.com/openfire/firemarket/internal/store/memory"
	"github.com/openfire/firemarket/internal/store/sqlitestore"
	"github.com/openfire/firemarket/pkg/logger"
	"github.com/openfire/firemarket/pkg/persistence"
)

const (
	Memory = "memory"
	Badger = "badger"
	SQLite = "sqlite"
)

// Config 存储配置
type Config struct {
	Backend       string // memory | badger | sqlite
	Path          string // badger 目录或 sqlite 文件
	SyncWrites    bool
	EncryptionKey string // badger 加密密钥（hex，32 字节）
	SnapshotDir   string // memory 快照目录；为空则不持久化
}

// Names 支持的后端
func Names() []string {
	return []string{Memory, Badger, SQLite}
}

// Open 打开存储
func Open(cfg Config) (*store.Store, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = Memory
	}

	var (
		kv  store.KV
		err error
	)
	switch backend {
	case Memory:
		if cfg.SnapshotDir == "" {
			kv = memory.New()
			break
		}
		kv, err = memory.NewPersistent(persistence.NewJSONFileService(cfg.SnapshotDir), "snapshot")
	case Badger:
		var key []byte
		if cfg.EncryptionKey != "" {
			key, err = hex.DecodeString(strings.TrimPrefix(cfg.EncryptionKey, "0x"))
			if err != nil {
				return nil, fmt.Errorf("badger encryption key: %w", err)
			}
		}
		kv, err = badgerstore.Open(badgerstore.Options{
			Path:          cfg.Path,
			EncryptionKey: key,
			SyncWrites:    cfg.SyncWrites,
		})
	case SQLite:
		if cfg.Path == "" {
			return nil, fmt.Errorf("sqlite: path is required")
		}
		kv, err = sqlitestore.Open(filepath.Clean(cfg.Path))
	default:
		return nil, fmt.Errorf("unknown store backend %q (supported: %s)", cfg.Backend, strings.Join(Names(), ", "))
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", backend, err)
	}

	logger.Infof("账本存储已打开: backend=%s path=%s", backend, cfg.Path)
	return store.New(kv), nil
}
