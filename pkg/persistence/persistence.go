// Package persistence 基于 JSON 文件的快照存储，供内存账本在重启之间保存状态。
package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/openfire/firemarket/pkg/logger"
)

// Service 持久化服务接口
type Service interface {
	NewStore(prefix, id string) Store
}

// Store 单个快照的读写
type Store interface {
	Save(data interface{}) error
	Load(data interface{}) error
	Path() string
}

// ErrNotExists 快照不存在
var ErrNotExists = errors.New("persistence data not exists")

// JSONFileService 以目录为根的 JSON 文件服务
type JSONFileService struct {
	baseDir string
}

// NewJSONFileService 创建 JSON 文件持久化服务
func NewJSONFileService(baseDir string) *JSONFileService {
	return &JSONFileService{baseDir: baseDir}
}

// NewStore 快照文件名形如 <prefix>_<id>.json
func (s *JSONFileService) NewStore(prefix, id string) Store {
	return &JSONFileStore{
		service: s,
		key:     fmt.Sprintf("%s:%s", prefix, id),
	}
}

// JSONFileStore 单个 JSON 快照文件
type JSONFileStore struct {
	service *JSONFileService
	key     string
}

var keySanitizer = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Path 快照文件路径
func (s *JSONFileStore) Path() string {
	safe := keySanitizer.ReplaceAllString(s.key, "_")
	return filepath.Join(s.service.baseDir, safe+".json")
}

// Save 先写临时文件再 rename，避免写一半的快照
func (s *JSONFileStore) Save(data interface{}) error {
	logger.Debugf("[persistence] save: key=%s", s.key)
	if err := os.MkdirAll(s.service.baseDir, 0o755); err != nil {
		return err
	}

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}

	path := s.Path()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Load 文件不存在或为空时返回 ErrNotExists
func (s *JSONFileStore) Load(data interface{}) error {
	logger.Debugf("[persistence] load: key=%s", s.key)
	b, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotExists
		}
		return err
	}
	if len(b) == 0 {
		return ErrNotExists
	}
	return json.Unmarshal(b, data)
}
