package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/openfire/firemarket/internal/policy"
	"github.com/openfire/firemarket/internal/store/backends"
	"github.com/openfire/firemarket/internal/wallet"
)

// 环境变量前缀
const envPrefix = "FIREMARKET_"

// StoreConfig 存储配置
type StoreConfig struct {
	Backend       string // memory | badger | sqlite
	Path          string
	SyncWrites    bool
	EncryptionKey string
}

// GenesisConfig 创世参数（只在存储为空时生效）
type GenesisConfig struct {
	Supply        uint64
	Holder        string // 为空时使用 0 号开发账户
	Marketplace   string // 为空时使用 dev_accounts.marketplace_index 号开发账户
	Operator      string // 为空时等于 holder
	CommissionBps uint64 // 由 commission_percent 解析
	TokenName     string
	TokenSymbol   string
	TokenDecimals uint8
}

// DevAccountsConfig 开发账户：从助记词派生并在创世后注资
type DevAccountsConfig struct {
	Mnemonic         string
	Count            int    // 派生数量（含 0 号 holder）
	Fund             uint64 // 每个账户（0 号除外）注资金额，0 表示不注资
	MarketplaceIndex int
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string
	File       string
	JSON       bool
	MaxSize    int
	MaxBackups int
	MaxAge     int
}

// Config 应用配置
type Config struct {
	Store           StoreConfig
	Genesis         GenesisConfig
	DevAccounts     DevAccountsConfig
	Log             LogConfig
	APIListen       string        // HTTP API 监听地址
	APIWriteRate    float64       // 每个客户端每秒允许的写请求数，0 表示不限
	APIWriteBurst   int           // 写请求突发上限
	MetricsListen   string        // expvar/pprof 监听地址，为空则不启动
	PersistenceDir  string        // memory 后端快照目录
	CheckpointEvery time.Duration // 有变更时定期写快照，0 表示只在关闭时写
	ServerURL       string        // marketctl / market-tui 连接的 API 地址
	ShutdownTimeout time.Duration // 优雅关闭超时
}

var globalConfig *Config
var configFilePath string

// SetConfigPath 设置配置文件路径
func SetConfigPath(path string) {
	configFilePath = path
}

// GetConfigPath 获取配置文件路径
func GetConfigPath() string {
	return configFilePath
}

// ConfigFile 配置文件结构（用于 YAML/JSON 解析）
type ConfigFile struct {
	Store struct {
		Backend       string `yaml:"backend" json:"backend"`
		Path          string `yaml:"path" json:"path"`
		SyncWrites    bool   `yaml:"sync_writes" json:"sync_writes"`
		EncryptionKey string `yaml:"encryption_key" json:"encryption_key"`
	} `yaml:"store" json:"store"`
	Genesis struct {
		Supply            uint64 `yaml:"supply" json:"supply"`
		Holder            string `yaml:"holder" json:"holder"`
		Marketplace       string `yaml:"marketplace" json:"marketplace"`
		Operator          string `yaml:"operator" json:"operator"`
		CommissionPercent string `yaml:"commission_percent" json:"commission_percent"` // 例如 "2.5"
		TokenName         string `yaml:"token_name" json:"token_name"`
		TokenSymbol       string `yaml:"token_symbol" json:"token_symbol"`
		TokenDecimals     uint8  `yaml:"token_decimals" json:"token_decimals"`
	} `yaml:"genesis" json:"genesis"`
	DevAccounts struct {
		Mnemonic         string `yaml:"mnemonic" json:"mnemonic"`
		Count            *int   `yaml:"count" json:"count"`
		Fund             uint64 `yaml:"fund" json:"fund"`
		MarketplaceIndex *int   `yaml:"marketplace_index" json:"marketplace_index"`
	} `yaml:"dev_accounts" json:"dev_accounts"`
	Log struct {
		Level      string `yaml:"level" json:"level"`
		File       string `yaml:"file" json:"file"`
		JSON       bool   `yaml:"json" json:"json"`
		MaxSize    int    `yaml:"max_size" json:"max_size"`
		MaxBackups int    `yaml:"max_backups" json:"max_backups"`
		MaxAge     int    `yaml:"max_age" json:"max_age"`
	} `yaml:"log" json:"log"`
	API struct {
		Listen     string  `yaml:"listen" json:"listen"`
		WriteRate  float64 `yaml:"write_rate" json:"write_rate"`
		WriteBurst int     `yaml:"write_burst" json:"write_burst"`
	} `yaml:"api" json:"api"`
	Metrics struct {
		Listen string `yaml:"listen" json:"listen"`
	} `yaml:"metrics" json:"metrics"`
	Persistence struct {
		Dir               string `yaml:"dir" json:"dir"`
		CheckpointSeconds *int   `yaml:"checkpoint_seconds" json:"checkpoint_seconds"`
	} `yaml:"persistence" json:"persistence"`
	Client struct {
		Server string `yaml:"server" json:"server"`
	} `yaml:"client" json:"client"`
	ShutdownTimeoutSeconds int `yaml:"shutdown_timeout_seconds" json:"shutdown_timeout_seconds"`
}

// Load 加载配置
func Load() (*Config, error) {
	return LoadFromFile(configFilePath)
}

// LoadFromFile 从指定文件加载配置（路径为空时只使用环境变量与默认值）。
// 优先级：环境变量 > 配置文件 > 默认值。
func LoadFromFile(filePath string) (*Config, error) {
	cf := &ConfigFile{}
	if filePath != "" {
		var err error
		cf, err = loadConfigFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("加载配置文件失败 %s: %w", filePath, err)
		}
	}

	commission := getEnv("COMMISSION_PERCENT", orDefault(cf.Genesis.CommissionPercent, "2.5"))
	commissionBps, err := policy.ParseCommissionPercent(commission)
	if err != nil {
		return nil, fmt.Errorf("commission_percent %q: %w", commission, err)
	}

	devCount := 10
	if cf.DevAccounts.Count != nil {
		devCount = *cf.DevAccounts.Count
	}
	checkpoint := 30
	if cf.Persistence.CheckpointSeconds != nil {
		checkpoint = *cf.Persistence.CheckpointSeconds
	}
	marketIndex := -1
	if cf.DevAccounts.MarketplaceIndex != nil {
		marketIndex = *cf.DevAccounts.MarketplaceIndex
	}

	backend := getEnv("STORE_BACKEND", orDefault(cf.Store.Backend, backends.Memory))
	config := &Config{
		Store: StoreConfig{
			Backend:       backend,
			Path:          getEnv("STORE_PATH", orDefault(cf.Store.Path, defaultStorePath(backend))),
			SyncWrites:    parseBoolEnv("STORE_SYNC_WRITES", cf.Store.SyncWrites),
			EncryptionKey: getEnv("STORE_ENCRYPTION_KEY", cf.Store.EncryptionKey),
		},
		Genesis: GenesisConfig{
			Supply:        parseUintEnv("GENESIS_SUPPLY", orDefaultUint(cf.Genesis.Supply, 1_000_000_000)),
			Holder:        getEnv("GENESIS_HOLDER", cf.Genesis.Holder),
			Marketplace:   getEnv("MARKETPLACE", cf.Genesis.Marketplace),
			Operator:      getEnv("OPERATOR", cf.Genesis.Operator),
			CommissionBps: commissionBps,
			TokenName:     cf.Genesis.TokenName,
			TokenSymbol:   cf.Genesis.TokenSymbol,
			TokenDecimals: cf.Genesis.TokenDecimals,
		},
		DevAccounts: DevAccountsConfig{
			Mnemonic:         getEnv("DEV_MNEMONIC", orDefault(cf.DevAccounts.Mnemonic, wallet.DevMnemonic)),
			Count:            parseIntEnv("DEV_COUNT", devCount),
			Fund:             parseUintEnv("DEV_FUND", cf.DevAccounts.Fund),
			MarketplaceIndex: parseIntEnv("DEV_MARKETPLACE_INDEX", marketIndex),
		},
		Log: LogConfig{
			Level:      getEnv("LOG_LEVEL", orDefault(cf.Log.Level, "info")),
			File:       getEnv("LOG_FILE", cf.Log.File),
			JSON:       parseBoolEnv("LOG_JSON", cf.Log.JSON),
			MaxSize:    orDefaultInt(cf.Log.MaxSize, 100),
			MaxBackups: orDefaultInt(cf.Log.MaxBackups, 3),
			MaxAge:     orDefaultInt(cf.Log.MaxAge, 7),
		},
		APIListen:       getEnv("API_LISTEN", orDefault(cf.API.Listen, ":8080")),
		APIWriteRate:    parseFloatEnv("API_WRITE_RATE", cf.API.WriteRate),
		APIWriteBurst:   parseIntEnv("API_WRITE_BURST", orDefaultInt(cf.API.WriteBurst, 20)),
		MetricsListen:   getEnv("METRICS_LISTEN", cf.Metrics.Listen),
		PersistenceDir:  getEnv("PERSISTENCE_DIR", cf.Persistence.Dir),
		CheckpointEvery: time.Duration(parseIntEnv("CHECKPOINT_SECONDS", checkpoint)) * time.Second,
		ServerURL:       getEnv("SERVER", orDefault(cf.Client.Server, "http://127.0.0.1:8080")),
		ShutdownTimeout: time.Duration(parseIntEnv("SHUTDOWN_TIMEOUT_SECONDS", orDefaultInt(cf.ShutdownTimeoutSeconds, 10))) * time.Second,
	}
	// marketplace_index 默认取第一个不注资的派生账户
	if config.DevAccounts.MarketplaceIndex < 0 {
		config.DevAccounts.MarketplaceIndex = config.DevAccounts.Count
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	globalConfig = config
	configFilePath = filePath
	return config, nil
}

// loadConfigFile 加载配置文件（支持 YAML 和 JSON）
func loadConfigFile(filePath string) (*ConfigFile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var configFile ConfigFile
	ext := strings.ToLower(filepath.Ext(filePath))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &configFile); err != nil {
			return nil, fmt.Errorf("解析 YAML 配置文件失败: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &configFile); err != nil {
			return nil, fmt.Errorf("解析 JSON 配置文件失败: %w", err)
		}
	default:
		return nil, fmt.Errorf("不支持的配置文件格式: %s (支持 .yaml, .yml, .json)", ext)
	}

	return &configFile, nil
}

func defaultStorePath(backend string) string {
	switch strings.ToLower(backend) {
	case backends.Badger:
		return "data/badger"
	case backends.SQLite:
		return "data/ledger.db"
	}
	return ""
}

// Get 获取全局配置（如果已加载）
func Get() *Config {
	return globalConfig
}

// StoreOptions 转换为存储后端参数
func (c *Config) StoreOptions() backends.Config {
	return backends.Config{
		Backend:       c.Store.Backend,
		Path:          c.Store.Path,
		SyncWrites:    c.Store.SyncWrites,
		EncryptionKey: c.Store.EncryptionKey,
		SnapshotDir:   c.PersistenceDir,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	known := false
	for _, name := range backends.Names() {
		if strings.EqualFold(c.Store.Backend, name) {
			known = true
		}
	}
	if !known {
		return fmt.Errorf("store.backend 不支持: %s (支持 %s)", c.Store.Backend, strings.Join(backends.Names(), ", "))
	}
	if c.Genesis.Supply == 0 {
		return fmt.Errorf("genesis.supply 必须大于 0")
	}
	if c.DevAccounts.Count < 0 {
		return fmt.Errorf("dev_accounts.count 不能为负数")
	}
	if c.DevAccounts.Count > 1 && c.DevAccounts.Fund > 0 {
		need, ok := mulUint(c.DevAccounts.Fund, uint64(c.DevAccounts.Count-1))
		if !ok || need > c.Genesis.Supply {
			return fmt.Errorf("dev_accounts.fund × (count-1) 超过 genesis.supply")
		}
	}
	if c.Genesis.Holder == "" && c.DevAccounts.Count == 0 {
		return fmt.Errorf("genesis.holder 未配置且没有开发账户可用")
	}
	if c.APIWriteRate < 0 {
		return fmt.Errorf("api.write_rate 不能为负数")
	}
	if c.APIWriteRate > 0 && c.APIWriteBurst < 1 {
		return fmt.Errorf("api.write_burst 必须大于 0")
	}
	if c.CheckpointEvery < 0 {
		return fmt.Errorf("persistence.checkpoint_seconds 不能为负数")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout_seconds 必须大于 0")
	}
	return nil
}

func mulUint(a, b uint64) (uint64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	p := a * b
	return p, p/b == a
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

func orDefaultInt(v, def int) int {
	if v != 0 {
		return v
	}
	return def
}

func orDefaultUint(v, def uint64) uint64 {
	if v != 0 {
		return v
	}
	return def
}

// getEnv 获取 FIREMARKET_ 前缀的环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(envPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

// parseIntEnv 解析整数环境变量
func parseIntEnv(key string, defaultValue int) int {
	value := os.Getenv(envPrefix + key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// parseUintEnv 解析无符号整数环境变量
func parseUintEnv(key string, defaultValue uint64) uint64 {
	value := os.Getenv(envPrefix + key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// parseBoolEnv 解析布尔环境变量
func parseBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(envPrefix + key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// parseFloatEnv 解析浮点环境变量
func parseFloatEnv(key string, defaultValue float64) float64 {
	value := os.Getenv(envPrefix + key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}
