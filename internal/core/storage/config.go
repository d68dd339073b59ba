package storage

import (
	"fmt"
	"os"
	"time"

	"github.com/dep2p/go-btnodedb/config"
)

// Config 归档配置
type Config struct {
	// Path BadgerDB 数据目录
	Path string

	// InMemory 不落盘，只用于测试
	InMemory bool

	// ReadOnly 只读打开（history 命令）
	ReadOnly bool

	// SyncWrites 是否同步写入
	SyncWrites bool

	// ArchiveInterval 定期归档间隔，0 表示只在停止时归档
	ArchiveInterval time.Duration

	// MaxSnapshots 保留的快照数
	MaxSnapshots int

	// GCInterval 值日志垃圾回收间隔，0 表示不回收
	GCInterval time.Duration

	// GCDiscardRatio 垃圾回收丢弃比例
	GCDiscardRatio float64
}

// DefaultConfig 返回默认配置（未启用）
func DefaultConfig() Config {
	d := config.DefaultStorageConfig()
	return Config{
		ArchiveInterval: d.ArchiveInterval.Duration(),
		MaxSnapshots:    d.MaxSnapshots,
		GCInterval:      d.GCInterval.Duration(),
		GCDiscardRatio:  0.5,
	}
}

// ConfigFromUnified 从统一配置创建归档配置
func ConfigFromUnified(cfg *config.Config) Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}
	c.Path = cfg.Storage.Path
	c.SyncWrites = cfg.Storage.SyncWrites
	c.ArchiveInterval = cfg.Storage.ArchiveInterval.Duration()
	c.MaxSnapshots = cfg.Storage.MaxSnapshots
	c.GCInterval = cfg.Storage.GCInterval.Duration()
	return c
}

// Enabled 是否启用归档
func (c Config) Enabled() bool {
	return c.InMemory || c.Path != ""
}

// Validate 验证配置
func (c Config) Validate() error {
	switch {
	case !c.Enabled():
		return fmt.Errorf("%w: path is required", ErrInvalidConfig)
	case c.InMemory && c.ReadOnly:
		return fmt.Errorf("%w: in-memory store cannot be read-only", ErrInvalidConfig)
	case c.MaxSnapshots <= 0:
		return fmt.Errorf("%w: max snapshots must be positive", ErrInvalidConfig)
	case c.ArchiveInterval < 0 || c.GCInterval < 0:
		return fmt.Errorf("%w: intervals must not be negative", ErrInvalidConfig)
	case c.GCDiscardRatio <= 0 || c.GCDiscardRatio >= 1:
		return fmt.Errorf("%w: gc discard ratio must be in (0, 1)", ErrInvalidConfig)
	}
	return nil
}

// ensureDir 确保数据目录存在
func (c Config) ensureDir() error {
	if c.InMemory || c.ReadOnly {
		return nil
	}
	return os.MkdirAll(c.Path, 0o755)
}
