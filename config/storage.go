package config

import (
	"errors"
	"time"

	"go.uber.org/multierr"
)

// StorageConfig 注册表快照归档配置
//
// Path 为空时不归档。归档只用于离线分析（btnodedb history），
// 注册表启动时不会从归档恢复。
type StorageConfig struct {
	// Path BadgerDB 数据目录
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// SyncWrites 每次写入都同步到磁盘
	SyncWrites bool `json:"sync_writes" yaml:"sync_writes"`

	// ArchiveInterval 定期归档间隔，0 表示只在停止时归档
	ArchiveInterval Duration `json:"archive_interval" yaml:"archive_interval"`

	// MaxSnapshots 保留的快照数，超出时删除最旧的
	MaxSnapshots int `json:"max_snapshots" yaml:"max_snapshots"`

	// GCInterval 值日志垃圾回收间隔，0 表示不回收
	GCInterval Duration `json:"gc_interval" yaml:"gc_interval"`
}

// DefaultStorageConfig 返回默认归档配置
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		ArchiveInterval: Duration(time.Minute),
		MaxSnapshots:    1440,
		GCInterval:      Duration(10 * time.Minute),
	}
}

// Enabled 是否启用归档
func (c StorageConfig) Enabled() bool {
	return c.Path != ""
}

// Validate 验证归档配置
func (c StorageConfig) Validate() error {
	var err error
	if c.ArchiveInterval < 0 {
		err = multierr.Append(err, errors.New("archive_interval must not be negative"))
	}
	if c.MaxSnapshots <= 0 {
		err = multierr.Append(err, errors.New("max_snapshots must be positive"))
	}
	if c.GCInterval < 0 {
		err = multierr.Append(err, errors.New("gc_interval must not be negative"))
	}
	return err
}
