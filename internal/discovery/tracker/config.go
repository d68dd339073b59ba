package tracker

import (
	"fmt"
	"time"

	"github.com/dep2p/go-btnodedb/config"
)

// Config 跟踪器配置
type Config struct {
	// NodeTTL 发现事件未指定有效期时使用的默认有效期
	NodeTTL time.Duration

	// ReapInterval / MinReapInterval 回收循环睡眠时长的上下限
	ReapInterval    time.Duration
	MinReapInterval time.Duration

	// ReapEmptyNodes 合并扫描结果时删除名称已清空的节点
	ReapEmptyNodes bool

	// EventBuffer 订阅缓冲区大小
	EventBuffer int

	// LocalGUID 本地守护进程的 GUID，发现事件中的本机记录被忽略
	LocalGUID string
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return ConfigFromUnified(nil)
}

// ConfigFromUnified 从统一配置创建跟踪器配置
func ConfigFromUnified(cfg *config.Config) Config {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return Config{
		NodeTTL:         cfg.Expiration.NodeTTL.Duration(),
		ReapInterval:    cfg.Expiration.ReapInterval.Duration(),
		MinReapInterval: cfg.Expiration.MinReapInterval.Duration(),
		ReapEmptyNodes:  cfg.NodeDB.ReapEmptyNodes,
		EventBuffer:     cfg.Discovery.EventBuffer,
		LocalGUID:       cfg.Discovery.EnsureLocalGUID(),
	}
}

// Validate 验证配置
func (c Config) Validate() error {
	if c.NodeTTL <= 0 || c.MinReapInterval <= 0 || c.ReapInterval < c.MinReapInterval {
		return fmt.Errorf("%w: ttl=%s reap=[%s, %s]", ErrInvalidConfig, c.NodeTTL, c.MinReapInterval, c.ReapInterval)
	}
	if c.EventBuffer <= 0 {
		return fmt.Errorf("%w: event buffer %d", ErrInvalidConfig, c.EventBuffer)
	}
	return nil
}
