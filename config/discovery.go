package config

import (
	"encoding/hex"
	"errors"

	"github.com/google/uuid"
)

// DiscoveryConfig 发现事件处理配置
type DiscoveryConfig struct {
	// EventBuffer 跟踪器订阅发现事件的缓冲区大小
	EventBuffer int `json:"event_buffer" yaml:"event_buffer"`

	// LocalGUID 本地守护进程的总线 GUID，为空时自动生成
	LocalGUID string `json:"local_guid,omitempty" yaml:"local_guid,omitempty"`
}

// DefaultDiscoveryConfig 返回默认发现配置
func DefaultDiscoveryConfig() DiscoveryConfig {
	return DiscoveryConfig{
		EventBuffer: 64,
	}
}

// Validate 验证发现配置
func (c DiscoveryConfig) Validate() error {
	if c.EventBuffer <= 0 {
		return errors.New("event_buffer must be positive")
	}
	if c.LocalGUID != "" {
		if _, err := uuid.Parse(c.LocalGUID); err != nil {
			return errors.New("local_guid must be a UUID")
		}
	}
	return nil
}

// EnsureLocalGUID 返回 LocalGUID，为空时生成一个并写回
//
// 总线 GUID 使用不带连字符的 32 位十六进制形式。
func (c *DiscoveryConfig) EnsureLocalGUID() string {
	if c.LocalGUID == "" {
		c.LocalGUID = uuid.NewString()
	}
	id, err := uuid.Parse(c.LocalGUID)
	if err != nil {
		return c.LocalGUID
	}
	return hex.EncodeToString(id[:])
}
