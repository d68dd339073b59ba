package config

import (
	"errors"
	"time"

	"go.uber.org/multierr"
)

// ExpirationConfig 过期回收配置
//
// 回收循环睡眠到下一个过期时间，睡眠时长限制在
// [MinReapInterval, ReapInterval] 之间：既不会忙等，也能及时发现新加入的节点。
type ExpirationConfig struct {
	// NodeTTL 发现事件未指定有效期时使用的默认有效期
	NodeTTL Duration `json:"node_ttl" yaml:"node_ttl"`

	// ReapInterval 回收循环的最长睡眠时间
	ReapInterval Duration `json:"reap_interval" yaml:"reap_interval"`

	// MinReapInterval 回收循环的最短睡眠时间
	MinReapInterval Duration `json:"min_reap_interval" yaml:"min_reap_interval"`
}

// DefaultExpirationConfig 返回默认过期回收配置
func DefaultExpirationConfig() ExpirationConfig {
	return ExpirationConfig{
		NodeTTL:         Duration(30 * time.Second),
		ReapInterval:    Duration(5 * time.Second),
		MinReapInterval: Duration(100 * time.Millisecond),
	}
}

// Validate 验证过期回收配置
func (c ExpirationConfig) Validate() error {
	var err error
	if c.NodeTTL <= 0 {
		err = multierr.Append(err, errors.New("node_ttl must be positive"))
	}
	if c.MinReapInterval <= 0 {
		err = multierr.Append(err, errors.New("min_reap_interval must be positive"))
	}
	if c.ReapInterval < c.MinReapInterval {
		err = multierr.Append(err, errors.New("reap_interval must not be less than min_reap_interval"))
	}
	return err
}
