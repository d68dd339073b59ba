// Package config 提供统一的配置管理
//
// 主 Config 聚合各组件的子配置，每个子配置在独立文件中定义，
// 都有 Default...Config() 和 Validate()。
//
//	cfg := config.NewConfig()
//	cfg.Expiration.NodeTTL = config.Duration(time.Minute)
//
//	// 从文件加载（.json / .yaml / .yml），随后应用 BTNODEDB_ 环境变量
//	cfg, err := config.Load("btnodedb.yaml")
package config

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

// Config 完整配置
type Config struct {
	// NodeDB 注册表配置
	NodeDB NodeDBConfig `json:"nodedb" yaml:"nodedb"`

	// Expiration 过期回收配置
	Expiration ExpirationConfig `json:"expiration" yaml:"expiration"`

	// Discovery 发现事件处理配置
	Discovery DiscoveryConfig `json:"discovery" yaml:"discovery"`

	// Metrics 指标配置
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`

	// Storage 持久化配置
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Log 日志配置
	Log LogConfig `json:"log" yaml:"log"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		NodeDB:     DefaultNodeDBConfig(),
		Expiration: DefaultExpirationConfig(),
		Discovery:  DefaultDiscoveryConfig(),
		Metrics:    DefaultMetricsConfig(),
		Storage:    DefaultStorageConfig(),
		Log:        DefaultLogConfig(),
	}
}

// Validate 验证全部子配置，返回所有错误
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	return multierr.Combine(
		prefix("nodedb", c.NodeDB.Validate()),
		prefix("expiration", c.Expiration.Validate()),
		prefix("discovery", c.Discovery.Validate()),
		prefix("metrics", c.Metrics.Validate()),
		prefix("storage", c.Storage.Validate()),
		prefix("log", c.Log.Validate()),
	)
}

// Clone 复制配置
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

func prefix(section string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", section, err)
}
