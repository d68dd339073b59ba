package config

import "errors"

// MetricsConfig 指标配置
type MetricsConfig struct {
	// Enabled 是否注册注册表指标
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Namespace Prometheus 指标名前缀
	Namespace string `json:"namespace" yaml:"namespace"`

	// ListenAddr 不为空时在该地址启动自省服务，提供 /metrics 和 /debug/introspect
	ListenAddr string `json:"listen_addr,omitempty" yaml:"listen_addr,omitempty"`
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   true,
		Namespace: "btnodedb",
	}
}

// Validate 验证指标配置
func (c MetricsConfig) Validate() error {
	if c.Enabled && c.Namespace == "" {
		return errors.New("namespace is required when metrics are enabled")
	}
	return nil
}
