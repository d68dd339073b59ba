package config

// NodeDBConfig 注册表配置
type NodeDBConfig struct {
	// ReapEmptyNodes 合并扫描结果时，删除名称已全部清空的节点
	ReapEmptyNodes bool `json:"reap_empty_nodes" yaml:"reap_empty_nodes"`
}

// DefaultNodeDBConfig 返回默认注册表配置
func DefaultNodeDBConfig() NodeDBConfig {
	return NodeDBConfig{
		ReapEmptyNodes: true,
	}
}

// Validate 验证注册表配置
func (c NodeDBConfig) Validate() error {
	return nil
}
