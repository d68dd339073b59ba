package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// EnvPrefix 环境变量前缀
const EnvPrefix = "BTNODEDB_"

// Load 从文件加载配置
//
// 按扩展名选择格式：.json 使用 JSON，.yaml / .yml 使用 YAML。
// 文件中没有出现的字段保持默认值；随后应用环境变量覆盖并验证。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg *Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		cfg, err = FromJSON(data)
	case ".yaml", ".yml":
		cfg, err = FromYAML(data)
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return nil, err
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// FromJSON 在默认配置之上解析 JSON
func FromJSON(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse json config: %w", err)
	}
	return cfg, nil
}

// FromYAML 在默认配置之上解析 YAML
func FromYAML(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse yaml config: %w", err)
	}
	return cfg, nil
}

// ToJSON 序列化为缩进的 JSON
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// ToYAML 序列化为 YAML
func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// ApplyEnv 应用 BTNODEDB_ 前缀的环境变量覆盖
//
// lookup 通常为 os.LookupEnv，测试中可以替换。
// 支持的变量：
//
//	BTNODEDB_REAP_EMPTY_NODES   bool
//	BTNODEDB_NODE_TTL           duration
//	BTNODEDB_REAP_INTERVAL      duration
//	BTNODEDB_MIN_REAP_INTERVAL  duration
//	BTNODEDB_EVENT_BUFFER       int
//	BTNODEDB_LOCAL_GUID         string
//	BTNODEDB_METRICS_ENABLED    bool
//	BTNODEDB_METRICS_NAMESPACE  string
//	BTNODEDB_METRICS_ADDR       string
//	BTNODEDB_ARCHIVE_PATH       string
//	BTNODEDB_LOG_LEVEL          string
//	BTNODEDB_LOG_FILE           string
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var err error

	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	boolean := func(name string, dst *bool) {
		if v, ok := lookup(EnvPrefix + name); ok {
			b, perr := strconv.ParseBool(v)
			if perr != nil {
				err = multierr.Append(err, fmt.Errorf("%s%s: %w", EnvPrefix, name, perr))
				return
			}
			*dst = b
		}
	}
	integer := func(name string, dst *int) {
		if v, ok := lookup(EnvPrefix + name); ok {
			n, perr := strconv.Atoi(v)
			if perr != nil {
				err = multierr.Append(err, fmt.Errorf("%s%s: %w", EnvPrefix, name, perr))
				return
			}
			*dst = n
		}
	}
	duration := func(name string, dst *Duration) {
		if v, ok := lookup(EnvPrefix + name); ok {
			d, perr := time.ParseDuration(v)
			if perr != nil {
				err = multierr.Append(err, fmt.Errorf("%s%s: %w", EnvPrefix, name, perr))
				return
			}
			*dst = Duration(d)
		}
	}

	boolean("REAP_EMPTY_NODES", &c.NodeDB.ReapEmptyNodes)
	duration("NODE_TTL", &c.Expiration.NodeTTL)
	duration("REAP_INTERVAL", &c.Expiration.ReapInterval)
	duration("MIN_REAP_INTERVAL", &c.Expiration.MinReapInterval)
	integer("EVENT_BUFFER", &c.Discovery.EventBuffer)
	str("LOCAL_GUID", &c.Discovery.LocalGUID)
	boolean("METRICS_ENABLED", &c.Metrics.Enabled)
	str("ARCHIVE_PATH", &c.Storage.Path)
	str("METRICS_NAMESPACE", &c.Metrics.Namespace)
	str("METRICS_ADDR", &c.Metrics.ListenAddr)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FILE", &c.Log.File)

	return err
}
