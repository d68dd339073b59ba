package btnodedb

import (
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-btnodedb/config"
)

// Option 用户配置选项函数
type Option func(*options) error

// options 内部选项结构
type options struct {
	config     *config.Config
	clock      clock.Clock
	registerer prometheus.Registerer

	// fxLogs 输出 Fx 的依赖注入日志
	fxLogs bool

	userFxOptions []fx.Option
}

func newOptions() *options {
	return &options{config: config.NewConfig()}
}

// ============================================================================
//                              配置选项
// ============================================================================

// WithConfig 使用完整的统一配置
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return fmt.Errorf("配置不能为空")
		}
		o.config = cfg.Clone()
		return nil
	}
}

// WithConfigFile 从 JSON / YAML 文件加载配置（环境变量覆盖文件中的值）
func WithConfigFile(path string) Option {
	return func(o *options) error {
		cfg, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("加载配置文件: %w", err)
		}
		o.config = cfg
		return nil
	}
}

// WithNodeTTL 设置发现事件的默认有效期
func WithNodeTTL(ttl config.Duration) Option {
	return func(o *options) error {
		if ttl <= 0 {
			return fmt.Errorf("无效的有效期: %s", ttl)
		}
		o.config.Expiration.NodeTTL = ttl
		return nil
	}
}

// WithLocalGUID 设置本地守护进程的 GUID，带该 GUID 的发现记录会被忽略
func WithLocalGUID(guid string) Option {
	return func(o *options) error {
		o.config.Discovery.LocalGUID = guid
		return nil
	}
}

// WithArchivePath 启用快照归档，定期及停止时把注册表快照写入 path
//
// 归档只供离线分析，注册表启动时不会从中恢复。
func WithArchivePath(path string) Option {
	return func(o *options) error {
		if path == "" {
			return fmt.Errorf("归档路径不能为空")
		}
		o.config.Storage.Path = path
		return nil
	}
}

// ============================================================================
//                              运行时选项
// ============================================================================

// WithClock 设置时钟
//
// 测试或离线回放时传入 clock.NewMock()，过期时间和回收循环都使用该时钟。
func WithClock(c clock.Clock) Option {
	return func(o *options) error {
		o.clock = c
		return nil
	}
}

// WithRegisterer 把指标注册到外部的注册器（例如 prometheus.DefaultRegisterer）
//
// 未设置时使用独立的注册表，可通过 Registry.Gatherer 读取。
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) error {
		o.registerer = reg
		return nil
	}
}

// WithFxLogs 输出 Fx 的依赖注入日志（调试用）
func WithFxLogs() Option {
	return func(o *options) error {
		o.fxLogs = true
		return nil
	}
}

// WithFxOptions 追加自定义 Fx 选项
func WithFxOptions(opts ...fx.Option) Option {
	return func(o *options) error {
		o.userFxOptions = append(o.userFxOptions, opts...)
		return nil
	}
}
