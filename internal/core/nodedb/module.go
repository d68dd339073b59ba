// Package nodedb 以 Fx 模块的形式提供蓝牙节点注册表
package nodedb

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-btnodedb/config"
	"github.com/dep2p/go-btnodedb/internal/core/eventbus"
	"github.com/dep2p/go-btnodedb/internal/core/metrics"
	pkgif "github.com/dep2p/go-btnodedb/pkg/interfaces"
	"github.com/dep2p/go-btnodedb/pkg/lib/log"
	ndb "github.com/dep2p/go-btnodedb/pkg/lib/nodedb"
)

var logger = log.Logger("core/nodedb")

// Config 注册表模块配置
type Config struct {
	// MetricsEnabled 是否注册注册表指标
	MetricsEnabled bool

	// Namespace 指标名前缀
	Namespace string
}

// ConfigFromUnified 从统一配置创建模块配置
func ConfigFromUnified(cfg *config.Config) Config {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return Config{
		MetricsEnabled: cfg.Metrics.Enabled,
		Namespace:      cfg.Metrics.Namespace,
	}
}

// Params 注册表依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
	Clock      clock.Clock    `optional:"true"`
}

// Output 注册表模块输出
type Output struct {
	fx.Out

	DB     *ndb.DB
	NodeDB pkgif.NodeDB
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("nodedb",
		fx.Provide(
			ProvideConfig,
			ProvideNodeDB,
		),
		fx.Invoke(registerMetrics),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideConfig 从统一配置提供模块配置
func ProvideConfig(p Params) Config {
	return ConfigFromUnified(p.UnifiedCfg)
}

// ProvideNodeDB 提供注册表实例
func ProvideNodeDB(p Params) Output {
	db := ndb.New(ndb.WithClock(p.Clock))
	return Output{DB: db, NodeDB: db}
}

type metricsInput struct {
	fx.In

	Config     Config
	DB         *ndb.DB
	Registerer prometheus.Registerer `optional:"true"`
	Bus        *eventbus.Bus         `optional:"true"`
}

// registerMetrics 注册注册表指标收集器
func registerMetrics(in metricsInput) error {
	if !in.Config.MetricsEnabled || in.Registerer == nil {
		return nil
	}

	var drops metrics.DropCounter
	if in.Bus != nil {
		drops = in.Bus
	}
	return metrics.RegisterCollectors(in.Registerer,
		metrics.NewNodeDBCollector(in.Config.Namespace, in.DB, drops))
}

type lifecycleInput struct {
	fx.In

	LC fx.Lifecycle
	DB *ndb.DB
}

// registerLifecycle 停止时输出统计并转储注册表（Debug 级别）
func registerLifecycle(in lifecycleInput) {
	in.LC.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			s := in.DB.Stats()
			logger.Info("注册表已停止",
				"nodes", s.Nodes,
				"added", s.Added,
				"removed", s.Removed,
				"expired", s.Expired)
			in.DB.DumpTable("shutdown")
			return nil
		},
	})
}
