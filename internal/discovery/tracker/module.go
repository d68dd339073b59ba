package tracker

import (
	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-btnodedb/config"
	pkgif "github.com/dep2p/go-btnodedb/pkg/interfaces"
	"github.com/dep2p/go-btnodedb/pkg/lib/nodedb"
)

// Params 跟踪器依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
	DB         *nodedb.DB
	EventBus   pkgif.EventBus
	Registerer prometheus.Registerer `optional:"true"`
	Clock      clock.Clock           `optional:"true"`
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("tracker",
		fx.Provide(
			ProvideConfig,
			ProvideTracker,
		),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideConfig 从统一配置提供跟踪器配置
func ProvideConfig(p Params) Config {
	return ConfigFromUnified(p.UnifiedCfg)
}

// ProvideTracker 创建跟踪器
func ProvideTracker(p Params, cfg Config) (*Tracker, error) {
	opts := []Option{WithClock(p.Clock)}

	if p.Registerer != nil && (p.UnifiedCfg == nil || p.UnifiedCfg.Metrics.Enabled) {
		var ns string
		if p.UnifiedCfg != nil {
			ns = p.UnifiedCfg.Metrics.Namespace
		}
		mt, err := NewMetricsTracer(WithRegisterer(p.Registerer), WithNamespace(ns))
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithMetricsTracer(mt))
	}

	return New(cfg, p.DB, p.EventBus, opts...)
}

type lifecycleInput struct {
	fx.In

	LC      fx.Lifecycle
	Tracker *Tracker
}

// registerLifecycle 注册生命周期钩子
func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStart: input.Tracker.Start,
		OnStop:  input.Tracker.Stop,
	})
}
