package introspect

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-btnodedb/config"
	"github.com/dep2p/go-btnodedb/pkg/lib/nodedb"
)

// Module 返回自省服务 Fx 模块
func Module() fx.Option {
	return fx.Module("introspect",
		fx.Provide(NewFromParams),
		fx.Invoke(registerLifecycle),
	)
}

// IntrospectParams 自省服务依赖参数
type IntrospectParams struct {
	fx.In

	UnifiedCfg *config.Config      `optional:"true"`
	DB         *nodedb.DB          `optional:"true"`
	Gatherer   prometheus.Gatherer `optional:"true"`
}

// ConfigFromUnified 从统一配置创建自省服务配置
//
// Metrics.ListenAddr 为空时返回 nil（不启动服务）。
func ConfigFromUnified(cfg *config.Config) *Config {
	if cfg == nil || cfg.Metrics.ListenAddr == "" {
		return nil
	}
	return &Config{
		Addr: cfg.Metrics.ListenAddr,
	}
}

// NewFromParams 从参数创建自省服务，禁用时返回 nil
func NewFromParams(params IntrospectParams) *Server {
	cfg := ConfigFromUnified(params.UnifiedCfg)
	if cfg == nil {
		return nil
	}

	if params.DB != nil {
		cfg.Registry = params.DB
	}
	if params.UnifiedCfg.Metrics.Enabled {
		cfg.Gatherer = params.Gatherer
	}

	return New(*cfg)
}

// registerLifecycle 注册生命周期钩子
func registerLifecycle(lc fx.Lifecycle, server *Server) {
	if server == nil {
		return // 禁用时跳过
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return server.Start(ctx)
		},
		OnStop: func(_ context.Context) error {
			return server.Stop()
		},
	})
}
