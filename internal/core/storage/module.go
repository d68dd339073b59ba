package storage

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/dep2p/go-btnodedb/config"
	"github.com/dep2p/go-btnodedb/pkg/lib/nodedb"
)

// Params Storage 模块依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
	Clock      clock.Clock    `optional:"true"`
}

// Module 返回 Storage Fx 模块
//
// 提供:
//   - *Store: 未配置 storage.path 时为 nil
//
// 生命周期:
//   - OnStart: 启动定期归档和值日志回收
//   - OnStop: 归档一次当前注册表，关闭存储
func Module() fx.Option {
	return fx.Module("storage",
		fx.Provide(ProvideStore),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideStore 按配置打开归档
func ProvideStore(p Params) (*Store, error) {
	cfg := ConfigFromUnified(p.UnifiedCfg)
	if !cfg.Enabled() {
		logger.Debug("未配置归档路径，快照归档已禁用")
		return nil, nil
	}
	return Open(cfg, WithClock(p.Clock))
}

type lifecycleInput struct {
	fx.In

	LC    fx.Lifecycle
	Store *Store
	DB    *nodedb.DB
}

// registerLifecycle 注册生命周期钩子
func registerLifecycle(in lifecycleInput) {
	if in.Store == nil {
		return
	}
	s, db := in.Store, in.DB

	in.LC.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			if err := s.Start(db); err != nil {
				return err
			}
			logger.Info("快照归档已启动", "path", s.cfg.Path, "interval", s.cfg.ArchiveInterval)
			return nil
		},
		OnStop: func(_ context.Context) error {
			at, err := s.Archive(db)
			if err != nil {
				logger.Error("停止时归档失败", "path", s.cfg.Path, "err", err)
			} else {
				logger.Info("停止时已归档", "path", s.cfg.Path, "at", at.UnixMilli())
			}
			return multierr.Append(err, s.Close())
		},
	})
}
