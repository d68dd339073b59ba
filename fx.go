package btnodedb

import (
	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-btnodedb/internal/core/eventbus"
	"github.com/dep2p/go-btnodedb/internal/core/metrics"
	corenodedb "github.com/dep2p/go-btnodedb/internal/core/nodedb"
	"github.com/dep2p/go-btnodedb/internal/core/storage"
	"github.com/dep2p/go-btnodedb/internal/debug/introspect"
	"github.com/dep2p/go-btnodedb/internal/discovery/tracker"
	"github.com/dep2p/go-btnodedb/pkg/lib/nodedb"
)

// buildFxApp 构建 Fx 应用
//
// 加载顺序（按依赖）：
//  1. Core Layer: EventBus → Metrics → NodeDB → Storage（配置了 storage.path 时归档快照）
//  2. Discovery Layer: Tracker
//  3. Debug Layer: Introspect（配置了 metrics.listen_addr 时启动）
//  4. 用户自定义 Fx 选项
func buildFxApp(o *options, r *Registry) *fx.App {
	modules := []fx.Option{
		fx.Supply(o.config),
	}

	if o.clock != nil {
		c := o.clock
		modules = append(modules, fx.Provide(func() clock.Clock { return c }))
	}
	if o.registerer != nil {
		reg := o.registerer
		modules = append(modules, fx.Provide(fx.Annotate(
			func() prometheus.Registerer { return reg },
			fx.ResultTags(`name:"external_registerer"`),
		)))
	}

	modules = append(modules,
		// Core Layer
		eventbus.Module(),
		metrics.Module,
		corenodedb.Module(),
		storage.Module(),

		// Discovery Layer
		tracker.Module(),

		// Debug Layer
		introspect.Module(),
	)
	modules = append(modules, o.userFxOptions...)
	modules = append(modules, fx.Invoke(injectComponents(r)))

	if o.fxLogs {
		modules = append(modules, fx.WithLogger(func() fxevent.Logger {
			l, err := zap.NewDevelopment()
			if err != nil {
				l = zap.NewNop()
			}
			return &fxevent.ZapLogger{Logger: l}
		}))
	} else {
		// 禁用 Fx 日志输出（避免干扰用户日志）
		modules = append(modules, fx.NopLogger)
	}

	return fx.New(modules...)
}

type componentParams struct {
	fx.In

	DB       *nodedb.DB
	Bus      *eventbus.Bus
	Tracker  *tracker.Tracker
	Gatherer prometheus.Gatherer

	Introspect *introspect.Server `optional:"true"`
}

// injectComponents 把 Fx 构造的组件交给 Registry
func injectComponents(r *Registry) any {
	return func(p componentParams) {
		r.db = p.DB
		r.bus = p.Bus
		r.tracker = p.Tracker
		r.gatherer = p.Gatherer
		r.introspect = p.Introspect
	}
}
