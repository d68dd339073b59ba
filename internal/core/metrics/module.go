package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Params 指标模块依赖
type Params struct {
	fx.In

	// External 外部提供的注册器，不提供时创建独立的 Registry
	External prometheus.Registerer `name:"external_registerer" optional:"true"`
}

// Result 指标模块输出
type Result struct {
	fx.Out

	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

// Module 是 metrics 的 Fx 模块
var Module = fx.Module("metrics",
	fx.Provide(ProvideRegistry),
)

// ProvideRegistry 提供指标注册器
//
// 默认使用独立的 Registry 而不是全局注册器，同一进程中可以并存多个实例。
func ProvideRegistry(p Params) Result {
	if p.External != nil {
		g, ok := p.External.(prometheus.Gatherer)
		if !ok {
			g = prometheus.Gatherers{}
		}
		return Result{Registerer: p.External, Gatherer: g}
	}

	reg := prometheus.NewRegistry()
	return Result{Registerer: reg, Gatherer: reg}
}
