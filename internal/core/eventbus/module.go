package eventbus

import (
	"context"

	"go.uber.org/fx"

	pkgif "github.com/dep2p/go-btnodedb/pkg/interfaces"
)

// Result Fx 模块输出
type Result struct {
	fx.Out

	Bus      *Bus
	EventBus pkgif.EventBus
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("eventbus",
		fx.Provide(ProvideEventBus),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideEventBus 提供事件总线
func ProvideEventBus() Result {
	bus := NewBus()
	return Result{
		Bus:      bus,
		EventBus: bus,
	}
}

type lifecycleInput struct {
	fx.In
	LC  fx.Lifecycle
	Bus *Bus
}

// registerLifecycle 停止时关闭总线，订阅者的通道随之关闭
func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return input.Bus.Close()
		},
	})
}
