package interfaces

// EventBus 进程内事件总线
//
// 事件按 Go 类型路由：Subscribe / Emitter 传入事件类型的指针（如 new(EvtNodeFound)），
// 发射和接收的是事件值本身。
type EventBus interface {
	// Subscribe 订阅指定类型的事件
	Subscribe(eventType any, opts ...SubscriptionOpt) (Subscription, error)

	// Emitter 获取指定事件类型的发射器
	Emitter(eventType any, opts ...EmitterOpt) (Emitter, error)

	// GetAllEventTypes 返回当前有订阅者或发射器的事件类型
	GetAllEventTypes() []any
}

// Subscription 事件订阅
type Subscription interface {
	// Out 返回接收事件的通道，Close 后通道关闭
	Out() <-chan any

	// Name 返回订阅名称（用于日志和指标）
	Name() string

	// Close 取消订阅，可重复调用
	Close() error
}

// Emitter 事件发射器
type Emitter interface {
	// Emit 发射事件，订阅者缓冲区满时丢弃，不阻塞
	Emit(event any) error

	// Close 关闭发射器
	Close() error
}

// SubscriptionOpt 订阅选项
type SubscriptionOpt func(*SubscriptionSettings)

// EmitterOpt 发射器选项
type EmitterOpt func(*EmitterSettings)

// SubscriptionSettings 订阅设置
type SubscriptionSettings struct {
	Buffer int
	Name   string
}

// EmitterSettings 发射器设置
type EmitterSettings struct {
	Stateful bool
}

// BufSize 设置订阅缓冲区大小
func BufSize(size int) SubscriptionOpt {
	return func(s *SubscriptionSettings) {
		s.Buffer = size
	}
}

// Name 设置订阅名称
func Name(name string) SubscriptionOpt {
	return func(s *SubscriptionSettings) {
		s.Name = name
	}
}

// Stateful 新订阅者会立即收到最后一次发射的事件
func Stateful() EmitterOpt {
	return func(s *EmitterSettings) {
		s.Stateful = true
	}
}
