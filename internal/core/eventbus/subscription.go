package eventbus

import (
	"reflect"
	"sync"
	"sync/atomic"

	pkgif "github.com/dep2p/go-btnodedb/pkg/interfaces"
)

var (
	_ pkgif.Subscription = (*Subscription)(nil)
	_ pkgif.Emitter      = (*Emitter)(nil)
)

// Subscription 事件订阅
type Subscription struct {
	bus       *Bus
	typ       reflect.Type
	name      string
	out       chan any
	closeOnce sync.Once
	dropped   atomic.Uint64
}

// Out 返回事件通道
func (s *Subscription) Out() <-chan any {
	return s.out
}

// Name 返回订阅名称
func (s *Subscription) Name() string {
	return s.name
}

// Dropped 返回该订阅丢弃的事件数
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Close 取消订阅并关闭通道
//
// 先从总线移除再关闭通道，emit 持有节点锁发送，不会向已关闭的通道写入。
func (s *Subscription) Close() error {
	s.closeOnce.Do(func() {
		s.bus.removeSub(s)
		close(s.out)
	})
	return nil
}

// Emitter 事件发射器
type Emitter struct {
	bus       *Bus
	node      *node
	typ       reflect.Type
	closed    atomic.Bool
	closeOnce sync.Once
}

// Emit 发射事件
func (e *Emitter) Emit(event any) error {
	if e.closed.Load() {
		return ErrClosed
	}
	if reflect.TypeOf(event) != e.typ {
		return ErrWrongEventType
	}

	e.bus.mu.RLock()
	closed := e.bus.closed
	e.bus.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	e.node.emit(e.bus, event)
	return nil
}

// Close 关闭发射器
func (e *Emitter) Close() error {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		if e.node.nEmitters.Add(-1) == 0 {
			e.bus.tryDropNode(e.typ)
		}
	})
	return nil
}
