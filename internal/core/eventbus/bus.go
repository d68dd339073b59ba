package eventbus

import (
	"errors"
	"reflect"
	"sync"
	"sync/atomic"

	pkgif "github.com/dep2p/go-btnodedb/pkg/interfaces"
	"github.com/dep2p/go-btnodedb/pkg/lib/log"
)

var logger = log.Logger("core/eventbus")

var (
	// ErrClosed 事件总线或发射器已关闭
	ErrClosed = errors.New("eventbus closed")
	// ErrInvalidEventType 无效的事件类型
	ErrInvalidEventType = errors.New("invalid event type")
	// ErrNonPointerType 事件类型必须以指针形式传入
	ErrNonPointerType = errors.New("event type must be a pointer, e.g. new(EvtNodeFound)")
	// ErrWrongEventType 发射的事件与发射器类型不符
	ErrWrongEventType = errors.New("emitted event does not match emitter type")
)

// defaultBuffer 订阅通道默认缓冲区大小
const defaultBuffer = 16

// 确保 Bus 实现了接口
var _ pkgif.EventBus = (*Bus)(nil)

// Bus 进程内事件总线
type Bus struct {
	mu     sync.RWMutex
	nodes  map[reflect.Type]*node
	closed bool

	// dropped 所有订阅累计丢弃的事件数
	dropped atomic.Uint64
}

// node 一种事件类型的订阅者和发射器
type node struct {
	lk        sync.Mutex
	typ       reflect.Type
	sinks     []*Subscription
	nEmitters atomic.Int32
	keepLast  bool
	last      any
}

// NewBus 创建事件总线
func NewBus() *Bus {
	return &Bus{
		nodes: make(map[reflect.Type]*node),
	}
}

// elemType 从 new(T) 形式的参数取出 T
func elemType(eventType any) (reflect.Type, error) {
	if eventType == nil {
		return nil, ErrInvalidEventType
	}
	typ := reflect.TypeOf(eventType)
	if typ.Kind() != reflect.Ptr {
		return nil, ErrNonPointerType
	}
	return typ.Elem(), nil
}

// Subscribe 订阅事件
func (b *Bus) Subscribe(eventType any, opts ...pkgif.SubscriptionOpt) (pkgif.Subscription, error) {
	typ, err := elemType(eventType)
	if err != nil {
		return nil, err
	}

	settings := pkgif.SubscriptionSettings{Buffer: defaultBuffer}
	for _, opt := range opts {
		opt(&settings)
	}
	if settings.Name == "" {
		settings.Name = typ.String()
	}
	if settings.Buffer < 0 {
		settings.Buffer = 0
	}

	sub := &Subscription{
		bus:  b,
		typ:  typ,
		name: settings.Name,
		out:  make(chan any, settings.Buffer),
	}

	err = b.withNode(typ, func(n *node) {
		n.sinks = append(n.sinks, sub)
		if n.keepLast && n.last != nil {
			select {
			case sub.out <- n.last:
			default:
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Emitter 获取发射器
func (b *Bus) Emitter(eventType any, opts ...pkgif.EmitterOpt) (pkgif.Emitter, error) {
	typ, err := elemType(eventType)
	if err != nil {
		return nil, err
	}

	var settings pkgif.EmitterSettings
	for _, opt := range opts {
		opt(&settings)
	}

	var n *node
	err = b.withNode(typ, func(nd *node) {
		n = nd
		n.nEmitters.Add(1)
		if settings.Stateful {
			n.keepLast = true
		}
	})
	if err != nil {
		return nil, err
	}
	return &Emitter{bus: b, node: n, typ: typ}, nil
}

// GetAllEventTypes 返回当前有订阅者或发射器的事件类型
func (b *Bus) GetAllEventTypes() []any {
	b.mu.RLock()
	defer b.mu.RUnlock()

	types := make([]any, 0, len(b.nodes))
	for typ := range b.nodes {
		types = append(types, reflect.New(typ).Interface())
	}
	return types
}

// Dropped 返回因订阅者缓冲区满而丢弃的事件总数
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close 关闭总线，关闭全部订阅的通道
//
// 之后的 Subscribe / Emitter / Emit 返回 ErrClosed。
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true

	var subs []*Subscription
	for _, n := range b.nodes {
		n.lk.Lock()
		subs = append(subs, n.sinks...)
		n.lk.Unlock()
	}
	b.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Close()
	}
	logger.Debug("事件总线已关闭", "subscriptions", len(subs))
	return nil
}

// withNode 在类型节点的锁内执行 cb，节点不存在时创建
func (b *Bus) withNode(typ reflect.Type, cb func(*node)) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}

	n, ok := b.nodes[typ]
	if !ok {
		n = &node{typ: typ}
		b.nodes[typ] = n
	}

	n.lk.Lock()
	b.mu.Unlock()

	cb(n)
	n.lk.Unlock()
	return nil
}

// tryDropNode 没有订阅者和发射器时删除类型节点
func (b *Bus) tryDropNode(typ reflect.Type) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n, ok := b.nodes[typ]
	if !ok {
		return
	}

	n.lk.Lock()
	idle := len(n.sinks) == 0 && n.nEmitters.Load() == 0
	n.lk.Unlock()

	if idle {
		delete(b.nodes, typ)
	}
}

// removeSub 从类型节点移除订阅
func (b *Bus) removeSub(sub *Subscription) {
	b.mu.RLock()
	n, ok := b.nodes[sub.typ]
	b.mu.RUnlock()
	if !ok {
		return
	}

	n.lk.Lock()
	for i, s := range n.sinks {
		if s == sub {
			n.sinks = append(n.sinks[:i], n.sinks[i+1:]...)
			break
		}
	}
	idle := len(n.sinks) == 0 && n.nEmitters.Load() == 0
	n.lk.Unlock()

	if idle {
		b.tryDropNode(sub.typ)
	}
}

// emit 把事件发送给全部订阅者，缓冲区满的订阅者丢弃该事件
func (n *node) emit(b *Bus, event any) {
	n.lk.Lock()
	defer n.lk.Unlock()

	if n.keepLast {
		n.last = event
	}

	for _, sub := range n.sinks {
		select {
		case sub.out <- event:
		default:
			dropped := sub.dropped.Add(1)
			b.dropped.Add(1)
			// 每 100 次警告一次
			if dropped%100 == 1 {
				logger.Warn("订阅者处理过慢，事件被丢弃",
					"subscription", sub.name,
					"type", n.typ.String(),
					"dropped", dropped)
			}
		}
	}
}
