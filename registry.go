package btnodedb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-btnodedb/config"
	"github.com/dep2p/go-btnodedb/internal/core/eventbus"
	"github.com/dep2p/go-btnodedb/internal/debug/introspect"
	"github.com/dep2p/go-btnodedb/internal/discovery/tracker"
	pkgif "github.com/dep2p/go-btnodedb/pkg/interfaces"
	"github.com/dep2p/go-btnodedb/pkg/lib/log"
	"github.com/dep2p/go-btnodedb/pkg/lib/nodedb"
	"github.com/dep2p/go-btnodedb/pkg/types"
)

var logger = log.Logger("btnodedb")

// stopTimeout Close 使用的停止超时
const stopTimeout = 10 * time.Second

// Registry 组装好的节点注册表服务
//
// Registry 持有注册表、事件总线和跟踪器。发现层可以直接调用
// Found / Lost / Scan，也可以向 EventBus 发出对应的事件，两者效果相同。
type Registry struct {
	mu      sync.Mutex
	app     *fx.App
	cfg     *config.Config
	started bool
	closed  bool

	db       *nodedb.DB
	bus      *eventbus.Bus
	tracker  *tracker.Tracker
	gatherer prometheus.Gatherer

	introspect *introspect.Server
}

// New 创建注册表服务（未启动）
//
// 示例：
//
//	reg, err := btnodedb.New(
//	    btnodedb.WithConfigFile("btnodedb.yaml"),
//	    btnodedb.WithRegisterer(prometheus.DefaultRegisterer),
//	)
func New(opts ...Option) (*Registry, error) {
	o := newOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}
	if err := o.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	r := &Registry{cfg: o.config}
	r.app = buildFxApp(o, r)
	if err := r.app.Err(); err != nil {
		return nil, fmt.Errorf("build fx app: %w", err)
	}
	return r, nil
}

// Start 创建并立即启动注册表服务
func Start(ctx context.Context, opts ...Option) (*Registry, error) {
	r, err := New(opts...)
	if err != nil {
		return nil, err
	}
	if err := r.Start(ctx); err != nil {
		return nil, fmt.Errorf("start registry: %w", err)
	}
	return r, nil
}

// Start 启动事件循环和回收循环
func (r *Registry) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if r.started {
		return ErrAlreadyStarted
	}
	if err := r.app.Start(ctx); err != nil {
		return err
	}
	r.started = true

	logger.Info("注册表服务已启动", "version", Version)
	return nil
}

// Stop 停止服务，之后不能再次启动
func (r *Registry) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	if !r.started {
		return nil
	}
	return r.app.Stop(ctx)
}

// Close 以默认超时停止服务
func (r *Registry) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return r.Stop(ctx)
}

// ════════════════════════════════════════════════════════════════════════════
//                              组件访问
// ════════════════════════════════════════════════════════════════════════════

// DB 返回节点注册表
func (r *Registry) DB() *nodedb.DB { return r.db }

// EventBus 返回事件总线，用于订阅 EvtNamesChanged / EvtNodesExpired
func (r *Registry) EventBus() pkgif.EventBus { return r.bus }

// Gatherer 返回指标收集器
func (r *Registry) Gatherer() prometheus.Gatherer { return r.gatherer }

// DebugAddr 返回自省服务的监听地址，未启用时返回空字符串
func (r *Registry) DebugAddr() string {
	if r.introspect == nil {
		return ""
	}
	return r.introspect.Addr()
}

// Config 返回生效的配置
func (r *Registry) Config() *config.Config { return r.cfg }

// ════════════════════════════════════════════════════════════════════════════
//                              发现入口
// ════════════════════════════════════════════════════════════════════════════

// Found 记录一个被发现的节点，ttl 为 0 时使用配置的默认有效期
func (r *Registry) Found(n *nodedb.NodeInfo, ttl time.Duration) error {
	return r.tracker.HandleFound(pkgif.EvtNodeFound{Node: n, Expire: ttl})
}

// Lost 删除离开的节点和经由它连接的节点
func (r *Registry) Lost(addr types.BusAddress) error {
	return r.tracker.HandleLost(pkgif.EvtNodeLost{Addr: addr})
}

// Scan 合并一次扫描的结果
func (r *Registry) Scan(nodes *nodedb.DB, connectAddr types.BusAddress, epoch uint32) error {
	return r.tracker.HandleScan(pkgif.EvtScanComplete{Nodes: nodes, ConnectAddr: connectAddr, Epoch: epoch})
}

// Reap 立即回收已过期的节点，返回移除数量
func (r *Registry) Reap() int {
	return r.tracker.Reap()
}

// NextDirectMinion 在直连 minion 之间轮转
func (r *Registry) NextDirectMinion(skip *nodedb.NodeInfo) *nodedb.NodeInfo {
	return r.tracker.NextDirectMinion(skip)
}
