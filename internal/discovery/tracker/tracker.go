package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"

	pkgif "github.com/dep2p/go-btnodedb/pkg/interfaces"
	"github.com/dep2p/go-btnodedb/pkg/lib/log"
	"github.com/dep2p/go-btnodedb/pkg/lib/nodedb"
)

var logger = log.Logger("discovery/tracker")

// Tracker 把发现层的事件应用到节点注册表
//
// Tracker 订阅 EvtNodeFound / EvtNodeLost / EvtScanComplete，在单个事件循环中
// 依次处理；另一个协程按注册表中最早的过期时间回收过期节点。
// 名称变化以 EvtNamesChanged 发出，回收结果以 EvtNodesExpired 发出。
type Tracker struct {
	cfg     Config
	db      *nodedb.DB
	bus     pkgif.EventBus
	clock   clock.Clock
	metrics MetricsTracer

	namesEmitter   pkgif.Emitter
	expiredEmitter pkgif.Emitter

	// wake 通知回收循环重新计算睡眠时长
	wake chan struct{}

	mu         sync.Mutex
	lastMinion *nodedb.NodeInfo
	started    bool
	closed     bool
	subs       []pkgif.Subscription
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// Option 跟踪器选项
type Option func(*Tracker)

// WithClock 设置时钟，默认使用注册表的时钟
func WithClock(c clock.Clock) Option {
	return func(t *Tracker) {
		if c != nil {
			t.clock = c
		}
	}
}

// WithMetricsTracer 设置指标
func WithMetricsTracer(m MetricsTracer) Option {
	return func(t *Tracker) {
		t.metrics = m
	}
}

// New 创建跟踪器
func New(cfg Config, db *nodedb.DB, bus pkgif.EventBus, opts ...Option) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	t := &Tracker{
		cfg:   cfg,
		db:    db,
		bus:   bus,
		clock: db.Clock(),
		wake:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(t)
	}

	var err error
	if t.namesEmitter, err = bus.Emitter(new(pkgif.EvtNamesChanged)); err != nil {
		return nil, err
	}
	if t.expiredEmitter, err = bus.Emitter(new(pkgif.EvtNodesExpired)); err != nil {
		_ = t.namesEmitter.Close()
		return nil, err
	}
	return t, nil
}

// DB 返回跟踪器维护的注册表
func (t *Tracker) DB() *nodedb.DB {
	return t.db
}

// Start 订阅发现事件并启动事件循环和回收循环
func (t *Tracker) Start(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}
	if t.started {
		return ErrAlreadyStarted
	}

	subs := make([]pkgif.Subscription, 0, 3)
	for _, evt := range []any{new(pkgif.EvtNodeFound), new(pkgif.EvtNodeLost), new(pkgif.EvtScanComplete)} {
		sub, err := t.bus.Subscribe(evt, pkgif.BufSize(t.cfg.EventBuffer), pkgif.Name("tracker"))
		if err != nil {
			for _, s := range subs {
				_ = s.Close()
			}
			return err
		}
		subs = append(subs, sub)
	}
	t.subs = subs

	// 生命周期的 ctx 在 OnStart 返回后即失效，循环使用独立的 ctx
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.started = true

	t.wg.Add(2)
	go t.eventLoop(ctx, subs[0].Out(), subs[1].Out(), subs[2].Out())
	go t.reapLoop(ctx)

	logger.Info("跟踪器已启动",
		"nodeTTL", t.cfg.NodeTTL,
		"reapInterval", t.cfg.ReapInterval,
		"reapEmptyNodes", t.cfg.ReapEmptyNodes)
	return nil
}

// Stop 停止循环，关闭订阅和发射器
func (t *Tracker) Stop(_ context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	cancel := t.cancel
	subs := t.subs
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	t.wg.Wait()

	var err error
	for _, sub := range subs {
		err = multierr.Append(err, sub.Close())
	}
	err = multierr.Append(err, t.namesEmitter.Close())
	err = multierr.Append(err, t.expiredEmitter.Close())

	logger.Info("跟踪器已停止", "nodes", t.db.Size())
	return err
}

// ============================================================================
//                              事件处理
// ============================================================================

// HandleFound 记录或刷新一个节点
//
// 带本机 GUID 的节点被忽略。有效期为 0 时使用 NodeTTL。
func (t *Tracker) HandleFound(evt pkgif.EvtNodeFound) error {
	n := evt.Node
	if !n.IsValid() {
		return nodedb.ErrInvalidNode
	}
	if t.isSelf(n) {
		logger.Debug("忽略本机节点", "node", n.String())
		return nil
	}

	ttl := evt.Expire
	if ttl <= 0 {
		ttl = t.cfg.NodeTTL
	}

	var err error
	t.db.Update(func(tx *nodedb.Tx) {
		if err = tx.AddNode(n); err != nil {
			return
		}
		tx.RefreshNodeExpiration(n, ttl)
	})
	if err != nil {
		return err
	}

	t.observe("found")
	t.wakeReaper()
	return nil
}

// HandleLost 删除离开的节点和所有经由它连接的节点
//
// 被删除的节点以 EvtNamesChanged 的 Removed 发出。
func (t *Tracker) HandleLost(evt pkgif.EvtNodeLost) error {
	if !evt.Addr.IsValid() {
		return nodedb.ErrInvalidNode
	}

	gone := t.db.FindNodesByConnectAddress(evt.Addr)
	if n := t.db.FindByAddress(evt.Addr); n.IsValid() {
		if err := gone.AddNode(n); err != nil {
			return err
		}
	}
	if gone.Size() == 0 {
		return nil
	}

	lost := gone.Nodes()
	t.db.Update(func(tx *nodedb.Tx) {
		for _, n := range lost {
			tx.RemoveNode(n)
		}
	})

	logger.Debug("节点已离开", "addr", evt.Addr.String(), "removed", len(lost))
	t.observe("lost")
	t.emitNames(nodedb.NewView(nodedb.WithClock(t.clock)), gone, nodedb.InvalidEpoch)
	return nil
}

// HandleScan 用一次扫描结果更新注册表
//
// ConnectAddr 有效时只与经由该地址连接的节点比较，否则与整个注册表比较。
// 差异通过 UpdateDB 合并，扫描到的节点刷新有效期，非空差异以 EvtNamesChanged 发出。
func (t *Tracker) HandleScan(evt pkgif.EvtScanComplete) error {
	if evt.Nodes == nil {
		return nil
	}
	scan := t.withoutSelf(evt.Nodes)

	current := t.db
	if evt.ConnectAddr.IsValid() {
		current = t.db.FindNodesByConnectAddress(evt.ConnectAddr)
	}

	added, removed := current.Diff(scan)
	t.db.UpdateDB(added, removed, t.cfg.ReapEmptyNodes)

	seen := scan.Nodes()
	t.db.Update(func(tx *nodedb.Tx) {
		for _, n := range seen {
			tx.RefreshNodeExpiration(n, t.cfg.NodeTTL)
		}
	})

	nAdded, nRemoved := added.Size(), removed.Size()
	if t.metrics != nil {
		t.metrics.ScanApplied(nAdded, nRemoved)
	}
	t.observe("scan")
	t.wakeReaper()

	logger.Debug("扫描已合并",
		"connectAddr", evt.ConnectAddr.String(),
		"epoch", evt.Epoch,
		"seen", len(seen),
		"added", nAdded,
		"removed", nRemoved)

	if nAdded > 0 || nRemoved > 0 {
		t.emitNames(added, removed, evt.Epoch)
	}
	return nil
}

// Reap 移除已过期的节点并发出 EvtNodesExpired，返回移除数量
func (t *Tracker) Reap() int {
	out := nodedb.NewView(nodedb.WithClock(t.clock))
	n := t.db.PopExpiredNodes(out)
	if n == 0 {
		return 0
	}

	if t.metrics != nil {
		t.metrics.NodesExpired(n)
	}
	if err := t.expiredEmitter.Emit(pkgif.EvtNodesExpired{Nodes: out}); err != nil {
		logger.Debug("发出过期事件失败", "err", err)
	}
	logger.Info("已回收过期节点", "count", n)
	return n
}

// NextDirectMinion 在直连 minion 之间轮转，返回下一个，跳过 skip
//
// 没有直连 minion 时返回 nil。
func (t *Tracker) NextDirectMinion(skip *nodedb.NodeInfo) *nodedb.NodeInfo {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := t.db.FindNextDirectMinion(t.lastMinion, skip)
	if !next.IsValid() {
		t.lastMinion = nil
		return nil
	}

	// 找不到其他 minion 时返回的是起点本身，它可能已被删除或不再是直连 minion
	cur := t.db.FindByAddress(next.BusAddress())
	if !cur.IsValid() || !cur.IsDirectMinion() || (skip.IsValid() && skip.Equal(cur)) {
		t.lastMinion = nil
		return nil
	}
	t.lastMinion = cur
	return cur
}

// ============================================================================
//                              循环
// ============================================================================

func (t *Tracker) eventLoop(ctx context.Context, found, lost, scan <-chan any) {
	defer t.wg.Done()

	for found != nil || lost != nil || scan != nil {
		select {
		case <-ctx.Done():
			return

		case e, ok := <-found:
			if !ok {
				found = nil
				continue
			}
			if evt, ok := e.(pkgif.EvtNodeFound); ok {
				t.report("found", t.HandleFound(evt))
			}

		case e, ok := <-lost:
			if !ok {
				lost = nil
				continue
			}
			if evt, ok := e.(pkgif.EvtNodeLost); ok {
				t.report("lost", t.HandleLost(evt))
			}

		case e, ok := <-scan:
			if !ok {
				scan = nil
				continue
			}
			if evt, ok := e.(pkgif.EvtScanComplete); ok {
				t.report("scan", t.HandleScan(evt))
			}
		}
	}
}

// reapLoop 睡眠到下一个过期时间后回收
func (t *Tracker) reapLoop(ctx context.Context) {
	defer t.wg.Done()

	timer := t.clock.Timer(t.sleepDuration())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			t.Reap()
		case <-t.wake:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}
		timer.Reset(t.sleepDuration())
	}
}

// sleepDuration 距下一个过期时间的时长，限制在 [MinReapInterval, ReapInterval]
func (t *Tracker) sleepDuration() time.Duration {
	deadline := t.db.NextExpirationDeadline()
	if deadline == nodedb.ExpireNever {
		return t.cfg.ReapInterval
	}

	var d time.Duration
	if now := uint64(t.clock.Now().UnixMilli()); deadline > now {
		d = time.Duration(deadline-now) * time.Millisecond
	}
	return clampDuration(d, t.cfg.MinReapInterval, t.cfg.ReapInterval)
}

func clampDuration(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}

// ============================================================================
//                              辅助
// ============================================================================

func (t *Tracker) wakeReaper() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

func (t *Tracker) isSelf(n *nodedb.NodeInfo) bool {
	return t.cfg.LocalGUID != "" && n.GUID() == t.cfg.LocalGUID
}

// withoutSelf 返回去掉本机节点的扫描结果，不修改 scan
func (t *Tracker) withoutSelf(scan *nodedb.DB) *nodedb.DB {
	hasSelf := false
	scan.Range(func(n *nodedb.NodeInfo) bool {
		hasSelf = t.isSelf(n)
		return !hasSelf
	})
	if !hasSelf {
		return scan
	}

	filtered := nodedb.NewView(nodedb.WithClock(scan.Clock()))
	filtered.Update(func(tx *nodedb.Tx) {
		scan.Range(func(n *nodedb.NodeInfo) bool {
			if !t.isSelf(n) {
				_ = tx.AddNode(n)
			}
			return true
		})
	})
	return filtered
}

func (t *Tracker) emitNames(added, removed *nodedb.DB, epoch uint32) {
	evt := pkgif.EvtNamesChanged{Added: added, Removed: removed, Epoch: epoch}
	if err := t.namesEmitter.Emit(evt); err != nil {
		logger.Debug("发出名称变化事件失败", "err", err)
	}
}

func (t *Tracker) observe(kind string) {
	if t.metrics != nil {
		t.metrics.EventHandled(kind)
	}
}

func (t *Tracker) report(kind string, err error) {
	if err != nil {
		logger.Warn("处理发现事件失败", "kind", kind, "err", err)
	}
}
