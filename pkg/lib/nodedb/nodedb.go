package nodedb

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-btnodedb/pkg/lib/log"
	"github.com/dep2p/go-btnodedb/pkg/types"
)

var logger = log.Logger("lib/nodedb")

// Option 注册表构造选项
type Option func(*DB)

// WithClock 设置时钟（测试中使用 clock.NewMock()）
func WithClock(c clock.Clock) Option {
	return func(db *DB) {
		if c != nil {
			db.clock = c
		}
	}
}

// DB 蓝牙节点注册表
//
// 一个注册表维护同一组节点的五个视图：按地址排序的主索引、
// 地址映射、唯一名映射、连接地址多重映射和过期堆。
// 所有修改在同一把锁内同时更新全部索引。
//
// 单个方法自行加锁；需要把多个操作放在同一临界区时使用 View / Update，
// 回调中通过 Tx 操作，不要再调用 DB 的方法（锁不可重入）。
type DB struct {
	mu    sync.RWMutex
	ix    indices
	clock clock.Clock

	added   atomic.Uint64
	removed atomic.Uint64
	expired atomic.Uint64
}

// New 创建空注册表
func New(opts ...Option) *DB {
	db := &DB{
		ix:    newIndices(false),
		clock: clock.New(),
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// NewView 创建空的视图注册表
//
// 视图共享节点引用但不持有节点：视图中的节点不会因此被锁定索引键，
// 节点离开所有持有它的注册表后即可修改，视图中对应的记录随之过时。
// 视图内部修改节点时总是先复制，不影响其他注册表。
// 查找、Diff 的结果都是视图，用完直接丢弃即可。
func NewView(opts ...Option) *DB {
	db := New(opts...)
	db.ix.view = true
	return db
}

// newSibling 创建与 db 使用同一时钟的空注册表
func (db *DB) newSibling() *DB {
	return New(WithClock(db.clock))
}

// newView 创建与 db 使用同一时钟的空视图
func (db *DB) newView() *DB {
	return NewView(WithClock(db.clock))
}

// IsView 是否为视图注册表
func (db *DB) IsView() bool {
	return db.ix.view
}

// Clock 返回注册表使用的时钟
func (db *DB) Clock() clock.Clock {
	return db.clock
}

// View 在读锁内执行 fn
func (db *DB) View(fn func(tx *ReadTx)) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	fn(&ReadTx{db: db})
}

// Update 在写锁内执行 fn，fn 返回前所有索引保持一致
func (db *DB) Update(fn func(tx *Tx)) {
	db.mu.Lock()
	defer db.mu.Unlock()
	fn(&Tx{ReadTx{db: db}})
}

// Size 返回节点数量
func (db *DB) Size() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.ix.nodes.Len()
}

// Nodes 返回按地址排序的节点快照
func (db *DB) Nodes() []*NodeInfo {
	var nodes []*NodeInfo
	db.View(func(tx *ReadTx) { nodes = tx.Nodes() })
	return nodes
}

// Range 在读锁内按地址顺序遍历节点，fn 返回 false 时停止
func (db *DB) Range(fn func(n *NodeInfo) bool) {
	db.View(func(tx *ReadTx) { tx.Range(fn) })
}

// AddNode 添加或替换节点
//
// 已存在同地址的节点时，旧节点从全部索引中移除，新节点取而代之。
func (db *DB) AddNode(n *NodeInfo) error {
	var err error
	db.Update(func(tx *Tx) { err = tx.AddNode(n) })
	return err
}

// RemoveNode 删除与 n 地址相同的节点，不存在时无操作
func (db *DB) RemoveNode(n *NodeInfo) {
	db.Update(func(tx *Tx) { tx.RemoveNode(n) })
}

// RemoveByAddress 按地址删除节点，返回是否删除
func (db *DB) RemoveByAddress(addr types.BusAddress) bool {
	var ok bool
	db.Update(func(tx *Tx) { ok = tx.RemoveByAddress(addr) })
	return ok
}

// Clear 清空注册表
func (db *DB) Clear() {
	db.Update(func(tx *Tx) { tx.Clear() })
}

// Clone 返回共享同一批节点引用的新注册表
//
// 副本与原表一样持有节点。临时使用的副本应在用完后调用 Release。
func (db *DB) Clone() *DB {
	snaps := db.snapshot()
	defer release(snaps)

	c := db.newSibling()
	for _, s := range snaps {
		c.ix.insert(s.node)
	}
	return c
}

// Release 清空注册表并解除对全部节点的持有，不计入删除统计
//
// 不再使用的副本或临时注册表应调用 Release，否则其中的节点一直处于索引状态。
// Release 之后注册表仍可继续使用。
func (db *DB) Release() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.ix.reset()
}

// nowMillis 返回当前毫秒时间戳
func (db *DB) nowMillis() uint64 {
	return uint64(db.clock.Now().UnixMilli())
}

// deadline 计算 now + delta 对应的绝对过期时间
func (db *DB) deadline(delta time.Duration) uint64 {
	now := db.nowMillis()
	if delta <= 0 {
		return now
	}
	d := uint64(delta.Milliseconds())
	if d >= ExpireNever-now {
		return ExpireNever
	}
	return now + d
}

// ============================================================================
//                              Tx
// ============================================================================

// ReadTx 持有读锁期间的只读视图
//
// ReadTx 只在 View 回调内有效。
type ReadTx struct {
	db *DB
}

// Tx 持有写锁期间的读写视图
//
// Tx 只在 Update 回调内有效。
type Tx struct {
	ReadTx
}

// Size 返回节点数量
func (tx *ReadTx) Size() int {
	return tx.db.ix.nodes.Len()
}

// Nodes 返回按地址排序的节点快照
func (tx *ReadTx) Nodes() []*NodeInfo {
	nodes := make([]*NodeInfo, 0, tx.db.ix.nodes.Len())
	tx.db.ix.nodes.Ascend(func(e *entry) bool {
		nodes = append(nodes, e.node)
		return true
	})
	return nodes
}

// Range 按地址顺序遍历节点，fn 返回 false 时停止
func (tx *ReadTx) Range(fn func(n *NodeInfo) bool) {
	tx.db.ix.nodes.Ascend(func(e *entry) bool {
		return fn(e.node)
	})
}

// AddNode 添加或替换节点
func (tx *Tx) AddNode(n *NodeInfo) error {
	if !n.IsValid() {
		return ErrInvalidNode
	}

	ix := &tx.db.ix
	if old, ok := ix.addrMap[n.addr]; ok {
		ix.remove(old)
	} else {
		tx.db.added.Add(1)
	}
	ix.insert(n)

	logger.Debug("节点已添加", "node", n.String(), "connect", n.ConnectAddress().String())
	return nil
}

// RemoveNode 删除与 n 地址相同的节点
func (tx *Tx) RemoveNode(n *NodeInfo) {
	if n == nil {
		return
	}
	tx.RemoveByAddress(n.addr)
}

// RemoveByAddress 按地址删除节点，返回是否删除
func (tx *Tx) RemoveByAddress(addr types.BusAddress) bool {
	e, ok := tx.db.ix.addrMap[addr]
	if !ok {
		return false
	}
	tx.db.ix.remove(e)
	tx.db.removed.Add(1)

	logger.Debug("节点已删除", "node", e.node.String())
	return true
}

// Clear 清空注册表
func (tx *Tx) Clear() {
	n := tx.db.ix.nodes.Len()
	tx.db.ix.reset()
	tx.db.removed.Add(uint64(n))
}
