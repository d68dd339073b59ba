package nodedb

import (
	"container/heap"
	"time"

	"github.com/dep2p/go-btnodedb/pkg/types"
)

// ============================================================================
//                              过期管理
// ============================================================================

// RemoveExpiration 取消所有节点的过期时间
func (db *DB) RemoveExpiration() {
	db.Update(func(tx *Tx) { tx.RemoveExpiration() })
}

// RefreshExpiration 把所有节点的过期时间设为 now + delta
func (db *DB) RefreshExpiration(delta time.Duration) {
	db.Update(func(tx *Tx) { tx.RefreshExpiration(delta) })
}

// RefreshConnectExpiration 刷新通过 connAddr 连接的全部节点，返回刷新数量
func (db *DB) RefreshConnectExpiration(connAddr types.BusAddress, delta time.Duration) int {
	var n int
	db.Update(func(tx *Tx) { n = tx.RefreshConnectExpiration(connAddr, delta) })
	return n
}

// RefreshNodeExpiration 刷新单个节点，节点不在注册表中时返回 false
func (db *DB) RefreshNodeExpiration(n *NodeInfo, delta time.Duration) bool {
	var ok bool
	db.Update(func(tx *Tx) { ok = tx.RefreshNodeExpiration(n, delta) })
	return ok
}

// NextExpirationDeadline 返回最早的过期时间，没有会过期的节点时返回 ExpireNever
func (db *DB) NextExpirationDeadline() uint64 {
	var d uint64
	db.View(func(tx *ReadTx) { d = tx.NextExpirationDeadline() })
	return d
}

// PopExpiredNodes 移除所有已过期的节点并放入 out，返回移除数量
//
// 过期节点按过期时间升序、同一时间按地址顺序移出。out 为 nil 时只移除。
//
// 移出和写入 out 不是原子的：节点在本注册表的锁内移出，锁释放之后才对 out
// 加锁写入，两把锁不会嵌套。其间并发读取 out 的一方可能看到节点已离开本注册表，
// 但尚未出现在 out 中。out 通常用 NewView 创建，不持有节点。
func (db *DB) PopExpiredNodes(out *DB) int {
	var popped []*NodeInfo
	db.Update(func(tx *Tx) { popped = tx.popExpired() })

	if out != nil && len(popped) > 0 {
		out.Update(func(tx *Tx) {
			for _, n := range popped {
				_ = tx.AddNode(n)
			}
		})
	}
	return len(popped)
}

// RemoveExpiration 取消所有节点的过期时间
func (tx *Tx) RemoveExpiration() {
	tx.setAllExpire(ExpireNever)
}

// RefreshExpiration 把所有节点的过期时间设为 now + delta
func (tx *Tx) RefreshExpiration(delta time.Duration) {
	tx.setAllExpire(tx.db.deadline(delta))
}

func (tx *Tx) setAllExpire(ms uint64) {
	ix := &tx.db.ix
	ix.nodes.Ascend(func(e *entry) bool {
		ix.storeExpire(e, ms)
		return true
	})
	heap.Init(&ix.expire)
}

// RefreshConnectExpiration 刷新通过 connAddr 连接的全部节点
func (tx *Tx) RefreshConnectExpiration(connAddr types.BusAddress, delta time.Duration) int {
	ix := &tx.db.ix
	ms := tx.db.deadline(delta)

	var entries []*entry
	tx.rangeConnectAddress(connAddr, func(e *entry) { entries = append(entries, e) })
	for _, e := range entries {
		ix.setExpire(e, ms)
	}
	return len(entries)
}

// RefreshNodeExpiration 刷新单个节点
func (tx *Tx) RefreshNodeExpiration(n *NodeInfo, delta time.Duration) bool {
	if n == nil {
		return false
	}
	e, ok := tx.db.ix.addrMap[n.addr]
	if !ok {
		return false
	}
	tx.db.ix.setExpire(e, tx.db.deadline(delta))
	return true
}

// NextExpirationDeadline 返回最早的过期时间
func (tx *ReadTx) NextExpirationDeadline() uint64 {
	if e := tx.db.ix.expire.peek(); e != nil {
		return e.expire
	}
	return ExpireNever
}

// popExpired 从堆顶依次移除已过期的节点
func (tx *Tx) popExpired() []*NodeInfo {
	ix := &tx.db.ix
	now := tx.db.nowMillis()

	var popped []*NodeInfo
	for {
		e := ix.expire.peek()
		if e == nil || e.expire == ExpireNever || e.expire > now {
			break
		}
		ix.remove(e)
		popped = append(popped, e.node)
	}

	if len(popped) > 0 {
		tx.db.expired.Add(uint64(len(popped)))
		logger.Debug("节点已过期", "count", len(popped), "now", now)
	}
	return popped
}
