package nodedb

import (
	"container/heap"

	"github.com/google/btree"

	"github.com/dep2p/go-btnodedb/pkg/types"
)

// btreeDegree 索引 B 树的度
const btreeDegree = 16

// entry 注册表中的一条索引记录
//
// 索引键在插入时快照到 entry 中，删除时用快照定位，
// 因此即使节点字段被误改，各索引也能被完整清理。
type entry struct {
	node      *NodeInfo
	addr      types.BusAddress
	name      string
	connAddr  types.BusAddress
	expire    uint64
	heapIndex int
}

func newEntry(n *NodeInfo) *entry {
	return &entry{
		node:      n,
		addr:      n.addr,
		name:      n.uniqueName,
		connAddr:  n.ConnectAddress(),
		expire:    n.ExpireTime(),
		heapIndex: -1,
	}
}

// lessByAddr 主索引排序：按总线地址
func lessByAddr(a, b *entry) bool {
	return a.addr.Less(b.addr)
}

// lessByConnAddr 连接地址多重映射排序：先连接地址，再节点地址
func lessByConnAddr(a, b *entry) bool {
	if c := a.connAddr.Compare(b.connAddr); c != 0 {
		return c < 0
	}
	return a.addr.Less(b.addr)
}

// addrPivot 构造只带地址的查找键
func addrPivot(addr types.BusAddress) *entry {
	return &entry{addr: addr}
}

// connPivot 构造连接地址区间的起点
func connPivot(connAddr types.BusAddress) *entry {
	return &entry{connAddr: connAddr}
}

// ============================================================================
//                              过期索引
// ============================================================================

// 确保 expireHeap 实现了 heap.Interface
var _ heap.Interface = (*expireHeap)(nil)

// expireHeap 按过期时间排序的最小堆，相同过期时间按地址排序
//
// 注册表中所有节点都在堆中，不过期的节点以 ExpireNever 排在最后。
type expireHeap []*entry

func (h expireHeap) Len() int { return len(h) }

func (h expireHeap) Less(i, j int) bool {
	if h[i].expire != h[j].expire {
		return h[i].expire < h[j].expire
	}
	return h[i].addr.Less(h[j].addr)
}

func (h expireHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *expireHeap) Push(x any) {
	e := x.(*entry)
	e.heapIndex = len(*h)
	*h = append(*h, e)
}

func (h *expireHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.heapIndex = -1
	*h = old[:n-1]
	return e
}

// peek 返回最早过期的记录
func (h expireHeap) peek() *entry {
	if len(h) == 0 {
		return nil
	}
	return h[0]
}

// indices 注册表的全部索引
//
// 所有成员必须同时出现在每个索引中。indices 本身不加锁，由 DB 负责。
type indices struct {
	nodes   *btree.BTreeG[*entry]
	addrMap map[types.BusAddress]*entry
	nameMap map[string]*entry
	connMap *btree.BTreeG[*entry]
	expire  expireHeap

	// view 为 true 时不持有节点，见 NewView
	view bool
}

func newIndices(view bool) indices {
	return indices{
		nodes:   btree.NewG[*entry](btreeDegree, lessByAddr),
		addrMap: make(map[types.BusAddress]*entry),
		nameMap: make(map[string]*entry),
		connMap: btree.NewG[*entry](btreeDegree, lessByConnAddr),
		view:    view,
	}
}

// retain 持有节点：锁定其索引键和代理链
func (ix *indices) retain(n *NodeInfo) {
	if ix.view {
		return
	}
	n.owners.Add(1)
	n.pinRoute(1)
}

// unretain 解除 retain
func (ix *indices) unretain(n *NodeInfo) {
	if ix.view {
		return
	}
	n.owners.Add(-1)
	n.pinRoute(-1)
}

// insert 把节点加入全部索引，调用方保证地址不在索引中
func (ix *indices) insert(n *NodeInfo) *entry {
	e := newEntry(n)
	ix.nodes.ReplaceOrInsert(e)
	ix.addrMap[e.addr] = e
	if e.name != "" {
		ix.nameMap[e.name] = e
	}
	ix.connMap.ReplaceOrInsert(e)
	heap.Push(&ix.expire, e)
	ix.retain(n)
	return e
}

// remove 把记录从全部索引中删除
func (ix *indices) remove(e *entry) {
	ix.nodes.Delete(e)
	delete(ix.addrMap, e.addr)
	if e.name != "" && ix.nameMap[e.name] == e {
		delete(ix.nameMap, e.name)
	}
	ix.connMap.Delete(e)
	if e.heapIndex >= 0 {
		heap.Remove(&ix.expire, e.heapIndex)
	}
	ix.unretain(e.node)
}

// setExpire 更新记录的过期时间并调整堆
func (ix *indices) setExpire(e *entry, ms uint64) {
	ix.storeExpire(e, ms)
	heap.Fix(&ix.expire, e.heapIndex)
}

// storeExpire 只更新过期时间，不调整堆，批量更新后需调用 heap.Init
func (ix *indices) storeExpire(e *entry, ms uint64) {
	if e.expire == ms && e.node.ExpireTime() == ms {
		return
	}
	n := ix.own(e)
	n.expireTime.Store(ms)
	e.expire = ms
}

// own 返回可以安全修改的节点
//
// 节点同时被其他注册表索引时，用副本替换本注册表中的引用（写时复制），
// 避免修改破坏其他注册表的索引。视图不持有节点，总是先复制。
// 副本的索引键与原节点相同，无需重建索引。
func (ix *indices) own(e *entry) *NodeInfo {
	if !ix.view && e.node.owners.Load() <= 1 {
		return e.node
	}
	c := e.node.Clone()
	ix.retain(c)
	ix.unretain(e.node)
	e.node = c
	return c
}

// reset 清空全部索引
func (ix *indices) reset() {
	ix.nodes.Ascend(func(e *entry) bool {
		ix.unretain(e.node)
		return true
	})
	*ix = newIndices(ix.view)
}
