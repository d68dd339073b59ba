package nodedb

import (
	"github.com/dep2p/go-btnodedb/pkg/types"
)

// nodeSnap 节点及其名称集合在某一时刻的快照
type nodeSnap struct {
	node      *NodeInfo
	adNames   types.NameSet
	findNames types.NameSet
}

// snapshot 在读锁内复制出按地址排序的节点快照
//
// Diff / UpdateDB 先分别快照各个注册表再比较，任何时刻只持有一把锁，
// 两个线程以相反方向比较也不会死锁。
//
// 快照中的节点被钉住（计入 owners），直到 release。
// 期间原注册表修改这些节点时会先复制，快照看到的字段保持不变。
func (db *DB) snapshot() []nodeSnap {
	var snaps []nodeSnap
	db.View(func(tx *ReadTx) {
		snaps = make([]nodeSnap, 0, tx.Size())
		tx.db.ix.nodes.Ascend(func(e *entry) bool {
			e.node.owners.Add(1)
			snaps = append(snaps, nodeSnap{
				node:      e.node,
				adNames:   e.node.adNames.Clone(),
				findNames: e.node.findNames.Clone(),
			})
			return true
		})
	})
	return snaps
}

// release 解除快照对节点的钉住
func release(snaps []nodeSnap) {
	for _, s := range snaps {
		s.node.owners.Add(-1)
	}
}

// deltaNode 创建只携带指定名称的独立节点副本
func deltaNode(src *NodeInfo, adNames, findNames types.NameSet) *NodeInfo {
	n := NewNodeInfo(src.addr, WithGUID(src.guid), WithUniqueName(src.uniqueName))
	n.directMinion = src.directMinion
	n.connectProxy = src.connectProxy
	n.epoch = src.epoch
	n.expireTime.Store(src.ExpireTime())
	n.adNames = adNames
	n.findNames = findNames
	return n
}

// mergeWalk 按地址顺序归并两组快照
//
// onlyOurs / onlyTheirs / both 分别处理只在一侧或两侧都有的节点。
func mergeWalk(ours, theirs []nodeSnap, onlyOurs, onlyTheirs func(s nodeSnap), both func(o, t nodeSnap)) {
	i, j := 0, 0
	for i < len(ours) || j < len(theirs) {
		switch {
		case j >= len(theirs):
			onlyOurs(ours[i])
			i++
		case i >= len(ours):
			onlyTheirs(theirs[j])
			j++
		default:
			c := ours[i].node.addr.Compare(theirs[j].node.addr)
			switch {
			case c < 0:
				onlyOurs(ours[i])
				i++
			case c > 0:
				onlyTheirs(theirs[j])
				j++
			default:
				both(ours[i], theirs[j])
				i++
				j++
			}
		}
	}
}

// Diff 计算本注册表到 other 的差异
//
// 只在 other 中的节点按引用放入 added，只在本注册表中的节点按引用放入 removed。
// 两边都有但名称不同的节点，生成只包含差异名称的独立副本：新增名称进入 added，
// 消失名称进入 removed。一个节点可能同时出现在 added 和 removed 中。
// added 和 removed 都是视图（见 NewView）。
func (db *DB) Diff(other *DB) (added, removed *DB) {
	ours := db.snapshot()
	defer release(ours)
	theirs := other.snapshot()
	defer release(theirs)

	added = db.newView()
	removed = db.newView()

	mergeWalk(ours, theirs,
		func(s nodeSnap) { removed.ix.insert(s.node) },
		func(s nodeSnap) { added.ix.insert(s.node) },
		func(o, t nodeSnap) {
			if o.adNames.Equal(t.adNames) && o.findNames.Equal(t.findNames) {
				return
			}

			addAd, addFind := t.adNames.Difference(o.adNames), t.findNames.Difference(o.findNames)
			if !addAd.Empty() || !addFind.Empty() {
				added.ix.insert(deltaNode(t.node, addAd, addFind))
			}

			rmAd, rmFind := o.adNames.Difference(t.adNames), o.findNames.Difference(t.findNames)
			if !rmAd.Empty() || !rmFind.Empty() {
				removed.ix.insert(deltaNode(o.node, rmAd, rmFind))
			}
		},
	)

	logger.Debug("注册表差异", "added", added.ix.nodes.Len(), "removed", removed.ix.nodes.Len())
	return added, removed
}

// NodeDiff 只按节点是否存在计算差异，忽略名称
func (db *DB) NodeDiff(other *DB) (added, removed *DB) {
	ours := db.snapshot()
	defer release(ours)
	theirs := other.snapshot()
	defer release(theirs)

	added = db.newView()
	removed = db.newView()

	mergeWalk(ours, theirs,
		func(s nodeSnap) { removed.ix.insert(s.node) },
		func(s nodeSnap) { added.ix.insert(s.node) },
		func(nodeSnap, nodeSnap) {},
	)
	return added, removed
}

// UpdateDB 把 Diff 的结果应用到本注册表
//
// 先处理 removed：从已有节点删除列出的名称，reapEmptyNodes 为 true 时
// 删除名称已全部清空的节点。再处理 added：已有节点合并名称，
// GUID、唯一名、连接代理、直连标志和发现轮次以传入记录为准；
// 不存在的节点直接按引用加入。过期时间保持不变，由过期管理负责刷新。
//
// added、removed 均可为 nil。
func (db *DB) UpdateDB(added, removed *DB, reapEmptyNodes bool) {
	var adds, rms []nodeSnap
	if added != nil {
		adds = added.snapshot()
		defer release(adds)
	}
	if removed != nil {
		rms = removed.snapshot()
		defer release(rms)
	}

	db.Update(func(tx *Tx) {
		for _, s := range rms {
			tx.removeNames(s, reapEmptyNodes)
		}
		for _, s := range adds {
			tx.mergeNames(s)
		}
	})
}

// removeNames 从已有节点删除 s 中列出的名称
func (tx *Tx) removeNames(s nodeSnap, reapEmptyNodes bool) {
	ix := &tx.db.ix
	e, ok := ix.addrMap[s.node.addr]
	if !ok {
		return
	}

	n := ix.own(e)
	for name := range s.adNames {
		n.adNames.Remove(name)
	}
	for name := range s.findNames {
		n.findNames.Remove(name)
	}

	if reapEmptyNodes && !n.HasNames() {
		ix.remove(e)
		tx.db.removed.Add(1)
		logger.Debug("名称清空，节点已回收", "node", n.String())
	}
}

// mergeNames 把 s 合并进已有节点，或作为新节点加入
func (tx *Tx) mergeNames(s nodeSnap) {
	ix := &tx.db.ix
	e, ok := ix.addrMap[s.node.addr]
	if !ok {
		_ = tx.AddNode(s.node)
		return
	}

	// 唯一名和连接代理是索引键，合并结果作为新记录重新索引
	merged := e.node.Clone()
	merged.adNames.Add(s.adNames.Sorted()...)
	merged.findNames.Add(s.findNames.Sorted()...)
	if s.node.guid != "" {
		merged.guid = s.node.guid
	}
	if s.node.uniqueName != "" {
		merged.uniqueName = s.node.uniqueName
	}
	merged.connectProxy = s.node.connectProxy
	merged.directMinion = s.node.directMinion
	if s.node.epoch != InvalidEpoch {
		merged.epoch = s.node.epoch
	}

	ix.remove(e)
	ix.insert(merged)
}

// Equal 两个注册表的节点集合和名称是否完全相同
func (db *DB) Equal(other *DB) bool {
	ours := db.snapshot()
	defer release(ours)
	theirs := other.snapshot()
	defer release(theirs)
	if len(ours) != len(theirs) {
		return false
	}
	for i := range ours {
		if ours[i].node.addr != theirs[i].node.addr ||
			!ours[i].adNames.Equal(theirs[i].adNames) ||
			!ours[i].findNames.Equal(theirs[i].findNames) {
			return false
		}
	}
	return true
}
