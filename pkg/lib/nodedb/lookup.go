package nodedb

import (
	"github.com/dep2p/go-btnodedb/pkg/types"
)

// 查找类方法找不到时返回无效节点（IsValid() == false），而不是 nil 或错误。

// FindByAddress 按完整总线地址查找节点
func (db *DB) FindByAddress(addr types.BusAddress) *NodeInfo {
	var n *NodeInfo
	db.View(func(tx *ReadTx) { n = tx.FindByAddress(addr) })
	return n
}

// FindNode 按设备地址和 PSM 查找节点
func (db *DB) FindNode(dev types.BDAddress, psm uint16) *NodeInfo {
	return db.FindByAddress(types.NewBusAddress(dev, psm))
}

// FindByDeviceAddress 查找设备地址匹配的第一个节点（忽略 PSM）
//
// 同一设备上可能运行多个守护进程（PSM 不同），此时返回 PSM 最小的节点。
func (db *DB) FindByDeviceAddress(dev types.BDAddress) *NodeInfo {
	var n *NodeInfo
	db.View(func(tx *ReadTx) { n = tx.FindByDeviceAddress(dev) })
	return n
}

// FindByUniqueName 按唯一总线名查找节点
func (db *DB) FindByUniqueName(name string) *NodeInfo {
	var n *NodeInfo
	db.View(func(tx *ReadTx) { n = tx.FindByUniqueName(name) })
	return n
}

// FindNodesByConnectAddress 返回所有通过 connAddr 接受连接的节点（视图）
func (db *DB) FindNodesByConnectAddress(connAddr types.BusAddress) *DB {
	var sub *DB
	db.View(func(tx *ReadTx) { sub = tx.FindNodesByConnectAddress(connAddr) })
	return sub
}

// GetNodesFromConnectAddr 把所有通过 connAddr 接受连接的节点加入 subDB
//
// 先在本注册表锁内收集并钉住节点，释放后再写入 subDB，两把锁从不嵌套。
func (db *DB) GetNodesFromConnectAddr(connAddr types.BusAddress, subDB *DB) {
	var nodes []*NodeInfo
	db.View(func(tx *ReadTx) {
		nodes = tx.nodesByConnectAddress(connAddr)
		for _, n := range nodes {
			n.owners.Add(1)
		}
	})
	defer func() {
		for _, n := range nodes {
			n.owners.Add(-1)
		}
	}()

	subDB.Update(func(tx *Tx) {
		for _, n := range nodes {
			_ = tx.AddNode(n)
		}
	})
}

// FindNextDirectMinion 把主索引视为环，从 start 之后查找下一个直连 minion，跳过 skip
//
// 找不到时返回 start。用于在直连 minion 之间轮转以保证公平。
func (db *DB) FindNextDirectMinion(start, skip *NodeInfo) *NodeInfo {
	var n *NodeInfo
	db.View(func(tx *ReadTx) { n = tx.FindNextDirectMinion(start, skip) })
	return n
}

// ============================================================================
//                              ReadTx 实现
// ============================================================================

// FindByAddress 按完整总线地址查找节点
func (tx *ReadTx) FindByAddress(addr types.BusAddress) *NodeInfo {
	if e, ok := tx.db.ix.addrMap[addr]; ok {
		return e.node
	}
	return invalidNode()
}

// FindByDeviceAddress 查找设备地址匹配、PSM 最小的节点
func (tx *ReadTx) FindByDeviceAddress(dev types.BDAddress) *NodeInfo {
	var found *NodeInfo
	tx.db.ix.nodes.AscendGreaterOrEqual(addrPivot(types.NewBusAddress(dev, 0)), func(e *entry) bool {
		if e.addr.Addr == dev {
			found = e.node
		}
		return false
	})
	if found == nil {
		return invalidNode()
	}
	return found
}

// FindByUniqueName 按唯一总线名查找节点
func (tx *ReadTx) FindByUniqueName(name string) *NodeInfo {
	if name == "" {
		return invalidNode()
	}
	if e, ok := tx.db.ix.nameMap[name]; ok {
		return e.node
	}
	return invalidNode()
}

// FindNodesByConnectAddress 返回所有通过 connAddr 接受连接的节点
func (tx *ReadTx) FindNodesByConnectAddress(connAddr types.BusAddress) *DB {
	sub := tx.db.newView()
	for _, n := range tx.nodesByConnectAddress(connAddr) {
		sub.ix.insert(n)
	}
	return sub
}

// nodesByConnectAddress 按地址顺序收集连接地址为 connAddr 的节点
func (tx *ReadTx) nodesByConnectAddress(connAddr types.BusAddress) []*NodeInfo {
	var nodes []*NodeInfo
	tx.rangeConnectAddress(connAddr, func(e *entry) {
		nodes = append(nodes, e.node)
	})
	return nodes
}

// rangeConnectAddress 遍历连接地址多重映射中 connAddr 对应的区间
func (tx *ReadTx) rangeConnectAddress(connAddr types.BusAddress, fn func(e *entry)) {
	tx.db.ix.connMap.AscendGreaterOrEqual(connPivot(connAddr), func(e *entry) bool {
		if e.connAddr != connAddr {
			return false
		}
		fn(e)
		return true
	})
}

// FindNextDirectMinion 在主索引环上查找 start 之后的下一个直连 minion
func (tx *ReadTx) FindNextDirectMinion(start, skip *NodeInfo) *NodeInfo {
	nodes := tx.db.ix.nodes

	var startAddr, skipAddr types.BusAddress
	if start != nil {
		startAddr = start.addr
	}
	if skip != nil {
		skipAddr = skip.addr
	}

	match := func(e *entry) bool {
		return e.addr != startAddr && e.node.directMinion && !(skip.IsValid() && e.addr == skipAddr)
	}

	var found *NodeInfo
	// start 之后到末尾
	nodes.AscendGreaterOrEqual(addrPivot(startAddr), func(e *entry) bool {
		if match(e) {
			found = e.node
			return false
		}
		return true
	})
	if found != nil {
		return found
	}

	// 回绕：从头到 start
	nodes.AscendLessThan(addrPivot(startAddr), func(e *entry) bool {
		if match(e) {
			found = e.node
			return false
		}
		return true
	})
	if found != nil {
		return found
	}
	return start
}
