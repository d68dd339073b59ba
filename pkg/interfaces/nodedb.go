package interfaces

import (
	"time"

	"github.com/dep2p/go-btnodedb/pkg/lib/nodedb"
	"github.com/dep2p/go-btnodedb/pkg/types"
)

// NodeDB 蓝牙节点注册表
//
// 由 *nodedb.DB 实现。Diff / UpdateDB 的参数和结果使用具体类型，
// 因为差异结果本身也是注册表，需要继续查找和遍历。
type NodeDB interface {
	NodeLookup

	// AddNode 添加或替换节点
	AddNode(n *nodedb.NodeInfo) error

	// RemoveNode 删除与 n 地址相同的节点
	RemoveNode(n *nodedb.NodeInfo)

	// RemoveByAddress 按地址删除节点
	RemoveByAddress(addr types.BusAddress) bool

	// Clear 清空注册表
	Clear()

	// Update 在写锁内执行多个操作
	Update(fn func(tx *nodedb.Tx))

	// View 在读锁内执行多个查找
	View(fn func(tx *nodedb.ReadTx))

	NodeSync
	NodeExpiration

	// Snapshot 导出快照
	Snapshot() nodedb.Snapshot

	// Stats 返回统计
	Stats() nodedb.Stats
}

// NodeLookup 注册表的只读查找
type NodeLookup interface {
	Size() int
	Nodes() []*nodedb.NodeInfo
	FindByAddress(addr types.BusAddress) *nodedb.NodeInfo
	FindByDeviceAddress(dev types.BDAddress) *nodedb.NodeInfo
	FindByUniqueName(name string) *nodedb.NodeInfo
	FindNodesByConnectAddress(connAddr types.BusAddress) *nodedb.DB
	FindNextDirectMinion(start, skip *nodedb.NodeInfo) *nodedb.NodeInfo
}

// NodeSync 增量同步
type NodeSync interface {
	// Diff 计算到 other 的差异
	Diff(other *nodedb.DB) (added, removed *nodedb.DB)

	// NodeDiff 只按节点是否存在计算差异
	NodeDiff(other *nodedb.DB) (added, removed *nodedb.DB)

	// UpdateDB 应用差异
	UpdateDB(added, removed *nodedb.DB, reapEmptyNodes bool)
}

// NodeExpiration 过期管理
type NodeExpiration interface {
	RemoveExpiration()
	RefreshExpiration(delta time.Duration)
	RefreshConnectExpiration(connAddr types.BusAddress, delta time.Duration) int
	RefreshNodeExpiration(n *nodedb.NodeInfo, delta time.Duration) bool
	NextExpirationDeadline() uint64
	PopExpiredNodes(out *nodedb.DB) int
}

// 确保 *nodedb.DB 实现了 NodeDB
var _ NodeDB = (*nodedb.DB)(nil)
