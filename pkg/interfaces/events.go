package interfaces

import (
	"time"

	"github.com/dep2p/go-btnodedb/pkg/lib/nodedb"
	"github.com/dep2p/go-btnodedb/pkg/types"
)

// ============================================================================
//                              输入事件（发现层 → 跟踪器）
// ============================================================================

// EvtNodeFound 发现层看到一个节点
//
// Expire 为 0 时使用配置中的默认有效期。
type EvtNodeFound struct {
	Node   *nodedb.NodeInfo
	Expire time.Duration
}

// EvtNodeLost 发现层确认节点已离开
type EvtNodeLost struct {
	Addr types.BusAddress
}

// EvtScanComplete 一次完整扫描的结果
//
// Nodes 是本轮扫描看到的全部节点。ConnectAddr 有效时，
// 只与经由该地址连接的节点子集比较（单个 master 的子网）。
type EvtScanComplete struct {
	Nodes       *nodedb.DB
	ConnectAddr types.BusAddress
	Epoch       uint32
}

// ============================================================================
//                              输出事件（跟踪器 → 订阅者）
// ============================================================================

// EvtNamesChanged 一次扫描合并后产生的名称变化
//
// Added / Removed 即 Diff 的结果，可以直接转发给皮可网中的其他节点。
type EvtNamesChanged struct {
	Added   *nodedb.DB
	Removed *nodedb.DB
	Epoch   uint32
}

// EvtNodesExpired 过期回收移除的节点
type EvtNodesExpired struct {
	Nodes *nodedb.DB
}
