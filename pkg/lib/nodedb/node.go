package nodedb

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/dep2p/go-btnodedb/pkg/types"
)

const (
	// ExpireNever 不过期的哨兵值（毫秒时间戳最大值）
	ExpireNever uint64 = math.MaxUint64

	// InvalidEpoch 无效的发现轮次
	InvalidEpoch uint32 = 0

	// MaxProxyDepth 连接代理链的最大深度
	//
	// 正常的皮可网最多两跳，超过此深度视为环。
	MaxProxyDepth = 64
)

// NodeInfo 远端守护进程的节点记录
//
// 节点的相等性只由总线地址决定。NodeInfo 以指针形式在多个注册表、
// Diff 结果和调用方之间共享。
//
// 被注册表索引期间，索引键（总线地址、唯一名、连接代理、过期时间）
// 不可修改，对应的 Set 方法返回 ErrNodeIndexed。已索引节点的代理链上的节点
// 同样不可修改，否则这些节点的连接地址会改变而索引不会更新。
// 名称集合不是索引键，可以在持有注册表锁（DB.Update）时直接修改。
type NodeInfo struct {
	guid         string
	uniqueName   string
	addr         types.BusAddress
	directMinion bool
	connectProxy *NodeInfo
	adNames      types.NameSet
	findNames    types.NameSet
	epoch        uint32
	expireTime   atomic.Uint64

	// owners 索引或临时钉住该节点的注册表数量
	owners atomic.Int32
	// routes 代理链经过该节点的已索引节点数量
	routes atomic.Int32
}

// NodeOption 节点构造选项
type NodeOption func(*NodeInfo)

// WithUniqueName 设置唯一总线名
func WithUniqueName(name string) NodeOption {
	return func(n *NodeInfo) { n.uniqueName = name }
}

// WithGUID 设置总线 GUID
func WithGUID(guid string) NodeOption {
	return func(n *NodeInfo) { n.guid = guid }
}

// NewNodeInfo 创建节点记录
func NewNodeInfo(addr types.BusAddress, opts ...NodeOption) *NodeInfo {
	n := &NodeInfo{
		addr:      addr,
		adNames:   types.NewNameSet(),
		findNames: types.NewNameSet(),
		epoch:     InvalidEpoch,
	}
	n.expireTime.Store(ExpireNever)
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// invalidNode 返回一个新的无效节点，作为查找失败的结果
func invalidNode() *NodeInfo {
	return NewNodeInfo(types.BusAddress{})
}

// Clone 复制节点
//
// 名称集合深拷贝，连接代理共享同一引用。副本不属于任何注册表。
func (n *NodeInfo) Clone() *NodeInfo {
	c := &NodeInfo{
		guid:         n.guid,
		uniqueName:   n.uniqueName,
		addr:         n.addr,
		directMinion: n.directMinion,
		connectProxy: n.connectProxy,
		adNames:      n.adNames.Clone(),
		findNames:    n.findNames.Clone(),
		epoch:        n.epoch,
	}
	c.expireTime.Store(n.expireTime.Load())
	return c
}

// IsValid 节点是否有效（nil 安全）
func (n *NodeInfo) IsValid() bool {
	return n != nil && n.addr.IsValid()
}

// Equal 两个节点是否为同一节点（只比较总线地址）
func (n *NodeInfo) Equal(o *NodeInfo) bool {
	return n.addr == o.addr
}

// Indexed 节点当前是否被注册表索引，或是某个已索引节点的连接代理
//
// 视图（NewView）中的节点不计入。
func (n *NodeInfo) Indexed() bool {
	return n.owners.Load() > 0 || n.routes.Load() > 0
}

// pinRoute 给代理链上的每个节点的 routes 计数加 delta
//
// 链上节点被锁定后代理不可修改，加减两次遍历到的是同一条链。
func (n *NodeInfo) pinRoute(delta int32) {
	p := n.connectProxy
	for depth := 0; p != nil && depth < MaxProxyDepth; depth++ {
		p.routes.Add(delta)
		p = p.connectProxy
	}
}

// String 日志用的简短描述
func (n *NodeInfo) String() string {
	if n.uniqueName == "" {
		return n.addr.String()
	}
	return fmt.Sprintf("%s (%s)", n.addr, n.uniqueName)
}

// ============================================================================
//                              标识字段
// ============================================================================

// GUID 返回总线 GUID
func (n *NodeInfo) GUID() string { return n.guid }

// SetGUID 设置总线 GUID
func (n *NodeInfo) SetGUID(guid string) { n.guid = guid }

// UniqueName 返回守护进程的唯一总线名
func (n *NodeInfo) UniqueName() string { return n.uniqueName }

// SetUniqueName 设置唯一总线名（索引键）
func (n *NodeInfo) SetUniqueName(name string) error {
	if n.Indexed() {
		return ErrNodeIndexed
	}
	n.uniqueName = name
	return nil
}

// BusAddress 返回节点自身的总线地址
func (n *NodeInfo) BusAddress() types.BusAddress { return n.addr }

// SetBusAddress 设置总线地址（主键）
func (n *NodeInfo) SetBusAddress(addr types.BusAddress) error {
	if n.Indexed() {
		return ErrNodeIndexed
	}
	n.addr = addr
	return nil
}

// IsDirectMinion 是否直连本节点的 minion
func (n *NodeInfo) IsDirectMinion() bool { return n.directMinion }

// SetDirectMinion 设置是否为直连 minion
func (n *NodeInfo) SetDirectMinion(v bool) { n.directMinion = v }

// DiscoveryEpoch 返回最后一次发现该节点的广播轮次
func (n *NodeInfo) DiscoveryEpoch() uint32 { return n.epoch }

// SetDiscoveryEpoch 设置发现轮次
func (n *NodeInfo) SetDiscoveryEpoch(epoch uint32) { n.epoch = epoch }

// ExpireTime 返回绝对过期时间（毫秒），ExpireNever 表示不过期
func (n *NodeInfo) ExpireTime() uint64 { return n.expireTime.Load() }

// SetExpireTime 设置绝对过期时间（索引键）
//
// 注册表内的节点请使用 DB.RefreshNodeExpiration。
func (n *NodeInfo) SetExpireTime(ms uint64) error {
	if n.Indexed() {
		return ErrNodeIndexed
	}
	n.expireTime.Store(ms)
	return nil
}

// ============================================================================
//                              连接代理
// ============================================================================

// ConnectNode 返回替本节点接受连接的代理节点，nil 表示无代理
func (n *NodeInfo) ConnectNode() *NodeInfo { return n.connectProxy }

// SetConnectNode 设置连接代理（索引键）
//
// 代理自身可能还有代理，形成一条链。传入 nil 或与本节点地址相同的节点
// 会清除代理。若代理链会回到本节点，返回 ErrProxyCycle。
func (n *NodeInfo) SetConnectNode(proxy *NodeInfo) error {
	if n.Indexed() {
		return ErrNodeIndexed
	}
	if proxy == nil || proxy.addr == n.addr {
		n.connectProxy = nil
		return nil
	}

	depth := 0
	for p := proxy; p != nil; p = p.connectProxy {
		if p == n || p.addr == n.addr || depth >= MaxProxyDepth {
			return fmt.Errorf("%w: via %s", ErrProxyCycle, proxy.addr)
		}
		depth++
	}

	n.connectProxy = proxy
	return nil
}

// ResolveConnectAddress 沿代理链找到终点，返回实际要连接的总线地址
func (n *NodeInfo) ResolveConnectAddress() (types.BusAddress, error) {
	next := n
	for depth := 0; next.connectProxy != nil; depth++ {
		if depth >= MaxProxyDepth {
			return types.BusAddress{}, fmt.Errorf("%w: from %s", ErrProxyCycle, n.addr)
		}
		next = next.connectProxy
	}
	return next.addr, nil
}

// ConnectAddress 返回实际要连接的总线地址
//
// 代理链不终止时记录错误并返回无效地址。
func (n *NodeInfo) ConnectAddress() types.BusAddress {
	addr, err := n.ResolveConnectAddress()
	if err != nil {
		logger.Error("连接代理链不终止", "node", n.addr.String(), "err", err)
	}
	return addr
}

// ============================================================================
//                              名称集合
// ============================================================================

// AdvertiseNames 返回广播名集合（可直接修改）
func (n *NodeInfo) AdvertiseNames() types.NameSet { return n.adNames }

// FindNames 返回查找名集合（可直接修改）
func (n *NodeInfo) FindNames() types.NameSet { return n.findNames }

// AddAdvertiseName 添加广播名
func (n *NodeInfo) AddAdvertiseName(names ...string) { n.adNames.Add(names...) }

// RemoveAdvertiseName 删除广播名
func (n *NodeInfo) RemoveAdvertiseName(name string) { n.adNames.Remove(name) }

// AddFindName 添加查找名
func (n *NodeInfo) AddFindName(names ...string) { n.findNames.Add(names...) }

// RemoveFindName 删除查找名
func (n *NodeInfo) RemoveFindName(name string) { n.findNames.Remove(name) }

// HasNames 是否还有任何广播名或查找名
func (n *NodeInfo) HasNames() bool {
	return !n.adNames.Empty() || !n.findNames.Empty()
}
