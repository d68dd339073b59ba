// Package btnodedb 提供蓝牙总线拓扑的节点注册表服务
//
// 注册表记录附近的蓝牙节点（总线地址、GUID、唯一名、连接代理、
// 广播名与查找名、发现轮次、过期时间），支持按地址、设备地址、
// 唯一名和连接地址查询，计算两个注册表之间的差异并合并，
// 并按过期时间自动回收节点。
//
// # 快速开始
//
//	reg, err := btnodedb.Start(ctx)
//	if err != nil {
//	    return err
//	}
//	defer reg.Close()
//
//	node := nodedb.NewNodeInfo(addr, nodedb.WithUniqueName(":1.5"))
//	node.AddAdvertiseName("org.alljoyn.About")
//	_ = reg.Found(node, 0)
//
//	sub, _ := reg.EventBus().Subscribe(new(interfaces.EvtNamesChanged))
//
// # 架构
//
//   - pkg/types: BDAddress / BusAddress / NameSet
//   - pkg/lib/nodedb: NodeInfo 与多索引注册表（不依赖 Fx 的核心库）
//   - internal/core: 事件总线、指标、注册表、BadgerDB 持久化 Fx 模块
//   - internal/discovery/tracker: 把发现事件合并进注册表，回收过期节点
//   - internal/debug/introspect: /metrics、/debug/introspect 自省服务
//   - cmd/btnodedb: diff / replay / serve 命令行工具
//
// 单独使用核心库时直接引用 pkg/lib/nodedb，不需要 Fx。
package btnodedb
