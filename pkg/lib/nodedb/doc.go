// Package nodedb 实现蓝牙节点注册表
//
// 注册表记录当前可通过蓝牙到达的远端守护进程（节点）、各节点广播和查找的总线名，
// 以及皮可网中替其他节点接受连接的代理关系。
//
// # 索引
//
// 同一组节点同时维护五个视图，任何修改都在同一把锁内更新全部视图：
//
//   - 按总线地址排序的主索引
//   - 总线地址 → 节点
//   - 唯一名 → 节点
//   - 连接地址 → 经该地址连接的节点（多重映射）
//   - 按过期时间排序的堆，时间相同按地址排序
//
// # 共享与写时复制
//
// NodeInfo 以指针在多个注册表之间共享。节点被任一注册表索引时，
// 索引键（地址、唯一名、连接代理、过期时间）不可修改；
// 注册表内部需要修改共享节点时先复制一份，其他注册表不受影响。
// 已索引节点的代理链上的节点同样被锁定。
//
// 查找和 Diff 返回的注册表是视图（NewView），只共享引用，不锁定节点。
// New 和 Clone 创建的注册表持有节点，临时使用后调用 Release 解除。
//
// # 增量同步
//
// Diff 比较两个注册表，得到新增和删除的节点及名称；UpdateDB 把差异应用回注册表。
// 对任意 A、B：
//
//	added, removed := a.Diff(b)
//	a.UpdateDB(added, removed, true)
//	// 此时 a 与 b 的节点和名称相同
//
// # 使用示例
//
//	db := nodedb.New()
//	n := nodedb.NewNodeInfo(addr, nodedb.WithUniqueName(":1.5"))
//	n.AddAdvertiseName("org.example.svc")
//	_ = db.AddNode(n)
//
//	db.RefreshExpiration(30 * time.Second)
//	expired := nodedb.NewView()
//	db.PopExpiredNodes(expired)
package nodedb
