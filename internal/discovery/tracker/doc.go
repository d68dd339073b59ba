// Package tracker 把发现层的事件合并进节点注册表
//
// 发现层（扫描、广播监听）通过事件总线发出三类事件：
//
//   - EvtNodeFound：看到一个节点，记录并刷新有效期
//   - EvtNodeLost：节点离开，删除它以及经由它连接的全部节点
//   - EvtScanComplete：一次完整扫描，与注册表（或某个 master 的子网）求差异后合并
//
// 合并产生的名称变化以 EvtNamesChanged 发出，Added / Removed 可以直接
// 转发给其他节点。回收循环睡眠到注册表中最早的过期时间，
// 醒来后移除过期节点并发出 EvtNodesExpired。
//
// 使用示例：
//
//	app := fx.New(
//	    eventbus.Module(),
//	    nodedb.Module(),
//	    tracker.Module(),
//	)
package tracker
