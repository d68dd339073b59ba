// Package eventbus 实现进程内事件总线
//
// 事件按 Go 类型路由，发射不阻塞：订阅者缓冲区满时丢弃事件并计数。
//
//	sub, _ := bus.Subscribe(new(pkgif.EvtNodesExpired), pkgif.Name("relay"))
//	defer sub.Close()
//
//	em, _ := bus.Emitter(new(pkgif.EvtNodesExpired))
//	_ = em.Emit(pkgif.EvtNodesExpired{Nodes: expired})
//
// 发现层通过总线把 EvtNodeFound / EvtNodeLost / EvtScanComplete 交给跟踪器，
// 跟踪器再发出 EvtNamesChanged / EvtNodesExpired。
package eventbus
