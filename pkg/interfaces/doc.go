// Package interfaces 定义各组件之间的接口和事件
//
//   - nodedb.go   - NodeDB 节点注册表
//   - eventbus.go - EventBus 进程内事件总线
//   - events.go   - 发现层与跟踪器之间的事件
//
// 具体实现位于 internal/ 下，通过 Fx 模块注入。
package interfaces
