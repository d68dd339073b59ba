// Package lib 包含不依赖 Fx 的基础库
//
//   - log: 基于 slog 的组件日志
//   - nodedb: 蓝牙节点注册表（多索引、差异计算、过期管理）
//
// internal/ 下的模块把这些库包装成 Fx 组件；库本身可以独立使用。
package lib
