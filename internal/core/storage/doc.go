// Package storage 把注册表快照归档到 BadgerDB
//
// 归档是一组按时间排列的注册表快照，供离线分析（btnodedb history）使用。
// 注册表本身始终只在内存中，启动时不会从归档恢复。
//
// 启用后（storage.path 不为空）：
//
//   - 每隔 storage.archive_interval 记录一次快照
//   - 停止时再记录一次
//   - 快照数超过 storage.max_snapshots 时删除最旧的
//
// # 键空间
//
//	t/<ts>          快照标记，值为节点数（4 字节大端）
//	s/<ts><addr>    快照中的节点（JSON 编码的 nodedb.NodeSnapshot）
//
// ts 为 8 字节大端毫秒时间戳，addr 为 8 字节大端 BDAddress<<16 | PSM，
// 同一快照内节点的键序与注册表的地址序一致。
package storage
