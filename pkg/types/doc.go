// Package types 定义蓝牙拓扑注册表的公共值类型
//
// 这是整个模块的最底层包，不依赖任何其他内部包。
// 所有类型都是纯值类型，可以安全地复制和比较。
//
// # 文件组织
//
//   - bdaddress.go  - BDAddress 蓝牙设备地址（48 位）
//   - busaddress.go - BusAddress 总线地址（设备地址 + L2CAP PSM）
//   - nameset.go    - NameSet 总线名称集合（广播名 / 查找名）
//   - errors.go     - 公共错误定义
//
// # 地址格式
//
// BusAddress 有两种文本形式：
//
//	bluetooth:addr=AA:BB:CC:DD:EE:FF,psm=0x0104   // 连接规格，可往返解析
//	AA:BB:CC:DD:EE:FF-0104                        // 人类可读形式，仅用于日志
//
// 解析连接规格是宽容的：格式错误时返回 PSM 为 InvalidPSM 的地址，
// 调用方必须检查 IsValid()。
package types
