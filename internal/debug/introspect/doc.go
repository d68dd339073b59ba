// Package introspect 提供本地自省 HTTP 服务
//
// 该服务运行在本地端口，提供 JSON 格式的注册表诊断信息和 Prometheus 指标。
// 配置了 metrics.listen_addr 时由 Fx 模块启动。
//
// # 端点
//
//	GET /debug/introspect            - 完整诊断报告 (JSON)
//	GET /debug/introspect/nodes      - 注册表快照，支持 ?name= / ?connect= 过滤
//	GET /debug/introspect/table      - 注册表文本表格
//	GET /debug/introspect/runtime    - 运行时信息
//	GET /debug/pprof/*               - Go pprof 端点
//	GET /metrics                     - Prometheus 指标
//	GET /health                      - 健康检查
//
// # 使用示例
//
//	server := introspect.New(introspect.Config{
//	    Addr:     "127.0.0.1:6060",
//	    Registry: db,
//	    Gatherer: reg,
//	})
//	server.Start(ctx)
//	defer server.Stop()
//
// # 安全
//
// 默认只监听本地地址，不暴露到网络。
// 如果需要远程访问，请确保配置适当的访问控制。
package introspect
