// Package metrics 提供 Prometheus 指标
//
// Module 提供 prometheus.Registerer / prometheus.Gatherer；
// NodeDBCollector 在抓取时读取注册表统计。
//
//	metrics.RegisterCollectors(reg, metrics.NewNodeDBCollector("btnodedb", db, bus))
//	http.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
package metrics
