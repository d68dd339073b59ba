package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dep2p/go-btnodedb/pkg/lib/nodedb"
)

// StatsSource 提供注册表统计
type StatsSource interface {
	Stats() nodedb.Stats
}

// DropCounter 提供事件丢弃计数
type DropCounter interface {
	Dropped() uint64
}

// NodeDBCollector 在每次抓取时读取注册表统计
//
// 统计在抓取时计算，不需要在注册表的写路径上更新指标。
type NodeDBCollector struct {
	db  StatsSource
	bus DropCounter

	nodes          *prometheus.Desc
	directMinions  *prometheus.Desc
	advertiseNames *prometheus.Desc
	findNames      *prometheus.Desc
	expiring       *prometheus.Desc
	added          *prometheus.Desc
	removed        *prometheus.Desc
	expired        *prometheus.Desc
	dropped        *prometheus.Desc
}

var _ prometheus.Collector = (*NodeDBCollector)(nil)

// NewNodeDBCollector 创建注册表指标收集器，bus 可以为 nil
func NewNodeDBCollector(namespace string, db StatsSource, bus DropCounter) *NodeDBCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, nil)
	}
	return &NodeDBCollector{
		db:             db,
		bus:            bus,
		nodes:          desc("nodes", "注册表中的节点数"),
		directMinions:  desc("direct_minions", "直连 minion 数"),
		advertiseNames: desc("advertise_names", "全部节点的广播名总数"),
		findNames:      desc("find_names", "全部节点的查找名总数"),
		expiring:       desc("expiring_nodes", "设置了过期时间的节点数"),
		added:          desc("nodes_added_total", "累计新增节点数"),
		removed:        desc("nodes_removed_total", "累计删除节点数（不含过期）"),
		expired:        desc("nodes_expired_total", "累计过期回收节点数"),
		dropped:        desc("events_dropped_total", "订阅者缓冲区满而丢弃的事件数"),
	}
}

// Describe 实现 prometheus.Collector
func (c *NodeDBCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.nodes
	ch <- c.directMinions
	ch <- c.advertiseNames
	ch <- c.findNames
	ch <- c.expiring
	ch <- c.added
	ch <- c.removed
	ch <- c.expired
	if c.bus != nil {
		ch <- c.dropped
	}
}

// Collect 实现 prometheus.Collector
func (c *NodeDBCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.db.Stats()

	gauge := func(d *prometheus.Desc, v int) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, float64(v))
	}
	counter := func(d *prometheus.Desc, v uint64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v))
	}

	gauge(c.nodes, s.Nodes)
	gauge(c.directMinions, s.DirectMinions)
	gauge(c.advertiseNames, s.AdvertiseNames)
	gauge(c.findNames, s.FindNames)
	gauge(c.expiring, s.Expiring)
	counter(c.added, s.Added)
	counter(c.removed, s.Removed)
	counter(c.expired, s.Expired)
	if c.bus != nil {
		counter(c.dropped, c.bus.Dropped())
	}
}
