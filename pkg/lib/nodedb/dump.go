package nodedb

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dep2p/go-btnodedb/pkg/lib/log"
)

// Stats 注册表统计
type Stats struct {
	Nodes          int `json:"nodes"`
	DirectMinions  int `json:"direct_minions"`
	AdvertiseNames int `json:"advertise_names"`
	FindNames      int `json:"find_names"`
	Expiring       int `json:"expiring"`

	// 以下为累计计数
	Added   uint64 `json:"added"`
	Removed uint64 `json:"removed"`
	Expired uint64 `json:"expired"`
}

// Stats 返回注册表当前统计
func (db *DB) Stats() Stats {
	var s Stats
	db.View(func(tx *ReadTx) {
		s.Nodes = tx.Size()
		tx.Range(func(n *NodeInfo) bool {
			if n.directMinion {
				s.DirectMinions++
			}
			s.AdvertiseNames += n.adNames.Len()
			s.FindNames += n.findNames.Len()
			if n.ExpireTime() != ExpireNever {
				s.Expiring++
			}
			return true
		})
	})
	s.Added = db.added.Load()
	s.Removed = db.removed.Load()
	s.Expired = db.expired.Load()
	return s
}

// DumpTable 以调试日志输出注册表全部内容
func (db *DB) DumpTable(info string) {
	if !logger.Enabled(log.LevelDebug) {
		return
	}
	db.View(func(tx *ReadTx) {
		logger.Debug("注册表内容", "info", info, "nodes", tx.Size())
		tx.Range(func(n *NodeInfo) bool {
			logger.Debug("  节点",
				"addr", n.addr.String(),
				"name", n.uniqueName,
				"guid", n.guid,
				"connect", n.ConnectAddress().String(),
				"minion", n.directMinion,
				"epoch", n.epoch,
				"expire", n.ExpireTime(),
				"ad", strings.Join(n.adNames.Sorted(), ","),
				"find", strings.Join(n.findNames.Sorted(), ","))
			return true
		})
	})
}

// WriteTable 以表格形式写出注册表内容
func (db *DB) WriteTable(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ADDRESS\tUNIQUE NAME\tCONNECT\tMINION\tEPOCH\tEXPIRE\tADVERTISE\tFIND")

	now := db.nowMillis()
	db.Range(func(n *NodeInfo) bool {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%d\t%s\t%s\t%s\n",
			n.addr, dash(n.uniqueName), n.ConnectAddress(), n.directMinion, n.epoch,
			formatExpire(n.ExpireTime(), now),
			dash(strings.Join(n.adNames.Sorted(), ",")),
			dash(strings.Join(n.findNames.Sorted(), ",")))
		return true
	})
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatExpire(ms, now uint64) string {
	switch {
	case ms == ExpireNever:
		return "never"
	case ms <= now:
		return "expired"
	default:
		return fmt.Sprintf("+%dms", ms-now)
	}
}
