package nodedb

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/dep2p/go-btnodedb/pkg/types"
)

// Snapshot 注册表的可序列化形式，支持 JSON 和 YAML
type Snapshot struct {
	Nodes []NodeSnapshot `json:"nodes" yaml:"nodes"`
}

// NodeSnapshot 单个节点的可序列化形式
//
// Connect 只记录直接代理的地址；ExpireMs 为 0 表示不过期。
type NodeSnapshot struct {
	Addr           types.BusAddress  `json:"addr" yaml:"addr"`
	GUID           string            `json:"guid,omitempty" yaml:"guid,omitempty"`
	UniqueName     string            `json:"unique_name,omitempty" yaml:"unique_name,omitempty"`
	DirectMinion   bool              `json:"direct_minion,omitempty" yaml:"direct_minion,omitempty"`
	Connect        *types.BusAddress `json:"connect,omitempty" yaml:"connect,omitempty"`
	AdvertiseNames []string          `json:"advertise_names,omitempty" yaml:"advertise_names,omitempty"`
	FindNames      []string          `json:"find_names,omitempty" yaml:"find_names,omitempty"`
	Epoch          uint32            `json:"epoch,omitempty" yaml:"epoch,omitempty"`
	ExpireMs       uint64            `json:"expire_ms,omitempty" yaml:"expire_ms,omitempty"`
}

// Snapshot 导出按地址排序的注册表快照
func (db *DB) Snapshot() Snapshot {
	var s Snapshot
	db.View(func(tx *ReadTx) {
		s.Nodes = make([]NodeSnapshot, 0, tx.Size())
		tx.Range(func(n *NodeInfo) bool {
			s.Nodes = append(s.Nodes, snapshotNode(n))
			return true
		})
	})
	return s
}

func snapshotNode(n *NodeInfo) NodeSnapshot {
	ns := NodeSnapshot{
		Addr:           n.addr,
		GUID:           n.guid,
		UniqueName:     n.uniqueName,
		DirectMinion:   n.directMinion,
		AdvertiseNames: n.adNames.Sorted(),
		FindNames:      n.findNames.Sorted(),
		Epoch:          n.epoch,
	}
	if p := n.connectProxy; p != nil {
		addr := p.addr
		ns.Connect = &addr
	}
	if exp := n.ExpireTime(); exp != ExpireNever {
		ns.ExpireMs = exp
	}
	return ns
}

// FromSnapshot 从快照重建注册表
//
// 连接代理按地址在快照内解析，快照中不存在的代理地址生成一个不入表的代理节点。
// 所有错误（无效地址、重复地址、代理环）一并返回。
func FromSnapshot(s Snapshot, opts ...Option) (*DB, error) {
	var err error
	nodes := make(map[types.BusAddress]*NodeInfo, len(s.Nodes))
	order := make([]*NodeInfo, len(s.Nodes))

	for i, ns := range s.Nodes {
		if !ns.Addr.IsValid() {
			err = multierr.Append(err, fmt.Errorf("nodes[%d]: %w", i, ErrInvalidNode))
			continue
		}
		if _, dup := nodes[ns.Addr]; dup {
			err = multierr.Append(err, fmt.Errorf("nodes[%d]: duplicate address %s", i, ns.Addr))
			continue
		}

		n := NewNodeInfo(ns.Addr, WithGUID(ns.GUID), WithUniqueName(ns.UniqueName))
		n.directMinion = ns.DirectMinion
		n.epoch = ns.Epoch
		n.adNames.Add(ns.AdvertiseNames...)
		n.findNames.Add(ns.FindNames...)
		if ns.ExpireMs != 0 {
			n.expireTime.Store(ns.ExpireMs)
		}
		nodes[ns.Addr] = n
		order[i] = n
	}

	proxies := make(map[types.BusAddress]*NodeInfo)
	for i, ns := range s.Nodes {
		n := order[i]
		if n == nil || ns.Connect == nil {
			continue
		}
		proxy, ok := nodes[*ns.Connect]
		if !ok {
			if proxy, ok = proxies[*ns.Connect]; !ok {
				proxy = NewNodeInfo(*ns.Connect)
				proxies[*ns.Connect] = proxy
			}
		}
		if perr := n.SetConnectNode(proxy); perr != nil {
			err = multierr.Append(err, fmt.Errorf("nodes[%d]: %w", i, perr))
		}
	}
	if err != nil {
		return nil, err
	}

	db := New(opts...)
	for _, n := range order {
		if n != nil {
			db.ix.insert(n)
		}
	}
	return db, nil
}
