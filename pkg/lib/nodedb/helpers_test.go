package nodedb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-btnodedb/pkg/types"
)

// testAddr 构造测试用总线地址，dev 为设备地址最后一个字节
func testAddr(dev byte, psm uint16) types.BusAddress {
	return types.NewBusAddress(types.BDAddress{0x00, 0x1a, 0x7d, 0xda, 0x71, dev}, psm)
}

// testNode 构造带广播名的测试节点
func testNode(dev byte, name string, adNames ...string) *NodeInfo {
	n := NewNodeInfo(testAddr(dev, 0x1001), WithUniqueName(name))
	n.AddAdvertiseName(adNames...)
	return n
}

// checkInvariants 验证全部索引与主索引的成员完全一致
func checkInvariants(t *testing.T, db *DB) {
	t.Helper()

	db.View(func(tx *ReadTx) {
		ix := &tx.db.ix
		size := ix.nodes.Len()

		require.Len(t, ix.addrMap, size, "addrMap")
		require.Equal(t, size, ix.connMap.Len(), "connMap")
		require.Len(t, ix.expire, size, "expire heap")

		ix.nodes.Ascend(func(e *entry) bool {
			assert.Same(t, e, ix.addrMap[e.addr])
			assert.Equal(t, e.addr, e.node.addr)
			assert.True(t, ix.connMap.Has(e), "connMap missing %s", e.addr)
			assert.Equal(t, e.node.ConnectAddress(), e.connAddr)
			require.GreaterOrEqual(t, e.heapIndex, 0)
			assert.Same(t, e, ix.expire[e.heapIndex])
			assert.Equal(t, e.node.ExpireTime(), e.expire)
			if !ix.view {
				assert.True(t, e.node.Indexed())
			}

			if e.name != "" {
				assert.Contains(t, ix.nameMap, e.name)
			}
			return true
		})

		for name, e := range ix.nameMap {
			assert.Equal(t, name, e.name)
			assert.Same(t, e, ix.addrMap[e.addr], "nameMap entry %q not in primary index", name)
		}

		// 堆序
		for i := 1; i < len(ix.expire); i++ {
			assert.False(t, ix.expire.Less(i, (i-1)/2), "heap order broken at %d", i)
		}
	})
}

// addrsOf 返回注册表中按顺序排列的地址
func addrsOf(db *DB) []types.BusAddress {
	var addrs []types.BusAddress
	db.Range(func(n *NodeInfo) bool {
		addrs = append(addrs, n.BusAddress())
		return true
	})
	return addrs
}
