package nodedb

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-btnodedb/pkg/types"
)

func TestDB_Diff(t *testing.T) {
	self := New()
	other := New()

	same := testNode(1, ":1.1", "org.same")
	gone := testNode(2, ":1.2", "org.gone")
	renamedOld := testNode(3, ":1.3", "org.keep", "org.old")
	renamedNew := testNode(3, ":1.3", "org.keep", "org.new")
	fresh := testNode(4, ":1.4", "org.fresh")

	require.NoError(t, self.AddNode(same))
	require.NoError(t, self.AddNode(gone))
	require.NoError(t, self.AddNode(renamedOld))
	require.NoError(t, other.AddNode(same))
	require.NoError(t, other.AddNode(renamedNew))
	require.NoError(t, other.AddNode(fresh))

	added, removed := self.Diff(other)

	assert.Equal(t, []types.BusAddress{renamedNew.BusAddress(), fresh.BusAddress()}, addrsOf(added))
	assert.Equal(t, []types.BusAddress{gone.BusAddress(), renamedOld.BusAddress()}, addrsOf(removed))

	// 只在一侧的节点按引用复制
	assert.Same(t, fresh, added.FindByAddress(fresh.BusAddress()))
	assert.Same(t, gone, removed.FindByAddress(gone.BusAddress()))

	// 两侧都有的节点只携带差异名称，且是独立记录
	a := added.FindByAddress(renamedNew.BusAddress())
	assert.NotSame(t, renamedNew, a)
	assert.Equal(t, []string{"org.new"}, a.AdvertiseNames().Sorted())
	assert.Equal(t, ":1.3", a.UniqueName())

	r := removed.FindByAddress(renamedOld.BusAddress())
	assert.NotSame(t, renamedOld, r)
	assert.Equal(t, []string{"org.old"}, r.AdvertiseNames().Sorted())

	checkInvariants(t, added)
	checkInvariants(t, removed)

	// 输入不受影响
	assert.Equal(t, 3, self.Size())
	assert.Equal(t, 3, other.Size())
	assert.Equal(t, 2, renamedOld.AdvertiseNames().Len())
}

func TestDB_Diff_FindNamesOnly(t *testing.T) {
	self := New()
	other := New()

	a := testNode(1, ":1.1", "org.a")
	b := a.Clone()
	b.AddFindName("org.wanted")
	require.NoError(t, self.AddNode(a))
	require.NoError(t, other.AddNode(b))

	added, removed := self.Diff(other)
	assert.Equal(t, 0, removed.Size())
	require.Equal(t, 1, added.Size())

	n := added.FindByAddress(a.BusAddress())
	assert.True(t, n.AdvertiseNames().Empty())
	assert.Equal(t, []string{"org.wanted"}, n.FindNames().Sorted())
}

func TestDB_Diff_Identical(t *testing.T) {
	db := New()
	require.NoError(t, db.AddNode(testNode(1, ":1.1", "org.a")))

	added, removed := db.Diff(db.Clone())
	assert.Equal(t, 0, added.Size())
	assert.Equal(t, 0, removed.Size())

	// 与自身比较也不会死锁
	added, removed = db.Diff(db)
	assert.Equal(t, 0, added.Size())
	assert.Equal(t, 0, removed.Size())
}

func TestDB_NodeDiff(t *testing.T) {
	self := New()
	other := New()

	require.NoError(t, self.AddNode(testNode(1, ":1.1", "org.a")))
	require.NoError(t, self.AddNode(testNode(2, ":1.2")))
	require.NoError(t, other.AddNode(testNode(1, ":1.1", "org.b")))
	require.NoError(t, other.AddNode(testNode(3, ":1.3")))

	added, removed := self.NodeDiff(other)
	assert.Equal(t, []types.BusAddress{testAddr(3, 0x1001)}, addrsOf(added))
	assert.Equal(t, []types.BusAddress{testAddr(2, 0x1001)}, addrsOf(removed))
}

func TestDB_UpdateDB_Merge(t *testing.T) {
	db := New()
	proxy := testNode(9, ":1.9")

	existing := testNode(1, ":1.1", "org.a")
	existing.SetDiscoveryEpoch(3)
	require.NoError(t, existing.SetExpireTime(5000))
	require.NoError(t, db.AddNode(existing))

	incoming := NewNodeInfo(testAddr(1, 0x1001), WithUniqueName(":1.100"), WithGUID("guid-2"))
	incoming.AddAdvertiseName("org.b")
	incoming.AddFindName("org.c")
	incoming.SetDirectMinion(true)
	require.NoError(t, incoming.SetConnectNode(proxy))

	added := New()
	require.NoError(t, added.AddNode(incoming))

	db.UpdateDB(added, nil, true)

	got := db.FindByAddress(existing.BusAddress())
	assert.Equal(t, []string{"org.a", "org.b"}, got.AdvertiseNames().Sorted())
	assert.Equal(t, []string{"org.c"}, got.FindNames().Sorted())
	assert.Equal(t, ":1.100", got.UniqueName())
	assert.Equal(t, "guid-2", got.GUID())
	assert.True(t, got.IsDirectMinion())
	assert.Same(t, proxy, got.ConnectNode())
	assert.Equal(t, uint32(3), got.DiscoveryEpoch(), "无效轮次不覆盖")
	assert.Equal(t, uint64(5000), got.ExpireTime(), "过期时间保持不变")

	// 唯一名和连接地址索引已更新
	assert.Same(t, got, db.FindByUniqueName(":1.100"))
	assert.False(t, db.FindByUniqueName(":1.1").IsValid())
	assert.Equal(t, 1, db.FindNodesByConnectAddress(proxy.BusAddress()).Size())

	// 传入的记录没有被修改
	assert.Equal(t, 1, incoming.AdvertiseNames().Len())
	checkInvariants(t, db)
	checkInvariants(t, added)
}

func TestDB_UpdateDB_Reap(t *testing.T) {
	db := New()
	require.NoError(t, db.AddNode(testNode(1, ":1.1", "org.a", "org.b")))
	require.NoError(t, db.AddNode(testNode(2, ":1.2", "org.c")))

	removed := New()
	require.NoError(t, removed.AddNode(testNode(1, ":1.1", "org.a")))
	require.NoError(t, removed.AddNode(testNode(2, ":1.2", "org.c")))
	require.NoError(t, removed.AddNode(testNode(3, ":1.3", "org.x")))

	keep := db.Clone()
	keep.UpdateDB(nil, removed, false)
	assert.Equal(t, 2, keep.Size())
	assert.False(t, keep.FindByAddress(testAddr(2, 0x1001)).HasNames())

	db.UpdateDB(nil, removed, true)
	assert.Equal(t, 1, db.Size())
	assert.Equal(t, []string{"org.b"}, db.FindByAddress(testAddr(1, 0x1001)).AdvertiseNames().Sorted())
	checkInvariants(t, db)
	checkInvariants(t, keep)
}

func TestDB_DiffInverseLaw(t *testing.T) {
	a := New()
	b := New()

	require.NoError(t, a.AddNode(testNode(1, ":1.1", "org.a")))
	require.NoError(t, a.AddNode(testNode(2, ":1.2", "org.b", "org.c")))
	require.NoError(t, a.AddNode(testNode(3, ":1.3", "org.d")))

	require.NoError(t, b.AddNode(testNode(2, ":1.2", "org.c", "org.e")))
	require.NoError(t, b.AddNode(testNode(3, ":1.3", "org.d")))
	require.NoError(t, b.AddNode(testNode(4, ":1.4", "org.f")))

	added, removed := a.Diff(b)
	a.UpdateDB(added, removed, true)

	assert.True(t, a.Equal(b))
	checkInvariants(t, a)
}

func TestDB_DiffInverseLaw_Random(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	names := []string{"org.a", "org.b", "org.c", "org.d", "org.e"}

	randomDB := func() *DB {
		db := New()
		for dev := byte(1); dev <= 12; dev++ {
			if rng.Intn(3) == 0 {
				continue
			}
			n := testNode(dev, fmt.Sprintf(":1.%d", dev))
			for _, name := range names {
				if rng.Intn(2) == 0 {
					n.AddAdvertiseName(name)
				}
				if rng.Intn(4) == 0 {
					n.AddFindName(name)
				}
			}
			if !n.HasNames() {
				n.AddAdvertiseName(names[0])
			}
			require.NoError(t, db.AddNode(n))
		}
		return db
	}

	for i := 0; i < 50; i++ {
		a, b := randomDB(), randomDB()
		snapshot := b.Snapshot()

		added, removed := a.Diff(b)
		a.UpdateDB(added, removed, true)

		require.True(t, a.Equal(b), "round %d", i)
		assert.Equal(t, snapshot, b.Snapshot(), "Diff/UpdateDB 不修改 other")
		checkInvariants(t, a)
		checkInvariants(t, b)
	}
}
