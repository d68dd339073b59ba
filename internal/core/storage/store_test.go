package storage

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-btnodedb/pkg/lib/nodedb"
	"github.com/dep2p/go-btnodedb/pkg/types"
)

func addr(last byte, psm uint16) types.BusAddress {
	return types.NewBusAddress(types.BDAddress{0, 0x11, 0x22, 0x33, 0x44, last}, psm)
}

func newMock() *clock.Mock {
	mock := clock.NewMock()
	mock.Set(time.UnixMilli(1_700_000_000_000))
	return mock
}

func openMem(t *testing.T, mock *clock.Mock, tweak ...func(*Config)) *Store {
	t.Helper()
	cfg := DefaultConfig()
	cfg.InMemory = true
	for _, fn := range tweak {
		fn(&cfg)
	}
	s, err := Open(cfg, WithClock(mock))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newDB(t *testing.T, mock *clock.Mock) *nodedb.DB {
	t.Helper()
	db := nodedb.New(nodedb.WithClock(mock))

	proxy := nodedb.NewNodeInfo(addr(1, 0x1001), nodedb.WithUniqueName(":proxy.1"))
	proxy.SetDirectMinion(true)
	proxy.AddAdvertiseName("org.alljoyn.proxy")
	require.NoError(t, db.AddNode(proxy))

	leaf := nodedb.NewNodeInfo(addr(2, 0x1003), nodedb.WithUniqueName(":leaf.1"), nodedb.WithGUID("guid-leaf"))
	require.NoError(t, leaf.SetConnectNode(proxy))
	leaf.AddFindName("org.alljoyn.find")
	require.NoError(t, db.AddNode(leaf))

	db.RefreshNodeExpiration(leaf, 30*time.Second)
	return db
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.Enabled())
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg.Path = t.TempDir()
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.GCDiscardRatio = 1
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	bad = cfg
	bad.MaxSnapshots = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	bad = cfg
	bad.InMemory, bad.ReadOnly = true, true
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)
}

func TestNodeKey_Order(t *testing.T) {
	at := time.UnixMilli(1000)
	a, b, c := nodeKey(at, addr(1, 0x1003)), nodeKey(at, addr(1, 0x1005)), nodeKey(at, addr(2, 0x1001))
	assert.True(t, string(a) < string(b), "同一设备按 PSM 排序")
	assert.True(t, string(b) < string(c), "先按设备地址排序")
	assert.True(t, string(c) < string(nodeKey(time.UnixMilli(1001), addr(1, 0x1001))), "先按时间排序")
}

func TestStore_RecordLoad(t *testing.T) {
	mock := newMock()
	s := openMem(t, mock)
	db := newDB(t, mock)

	at, err := s.Archive(db)
	require.NoError(t, err)
	assert.Equal(t, mock.Now().UnixMilli(), at.UnixMilli())

	snap, err := s.Load(at)
	require.NoError(t, err)
	want := db.Snapshot()
	require.Len(t, snap.Nodes, len(want.Nodes))
	for i, w := range want.Nodes {
		got := snap.Nodes[i]
		assert.Equal(t, w.Addr, got.Addr)
		assert.Equal(t, w.UniqueName, got.UniqueName)
		assert.Equal(t, w.GUID, got.GUID)
		assert.Equal(t, w.DirectMinion, got.DirectMinion)
		assert.Equal(t, w.Connect, got.Connect)
		assert.Equal(t, w.ExpireMs, got.ExpireMs)
		assert.ElementsMatch(t, w.AdvertiseNames, got.AdvertiseNames)
		assert.ElementsMatch(t, w.FindNames, got.FindNames)
	}

	restored, err := nodedb.FromSnapshot(snap)
	require.NoError(t, err)
	assert.True(t, db.Equal(restored))
	assert.Equal(t, addr(1, 0x1001), restored.FindByUniqueName(":leaf.1").ConnectAddress())
}

func TestStore_Snapshots(t *testing.T) {
	mock := newMock()
	s := openMem(t, mock)
	db := newDB(t, mock)

	infos, err := s.Snapshots()
	require.NoError(t, err)
	assert.Empty(t, infos)
	_, _, err = s.Latest()
	assert.ErrorIs(t, err, ErrNotFound)

	first, err := s.Archive(db)
	require.NoError(t, err)

	mock.Add(time.Second)
	require.True(t, db.RemoveByAddress(addr(2, 0x1003)))
	second, err := s.Archive(db)
	require.NoError(t, err)

	infos, err = s.Snapshots()
	require.NoError(t, err)
	assert.Equal(t, []Info{{At: first, Nodes: 2}, {At: second, Nodes: 1}}, infos)

	info, snap, err := s.Latest()
	require.NoError(t, err)
	assert.Equal(t, second, info.At)
	require.Len(t, snap.Nodes, 1)
	assert.Equal(t, addr(1, 0x1001), snap.Nodes[0].Addr)

	old, err := s.Load(first)
	require.NoError(t, err)
	assert.Len(t, old.Nodes, 2, "旧快照不受新归档影响")

	_, err = s.Load(first.Add(time.Millisecond))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_RecordSameMillisecond(t *testing.T) {
	mock := newMock()
	s := openMem(t, mock)
	db := newDB(t, mock)

	_, err := s.Archive(db)
	require.NoError(t, err)
	db.Clear()
	at, err := s.Archive(db)
	require.NoError(t, err)

	infos, err := s.Snapshots()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Zero(t, infos[0].Nodes)

	snap, err := s.Load(at)
	require.NoError(t, err)
	assert.Empty(t, snap.Nodes)
}

func TestStore_Prune(t *testing.T) {
	mock := newMock()
	s := openMem(t, mock, func(c *Config) { c.MaxSnapshots = 2 })
	db := newDB(t, mock)

	var stamps []time.Time
	for i := 0; i < 4; i++ {
		at, err := s.Archive(db)
		require.NoError(t, err)
		stamps = append(stamps, at)
		mock.Add(time.Second)
	}

	infos, err := s.Snapshots()
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, stamps[2], infos[0].At)
	assert.Equal(t, stamps[3], infos[1].At)

	_, err = s.Load(stamps[0])
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := s.Prune(0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestStore_RecordRejectsInvalid(t *testing.T) {
	s := openMem(t, newMock())
	_, err := s.Record(nodedb.Snapshot{Nodes: []nodedb.NodeSnapshot{{}}})
	assert.ErrorIs(t, err, nodedb.ErrInvalidNode)

	infos, err := s.Snapshots()
	require.NoError(t, err)
	assert.Empty(t, infos, "失败的归档不留下标记")
}

func TestStore_Corrupted(t *testing.T) {
	mock := newMock()
	s := openMem(t, mock)
	at, err := s.Record(nodedb.Snapshot{})
	require.NoError(t, err)

	require.NoError(t, s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(nodeKey(at, addr(9, 0x1001)), []byte("{not json"))
	}))
	_, err = s.Load(at)
	assert.ErrorIs(t, err, ErrCorrupted)
}

func TestStore_ArchiveLoop(t *testing.T) {
	mock := newMock()
	s := openMem(t, mock, func(c *Config) { c.ArchiveInterval = time.Minute })
	db := newDB(t, mock)
	require.NoError(t, s.Start(db))

	require.Eventually(t, func() bool {
		mock.Add(time.Minute)
		infos, err := s.Snapshots()
		return err == nil && len(infos) > 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestStore_Reopen(t *testing.T) {
	mock := newMock()
	cfg := DefaultConfig()
	cfg.Path = t.TempDir()

	s, err := Open(cfg, WithClock(mock))
	require.NoError(t, err)
	at, err := s.Archive(newDB(t, mock))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	cfg.ReadOnly = true
	s, err = Open(cfg)
	require.NoError(t, err)
	defer s.Close()

	snap, err := s.Load(at)
	require.NoError(t, err)
	assert.Len(t, snap.Nodes, 2)

	_, err = s.Record(nodedb.Snapshot{})
	assert.ErrorIs(t, err, ErrReadOnly)
}

func TestStore_Closed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InMemory = true
	s, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Start(nil))

	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "重复关闭无操作")

	assert.ErrorIs(t, s.Start(nil), ErrClosed)
	_, err = s.Record(nodedb.Snapshot{})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.Snapshots()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.Load(time.Now())
	assert.ErrorIs(t, err, ErrClosed)
}
