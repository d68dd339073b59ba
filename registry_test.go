package btnodedb

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-btnodedb/config"
	"github.com/dep2p/go-btnodedb/internal/core/storage"
	pkgif "github.com/dep2p/go-btnodedb/pkg/interfaces"
	"github.com/dep2p/go-btnodedb/pkg/lib/nodedb"
	"github.com/dep2p/go-btnodedb/pkg/types"
)

func testAddr(dev byte) types.BusAddress {
	return types.NewBusAddress(types.BDAddress{0x00, 0x1a, 0x7d, 0xda, 0x71, dev}, 0x1001)
}

func testNode(dev byte, adNames ...string) *nodedb.NodeInfo {
	n := nodedb.NewNodeInfo(testAddr(dev))
	n.AddAdvertiseName(adNames...)
	return n
}

func TestRegistry_Lifecycle(t *testing.T) {
	ctx := context.Background()
	r, err := New()
	require.NoError(t, err)

	require.NoError(t, r.Start(ctx))
	assert.ErrorIs(t, r.Start(ctx), ErrAlreadyStarted)
	require.NoError(t, r.Stop(ctx))
	require.NoError(t, r.Close())
	assert.ErrorIs(t, r.Start(ctx), ErrClosed)
}

func TestRegistry_FoundScanReap(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Unix(1700000000, 0))

	r, err := Start(context.Background(),
		WithClock(mock),
		WithNodeTTL(config.Duration(time.Second)),
	)
	require.NoError(t, err)
	defer r.Close()

	sub, err := r.EventBus().Subscribe(new(pkgif.EvtNamesChanged))
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, r.Found(testNode(1, "a1"), 0))
	assert.Equal(t, uint64(mock.Now().UnixMilli())+1000, r.DB().FindByAddress(testAddr(1)).ExpireTime())

	scan := nodedb.New()
	require.NoError(t, scan.AddNode(testNode(1, "a1", "a2")))
	require.NoError(t, r.Scan(scan, types.BusAddress{}, 3))

	select {
	case e := <-sub.Out():
		evt := e.(pkgif.EvtNamesChanged)
		assert.Equal(t, uint32(3), evt.Epoch)
		assert.Equal(t, 1, evt.Added.Size())
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for EvtNamesChanged")
	}

	assert.Equal(t, []string{"a1", "a2"}, r.DB().FindByAddress(testAddr(1)).AdvertiseNames().Sorted())

	mock.Add(2 * time.Second)
	assert.Equal(t, 1, r.Reap())
	assert.Equal(t, 0, r.DB().Size())
}

func TestRegistry_Lost(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	require.NoError(t, r.Found(testNode(1, "a"), time.Minute))
	require.NoError(t, r.Lost(testAddr(1)))
	assert.Equal(t, 0, r.DB().Size())
}

func TestRegistry_NextDirectMinion(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	n := testNode(1)
	n.SetDirectMinion(true)
	require.NoError(t, r.Found(n, time.Minute))

	got := r.NextDirectMinion(nil)
	require.NotNil(t, got)
	assert.Equal(t, testAddr(1), got.BusAddress())
}

func TestRegistry_ExternalRegisterer(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := New(WithRegisterer(reg))
	require.NoError(t, err)

	require.NoError(t, r.Found(testNode(1, "a"), time.Minute))

	n, err := testutil.GatherAndCount(reg, "btnodedb_nodes")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NotNil(t, r.Gatherer())
}

func TestRegistry_Options(t *testing.T) {
	_, err := New(WithConfig(nil))
	assert.Error(t, err)

	_, err = New(WithNodeTTL(0))
	assert.Error(t, err)

	cfg := config.NewConfig()
	cfg.Discovery.EventBuffer = 0
	_, err = New(WithConfig(cfg))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "btnodedb.yaml")
	require.NoError(t, os.WriteFile(path, []byte("expiration:\n  node_ttl: 45s\n"), 0o600))
	r, err := New(WithConfigFile(path))
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, r.Config().Expiration.NodeTTL.Duration())
}

func TestRegistry_Archive(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	_, err := New(WithArchivePath(""))
	assert.Error(t, err)

	r, err := Start(ctx, WithArchivePath(dir))
	require.NoError(t, err)
	require.NoError(t, r.Found(testNode(1, "a"), time.Hour))
	require.NoError(t, r.Close())

	cfg := storage.ConfigFromUnified(r.Config())
	cfg.ReadOnly = true
	s, err := storage.Open(cfg)
	require.NoError(t, err)
	defer s.Close()

	info, snap, err := s.Latest()
	require.NoError(t, err)
	assert.Equal(t, 1, info.Nodes)
	require.Len(t, snap.Nodes, 1)
	assert.Equal(t, testAddr(1), snap.Nodes[0].Addr)
}

func TestVersionInfo(t *testing.T) {
	assert.Contains(t, VersionInfo(), Version)

	GitCommit = "0123456789abcdef"
	defer func() { GitCommit = "" }()
	assert.Contains(t, VersionInfo(), "(01234567)")
}

func TestRegistry_DebugServer(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Metrics.ListenAddr = "127.0.0.1:0"

	r, err := Start(context.Background(), WithConfig(cfg))
	require.NoError(t, err)
	defer r.Close()

	addr := r.DebugAddr()
	require.NotEmpty(t, addr)

	resp, err := http.Get("http://" + addr + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	plain, err := New()
	require.NoError(t, err)
	assert.Empty(t, plain.DebugAddr())
}
