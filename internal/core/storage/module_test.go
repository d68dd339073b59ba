package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-btnodedb/config"
	corenodedb "github.com/dep2p/go-btnodedb/internal/core/nodedb"
	"github.com/dep2p/go-btnodedb/pkg/lib/nodedb"
)

func newApp(t *testing.T, cfg *config.Config, targets ...any) *fxtest.App {
	t.Helper()
	return fxtest.New(t,
		fx.Supply(cfg),
		corenodedb.Module(),
		Module(),
		fx.NopLogger,
		fx.Populate(targets...),
	)
}

func TestModule_Disabled(t *testing.T) {
	var s *Store
	app := newApp(t, config.NewConfig(), &s)
	app.RequireStart().RequireStop()
	assert.Nil(t, s)
}

func TestModule_ArchiveOnStop(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Metrics.Enabled = false
	cfg.Storage.Path = t.TempDir()

	var db *nodedb.DB
	app := newApp(t, cfg, &db)
	app.RequireStart()

	n := nodedb.NewNodeInfo(addr(1, 0x1001), nodedb.WithUniqueName(":a.1"))
	n.AddAdvertiseName("org.alljoyn.a")
	require.NoError(t, db.AddNode(n))
	app.RequireStop()

	sc := ConfigFromUnified(cfg)
	sc.ReadOnly = true
	s, err := Open(sc)
	require.NoError(t, err)

	info, snap, err := s.Latest()
	require.NoError(t, err)
	assert.Equal(t, 1, info.Nodes)
	require.Len(t, snap.Nodes, 1)
	assert.Equal(t, ":a.1", snap.Nodes[0].UniqueName)
	assert.Equal(t, []string{"org.alljoyn.a"}, snap.Nodes[0].AdvertiseNames)
	require.NoError(t, s.Close())

	// 归档不用于恢复：新实例从空注册表开始
	var fresh *nodedb.DB
	app = newApp(t, cfg, &fresh)
	app.RequireStart()
	defer app.RequireStop()
	assert.Zero(t, fresh.Size())
}
