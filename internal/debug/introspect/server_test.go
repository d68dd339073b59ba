package introspect

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-btnodedb/pkg/lib/nodedb"
	"github.com/dep2p/go-btnodedb/pkg/types"
)

func testAddr(dev byte) types.BusAddress {
	return types.NewBusAddress(types.BDAddress{0x00, 0x1a, 0x7d, 0xda, 0x71, dev}, 0x1001)
}

// testRegistry 一个 master 加一个经由它连接的 minion，另有一个独立节点
func testRegistry(t *testing.T) *nodedb.DB {
	t.Helper()

	master := nodedb.NewNodeInfo(testAddr(1), nodedb.WithUniqueName(":1.1"))
	minion := nodedb.NewNodeInfo(testAddr(2), nodedb.WithUniqueName(":1.2"))
	minion.AddAdvertiseName("org.alljoyn.About")
	require.NoError(t, minion.SetConnectNode(master))
	other := nodedb.NewNodeInfo(testAddr(3), nodedb.WithUniqueName(":1.3"))

	db := nodedb.New()
	for _, n := range []*nodedb.NodeInfo{master, minion, other} {
		require.NoError(t, db.AddNode(n))
	}
	return db
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestNew(t *testing.T) {
	server := New(Config{})
	assert.NotNil(t, server)
	assert.Equal(t, DefaultAddr, server.config.Addr)

	server = New(Config{Addr: "127.0.0.1:8080"})
	assert.Equal(t, "127.0.0.1:8080", server.config.Addr)
}

func TestServer_StartStop(t *testing.T) {
	server := New(Config{Addr: "127.0.0.1:0"}) // 使用随机端口

	ctx := context.Background()
	require.NoError(t, server.Start(ctx))
	assert.True(t, server.running)

	addr := server.Addr()
	assert.NotEmpty(t, addr)
	assert.NotEqual(t, "127.0.0.1:0", addr)

	// 重复启动应该无效
	require.NoError(t, server.Start(ctx))

	require.NoError(t, server.Stop())
	assert.False(t, server.running)

	// 重复停止应该无效
	require.NoError(t, server.Stop())
}

func TestServer_HealthEndpoint(t *testing.T) {
	server := New(Config{Addr: "127.0.0.1:0"})
	require.NoError(t, server.Start(context.Background()))
	defer server.Stop()

	resp, err := http.Get("http://" + server.Addr() + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "degraded", health.Status) // 没有注册表，所以是 degraded
	assert.NotEmpty(t, health.Uptime)

	withDB := New(Config{Registry: testRegistry(t)})
	rec := get(t, withDB.Handler(), "/health")
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
}

func TestServer_IntrospectEndpoint(t *testing.T) {
	server := New(Config{Registry: testRegistry(t)})

	rec := get(t, server.Handler(), "/debug/introspect")
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp IntrospectResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEmpty(t, resp.Uptime)
	assert.NotNil(t, resp.Runtime)
	require.NotNil(t, resp.Registry)
	assert.Equal(t, 3, resp.Registry.Nodes)
	assert.Equal(t, 1, resp.Registry.AdvertiseNames)
}

func TestServer_NodesEndpoint(t *testing.T) {
	h := New(Config{Registry: testRegistry(t)}).Handler()

	var snap nodedb.Snapshot
	rec := get(t, h, "/debug/introspect/nodes")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snap))
	assert.Len(t, snap.Nodes, 3)

	rec = get(t, h, "/debug/introspect/nodes?name=:1.2")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snap))
	require.Len(t, snap.Nodes, 1)
	assert.Equal(t, testAddr(2), snap.Nodes[0].Addr)
	require.NotNil(t, snap.Nodes[0].Connect)
	assert.Equal(t, testAddr(1), *snap.Nodes[0].Connect)

	rec = get(t, h, "/debug/introspect/nodes?connect="+testAddr(1).ToSpec())
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snap))
	assert.Len(t, snap.Nodes, 2)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/debug/introspect/nodes?name=:9.9").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/debug/introspect/nodes?connect=tcp:addr=1").Code)
}

func TestServer_NoRegistry(t *testing.T) {
	h := New(Config{}).Handler()
	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/debug/introspect/nodes").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/debug/introspect/table").Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/metrics").Code)
}

func TestServer_TableEndpoint(t *testing.T) {
	rec := get(t, New(Config{Registry: testRegistry(t)}).Handler(), "/debug/introspect/table")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ADDRESS")
	assert.Contains(t, rec.Body.String(), "org.alljoyn.About")
}

func TestServer_MetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "introspect_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	rec := get(t, New(Config{Gatherer: reg}).Handler(), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "introspect_test_total 1")
}

func TestServer_RuntimeEndpoint(t *testing.T) {
	rec := get(t, New(Config{}).Handler(), "/debug/introspect/runtime")
	assert.Equal(t, http.StatusOK, rec.Code)

	var runtime RuntimeInfo
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&runtime))
	assert.NotEmpty(t, runtime.GoVersion)
	assert.Greater(t, runtime.NumGoroutine, 0)
	assert.Greater(t, runtime.NumCPU, 0)
}

func TestServer_MethodNotAllowed(t *testing.T) {
	server := New(Config{Addr: "127.0.0.1:0"})
	require.NoError(t, server.Start(context.Background()))
	defer server.Stop()

	// 使用 POST 方法（应该被拒绝）
	resp, err := http.Post("http://"+server.Addr()+"/health", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServer_CustomHandlers(t *testing.T) {
	server := New(Config{
		CustomHandlers: map[string]http.HandlerFunc{
			"/custom": func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("custom response"))
			},
		},
	})

	rec := get(t, server.Handler(), "/custom")
	assert.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Equal(t, "custom response", string(body))
}

func TestServer_PprofEndpoint(t *testing.T) {
	rec := get(t, New(Config{}).Handler(), "/debug/pprof/")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_Addr(t *testing.T) {
	server := New(Config{Addr: "127.0.0.1:8888"})

	// 未启动时返回配置地址
	assert.Equal(t, "127.0.0.1:8888", server.Addr())

	server = New(Config{Addr: "127.0.0.1:0"})
	require.NoError(t, server.Start(context.Background()))
	defer server.Stop()

	// 启动后返回实际地址
	addr := server.Addr()
	assert.NotEqual(t, "127.0.0.1:0", addr)
	assert.Contains(t, addr, "127.0.0.1:")
}
