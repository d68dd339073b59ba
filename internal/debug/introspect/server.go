package introspect

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/pprof"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dep2p/go-btnodedb/pkg/lib/log"
	"github.com/dep2p/go-btnodedb/pkg/lib/nodedb"
	"github.com/dep2p/go-btnodedb/pkg/types"
)

var logger = log.Logger("debug/introspect")

// DefaultAddr 默认监听地址
const DefaultAddr = "127.0.0.1:6060"

// ============================================================================
//                              配置
// ============================================================================

// Config 服务配置
type Config struct {
	// Addr 监听地址，默认 "127.0.0.1:6060"
	Addr string

	// Registry 可选的节点注册表
	Registry Registry

	// Gatherer 可选的指标收集器，设置后提供 /metrics
	Gatherer prometheus.Gatherer

	// CustomHandlers 自定义处理器
	CustomHandlers map[string]http.HandlerFunc
}

// Registry 自省服务读取的注册表视图，由 *nodedb.DB 实现
type Registry interface {
	Stats() nodedb.Stats
	Snapshot() nodedb.Snapshot
	FindByUniqueName(name string) *nodedb.NodeInfo
	FindNodesByConnectAddress(connAddr types.BusAddress) *nodedb.DB
	WriteTable(w io.Writer) error
}

// ============================================================================
//                              Server
// ============================================================================

// Server 本地自省 HTTP 服务
type Server struct {
	config Config

	// HTTP 服务器
	server   *http.Server
	listener net.Listener

	// 状态
	running   bool
	startTime time.Time

	mu sync.Mutex
}

// New 创建自省服务
func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}

	return &Server{
		config: cfg,
	}
}

// Start 启动服务
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	s.listener = listener

	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Error("自省服务异常退出", "error", err)
		}
	}()

	s.running = true
	s.startTime = time.Now()
	logger.Info("自省服务已启动", "addr", listener.Addr().String())
	return nil
}

// Handler 返回全部路由，不监听端口（测试和嵌入使用）
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// 自省端点
	mux.HandleFunc("/debug/introspect", s.handleIntrospect)
	mux.HandleFunc("/debug/introspect/nodes", s.handleNodes)
	mux.HandleFunc("/debug/introspect/table", s.handleTable)
	mux.HandleFunc("/debug/introspect/runtime", s.handleRuntime)

	// pprof 端点
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	// Prometheus
	if s.config.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{}))
	}

	// 健康检查
	mux.HandleFunc("/health", s.handleHealth)

	// 自定义处理器
	for path, handler := range s.config.CustomHandlers {
		mux.HandleFunc(path, handler)
	}
	return mux
}

// Stop 停止服务
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		logger.Error("关闭自省服务失败", "error", err)
		return err
	}

	s.running = false
	logger.Info("自省服务已停止")
	return nil
}

// Addr 返回实际监听地址
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Addr
}

// ============================================================================
//                              响应结构
// ============================================================================

// IntrospectResponse 完整诊断响应
type IntrospectResponse struct {
	Timestamp time.Time     `json:"timestamp"`
	Uptime    string        `json:"uptime"`
	Registry  *nodedb.Stats `json:"registry,omitempty"`
	Runtime   *RuntimeInfo  `json:"runtime,omitempty"`
}

// RuntimeInfo 运行时信息
type RuntimeInfo struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`
	NumCPU       int    `json:"num_cpu"`
	MemAlloc     uint64 `json:"mem_alloc"`
	MemSys       uint64 `json:"mem_sys"`
	NumGC        uint32 `json:"num_gc"`
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime,omitempty"`
}

// ============================================================================
//                              HTTP 处理器
// ============================================================================

// handleIntrospect 处理完整诊断请求
func (s *Server) handleIntrospect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := IntrospectResponse{
		Timestamp: time.Now(),
		Uptime:    s.uptime(),
		Runtime:   collectRuntimeInfo(),
	}
	if s.config.Registry != nil {
		stats := s.config.Registry.Stats()
		response.Registry = &stats
	}

	s.writeJSON(w, response)
}

// handleNodes 返回注册表快照
//
// ?name=<唯一名> 只返回该节点；?connect=<总线地址规格> 只返回经由该地址连接的节点。
func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	reg := s.config.Registry
	if reg == nil {
		http.Error(w, "Registry not available", http.StatusServiceUnavailable)
		return
	}

	q := r.URL.Query()
	switch {
	case q.Get("name") != "":
		n := reg.FindByUniqueName(q.Get("name"))
		if !n.IsValid() {
			http.Error(w, "Node not found", http.StatusNotFound)
			return
		}
		one := nodedb.NewView()
		_ = one.AddNode(n)
		s.writeJSON(w, one.Snapshot())

	case q.Get("connect") != "":
		addr := types.ParseBusAddress(q.Get("connect"))
		if !addr.IsValid() {
			http.Error(w, "Invalid bus address", http.StatusBadRequest)
			return
		}
		s.writeJSON(w, reg.FindNodesByConnectAddress(addr).Snapshot())

	default:
		s.writeJSON(w, reg.Snapshot())
	}
}

// handleTable 以文本表格返回注册表
func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.config.Registry == nil {
		http.Error(w, "Registry not available", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := s.config.Registry.WriteTable(w); err != nil {
		logger.Error("写出注册表失败", "error", err)
	}
}

// handleRuntime 处理运行时信息请求
func (s *Server) handleRuntime(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, collectRuntimeInfo())
}

// handleHealth 处理健康检查请求
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Uptime:    s.uptime(),
	}

	// 没有注册表时只能提供运行时信息
	if s.config.Registry == nil {
		health.Status = "degraded"
	}

	s.writeJSON(w, health)
}

// ============================================================================
//                              辅助方法
// ============================================================================

func (s *Server) uptime() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.startTime.IsZero() {
		return "0s"
	}
	return time.Since(s.startTime).Truncate(time.Millisecond).String()
}

// collectRuntimeInfo 收集运行时信息
func collectRuntimeInfo() *RuntimeInfo {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return &RuntimeInfo{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		MemAlloc:     memStats.Alloc,
		MemSys:       memStats.Sys,
		NumGC:        memStats.NumGC,
	}
}

// writeJSON 写入 JSON 响应
func (s *Server) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		logger.Error("JSON 编码失败", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
