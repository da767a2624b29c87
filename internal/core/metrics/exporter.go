package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dep2p/go-rsocket/internal/util/logger"
)

var log = logger.Logger("metrics")

// MetricsPath 指标导出路径
const MetricsPath = "/metrics"

// Exporter 通过 HTTP 导出 Prometheus 指标
type Exporter struct {
	addr     string
	registry *prometheus.Registry

	mu  sync.Mutex
	srv *http.Server
	ln  net.Listener
}

// NewExporter 创建导出器并注册 collector
func NewExporter(addr string, collector prometheus.Collector) (*Exporter, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(collector); err != nil {
		return nil, fmt.Errorf("metrics: register collector: %w", err)
	}
	return &Exporter{addr: addr, registry: reg}, nil
}

// Registry 返回导出器使用的注册表
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler 返回指标 HTTP 处理器
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Start 开始监听，在后台提供 /metrics
func (e *Exporter) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.srv != nil {
		return nil
	}
	ln, err := net.Listen("tcp", e.addr)
	if err != nil {
		return fmt.Errorf("metrics: listen %s: %w", e.addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle(MetricsPath, e.Handler())
	e.srv = &http.Server{Handler: mux}
	e.ln = ln
	go func(srv *http.Server) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("指标导出服务退出", "err", err)
		}
	}(e.srv)
	log.Info("指标导出已启动", "addr", ln.Addr().String())
	return nil
}

// Addr 返回实际监听地址，未启动时返回 nil
func (e *Exporter) Addr() net.Addr {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ln == nil {
		return nil
	}
	return e.ln.Addr()
}

// Stop 关闭 HTTP 服务
func (e *Exporter) Stop(ctx context.Context) error {
	e.mu.Lock()
	srv := e.srv
	e.srv, e.ln = nil, nil
	e.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
