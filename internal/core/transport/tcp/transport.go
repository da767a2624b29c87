package tcp

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"

	"github.com/dep2p/go-rsocket/internal/core/transport/netconn"
	"github.com/dep2p/go-rsocket/internal/util/logger"
	"github.com/dep2p/go-rsocket/pkg/interfaces"
)

var log = logger.Logger("transport/tcp")

// Protocol 协议名称
const Protocol = "tcp"

// Config TCP 传输配置
type Config struct {
	// DialTimeout 拨号超时
	DialTimeout time.Duration
	// KeepAlive TCP keepalive 周期，0 表示使用系统默认
	KeepAlive time.Duration
	// NoDelay 禁用 Nagle 算法
	NoDelay bool
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		DialTimeout: 10 * time.Second,
		KeepAlive:   30 * time.Second,
		NoDelay:     true,
	}
}

// ============================================================================
//                              Transport 实现
// ============================================================================

// Transport TCP 传输
type Transport struct {
	config Config

	listenersMu sync.Mutex
	listeners   map[*netconn.Listener]struct{}

	closed atomic.Bool
}

var _ interfaces.Transport = (*Transport)(nil)

// New 创建 TCP 传输
func New(config Config) *Transport {
	return &Transport{
		config:    config,
		listeners: make(map[*netconn.Listener]struct{}),
	}
}

// Protocol 返回协议名称
func (t *Transport) Protocol() string {
	return Protocol
}

// Dial 建立出站连接
func (t *Transport) Dial(ctx context.Context, addr string) (interfaces.Conn, error) {
	nc, err := t.DialRaw(ctx, addr)
	if err != nil {
		return nil, err
	}
	return netconn.New(nc, nil, nil), nil
}

// DialRaw 建立出站 TCP 连接并应用连接选项，供上层传输复用
func (t *Transport) DialRaw(ctx context.Context, addr string) (net.Conn, error) {
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}
	hostport, err := ParseAddress(addr)
	if err != nil {
		return nil, err
	}
	dialer := &net.Dialer{Timeout: t.config.DialTimeout, KeepAlive: t.config.KeepAlive}
	nc, err := dialer.DialContext(ctx, "tcp", hostport)
	if err != nil {
		return nil, fmt.Errorf("tcp: dial %s: %w", hostport, err)
	}
	t.tune(nc)
	log.Debug("建立出站连接", "remote", nc.RemoteAddr().String())
	return nc, nil
}

// Listen 监听入站连接
func (t *Transport) Listen(addr string) (interfaces.Listener, error) {
	return t.ListenUpgrade(addr, func(nc net.Conn) (interfaces.Conn, error) {
		return netconn.New(nc, nil, nil), nil
	})
}

// ListenUpgrade 监听入站连接，每个连接经 upgrade 处理后交付
func (t *Transport) ListenUpgrade(addr string, upgrade func(net.Conn) (interfaces.Conn, error)) (*netconn.Listener, error) {
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}
	hostport, err := ParseAddress(addr)
	if err != nil {
		return nil, err
	}
	ln, err := net.Listen("tcp", hostport)
	if err != nil {
		return nil, fmt.Errorf("tcp: listen %s: %w", hostport, err)
	}

	var l *netconn.Listener
	l = netconn.NewListener(ln.Addr(), func() error {
		t.listenersMu.Lock()
		delete(t.listeners, l)
		t.listenersMu.Unlock()
		return ln.Close()
	})
	t.listenersMu.Lock()
	t.listeners[l] = struct{}{}
	t.listenersMu.Unlock()

	go netconn.Serve(l, ln, func(nc net.Conn) (interfaces.Conn, error) {
		t.tune(nc)
		return upgrade(nc)
	}, func(err error) {
		log.Debug("入站连接升级失败", "err", err)
	})
	log.Info("TCP 监听已启动", "addr", ln.Addr().String())
	return l, nil
}

// Close 关闭传输及其全部监听器
func (t *Transport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	t.listenersMu.Lock()
	ls := make([]*netconn.Listener, 0, len(t.listeners))
	for l := range t.listeners {
		ls = append(ls, l)
	}
	t.listenersMu.Unlock()

	var err error
	for _, l := range ls {
		err = multierr.Append(err, l.Close())
	}
	return err
}

// ListenerCount 返回活跃监听器数量
func (t *Transport) ListenerCount() int {
	t.listenersMu.Lock()
	defer t.listenersMu.Unlock()
	return len(t.listeners)
}

func (t *Transport) tune(nc net.Conn) {
	tc, ok := nc.(*net.TCPConn)
	if !ok {
		return
	}
	if t.config.NoDelay {
		_ = tc.SetNoDelay(true)
	}
	if t.config.KeepAlive > 0 {
		_ = tc.SetKeepAlive(true)
		_ = tc.SetKeepAlivePeriod(t.config.KeepAlive)
	}
}

// ParseAddress 解析 host:port 或 tcp://host:port
func ParseAddress(addr string) (string, error) {
	addr = strings.TrimPrefix(addr, "tcp://")
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidAddress, addr, err)
	}
	return addr, nil
}
