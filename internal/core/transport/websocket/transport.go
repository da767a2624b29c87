package websocket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/multierr"

	"github.com/dep2p/go-rsocket/internal/core/transport/netconn"
	"github.com/dep2p/go-rsocket/internal/util/logger"
	"github.com/dep2p/go-rsocket/pkg/interfaces"
)

var log = logger.Logger("transport/websocket")

// Protocol 协议名称
const Protocol = "websocket"

// DefaultPath 默认 HTTP 升级路径
const DefaultPath = "/rsocket"

// Config WebSocket 传输配置
type Config struct {
	// ReadBufferSize 读缓冲区大小
	ReadBufferSize int
	// WriteBufferSize 写缓冲区大小
	WriteBufferSize int
	// HandshakeTimeout 握手超时
	HandshakeTimeout time.Duration
	// EnableCompression 是否协商 permessage-deflate
	EnableCompression bool
	// Path 服务端默认升级路径
	Path string
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
		HandshakeTimeout: 10 * time.Second,
		Path:             DefaultPath,
	}
}

// Transport WebSocket 传输
type Transport struct {
	config   Config
	dialer   *websocket.Dialer
	upgrader websocket.Upgrader

	listenersMu sync.Mutex
	listeners   map[*netconn.Listener]struct{}

	closed atomic.Bool
}

var _ interfaces.Transport = (*Transport)(nil)

// New 创建 WebSocket 传输
func New(config Config) *Transport {
	if config.Path == "" {
		config.Path = DefaultPath
	}
	return &Transport{
		config: config,
		dialer: &websocket.Dialer{
			Proxy:             http.ProxyFromEnvironment,
			HandshakeTimeout:  config.HandshakeTimeout,
			ReadBufferSize:    config.ReadBufferSize,
			WriteBufferSize:   config.WriteBufferSize,
			EnableCompression: config.EnableCompression,
		},
		upgrader: websocket.Upgrader{
			HandshakeTimeout:  config.HandshakeTimeout,
			ReadBufferSize:    config.ReadBufferSize,
			WriteBufferSize:   config.WriteBufferSize,
			EnableCompression: config.EnableCompression,
			CheckOrigin:       func(*http.Request) bool { return true },
		},
		listeners: make(map[*netconn.Listener]struct{}),
	}
}

// Protocol 返回协议名称
func (t *Transport) Protocol() string {
	return Protocol
}

// Dial 连接 ws:// 或 wss:// 地址
func (t *Transport) Dial(ctx context.Context, addr string) (interfaces.Conn, error) {
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}
	u, err := ParseURL(addr, t.config.Path)
	if err != nil {
		return nil, err
	}
	ws, resp, err := t.dialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("websocket: dial %s: %w", u, err)
	}
	log.Debug("建立出站连接", "url", u.String())
	return newConn(ws), nil
}

// Listen 在 host:port 上启动 HTTP 服务并在升级路径上接受连接
func (t *Transport) Listen(addr string) (interfaces.Listener, error) {
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}
	u, err := ParseURL(addr, t.config.Path)
	if err != nil {
		return nil, err
	}
	ln, err := net.Listen("tcp", u.Host)
	if err != nil {
		return nil, fmt.Errorf("websocket: listen %s: %w", u.Host, err)
	}

	srv := &http.Server{ReadHeaderTimeout: t.config.HandshakeTimeout}
	var l *netconn.Listener
	l = netconn.NewListener(ln.Addr(), func() error {
		t.listenersMu.Lock()
		delete(t.listeners, l)
		t.listenersMu.Unlock()
		return srv.Close()
	})

	mux := http.NewServeMux()
	mux.HandleFunc(u.Path, func(w http.ResponseWriter, r *http.Request) {
		ws, err := t.upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Debug("升级失败", "remote", r.RemoteAddr, "err", err)
			return
		}
		l.Deliver(newConn(ws))
	})
	srv.Handler = mux

	t.listenersMu.Lock()
	t.listeners[l] = struct{}{}
	t.listenersMu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fail(err)
		}
	}()
	log.Info("WebSocket 监听已启动", "addr", ln.Addr().String(), "path", u.Path)
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

// ParseURL 解析地址，缺省 scheme 为 ws，缺省路径为 path
func ParseURL(addr, path string) (*url.URL, error) {
	if addr == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	if !strings.Contains(addr, "://") {
		addr = "ws://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("%w: scheme %q", ErrInvalidAddress, u.Scheme)
	}
	if _, _, err := net.SplitHostPort(u.Host); err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, u.Host, err)
	}
	if u.Path == "" || u.Path == "/" {
		if path == "" {
			path = DefaultPath
		}
		u.Path = path
	}
	return u, nil
}
